// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
	"github.com/spf13/cobra"
)

// chatRequest mirrors the POST /api/v1/chat body.
type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

type chatReply struct {
	Reply string `json:"reply"`
	State string `json:"state"`
}

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the assistant",
		Long: `Send a message to the running gateway as if it came from a customer.
Without a message, opens an interactive transcript.`,
		RunE: runChat,
	}

	cmd.Flags().String("address", defaultAddress, "gateway address")
	cmd.Flags().String("conversation", "", "conversation ID (default cli:<user>)")

	return cmd
}

func newChatClient(addr string) *gatewayClient {
	c := newGatewayClient(addr)
	c.http = chatHTTPClient
	return c
}

func defaultConversationID() string {
	user := os.Getenv("USER")
	if user == "" {
		user = "local"
	}
	return "cli:" + user
}

func runChat(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("address")
	conv, _ := cmd.Flags().GetString("conversation")
	if conv == "" {
		conv = defaultConversationID()
	}
	client := newChatClient(addr)

	if len(args) > 0 {
		reply, err := sendChat(client, conv, strings.Join(args, " "))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), reply.Reply)
		return err
	}

	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isTerminal(f) {
		return balcaoerr.New(balcaoerr.CodeCLIInputInvalid,
			"interactive chat needs a terminal; pass the message as an argument")
	}

	p := tea.NewProgram(newChatModel(client, conv), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return balcaoerr.Errorf(balcaoerr.CodeCLIRequestFailure, "chat session: %v", err)
	}
	return nil
}

func sendChat(client *gatewayClient, conversationID, text string) (chatReply, error) {
	var reply chatReply
	err := client.postJSON("/api/v1/chat", chatRequest{ConversationID: conversationID, Content: text}, &reply)
	return reply, err
}

// --- interactive transcript ---

type (
	chatReplyMsg struct{ reply chatReply }
	chatErrMsg   struct{ err error }
)

var (
	customerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
)

type chatModel struct {
	client         *gatewayClient
	conversationID string
	input          textinput.Model
	transcript     viewport.Model
	spinner        spinner.Model
	lines          []string
	state          string
	waiting        bool
	ready          bool
}

func newChatModel(client *gatewayClient, conversationID string) chatModel {
	in := textinput.New()
	in.Placeholder = "digite uma mensagem"
	in.CharLimit = 500
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return chatModel{
		client:         client,
		conversationID: conversationID,
		input:          in,
		spinner:        sp,
		state:          "INITIAL",
	}
}

func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// Title, status and input take four rows.
		height := max(msg.Height-4, 1)
		if !m.ready {
			m.transcript = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.transcript.Width = msg.Width
			m.transcript.Height = height
		}
		m.input.Width = msg.Width - 4
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			return m.submit()
		}

	case chatReplyMsg:
		m.waiting = false
		m.state = msg.reply.State
		m.appendLine(assistantStyle.Render("balcao: ") + msg.reply.Reply)
		return m, nil

	case chatErrMsg:
		m.waiting = false
		m.appendLine(errorStyle.Render("erro: " + msg.err.Error()))
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	if m.ready {
		m.transcript, cmd = m.transcript.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m chatModel) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.waiting {
		return m, nil
	}
	m.input.SetValue("")
	m.waiting = true
	m.appendLine(customerStyle.Render("você: ") + text)
	return m, tea.Batch(m.spinner.Tick, sendChatCmd(m.client, m.conversationID, text))
}

func (m *chatModel) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.refresh()
}

func (m *chatModel) refresh() {
	if !m.ready {
		return
	}
	m.transcript.SetContent(strings.Join(m.lines, "\n\n"))
	m.transcript.GotoBottom()
}

func (m chatModel) View() string {
	if !m.ready {
		return "carregando…"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(" balcao · "+m.conversationID+" ") + "\n")
	b.WriteString(m.transcript.View() + "\n")
	if m.waiting {
		b.WriteString(m.spinner.View() + dimStyle.Render(" pensando…") + "\n")
	} else {
		b.WriteString(dimStyle.Render("estado: "+m.state+"  ·  esc para sair") + "\n")
	}
	b.WriteString(m.input.View())
	return b.String()
}

func sendChatCmd(client *gatewayClient, conversationID, text string) tea.Cmd {
	return func() tea.Msg {
		reply, err := sendChat(client, conversationID, text)
		if err != nil {
			return chatErrMsg{err: err}
		}
		return chatReplyMsg{reply: reply}
	}
}
