// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/sigil-dev/balcao/internal/catalog/tiny"
	"github.com/sigil-dev/balcao/internal/channel/wppconnect"
	"github.com/sigil-dev/balcao/internal/config"
	"github.com/sigil-dev/balcao/internal/provider"
	"github.com/sigil-dev/balcao/internal/secrets"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// initHTTPClient is used for key and token validation. Tests replace it.
var initHTTPClient = &http.Client{Timeout: 10 * time.Second}

// initTinyBaseURL is the Tiny endpoint the wizard validates tokens against.
var initTinyBaseURL = tiny.DefaultBaseURL

// initWizardStep tracks which step of the wizard is active.
type initWizardStep int

const (
	stepProvider     initWizardStep = iota // select provider
	stepAPIKey                             // enter API key
	stepValidateKey                        // validating key (spinner)
	stepTinyToken                          // enter Tiny token
	stepValidateTiny                       // validating Tiny token (spinner)
	stepWppURL                             // enter wppconnect-server URL
	stepWppToken                           // enter wppconnect token
	stepDone                               // wizard complete
	stepError                              // terminal error
)

// initResult holds what the wizard collected.
type initResult struct {
	Provider        provider.Name
	APIKey          string
	TinyToken       string
	WppconnectURL   string
	WppconnectToken string
	// WebhookSecret authenticates wppconnect webhook posts.
	WebhookSecret string
}

type (
	validationSuccessMsg struct{ step initWizardStep }
	validationErrorMsg   struct {
		step initWizardStep
		err  error
	}
	configWrittenMsg struct{ path string }
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

// initModel is the bubbletea model for the init wizard.
type initModel struct {
	step           initWizardStep
	providerIdx    int
	apiKeyInput    textinput.Model
	tinyInput      textinput.Model
	wppURLInput    textinput.Model
	wppTokenInput  textinput.Model
	spinner        spinner.Model
	result         initResult
	validationErr  string
	configPath     string
	secretStore    secrets.Store
	errFinal       error
	skipChannel    bool
	forceOverwrite bool
}

func secretInput(placeholder string) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.EchoMode = textinput.EchoPassword
	in.EchoCharacter = '•'
	return in
}

func newInitModel(store secrets.Store) initModel {
	wppURL := textinput.New()
	wppURL.Placeholder = wppconnect.DefaultBaseURL
	wppURL.SetValue(wppconnect.DefaultBaseURL)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return initModel{
		step:          stepProvider,
		apiKeyInput:   secretInput("paste API key here"),
		tinyInput:     secretInput("paste Tiny API token here"),
		wppURLInput:   wppURL,
		wppTokenInput: secretInput("wppconnect token (enter to leave empty)"),
		spinner:       sp,
		secretStore:   store,
	}
}

func (m initModel) Init() tea.Cmd {
	return nil
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case validationSuccessMsg:
		return m.handleValidationSuccess(msg)

	case validationErrorMsg:
		m.validationErr = msg.err.Error()
		switch msg.step {
		case stepValidateKey:
			m.step = stepAPIKey
			m.apiKeyInput.Focus()
		case stepValidateTiny:
			m.step = stepTinyToken
			m.tinyInput.Focus()
		}
		return m, nil

	case configWrittenMsg:
		m.step = stepDone
		m.configPath = msg.path
		return m, tea.Quit

	case error:
		m.step = stepError
		m.errFinal = msg
		return m, tea.Quit
	}

	return m.updateInput(msg)
}

func (m initModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.step {
	case stepProvider:
		return m.handleProviderKey(msg)
	case stepAPIKey, stepTinyToken, stepWppURL, stepWppToken:
		if msg.String() == "enter" {
			return m.submit()
		}
		return m.updateInput(msg)
	}
	return m, nil
}

func (m initModel) handleProviderKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.providerIdx > 0 {
			m.providerIdx--
		}
	case "down", "j":
		if m.providerIdx < len(provider.Names)-1 {
			m.providerIdx++
		}
	case "enter":
		m.result.Provider = provider.Names[m.providerIdx]
		m.step = stepAPIKey
		m.validationErr = ""
		m.apiKeyInput.SetValue("")
		m.apiKeyInput.Focus()
		return m, textinput.Blink
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

// submit handles enter on a text step.
func (m initModel) submit() (tea.Model, tea.Cmd) {
	m.validationErr = ""

	switch m.step {
	case stepAPIKey:
		key := strings.TrimSpace(m.apiKeyInput.Value())
		if key == "" {
			m.validationErr = "API key must not be empty"
			return m, nil
		}
		m.result.APIKey = key
		m.step = stepValidateKey
		return m, tea.Batch(m.spinner.Tick, validateProviderKeyCmd(m.result.Provider, key))

	case stepTinyToken:
		token := strings.TrimSpace(m.tinyInput.Value())
		if token == "" {
			m.validationErr = "Tiny token must not be empty"
			return m, nil
		}
		m.result.TinyToken = token
		m.step = stepValidateTiny
		return m, tea.Batch(m.spinner.Tick, validateTinyTokenCmd(token))

	case stepWppURL:
		raw := strings.TrimSpace(m.wppURLInput.Value())
		if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
			m.validationErr = "URL must start with http:// or https://"
			return m, nil
		}
		m.result.WppconnectURL = raw
		m.step = stepWppToken
		m.wppTokenInput.Focus()
		return m, textinput.Blink

	case stepWppToken:
		m.result.WppconnectToken = strings.TrimSpace(m.wppTokenInput.Value())
		m.result.WebhookSecret = uuid.NewString()
		return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)
	}
	return m, nil
}

func (m initModel) handleValidationSuccess(msg validationSuccessMsg) (tea.Model, tea.Cmd) {
	switch msg.step {
	case stepValidateKey:
		m.step = stepTinyToken
		m.tinyInput.Focus()
		return m, textinput.Blink
	case stepValidateTiny:
		if m.skipChannel {
			m.result.WppconnectURL = ""
			m.result.WppconnectToken = ""
			return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)
		}
		m.step = stepWppURL
		m.wppURLInput.Focus()
		return m, textinput.Blink
	}
	return m, nil
}

func (m initModel) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.step {
	case stepAPIKey:
		m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
	case stepTinyToken:
		m.tinyInput, cmd = m.tinyInput.Update(msg)
	case stepWppURL:
		m.wppURLInput, cmd = m.wppURLInput.Update(msg)
	case stepWppToken:
		m.wppTokenInput, cmd = m.wppTokenInput.Update(msg)
	}
	return m, cmd
}

func (m initModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("  balcao setup  ") + "\n\n")

	textStep := func(title string, in textinput.Model, hint string) {
		b.WriteString(promptStyle.Render(title) + "\n\n")
		b.WriteString(in.View() + "\n")
		if m.validationErr != "" {
			b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render(hint))
	}

	switch m.step {
	case stepProvider:
		b.WriteString(promptStyle.Render("Step 1/3: LLM provider for understanding messages") + "\n\n")
		for i, p := range provider.Names {
			label := fmt.Sprintf("%s (%s)", p, provider.DefaultModels[p])
			if i == m.providerIdx {
				b.WriteString(selectedStyle.Render("  > "+label) + "\n")
			} else {
				b.WriteString(dimStyle.Render("    "+label) + "\n")
			}
		}
		b.WriteString("\n" + dimStyle.Render("↑/↓ to navigate  enter to select  q to quit"))

	case stepAPIKey:
		textStep("Step 1/3: "+string(m.result.Provider)+" API key", m.apiKeyInput, "enter to continue  ctrl+c to quit")

	case stepValidateKey:
		b.WriteString(m.spinner.View() + " Validating " + string(m.result.Provider) + " API key…\n")

	case stepTinyToken:
		textStep("Step 2/3: Tiny ERP API token", m.tinyInput, "enter to continue  ctrl+c to quit")

	case stepValidateTiny:
		b.WriteString(m.spinner.View() + " Checking the Tiny token…\n")

	case stepWppURL:
		textStep("Step 3/3: wppconnect-server URL", m.wppURLInput, "enter to continue  ctrl+c to quit")

	case stepWppToken:
		textStep("Step 3/3: wppconnect token for session "+wppconnect.DefaultSession, m.wppTokenInput, "enter to finish  ctrl+c to quit")

	case stepDone:
		b.WriteString(successStyle.Render("  Setup complete!  ") + "\n\n")
		if m.configPath != "" {
			b.WriteString(dimStyle.Render("Config written to: "+m.configPath) + "\n\n")
		}
		if m.result.WebhookSecret != "" {
			b.WriteString("Point the wppconnect webhook at:\n")
			b.WriteString(promptStyle.Render(webhookURL(defaultAddress, m.result.WebhookSecret)) + "\n\n")
		}
		b.WriteString("Run " + promptStyle.Render("balcao start") + " and " + promptStyle.Render("balcao chat") + " to try it.\n")
		b.WriteString("Run " + promptStyle.Render("balcao doctor") + " to verify setup.\n")

	case stepError:
		b.WriteString(errorStyle.Render("Setup failed: "+m.errFinal.Error()) + "\n")
	}

	return boxStyle.Render(b.String())
}

// --- tea.Cmd factories ---

func validateProviderKeyCmd(p provider.Name, key string) tea.Cmd {
	return func() tea.Msg {
		if err := provider.ValidateKey(context.Background(), initHTTPClient, p, key); err != nil {
			return validationErrorMsg{step: stepValidateKey, err: err}
		}
		return validationSuccessMsg{step: stepValidateKey}
	}
}

func validateTinyTokenCmd(token string) tea.Cmd {
	return func() tea.Msg {
		client := tiny.New(tiny.Config{Token: token, BaseURL: initTinyBaseURL}).WithHTTPClient(initHTTPClient)
		if err := client.Ping(context.Background()); err != nil {
			return validationErrorMsg{step: stepValidateTiny, err: err}
		}
		return validationSuccessMsg{step: stepValidateTiny}
	}
}

func writeConfigCmd(result initResult, store secrets.Store, forceOverwrite bool) tea.Cmd {
	return func() tea.Msg {
		path, err := storeSecretsAndWriteConfig(result, store, forceOverwrite)
		if err != nil {
			return err
		}
		return configWrittenMsg{path: path}
	}
}

// --- Config generation ---

type generatedConfig struct {
	Networking struct {
		Listen string `yaml:"listen"`
	} `yaml:"networking"`
	Providers map[string]generatedProvider `yaml:"providers"`
	Models    struct {
		Default string `yaml:"default"`
	} `yaml:"models"`
	Catalog struct {
		Backend string `yaml:"backend"`
		Tiny    struct {
			Token string `yaml:"token"`
		} `yaml:"tiny"`
	} `yaml:"catalog"`
	Channels struct {
		Wppconnect generatedWppconnect `yaml:"wppconnect"`
	} `yaml:"channels"`
	Storage struct {
		Backend   string `yaml:"backend"`
		SearchLog bool   `yaml:"search_log"`
	} `yaml:"storage"`
}

type generatedProvider struct {
	APIKey string `yaml:"api_key"`
}

type generatedWppconnect struct {
	Enabled       bool   `yaml:"enabled"`
	BaseURL       string `yaml:"base_url,omitempty"`
	Session       string `yaml:"session,omitempty"`
	Token         string `yaml:"token,omitempty"`
	WebhookSecret string `yaml:"webhook_secret,omitempty"`
}

const generatedHeader = `# balcao configuration, generated by balcao init.
# Secrets live in the OS keyring; see ` + "`balcao secret list`" + `.
# Every other setting keeps its default; see the commented reference config
# for the full list.

`

// GenerateConfigYAML renders the config for result. Secrets are written as
// keyring:// references; storeSecretsAndWriteConfig stores the values.
func GenerateConfigYAML(result initResult) ([]byte, error) {
	var gc generatedConfig
	gc.Networking.Listen = defaultAddress
	gc.Providers = map[string]generatedProvider{
		string(result.Provider): {APIKey: secrets.URI(secrets.Service, secrets.ProviderKey(string(result.Provider)))},
	}
	gc.Models.Default = defaultModelForProvider(result.Provider)
	gc.Catalog.Backend = "tiny"
	gc.Catalog.Tiny.Token = secrets.URI(secrets.Service, secrets.KeyTinyToken)
	gc.Storage.Backend = "sqlite"
	gc.Storage.SearchLog = true

	if result.WppconnectURL != "" {
		gc.Channels.Wppconnect = generatedWppconnect{
			Enabled: true,
			BaseURL: result.WppconnectURL,
			Session: wppconnect.DefaultSession,
		}
		if result.WebhookSecret != "" {
			gc.Channels.Wppconnect.WebhookSecret = secrets.URI(secrets.Service, secrets.KeyWebhookSecret)
		}
		if result.WppconnectToken != "" {
			gc.Channels.Wppconnect.Token = secrets.URI(secrets.Service, secrets.KeyWppconnectToken)
		}
	}

	body, err := yaml.Marshal(&gc)
	if err != nil {
		return nil, balcaoerr.Errorf(balcaoerr.CodeCLISetupFailure, "rendering config: %v", err)
	}
	return append([]byte(generatedHeader), body...), nil
}

// webhookURL is the address wppconnect-server must post events to.
func webhookURL(addr, secret string) string {
	return "http://" + addr + "/api/v1/webhooks/wppconnect?secret=" + url.QueryEscape(secret)
}

// defaultModelForProvider returns the "provider/model" reference for p.
func defaultModelForProvider(p provider.Name) string {
	if model, ok := provider.DefaultModels[p]; ok {
		return string(p) + "/" + model
	}
	return string(p) + "/default"
}

// storeSecretsAndWriteConfig saves the secrets to store and writes the
// config file. An existing config is only replaced with forceOverwrite or
// when it is still the untouched bootstrap default. Secrets stored before a
// failed write are not rolled back; a re-run overwrites them.
func storeSecretsAndWriteConfig(result initResult, store secrets.Store, forceOverwrite bool) (string, error) {
	put := func(key, value, what string) error {
		if err := store.Store(secrets.Service, key, value); err != nil {
			return balcaoerr.Errorf(balcaoerr.CodeSecretStoreFailure, "storing %s: %v", what, err)
		}
		return nil
	}

	if err := put(secrets.ProviderKey(string(result.Provider)), result.APIKey, string(result.Provider)+" API key"); err != nil {
		return "", err
	}
	if err := put(secrets.KeyTinyToken, result.TinyToken, "Tiny token"); err != nil {
		return "", err
	}
	if result.WppconnectURL != "" {
		if result.WppconnectToken != "" {
			if err := put(secrets.KeyWppconnectToken, result.WppconnectToken, "wppconnect token"); err != nil {
				return "", err
			}
		}
		if result.WebhookSecret != "" {
			if err := put(secrets.KeyWebhookSecret, result.WebhookSecret, "webhook secret"); err != nil {
				return "", err
			}
		}
	}

	cfgPath, err := configPathForWrite()
	if err != nil {
		return "", err
	}

	existing, err := os.ReadFile(cfgPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return "", balcaoerr.Errorf(balcaoerr.CodeConfigLoadReadFailure, "reading %s: %v", cfgPath, err)
	case !forceOverwrite && !bytes.Equal(existing, config.DefaultConfigYAML):
		return "", balcaoerr.Errorf(balcaoerr.CodeConfigAlreadyExists,
			"config file already exists at %s; use --force to overwrite", cfgPath)
	}

	body, err := GenerateConfigYAML(result)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", balcaoerr.Errorf(balcaoerr.CodeCLISetupFailure, "creating config directory %s: %v", dir, err)
	}
	if err := os.WriteFile(cfgPath, body, 0o600); err != nil {
		return "", balcaoerr.Errorf(balcaoerr.CodeCLISetupFailure, "writing config to %s: %v", cfgPath, err)
	}
	return cfgPath, nil
}

// configPathForWrite returns where init writes the config. Tests override it.
var configPathForWrite = config.DefaultConfigPath

// --- Cobra command ---

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive setup wizard",
		Long: `Run an interactive wizard that walks you through:
  1. Choosing the LLM provider that interprets customer messages
  2. Entering the Tiny ERP API token
  3. Pointing balcao at wppconnect-server

Keys and tokens are stored in the OS keyring and referenced via keyring://
URIs in the config file. No secret is written in plain text.`,
		RunE: runInit,
	}

	cmd.Flags().Bool("skip-channel", false, "skip the wppconnect step (HTTP chat only)")
	cmd.Flags().Bool("force", false, "overwrite an existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isTerminal(f) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(),
			"balcao init requires an interactive terminal.\n"+
				"To configure balcao non-interactively, edit ~/.config/balcao/balcao.yaml directly.")
		return balcaoerr.New(balcaoerr.CodeCLISetupFailure, "balcao init: not an interactive terminal")
	}

	skipChannel, _ := cmd.Flags().GetBool("skip-channel")
	forceOverwrite, _ := cmd.Flags().GetBool("force")

	m := newInitModel(secretStoreFactory())
	m.skipChannel = skipChannel
	m.forceOverwrite = forceOverwrite

	finalModel, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return balcaoerr.Errorf(balcaoerr.CodeCLISetupFailure, "init wizard error: %v", err)
	}

	fm, ok := finalModel.(initModel)
	if !ok {
		return balcaoerr.New(balcaoerr.CodeCLISetupFailure, "unexpected model type after wizard")
	}
	if fm.errFinal != nil {
		return balcaoerr.Errorf(balcaoerr.CodeCLISetupFailure, "init failed: %v", fm.errFinal)
	}
	if fm.step != stepDone {
		return nil
	}

	// The alternate screen is gone by now; repeat what the user must act on.
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Config written to %s\n", fm.configPath)
	if fm.result.WebhookSecret != "" {
		_, _ = fmt.Fprintf(out, "Point the wppconnect webhook at %s\n", webhookURL(defaultAddress, fm.result.WebhookSecret))
	}
	return nil
}

// isTerminal reports whether f is a terminal.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
