// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package wppconnect talks to a wppconnect-server instance, which owns the
// WhatsApp session and forwards incoming messages as webhooks.
package wppconnect

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sigil-dev/balcao/internal/channel"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
)

// Name is the channel name used for routing.
const Name = "wppconnect"

const (
	DefaultBaseURL = "http://localhost:21465"
	DefaultSession = "balcao"
	DefaultTimeout = 15 * time.Second
)

// Config configures a Client.
type Config struct {
	BaseURL string
	Session string
	// Token is the bearer token wppconnect-server issued for Session.
	Token   string
	Timeout time.Duration
}

// Client sends messages through wppconnect-server's REST API.
type Client struct {
	baseURL string
	session string
	token   string
	http    *http.Client
}

var _ channel.Channel = (*Client)(nil)

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Session == "" {
		cfg.Session = DefaultSession
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		session: cfg.Session,
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// WithHTTPClient replaces the HTTP client; tests use it with httptest servers.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

func (c *Client) Name() string { return Name }

type sendRequest struct {
	Phone   string `json:"phone"`
	IsGroup bool   `json:"isGroup"`
	Message string `json:"message"`
}

type apiResponse struct {
	Status  any    `json:"status"`
	Message string `json:"message"`
}

// Phone strips the WhatsApp JID suffix from a conversation id.
func Phone(conversationID string) string {
	phone, _, _ := strings.Cut(conversationID, "@")
	return phone
}

// Send delivers msg.Content to msg.ConversationID.
func (c *Client) Send(ctx context.Context, msg channel.OutboundMessage) error {
	phone := Phone(msg.ConversationID)
	if phone == "" {
		return balcaoerr.New(balcaoerr.CodeChannelPayloadInvalid, "empty recipient",
			balcaoerr.FieldChannel(Name))
	}

	body, err := json.Marshal(sendRequest{Phone: phone, Message: msg.Content})
	if err != nil {
		return balcaoerr.Wrapf(err, balcaoerr.CodeChannelPayloadInvalid, "encoding send request")
	}

	resp, err := c.do(ctx, http.MethodPost, "send-message", bytes.NewReader(body))
	if err != nil {
		return balcaoerr.Wrap(err, balcaoerr.CodeChannelSendFailure, "sending message",
			balcaoerr.FieldChannel(Name),
			balcaoerr.FieldConversationID(msg.ConversationID),
		)
	}
	if resp.statusCode >= 400 {
		return balcaoerr.New(balcaoerr.CodeChannelSendFailure, "wppconnect rejected message",
			balcaoerr.FieldChannel(Name),
			balcaoerr.FieldConversationID(msg.ConversationID),
			balcaoerr.Field("http_status", resp.statusCode),
			balcaoerr.Field("detail", resp.body.Message),
		)
	}
	return nil
}

// CheckConnection asks wppconnect-server whether the WhatsApp session is
// connected.
func (c *Client) CheckConnection(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "check-connection-session", nil)
	if err != nil {
		return balcaoerr.Wrap(err, balcaoerr.CodeChannelConnectionFailed, "checking wppconnect session",
			balcaoerr.FieldChannel(Name))
	}
	switch {
	case resp.statusCode == http.StatusUnauthorized || resp.statusCode == http.StatusForbidden:
		return balcaoerr.Errorf(balcaoerr.CodeChannelTokenInvalid, "wppconnect rejected token (HTTP %d)", resp.statusCode)
	case resp.statusCode >= 400:
		return balcaoerr.Errorf(balcaoerr.CodeChannelConnectionFailed, "wppconnect check failed (HTTP %d)", resp.statusCode)
	case !truthy(resp.body.Status):
		return balcaoerr.New(balcaoerr.CodeChannelConnectionFailed, "whatsapp session not connected",
			balcaoerr.Field("detail", resp.body.Message))
	}
	return nil
}

// truthy accepts the boolean and string forms wppconnect uses for status.
func truthy(v any) bool {
	switch s := v.(type) {
	case bool:
		return s
	case string:
		switch strings.ToLower(s) {
		case "true", "success", "connected", "inchat", "islogged":
			return true
		}
	}
	return false
}

type response struct {
	statusCode int
	body       apiResponse
}

func (c *Client) do(ctx context.Context, method, op string, body io.Reader) (*response, error) {
	endpoint := c.baseURL + "/api/" + url.PathEscape(c.session) + "/" + op
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	out := &response{statusCode: resp.StatusCode}
	// Error bodies are not always JSON; the status code is what matters.
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out.body)
	return out, nil
}
