// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package wppconnect

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sigil-dev/balcao/internal/channel"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
)

// EventMessage is the webhook event carrying an incoming chat message.
const EventMessage = "onmessage"

const statusBroadcast = "status@broadcast"

// Event is the subset of a wppconnect-server webhook payload that the
// assistant reads.
type Event struct {
	Event      string `json:"event" doc:"Webhook event name; only onmessage is handled"`
	Session    string `json:"session,omitempty"`
	ID         string `json:"id,omitempty"`
	From       string `json:"from,omitempty" doc:"Sender JID, e.g. 5511999990000@c.us"`
	Body       string `json:"body,omitempty"`
	Type       string `json:"type,omitempty"`
	Timestamp  int64  `json:"t,omitempty" doc:"Unix seconds"`
	IsGroupMsg bool   `json:"isGroupMsg,omitempty"`
	FromMe     bool   `json:"fromMe,omitempty"`
	Broadcast  bool   `json:"broadcast,omitempty"`
}

// IsMessage reports whether the event carries an incoming message.
func (e Event) IsMessage() bool {
	return e.Event == EventMessage
}

// Inbound converts a message event into the channel-neutral form.
func (e Event) Inbound() channel.Inbound {
	in := channel.Inbound{
		Channel:        Name,
		ConversationID: e.From,
		Body:           e.Body,
		IsGroup:        e.IsGroupMsg || strings.HasSuffix(e.From, "@g.us"),
		IsStatus:       e.From == statusBroadcast,
		IsBroadcast:    e.Broadcast || strings.HasSuffix(e.From, "@newsletter") || strings.HasSuffix(e.From, "@broadcast"),
		FromMe:         e.FromMe,
	}
	if e.Type != "" && e.Type != "chat" {
		// Media and system messages carry no text to search for.
		in.Body = ""
	}
	if e.Timestamp > 0 {
		in.Timestamp = time.Unix(e.Timestamp, 0)
	}
	return in
}

// DecodeEvent parses a webhook body.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, balcaoerr.Wrapf(err, balcaoerr.CodeChannelPayloadInvalid, "decoding wppconnect webhook")
	}
	if e.Event == "" {
		return Event{}, balcaoerr.New(balcaoerr.CodeChannelPayloadInvalid, "webhook without event name")
	}
	if e.IsMessage() && e.From == "" {
		return Event{}, balcaoerr.New(balcaoerr.CodeChannelPayloadInvalid, "message event without sender")
	}
	return e, nil
}
