// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package intent

import (
	"encoding/json"
	"io"
	"regexp"
	"strings"

	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
)

// Action names accepted from the classifier. The Portuguese names are the
// ones the prompt asks for; the English ones are accepted as aliases.
const (
	ActionConfirmSearch = "confirma_busca"
	ActionSearch        = "buscar_produto"
	ActionNewSearch     = "nova_busca"
	ActionUnknown       = "desconhecida"
)

var actionAliases = map[string]string{
	ActionConfirmSearch: ActionConfirmSearch,
	"confirm_search":    ActionConfirmSearch,
	ActionSearch:        ActionSearch,
	"search":            ActionSearch,
	ActionNewSearch:     ActionNewSearch,
	"new_search":        ActionNewSearch,
	ActionUnknown:       ActionUnknown,
	"unknown":           ActionUnknown,
}

var jsonFence = regexp.MustCompile("```json\\s*([\\s\\S]*?)\\s*```")

// Unwrap strips a markdown code fence from raw. A ```json block wins;
// otherwise every ``` marker is removed.
func Unwrap(raw string) string {
	if m := jsonFence.FindStringSubmatch(raw); m != nil && strings.TrimSpace(m[1]) != "" {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(strings.ReplaceAll(raw, "```", ""))
}

type payload struct {
	Action *string `json:"action"`
	Acao   *string `json:"acao"`
	Term   *string `json:"term"`
	Termo  *string `json:"termo"`
}

func (p payload) action() (string, bool) {
	switch {
	case p.Action != nil:
		return *p.Action, true
	case p.Acao != nil:
		return *p.Acao, true
	}
	return "", false
}

func (p payload) term() string {
	switch {
	case p.Term != nil:
		return strings.TrimSpace(*p.Term)
	case p.Termo != nil:
		return strings.TrimSpace(*p.Termo)
	}
	return ""
}

// Decode parses one classifier answer. The input must hold exactly one JSON
// object, optionally inside a code fence, with a string action and, for
// search actions, a non-empty string term.
func Decode(raw string) (Intent, error) {
	text := Unwrap(raw)
	if text == "" {
		return nil, balcaoerr.New(balcaoerr.CodeIntentDecodeInvalidFormat, "classifier returned an empty answer")
	}

	if !strings.HasPrefix(text, "{") {
		return nil, balcaoerr.New(balcaoerr.CodeIntentDecodeInvalidFormat, "classifier answer is not a JSON object")
	}

	dec := json.NewDecoder(strings.NewReader(text))
	var p payload
	if err := dec.Decode(&p); err != nil {
		return nil, balcaoerr.Errorf(balcaoerr.CodeIntentDecodeInvalidFormat, "decoding classifier answer: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, balcaoerr.New(balcaoerr.CodeIntentDecodeInvalidFormat, "classifier answer has trailing data")
	}

	rawAction, ok := p.action()
	if !ok {
		return nil, balcaoerr.New(balcaoerr.CodeIntentDecodeInvalidFormat, "classifier answer has no action")
	}
	action, ok := actionAliases[strings.ToLower(strings.TrimSpace(rawAction))]
	if !ok {
		return nil, balcaoerr.New(balcaoerr.CodeIntentActionInvalid, "unrecognised action",
			balcaoerr.Field("action", rawAction))
	}

	if action == ActionUnknown {
		return Unknown{}, nil
	}

	term := p.term()
	if term == "" {
		return nil, balcaoerr.New(balcaoerr.CodeIntentDecodeInvalidFormat, "search action without term",
			balcaoerr.Field("action", action))
	}

	switch action {
	case ActionConfirmSearch:
		return ConfirmSearch{Term: term}, nil
	case ActionSearch:
		return Search{Term: term}, nil
	default:
		return NewSearch{Term: term}, nil
	}
}
