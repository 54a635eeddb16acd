// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package intent turns free text into one of a closed set of search
// intents using an LLM.
package intent

import (
	"context"
)

// Intent is the decoded classifier answer. The concrete types are
// ConfirmSearch, Search, NewSearch and Unknown.
type Intent interface {
	intent()
}

// ConfirmSearch proposes a broad search that the user must confirm.
type ConfirmSearch struct {
	Term string
}

// Search runs a specific search immediately.
type Search struct {
	Term string
}

// NewSearch abandons the current topic and searches for Term.
type NewSearch struct {
	Term string
}

// Unknown means the message is not a product request.
type Unknown struct{}

func (ConfirmSearch) intent() {}
func (Search) intent()        {}
func (NewSearch) intent()     {}
func (Unknown) intent()       {}

// Classifier classifies one user message.
//
// A failed model call keeps the provider error in its chain, so CodeOf
// reports the provider's code (CodeIntentClassifyFailure when there is
// none). CodeIntentDecodeInvalidFormat means the answer is not a usable JSON
// object and CodeIntentActionInvalid that the action is unrecognised.
type Classifier interface {
	Classify(ctx context.Context, text string) (Intent, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, text string) (Intent, error)

func (f ClassifierFunc) Classify(ctx context.Context, text string) (Intent, error) {
	return f(ctx, text)
}

// Term returns the search term carried by i, if any.
func Term(i Intent) string {
	switch v := i.(type) {
	case ConfirmSearch:
		return v.Term
	case Search:
		return v.Term
	case NewSearch:
		return v.Term
	}
	return ""
}
