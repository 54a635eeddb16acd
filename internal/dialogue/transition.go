// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package dialogue

import (
	"slices"
	"strings"

	"github.com/sigil-dev/balcao/internal/catalog"
	"github.com/sigil-dev/balcao/internal/format"
	"github.com/sigil-dev/balcao/internal/intent"
	"github.com/sigil-dev/balcao/internal/session"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
)

// DefaultThreshold is the largest result set rendered directly after a
// search; larger sets ask the customer to narrow the term.
const DefaultThreshold = 1

// Event is an input to Rules.Transition.
type Event interface {
	event()
}

type (
	// Received is an inbound message already classified into a Command.
	Received struct {
		Text    string
		Command Command
	}
	// Classified carries the classifier's answer for a message.
	Classified struct{ Intent intent.Intent }
	// ClassifyFailed reports a classifier call or decode failure.
	ClassifyFailed struct{ Err error }
	// Searched carries the outcome of a catalog search.
	Searched struct {
		Term     string
		Products []catalog.Product
		Err      error
	}
)

func (Received) event()       {}
func (Classified) event()     {}
func (ClassifyFailed) event() {}
func (Searched) event()       {}

// Effect is work the controller performs before a turn can finish. Its
// result is fed back as another Event.
type Effect interface {
	effect()
}

type (
	// RunSearch asks for a catalog search; the result comes back as Searched.
	RunSearch struct{ Term string }
	// AskClassifier asks for intent classification; the result comes back as
	// Classified or ClassifyFailed.
	AskClassifier struct{ Text string }
)

func (RunSearch) effect()     {}
func (AskClassifier) effect() {}

// Outcome is either a reply for the customer or an Effect to perform.
type Outcome struct {
	Reply  string
	Effect Effect
}

func reply(text string) Outcome { return Outcome{Reply: text} }

// Rules holds the parameters of the state machine. Its methods never
// perform I/O and never modify the session they are given.
type Rules struct {
	Format    format.Formatter
	Threshold int
}

func (r Rules) threshold() int {
	if r.Threshold <= 0 {
		return DefaultThreshold
	}
	return r.Threshold
}

// Transition applies ev to s and returns the next session.
func (r Rules) Transition(s session.Session, ev Event) (session.Session, Outcome) {
	s = s.Clone()
	switch ev := ev.(type) {
	case Received:
		return r.receive(s, ev)
	case Classified:
		return r.classified(s, ev.Intent)
	case ClassifyFailed:
		return s, reply(classifyFailureMessage(ev.Err))
	case Searched:
		return r.ApplySearch(s, ev.Term, ev.Products, ev.Err)
	default:
		return s, reply(format.MsgFallback)
	}
}

func (r Rules) receive(s session.Session, ev Received) (session.Session, Outcome) {
	switch cmd := ev.Command.(type) {
	case Cancel:
		return session.New(), reply(format.MsgReset)

	case Back:
		if len(s.History) == 0 {
			return s, reply(format.MsgNoHistory)
		}
		last := len(s.History) - 1
		s.Results = s.History[last]
		s.History = s.History[:last]
		return s, reply(r.Format.Back(s.Results, len(s.History) > 0))

	case ShowAll:
		if !hasResults(s) {
			return s, reply(format.MsgNothingToShow)
		}
		return s, reply(r.Format.Full(s.Results, len(s.History) > 0))

	case ShowFirst:
		if hasResults(s) {
			return s, reply(r.Format.First(cmd.N, s.Results, len(s.History) > 0))
		}
	}

	if s.State == session.StateAwaitingConfirmation {
		return confirm(s, ev.Command)
	}

	if g, ok := ev.Command.(Greeting); ok && s.State == session.StateInitial {
		return s, reply(format.Greeting(g.Word))
	}

	if hasResults(s) {
		return r.refine(s, Normalize(ev.Text))
	}

	return s, Outcome{Effect: AskClassifier{Text: strings.TrimSpace(ev.Text)}}
}

func hasResults(s session.Session) bool {
	return s.State == session.StateSearchMode && len(s.Results) > 0
}

func confirm(s session.Session, cmd Command) (session.Session, Outcome) {
	if _, ok := cmd.(Affirm); !ok || s.Pending == nil {
		return session.New(), reply(format.MsgSearchCancelled)
	}
	term := s.Pending.Term
	return session.Session{State: session.StateSearchMode}, Outcome{Effect: RunSearch{Term: term}}
}

// refine narrows the current results by phrase. A phrase that matches
// nothing leaves the session untouched.
func (r Rules) refine(s session.Session, phrase string) (session.Session, Outcome) {
	refined := catalog.Score(s.Results, phrase)
	if len(refined) == 0 {
		return s, reply(format.NoMatch(phrase))
	}
	s.History = append(s.History, s.Results)
	s.Results = refined
	return s, reply(r.Format.Refined(phrase, refined, true))
}

func (r Rules) classified(s session.Session, in intent.Intent) (session.Session, Outcome) {
	switch in := in.(type) {
	case intent.ConfirmSearch:
		return session.Session{
			State:   session.StateAwaitingConfirmation,
			Pending: &session.PendingSearch{Term: in.Term},
		}, reply(format.Confirm(in.Term))
	case intent.Search, intent.NewSearch:
		return session.Session{State: session.StateSearchMode}, Outcome{Effect: RunSearch{Term: intent.Term(in)}}
	case intent.Unknown:
		return s, reply(format.MsgHelp)
	default:
		return s, reply(format.MsgUnsupportedAction)
	}
}

func classifyFailureMessage(err error) string {
	switch {
	case balcaoerr.HasCode(err, balcaoerr.CodeIntentActionInvalid):
		return format.MsgUnsupportedAction
	case balcaoerr.HasCode(err, balcaoerr.CodeIntentDecodeInvalidFormat):
		return format.MsgDecodeFailure
	default:
		return format.MsgClassifierFailure
	}
}

// ApplySearch folds a search outcome into s. Failures clear results and
// history and reply with the catalog's message; more results than the
// threshold are kept for refinement; smaller sets are rendered directly.
func (r Rules) ApplySearch(s session.Session, term string, products []catalog.Product, err error) (session.Session, Outcome) {
	s.State = session.StateSearchMode
	s.Pending = nil
	s.History = nil

	if err == nil && len(products) == 0 {
		err = balcaoerr.New(balcaoerr.CodeCatalogSearchNotFound, "no products found", balcaoerr.FieldTerm(term))
	}
	if err != nil {
		s.Results = nil
		return s, reply(catalog.UserMessage(err))
	}

	s.Results = slices.Clone(products)
	if len(products) > r.threshold() {
		return s, reply(format.Narrow(len(products), term))
	}
	return s, reply(r.Format.Direct(term, products))
}
