// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package dialogue implements the per-conversation state machine that turns
// customer messages into catalog searches and refinements.
package dialogue

import (
	"context"
	"log/slog"
	"time"

	"github.com/sigil-dev/balcao/internal/catalog"
	"github.com/sigil-dev/balcao/internal/format"
	"github.com/sigil-dev/balcao/internal/intent"
	"github.com/sigil-dev/balcao/internal/session"
	"github.com/sigil-dev/balcao/internal/store"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
)

// maxEffects bounds the effect chain of a single turn. A turn needs at
// most a classification followed by a search.
const maxEffects = 4

// Reply is the result of handling one message.
type Reply struct {
	Text  string        `json:"reply"`
	State session.State `json:"state"`
}

// Config holds dependencies for the Controller.
type Config struct {
	Sessions   *session.Store
	Classifier intent.Classifier
	Searcher   catalog.Searcher
	// Stock enriches search results; nil leaves stock unknown.
	Stock            catalog.StockLookup
	StockConcurrency int
	// SearchLog records executed searches; nil disables recording.
	SearchLog  store.SearchLog
	Threshold  int
	PageSize   int
	Vocabulary Vocabulary
}

// Controller runs one dialogue turn at a time per conversation. Callers
// must serialise Handle calls for the same conversation (see session.LanePool).
type Controller struct {
	sessions   *session.Store
	classifier intent.Classifier
	searcher   catalog.Searcher
	stock      catalog.StockLookup
	stockLimit int
	searchLog  store.SearchLog
	rules      Rules
	vocab      Vocabulary
}

// NewController creates a Controller with the given dependencies.
func NewController(cfg Config) *Controller {
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = session.NewStore()
	}
	return &Controller{
		sessions:   sessions,
		classifier: cfg.Classifier,
		searcher:   cfg.Searcher,
		stock:      cfg.Stock,
		stockLimit: cfg.StockConcurrency,
		searchLog:  cfg.SearchLog,
		rules: Rules{
			Format:    format.New(cfg.PageSize),
			Threshold: cfg.Threshold,
		},
		vocab: cfg.Vocabulary.withDefaults(),
	}
}

// Sessions returns the store the controller reads and writes.
func (c *Controller) Sessions() *session.Store {
	return c.sessions
}

// Handle processes one message for conversationID and returns the reply.
// Every failure is turned into a customer-facing message.
func (c *Controller) Handle(ctx context.Context, conversationID, text string) Reply {
	current := c.sessions.Load(conversationID)

	next, out := c.rules.Transition(current, Received{
		Text:    text,
		Command: Classify(text, c.vocab),
	})
	for i := 0; out.Effect != nil; i++ {
		if i == maxEffects {
			slog.Error("dialogue effect chain did not settle",
				"conversation_id", conversationID,
			)
			return Reply{Text: format.MsgFallback, State: current.State}
		}
		next, out = c.rules.Transition(next, c.perform(ctx, conversationID, out.Effect))
	}

	if err := next.Validate(); err != nil {
		slog.Error("dialogue produced an invalid session",
			"conversation_id", conversationID,
			"error", err,
		)
		return Reply{Text: format.MsgFallback, State: current.State}
	}

	c.sessions.Save(conversationID, next)
	slog.Debug("dialogue turn handled",
		"conversation_id", conversationID,
		"from", current.State,
		"to", next.State,
		"results", len(next.Results),
	)
	return Reply{Text: out.Reply, State: next.State}
}

func (c *Controller) perform(ctx context.Context, conversationID string, eff Effect) Event {
	switch eff := eff.(type) {
	case AskClassifier:
		return c.classify(ctx, conversationID, eff.Text)
	case RunSearch:
		return c.search(ctx, conversationID, eff.Term)
	default:
		return ClassifyFailed{Err: balcaoerr.Errorf(balcaoerr.CodeDialogueStateInvalid, "unknown effect %T", eff)}
	}
}

func (c *Controller) classify(ctx context.Context, conversationID, text string) Event {
	if c.classifier == nil {
		return ClassifyFailed{Err: balcaoerr.New(balcaoerr.CodeIntentClassifyFailure, "no classifier configured")}
	}
	in, err := c.classifier.Classify(ctx, text)
	if err != nil {
		slog.Warn("intent classification failed",
			"conversation_id", conversationID,
			"error", err,
		)
		return ClassifyFailed{Err: err}
	}
	slog.Debug("intent classified",
		"conversation_id", conversationID,
		"intent", in,
	)
	return Classified{Intent: in}
}

func (c *Controller) search(ctx context.Context, conversationID, term string) Event {
	if c.searcher == nil {
		return Searched{Term: term, Err: balcaoerr.New(balcaoerr.CodeCatalogCredentialsMissing, "no catalog configured")}
	}

	products, err := c.searcher.Search(ctx, term)
	if err == nil && c.stock != nil {
		products, err = catalog.EnrichStock(ctx, products, c.stock, c.stockLimit)
	}
	if err != nil {
		slog.Warn("catalog search failed",
			"conversation_id", conversationID,
			"term", term,
			"error", err,
		)
		products = nil
	}

	c.record(ctx, conversationID, term, products, err)
	return Searched{Term: term, Products: products, Err: err}
}

// record appends to the search log. Failures are logged and never affect
// the reply.
func (c *Controller) record(ctx context.Context, conversationID, term string, products []catalog.Product, searchErr error) {
	if c.searchLog == nil {
		return
	}
	rec := &store.SearchRecord{
		ConversationID: conversationID,
		Term:           term,
		ResultCount:    len(products),
		Products:       products,
		CreatedAt:      time.Now(),
	}
	if searchErr != nil {
		rec.Error = string(balcaoerr.CodeOf(searchErr))
	}
	if err := c.searchLog.Record(ctx, rec); err != nil {
		slog.Warn("recording search failed",
			"conversation_id", conversationID,
			"term", term,
			"error", err,
		)
	}
}
