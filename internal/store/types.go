// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"strings"
	"time"

	"github.com/sigil-dev/balcao/internal/catalog"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
)

// SearchRecord is one executed catalog search.
type SearchRecord struct {
	ID             string
	ConversationID string
	Term           string
	ResultCount    int
	// Products holds the stock-enriched result set; empty when Error is set.
	Products  []catalog.Product
	Error     string
	CreatedAt time.Time
}

// Validate checks the fields required to persist a record.
func (r *SearchRecord) Validate() error {
	switch {
	case r == nil:
		return balcaoerr.New(balcaoerr.CodeStoreInvalidInput, "nil search record")
	case strings.TrimSpace(r.ConversationID) == "":
		return balcaoerr.New(balcaoerr.CodeStoreInvalidInput, "conversation id is required")
	case strings.TrimSpace(r.Term) == "":
		return balcaoerr.New(balcaoerr.CodeStoreInvalidInput, "term is required",
			balcaoerr.FieldConversationID(r.ConversationID))
	case r.ResultCount < 0:
		return balcaoerr.Errorf(balcaoerr.CodeStoreInvalidInput, "negative result count %d", r.ResultCount)
	}
	return nil
}
