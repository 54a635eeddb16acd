// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import "context"

// SearchLog keeps a record of every catalog search the assistant executed.
type SearchLog interface {
	Record(ctx context.Context, rec *SearchRecord) error
	// Recent returns the newest records first. An empty conversationID
	// matches every conversation.
	Recent(ctx context.Context, conversationID string, limit int) ([]*SearchRecord, error)
	Close() error
}
