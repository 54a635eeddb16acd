// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sigil-dev/balcao/internal/catalog"
	"github.com/sigil-dev/balcao/internal/store"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
)

// Compile-time interface check.
var _ store.SearchLog = (*SearchLog)(nil)

const defaultRecentLimit = 20

// SearchLog implements store.SearchLog backed by SQLite.
type SearchLog struct {
	db *sql.DB
}

// NewSearchLog opens (or creates) a SQLite database at dbPath and
// initialises the searches table.
func NewSearchLog(dbPath string) (*SearchLog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, balcaoerr.Wrapf(err, balcaoerr.CodeStoreDatabaseFailure, "opening sqlite db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, balcaoerr.Wrapf(err, balcaoerr.CodeStoreDatabaseFailure, "pinging sqlite db")
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, balcaoerr.Wrapf(err, balcaoerr.CodeStoreDatabaseFailure, "migrating sqlite db")
	}

	return &SearchLog{db: db}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS searches (
	rowid           INTEGER PRIMARY KEY AUTOINCREMENT,
	id              TEXT UNIQUE NOT NULL,
	conversation_id TEXT NOT NULL,
	term            TEXT NOT NULL,
	result_count    INTEGER NOT NULL DEFAULT 0,
	products        TEXT NOT NULL DEFAULT '[]',
	error           TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_searches_conversation ON searches(conversation_id, created_at);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *SearchLog) Close() error {
	return s.db.Close()
}

// Record stores rec, assigning an ID and timestamp when they are unset.
func (s *SearchLog) Record(ctx context.Context, rec *store.SearchRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	products := rec.Products
	if products == nil {
		products = []catalog.Product{}
	}
	payload, err := json.Marshal(products)
	if err != nil {
		return balcaoerr.Wrapf(err, balcaoerr.CodeStoreInvalidInput, "encoding products for search %s", rec.ID)
	}

	const q = `INSERT INTO searches (id, conversation_id, term, result_count, products, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, q,
		rec.ID,
		rec.ConversationID,
		rec.Term,
		rec.ResultCount,
		string(payload),
		rec.Error,
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		return balcaoerr.Wrapf(err, balcaoerr.CodeStoreDatabaseFailure, "recording search %s", rec.ID)
	}
	return nil
}

func (s *SearchLog) Recent(ctx context.Context, conversationID string, limit int) ([]*store.SearchRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	q := `SELECT id, conversation_id, term, result_count, products, error, created_at FROM searches`
	args := []any{}
	if conversationID != "" {
		q += ` WHERE conversation_id = ?`
		args = append(args, conversationID)
	}
	q += ` ORDER BY rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, balcaoerr.Wrapf(err, balcaoerr.CodeStoreDatabaseFailure, "listing searches")
	}
	defer rows.Close() //nolint:errcheck // error on read-path close is not actionable

	var out []*store.SearchRecord
	for rows.Next() {
		var (
			rec       store.SearchRecord
			payload   string
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.ConversationID, &rec.Term, &rec.ResultCount, &payload, &rec.Error, &createdAt); err != nil {
			return nil, balcaoerr.Wrapf(err, balcaoerr.CodeStoreDatabaseFailure, "scanning search row")
		}
		if err := json.Unmarshal([]byte(payload), &rec.Products); err != nil {
			return nil, balcaoerr.Wrapf(err, balcaoerr.CodeStoreDatabaseFailure, "decoding products of search %s", rec.ID)
		}
		rec.CreatedAt = parseTime(createdAt)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, balcaoerr.Wrapf(err, balcaoerr.CodeStoreDatabaseFailure, "iterating searches")
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

