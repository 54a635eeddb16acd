// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"path/filepath"

	"github.com/sigil-dev/balcao/internal/store"
)

func init() {
	store.RegisterBackend("sqlite", newSearchLog)
}

func newSearchLog(dataPath string) (store.SearchLog, error) {
	return NewSearchLog(filepath.Join(dataPath, "searches.db"))
}
