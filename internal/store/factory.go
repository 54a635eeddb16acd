// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"sync"

	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
)

// SearchLogFactory opens a search log under dataPath.
type SearchLogFactory func(dataPath string) (SearchLog, error)

var (
	searchLogFactories = map[string]SearchLogFactory{}
	factoriesMu        sync.RWMutex
)

// RegisterBackend registers the factory for a named storage backend.
// Backend packages call this from init().
func RegisterBackend(name string, f SearchLogFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	searchLogFactories[name] = f
}

func resolveBackend(cfg *StorageConfig) string {
	if cfg == nil || cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// NewSearchLog opens the search log for the configured backend.
func NewSearchLog(cfg *StorageConfig, dataPath string) (SearchLog, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := searchLogFactories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, balcaoerr.Errorf(balcaoerr.CodeStoreInvalidInput, "unsupported storage backend: %q", backend)
	}

	return factory(dataPath)
}
