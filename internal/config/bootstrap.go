// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
)

//go:embed balcao.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/balcao/balcao.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", balcaoerr.Wrapf(err, balcaoerr.CodeConfigLoadReadFailure, "resolving home directory")
	}
	return filepath.Join(home, ".config", "balcao", "balcao.yaml"), nil
}

// BootstrapConfig writes the commented default config to the default path
// when nothing is there yet. It returns the path written, or "" when the file
// already existed or could not be written; failures are logged, not fatal.
func BootstrapConfig() string {
	path, err := DefaultConfigPath()
	if err != nil {
		slog.Debug("skipping config bootstrap", "error", err)
		return ""
	}
	return bootstrapAt(path)
}

func bootstrapAt(path string) string {
	if _, err := os.Stat(path); err == nil {
		return ""
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		slog.Debug("skipping config bootstrap: cannot create directory", "path", path, "error", err)
		return ""
	}
	// O_EXCL so a concurrent first run cannot clobber the file.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		slog.Debug("skipping config bootstrap: cannot create config", "path", path, "error", err)
		return ""
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Write(DefaultConfigYAML); err != nil {
		slog.Debug("skipping config bootstrap: cannot write config", "path", path, "error", err)
		return ""
	}

	slog.Info("created default config", "path", path)
	return path
}
