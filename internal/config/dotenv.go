// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is read from the working directory when no file is named.
const DefaultEnvFile = ".env"

// LoadDotEnv copies variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are skipped. It returns the files that were read.
func LoadDotEnv(files ...string) []string {
	if len(files) == 0 {
		files = []string{DefaultEnvFile}
	}
	var loaded []string
	for _, file := range files {
		err := godotenv.Load(file)
		switch {
		case err == nil:
			loaded = append(loaded, file)
		case errors.Is(err, fs.ErrNotExist):
		default:
			slog.Warn("ignoring unreadable env file", "path", file, "error", err)
		}
	}
	return loaded
}
