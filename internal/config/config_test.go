// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sigil-dev/balcao/internal/config"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "balcao.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Setenv("PORT", "")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:3000", cfg.Networking.Listen)
	assert.Equal(t, "google/gemini-2.0-flash", cfg.Models.Default)
	assert.Equal(t, "tiny", cfg.Catalog.Backend)
	assert.Equal(t, 15*time.Second, cfg.Catalog.Timeout)
	assert.Equal(t, 4, cfg.Catalog.Stock.Concurrency)
	assert.Equal(t, 2*time.Minute, cfg.Catalog.Stock.CacheTTL)
	assert.Equal(t, 1, cfg.Dialogue.Threshold)
	assert.Equal(t, 1, cfg.Dialogue.PageSize)
	assert.Equal(t, 5*time.Minute, cfg.Dialogue.FreshnessWindow)
	assert.Equal(t, "http://localhost:21465", cfg.Channels.Wppconnect.BaseURL)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.True(t, cfg.Storage.SearchLog)
}

func TestLoad_EmbeddedDefaultIsValid(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, string(config.DefaultConfigYAML)))
	require.NoError(t, err)
	assert.Equal(t, "balcao", cfg.Channels.Wppconnect.Session)
	assert.True(t, cfg.Catalog.Stock.Enabled)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
networking:
  listen: "0.0.0.0:8080"
providers:
  openai:
    api_key: "sk-test"
models:
  default: "openai/gpt-4o-mini"
dialogue:
  threshold: 5
  page_size: 3
  vocabulary:
    cancel: ["parar"]
catalog:
  tiny:
    token: "abc"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Networking.Listen)
	assert.Equal(t, "sk-test", cfg.Providers["openai"].APIKey)
	assert.Equal(t, 5, cfg.Dialogue.Threshold)
	assert.Equal(t, 3, cfg.Dialogue.PageSize)
	assert.Equal(t, []string{"parar"}, cfg.Dialogue.Vocabulary.Cancel)
	assert.Equal(t, "abc", cfg.Catalog.Tiny.Token)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, balcaoerr.HasCode(err, balcaoerr.CodeConfigLoadReadFailure))
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("BALCAO_NETWORKING_LISTEN", "10.0.0.1:8080")
	t.Setenv("BALCAO_DIALOGUE_THRESHOLD", "3")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:8080", cfg.Networking.Listen)
	assert.Equal(t, 3, cfg.Dialogue.Threshold)
}

func TestLoad_LegacyEnv(t *testing.T) {
	t.Setenv("TINY_API_TOKEN", "legacy-tiny")
	t.Setenv("GEMINI_API_KEY", "legacy-gemini")
	t.Setenv("PORT", "4000")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "legacy-tiny", cfg.Catalog.Tiny.Token)
	assert.Equal(t, "legacy-gemini", cfg.Providers["google"].APIKey)
	assert.Equal(t, ":4000", cfg.Networking.Listen)
}

func TestLoad_PrefixedEnvBeatsLegacy(t *testing.T) {
	t.Setenv("TINY_API_TOKEN", "legacy")
	t.Setenv("BALCAO_CATALOG_TINY_TOKEN", "current")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "current", cfg.Catalog.Tiny.Token)
}

func TestLoad_FileListenBeatsPort(t *testing.T) {
	t.Setenv("PORT", "4000")

	cfg, err := config.Load(writeConfig(t, "networking:\n  listen: \"127.0.0.1:5000\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:5000", cfg.Networking.Listen)
}

func TestLoad_ValidationAtLoadTime(t *testing.T) {
	_, err := config.Load(writeConfig(t, "dialogue:\n  threshold: 0\n"))
	require.Error(t, err)
	assert.True(t, balcaoerr.HasCode(err, balcaoerr.CodeConfigValidateInvalidValue))
	assert.Contains(t, err.Error(), "dialogue.threshold")
}

func TestFromViper(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("dialogue.page_size", 2)

	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Dialogue.PageSize)
}

// validConfig returns a config that passes every check.
func validConfig(t *testing.T) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantMsg string
	}{
		{name: "empty listen", mutate: func(c *config.Config) { c.Networking.Listen = "" }, wantMsg: "networking.listen"},
		{name: "listen without port", mutate: func(c *config.Config) { c.Networking.Listen = "localhost" }, wantMsg: "networking.listen"},
		{name: "listen port out of range", mutate: func(c *config.Config) { c.Networking.Listen = ":70000" }, wantMsg: "between 1 and 65535"},
		{name: "rate without burst", mutate: func(c *config.Config) {
			c.Networking.RateLimitRPS = 1
			c.Networking.RateLimitBurst = 0
		}, wantMsg: "rate_limit_burst"},
		{name: "model without provider", mutate: func(c *config.Config) { c.Models.Default = "gemini" }, wantMsg: "provider/model"},
		{name: "model with unconfigured provider", mutate: func(c *config.Config) {
			c.Providers = map[string]config.ProviderConfig{"openai": {APIKey: "k"}}
		}, wantMsg: "not configured"},
		{name: "bad failover", mutate: func(c *config.Config) { c.Models.Failover = []string{"x"} }, wantMsg: "models.failover[0]"},
		{name: "unknown catalog", mutate: func(c *config.Config) { c.Catalog.Backend = "bling" }, wantMsg: "catalog.backend"},
		{name: "tiny url", mutate: func(c *config.Config) { c.Catalog.Tiny.BaseURL = "ftp://tiny" }, wantMsg: "catalog.tiny.base_url"},
		{name: "stock concurrency", mutate: func(c *config.Config) { c.Catalog.Stock.Concurrency = 0 }, wantMsg: "catalog.stock.concurrency"},
		{name: "page size", mutate: func(c *config.Config) { c.Dialogue.PageSize = 0 }, wantMsg: "dialogue.page_size"},
		{name: "freshness", mutate: func(c *config.Config) { c.Dialogue.FreshnessWindow = 0 }, wantMsg: "dialogue.freshness_window"},
		{name: "empty vocabulary word", mutate: func(c *config.Config) { c.Dialogue.Vocabulary.Back = []string{"voltar", " "} }, wantMsg: "dialogue.vocabulary.back"},
		{name: "wppconnect url", mutate: func(c *config.Config) { c.Channels.Wppconnect.BaseURL = "localhost:21465" }, wantMsg: "channels.wppconnect.base_url"},
		{name: "storage", mutate: func(c *config.Config) { c.Storage.Backend = "postgres" }, wantMsg: "storage.backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			errs := cfg.Validate()
			require.Len(t, errs, 1, "%v", errs)
			assert.Contains(t, errs[0].Error(), tt.wantMsg)
			assert.True(t, balcaoerr.HasCode(errs[0], balcaoerr.CodeConfigValidateInvalidValue))
		})
	}
}

func TestValidate_DisabledWppconnectSkipsChecks(t *testing.T) {
	cfg := validConfig(t)
	cfg.Channels.Wppconnect.Enabled = false
	cfg.Channels.Wppconnect.BaseURL = ""
	assert.Empty(t, cfg.Validate())
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &config.Config{}
	errs := cfg.Validate()

	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	joined := strings.Join(msgs, "\n")
	for _, field := range []string{"networking.listen", "models.default", "catalog.backend", "dialogue.threshold", "storage.backend"} {
		assert.Contains(t, joined, field)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("BALCAO_TEST_FROM_FILE=arquivo\nBALCAO_TEST_PRESET=arquivo\n"), 0o600))
	t.Setenv("BALCAO_TEST_PRESET", "ambiente")
	t.Cleanup(func() { _ = os.Unsetenv("BALCAO_TEST_FROM_FILE") })

	loaded := config.LoadDotEnv(envFile, filepath.Join(dir, "missing.env"))

	assert.Equal(t, []string{envFile}, loaded)
	assert.Equal(t, "arquivo", os.Getenv("BALCAO_TEST_FROM_FILE"))
	assert.Equal(t, "ambiente", os.Getenv("BALCAO_TEST_PRESET"), "existing variables are not overridden")
}
