// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	"errors"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g. BALCAO_NETWORKING_LISTEN.
const EnvPrefix = "BALCAO"

// Config is the top-level balcao configuration.
type Config struct {
	Networking NetworkingConfig          `mapstructure:"networking"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Models     ModelsConfig              `mapstructure:"models"`
	Catalog    CatalogConfig             `mapstructure:"catalog"`
	Dialogue   DialogueConfig            `mapstructure:"dialogue"`
	Channels   ChannelsConfig            `mapstructure:"channels"`
	Storage    StorageConfig             `mapstructure:"storage"`
	DataDir    string                    `mapstructure:"data_dir"`
}

// NetworkingConfig controls the HTTP listener.
type NetworkingConfig struct {
	Listen         string   `mapstructure:"listen"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
}

// ProviderConfig holds credentials and endpoint for an LLM provider.
type ProviderConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// ModelsConfig selects the classifier model and its failover chain.
type ModelsConfig struct {
	Default  string   `mapstructure:"default"`
	Failover []string `mapstructure:"failover"`
}

// CatalogConfig selects the product catalog backend.
type CatalogConfig struct {
	Backend string        `mapstructure:"backend"`
	Timeout time.Duration `mapstructure:"timeout"`
	Tiny    TinyConfig    `mapstructure:"tiny"`
	Stock   StockConfig   `mapstructure:"stock"`
}

// TinyConfig holds Tiny ERP API settings.
type TinyConfig struct {
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`
}

// StockConfig controls per-product stock lookups after a search.
type StockConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Concurrency int           `mapstructure:"concurrency"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

// DialogueConfig tunes the conversation state machine.
type DialogueConfig struct {
	// Threshold is the largest result count rendered directly; above it
	// the customer is asked to narrow the search.
	Threshold       int              `mapstructure:"threshold"`
	PageSize        int              `mapstructure:"page_size"`
	FreshnessWindow time.Duration    `mapstructure:"freshness_window"`
	TurnTimeout     time.Duration    `mapstructure:"turn_timeout"`
	Vocabulary      VocabularyConfig `mapstructure:"vocabulary"`
}

// VocabularyConfig overrides the control words. Empty lists keep the
// built-in Portuguese and English defaults.
type VocabularyConfig struct {
	Cancel    []string `mapstructure:"cancel"`
	Back      []string `mapstructure:"back"`
	ShowAll   []string `mapstructure:"show_all"`
	Affirm    []string `mapstructure:"affirm"`
	Greetings []string `mapstructure:"greetings"`
}

// ChannelsConfig holds chat transport settings.
type ChannelsConfig struct {
	Wppconnect WppconnectConfig `mapstructure:"wppconnect"`
}

// WppconnectConfig points at a wppconnect-server instance.
type WppconnectConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	BaseURL       string `mapstructure:"base_url"`
	Session       string `mapstructure:"session"`
	Token         string `mapstructure:"token"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	SearchLog bool   `mapstructure:"search_log"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("networking.listen", "127.0.0.1:3000")
	v.SetDefault("networking.rate_limit_rps", 0)
	v.SetDefault("networking.rate_limit_burst", 20)
	v.SetDefault("models.default", "google/gemini-2.0-flash")
	v.SetDefault("catalog.backend", "tiny")
	v.SetDefault("catalog.timeout", "15s")
	v.SetDefault("catalog.tiny.base_url", "https://api.tiny.com.br/api2")
	v.SetDefault("catalog.stock.enabled", true)
	v.SetDefault("catalog.stock.concurrency", 4)
	v.SetDefault("catalog.stock.cache_ttl", "2m")
	v.SetDefault("dialogue.threshold", 1)
	v.SetDefault("dialogue.page_size", 1)
	v.SetDefault("dialogue.freshness_window", "5m")
	v.SetDefault("dialogue.turn_timeout", "2m")
	v.SetDefault("channels.wppconnect.enabled", true)
	v.SetDefault("channels.wppconnect.base_url", "http://localhost:21465")
	v.SetDefault("channels.wppconnect.session", "balcao")
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.search_log", true)
	v.SetDefault("data_dir", "")
}

// legacyEnv maps config keys to the variable names used by earlier
// deployments. The BALCAO_ name always wins.
var legacyEnv = map[string]string{
	"catalog.tiny.token":       "TINY_API_TOKEN",
	"providers.google.api_key": "GEMINI_API_KEY",
}

// SetupEnv enables BALCAO_ environment overrides on v, plus the legacy
// TINY_API_TOKEN, GEMINI_API_KEY and PORT variables.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		// BindEnv only fails without a key.
		_ = v.BindEnv(key, envName(key), legacy)
	}

	// PORT only replaces the default, so a configured listen address wins.
	if port := os.Getenv("PORT"); port != "" {
		v.SetDefault("networking.listen", ":"+port)
	}
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Load reads configuration from path (or defaults only when empty) with
// environment overrides, then validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, balcaoerr.Wrapf(err, balcaoerr.CodeConfigLoadReadFailure, "reading config %s", path)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, balcaoerr.Wrapf(err, balcaoerr.CodeConfigParseInvalidFormat, "decoding config")
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, balcaoerr.Wrapf(errors.Join(errs...), balcaoerr.CodeConfigValidateInvalidValue, "validating config")
	}
	return &cfg, nil
}

func invalid(format string, args ...any) error {
	return balcaoerr.Errorf(balcaoerr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

// Validate checks the configuration for logical errors. It collects every
// problem instead of stopping at the first.
func (c *Config) Validate() []error {
	var errs []error
	errs = append(errs, c.validateNetworking()...)
	errs = append(errs, c.validateModels()...)
	errs = append(errs, c.validateCatalog()...)
	errs = append(errs, c.validateDialogue()...)
	errs = append(errs, c.validateChannels()...)
	errs = append(errs, c.validateStorage()...)
	return errs
}

func (c *Config) validateNetworking() []error {
	var errs []error

	if c.Networking.Listen == "" {
		errs = append(errs, invalid("networking.listen must not be empty"))
	} else if _, portStr, err := net.SplitHostPort(c.Networking.Listen); err != nil {
		errs = append(errs, invalid("networking.listen must be a valid host:port address, got %q", c.Networking.Listen))
	} else if port, err := strconv.Atoi(portStr); err != nil || port < 1 || port > 65535 {
		errs = append(errs, invalid("networking.listen port must be between 1 and 65535, got %q", portStr))
	}

	if c.Networking.RateLimitRPS < 0 {
		errs = append(errs, invalid("networking.rate_limit_rps must not be negative, got %g", c.Networking.RateLimitRPS))
	}
	if c.Networking.RateLimitRPS > 0 && c.Networking.RateLimitBurst <= 0 {
		errs = append(errs, invalid("networking.rate_limit_burst must be positive when rate_limit_rps is set, got %d",
			c.Networking.RateLimitBurst))
	}
	return errs
}

func (c *Config) validateModels() []error {
	var errs []error

	refs := append([]string{c.Models.Default}, c.Models.Failover...)
	for i, ref := range refs {
		field := "models.default"
		if i > 0 {
			field = "models.failover[" + strconv.Itoa(i-1) + "]"
		}
		name, model, ok := strings.Cut(ref, "/")
		switch {
		case ref == "":
			errs = append(errs, invalid("%s must not be empty", field))
		case !ok || name == "" || model == "":
			errs = append(errs, invalid("%s must be in \"provider/model\" format, got %q", field, ref))
		case c.Providers != nil:
			// A nil map means no providers section at all, which is valid on
			// a fresh install that relies on environment keys.
			if _, configured := c.Providers[name]; !configured {
				errs = append(errs, invalid("%s %q references provider %q which is not configured", field, ref, name))
			}
		}
	}
	return errs
}

func (c *Config) validateCatalog() []error {
	var errs []error

	if c.Catalog.Backend != "tiny" {
		errs = append(errs, invalid("catalog.backend must be one of [tiny], got %q", c.Catalog.Backend))
	}
	if c.Catalog.Timeout <= 0 {
		errs = append(errs, invalid("catalog.timeout must be positive, got %s", c.Catalog.Timeout))
	}
	if err := checkHTTPURL(c.Catalog.Tiny.BaseURL); err != nil {
		errs = append(errs, invalid("catalog.tiny.base_url: %v", err))
	}
	if c.Catalog.Stock.Enabled && c.Catalog.Stock.Concurrency < 1 {
		errs = append(errs, invalid("catalog.stock.concurrency must be at least 1, got %d", c.Catalog.Stock.Concurrency))
	}
	if c.Catalog.Stock.CacheTTL < 0 {
		errs = append(errs, invalid("catalog.stock.cache_ttl must not be negative, got %s", c.Catalog.Stock.CacheTTL))
	}
	return errs
}

func (c *Config) validateDialogue() []error {
	var errs []error

	if c.Dialogue.Threshold < 1 {
		errs = append(errs, invalid("dialogue.threshold must be at least 1, got %d", c.Dialogue.Threshold))
	}
	if c.Dialogue.PageSize < 1 {
		errs = append(errs, invalid("dialogue.page_size must be at least 1, got %d", c.Dialogue.PageSize))
	}
	if c.Dialogue.FreshnessWindow <= 0 {
		errs = append(errs, invalid("dialogue.freshness_window must be positive, got %s", c.Dialogue.FreshnessWindow))
	}
	if c.Dialogue.TurnTimeout <= 0 {
		errs = append(errs, invalid("dialogue.turn_timeout must be positive, got %s", c.Dialogue.TurnTimeout))
	}

	lists := map[string][]string{
		"cancel":    c.Dialogue.Vocabulary.Cancel,
		"back":      c.Dialogue.Vocabulary.Back,
		"show_all":  c.Dialogue.Vocabulary.ShowAll,
		"affirm":    c.Dialogue.Vocabulary.Affirm,
		"greetings": c.Dialogue.Vocabulary.Greetings,
	}
	names := make([]string, 0, len(lists))
	for name := range lists {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if slices.ContainsFunc(lists[name], func(w string) bool { return strings.TrimSpace(w) == "" }) {
			errs = append(errs, invalid("dialogue.vocabulary.%s must not contain empty words", name))
		}
	}
	return errs
}

func (c *Config) validateChannels() []error {
	w := c.Channels.Wppconnect
	if !w.Enabled {
		return nil
	}
	var errs []error
	if err := checkHTTPURL(w.BaseURL); err != nil {
		errs = append(errs, invalid("channels.wppconnect.base_url: %v", err))
	}
	if w.Session == "" {
		errs = append(errs, invalid("channels.wppconnect.session must not be empty"))
	}
	return errs
}

func (c *Config) validateStorage() []error {
	if c.Storage.Backend != "sqlite" {
		return []error{invalid("storage.backend must be one of [sqlite], got %q", c.Storage.Backend)}
	}
	return nil
}

func checkHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return balcaoerr.Errorf(balcaoerr.CodeConfigValidateInvalidValue, "must be an http(s) URL, got %q", raw)
	}
	if u.Host == "" {
		return balcaoerr.Errorf(balcaoerr.CodeConfigValidateInvalidValue, "missing host in %q", raw)
	}
	return nil
}
