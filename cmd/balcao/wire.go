// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/sigil-dev/balcao/internal/catalog"
	"github.com/sigil-dev/balcao/internal/catalog/tiny"
	"github.com/sigil-dev/balcao/internal/channel"
	"github.com/sigil-dev/balcao/internal/channel/wppconnect"
	"github.com/sigil-dev/balcao/internal/config"
	"github.com/sigil-dev/balcao/internal/dialogue"
	"github.com/sigil-dev/balcao/internal/gateway"
	"github.com/sigil-dev/balcao/internal/intent"
	"github.com/sigil-dev/balcao/internal/provider"
	anthropicprov "github.com/sigil-dev/balcao/internal/provider/anthropic"
	googleprov "github.com/sigil-dev/balcao/internal/provider/google"
	openaiprov "github.com/sigil-dev/balcao/internal/provider/openai"
	"github.com/sigil-dev/balcao/internal/server"
	"github.com/sigil-dev/balcao/internal/session"
	"github.com/sigil-dev/balcao/internal/store"
	_ "github.com/sigil-dev/balcao/internal/store/sqlite" // register sqlite backend
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
)

// probeTimeout bounds the startup classifier check.
const probeTimeout = 20 * time.Second

// Gateway holds all wired subsystems and manages their lifecycle.
type Gateway struct {
	Server     *server.Server
	Dispatcher *gateway.Dispatcher
	Controller *dialogue.Controller
	Registry   *provider.Registry
	Channels   *channel.Router
	Catalog    *tiny.Client
	// Classifier is nil when no LLM provider is configured.
	Classifier *intent.LLMClassifier
	// SearchLog is nil when storage.search_log is off.
	SearchLog store.SearchLog

	cancel context.CancelFunc
}

// WireGateway creates all subsystems and wires them together.
// dataDir is the root directory for persistent state.
func WireGateway(ctx context.Context, cfg *config.Config, dataDir string) (*Gateway, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, balcaoerr.Errorf(balcaoerr.CodeCLISetupFailure, "creating data directory: %v", err)
	}

	// 1. LLM providers and the intent classifier.
	reg := provider.NewRegistry()
	registerBuiltinProviders(cfg, reg)

	var classifier *intent.LLMClassifier
	if len(reg.Names()) == 0 {
		slog.Warn("no LLM provider configured; every message will get the classifier failure reply")
	} else {
		if err := reg.SetDefault(cfg.Models.Default); err != nil {
			return nil, balcaoerr.Wrapf(err, balcaoerr.CodeCLISetupFailure, "setting default model %s", cfg.Models.Default)
		}
		if len(cfg.Models.Failover) > 0 {
			if err := reg.SetFailover(cfg.Models.Failover); err != nil {
				return nil, balcaoerr.Wrapf(err, balcaoerr.CodeCLISetupFailure, "setting failover chain")
			}
		}
		classifier = intent.NewLLMClassifier(reg, cfg.Models.Default)
	}

	// 2. Catalog.
	tinyClient := tiny.New(tiny.Config{
		Token:   cfg.Catalog.Tiny.Token,
		BaseURL: cfg.Catalog.Tiny.BaseURL,
		Timeout: cfg.Catalog.Timeout,
	})
	var stock catalog.StockLookup
	if cfg.Catalog.Stock.Enabled {
		stock = tiny.NewCachedStock(tinyClient, cfg.Catalog.Stock.CacheTTL)
	}

	// 3. Search log.
	var searchLog store.SearchLog
	if cfg.Storage.SearchLog {
		var err error
		searchLog, err = store.NewSearchLog(&store.StorageConfig{Backend: cfg.Storage.Backend}, dataDir)
		if err != nil {
			_ = reg.Close()
			return nil, balcaoerr.Wrapf(err, balcaoerr.CodeCLISetupFailure, "opening search log")
		}
	}

	gw := &Gateway{
		Registry:   reg,
		Catalog:    tinyClient,
		Classifier: classifier,
		SearchLog:  searchLog,
	}

	// 4. Dialogue controller.
	ctrlCfg := dialogue.Config{
		Sessions:         session.NewStore(),
		Searcher:         tinyClient,
		Stock:            stock,
		StockConcurrency: cfg.Catalog.Stock.Concurrency,
		SearchLog:        searchLog,
		Threshold:        cfg.Dialogue.Threshold,
		PageSize:         cfg.Dialogue.PageSize,
		Vocabulary: dialogue.Vocabulary{
			Cancel:    cfg.Dialogue.Vocabulary.Cancel,
			Back:      cfg.Dialogue.Vocabulary.Back,
			ShowAll:   cfg.Dialogue.Vocabulary.ShowAll,
			Affirm:    cfg.Dialogue.Vocabulary.Affirm,
			Greetings: cfg.Dialogue.Vocabulary.Greetings,
		},
	}
	// A typed nil would defeat the controller's nil check.
	if classifier != nil {
		ctrlCfg.Classifier = classifier
	}
	gw.Controller = dialogue.NewController(ctrlCfg)

	// 5. Channels.
	gw.Channels = channel.NewRouter()
	if cfg.Channels.Wppconnect.Enabled {
		gw.Channels.Register(wppconnect.New(wppconnect.Config{
			BaseURL: cfg.Channels.Wppconnect.BaseURL,
			Session: cfg.Channels.Wppconnect.Session,
			Token:   cfg.Channels.Wppconnect.Token,
		}))
		if cfg.Channels.Wppconnect.WebhookSecret == "" {
			slog.Warn("wppconnect webhook secret not set; the webhook accepts unauthenticated posts")
		}
	}

	// 6. Dispatcher. Its context outlives webhook requests and ends on Close.
	dispatchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	gw.cancel = cancel
	gw.Dispatcher = gateway.NewDispatcher(dispatchCtx, gateway.Config{
		Handler:     gw.Controller,
		Sender:      gw.Channels,
		Lanes:       session.NewLanePool(),
		Filter:      channel.Filter{FreshnessWindow: cfg.Dialogue.FreshnessWindow},
		TurnTimeout: cfg.Dialogue.TurnTimeout,
	})

	// 7. HTTP server.
	services, err := server.NewServices(gw.Dispatcher, gw.Controller.Sessions())
	if err != nil {
		_ = gw.Close()
		return nil, balcaoerr.Wrapf(err, balcaoerr.CodeCLISetupFailure, "creating services")
	}
	services.WithProviders(reg)
	if searchLog != nil {
		services.WithSearchLog(searchLog)
	}

	gw.Server, err = server.New(server.Config{
		ListenAddr:  cfg.Networking.Listen,
		CORSOrigins: cfg.Networking.CORSOrigins,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: cfg.Networking.RateLimitRPS,
			Burst:             cfg.Networking.RateLimitBurst,
		},
		WebhookSecret: cfg.Channels.Wppconnect.WebhookSecret,
		Services:      services,
	})
	if err != nil {
		_ = gw.Close()
		return nil, balcaoerr.Wrapf(err, balcaoerr.CodeCLISetupFailure, "creating server")
	}

	return gw, nil
}

// Start probes the classifier in the background, then runs the HTTP server
// until ctx is cancelled.
func (gw *Gateway) Start(ctx context.Context) error {
	if gw.Classifier != nil {
		go gw.probe(ctx)
	}
	return gw.Server.Start(ctx)
}

// probe logs whether the classifier model answers. A failure is not fatal:
// the failover chain may still serve requests.
func (gw *Gateway) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := gw.Classifier.Probe(ctx); err != nil {
		slog.Warn("classifier health check failed", "model", gw.Registry.DefaultRef(), "error", err)
		return
	}
	slog.Info("classifier health check passed", "model", gw.Registry.DefaultRef())
}

// Close stops in-flight turns and releases all resources held by the gateway.
func (gw *Gateway) Close() error {
	if gw.cancel != nil {
		gw.cancel()
	}
	if gw.Dispatcher != nil {
		gw.Dispatcher.Close()
	}

	type closer interface{ Close() error }
	closers := []closer{gw.Registry}
	if gw.Server != nil {
		closers = append(closers, gw.Server)
	}
	if gw.SearchLog != nil {
		closers = append(closers, gw.SearchLog)
	}

	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// providerFactory builds a provider.Provider from its configuration.
type providerFactory func(config.ProviderConfig) (provider.Provider, error)

// builtinProviderFactories maps provider names to their constructors.
// Tests replace entries to inject failures.
var builtinProviderFactories = map[string]providerFactory{
	string(provider.NameGoogle): func(pc config.ProviderConfig) (provider.Provider, error) {
		return googleprov.New(googleprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
	string(provider.NameOpenAI): func(pc config.ProviderConfig) (provider.Provider, error) {
		return openaiprov.New(openaiprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
	string(provider.NameAnthropic): func(pc config.ProviderConfig) (provider.Provider, error) {
		return anthropicprov.New(anthropicprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
}

// registerBuiltinProviders registers every configured provider that has a
// key and a known implementation. Skipped entries are logged, not fatal.
func registerBuiltinProviders(cfg *config.Config, reg *provider.Registry) {
	for name, pc := range cfg.Providers {
		if pc.APIKey == "" {
			slog.Warn("skipping provider with empty API key", "provider", name)
			continue
		}
		factory, ok := builtinProviderFactories[name]
		if !ok {
			slog.Warn("unknown provider in config, skipping", "provider", name)
			continue
		}
		p, err := factory(pc)
		if err != nil {
			slog.Warn("failed to create provider", "provider", name, "error", err)
			continue
		}
		reg.Register(name, p)
		slog.Info("registered provider", "provider", name)
	}
}
