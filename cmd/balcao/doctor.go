// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sigil-dev/balcao/internal/catalog/tiny"
	"github.com/sigil-dev/balcao/internal/channel/wppconnect"
	"github.com/sigil-dev/balcao/internal/config"
	"github.com/sigil-dev/balcao/internal/intent"
	"github.com/sigil-dev/balcao/internal/provider"
	balcaoerr "github.com/sigil-dev/balcao/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"
)

// doctorCheckTimeout bounds each remote check.
const doctorCheckTimeout = 15 * time.Second

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check the configuration, the running gateway, the Tiny token, the WhatsApp session, the classifier model and disk space.",
		RunE:  runDoctor,
	}

	cmd.Flags().String("address", defaultAddress, "gateway address to check")
	cmd.Flags().Bool("skip-remote", false, "skip the Tiny, WhatsApp and classifier checks")

	return cmd
}

type doctorCheck struct {
	name string
	fn   func() string
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	addr, _ := cmd.Flags().GetString("address")
	skipRemote, _ := cmd.Flags().GetBool("skip-remote")
	dataDir := resolveDataDir()
	ctx := cmdContext(cmd)

	cfg, cfgErr := config.FromViper(viper.GetViper())

	checks := []doctorCheck{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Config", func() string { return checkConfig(cfgErr) }},
		{"Gateway", func() string { return checkGateway(addr) }},
	}
	if !skipRemote && cfg != nil {
		checks = append(checks,
			doctorCheck{"Catalog", func() string { return checkCatalog(ctx, cfg) }},
			doctorCheck{"WhatsApp", func() string { return checkWhatsApp(ctx, cfg) }},
			doctorCheck{"Classifier", func() string { return checkClassifier(ctx, cfg) }},
		)
	}
	checks = append(checks, doctorCheck{"Disk Space", func() string { return checkDiskSpace(dataDir) }})

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}

	return nil
}

// resolveDataDir returns the data directory from viper or the default.
func resolveDataDir() string {
	if dataDir := viper.GetString("data_dir"); dataDir != "" {
		return dataDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".balcao")
}

func checkBinary() string {
	return fmt.Sprintf("balcao %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkConfig(cfgErr error) string {
	if cfgErr != nil {
		return fmt.Sprintf("invalid: %s", cfgErr)
	}
	if cfgFile := viper.ConfigFileUsed(); cfgFile != "" {
		return fmt.Sprintf("loaded from %s", cfgFile)
	}
	return "using defaults (no config file found)"
}

func checkGateway(addr string) string {
	var body statusBody
	if err := newGatewayClient(addr).getJSON("/api/v1/status", &body); err != nil {
		if balcaoerr.HasCode(err, balcaoerr.CodeCLIGatewayNotRunning) {
			return fmt.Sprintf("not running at %s (run 'balcao start')", addr)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s at %s", body.Status, addr)
}

func checkCatalog(ctx context.Context, cfg *config.Config) string {
	ctx, cancel := context.WithTimeout(ctx, doctorCheckTimeout)
	defer cancel()

	client := tiny.New(tiny.Config{
		Token:   cfg.Catalog.Tiny.Token,
		BaseURL: cfg.Catalog.Tiny.BaseURL,
		Timeout: cfg.Catalog.Timeout,
	})
	if err := client.Ping(ctx); err != nil {
		if balcaoerr.IsMissingCredentials(err) {
			return "Tiny token not configured (catalog.tiny.token)"
		}
		return fmt.Sprintf("error: %s", err)
	}
	return "Tiny token accepted"
}

func checkWhatsApp(ctx context.Context, cfg *config.Config) string {
	wc := cfg.Channels.Wppconnect
	if !wc.Enabled {
		return "wppconnect disabled"
	}
	ctx, cancel := context.WithTimeout(ctx, doctorCheckTimeout)
	defer cancel()

	client := wppconnect.New(wppconnect.Config{BaseURL: wc.BaseURL, Session: wc.Session, Token: wc.Token})
	if err := client.CheckConnection(ctx); err != nil {
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("session %q connected", wc.Session)
}

func checkClassifier(ctx context.Context, cfg *config.Config) string {
	reg := provider.NewRegistry()
	defer func() { _ = reg.Close() }()

	registerBuiltinProviders(cfg, reg)
	if len(reg.Names()) == 0 {
		return "no LLM provider configured (run 'balcao init')"
	}
	if err := reg.SetDefault(cfg.Models.Default); err != nil {
		return fmt.Sprintf("error: %s", err)
	}

	ctx, cancel := context.WithTimeout(ctx, doctorCheckTimeout)
	defer cancel()
	if err := intent.NewLLMClassifier(reg, cfg.Models.Default).Probe(ctx); err != nil {
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s answered", cfg.Models.Default)
}

func checkDiskSpace(dataDir string) string {
	path := dataDir
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// The data directory is created on first start.
		path, _ = os.UserHomeDir()
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	return formatBytes(availBytes) + " available"
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
