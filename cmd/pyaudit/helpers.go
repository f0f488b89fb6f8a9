package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/pyaudit/internal/cache"
	"github.com/panbanda/pyaudit/internal/output"
	"github.com/panbanda/pyaudit/pkg/config"
)

// getPaths returns paths from positional args, defaulting to ["."].
func getPaths(c *cli.Context) []string {
	if c.Args().Len() > 0 {
		return c.Args().Slice()
	}
	return []string{"."}
}

// loadConfig loads --config or the first config file found, then applies
// the global flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var opts []config.LoadOption
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}
	result, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, err
	}
	if result.Source != "" {
		slog.Debug("config loaded", "path", result.Source)
	}

	cfg := result.Config
	if c.Bool("no-cache") {
		cfg.Cache.Enabled = false
	}
	if f := c.String("format"); f != "" {
		cfg.Output.Format = f
	}
	return cfg, nil
}

// newFormatter creates the formatter selected by cfg and --output.
func newFormatter(c *cli.Context, cfg *config.Config) (*output.Formatter, error) {
	return output.NewFormatter(output.ParseFormat(cfg.Output.Format), c.String("output"), cfg.Output.Color)
}

// openCache opens the report cache described by cfg. A cache that cannot
// be created is disabled rather than failing the run.
func openCache(cfg *config.Config) *cache.Cache {
	rc, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL, cfg.Cache.Enabled, cfg.Fingerprint())
	if err != nil {
		slog.Warn("report cache disabled", "dir", cfg.Cache.Dir, "error", err)
		rc, _ = cache.New("", 0, false, "")
	}
	return rc
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

// checkFailOn returns a findingsError when mode is met by the totals.
func checkFailOn(mode string, smells, issues int) error {
	switch mode {
	case "":
		return nil
	case "issues":
		if issues > 0 {
			return &findingsError{kind: "semantic issues", count: issues}
		}
	case "smells":
		if smells > 0 {
			return &findingsError{kind: "smells", count: smells}
		}
	default:
		return fmt.Errorf("invalid --fail-on %q (want issues or smells)", mode)
	}
	return nil
}
