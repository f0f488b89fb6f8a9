package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/pyaudit/internal/output"
	"github.com/panbanda/pyaudit/pkg/analyzer"
	"github.com/panbanda/pyaudit/pkg/report"
	"github.com/panbanda/pyaudit/pkg/watch"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Watch a directory and re-analyze Python files as they change",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "debounce",
				Value: watch.DefaultDebounce,
				Usage: "Quiet period before a changed file is analyzed",
			},
		},
		Action: runWatchCmd,
	}
}

func runWatchCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(getPaths(c)[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	engine := analyzer.FromConfig(cfg, slog.Default())
	defer engine.Close()

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	analyze := func(ctx context.Context, path string) {
		content, err := os.ReadFile(path)
		if err != nil {
			color.Red("Read error: %v", err)
			return
		}
		var outcome report.Outcome
		if r, err := engine.AnalyzeSource(ctx, path, content); err != nil {
			outcome = report.Failed(path, err)
		} else {
			outcome = report.Succeeded(r)
		}
		if err := formatter.Output(output.NewAnalysis("", []report.Outcome{outcome})); err != nil {
			color.Red("Output error: %v", err)
		}
	}

	watcher, err := watch.NewWatcher(absPath, cfg, analyze,
		watch.WithDebounce(c.Duration("debounce")),
		watch.WithOutput(c.App.Writer),
		watch.WithLogger(slog.Default()),
	)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Stop()

	ctx, stop := signalContext(c)
	defer stop()

	if err := watcher.Start(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "\nStopping watch...")
	return nil
}
