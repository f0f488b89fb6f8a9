package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

// exitFindings is the exit code of an analysis that met its --fail-on
// condition.
const exitFindings = 2

// findingsError reports that the --fail-on condition was met.
type findingsError struct {
	kind  string
	count int
}

func (e *findingsError) Error() string {
	return fmt.Sprintf("%d %s found", e.count, e.kind)
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "pyaudit",
		Usage:   "Static quality and correctness audit for Python code",
		Version: version,
		Description: `pyaudit measures Python functions (length, parameters, cyclomatic complexity),
reports code smells, and finds divisions by zero and if-conditions that never vary.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"PYAUDIT_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, markdown, toon (default from config)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable the report cache",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Hide the progress bar",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging on stderr",
			},
		},
		Before: func(c *cli.Context) error {
			// A missing .env is fine; a malformed one is not.
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			level := slog.LevelInfo
			if c.Bool("verbose") {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level})))
			return nil
		},
		Commands: []*cli.Command{
			analyzeCmd(),
			repoCmd(),
			initCmd(),
			watchCmd(),
			mcpCmd(),
		},
	}
}

func main() {
	app := newApp()
	app.ErrWriter = os.Stderr

	if err := app.Run(os.Args); err != nil {
		var findings *findingsError
		if errors.As(err, &findings) {
			color.Yellow("%v", err)
			os.Exit(exitFindings)
		}
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}
