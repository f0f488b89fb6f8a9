package main

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/pyaudit/internal/output"
	"github.com/panbanda/pyaudit/internal/progress"
	"github.com/panbanda/pyaudit/internal/scanner"
	"github.com/panbanda/pyaudit/pkg/analyzer"
	"github.com/panbanda/pyaudit/pkg/config"
	"github.com/panbanda/pyaudit/pkg/report"
	"github.com/panbanda/pyaudit/pkg/source"
)

// stdinPath names source read from standard input.
const stdinPath = "<stdin>"

func analyzeCmd() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Aliases:   []string{"a"},
		Usage:     "Analyze Python files, directories, or - for standard input",
		ArgsUsage: "[path...|-]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "fail-on",
				Usage: "Exit with status 2 when findings exist: issues or smells",
			},
		},
		Action: runAnalyzeCmd,
	}
}

// stdinSource serves standard input under stdinPath and everything else
// from the filesystem.
type stdinSource struct {
	data []byte
	fs   source.ContentSource
}

func (s stdinSource) Read(path string) ([]byte, error) {
	if path == stdinPath {
		return s.data, nil
	}
	return s.fs.Read(path)
}

func runAnalyzeCmd(c *cli.Context) error {
	failOn := c.String("fail-on")
	if err := checkFailOn(failOn, 0, 0); err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	paths := getPaths(c)
	readStdin := slices.Contains(paths, "-")
	paths = slices.DeleteFunc(paths, func(p string) bool { return p == "-" })

	var files []string
	if len(paths) > 0 {
		if files, err = scanner.NewScanner(cfg).ScanPaths(paths); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
	}

	src := stdinSource{fs: source.NewFilesystem()}
	if readStdin {
		if src.data, err = io.ReadAll(c.App.Reader); err != nil {
			return fmt.Errorf("read standard input: %w", err)
		}
		files = append(files, stdinPath)
	}

	if len(files) == 0 {
		color.Yellow("No Python files found")
		return nil
	}

	ctx, stop := signalContext(c)
	defer stop()

	engine := analyzer.FromConfig(cfg, slog.Default())
	defer engine.Close()

	bar := progress.New("Analyzing", c.App.ErrWriter, c.Bool("quiet") || len(files) == 1)
	ctx = analyzer.WithTracker(ctx, analyzer.NewTracker(bar.Update))

	outcomes := openCache(cfg).AnalyzeFiles(ctx, engine, files, src)
	if err := ctx.Err(); err != nil {
		bar.FinishError(err)
		return err
	}
	bar.Finish()

	return render(c, cfg, "pyaudit analysis", outcomes, failOn)
}

// render writes outcomes in the configured format and applies --fail-on.
func render(c *cli.Context, cfg *config.Config, title string, outcomes []report.Outcome, failOn string) error {
	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	analysis := output.NewAnalysis(title, outcomes)
	if err := formatter.Output(analysis); err != nil {
		return err
	}
	return checkFailOn(failOn, analysis.Summary.Smells, analysis.Summary.Issues)
}
