package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/pyaudit/internal/progress"
	"github.com/panbanda/pyaudit/internal/store"
	"github.com/panbanda/pyaudit/internal/vcs"
	"github.com/panbanda/pyaudit/pkg/analyzer"
	"github.com/panbanda/pyaudit/pkg/config"
	"github.com/panbanda/pyaudit/pkg/source"
	"github.com/panbanda/pyaudit/pkg/stats"
)

func repoCmd() *cli.Command {
	return &cli.Command{
		Name:      "repo",
		Usage:     "Clone or open a git repository, analyze its HEAD and store the results",
		ArgsUsage: "<url|path>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "name",
				Usage: "Project name (default: owner_repo for URLs, directory name for paths)",
			},
			&cli.IntFlag{
				Name:  "max-commits",
				Usage: "Number of recent commits to store (default from config)",
			},
			&cli.StringFlag{
				Name:  "fail-on",
				Usage: "Exit with status 2 when findings exist: issues or smells",
			},
		},
		Action: runRepoCmd,
	}
}

// openTarget clones a remote URL into the clone directory or opens a
// local repository. It returns the repository and the project name.
func openTarget(ctx context.Context, cfg *config.Config, target string) (vcs.Repository, string, error) {
	if vcs.IsRemote(target) {
		name, err := vcs.RepoName(target)
		if err != nil {
			return nil, "", err
		}
		dir := filepath.Join(cfg.Repo.CloneDir, name)
		slog.Debug("cloning", "url", target, "dir", dir, "depth", cfg.Repo.Depth)
		repo, err := vcs.Clone(ctx, target, dir, cfg.Repo.Depth)
		if err != nil {
			return nil, "", err
		}
		return repo, name, nil
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, "", fmt.Errorf("invalid path %s: %w", target, err)
	}
	repo, err := vcs.DefaultOpener().PlainOpenWithDetect(abs)
	if err != nil {
		return nil, "", fmt.Errorf("open repository %s: %w", target, err)
	}
	if dirty, err := vcs.IsDirty(repo.RepoPath()); err == nil && dirty {
		color.Yellow("Working tree has uncommitted changes; analyzing HEAD")
	}
	return repo, filepath.Base(repo.RepoPath()), nil
}

func runRepoCmd(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("repo takes exactly one <url|path> argument")
	}
	target := c.Args().First()
	failOn := c.String("fail-on")
	if err := checkFailOn(failOn, 0, 0); err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if n := c.Int("max-commits"); n > 0 {
		cfg.Repo.MaxCommits = n
	}

	ctx, stop := signalContext(c)
	defer stop()

	repo, name, err := openTarget(ctx, cfg, target)
	if err != nil {
		return err
	}
	if n := c.String("name"); n != "" {
		name = n
	}

	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("resolve HEAD: %w", err)
	}
	branch, err := vcs.CurrentBranch(repo)
	if err != nil {
		return fmt.Errorf("resolve branch: %w", err)
	}
	commits, err := vcs.Commits(repo, cfg.Repo.MaxCommits)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	tree, err := repo.HeadTree()
	if err != nil {
		return fmt.Errorf("read HEAD tree: %w", err)
	}
	files, err := vcs.PythonFiles(tree, cfg.Exclude.Dirs)
	if err != nil {
		return fmt.Errorf("list Python files: %w", err)
	}
	fileTypes, err := vcs.FileTypeStats(tree)
	if err != nil {
		return fmt.Errorf("count file types: %w", err)
	}

	st, err := store.Open(ctx, cfg.Store, store.WithLogger(slog.Default()))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	project := store.Project{
		Name:       name,
		URL:        target,
		Branch:     branch,
		HeadSHA:    head.SHA,
		FileTypes:  fileTypes,
		AnalyzedAt: time.Now().UTC(),
	}
	if err := st.SaveProject(ctx, project); err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	if err := st.SaveCommits(ctx, name, commits); err != nil {
		return fmt.Errorf("save commits: %w", err)
	}

	engine := analyzer.FromConfig(cfg, slog.Default())
	defer engine.Close()

	bar := progress.New("Analyzing "+name, c.App.ErrWriter, c.Bool("quiet"))
	actx := analyzer.WithTracker(ctx, analyzer.NewTracker(bar.Update))
	outcomes := openCache(cfg).AnalyzeFiles(actx, engine, files, source.NewTree(tree))
	if err := ctx.Err(); err != nil {
		bar.FinishError(err)
		return err
	}
	bar.Finish()

	if err := store.SaveOutcomes(ctx, st, name, outcomes); err != nil {
		return err
	}
	if err := st.SaveSummary(ctx, name, stats.Summarize(outcomes)); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	slog.Info("repository stored", "project", name, "commits", len(commits), "files", len(files), "driver", cfg.Store.Driver)

	return render(c, cfg, fmt.Sprintf("%s @ %s (%s)", name, project.Branch, shortSHA(project.HeadSHA)), outcomes, failOn)
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
