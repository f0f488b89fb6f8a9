// Package config loads pyaudit settings from TOML, YAML or JSON files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/panbanda/pyaudit/internal/vcs"
	"github.com/panbanda/pyaudit/pkg/analyzer/smells"
	"github.com/panbanda/pyaudit/pkg/solver"
)

// EnvStoreDSN overrides Store.DSN when set.
const EnvStoreDSN = "PYAUDIT_STORE_DSN"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Output formats.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatTOON     = "toon"
)

// Store drivers.
const (
	DriverJSON     = "json"
	DriverPostgres = "postgres"
)

// Formats lists the accepted output formats.
var Formats = []string{FormatText, FormatJSON, FormatMarkdown, FormatTOON}

// Config holds all configuration options for pyaudit.
type Config struct {
	// Smell thresholds
	Smells SmellsConfig `koanf:"smells" toml:"smells"`

	// Semantic checks
	Solver SolverConfig `koanf:"solver" toml:"solver"`

	// Engine settings
	Analysis AnalysisConfig `koanf:"analysis" toml:"analysis"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude"`

	// Cache settings
	Cache CacheConfig `koanf:"cache" toml:"cache"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output"`

	// Report persistence
	Store StoreConfig `koanf:"store" toml:"store"`

	// Remote repository handling
	Repo RepoConfig `koanf:"repo" toml:"repo"`
}

// SmellsConfig holds the smell thresholds. A value <= 0 disables the smell.
type SmellsConfig struct {
	MaxFunctionLines int `koanf:"max_function_lines" toml:"max_function_lines"`
	MaxParams        int `koanf:"max_params" toml:"max_params"`
	MaxComplexity    int `koanf:"max_complexity" toml:"max_complexity"`
	MaxNesting       int `koanf:"max_nesting" toml:"max_nesting"`
}

// SolverConfig controls the solver-backed checks.
type SolverConfig struct {
	Enabled   bool `koanf:"enabled" toml:"enabled"`
	TimeoutMS int  `koanf:"timeout_ms" toml:"timeout_ms"`
}

// AnalysisConfig controls the engine.
type AnalysisConfig struct {
	Workers        int   `koanf:"workers" toml:"workers"`             // 0 = 2x NumCPU
	MaxFileSize    int64 `koanf:"max_file_size" toml:"max_file_size"` // bytes, 0 = no limit
	ParallelPasses bool  `koanf:"parallel_passes" toml:"parallel_passes"`
	MemoSize       int   `koanf:"memo_size" toml:"memo_size"`
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns  []string `koanf:"patterns" toml:"patterns"`
	Dirs      []string `koanf:"dirs" toml:"dirs"`
	Gitignore bool     `koanf:"gitignore" toml:"gitignore"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format string `koanf:"format" toml:"format"` // text, json, markdown, toon
	Color  bool   `koanf:"color" toml:"color"`
}

// StoreConfig selects where repository analyses are persisted.
type StoreConfig struct {
	Driver string `koanf:"driver" toml:"driver"` // json, postgres
	Path   string `koanf:"path" toml:"path"`
	DSN    string `koanf:"dsn" toml:"dsn"`
}

// RepoConfig controls cloning and history collection.
type RepoConfig struct {
	CloneDir   string `koanf:"clone_dir" toml:"clone_dir"`
	Depth      int    `koanf:"depth" toml:"depth"`
	MaxCommits int    `koanf:"max_commits" toml:"max_commits"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	th := smells.DefaultThresholds()
	return &Config{
		Smells: SmellsConfig{
			MaxFunctionLines: th.MaxFunctionLines,
			MaxParams:        th.MaxParams,
			MaxComplexity:    th.MaxComplexity,
			MaxNesting:       th.MaxNesting,
		},
		Solver: SolverConfig{
			Enabled:   true,
			TimeoutMS: int(solver.DefaultTimeout / time.Millisecond),
		},
		Analysis: AnalysisConfig{
			Workers:        0,
			MaxFileSize:    1 << 20,
			ParallelPasses: true,
			MemoSize:       512,
		},
		Exclude: ExcludeConfig{
			Patterns:  []string{},
			Dirs:      append(slices.Clone(vcs.DefaultSkipDirs), ".pyaudit"),
			Gitignore: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".pyaudit/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format: FormatText,
			Color:  true,
		},
		Store: StoreConfig{
			Driver: DriverJSON,
			Path:   ".pyaudit/store",
		},
		Repo: RepoConfig{
			CloneDir:   ".pyaudit/repos",
			Depth:      vcs.DefaultCloneDepth,
			MaxCommits: 100,
		},
	}
}

// Thresholds converts the smell settings for the detector.
func (c *Config) Thresholds() smells.Thresholds {
	return smells.Thresholds{
		MaxFunctionLines: c.Smells.MaxFunctionLines,
		MaxParams:        c.Smells.MaxParams,
		MaxComplexity:    c.Smells.MaxComplexity,
		MaxNesting:       c.Smells.MaxNesting,
	}
}

// Capability returns the solver capability the settings describe.
func (c *Config) Capability() solver.Capability {
	if !c.Solver.Enabled {
		return solver.Unavailable()
	}
	capability := solver.Default()
	if c.Solver.TimeoutMS > 0 {
		capability = capability.WithTimeout(time.Duration(c.Solver.TimeoutMS) * time.Millisecond)
	}
	return capability
}

// Fingerprint identifies the settings that change analysis results.
func (c *Config) Fingerprint() string {
	return fmt.Sprintf("smells=%d/%d/%d/%d solver=%t/%d",
		c.Smells.MaxFunctionLines, c.Smells.MaxParams, c.Smells.MaxComplexity, c.Smells.MaxNesting,
		c.Solver.Enabled, c.Solver.TimeoutMS)
}

// Validate reports every invalid setting, each wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if err := c.Thresholds().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	if c.Solver.TimeoutMS < 0 {
		invalid("solver.timeout_ms must not be negative, got %d", c.Solver.TimeoutMS)
	}
	if c.Analysis.Workers < 0 {
		invalid("analysis.workers must not be negative, got %d", c.Analysis.Workers)
	}
	if c.Analysis.MaxFileSize < 0 {
		invalid("analysis.max_file_size must not be negative, got %d", c.Analysis.MaxFileSize)
	}
	if c.Analysis.MemoSize < 0 {
		invalid("analysis.memo_size must not be negative, got %d", c.Analysis.MemoSize)
	}
	if c.Cache.TTL < 0 {
		invalid("cache.ttl must not be negative, got %d", c.Cache.TTL)
	}
	if !slices.Contains(Formats, c.Output.Format) {
		invalid("output.format %q is not one of %s", c.Output.Format, strings.Join(Formats, ", "))
	}
	switch c.Store.Driver {
	case DriverJSON:
	case DriverPostgres:
		if c.Store.DSN == "" {
			invalid("store.dsn is required for the postgres driver")
		}
	default:
		invalid("store.driver %q is not one of json, postgres", c.Store.Driver)
	}
	if c.Repo.Depth < 0 {
		invalid("repo.depth must not be negative, got %d", c.Repo.Depth)
	}
	if c.Repo.MaxCommits < 0 {
		invalid("repo.max_commits must not be negative, got %d", c.Repo.MaxCommits)
	}

	return errors.Join(errs...)
}

// Load loads configuration from a file over the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// ConfigNames are the file names searched by LoadConfig, in order.
var ConfigNames = []string{
	"pyaudit.toml",
	"pyaudit.yaml",
	"pyaudit.yml",
	"pyaudit.json",
	".pyaudit.toml",
	".pyaudit.yaml",
	".pyaudit.yml",
	".pyaudit.json",
}

// SearchDirs are the directories searched by LoadConfig, in order.
var SearchDirs = []string{".", ".pyaudit"}

// LoadResult is a loaded configuration and the file it came from.
type LoadResult struct {
	Config *Config
	// Source is the config file path, or empty for defaults.
	Source string
}

type loadOptions struct {
	path string
}

// LoadOption configures LoadConfig.
type LoadOption func(*loadOptions)

// WithPath loads the given file instead of searching the standard locations.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// LoadConfig loads and validates the configuration.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	source := o.path
	if source == "" {
		source = findConfig()
	}

	cfg := DefaultConfig()
	if source != "" {
		var err error
		if cfg, err = Load(source); err != nil {
			return nil, err
		}
	} else {
		cfg.applyEnv()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &LoadResult{Config: cfg, Source: source}, nil
}

// LoadOrDefault tries to load config from standard locations or returns defaults.
func LoadOrDefault() *Config {
	if path := findConfig(); path != "" {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg
}

func findConfig() string {
	for _, dir := range SearchDirs {
		for _, name := range ConfigNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

func (c *Config) applyEnv() {
	if dsn := os.Getenv(EnvStoreDSN); dsn != "" {
		c.Store.DSN = dsn
	}
}

// ShouldExclude checks if a path should be excluded from analysis.
func (c *Config) ShouldExclude(path string) bool {
	path = filepath.ToSlash(path)
	for _, dir := range c.Exclude.Dirs {
		if strings.Contains(path, "/"+dir+"/") || strings.HasPrefix(path, dir+"/") {
			return true
		}
	}

	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}

	return false
}
