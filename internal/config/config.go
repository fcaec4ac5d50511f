// Package config loads the project configuration (config.yaml) and lays out
// the directories the analysis pipeline reads from and writes to.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kingrea/thunder-muscle/internal/gloda"
)

// FileName is the project configuration file.
const FileName = "config.yaml"

// EnvPrefix namespaces environment overrides, e.g. TM_LOGGING_LEVEL.
const EnvPrefix = "TM"

const defaultConfigYAML = `# thunder-muscle project configuration

thunderbird:
  # Profile directory name under directories.assets
  profile: ""

defaults:
  output_format: json
  complete_dataset: assets/complete_dataset.json

directories:
  assets: assets
  output: output
  cache: cache

output_structure:
  datasets: output/datasets
  analysis: output/analysis
  plots: output/plots

# Plugin directories scanned for tools at the start of every run.
tools:
  analyzers: analyzers
  plotters: plotters
  tools: tools
  # Categories that must contain at least one tool.
  require: []

workflows:
  dir: workflows
  auto_create_dirs: true
  step_timeout: 0s
  continue_on_error: false

logging:
  level: info
  format: text
  dir: logs

# Messages dropped at extraction time.
filters:
  ignore_from_domains: []
  include_from_domains: []
  ignore_to_domains: []
  ignore_folders: []
`

// ThunderbirdConfig points at the mail profile to extract from.
type ThunderbirdConfig struct {
	Profile string `mapstructure:"profile"`
}

// DefaultsConfig holds default formats and dataset locations.
type DefaultsConfig struct {
	OutputFormat    string `mapstructure:"output_format"`
	CompleteDataset string `mapstructure:"complete_dataset"`
}

// DirectoriesConfig lists the top-level working directories.
type DirectoriesConfig struct {
	Assets string `mapstructure:"assets"`
	Output string `mapstructure:"output"`
	Cache  string `mapstructure:"cache"`
}

// OutputStructureConfig lists output subdirectories.
type OutputStructureConfig struct {
	Datasets string `mapstructure:"datasets"`
	Analysis string `mapstructure:"analysis"`
	Plots    string `mapstructure:"plots"`
}

// ToolsConfig lists the plugin directories.
type ToolsConfig struct {
	Analyzers string   `mapstructure:"analyzers"`
	Plotters  string   `mapstructure:"plotters"`
	Tools     string   `mapstructure:"tools"`
	Require   []string `mapstructure:"require"`
}

// WorkflowsConfig captures runner preferences.
type WorkflowsConfig struct {
	Dir             string        `mapstructure:"dir"`
	AutoCreateDirs  bool          `mapstructure:"auto_create_dirs"`
	StepTimeout     time.Duration `mapstructure:"step_timeout"`
	ContinueOnError bool          `mapstructure:"continue_on_error"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Dir    string `mapstructure:"dir"`
}

// Config is the resolved project configuration. Relative paths are
// resolved against ProjectDir.
type Config struct {
	ProjectDir string `mapstructure:"-"`
	// Path is the config file that was read, empty when defaults were used.
	Path string `mapstructure:"-"`

	Thunderbird     ThunderbirdConfig     `mapstructure:"thunderbird"`
	Defaults        DefaultsConfig        `mapstructure:"defaults"`
	Directories     DirectoriesConfig     `mapstructure:"directories"`
	OutputStructure OutputStructureConfig `mapstructure:"output_structure"`
	Tools           ToolsConfig           `mapstructure:"tools"`
	Workflows       WorkflowsConfig       `mapstructure:"workflows"`
	Logging         LoggingConfig         `mapstructure:"logging"`
	Filters         gloda.Filters         `mapstructure:"filters"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("thunderbird.profile", "")
	v.SetDefault("defaults.output_format", "json")
	v.SetDefault("defaults.complete_dataset", "assets/complete_dataset.json")
	v.SetDefault("directories.assets", "assets")
	v.SetDefault("directories.output", "output")
	v.SetDefault("directories.cache", "cache")
	v.SetDefault("output_structure.datasets", "output/datasets")
	v.SetDefault("output_structure.analysis", "output/analysis")
	v.SetDefault("output_structure.plots", "output/plots")
	v.SetDefault("tools.analyzers", "analyzers")
	v.SetDefault("tools.plotters", "plotters")
	v.SetDefault("tools.tools", "tools")
	v.SetDefault("tools.require", []string{})
	v.SetDefault("workflows.dir", "workflows")
	v.SetDefault("workflows.auto_create_dirs", true)
	v.SetDefault("workflows.step_timeout", "0s")
	v.SetDefault("workflows.continue_on_error", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.dir", "logs")
	v.SetDefault("filters.ignore_from_domains", []string{})
	v.SetDefault("filters.include_from_domains", []string{})
	v.SetDefault("filters.ignore_to_domains", []string{})
	v.SetDefault("filters.ignore_folders", []string{})
	v.SetDefault("filters.date_after", "")
	v.SetDefault("filters.date_before", "")
}

// Load reads projectDir/config.yaml (or explicitPath when non-empty),
// layers TM_* environment overrides on top, and validates the result. A
// missing default config file is not an error.
func Load(projectDir, explicitPath string) (*Config, error) {
	absProject, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("config: resolve project dir: %w", err)
	}
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := strings.TrimSpace(explicitPath)
	explicit := path != ""
	if !explicit {
		path = filepath.Join(absProject, FileName)
	}
	readPath := ""
	if _, statErr := os.Stat(path); statErr == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		readPath = path
	} else if explicit || !errors.Is(statErr, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: read %s: %w", path, statErr)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.ProjectDir = absProject
	cfg.Path = readPath
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) normalize() {
	base := c.ProjectDir
	c.Defaults.OutputFormat = strings.ToLower(strings.TrimSpace(c.Defaults.OutputFormat))
	c.Defaults.CompleteDataset = resolvePath(base, c.Defaults.CompleteDataset)
	c.Directories.Assets = resolvePath(base, c.Directories.Assets)
	c.Directories.Output = resolvePath(base, c.Directories.Output)
	c.Directories.Cache = resolvePath(base, c.Directories.Cache)
	c.OutputStructure.Datasets = resolvePath(base, c.OutputStructure.Datasets)
	c.OutputStructure.Analysis = resolvePath(base, c.OutputStructure.Analysis)
	c.OutputStructure.Plots = resolvePath(base, c.OutputStructure.Plots)
	c.Tools.Analyzers = resolvePath(base, c.Tools.Analyzers)
	c.Tools.Plotters = resolvePath(base, c.Tools.Plotters)
	c.Tools.Tools = resolvePath(base, c.Tools.Tools)
	c.Workflows.Dir = resolvePath(base, c.Workflows.Dir)
	c.Logging.Dir = resolvePath(base, c.Logging.Dir)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Thunderbird.Profile = strings.TrimSpace(c.Thunderbird.Profile)
}

func (c *Config) validate() error {
	switch c.Defaults.OutputFormat {
	case "json", "csv", "yaml":
	default:
		return fmt.Errorf("defaults.output_format must be json, csv or yaml")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}
	if c.Workflows.StepTimeout < 0 {
		return fmt.Errorf("workflows.step_timeout must be >= 0")
	}
	for _, name := range c.Tools.Require {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "analyzer", "analyzers", "plotter", "plotters", "tool", "tools", "filter", "filters":
		default:
			return fmt.Errorf("tools.require: unknown category %q", name)
		}
	}
	return nil
}

// ProfilePath returns the profile directory: an explicit argument wins,
// then thunderbird.profile under the assets directory.
func (c *Config) ProfilePath(explicit string) (string, error) {
	if p := strings.TrimSpace(explicit); p != "" {
		return p, nil
	}
	if c.Thunderbird.Profile == "" {
		return "", fmt.Errorf("config: no profile specified in config or arguments")
	}
	if filepath.IsAbs(c.Thunderbird.Profile) {
		return c.Thunderbird.Profile, nil
	}
	return filepath.Join(c.Directories.Assets, c.Thunderbird.Profile), nil
}

// ToolDirs returns the plugin directories keyed by category name.
func (c *Config) ToolDirs() map[string]string {
	return map[string]string{
		"analyzer": c.Tools.Analyzers,
		"plotter":  c.Tools.Plotters,
		"tool":     c.Tools.Tools,
	}
}

// WorkflowPath resolves a workflow argument: existing paths are used as is,
// otherwise the name is looked up under workflows.dir (with or without a
// .yaml/.yml extension).
func (c *Config) WorkflowPath(name string) string {
	if _, err := os.Stat(name); err == nil {
		return name
	}
	candidates := []string{name, name + ".yaml", name + ".yml"}
	for _, candidate := range candidates {
		path := filepath.Join(c.Workflows.Dir, candidate)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return name
}

// EnsureDirectories creates the working directories unless
// workflows.auto_create_dirs is false.
func (c *Config) EnsureDirectories() error {
	if !c.Workflows.AutoCreateDirs {
		return nil
	}
	dirs := []string{
		c.Directories.Assets,
		c.Directories.Output,
		c.Directories.Cache,
		c.OutputStructure.Datasets,
		c.OutputStructure.Analysis,
		c.OutputStructure.Plots,
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	return nil
}

// Init writes a commented default config.yaml into projectDir when none
// exists and creates the working, plugin and workflow directories.
func Init(projectDir string) (*Config, error) {
	if err := ensureProjectConfig(filepath.Join(projectDir, FileName)); err != nil {
		return nil, fmt.Errorf("config: write default config: %w", err)
	}
	cfg, err := Load(projectDir, "")
	if err != nil {
		return nil, err
	}
	dirs := []string{cfg.Tools.Analyzers, cfg.Tools.Plotters, cfg.Tools.Tools, cfg.Workflows.Dir, cfg.Logging.Dir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
