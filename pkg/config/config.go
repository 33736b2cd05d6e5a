// Package config loads and validates defectlab configuration.
//
// Values are layered: built-in defaults, then a YAML file, then DEFECTLAB_*
// environment variables. A .env file next to the working directory or the
// config file is loaded into the environment first and never overrides
// variables that are already set.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidProject    = errors.New("project name is required")
	ErrInvalidTracker    = errors.New("invalid tracker configuration")
	ErrInvalidWorkers    = errors.New("evaluation workers must not be negative")
	ErrInvalidWindow     = errors.New("proportion window size must be positive")
	ErrInvalidRatio      = errors.New("proportion default ratio must be positive")
	ErrInvalidFraction   = errors.New("filter fraction must be in (0, 1]")
	ErrInvalidCost       = errors.New("misclassification costs must be positive")
	ErrInvalidLogLevel   = errors.New("invalid log level")
	ErrInvalidLogFormat  = errors.New("log format must be text or json")
	ErrInvalidSampleRate = errors.New("trace sample ratio must be in [0, 1]")
)

// Tracker kinds.
const (
	TrackerJira   = "jira"
	TrackerGitHub = "github"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

const (
	envPrefix  = "DEFECTLAB"
	configName = "defectlab"
	envFile    = ".env"
)

// Config holds all configuration of a defectlab run.
type Config struct {
	Project       ProjectConfig       `mapstructure:"project"`
	Tracker       TrackerConfig       `mapstructure:"tracker"`
	Mining        MiningConfig        `mapstructure:"mining"`
	Evaluation    EvaluationConfig    `mapstructure:"evaluation"`
	Output        OutputConfig        `mapstructure:"output"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ProjectConfig names the analyzed project and its local clone.
type ProjectConfig struct {
	Name       string `mapstructure:"name"`
	Repository string `mapstructure:"repository"`
}

// TrackerConfig selects and configures the issue tracker.
type TrackerConfig struct {
	Kind      string  `mapstructure:"kind"`
	URL       string  `mapstructure:"url"`
	Token     string  `mapstructure:"token"`
	PageSize  int     `mapstructure:"page_size"`
	RateLimit float64 `mapstructure:"rate_limit"`

	// Key is the Jira project key; defaults to the project name.
	Key string `mapstructure:"key"`

	Owner         string `mapstructure:"owner"`
	Repo          string `mapstructure:"repo"`
	BugLabel      string `mapstructure:"bug_label"`
	AffectsPrefix string `mapstructure:"affects_prefix"`
}

// MiningConfig controls dataset construction.
type MiningConfig struct {
	TagPrefixes  []string         `mapstructure:"tag_prefixes"`
	Exclude      []string         `mapstructure:"exclude"`
	Extensions   []string         `mapstructure:"extensions"`
	SkipVendored bool             `mapstructure:"skip_vendored"`
	Proportion   ProportionConfig `mapstructure:"proportion"`
	Filter       FilterConfig     `mapstructure:"filter"`
}

// ProportionConfig controls injected version estimation.
type ProportionConfig struct {
	Strategy     string  `mapstructure:"strategy"`
	WindowSize   int     `mapstructure:"window_size"`
	DefaultRatio float64 `mapstructure:"default_ratio"`
}

// FilterConfig controls the release consistency filter.
type FilterConfig struct {
	Enabled  bool    `mapstructure:"enabled"`
	Fraction float64 `mapstructure:"fraction"`
}

// EvaluationConfig controls the walk-forward evaluation grid.
type EvaluationConfig struct {
	Classifiers       []string   `mapstructure:"classifiers"`
	FeatureSelections []string   `mapstructure:"feature_selection"`
	Resamplings       []string   `mapstructure:"resampling"`
	CostSensitivities []string   `mapstructure:"cost_sensitivity"`
	Workers           int        `mapstructure:"workers"`
	Seed              uint64     `mapstructure:"seed"`
	Cost              CostConfig `mapstructure:"cost"`
}

// CostConfig is the misclassification cost matrix.
type CostConfig struct {
	FalsePositive float64 `mapstructure:"false_positive"`
	FalseNegative float64 `mapstructure:"false_negative"`
}

// OutputConfig controls where and what is written.
type OutputConfig struct {
	Dir      string `mapstructure:"dir"`
	Snapshot bool   `mapstructure:"snapshot"`
	Chart    bool   `mapstructure:"chart"`
	Top      int    `mapstructure:"top"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ObservabilityConfig holds tracing and metrics export settings.
type ObservabilityConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	MetricsAddr  string  `mapstructure:"metrics_addr"`
	Environment  string  `mapstructure:"environment"`
}

// LoadConfig loads configuration from file and environment variables. An
// empty configPath searches for defectlab.yaml in ., ./config and
// /etc/defectlab; a missing file there is not an error.
func LoadConfig(configPath string) (*Config, error) {
	loadEnvFiles(configPath)

	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/defectlab")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperCfg.AutomaticEnv()

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	applyEnvFallbacks(&config)

	return &config, nil
}

// Validate checks the configuration before a run. Project-dependent checks
// run only when requireProject is set, so evaluation of an existing dataset
// needs no tracker settings.
func (c *Config) Validate(requireProject bool) error {
	if requireProject {
		if c.Project.Name == "" {
			return ErrInvalidProject
		}

		err := c.Tracker.validate()
		if err != nil {
			return err
		}
	}

	p := c.Mining.Proportion
	if p.WindowSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWindow, p.WindowSize)
	}

	if p.DefaultRatio <= 0 {
		return fmt.Errorf("%w: %g", ErrInvalidRatio, p.DefaultRatio)
	}

	f := c.Mining.Filter.Fraction
	if f <= 0 || f > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidFraction, f)
	}

	if c.Evaluation.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Evaluation.Workers)
	}

	cost := c.Evaluation.Cost
	if cost.FalsePositive <= 0 || cost.FalseNegative <= 0 {
		return fmt.Errorf("%w: fp=%g fn=%g", ErrInvalidCost, cost.FalsePositive, cost.FalseNegative)
	}

	_, err := c.Logging.SlogLevel()
	if err != nil {
		return err
	}

	if c.Logging.Format != LogFormatText && c.Logging.Format != LogFormatJSON {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	ratio := c.Observability.SampleRatio
	if ratio < 0 || ratio > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidSampleRate, ratio)
	}

	return nil
}

func (t TrackerConfig) validate() error {
	switch t.Kind {
	case TrackerJira:
		return nil
	case TrackerGitHub:
		if t.Owner == "" || t.Repo == "" {
			return fmt.Errorf("%w: github tracker needs owner and repo", ErrInvalidTracker)
		}

		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTracker, t.Kind)
	}
}

// SlogLevel parses the configured level name.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(l.Level))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, l.Level)
	}

	return level, nil
}

// loadEnvFiles loads .env from the working directory and from the config
// file's directory, when present.
func loadEnvFiles(configPath string) {
	candidates := []string{envFile}

	if configPath != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(configPath), envFile))
	}

	for _, file := range candidates {
		_, err := os.Stat(file)
		if err != nil {
			continue
		}

		// Unreadable .env files are skipped; explicit variables still apply.
		_ = godotenv.Load(file)
	}
}

// applyEnvFallbacks fills the tracker token from the conventional variables
// of each tracker when DEFECTLAB_TRACKER_TOKEN is not set.
func applyEnvFallbacks(c *Config) {
	if c.Tracker.Token != "" {
		return
	}

	switch c.Tracker.Kind {
	case TrackerGitHub:
		c.Tracker.Token = os.Getenv("GITHUB_TOKEN")
	case TrackerJira:
		c.Tracker.Token = os.Getenv("JIRA_TOKEN")
	}
}
