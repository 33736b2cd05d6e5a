package config

import (
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/defectlab/pkg/tracker"
)

// Tracker defaults.
const (
	DefaultTrackerKind     = TrackerJira
	DefaultTrackerURL      = tracker.DefaultJiraURL
	DefaultTrackerPageSize = 100
	DefaultTrackerRate     = 5.0
	DefaultBugLabel        = "bug"
	DefaultAffectsPrefix   = "affects/"
)

// Mining defaults.
const (
	DefaultProportionStrategy = "incremental"
	DefaultWindowSize         = 5
	DefaultRatio              = 1.0
	DefaultFilterEnabled      = true
	DefaultFilterFraction     = 0.5
)

// Evaluation defaults.
const (
	DefaultWorkers       = 0
	DefaultSeed          = 1
	DefaultFalsePositive = 1.0
	DefaultFalseNegative = 10.0
)

// Output defaults.
const (
	DefaultOutputDir = "output"
	DefaultTop       = 10
)

// DefaultExtensions are the tracked source file extensions.
func DefaultExtensions() []string {
	return []string{".java"}
}

// DefaultExclude are the tag name fragments ignored during alignment.
func DefaultExclude() []string {
	return []string{"docker"}
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("project.name", "")
	v.SetDefault("project.repository", ".")

	v.SetDefault("tracker.kind", DefaultTrackerKind)
	v.SetDefault("tracker.url", DefaultTrackerURL)
	v.SetDefault("tracker.token", "")
	v.SetDefault("tracker.page_size", DefaultTrackerPageSize)
	v.SetDefault("tracker.rate_limit", DefaultTrackerRate)
	v.SetDefault("tracker.key", "")
	v.SetDefault("tracker.owner", "")
	v.SetDefault("tracker.repo", "")
	v.SetDefault("tracker.bug_label", DefaultBugLabel)
	v.SetDefault("tracker.affects_prefix", DefaultAffectsPrefix)

	v.SetDefault("mining.tag_prefixes", []string{})
	v.SetDefault("mining.exclude", DefaultExclude())
	v.SetDefault("mining.extensions", DefaultExtensions())
	v.SetDefault("mining.skip_vendored", true)
	v.SetDefault("mining.proportion.strategy", DefaultProportionStrategy)
	v.SetDefault("mining.proportion.window_size", DefaultWindowSize)
	v.SetDefault("mining.proportion.default_ratio", DefaultRatio)
	v.SetDefault("mining.filter.enabled", DefaultFilterEnabled)
	v.SetDefault("mining.filter.fraction", DefaultFilterFraction)

	v.SetDefault("evaluation.classifiers", []string{})
	v.SetDefault("evaluation.feature_selection", []string{})
	v.SetDefault("evaluation.resampling", []string{})
	v.SetDefault("evaluation.cost_sensitivity", []string{})
	v.SetDefault("evaluation.workers", DefaultWorkers)
	v.SetDefault("evaluation.seed", DefaultSeed)
	v.SetDefault("evaluation.cost.false_positive", DefaultFalsePositive)
	v.SetDefault("evaluation.cost.false_negative", DefaultFalseNegative)

	v.SetDefault("output.dir", DefaultOutputDir)
	v.SetDefault("output.snapshot", false)
	v.SetDefault("output.chart", false)
	v.SetDefault("output.top", DefaultTop)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", LogFormatText)

	v.SetDefault("observability.otlp_endpoint", "")
	v.SetDefault("observability.otlp_headers", "")
	v.SetDefault("observability.otlp_insecure", false)
	v.SetDefault("observability.sample_ratio", 1.0)
	v.SetDefault("observability.metrics_addr", "")
	v.SetDefault("observability.environment", "")
}
