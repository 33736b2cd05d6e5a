package config

import (
	"fmt"

	"github.com/Sumatoshi-tech/defectlab/pkg/evaluate"
	"github.com/Sumatoshi-tech/defectlab/pkg/mining"
	"github.com/Sumatoshi-tech/defectlab/pkg/observability"
)

// MiningOptions converts the mining section into engine options.
func (c *Config) MiningOptions() (mining.Options, error) {
	strategy, err := mining.ParseStrategy(c.Mining.Proportion.Strategy)
	if err != nil {
		return mining.Options{}, fmt.Errorf("mining.proportion.strategy: %w", err)
	}

	return mining.Options{
		Project: c.Project.Name,
		Align: mining.AlignOptions{
			TagPrefixes: c.Mining.TagPrefixes,
			Exclude:     c.Mining.Exclude,
		},
		Extensions:   c.Mining.Extensions,
		SkipVendored: c.Mining.SkipVendored,
		Proportion: mining.ProportionOptions{
			Strategy:     strategy,
			WindowSize:   c.Mining.Proportion.WindowSize,
			DefaultRatio: c.Mining.Proportion.DefaultRatio,
		},
		Filter: mining.FilterOptions{
			Enabled:  c.Mining.Filter.Enabled,
			Fraction: c.Mining.Filter.Fraction,
		},
	}, nil
}

// EvaluateOptions converts the evaluation section into evaluator options.
func (c *Config) EvaluateOptions(project string) (evaluate.Options, error) {
	e := c.Evaluation

	grid, err := evaluate.ParseGrid(e.Classifiers, e.FeatureSelections, e.Resamplings, e.CostSensitivities)
	if err != nil {
		return evaluate.Options{}, fmt.Errorf("evaluation grid: %w", err)
	}

	return evaluate.Options{
		Project: project,
		Grid:    grid,
		Cost:    evaluate.CostMatrix{FalsePositive: e.Cost.FalsePositive, FalseNegative: e.Cost.FalseNegative},
		Workers: e.Workers,
		Seed:    e.Seed,
	}, nil
}

// ObservabilityConfig converts the logging and observability sections.
func (c *Config) ObservabilityConfig(mode observability.AppMode, version, runID string) (observability.Config, error) {
	level, err := c.Logging.SlogLevel()
	if err != nil {
		return observability.Config{}, err
	}

	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version
	cfg.Environment = c.Observability.Environment
	cfg.Mode = mode
	cfg.RunID = runID
	cfg.OTLPEndpoint = c.Observability.OTLPEndpoint
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(c.Observability.OTLPHeaders)
	cfg.OTLPInsecure = c.Observability.OTLPInsecure
	cfg.SampleRatio = c.Observability.SampleRatio
	cfg.Prometheus = c.Observability.MetricsAddr != ""
	cfg.LogLevel = level
	cfg.LogJSON = c.Logging.Format == LogFormatJSON

	return cfg, nil
}
