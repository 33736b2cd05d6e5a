package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricMiningRuns         = "defectlab.mining.runs.total"
	metricMiningDuration     = "defectlab.mining.duration.seconds"
	metricMiningReleases     = "defectlab.mining.releases.total"
	metricMiningClasses      = "defectlab.mining.classes.total"
	metricMiningCommits      = "defectlab.mining.commits.total"
	metricMiningDiffsSkipped = "defectlab.mining.diffs.skipped.total"
	metricMiningTickets      = "defectlab.mining.tickets.dropped.total"
	metricMiningLabels       = "defectlab.mining.labels.total"

	metricEvalCells        = "defectlab.evaluation.cells.total"
	metricEvalCellDuration = "defectlab.evaluation.cell.duration.seconds"

	attrProject    = "project"
	attrClassifier = "classifier"
	attrStatus     = "status"
)

// durationBucketBoundaries covers 10ms to 1h, from a single model fit to a
// full mining run of a large repository.
var durationBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800, 3600}

// metricBuilder accumulates instrument creation errors so a set of
// instruments is checked once.
type metricBuilder struct {
	meter metric.Meter
	err   error
}

func newMetricBuilder(mt metric.Meter) *metricBuilder {
	return &metricBuilder{meter: mt}
}

func (b *metricBuilder) counter(name, desc, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)

	return c
}

func (b *metricBuilder) histogram(name, desc, unit string, bounds ...float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{
		metric.WithDescription(desc),
		metric.WithUnit(unit),
	}

	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}

	h, err := b.meter.Float64Histogram(name, opts...)
	b.setErr(name, err)

	return h
}

func (b *metricBuilder) setErr(name string, err error) {
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("create %s: %w", name, err)
	}
}

// MiningMetrics holds OTel instruments for dataset mining.
type MiningMetrics struct {
	runs         metric.Int64Counter
	duration     metric.Float64Histogram
	releases     metric.Int64Counter
	classes      metric.Int64Counter
	commits      metric.Int64Counter
	diffsSkipped metric.Int64Counter
	tickets      metric.Int64Counter
	labels       metric.Int64Counter
}

// MiningStats summarizes one mining run, decoupled from mining types.
type MiningStats struct {
	Project        string
	Releases       int64
	Classes        int64
	Commits        int64
	DiffsSkipped   int64
	TicketsDropped int64
	Labels         int64
	Duration       time.Duration
}

// NewMiningMetrics creates mining instruments from the given meter.
func NewMiningMetrics(mt metric.Meter) (*MiningMetrics, error) {
	b := newMetricBuilder(mt)

	mm := &MiningMetrics{
		runs:         b.counter(metricMiningRuns, "Completed mining runs", "{run}"),
		duration:     b.histogram(metricMiningDuration, "Mining run duration in seconds", "s", durationBucketBoundaries...),
		releases:     b.counter(metricMiningReleases, "Releases in mined datasets", "{release}"),
		classes:      b.counter(metricMiningClasses, "Class records in mined datasets", "{class}"),
		commits:      b.counter(metricMiningCommits, "Commits replayed", "{commit}"),
		diffsSkipped: b.counter(metricMiningDiffsSkipped, "Commits whose diff could not be computed", "{commit}"),
		tickets:      b.counter(metricMiningTickets, "Tickets dropped as out of span or unmatched", "{ticket}"),
		labels:       b.counter(metricMiningLabels, "Buggy labels applied", "{label}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return mm, nil
}

// RecordRun records the statistics of a finished mining run. Safe on a nil receiver.
func (mm *MiningMetrics) RecordRun(ctx context.Context, stats MiningStats) {
	if mm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrProject, stats.Project))

	mm.runs.Add(ctx, 1, attrs)
	mm.duration.Record(ctx, stats.Duration.Seconds(), attrs)
	mm.releases.Add(ctx, stats.Releases, attrs)
	mm.classes.Add(ctx, stats.Classes, attrs)
	mm.commits.Add(ctx, stats.Commits, attrs)
	mm.diffsSkipped.Add(ctx, stats.DiffsSkipped, attrs)
	mm.tickets.Add(ctx, stats.TicketsDropped, attrs)
	mm.labels.Add(ctx, stats.Labels, attrs)
}

// EvaluationMetrics holds OTel instruments for the walk-forward evaluation.
type EvaluationMetrics struct {
	cells        metric.Int64Counter
	cellDuration metric.Float64Histogram
}

// NewEvaluationMetrics creates evaluation instruments from the given meter.
func NewEvaluationMetrics(mt metric.Meter) (*EvaluationMetrics, error) {
	b := newMetricBuilder(mt)

	em := &EvaluationMetrics{
		cells:        b.counter(metricEvalCells, "Evaluated grid cells by status", "{cell}"),
		cellDuration: b.histogram(metricEvalCellDuration, "Per-cell train and score duration in seconds", "s", durationBucketBoundaries...),
	}

	if b.err != nil {
		return nil, b.err
	}

	return em, nil
}

// RecordCell records one evaluated cell. Safe on a nil receiver.
func (em *EvaluationMetrics) RecordCell(ctx context.Context, classifier, status string, duration time.Duration) {
	if em == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrClassifier, classifier),
		attribute.String(attrStatus, status),
	)

	em.cells.Add(ctx, 1, attrs)
	em.cellDuration.Record(ctx, duration.Seconds(), attrs)
}
