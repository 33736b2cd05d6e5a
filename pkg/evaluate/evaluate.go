// Package evaluate runs the walk-forward evaluation of a mined dataset: for
// every release ordinal i from 2 on, every grid configuration is trained on
// the releases before i and tested on release i.
//
// The evaluator never implements learning itself; classifiers, resamplers
// and feature selectors are resolved through Strategies.
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/defectlab/pkg/dataset"
	"github.com/Sumatoshi-tech/defectlab/pkg/learn"
	"github.com/Sumatoshi-tech/defectlab/pkg/observability"
)

const tracerName = "defectlab/evaluate"

var (
	// ErrNoOrdinals is returned when the dataset has fewer than two releases.
	ErrNoOrdinals = errors.New("dataset has no release to test")
	// ErrDegenerateFold marks a cell whose folds cannot be evaluated.
	ErrDegenerateFold = errors.New("degenerate fold")
)

// CostMatrix holds the misclassification costs.
type CostMatrix struct {
	FalsePositive float64
	FalseNegative float64
}

// DefaultCostMatrix weighs a missed defect ten times a false alarm.
func DefaultCostMatrix() CostMatrix {
	return CostMatrix{FalsePositive: 1, FalseNegative: 10}
}

// Threshold is the probability above which predicting buggy minimizes the
// expected cost.
func (c CostMatrix) Threshold() float64 {
	return c.FalsePositive / (c.FalsePositive + c.FalseNegative)
}

// Strategies resolves grid names to learning strategies. Resampler and
// Selector are not called for the "none" modes.
type Strategies struct {
	Classifier func(Classifier) (learn.Classifier, error)
	Resampler  func(Resampling) (learn.Resampler, error)
	Selector   func(FeatureSelection) (learn.FeatureSelector, error)
}

// DefaultStrategies returns the reference implementations of package learn.
func DefaultStrategies() Strategies {
	return Strategies{
		Classifier: func(c Classifier) (learn.Classifier, error) {
			switch c {
			case RandomForest:
				return learn.NewRandomForest(learn.DefaultTrees), nil
			case NaiveBayes:
				return learn.NewNaiveBayes(), nil
			case IBk:
				return learn.NewIBk(1), nil
			default:
				return nil, fmt.Errorf("%w: classifier %q", ErrInvalidGrid, c)
			}
		},
		Resampler: func(r Resampling) (learn.Resampler, error) {
			switch r {
			case Oversampling:
				return learn.Oversampler{}, nil
			case Undersampling:
				return learn.Undersampler{}, nil
			case SMOTE:
				return learn.SMOTE{Neighbours: learn.DefaultNeighbours}, nil
			default:
				return nil, fmt.Errorf("%w: resampling %q", ErrInvalidGrid, r)
			}
		},
		Selector: func(fs FeatureSelection) (learn.FeatureSelector, error) {
			if fs == BestFirst {
				return learn.CFS{}, nil
			}

			return nil, fmt.Errorf("%w: feature selection %q", ErrInvalidGrid, fs)
		},
	}
}

// Options configures an evaluation run.
type Options struct {
	Project string
	Grid    Grid
	Cost    CostMatrix
	// Workers bounds concurrently evaluated cells; zero means GOMAXPROCS.
	Workers int
	// Seed makes runs reproducible; each cell derives its generator from
	// Seed and its index.
	Seed uint64
}

// Event reports one finished cell. Observers are called sequentially.
type Event struct {
	Done, Total   int
	Configuration Configuration
	Ordinal       int
	Status        Status
}

// ProgressFunc observes evaluation progress.
type ProgressFunc func(Event)

// Evaluator runs the walk-forward evaluation.
type Evaluator struct {
	opts       Options
	strategies Strategies
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    *observability.EvaluationMetrics
	progress   ProgressFunc
}

// Option customizes an Evaluator.
type Option func(*Evaluator)

// WithStrategies replaces the reference strategies.
func WithStrategies(s Strategies) Option {
	return func(e *Evaluator) { e.strategies = s }
}

// WithLogger sets the evaluator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = logger }
}

// WithTracer sets the tracer used for run and cell spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Evaluator) { e.tracer = tracer }
}

// WithMetrics sets the instruments cells are recorded into.
func WithMetrics(metrics *observability.EvaluationMetrics) Option {
	return func(e *Evaluator) { e.metrics = metrics }
}

// WithProgress registers a progress observer.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Evaluator) { e.progress = fn }
}

// NewEvaluator creates an evaluator. A zero cost matrix becomes the default one.
func NewEvaluator(opts Options, options ...Option) *Evaluator {
	if opts.Cost == (CostMatrix{}) {
		opts.Cost = DefaultCostMatrix()
	}

	e := &Evaluator{
		opts:       opts,
		strategies: DefaultStrategies(),
		logger:     slog.Default(),
		tracer:     otel.Tracer(tracerName),
	}

	for _, opt := range options {
		opt(e)
	}

	return e
}

type cell struct {
	index   int
	config  Configuration
	ordinal int
}

// Run evaluates every (configuration, ordinal) cell of the grid. The rows
// are only read. A failing cell is recorded with StatusFailed and does not
// stop the others; only cancellation aborts the run.
func (e *Evaluator) Run(ctx context.Context, rows []dataset.Row) (*Results, error) {
	if err := e.opts.Grid.Validate(); err != nil {
		return nil, err
	}

	ordinals := Ordinals(rows)
	if len(ordinals) == 0 {
		return nil, fmt.Errorf("%w: %d rows", ErrNoOrdinals, len(rows))
	}

	configs := e.opts.Grid.Configurations()

	cells := make([]cell, 0, len(configs)*len(ordinals))
	for _, cfg := range configs {
		for _, ord := range ordinals {
			cells = append(cells, cell{index: len(cells), config: cfg, ordinal: ord})
		}
	}

	workers := e.opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	ctx, span := e.tracer.Start(ctx, "evaluate.run", trace.WithAttributes(
		attribute.String("project", e.opts.Project),
		attribute.Int("cells", len(cells)),
		attribute.Int("workers", workers),
	))
	defer span.End()

	start := time.Now()
	folds := make(map[int]Fold, len(ordinals))

	for _, ord := range ordinals {
		folds[ord] = Split(rows, ord)
	}

	cellResults := make([]Result, len(cells))

	var (
		progressMu sync.Mutex
		done       int
	)

	report := func(r Result) {
		progressMu.Lock()
		defer progressMu.Unlock()

		done++

		if e.progress != nil {
			e.progress(Event{Done: done, Total: len(cells), Configuration: r.Configuration, Ordinal: r.Ordinal, Status: r.Status})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, c := range cells {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			cellResults[c.index] = e.evaluateCell(gctx, c, folds[c.ordinal])
			report(cellResults[c.index])

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, fmt.Errorf("evaluation interrupted: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("evaluation interrupted: %w", err)
	}

	results := &Results{Project: e.opts.Project, Rows: make([]Result, 0, len(cells)+len(configs))}

	for i, cfg := range configs {
		group := cellResults[i*len(ordinals) : (i+1)*len(ordinals)]

		for _, r := range group {
			if r.Status == StatusFailed {
				results.Failed++
			}
		}

		results.Rows = append(results.Rows, group...)
		results.Rows = append(results.Rows, Mean(e.opts.Project, cfg, group))
	}

	e.logger.InfoContext(ctx, "evaluation complete",
		"project", e.opts.Project,
		"configurations", len(configs),
		"ordinals", len(ordinals),
		"cells", len(cells),
		"failed", results.Failed,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return results, nil
}

func (e *Evaluator) evaluateCell(ctx context.Context, c cell, fold Fold) Result {
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "evaluate.cell", trace.WithAttributes(
		attribute.String("configuration", c.config.String()),
		attribute.Int("ordinal", c.ordinal),
	))
	defer span.End()

	result, err := e.score(c, fold)
	if err != nil {
		result = failedResult(result, err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.WarnContext(ctx, "evaluation cell failed",
			"configuration", c.config.String(), "ordinal", c.ordinal, "error", err)
	}

	e.metrics.RecordCell(ctx, string(c.config.Classifier), string(result.Status), time.Since(start))

	return result
}

func (e *Evaluator) score(c cell, fold Fold) (Result, error) {
	result := Result{
		Project:          e.opts.Project,
		Configuration:    c.config,
		Ordinal:          c.ordinal,
		TrainingReleases: fold.TrainingReleases(),
		Status:           StatusOK,
	}

	if total := len(fold.Train) + len(fold.Test); total > 0 {
		result.TrainingPercent = 100 * float64(len(fold.Train)) / float64(total)
	}

	train, test := Instances(fold.Train), Instances(fold.Test)

	switch {
	case test.Len() == 0:
		return result, fmt.Errorf("%w: empty test fold", ErrDegenerateFold)
	case train.Len() == 0:
		return result, fmt.Errorf("%w: empty training fold", ErrDegenerateFold)
	case train.Positives() == 0 || train.Positives() == train.Len():
		return result, fmt.Errorf("%w: single-class training fold", ErrDegenerateFold)
	}

	rng := rand.New(rand.NewPCG(e.opts.Seed, uint64(c.index)))

	if c.config.Resampling != NoResampling {
		resampler, err := e.strategies.Resampler(c.config.Resampling)
		if err != nil {
			return result, err
		}

		train, err = resampler.Resample(train, rng)
		if err != nil {
			return result, fmt.Errorf("resample: %w", err)
		}
	}

	if c.config.FeatureSelection != NoSelection {
		selector, err := e.strategies.Selector(c.config.FeatureSelection)
		if err != nil {
			return result, err
		}

		cols, err := selector.Select(train)
		if err != nil {
			return result, fmt.Errorf("select features: %w", err)
		}

		train, test = train.Project(cols), test.Project(cols)
	}

	result.BuggyTrainPercent = buggyPercent(train)
	result.BuggyTestPercent = buggyPercent(test)

	threshold := 0.5

	switch c.config.Cost {
	case CostThreshold:
		threshold = e.opts.Cost.Threshold()
	case SensitiveLearning:
		train = learn.Reweight(train, e.opts.Cost.FalsePositive, e.opts.Cost.FalseNegative)
	case NoCost:
	}

	classifier, err := e.strategies.Classifier(c.config.Classifier)
	if err != nil {
		return result, err
	}

	if err := classifier.Fit(train, rng); err != nil {
		return result, fmt.Errorf("fit: %w", err)
	}

	scores, err := classifier.Score(test)
	if err != nil {
		return result, fmt.Errorf("score: %w", err)
	}

	for i, score := range scores {
		result.Add(score >= threshold, test.Y[i])
	}

	result.Precision = result.Confusion.Precision()
	result.Recall = result.Confusion.Recall()
	result.Kappa = result.Confusion.Kappa()
	result.AUC = AUC(scores, test.Y)

	return result, nil
}
