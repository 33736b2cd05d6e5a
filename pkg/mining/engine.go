package mining

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/defectlab/pkg/dataset"
	"github.com/Sumatoshi-tech/defectlab/pkg/gitlib"
	"github.com/Sumatoshi-tech/defectlab/pkg/observability"
)

const (
	tracerName = "defectlab/mining"
	spanPrefix = "mining."
)

// Options configures a mining run.
type Options struct {
	Project string
	Align   AlignOptions
	// Extensions are the tracked source file extensions.
	Extensions   []string
	SkipVendored bool
	Proportion   ProportionOptions
	Filter       FilterOptions
}

// Engine runs the mining phases in order against one repository and tracker.
type Engine struct {
	repo     Repository
	tracker  Tracker
	opts     Options
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *observability.MiningMetrics
	progress ProgressFunc
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithTracer sets the tracer used for phase spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) { e.tracer = tracer }
}

// WithMetrics sets the instruments a finished run is recorded into.
func WithMetrics(metrics *observability.MiningMetrics) Option {
	return func(e *Engine) { e.metrics = metrics }
}

// WithProgress registers a progress observer.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) { e.progress = fn }
}

// NewEngine creates a mining engine.
func NewEngine(repo Repository, trk Tracker, opts Options, options ...Option) *Engine {
	e := &Engine{
		repo:    repo,
		tracker: trk,
		opts:    opts,
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}

	for _, opt := range options {
		opt(e)
	}

	return e
}

// Run mines the dataset. Only alignment failures, fetch failures and
// cancellation abort the run; per-commit and per-ticket problems are counted
// in Stats and logged.
func (e *Engine) Run(ctx context.Context) (*dataset.Dataset, Stats, error) {
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, spanPrefix+"run",
		trace.WithAttributes(attribute.String("project", e.opts.Project)))
	defer span.End()

	var stats Stats

	ds, err := e.run(ctx, &stats)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, stats, err
	}

	e.metrics.RecordRun(ctx, observability.MiningStats{
		Project:        e.opts.Project,
		Releases:       int64(ds.NumReleases()),
		Classes:        int64(ds.NumClasses()),
		Commits:        int64(stats.DiffsReplayed),
		DiffsSkipped:   int64(stats.DiffsSkipped),
		TicketsDropped: int64(stats.TicketsOutOfSpan + stats.TicketsUnmatched),
		Labels:         int64(stats.LabelsApplied),
		Duration:       time.Since(start),
	})

	e.logger.InfoContext(ctx, "mining complete",
		"project", e.opts.Project,
		"releases", ds.NumReleases(),
		"classes", ds.NumClasses(),
		"fix_commits", stats.FixCommits,
		"labels", stats.LabelsApplied,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return ds, stats, nil
}

func (e *Engine) run(ctx context.Context, stats *Stats) (*dataset.Dataset, error) {
	filter := SourceFilter(e.opts.Extensions, e.opts.SkipVendored)

	align, err := e.align(ctx, stats)
	if err != nil {
		return nil, err
	}

	commits, err := e.history(ctx, align, stats)
	if err != nil {
		return nil, err
	}

	tickets, commits, err := e.tickets(ctx, align, commits, stats)
	if err != nil {
		return nil, err
	}

	ds := &dataset.Dataset{
		Project:  e.opts.Project,
		Releases: align.Releases,
		Commits:  commits,
		Tickets:  tickets,
	}

	err = e.snapshots(ctx, ds, filter)
	if err != nil {
		return nil, err
	}

	err = e.replay(ctx, ds, filter, stats)
	if err != nil {
		return nil, err
	}

	filtered, report := FilterSnoring(ds, e.opts.Filter)
	stats.Filter = report
	e.emit(PhaseFilter, filtered.NumReleases(), ds.NumReleases())

	if len(report.Uniform) > 0 || len(report.Dropped) > 0 {
		e.logger.InfoContext(ctx, "no-snoring filter truncated history",
			"uniform", report.Uniform, "dropped", report.Dropped, "kept", len(report.Kept))
	}

	if filtered.NumReleases() == 0 {
		return nil, fmt.Errorf("%w: %d releases before filtering", ErrEmptyDataset, ds.NumReleases())
	}

	return filtered, nil
}

func (e *Engine) align(ctx context.Context, stats *Stats) (Alignment, error) {
	ctx, span := e.tracer.Start(ctx, spanPrefix+string(PhaseAlign))
	defer span.End()

	releases, err := e.tracker.Releases(ctx)
	if err != nil {
		return Alignment{}, fmt.Errorf("fetch tracker releases: %w", err)
	}

	tags, err := e.repo.Tags(ctx)
	if err != nil {
		return Alignment{}, fmt.Errorf("fetch tags: %w", err)
	}

	stats.TrackerReleases = len(releases)
	stats.Tags = len(tags)

	align, err := AlignReleases(releases, tags, e.opts.Align)
	if err != nil {
		return Alignment{}, err
	}

	stats.AlignedReleases = align.Len()
	e.emit(PhaseAlign, align.Len(), len(releases))

	e.logger.InfoContext(ctx, "releases aligned",
		"tracker", len(releases), "tags", len(tags), "aligned", align.Len(),
		"first", align.Releases[0].Name, "last", align.Releases[align.Len()-1].Name)

	return align, nil
}

func (e *Engine) history(ctx context.Context, align Alignment, stats *Stats) ([]dataset.Commit, error) {
	ctx, span := e.tracer.Start(ctx, spanPrefix+string(PhaseHistory))
	defer span.End()

	first, last := align.Releases[0], align.Releases[align.Len()-1]

	// History before the first aligned tag belongs to no release.
	infos, err := e.repo.Commits(ctx, first.CommitID, last.CommitID)
	if err != nil {
		return nil, fmt.Errorf("fetch commits: %w", err)
	}

	commits := make([]dataset.Commit, 0, len(infos))
	for _, info := range infos {
		commits = append(commits, commitFromInfo(info))
	}

	bound, unbound := BindRevisions(commits, align.Releases)

	stats.CommitsFetched = len(commits)
	stats.CommitsBound = len(bound)
	stats.CommitsUnbound = unbound
	e.emit(PhaseHistory, len(bound), len(commits))

	if len(bound) == 0 {
		return nil, fmt.Errorf("%w: up to %s", ErrNoCommits, last.Name)
	}

	span.SetAttributes(attribute.Int("commits", len(bound)))

	return bound, nil
}

func (e *Engine) tickets(
	ctx context.Context, align Alignment, commits []dataset.Commit, stats *Stats,
) ([]dataset.Ticket, []dataset.Commit, error) {
	ctx, span := e.tracer.Start(ctx, spanPrefix+string(PhaseTickets))
	defer span.End()

	raw, err := e.tracker.Tickets(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch tickets: %w", err)
	}

	stats.TicketsFetched = len(raw)

	resolved, outOfSpan := ResolveTickets(raw, align)
	stats.TicketsOutOfSpan = len(outOfSpan)

	matched := MatchTickets(resolved, commits)
	stats.TicketsUnmatched = len(matched.Unmatched)

	for _, key := range matched.Unmatched {
		e.logger.DebugContext(ctx, "dropping ticket without fix commit", "ticket", key)
	}

	for _, c := range matched.Commits {
		if c.IsFix {
			stats.FixCommits++
		}
	}

	estimated := EstimateInjected(matched.Tickets, e.opts.Proportion)

	for _, t := range estimated {
		if t.Estimated {
			stats.TicketsEstimated++
		}
	}

	e.emit(PhaseTickets, len(estimated), len(raw))

	e.logger.InfoContext(ctx, "tickets linked",
		"fetched", len(raw), "out_of_span", len(outOfSpan), "unmatched", len(matched.Unmatched),
		"retained", len(estimated), "estimated", stats.TicketsEstimated,
		"strategy", string(e.opts.Proportion.Strategy))

	return estimated, matched.Commits, nil
}

func (e *Engine) snapshots(ctx context.Context, ds *dataset.Dataset, filter gitlib.PathFilter) error {
	ctx, span := e.tracer.Start(ctx, spanPrefix+string(PhaseSnapshots))
	defer span.End()

	// Classes that predate the history start are dated at the first release.
	oldest := ds.Releases[0].Date
	ds.Snapshots = make([]*dataset.Snapshot, 0, len(ds.Releases))

	for i, rel := range ds.Releases {
		files, err := e.repo.Files(ctx, rel.CommitID, filter)
		if err != nil {
			return fmt.Errorf("list files of %s: %w", rel.Name, err)
		}

		sizes := make([]dataset.FileSize, len(files))
		for j, f := range files {
			sizes[j] = dataset.FileSize{Path: f.Path, Lines: f.Lines}
		}

		ds.Snapshots = append(ds.Snapshots, dataset.NewSnapshot(rel, sizes, oldest))
		e.emit(PhaseSnapshots, i+1, len(ds.Releases))
	}

	return nil
}

func (e *Engine) replay(ctx context.Context, ds *dataset.Dataset, filter gitlib.PathFilter, stats *Stats) error {
	ctx, span := e.tracer.Start(ctx, spanPrefix+string(PhaseReplay))
	defer span.End()

	labeler := NewLabeler(ds, ds.Tickets, stats)
	acc := NewAccumulator(e.repo, ds, labeler, filter, stats, e.logger)
	acc.OnProgress(e.progress)

	err := acc.Replay(ctx, ds.Commits)
	if err != nil {
		return fmt.Errorf("replay history: %w", err)
	}

	FinalizeAge(ds)

	if stats.DiffsSkipped > 0 {
		e.logger.WarnContext(ctx, "some commits did not contribute metrics", "skipped", stats.DiffsSkipped)
	}

	return nil
}

func (e *Engine) emit(phase Phase, done, total int) {
	if e.progress != nil {
		e.progress(Event{Phase: phase, Done: done, Total: total})
	}
}

func commitFromInfo(info gitlib.CommitInfo) dataset.Commit {
	return dataset.Commit{
		ID:          info.ID,
		Timestamp:   info.When,
		ParentID:    info.ParentID,
		AuthorName:  info.AuthorName,
		AuthorEmail: info.AuthorEmail,
		Message:     info.Message,
	}
}
