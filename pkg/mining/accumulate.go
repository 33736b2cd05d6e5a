package mining

import (
	"context"
	"log/slog"

	"github.com/Sumatoshi-tech/defectlab/pkg/dataset"
	"github.com/Sumatoshi-tech/defectlab/pkg/gitlib"
)

// Accumulator replays the commit history into the per-release class metrics.
type Accumulator struct {
	repo     Repository
	ds       *dataset.Dataset
	labeler  *Labeler
	filter   gitlib.PathFilter
	stats    *Stats
	logger   *slog.Logger
	progress ProgressFunc
}

// NewAccumulator creates an accumulator writing into ds. Only paths accepted
// by filter are tracked.
func NewAccumulator(
	repo Repository, ds *dataset.Dataset, labeler *Labeler, filter gitlib.PathFilter, stats *Stats, logger *slog.Logger,
) *Accumulator {
	if stats == nil {
		stats = &Stats{}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Accumulator{repo: repo, ds: ds, labeler: labeler, filter: filter, stats: stats, logger: logger}
}

// OnProgress registers a progress observer.
func (a *Accumulator) OnProgress(fn ProgressFunc) {
	a.progress = fn
}

// Replay diffs every commit against its predecessor in commits, the first one
// against its parent, and folds the changes into the snapshot of the release
// the commit is bound to. A commit whose diff fails is logged and skipped.
// Commits must be bound and time ordered.
func (a *Accumulator) Replay(ctx context.Context, commits []dataset.Commit) error {
	for i, c := range commits {
		if err := ctx.Err(); err != nil {
			return err
		}

		from := c.ParentID
		if i > 0 {
			from = commits[i-1].ID
		}

		changes, err := a.repo.DiffCommits(ctx, from, c.ID, a.filter)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			a.stats.DiffsSkipped++
			a.logger.WarnContext(ctx, "skipping commit with failing diff", "commit", c.ID, "error", err)

			continue
		}

		a.Apply(c, changes)
		a.stats.DiffsReplayed++

		if a.progress != nil {
			a.progress(Event{Phase: PhaseReplay, Done: i + 1, Total: len(commits)})
		}
	}

	return nil
}

// Apply folds the changes of one commit into its bound release snapshot.
func (a *Accumulator) Apply(c dataset.Commit, changes []gitlib.Change) {
	snap, ok := a.ds.Snapshot(c.Release)
	if !ok {
		return
	}

	churn := len(changes)

	for _, change := range changes {
		path := change.Path()
		if a.filter != nil && !a.filter(path) {
			continue
		}

		cls, ok := snap.Lookup(path)
		if !ok {
			// Deleted or renamed away before the release was cut.
			continue
		}

		cls.Analyzed = true

		switch change.Kind {
		case gitlib.Rename:
			if old, found := a.renameSource(c.Release, change.OldPath); found {
				size := cls.Metrics.Size
				cls.Metrics = old.Metrics.Clone()
				cls.Metrics.Size = size
			}

			if c.IsFix && a.labeler != nil {
				a.labeler.Propagate(c, change.OldPath)
			}
		case gitlib.Add:
			a.markAdded(path, c)
		case gitlib.Modify:
			cls.Metrics.LocTouched += change.LinesAdded() + change.LinesDeleted()
		case gitlib.Delete:
		}

		if c.IsFix {
			if a.labeler != nil {
				a.labeler.Propagate(c, path)
			}

			cls.Metrics.BugFixes++
		}

		cls.Metrics.AddRevision(c.AuthorName, churn, change.LinesAdded())
	}
}

// renameSource finds the class a rename moved away from: in the bound
// release when it still lists the old path, otherwise in the latest earlier
// release that does.
func (a *Accumulator) renameSource(release int, oldPath string) (*dataset.Class, bool) {
	for ord := release; ord >= 1; ord-- {
		snap, ok := a.ds.Snapshot(ord)
		if !ok {
			continue
		}

		if cls, found := snap.Lookup(oldPath); found {
			return cls, true
		}
	}

	return nil, false
}

// markAdded records the addition date on the bound release and every later one.
func (a *Accumulator) markAdded(path string, c dataset.Commit) {
	for ord := c.Release; ord <= a.ds.NumReleases(); ord++ {
		snap, _ := a.ds.Snapshot(ord)

		if cls, ok := snap.Lookup(path); ok {
			cls.DateAdded = c.Timestamp
		}
	}
}

// FinalizeAge sets the age of every class from its addition date and release date.
func FinalizeAge(ds *dataset.Dataset) {
	for _, snap := range ds.Snapshots {
		for i := range snap.Classes {
			cls := &snap.Classes[i]
			cls.Metrics.Age = dataset.WeeksBetween(cls.DateAdded, snap.Release.Date)
		}
	}
}
