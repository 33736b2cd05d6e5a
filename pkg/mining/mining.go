// Package mining builds a labeled defect dataset from a repository history and
// an issue tracker: it aligns releases, binds commits to releases, links fix
// commits to tickets, estimates injected versions, replays diffs into per-class
// metrics and propagates buggy labels backward across affected releases.
//
// The engine is sequential: binding and replay depend on strict time order.
package mining

import (
	"context"
	"errors"

	"github.com/Sumatoshi-tech/defectlab/pkg/gitlib"
	"github.com/Sumatoshi-tech/defectlab/pkg/tracker"
)

// Sentinel errors.
var (
	// ErrAlignmentFailure means no tracker release matched a repository tag.
	ErrAlignmentFailure = errors.New("no common releases between tracker and repository")
	// ErrNoCommits means the aligned release span holds no commits.
	ErrNoCommits = errors.New("no commits in the aligned release span")
	// ErrEmptyDataset means filtering left no usable release.
	ErrEmptyDataset = errors.New("dataset has no usable release")
)

// Repository is the read-only version control access the engine needs.
type Repository interface {
	Tags(ctx context.Context) ([]gitlib.Tag, error)
	Commits(ctx context.Context, from, to string) ([]gitlib.CommitInfo, error)
	Files(ctx context.Context, commitID string, filter gitlib.PathFilter) ([]gitlib.File, error)
	DiffCommits(ctx context.Context, oldID, newID string, lines gitlib.PathFilter) ([]gitlib.Change, error)
}

// Tracker is the issue tracker access the engine needs.
type Tracker interface {
	Releases(ctx context.Context) ([]tracker.Release, error)
	Tickets(ctx context.Context) ([]tracker.Ticket, error)
}

// Stats counts what each mining phase kept, dropped and recovered from.
type Stats struct {
	TrackerReleases  int `yaml:"tracker_releases"`
	Tags             int `yaml:"tags"`
	AlignedReleases  int `yaml:"aligned_releases"`
	CommitsFetched   int `yaml:"commits_fetched"`
	CommitsBound     int `yaml:"commits_bound"`
	CommitsUnbound   int `yaml:"commits_unbound"`
	TicketsFetched   int `yaml:"tickets_fetched"`
	TicketsOutOfSpan int `yaml:"tickets_out_of_span"`
	TicketsUnmatched int `yaml:"tickets_unmatched"`
	TicketsEstimated int `yaml:"tickets_estimated"`
	FixCommits       int `yaml:"fix_commits"`
	DiffsReplayed    int `yaml:"diffs_replayed"`
	DiffsSkipped     int `yaml:"diffs_skipped"`
	LabelsApplied    int `yaml:"labels_applied"`
	MissingSnapshots int `yaml:"missing_snapshots"`

	Filter FilterReport `yaml:"filter"`
}

// Phase names a step of the mining run.
type Phase string

// Mining phases in execution order.
const (
	PhaseAlign     Phase = "align"
	PhaseHistory   Phase = "history"
	PhaseTickets   Phase = "tickets"
	PhaseSnapshots Phase = "snapshots"
	PhaseReplay    Phase = "replay"
	PhaseFilter    Phase = "filter"
)

// Event reports progress within a phase.
type Event struct {
	Phase Phase
	Done  int
	Total int
}

// ProgressFunc observes mining progress. It must not block.
type ProgressFunc func(Event)
