package mining_test

import (
	"context"
	"errors"
	"time"

	"github.com/Sumatoshi-tech/defectlab/pkg/gitlib"
	"github.com/Sumatoshi-tech/defectlab/pkg/tracker"
)

var errBrokenDiff = errors.New("broken diff")

func day(month time.Month, d int) time.Time {
	return time.Date(2024, month, d, 12, 0, 0, 0, time.UTC)
}

// fakeRepo serves a scripted history.
type fakeRepo struct {
	tags    []gitlib.Tag
	commits []gitlib.CommitInfo
	files   map[string][]gitlib.File
	diffs   map[string][]gitlib.Change
	broken  map[string]bool

	// Range of the last Commits call.
	commitsFrom, commitsTo string
}

func (f *fakeRepo) Tags(context.Context) ([]gitlib.Tag, error) {
	return f.tags, nil
}

// Commits treats the scripted history as linear: from is included, an
// empty from starts at the root.
func (f *fakeRepo) Commits(_ context.Context, from, to string) ([]gitlib.CommitInfo, error) {
	f.commitsFrom, f.commitsTo = from, to

	lo, hi := 0, len(f.commits)

	for i, c := range f.commits {
		if c.ID == from {
			lo = i
		}

		if c.ID == to {
			hi = i + 1
		}
	}

	return f.commits[lo:hi], nil
}

func (f *fakeRepo) Files(_ context.Context, commitID string, filter gitlib.PathFilter) ([]gitlib.File, error) {
	var out []gitlib.File

	for _, file := range f.files[commitID] {
		if filter == nil || filter(file.Path) {
			out = append(out, file)
		}
	}

	return out, nil
}

func (f *fakeRepo) DiffCommits(_ context.Context, _, newID string, _ gitlib.PathFilter) ([]gitlib.Change, error) {
	if f.broken[newID] {
		return nil, errBrokenDiff
	}

	return f.diffs[newID], nil
}

type fakeTracker struct {
	releases []tracker.Release
	tickets  []tracker.Ticket
	err      error
}

func (f *fakeTracker) Releases(context.Context) ([]tracker.Release, error) {
	return f.releases, f.err
}

func (f *fakeTracker) Tickets(context.Context) ([]tracker.Ticket, error) {
	return f.tickets, f.err
}

func modify(path string, oldLines, newLines int) gitlib.Change {
	return gitlib.Change{
		Kind:    gitlib.Modify,
		OldPath: path,
		NewPath: path,
		Edits:   []gitlib.Edit{{OldLines: oldLines, NewLines: newLines}},
	}
}

func add(path string, lines int) gitlib.Change {
	return gitlib.Change{Kind: gitlib.Add, NewPath: path, Edits: []gitlib.Edit{{NewLines: lines}}}
}

// scriptedProject is a three release project, tagged v1 (Jan 1), v2 (Feb 1)
// and v3 (Mar 1).
func scriptedProject() (*fakeRepo, *fakeTracker) {
	commit := func(id string, when time.Time, author, msg, parent string) gitlib.CommitInfo {
		return gitlib.CommitInfo{ID: id, When: when, AuthorName: author, Message: msg, ParentID: parent}
	}

	repo := &fakeRepo{
		tags: []gitlib.Tag{
			{Name: "release-v1", CommitID: "c1", When: day(time.January, 1)},
			{Name: "release-v2", CommitID: "c3", When: day(time.February, 1)},
			{Name: "release-v3", CommitID: "c5", When: day(time.March, 1)},
			{Name: "docker-v3", CommitID: "c5", When: day(time.March, 1)},
		},
		commits: []gitlib.CommitInfo{
			commit("c1", day(time.January, 1), "alice", "initial import", ""),
			commit("c2", day(time.January, 15), "bob", "grow A", "c1"),
			commit("c3", day(time.February, 1), "alice", "add B", "c2"),
			commit("c4", day(time.February, 20), "carol", "BUG-1: fix A", "c3"),
			commit("c5", day(time.March, 1), "bob", "Fix BUG-3 in B", "c4"),
			commit("c6", day(time.March, 10), "bob", "after last release", "c5"),
		},
		files: map[string][]gitlib.File{
			"c1": {{Path: "src/A.java", Lines: 3}},
			"c3": {{Path: "src/A.java", Lines: 4}, {Path: "src/B.java", Lines: 4}, {Path: "README.md", Lines: 1}},
			"c5": {{Path: "src/A.java", Lines: 4}, {Path: "src/B.java", Lines: 5}},
		},
		diffs: map[string][]gitlib.Change{
			"c1": {add("src/A.java", 3)},
			"c2": {modify("src/A.java", 1, 2), modify("README.md", 0, 1)},
			"c3": {add("src/B.java", 4)},
			"c4": {modify("src/A.java", 1, 1)},
			"c5": {modify("src/B.java", 0, 1)},
		},
	}

	trk := &fakeTracker{
		releases: []tracker.Release{
			{Name: "v1", Date: day(time.January, 1), Released: true},
			{Name: "v2", Date: day(time.February, 1), Released: true},
			{Name: "v3", Date: day(time.March, 1), Released: true},
			{Name: "v4", Released: false},
		},
		tickets: []tracker.Ticket{
			{Key: "BUG-1", Created: day(time.January, 10), Resolved: day(time.February, 25), Affected: []string{"v1"}, Fixed: []string{"v3"}},
			{Key: "BUG-2", Created: day(time.January, 11), Resolved: day(time.February, 26), Fixed: []string{"v3"}},
			{Key: "BUG-3", Created: day(time.January, 20), Resolved: day(time.February, 28), Fixed: []string{"v3"}},
		},
	}

	return repo, trk
}
