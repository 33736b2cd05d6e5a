package dataset

import (
	"slices"
	"sort"
	"time"
)

// hoursPerWeek converts durations to whole weeks for class age.
const hoursPerWeek = 24 * 7

// Metrics accumulates per-class change statistics.
type Metrics struct {
	Size        int
	LocTouched  int
	LocAdded    int
	MaxLocAdded int
	Churn       int
	MaxChurn    int
	Revisions   int
	BugFixes    int
	Age         int
	// Authors is the sorted set of distinct author names.
	Authors []string
}

// AddRevision records one revision touching the class.
func (m *Metrics) AddRevision(author string, churn, locAdded int) {
	m.Revisions++
	m.Churn += churn
	m.MaxChurn = max(m.MaxChurn, churn)
	m.LocAdded += locAdded
	m.MaxLocAdded = max(m.MaxLocAdded, locAdded)
	m.AddAuthor(author)
}

// AddAuthor folds an author identity into the distinct author set.
func (m *Metrics) AddAuthor(author string) {
	idx, found := slices.BinarySearch(m.Authors, author)
	if !found {
		m.Authors = slices.Insert(m.Authors, idx, author)
	}
}

// DistinctAuthors returns the number of distinct authors.
func (m *Metrics) DistinctAuthors() int {
	return len(m.Authors)
}

// AvgLocAdded returns lines added per revision.
func (m *Metrics) AvgLocAdded() float64 {
	return perRevision(m.LocAdded, m.Revisions)
}

// AvgChurn returns changed files per revision.
func (m *Metrics) AvgChurn() float64 {
	return perRevision(m.Churn, m.Revisions)
}

// Clone returns a deep copy.
func (m Metrics) Clone() Metrics {
	m.Authors = slices.Clone(m.Authors)

	return m
}

func perRevision(total, revisions int) float64 {
	if revisions == 0 {
		return 0
	}

	return float64(total) / float64(revisions)
}

// WeeksBetween returns the whole weeks from since to until, never negative.
func WeeksBetween(since, until time.Time) int {
	if !until.After(since) {
		return 0
	}

	return int(until.Sub(since).Hours() / hoursPerWeek)
}

// Class is one source file as it exists in one release.
type Class struct {
	Path      string
	Release   int
	Buggy     bool
	Analyzed  bool
	DateAdded time.Time
	Metrics   Metrics
}

// Snapshot is the set of classes present in one release, in path order.
type Snapshot struct {
	Release Release
	Classes []Class

	index map[string]int
}

// FileSize pairs a tracked path with its line count.
type FileSize struct {
	Path  string
	Lines int
}

// NewSnapshot builds the snapshot of rel from its file listing. Every class
// starts with the given addition date.
func NewSnapshot(rel Release, files []FileSize, added time.Time) *Snapshot {
	classes := make([]Class, 0, len(files))

	for _, f := range files {
		classes = append(classes, Class{
			Path:      f.Path,
			Release:   rel.Ordinal,
			DateAdded: added,
			Metrics:   Metrics{Size: f.Lines},
		})
	}

	sort.Slice(classes, func(i, j int) bool { return classes[i].Path < classes[j].Path })

	snap := &Snapshot{Release: rel, Classes: classes}
	snap.Reindex()

	return snap
}

// Reindex rebuilds the path lookup table. Decoders call it after filling Classes.
func (s *Snapshot) Reindex() {
	s.index = make(map[string]int, len(s.Classes))

	for i, c := range s.Classes {
		s.index[c.Path] = i
	}
}

// Len returns the number of classes.
func (s *Snapshot) Len() int {
	return len(s.Classes)
}

// Lookup returns the class at path, or false when the release does not contain it.
func (s *Snapshot) Lookup(path string) (*Class, bool) {
	if s.index == nil {
		s.Reindex()
	}

	idx, ok := s.index[path]
	if !ok {
		return nil, false
	}

	return &s.Classes[idx], true
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{Release: s.Release, Classes: make([]Class, len(s.Classes))}

	for i, c := range s.Classes {
		c.Metrics = c.Metrics.Clone()
		out.Classes[i] = c
	}

	out.Reindex()

	return out
}

// Labels returns the buggy flags of the snapshot in path order.
func (s *Snapshot) Labels() []bool {
	labels := make([]bool, len(s.Classes))

	for i, c := range s.Classes {
		labels[i] = c.Buggy
	}

	return labels
}
