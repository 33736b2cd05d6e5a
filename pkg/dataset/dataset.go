// Package dataset holds the arenas assembled by the mining engine: aligned
// releases, bound commits, resolved tickets and per-release class snapshots.
//
// Records reference each other by key (release ordinal, commit id, ticket key,
// class path) rather than by pointer, so snapshots of the same path in
// different releases never alias.
package dataset

import (
	"slices"
	"time"
)

// Origin identifies which source a release record was read from.
type Origin int

const (
	// OriginTracker marks a release reported by the issue tracker.
	OriginTracker Origin = iota
	// OriginRepository marks a release resolved from a repository tag.
	OriginRepository
)

// String returns the origin name.
func (o Origin) String() string {
	if o == OriginRepository {
		return "repository"
	}

	return "tracker"
}

// Release is one aligned release. Ordinals start at 1 and increase with Date.
type Release struct {
	Name     string
	Date     time.Time
	Ordinal  int
	Origin   Origin
	CommitID string
	// Reported is the date the tracker published, zero when unknown or for
	// repository records. Date always holds the tagged commit's timestamp.
	Reported time.Time
}

// Commit is one revision of the analyzed history.
type Commit struct {
	ID          string
	Timestamp   time.Time
	ParentID    string
	AuthorName  string
	AuthorEmail string
	Message     string
	IsFix       bool
	// Tickets lists the keys of the tickets this commit fixes, first match first.
	Tickets []string
	// Release is the bound release ordinal, 0 while unbound.
	Release int
}

// LinkedTicket returns the first ticket fixed by the commit.
func (c Commit) LinkedTicket() (string, bool) {
	if len(c.Tickets) == 0 {
		return "", false
	}

	return c.Tickets[0], true
}

// Ticket is a resolved defect report with its release ordinals.
type Ticket struct {
	Key      string
	Created  time.Time
	Resolved time.Time

	// AffectedNames and FixNames are the release names reported by the tracker.
	AffectedNames []string
	FixNames      []string

	// AffectedVersions holds ordinals in ascending order.
	AffectedVersions []int
	Opening          int
	Injected         int
	Fixed            int
	// Estimated is set when Injected was predicted rather than reported.
	Estimated bool
}

// Affects reports whether the ticket lists the given ordinal as affected.
func (t Ticket) Affects(ordinal int) bool {
	_, found := slices.BinarySearch(t.AffectedVersions, ordinal)

	return found
}

// Clone returns a deep copy of the ticket.
func (t Ticket) Clone() Ticket {
	t.AffectedNames = slices.Clone(t.AffectedNames)
	t.FixNames = slices.Clone(t.FixNames)
	t.AffectedVersions = slices.Clone(t.AffectedVersions)

	return t
}

// Dataset is the complete output of a mining run.
type Dataset struct {
	Project  string
	Releases []Release
	// Snapshots[i] belongs to Releases[i].
	Snapshots []*Snapshot
	Commits   []Commit
	Tickets   []Ticket
}

// NumReleases returns the number of releases in the dataset.
func (d *Dataset) NumReleases() int {
	return len(d.Releases)
}

// Release returns the release with the given ordinal.
func (d *Dataset) Release(ordinal int) (Release, bool) {
	if ordinal < 1 || ordinal > len(d.Releases) {
		return Release{}, false
	}

	return d.Releases[ordinal-1], true
}

// Snapshot returns the class snapshot of the release with the given ordinal.
func (d *Dataset) Snapshot(ordinal int) (*Snapshot, bool) {
	if ordinal < 1 || ordinal > len(d.Snapshots) {
		return nil, false
	}

	return d.Snapshots[ordinal-1], true
}

// NumClasses returns the number of class records across all snapshots.
func (d *Dataset) NumClasses() int {
	total := 0

	for _, snap := range d.Snapshots {
		total += snap.Len()
	}

	return total
}

// Select returns a deep copy holding only the releases at the given ordinals,
// renumbered contiguously from 1 in the order given.
func (d *Dataset) Select(ordinals []int) *Dataset {
	renumber := make(map[int]int, len(ordinals))

	out := &Dataset{
		Project:   d.Project,
		Releases:  make([]Release, 0, len(ordinals)),
		Snapshots: make([]*Snapshot, 0, len(ordinals)),
	}

	for _, ord := range ordinals {
		rel, ok := d.Release(ord)
		if !ok {
			continue
		}

		next := len(out.Releases) + 1
		renumber[ord] = next
		rel.Ordinal = next
		out.Releases = append(out.Releases, rel)

		snap := d.Snapshots[ord-1].Clone()
		snap.Release = rel

		for j := range snap.Classes {
			snap.Classes[j].Release = next
		}

		out.Snapshots = append(out.Snapshots, snap)
	}

	for _, c := range d.Commits {
		if to, ok := renumber[c.Release]; ok {
			c.Release = to
			c.Tickets = slices.Clone(c.Tickets)
			out.Commits = append(out.Commits, c)
		}
	}

	for _, t := range d.Tickets {
		out.Tickets = append(out.Tickets, remapTicket(t.Clone(), renumber))
	}

	return out
}

func remapTicket(t Ticket, renumber map[int]int) Ticket {
	remap := func(ord int) int {
		if to, ok := renumber[ord]; ok {
			return to
		}

		return 0
	}

	avs := t.AffectedVersions[:0]

	for _, av := range t.AffectedVersions {
		if to := remap(av); to > 0 {
			avs = append(avs, to)
		}
	}

	t.AffectedVersions = avs
	t.Opening = remap(t.Opening)
	t.Injected = remap(t.Injected)
	t.Fixed = remap(t.Fixed)

	return t
}
