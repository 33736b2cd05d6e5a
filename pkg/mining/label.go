package mining

import (
	"github.com/Sumatoshi-tech/defectlab/pkg/dataset"
)

// Labeler marks classes buggy in the affected releases of the tickets a fix
// commit resolves.
type Labeler struct {
	ds      *dataset.Dataset
	tickets map[string]*dataset.Ticket
	stats   *Stats
}

// NewLabeler indexes tickets by key. Labels are written into ds.
func NewLabeler(ds *dataset.Dataset, tickets []dataset.Ticket, stats *Stats) *Labeler {
	index := make(map[string]*dataset.Ticket, len(tickets))

	for i := range tickets {
		index[tickets[i].Key] = &tickets[i]
	}

	if stats == nil {
		stats = &Stats{}
	}

	return &Labeler{ds: ds, tickets: index, stats: stats}
}

// Propagate marks path buggy in every affected release of every ticket the
// commit fixes. Releases where path does not exist are skipped. It returns the
// number of labels applied.
func (l *Labeler) Propagate(commit dataset.Commit, path string) int {
	applied := 0

	for _, key := range commit.Tickets {
		ticket, ok := l.tickets[key]
		if !ok {
			continue
		}

		for _, av := range ticket.AffectedVersions {
			snap, ok := l.ds.Snapshot(av)
			if !ok {
				l.stats.MissingSnapshots++

				continue
			}

			cls, ok := snap.Lookup(path)
			if !ok {
				l.stats.MissingSnapshots++

				continue
			}

			cls.Buggy = true
			cls.Analyzed = true
			applied++
		}
	}

	l.stats.LabelsApplied += applied

	return applied
}
