package mining

import (
	"slices"

	"github.com/Sumatoshi-tech/defectlab/pkg/dataset"
)

// BindRevisions binds every commit to the release whose interval
// (previous.Date, release.Date] contains its timestamp; the first release has
// no lower bound. Commits after the last release are returned as unbound and
// left out. Releases must be ordered by date. The input is not modified.
func BindRevisions(commits []dataset.Commit, releases []dataset.Release) ([]dataset.Commit, int) {
	sorted := slices.Clone(commits)
	slices.SortStableFunc(sorted, func(a, b dataset.Commit) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	bound := make([]dataset.Commit, 0, len(sorted))
	next := 0

	for i, c := range sorted {
		for next < len(releases) && c.Timestamp.After(releases[next].Date) {
			next++
		}

		if next == len(releases) {
			return bound, len(sorted) - i
		}

		c.Release = releases[next].Ordinal
		bound = append(bound, c)
	}

	return bound, 0
}
