package mining

import (
	"math"

	"github.com/Sumatoshi-tech/defectlab/pkg/dataset"
)

// DefaultKeepFraction keeps the first half of the usable releases.
const DefaultKeepFraction = 0.5

// FilterOptions configures the no-snoring filter.
type FilterOptions struct {
	Enabled bool
	// Fraction of the informative releases kept before the discard bonus.
	Fraction float64
}

// FilterReport describes what the no-snoring filter removed.
type FilterReport struct {
	Applied  bool     `yaml:"applied"`
	Total    int      `yaml:"total"`
	Uniform  []string `yaml:"uniform,omitempty"`
	Kept     []string `yaml:"kept"`
	Dropped  []string `yaml:"dropped,omitempty"`
	Fraction float64  `yaml:"fraction"`
}

// FilterSnoring removes releases whose labels carry no signal and cuts the
// tail of the timeline, where defects have not had time to be discovered.
//
// A release whose classes are all buggy or all clean is uniform and dropped.
// Of the remaining releases the first floor(n*fraction) + discarded/2 are
// kept, with discarded = total - n + 1, bounded to [1, n]. Ordinals are
// renumbered contiguously. The input dataset is not modified.
func FilterSnoring(ds *dataset.Dataset, opts FilterOptions) (*dataset.Dataset, FilterReport) {
	report := FilterReport{Applied: opts.Enabled, Total: ds.NumReleases(), Fraction: opts.Fraction}

	if !opts.Enabled {
		for _, rel := range ds.Releases {
			report.Kept = append(report.Kept, rel.Name)
		}

		return ds, report
	}

	if opts.Fraction <= 0 || opts.Fraction > 1 || math.IsNaN(opts.Fraction) {
		opts.Fraction = DefaultKeepFraction
		report.Fraction = opts.Fraction
	}

	var valid []int

	for i, snap := range ds.Snapshots {
		if uniformLabels(snap.Labels()) {
			report.Uniform = append(report.Uniform, ds.Releases[i].Name)

			continue
		}

		valid = append(valid, ds.Releases[i].Ordinal)
	}

	keep := KeepCount(ds.NumReleases(), len(valid), opts.Fraction)

	for i, ord := range valid {
		rel, _ := ds.Release(ord)

		if i < keep {
			report.Kept = append(report.Kept, rel.Name)
		} else {
			report.Dropped = append(report.Dropped, rel.Name)
		}
	}

	return ds.Select(valid[:keep]), report
}

// KeepCount returns how many of the valid releases survive the filter.
func KeepCount(total, valid int, fraction float64) int {
	if valid == 0 {
		return 0
	}

	discarded := total - valid + 1
	keep := int(math.Floor(float64(valid)*fraction)) + discarded/2

	return min(max(keep, 1), valid)
}

func uniformLabels(labels []bool) bool {
	for _, l := range labels[min(1, len(labels)):] {
		if l != labels[0] {
			return false
		}
	}

	return true
}
