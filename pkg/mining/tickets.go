package mining

import (
	"slices"
	"time"

	"github.com/Sumatoshi-tech/defectlab/pkg/dataset"
	"github.com/Sumatoshi-tech/defectlab/pkg/tracker"
)

// ResolveTickets maps tracker tickets onto aligned release ordinals.
//
// The opening release is the first release dated on or after creation. The
// fix release is the earliest aligned reported fix version, or else the first
// release dated on or after resolution. Tickets opened or fixed after the last
// release are returned as out of span. Reported affected versions are kept
// only when they precede the fix release; the earliest becomes the injected
// version. Tickets left without one are estimated later.
func ResolveTickets(raw []tracker.Ticket, align Alignment) ([]dataset.Ticket, []string) {
	var (
		resolved  []dataset.Ticket
		outOfSpan []string
	)

	for _, rt := range raw {
		t := dataset.Ticket{
			Key:           rt.Key,
			Created:       rt.Created,
			Resolved:      rt.Resolved,
			AffectedNames: slices.Clone(rt.Affected),
			FixNames:      slices.Clone(rt.Fixed),
		}

		t.Opening = firstReleaseFrom(align.Tracker, rt.Created)
		t.Fixed = reportedFix(rt.Fixed, align)

		if t.Fixed == 0 {
			t.Fixed = firstReleaseFrom(align.Tracker, rt.Resolved)
		}

		if t.Opening == 0 || t.Fixed == 0 {
			outOfSpan = append(outOfSpan, rt.Key)

			continue
		}

		t.Opening = min(t.Opening, t.Fixed)

		for _, name := range rt.Affected {
			if ord, ok := align.Ordinal(name); ok && ord < t.Fixed {
				t.AffectedVersions = append(t.AffectedVersions, ord)
			}
		}

		slices.Sort(t.AffectedVersions)
		t.AffectedVersions = slices.Compact(t.AffectedVersions)

		if len(t.AffectedVersions) > 0 {
			t.Injected = t.AffectedVersions[0]
		}

		resolved = append(resolved, t)
	}

	return resolved, outOfSpan
}

func firstReleaseFrom(releases []dataset.Release, when time.Time) int {
	idx, _ := slices.BinarySearchFunc(releases, when, func(r dataset.Release, t time.Time) int {
		return r.Date.Compare(t)
	})

	if idx == len(releases) {
		return 0
	}

	return releases[idx].Ordinal
}

func reportedFix(names []string, align Alignment) int {
	best := 0

	for _, name := range names {
		if ord, ok := align.Ordinal(name); ok && (best == 0 || ord < best) {
			best = ord
		}
	}

	return best
}
