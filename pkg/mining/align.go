package mining

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Sumatoshi-tech/defectlab/pkg/dataset"
	"github.com/Sumatoshi-tech/defectlab/pkg/gitlib"
	"github.com/Sumatoshi-tech/defectlab/pkg/tracker"
)

// AlignOptions controls how tag names are matched to tracker release names.
type AlignOptions struct {
	// TagPrefixes are stripped from tag names before matching, first match wins.
	TagPrefixes []string
	// Exclude drops tags whose name contains any of these substrings.
	Exclude []string
}

// Alignment pairs the releases known to both sources. Releases[i] and
// Tracker[i] describe the same release and share an ordinal.
type Alignment struct {
	// Releases are dated by the tagged commit.
	Releases []dataset.Release
	// Tracker releases are reconciled to the tagged commit date as well, so
	// both lists are sorted by Date. The published date is kept in Reported.
	Tracker []dataset.Release

	byName map[string]int
}

// Ordinal returns the ordinal of the release with the given tracker name.
func (a Alignment) Ordinal(name string) (int, bool) {
	ord, ok := a.byName[name]

	return ord, ok
}

// Len returns the number of aligned releases.
func (a Alignment) Len() int {
	return len(a.Releases)
}

type releasePair struct {
	tracker tracker.Release
	tag     gitlib.Tag
}

// AlignReleases intersects released tracker versions with repository tags by
// exact name, orders the pairs by tagged commit date and numbers them from 1.
// Releases known to one source only are dropped. A release whose tag points to
// the commit of an earlier release is dropped too, so ordinals strictly
// increase with date.
func AlignReleases(releases []tracker.Release, tags []gitlib.Tag, opts AlignOptions) (Alignment, error) {
	tagByName := make(map[string]gitlib.Tag, len(tags))

	for _, tag := range tags {
		if excluded(tag.Name, opts.Exclude) {
			continue
		}

		name := normalizeTag(tag.Name, opts.TagPrefixes)

		prev, seen := tagByName[name]
		if !seen || tag.When.Before(prev.When) {
			tagByName[name] = tag
		}
	}

	var pairs []releasePair

	seenName := make(map[string]bool, len(releases))

	for _, rel := range releases {
		if !rel.Released || seenName[rel.Name] {
			continue
		}

		tag, ok := tagByName[rel.Name]
		if !ok {
			continue
		}

		seenName[rel.Name] = true
		pairs = append(pairs, releasePair{tracker: rel, tag: tag})
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].tag.When.Before(pairs[j].tag.When)
	})

	align := Alignment{byName: make(map[string]int, len(pairs))}
	seenCommit := make(map[string]bool, len(pairs))

	for _, p := range pairs {
		if seenCommit[p.tag.CommitID] {
			continue
		}

		seenCommit[p.tag.CommitID] = true
		ordinal := len(align.Releases) + 1

		align.Releases = append(align.Releases, dataset.Release{
			Name:     p.tracker.Name,
			Date:     p.tag.When,
			Ordinal:  ordinal,
			Origin:   dataset.OriginRepository,
			CommitID: p.tag.CommitID,
		})
		align.Tracker = append(align.Tracker, dataset.Release{
			Name:     p.tracker.Name,
			Date:     p.tag.When,
			Ordinal:  ordinal,
			Origin:   dataset.OriginTracker,
			CommitID: p.tag.CommitID,
			Reported: p.tracker.Date,
		})
		align.byName[p.tracker.Name] = ordinal
	}

	if len(align.Releases) == 0 {
		return Alignment{}, fmt.Errorf("%w: %d tracker releases, %d tags", ErrAlignmentFailure, len(releases), len(tags))
	}

	return align, nil
}

func normalizeTag(name string, prefixes []string) string {
	for _, prefix := range prefixes {
		if trimmed, ok := strings.CutPrefix(name, prefix); ok {
			return trimmed
		}
	}

	return name
}

func excluded(name string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(name, p) {
			return true
		}
	}

	return false
}
