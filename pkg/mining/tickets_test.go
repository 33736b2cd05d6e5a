package mining_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/defectlab/pkg/gitlib"
	"github.com/Sumatoshi-tech/defectlab/pkg/mining"
	"github.com/Sumatoshi-tech/defectlab/pkg/tracker"
)

func quarterAlignment(t *testing.T) mining.Alignment {
	t.Helper()

	var (
		releases []tracker.Release
		tags     []gitlib.Tag
	)

	for i, month := range []time.Month{time.January, time.February, time.March, time.April} {
		name := []string{"v1", "v2", "v3", "v4"}[i]
		releases = append(releases, tracker.Release{Name: name, Date: day(month, 1), Released: true})
		tags = append(tags, gitlib.Tag{Name: name, CommitID: name, When: day(month, 1)})
	}

	align, err := mining.AlignReleases(releases, tags, mining.AlignOptions{})
	require.NoError(t, err)

	return align
}

func TestResolveTickets(t *testing.T) {
	t.Parallel()

	align := quarterAlignment(t)

	raw := []tracker.Ticket{
		{Key: "reported", Created: day(time.January, 20), Resolved: day(time.March, 20), Affected: []string{"v2", "v1", "v9"}},
		{Key: "fix-version", Created: day(time.January, 20), Resolved: day(time.January, 25), Fixed: []string{"v4", "v3"}},
		{Key: "late-av", Created: day(time.January, 20), Resolved: day(time.February, 10), Affected: []string{"v3"}},
		{Key: "after-last", Created: day(time.April, 2), Resolved: day(time.April, 3)},
		{Key: "opened-after-fix", Created: day(time.February, 20), Resolved: day(time.March, 20), Fixed: []string{"v2"}},
	}

	tickets, outOfSpan := mining.ResolveTickets(raw, align)

	assert.Equal(t, []string{"after-last"}, outOfSpan)
	require.Len(t, tickets, 4)

	reported := tickets[0]
	assert.Equal(t, 2, reported.Opening)
	assert.Equal(t, 4, reported.Fixed)
	assert.Equal(t, []int{1, 2}, reported.AffectedVersions)
	assert.Equal(t, 1, reported.Injected)

	fixVersion := tickets[1]
	assert.Equal(t, 3, fixVersion.Fixed)
	assert.Zero(t, fixVersion.Injected)

	lateAV := tickets[2]
	assert.Equal(t, 3, lateAV.Fixed)
	assert.Empty(t, lateAV.AffectedVersions)
	assert.Zero(t, lateAV.Injected)

	openedAfterFix := tickets[3]
	assert.Equal(t, 2, openedAfterFix.Fixed)
	assert.Equal(t, 2, openedAfterFix.Opening)
}
