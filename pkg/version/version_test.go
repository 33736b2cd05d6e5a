package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyFillsUnsetMetadata(t *testing.T) {
	Version, Commit, Date = "dev", unknown, unknown

	t.Cleanup(func() { Version, Commit, Date = "dev", unknown, unknown })

	apply(&debug.BuildInfo{
		Main: debug.Module{Version: "v0.3.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2024-06-01T10:00:00Z"},
		},
	})

	assert.Equal(t, "defectlab v0.3.1 (commit: abc123, built: 2024-06-01T10:00:00Z)", String())
}

func TestApplyKeepsStampedValues(t *testing.T) {
	Version, Commit, Date = "v1.0.0", "stamped", unknown

	t.Cleanup(func() { Version, Commit, Date = "dev", unknown, unknown })

	apply(&debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "other"}},
	})

	assert.Equal(t, "v1.0.0", Version)
	assert.Equal(t, "stamped", Commit)
	assert.Equal(t, unknown, Date)
}
