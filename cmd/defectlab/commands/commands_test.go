package commands

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/defectlab/pkg/config"
	"github.com/Sumatoshi-tech/defectlab/pkg/export"
	"github.com/Sumatoshi-tech/defectlab/pkg/gitlib"
	"github.com/Sumatoshi-tech/defectlab/pkg/mining"
	"github.com/Sumatoshi-tech/defectlab/pkg/tracker"
	"github.com/Sumatoshi-tech/defectlab/pkg/version"
)

var (
	errNoRepository = errors.New("no such repository")
	errUnlock       = errors.New("unlock failed")
)

func day(month time.Month, d int) time.Time {
	return time.Date(2024, month, d, 12, 0, 0, 0, time.UTC)
}

type stubRepo struct {
	freed bool
}

func (r *stubRepo) Tags(context.Context) ([]gitlib.Tag, error) {
	return []gitlib.Tag{
		{Name: "release-v1", CommitID: "c1", When: day(time.January, 1)},
		{Name: "release-v2", CommitID: "c2", When: day(time.February, 1)},
		{Name: "release-v3", CommitID: "c4", When: day(time.March, 1)},
	}, nil
}

func (r *stubRepo) Commits(context.Context, string, string) ([]gitlib.CommitInfo, error) {
	return []gitlib.CommitInfo{
		{ID: "c1", When: day(time.January, 1), AuthorName: "alice", Message: "initial import"},
		{ID: "c2", When: day(time.February, 1), AuthorName: "bob", Message: "add B", ParentID: "c1"},
		{ID: "c3", When: day(time.February, 10), AuthorName: "carol", Message: "DEMO-1: fix A", ParentID: "c2"},
		{ID: "c4", When: day(time.March, 1), AuthorName: "bob", Message: "grow B", ParentID: "c3"},
	}, nil
}

func (r *stubRepo) Files(_ context.Context, commitID string, _ gitlib.PathFilter) ([]gitlib.File, error) {
	switch commitID {
	case "c1":
		return []gitlib.File{{Path: "src/A.java", Lines: 10}}, nil
	default:
		return []gitlib.File{{Path: "src/A.java", Lines: 10}, {Path: "src/B.java", Lines: 20}}, nil
	}
}

func (r *stubRepo) DiffCommits(_ context.Context, _, newID string, _ gitlib.PathFilter) ([]gitlib.Change, error) {
	edit := func(kind gitlib.ChangeKind, path string, oldLines, newLines int) gitlib.Change {
		c := gitlib.Change{Kind: kind, NewPath: path, Edits: []gitlib.Edit{{OldLines: oldLines, NewLines: newLines}}}
		if kind == gitlib.Modify {
			c.OldPath = path
		}

		return c
	}

	switch newID {
	case "c1":
		return []gitlib.Change{edit(gitlib.Add, "src/A.java", 0, 10)}, nil
	case "c2":
		return []gitlib.Change{edit(gitlib.Add, "src/B.java", 0, 18)}, nil
	case "c3":
		return []gitlib.Change{edit(gitlib.Modify, "src/A.java", 2, 2)}, nil
	case "c4":
		return []gitlib.Change{edit(gitlib.Modify, "src/B.java", 0, 2)}, nil
	default:
		return nil, nil
	}
}

func (r *stubRepo) Free() { r.freed = true }

type stubTracker struct{}

func (stubTracker) Releases(context.Context) ([]tracker.Release, error) {
	return []tracker.Release{
		{Name: "v1", Date: day(time.January, 1), Released: true},
		{Name: "v2", Date: day(time.February, 1), Released: true},
		{Name: "v3", Date: day(time.March, 1), Released: true},
	}, nil
}

func (stubTracker) Tickets(context.Context) ([]tracker.Ticket, error) {
	return []tracker.Ticket{
		{Key: "DEMO-1", Created: day(time.January, 5), Resolved: day(time.February, 10), Affected: []string{"v1"}, Fixed: []string{"v3"}},
	}, nil
}

func testDeps(repo *stubRepo) Deps {
	return Deps{
		OpenRepository: func(path string) (Repository, error) {
			if path != "/repo/demo" {
				return nil, errNoRepository
			}

			return repo, nil
		},
		NewTracker: func(*config.Config, *slog.Logger) (mining.Tracker, error) { return stubTracker{}, nil },
		Now:        func() time.Time { return day(time.April, 1) },
		NewRunID:   func() string { return "run-1" },
		Lock:       export.Lock,
	}
}

// writeTestConfig writes a config restricted to a single, fast configuration.
func writeTestConfig(t *testing.T, outDir string) string {
	t.Helper()

	content := `project:
  name: demo
  repository: /repo/demo
mining:
  tag_prefixes: [release-]
  filter:
    enabled: false
evaluation:
  classifiers: [NaiveBayes]
  feature_selection: [none]
  resampling: [none]
  cost_sensitivity: [none]
  workers: 1
output:
  dir: ` + outDir + `
logging:
  level: error
`

	path := filepath.Join(t.TempDir(), "defectlab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func execute(t *testing.T, deps Deps, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer

	root := newRootCommandWithDeps(deps)
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)

	err := root.ExecuteContext(context.Background())

	return out.String(), err
}

func readLines(t *testing.T, path string) []string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestMineCommand_WritesDatasetFiles(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()
	repo := &stubRepo{}

	out, err := execute(t, testDeps(repo), "mine", "--no-color", "--snapshot", "-c", writeTestConfig(t, outDir))
	require.NoError(t, err)
	assert.True(t, repo.freed)
	assert.Contains(t, out, "v1")

	paths := export.Paths{Dir: outDir, Project: "demo"}

	lines := readLines(t, paths.Dataset())
	assert.Equal(t, strings.Join(export.DatasetHeader(), string(export.Separator)), lines[0])
	assert.Len(t, lines, 1+1+2+2)

	assert.FileExists(t, paths.ARFF())
	assert.FileExists(t, paths.Snapshot())

	f, err := os.Open(paths.Manifest())
	require.NoError(t, err)

	defer f.Close()

	manifest, err := export.ReadManifest(f)
	require.NoError(t, err)
	assert.Equal(t, "demo", manifest.Project)
	assert.Equal(t, "run-1", manifest.RunID)
	assert.Equal(t, version.Version, manifest.Version)
	assert.Len(t, manifest.Releases, 3)
	assert.Equal(t, paths.Snapshot(), manifest.Files["snapshot"])
}

func TestMineCommand_FlagsOverrideConfig(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()

	_, err := execute(t, testDeps(&stubRepo{}), "mine", "-c", writeTestConfig(t, t.TempDir()), "--out", outDir)
	require.NoError(t, err)
	assert.FileExists(t, export.Paths{Dir: outDir, Project: "demo"}.Dataset())

	_, err = execute(t, testDeps(&stubRepo{}), "mine", "-c", writeTestConfig(t, outDir), "--repo", "/elsewhere")
	require.ErrorIs(t, err, errNoRepository)
}

func TestMineCommand_LockedOutputFails(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()

	unlock, err := export.Lock(outDir)
	require.NoError(t, err)

	defer func() { require.NoError(t, unlock()) }()

	_, err = execute(t, testDeps(&stubRepo{}), "mine", "-c", writeTestConfig(t, outDir))
	require.ErrorIs(t, err, export.ErrLocked)
}

func TestCommands_ReportUnlockFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		command string
		written func(export.Paths) string
	}{
		{"mine", "mine", export.Paths.Dataset},
		{"evaluate", "evaluate", export.Paths.Results},
		{"run stops before evaluating", "run", export.Paths.Dataset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			outDir := t.TempDir()
			cfgPath := writeTestConfig(t, outDir)

			if tt.command == "evaluate" {
				_, err := execute(t, testDeps(&stubRepo{}), "mine", "-c", cfgPath)
				require.NoError(t, err)
			}

			deps := testDeps(&stubRepo{})
			released := false
			deps.Lock = func(dir string) (func() error, error) {
				unlock, err := export.Lock(dir)
				if err != nil {
					return nil, err
				}

				return func() error {
					released = true

					return errors.Join(unlock(), errUnlock)
				}, nil
			}

			_, err := execute(t, deps, tt.command, "-c", cfgPath)
			require.ErrorIs(t, err, errUnlock)
			assert.True(t, released)
			assert.FileExists(t, tt.written(export.Paths{Dir: outDir, Project: "demo"}))
		})
	}
}

func TestEvaluateCommand_FromMinedDataset(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()
	cfgPath := writeTestConfig(t, outDir)

	_, err := execute(t, testDeps(&stubRepo{}), "mine", "-c", cfgPath)
	require.NoError(t, err)

	out, err := execute(t, testDeps(&stubRepo{}), "evaluate", "--no-color", "--chart", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "demo: walk-forward means")

	paths := export.Paths{Dir: outDir, Project: "demo"}

	lines := readLines(t, paths.Results())
	assert.Equal(t, strings.Join(export.ResultsHeader, string(export.Separator)), lines[0])
	// Ordinals 2 and 3 plus the mean row.
	assert.Len(t, lines, 1+3)
	assert.True(t, strings.HasPrefix(lines[1], "demo;1;"))
	assert.FileExists(t, paths.Chart())
}

func TestEvaluateCommand_ProjectFromDatasetName(t *testing.T) {
	t.Parallel()

	mined := t.TempDir()
	_, err := execute(t, testDeps(&stubRepo{}), "mine", "-c", writeTestConfig(t, mined))
	require.NoError(t, err)

	outDir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "defectlab.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("evaluation:\n  classifiers: [NaiveBayes]\n  feature_selection: [none]\n  resampling: [none]\n  cost_sensitivity: [none]\n"), 0o600))

	dataset := export.Paths{Dir: mined, Project: "demo"}.Dataset()

	_, err = execute(t, testDeps(&stubRepo{}), "evaluate", "-c", cfgPath, "--dataset", dataset, "--out", outDir)
	require.NoError(t, err)
	assert.FileExists(t, export.Paths{Dir: outDir, Project: "demo"}.Results())
}

func TestEvaluateCommand_FromSnapshot(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()
	cfgPath := writeTestConfig(t, outDir)

	_, err := execute(t, testDeps(&stubRepo{}), "mine", "--snapshot", "-c", cfgPath)
	require.NoError(t, err)

	paths := export.Paths{Dir: outDir, Project: "demo"}
	require.NoError(t, os.Remove(paths.Dataset()))

	_, err = execute(t, testDeps(&stubRepo{}), "evaluate", "-c", cfgPath, "--snapshot", paths.Snapshot())
	require.NoError(t, err)
	assert.FileExists(t, paths.Results())
}

func TestEvaluateCommand_MissingProject(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), "defectlab.yaml")
	require.NoError(t, os.WriteFile(cfgPath, nil, 0o600))

	_, err := execute(t, testDeps(&stubRepo{}), "evaluate", "-c", cfgPath)
	require.ErrorIs(t, err, ErrNoProject)
}

func TestRunCommand_MinesAndEvaluates(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()

	out, err := execute(t, testDeps(&stubRepo{}), "run", "--no-color", "-c", writeTestConfig(t, outDir))
	require.NoError(t, err)
	assert.Contains(t, out, "demo: walk-forward means")

	paths := export.Paths{Dir: outDir, Project: "demo"}
	assert.FileExists(t, paths.Dataset())
	assert.FileExists(t, paths.Manifest())
	assert.FileExists(t, paths.Results())
	assert.NoFileExists(t, paths.Chart())
}

func TestRunCommand_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), "defectlab.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("project:\n  name: demo\nevaluation:\n  workers: -1\n"), 0o600))

	_, err := execute(t, testDeps(&stubRepo{}), "run", "-c", cfgPath)
	require.ErrorIs(t, err, config.ErrInvalidWorkers)
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	out, err := execute(t, testDeps(&stubRepo{}), "version")
	require.NoError(t, err)
	assert.Equal(t, version.String()+"\n", out)
}
