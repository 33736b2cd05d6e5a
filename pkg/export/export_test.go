package export

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/defectlab/pkg/dataset"
	"github.com/Sumatoshi-tech/defectlab/pkg/evaluate"
	"github.com/Sumatoshi-tech/defectlab/pkg/mining"
)

func sampleRows() []dataset.Row {
	a := dataset.Row{Ordinal: 1, ReleaseName: "4.0.0", Path: "src/A.java", Buggy: true}
	a.Features[dataset.FeatureSize] = 120
	a.Features[dataset.FeatureAvgLocAdded] = 2.5
	a.Features[dataset.FeatureAge] = 3

	b := dataset.Row{Ordinal: 2, ReleaseName: "4.1.0", Path: "src/B.java"}
	b.Features[dataset.FeatureRevisions] = 4

	return []dataset.Row{a, b}
}

func TestDatasetHeader(t *testing.T) {
	t.Parallel()

	want := "releaseOrdinal;releaseName;path;size;locTouched;avgLocAdded;locAdded;maxLocAdded;" +
		"churnSize;maxChurnSize;avgChurnSize;revisions;bugFixes;distinctAuthors;age;buggy"

	assert.Equal(t, want, strings.Join(DatasetHeader(), ";"))
}

func TestWriteDataset(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, WriteDataset(&buf, sampleRows()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "1;4.0.0;src/A.java;120;0;2.5;0;0;0;0;0;0;0;0;3;true", lines[1])
	assert.Equal(t, "2;4.1.0;src/B.java;0;0;0;0;0;0;0;0;4;0;0;0;false", lines[2])
}

func TestReadDatasetRestoresRows(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, WriteDataset(&buf, sampleRows()))

	rows, err := ReadDataset(&buf)
	require.NoError(t, err)
	assert.Equal(t, sampleRows(), rows)
}

func TestReadDatasetRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	header := strings.Join(DatasetHeader(), ";")

	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "wrong header", input: strings.Replace(header, "age", "weeks", 1) + "\n"},
		{name: "short row", input: header + "\n1;4.0.0;A.java\n"},
		{name: "bad ordinal", input: header + "\nx;4.0.0;A.java;0;0;0;0;0;0;0;0;0;0;0;0;true\n"},
		{name: "bad feature", input: header + "\n1;4.0.0;A.java;big;0;0;0;0;0;0;0;0;0;0;0;true\n"},
		{name: "bad label", input: header + "\n1;4.0.0;A.java;0;0;0;0;0;0;0;0;0;0;0;0;maybe\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ReadDataset(strings.NewReader(tt.input))
			require.ErrorIs(t, err, ErrMalformedDataset)
		})
	}
}

func TestWriteARFF(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, WriteARFF(&buf, "apache bookkeeper", sampleRows()))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "@relation 'apache bookkeeper'\n"))
	assert.Contains(t, out, "@attribute releaseOrdinal numeric\n")
	assert.Contains(t, out, "@attribute avgChurnSize numeric\n")
	assert.Contains(t, out, "@attribute buggy {false,true}\n")
	assert.NotContains(t, out, "releaseName")
	assert.NotContains(t, out, "src/A.java")
	assert.Equal(t, 14, strings.Count(out, "@attribute"))
	assert.True(t, strings.HasSuffix(out, "@data\n1,120,0,2.5,0,0,0,0,0,0,0,0,3,true\n2,0,0,0,0,0,0,0,0,4,0,0,0,false\n"))
}

func TestWriteResults(t *testing.T) {
	t.Parallel()

	cfg := evaluate.Configuration{
		Classifier:       evaluate.NaiveBayes,
		FeatureSelection: evaluate.BestFirst,
		Resampling:       evaluate.SMOTE,
		Cost:             evaluate.CostThreshold,
	}

	res := &evaluate.Results{
		Project: "BOOKKEEPER",
		Rows: []evaluate.Result{
			{
				Configuration:     cfg,
				Ordinal:           2,
				TrainingReleases:  1,
				TrainingPercent:   100.0 / 3,
				BuggyTrainPercent: 50,
				BuggyTestPercent:  25,
				Confusion:         evaluate.Confusion{TP: 1, FP: 2, TN: 3, FN: 0},
				Precision:         1.0 / 3,
				Recall:            1,
				AUC:               0.875,
				Kappa:             math.NaN(),
				Status:            evaluate.StatusOK,
			},
			{Configuration: cfg, Status: evaluate.StatusMean, Confusion: evaluate.Confusion{TP: 1.5}},
		},
	}

	var buf bytes.Buffer

	require.NoError(t, WriteResults(&buf, res))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(ResultsHeader, ";"), lines[0])
	assert.Equal(t,
		"BOOKKEEPER;1;33.33;50.00;25.00;NaiveBayes;BestFirst;threshold;SMOTE;"+
			"1.00;2.00;3.00;0.00;0.33;1.00;0.88;NaN;2;ok",
		lines[1])
	assert.True(t, strings.HasSuffix(lines[2], ";1.50;0.00;0.00;0.00;0.00;0.00;0.00;0.00;0;mean"))
}

func TestManifest(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	r1 := dataset.Release{Name: "1.0", Ordinal: 1, Date: day, CommitID: "abc"}
	r2 := dataset.Release{Name: "1.1", Ordinal: 2, Date: day.AddDate(0, 1, 0)}

	s1 := dataset.NewSnapshot(r1, []dataset.FileSize{{Path: "A.java", Lines: 3}, {Path: "B.java", Lines: 5}}, day)
	s1.Classes[0].Buggy = true
	s2 := dataset.NewSnapshot(r2, []dataset.FileSize{{Path: "A.java", Lines: 4}}, day)

	ds := &dataset.Dataset{
		Project:   "DEMO",
		Releases:  []dataset.Release{r1, r2},
		Snapshots: []*dataset.Snapshot{s1, s2},
		Tickets:   []dataset.Ticket{{Key: "DEMO-1"}},
	}

	stats := mining.Stats{TicketsFetched: 5, TicketsOutOfSpan: 1, TicketsUnmatched: 3, TicketsEstimated: 1}
	stats.Filter.Kept = []string{"1.0", "1.1"}

	m := NewManifest(ds, stats, day)
	assert.Equal(t, 3, m.Classes)
	assert.Equal(t, 1, m.Buggy)
	assert.Equal(t, TicketCounts{Fetched: 5, Matched: 1, Estimated: 1, Dropped: 4}, m.Tickets)
	require.Len(t, m.Releases, 2)
	assert.Equal(t, ManifestRelease{Ordinal: 1, Name: "1.0", Date: day, CommitID: "abc", Classes: 2, Buggy: 1}, m.Releases[0])

	var buf bytes.Buffer

	require.NoError(t, m.Write(&buf))
	assert.Contains(t, buf.String(), "tickets_out_of_span: 1")

	back, err := ReadManifest(&buf)
	require.NoError(t, err)
	assert.Equal(t, m, back)
}

func TestLockIsExclusive(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")

	unlock, err := Lock(dir)
	require.NoError(t, err)

	_, err = Lock(dir)
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, unlock())

	unlock, err = Lock(dir)
	require.NoError(t, err)
	require.NoError(t, unlock())
}

func TestWriteFileLeavesNothingOnFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := Paths{Dir: dir, Project: "DEMO"}.Results()
	boom := errors.New("boom")

	err := WriteFile(path, func(io.Writer) error { return boom })
	require.ErrorIs(t, err, boom)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, WriteFile(path, func(w io.Writer) error {
		_, werr := io.WriteString(w, "ok")

		return werr
	}))

	var got string

	require.NoError(t, ReadFile(path, func(r io.Reader) error {
		data, rerr := io.ReadAll(r)
		got = string(data)

		return rerr
	}))
	assert.Equal(t, "ok", got)
	assert.Equal(t, filepath.Join(dir, "DEMO_results.csv"), path)
}
