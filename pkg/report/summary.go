// Package report renders mining and evaluation results for people: terminal
// tables and an HTML chart page.
package report

import (
	"cmp"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/defectlab/pkg/dataset"
	"github.com/Sumatoshi-tech/defectlab/pkg/evaluate"
	"github.com/Sumatoshi-tech/defectlab/pkg/mining"
)

// AUC bands used for highlighting.
const (
	goodAUC = 0.75
	fairAUC = 0.6
)

const percent = 100

// Options controls terminal rendering.
type Options struct {
	// Top limits the evaluation table to the best configurations; 0 shows all.
	Top     int
	NoColor bool
}

// WriteEvaluation prints the mean row of every configuration, best AUC first.
func WriteEvaluation(w io.Writer, res *evaluate.Results, o Options) error {
	means := RankByAUC(res.Means())
	shown := means

	if o.Top > 0 && len(shown) > o.Top {
		shown = shown[:o.Top]
	}

	tbl := newTable(w)
	tbl.SetTitle("%s: walk-forward means", res.Project)
	tbl.AppendHeader(table.Row{"#", "classifier", "selection", "resampling", "cost", "cells", "precision", "recall", "AUC", "kappa"})

	for i, r := range shown {
		tbl.AppendRow(table.Row{
			i + 1,
			r.Classifier,
			r.FeatureSelection,
			r.Resampling,
			r.Cost,
			r.Cells,
			metric(r.Precision),
			metric(r.Recall),
			paint(o, aucColor(r.AUC), metric(r.AUC)),
			metric(r.Kappa),
		})
	}

	cells := len(res.Rows) - len(means)
	tbl.AppendFooter(table.Row{
		"", fmt.Sprintf("%d of %d configurations", len(shown), len(means)), "", "", "",
		humanize.Comma(int64(cells)), "", "", "", failedNote(o, res.Failed),
	})
	tbl.Render()

	return nil
}

// WriteMining prints the per-release composition of a mined dataset and the
// run counters.
func WriteMining(w io.Writer, ds *dataset.Dataset, stats mining.Stats, o Options) error {
	tbl := newTable(w)
	tbl.SetTitle("%s: %d releases", ds.Project, ds.NumReleases())
	tbl.AppendHeader(table.Row{"ordinal", "release", "date", "classes", "buggy", "buggy %"})

	total, buggy := 0, 0

	for i, rel := range ds.Releases {
		labels := ds.Snapshots[i].Labels()
		n := countTrue(labels)
		total += len(labels)
		buggy += n

		tbl.AppendRow(table.Row{
			rel.Ordinal,
			rel.Name,
			rel.Date.Format("2006-01-02"),
			humanize.Comma(int64(len(labels))),
			humanize.Comma(int64(n)),
			ratio(n, len(labels)),
		})
	}

	tbl.AppendFooter(table.Row{"", "", "", humanize.Comma(int64(total)), humanize.Comma(int64(buggy)), ratio(buggy, total)})
	tbl.Render()

	counters := []struct {
		label string
		value int
	}{
		{"commits bound", stats.CommitsBound},
		{"commits outside releases", stats.CommitsUnbound},
		{"fix commits", stats.FixCommits},
		{"tickets fetched", stats.TicketsFetched},
		{"tickets without fix commit", stats.TicketsUnmatched},
		{"tickets outside releases", stats.TicketsOutOfSpan},
		{"injected versions estimated", stats.TicketsEstimated},
		{"diffs replayed", stats.DiffsReplayed},
		{"diffs skipped", stats.DiffsSkipped},
		{"labels applied", stats.LabelsApplied},
	}

	for _, c := range counters {
		value := humanize.Comma(int64(c.value))
		if c.label == "diffs skipped" && c.value > 0 {
			value = paint(o, color.FgYellow, value)
		}

		_, err := fmt.Fprintf(w, "  %-28s %s\n", c.label, value)
		if err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	if stats.Filter.Applied {
		_, err := fmt.Fprintf(w, "  %-28s %d of %d releases kept\n", "consistency filter", len(stats.Filter.Kept), stats.Filter.Total)
		if err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	return nil
}

// RankByAUC returns the rows ordered by descending AUC, undefined AUC last.
// Ties keep their input order.
func RankByAUC(rows []evaluate.Result) []evaluate.Result {
	out := slices.Clone(rows)

	slices.SortStableFunc(out, func(a, b evaluate.Result) int {
		aNaN, bNaN := math.IsNaN(a.AUC), math.IsNaN(b.AUC)

		switch {
		case aNaN && bNaN:
			return 0
		case aNaN:
			return 1
		case bNaN:
			return -1
		}

		return cmp.Compare(b.AUC, a.AUC)
	})

	return out
}

func newTable(w io.Writer) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Title.Align = text.AlignLeft
	tbl.Style().Format.Footer = text.FormatDefault

	return tbl
}

func metric(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}

	return strconv.FormatFloat(v, 'f', 3, 64)
}

func ratio(n, total int) string {
	if total == 0 {
		return "-"
	}

	return strconv.FormatFloat(float64(n)*percent/float64(total), 'f', 1, 64)
}

func aucColor(auc float64) color.Attribute {
	switch {
	case math.IsNaN(auc):
		return color.FgHiBlack
	case auc >= goodAUC:
		return color.FgGreen
	case auc >= fairAUC:
		return color.FgYellow
	default:
		return color.FgRed
	}
}

func failedNote(o Options, failed int) string {
	if failed == 0 {
		return ""
	}

	return paint(o, color.FgRed, humanize.Comma(int64(failed))+" failed")
}

func paint(o Options, attr color.Attribute, s string) string {
	c := color.New(attr)
	if o.NoColor {
		c.DisableColor()
	}

	return c.Sprint(s)
}

func countTrue(values []bool) int {
	n := 0

	for _, v := range values {
		if v {
			n++
		}
	}

	return n
}
