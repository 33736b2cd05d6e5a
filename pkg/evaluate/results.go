package evaluate

import (
	"math"

	"github.com/Sumatoshi-tech/defectlab/pkg/alg/stats"
)

// Status tells how a result row was produced.
type Status string

// Result statuses.
const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
	StatusMean   Status = "mean"
)

// Result is one evaluated cell, or the mean of a configuration's cells when
// Ordinal is zero.
type Result struct {
	Project string
	Configuration

	// Ordinal is the tested release, zero on mean rows.
	Ordinal           int
	TrainingReleases  int
	TrainingPercent   float64
	BuggyTrainPercent float64
	BuggyTestPercent  float64

	Confusion

	Precision float64
	Recall    float64
	AUC       float64
	Kappa     float64

	Status Status
	// Reason explains a failed cell.
	Reason string
	// Cells is the number of successful cells a mean row averages.
	Cells int
}

// Results is the output of an evaluation run, ordered by configuration with
// each configuration's per-ordinal rows followed by its mean row.
type Results struct {
	Project string
	Rows    []Result
	Failed  int
}

// Means returns the mean rows.
func (r *Results) Means() []Result {
	var out []Result

	for _, row := range r.Rows {
		if row.Ordinal == 0 {
			out = append(out, row)
		}
	}

	return out
}

func failedResult(base Result, reason error) Result {
	base.Status = StatusFailed
	base.Reason = reason.Error()
	base.Precision = math.NaN()
	base.Recall = math.NaN()
	base.AUC = math.NaN()
	base.Kappa = math.NaN()

	return base
}

// Mean averages the successful rows of one configuration. Confusion counts
// and percentages use the arithmetic mean; precision, recall, AUC and kappa
// ignore undefined (NaN) values.
func Mean(project string, cfg Configuration, rows []Result) Result {
	mean := Result{Project: project, Configuration: cfg, Status: StatusMean}

	var ok []Result

	for _, r := range rows {
		if r.Status == StatusOK {
			ok = append(ok, r)
		}
	}

	mean.Cells = len(ok)

	pick := func(field func(Result) float64) []float64 {
		values := make([]float64, len(ok))
		for i, r := range ok {
			values[i] = field(r)
		}

		return values
	}

	mean.TP = stats.Mean(pick(func(r Result) float64 { return r.TP }))
	mean.FP = stats.Mean(pick(func(r Result) float64 { return r.FP }))
	mean.TN = stats.Mean(pick(func(r Result) float64 { return r.TN }))
	mean.FN = stats.Mean(pick(func(r Result) float64 { return r.FN }))
	mean.TrainingPercent = stats.Mean(pick(func(r Result) float64 { return r.TrainingPercent }))
	mean.BuggyTrainPercent = stats.Mean(pick(func(r Result) float64 { return r.BuggyTrainPercent }))
	mean.BuggyTestPercent = stats.Mean(pick(func(r Result) float64 { return r.BuggyTestPercent }))
	mean.Precision = stats.NaNMean(pick(func(r Result) float64 { return r.Precision }))
	mean.Recall = stats.NaNMean(pick(func(r Result) float64 { return r.Recall }))
	mean.AUC = stats.NaNMean(pick(func(r Result) float64 { return r.AUC }))
	mean.Kappa = stats.NaNMean(pick(func(r Result) float64 { return r.Kappa }))

	if len(ok) == 0 {
		mean.Status = StatusFailed
		mean.Reason = "no successful cells"
	}

	return mean
}
