package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/Sumatoshi-tech/defectlab/pkg/evaluate"
)

// ResultsHeader lists the evaluation CSV columns.
var ResultsHeader = []string{
	"project",
	"trainingReleaseCount",
	"%training",
	"%buggyInTraining",
	"%buggyInTesting",
	"classifier",
	"featureSelection",
	"costSensitivity",
	"resampling",
	"TP",
	"FP",
	"TN",
	"FN",
	"precision",
	"recall",
	"AUC",
	"kappa",
	"ordinal",
	"status",
}

// WriteResults writes every row of res, per-ordinal and mean rows alike, as
// a ';'-separated CSV. Fractional values are rounded to two decimals and
// undefined metrics are written as NaN.
func WriteResults(w io.Writer, res *evaluate.Results) error {
	cw := csv.NewWriter(w)
	cw.Comma = Separator

	err := cw.Write(ResultsHeader)
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, r := range res.Rows {
		project := r.Project
		if project == "" {
			project = res.Project
		}

		err = cw.Write([]string{
			project,
			strconv.Itoa(r.TrainingReleases),
			decimal(r.TrainingPercent),
			decimal(r.BuggyTrainPercent),
			decimal(r.BuggyTestPercent),
			string(r.Classifier),
			string(r.FeatureSelection),
			string(r.Cost),
			string(r.Resampling),
			decimal(r.TP),
			decimal(r.FP),
			decimal(r.TN),
			decimal(r.FN),
			decimal(r.Precision),
			decimal(r.Recall),
			decimal(r.AUC),
			decimal(r.Kappa),
			strconv.Itoa(r.Ordinal),
			string(r.Status),
		})
		if err != nil {
			return fmt.Errorf("write result %s: %w", r.Configuration, err)
		}
	}

	cw.Flush()

	return cw.Error()
}

func decimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
