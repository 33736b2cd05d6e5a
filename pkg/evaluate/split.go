package evaluate

import (
	"slices"

	"github.com/Sumatoshi-tech/defectlab/pkg/dataset"
	"github.com/Sumatoshi-tech/defectlab/pkg/learn"
)

// Ordinals returns the walk-forward test ordinals 2..N, N being the highest
// release ordinal in rows.
func Ordinals(rows []dataset.Row) []int {
	last := 0
	for _, r := range rows {
		last = max(last, r.Ordinal)
	}

	var out []int
	for ord := 2; ord <= last; ord++ {
		out = append(out, ord)
	}

	return out
}

// Fold is one walk-forward split. Rows are shared with the input.
type Fold struct {
	Ordinal int
	Train   []dataset.Row
	Test    []dataset.Row
}

// Split trains on every row released before ordinal and tests on the rows
// of ordinal itself.
func Split(rows []dataset.Row, ordinal int) Fold {
	fold := Fold{Ordinal: ordinal}

	for _, r := range rows {
		switch {
		case r.Ordinal < ordinal:
			fold.Train = append(fold.Train, r)
		case r.Ordinal == ordinal:
			fold.Test = append(fold.Test, r)
		}
	}

	return fold
}

// TrainingReleases returns the number of distinct releases in the training fold.
func (f Fold) TrainingReleases() int {
	ords := make([]int, 0, len(f.Train))
	for _, r := range f.Train {
		ords = append(ords, r.Ordinal)
	}

	slices.Sort(ords)

	return len(slices.Compact(ords))
}

// Instances converts rows to a feature matrix. Feature vectors are copied.
func Instances(rows []dataset.Row) learn.Instances {
	in := learn.Instances{X: make([][]float64, len(rows)), Y: make([]bool, len(rows))}

	for i, r := range rows {
		features := r.Features
		in.X[i] = features[:]
		in.Y[i] = r.Buggy
	}

	return in
}

func buggyPercent(in learn.Instances) float64 {
	if in.Len() == 0 {
		return 0
	}

	return 100 * float64(in.Positives()) / float64(in.Len())
}
