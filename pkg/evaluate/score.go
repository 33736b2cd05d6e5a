package evaluate

import (
	"math"
	"slices"

	"github.com/Sumatoshi-tech/defectlab/pkg/alg/stats"
)

// Confusion counts predictions with respect to the buggy class. Counts are
// floats so mean rows keep fractional values.
type Confusion struct {
	TP, FP, TN, FN float64
}

// Add records one prediction.
func (c *Confusion) Add(predicted, actual bool) {
	switch {
	case predicted && actual:
		c.TP++
	case predicted:
		c.FP++
	case actual:
		c.FN++
	default:
		c.TN++
	}
}

// Total returns the number of recorded predictions.
func (c Confusion) Total() float64 {
	return c.TP + c.FP + c.TN + c.FN
}

// Precision returns TP / (TP + FP), NaN without positive predictions.
func (c Confusion) Precision() float64 {
	return stats.SafeDiv(c.TP, c.TP+c.FP)
}

// Recall returns TP / (TP + FN), NaN without positive instances.
func (c Confusion) Recall() float64 {
	return stats.SafeDiv(c.TP, c.TP+c.FN)
}

// Kappa returns Cohen's kappa, NaN when chance agreement is total.
func (c Confusion) Kappa() float64 {
	n := c.Total()
	if n == 0 {
		return math.NaN()
	}

	observed := (c.TP + c.TN) / n
	chance := ((c.TP+c.FP)*(c.TP+c.FN) + (c.TN+c.FN)*(c.TN+c.FP)) / (n * n)

	return stats.SafeDiv(observed-chance, 1-chance)
}

// AUC returns the area under the ROC curve of scores against labels using
// the Mann-Whitney statistic with tied ranks averaged. It is NaN when either
// class is absent.
func AUC(scores []float64, labels []bool) float64 {
	type scored struct {
		score    float64
		positive bool
	}

	items := make([]scored, len(scores))
	for i := range scores {
		items[i] = scored{score: scores[i], positive: labels[i]}
	}

	slices.SortFunc(items, func(a, b scored) int {
		switch {
		case a.score < b.score:
			return -1
		case a.score > b.score:
			return 1
		default:
			return 0
		}
	})

	var (
		rankSum   float64
		positives float64
	)

	for i := 0; i < len(items); {
		j := i
		for j < len(items) && items[j].score == items[i].score {
			j++
		}

		// Ranks i+1..j share their average.
		rank := float64(i+1+j) / 2

		for _, it := range items[i:j] {
			if it.positive {
				rankSum += rank
				positives++
			}
		}

		i = j
	}

	negatives := float64(len(items)) - positives
	if positives == 0 || negatives == 0 {
		return math.NaN()
	}

	return (rankSum - positives*(positives+1)/2) / (positives * negatives)
}
