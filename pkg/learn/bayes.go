package learn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// minStdDev floors per-class deviations; the features are counts, so one
// sixth of their unit precision.
const minStdDev = 1.0 / 6

// NaiveBayes is a Gaussian naive Bayes classifier over weighted instances.
type NaiveBayes struct {
	logPrior [2]float64
	dists    [2][]distuv.Normal
}

// NewNaiveBayes returns an unfitted classifier.
func NewNaiveBayes() *NaiveBayes {
	return &NaiveBayes{}
}

// Fit estimates class priors and a normal distribution per class and feature.
func (nb *NaiveBayes) Fit(train Instances, _ *rand.Rand) error {
	err := checkTraining(train)
	if err != nil {
		return err
	}

	var (
		rows    [2][]int
		weights [2][]float64
	)

	for i, y := range train.Y {
		c := classIndex(y)
		rows[c] = append(rows[c], i)
		weights[c] = append(weights[c], train.Weight(i))
	}

	total := floats.Sum(weights[0]) + floats.Sum(weights[1])

	for c := range 2 {
		nb.logPrior[c] = math.Log(floats.Sum(weights[c]) / total)
		nb.dists[c] = make([]distuv.Normal, train.NumFeatures())

		column := make([]float64, len(rows[c]))

		for j := range nb.dists[c] {
			for k, i := range rows[c] {
				column[k] = train.X[i][j]
			}

			mean, variance := stat.PopMeanVariance(column, weights[c])
			nb.dists[c][j] = distuv.Normal{Mu: mean, Sigma: max(math.Sqrt(variance), minStdDev)}
		}
	}

	return nil
}

// Score returns the posterior probability of the positive class.
func (nb *NaiveBayes) Score(test Instances) ([]float64, error) {
	if nb.dists[0] == nil {
		return nil, ErrNotFitted
	}

	scores := make([]float64, test.Len())

	var logp [2]float64

	for i, x := range test.X {
		for c := range 2 {
			logp[c] = nb.logPrior[c]

			for j, v := range x {
				logp[c] += nb.dists[c][j].LogProb(v)
			}
		}

		scores[i] = math.Exp(logp[1] - floats.LogSumExp(logp[:]))
	}

	return scores, nil
}

func classIndex(y bool) int {
	if y {
		return 1
	}

	return 0
}
