// Package learn holds the reference classification strategies used by the
// walk-forward evaluator: three classifiers, three training-set resamplers,
// correlation-based feature selection and cost-sensitive reweighting.
//
// RandomForest and IBk train golearn models and NaiveBayes fits gonum
// distributions. Every strategy works on Instances, a dense feature matrix
// with boolean labels where true is the positive (buggy) class, and draws
// randomness only from the *rand.Rand it is given.
package learn

import (
	"errors"
	"math/rand/v2"
	"slices"
)

var (
	// ErrEmptyTraining is returned when a strategy receives no instances.
	ErrEmptyTraining = errors.New("empty training set")
	// ErrSingleClass is returned when the training set holds one label only.
	ErrSingleClass = errors.New("training set holds a single class")
	// ErrNotFitted is returned when a classifier scores before Fit succeeded.
	ErrNotFitted = errors.New("classifier not fitted")
)

// Instances is a labeled feature matrix. W holds per-instance weights; nil
// means every instance weighs 1.
type Instances struct {
	X [][]float64
	Y []bool
	W []float64
}

// Len returns the number of instances.
func (in Instances) Len() int {
	return len(in.X)
}

// NumFeatures returns the width of the feature matrix.
func (in Instances) NumFeatures() int {
	if len(in.X) == 0 {
		return 0
	}

	return len(in.X[0])
}

// Weight returns the weight of instance i.
func (in Instances) Weight(i int) float64 {
	if in.W == nil {
		return 1
	}

	return in.W[i]
}

// Positives returns the number of positive instances.
func (in Instances) Positives() int {
	n := 0

	for _, y := range in.Y {
		if y {
			n++
		}
	}

	return n
}

// Subset returns the instances at idx, in that order. Rows are shared.
func (in Instances) Subset(idx []int) Instances {
	out := Instances{X: make([][]float64, len(idx)), Y: make([]bool, len(idx))}

	if in.W != nil {
		out.W = make([]float64, len(idx))
	}

	for j, i := range idx {
		out.X[j] = in.X[i]
		out.Y[j] = in.Y[i]

		if in.W != nil {
			out.W[j] = in.W[i]
		}
	}

	return out
}

// Project returns a copy holding only the given feature columns.
func (in Instances) Project(cols []int) Instances {
	out := Instances{X: make([][]float64, len(in.X)), Y: in.Y, W: in.W}

	for i, row := range in.X {
		projected := make([]float64, len(cols))
		for j, c := range cols {
			projected[j] = row[c]
		}

		out.X[i] = projected
	}

	return out
}

// split returns the indices of positive and negative instances.
func (in Instances) split() (pos, neg []int) {
	for i, y := range in.Y {
		if y {
			pos = append(pos, i)
		} else {
			neg = append(neg, i)
		}
	}

	return pos, neg
}

// Classifier estimates the probability that each test instance is positive.
// Score ignores the labels of test.
type Classifier interface {
	Fit(train Instances, rng *rand.Rand) error
	Score(test Instances) ([]float64, error)
}

// Resampler rebalances a training set.
type Resampler interface {
	Resample(train Instances, rng *rand.Rand) (Instances, error)
}

// FeatureSelector chooses the feature columns to keep.
type FeatureSelector interface {
	Select(train Instances) ([]int, error)
}

// Reweight returns a copy of in whose positive instances weigh
// falseNegative and negative ones falsePositive, rescaled so that the total
// weight equals the instance count.
func Reweight(in Instances, falsePositive, falseNegative float64) Instances {
	out := in
	out.W = make([]float64, in.Len())

	var total float64

	for i, y := range in.Y {
		cost := falsePositive
		if y {
			cost = falseNegative
		}

		out.W[i] = in.Weight(i) * cost
		total += out.W[i]
	}

	if total > 0 {
		scale := float64(in.Len()) / total
		for i := range out.W {
			out.W[i] *= scale
		}
	}

	return out
}

// draw samples n instance indices with replacement, each with probability
// proportional to its weight.
func draw(in Instances, n int, rng *rand.Rand) []int {
	idx := make([]int, n)

	if in.W == nil {
		for k := range idx {
			idx[k] = rng.IntN(in.Len())
		}

		return idx
	}

	cumulative := make([]float64, in.Len())

	var total float64

	for i := range cumulative {
		total += in.Weight(i)
		cumulative[i] = total
	}

	for k := range idx {
		idx[k], _ = slices.BinarySearch(cumulative, rng.Float64()*total)
	}

	return idx
}

// unweighted turns instance weights into multiplicities by weighted sampling
// with replacement, for learners that ignore weights. Unweighted sets are
// returned as they are.
func unweighted(in Instances, rng *rand.Rand) Instances {
	if in.W == nil {
		return in
	}

	out := in.Subset(draw(in, in.Len(), rng))
	out.W = nil

	return out
}

// orSeeded returns rng, or a fixed-seed source when rng is nil.
func orSeeded(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}

	return rand.New(rand.NewPCG(1, 1))
}

func checkTraining(train Instances) error {
	if train.Len() == 0 {
		return ErrEmptyTraining
	}

	if pos := train.Positives(); pos == 0 || pos == train.Len() {
		return ErrSingleClass
	}

	return nil
}
