package learn

import (
	"fmt"
	"math/rand/v2"

	"github.com/sjwhitworth/golearn/knn"
)

// IBk is a golearn k-nearest-neighbour classifier over min-max normalized
// features, using euclidean distance and a linear search. Its score is the
// majority label, 1 for buggy and 0 for clean.
type IBk struct {
	K int

	schema    *schema
	low, span []float64
	model     *knn.KNNClassifier
}

// NewIBk returns an unfitted classifier voting over k neighbours. k < 1 means 1.
func NewIBk(k int) *IBk {
	return &IBk{K: max(k, 1)}
}

// Fit records the feature ranges and hands the normalized training set to
// golearn. Weighted sets are first resampled by weight.
func (c *IBk) Fit(train Instances, rng *rand.Rand) error {
	err := checkTraining(train)
	if err != nil {
		return err
	}

	train = unweighted(train, orSeeded(rng))

	features := train.NumFeatures()
	c.low = make([]float64, features)
	c.span = make([]float64, features)

	for j := range features {
		low, high := train.X[0][j], train.X[0][j]

		for _, row := range train.X[1:] {
			low, high = min(low, row[j]), max(high, row[j])
		}

		c.low[j], c.span[j] = low, high-low
	}

	c.schema = newSchema(features)

	g, err := c.schema.grid(c.normalize(train), allColumns(features), true)
	if err != nil {
		return err
	}

	model := knn.NewKnnClassifier("euclidean", "linear", c.K)

	err = model.Fit(g)
	if err != nil {
		return fmt.Errorf("fit knn: %w", err)
	}

	c.model = model

	return nil
}

// Score predicts every test instance.
func (c *IBk) Score(test Instances) ([]float64, error) {
	if c.model == nil {
		return nil, ErrNotFitted
	}

	if test.Len() == 0 {
		return []float64{}, nil
	}

	return c.schema.predictBuggy(c.model, c.normalize(test), allColumns(len(c.low)))
}

// normalize maps every feature into [0, 1] by the training ranges. Constant
// features map to 0.
func (c *IBk) normalize(in Instances) Instances {
	out := Instances{X: make([][]float64, in.Len()), Y: in.Y}

	for i, row := range in.X {
		scaled := make([]float64, len(row))

		for j, v := range row {
			if c.span[j] > 0 {
				scaled[j] = (v - c.low[j]) / c.span[j]
			}
		}

		out.X[i] = scaled
	}

	return out
}
