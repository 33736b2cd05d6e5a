package evaluate

import (
	"errors"
	"fmt"
	"strings"
)

// Classifier names a classification strategy.
type Classifier string

// Classifiers.
const (
	RandomForest Classifier = "RandomForest"
	NaiveBayes   Classifier = "NaiveBayes"
	IBk          Classifier = "IBk"
)

// FeatureSelection names a feature selection mode.
type FeatureSelection string

// Feature selection modes.
const (
	NoSelection FeatureSelection = "none"
	BestFirst   FeatureSelection = "BestFirst"
)

// Resampling names a training-set rebalancing mode.
type Resampling string

// Resampling modes.
const (
	NoResampling  Resampling = "none"
	Oversampling  Resampling = "oversampling"
	Undersampling Resampling = "undersampling"
	SMOTE         Resampling = "SMOTE"
)

// CostSensitivity names how misclassification costs are applied.
type CostSensitivity string

// Cost modes.
const (
	NoCost            CostSensitivity = "none"
	CostThreshold     CostSensitivity = "threshold"
	SensitiveLearning CostSensitivity = "sensitive_learning"
)

// ErrInvalidGrid is returned for an empty grid dimension or an unknown name.
var ErrInvalidGrid = errors.New("invalid evaluation grid")

// Configuration is one point of the grid.
type Configuration struct {
	Classifier       Classifier
	FeatureSelection FeatureSelection
	Resampling       Resampling
	Cost             CostSensitivity
}

func (c Configuration) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", c.Classifier, c.FeatureSelection, c.Resampling, c.Cost)
}

// Grid lists the values of each dimension to cross.
type Grid struct {
	Classifiers       []Classifier
	FeatureSelections []FeatureSelection
	Resamplings       []Resampling
	Costs             []CostSensitivity
}

// DefaultGrid returns the full 3 x 2 x 4 x 3 grid.
func DefaultGrid() Grid {
	return Grid{
		Classifiers:       []Classifier{RandomForest, NaiveBayes, IBk},
		FeatureSelections: []FeatureSelection{NoSelection, BestFirst},
		Resamplings:       []Resampling{NoResampling, Oversampling, Undersampling, SMOTE},
		Costs:             []CostSensitivity{NoCost, CostThreshold, SensitiveLearning},
	}
}

// Validate checks that every dimension is non-empty.
func (g Grid) Validate() error {
	switch {
	case len(g.Classifiers) == 0:
		return fmt.Errorf("%w: no classifiers", ErrInvalidGrid)
	case len(g.FeatureSelections) == 0:
		return fmt.Errorf("%w: no feature selection modes", ErrInvalidGrid)
	case len(g.Resamplings) == 0:
		return fmt.Errorf("%w: no resampling modes", ErrInvalidGrid)
	case len(g.Costs) == 0:
		return fmt.Errorf("%w: no cost modes", ErrInvalidGrid)
	}

	return nil
}

// Configurations enumerates the cross product, classifier outermost and cost
// innermost.
func (g Grid) Configurations() []Configuration {
	out := make([]Configuration, 0, len(g.Classifiers)*len(g.FeatureSelections)*len(g.Resamplings)*len(g.Costs))

	for _, c := range g.Classifiers {
		for _, fs := range g.FeatureSelections {
			for _, rs := range g.Resamplings {
				for _, cost := range g.Costs {
					out = append(out, Configuration{Classifier: c, FeatureSelection: fs, Resampling: rs, Cost: cost})
				}
			}
		}
	}

	return out
}

// ParseGrid builds a grid from names, matched case-insensitively. An empty
// list keeps the full dimension.
func ParseGrid(classifiers, selections, resamplings, costs []string) (Grid, error) {
	full := DefaultGrid()

	var (
		g   Grid
		err error
	)

	if g.Classifiers, err = parseNames(classifiers, full.Classifiers); err != nil {
		return Grid{}, err
	}

	if g.FeatureSelections, err = parseNames(selections, full.FeatureSelections); err != nil {
		return Grid{}, err
	}

	if g.Resamplings, err = parseNames(resamplings, full.Resamplings); err != nil {
		return Grid{}, err
	}

	if g.Costs, err = parseNames(costs, full.Costs); err != nil {
		return Grid{}, err
	}

	return g, nil
}

func parseNames[T ~string](names []string, known []T) ([]T, error) {
	if len(names) == 0 {
		return known, nil
	}

	out := make([]T, 0, len(names))

	for _, name := range names {
		found := false

		for _, k := range known {
			if strings.EqualFold(strings.TrimSpace(name), string(k)) {
				out = append(out, k)
				found = true

				break
			}
		}

		if !found {
			return nil, fmt.Errorf("%w: unknown name %q", ErrInvalidGrid, name)
		}
	}

	return out, nil
}
