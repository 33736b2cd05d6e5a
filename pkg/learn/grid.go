package learn

import (
	"fmt"
	"strconv"

	"github.com/sjwhitworth/golearn/base"
)

const (
	cleanLabel = "clean"
	buggyLabel = "buggy"
)

// schema holds the golearn attributes of one fitted classifier. Training and
// test grids are built from the same attribute values so golearn sees them
// as compatible.
type schema struct {
	features []base.Attribute
	class    *base.CategoricalAttribute
}

func newSchema(features int) *schema {
	s := &schema{features: make([]base.Attribute, features)}

	for j := range s.features {
		s.features[j] = base.NewFloatAttribute("f" + strconv.Itoa(j))
	}

	s.class = base.NewCategoricalAttribute()
	s.class.SetName("class")

	// Both labels exist before any grid so their encoding is fixed.
	s.class.GetSysValFromString(cleanLabel)
	s.class.GetSysValFromString(buggyLabel)

	return s
}

// grid copies the columns cols of in into a dense golearn grid. Unlabeled
// grids, used for prediction, carry the clean label on every row.
func (s *schema) grid(in Instances, cols []int, labeled bool) (*base.DenseInstances, error) {
	g := base.NewDenseInstances()

	specs := make([]base.AttributeSpec, len(cols))
	for k, c := range cols {
		specs[k] = g.AddAttribute(s.features[c])
	}

	classSpec := g.AddAttribute(s.class)

	err := g.AddClassAttribute(s.class)
	if err != nil {
		return nil, fmt.Errorf("set class attribute: %w", err)
	}

	err = g.Extend(in.Len())
	if err != nil {
		return nil, fmt.Errorf("allocate %d rows: %w", in.Len(), err)
	}

	clean, buggy := s.class.GetSysValFromString(cleanLabel), s.class.GetSysValFromString(buggyLabel)

	for i, row := range in.X {
		for k, c := range cols {
			g.Set(specs[k], i, base.PackFloatToBytes(row[c]))
		}

		if labeled && in.Y[i] {
			g.Set(classSpec, i, buggy)
		} else {
			g.Set(classSpec, i, clean)
		}
	}

	return g, nil
}

// predictor is the prediction half of a fitted golearn model.
type predictor interface {
	Predict(what base.FixedDataGrid) (base.FixedDataGrid, error)
}

// predictBuggy reports, per test row, 1 when model predicts the buggy label
// and 0 otherwise.
func (s *schema) predictBuggy(model predictor, test Instances, cols []int) ([]float64, error) {
	g, err := s.grid(test, cols, false)
	if err != nil {
		return nil, err
	}

	pred, err := model.Predict(g)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	out := make([]float64, test.Len())

	for i := range out {
		if base.GetClass(pred, i) == buggyLabel {
			out[i] = 1
		}
	}

	return out, nil
}

func allColumns(n int) []int {
	cols := make([]int, n)
	for j := range cols {
		cols[j] = j
	}

	return cols
}
