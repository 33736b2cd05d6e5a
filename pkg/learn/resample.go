package learn

import (
	"cmp"
	"math/rand/v2"
	"slices"
)

// DefaultNeighbours is the SMOTE neighbourhood size.
const DefaultNeighbours = 5

// Undersampler drops majority instances at random until both classes have
// the same size.
type Undersampler struct{}

// Resample keeps every minority instance and as many majority ones, in their
// original order.
func (Undersampler) Resample(train Instances, rng *rand.Rand) (Instances, error) {
	if err := checkTraining(train); err != nil {
		return Instances{}, err
	}

	minority, majority := classes(train)

	kept := slices.Clone(minority)
	for _, k := range rng.Perm(len(majority))[:len(minority)] {
		kept = append(kept, majority[k])
	}

	slices.Sort(kept)

	return train.Subset(kept), nil
}

// Oversampler samples each class with replacement toward a uniform class
// distribution. The result holds twice the majority class count, split
// evenly between the classes.
type Oversampler struct{}

// Resample draws majority-count instances with replacement from each class.
func (Oversampler) Resample(train Instances, rng *rand.Rand) (Instances, error) {
	if err := checkTraining(train); err != nil {
		return Instances{}, err
	}

	minority, majority := classes(train)
	size := len(majority)

	drawn := make([]int, 0, 2*size)

	for _, class := range [][]int{majority, minority} {
		for range size {
			drawn = append(drawn, class[rng.IntN(len(class))])
		}
	}

	slices.Sort(drawn)

	return train.Subset(drawn), nil
}

// SMOTE synthesizes minority instances by interpolating between a minority
// instance and one of its nearest minority neighbours, adding
// (majority - minority) / minority * 100 percent of the minority class.
type SMOTE struct {
	Neighbours int
}

// Resample appends the synthetic instances after the original ones.
func (s SMOTE) Resample(train Instances, rng *rand.Rand) (Instances, error) {
	if err := checkTraining(train); err != nil {
		return Instances{}, err
	}

	k := s.Neighbours
	if k <= 0 {
		k = DefaultNeighbours
	}

	minority, majority := classes(train)
	k = min(k, len(minority)-1)

	out := Instances{X: slices.Clone(train.X), Y: slices.Clone(train.Y)}
	if train.W != nil {
		out.W = slices.Clone(train.W)
	}

	label := train.Y[minority[0]]
	neighbours := make(map[int][]int, len(minority))

	for n := range len(majority) - len(minority) {
		base := minority[n%len(minority)]
		synthetic := slices.Clone(train.X[base])

		if k > 0 {
			near, ok := neighbours[base]
			if !ok {
				near = nearest(train.X, base, minority, k)
				neighbours[base] = near
			}

			other := train.X[near[rng.IntN(len(near))]]
			gap := rng.Float64()

			for j := range synthetic {
				synthetic[j] += gap * (other[j] - synthetic[j])
			}
		}

		out.X = append(out.X, synthetic)
		out.Y = append(out.Y, label)

		if out.W != nil {
			out.W = append(out.W, train.W[base])
		}
	}

	return out, nil
}

// classes returns the instance indices of the smaller and larger class. Ties
// treat the positive class as the minority.
func classes(train Instances) (minority, majority []int) {
	pos, neg := train.split()
	if len(pos) <= len(neg) {
		return pos, neg
	}

	return neg, pos
}

// nearest returns the k candidates closest to x[from] by Euclidean distance,
// excluding from itself.
func nearest(x [][]float64, from int, candidates []int, k int) []int {
	type scored struct {
		index int
		dist  float64
	}

	var others []scored

	for _, c := range candidates {
		if c == from {
			continue
		}

		var d float64

		for j := range x[from] {
			diff := x[from][j] - x[c][j]
			d += diff * diff
		}

		others = append(others, scored{index: c, dist: d})
	}

	slices.SortStableFunc(others, func(a, b scored) int {
		return cmp.Compare(a.dist, b.dist)
	})

	out := make([]int, 0, k)
	for _, o := range others[:min(k, len(others))] {
		out = append(out, o.index)
	}

	return out
}
