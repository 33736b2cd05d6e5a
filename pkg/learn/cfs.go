package learn

import "math"

// CFS selects features by correlation-based subset merit with a greedy
// backward stepwise search: starting from every feature it repeatedly drops
// the feature whose removal does not lower the merit, preferring the removal
// with the highest resulting merit. At least one feature is kept.
//
// Merit(S) = sum of |r(f, class)| / sqrt(k + 2 * sum of |r(f, g)|) over the
// k features of S, with r the Pearson correlation.
type CFS struct{}

// Select returns the kept feature columns in increasing order.
func (CFS) Select(train Instances) ([]int, error) {
	if train.Len() == 0 {
		return nil, ErrEmptyTraining
	}

	features := train.NumFeatures()
	columns := make([][]float64, features+1)

	for j := range features {
		columns[j] = make([]float64, train.Len())

		for i, row := range train.X {
			columns[j][i] = row[j]
		}
	}

	label := make([]float64, train.Len())
	for i, y := range train.Y {
		if y {
			label[i] = 1
		}
	}

	columns[features] = label

	corr := make([][]float64, features+1)
	for a := range corr {
		corr[a] = make([]float64, features+1)
	}

	for a := range columns {
		for b := a + 1; b < len(columns); b++ {
			r := math.Abs(pearson(columns[a], columns[b]))
			corr[a][b], corr[b][a] = r, r
		}
	}

	selected := make([]bool, features)
	for j := range selected {
		selected[j] = true
	}

	current := merit(corr, selected, features)

	for kept := features; kept > 1; kept-- {
		drop, best := -1, math.Inf(-1)

		for j := range selected {
			if !selected[j] {
				continue
			}

			selected[j] = false

			if m := merit(corr, selected, features); m > best {
				drop, best = j, m
			}

			selected[j] = true
		}

		if best < current {
			break
		}

		selected[drop] = false
		current = best
	}

	var out []int

	for j, keep := range selected {
		if keep {
			out = append(out, j)
		}
	}

	return out, nil
}

func merit(corr [][]float64, selected []bool, class int) float64 {
	var (
		k        float64
		relevant float64
		redund   float64
	)

	for a, inA := range selected {
		if !inA {
			continue
		}

		k++
		relevant += corr[a][class]

		for b := a + 1; b < len(selected); b++ {
			if selected[b] {
				redund += corr[a][b]
			}
		}
	}

	if k == 0 {
		return 0
	}

	return relevant / math.Sqrt(k+2*redund)
}

// pearson returns the correlation of a and b, or 0 when either is constant.
func pearson(a, b []float64) float64 {
	n := float64(len(a))

	var sumA, sumB float64

	for i := range a {
		sumA += a[i]
		sumB += b[i]
	}

	meanA, meanB := sumA/n, sumB/n

	var cov, varA, varB float64

	for i := range a {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}

	if varA == 0 || varB == 0 {
		return 0
	}

	return cov / math.Sqrt(varA*varB)
}
