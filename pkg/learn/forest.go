package learn

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/sjwhitworth/golearn/trees"
)

// DefaultTrees is the forest size used when RandomForest.Trees is zero.
const DefaultTrees = 100

// RandomForest bags golearn ID3 trees, each grown on a bootstrap sample over
// a random subset of the features, and scores by the share of trees voting
// buggy. Samples and subsets come from the rng given to Fit, so a seeded run
// grows the same forest. Instance weights steer the bootstrap.
type RandomForest struct {
	Trees int
	// Features per tree; zero means floor(log2(m)) + 1.
	Features int

	schema  *schema
	members []forestMember
}

type forestMember struct {
	cols []int
	tree predictor
}

// NewRandomForest returns an unfitted forest of the given size.
func NewRandomForest(size int) *RandomForest {
	return &RandomForest{Trees: size}
}

// Fit grows every tree.
func (rf *RandomForest) Fit(train Instances, rng *rand.Rand) error {
	err := checkTraining(train)
	if err != nil {
		return err
	}

	rng = orSeeded(rng)

	size := rf.Trees
	if size <= 0 {
		size = DefaultTrees
	}

	features := train.NumFeatures()

	tried := rf.Features
	if tried <= 0 {
		tried = int(math.Log2(float64(features))) + 1
	}

	tried = min(tried, features)

	rf.schema = newSchema(features)
	rf.members = make([]forestMember, 0, size)

	for t := range size {
		sample := train.Subset(draw(train, train.Len(), rng))
		sample.W = nil

		cols := rng.Perm(features)[:tried]
		slices.Sort(cols)

		g, err := rf.schema.grid(sample, cols, true)
		if err != nil {
			return err
		}

		tree := trees.NewID3DecisionTree(0)

		err = tree.Fit(g)
		if err != nil {
			rf.members = nil

			return fmt.Errorf("grow tree %d: %w", t, err)
		}

		rf.members = append(rf.members, forestMember{cols: cols, tree: tree})
	}

	return nil
}

// Score returns the fraction of trees predicting buggy for each instance.
func (rf *RandomForest) Score(test Instances) ([]float64, error) {
	if len(rf.members) == 0 {
		return nil, ErrNotFitted
	}

	scores := make([]float64, test.Len())
	if test.Len() == 0 {
		return scores, nil
	}

	for t, m := range rf.members {
		votes, err := rf.schema.predictBuggy(m.tree, test, m.cols)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", t, err)
		}

		for i, v := range votes {
			scores[i] += v
		}
	}

	for i := range scores {
		scores[i] /= float64(len(rf.members))
	}

	return scores, nil
}
