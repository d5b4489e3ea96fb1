// Package gbdt is a gradient-boosted decision tree classifier for binary
// targets. Trees are grown leaf-wise on the second-order expansion of the
// log loss, in the manner of LightGBM.
package gbdt

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

var (
	// ErrNotFitted is returned by prediction before Fit or decoding.
	ErrNotFitted = errors.New("gbdt: classifier is not fitted")
	// ErrSingleClass means the target has no second class to separate.
	ErrSingleClass = errors.New("gbdt: target has a single class")
	// ErrEmptyDataset is returned by Fit for zero rows or zero features.
	ErrEmptyDataset = errors.New("gbdt: empty dataset")
)

// Classifier is a binary gradient-boosted tree ensemble. It is immutable
// after Fit or after decoding, and safe for concurrent prediction.
type Classifier struct {
	params     Params
	initScore  float64
	trees      []*Tree
	nFeatures  int
	importance []float64
}

// New returns an unfitted classifier.
func New(opts ...Option) *Classifier {
	p := DefaultParams()
	for _, o := range opts {
		o(&p)
	}
	return &Classifier{params: p}
}

// Params returns the hyperparameters.
func (c *Classifier) Params() Params { return c.params }

// NumFeatures returns the row width the model was trained on.
func (c *Classifier) NumFeatures() int { return c.nFeatures }

// NumTrees returns the number of boosting stages.
func (c *Classifier) NumTrees() int { return len(c.trees) }

// NumLeaves returns the leaf count summed over every tree, a rough measure
// of model size. It is 0 before Fit.
func (c *Classifier) NumLeaves() int {
	leaves := 0
	for _, t := range c.trees {
		leaves += t.NumLeaves()
	}
	return leaves
}

// Fit trains the ensemble on X (n rows of p features) and binary labels y.
// Fitting is deterministic for a given input and seed.
func (c *Classifier) Fit(ctx context.Context, X [][]float64, y []int) error {
	if err := c.params.validate(); err != nil {
		return err
	}
	p, err := checkTrainingSet(X, y)
	if err != nil {
		return err
	}

	n := len(X)
	positives := 0
	for _, label := range y {
		positives += label
	}
	base := float64(positives) / float64(n)
	initScore := math.Log(base / (1 - base))

	importance := make([]float64, p)
	gr := newGrower(c.params, X, importance)
	presorted := presort(X, p)
	rnd := rand.New(rand.NewSource(c.params.Seed))

	score := make([]float64, n)
	for i := range score {
		score[i] = initScore
	}

	trees := make([]*Tree, 0, c.params.NEstimators)
	for iter := 0; iter < c.params.NEstimators; iter++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("gbdt: fit interrupted at tree %d: %w", iter, err)
		}

		for i := range score {
			prob := sigmoid(score[i])
			gr.grad[i] = prob - float64(y[i])
			gr.hess[i] = prob * (1 - prob)
		}

		tree := gr.grow(bag(presorted, n, c.params.Subsample, rnd))
		for i, row := range X {
			score[i] += tree.predict(row)
		}
		trees = append(trees, tree)
	}

	c.initScore = initScore
	c.trees = trees
	c.nFeatures = p
	c.importance = importance
	return nil
}

func checkTrainingSet(X [][]float64, y []int) (int, error) {
	if len(X) == 0 {
		return 0, ErrEmptyDataset
	}
	if len(y) != len(X) {
		return 0, fmt.Errorf("gbdt: %d rows but %d labels", len(X), len(y))
	}
	p := len(X[0])
	if p == 0 {
		return 0, fmt.Errorf("gbdt: rows have no features")
	}
	seen := [2]bool{}
	for i, row := range X {
		if len(row) != p {
			return 0, fmt.Errorf("gbdt: row %d has %d features, expected %d", i, len(row), p)
		}
		for f, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, fmt.Errorf("gbdt: row %d feature %d is not finite", i, f)
			}
		}
		if y[i] != 0 && y[i] != 1 {
			return 0, fmt.Errorf("gbdt: label %d at row %d is not binary", y[i], i)
		}
		seen[y[i]] = true
	}
	if !seen[0] || !seen[1] {
		return 0, ErrSingleClass
	}
	return p, nil
}

// presort orders the row indices by every feature, ties broken by index.
func presort(X [][]float64, p int) [][]int {
	sorted := make([][]int, p)
	for f := 0; f < p; f++ {
		order := make([]int, len(X))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })
		sorted[f] = order
	}
	return sorted
}

// bag draws the rows of one tree. With fraction 1 every row is used.
func bag(presorted [][]int, n int, fraction float64, rnd *rand.Rand) [][]int {
	if fraction >= 1 {
		return presorted
	}
	k := int(math.Max(1, math.Round(fraction*float64(n))))
	in := make([]bool, n)
	for _, i := range rnd.Perm(n)[:k] {
		in[i] = true
	}
	out := make([][]int, len(presorted))
	for f, order := range presorted {
		kept := make([]int, 0, k)
		for _, i := range order {
			if in[i] {
				kept = append(kept, i)
			}
		}
		out[f] = kept
	}
	return out
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// RawScore returns the log-odds for one row.
func (c *Classifier) RawScore(row []float64) (float64, error) {
	if c.trees == nil {
		return 0, ErrNotFitted
	}
	if len(row) != c.nFeatures {
		return 0, fmt.Errorf("gbdt: row has %d features, model expects %d", len(row), c.nFeatures)
	}
	score := c.initScore
	for _, t := range c.trees {
		score += t.predict(row)
	}
	return score, nil
}

// PredictProba returns the probability of the positive class for one row.
func (c *Classifier) PredictProba(row []float64) (float64, error) {
	score, err := c.RawScore(row)
	if err != nil {
		return 0, err
	}
	return sigmoid(score), nil
}

// PredictProbaBatch scores every row of X.
func (c *Classifier) PredictProbaBatch(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, row := range X {
		prob, err := c.PredictProba(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = prob
	}
	return out, nil
}

// Predict returns hard labels: 1 when the probability exceeds 0.5.
func (c *Classifier) Predict(X [][]float64) ([]int, error) {
	probs, err := c.PredictProbaBatch(X)
	if err != nil {
		return nil, err
	}
	labels := make([]int, len(probs))
	for i, prob := range probs {
		if prob > 0.5 {
			labels[i] = 1
		}
	}
	return labels, nil
}

// FeatureImportance returns the total split gain per feature.
func (c *Classifier) FeatureImportance() []float64 {
	out := make([]float64, len(c.importance))
	copy(out, c.importance)
	return out
}
