package gbdt

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// synthetic draws rows where feature 0 drives the label and feature 1 is noise.
func synthetic(n int, seed int64) ([][]float64, []int) {
	rnd := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]int, n)
	for i := range X {
		signal := rnd.Float64() * 10
		noise := float64(rnd.Intn(5))
		X[i] = []float64{signal, noise}
		p := 1 / (1 + math.Exp(-(signal - 5)))
		if rnd.Float64() < p {
			y[i] = 1
		}
	}
	return X, y
}

func smallModel(opts ...Option) *Classifier {
	base := []Option{WithNEstimators(40), WithLearningRate(0.1), WithMaxDepth(4), WithNumLeaves(8), WithMinChildSamples(5), WithSeed(42)}
	return New(append(base, opts...)...)
}

func accuracy(t *testing.T, c *Classifier, X [][]float64, y []int) float64 {
	t.Helper()
	pred, err := c.Predict(X)
	require.NoError(t, err)
	correct := 0
	for i := range y {
		if pred[i] == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(y))
}

func TestFit_LearnsSignal(t *testing.T) {
	X, y := synthetic(600, 1)
	c := smallModel()
	require.NoError(t, c.Fit(context.Background(), X, y))

	assert.Equal(t, 40, c.NumTrees())
	assert.Equal(t, 2, c.NumFeatures())

	testX, testY := synthetic(300, 2)
	assert.Greater(t, accuracy(t, c, testX, testY), 0.7)

	imp := c.FeatureImportance()
	require.Len(t, imp, 2)
	assert.Greater(t, imp[0], imp[1])

	low, err := c.PredictProba([]float64{0.5, 2})
	require.NoError(t, err)
	high, err := c.PredictProba([]float64{9.5, 2})
	require.NoError(t, err)
	assert.Less(t, low, high)
	assert.GreaterOrEqual(t, low, 0.0)
	assert.LessOrEqual(t, high, 1.0)
}

func TestFit_Deterministic(t *testing.T) {
	X, y := synthetic(400, 3)

	for _, opts := range [][]Option{nil, {WithSubsample(0.7)}} {
		a, b := smallModel(opts...), smallModel(opts...)
		require.NoError(t, a.Fit(context.Background(), X, y))
		require.NoError(t, b.Fit(context.Background(), X, y))

		pa, err := a.PredictProbaBatch(X)
		require.NoError(t, err)
		pb, err := b.PredictProbaBatch(X)
		require.NoError(t, err)
		assert.Equal(t, pa, pb)
	}
}

func TestFit_TreeShape(t *testing.T) {
	X, y := synthetic(500, 4)
	c := smallModel(WithNumLeaves(6), WithMaxDepth(3))
	require.NoError(t, c.Fit(context.Background(), X, y))

	total := 0
	for _, tree := range c.trees {
		assert.LessOrEqual(t, tree.NumLeaves(), 6)
		assert.LessOrEqual(t, depth(tree, 0), 3)
		total += tree.NumLeaves()
	}
	assert.Equal(t, total, c.NumLeaves())
	assert.LessOrEqual(t, c.NumLeaves(), 6*c.NumTrees())
	assert.Zero(t, New().NumLeaves())
}

func depth(t *Tree, i int) int {
	n := t.Nodes[i]
	if n.isLeaf() {
		return 0
	}
	return 1 + max(depth(t, n.Left), depth(t, n.Right))
}

func TestFit_InitScoreIsBaseRateLogOdds(t *testing.T) {
	X, y := synthetic(200, 5)
	c := smallModel(WithNEstimators(1))
	require.NoError(t, c.Fit(context.Background(), X, y))

	pos := 0
	for _, label := range y {
		pos += label
	}
	base := float64(pos) / float64(len(y))
	assert.InDelta(t, math.Log(base/(1-base)), c.initScore, 1e-12)
}

func TestFit_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("single class", func(t *testing.T) {
		err := smallModel().Fit(ctx, [][]float64{{1}, {2}, {3}}, []int{0, 0, 0})
		assert.ErrorIs(t, err, ErrSingleClass)
	})

	t.Run("empty", func(t *testing.T) {
		assert.ErrorIs(t, smallModel().Fit(ctx, nil, nil), ErrEmptyDataset)
	})

	t.Run("ragged rows", func(t *testing.T) {
		assert.Error(t, smallModel().Fit(ctx, [][]float64{{1, 2}, {3}}, []int{0, 1}))
	})

	t.Run("non-binary label", func(t *testing.T) {
		assert.Error(t, smallModel().Fit(ctx, [][]float64{{1}, {2}}, []int{0, 2}))
	})

	t.Run("NaN feature", func(t *testing.T) {
		assert.Error(t, smallModel().Fit(ctx, [][]float64{{1}, {math.NaN()}}, []int{0, 1}))
	})

	t.Run("invalid params", func(t *testing.T) {
		X, y := synthetic(50, 6)
		assert.Error(t, smallModel(WithNumLeaves(1)).Fit(ctx, X, y))
		assert.Error(t, smallModel(WithSubsample(0)).Fit(ctx, X, y))
	})

	t.Run("cancelled", func(t *testing.T) {
		X, y := synthetic(50, 7)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		c := smallModel()
		assert.ErrorIs(t, c.Fit(cancelled, X, y), context.Canceled)
		assert.Equal(t, 0, c.NumTrees())
	})
}

func TestPredict_Errors(t *testing.T) {
	_, err := New().PredictProba([]float64{1, 2})
	assert.ErrorIs(t, err, ErrNotFitted)

	X, y := synthetic(100, 8)
	c := smallModel()
	require.NoError(t, c.Fit(context.Background(), X, y))
	_, err = c.PredictProba([]float64{1})
	assert.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	X, y := synthetic(300, 9)
	c := smallModel()
	require.NoError(t, c.Fit(context.Background(), X, y))

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded Classifier
	require.NoError(t, json.Unmarshal(data, &decoded))

	want, err := c.PredictProbaBatch(X)
	require.NoError(t, err)
	got, err := decoded.PredictProbaBatch(X)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, c.Params(), decoded.Params())
	assert.Equal(t, c.FeatureImportance(), decoded.FeatureImportance())
}

func TestUnmarshalJSON_RejectsMalformedTrees(t *testing.T) {
	tests := map[string]string{
		"no trees":          `{"n_features": 2, "trees": []}`,
		"no features":       `{"n_features": 0, "trees": [{"nodes": [{"left": -1, "right": -1}]}]}`,
		"feature out range": `{"n_features": 1, "trees": [{"nodes": [{"feature": 3, "left": 1, "right": 2}, {"left": -1}, {"left": -1}]}]}`,
		"cycle":             `{"n_features": 1, "trees": [{"nodes": [{"feature": 0, "left": 0, "right": 0}]}]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			var c Classifier
			assert.Error(t, json.Unmarshal([]byte(body), &c))
		})
	}

	_, err := json.Marshal(New())
	assert.Error(t, err)
}
