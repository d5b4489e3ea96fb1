package ml

import (
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dropout-risk/internal/features"
	"dropout-risk/internal/gbdt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trainedModel fits a small classifier on rows where failing grades mean dropout.
func trainedModel(t *testing.T) *gbdt.Classifier {
	t.Helper()
	rnd := rand.New(rand.NewSource(7))
	X := make([][]float64, 200)
	y := make([]int, 200)
	for i := range X {
		grade := rnd.Float64() * 20
		X[i] = []float64{
			float64(18 + rnd.Intn(20)), float64(rnd.Intn(8)), float64(rnd.Intn(8)),
			0, 0, grade, grade, 1, float64(rnd.Intn(2)),
		}
		if grade < 8 {
			y[i] = 1
		}
	}
	c := gbdt.New(gbdt.WithNEstimators(20), gbdt.WithMinChildSamples(5), gbdt.WithSeed(1))
	require.NoError(t, c.Fit(context.Background(), X, y))
	return c
}

func TestSaveLoadArtifact(t *testing.T) {
	model := trainedModel(t)
	path := filepath.Join(t.TempDir(), "models", "model.json")
	trainedAt := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	a := NewArtifact(model, ModelMetadata{TrainedAt: trainedAt, Source: "students.csv", Accuracy: 0.9, ROCAUC: 0.95})
	assert.Equal(t, "20240501-123000", a.Metadata.Version)
	assert.Equal(t, features.Names, a.Features)
	assert.Equal(t, model.Params(), a.Metadata.Params)

	require.NoError(t, SaveArtifact(path, a))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")

	loaded, err := LoadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, a.Metadata.Version, loaded.Metadata.Version)
	assert.Equal(t, "students.csv", loaded.Metadata.Source)
	assert.True(t, trainedAt.Equal(loaded.Metadata.TrainedAt))

	row := []float64{20, 5, 5, 0, 0, 3, 3, 1, 0}
	want, err := model.PredictProba(row)
	require.NoError(t, err)
	got, err := loaded.Model.PredictProba(row)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-12)
}

func TestSaveArtifact_RequiresModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	assert.Error(t, SaveArtifact(path, nil))
	assert.Error(t, SaveArtifact(path, &Artifact{}))
	assert.Error(t, SaveArtifact(path, &Artifact{Model: gbdt.New()}), "unfitted model cannot be encoded")

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadArtifact_Errors(t *testing.T) {
	dir := t.TempDir()
	model := trainedModel(t)

	write := func(t *testing.T, name string, mutate func(m map[string]any)) string {
		t.Helper()
		data, err := json.Marshal(NewArtifact(model, ModelMetadata{TrainedAt: time.Now()}))
		require.NoError(t, err)
		var raw map[string]any
		require.NoError(t, json.Unmarshal(data, &raw))
		mutate(raw)
		data, err = json.Marshal(raw)
		require.NoError(t, err)
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, data, 0o644))
		return path
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadArtifact(filepath.Join(dir, "absent.json"))
		assert.Error(t, err)
	})

	t.Run("not json", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.json")
		require.NoError(t, os.WriteFile(path, []byte("not a model"), 0o644))
		_, err := LoadArtifact(path)
		assert.Error(t, err)
	})

	t.Run("feature mismatch", func(t *testing.T) {
		path := write(t, "renamed.json", func(m map[string]any) {
			names := m["features"].([]any)
			names[0], names[1] = names[1], names[0]
		})
		_, err := LoadArtifact(path)
		assert.ErrorIs(t, err, ErrFeatureMismatch)
	})

	t.Run("format version", func(t *testing.T) {
		path := write(t, "future.json", func(m map[string]any) { m["format_version"] = 99 })
		_, err := LoadArtifact(path)
		assert.ErrorContains(t, err, "format version")
	})

	t.Run("no model", func(t *testing.T) {
		path := write(t, "empty.json", func(m map[string]any) { delete(m, "model") })
		_, err := LoadArtifact(path)
		assert.Error(t, err)
	})
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
