package train

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"dropout-risk/internal/dataset"
	"dropout-risk/internal/features"
	"dropout-risk/internal/gbdt"
	"dropout-risk/internal/ml"
	"dropout-risk/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rawHeader = []string{
	"Marital status",
	"Course",
	"Age at enrollment",
	"Curricular units 1st sem (approved)",
	"Curricular units 2nd sem (approved)",
	"Curricular units 1st sem (without evaluations)",
	"Curricular units 2nd sem (without evaluations)",
	"Curricular units 1st sem (grade)",
	"Curricular units 2nd sem (grade)",
	"Tuition fees up to date",
	"Scholarship holder",
	"Status",
}

// writeStudents writes a semicolon separated table in which low grades and
// unpaid fees lead to dropout.
func writeStudents(t *testing.T, n int, seed int64) string {
	t.Helper()
	rnd := rand.New(rand.NewSource(seed))
	courses := []string{"Nursing", "Design", "Management"}

	var b strings.Builder
	b.WriteString(strings.Join(rawHeader, ";") + "\n")
	for i := 0; i < n; i++ {
		grade1 := rnd.Float64() * 20
		grade2 := rnd.Float64() * 20
		fees := 1
		if rnd.Float64() < 0.2 {
			fees = 0
		}
		status := "Graduate"
		switch {
		case (grade1+grade2)/2 < 9 || fees == 0:
			status = "Dropout"
		case rnd.Float64() < 0.3:
			status = "Enrolled"
		}
		fmt.Fprintf(&b, "%d;%s;%d;%d;%d;%d;%d;%.2f;%.2f;%d;%d;%s\n",
			1+rnd.Intn(3), courses[rnd.Intn(len(courses))], 17+rnd.Intn(30),
			rnd.Intn(8), rnd.Intn(8), rnd.Intn(2), rnd.Intn(2),
			grade1, grade2, fees, rnd.Intn(2), status)
	}

	path := filepath.Join(t.TempDir(), "students.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func testParams() gbdt.Params {
	p := gbdt.DefaultParams()
	p.NEstimators = 30
	p.MinChildSamples = 5
	p.Seed = 42
	return p
}

func testConfig(t *testing.T) Config {
	return Config{
		ArtifactPath: filepath.Join(t.TempDir(), "models", "model.json"),
		LabelColumn:  "Status",
		TestRatio:    0.2,
		Seed:         42,
		Params:       testParams(),
	}
}

type mockMetrics struct {
	mu        sync.Mutex
	runs      int
	failures  int
	durations []float64
}

func (m *mockMetrics) TrainingRunsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
}

func (m *mockMetrics) TrainingFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *mockMetrics) TrainingDurationObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations = append(m.durations, v)
}

func TestTrainer_RunEndToEnd(t *testing.T) {
	dataPath := writeStudents(t, 400, 1)
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	metrics := &mockMetrics{}
	config := testConfig(t)
	res, err := NewTrainer(config, store, metrics).Run(context.Background(), dataPath)
	require.NoError(t, err)

	assert.Greater(t, res.Evaluation.Accuracy, 0.8)
	assert.Greater(t, res.Evaluation.ROCAUC, 0.85)
	assert.Contains(t, res.Report, "weighted avg")
	assert.Len(t, res.Importance, len(features.Names))
	for i := 1; i < len(res.Importance); i++ {
		assert.GreaterOrEqual(t, res.Importance[i-1].Gain, res.Importance[i].Gain)
	}
	assert.Equal(t, []string{"Design", "Management", "Nursing"}, res.Preparation.Categories["Course"])
	assert.Equal(t, 1, metrics.runs)
	assert.Equal(t, 0, metrics.failures)

	// The artifact reproduces the in-memory model.
	artifact, err := ml.LoadArtifact(config.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, features.Names, artifact.Features)
	assert.Equal(t, dataPath, artifact.Metadata.Source)
	assert.Equal(t, len(res.YTest), artifact.Metadata.TestRows)
	for _, row := range res.XTest[:10] {
		want, err := res.Model.PredictProba(row)
		require.NoError(t, err)
		got, err := artifact.Model.PredictProba(row)
		require.NoError(t, err)
		assert.InDelta(t, want, got, 1e-12)
	}

	run, err := store.LatestRun(ModelName)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, run.ID)
	assert.Equal(t, config.ArtifactPath, run.ArtifactPath)
	assert.Len(t, run.ArtifactSHA256, 64)
	assert.Equal(t, res.Evaluation.ROCAUC, run.ROCAUC)

	prep, err := store.GetPreparation(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Preparation.Categories, prep.Categories)
}

func TestTrainer_Deterministic(t *testing.T) {
	dataPath := writeStudents(t, 300, 2)

	first, err := NewTrainer(testConfig(t), nil, nil).Run(context.Background(), dataPath)
	require.NoError(t, err)
	second, err := NewTrainer(testConfig(t), nil, nil).Run(context.Background(), dataPath)
	require.NoError(t, err)

	assert.Equal(t, first.Evaluation.Accuracy, second.Evaluation.Accuracy)
	assert.Equal(t, first.Evaluation.ROCAUC, second.Evaluation.ROCAUC)
	assert.Equal(t, first.YTest, second.YTest)
	assert.Equal(t, first.Importance, second.Importance)
}

// Imputation statistics come from the whole cleaned table, held-out rows
// included.
func TestTrainer_PreparationFitsWholeTable(t *testing.T) {
	dataPath := writeStudents(t, 200, 3)
	raw, err := os.ReadFile(dataPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	for i := 1; i < len(lines); i += 7 {
		cells := strings.Split(lines[i], ";")
		cells[2] = ""
		lines[i] = strings.Join(cells, ";")
	}
	require.NoError(t, os.WriteFile(dataPath, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	loaded, err := dataset.Load(dataPath)
	require.NoError(t, err)
	cleaned, err := dataset.Clean(loaded, "Status")
	require.NoError(t, err)
	ages, err := cleaned.Numeric("Age at enrollment")
	require.NoError(t, err)

	res, err := NewTrainer(testConfig(t), nil, nil).Run(context.Background(), dataPath)
	require.NoError(t, err)
	assert.Equal(t, dataset.Median(ages), res.Preparation.Medians["Age at enrollment"])
}

func TestNewTrainer_Defaults(t *testing.T) {
	tr := NewTrainer(Config{ArtifactPath: filepath.Join(t.TempDir(), "model.json")}, nil, nil)

	assert.Equal(t, "Status", tr.config.LabelColumn)
	assert.Equal(t, 0.2, tr.config.TestRatio)
	assert.Equal(t, int64(42), tr.config.Seed)
	assert.Equal(t, 300, tr.config.Params.NEstimators)
	assert.Equal(t, 0.05, tr.config.Params.LearningRate)
	assert.Equal(t, 7, tr.config.Params.MaxDepth)
	assert.Equal(t, int64(42), tr.config.Params.Seed)

	// An explicit seed drives both the split and the model.
	seeded := NewTrainer(Config{Seed: 7}, nil, nil)
	assert.Equal(t, int64(7), seeded.config.Params.Seed)
}

func TestTrainer_ZeroConfigTrainsWithDefaults(t *testing.T) {
	dataPath := writeStudents(t, 200, 4)
	config := Config{ArtifactPath: filepath.Join(t.TempDir(), "model.json")}

	res, err := NewTrainer(config, nil, nil).Run(context.Background(), dataPath)
	require.NoError(t, err)
	assert.Equal(t, DefaultParams(), res.Model.Params())
	assert.Equal(t, DefaultParams(), res.Artifact.Metadata.Params)

	// The held-out rows are the ones a seed-42 split selects.
	labels := allLabels(t, dataPath)
	split, err := StratifiedSplit(labels, 0.2, 42)
	require.NoError(t, err)
	want := make([]int, len(split.Test))
	for i, r := range split.Test {
		want[i] = labels[r]
	}
	assert.Equal(t, want, res.YTest)
}

// allLabels runs the same load and clean steps as the trainer.
func allLabels(t *testing.T, path string) []int {
	t.Helper()
	loaded, err := dataset.Load(path)
	require.NoError(t, err)
	cleaned, err := dataset.Clean(loaded, "Status")
	require.NoError(t, err)
	labels, err := dataset.Labels(cleaned, "Status")
	require.NoError(t, err)
	return labels
}

func TestTrainer_SingleClassWritesNothing(t *testing.T) {
	values := make([]float64, 50)
	for i := range values {
		values[i] = float64(i % 7)
	}
	cols := []*dataset.Column{}
	for _, name := range features.Names {
		cols = append(cols, dataset.NewNumericColumn(name, values))
	}
	cols = append(cols, dataset.NewNumericColumn("Status", make([]float64, len(values))))
	table, err := dataset.NewTable(cols...)
	require.NoError(t, err)

	metrics := &mockMetrics{}
	config := testConfig(t)
	_, err = NewTrainer(config, nil, metrics).Fit(context.Background(), table)
	assert.ErrorIs(t, err, ErrSingleClass)
	assert.Equal(t, 1, metrics.failures)

	_, statErr := os.Stat(config.ArtifactPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestTrainer_MissingColumns(t *testing.T) {
	table, err := dataset.NewTable(
		dataset.NewNumericColumn("Age_at_enrollment", []float64{19, 20}),
		dataset.NewNumericColumn("Status", []float64{0, 1}),
	)
	require.NoError(t, err)

	_, err = NewTrainer(testConfig(t), nil, nil).Fit(context.Background(), table)
	require.ErrorIs(t, err, ErrMissingFeatures)
	assert.Contains(t, err.Error(), "Scholarship_holder")
	assert.NotContains(t, err.Error(), "Age_at_enrollment")
}

func TestTrainer_LoadFailure(t *testing.T) {
	metrics := &mockMetrics{}
	_, err := NewTrainer(testConfig(t), nil, metrics).Run(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
	assert.Equal(t, 1, metrics.failures)
}

func TestTrainer_Cancelled(t *testing.T) {
	dataPath := writeStudents(t, 100, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	config := testConfig(t)
	_, err := NewTrainer(config, nil, nil).Run(ctx, dataPath)
	assert.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(config.ArtifactPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestStratifiedSplit(t *testing.T) {
	labels := make([]int, 100)
	for i := range labels {
		if i%4 == 0 {
			labels[i] = 1
		}
	}

	split, err := StratifiedSplit(labels, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, split.Test, 20)
	assert.Len(t, split.Train, 80)

	positives := 0
	seen := make(map[int]bool)
	for _, r := range split.Test {
		seen[r] = true
		positives += labels[r]
	}
	assert.Equal(t, 5, positives)
	for _, r := range split.Train {
		assert.False(t, seen[r], "row %d on both sides", r)
	}

	again, err := StratifiedSplit(labels, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, split, again)

	other, err := StratifiedSplit(labels, 0.2, 7)
	require.NoError(t, err)
	assert.NotEqual(t, split.Test, other.Test)
}

func TestStratifiedSplit_SmallClasses(t *testing.T) {
	split, err := StratifiedSplit([]int{0, 0, 1, 1, 0, 0}, 0.2, 1)
	require.NoError(t, err)
	assert.Len(t, split.Test, 2, "each class keeps one held-out row")

	_, err = StratifiedSplit([]int{0, 0, 1}, 0.2, 1)
	assert.Error(t, err)
	_, err = StratifiedSplit(nil, 0.2, 1)
	assert.Error(t, err)
	_, err = StratifiedSplit([]int{0, 1}, 1.5, 1)
	assert.Error(t, err)
}

func TestROCAUC(t *testing.T) {
	auc, err := ROCAUC([]int{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, auc, 1e-12)

	auc, err = ROCAUC([]int{0, 1, 0, 1}, []float64{0.2, 0.9, 0.1, 0.7})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, auc, 1e-12)

	auc, err = ROCAUC([]int{1, 0}, []float64{0.2, 0.9})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, auc, 1e-12)

	_, err = ROCAUC([]int{1, 1}, []float64{0.2, 0.9})
	assert.ErrorIs(t, err, ErrUndefinedAUC)
}

func TestEvaluate(t *testing.T) {
	labels := []int{0, 0, 0, 1, 1}
	probs := []float64{0.1, 0.2, 0.7, 0.9, 0.4}

	ev, err := Evaluate(labels, probs)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, ev.Accuracy, 1e-12)
	assert.Equal(t, 5, ev.Support)

	neg, pos := ev.Classes[0], ev.Classes[1]
	assert.InDelta(t, 2.0/3, neg.Precision, 1e-12)
	assert.InDelta(t, 2.0/3, neg.Recall, 1e-12)
	assert.Equal(t, 3, neg.Support)
	assert.InDelta(t, 0.5, pos.Precision, 1e-12)
	assert.InDelta(t, 0.5, pos.Recall, 1e-12)
	assert.Equal(t, 2, pos.Support)
	assert.InDelta(t, (2.0/3+0.5)/2, ev.MacroAvg.Precision, 1e-12)
	assert.InDelta(t, (2.0/3*3+0.5*2)/5, ev.WeightedAvg.Recall, 1e-12)

	_, err = Evaluate(labels, probs[:2])
	assert.Error(t, err)
	_, err = Evaluate(nil, nil)
	assert.Error(t, err)
}

func TestConfusionMatrix(t *testing.T) {
	cm := ConfusionMatrix([]int{0, 0, 1, 1, 1}, []int{0, 1, 1, 1, 0})
	assert.Equal(t, 1, cm["0"]["0"])
	assert.Equal(t, 1, cm["0"]["1"])
	assert.Equal(t, 2, cm["1"]["1"])
	assert.Equal(t, 1, cm["1"]["0"])

	empty := ConfusionMatrix(nil, nil)
	assert.Len(t, empty, 2)
	assert.Equal(t, 0, empty["1"]["1"])
}

func TestEvaluate_NeverPredictedClass(t *testing.T) {
	ev, err := Evaluate([]int{0, 0, 1}, []float64{0.1, 0.2, 0.3})
	require.NoError(t, err)

	neg, pos := ev.Classes[0], ev.Classes[1]
	assert.InDelta(t, 2.0/3, ev.Accuracy, 1e-12)
	assert.InDelta(t, 2.0/3, neg.Precision, 1e-12)
	assert.InDelta(t, 1.0, neg.Recall, 1e-12)
	assert.InDelta(t, 0.8, neg.F1, 1e-12)
	assert.Zero(t, pos.Precision)
	assert.Zero(t, pos.Recall)
	assert.Zero(t, pos.F1)
	assert.Equal(t, 1, pos.Support)
	assert.False(t, math.IsNaN(ev.MacroAvg.F1))
}

func TestEvaluation_Report(t *testing.T) {
	ev, err := Evaluate([]int{0, 1}, []float64{0.2, 0.9})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(ev.Report(), "\n"), "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, []string{"precision", "recall", "f1-score", "support"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"0", "1.00", "1.00", "1.00", "1"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"1", "1.00", "1.00", "1.00", "1"}, strings.Fields(lines[3]))
	assert.Equal(t, []string{"accuracy", "1.00", "2"}, strings.Fields(lines[5]))
	assert.Equal(t, []string{"macro", "avg", "1.00", "1.00", "1.00", "2"}, strings.Fields(lines[6]))
	assert.Equal(t, []string{"weighted", "avg", "1.00", "1.00", "1.00", "2"}, strings.Fields(lines[7]))
}
