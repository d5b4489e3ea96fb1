// Package train fits the dropout classifier: it loads and prepares the
// student table, splits it, trains the gradient-boosted model, evaluates it
// on the held-out rows and persists the artifact.
package train

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"dropout-risk/internal/common"
	"dropout-risk/internal/dataset"
	"dropout-risk/internal/features"
	"dropout-risk/internal/gbdt"
	"dropout-risk/internal/ml"
	"dropout-risk/internal/storage"

	"github.com/rs/zerolog/log"
)

// ModelName keys training runs in the ledger.
const ModelName = "student_dropout"

var (
	// ErrSingleClass means every labelled row has the same class.
	ErrSingleClass = gbdt.ErrSingleClass
	// ErrMissingFeatures lists the model inputs absent from the table.
	ErrMissingFeatures = errors.New("table is missing model columns")
)

// Config controls a training run.
type Config struct {
	ArtifactPath string
	LabelColumn  string
	TestRatio    float64
	Seed         int64
	Params       gbdt.Params
}

// RunLedger records completed runs. *storage.Store satisfies it.
type RunLedger interface {
	RecordRun(run storage.RunRecord) (string, error)
	StorePreparation(record storage.PreparationRecord) error
}

// MetricsInterface defines the metrics a training run reports.
type MetricsInterface interface {
	TrainingRunsInc()
	TrainingFailuresInc()
	TrainingDurationObserve(float64)
}

// Importance is the total split gain of one feature.
type Importance struct {
	Feature string  `json:"feature"`
	Gain    float64 `json:"gain"`
}

// Result is everything a run produced.
type Result struct {
	Model        *gbdt.Classifier
	Artifact     *ml.Artifact
	ArtifactPath string
	RunID        string
	XTest        [][]float64
	YTest        []int
	Evaluation   Evaluation
	Report       string
	Importance   []Importance
	Preparation  *dataset.Preparation
}

// Trainer runs the training pipeline. Ledger and metrics are optional.
type Trainer struct {
	config  Config
	ledger  RunLedger
	metrics MetricsInterface
}

// DefaultParams are the production hyperparameters: 300 trees, learning rate
// 0.05, depth 7 and seed 42 on top of the gbdt defaults.
func DefaultParams() gbdt.Params {
	p := gbdt.DefaultParams()
	p.NEstimators = common.DefaultNEstimators
	p.LearningRate = common.DefaultLearningRate
	p.MaxDepth = common.DefaultMaxDepth
	p.NumLeaves = common.DefaultNumLeaves
	p.MinChildSamples = common.DefaultMinChildSamples
	p.Seed = common.DefaultSeed
	return p
}

// NewTrainer creates a Trainer. Zero config fields take the production
// defaults: label "Status", test ratio 0.2, seed 42 for the split and
// DefaultParams for the model.
func NewTrainer(config Config, ledger RunLedger, metrics MetricsInterface) *Trainer {
	if config.LabelColumn == "" {
		config.LabelColumn = common.DefaultLabelColumn
	}
	if config.TestRatio == 0 {
		config.TestRatio = common.DefaultTestRatio
	}
	if config.Seed == 0 {
		config.Seed = common.DefaultSeed
	}
	if config.Params == (gbdt.Params{}) {
		config.Params = DefaultParams()
		config.Params.Seed = config.Seed
	}
	return &Trainer{config: config, ledger: ledger, metrics: metrics}
}

// Run loads the table at dataPath, cleans and prepares it, then fits and
// persists the model.
func (t *Trainer) Run(ctx context.Context, dataPath string) (*Result, error) {
	started := time.Now()

	raw, err := dataset.Load(dataPath)
	if err != nil {
		t.failed()
		return nil, err
	}
	cleaned, err := dataset.Clean(raw, t.config.LabelColumn)
	if err != nil {
		t.failed()
		return nil, err
	}
	prepared, prep, err := dataset.Prepare(cleaned)
	if err != nil {
		t.failed()
		return nil, err
	}

	res, err := t.fit(ctx, prepared, dataPath, started)
	if err != nil {
		return nil, err
	}
	res.Preparation = prep
	if t.ledger != nil && res.RunID != "" {
		record := storage.PreparationRecord{RunID: res.RunID, Medians: prep.Medians, Categories: prep.Categories}
		if err := t.ledger.StorePreparation(record); err != nil {
			log.Warn().Err(err).Str("run_id", res.RunID).Msg("Failed to record preparation")
		}
	}
	return res, nil
}

// Fit trains on an already prepared table, evaluates on the held-out split
// and writes the artifact. Nothing is written when training fails.
func (t *Trainer) Fit(ctx context.Context, prepared *dataset.Table) (*Result, error) {
	return t.fit(ctx, prepared, "", time.Now())
}

func (t *Trainer) fit(ctx context.Context, prepared *dataset.Table, source string, started time.Time) (*Result, error) {
	res, err := t.train(ctx, prepared, source, started)
	if err != nil {
		t.failed()
		return nil, err
	}
	if t.metrics != nil {
		t.metrics.TrainingRunsInc()
		t.metrics.TrainingDurationObserve(time.Since(started).Seconds())
	}
	return res, nil
}

func (t *Trainer) train(ctx context.Context, prepared *dataset.Table, source string, started time.Time) (*Result, error) {
	X, y, err := project(prepared, t.config.LabelColumn)
	if err != nil {
		return nil, err
	}
	if len(y) == 0 {
		return nil, dataset.ErrEmptyTable
	}
	log.Info().Strs("columns", features.Names).Msg("cols used to train model")
	log.Info().Int("rows", len(X)).Int("cols", len(features.Names)).Msg("Training table shape")

	if singleClass(y) {
		return nil, fmt.Errorf("%w: all %d rows are class %d", ErrSingleClass, len(y), y[0])
	}

	split, err := StratifiedSplit(y, t.config.TestRatio, t.config.Seed)
	if err != nil {
		return nil, err
	}
	XTrain, yTrain := pick(X, y, split.Train)
	XTest, yTest := pick(X, y, split.Test)

	model := gbdt.New(gbdt.WithParams(t.config.Params))
	if err := model.Fit(ctx, XTrain, yTrain); err != nil {
		return nil, fmt.Errorf("failed to fit model: %w", err)
	}
	log.Debug().Int("trees", model.NumTrees()).Int("leaves", model.NumLeaves()).Msg("Model fitted")

	probs, err := model.PredictProbaBatch(XTest)
	if err != nil {
		return nil, fmt.Errorf("failed to score held-out rows: %w", err)
	}
	ev, err := Evaluate(yTest, probs)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate model: %w", err)
	}
	log.Info().
		Int("train_rows", len(yTrain)).
		Int("test_rows", len(yTest)).
		Float64("accuracy", ev.Accuracy).
		Float64("roc_auc", ev.ROCAUC).
		Msg("Model evaluated")

	artifact := ml.NewArtifact(model, ml.ModelMetadata{
		TrainedAt:    time.Now().UTC(),
		Source:       source,
		TrainingRows: len(yTrain),
		TestRows:     len(yTest),
		Accuracy:     ev.Accuracy,
		ROCAUC:       ev.ROCAUC,
	})
	if err := ml.SaveArtifact(t.config.ArtifactPath, artifact); err != nil {
		return nil, err
	}
	log.Info().Str("path", t.config.ArtifactPath).Str("version", artifact.Metadata.Version).Msg("Model saved")

	res := &Result{
		Model:        model,
		Artifact:     artifact,
		ArtifactPath: t.config.ArtifactPath,
		XTest:        XTest,
		YTest:        yTest,
		Evaluation:   ev,
		Report:       ev.Report(),
		Importance:   rankImportance(model.FeatureImportance()),
	}
	res.RunID = t.record(res, source, started)
	return res, nil
}

// record writes the run to the ledger. Ledger failures do not fail the run.
func (t *Trainer) record(res *Result, source string, started time.Time) string {
	if t.ledger == nil {
		return ""
	}
	sum, err := fileSHA256(res.ArtifactPath)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to hash artifact")
	}
	meta := res.Artifact.Metadata
	id, err := t.ledger.RecordRun(storage.RunRecord{
		Model:          ModelName,
		StartedAt:      started,
		FinishedAt:     time.Now(),
		DataPath:       source,
		ArtifactPath:   res.ArtifactPath,
		ArtifactSHA256: sum,
		Params:         meta.Params,
		Features:       meta.Features,
		TrainingRows:   meta.TrainingRows,
		TestRows:       meta.TestRows,
		Accuracy:       meta.Accuracy,
		ROCAUC:         meta.ROCAUC,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to record training run")
		return ""
	}
	log.Debug().Str("run_id", id).Msg("Training run recorded")
	return id
}

func (t *Trainer) failed() {
	if t.metrics != nil {
		t.metrics.TrainingFailuresInc()
	}
}

// project lays the table out as rows in features.Names order plus labels.
func project(t *dataset.Table, labelColumn string) ([][]float64, []int, error) {
	var missing []string
	cols := make([][]float64, len(features.Names))
	for i, name := range features.Names {
		values, err := t.Numeric(name)
		if errors.Is(err, dataset.ErrMissingColumn) {
			missing = append(missing, name)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		cols[i] = values
	}
	if !t.HasColumn(labelColumn) {
		missing = append(missing, labelColumn)
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrMissingFeatures, strings.Join(missing, ", "))
	}

	y, err := dataset.Labels(t, labelColumn)
	if err != nil {
		return nil, nil, err
	}
	X := make([][]float64, t.Nrow())
	for r := range X {
		row := make([]float64, len(cols))
		for c := range cols {
			row[c] = cols[c][r]
		}
		X[r] = row
	}
	return X, y, nil
}

func singleClass(y []int) bool {
	for _, v := range y[1:] {
		if v != y[0] {
			return false
		}
	}
	return true
}

func pick(X [][]float64, y []int, rows []int) ([][]float64, []int) {
	xs := make([][]float64, len(rows))
	ys := make([]int, len(rows))
	for i, r := range rows {
		xs[i] = X[r]
		ys[i] = y[r]
	}
	return xs, ys
}

// rankImportance pairs gains with feature names, highest gain first.
func rankImportance(gains []float64) []Importance {
	out := make([]Importance, len(gains))
	for i, g := range gains {
		out[i] = Importance{Feature: features.Names[i], Gain: g}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Gain > out[j].Gain })
	return out
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
