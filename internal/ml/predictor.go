package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"dropout-risk/internal/features"

	"github.com/rs/zerolog/log"
)

// MetricsInterface defines metrics methods needed by the predictor
type MetricsInterface interface {
	MLPredictionsInc()
	MLFailuresInc()
	MLUnavailableInc()
	MLValidationErrorsInc()
	MLLatencyObserve(float64)
	MLModelAgeSet(float64)
	MLModelLoadedSet(bool)
	MLModelQualitySet(accuracy, rocAUC float64)
	MLPredictionScoresObserve(float64)
}

// ErrModelUnavailable is returned by Predict while no model is loaded.
var ErrModelUnavailable = errors.New("model not loaded")

// ValidationError reports the offending input field.
type ValidationError = features.FieldError

// PredictionError wraps a failure of the model itself.
type PredictionError struct {
	Cause error
}

func (e *PredictionError) Error() string { return "prediction failed: " + e.Cause.Error() }
func (e *PredictionError) Unwrap() error { return e.Cause }

// Model scores one row laid out in features.Names order.
type Model interface {
	PredictProba(row []float64) (float64, error)
}

// Result is the outcome of one prediction.
type Result struct {
	Probability  float64 `json:"dropout_probability"`
	RiskCategory string  `json:"risk_category"`
}

// Percent returns the probability as a percentage.
func (r Result) Percent() float64 { return r.Probability * 100 }

// PredictorConfig configures a Predictor.
type PredictorConfig struct {
	ModelPath  string
	RiskScheme RiskScheme
}

// loadedModel is an immutable handle; reloads swap the whole handle.
type loadedModel struct {
	model    Model
	meta     ModelMetadata
	loadedAt time.Time
}

// Predictor serves predictions from a model loaded once and shared by all
// requests. It never fails construction: when the artifact cannot be loaded
// every Predict reports ErrModelUnavailable until Reload succeeds.
type Predictor struct {
	config  PredictorConfig
	metrics MetricsInterface
	current atomic.Pointer[loadedModel]

	reloadMu  sync.Mutex
	lastErr   atomic.Pointer[string]
	startTime time.Time

	predictions atomic.Int64
	failures    atomic.Int64
}

// NewPredictor loads the artifact at config.ModelPath.
func NewPredictor(config PredictorConfig, metrics MetricsInterface) *Predictor {
	p := newPredictor(config, metrics)
	if err := p.Reload(); err != nil {
		log.Warn().Err(err).Str("model_path", config.ModelPath).Msg("Model not loaded, predictions are unavailable")
		if metrics != nil {
			metrics.MLModelLoadedSet(false)
		}
	}
	return p
}

// NewPredictorWithModel serves an already loaded model.
func NewPredictorWithModel(model Model, meta ModelMetadata, config PredictorConfig, metrics MetricsInterface) *Predictor {
	p := newPredictor(config, metrics)
	p.install(model, meta)
	return p
}

func newPredictor(config PredictorConfig, metrics MetricsInterface) *Predictor {
	if config.RiskScheme == "" {
		config.RiskScheme = TwoBucket
	}
	return &Predictor{config: config, metrics: metrics, startTime: time.Now()}
}

// Reload re-reads the artifact and swaps it in. On failure the previously
// loaded model, if any, keeps serving.
func (p *Predictor) Reload() error {
	p.reloadMu.Lock()
	defer p.reloadMu.Unlock()

	artifact, err := LoadArtifact(p.config.ModelPath)
	if err != nil {
		msg := err.Error()
		p.lastErr.Store(&msg)
		return err
	}
	p.install(artifact.Model, artifact.Metadata)
	log.Info().
		Str("model_path", p.config.ModelPath).
		Str("version", artifact.Metadata.Version).
		Float64("accuracy", artifact.Metadata.Accuracy).
		Float64("roc_auc", artifact.Metadata.ROCAUC).
		Msg("Model loaded")
	return nil
}

func (p *Predictor) install(model Model, meta ModelMetadata) {
	p.current.Store(&loadedModel{model: model, meta: meta, loadedAt: time.Now()})
	p.lastErr.Store(nil)
	if p.metrics != nil {
		p.metrics.MLModelLoadedSet(true)
		p.metrics.MLModelQualitySet(meta.Accuracy, meta.ROCAUC)
		if !meta.TrainedAt.IsZero() {
			p.metrics.MLModelAgeSet(time.Since(meta.TrainedAt).Seconds())
		}
	}
}

// Loaded reports whether a model is available.
func (p *Predictor) Loaded() bool { return p.current.Load() != nil }

// RiskScheme returns the scheme used to categorise probabilities.
func (p *Predictor) RiskScheme() RiskScheme { return p.config.RiskScheme }

// Metadata returns the metadata of the loaded model.
func (p *Predictor) Metadata() (ModelMetadata, bool) {
	lm := p.current.Load()
	if lm == nil {
		return ModelMetadata{}, false
	}
	return lm.meta, true
}

// Predict validates v and returns the dropout probability with its risk
// category. Errors are a *ValidationError, ErrModelUnavailable or a
// *PredictionError.
func (p *Predictor) Predict(ctx context.Context, v features.Vector) (Result, error) {
	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.MLLatencyObserve(time.Since(start).Seconds())
		}
	}()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := v.Validate(); err != nil {
		if p.metrics != nil {
			p.metrics.MLValidationErrorsInc()
		}
		return Result{}, err
	}

	lm := p.current.Load()
	if lm == nil {
		if p.metrics != nil {
			p.metrics.MLUnavailableInc()
		}
		return Result{}, ErrModelUnavailable
	}

	prob, err := safePredict(lm.model, v.Row())
	if err == nil && (math.IsNaN(prob) || prob < 0 || prob > 1) {
		err = fmt.Errorf("probability %v outside [0, 1]", prob)
	}
	if err != nil {
		p.failures.Add(1)
		if p.metrics != nil {
			p.metrics.MLFailuresInc()
		}
		log.Error().Err(err).Msg("Prediction failed")
		return Result{}, &PredictionError{Cause: err}
	}

	p.predictions.Add(1)
	if p.metrics != nil {
		p.metrics.MLPredictionsInc()
		p.metrics.MLPredictionScoresObserve(prob)
	}
	return Result{Probability: prob, RiskCategory: p.config.RiskScheme.Categorize(prob)}, nil
}

// safePredict turns a panicking model into an error.
func safePredict(m Model, row []float64) (prob float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model panicked: %v", r)
		}
	}()
	return m.PredictProba(row)
}

// HealthStatus is reported by the health endpoints.
type HealthStatus struct {
	Healthy         bool      `json:"healthy"`
	LastCheck       time.Time `json:"last_check"`
	ModelLoaded     bool      `json:"model_loaded"`
	ModelPath       string    `json:"model_path"`
	ModelVersion    string    `json:"model_version,omitempty"`
	RiskScheme      string    `json:"risk_scheme"`
	PredictionCount int64     `json:"prediction_count"`
	ErrorCount      int64     `json:"error_count"`
	LastError       string    `json:"last_error,omitempty"`
	UptimeSeconds   float64   `json:"uptime_seconds"`
}

// Health returns the current health of the predictor.
func (p *Predictor) Health() HealthStatus {
	h := HealthStatus{
		LastCheck:       time.Now(),
		ModelPath:       p.config.ModelPath,
		RiskScheme:      string(p.config.RiskScheme),
		PredictionCount: p.predictions.Load(),
		ErrorCount:      p.failures.Load(),
		UptimeSeconds:   time.Since(p.startTime).Seconds(),
	}
	if lm := p.current.Load(); lm != nil {
		h.Healthy = true
		h.ModelLoaded = true
		h.ModelVersion = lm.meta.Version
	}
	if msg := p.lastErr.Load(); msg != nil {
		h.LastError = *msg
	}
	return h
}
