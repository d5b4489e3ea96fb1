// Package ml serves dropout-risk predictions. It owns the persisted model
// artifact, the Predictor that loads it once per process and answers
// requests, the risk categorisation, and the REST ModelServer.
package ml

import (
	"context"

	"dropout-risk/internal/features"
)

// PredictorInterface is what the front-ends need from a predictor.
type PredictorInterface interface {
	// Predict scores one student. See Predictor.Predict for the error kinds.
	Predict(ctx context.Context, v features.Vector) (Result, error)

	// Health reports whether a model is loaded and serving.
	Health() HealthStatus

	// Metadata returns the loaded model's metadata, false when none is loaded.
	Metadata() (ModelMetadata, bool)

	// Reload re-reads the model artifact.
	Reload() error
}

var _ PredictorInterface = (*Predictor)(nil)
