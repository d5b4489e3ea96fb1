package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"dropout-risk/internal/common"
	"dropout-risk/internal/features"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const (
	apiName    = "Student Dropout Predictor API"
	apiVersion = "1.0"

	maxRequestBytes = 1 << 20
)

// ModelServer provides the HTTP API for model predictions
type ModelServer struct {
	predictor PredictorInterface
	router    *mux.Router
	server    *http.Server
}

// APIInfo is served on the root path.
type APIInfo struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// PredictionResponse is the body of a successful prediction.
type PredictionResponse struct {
	DropoutProbability float64 `json:"dropout_probability"`
	RiskCategory       string  `json:"risk_category"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// NewPredictionResponse rounds the probability to three decimals for the wire.
func NewPredictionResponse(r Result) PredictionResponse {
	return PredictionResponse{
		DropoutProbability: math.Round(r.Probability*1000) / 1000,
		RiskCategory:       r.RiskCategory,
	}
}

// NewModelServer creates a new HTTP server for model serving. metricsHandler
// is mounted on /metrics when not nil.
func NewModelServer(predictor PredictorInterface, port int, metricsHandler http.Handler) *ModelServer {
	ms := &ModelServer{
		predictor: predictor,
	}

	r := mux.NewRouter()
	r.HandleFunc("/", ms.handleInfo).Methods(http.MethodGet)
	r.HandleFunc("/predict", ms.handlePredict).Methods(http.MethodPost)
	r.HandleFunc("/health", ms.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/model/info", ms.handleModelInfo).Methods(http.MethodGet)
	r.HandleFunc("/model/reload", ms.handleReload).Methods(http.MethodPost)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found"})
	})
	ms.router = r

	ms.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return ms
}

// Handler returns the routed handler, for embedding and tests.
func (ms *ModelServer) Handler() http.Handler { return ms.router }

// Start begins serving HTTP requests
func (ms *ModelServer) Start() error {
	log.Info().Str("addr", ms.server.Addr).Msg("starting model server")
	return ms.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (ms *ModelServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

func (ms *ModelServer) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIInfo{
		Name:    apiName,
		Version: apiVersion,
		Endpoints: map[string]string{
			"predict":      "POST /predict",
			"health":       "GET /health",
			"model_info":   "GET /model/info",
			"model_reload": "POST /model/reload",
			"metrics":      "GET /metrics",
		},
	})
}

func (ms *ModelServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	v, err := features.DecodeJSON(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	result, err := ms.predictor.Predict(ctx, v)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewPredictionResponse(result))
}

func (ms *ModelServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := ms.predictor.Health()

	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (ms *ModelServer) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	meta, ok := ms.predictor.Metadata()
	if !ok {
		writeError(w, ErrModelUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (ms *ModelServer) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := ms.predictor.Reload(); err != nil {
		log.Error().Err(err).Msg("model reload failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "reload failed: " + err.Error()})
		return
	}
	ms.handleModelInfo(w, r)
}

// writeError maps predictor errors onto status codes: field and request
// errors are 400, a missing model is 503, anything else is 500.
func writeError(w http.ResponseWriter, err error) {
	var fieldErr *ValidationError
	var predErr *PredictionError
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &fieldErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fieldErr.Error(), Field: fieldErr.Field})
	case errors.Is(err, ErrModelUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: common.ErrMsgModelNotLoaded})
	case errors.As(err, &predErr):
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: predErr.Error()})
	case errors.As(err, &tooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
