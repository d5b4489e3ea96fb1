// Package metrics provides Prometheus metrics collection for the dropout
// risk services. It defines the prediction, training and front-end metrics
// that are exposed on the /metrics endpoint for monitoring and alerting.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics of the services.
type Metrics struct {
	// Prediction metrics
	MLPredictions      prometheus.Counter   // Total number of successful predictions
	MLFailures         prometheus.Counter   // Total number of model failures
	MLUnavailable      prometheus.Counter   // Predictions refused because no model is loaded
	MLValidationErrors prometheus.Counter   // Requests rejected by input validation
	MLLatency          prometheus.Histogram // Prediction latency in seconds
	MLPredictionScores prometheus.Histogram // Distribution of dropout probabilities
	MLModelAge         prometheus.Gauge     // Age of the loaded model in seconds
	MLModelLoaded      prometheus.Gauge     // 1 while a model is loaded
	MLModelAccuracy    prometheus.Gauge     // Held-out accuracy of the loaded model
	MLModelROCAUC      prometheus.Gauge     // Held-out ROC-AUC of the loaded model

	// Training metrics
	TrainingRuns     prometheus.Counter
	TrainingFailures prometheus.Counter
	TrainingDuration prometheus.Histogram

	// Front-end metrics
	FormSubmissions  prometheus.Counter   // Forms submitted to the REST API
	FormLatency      prometheus.Histogram // Round trip of a form submission to the API
	DashboardClients prometheus.Gauge     // Open dashboard websocket connections

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors encountered

	gatherer prometheus.Gatherer
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
// When registerer is also a Gatherer it backs Handler and GetErrorRate.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	gatherer := prometheus.DefaultGatherer
	if g, ok := registerer.(prometheus.Gatherer); ok {
		gatherer = g
	}

	return &Metrics{
		MLPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of successful dropout predictions",
		}),
		MLFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_failures_total",
			Help: "Total number of model prediction failures",
		}),
		MLUnavailable: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_unavailable_total",
			Help: "Total number of predictions refused because no model is loaded",
		}),
		MLValidationErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_validation_errors_total",
			Help: "Total number of prediction requests rejected by input validation",
		}),
		MLLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_latency_seconds",
			Help:    "Prediction latency in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		MLPredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_prediction_scores",
			Help:    "Distribution of predicted dropout probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		MLModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_age_seconds",
			Help: "Age of the loaded model in seconds at load time",
		}),
		MLModelLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_loaded",
			Help: "Whether a model is loaded (1) or not (0)",
		}),
		MLModelAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_accuracy",
			Help: "Held-out accuracy of the loaded model",
		}),
		MLModelROCAUC: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_roc_auc",
			Help: "Held-out ROC-AUC of the loaded model",
		}),
		TrainingRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_runs_total",
			Help: "Total number of completed training runs",
		}),
		TrainingFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_failures_total",
			Help: "Total number of failed training runs",
		}),
		TrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "training_duration_seconds",
			Help:    "Duration of training runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		FormSubmissions: factory.NewCounter(prometheus.CounterOpts{
			Name: "form_submissions_total",
			Help: "Total number of form submissions forwarded to the API",
		}),
		FormLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "form_request_duration_seconds",
			Help:    "Round trip of a form submission to the REST API in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		DashboardClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dashboard_clients",
			Help: "Number of open dashboard websocket connections",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
		gatherer: gatherer,
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// GetErrorRate returns failures over all scored requests, or 0 before any
// request was scored.
func (m *Metrics) GetErrorRate() float64 {
	var predictions, failures float64

	metricFamilies, err := m.gatherer.Gather()
	if err != nil {
		return 0
	}

	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case "ml_predictions_total":
			for _, metric := range mf.GetMetric() {
				predictions = metric.GetCounter().GetValue()
			}
		case "ml_failures_total":
			for _, metric := range mf.GetMetric() {
				failures = metric.GetCounter().GetValue()
			}
		}
	}

	if predictions+failures == 0 {
		return 0
	}
	return failures / (predictions + failures)
}

// WriteToTextfile writes the registry to path in the text exposition format,
// for one-shot processes picked up by a textfile collector.
func (m *Metrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.gatherer)
}
