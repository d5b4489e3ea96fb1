package metrics

import "github.com/prometheus/client_golang/prometheus"

// Interfaces for metrics to avoid circular imports
type MetricsCounter interface {
	Inc()
}

type MetricsGauge interface {
	Set(float64)
	Inc()
	Dec()
}

type MetricsHistogram interface {
	Observe(float64)
}

// MetricsWrapper adapts Metrics to the narrow interfaces the predictor,
// trainer and front-ends depend on.
type MetricsWrapper struct {
	m *Metrics
}

// NewWrapper wraps m. The wrapper satisfies ml.MetricsInterface and
// train.MetricsInterface and hands out single collectors to the front-ends.
func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) MLPredictionsInc() { w.m.MLPredictions.Inc() }

func (w *MetricsWrapper) MLFailuresInc() {
	w.m.MLFailures.Inc()
	w.m.ErrorsTotal.Inc()
}

func (w *MetricsWrapper) MLUnavailableInc() { w.m.MLUnavailable.Inc() }

func (w *MetricsWrapper) MLValidationErrorsInc() { w.m.MLValidationErrors.Inc() }

func (w *MetricsWrapper) MLLatencyObserve(seconds float64) { w.m.MLLatency.Observe(seconds) }

func (w *MetricsWrapper) MLModelAgeSet(seconds float64) { w.m.MLModelAge.Set(seconds) }

func (w *MetricsWrapper) MLModelLoadedSet(loaded bool) {
	if loaded {
		w.m.MLModelLoaded.Set(1)
		return
	}
	w.m.MLModelLoaded.Set(0)
}

func (w *MetricsWrapper) MLModelQualitySet(accuracy, rocAUC float64) {
	w.m.MLModelAccuracy.Set(accuracy)
	w.m.MLModelROCAUC.Set(rocAUC)
}

func (w *MetricsWrapper) MLPredictionScoresObserve(p float64) { w.m.MLPredictionScores.Observe(p) }

func (w *MetricsWrapper) TrainingRunsInc() { w.m.TrainingRuns.Inc() }

func (w *MetricsWrapper) TrainingFailuresInc() {
	w.m.TrainingFailures.Inc()
	w.m.ErrorsTotal.Inc()
}

func (w *MetricsWrapper) TrainingDurationObserve(seconds float64) {
	w.m.TrainingDuration.Observe(seconds)
}

func (w *MetricsWrapper) FormSubmissions() MetricsCounter {
	return &CounterWrapper{w.m.FormSubmissions}
}

func (w *MetricsWrapper) FormLatency() MetricsHistogram {
	return &HistogramWrapper{w.m.FormLatency}
}

func (w *MetricsWrapper) DashboardClients() MetricsGauge {
	return &GaugeWrapper{w.m.DashboardClients}
}

// Errors counts failures outside the predictor and trainer, such as the
// form's failed calls to the REST API.
func (w *MetricsWrapper) Errors() MetricsCounter {
	return &CounterWrapper{w.m.ErrorsTotal}
}

type CounterWrapper struct {
	c prometheus.Counter
}

func (cw *CounterWrapper) Inc() {
	cw.c.Inc()
}

type GaugeWrapper struct {
	g prometheus.Gauge
}

func (gw *GaugeWrapper) Set(v float64) {
	gw.g.Set(v)
}

func (gw *GaugeWrapper) Inc() {
	gw.g.Inc()
}

func (gw *GaugeWrapper) Dec() {
	gw.g.Dec()
}

type HistogramWrapper struct {
	h prometheus.Histogram
}

func (hw *HistogramWrapper) Observe(v float64) {
	hw.h.Observe(v)
}
