package ml

import (
	"errors"
	"sync"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu               sync.Mutex
	predictions      int
	failures         int
	unavailable      int
	validationErrors int
	latencySum       float64
	modelAge         float64
	modelLoaded      bool
	accuracy         float64
	rocAUC           float64
	predictionScores []float64
}

func (m *MockMetrics) MLPredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) MLFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) MLUnavailableInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable++
}

func (m *MockMetrics) MLValidationErrorsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validationErrors++
}

func (m *MockMetrics) MLLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
}

func (m *MockMetrics) MLModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) MLModelLoadedSet(loaded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelLoaded = loaded
}

func (m *MockMetrics) MLModelQualitySet(accuracy, rocAUC float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accuracy = accuracy
	m.rocAUC = rocAUC
}

func (m *MockMetrics) MLPredictionScoresObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictionScores = append(m.predictionScores, v)
}

// GetCounts returns the prediction, failure, unavailable and validation counters.
func (m *MockMetrics) GetCounts() (predictions, failures, unavailable, validation int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictions, m.failures, m.unavailable, m.validationErrors
}

// ModelLoaded returns the last value passed to MLModelLoadedSet.
func (m *MockMetrics) ModelLoaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modelLoaded
}

// Scores returns a copy of the observed prediction scores.
func (m *MockMetrics) Scores() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.predictionScores...)
}

// fakeModel returns a fixed probability, or fails or panics on demand.
type fakeModel struct {
	prob    float64
	err     error
	panics  bool
	lastRow []float64
}

func (f *fakeModel) PredictProba(row []float64) (float64, error) {
	f.lastRow = row
	if f.panics {
		panic("corrupt tree")
	}
	if f.err != nil {
		return 0, f.err
	}
	return f.prob, nil
}

var errFakeModel = errors.New("fake model failure")
