package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"dropout-risk/internal/features"
	"dropout-risk/internal/ml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubModel struct{ prob float64 }

func (s stubModel) PredictProba([]float64) (float64, error) { return s.prob, nil }

func student() features.Vector {
	return features.Vector{
		AgeAtEnrollment:     20,
		FirstSemApproved:    2,
		SecondSemApproved:   1,
		FirstSemGrade:       9.5,
		SecondSemGrade:      8,
		TuitionFeesUpToDate: 0,
		ScholarshipHolder:   1,
	}
}

func apiServer(t *testing.T, p ml.PredictorInterface) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(ml.NewModelServer(p, 0, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Predict(t *testing.T) {
	p := ml.NewPredictorWithModel(stubModel{prob: 0.8123}, ml.ModelMetadata{}, ml.PredictorConfig{}, nil)
	client := New(apiServer(t, p).URL+"/", time.Second)

	out, err := client.Predict(context.Background(), student())
	require.NoError(t, err)
	assert.Equal(t, 0.812, out.DropoutProbability)
	assert.Equal(t, "High Risk", out.RiskCategory)
}

func TestClient_PredictSendsAllFields(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"dropout_probability":0.1,"risk_category":"Low Risk"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Predict(context.Background(), student())
	require.NoError(t, err)
	assert.Len(t, got, len(features.Names))
	assert.Equal(t, 9.5, got["Curricular_units_1st_sem_grade"])
	assert.Equal(t, 0.0, got["Tuition_fees_up_to_date"])
}

func TestClient_PredictAPIErrors(t *testing.T) {
	missing := ml.NewPredictor(ml.PredictorConfig{ModelPath: filepath.Join(t.TempDir(), "none.json")}, nil)
	client := New(apiServer(t, missing).URL, time.Second)

	_, err := client.Predict(context.Background(), student())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "model not loaded", apiErr.Message)

	loaded := ml.NewPredictorWithModel(stubModel{prob: 0.5}, ml.ModelMetadata{}, ml.PredictorConfig{}, nil)
	client = New(apiServer(t, loaded).URL, time.Second)
	bad := student()
	bad.AgeAtEnrollment = 300

	_, err = client.Predict(context.Background(), bad)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Age_at_enrollment", apiErr.Field)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, 200*time.Millisecond).Predict(context.Background(), student())
	assert.True(t, errors.Is(err, ErrUnreachable))
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(srv.URL, 50*time.Millisecond).Predict(context.Background(), student())
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestClient_Health(t *testing.T) {
	p := ml.NewPredictorWithModel(stubModel{prob: 0.5}, ml.ModelMetadata{Version: "v7"}, ml.PredictorConfig{}, nil)
	health, err := New(apiServer(t, p).URL, time.Second).Health(context.Background())
	require.NoError(t, err)
	assert.True(t, health.ModelLoaded)
	assert.Equal(t, "v7", health.ModelVersion)

	missing := ml.NewPredictor(ml.PredictorConfig{ModelPath: filepath.Join(t.TempDir(), "none.json")}, nil)
	health, err = New(apiServer(t, missing).URL, time.Second).Health(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.False(t, health.ModelLoaded)
}
