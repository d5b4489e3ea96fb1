// Package apiclient calls the prediction REST API.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"dropout-risk/internal/features"
	"dropout-risk/internal/ml"

	"github.com/go-resty/resty/v2"
)

// ErrUnreachable wraps transport failures: the API could not be contacted
// or did not answer in time.
var ErrUnreachable = errors.New("prediction API unreachable")

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
	Field      string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("prediction API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("prediction API returned status %d: %s", e.StatusCode, e.Message)
}

// Client calls the prediction REST API over resty. It is safe for concurrent
// use; one Client serves every form submission.
type Client struct {
	base string
	rest *resty.Client
}

// New creates a Client for the API at base, for example
// "http://localhost:8080". A trailing slash is ignored and a non-positive
// timeout means 10 seconds per request.
func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(10 * time.Second)
	}
	r.SetHeader("Accept", "application/json")
	return &Client{base: strings.TrimRight(base, "/"), rest: r}
}

// Predict posts v to /predict.
func (c *Client) Predict(ctx context.Context, v features.Vector) (ml.PredictionResponse, error) {
	var out ml.PredictionResponse
	var apiErr ml.ErrorResponse

	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(features.NewRequest(v)).
		SetResult(&out).
		SetError(&apiErr).
		Post(c.base + "/predict")
	if err != nil {
		return ml.PredictionResponse{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if resp.IsError() || resp.StatusCode() != http.StatusOK {
		return ml.PredictionResponse{}, &APIError{StatusCode: resp.StatusCode(), Message: apiErr.Error, Field: apiErr.Field}
	}
	return out, nil
}

// Health fetches /health. An API without a model answers 503 with a
// health body, which is returned along with an *APIError.
func (c *Client) Health(ctx context.Context) (ml.HealthStatus, error) {
	var health ml.HealthStatus

	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&health).
		SetError(&health).
		Get(c.base + "/health")
	if err != nil {
		return ml.HealthStatus{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if resp.IsError() {
		return health, &APIError{StatusCode: resp.StatusCode(), Message: health.LastError}
	}
	return health, nil
}
