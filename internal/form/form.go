// Package form serves the plain HTML prediction form. Submissions are
// forwarded to the REST API and the answer is rendered server-side.
package form

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"dropout-risk/internal/apiclient"
	"dropout-risk/internal/features"
	"dropout-risk/internal/metrics"
	"dropout-risk/internal/ml"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// PredictionClient scores a student remotely. *apiclient.Client satisfies it.
type PredictionClient interface {
	Predict(ctx context.Context, v features.Vector) (ml.PredictionResponse, error)
}

// Result is a rendered prediction.
type Result struct {
	Probability  string
	RiskCategory string
	Color        string
}

type pageData struct {
	Title      string
	Fields     []features.Field
	Values     map[string]string
	Result     *Result
	Error      string
	ErrorField string
}

// Server serves the form.
type Server struct {
	client      PredictionClient
	timeout     time.Duration
	submissions metrics.MetricsCounter
	latency     metrics.MetricsHistogram
	failures    metrics.MetricsCounter
	router      *mux.Router
	server      *http.Server
}

// NewServer creates the form server. submissions counts forwarded requests,
// latency observes the API round trip and failures counts answers the API
// could not give (5xx and transport errors). Any of them may be nil.
func NewServer(client PredictionClient, port int, timeout time.Duration, submissions metrics.MetricsCounter, latency metrics.MetricsHistogram, failures metrics.MetricsCounter) *Server {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &Server{
		client:      client,
		timeout:     timeout,
		submissions: submissions,
		latency:     latency,
		failures:    failures,
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleForm).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleSubmit).Methods(http.MethodPost)
	s.router = r

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: timeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the routed handler, for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins serving HTTP requests
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("Starting form server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, pageData{Values: defaultValues()})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, http.StatusBadRequest, pageData{Values: defaultValues(), Error: "Could not read the form."})
		return
	}
	data := pageData{Values: submittedValues(r)}

	v, err := features.FromForm(r.PostForm)
	if err == nil {
		err = v.Validate()
	}
	if err != nil {
		var fieldErr *features.FieldError
		if errors.As(err, &fieldErr) {
			data.ErrorField = fieldErr.Field
		}
		data.Error = err.Error()
		s.render(w, http.StatusBadRequest, data)
		return
	}

	if s.submissions != nil {
		s.submissions.Inc()
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	out, err := s.client.Predict(ctx, v)
	if s.latency != nil {
		s.latency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		log.Warn().Err(err).Msg("Prediction request failed")
		status, msg := describe(err)
		if status >= http.StatusInternalServerError && s.failures != nil {
			s.failures.Inc()
		}
		data.Error = msg
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) {
			data.ErrorField = apiErr.Field
		}
		s.render(w, status, data)
		return
	}

	data.Result = NewResult(out)
	s.render(w, http.StatusOK, data)
}

// NewResult formats an API answer for display.
func NewResult(out ml.PredictionResponse) *Result {
	return &Result{
		Probability:  fmt.Sprintf("%.1f%%", out.DropoutProbability*100),
		RiskCategory: out.RiskCategory,
		Color:        ml.Color(out.RiskCategory),
	}
}

// describe maps a client error onto the page status and message.
func describe(err error) (int, string) {
	var apiErr *apiclient.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable:
		return http.StatusServiceUnavailable, "The prediction service has no model loaded. Please try again later."
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest:
		return http.StatusBadRequest, apiErr.Message
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, "Prediction failed: " + apiErr.Message
	case errors.Is(err, apiclient.ErrUnreachable):
		return http.StatusBadGateway, "The prediction service is unreachable. Please try again later."
	default:
		return http.StatusBadGateway, err.Error()
	}
}

func (s *Server) render(w http.ResponseWriter, status int, data pageData) {
	data.Title = "Student Dropout Risk Predictor"
	data.Fields = features.Fields

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		log.Error().Err(err).Msg("Failed to render form")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func defaultValues() map[string]string {
	values := make(map[string]string, len(features.Fields))
	for _, f := range features.Fields {
		values[f.Name] = strconv.FormatFloat(f.Default, 'f', -1, 64)
	}
	return values
}

func submittedValues(r *http.Request) map[string]string {
	values := defaultValues()
	for _, f := range features.Fields {
		if f.IsFlag() {
			flag, _ := features.ParseFlag(r.PostForm.Get(f.Name))
			values[f.Name] = strconv.Itoa(flag)
			continue
		}
		values[f.Name] = r.PostForm.Get(f.Name)
	}
	return values
}
