// Package dashboard serves the interactive dropout-risk page. Students are
// scored in-process by the shared predictor; the page talks to the server
// over a websocket and renders a donut chart of dropout against staying.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"dropout-risk/internal/features"
	"dropout-risk/internal/metrics"
	"dropout-risk/internal/ml"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Message types sent to websocket clients.
const (
	TypePrediction = "prediction"
	TypeStatus     = "status"
	TypeError      = "error"
)

const (
	statusInterval = 5 * time.Second
	writeWait      = 5 * time.Second
	maxMessageSize = 1 << 16
)

// Prediction is a scored student as the page renders it.
type Prediction struct {
	DropoutProbability float64 `json:"dropout_probability"`
	SafeProbability    float64 `json:"safe_probability"`
	Percent            string  `json:"percent"`
	RiskCategory       string  `json:"risk_category"`
	Color              string  `json:"color"`
}

// Message is one frame sent to a client.
type Message struct {
	Type       string           `json:"type"`
	Prediction *Prediction      `json:"prediction,omitempty"`
	Status     *ml.HealthStatus `json:"status,omitempty"`
	Error      string           `json:"error,omitempty"`
	Field      string           `json:"field,omitempty"`
}

// client serialises writes; a websocket connection supports one writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

// Dashboard is the interactive prediction page with websocket round trips.
type Dashboard struct {
	predictor    ml.PredictorInterface
	clientsGauge metrics.MetricsGauge
	router       *mux.Router
	server       *http.Server
	upgrader     websocket.Upgrader
	clients      map[*client]bool
	clientsMu    sync.RWMutex
	stopChannel  chan struct{}
	isRunning    bool
	mu           sync.RWMutex
}

// NewDashboard creates a dashboard on port. clientsGauge may be nil.
func NewDashboard(predictor ml.PredictorInterface, clientsGauge metrics.MetricsGauge, port int) *Dashboard {
	d := &Dashboard{
		predictor:    predictor,
		clientsGauge: clientsGauge,
		upgrader:     websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:      make(map[*client]bool),
	}

	r := mux.NewRouter()
	r.HandleFunc("/", d.handlePage).Methods(http.MethodGet)
	r.HandleFunc("/ws", d.handleWebSocket).Methods(http.MethodGet)
	r.HandleFunc("/api/predict", d.handlePredictAPI).Methods(http.MethodPost)
	r.HandleFunc("/api/status", d.handleStatusAPI).Methods(http.MethodGet)
	r.HandleFunc("/api/reload", d.handleReloadAPI).Methods(http.MethodPost)
	d.router = r

	d.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return d
}

// Handler returns the routed handler, for tests.
func (d *Dashboard) Handler() http.Handler { return d.router }

// Start starts the dashboard server and the status broadcaster.
func (d *Dashboard) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isRunning {
		return fmt.Errorf("dashboard is already running")
	}
	d.stopChannel = make(chan struct{})

	go d.statusBroadcaster(d.stopChannel)

	go func() {
		log.Info().Str("address", d.server.Addr).Msg("Starting dashboard server")
		if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Dashboard server failed")
		}
	}()

	d.isRunning = true
	log.Info().Msg("Dashboard started successfully")
	return nil
}

// Stop closes client connections and shuts the server down.
func (d *Dashboard) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isRunning {
		return nil
	}
	close(d.stopChannel)

	d.clientsMu.Lock()
	for c := range d.clients {
		c.conn.Close()
	}
	d.clients = make(map[*client]bool)
	d.clientsMu.Unlock()
	if d.clientsGauge != nil {
		d.clientsGauge.Set(0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown dashboard server")
		return err
	}

	d.isRunning = false
	log.Info().Msg("Dashboard stopped")
	return nil
}

// IsRunning reports whether Start has been called without a matching Stop.
func (d *Dashboard) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.isRunning
}

// statusBroadcaster pushes the model status to every client periodically.
func (d *Dashboard) statusBroadcaster(stop <-chan struct{}) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.broadcast(d.statusMessage())
		case <-stop:
			return
		}
	}
}

func (d *Dashboard) statusMessage() Message {
	health := d.predictor.Health()
	return Message{Type: TypeStatus, Status: &health}
}

func (d *Dashboard) broadcast(msg Message) {
	d.clientsMu.RLock()
	clients := make([]*client, 0, len(d.clients))
	for c := range d.clients {
		clients = append(clients, c)
	}
	d.clientsMu.RUnlock()

	for _, c := range clients {
		if err := c.send(msg); err != nil {
			log.Debug().Err(err).Msg("Failed to send message to WebSocket client")
			d.removeClient(c)
		}
	}
}

func (d *Dashboard) addClient(c *client) {
	d.clientsMu.Lock()
	d.clients[c] = true
	d.clientsMu.Unlock()
	if d.clientsGauge != nil {
		d.clientsGauge.Inc()
	}
}

func (d *Dashboard) removeClient(c *client) {
	d.clientsMu.Lock()
	_, ok := d.clients[c]
	delete(d.clients, c)
	d.clientsMu.Unlock()

	c.conn.Close()
	if ok && d.clientsGauge != nil {
		d.clientsGauge.Dec()
	}
}

// Reload re-reads the model artifact and pushes the new status to every
// connected client. On failure the current model, if any, keeps serving.
func (d *Dashboard) Reload() error {
	if err := d.predictor.Reload(); err != nil {
		log.Error().Err(err).Msg("Dashboard model reload failed")
		return err
	}
	d.broadcast(d.statusMessage())
	return nil
}

// predict scores a JSON feature vector and renders the outcome as a message
// with the HTTP status it maps to.
func (d *Dashboard) predict(ctx context.Context, body io.Reader) (Message, int) {
	v, err := features.DecodeJSON(body)
	if err != nil {
		return errorMessage(err)
	}
	res, err := d.predictor.Predict(ctx, v)
	if err != nil {
		return errorMessage(err)
	}
	return Message{Type: TypePrediction, Prediction: NewPrediction(res)}, http.StatusOK
}

// NewPrediction formats a predictor result for display.
func NewPrediction(res ml.Result) *Prediction {
	return &Prediction{
		DropoutProbability: res.Probability,
		SafeProbability:    1 - res.Probability,
		Percent:            fmt.Sprintf("%.1f%%", res.Percent()),
		RiskCategory:       res.RiskCategory,
		Color:              ml.Color(res.RiskCategory),
	}
}

func errorMessage(err error) (Message, int) {
	var fieldErr *ml.ValidationError
	var predErr *ml.PredictionError
	switch {
	case errors.As(err, &fieldErr):
		return Message{Type: TypeError, Error: fieldErr.Error(), Field: fieldErr.Field}, http.StatusBadRequest
	case errors.Is(err, ml.ErrModelUnavailable):
		return Message{Type: TypeError, Error: "Model not loaded. Train a model and reload."}, http.StatusServiceUnavailable
	case errors.As(err, &predErr):
		return Message{Type: TypeError, Error: predErr.Error()}, http.StatusInternalServerError
	default:
		return Message{Type: TypeError, Error: err.Error()}, http.StatusBadRequest
	}
}

func (d *Dashboard) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := &client{conn: conn}
	d.addClient(c)
	defer d.removeClient(c)

	log.Debug().Str("remote", r.RemoteAddr).Msg("Dashboard client connected")

	if err := c.send(d.statusMessage()); err != nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("Dashboard client closed unexpectedly")
			}
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		msg, _ := d.predict(ctx, bytes.NewReader(data))
		cancel()

		if err := c.send(msg); err != nil {
			return
		}
	}
}

func (d *Dashboard) handlePredictAPI(w http.ResponseWriter, r *http.Request) {
	msg, status := d.predict(r.Context(), http.MaxBytesReader(w, r.Body, maxMessageSize))
	writeJSON(w, status, msg)
}

func (d *Dashboard) handleStatusAPI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, d.statusMessage())
}

func (d *Dashboard) handleReloadAPI(w http.ResponseWriter, r *http.Request) {
	if err := d.Reload(); err != nil {
		writeJSON(w, http.StatusInternalServerError, Message{Type: TypeError, Error: "reload failed: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, d.statusMessage())
}

func (d *Dashboard) handlePage(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Title:  "Student Dropout Risk Dashboard",
		Fields: features.Fields,
	}
	if meta, ok := d.predictor.Metadata(); ok {
		data.ModelVersion = meta.Version
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		log.Error().Err(err).Msg("Failed to render dashboard")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}
