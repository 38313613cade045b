package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kwasblue/whisper/internal/config"
	"github.com/kwasblue/whisper/internal/metrics"
	"github.com/kwasblue/whisper/internal/store"
)

// HTTPServer exposes the optional local monitoring endpoint: health,
// session library listing and Prometheus metrics. It never touches the
// capture path.
type HTTPServer struct {
	server  *http.Server
	logger  *slog.Logger
	config  *config.Config
	store   *store.Store
	metrics *metrics.Metrics

	startTime time.Time
}

// NewHTTPServer creates the monitoring server. store may be nil when no
// library database is open; /sessions then returns an empty list.
func NewHTTPServer(cfg config.HTTPConfig, appConfig *config.Config, st *store.Store,
	m *metrics.Metrics, logger *slog.Logger) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		store:     st,
		metrics:   m,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures the monitoring routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("/sessions", h.withMetrics("/sessions", h.handleSessions))
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Prometheus metrics endpoint (not itself instrumented)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with request metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}
		handler(ww, r)

		if h.metrics != nil {
			h.metrics.RecordHTTPRequest(r.Method, endpoint,
				fmt.Sprintf("%d", ww.statusCode), time.Since(startTime).Seconds())
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("starting monitoring endpoint",
		slog.String("address", h.server.Addr))

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("stopping monitoring endpoint")
	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    "whisper",
			"version": "1.0.0",
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleSessions implements the /sessions endpoint
func (h *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var sessions []store.SessionMeta
	if h.store != nil {
		var err error
		sessions, err = h.store.List()
		if err != nil {
			h.logger.Error("failed to list sessions", slog.String("error", err.Error()))
			http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
			return
		}
	}
	if sessions == nil {
		sessions = []store.SessionMeta{}
	}

	response := map[string]interface{}{
		"total_sessions": len(sessions),
		"timestamp":      time.Now().UTC(),
		"sessions":       sessions,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Sanitized configuration: the postprocess API key is omitted
	sanitized := map[string]interface{}{
		"paths": map[string]interface{}{
			"recordings_dir": h.config.Paths.RecordingsDir,
			"models_dir":     h.config.Paths.ModelsDir,
		},
		"audio": map[string]interface{}{
			"sample_rate":    h.config.Audio.SampleRate,
			"channels":       h.config.Audio.Channels,
			"bit_depth":      h.config.Audio.BitDepth,
			"frame_duration": h.config.Audio.FrameDuration,
			"queue_capacity": h.config.Audio.QueueCapacity,
		},
		"vad": map[string]interface{}{
			"aggressiveness":          h.config.VAD.Aggressiveness,
			"trailing_silence_frames": h.config.VAD.TrailingSilenceFrames,
			"pop_timeout":             h.config.VAD.PopTimeout,
		},
		"transcription": map[string]interface{}{
			"model_path": h.config.Transcription.ModelPath,
			"language":   h.config.Transcription.Language,
		},
		"postprocess": map[string]interface{}{
			"enabled":  h.config.PostProcess.Enabled,
			"endpoint": h.config.PostProcess.Endpoint,
			"model":    h.config.PostProcess.Model,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitized)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "whisper recording notebook",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":         "API documentation",
			"GET /health":   "Service health check",
			"GET /sessions": "List recorded sessions",
			"GET /config":   "Get sanitized configuration",
			"GET /metrics":  "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
