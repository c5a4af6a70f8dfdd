package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Supermagnum/gr-sleipnir-sub000/internal/config"
	"github.com/Supermagnum/gr-sleipnir-sub000/internal/link"
	"github.com/Supermagnum/gr-sleipnir-sub000/internal/metrics"
)

// HTTPServer provides HTTP API endpoints for monitoring and management
type HTTPServer struct {
	server    *http.Server
	logger    *slog.Logger
	config    *config.Config
	linkMgr   *link.Manager
	udpServer *UDPServer
	metrics   *metrics.Metrics

	startTime time.Time
	mu        sync.RWMutex
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger,
	appConfig *config.Config, linkMgr *link.Manager, udpServer *UDPServer, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		linkMgr:   linkMgr,
		udpServer: udpServer,
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

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Link monitoring endpoints
	mux.HandleFunc("/links", h.withMetrics("/links", h.handleLinks))
	mux.HandleFunc("/links/", h.withMetrics("/links/{remote}", h.handleLinkDetail))

	// Configuration endpoint
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Statistics endpoint
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)
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
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)
	udpStats := h.udpServer.GetStatistics()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "sleipnird",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"udp_server": map[string]interface{}{
				"status":             "running",
				"datagrams_received": udpStats.DatagramsReceived,
				"datagrams_ingested": udpStats.DatagramsIngested,
				"ingest_errors":      udpStats.IngestErrors,
				"queue_size":         udpStats.QueueSize,
			},
			"link_manager": map[string]interface{}{
				"status":       "running",
				"active_links": udpStats.ActiveLinks,
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleLinks implements the /links endpoint
func (h *HTTPServer) handleLinks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	infos := h.linkMgr.AllSessions()

	response := map[string]interface{}{
		"total_links": len(infos),
		"timestamp":   time.Now().UTC(),
		"links":       infos,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleLinkDetail implements the /links/{remote} endpoint, where remote is
// the source address of the soft-bit stream (e.g. "192.0.2.1:5000").
func (h *HTTPServer) handleLinkDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	remote := r.URL.Path[len("/links/"):]
	if remote == "" {
		http.Error(w, "Remote address required", http.StatusBadRequest)
		return
	}

	for _, info := range h.linkMgr.AllSessions() {
		if info.Remote == remote || info.ID == remote {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(info)
			return
		}
	}

	http.Error(w, "Link not found", http.StatusNotFound)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Return sanitized configuration (key paths are intentionally omitted)
	sanitizedConfig := map[string]interface{}{
		"server": map[string]interface{}{
			"udp_port":             h.config.Server.UDPPort,
			"bind_address":         h.config.Server.BindAddress,
			"buffer_size":          h.config.Server.BufferSize,
			"max_concurrent_links": h.config.Server.MaxConcurrentLinks,
			"link_timeout":         h.config.Server.LinkTimeout,
		},
		"link": map[string]interface{}{
			"callsign":            h.config.Link.Callsign,
			"recipients":          h.config.Link.Recipients,
			"signing_enabled":     h.config.Link.SigningEnabled,
			"encryption_enabled":  h.config.Link.EncryptionEnabled,
			"sync_frame_interval": h.config.Link.SyncFrameInterval,
		},
		"ldpc": map[string]interface{}{
			"voice_matrix_path": h.config.LDPC.VoiceMatrixPath,
			"auth_matrix_path":  h.config.LDPC.AuthMatrixPath,
			"max_iterations":    h.config.LDPC.MaxIterations,
			"decoder":           h.config.LDPC.Decoder,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitizedConfig)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	udpStats := h.udpServer.GetStatistics()
	uptime := time.Since(h.startTime)

	stats := map[string]interface{}{
		"uptime":    uptime.String(),
		"timestamp": time.Now().UTC(),
		"udp": map[string]interface{}{
			"datagrams_received": udpStats.DatagramsReceived,
			"datagrams_ingested": udpStats.DatagramsIngested,
			"ingest_errors":      udpStats.IngestErrors,
			"queue_size":         udpStats.QueueSize,
			"queue_capacity":     udpStats.QueueCapacity,
		},
		"links": map[string]interface{}{
			"active_count": h.linkMgr.ActiveCount(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
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
		"service": "Sleipnir Link Daemon",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":               "API documentation",
			"GET /health":         "Service health check",
			"GET /links":          "List all active receive links",
			"GET /links/{remote}": "Get detailed link information by remote address or session ID",
			"GET /config":         "Get service configuration",
			"GET /stats":          "Get service statistics",
			"GET /metrics":        "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
