package httpadapter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
)

// DatasetStatus reports the size of the merged dataset.
type DatasetStatus interface {
	Records() int64
}

// Server exposes health, readiness, dataset, and metrics HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /dataset, and /metrics routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, dataset DatasetStatus, regions []string, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.HandleFunc("GET /dataset", handleDataset(dataset, regions))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type datasetResponse struct {
	Regions []string `json:"regions"`
	Columns []string `json:"columns"`
	Records int64    `json:"records"`
}

func handleDataset(dataset DatasetStatus, regions []string) http.HandlerFunc {
	if len(regions) == 0 {
		regions = domain.RegionCodes()
	}
	columns := domain.AccidentSchema.Names()
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, datasetResponse{
			Regions: regions,
			Columns: columns,
			Records: dataset.Records(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort status response
}
