package cli

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"microscope/internal/shared/observability"
	"microscope/internal/shared/util"
	"microscope/internal/shared/version"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HealthStatus struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Symbols   int    `json:"symbols"`
	UptimeSec int64  `json:"uptime_sec"`

	Memory util.MemoryUsage `json:"memory"`
}

type ObservabilityServer struct {
	addr    string
	rt      *runtime
	started time.Time
	server  *http.Server
}

func NewObservabilityServer(addr string, rt *runtime) *ObservabilityServer {
	return &ObservabilityServer{addr: addr, rt: rt}
}

func (s *ObservabilityServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := s.health(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if status.Status != "up" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})
	return mux
}

func (s *ObservabilityServer) health(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:  "up",
		Version: version.Version,
		Memory:  util.ReadMemoryUsage(),
	}
	if !s.started.IsZero() {
		status.UptimeSec = int64(time.Since(s.started).Seconds())
	}
	if s.rt == nil {
		return status
	}
	n, err := s.rt.symbolCount(ctx)
	if err != nil {
		slog.Warn("health check could not count symbols", "error", err)
		status.Status = "degraded"
	}
	status.Symbols = n
	return status
}

func (s *ObservabilityServer) Start(ctx context.Context) error {
	s.started = time.Now()
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("observability server starting", "addr", s.addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("observability server failed", "error", err)
		}
	}()
	return nil
}

func (s *ObservabilityServer) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// startMetricsServer serves /metrics and /health when an address is
// configured. The returned server is nil otherwise and Stop is a no-op.
func startMetricsServer(ctx context.Context, rt *runtime) *ObservabilityServer {
	addr := cfg.Observability.MetricsAddr
	if addr == "" {
		return nil
	}
	srv := NewObservabilityServer(addr, rt)
	if err := srv.Start(ctx); err != nil {
		slog.Warn("observability server not started", "error", err)
		return nil
	}
	return srv
}

// startObservability installs the OTLP exporter when an endpoint is set.
func startObservability(ctx context.Context) (func(), error) {
	shutdown, err := observability.InitTracing(ctx, cfg.Observability.OTLPEndpoint, cfg.Observability.ServiceName)
	if err != nil {
		return nil, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}, nil
}
