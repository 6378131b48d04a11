// Package server exposes the registration pipeline over HTTP and the
// delivery session's readiness over the standard gRPC health service.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/alfredjeanlab/rollcall/internal/processor"
)

// Readiness reports whether the delivery session can currently send.
type Readiness interface {
	Ready() bool
}

// Server holds the handlers' collaborators.
type Server struct {
	proc     *processor.Processor
	channel  Readiness
	registry *prometheus.Registry
	health   *health.Server
	logger   *slog.Logger
}

// NewServer returns a Server. registry is served at /metrics; a nil channel
// is reported as unavailable.
func NewServer(proc *processor.Processor, channel Readiness, registry *prometheus.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	s := &Server{
		proc:     proc,
		channel:  channel,
		registry: registry,
		health:   health.NewServer(),
		logger:   logger,
	}
	s.syncHealth()
	return s
}

func (s *Server) channelReady() bool {
	return s.channel != nil && s.channel.Ready()
}

// syncHealth mirrors channel readiness into the gRPC health status. The
// overall ("") service stays SERVING; "rollcall.channel" follows the session.
func (s *Server) syncHealth() {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if s.channelReady() {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ChannelHealthService, st)
}

// ChannelHealthService is the gRPC health service name tracking the session.
const ChannelHealthService = "rollcall.channel"

// WatchHealth refreshes the gRPC health status every interval until ctx ends,
// then marks everything NOT_SERVING.
func (s *Server) WatchHealth(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-ticker.C:
			s.syncHealth()
		}
	}
}
