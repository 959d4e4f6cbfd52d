// Package grpcserver runs the gRPC health service probed by orchestrators.
package grpcserver

import (
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health-checked service name besides the server-wide "".
const ServiceName = "carbontracker.v1.Ledger"

// Health owns the gRPC server and its health status.
type Health struct {
	srv *grpc.Server
	hs  *health.Server
	log *zap.Logger
}

// NewHealth builds a server reporting SERVING. Reflection is registered when withReflection is set.
func NewHealth(log *zap.Logger, withReflection bool) *Health {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	if withReflection {
		reflection.Register(srv)
	}
	h := &Health{srv: srv, hs: hs, log: log}
	h.SetServing(true)
	return h
}

// Serve blocks accepting connections on lis.
func (h *Health) Serve(lis net.Listener) error {
	h.log.Info("grpc health listening", zap.String("addr", lis.Addr().String()))
	return h.srv.Serve(lis)
}

// SetServing flips the reported status of both names.
func (h *Health) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	h.hs.SetServingStatus("", st)
	h.hs.SetServingStatus(ServiceName, st)
}

// Stop reports NOT_SERVING, then stops gracefully, forcing Stop after timeout.
func (h *Health) Stop(timeout time.Duration) {
	h.SetServing(false)
	done := make(chan struct{})
	go func() {
		h.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		h.log.Warn("grpc graceful stop timed out, forcing")
		h.srv.Stop()
	}
}
