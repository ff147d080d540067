package grpc

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	oteltrace "go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/tair/colporter/pkg/logger"
)

// ServiceName is the health service name reported for the inventory backend
const ServiceName = "colporter.inventory"

// Pinger reports whether the backing store is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Interceptors collects request metrics for gRPC calls
type Interceptors struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewInterceptors creates the gRPC collectors and registers them with reg
func NewInterceptors(reg prometheus.Registerer) *Interceptors {
	i := &Interceptors{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_service_grpc_requests_total",
				Help: "Total number of gRPC requests",
			},
			[]string{"method", "status_code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inventory_service_grpc_request_duration_seconds",
				Help:    "Duration of gRPC requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
	reg.MustRegister(i.requestsTotal, i.requestDuration)
	return i
}

// Metrics collects Prometheus metrics for gRPC calls
func (i *Interceptors) Metrics(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	i.requestsTotal.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
	i.requestDuration.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
	return resp, err
}

// LoggingInterceptor logs gRPC requests with structured logging
func LoggingInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	start := time.Now()

	traceID := "no-trace"
	if span := oteltrace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		traceID = span.SpanContext().TraceID().String()
	}

	resp, err := handler(ctx, req)
	duration := time.Since(start)

	if err != nil {
		logger.Error(ctx).
			Str("method", info.FullMethod).
			Str("protocol", "grpc").
			Dur("duration", duration).
			Str("trace_id", traceID).
			Str("grpc_status", status.Code(err).String()).
			Err(err).
			Msg("gRPC request failed")
	} else {
		logger.Debug(ctx).
			Str("method", info.FullMethod).
			Str("protocol", "grpc").
			Dur("duration", duration).
			Str("trace_id", traceID).
			Msg("gRPC request completed")
	}

	return resp, err
}

// NewServer builds the gRPC server exposing grpc.health.v1 and reflection
func NewServer(interceptors *Interceptors, healthServer *health.Server) *grpc.Server {
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			LoggingInterceptor,
			interceptors.Metrics,
		),
	)

	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	return grpcServer
}

// HealthReporter keeps the health status in line with database reachability
type HealthReporter struct {
	server *health.Server
	db     Pinger
}

// NewHealthReporter creates a reporter. db may be nil for in-memory storage,
// in which case the service is always SERVING.
func NewHealthReporter(server *health.Server, db Pinger) *HealthReporter {
	return &HealthReporter{server: server, db: db}
}

// Check pings the database once and publishes the result
func (r *HealthReporter) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if r.db != nil {
		if err := r.db.PingContext(ctx); err != nil {
			logger.Warn(ctx).Err(err).Msg("Database ping failed")
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	r.server.SetServingStatus("", st)
	r.server.SetServingStatus(ServiceName, st)
	return st
}

// Run checks every interval until ctx is done
func (r *HealthReporter) Run(ctx context.Context, interval time.Duration) {
	r.Check(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.server.Shutdown()
			return
		case <-ticker.C:
			r.Check(ctx)
		}
	}
}
