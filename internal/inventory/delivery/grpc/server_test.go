package grpc

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type pinger struct{ err error }

func (p *pinger) PingContext(context.Context) error { return p.err }

func TestHealthFollowsDatabase(t *testing.T) {
	db := &pinger{}
	healthServer := health.NewServer()
	reporter := NewHealthReporter(healthServer, db)

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(NewInterceptors(prometheus.NewRegistry()), healthServer)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	client := healthpb.NewHealthClient(conn)
	ctx := context.Background()

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, reporter.Check(ctx))
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	db.err = errors.New("connection refused")
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, reporter.Check(ctx))
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}

func TestHealthWithoutDatabase(t *testing.T) {
	reporter := NewHealthReporter(health.NewServer(), nil)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, reporter.Check(context.Background()))
}
