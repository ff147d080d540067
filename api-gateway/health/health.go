package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/tair/colporter/api-gateway/config"
	"github.com/tair/colporter/pkg/logger"
)

// InventoryServiceName is the grpc.health.v1 service name of the backend
const InventoryServiceName = "colporter.inventory"

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// ServiceHealth represents the health status of one probe target
type ServiceHealth struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Target    string    `json:"target"`
	Protocol  string    `json:"protocol"`
	LatencyMS int64     `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// GatewayHealth represents the overall gateway health
type GatewayHealth struct {
	Gateway  string          `json:"gateway"`
	Status   string          `json:"status"`
	Services []ServiceHealth `json:"services"`
	Uptime   float64         `json:"uptime_seconds"`
}

// GRPCHealthClient is the subset of grpc_health_v1.HealthClient used here
type GRPCHealthClient interface {
	Check(ctx context.Context, in *healthpb.HealthCheckRequest, opts ...grpc.CallOption) (*healthpb.HealthCheckResponse, error)
}

type grpcTarget struct {
	service string
	addr    string
	client  GRPCHealthClient
}

// HealthChecker probes downstream replicas over HTTP and gRPC
type HealthChecker struct {
	config    *config.GatewayConfig
	client    *http.Client
	grpc      []grpcTarget
	conns     []*grpc.ClientConn
	startTime time.Time
}

// NewHealthChecker creates a health checker. gRPC connections are lazy and
// only fail at probe time.
func NewHealthChecker(cfg *config.GatewayConfig) *HealthChecker {
	h := &HealthChecker{
		config:    cfg,
		client:    &http.Client{Timeout: 5 * time.Second},
		startTime: time.Now(),
	}
	for name, svc := range cfg.Services {
		if svc.GRPCAddr == "" {
			continue
		}
		conn, err := grpc.NewClient(svc.GRPCAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			logger.Logger.Warn().Err(err).Str("service", name).Msg("Invalid gRPC health address")
			continue
		}
		h.conns = append(h.conns, conn)
		h.grpc = append(h.grpc, grpcTarget{service: name, addr: svc.GRPCAddr, client: healthpb.NewHealthClient(conn)})
	}
	return h
}

// Close releases the gRPC connections
func (h *HealthChecker) Close() {
	for _, conn := range h.conns {
		conn.Close()
	}
}

// CheckHTTP probes one replica's health endpoint
func (h *HealthChecker) CheckHTTP(ctx context.Context, name, baseURL, path string) ServiceHealth {
	start := time.Now()
	result := ServiceHealth{Name: name, Target: baseURL, Protocol: "http", Timestamp: start}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
	if err == nil {
		var resp *http.Response
		if resp, err = h.client.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				err = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
			}
		}
	}
	return finish(result, start, err)
}

// CheckGRPC asks a grpc.health.v1 server for the inventory service status
func CheckGRPC(ctx context.Context, name, addr string, client GRPCHealthClient) ServiceHealth {
	start := time.Now()
	result := ServiceHealth{Name: name, Target: addr, Protocol: "grpc", Timestamp: start}

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: InventoryServiceName})
	if err == nil && resp.Status != healthpb.HealthCheckResponse_SERVING {
		err = fmt.Errorf("serving status %s", resp.Status)
	}
	return finish(result, start, err)
}

func finish(result ServiceHealth, start time.Time, err error) ServiceHealth {
	result.LatencyMS = time.Since(start).Milliseconds()
	result.Status = StatusHealthy
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
	}
	return result
}

// CheckAllServices probes every replica and gRPC target concurrently
func (h *HealthChecker) CheckAllServices(ctx context.Context) GatewayHealth {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []ServiceHealth
	)
	collect := func(r ServiceHealth) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()

		if r.Status != StatusHealthy {
			logger.Warn(ctx).
				Str("service", r.Name).
				Str("target", r.Target).
				Str("protocol", r.Protocol).
				Str("error", r.Error).
				Msg("Service health check failed")
		}
	}

	for name, svc := range h.config.Services {
		for _, instance := range svc.Instances {
			wg.Add(1)
			go func(name, instance, path string) {
				defer wg.Done()
				collect(h.CheckHTTP(ctx, name, instance, path))
			}(name, instance, svc.HealthCheck)
		}
	}
	for _, target := range h.grpc {
		wg.Add(1)
		go func(t grpcTarget) {
			defer wg.Done()
			collect(CheckGRPC(ctx, t.service, t.addr, t.client))
		}(target)
	}
	wg.Wait()

	return GatewayHealth{
		Gateway:  "api-gateway",
		Status:   OverallStatus(results),
		Services: results,
		Uptime:   time.Since(h.startTime).Seconds(),
	}
}

// OverallStatus is healthy when every probe passed, unhealthy when none did
func OverallStatus(results []ServiceHealth) string {
	healthy := 0
	for _, r := range results {
		if r.Status == StatusHealthy {
			healthy++
		}
	}
	switch {
	case healthy == len(results):
		return StatusHealthy
	case healthy > 0:
		return StatusDegraded
	default:
		return StatusUnhealthy
	}
}

// QuickCheck reports the gateway itself without probing downstream
func (h *HealthChecker) QuickCheck() map[string]interface{} {
	return map[string]interface{}{
		"status":    StatusHealthy,
		"gateway":   "api-gateway",
		"uptime":    time.Since(h.startTime).Seconds(),
		"timestamp": time.Now(),
	}
}
