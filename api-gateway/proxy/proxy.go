package proxy

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tair/colporter/api-gateway/config"
	"github.com/tair/colporter/api-gateway/loadbalancer"
	"github.com/tair/colporter/pkg/logger"
)

// hopHeaders are not forwarded in either direction
var hopHeaders = map[string]bool{
	"host":              true,
	"connection":        true,
	"content-length":    true,
	"transfer-encoding": true,
	"keep-alive":        true,
	"upgrade":           true,
}

// ReverseProxy forwards requests to backend service replicas
type ReverseProxy struct {
	clients       map[string]*http.Client
	loadBalancers map[string]*loadbalancer.RoundRobin
}

// NewReverseProxy creates a new reverse proxy
func NewReverseProxy(cfg *config.GatewayConfig) *ReverseProxy {
	p := &ReverseProxy{
		clients:       make(map[string]*http.Client),
		loadBalancers: make(map[string]*loadbalancer.RoundRobin),
	}
	for name, svc := range cfg.Services {
		p.loadBalancers[name] = loadbalancer.NewRoundRobin(svc.Instances)
		p.clients[name] = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   svc.Timeout,
		}
	}
	return p
}

// ProxyRequest forwards the request to the next replica of serviceName
func (p *ReverseProxy) ProxyRequest(c *fiber.Ctx, serviceName string) error {
	lb, ok := p.loadBalancers[serviceName]
	if !ok {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"error":   fmt.Sprintf("Unknown service '%s'", serviceName),
		})
	}
	serverURL := lb.Next()
	if serverURL == "" {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"error":   fmt.Sprintf("No available instances for '%s'", serviceName),
		})
	}

	req, err := http.NewRequestWithContext(
		c.UserContext(),
		c.Method(),
		buildTargetURL(serverURL, string(c.Request().URI().Path()), string(c.Request().URI().QueryString())),
		bytes.NewReader(c.Body()),
	)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to create request",
		})
	}
	copyHeaders(c, req)

	resp, err := p.clients[serviceName].Do(req)
	if err != nil {
		logger.Error(c.UserContext()).
			Err(err).
			Str("service", serviceName).
			Str("target", serverURL).
			Msg("Backend request failed")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to reach backend service",
		})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to read response",
		})
	}

	for key, values := range resp.Header {
		if hopHeaders[strings.ToLower(key)] {
			continue
		}
		for _, value := range values {
			c.Set(key, value)
		}
	}
	return c.Status(resp.StatusCode).Send(body)
}

func buildTargetURL(serverURL, path, query string) string {
	target := strings.TrimRight(serverURL, "/") + path
	if query != "" {
		target += "?" + query
	}
	return target
}

// copyHeaders forwards the client's headers plus X-Forwarded-* and the
// request id assigned by the gateway
func copyHeaders(c *fiber.Ctx, req *http.Request) {
	c.Request().Header.VisitAll(func(key, value []byte) {
		if hopHeaders[strings.ToLower(string(key))] {
			return
		}
		req.Header.Set(string(key), string(value))
	})

	if requestID := c.GetRespHeader(fiber.HeaderXRequestID); requestID != "" {
		req.Header.Set(fiber.HeaderXRequestID, requestID)
	}
	req.Header.Set("X-Forwarded-For", c.IP())
	req.Header.Set("X-Forwarded-Proto", c.Protocol())
	req.Header.Set("X-Forwarded-Host", c.Hostname())
}
