package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServiceConfig holds configuration for a backend service
type ServiceConfig struct {
	Name        string
	Instances   []string
	GRPCAddr    string
	Timeout     time.Duration
	HealthCheck string
}

// GatewayConfig holds the main gateway configuration
type GatewayConfig struct {
	Port           string
	Environment    string
	LogLevel       string
	JWTSecret      string
	RedisAddr      string
	RedisPassword  string
	RateLimit      int
	WriteRateLimit int
	CacheTTL       time.Duration
	AllowOrigins   string
	JaegerEndpoint string
	TracingEnabled bool
	Services       map[string]ServiceConfig
}

// LoadConfig loads the gateway configuration from .env and the environment
func LoadConfig() *GatewayConfig {
	_ = godotenv.Load()

	return &GatewayConfig{
		Port:           getEnv("GATEWAY_PORT", "8000"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		JWTSecret:      getEnv("JWT_SECRET", "change-me-in-production"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RateLimit:      getEnvInt("RATE_LIMIT_PER_MINUTE", 100),
		WriteRateLimit: getEnvInt("RATE_LIMIT_WRITES_PER_MINUTE", 30),
		CacheTTL:       getEnvDuration("CACHE_TTL", time.Minute),
		AllowOrigins:   getEnv("CORS_ALLOWED_ORIGINS", "*"),
		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
		TracingEnabled: getEnv("TRACING_ENABLED", "false") == "true",
		Services: map[string]ServiceConfig{
			"inventory": {
				Name:        "inventory-service",
				Instances:   getEnvList("INVENTORY_SERVICE_URLS", []string{"http://localhost:8082"}),
				GRPCAddr:    getEnv("INVENTORY_SERVICE_GRPC_ADDR", "localhost:9092"),
				Timeout:     getEnvDuration("INVENTORY_SERVICE_TIMEOUT", 30*time.Second),
				HealthCheck: "/health",
			},
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimRight(strings.TrimSpace(part), "/"); part != "" {
			out = append(out, part)
		}
	}
	return out
}
