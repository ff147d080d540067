package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the service configuration. Values come from built-in defaults,
// then the optional YAML file named by CONFIG_FILE, then the environment.
type Config struct {
	Environment string         `yaml:"environment"`
	Server      ServerConfig   `yaml:"server"`
	Logger      LoggerConfig   `yaml:"logger"`
	Postgres    PostgresConfig `yaml:"postgres"`
	Redis       RedisConfig    `yaml:"redis"`
	Kafka       KafkaConfig    `yaml:"kafka"`
	JWT         JWTConfig      `yaml:"jwt"`
	Tracing     TracingConfig  `yaml:"tracing"`
}

type ServerConfig struct {
	Name        string        `yaml:"name"`
	HTTPPort    string        `yaml:"http_port"`
	GRPCPort    string        `yaml:"grpc_port"`
	Timeout     time.Duration `yaml:"timeout"`
	CORSOrigins []string      `yaml:"cors_origins"`
	// Storage selects the repository backend: "postgres" or "memory".
	Storage string `yaml:"storage"`
}

type LoggerConfig struct {
	Level string `yaml:"level"`
}

type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers           []string `yaml:"brokers"`
	GroupID           string   `yaml:"group_id"`
	TransactionsTopic string   `yaml:"transactions_topic"`
	CountsTopic       string   `yaml:"counts_topic"`
}

type JWTConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

type TracingConfig struct {
	Enabled        bool    `yaml:"enabled"`
	JaegerEndpoint string  `yaml:"jaeger_endpoint"`
	SampleRatio    float64 `yaml:"sample_ratio"`
}

// IsDevelopment reports whether console-friendly defaults should be used
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Defaults returns the configuration used when nothing is overridden
func Defaults() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Name:        "inventory-service",
			HTTPPort:    "8082",
			GRPCPort:    "9092",
			Timeout:     30 * time.Second,
			CORSOrigins: []string{"*"},
			Storage:     "postgres",
		},
		Logger: LoggerConfig{Level: "info"},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Password:        "postgres",
			DBName:          "colporter",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Kafka: KafkaConfig{
			GroupID:           "inventory-service",
			TransactionsTopic: "colporter-transactions",
			CountsTopic:       "inventory-counts",
		},
		JWT: JWTConfig{
			Secret: "change-me-in-production",
			TTL:    24 * time.Hour,
		},
		Tracing: TracingConfig{
			JaegerEndpoint: "http://localhost:14268/api/traces",
			SampleRatio:    1,
		},
	}
}

// Load reads .env (if present), the optional YAML file and the environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if cfg.Server.Storage != "postgres" && cfg.Server.Storage != "memory" {
		return nil, fmt.Errorf("unknown storage %q", cfg.Server.Storage)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)

	cfg.Server.Name = getEnv("OTEL_SERVICE_NAME", cfg.Server.Name)
	cfg.Server.HTTPPort = getEnv("HTTP_PORT", cfg.Server.HTTPPort)
	cfg.Server.GRPCPort = getEnv("GRPC_PORT", cfg.Server.GRPCPort)
	cfg.Server.Timeout = getEnvDuration("HTTP_TIMEOUT", cfg.Server.Timeout)
	cfg.Server.CORSOrigins = getEnvSlice("CORS_ALLOWED_ORIGINS", cfg.Server.CORSOrigins)
	cfg.Server.Storage = getEnv("STORAGE", cfg.Server.Storage)

	cfg.Logger.Level = getEnv("LOG_LEVEL", cfg.Logger.Level)

	cfg.Postgres.Host = getEnv("DB_HOST", cfg.Postgres.Host)
	cfg.Postgres.Port = getEnv("DB_PORT", cfg.Postgres.Port)
	cfg.Postgres.User = getEnv("DB_USER", cfg.Postgres.User)
	cfg.Postgres.Password = getEnv("DB_PASSWORD", cfg.Postgres.Password)
	cfg.Postgres.DBName = getEnv("DB_NAME", cfg.Postgres.DBName)
	cfg.Postgres.SSLMode = getEnv("DB_SSLMODE", cfg.Postgres.SSLMode)
	cfg.Postgres.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", cfg.Postgres.MaxOpenConns)
	cfg.Postgres.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", cfg.Postgres.MaxIdleConns)
	cfg.Postgres.ConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", cfg.Postgres.ConnMaxLifetime)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("REDIS_DB", cfg.Redis.DB)

	cfg.Kafka.Brokers = getEnvSlice("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", cfg.Kafka.GroupID)
	cfg.Kafka.TransactionsTopic = getEnv("KAFKA_TRANSACTIONS_TOPIC", cfg.Kafka.TransactionsTopic)
	cfg.Kafka.CountsTopic = getEnv("KAFKA_COUNTS_TOPIC", cfg.Kafka.CountsTopic)

	cfg.JWT.Secret = getEnv("JWT_SECRET", cfg.JWT.Secret)
	cfg.JWT.TTL = getEnvDuration("JWT_TTL", cfg.JWT.TTL)

	cfg.Tracing.Enabled = getEnvBool("TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.JaegerEndpoint = getEnv("JAEGER_ENDPOINT", cfg.Tracing.JaegerEndpoint)
	cfg.Tracing.SampleRatio = getEnvFloat("TRACING_SAMPLE_RATIO", cfg.Tracing.SampleRatio)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
