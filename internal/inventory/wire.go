//go:build wireinject
// +build wireinject

package inventory

import (
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/tair/colporter/internal/inventory/repository/memory"
	"github.com/tair/colporter/internal/inventory/usecase/command"
	"github.com/tair/colporter/pkg/auth"
)

// InitializePostgresService wires the service on PostgreSQL, with Redis row
// locks when redisClient is non-nil
func InitializePostgresService(
	db *gorm.DB,
	redisClient *redis.Client,
	events command.EventPublisher,
	tokens *auth.Manager,
	reg prometheus.Registerer,
) (*Service, error) {
	wire.Build(
		PostgresRepositorySet,
		HandlerSet,
	)
	return nil, nil
}

// InitializeMemoryService wires the service on in-memory storage
func InitializeMemoryService(
	store *memory.Store,
	events command.EventPublisher,
	tokens *auth.Manager,
	reg prometheus.Registerer,
) (*Service, error) {
	wire.Build(
		MemoryRepositorySet,
		HandlerSet,
	)
	return nil, nil
}
