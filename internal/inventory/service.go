package inventory

import (
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	grpcDelivery "github.com/tair/colporter/internal/inventory/delivery/grpc"
	"github.com/tair/colporter/internal/inventory/delivery/http"
	kafkaDelivery "github.com/tair/colporter/internal/inventory/delivery/kafka"
	"github.com/tair/colporter/internal/inventory/domain"
	"github.com/tair/colporter/internal/inventory/repository"
	"github.com/tair/colporter/internal/inventory/repository/memory"
	"github.com/tair/colporter/internal/inventory/usecase/command"
	"github.com/tair/colporter/internal/inventory/usecase/query"
)

// Service bundles the entry points of the inventory backend
type Service struct {
	HTTP         *http.InventoryHandler
	Events       *kafkaDelivery.TransactionEventHandler
	Backfill     *command.BackfillBookSizesHandler
	Interceptors *grpcDelivery.Interceptors
}

// NewService creates a new service bundle
func NewService(
	handler *http.InventoryHandler,
	events *kafkaDelivery.TransactionEventHandler,
	backfill *command.BackfillBookSizesHandler,
	interceptors *grpcDelivery.Interceptors,
) *Service {
	return &Service{HTTP: handler, Events: events, Backfill: backfill, Interceptors: interceptors}
}

// ProvideBookRepository provides the traced GORM book repository
func ProvideBookRepository(db *gorm.DB) domain.BookRepository {
	return repository.NewBookRepositoryWithTracing(repository.NewGormBookRepository(db))
}

// ProvideTransactionRepository provides the traced GORM transaction repository
func ProvideTransactionRepository(db *gorm.DB) domain.TransactionRepository {
	return repository.NewTransactionRepositoryWithTracing(repository.NewGormTransactionRepository(db))
}

// ProvideCountRepository provides the traced GORM count repository
func ProvideCountRepository(db *gorm.DB) domain.CountRepository {
	return repository.NewCountRepositoryWithTracing(repository.NewGormCountRepository(db))
}

// ProvideRowLocker uses Redis when a client is configured
func ProvideRowLocker(client *redis.Client) domain.RowLocker {
	if client == nil {
		return repository.NewLocalLocker()
	}
	return repository.NewRedisLocker(client)
}

// ProvideMemoryBookRepository provides the in-memory book repository
func ProvideMemoryBookRepository(store *memory.Store) domain.BookRepository {
	return store.Books()
}

// ProvideMemoryTransactionRepository provides the in-memory transaction repository
func ProvideMemoryTransactionRepository(store *memory.Store) domain.TransactionRepository {
	return store.Transactions()
}

// ProvideMemoryCountRepository provides the in-memory count repository
func ProvideMemoryCountRepository(store *memory.Store) domain.CountRepository {
	return store.Counts()
}

// ProvideLocalLocker provides the in-process row locker
func ProvideLocalLocker() domain.RowLocker {
	return repository.NewLocalLocker()
}

// Wire sets
var (
	PostgresRepositorySet = wire.NewSet(
		ProvideBookRepository,
		ProvideTransactionRepository,
		ProvideCountRepository,
		ProvideRowLocker,
	)

	MemoryRepositorySet = wire.NewSet(
		ProvideMemoryBookRepository,
		ProvideMemoryTransactionRepository,
		ProvideMemoryCountRepository,
		ProvideLocalLocker,
	)

	HandlerSet = wire.NewSet(
		command.NewSubmitCountHandler,
		command.NewRecordTransactionHandler,
		command.NewReviewTransactionHandler,
		command.NewBackfillBookSizesHandler,
		query.NewListBooksHandler,
		query.NewListTransactionsHandler,
		query.NewListCountsHandler,
		http.NewMetrics,
		http.NewInventoryHandler,
		kafkaDelivery.NewTransactionEventHandler,
		grpcDelivery.NewInterceptors,
		NewService,
	)
)
