package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tair/colporter/internal/inventory/domain"
)

// GormCountRepository stores inventory counts and confirms them together
// with the stock update and its audit row in one transaction
type GormCountRepository struct {
	db *gorm.DB
}

// NewGormCountRepository creates a count repository on db
func NewGormCountRepository(db *gorm.DB) *GormCountRepository {
	return &GormCountRepository{db: db}
}

func (r *GormCountRepository) Find(ctx context.Context, programID, bookID uint, date string) (*domain.InventoryCount, error) {
	var count domain.InventoryCount
	err := r.db.WithContext(ctx).
		Where("program_id = ? AND book_id = ? AND count_date = ?", programID, bookID, date).
		First(&count).Error
	if err != nil {
		return nil, notFound(err, "count for book %d on %s", bookID, date)
	}
	return &count, nil
}

func (r *GormCountRepository) ListByDate(ctx context.Context, programID uint, date string) ([]domain.InventoryCount, error) {
	var counts []domain.InventoryCount
	err := r.db.WithContext(ctx).
		Where("program_id = ? AND count_date = ?", programID, date).
		Order("book_id").
		Find(&counts).Error
	return counts, err
}

var countUpsert = clause.OnConflict{
	Columns: []clause.Column{{Name: "program_id"}, {Name: "book_id"}, {Name: "count_date"}},
	DoUpdates: clause.AssignmentColumns([]string{
		"system_count", "manual_count", "discrepancy", "status",
		"confirmed", "confirmed_by", "confirmed_at", "updated_by", "updated_at",
	}),
}

func (r *GormCountRepository) Save(ctx context.Context, count *domain.InventoryCount) error {
	return r.db.WithContext(ctx).Clauses(countUpsert).Create(count).Error
}

func (r *GormCountRepository) Confirm(ctx context.Context, count *domain.InventoryCount, book *domain.Book, adj *domain.StockAdjustment) error {
	return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if err := db.Clauses(countUpsert).Create(count).Error; err != nil {
			return err
		}
		err := db.Model(book).
			Select("stock", "initial_stock").
			Updates(book).Error
		if err != nil {
			return err
		}
		adj.CountID = count.ID
		return db.Create(adj).Error
	})
}

// AutoMigrate creates or updates every table owned by the inventory service
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Book{},
		&domain.Transaction{},
		&domain.TransactionItem{},
		&domain.InventoryCount{},
		&domain.StockAdjustment{},
	)
}
