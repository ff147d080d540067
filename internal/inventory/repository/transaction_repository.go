package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tair/colporter/internal/inventory/domain"
)

// GormTransactionRepository stores sales transactions in Postgres through gorm
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a transaction repository on db
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

func (r *GormTransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	err := r.db.WithContext(ctx).Create(tx).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("transaction %s: %w", tx.ExternalID, domain.ErrConflict)
	}
	return err
}

func (r *GormTransactionRepository) FindByExternalID(ctx context.Context, externalID string) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("external_id = ?", externalID).
		First(&tx).Error
	if err != nil {
		return nil, notFound(err, "transaction %s", externalID)
	}
	return &tx, nil
}

func (r *GormTransactionRepository) List(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	q := r.db.WithContext(ctx).Preload("Items")
	if filter.ProgramID != 0 {
		q = q.Where("program_id = ?", filter.ProgramID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.UpTo != "" {
		q = q.Where("date <= ?", filter.UpTo)
	}
	err := q.Order("date, id").Find(&txs).Error
	return txs, err
}

func (r *GormTransactionRepository) Review(ctx context.Context, externalID string, status domain.TransactionStatus, reviewer string, at time.Time) (*domain.Transaction, error) {
	var reviewed domain.Transaction
	err := r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("external_id = ?", externalID).
			First(&reviewed).Error
		if err != nil {
			return notFound(err, "transaction %s", externalID)
		}
		if err := db.Where("transaction_id = ?", reviewed.ID).Find(&reviewed.Items).Error; err != nil {
			return err
		}

		if err := reviewed.Review(status, reviewer, at); err != nil {
			return err
		}
		err = db.Model(&reviewed).
			Select("status", "reviewed_by", "reviewed_at").
			Updates(&reviewed).Error
		if err != nil {
			return err
		}

		if status != domain.TransactionApproved {
			return nil
		}
		for bookID, qty := range reviewed.QuantityByBook() {
			var book domain.Book
			err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&book, bookID).Error
			if err != nil {
				return notFound(err, "book %d", bookID)
			}
			book.ApplySale(qty)
			err = db.Model(&book).
				Select("sold", "stock").
				Updates(&book).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &reviewed, nil
}

func (r *GormTransactionRepository) DeliveredByBook(ctx context.Context, programID uint, bookIDs []uint, upTo string) (map[uint]int, error) {
	delivered := make(map[uint]int, len(bookIDs))
	if len(bookIDs) == 0 {
		return delivered, nil
	}

	ids := make([]int64, len(bookIDs))
	for i, id := range bookIDs {
		ids[i] = int64(id)
	}

	var rows []struct {
		BookID    uint
		Delivered int
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT ti.book_id, COALESCE(SUM(ti.quantity), 0) AS delivered
		FROM transaction_items ti
		JOIN transactions t ON t.id = ti.transaction_id
		WHERE t.status = ? AND t.program_id = ? AND t.date <= ? AND ti.book_id = ANY(?)
		GROUP BY ti.book_id`,
		domain.TransactionApproved, programID, upTo, pq.Array(ids),
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		delivered[row.BookID] = row.Delivered
	}
	return delivered, nil
}
