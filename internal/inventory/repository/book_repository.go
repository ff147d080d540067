package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tair/colporter/internal/inventory/domain"
	"github.com/tair/colporter/pkg/logger"
)

// GormBookRepository stores books in Postgres through gorm
type GormBookRepository struct {
	db *gorm.DB
}

// NewGormBookRepository creates a book repository on db
func NewGormBookRepository(db *gorm.DB) *GormBookRepository {
	return &GormBookRepository{db: db}
}

func (r *GormBookRepository) FindByID(ctx context.Context, id uint) (*domain.Book, error) {
	var book domain.Book
	err := r.db.WithContext(ctx).First(&book, id).Error
	if err != nil {
		return nil, notFound(err, "book %d", id)
	}
	return &book, nil
}

func (r *GormBookRepository) FindByProgram(ctx context.Context, programID uint, activeOnly bool) ([]domain.Book, error) {
	var books []domain.Book
	q := r.db.WithContext(ctx).Where("program_id = ?", programID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Order("id").Find(&books).Error
	return books, err
}

func (r *GormBookRepository) BackfillSizes(ctx context.Context) (int, error) {
	var books []domain.Book
	err := r.db.WithContext(ctx).
		Where("size IS NULL OR size = ''").
		Find(&books).Error
	if err != nil {
		return 0, err
	}

	for _, book := range books {
		size := domain.LegacySizeFromPrice(book.Price)
		err := r.db.WithContext(ctx).
			Model(&domain.Book{}).
			Where("id = ?", book.ID).
			Update("size", size).Error
		if err != nil {
			return 0, fmt.Errorf("backfill size of book %d: %w", book.ID, err)
		}
		logger.Logger.Debug().
			Uint("book_id", book.ID).
			Str("size", string(size)).
			Msg("Backfilled book size from price")
	}
	return len(books), nil
}

// notFound maps gorm's missing-row error to the domain sentinel
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf(format+": %w", append(args, domain.ErrNotFound)...)
	}
	return err
}
