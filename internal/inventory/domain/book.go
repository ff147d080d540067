package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookSize is the explicit size classification of a book
type BookSize string

const (
	SizeLarge BookSize = "LARGE"
	SizeSmall BookSize = "SMALL"
)

// Valid reports whether s is a known size
func (s BookSize) Valid() bool {
	return s == SizeLarge || s == SizeSmall
}

// Book represents a sellable item of a program
type Book struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	ProgramID    uint            `json:"program_id" gorm:"not null;index"`
	Title        string          `json:"title" gorm:"not null"`
	Size         BookSize        `json:"size" gorm:"size:10"`
	Price        decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null;default:0"`
	InitialStock int             `json:"initial_stock" gorm:"not null;default:0"`
	Sold         int             `json:"sold" gorm:"not null;default:0"`
	Stock        int             `json:"stock" gorm:"not null;default:0"`
	IsActive     bool            `json:"is_active" gorm:"not null"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TableName specifies the table name
func (Book) TableName() string {
	return "books"
}

// ApplySale records units leaving inventory through an approved transaction
func (b *Book) ApplySale(quantity int) {
	b.Sold += quantity
	b.Stock -= quantity
	if b.Stock < 0 {
		b.Stock = 0
	}
}

// CommitCount makes a confirmed manual count the new stock baseline.
// delivered is the approved quantity up to the count date; the initial
// stock is rebased so that later derivations start from the manual count.
func (b *Book) CommitCount(manual, delivered int) {
	b.Stock = manual
	b.InitialStock = manual + delivered
}

// legacyLargePrice is the price from which old records without a size were
// shelved as large books.
var legacyLargePrice = decimal.NewFromInt(20)

// LegacySizeFromPrice infers a size for records created before the size
// field existed. Only the size backfill migration may call this.
func LegacySizeFromPrice(price decimal.Decimal) BookSize {
	if price.GreaterThanOrEqual(legacyLargePrice) {
		return SizeLarge
	}
	return SizeSmall
}
