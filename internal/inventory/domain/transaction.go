package domain

import (
	"fmt"
	"time"
)

// TransactionStatus is the review state of a sales transaction
type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "PENDING"
	TransactionApproved TransactionStatus = "APPROVED"
	TransactionRejected TransactionStatus = "REJECTED"
)

// Valid reports whether s is a known status
func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionPending, TransactionApproved, TransactionRejected:
		return true
	}
	return false
}

// Transaction is a sales event recorded by a colporter
type Transaction struct {
	ID         uint              `json:"id" gorm:"primaryKey"`
	ExternalID string            `json:"external_id" gorm:"size:64;uniqueIndex"`
	ProgramID  uint              `json:"program_id" gorm:"not null;index"`
	Date       string            `json:"date" gorm:"size:10;not null;index"`
	Status     TransactionStatus `json:"status" gorm:"size:10;not null;index"`
	Items      []TransactionItem `json:"items" gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE"`
	CreatedBy  string            `json:"created_by"`
	ReviewedBy string            `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time        `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// TableName specifies the table name
func (Transaction) TableName() string {
	return "transactions"
}

// TransactionItem is one (book, quantity) line of a transaction
type TransactionItem struct {
	ID            uint `json:"-" gorm:"primaryKey"`
	TransactionID uint `json:"-" gorm:"not null;index"`
	BookID        uint `json:"book_id" gorm:"not null;index"`
	Quantity      int  `json:"quantity" gorm:"not null"`
}

// TableName specifies the table name
func (TransactionItem) TableName() string {
	return "transaction_items"
}

// Review moves a pending transaction to its final status. A transaction is
// reviewed exactly once.
func (t *Transaction) Review(status TransactionStatus, reviewer string, at time.Time) error {
	if status != TransactionApproved && status != TransactionRejected {
		return fmt.Errorf("%w: review status must be APPROVED or REJECTED, got %q", ErrValidation, status)
	}
	if t.Status != TransactionPending {
		return fmt.Errorf("%w: transaction %s already %s", ErrConflict, t.ExternalID, t.Status)
	}
	t.Status = status
	t.ReviewedBy = reviewer
	t.ReviewedAt = &at
	return nil
}

// QuantityByBook sums line item quantities per book
func (t *Transaction) QuantityByBook() map[uint]int {
	out := make(map[uint]int, len(t.Items))
	for _, item := range t.Items {
		out[item.BookID] += item.Quantity
	}
	return out
}
