package domain

import (
	"fmt"
	"time"
)

// CountStatus is the reconciliation state of one (book, date) record
type CountStatus string

const (
	CountPending     CountStatus = "PENDING"
	CountVerified    CountStatus = "VERIFIED"
	CountDiscrepancy CountStatus = "DISCREPANCY"
)

// InventoryCount is the persisted reconciliation record for a book on a date
type InventoryCount struct {
	ID          uint        `json:"id" gorm:"primaryKey"`
	ProgramID   uint        `json:"program_id" gorm:"not null;uniqueIndex:idx_count_program_book_date"`
	BookID      uint        `json:"book_id" gorm:"not null;uniqueIndex:idx_count_program_book_date"`
	CountDate   string      `json:"count_date" gorm:"size:10;not null;uniqueIndex:idx_count_program_book_date"`
	SystemCount int         `json:"system_count" gorm:"not null"`
	ManualCount *int        `json:"manual_count"`
	Discrepancy int         `json:"discrepancy" gorm:"not null;default:0"`
	Status      CountStatus `json:"status" gorm:"size:12;not null"`
	Confirmed   bool        `json:"confirmed" gorm:"not null"`
	ConfirmedBy string      `json:"confirmed_by,omitempty"`
	ConfirmedAt *time.Time  `json:"confirmed_at,omitempty"`
	UpdatedBy   string      `json:"updated_by"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// TableName specifies the table name
func (InventoryCount) TableName() string {
	return "inventory_counts"
}

// RecordManual stores a physical count against the snapshotted system count
// and re-evaluates the status. A re-save clears an earlier confirmation.
func (c *InventoryCount) RecordManual(manual, system int, operator string) error {
	if manual < 0 {
		return fmt.Errorf("%w: manual count must be non-negative", ErrValidation)
	}
	if system < 0 {
		return fmt.Errorf("%w: system count must be non-negative", ErrValidation)
	}
	c.SystemCount = system
	c.ManualCount = &manual
	c.Confirmed = false
	c.ConfirmedBy = ""
	c.ConfirmedAt = nil
	c.UpdatedBy = operator
	c.EvaluateStatus()
	return nil
}

// Confirm accepts an outstanding discrepancy. The stored system count is
// kept so the historical discrepancy stays inspectable.
func (c *InventoryCount) Confirm(operator string, at time.Time) error {
	if c.Status != CountDiscrepancy || c.ManualCount == nil {
		return fmt.Errorf("%w: count for book %d on %s is %s, not %s",
			ErrConflict, c.BookID, c.CountDate, c.Status, CountDiscrepancy)
	}
	c.Confirmed = true
	c.ConfirmedBy = operator
	c.ConfirmedAt = &at
	c.UpdatedBy = operator
	c.EvaluateStatus()
	return nil
}

// EvaluateStatus recomputes discrepancy and status from the counts
func (c *InventoryCount) EvaluateStatus() {
	if c.ManualCount == nil {
		c.Discrepancy = 0
		c.Status = CountPending
		return
	}
	c.Discrepancy = *c.ManualCount - c.SystemCount
	switch {
	case c.Discrepancy == 0 || c.Confirmed:
		c.Status = CountVerified
	default:
		c.Status = CountDiscrepancy
	}
}

// StockAdjustment is the audit row written when a confirmed count
// overwrites a book's stock
type StockAdjustment struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	BookID         uint      `json:"book_id" gorm:"not null;index"`
	CountID        uint      `json:"count_id" gorm:"not null;index"`
	CountDate      string    `json:"count_date" gorm:"size:10;not null"`
	QuantityBefore int       `json:"quantity_before" gorm:"not null"`
	QuantityAfter  int       `json:"quantity_after" gorm:"not null"`
	Reason         string    `json:"reason"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName specifies the table name
func (StockAdjustment) TableName() string {
	return "stock_adjustments"
}
