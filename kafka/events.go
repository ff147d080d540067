package kafka

import "time"

// TransactionItem is one line of a transaction event
type TransactionItem struct {
	BookID   uint `json:"book_id"`
	Quantity int  `json:"quantity"`
}

// TransactionEvent is produced by the sales screen when a transaction is
// recorded or reviewed
type TransactionEvent struct {
	EventID    string            `json:"event_id"`
	EventType  string            `json:"event_type"`
	ExternalID string            `json:"external_id"`
	ProgramID  uint              `json:"program_id"`
	Date       string            `json:"date,omitempty"`
	Status     string            `json:"status,omitempty"`
	Items      []TransactionItem `json:"items,omitempty"`
	Actor      string            `json:"actor"`
	Timestamp  time.Time         `json:"timestamp"`
}

// CountEvent is published whenever an inventory count is saved or confirmed
type CountEvent struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	CountID     uint      `json:"count_id"`
	ProgramID   uint      `json:"program_id"`
	BookID      uint      `json:"book_id"`
	CountDate   string    `json:"count_date"`
	SystemCount int       `json:"system_count"`
	ManualCount int       `json:"manual_count"`
	Discrepancy int       `json:"discrepancy"`
	Status      string    `json:"status"`
	Stock       *int      `json:"stock,omitempty"`
	Operator    string    `json:"operator"`
	Timestamp   time.Time `json:"timestamp"`
}

// Event types
const (
	EventTypeTransactionRecorded = "transaction.recorded"
	EventTypeTransactionReviewed = "transaction.reviewed"
	EventTypeCountSaved          = "inventory.count.saved"
	EventTypeCountConfirmed      = "inventory.count.confirmed"
)

// Kafka topics
const (
	TopicTransactions = "colporter-transactions"
	TopicCounts       = "inventory-counts"
)
