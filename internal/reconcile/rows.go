package reconcile

import "github.com/tair/colporter/internal/inventory/domain"

// Key identifies one unit of reconciliation work
type Key struct {
	BookID uint
	Date   string
}

// Row is either a Persisted count record or a Derived placeholder. Only
// Persisted rows carry an identity and can be confirmed.
type Row interface {
	Key() Key
	System() int
	Manual() *int
	Status() domain.CountStatus
	Discrepancy() int
	row()
}

// Persisted wraps a count record stored by the backend
type Persisted struct {
	Count domain.InventoryCount
}

func (p Persisted) Key() Key { return Key{BookID: p.Count.BookID, Date: p.Count.CountDate} }
func (p Persisted) System() int { return p.Count.SystemCount }
func (p Persisted) Manual() *int { return p.Count.ManualCount }
func (p Persisted) Status() domain.CountStatus { return p.Count.Status }
func (p Persisted) Discrepancy() int { return p.Count.Discrepancy }
func (Persisted) row() {}

// Derived is the expected stock of a book that has no record for the date yet
type Derived struct {
	BookID      uint
	Date        string
	SystemCount int
}

func (d Derived) Key() Key { return Key{BookID: d.BookID, Date: d.Date} }
func (d Derived) System() int { return d.SystemCount }
func (Derived) Manual() *int { return nil }
func (Derived) Status() domain.CountStatus { return domain.CountPending }
func (Derived) Discrepancy() int { return 0 }
func (Derived) row() {}

// Line is one table row: the book, its count row and the controls the
// current operator may use on it
type Line struct {
	Book        domain.Book
	Row         Row
	Busy        bool
	Confirming  bool
	Editable    bool
	Confirmable bool
}

// Summary holds the program-level totals of a date
type Summary struct {
	TotalBooks     int `json:"total_books"`
	Verified       int `json:"verified"`
	Discrepancies  int `json:"discrepancies"`
	Pending        int `json:"pending"`
	TotalLostFound int `json:"total_lost_found"`
}

// Summarize aggregates rows. TotalLostFound is the sum of absolute
// discrepancies.
func Summarize(rows []Row) Summary {
	s := Summary{TotalBooks: len(rows)}
	for _, r := range rows {
		switch r.Status() {
		case domain.CountVerified:
			s.Verified++
		case domain.CountDiscrepancy:
			s.Discrepancies++
		default:
			s.Pending++
		}
		d := r.Discrepancy()
		if d < 0 {
			d = -d
		}
		s.TotalLostFound += d
	}
	return s
}
