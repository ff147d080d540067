package reconcile

import (
	"context"
	"errors"

	"github.com/tair/colporter/internal/inventory/domain"
)

var (
	ErrRowBusy     = errors.New("row has a request in flight")
	ErrNotEditable = errors.New("row cannot be changed in its current state")
	ErrNotLoaded   = errors.New("inventory not loaded")
)

// Message converts an error into a line suitable for an operator
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRowBusy):
		return "This book is already being saved, wait for it to finish"
	case errors.Is(err, ErrNotEditable):
		return "This count can no longer be changed"
	case errors.Is(err, ErrNotLoaded):
		return "Inventory could not be loaded, select the date again to retry"
	case errors.Is(err, domain.ErrForbidden):
		return "You are not allowed to reconcile inventory"
	case errors.Is(err, domain.ErrValidation):
		return "Invalid input: " + err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return "Not found: " + err.Error()
	case errors.Is(err, domain.ErrConflict):
		return "The count was changed elsewhere, reload and try again"
	case errors.Is(err, context.DeadlineExceeded):
		return "The server did not respond in time"
	default:
		return "Request failed: " + err.Error()
	}
}
