package domain

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used for count and transaction dates
const DateLayout = "2006-01-02"

// ParseCountDate validates a YYYY-MM-DD date and returns it normalised
func ParseCountDate(s string) (string, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", ErrValidation, s)
	}
	return t.Format(DateLayout), nil
}

// Today returns the current local calendar date
func Today() string {
	return time.Now().Format(DateLayout)
}
