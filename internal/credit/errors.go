package credit

import (
	"errors"
	"fmt"
)

// ErrCodeNotFound indicates the authorization code does not exist.
var ErrCodeNotFound = errors.New("credit: authorization code not found")

// ErrConcurrencyConflict indicates a deduction kept losing races with
// concurrent balance updates and gave up after retrying.
var ErrConcurrencyConflict = errors.New("credit: concurrent balance update conflict")

// InsufficientCreditsError reports that the combined balances cannot cover
// a required deduction. Balances are captured before any mutation.
type InsufficientCreditsError struct {
	Required        int64
	TeamBalance     int64
	PersonalBalance int64
}

// Error implements the error interface.
func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("credit: insufficient credits: required %d, team balance %d, personal balance %d",
		e.Required, e.TeamBalance, e.PersonalBalance)
}
