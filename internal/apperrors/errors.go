package apperrors

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrSenderNotAuthorized = errors.New("sender is not verified for any owner")
	ErrDuplicateMessage    = errors.New("message already processed")
	ErrContentRejected     = errors.New("message content rejected")

	// ErrInvalidToken deliberately covers not-found, expired and already-used
	// tokens so callers cannot enumerate which case they hit.
	ErrInvalidToken = errors.New("invalid or expired token")

	ErrSenderAlreadyRegistered = errors.New("sender already registered for this owner")
	ErrSenderNotFound          = errors.New("sender does not exist")
	ErrConfirmationInvalid     = errors.New("invalid or expired confirmation")
)

// QuotaExceededError is returned when the daily outbound mail quota is
// exhausted. ResetTime is the next UTC midnight, when the quota window rolls.
type QuotaExceededError struct {
	ResetTime time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily mail quota exceeded, resets at %s", e.ResetTime.Format(time.RFC3339))
}

// AsQuotaExceeded unwraps err into a QuotaExceededError if it is one.
func AsQuotaExceeded(err error) (*QuotaExceededError, bool) {
	var qe *QuotaExceededError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}
