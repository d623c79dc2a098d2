package booking

import (
	"errors"
	"fmt"
	"time"
)

var ErrNotCancellable = errors.New("booking can no longer be cancelled")

// CancelPolicy decides whether an active booking may still be cancelled.
// Returning an error vetoes the cancellation.
type CancelPolicy func(now time.Time, b *Booking) error

// AllowAllCancellations is the default policy: any active booking may be
// cancelled at any time.
func AllowAllCancellations(time.Time, *Booking) error {
	return nil
}

// MinLeadPolicy vetoes cancellations closer than lead to the booking start,
// including bookings that already started.
func MinLeadPolicy(lead time.Duration) CancelPolicy {
	return func(now time.Time, b *Booking) error {
		if now.Add(lead).After(b.StartTime) {
			return fmt.Errorf("%w: less than %s before start", ErrNotCancellable, lead)
		}
		return nil
	}
}
