package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/booking-engine/internal/booking"
)

type CreateBookingRequest struct {
	ProviderID  string `json:"provider_id"`
	ServiceID   string `json:"service_id"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"` // RFC3339
	CustomerRef string `json:"customer_ref"`
}

type CancelBookingRequest struct {
	ActorRef string `json:"actor_ref"`
	Reason   string `json:"reason,omitempty"`
}

type BookingResponse struct {
	ID           uuid.UUID  `json:"id"`
	ProviderID   uuid.UUID  `json:"provider_id"`
	ServiceID    uuid.UUID  `json:"service_id"`
	Date         string     `json:"date"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      time.Time  `json:"end_time"`
	Status       string     `json:"status"`
	CustomerRef  string     `json:"customer_ref"`
	CreatedAt    time.Time  `json:"created_at"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy  *string    `json:"cancelled_by,omitempty"`
	CancelReason *string    `json:"cancel_reason,omitempty"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:           b.ID,
		ProviderID:   b.ProviderID,
		ServiceID:    b.ServiceID,
		Date:         b.Day,
		StartTime:    b.StartTime,
		EndTime:      b.EndTime,
		Status:       string(b.Status),
		CustomerRef:  b.CustomerRef,
		CreatedAt:    b.CreatedAt,
		CancelledAt:  b.CancelledAt,
		CancelledBy:  b.CancelledBy,
		CancelReason: b.CancelReason,
	}
}

type SlotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type DayAvailabilityResponse struct {
	ProviderID      uuid.UUID      `json:"provider_id"`
	ServiceID       uuid.UUID      `json:"service_id"`
	Date            string         `json:"date"`
	DurationMinutes int            `json:"duration_minutes"`
	Slots           []SlotResponse `json:"slots"`
}

type BookingListResponse struct {
	Bookings []BookingResponse `json:"bookings"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
