package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrServiceNotFound      = errors.New("service not found")
	ErrProviderNotFound     = errors.New("provider not found")
	ErrWorkingHoursNotFound = errors.New("working hours not defined for weekday")
	ErrBookingNotFound      = errors.New("booking not found")

	// ErrBookingOverlap is the database refusing an insert that would
	// violate the no-overlap constraint. It only fires if a write slips
	// past the schedule lock; the service surfaces it as a slot conflict.
	ErrBookingOverlap = errors.New("booking overlaps an active booking")
)

// BookingFilter narrows ListBookings. Nil fields are ignored.
type BookingFilter struct {
	ProviderID *uuid.UUID
	Day        *string
	Status     *Status
	Limit      int
	Offset     int
}

// Store contains all DB interactions needed by the service.
type Store interface {
	GetServiceByID(ctx context.Context, id uuid.UUID) (*ServiceOffering, error)
	GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error)
	GetWorkingHours(ctx context.Context, providerID uuid.UUID, weekday time.Weekday) (*WorkingHours, error)

	// Availability reads and the in-lock conflict re-check.
	ListActiveBookings(ctx context.Context, providerID uuid.UUID, day string) ([]Booking, error)

	GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	ListBookings(ctx context.Context, f BookingFilter) ([]Booking, error)

	// Creation and transitions.
	InsertBooking(ctx context.Context, b Booking) (*Booking, error)
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Booking, error)
	MarkCancelled(ctx context.Context, id uuid.UUID, by string, reason *string) (*Booking, error)

	// Hold expiry worker. ExpirePending only matches rows still pending, so
	// a hold confirmed after the sweep's read survives it.
	FindStalePending(ctx context.Context, cutoff time.Time) ([]Booking, error)
	ExpirePending(ctx context.Context, id uuid.UUID, by string, reason *string) (*Booking, error)

	// Event outbox.
	InsertEvent(ctx context.Context, ev EventLog) error
}
