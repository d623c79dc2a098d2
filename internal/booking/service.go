package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/slotwise/booking-engine/internal/availability"
	"github.com/slotwise/booking-engine/internal/config"
	redisclient "github.com/slotwise/booking-engine/internal/redis"
)

const (
	EventBookingCreated   = "booking.created.v1"
	EventBookingConfirmed = "booking.confirmed.v1"
	EventBookingCancelled = "booking.cancelled.v1"
)

// expiryActor marks cancellations performed by the hold expiry sweeper.
const expiryActor = "system:hold-expiry"

var (
	ErrInvalidService       = errors.New("service is unknown or not bookable")
	ErrInvalidDay           = errors.New("day must be formatted YYYY-MM-DD")
	ErrDayMismatch          = errors.New("start time does not fall on the given day")
	ErrOutsideBookingWindow = errors.New("day is outside the booking window")
	ErrProviderNotWorking   = errors.New("provider does not work on this day")
	ErrOutOfWorkingHours    = errors.New("requested time is outside working hours")
	ErrSlotConflict         = errors.New("slot conflicts with an existing booking")
	ErrScheduleBusy         = errors.New("schedule is busy, please retry")
	ErrAlreadyCancelled     = errors.New("booking is already cancelled")
	ErrInvalidTransition    = errors.New("invalid status transition")
)

type Service struct {
	store        Store
	locker       redisclient.ScheduleLocker
	cfg          config.Config
	logger       *zap.Logger
	cancelPolicy CancelPolicy
	now          func() time.Time
}

func NewService(store Store, locker redisclient.ScheduleLocker, cfg config.Config, logger *zap.Logger) *Service {
	policy := CancelPolicy(AllowAllCancellations)
	if cfg.CancelMinLead > 0 {
		policy = MinLeadPolicy(cfg.CancelMinLead)
	}

	return &Service{
		store:        store,
		locker:       locker,
		cfg:          cfg,
		logger:       logger,
		cancelPolicy: policy,
		now:          time.Now,
	}
}

type CreateBookingRequest struct {
	ProviderID  uuid.UUID
	ServiceID   uuid.UUID
	Day         string
	StartTime   time.Time
	CustomerRef string
}

// GetAvailableSlots computes every opening the service still fits into on
// one provider-local day. Availability is derived live from working hours
// minus active bookings; there is no slot inventory to go stale.
func (s *Service) GetAvailableSlots(ctx context.Context, providerID, serviceID uuid.UUID, day string) (*DayAvailability, error) {
	svc, err := s.resolveService(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	provider, err := s.store.GetProviderByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}

	loc := provider.Location()
	now := s.now().In(loc)

	dayStart, err := s.resolveDay(day, loc, now)
	if err != nil {
		return nil, err
	}
	canonical := dayStart.Format(DayFormat)

	out := &DayAvailability{
		ProviderID:      providerID,
		ServiceID:       serviceID,
		Day:             canonical,
		DurationMinutes: svc.DurationMinutes,
	}

	hours, err := s.store.GetWorkingHours(ctx, providerID, dayStart.Weekday())
	if err != nil {
		if errors.Is(err, ErrWorkingHoursNotFound) {
			return out, nil
		}
		return nil, fmt.Errorf("load working hours: %w", err)
	}
	if !hours.IsWorking {
		return out, nil
	}

	active, err := s.store.ListActiveBookings(ctx, providerID, canonical)
	if err != nil {
		return nil, fmt.Errorf("list active bookings: %w", err)
	}

	windowStart, windowEnd := hours.Window(dayStart)
	starts := availability.Slots(windowStart, windowEnd, svc.Duration(), s.cfg.SlotGranularity, busyIntervals(active), now)
	for _, t := range starts {
		out.Slots = append(out.Slots, Slot{Start: t, End: t.Add(svc.Duration())})
	}

	return out, nil
}

// CreateBooking reserves an interval on a provider's schedule. All
// validation happens before the schedule lock; inside the critical section
// only the conflict re-check and the insert run, so concurrent requests for
// the same provider-day serialize and exactly one of two rivals for the
// same interval wins.
func (s *Service) CreateBooking(ctx context.Context, req CreateBookingRequest) (*Booking, error) {
	svc, err := s.resolveService(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}

	provider, err := s.store.GetProviderByID(ctx, req.ProviderID)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}

	loc := provider.Location()
	now := s.now().In(loc)

	dayStart, err := s.resolveDay(req.Day, loc, now)
	if err != nil {
		return nil, err
	}
	day := dayStart.Format(DayFormat)

	start := req.StartTime.In(loc)
	if start.Format(DayFormat) != day {
		return nil, ErrDayMismatch
	}
	if start.Before(now) {
		return nil, ErrOutsideBookingWindow
	}
	end := start.Add(svc.Duration())

	hours, err := s.store.GetWorkingHours(ctx, req.ProviderID, dayStart.Weekday())
	if err != nil {
		if errors.Is(err, ErrWorkingHoursNotFound) {
			return nil, ErrProviderNotWorking
		}
		return nil, fmt.Errorf("load working hours: %w", err)
	}
	if !hours.IsWorking {
		return nil, ErrProviderNotWorking
	}

	windowStart, windowEnd := hours.Window(dayStart)
	if start.Before(windowStart) || end.After(windowEnd) {
		return nil, ErrOutOfWorkingHours
	}

	var created *Booking

	err = s.locker.WithScheduleLock(ctx, req.ProviderID, day, func(lockCtx context.Context) error {
		// Re-check inside the critical section: another request may have
		// taken the interval between validation and lock acquisition.
		active, err := s.store.ListActiveBookings(lockCtx, req.ProviderID, day)
		if err != nil {
			return fmt.Errorf("list active bookings: %w", err)
		}
		if availability.AnyOverlap(start, end, busyIntervals(active)) {
			return ErrSlotConflict
		}

		b, err := s.store.InsertBooking(lockCtx, Booking{
			ProviderID:  req.ProviderID,
			ServiceID:   req.ServiceID,
			Day:         day,
			StartTime:   start,
			EndTime:     end,
			Status:      s.initialStatus(),
			CustomerRef: req.CustomerRef,
		})
		if err != nil {
			if errors.Is(err, ErrBookingOverlap) {
				return ErrSlotConflict
			}
			return fmt.Errorf("insert booking: %w", err)
		}

		created = b
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	s.logEvent(ctx, created.ID, EventBookingCreated, map[string]any{
		"provider_id":  created.ProviderID.String(),
		"service_id":   created.ServiceID.String(),
		"day":          created.Day,
		"start_time":   created.StartTime,
		"end_time":     created.EndTime,
		"status":       string(created.Status),
		"customer_ref": created.CustomerRef,
	})

	return created, nil
}

// ConfirmBooking moves a pending booking to confirmed.
func (s *Service) ConfirmBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.store.GetBookingByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load booking: %w", err)
	}

	if b.Status != StatusPending {
		return nil, ErrInvalidTransition
	}

	updated, err := s.store.UpdateBookingStatus(ctx, id, StatusPending, StatusConfirmed)
	if err != nil {
		// The conditional update matches pending rows only, so losing here
		// means a concurrent transition got there first.
		if errors.Is(err, ErrBookingNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("confirm booking: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventBookingConfirmed, map[string]any{
		"provider_id": updated.ProviderID.String(),
		"day":         updated.Day,
		"start_time":  updated.StartTime,
	})

	return updated, nil
}

// CancelBooking is the only terminal transition. The freed interval shows
// up in availability on the very next read; nothing else to release.
func (s *Service) CancelBooking(ctx context.Context, id uuid.UUID, actorRef, reason string) (*Booking, error) {
	b, err := s.store.GetBookingByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load booking: %w", err)
	}

	if b.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	if err := s.cancelPolicy(s.now(), b); err != nil {
		return nil, err
	}

	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}

	cancelled, err := s.store.MarkCancelled(ctx, id, actorRef, reasonPtr)
	if err != nil {
		// The conditional update matches active rows only, so losing here
		// means another caller cancelled first.
		if errors.Is(err, ErrBookingNotFound) {
			return nil, ErrAlreadyCancelled
		}
		return nil, fmt.Errorf("cancel booking: %w", err)
	}

	s.logEvent(ctx, cancelled.ID, EventBookingCancelled, map[string]any{
		"provider_id":  cancelled.ProviderID.String(),
		"day":          cancelled.Day,
		"start_time":   cancelled.StartTime,
		"end_time":     cancelled.EndTime,
		"cancelled_at": cancelled.CancelledAt,
		"cancelled_by": actorRef,
		"reason":       reason,
	})

	return cancelled, nil
}

// ExpireStaleHolds cancels pending bookings older than the configured hold
// TTL so abandoned holds stop blocking the schedule. Intended to be called
// by the worker periodically.
func (s *Service) ExpireStaleHolds(ctx context.Context) (int, error) {
	if s.cfg.PendingHoldTTL <= 0 {
		return 0, nil
	}

	cutoff := s.now().Add(-s.cfg.PendingHoldTTL)
	stale, err := s.store.FindStalePending(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find stale pending bookings: %w", err)
	}

	reason := "pending hold expired"
	expired := 0

	for _, b := range stale {
		cancelled, err := s.store.ExpirePending(ctx, b.ID, expiryActor, &reason)
		if err != nil {
			// Confirmed or cancelled since the sweep query: skip it.
			if !errors.Is(err, ErrBookingNotFound) {
				s.logger.Warn("failed to expire pending booking",
					zap.String("booking_id", b.ID.String()),
					zap.Error(err))
			}
			continue
		}

		expired++
		s.logEvent(ctx, cancelled.ID, EventBookingCancelled, map[string]any{
			"provider_id":  cancelled.ProviderID.String(),
			"day":          cancelled.Day,
			"start_time":   cancelled.StartTime,
			"end_time":     cancelled.EndTime,
			"cancelled_at": cancelled.CancelledAt,
			"cancelled_by": expiryActor,
			"reason":       reason,
		})
	}

	return expired, nil
}

// GetBooking retrieves a booking by ID.
func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.store.GetBookingByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// ListBookings retrieves bookings matching the filter.
func (s *Service) ListBookings(ctx context.Context, f BookingFilter) ([]Booking, error) {
	if f.Limit <= 0 {
		f.Limit = 20 // default
	}
	if f.Limit > 100 {
		f.Limit = 100 // max
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	bookings, err := s.store.ListBookings(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

func (s *Service) resolveService(ctx context.Context, id uuid.UUID) (*ServiceOffering, error) {
	svc, err := s.store.GetServiceByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return nil, ErrInvalidService
		}
		return nil, fmt.Errorf("load service: %w", err)
	}
	if !svc.Active || svc.DurationMinutes <= 0 {
		return nil, ErrInvalidService
	}
	return svc, nil
}

// resolveDay parses a provider-local day and enforces the booking window:
// nothing in the past, nothing beyond the horizon.
func (s *Service) resolveDay(day string, loc *time.Location, now time.Time) (time.Time, error) {
	dayStart, err := time.ParseInLocation(DayFormat, day, loc)
	if err != nil {
		return time.Time{}, ErrInvalidDay
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	if dayStart.Before(today) {
		return time.Time{}, ErrOutsideBookingWindow
	}
	if horizon := s.cfg.BookingHorizonDays; horizon > 0 && dayStart.After(today.AddDate(0, 0, horizon)) {
		return time.Time{}, ErrOutsideBookingWindow
	}

	return dayStart, nil
}

func (s *Service) initialStatus() Status {
	if Status(s.cfg.InitialStatus) == StatusConfirmed {
		return StatusConfirmed
	}
	return StatusPending
}

func (s *Service) logEvent(ctx context.Context, bookingID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal event payload",
			zap.String("event_type", eventType),
			zap.Error(err))
		data = nil
	}

	id := bookingID

	ev := EventLog{
		EventType: eventType,
		BookingID: &id,
		Payload:   data,
		CreatedAt: s.now(),
	}

	if err := s.store.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn("failed to insert event log",
			zap.String("event_type", eventType),
			zap.String("booking_id", bookingID.String()),
			zap.Error(err))
	}
}

func busyIntervals(bookings []Booking) []availability.Interval {
	if len(bookings) == 0 {
		return nil
	}
	busy := make([]availability.Interval, 0, len(bookings))
	for _, b := range bookings {
		busy = append(busy, availability.Interval{Start: b.StartTime, End: b.EndTime})
	}
	return busy
}
