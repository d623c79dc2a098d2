package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const bookingColumns = `id, provider_id, service_id, day, start_time, end_time, status, customer_ref, created_at, updated_at, cancelled_at, cancelled_by, cancel_reason`

// Helpers

func scanService(row pgx.Row) (*ServiceOffering, error) {
	var s ServiceOffering

	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.DurationMinutes,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	var tz *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&tz,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}

	if tz != nil {
		p.Timezone = *tz
	}
	return &p, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var day time.Time
	var cancelledAt *time.Time
	var cancelledBy, cancelReason *string

	err := row.Scan(
		&b.ID,
		&b.ProviderID,
		&b.ServiceID,
		&day,
		&b.StartTime,
		&b.EndTime,
		&b.Status,
		&b.CustomerRef,
		&b.CreatedAt,
		&b.UpdatedAt,
		&cancelledAt,
		&cancelledBy,
		&cancelReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	b.Day = day.Format(DayFormat)
	b.CancelledAt = cancelledAt
	b.CancelledBy = cancelledBy
	b.CancelReason = cancelReason
	return &b, nil
}

// isExclusionViolation matches the gist exclusion constraint on bookings
// rejecting an overlapping active row.
func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

// Interface methods

func (s *PgStore) GetServiceByID(ctx context.Context, id uuid.UUID) (*ServiceOffering, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, duration_minutes, active, created_at, updated_at
		FROM services
		WHERE id = $1
	`, id)
	return scanService(row)
}

func (s *PgStore) GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, timezone, created_at, updated_at
		FROM providers
		WHERE id = $1
	`, id)
	return scanProvider(row)
}

func (s *PgStore) GetWorkingHours(ctx context.Context, providerID uuid.UUID, weekday time.Weekday) (*WorkingHours, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT provider_id, weekday, start_minute, end_minute, is_working
		FROM working_hours
		WHERE provider_id = $1 AND weekday = $2
	`, providerID, int(weekday))

	var wh WorkingHours
	var wd int

	err := row.Scan(
		&wh.ProviderID,
		&wd,
		&wh.StartMinute,
		&wh.EndMinute,
		&wh.IsWorking,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkingHoursNotFound
		}
		return nil, err
	}

	wh.Weekday = time.Weekday(wd)
	return &wh, nil
}

func (s *PgStore) ListActiveBookings(ctx context.Context, providerID uuid.UUID, day string) ([]Booking, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE provider_id = $1
		  AND day = $2
		  AND status IN ('pending', 'confirmed')
		ORDER BY start_time
	`, providerID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookings(rows)
}

func (s *PgStore) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (s *PgStore) ListBookings(ctx context.Context, f BookingFilter) ([]Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings`

	var (
		where []string
		args  []any
	)
	if f.ProviderID != nil {
		args = append(args, *f.ProviderID)
		where = append(where, fmt.Sprintf("provider_id = $%d", len(args)))
	}
	if f.Day != nil {
		args = append(args, *f.Day)
		where = append(where, fmt.Sprintf("day = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY start_time"

	// The caller owns limit clamping; zero means no LIMIT clause.
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookings(rows)
}

func (s *PgStore) InsertBooking(ctx context.Context, b Booking) (*Booking, error) {
	id := uuid.New()

	row := s.pool.QueryRow(ctx, `
		INSERT INTO bookings (id, provider_id, service_id, day, start_time, end_time, status, customer_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+bookingColumns+`
	`, id, b.ProviderID, b.ServiceID, b.Day, b.StartTime, b.EndTime, b.Status, b.CustomerRef)

	created, err := scanBooking(row)
	if err != nil {
		if isExclusionViolation(err) {
			return nil, ErrBookingOverlap
		}
		return nil, err
	}
	return created, nil
}

func (s *PgStore) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Booking, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+bookingColumns+`
	`, id, to, from)

	return scanBooking(row)
}

func (s *PgStore) MarkCancelled(ctx context.Context, id uuid.UUID, by string, reason *string) (*Booking, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
		    cancelled_at = now(),
		    cancelled_by = $2,
		    cancel_reason = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('pending', 'confirmed')
		RETURNING `+bookingColumns+`
	`, id, by, reason)

	return scanBooking(row)
}

func (s *PgStore) ExpirePending(ctx context.Context, id uuid.UUID, by string, reason *string) (*Booking, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
		    cancelled_at = now(),
		    cancelled_by = $2,
		    cancel_reason = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'pending'
		RETURNING `+bookingColumns+`
	`, id, by, reason)

	return scanBooking(row)
}

func (s *PgStore) FindStalePending(ctx context.Context, cutoff time.Time) ([]Booking, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE status = 'pending'
		  AND created_at < $1
		ORDER BY created_at
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookings(rows)
}

func (s *PgStore) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, booking_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.BookingID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func collectBookings(rows pgx.Rows) ([]Booking, error) {
	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
