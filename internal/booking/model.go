package booking

import (
	"time"

	"github.com/google/uuid"
)

// DayFormat is the wire and storage format for provider-local dates.
const DayFormat = "2006-01-02"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Active reports whether the status holds provider time. Availability is
// derived purely from active bookings; cancelled rows are invisible to it.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusCancelled
}

// ServiceOffering is catalog data the engine reads but never writes. The
// duration recorded here at creation time fixes a booking's end time for
// its whole life, even if the catalog changes later.
type ServiceOffering struct {
	ID              uuid.UUID
	Name            string
	DurationMinutes int
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (s ServiceOffering) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

type Provider struct {
	ID        uuid.UUID
	Name      string
	Timezone  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Location resolves the provider's IANA timezone. Empty or unknown names
// fall back to UTC so schedule math always has a location to work in.
func (p Provider) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WorkingHours is one weekday's window for a provider, minutes from local
// midnight. A missing row means the provider does not work that weekday.
type WorkingHours struct {
	ProviderID  uuid.UUID
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
	IsWorking   bool
}

// Window materializes the weekday window on a concrete day. The day value
// carries the provider's location. Minute offsets count wall-clock time from
// local midnight, so on a DST-shortened day a late end minute would land on
// the next date; the end is clamped to the following midnight to keep the
// whole window inside the day.
func (wh WorkingHours) Window(day time.Time) (start, end time.Time) {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	start = midnight.Add(time.Duration(wh.StartMinute) * time.Minute)
	end = midnight.Add(time.Duration(wh.EndMinute) * time.Minute)
	if next := midnight.AddDate(0, 0, 1); end.After(next) {
		end = next
	}
	return start, end
}

type Booking struct {
	ID           uuid.UUID
	ProviderID   uuid.UUID
	ServiceID    uuid.UUID
	Day          string // provider-local date, DayFormat
	StartTime    time.Time
	EndTime      time.Time
	Status       Status
	CustomerRef  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CancelledAt  *time.Time
	CancelledBy  *string
	CancelReason *string
}

// Slot is one bookable opening returned by availability queries.
type Slot struct {
	Start time.Time
	End   time.Time
}

// DayAvailability is the result of an availability query: every slot a
// service still fits into on one provider-local day.
type DayAvailability struct {
	ProviderID      uuid.UUID
	ServiceID       uuid.UUID
	Day             string
	DurationMinutes int
	Slots           []Slot
}

// EventLog is an outbox row. The engine appends on booking state changes;
// the relay publishes unpublished rows and stamps PublishedAt.
type EventLog struct {
	ID          int64
	EventType   string
	BookingID   *uuid.UUID
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time
}
