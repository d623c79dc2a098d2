package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/slotwise/booking-engine/internal/booking"
	"github.com/slotwise/booking-engine/internal/config"
	redisclient "github.com/slotwise/booking-engine/internal/redis"
)

// stubStore is a minimal in-memory booking.Store for driving handlers end
// to end. Conditional transitions and sentinel errors mirror the Postgres
// implementation; concurrency hardening is covered by the service tests.
type stubStore struct {
	mu        sync.Mutex
	services  map[uuid.UUID]booking.ServiceOffering
	providers map[uuid.UUID]booking.Provider
	hours     map[hourKey]booking.WorkingHours
	bookings  map[uuid.UUID]*booking.Booking
	events    int
}

type hourKey struct {
	provider uuid.UUID
	weekday  time.Weekday
}

func newStubStore() *stubStore {
	return &stubStore{
		services:  make(map[uuid.UUID]booking.ServiceOffering),
		providers: make(map[uuid.UUID]booking.Provider),
		hours:     make(map[hourKey]booking.WorkingHours),
		bookings:  make(map[uuid.UUID]*booking.Booking),
	}
}

func (s *stubStore) addService(name string, minutes int, active bool) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.services[id] = booking.ServiceOffering{ID: id, Name: name, DurationMinutes: minutes, Active: active}
	return id
}

func (s *stubStore) addProvider(name, timezone string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.providers[id] = booking.Provider{ID: id, Name: name, Timezone: timezone}
	return id
}

func (s *stubStore) addHours(providerID uuid.UUID, weekday time.Weekday, startMinute, endMinute int, working bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hours[hourKey{providerID, weekday}] = booking.WorkingHours{
		ProviderID:  providerID,
		Weekday:     weekday,
		StartMinute: startMinute,
		EndMinute:   endMinute,
		IsWorking:   working,
	}
}

func (s *stubStore) eventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events
}

func (s *stubStore) GetServiceByID(ctx context.Context, id uuid.UUID) (*booking.ServiceOffering, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[id]
	if !ok {
		return nil, booking.ErrServiceNotFound
	}
	return &svc, nil
}

func (s *stubStore) GetProviderByID(ctx context.Context, id uuid.UUID) (*booking.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[id]
	if !ok {
		return nil, booking.ErrProviderNotFound
	}
	return &p, nil
}

func (s *stubStore) GetWorkingHours(ctx context.Context, providerID uuid.UUID, weekday time.Weekday) (*booking.WorkingHours, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wh, ok := s.hours[hourKey{providerID, weekday}]
	if !ok {
		return nil, booking.ErrWorkingHoursNotFound
	}
	return &wh, nil
}

func (s *stubStore) ListActiveBookings(ctx context.Context, providerID uuid.UUID, day string) ([]booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []booking.Booking
	for _, b := range s.bookings {
		if b.ProviderID == providerID && b.Day == day && b.Status.Active() {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *stubStore) GetBookingByID(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	c := *b
	return &c, nil
}

func (s *stubStore) ListBookings(ctx context.Context, f booking.BookingFilter) ([]booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []booking.Booking
	for _, b := range s.bookings {
		if f.ProviderID != nil && b.ProviderID != *f.ProviderID {
			continue
		}
		if f.Day != nil && b.Day != *f.Day {
			continue
		}
		if f.Status != nil && b.Status != *f.Status {
			continue
		}
		out = append(out, *b)
	}
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *stubStore) InsertBooking(ctx context.Context, b booking.Booking) (*booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = uuid.New()
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	s.bookings[b.ID] = &b
	c := b
	return &c, nil
}

func (s *stubStore) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to booking.Status) (*booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || b.Status != from {
		return nil, booking.ErrBookingNotFound
	}
	b.Status = to
	c := *b
	return &c, nil
}

func (s *stubStore) MarkCancelled(ctx context.Context, id uuid.UUID, by string, reason *string) (*booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || !b.Status.Active() {
		return nil, booking.ErrBookingNotFound
	}
	now := time.Now()
	b.Status = booking.StatusCancelled
	b.CancelledAt = &now
	b.CancelledBy = &by
	b.CancelReason = reason
	c := *b
	return &c, nil
}

func (s *stubStore) ExpirePending(ctx context.Context, id uuid.UUID, by string, reason *string) (*booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || b.Status != booking.StatusPending {
		return nil, booking.ErrBookingNotFound
	}
	now := time.Now()
	b.Status = booking.StatusCancelled
	b.CancelledAt = &now
	b.CancelledBy = &by
	b.CancelReason = reason
	c := *b
	return &c, nil
}

func (s *stubStore) FindStalePending(ctx context.Context, cutoff time.Time) ([]booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []booking.Booking
	for _, b := range s.bookings {
		if b.Status == booking.StatusPending && b.CreatedAt.Before(cutoff) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *stubStore) InsertEvent(ctx context.Context, ev booking.EventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events++
	return nil
}

// passLocker runs the critical section without any locking. Handler tests
// are sequential, so mutual exclusion is not in play here.
type passLocker struct{}

func (passLocker) WithScheduleLock(ctx context.Context, providerID uuid.UUID, day string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// stuckLocker refuses every acquisition.
type stuckLocker struct{}

func (stuckLocker) WithScheduleLock(ctx context.Context, providerID uuid.UUID, day string, fn func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

// apiFixture serves the full router over the stub store: one provider open
// 09:00-20:00 UTC every weekday, a 30 minute haircut, and a provider with
// no hours rows at all. The service clock is the real one, so requests
// target tomorrow to stay inside the booking window.
type apiFixture struct {
	store    *stubStore
	router   http.Handler
	provider uuid.UUID
	idle     uuid.UUID
	service  uuid.UUID
	inactive uuid.UUID
	day      string
	dayStart time.Time
}

func newAPIFixture(t *testing.T, locker redisclient.ScheduleLocker, opts ...func(*config.Config)) *apiFixture {
	t.Helper()

	cfg := config.Config{
		SlotGranularity:    15 * time.Minute,
		BookingHorizonDays: 90,
		InitialStatus:      "pending",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	store := newStubStore()
	tomorrow := time.Now().UTC().AddDate(0, 0, 1)

	f := &apiFixture{
		store:    store,
		provider: store.addProvider("Rosa Vega", "UTC"),
		idle:     store.addProvider("Noor Haddad", "UTC"),
		service:  store.addService("Haircut", 30, true),
		inactive: store.addService("Retired Perm", 45, false),
		dayStart: time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, time.UTC),
	}
	f.day = f.dayStart.Format(booking.DayFormat)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		store.addHours(f.provider, wd, 9*60, 20*60, true)
	}

	svc := booking.NewService(store, locker, cfg, zap.NewNop())
	f.router = NewRouter(RouterConfig{
		Service: svc,
		Logger:  zap.NewNop(),
		Env:     "test",
		Version: "test",
	})
	return f
}

func (f *apiFixture) at(hour, min int) time.Time {
	return f.dayStart.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func (f *apiFixture) createBody(start time.Time) CreateBookingRequest {
	return CreateBookingRequest{
		ProviderID:  f.provider.String(),
		ServiceID:   f.service.String(),
		Date:        f.day,
		StartTime:   start.Format(time.RFC3339),
		CustomerRef: "lena@example.com",
	}
}

func (f *apiFixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, rdr)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) book(t *testing.T, start time.Time) BookingResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/bookings", f.createBody(start))
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeBooking(t, rec)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func decodeBooking(t *testing.T, rec *httptest.ResponseRecorder) BookingResponse {
	t.Helper()
	var b BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	return b
}

func decodeAvailability(t *testing.T, rec *httptest.ResponseRecorder) DayAvailabilityResponse {
	t.Helper()
	var a DayAvailabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	return a
}

func TestCreateBookingEndpoint(t *testing.T) {
	f := newAPIFixture(t, passLocker{})

	rec := f.do(t, http.MethodPost, "/bookings", f.createBody(f.at(10, 0)))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	b := decodeBooking(t, rec)
	assert.NotEqual(t, uuid.Nil, b.ID)
	assert.Equal(t, f.provider, b.ProviderID)
	assert.Equal(t, f.service, b.ServiceID)
	assert.Equal(t, f.day, b.Date)
	assert.Equal(t, "pending", b.Status)
	assert.True(t, b.StartTime.Equal(f.at(10, 0)))
	assert.True(t, b.EndTime.Equal(f.at(10, 30)))
	assert.Equal(t, "lena@example.com", b.CustomerRef)
	assert.Nil(t, b.CancelledAt)

	assert.Equal(t, 1, f.store.eventCount())
}

func TestCreateBookingEndpoint_ErrorMapping(t *testing.T) {
	f := newAPIFixture(t, passLocker{})

	farOut := time.Now().UTC().AddDate(0, 0, 200)

	tests := []struct {
		name       string
		mutate     func(*CreateBookingRequest)
		wantStatus int
		wantCode   string
	}{
		{
			name:       "provider id not a uuid",
			mutate:     func(r *CreateBookingRequest) { r.ProviderID = "salon-1" },
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_provider_id",
		},
		{
			name:       "service id not a uuid",
			mutate:     func(r *CreateBookingRequest) { r.ServiceID = "haircut" },
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_service_id",
		},
		{
			name:       "start time not RFC3339",
			mutate:     func(r *CreateBookingRequest) { r.StartTime = "ten o'clock" },
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_start_time",
		},
		{
			name:       "missing customer ref",
			mutate:     func(r *CreateBookingRequest) { r.CustomerRef = "" },
			wantStatus: http.StatusBadRequest,
			wantCode:   "missing_customer_ref",
		},
		{
			name:       "unknown provider",
			mutate:     func(r *CreateBookingRequest) { r.ProviderID = uuid.NewString() },
			wantStatus: http.StatusNotFound,
			wantCode:   "provider_not_found",
		},
		{
			name:       "unknown service",
			mutate:     func(r *CreateBookingRequest) { r.ServiceID = uuid.NewString() },
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "invalid_service",
		},
		{
			name:       "inactive service",
			mutate:     func(r *CreateBookingRequest) { r.ServiceID = f.inactive.String() },
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "invalid_service",
		},
		{
			name:       "malformed date",
			mutate:     func(r *CreateBookingRequest) { r.Date = "next tuesday" },
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_date",
		},
		{
			name: "start on another day",
			mutate: func(r *CreateBookingRequest) {
				r.StartTime = f.at(10, 0).AddDate(0, 0, 1).Format(time.RFC3339)
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "date_mismatch",
		},
		{
			name: "day in the past",
			mutate: func(r *CreateBookingRequest) {
				r.Date = "2020-01-01"
				r.StartTime = "2020-01-01T10:00:00Z"
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "outside_booking_window",
		},
		{
			name: "day beyond the horizon",
			mutate: func(r *CreateBookingRequest) {
				r.Date = farOut.Format(booking.DayFormat)
				r.StartTime = time.Date(farOut.Year(), farOut.Month(), farOut.Day(), 10, 0, 0, 0, time.UTC).Format(time.RFC3339)
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "outside_booking_window",
		},
		{
			name:       "provider without hours",
			mutate:     func(r *CreateBookingRequest) { r.ProviderID = f.idle.String() },
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "provider_not_working",
		},
		{
			name:       "before opening",
			mutate:     func(r *CreateBookingRequest) { r.StartTime = f.at(8, 0).Format(time.RFC3339) },
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "out_of_working_hours",
		},
		{
			name:       "runs past closing",
			mutate:     func(r *CreateBookingRequest) { r.StartTime = f.at(19, 45).Format(time.RFC3339) },
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "out_of_working_hours",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := f.createBody(f.at(10, 0))
			tt.mutate(&body)

			rec := f.do(t, http.MethodPost, "/bookings", body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Error)
		})
	}
}

func TestCreateBookingEndpoint_MalformedBody(t *testing.T) {
	f := newAPIFixture(t, passLocker{})

	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request_body", decodeError(t, rec).Error)
}

func TestCreateBookingEndpoint_SlotConflict(t *testing.T) {
	f := newAPIFixture(t, passLocker{})

	f.book(t, f.at(10, 0))

	rec := f.do(t, http.MethodPost, "/bookings", f.createBody(f.at(10, 15)))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_conflict", decodeError(t, rec).Error)
}

func TestCreateBookingEndpoint_ScheduleBusy(t *testing.T) {
	f := newAPIFixture(t, stuckLocker{})

	rec := f.do(t, http.MethodPost, "/bookings", f.createBody(f.at(10, 0)))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "schedule_busy", decodeError(t, rec).Error)
}

func TestListSlotsEndpoint(t *testing.T) {
	f := newAPIFixture(t, passLocker{})

	target := "/providers/" + f.provider.String() + "/slots?service_id=" + f.service.String() + "&date=" + f.day

	rec := f.do(t, http.MethodGet, target, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	avail := decodeAvailability(t, rec)
	assert.Equal(t, f.provider, avail.ProviderID)
	assert.Equal(t, f.service, avail.ServiceID)
	assert.Equal(t, f.day, avail.Date)
	assert.Equal(t, 30, avail.DurationMinutes)
	require.Len(t, avail.Slots, 43)
	assert.True(t, avail.Slots[0].Start.Equal(f.at(9, 0)))
	assert.True(t, avail.Slots[42].End.Equal(f.at(20, 0)))

	// Booking 10:00 removes 09:45, 10:00 and 10:15; cancelling restores them.
	b := f.book(t, f.at(10, 0))

	rec = f.do(t, http.MethodGet, target, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeAvailability(t, rec).Slots, 40)

	rec = f.do(t, http.MethodPost, "/bookings/"+b.ID.String()+"/cancel", CancelBookingRequest{ActorRef: "customer"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, target, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeAvailability(t, rec).Slots, 43)
}

func TestListSlotsEndpoint_Validation(t *testing.T) {
	f := newAPIFixture(t, passLocker{})

	provider := f.provider.String()
	service := f.service.String()

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "provider id not a uuid",
			target:     "/providers/front-desk/slots?service_id=" + service + "&date=" + f.day,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_provider_id",
		},
		{
			name:       "service id not a uuid",
			target:     "/providers/" + provider + "/slots?service_id=trim&date=" + f.day,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_service_id",
		},
		{
			name:       "missing date",
			target:     "/providers/" + provider + "/slots?service_id=" + service,
			wantStatus: http.StatusBadRequest,
			wantCode:   "missing_date",
		},
		{
			name:       "malformed date",
			target:     "/providers/" + provider + "/slots?service_id=" + service + "&date=someday",
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_date",
		},
		{
			name:       "unknown provider",
			target:     "/providers/" + uuid.NewString() + "/slots?service_id=" + service + "&date=" + f.day,
			wantStatus: http.StatusNotFound,
			wantCode:   "provider_not_found",
		},
		{
			name:       "unknown service",
			target:     "/providers/" + provider + "/slots?service_id=" + uuid.NewString() + "&date=" + f.day,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "invalid_service",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Error)
		})
	}
}

func TestListSlotsEndpoint_NoHoursIsEmpty(t *testing.T) {
	f := newAPIFixture(t, passLocker{})

	target := "/providers/" + f.idle.String() + "/slots?service_id=" + f.service.String() + "&date=" + f.day
	rec := f.do(t, http.MethodGet, target, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Empty(t, decodeAvailability(t, rec).Slots)
}

func TestConfirmBookingEndpoint(t *testing.T) {
	f := newAPIFixture(t, passLocker{})
	b := f.book(t, f.at(10, 0))

	rec := f.do(t, http.MethodPost, "/bookings/"+b.ID.String()+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "confirmed", decodeBooking(t, rec).Status)

	// A second confirm finds no pending row.
	rec = f.do(t, http.MethodPost, "/bookings/"+b.ID.String()+"/confirm", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_status_transition", decodeError(t, rec).Error)

	rec = f.do(t, http.MethodPost, "/bookings/"+uuid.NewString()+"/confirm", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "booking_not_found", decodeError(t, rec).Error)

	rec = f.do(t, http.MethodPost, "/bookings/front-desk/confirm", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_booking_id", decodeError(t, rec).Error)
}

func TestCancelBookingEndpoint(t *testing.T) {
	f := newAPIFixture(t, passLocker{})
	b := f.book(t, f.at(10, 0))

	rec := f.do(t, http.MethodPost, "/bookings/"+b.ID.String()+"/cancel", CancelBookingRequest{
		ActorRef: "provider:rosa",
		Reason:   "client asked to reschedule",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeBooking(t, rec)
	assert.Equal(t, "cancelled", got.Status)
	require.NotNil(t, got.CancelledAt)
	require.NotNil(t, got.CancelledBy)
	assert.Equal(t, "provider:rosa", *got.CancelledBy)
	require.NotNil(t, got.CancelReason)
	assert.Equal(t, "client asked to reschedule", *got.CancelReason)

	rec = f.do(t, http.MethodPost, "/bookings/"+b.ID.String()+"/cancel", CancelBookingRequest{ActorRef: "customer"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_cancelled", decodeError(t, rec).Error)

	rec = f.do(t, http.MethodPost, "/bookings/"+uuid.NewString()+"/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "booking_not_found", decodeError(t, rec).Error)
}

func TestCancelBookingEndpoint_EmptyBodyDefaultsActor(t *testing.T) {
	f := newAPIFixture(t, passLocker{})
	b := f.book(t, f.at(10, 0))

	rec := f.do(t, http.MethodPost, "/bookings/"+b.ID.String()+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeBooking(t, rec)
	require.NotNil(t, got.CancelledBy)
	assert.Equal(t, "customer", *got.CancelledBy)
	assert.Nil(t, got.CancelReason)
}

func TestCancelBookingEndpoint_PolicyVeto(t *testing.T) {
	f := newAPIFixture(t, passLocker{}, func(cfg *config.Config) {
		cfg.CancelMinLead = 30 * 24 * time.Hour
	})
	b := f.book(t, f.at(10, 0))

	rec := f.do(t, http.MethodPost, "/bookings/"+b.ID.String()+"/cancel", CancelBookingRequest{ActorRef: "customer"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not_cancellable", decodeError(t, rec).Error)
}

func TestGetBookingEndpoint(t *testing.T) {
	f := newAPIFixture(t, passLocker{})
	b := f.book(t, f.at(10, 0))

	rec := f.do(t, http.MethodGet, "/bookings/"+b.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBooking(t, rec)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, "pending", got.Status)

	rec = f.do(t, http.MethodGet, "/bookings/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "booking_not_found", decodeError(t, rec).Error)
}

func TestListBookingsEndpoint(t *testing.T) {
	f := newAPIFixture(t, passLocker{})
	first := f.book(t, f.at(10, 0))
	second := f.book(t, f.at(11, 0))

	rec := f.do(t, http.MethodPost, "/bookings/"+second.ID.String()+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/bookings?provider_id="+f.provider.String()+"&date="+f.day, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list BookingListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Bookings, 2)
	ids := []uuid.UUID{list.Bookings[0].ID, list.Bookings[1].ID}
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)

	rec = f.do(t, http.MethodGet, "/bookings?status=cancelled", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list = BookingListResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Bookings, 1)
	assert.Equal(t, second.ID, list.Bookings[0].ID)

	rec = f.do(t, http.MethodGet, "/bookings?status=waitlisted", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_status", decodeError(t, rec).Error)

	rec = f.do(t, http.MethodGet, "/bookings?provider_id=rosa", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_provider_id", decodeError(t, rec).Error)

	rec = f.do(t, http.MethodGet, "/bookings?date=someday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_date", decodeError(t, rec).Error)
}

func TestHealthLiveEndpoint(t *testing.T) {
	f := newAPIFixture(t, passLocker{})

	rec := f.do(t, http.MethodGet, "/health/live", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LivenessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Env)
	assert.Equal(t, "test", resp.Version)
}

func TestRequestIDEcho(t *testing.T) {
	f := newAPIFixture(t, passLocker{})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
