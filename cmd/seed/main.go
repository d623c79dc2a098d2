package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotwise/booking-engine/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.ApplySchema(ctx, pool); err != nil {
		log.Fatalf("apply schema: %v", err)
	}
	log.Println("schema applied")

	gofakeit.Seed(time.Now().UnixNano())

	serviceIDs, durations, err := seedServices(ctx, pool)
	if err != nil {
		log.Fatalf("seed services: %v", err)
	}

	providers, err := seedProviders(ctx, pool, 200)
	if err != nil {
		log.Fatalf("seed providers: %v", err)
	}

	hours, err := seedWorkingHours(ctx, pool, providers)
	if err != nil {
		log.Fatalf("seed working hours: %v", err)
	}

	if err := seedBookings(ctx, pool, providers, hours, serviceIDs, durations, 1500); err != nil {
		log.Fatalf("seed bookings: %v", err)
	}

	log.Println("seed complete")
}

type seededProvider struct {
	id  uuid.UUID
	loc *time.Location
}

// weekday -> (startMinute, endMinute); absent means not working.
type weekWindows map[time.Weekday][2]int

func seedServices(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, map[uuid.UUID]int, error) {
	catalog := []struct {
		name    string
		minutes int
	}{
		{"Haircut", 30},
		{"Beard Trim", 15},
		{"Color & Highlights", 90},
		{"Blowout", 45},
		{"Manicure", 30},
		{"Pedicure", 45},
		{"Deep Conditioning", 60},
		{"Kids Cut", 20},
		{"Hot Towel Shave", 30},
		{"Scalp Massage", 25},
	}

	log.Printf("seeding %d services", len(catalog))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, len(catalog))
	durations := make(map[uuid.UUID]int, len(catalog))

	for _, svc := range catalog {
		id := uuid.New()

		_, err := tx.Exec(ctx, `
			INSERT INTO services (id, name, duration_minutes, active, created_at, updated_at)
			VALUES ($1, $2, $3, true, now(), now())
		`, id, svc.name, svc.minutes)
		if err != nil {
			return nil, nil, err
		}

		ids = append(ids, id)
		durations[id] = svc.minutes
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}

	log.Println("services seeded")
	return ids, durations, nil
}

func seedProviders(ctx context.Context, pool *pgxpool.Pool, count int) ([]seededProvider, error) {
	log.Printf("seeding %d providers", count)

	timezones := []string{
		"UTC",
		"America/New_York",
		"America/Chicago",
		"America/Los_Angeles",
		"Europe/London",
		"Europe/Berlin",
		"Asia/Dubai",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	providers := make([]seededProvider, 0, count)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		tz := timezones[gofakeit.Number(0, len(timezones)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO providers (id, name, timezone, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, tz)
		if err != nil {
			return nil, err
		}

		loc, err := time.LoadLocation(tz)
		if err != nil {
			loc = time.UTC
		}
		providers = append(providers, seededProvider{id: id, loc: loc})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("providers seeded")
	return providers, nil
}

func seedWorkingHours(ctx context.Context, pool *pgxpool.Pool, providers []seededProvider) (map[uuid.UUID]weekWindows, error) {
	log.Printf("seeding working hours for %d providers", len(providers))

	hours := make(map[uuid.UUID]weekWindows, len(providers))

	const batchSize = 50

	for offset := 0; offset < len(providers); offset += batchSize {
		end := offset + batchSize
		if end > len(providers) {
			end = len(providers)
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}

		for _, p := range providers[offset:end] {
			windows := weekWindows{}

			for wd := time.Monday; wd <= time.Friday; wd++ {
				startMin := gofakeit.Number(8, 10) * 60
				endMin := gofakeit.Number(17, 20) * 60
				windows[wd] = [2]int{startMin, endMin}

				if _, err := tx.Exec(ctx, `
					INSERT INTO working_hours (provider_id, weekday, start_minute, end_minute, is_working)
					VALUES ($1, $2, $3, $4, true)
				`, p.id, int(wd), startMin, endMin); err != nil {
					_ = tx.Rollback(ctx)
					return nil, err
				}
			}

			// Some providers take Saturday shifts; Sundays show up only as
			// explicit non-working rows for a fraction of them.
			if gofakeit.Number(0, 9) < 6 {
				windows[time.Saturday] = [2]int{10 * 60, 16 * 60}
				if _, err := tx.Exec(ctx, `
					INSERT INTO working_hours (provider_id, weekday, start_minute, end_minute, is_working)
					VALUES ($1, $2, $3, $4, true)
				`, p.id, int(time.Saturday), 10*60, 16*60); err != nil {
					_ = tx.Rollback(ctx)
					return nil, err
				}
			}
			if gofakeit.Number(0, 9) < 3 {
				if _, err := tx.Exec(ctx, `
					INSERT INTO working_hours (provider_id, weekday, start_minute, end_minute, is_working)
					VALUES ($1, $2, 0, 0, false)
				`, p.id, int(time.Sunday)); err != nil {
					_ = tx.Rollback(ctx)
					return nil, err
				}
			}

			hours[p.id] = windows
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
	}

	log.Println("working hours seeded")
	return hours, nil
}

// seedBookings spreads bookings across the next two weeks. Intervals are
// placed on a 15 minute grid inside each provider's working window and
// checked against everything placed so far, so the batch never trips the
// overlap constraint.
func seedBookings(ctx context.Context, pool *pgxpool.Pool, providers []seededProvider, hours map[uuid.UUID]weekWindows, serviceIDs []uuid.UUID, durations map[uuid.UUID]int, count int) error {
	log.Printf("seeding %d bookings", count)

	type interval struct{ start, end time.Time }
	occupied := make(map[string][]interval)

	overlaps := func(key string, start, end time.Time) bool {
		for _, iv := range occupied[key] {
			if start.Before(iv.end) && iv.start.Before(end) {
				return true
			}
		}
		return false
	}

	const batchSize = 250
	inserted := 0

	for inserted < count {
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		batch := 0
		for batch < batchSize && inserted < count {
			p := providers[gofakeit.Number(0, len(providers)-1)]
			serviceID := serviceIDs[gofakeit.Number(0, len(serviceIDs)-1)]
			duration := time.Duration(durations[serviceID]) * time.Minute

			dayTime := time.Now().In(p.loc).AddDate(0, 0, gofakeit.Number(1, 14))
			midnight := time.Date(dayTime.Year(), dayTime.Month(), dayTime.Day(), 0, 0, 0, 0, p.loc)

			window, ok := hours[p.id][midnight.Weekday()]
			if !ok {
				continue
			}

			latest := window[1] - int(duration.Minutes())
			if latest < window[0] {
				continue
			}
			startMin := window[0] + gofakeit.Number(0, (latest-window[0])/15)*15

			start := midnight.Add(time.Duration(startMin) * time.Minute)
			end := start.Add(duration)
			day := midnight.Format("2006-01-02")
			key := p.id.String() + "/" + day

			status := "confirmed"
			switch n := gofakeit.Number(0, 19); {
			case n < 3:
				status = "pending"
			case n < 4:
				status = "cancelled"
			}

			if status != "cancelled" && overlaps(key, start, end) {
				continue
			}

			var cancelledAt *time.Time
			var cancelledBy *string
			if status == "cancelled" {
				at := time.Now().Add(-time.Duration(gofakeit.Number(1, 72)) * time.Hour)
				by := "customer"
				cancelledAt = &at
				cancelledBy = &by
			}

			if _, err := tx.Exec(ctx, `
				INSERT INTO bookings (id, provider_id, service_id, day, start_time, end_time, status, customer_ref, created_at, updated_at, cancelled_at, cancelled_by)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now(), $9, $10)
			`, uuid.New(), p.id, serviceID, day, start, end, status, gofakeit.Email(), cancelledAt, cancelledBy); err != nil {
				_ = tx.Rollback(ctx)
				return err
			}

			if status != "cancelled" {
				occupied[key] = append(occupied[key], interval{start: start, end: end})
			}

			batch++
			inserted++
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("bookings seeded: %d/%d", inserted, count)
	}

	log.Println("bookings seeded")
	return nil
}
