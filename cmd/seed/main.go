package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinova/appointment-booking/internal/db"
	"github.com/clinova/appointment-booking/internal/logging"
	"github.com/clinova/appointment-booking/internal/schedule"
)

const ddl = `
CREATE TABLE IF NOT EXISTS patients (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS doctors (
	id                     TEXT PRIMARY KEY,
	name                   TEXT NOT NULL,
	specialty              TEXT NOT NULL DEFAULT '',
	consultation_fee_cents BIGINT NOT NULL DEFAULT 0,
	availability           JSONB NOT NULL DEFAULT '{}',
	email                  TEXT NOT NULL DEFAULT '',
	phone                  TEXT NOT NULL DEFAULT '',
	created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS appointments (
	id               TEXT PRIMARY KEY,
	patient_id       TEXT NOT NULL REFERENCES patients(id),
	doctor_id        TEXT NOT NULL REFERENCES doctors(id),
	starts_at        TIMESTAMPTZ NOT NULL,
	duration_minutes INT NOT NULL,
	type             TEXT NOT NULL,
	reason           TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	started_at       TIMESTAMPTZ,
	approval         JSONB NOT NULL DEFAULT '{}',
	rescheduling     JSONB NOT NULL DEFAULT '{}',
	cancellation     JSONB,
	history          JSONB NOT NULL DEFAULT '[]',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

-- Rejects the losing writer of a booking race at commit time.
CREATE UNIQUE INDEX IF NOT EXISTS appointments_live_slot_uq
	ON appointments (doctor_id, starts_at)
	WHERE status IN ('pending_approval', 'approved', 'confirmed');

CREATE INDEX IF NOT EXISTS appointments_doctor_time_idx
	ON appointments (doctor_id, starts_at);
`

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

func main() {
	logger := logging.New("seed", os.Getenv("APP_ENV"))
	logger.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, db.PoolConfig{MaxConns: 4})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if _, err := pool.Exec(context.Background(), ddl); err != nil {
		logger.Fatal().Err(err).Msg("apply schema")
	}
	logger.Info().Msg("schema applied")

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedDoctors(context.Background(), pool, 50); err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}

	logger.Info().Msg("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) error {
	for i := 1; i <= count; i++ {
		availability, err := json.Marshal(randomWeekly())
		if err != nil {
			return err
		}

		_, err = pool.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, consultation_fee_cents, availability, email, phone)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`,
			fmt.Sprintf("DOC%03d", i),
			"Dr. "+gofakeit.Name(),
			specialties[gofakeit.Number(0, len(specialties)-1)],
			int64(gofakeit.Number(5000, 30000)),
			availability,
			gofakeit.Email(),
			gofakeit.Phone(),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	for i := 1; i <= count; i++ {
		_, err := pool.Exec(ctx, `
			INSERT INTO patients (id, name, email, phone)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING
		`,
			fmt.Sprintf("PAT%05d", i),
			gofakeit.Name(),
			gofakeit.Email(),
			gofakeit.Phone(),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func randomWeekly() schedule.Weekly {
	starts := []string{"08:00", "09:00", "10:00"}
	ends := []string{"16:00", "17:00", "18:00"}

	w := schedule.Weekly{}
	for _, day := range []string{"monday", "tuesday", "wednesday", "thursday", "friday"} {
		w[day] = schedule.DayWindow{
			Start:     schedule.MustTimeOfDay(starts[gofakeit.Number(0, len(starts)-1)]),
			End:       schedule.MustTimeOfDay(ends[gofakeit.Number(0, len(ends)-1)]),
			Available: gofakeit.Number(0, 9) != 0, // most weekdays on
		}
	}
	if gofakeit.Bool() {
		w["saturday"] = schedule.DayWindow{
			Start:     schedule.MustTimeOfDay("09:00"),
			End:       schedule.MustTimeOfDay("13:00"),
			Available: true,
		}
	}
	return w
}
