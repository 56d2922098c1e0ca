package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinova/appointment-booking/internal/appointment"
	"github.com/clinova/appointment-booking/internal/config"
	"github.com/clinova/appointment-booking/internal/db"
	"github.com/clinova/appointment-booking/internal/directory"
	"github.com/clinova/appointment-booking/internal/logging"
	"github.com/clinova/appointment-booking/internal/notify"
	redisclient "github.com/clinova/appointment-booking/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("reminder-worker", "dev")
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New("reminder-worker", cfg.Env)
	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Dur("window", cfg.ReminderWindow).
		Msg("reminder-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolConfig{MaxConns: int32(cfg.PgMaxConns)})
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(redisclient.ClientConfig{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		PoolSize: cfg.RedisPoolSize,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	var dispatcher notify.Dispatcher
	if len(cfg.NotifyBrokers) > 0 {
		publisher, err := notify.NewKafkaPublisher(cfg.NotifyBrokers, cfg.NotifyTopic, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("kafka connection error")
		}
		defer publisher.Close()
		dispatcher = publisher
	} else {
		dispatcher = notify.NewLogDispatcher(logger)
	}
	dispatcher = notify.WithBreaker(dispatcher, "reminders", logger)

	w := &worker{
		store:      appointment.NewPgStore(pgPool),
		patients:   directory.NewPgDirectory(pgPool),
		doctors:    directory.NewPgDirectory(pgPool),
		redis:      rdb,
		dispatcher: dispatcher,
		window:     cfg.ReminderWindow,
		log:        logger,
	}

	// Run once at startup
	w.runOnce(rootCtx)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			w.runOnce(rootCtx)
		}
	}
}

type worker struct {
	store      appointment.Store
	patients   directory.PatientDirectory
	doctors    directory.DoctorDirectory
	redis      *redis.Client
	dispatcher notify.Dispatcher
	window     time.Duration
	log        zerolog.Logger
}

func (w *worker) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	sent, err := w.remindUpcoming(runCtx)
	if err != nil {
		w.log.Error().Err(err).Msg("reminder run error")
		return
	}
	w.log.Info().Int("sent", sent).Dur("took", time.Since(start)).Msg("reminder run complete")
}

func (w *worker) remindUpcoming(ctx context.Context) (int, error) {
	now := time.Now()
	upcoming, err := w.store.FindUpcomingConfirmed(ctx, now, now.Add(w.window))
	if err != nil {
		return 0, fmt.Errorf("find upcoming appointments: %w", err)
	}

	sent := 0
	for i := range upcoming {
		appt := &upcoming[i]

		// One reminder per appointment; the dedupe key outlives the window.
		key := "reminder:" + appt.ID
		ok, err := w.redis.SetNX(ctx, key, "1", 2*w.window).Result()
		if err != nil {
			w.log.Warn().Str("appointment_id", appt.ID).Err(err).Msg("reminder dedupe check failed")
			continue
		}
		if !ok {
			continue
		}

		recipient, err := directory.Resolve(ctx, w.patients, w.doctors, directory.RolePatient, appt.PatientID)
		if err != nil {
			w.log.Warn().Str("appointment_id", appt.ID).Err(err).Msg("reminder recipient lookup failed")
			continue
		}
		recipientID, recipientRole := recipient.Identity()

		err = w.dispatcher.Send(ctx, notify.Notification{
			RecipientID:   recipientID,
			RecipientRole: recipientRole,
			AppointmentID: appt.ID,
			Kind:          notify.KindReminder,
			Subject:       "Upcoming appointment",
			Body:          fmt.Sprintf("Reminder: your appointment starts at %s.", appt.StartsAt.Format("Mon, 02 Jan 2006 15:04")),
		})
		if err != nil {
			w.log.Warn().Str("appointment_id", appt.ID).Err(err).Msg("reminder dropped")
			continue
		}
		sent++
	}

	return sent, nil
}
