package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinova/appointment-booking/internal/api"
	"github.com/clinova/appointment-booking/internal/appointment"
	"github.com/clinova/appointment-booking/internal/config"
	"github.com/clinova/appointment-booking/internal/db"
	"github.com/clinova/appointment-booking/internal/directory"
	"github.com/clinova/appointment-booking/internal/logging"
	"github.com/clinova/appointment-booking/internal/metrics"
	"github.com/clinova/appointment-booking/internal/notify"
	redisclient "github.com/clinova/appointment-booking/internal/redis"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("api-server", "dev")
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New("api-server", cfg.Env)
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

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
	dispatcher = notify.WithBreaker(dispatcher, "notifications", logger)

	m := metrics.New()
	pgDirectory := directory.NewPgDirectory(pgPool)

	svc := appointment.NewService(appointment.Deps{
		Store:      appointment.NewPgStore(pgPool),
		Patients:   pgDirectory,
		Doctors:    pgDirectory,
		Locker:     redisclient.NewRedisDoctorLocker(rdb, cfg.LockTTL),
		Dispatcher: dispatcher,
		Metrics:    m,
		Logger:     logger,
		Config: appointment.Config{
			SlotMinutes:    cfg.SlotMinutes,
			MaxReschedules: cfg.MaxReschedules,
			RefundWindow:   cfg.RefundWindow,
		},
	})

	router := api.NewRouter(api.RouterConfig{
		Service: svc,
		PgPool:  pgPool,
		Redis:   rdb,
		Metrics: m.Handler(),
		Logger:  logger,
		Env:     cfg.Env,
		Version: version,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
