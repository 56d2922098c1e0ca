package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinova/appointment-booking/internal/appointment"
)

type RouterConfig struct {
	Service *appointment.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Metrics http.Handler
	Logger  zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	if cfg.PgPool != nil && cfg.Redis != nil {
		health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
		r.Get("/health/live", health.Liveness)
		r.Get("/health/ready", health.Readiness)
	}

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	svc := cfg.Service

	r.Get("/doctors/{id}/slots", getSlotsHandler(svc))

	r.Post("/appointments", bookAppointmentHandler(svc))
	r.Get("/appointments/{id}", getAppointmentHandler(svc))

	r.Post("/appointments/approve", bulkApproveHandler(svc))

	r.Post("/appointments/{id}/approve", actionHandler(func(req *http.Request, id string, actor appointment.Actor, body ActionRequest) (*appointment.Appointment, error) {
		return svc.Approve(req.Context(), id, actor, body.Notes)
	}))
	r.Post("/appointments/{id}/decline", actionHandler(func(req *http.Request, id string, actor appointment.Actor, body ActionRequest) (*appointment.Appointment, error) {
		return svc.Decline(req.Context(), id, actor, body.Reason)
	}))
	r.Post("/appointments/{id}/confirm", actionHandler(func(req *http.Request, id string, actor appointment.Actor, body ActionRequest) (*appointment.Appointment, error) {
		return svc.Confirm(req.Context(), id, actor)
	}))
	r.Post("/appointments/{id}/start", actionHandler(func(req *http.Request, id string, actor appointment.Actor, body ActionRequest) (*appointment.Appointment, error) {
		return svc.Start(req.Context(), id, actor)
	}))
	r.Post("/appointments/{id}/complete", actionHandler(func(req *http.Request, id string, actor appointment.Actor, body ActionRequest) (*appointment.Appointment, error) {
		return svc.Complete(req.Context(), id, actor, body.Notes)
	}))
	r.Post("/appointments/{id}/no-show", actionHandler(func(req *http.Request, id string, actor appointment.Actor, body ActionRequest) (*appointment.Appointment, error) {
		return svc.MarkNoShow(req.Context(), id, actor, body.Reason)
	}))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(svc))
	r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(svc))

	return r
}
