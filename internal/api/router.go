package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tanishqsrivastavaa/petique-app/internal/config"
	"github.com/tanishqsrivastavaa/petique-app/internal/scheduling"
)

type BookingService interface {
	CreateBooking(ctx context.Context, actor scheduling.Actor, in scheduling.CreateBookingInput) (*scheduling.Booking, error)
	UpdateStatus(ctx context.Context, actor scheduling.Actor, id uuid.UUID, to scheduling.BookingStatus) (*scheduling.Booking, error)
	GetBooking(ctx context.Context, actor scheduling.Actor, id uuid.UUID) (*scheduling.BookingDetail, error)
	ListOwnerBookings(ctx context.Context, actor scheduling.Actor) ([]scheduling.Booking, error)
	ListVetBookings(ctx context.Context, actor scheduling.Actor) ([]scheduling.Booking, error)
}

type ScheduleService interface {
	ListWorkingHours(ctx context.Context, vetID uuid.UUID) ([]scheduling.WorkingHour, error)
	AddWorkingHour(ctx context.Context, actor scheduling.Actor, in scheduling.WorkingHourInput) (*scheduling.WorkingHour, error)
	RemoveWorkingHour(ctx context.Context, actor scheduling.Actor, id uuid.UUID) error
	ListTimeOff(ctx context.Context, vetID uuid.UUID) ([]scheduling.TimeOff, error)
	AddTimeOff(ctx context.Context, actor scheduling.Actor, in scheduling.TimeOffInput) (*scheduling.TimeOff, error)
	RemoveTimeOff(ctx context.Context, actor scheduling.Actor, id uuid.UUID) error
	CheckSlot(ctx context.Context, vetID uuid.UUID, start, end time.Time) (scheduling.Availability, error)
	FreeSlots(ctx context.Context, vetID uuid.UUID, date time.Time, slotDuration time.Duration) ([]scheduling.Interval, error)
}

type RouterConfig struct {
	Bookings BookingService
	Schedule ScheduleService
	Verifier TokenVerifier

	Store   Pinger
	Storage string
	Redis   *redis.Client

	Logger  zerolog.Logger
	Env     string
	Version string

	RequestTimeout time.Duration
	RateLimit      config.RateLimitConfig
	DefaultSlot    time.Duration
	MetricsEnabled bool
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Store, cfg.Storage, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	limiter := newRateLimiter(cfg.RateLimit)

	r.Group(func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
		}
		r.Use(AuthMiddleware(cfg.Verifier))
		r.Use(limiter.Middleware)

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", createBookingHandler(cfg.Bookings))
			r.Get("/", listOwnerBookingsHandler(cfg.Bookings))
			r.Get("/vet", listVetBookingsHandler(cfg.Bookings))
			r.Get("/{id}", getBookingHandler(cfg.Bookings))
			r.Patch("/{id}/status", updateBookingStatusHandler(cfg.Bookings))
		})

		r.Route("/me", func(r chi.Router) {
			r.Post("/working-hours", addWorkingHourHandler(cfg.Schedule))
			r.Delete("/working-hours/{id}", removeWorkingHourHandler(cfg.Schedule))
			r.Post("/time-off", addTimeOffHandler(cfg.Schedule))
			r.Delete("/time-off/{id}", removeTimeOffHandler(cfg.Schedule))
		})

		r.Route("/vets/{vetID}", func(r chi.Router) {
			r.Get("/working-hours", listWorkingHoursHandler(cfg.Schedule))
			r.Get("/time-off", listTimeOffHandler(cfg.Schedule))
			r.Get("/slots", freeSlotsHandler(cfg.Schedule, cfg.DefaultSlot))
			r.Get("/availability", checkAvailabilityHandler(cfg.Schedule))
		})
	})

	return r
}
