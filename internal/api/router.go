package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

// Scheduler is the part of appointment.Service the HTTP layer uses.
type Scheduler interface {
	Refresh(ctx context.Context) (appointment.Report, error)
	Appointments() []appointment.Appointment
	Get(id string) (appointment.Appointment, error)
	Query(opts appointment.QueryOptions) []appointment.Appointment
	Stats() appointment.Stats
	AvailableSlots(date time.Time, doctorID string, hours *appointment.WorkingHours) []appointment.TimeSlot
	Schedule(ctx context.Context, doctorID string, date time.Time) ([]appointment.Appointment, error)
	Book(ctx context.Context, req appointment.BookingRequest) (appointment.Appointment, error)
	Transition(ctx context.Context, id string, to appointment.Status) (appointment.Appointment, error)
	Accept(ctx context.Context, id string) (appointment.Appointment, error)
	Cancel(ctx context.Context, id string) (appointment.Appointment, error)
	Reschedule(ctx context.Context, id string, newAt time.Time) (appointment.Appointment, appointment.Appointment, error)
	Delete(ctx context.Context, id string) error
	Location() *time.Location
	Hours() appointment.WorkingHours
}

var _ Scheduler = (*appointment.Service)(nil)

type RouterConfig struct {
	Service      Scheduler
	Logger       *zap.Logger
	Dependencies []Dependency
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handlers{svc: cfg.Service, log: logger}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Dependencies, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/appointments", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Post("/refresh", h.refresh)
		r.Get("/stats", h.stats)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Delete("/", h.delete)
			r.Post("/status", h.transition)
			r.Post("/accept", h.accept)
			r.Post("/cancel", h.cancel)
			r.Post("/reschedule", h.reschedule)
		})
	})

	r.Route("/doctors/{doctorId}", func(r chi.Router) {
		r.Get("/slots", h.slots)
		r.Get("/schedule", h.schedule)
	})

	return r
}
