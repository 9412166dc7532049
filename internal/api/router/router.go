package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/ayurwell-scheduler/internal/directory"
	"github.com/wolfman30/ayurwell-scheduler/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/ayurwell-scheduler/internal/http/middleware"
	"github.com/wolfman30/ayurwell-scheduler/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger       *logging.Logger
	Appointments *handlers.AppointmentsHandler
	Doctors      *handlers.DoctorsHandler
	Patients     *handlers.PatientsHandler
	AdminDoctors *handlers.AdminDoctorsHandler

	// Users resolves token subjects to directory records.
	Users           httpmiddleware.UserResolver
	ActorAuthSecret string
	AdminAuthSecret string

	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	RateLimiter        *httpmiddleware.RateLimiter
	RequestTimeout     time.Duration
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	if cfg.RateLimiter != nil {
		r.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
	}
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", handlers.Health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		public.Post("/patients", cfg.Patients.Register)
		public.Post("/doctors", cfg.Doctors.Register)
		public.Get("/doctors", cfg.Doctors.List)
		public.Get("/doctors/{id}", cfg.Doctors.Get)
		public.Get("/doctors/{id}/slots", cfg.Doctors.Slots)
	})

	// Patient and doctor endpoints
	r.Group(func(authed chi.Router) {
		authed.Use(httpmiddleware.ActorJWT(cfg.ActorAuthSecret, cfg.Users, cfg.Logger))

		authed.Route("/appointments", func(appts chi.Router) {
			appts.With(httpmiddleware.RequireRole(directory.RolePatient)).Post("/", cfg.Appointments.Book)
			appts.Route("/{id}", func(r chi.Router) {
				r.Get("/", cfg.Appointments.Get)
				r.Get("/history", cfg.Appointments.History)
				r.Post("/cancel", cfg.Appointments.Cancel)
				r.Group(func(doctor chi.Router) {
					doctor.Use(httpmiddleware.RequireRole(directory.RoleDoctor))
					doctor.Post("/confirm", cfg.Appointments.Confirm)
					doctor.Post("/decline", cfg.Appointments.Decline)
					doctor.Post("/complete", cfg.Appointments.Complete)
				})
			})
		})

		// Flat paths so these do not shadow the public /doctors/{id} routes.
		patient := authed.With(httpmiddleware.RequireRole(directory.RolePatient))
		patient.Get("/patients/{id}/appointments", cfg.Patients.Appointments)
		patient.Put("/patients/{id}", cfg.Patients.UpdateProfile)

		doctor := authed.With(httpmiddleware.RequireRole(directory.RoleDoctor))
		doctor.Get("/doctors/{id}/appointments", cfg.Doctors.Appointments)
		doctor.Get("/doctors/{id}/stats", cfg.Doctors.Stats)
		doctor.Put("/doctors/{id}/availability", cfg.Doctors.UpdateAvailability)
		doctor.Put("/doctors/{id}/fee", cfg.Doctors.UpdateFee)
	})

	// Admin routes
	if cfg.AdminDoctors != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/doctors", cfg.AdminDoctors.List)
			admin.Post("/doctors/{id}/approve", cfg.AdminDoctors.Approve)
		})
	}

	return r
}
