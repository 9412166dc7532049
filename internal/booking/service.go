// Package booking validates booking requests and creates appointments.
package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/ayurwell-scheduler/internal/appointments"
	"github.com/wolfman30/ayurwell-scheduler/internal/apperr"
	"github.com/wolfman30/ayurwell-scheduler/internal/calendar"
	"github.com/wolfman30/ayurwell-scheduler/internal/directory"
	"github.com/wolfman30/ayurwell-scheduler/internal/events"
	"github.com/wolfman30/ayurwell-scheduler/internal/observability/metrics"
	"github.com/wolfman30/ayurwell-scheduler/pkg/logging"
)

var bookingTracer = otel.Tracer("ayurwell.internal.booking")

// Directory is the lookup surface booking needs.
type Directory interface {
	GetPatient(ctx context.Context, id string) (*directory.Patient, error)
	GetDoctor(ctx context.Context, id string) (*directory.Doctor, error)
}

// Availability answers recurring-hours questions.
type Availability interface {
	IsAvailable(ctx context.Context, doctorID string, date civil.Date, t calendar.Clock) (bool, error)
}

// Emitter publishes appointment events without failing the caller.
type Emitter interface {
	Emit(ctx context.Context, evt events.AppointmentEvent)
}

// Request is a patient's booking attempt.
type Request struct {
	PatientID string
	DoctorID  string
	Date      civil.Date
	Time      calendar.Clock
	Type      appointments.Type
	Symptoms  string
	Notes     string
}

// Service books appointments.
type Service struct {
	directory    Directory
	availability Availability
	store        appointments.Store
	emitter      Emitter
	limiter      Limiter
	maxPending   int
	loc          *time.Location
	now          func() time.Time
	logger       *logging.Logger
	metrics      *metrics.SchedulingMetrics
}

// Option customises a Service.
type Option func(*Service)

func WithEmitter(e Emitter) Option { return func(s *Service) { s.emitter = e } }

func WithLimiter(l Limiter) Option { return func(s *Service) { s.limiter = l } }

// WithMaxPendingPerDoctor caps how many pending appointments a patient may
// hold with one doctor. Zero disables the cap.
func WithMaxPendingPerDoctor(n int) Option { return func(s *Service) { s.maxPending = n } }

// WithLocation sets the zone that decides what "today" is.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *metrics.SchedulingMetrics) Option { return func(s *Service) { s.metrics = m } }

// NewService constructs a booking service.
func NewService(dir Directory, avail Availability, store appointments.Store, opts ...Option) *Service {
	if dir == nil || avail == nil || store == nil {
		panic("booking: directory, availability and store are required")
	}
	s := &Service{
		directory:    dir,
		availability: avail,
		store:        store,
		loc:          time.UTC,
		now:          time.Now,
		logger:       logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BookAppointment validates req and creates a pending appointment. Checks
// run in a fixed order and the first failure is returned: unknown
// participants, unverified doctor, past date, slot outside the doctor's
// hours, booking limits, then the atomic slot claim.
func (s *Service) BookAppointment(ctx context.Context, req Request) (*appointments.Appointment, error) {
	start := time.Now()
	ctx, span := bookingTracer.Start(ctx, "booking.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("ayurwell.patient_id", req.PatientID),
		attribute.String("ayurwell.doctor_id", req.DoctorID),
		attribute.String("ayurwell.slot", req.Date.String()+" "+req.Time.String()),
	)
	defer s.metrics.ObserveDuration("book", start)

	appt, err := s.book(ctx, req)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveBooking(string(apperr.KindOf(err)))
		s.logger.Info("booking rejected",
			"patient_id", req.PatientID,
			"doctor_id", req.DoctorID,
			"date", req.Date.String(),
			"time", req.Time.String(),
			"reason", apperr.KindOf(err),
		)
		return nil, err
	}
	span.SetAttributes(attribute.String("ayurwell.appointment_id", appt.ID))
	s.metrics.ObserveBooking("booked")
	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"patient_id", appt.PatientID,
		"doctor_id", appt.DoctorID,
		"date", appt.Date.String(),
		"time", appt.Time.String(),
		"fee", appt.ConsultationFee,
	)
	if s.emitter != nil {
		s.emitter.Emit(ctx, events.NewAppointmentEvent(events.AppointmentBooked, appt.PatientID, appt, s.now()))
	}
	return appt, nil
}

func (s *Service) book(ctx context.Context, req Request) (*appointments.Appointment, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	patient, err := s.directory.GetPatient(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	doctor, err := s.directory.GetDoctor(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}

	if !doctor.Verified {
		return nil, apperr.E(apperr.KindDoctorUnverified, "doctor %s is awaiting verification", doctor.ID)
	}

	now := s.now().In(s.loc)
	today := calendar.Today(now, s.loc)
	if calendar.CompareDates(req.Date, today) < 0 {
		return nil, apperr.E(apperr.KindInvalidDate, "date %s is before today (%s)", req.Date, today)
	}
	if req.Date == today && calendar.Instant(req.Date, req.Time, s.loc).Before(now) {
		return nil, apperr.E(apperr.KindInvalidDate, "slot %s %s has already started", req.Date, req.Time)
	}

	ok, err := s.availability.IsAvailable(ctx, doctor.ID, req.Date, req.Time)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.E(apperr.KindOutsideAvailability,
			"%s does not see patients at %s on %s", doctor.Name, req.Time, calendar.Weekday(req.Date))
	}

	if err := s.checkLimits(ctx, patient.ID, doctor.ID); err != nil {
		return nil, err
	}

	created, err := s.store.Create(ctx, &appointments.Appointment{
		PatientID:            patient.ID,
		DoctorID:             doctor.ID,
		Date:                 req.Date,
		Time:                 req.Time,
		Type:                 req.Type,
		Status:               appointments.StatusPending,
		Symptoms:             strings.TrimSpace(req.Symptoms),
		Notes:                strings.TrimSpace(req.Notes),
		ConsultationFee:      doctor.ConsultationFee,
		PatientName:          patient.Name,
		DoctorName:           doctor.Name,
		DoctorSpecialization: doctor.Specialization,
		CreatedAt:            s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("booking: %w", err)
	}
	return created, nil
}

func (s *Service) checkLimits(ctx context.Context, patientID, doctorID string) error {
	if s.maxPending > 0 {
		pending := 0
		for _, err := range s.store.Query(ctx, appointments.Filter{
			PatientID: patientID,
			DoctorID:  doctorID,
			Statuses:  []appointments.Status{appointments.StatusPending},
		}) {
			if err != nil {
				return err
			}
			pending++
		}
		if pending >= s.maxPending {
			return apperr.E(apperr.KindLimitExceeded,
				"patient already has %d pending appointments with this doctor", pending)
		}
	}
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, patientID)
		if err != nil {
			return err
		}
		if !allowed {
			return apperr.E(apperr.KindLimitExceeded, "too many booking attempts; try again later")
		}
	}
	return nil
}

func validate(req Request) error {
	switch {
	case strings.TrimSpace(req.PatientID) == "":
		return apperr.E(apperr.KindInvalidInput, "patient id is required")
	case strings.TrimSpace(req.DoctorID) == "":
		return apperr.E(apperr.KindInvalidInput, "doctor id is required")
	case !req.Type.Valid():
		return apperr.E(apperr.KindInvalidInput, "consultation type must be video, audio or chat")
	case !req.Date.IsValid():
		return apperr.E(apperr.KindInvalidInput, "date is invalid")
	case !req.Time.Valid():
		return apperr.E(apperr.KindInvalidInput, "time is invalid")
	}
	return nil
}
