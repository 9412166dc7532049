// Package lifecycle moves appointments through their state machine on
// behalf of the patient or doctor who owns them.
package lifecycle

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/ayurwell-scheduler/internal/appointments"
	"github.com/wolfman30/ayurwell-scheduler/internal/apperr"
	"github.com/wolfman30/ayurwell-scheduler/internal/audit"
	"github.com/wolfman30/ayurwell-scheduler/internal/events"
	"github.com/wolfman30/ayurwell-scheduler/internal/observability/metrics"
	"github.com/wolfman30/ayurwell-scheduler/pkg/logging"
)

var lifecycleTracer = otel.Tracer("ayurwell.internal.lifecycle")

// Emitter publishes appointment events without failing the caller.
type Emitter interface {
	Emit(ctx context.Context, evt events.AppointmentEvent)
}

// Action names a lifecycle operation.
type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionDecline  Action = "decline"
	ActionCancel   Action = "cancel"
	ActionComplete Action = "complete"
)

// party says which side of an appointment may perform an action.
type party int

const (
	doctorOnly party = iota
	eitherParty
)

// Manager performs lifecycle transitions.
type Manager struct {
	store   appointments.Store
	emitter Emitter
	trail   audit.Trail
	loc     *time.Location
	now     func() time.Time
	logger  *logging.Logger
	metrics *metrics.SchedulingMetrics
}

// Option customises a Manager.
type Option func(*Manager)

func WithEmitter(e Emitter) Option { return func(m *Manager) { m.emitter = e } }

func WithAuditTrail(t audit.Trail) Option { return func(m *Manager) { m.trail = t } }

func WithMetrics(s *metrics.SchedulingMetrics) Option { return func(m *Manager) { m.metrics = s } }

// WithLocation sets the zone appointment start instants are resolved in.
func WithLocation(loc *time.Location) Option {
	return func(m *Manager) {
		if loc != nil {
			m.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager builds a Manager over store.
func NewManager(store appointments.Store, opts ...Option) *Manager {
	if store == nil {
		panic("lifecycle: store cannot be nil")
	}
	m := &Manager{
		store:  store,
		loc:    time.UTC,
		now:    time.Now,
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Confirm accepts a pending appointment. Only its doctor may confirm.
func (m *Manager) Confirm(ctx context.Context, id, actorDoctorID string) (*appointments.Appointment, error) {
	return m.transition(ctx, ActionConfirm, id, actorDoctorID, doctorOnly, func(a *appointments.Appointment) error {
		if a.Status != appointments.StatusPending {
			return notAllowed(a, ActionConfirm)
		}
		a.Status = appointments.StatusConfirmed
		return nil
	})
}

// Decline rejects a pending appointment on the doctor's behalf.
func (m *Manager) Decline(ctx context.Context, id, actorDoctorID, reason string) (*appointments.Appointment, error) {
	return m.transition(ctx, ActionDecline, id, actorDoctorID, doctorOnly, func(a *appointments.Appointment) error {
		if a.Status != appointments.StatusPending {
			return notAllowed(a, ActionDecline)
		}
		a.Status = appointments.StatusCancelled
		a.CancelledBy = actorDoctorID
		a.CancellationReason = strings.TrimSpace(reason)
		return nil
	})
}

// Cancel withdraws a pending appointment, or a confirmed one that has
// not started yet. Either party may cancel.
func (m *Manager) Cancel(ctx context.Context, id, actorID, reason string) (*appointments.Appointment, error) {
	return m.transition(ctx, ActionCancel, id, actorID, eitherParty, func(a *appointments.Appointment) error {
		switch a.Status {
		case appointments.StatusPending:
		case appointments.StatusConfirmed:
			if !m.now().Before(a.StartsAt(m.loc)) {
				return apperr.E(apperr.KindInvalidTransition,
					"appointment %s has already started and can no longer be cancelled", a.ID)
			}
		default:
			return notAllowed(a, ActionCancel)
		}
		a.Status = appointments.StatusCancelled
		a.CancelledBy = actorID
		a.CancellationReason = strings.TrimSpace(reason)
		return nil
	})
}

// Complete closes a confirmed appointment. A non-blank prescription is
// stored; a blank or nil one leaves the prescription unset.
func (m *Manager) Complete(ctx context.Context, id, actorDoctorID string, prescription *string) (*appointments.Appointment, error) {
	return m.transition(ctx, ActionComplete, id, actorDoctorID, doctorOnly, func(a *appointments.Appointment) error {
		if a.Status != appointments.StatusConfirmed {
			return notAllowed(a, ActionComplete)
		}
		a.Status = appointments.StatusCompleted
		if prescription != nil {
			if p := strings.TrimSpace(*prescription); p != "" {
				a.Prescription = &p
			}
		}
		return nil
	})
}

func (m *Manager) transition(ctx context.Context, action Action, id, actorID string, who party, apply func(*appointments.Appointment) error) (*appointments.Appointment, error) {
	start := time.Now()
	ctx, span := lifecycleTracer.Start(ctx, "lifecycle."+string(action))
	defer span.End()
	span.SetAttributes(
		attribute.String("ayurwell.appointment_id", id),
		attribute.String("ayurwell.actor_id", actorID),
	)
	defer m.metrics.ObserveDuration(string(action), start)

	before, after, err := m.apply(ctx, id, actorID, who, apply)
	if err != nil {
		span.RecordError(err)
		m.metrics.ObserveTransition(string(action), string(apperr.KindOf(err)))
		m.logger.Info("appointment transition rejected",
			"action", action,
			"appointment_id", id,
			"actor_id", actorID,
			"reason", apperr.KindOf(err),
		)
		return nil, err
	}

	m.metrics.ObserveTransition(string(action), "ok")
	m.logger.Info("appointment transitioned",
		"action", action,
		"appointment_id", after.ID,
		"from", before,
		"to", after.Status,
		"actor_id", actorID,
	)
	m.record(ctx, action, before, after, actorID)
	if m.emitter != nil {
		if typ, ok := events.TypeForStatus(after.Status); ok {
			m.emitter.Emit(ctx, events.NewAppointmentEvent(typ, actorID, after, m.now()))
		}
	}
	return after, nil
}

// apply loads, authorizes and checks the appointment, then commits the
// change conditioned on the status that was observed.
func (m *Manager) apply(ctx context.Context, id, actorID string, who party, mutate func(*appointments.Appointment) error) (appointments.Status, *appointments.Appointment, error) {
	current, err := m.store.Get(ctx, id)
	if err != nil {
		return "", nil, err
	}
	if err := authorize(current, actorID, who); err != nil {
		return "", nil, err
	}
	// Run the checks against a copy first so a rejected transition never
	// reaches the store.
	if err := mutate(current.Clone()); err != nil {
		return "", nil, err
	}
	updated, err := m.store.Update(ctx, id, current.Status, mutate)
	if err != nil {
		return "", nil, err
	}
	return current.Status, updated, nil
}

func (m *Manager) record(ctx context.Context, action Action, from appointments.Status, after *appointments.Appointment, actorID string) {
	if m.trail == nil {
		return
	}
	entry := audit.NewEntry(after.ID, after.Version, string(action), string(from), string(after.Status),
		actorID, after.CancellationReason, m.now().UTC())
	if err := m.trail.Record(ctx, entry); err != nil {
		m.logger.Warn("failed to record audit entry", "appointment_id", after.ID, "action", action, "error", err)
	}
}

func authorize(a *appointments.Appointment, actorID string, who party) error {
	switch {
	case actorID == "":
		return apperr.E(apperr.KindForbidden, "an actor is required")
	case actorID == a.DoctorID:
		return nil
	case who == eitherParty && actorID == a.PatientID:
		return nil
	}
	return apperr.E(apperr.KindForbidden, "actor %s may not modify appointment %s", actorID, a.ID)
}

func notAllowed(a *appointments.Appointment, action Action) error {
	return apperr.E(apperr.KindInvalidTransition, "cannot %s appointment %s while it is %s", action, a.ID, a.Status)
}
