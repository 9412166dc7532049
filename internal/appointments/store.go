package appointments

import (
	"context"
	"iter"
	"slices"
	"time"

	"cloud.google.com/go/civil"

	"github.com/wolfman30/ayurwell-scheduler/internal/apperr"
	"github.com/wolfman30/ayurwell-scheduler/internal/calendar"
)

// Store is the authoritative appointment record.
//
// Create claims the slot atomically: a second active appointment for the
// same doctor, date and time fails with a slot_conflict error. Update is
// optimistic: it fails with invalid_transition when the stored status is
// no longer the expected one.
type Store interface {
	Create(ctx context.Context, appt *Appointment) (*Appointment, error)
	Get(ctx context.Context, id string) (*Appointment, error)
	Update(ctx context.Context, id string, expected Status, mutate func(*Appointment) error) (*Appointment, error)
	Query(ctx context.Context, filter Filter) iter.Seq2[*Appointment, error]
}

// Filter selects appointments. Zero fields do not constrain.
type Filter struct {
	PatientID string
	DoctorID  string
	Statuses  []Status
	From      civil.Date
	To        civil.Date
	// Match is applied after the structured fields.
	Match func(*Appointment) bool
}

// Matches reports whether a satisfies every set field of f.
func (f Filter) Matches(a *Appointment) bool {
	if f.PatientID != "" && a.PatientID != f.PatientID {
		return false
	}
	if f.DoctorID != "" && a.DoctorID != f.DoctorID {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, a.Status) {
		return false
	}
	if f.From != (civil.Date{}) && calendar.CompareDates(a.Date, f.From) < 0 {
		return false
	}
	if f.To != (civil.Date{}) && calendar.CompareDates(a.Date, f.To) > 0 {
		return false
	}
	if f.Match != nil && !f.Match(a) {
		return false
	}
	return true
}

// Collect drains a query sequence into a slice.
func Collect(seq iter.Seq2[*Appointment, error]) ([]*Appointment, error) {
	var out []*Appointment
	for a, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// prepareNew fills store-owned fields on a new appointment.
func prepareNew(in *Appointment, id string, now time.Time) (*Appointment, error) {
	if in == nil {
		return nil, apperr.E(apperr.KindInvalidInput, "appointment required")
	}
	a := in.Clone()
	if a.ID == "" {
		a.ID = id
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	if a.PatientID == "" || a.DoctorID == "" {
		return nil, apperr.E(apperr.KindInvalidInput, "appointment needs a patient and a doctor")
	}
	if !a.Type.Valid() {
		return nil, apperr.E(apperr.KindInvalidInput, "unknown consultation type %q", a.Type)
	}
	if !a.Time.Valid() || !a.Date.IsValid() {
		return nil, apperr.E(apperr.KindInvalidInput, "appointment has an invalid date or time")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = a.CreatedAt
	a.Version = 1
	return a, nil
}

// applyMutation runs mutate on a copy of current and checks the result
// against the state machine and the immutable fields.
func applyMutation(current *Appointment, expected Status, mutate func(*Appointment) error, now time.Time) (*Appointment, error) {
	if current.Status != expected {
		return nil, apperr.E(apperr.KindInvalidTransition,
			"appointment %s is %s, expected %s", current.ID, current.Status, expected)
	}
	next := current.Clone()
	if mutate != nil {
		if err := mutate(next); err != nil {
			return nil, err
		}
	}
	if err := checkImmutable(current, next); err != nil {
		return nil, err
	}
	if next.Status != current.Status && !current.Status.CanTransitionTo(next.Status) {
		return nil, apperr.E(apperr.KindInvalidTransition,
			"appointment %s cannot move from %s to %s", current.ID, current.Status, next.Status)
	}
	if !samePrescription(current.Prescription, next.Prescription) {
		if next.Status != StatusCompleted || current.Status == StatusCompleted {
			return nil, apperr.E(apperr.KindInvalidTransition,
				"prescription can only be set when completing appointment %s", current.ID)
		}
	}
	next.Version = current.Version + 1
	next.UpdatedAt = now
	return next, nil
}

func checkImmutable(before, after *Appointment) error {
	changed := ""
	switch {
	case before.ID != after.ID:
		changed = "id"
	case before.PatientID != after.PatientID:
		changed = "patient_id"
	case before.DoctorID != after.DoctorID:
		changed = "doctor_id"
	case before.Date != after.Date || before.Time != after.Time:
		changed = "slot"
	case before.Type != after.Type:
		changed = "type"
	case before.ConsultationFee != after.ConsultationFee:
		changed = "consultation_fee"
	case before.Symptoms != after.Symptoms || before.Notes != after.Notes:
		changed = "symptoms"
	case before.PatientName != after.PatientName || before.DoctorName != after.DoctorName ||
		before.DoctorSpecialization != after.DoctorSpecialization:
		changed = "snapshot"
	case !before.CreatedAt.Equal(after.CreatedAt):
		changed = "created_at"
	}
	if changed != "" {
		return apperr.E(apperr.KindInvalidTransition, "appointments: %s is immutable", changed)
	}
	return nil
}

func samePrescription(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
