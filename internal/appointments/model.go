package appointments

import (
	"time"

	"cloud.google.com/go/civil"

	"github.com/wolfman30/ayurwell-scheduler/internal/calendar"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// transitions lists the legal next states for each state.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Active reports whether an appointment in s holds its slot.
func (s Status) Active() bool {
	return s != StatusCancelled
}

// CanTransitionTo reports whether s -> next is a legal move.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Type is the consultation medium.
type Type string

const (
	TypeVideo Type = "video"
	TypeAudio Type = "audio"
	TypeChat  Type = "chat"
)

// Valid reports whether t is a supported consultation type.
func (t Type) Valid() bool {
	return t == TypeVideo || t == TypeAudio || t == TypeChat
}

// Appointment is a booked consultation. Display names and the fee are
// snapshots taken at booking time.
type Appointment struct {
	ID                   string         `json:"id"`
	PatientID            string         `json:"patient_id"`
	DoctorID             string         `json:"doctor_id"`
	Date                 civil.Date     `json:"date"`
	Time                 calendar.Clock `json:"time"`
	Type                 Type           `json:"type"`
	Status               Status         `json:"status"`
	Symptoms             string         `json:"symptoms,omitempty"`
	Notes                string         `json:"notes,omitempty"`
	Prescription         *string        `json:"prescription,omitempty"`
	ConsultationFee      int64          `json:"consultation_fee"`
	PatientName          string         `json:"patient_name"`
	DoctorName           string         `json:"doctor_name"`
	DoctorSpecialization string         `json:"doctor_specialization"`
	CancelledBy          string         `json:"cancelled_by,omitempty"`
	CancellationReason   string         `json:"cancellation_reason,omitempty"`
	Version              int            `json:"version"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// SlotKey identifies a doctor's slot; at most one active appointment holds it.
type SlotKey struct {
	DoctorID string
	Date     civil.Date
	Time     calendar.Clock
}

// Slot returns the key of the slot the appointment occupies.
func (a *Appointment) Slot() SlotKey {
	return SlotKey{DoctorID: a.DoctorID, Date: a.Date, Time: a.Time}
}

// StartsAt resolves the slot start to an instant in loc.
func (a *Appointment) StartsAt(loc *time.Location) time.Time {
	return calendar.Instant(a.Date, a.Time, loc)
}

// Clone returns a deep copy.
func (a *Appointment) Clone() *Appointment {
	if a == nil {
		return nil
	}
	out := *a
	if a.Prescription != nil {
		p := *a.Prescription
		out.Prescription = &p
	}
	return &out
}
