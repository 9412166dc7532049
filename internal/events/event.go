// Package events carries appointment notifications out of the scheduling
// core. Emission is best-effort: a transport failure is logged and counted
// but never reaches the caller whose state change triggered it.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/ayurwell-scheduler/internal/appointments"
)

// Type names an appointment event. The suffix versions the payload.
type Type string

const (
	AppointmentBooked    Type = "appointment.booked.v1"
	AppointmentConfirmed Type = "appointment.confirmed.v1"
	AppointmentCancelled Type = "appointment.cancelled.v1"
	AppointmentCompleted Type = "appointment.completed.v1"
)

// AppointmentEvent is the envelope sent to every transport. It carries a
// full snapshot of the appointment after the change.
type AppointmentEvent struct {
	EventID     string                    `json:"event_id"`
	Type        Type                      `json:"type"`
	OccurredAt  time.Time                 `json:"occurred_at"`
	ActorID     string                    `json:"actor_id,omitempty"`
	Appointment *appointments.Appointment `json:"appointment"`
}

// NewAppointmentEvent stamps a fresh event id.
func NewAppointmentEvent(typ Type, actorID string, appt *appointments.Appointment, at time.Time) AppointmentEvent {
	return AppointmentEvent{
		EventID:     uuid.NewString(),
		Type:        typ,
		OccurredAt:  at.UTC(),
		ActorID:     actorID,
		Appointment: appt.Clone(),
	}
}

// TypeForStatus maps the status an appointment just entered to its event.
func TypeForStatus(s appointments.Status) (Type, bool) {
	switch s {
	case appointments.StatusPending:
		return AppointmentBooked, true
	case appointments.StatusConfirmed:
		return AppointmentConfirmed, true
	case appointments.StatusCancelled:
		return AppointmentCancelled, true
	case appointments.StatusCompleted:
		return AppointmentCompleted, true
	}
	return "", false
}

// Encode renders the event as JSON.
func (e AppointmentEvent) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("events: encode %s: %w", e.Type, err)
	}
	return data, nil
}

// Decode parses an encoded event.
func Decode(data []byte) (AppointmentEvent, error) {
	var evt AppointmentEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return AppointmentEvent{}, fmt.Errorf("events: decode: %w", err)
	}
	if evt.EventID == "" || evt.Appointment == nil {
		return AppointmentEvent{}, fmt.Errorf("events: decode: missing event id or appointment")
	}
	return evt, nil
}
