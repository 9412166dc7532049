// Package queries provides read-only projections over the appointment store.
package queries

import (
	"context"
	"slices"

	"cloud.google.com/go/civil"

	"github.com/wolfman30/ayurwell-scheduler/internal/appointments"
	"github.com/wolfman30/ayurwell-scheduler/internal/calendar"
	"github.com/wolfman30/ayurwell-scheduler/internal/directory"
)

// Directory confirms that the people being queried exist.
type Directory interface {
	GetPatient(ctx context.Context, id string) (*directory.Patient, error)
	GetDoctor(ctx context.Context, id string) (*directory.Doctor, error)
}

// Slots lists the slot starts a doctor offers on a date.
type Slots interface {
	SlotsOn(ctx context.Context, doctorID string, date civil.Date) ([]calendar.Clock, error)
}

// Stats summarises a doctor's appointments.
type Stats struct {
	DoctorID  string `json:"doctor_id"`
	Total     int    `json:"total"`
	Pending   int    `json:"pending"`
	Confirmed int    `json:"confirmed"`
	Completed int    `json:"completed"`
	Cancelled int    `json:"cancelled"`
	// Earnings is the sum of fee snapshots over completed appointments.
	Earnings int64 `json:"earnings"`
}

// Service answers read queries. Nothing is cached.
type Service struct {
	store     appointments.Store
	directory Directory
	slots     Slots
}

func NewService(store appointments.Store, dir Directory, slots Slots) *Service {
	return &Service{store: store, directory: dir, slots: slots}
}

// UpcomingForPatient returns pending and confirmed appointments, soonest first.
func (s *Service) UpcomingForPatient(ctx context.Context, patientID string) ([]*appointments.Appointment, error) {
	if _, err := s.directory.GetPatient(ctx, patientID); err != nil {
		return nil, err
	}
	out, err := appointments.Collect(s.store.Query(ctx, appointments.Filter{
		PatientID: patientID,
		Statuses:  []appointments.Status{appointments.StatusPending, appointments.StatusConfirmed},
	}))
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, ascending)
	return out, nil
}

// HistoryForPatient returns completed and cancelled appointments, latest
// date first; appointments on the same day are ordered by time.
func (s *Service) HistoryForPatient(ctx context.Context, patientID string) ([]*appointments.Appointment, error) {
	if _, err := s.directory.GetPatient(ctx, patientID); err != nil {
		return nil, err
	}
	out, err := appointments.Collect(s.store.Query(ctx, appointments.Filter{
		PatientID: patientID,
		Statuses:  []appointments.Status{appointments.StatusCompleted, appointments.StatusCancelled},
	}))
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b *appointments.Appointment) int {
		if c := calendar.CompareDates(b.Date, a.Date); c != 0 {
			return c
		}
		return int(a.Time - b.Time)
	})
	return out, nil
}

// QueueForDoctor returns the doctor's appointments in ascending slot order.
// An empty status returns every status.
func (s *Service) QueueForDoctor(ctx context.Context, doctorID string, status appointments.Status) ([]*appointments.Appointment, error) {
	if _, err := s.directory.GetDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	filter := appointments.Filter{DoctorID: doctorID}
	if status != "" {
		filter.Statuses = []appointments.Status{status}
	}
	out, err := appointments.Collect(s.store.Query(ctx, filter))
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, ascending)
	return out, nil
}

// DoctorStats counts a doctor's appointments by status.
func (s *Service) DoctorStats(ctx context.Context, doctorID string) (*Stats, error) {
	if _, err := s.directory.GetDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	stats := &Stats{DoctorID: doctorID}
	for appt, err := range s.store.Query(ctx, appointments.Filter{DoctorID: doctorID}) {
		if err != nil {
			return nil, err
		}
		stats.Total++
		switch appt.Status {
		case appointments.StatusPending:
			stats.Pending++
		case appointments.StatusConfirmed:
			stats.Confirmed++
		case appointments.StatusCompleted:
			stats.Completed++
			stats.Earnings += appt.ConsultationFee
		case appointments.StatusCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}

// OpenSlots lists the slots on date that the doctor offers and nobody holds.
func (s *Service) OpenSlots(ctx context.Context, doctorID string, date civil.Date) ([]calendar.Clock, error) {
	offered, err := s.slots.SlotsOn(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	if len(offered) == 0 {
		return offered, nil
	}
	taken := make(map[calendar.Clock]bool)
	for appt, err := range s.store.Query(ctx, appointments.Filter{
		DoctorID: doctorID,
		From:     date,
		To:       date,
		Statuses: []appointments.Status{appointments.StatusPending, appointments.StatusConfirmed, appointments.StatusCompleted},
	}) {
		if err != nil {
			return nil, err
		}
		taken[appt.Time] = true
	}
	open := make([]calendar.Clock, 0, len(offered))
	for _, slot := range offered {
		if !taken[slot] {
			open = append(open, slot)
		}
	}
	return open, nil
}

func ascending(a, b *appointments.Appointment) int {
	if c := calendar.CompareDates(a.Date, b.Date); c != 0 {
		return c
	}
	return int(a.Time - b.Time)
}
