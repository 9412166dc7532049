package queries

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/ayurwell-scheduler/internal/appointments"
	"github.com/wolfman30/ayurwell-scheduler/internal/apperr"
	"github.com/wolfman30/ayurwell-scheduler/internal/availability"
	"github.com/wolfman30/ayurwell-scheduler/internal/calendar"
	"github.com/wolfman30/ayurwell-scheduler/internal/directory"
)

type seeded struct {
	svc     *Service
	store   *appointments.MemoryStore
	doctor  *directory.Doctor
	patient *directory.Patient
}

func day(d int) civil.Date { return civil.Date{Year: 2026, Month: time.October, Day: d} }

func setup(t *testing.T) *seeded {
	t.Helper()
	ctx := context.Background()
	dir := directory.NewService(directory.NewInMemoryRepository(), nil)
	doc, err := dir.RegisterDoctor(ctx, directory.RegisterDoctorRequest{
		Name:            "Dr. Anjali Sharma",
		Email:           "anjali@ayurwell.example",
		Specialization:  "Panchakarma",
		ConsultationFee: 800,
		Availability: []directory.WeeklyWindow{
			{Day: directory.Weekday(time.Wednesday), Start: calendar.MustClock("09:00"), End: calendar.MustClock("13:00")},
		},
	})
	require.NoError(t, err)
	patient, err := dir.RegisterPatient(ctx, directory.PatientProfile{Name: "Ravi Kumar", Email: "ravi@example.com"})
	require.NoError(t, err)

	idx, err := availability.NewIndex(dir, time.Hour)
	require.NoError(t, err)
	store := appointments.NewMemoryStore()
	return &seeded{svc: NewService(store, dir, idx), store: store, doctor: doc, patient: patient}
}

func (s *seeded) add(t *testing.T, date civil.Date, at string, status appointments.Status, fee int64) *appointments.Appointment {
	t.Helper()
	appt, err := s.store.Create(context.Background(), &appointments.Appointment{
		PatientID:       s.patient.ID,
		DoctorID:        s.doctor.ID,
		Date:            date,
		Time:            calendar.MustClock(at),
		Type:            appointments.TypeAudio,
		Status:          status,
		ConsultationFee: fee,
	})
	require.NoError(t, err)
	return appt
}

func slotsOf(appts []*appointments.Appointment) []string {
	out := make([]string, 0, len(appts))
	for _, a := range appts {
		out = append(out, a.Date.String()+" "+a.Time.String())
	}
	return out
}

func TestPatientViews(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	s.add(t, day(28), "09:00", appointments.StatusPending, 800)
	s.add(t, day(21), "11:00", appointments.StatusConfirmed, 800)
	s.add(t, day(21), "10:00", appointments.StatusPending, 800)
	s.add(t, day(7), "10:00", appointments.StatusCompleted, 700)
	s.add(t, day(14), "09:00", appointments.StatusCancelled, 700)
	s.add(t, day(14), "11:00", appointments.StatusCompleted, 700)

	upcoming, err := s.svc.UpcomingForPatient(ctx, s.patient.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-10-21 10:00", "2026-10-21 11:00", "2026-10-28 09:00"}, slotsOf(upcoming))

	history, err := s.svc.HistoryForPatient(ctx, s.patient.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-10-14 09:00", "2026-10-14 11:00", "2026-10-07 10:00"}, slotsOf(history))
}

func TestQueueForDoctor(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	s.add(t, day(28), "09:00", appointments.StatusPending, 800)
	s.add(t, day(21), "10:00", appointments.StatusConfirmed, 800)
	s.add(t, day(21), "09:00", appointments.StatusPending, 800)

	all, err := s.svc.QueueForDoctor(ctx, s.doctor.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-10-21 09:00", "2026-10-21 10:00", "2026-10-28 09:00"}, slotsOf(all))

	pending, err := s.svc.QueueForDoctor(ctx, s.doctor.ID, appointments.StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestUnknownPartiesAreNotFound(t *testing.T) {
	s := setup(t)
	ctx := context.Background()

	_, err := s.svc.UpcomingForPatient(ctx, "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = s.svc.HistoryForPatient(ctx, "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = s.svc.QueueForDoctor(ctx, "ghost", "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = s.svc.DoctorStats(ctx, "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = s.svc.OpenSlots(ctx, "ghost", day(21))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDoctorStats(t *testing.T) {
	s := setup(t)
	s.add(t, day(7), "09:00", appointments.StatusCompleted, 700)
	s.add(t, day(14), "09:00", appointments.StatusCompleted, 800)
	s.add(t, day(14), "10:00", appointments.StatusCancelled, 800)
	s.add(t, day(21), "09:00", appointments.StatusConfirmed, 800)
	s.add(t, day(21), "10:00", appointments.StatusPending, 800)

	stats, err := s.svc.DoctorStats(context.Background(), s.doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, Stats{
		DoctorID:  s.doctor.ID,
		Total:     5,
		Pending:   1,
		Confirmed: 1,
		Completed: 2,
		Cancelled: 1,
		Earnings:  1500,
	}, *stats)
}

func TestOpenSlots(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	s.add(t, day(21), "10:00", appointments.StatusPending, 800)
	s.add(t, day(21), "11:00", appointments.StatusCancelled, 800)

	open, err := s.svc.OpenSlots(ctx, s.doctor.ID, day(21))
	require.NoError(t, err)
	assert.Equal(t, []calendar.Clock{
		calendar.MustClock("09:00"),
		calendar.MustClock("11:00"),
		calendar.MustClock("12:00"),
	}, open)

	closed, err := s.svc.OpenSlots(ctx, s.doctor.ID, day(22))
	require.NoError(t, err)
	assert.Empty(t, closed)
}
