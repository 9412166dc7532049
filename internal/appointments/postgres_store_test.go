package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/ayurwell-scheduler/internal/apperr"
)

var appointmentRowColumns = []string{
	"id", "patient_id", "doctor_id", "appt_date", "slot_minute", "type", "status",
	"symptoms", "notes", "prescription", "consultation_fee", "patient_name", "doctor_name",
	"doctor_specialization", "cancelled_by", "cancellation_reason", "version", "created_at", "updated_at",
}

func insertArgs() []any {
	args := make([]any, 19)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func appointmentRow(rows *pgxmock.Rows, id, status string, version int) *pgxmock.Rows {
	created := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	return rows.AddRow(
		id, "p-1", "dr-a", slotDate.In(time.UTC), 600, "video", status,
		"headache", "", (*string)(nil), int64(800), "Rahul", "Dr. A", "Panchakarma",
		"", "", version, created, created,
	)
}

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresStore(mock, WithRetry(3, time.Millisecond)), mock
}

func TestPostgresCreateMapsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO appointments").WithArgs(insertArgs()...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: ActiveSlotIndex})

	_, err := store.Create(context.Background(), newAppointment("p-1", "10:00"))
	assert.ErrorIs(t, err, apperr.ErrSlotConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateRetriesLockContention(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO appointments").WithArgs(insertArgs()...).
		WillReturnError(&pgconn.PgError{Code: "55P03"})
	mock.ExpectExec("INSERT INTO appointments").WithArgs(insertArgs()...).
		WillReturnError(&pgconn.PgError{Code: "40001"})
	mock.ExpectExec("INSERT INTO appointments").WithArgs(insertArgs()...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	created, err := store.Create(context.Background(), newAppointment("p-1", "10:00"))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, created.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateExhaustedRetriesAreUnavailable(t *testing.T) {
	store, mock := newMockStore(t)
	for i := 0; i < 3; i++ {
		mock.ExpectExec("INSERT INTO appointments").WithArgs(insertArgs()...).
			WillReturnError(&pgconn.PgError{Code: "40P01"})
	}

	_, err := store.Create(context.Background(), newAppointment("p-1", "10:00"))
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateConnectionFailure(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO appointments").WithArgs(insertArgs()...).
		WillReturnError(errors.New("dial tcp 10.0.0.5:5432: connect: connection refused"))

	_, err := store.Create(context.Background(), newAppointment("p-1", "10:00"))
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	assert.True(t, apperr.Retryable(err))
}

func TestPostgresGet(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT .* FROM appointments WHERE id").WithArgs("appt-1").
		WillReturnRows(appointmentRow(pgxmock.NewRows(appointmentRowColumns), "appt-1", "confirmed", 2))

	a, err := store.Get(context.Background(), "appt-1")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, a.Status)
	assert.Equal(t, "10:00", a.Time.String())
	assert.Equal(t, slotDate, a.Date)
	assert.Nil(t, a.Prescription)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateLostRace(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT .* FROM appointments WHERE id").WithArgs("appt-1").
		WillReturnRows(appointmentRow(pgxmock.NewRows(appointmentRowColumns), "appt-1", "pending", 1))
	mock.ExpectExec("UPDATE appointments").
		WithArgs("appt-1", "pending", "confirmed", pgxmock.AnyArg(), "", "", 2, pgxmock.AnyArg(), 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	_, err := store.Update(context.Background(), "appt-1", StatusPending, func(a *Appointment) error {
		a.Status = StatusConfirmed
		return nil
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateApplies(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT .* FROM appointments WHERE id").WithArgs("appt-1").
		WillReturnRows(appointmentRow(pgxmock.NewRows(appointmentRowColumns), "appt-1", "pending", 1))
	mock.ExpectExec("UPDATE appointments").
		WithArgs("appt-1", "pending", "cancelled", pgxmock.AnyArg(), "p-1", "changed plans", 2, pgxmock.AnyArg(), 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	updated, err := store.Update(context.Background(), "appt-1", StatusPending, func(a *Appointment) error {
		a.Status = StatusCancelled
		a.CancelledBy = "p-1"
		a.CancellationReason = "changed plans"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)
	assert.Equal(t, 2, updated.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateWrongPreStateSkipsWrite(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT .* FROM appointments WHERE id").WithArgs("appt-1").
		WillReturnRows(appointmentRow(pgxmock.NewRows(appointmentRowColumns), "appt-1", "cancelled", 3))

	_, err := store.Update(context.Background(), "appt-1", StatusPending, func(a *Appointment) error {
		a.Status = StatusCancelled
		return nil
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueryAppliesPredicate(t *testing.T) {
	store, mock := newMockStore(t)
	rows := pgxmock.NewRows(appointmentRowColumns)
	appointmentRow(rows, "appt-1", "pending", 1)
	appointmentRow(rows, "appt-2", "confirmed", 2)
	mock.ExpectQuery("SELECT .* FROM appointments").
		WithArgs("p-1", "", []string{"pending", "confirmed"}, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(rows)

	got, err := Collect(store.Query(context.Background(), Filter{
		PatientID: "p-1",
		Statuses:  []Status{StatusPending, StatusConfirmed},
		Match:     func(a *Appointment) bool { return a.Status == StatusConfirmed },
	}))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "appt-2", got[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMalformedIDIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT .* FROM appointments WHERE id = \$1::uuid`).WithArgs("not-a-uuid").
		WillReturnError(&pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type uuid"})

	_, err := store.Get(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	mock.ExpectQuery(`WHERE \(\$1::text = '' OR patient_id = NULLIF\(\$1::text, ''\)::uuid\)`).
		WithArgs("bogus", "", []string{}, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "22P02"})
	_, err = Collect(store.Query(context.Background(), Filter{PatientID: "bogus"}))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
