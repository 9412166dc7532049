package appointments

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/ayurwell-scheduler/internal/apperr"
	"github.com/wolfman30/ayurwell-scheduler/internal/calendar"
	"github.com/wolfman30/ayurwell-scheduler/pkg/logging"
)

// ActiveSlotIndex is the partial unique index that enforces one active
// appointment per doctor slot.
const ActiveSlotIndex = "appointments_active_slot_idx"

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists appointments. Slot uniqueness is delegated to
// ActiveSlotIndex; status updates are conditional on the expected status
// and version.
type PostgresStore struct {
	db        DB
	logger    *logging.Logger
	attempts  int
	baseDelay time.Duration
	now       func() time.Time
}

// PostgresOption customises a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithRetry bounds the attempts made when Postgres reports lock contention.
func WithRetry(attempts int, baseDelay time.Duration) PostgresOption {
	return func(s *PostgresStore) {
		if attempts > 0 {
			s.attempts = attempts
		}
		if baseDelay > 0 {
			s.baseDelay = baseDelay
		}
	}
}

// WithStoreLogger sets the logger.
func WithStoreLogger(l *logging.Logger) PostgresOption {
	return func(s *PostgresStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewPostgresStore builds a store on a pgx pool or connection.
func NewPostgresStore(db DB, opts ...PostgresOption) *PostgresStore {
	if db == nil {
		panic("appointments: pgx db required")
	}
	s := &PostgresStore{
		db:        db,
		logger:    logging.Default(),
		attempts:  3,
		baseDelay: 20 * time.Millisecond,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const appointmentColumns = `id::text, patient_id::text, doctor_id::text, appt_date, slot_minute, type, status,
	symptoms, notes, prescription, consultation_fee, patient_name, doctor_name, doctor_specialization,
	cancelled_by, cancellation_reason, version, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, in *Appointment) (*Appointment, error) {
	a, err := prepareNew(in, uuid.New().String(), s.now().UTC())
	if err != nil {
		return nil, err
	}

	err = s.withRetry(ctx, "create", func() error {
		_, err := s.db.Exec(ctx, `
			INSERT INTO appointments (id, patient_id, doctor_id, appt_date, slot_minute, type, status,
				symptoms, notes, prescription, consultation_fee, patient_name, doctor_name, doctor_specialization,
				cancelled_by, cancellation_reason, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
			a.ID, a.PatientID, a.DoctorID, dateParam(a.Date), int(a.Time), string(a.Type), string(a.Status),
			a.Symptoms, a.Notes, a.Prescription, a.ConsultationFee, a.PatientName, a.DoctorName, a.DoctorSpecialization,
			a.CancelledBy, a.CancellationReason, a.Version, a.CreatedAt, a.UpdatedAt,
		)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch {
			case pgErr.Code == "23505" && pgErr.ConstraintName == ActiveSlotIndex:
				return nil, apperr.E(apperr.KindSlotConflict,
					"doctor %s is already booked at %s %s", a.DoctorID, a.Date, a.Time)
			case pgErr.Code == "23505":
				return nil, apperr.E(apperr.KindInvalidInput, "appointment %s already exists", a.ID)
			case pgErr.Code == "23503":
				return nil, apperr.E(apperr.KindNotFound, "appointment references an unknown patient or doctor")
			}
		}
		return nil, classify("insert appointment", err)
	}
	return a, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1::uuid`, id)
	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.E(apperr.KindNotFound, "appointment %s not found", id)
		}
		return nil, classify("select appointment", err)
	}
	return a, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, expected Status, mutate func(*Appointment) error) (*Appointment, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := applyMutation(current, expected, mutate, s.now().UTC())
	if err != nil {
		return nil, err
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE appointments
		SET status = $3, prescription = $4, cancelled_by = $5, cancellation_reason = $6,
		    version = $7, updated_at = $8
		WHERE id = $1::uuid AND status = $2 AND version = $9`,
		id, string(expected), string(next.Status), next.Prescription, next.CancelledBy,
		next.CancellationReason, next.Version, next.UpdatedAt, current.Version,
	)
	if err != nil {
		return nil, classify("update appointment", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperr.E(apperr.KindInvalidTransition,
			"appointment %s changed concurrently; expected %s", id, expected)
	}
	return next, nil
}

func (s *PostgresStore) Query(ctx context.Context, filter Filter) iter.Seq2[*Appointment, error] {
	return func(yield func(*Appointment, error) bool) {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		rows, err := s.db.Query(ctx, `
			SELECT `+appointmentColumns+`
			FROM appointments
			WHERE ($1::text = '' OR patient_id = NULLIF($1::text, '')::uuid)
			  AND ($2::text = '' OR doctor_id = NULLIF($2::text, '')::uuid)
			  AND (cardinality($3::text[]) = 0 OR status = ANY($3::text[]))
			  AND ($4::date IS NULL OR appt_date >= $4::date)
			  AND ($5::date IS NULL OR appt_date <= $5::date)
			ORDER BY appt_date, slot_minute, id`,
			filter.PatientID, filter.DoctorID, statuses, optionalDate(filter.From), optionalDate(filter.To),
		)
		if err != nil {
			yield(nil, classify("query appointments", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			a, err := scanAppointment(rows)
			if err != nil {
				yield(nil, classify("scan appointment", err))
				return
			}
			if filter.Match != nil && !filter.Match(a) {
				continue
			}
			if !yield(a, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, classify("query appointments", err))
		}
	}
}

// withRetry reruns op while Postgres reports serialization, deadlock or
// lock-timeout failures. Other errors return immediately.
func (s *PostgresStore) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt < s.attempts; attempt++ {
		if err = fn(); err == nil || !contended(err) {
			return err
		}
		delay := s.baseDelay << attempt
		s.logger.Debug("appointments: retrying after lock contention", "op", op, "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func contended(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}

// classify maps driver errors to the taxonomy. Connection-level failures
// and exhausted contention become unavailable. Ids that do not parse as
// UUIDs cannot name a stored row.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "22P02" {
			return apperr.Wrap(apperr.KindNotFound, err, "appointments: "+op+": no such record")
		}
		if strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P") || contended(err) {
			return apperr.Wrap(apperr.KindUnavailable, err, "appointments: "+op)
		}
		return fmt.Errorf("appointments: %s: %w", op, err)
	}
	return apperr.Wrap(apperr.KindUnavailable, err, "appointments: "+op)
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a          Appointment
		date       time.Time
		slotMinute int
		typ        string
		status     string
	)
	if err := row.Scan(
		&a.ID, &a.PatientID, &a.DoctorID, &date, &slotMinute, &typ, &status,
		&a.Symptoms, &a.Notes, &a.Prescription, &a.ConsultationFee, &a.PatientName, &a.DoctorName,
		&a.DoctorSpecialization, &a.CancelledBy, &a.CancellationReason, &a.Version, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Date = civil.DateOf(date)
	a.Time = calendar.Clock(slotMinute)
	a.Type = Type(typ)
	a.Status = Status(status)
	return &a, nil
}

func dateParam(d civil.Date) time.Time {
	return d.In(time.UTC)
}

func optionalDate(d civil.Date) *time.Time {
	if d == (civil.Date{}) {
		return nil
	}
	t := dateParam(d)
	return &t
}
