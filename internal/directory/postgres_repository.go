package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/ayurwell-scheduler/internal/apperr"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores doctors and patients in Postgres.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository initializes a repo backed by a pgx pool or connection.
func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("directory: pgx db required")
	}
	return &PostgresRepository{db: db}
}

const doctorColumns = `id::text, name, email, phone, specialization, experience_years,
	COALESCE(qualifications, '{}'), about, consultation_fee, availability, verified, created_at, updated_at`

const patientColumns = `id::text, name, email, phone, age, gender,
	COALESCE(medical_history, '{}'), created_at, updated_at`

func (r *PostgresRepository) CreateDoctor(ctx context.Context, d *Doctor) error {
	availability, err := json.Marshal(d.Availability)
	if err != nil {
		return fmt.Errorf("directory: encode availability: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO doctors (id, name, email, phone, specialization, experience_years, qualifications, about, consultation_fee, availability, verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		d.ID, d.Name, d.Email, d.Phone, d.Specialization, d.ExperienceYears, d.Qualifications,
		d.About, d.ConsultationFee, availability, d.Verified, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return classify("insert doctor", err)
	}
	return nil
}

func (r *PostgresRepository) CreatePatient(ctx context.Context, p *Patient) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO patients (id, name, email, phone, age, gender, medical_history, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.Name, p.Email, p.Phone, p.Age, p.Gender, p.MedicalHistory, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return classify("insert patient", err)
	}
	return nil
}

func (r *PostgresRepository) GetDoctor(ctx context.Context, id string) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1::uuid`, id)
	d, err := scanDoctor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.E(apperr.KindNotFound, "doctor %s not found", id)
		}
		return nil, classify("select doctor", err)
	}
	return d, nil
}

func (r *PostgresRepository) GetPatient(ctx context.Context, id string) (*Patient, error) {
	row := r.db.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1::uuid`, id)
	p, err := scanPatient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.E(apperr.KindNotFound, "patient %s not found", id)
		}
		return nil, classify("select patient", err)
	}
	return p, nil
}

func (r *PostgresRepository) ListDoctors(ctx context.Context, filter DoctorFilter) ([]*Doctor, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors
		WHERE ($1 OR verified)
		  AND (NOT $2 OR NOT verified)
		  AND ($3 = '' OR lower(specialization) = lower($3))
		  AND ($4 = '' OR name ILIKE '%' || $4 || '%' OR specialization ILIKE '%' || $4 || '%')
		ORDER BY name, id`,
		filter.IncludeUnverified || filter.UnverifiedOnly, filter.UnverifiedOnly, filter.Specialization, filter.Query,
	)
	if err != nil {
		return nil, classify("list doctors", err)
	}
	defer rows.Close()

	var out []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, classify("scan doctor", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list doctors", err)
	}
	return out, nil
}

func (r *PostgresRepository) SetDoctorVerified(ctx context.Context, id string, at time.Time) (*Doctor, error) {
	return r.updateDoctor(ctx, "approve doctor", id,
		`UPDATE doctors SET verified = true, updated_at = $2 WHERE id = $1::uuid RETURNING `+doctorColumns,
		id, at)
}

func (r *PostgresRepository) SetDoctorAvailability(ctx context.Context, id string, windows []WeeklyWindow, at time.Time) (*Doctor, error) {
	if windows == nil {
		windows = []WeeklyWindow{}
	}
	availability, err := json.Marshal(windows)
	if err != nil {
		return nil, fmt.Errorf("directory: encode availability: %w", err)
	}
	return r.updateDoctor(ctx, "update availability", id,
		`UPDATE doctors SET availability = $2, updated_at = $3 WHERE id = $1::uuid RETURNING `+doctorColumns,
		id, availability, at)
}

func (r *PostgresRepository) SetConsultationFee(ctx context.Context, id string, fee int64, at time.Time) (*Doctor, error) {
	return r.updateDoctor(ctx, "update fee", id,
		`UPDATE doctors SET consultation_fee = $2, updated_at = $3 WHERE id = $1::uuid RETURNING `+doctorColumns,
		id, fee, at)
}

func (r *PostgresRepository) updateDoctor(ctx context.Context, op, id, sql string, args ...any) (*Doctor, error) {
	d, err := scanDoctor(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.E(apperr.KindNotFound, "doctor %s not found", id)
		}
		return nil, classify(op, err)
	}
	return d, nil
}

func (r *PostgresRepository) UpdatePatient(ctx context.Context, p *Patient) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE patients
		SET name = $2, email = $3, phone = $4, age = $5, gender = $6, medical_history = $7, updated_at = $8
		WHERE id = $1::uuid`,
		p.ID, p.Name, p.Email, p.Phone, p.Age, p.Gender, p.MedicalHistory, p.UpdatedAt,
	)
	if err != nil {
		return classify("update patient", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.E(apperr.KindNotFound, "patient %s not found", p.ID)
	}
	return nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var (
		d            Doctor
		availability []byte
	)
	if err := row.Scan(
		&d.ID, &d.Name, &d.Email, &d.Phone, &d.Specialization, &d.ExperienceYears,
		&d.Qualifications, &d.About, &d.ConsultationFee, &availability, &d.Verified,
		&d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(availability) > 0 {
		if err := json.Unmarshal(availability, &d.Availability); err != nil {
			return nil, fmt.Errorf("decode availability for %s: %w", d.ID, err)
		}
	}
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	if err := row.Scan(
		&p.ID, &p.Name, &p.Email, &p.Phone, &p.Age, &p.Gender,
		&p.MedicalHistory, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

// classify maps driver failures onto the error taxonomy. Unique violations
// are caller errors. An id that is not a UUID cannot name any record.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return apperr.Wrap(apperr.KindInvalidInput, err, "directory: "+op+": duplicate record")
		case "22P02":
			return apperr.Wrap(apperr.KindNotFound, err, "directory: "+op+": no such record")
		}
	}
	return apperr.Wrap(apperr.KindUnavailable, err, "directory: "+op)
}
