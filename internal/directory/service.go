package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/ayurwell-scheduler/internal/apperr"
	"github.com/wolfman30/ayurwell-scheduler/pkg/logging"
)

// AvailabilityInvalidator drops cached availability for a doctor.
type AvailabilityInvalidator interface {
	InvalidateDoctor(ctx context.Context, doctorID string) error
}

// Service is the identity directory: registration, lookup and the
// self-service edits doctors and patients make to their own records.
type Service struct {
	repo        Repository
	invalidator AvailabilityInvalidator
	logger      *logging.Logger
	now         func() time.Time
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithAvailabilityInvalidator registers the cache to clear on availability writes.
func WithAvailabilityInvalidator(inv AvailabilityInvalidator) ServiceOption {
	return func(s *Service) { s.invalidator = inv }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the directory service.
func NewService(repo Repository, logger *logging.Logger, opts ...ServiceOption) *Service {
	if repo == nil {
		panic("directory: repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{repo: repo, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repository exposes the underlying store for read-only collaborators.
func (s *Service) Repository() Repository { return s.repo }

// RegisterDoctor stores a new, unverified doctor.
func (s *Service) RegisterDoctor(ctx context.Context, req RegisterDoctorRequest) (*Doctor, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	d := &Doctor{
		ID:              uuid.New().String(),
		Name:            strings.TrimSpace(req.Name),
		Email:           strings.TrimSpace(req.Email),
		Phone:           strings.TrimSpace(req.Phone),
		Specialization:  strings.TrimSpace(req.Specialization),
		ExperienceYears: req.ExperienceYears,
		Qualifications:  req.Qualifications,
		About:           req.About,
		ConsultationFee: req.ConsultationFee,
		Availability:    req.Availability,
		Verified:        false,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.CreateDoctor(ctx, d); err != nil {
		return nil, fmt.Errorf("directory: register doctor: %w", err)
	}
	s.logger.Info("doctor registered", "doctor_id", d.ID, "specialization", d.Specialization)
	return d, nil
}

// RegisterPatient stores a new patient.
func (s *Service) RegisterPatient(ctx context.Context, profile PatientProfile) (*Patient, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p := &Patient{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyProfile(p, profile)
	if err := s.repo.CreatePatient(ctx, p); err != nil {
		return nil, fmt.Errorf("directory: register patient: %w", err)
	}
	s.logger.Info("patient registered", "patient_id", p.ID)
	return p, nil
}

func (s *Service) GetDoctor(ctx context.Context, id string) (*Doctor, error) {
	return s.repo.GetDoctor(ctx, id)
}

func (s *Service) GetPatient(ctx context.Context, id string) (*Patient, error) {
	return s.repo.GetPatient(ctx, id)
}

// GetUser resolves an id to whichever role owns it.
func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	p, err := s.repo.GetPatient(ctx, id)
	if err == nil {
		return User{Role: RolePatient, Patient: p}, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return User{}, err
	}
	d, err := s.repo.GetDoctor(ctx, id)
	if err == nil {
		return User{Role: RoleDoctor, Doctor: d}, nil
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return User{}, apperr.E(apperr.KindNotFound, "user %s not found", id)
	}
	return User{}, err
}

// ListDoctors returns doctors ordered by name then id. Unverified doctors
// are hidden unless the filter asks for them.
func (s *Service) ListDoctors(ctx context.Context, filter DoctorFilter) ([]*Doctor, error) {
	return s.repo.ListDoctors(ctx, filter)
}

// ApproveDoctor flips the verification flag. Approving twice is a no-op.
// Only the verified column is written, so an availability or fee edit
// racing with approval survives it.
func (s *Service) ApproveDoctor(ctx context.Context, id string) (*Doctor, error) {
	d, err := s.repo.GetDoctor(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Verified {
		return d, nil
	}
	d, err = s.repo.SetDoctorVerified(ctx, id, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("directory: approve doctor: %w", err)
	}
	// Slots of an unverified doctor may have been cached by a direct lookup.
	_ = s.invalidate(ctx, id)
	s.logger.Info("doctor approved", "doctor_id", d.ID)
	return d, nil
}

// UpdateAvailability replaces a doctor's weekly windows. Only the doctor may
// do this. Cached availability is dropped before the call returns.
func (s *Service) UpdateAvailability(ctx context.Context, doctorID, actorID string, windows []WeeklyWindow) (*Doctor, error) {
	if actorID != doctorID {
		return nil, apperr.E(apperr.KindForbidden, "only the doctor may change their availability")
	}
	if err := ValidateAvailability(windows); err != nil {
		return nil, err
	}

	s.invalidate(ctx, doctorID)
	d, err := s.repo.SetDoctorAvailability(ctx, doctorID, windows, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("directory: update availability: %w", err)
	}
	if err := s.invalidate(ctx, doctorID); err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "directory: availability saved but cache invalidation failed")
	}
	s.logger.Info("doctor availability updated", "doctor_id", doctorID, "windows", len(windows))
	return d, nil
}

// UpdateConsultationFee changes the fee charged on future bookings only.
func (s *Service) UpdateConsultationFee(ctx context.Context, doctorID, actorID string, fee int64) (*Doctor, error) {
	if actorID != doctorID {
		return nil, apperr.E(apperr.KindForbidden, "only the doctor may change their fee")
	}
	if fee <= 0 {
		return nil, apperr.E(apperr.KindInvalidInput, "consultation fee must be positive")
	}
	d, err := s.repo.SetConsultationFee(ctx, doctorID, fee, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("directory: update fee: %w", err)
	}
	s.logger.Info("doctor fee updated", "doctor_id", doctorID, "fee", fee)
	return d, nil
}

// UpdatePatientProfile replaces the editable profile fields. Only the
// patient may edit their own profile.
func (s *Service) UpdatePatientProfile(ctx context.Context, patientID, actorID string, profile PatientProfile) (*Patient, error) {
	if actorID != patientID {
		return nil, apperr.E(apperr.KindForbidden, "only the patient may edit their profile")
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	p, err := s.repo.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	applyProfile(p, profile)
	p.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdatePatient(ctx, p); err != nil {
		return nil, fmt.Errorf("directory: update patient: %w", err)
	}
	return p, nil
}

func (s *Service) invalidate(ctx context.Context, doctorID string) error {
	if s.invalidator == nil {
		return nil
	}
	if err := s.invalidator.InvalidateDoctor(ctx, doctorID); err != nil {
		s.logger.Warn("availability cache invalidation failed", "doctor_id", doctorID, "error", err)
		return err
	}
	return nil
}

func applyProfile(p *Patient, profile PatientProfile) {
	p.Name = strings.TrimSpace(profile.Name)
	p.Email = strings.TrimSpace(profile.Email)
	p.Phone = strings.TrimSpace(profile.Phone)
	p.Age = profile.Age
	p.Gender = profile.Gender
	p.MedicalHistory = profile.MedicalHistory
}
