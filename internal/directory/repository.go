package directory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/ayurwell-scheduler/internal/apperr"
)

// DoctorFilter narrows ListDoctors. The zero value lists verified doctors.
type DoctorFilter struct {
	// Query matches name or specialization, case-insensitively.
	Query             string
	Specialization    string
	IncludeUnverified bool
	UnverifiedOnly    bool
}

func (f DoctorFilter) matches(d *Doctor) bool {
	if f.UnverifiedOnly {
		if d.Verified {
			return false
		}
	} else if !d.Verified && !f.IncludeUnverified {
		return false
	}
	if f.Specialization != "" && !strings.EqualFold(d.Specialization, f.Specialization) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(d.Name), q) && !strings.Contains(strings.ToLower(d.Specialization), q) {
			return false
		}
	}
	return true
}

// Repository persists directory records.
type Repository interface {
	CreateDoctor(ctx context.Context, d *Doctor) error
	CreatePatient(ctx context.Context, p *Patient) error
	GetDoctor(ctx context.Context, id string) (*Doctor, error)
	GetPatient(ctx context.Context, id string) (*Patient, error)
	ListDoctors(ctx context.Context, filter DoctorFilter) ([]*Doctor, error)
	// The doctor setters write a single column plus updated_at and return
	// the stored record, so concurrent edits of different fields never
	// overwrite each other.
	SetDoctorVerified(ctx context.Context, id string, at time.Time) (*Doctor, error)
	SetDoctorAvailability(ctx context.Context, id string, windows []WeeklyWindow, at time.Time) (*Doctor, error)
	SetConsultationFee(ctx context.Context, id string, fee int64, at time.Time) (*Doctor, error)
	UpdatePatient(ctx context.Context, p *Patient) error
}

// InMemoryRepository keeps records in maps guarded by a read-write lock.
// Records are copied on the way in and out.
type InMemoryRepository struct {
	mu       sync.RWMutex
	doctors  map[string]*Doctor
	patients map[string]*Patient
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		doctors:  make(map[string]*Doctor),
		patients: make(map[string]*Patient),
	}
}

func (r *InMemoryRepository) CreateDoctor(ctx context.Context, d *Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.doctors[d.ID]; exists {
		return apperr.E(apperr.KindInvalidInput, "doctor %s already exists", d.ID)
	}
	r.doctors[d.ID] = cloneDoctor(d)
	return nil
}

func (r *InMemoryRepository) CreatePatient(ctx context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.patients[p.ID]; exists {
		return apperr.E(apperr.KindInvalidInput, "patient %s already exists", p.ID)
	}
	r.patients[p.ID] = clonePatient(p)
	return nil
}

func (r *InMemoryRepository) GetDoctor(ctx context.Context, id string) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, apperr.E(apperr.KindNotFound, "doctor %s not found", id)
	}
	return cloneDoctor(d), nil
}

func (r *InMemoryRepository) GetPatient(ctx context.Context, id string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, apperr.E(apperr.KindNotFound, "patient %s not found", id)
	}
	return clonePatient(p), nil
}

func (r *InMemoryRepository) ListDoctors(ctx context.Context, filter DoctorFilter) ([]*Doctor, error) {
	r.mu.RLock()
	out := make([]*Doctor, 0, len(r.doctors))
	for _, d := range r.doctors {
		if filter.matches(d) {
			out = append(out, cloneDoctor(d))
		}
	}
	r.mu.RUnlock()
	sortDoctors(out)
	return out, nil
}

func (r *InMemoryRepository) SetDoctorVerified(ctx context.Context, id string, at time.Time) (*Doctor, error) {
	return r.modifyDoctor(id, at, func(d *Doctor) { d.Verified = true })
}

func (r *InMemoryRepository) SetDoctorAvailability(ctx context.Context, id string, windows []WeeklyWindow, at time.Time) (*Doctor, error) {
	windows = append([]WeeklyWindow(nil), windows...)
	return r.modifyDoctor(id, at, func(d *Doctor) { d.Availability = windows })
}

func (r *InMemoryRepository) SetConsultationFee(ctx context.Context, id string, fee int64, at time.Time) (*Doctor, error) {
	return r.modifyDoctor(id, at, func(d *Doctor) { d.ConsultationFee = fee })
}

// modifyDoctor applies fn to the stored record under the write lock.
func (r *InMemoryRepository) modifyDoctor(id string, at time.Time, fn func(*Doctor)) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, apperr.E(apperr.KindNotFound, "doctor %s not found", id)
	}
	fn(d)
	d.UpdatedAt = at
	return cloneDoctor(d), nil
}

func (r *InMemoryRepository) UpdatePatient(ctx context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patients[p.ID]; !ok {
		return apperr.E(apperr.KindNotFound, "patient %s not found", p.ID)
	}
	r.patients[p.ID] = clonePatient(p)
	return nil
}

func sortDoctors(ds []*Doctor) {
	sort.Slice(ds, func(i, j int) bool {
		if ds[i].Name != ds[j].Name {
			return ds[i].Name < ds[j].Name
		}
		return ds[i].ID < ds[j].ID
	})
}
