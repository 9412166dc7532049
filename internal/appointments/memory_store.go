package appointments

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/ayurwell-scheduler/internal/apperr"
)

type record struct {
	mu   sync.Mutex
	appt *Appointment
}

// MemoryStore is an in-process Store. Slot claims go through a
// LoadOrStore on the slot index, and each appointment has its own mutex,
// so unrelated bookings never contend.
type MemoryStore struct {
	records sync.Map // id -> *record
	slots   sync.Map // SlotKey -> appointment id
	now     func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Create(ctx context.Context, in *Appointment) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, err := prepareNew(in, uuid.New().String(), s.now().UTC())
	if err != nil {
		return nil, err
	}

	if a.Status.Active() {
		if holder, loaded := s.slots.LoadOrStore(a.Slot(), a.ID); loaded {
			return nil, apperr.E(apperr.KindSlotConflict,
				"doctor %s already has appointment %v at %s %s", a.DoctorID, holder, a.Date, a.Time)
		}
	}
	if _, loaded := s.records.LoadOrStore(a.ID, &record{appt: a}); loaded {
		if a.Status.Active() {
			s.slots.CompareAndDelete(a.Slot(), a.ID)
		}
		return nil, apperr.E(apperr.KindInvalidInput, "appointment %s already exists", a.ID)
	}
	return a.Clone(), nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Appointment, error) {
	rec, err := s.load(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.appt.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, expected Status, mutate func(*Appointment) error) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := s.load(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	next, err := applyMutation(rec.appt, expected, mutate, s.now().UTC())
	if err != nil {
		return nil, err
	}
	released := rec.appt.Status.Active() && !next.Status.Active()
	rec.appt = next
	if released {
		s.slots.CompareAndDelete(next.Slot(), next.ID)
	}
	return next.Clone(), nil
}

// Query yields matching appointments in no particular order.
func (s *MemoryStore) Query(ctx context.Context, filter Filter) iter.Seq2[*Appointment, error] {
	return func(yield func(*Appointment, error) bool) {
		s.records.Range(func(_, v any) bool {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return false
			}
			rec := v.(*record)
			rec.mu.Lock()
			snapshot := rec.appt.Clone()
			rec.mu.Unlock()
			if !filter.Matches(snapshot) {
				return true
			}
			return yield(snapshot, nil)
		})
	}
}

func (s *MemoryStore) load(id string) (*record, error) {
	v, ok := s.records.Load(id)
	if !ok {
		return nil, apperr.E(apperr.KindNotFound, "appointment %s not found", id)
	}
	return v.(*record), nil
}
