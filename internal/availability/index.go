// Package availability answers whether a doctor's recurring weekly hours
// cover a slot. It does not look at bookings.
package availability

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/wolfman30/ayurwell-scheduler/internal/apperr"
	"github.com/wolfman30/ayurwell-scheduler/internal/calendar"
	"github.com/wolfman30/ayurwell-scheduler/internal/directory"
	"github.com/wolfman30/ayurwell-scheduler/pkg/logging"
)

// DoctorSource is the slice of the directory the index reads.
type DoctorSource interface {
	GetDoctor(ctx context.Context, id string) (*directory.Doctor, error)
}

// Index evaluates slots against weekly windows, read through a Cache.
type Index struct {
	doctors     DoctorSource
	cache       Cache
	granularity time.Duration
	logger      *logging.Logger
}

// Option customises an Index.
type Option func(*Index)

// WithCache sets the window cache. The default never caches.
func WithCache(c Cache) Option {
	return func(i *Index) {
		if c != nil {
			i.cache = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(i *Index) {
		if l != nil {
			i.logger = l
		}
	}
}

// NewIndex builds an index for slots of the given granularity.
func NewIndex(doctors DoctorSource, granularity time.Duration, opts ...Option) (*Index, error) {
	if doctors == nil {
		return nil, fmt.Errorf("availability: doctor source required")
	}
	if err := calendar.ValidateGranularity(granularity); err != nil {
		return nil, err
	}
	idx := &Index{
		doctors:     doctors,
		cache:       NoopCache{},
		granularity: granularity,
		logger:      logging.Default(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

// Granularity is the slot length.
func (i *Index) Granularity() time.Duration { return i.granularity }

// IsAvailable reports whether t on date falls inside one of the doctor's
// windows for that weekday. A t not on a slot boundary is InvalidSlot.
func (i *Index) IsAvailable(ctx context.Context, doctorID string, date civil.Date, t calendar.Clock) (bool, error) {
	if !t.Valid() || !t.Aligned(i.granularity) {
		return false, apperr.E(apperr.KindInvalidSlot, "time %s is not aligned to %s slots", t, i.granularity)
	}
	windows, err := i.windows(ctx, doctorID)
	if err != nil {
		return false, err
	}
	day := calendar.Weekday(date)
	for _, w := range windows {
		if w.Contains(day, t) {
			return true, nil
		}
	}
	return false, nil
}

// SlotsOn lists every slot start on date covered by the doctor's windows,
// in ascending order.
func (i *Index) SlotsOn(ctx context.Context, doctorID string, date civil.Date) ([]calendar.Clock, error) {
	windows, err := i.windows(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	day := calendar.Weekday(date)
	var slots []calendar.Clock
	for t := calendar.Clock(0); t.Valid(); t = t.Add(i.granularity) {
		for _, w := range windows {
			if w.Contains(day, t) {
				slots = append(slots, t)
				break
			}
		}
	}
	return slots, nil
}

// InvalidateDoctor drops cached windows; directory writes call it.
func (i *Index) InvalidateDoctor(ctx context.Context, doctorID string) error {
	return i.cache.Invalidate(ctx, doctorID)
}

func (i *Index) windows(ctx context.Context, doctorID string) ([]directory.WeeklyWindow, error) {
	windows, gen, hit, err := i.cache.Load(ctx, doctorID)
	if err != nil {
		i.logger.Warn("availability cache load failed", "doctor_id", doctorID, "error", err)
		return i.fromDirectory(ctx, doctorID)
	}
	if hit {
		return windows, nil
	}

	windows, err = i.fromDirectory(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if err := i.cache.Store(ctx, doctorID, gen, windows); err != nil {
		i.logger.Warn("availability cache store failed", "doctor_id", doctorID, "error", err)
	}
	return windows, nil
}

func (i *Index) fromDirectory(ctx context.Context, doctorID string) ([]directory.WeeklyWindow, error) {
	d, err := i.doctors.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return d.Availability, nil
}
