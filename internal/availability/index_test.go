package availability

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/wolfman30/ayurwell-scheduler/internal/apperr"
	"github.com/wolfman30/ayurwell-scheduler/internal/calendar"
	"github.com/wolfman30/ayurwell-scheduler/internal/directory"
)

// 2026-10-19 is a Monday.
var monday = civil.Date{Year: 2026, Month: time.October, Day: 19}

type countingSource struct {
	doctors map[string]*directory.Doctor
	reads   atomic.Int32
}

func (s *countingSource) GetDoctor(ctx context.Context, id string) (*directory.Doctor, error) {
	s.reads.Add(1)
	d, ok := s.doctors[id]
	if !ok {
		return nil, apperr.E(apperr.KindNotFound, "doctor %s not found", id)
	}
	copied := *d
	copied.Availability = append([]directory.WeeklyWindow(nil), d.Availability...)
	return &copied, nil
}

func newSource() *countingSource {
	return &countingSource{doctors: map[string]*directory.Doctor{
		"dr-a": {
			ID: "dr-a",
			Availability: []directory.WeeklyWindow{
				{Day: directory.Weekday(time.Monday), Start: calendar.MustClock("09:00"), End: calendar.MustClock("17:00")},
				{Day: directory.Weekday(time.Wednesday), Start: calendar.MustClock("09:00"), End: calendar.MustClock("12:00")},
			},
		},
	}}
}

func TestIsAvailable(t *testing.T) {
	idx, err := NewIndex(newSource(), time.Hour)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	ctx := context.Background()

	tests := []struct {
		name string
		date civil.Date
		at   string
		want bool
	}{
		{"start of window", monday, "09:00", true},
		{"inside window", monday, "10:00", true},
		{"last slot", monday, "16:00", true},
		{"window end is exclusive", monday, "17:00", false},
		{"before window", monday, "08:00", false},
		{"other weekday", monday.AddDays(1), "10:00", false},
		{"wednesday", monday.AddDays(2), "11:00", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := idx.IsAvailable(ctx, "dr-a", tt.date, calendar.MustClock(tt.at))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestIsAvailableErrors(t *testing.T) {
	idx, _ := NewIndex(newSource(), time.Hour)
	ctx := context.Background()

	if _, err := idx.IsAvailable(ctx, "dr-a", monday, calendar.MustClock("10:30")); !errors.Is(err, apperr.ErrInvalidSlot) {
		t.Fatalf("expected invalid slot, got %v", err)
	}
	if _, err := idx.IsAvailable(ctx, "nobody", monday, calendar.MustClock("10:00")); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNewIndexRejectsBadGranularity(t *testing.T) {
	if _, err := NewIndex(newSource(), 45*time.Second); err == nil {
		t.Fatalf("expected granularity error")
	}
	if _, err := NewIndex(nil, time.Hour); err == nil {
		t.Fatalf("expected missing source error")
	}
}

func TestSlotsOn(t *testing.T) {
	idx, _ := NewIndex(newSource(), 30*time.Minute)
	slots, err := idx.SlotsOn(context.Background(), "dr-a", monday.AddDays(2))
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	want := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %v", len(want), slots)
	}
	for i, s := range slots {
		if s.String() != want[i] {
			t.Fatalf("slot %d: expected %s, got %s", i, want[i], s)
		}
	}

	none, _ := idx.SlotsOn(context.Background(), "dr-a", monday.AddDays(5))
	if len(none) != 0 {
		t.Fatalf("expected no slots on saturday, got %v", none)
	}
}

func TestCacheIsReadThroughAndInvalidated(t *testing.T) {
	src := newSource()
	idx, _ := NewIndex(src, time.Hour, WithCache(NewMemoryCache(time.Minute)))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if ok, _ := idx.IsAvailable(ctx, "dr-a", monday, calendar.MustClock("10:00")); !ok {
			t.Fatalf("expected available")
		}
	}
	if src.reads.Load() != 1 {
		t.Fatalf("expected a single directory read, got %d", src.reads.Load())
	}

	src.doctors["dr-a"].Availability = []directory.WeeklyWindow{
		{Day: directory.Weekday(time.Monday), Start: calendar.MustClock("13:00"), End: calendar.MustClock("15:00")},
	}
	if err := idx.InvalidateDoctor(ctx, "dr-a"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if ok, _ := idx.IsAvailable(ctx, "dr-a", monday, calendar.MustClock("10:00")); ok {
		t.Fatalf("expected new availability to apply after invalidation")
	}
}

func TestMemoryCacheRejectsStaleStore(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	ctx := context.Background()
	_, gen, _, _ := cache.Load(ctx, "dr-a")

	_ = cache.Invalidate(ctx, "dr-a")
	stale := []directory.WeeklyWindow{{Day: directory.Weekday(time.Monday), Start: 0, End: 60}}
	_ = cache.Store(ctx, "dr-a", gen, stale)

	if _, _, hit, _ := cache.Load(ctx, "dr-a"); hit {
		t.Fatalf("store with an old generation must not populate the cache")
	}
}

func TestMemoryCacheExpires(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	now := time.Now()
	cache.now = func() time.Time { return now }
	ctx := context.Background()
	_ = cache.Store(ctx, "dr-a", 0, nil)
	if _, _, hit, _ := cache.Load(ctx, "dr-a"); !hit {
		t.Fatalf("expected hit before ttl")
	}
	now = now.Add(2 * time.Minute)
	if _, _, hit, _ := cache.Load(ctx, "dr-a"); hit {
		t.Fatalf("expected miss after ttl")
	}
}

type failingCache struct{ NoopCache }

func (failingCache) Load(context.Context, string) ([]directory.WeeklyWindow, int64, bool, error) {
	return nil, 0, false, errors.New("cache offline")
}

func TestCacheFailureFallsBackToDirectory(t *testing.T) {
	idx, _ := NewIndex(newSource(), time.Hour, WithCache(failingCache{}))
	ok, err := idx.IsAvailable(context.Background(), "dr-a", monday, calendar.MustClock("09:00"))
	if err != nil || !ok {
		t.Fatalf("expected directory fallback, got %v %v", ok, err)
	}
}
