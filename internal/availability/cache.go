package availability

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/ayurwell-scheduler/internal/directory"
)

// Cache holds doctors' weekly windows. Each doctor has a generation that
// Invalidate bumps; Store only writes when the generation it was handed is
// still current, so a read that raced an availability change cannot
// repopulate the cache with the old windows.
type Cache interface {
	Load(ctx context.Context, doctorID string) (windows []directory.WeeklyWindow, generation int64, hit bool, err error)
	Store(ctx context.Context, doctorID string, generation int64, windows []directory.WeeklyWindow) error
	Invalidate(ctx context.Context, doctorID string) error
}

// NoopCache never hits.
type NoopCache struct{}

func (NoopCache) Load(context.Context, string) ([]directory.WeeklyWindow, int64, bool, error) {
	return nil, 0, false, nil
}

func (NoopCache) Store(context.Context, string, int64, []directory.WeeklyWindow) error { return nil }

func (NoopCache) Invalidate(context.Context, string) error { return nil }

type memoryEntry struct {
	windows   []directory.WeeklyWindow
	expiresAt time.Time
}

// MemoryCache is a process-local Cache with a TTL.
type MemoryCache struct {
	mu          sync.Mutex
	ttl         time.Duration
	now         func() time.Time
	entries     map[string]memoryEntry
	generations map[string]int64
}

// NewMemoryCache creates a cache whose entries live for ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:         ttl,
		now:         time.Now,
		entries:     make(map[string]memoryEntry),
		generations: make(map[string]int64),
	}
}

func (c *MemoryCache) Load(_ context.Context, doctorID string) ([]directory.WeeklyWindow, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.generations[doctorID]
	entry, ok := c.entries[doctorID]
	if !ok {
		return nil, gen, false, nil
	}
	if c.ttl > 0 && c.now().After(entry.expiresAt) {
		delete(c.entries, doctorID)
		return nil, gen, false, nil
	}
	return append([]directory.WeeklyWindow(nil), entry.windows...), gen, true, nil
}

func (c *MemoryCache) Store(_ context.Context, doctorID string, generation int64, windows []directory.WeeklyWindow) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[doctorID] != generation {
		return nil
	}
	c.entries[doctorID] = memoryEntry{
		windows:   append([]directory.WeeklyWindow(nil), windows...),
		expiresAt: c.now().Add(c.ttl),
	}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, doctorID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[doctorID]++
	delete(c.entries, doctorID)
	return nil
}
