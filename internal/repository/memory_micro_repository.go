package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MSSkowron/MicroURL/internal/model"
)

// MemoryMicroRepository implements MicroRepository in process memory.
// Every operation runs inside a single critical section, so each one is atomic.
type MemoryMicroRepository struct {
	mu            sync.RWMutex
	micros        map[string]*model.MicroEntry
	byDestination map[string]string
	now           func() time.Time
}

// NewMemoryMicroRepository creates a new instance of MemoryMicroRepository.
func NewMemoryMicroRepository(opts ...Opt) *MemoryMicroRepository {
	o := applyOpts(opts)
	return &MemoryMicroRepository{
		micros:        make(map[string]*model.MicroEntry),
		byDestination: make(map[string]string),
		now:           o.now,
	}
}

func (m *MemoryMicroRepository) FindByDestination(ctx context.Context, destination string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.liveByDestination(destination)
	if !ok {
		return "", false, nil
	}
	return entry.Code, true, nil
}

func (m *MemoryMicroRepository) Insert(ctx context.Context, entry *model.MicroEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.micros[entry.Code]; ok {
		return ErrMicroCollision
	}
	if _, ok := m.liveByDestination(entry.Destination); ok {
		return ErrDestinationTaken
	}

	stored := *entry
	m.micros[stored.Code] = &stored
	m.byDestination[stored.Destination] = stored.Code

	return nil
}

func (m *MemoryMicroRepository) Lookup(ctx context.Context, code string) (*model.MicroEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.micros[code]
	if !ok || entry.Expired(m.now()) {
		return nil, ErrMicroNotFound
	}

	found := *entry
	return &found, nil
}

func (m *MemoryMicroRepository) IncrementHit(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.micros[code]
	if !ok || entry.Expired(m.now()) {
		return ErrMicroNotFound
	}

	entry.HitCount++
	return nil
}

func (m *MemoryMicroRepository) TopByHits(ctx context.Context, limit int) ([]*model.MicroEntry, error) {
	return m.listPublic(limit, func(a, b *model.MicroEntry) bool {
		if a.HitCount != b.HitCount {
			return a.HitCount > b.HitCount
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Code < b.Code
	}), nil
}

func (m *MemoryMicroRepository) MostRecent(ctx context.Context, limit int) ([]*model.MicroEntry, error) {
	return m.listPublic(limit, func(a, b *model.MicroEntry) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Code < b.Code
	}), nil
}

func (m *MemoryMicroRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for code, entry := range m.micros {
		if entry.ExpiresAt.Unix() >= now.Unix() {
			continue
		}

		delete(m.micros, code)
		if m.byDestination[entry.Destination] == code {
			delete(m.byDestination, entry.Destination)
		}
		deleted++
	}

	return deleted, nil
}

func (m *MemoryMicroRepository) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryMicroRepository) liveByDestination(destination string) (*model.MicroEntry, bool) {
	code, ok := m.byDestination[destination]
	if !ok {
		return nil, false
	}

	entry, ok := m.micros[code]
	if !ok || entry.Expired(m.now()) {
		return nil, false
	}
	return entry, true
}

func (m *MemoryMicroRepository) listPublic(limit int, less func(a, b *model.MicroEntry) bool) []*model.MicroEntry {
	entries := make([]*model.MicroEntry, 0)
	if limit <= 0 {
		return entries
	}

	m.mu.RLock()
	now := m.now()
	for _, entry := range m.micros {
		if entry.Public && !entry.Expired(now) {
			found := *entry
			entries = append(entries, &found)
		}
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return less(entries[i], entries[j]) })

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

var _ MicroRepository = (*MemoryMicroRepository)(nil)
