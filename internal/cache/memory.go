package cache

import (
	"context"
	"sync"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
)

// MemoryTier keeps sets for the lifetime of the process. Entries are never
// evicted; there are at most as many as there are regions.
type MemoryTier struct {
	mu   sync.RWMutex
	sets map[string]*domain.ColumnarSet
}

// NewMemoryTier creates an empty memory tier.
func NewMemoryTier() *MemoryTier {
	return &MemoryTier{sets: make(map[string]*domain.ColumnarSet)}
}

// Name returns "memory".
func (m *MemoryTier) Name() string { return "memory" }

// Durable reports false: entries live only as long as the process.
func (m *MemoryTier) Durable() bool { return false }

// Get returns the set held for region code, if any.
func (m *MemoryTier) Get(_ context.Context, code string) (*domain.ColumnarSet, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.sets[code]
	return set, ok, nil
}

// Put stores set for region code. Entries are never evicted.
func (m *MemoryTier) Put(_ context.Context, code string, set *domain.ColumnarSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[code] = set
	return nil
}

// Len returns the number of regions held.
func (m *MemoryTier) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sets)
}
