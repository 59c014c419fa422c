package offlinestore

import (
	"context"
	"sync"

	"github.com/samirrijal/mapsync/internal/core/domain"
	"github.com/samirrijal/mapsync/internal/core/ports"
)

// MemoryRepo is a RegionRepository kept in process memory.
type MemoryRepo struct {
	mu      sync.Mutex
	next    int64
	records []ports.StoredRegion
}

// NewMemoryRepo creates an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

// Insert implements ports.RegionRepository.
func (m *MemoryRepo) Insert(ctx context.Context, def domain.OfflineRegionDefinition, metadata []byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.records = append(m.records, ports.StoredRegion{ID: m.next, Definition: def, Metadata: clone(metadata)})
	return m.next, nil
}

// List implements ports.RegionRepository. Records come back in insertion order.
func (m *MemoryRepo) List(ctx context.Context) ([]ports.StoredRegion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ports.StoredRegion, len(m.records))
	for i, r := range m.records {
		r.Metadata = clone(r.Metadata)
		out[i] = r
	}
	return out, nil
}

// UpdateMetadata implements ports.RegionRepository.
func (m *MemoryRepo) UpdateMetadata(ctx context.Context, id int64, metadata []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == id {
			m.records[i].Metadata = clone(metadata)
			return nil
		}
	}
	return domain.ErrRegionNotFound
}

// MarkComplete implements ports.RegionRepository.
func (m *MemoryRepo) MarkComplete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == id {
			m.records[i].Complete = true
			return nil
		}
	}
	return domain.ErrRegionNotFound
}

// Delete implements ports.RegionRepository.
func (m *MemoryRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return domain.ErrRegionNotFound
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
