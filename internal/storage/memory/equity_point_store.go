package memory

import (
	"context"
	"sort"
	"sync"

	"smc-lab/internal/domain"
	"smc-lab/internal/storage"
)

// equityKey is the composite key of an equity point.
type equityKey struct {
	runID       string
	timestampMs int64
}

// EquityPointStore is an in-memory implementation of storage.EquityPointStore.
type EquityPointStore struct {
	mu   sync.RWMutex
	data map[equityKey]*domain.EquityPoint
}

// NewEquityPointStore creates a new in-memory equity point store.
func NewEquityPointStore() *EquityPointStore {
	return &EquityPointStore{
		data: make(map[equityKey]*domain.EquityPoint),
	}
}

// InsertBulk adds multiple points. Fails entire batch on duplicate (run_id, timestamp_ms).
func (s *EquityPointStore) InsertBulk(_ context.Context, points []*domain.EquityPoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: check for duplicates (existing + intra-batch)
	batchKeys := make(map[equityKey]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.RunID == "" {
			return storage.ErrInvalidInput
		}
		key := equityKey{runID: p.RunID, timestampMs: p.TimestampMs}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, p := range points {
		copy := *p
		s.data[equityKey{runID: p.RunID, timestampMs: p.TimestampMs}] = &copy
	}

	return nil
}

// GetByRunID retrieves the equity curve of a run, ordered by timestamp ASC.
func (s *EquityPointStore) GetByRunID(_ context.Context, runID string) ([]*domain.EquityPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EquityPoint
	for _, p := range s.data {
		if p.RunID == runID {
			copy := *p
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

var _ storage.EquityPointStore = (*EquityPointStore)(nil)
