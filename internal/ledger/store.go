package ledger

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when a requested entry does not exist.
var ErrNotFound = errors.New("ledger entry not found")

// Store is durable persistence for entries. The contract is append-only: no
// implementation exposes an update or delete operation. Sequence assignment
// and chain state live in Ledger, not here; a Store only persists what it is
// handed and reads it back in sequence order.
type Store interface {
	Append(ctx context.Context, e Entry) error
	Range(ctx context.Context, fromSeq, toSeq uint64) ([]Entry, error)
	ByProject(ctx context.Context, projectID string) ([]Entry, error)
	Last(ctx context.Context) (Entry, bool, error)
	Len(ctx context.Context) (uint64, error)
	Close() error
}

// MemoryStore keeps entries in process memory. It backs tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make([]Entry, 0)}
}

func (m *MemoryStore) Append(ctx context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return ctx.Err()
}

func (m *MemoryStore) Range(_ context.Context, fromSeq, toSeq uint64) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0)
	for _, e := range m.entries {
		if e.Seq >= fromSeq && e.Seq <= toSeq {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryStore) ByProject(_ context.Context, projectID string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0)
	for _, e := range m.entries {
		if e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryStore) Last(_ context.Context) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.entries) == 0 {
		return Entry{}, false, nil
	}
	return m.entries[len(m.entries)-1], true, nil
}

func (m *MemoryStore) Len(_ context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.entries)), nil
}

func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)

// Corrupt overwrites a stored payload byte. Test hook only: the public Store
// surface has no mutation, and the ledger must detect this on verify.
func (m *MemoryStore) Corrupt(seq uint64, b byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].Seq == seq && len(m.entries[i].Payload) > 0 {
			raw := append([]byte(nil), m.entries[i].Payload...)
			raw[len(raw)/2] = b
			m.entries[i].Payload = raw
			return
		}
	}
}
