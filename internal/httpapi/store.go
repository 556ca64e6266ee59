package httpapi

import (
	"context"
	"errors"
	"sync"

	"github.com/yourorg/rdcredit/internal/evidence"
	"github.com/yourorg/rdcredit/internal/review"
)

var ErrProjectNotFound = errors.New("project not found")

// ProjectStore retains the latest evidence, verdict, and review status per
// project for read endpoints. The ledger remains the source of truth for
// history; this store only answers "what is current".
type ProjectStore interface {
	PutProject(ctx context.Context, p evidence.Project) error
	GetProject(ctx context.Context, projectID string) (evidence.Project, error)
	PutVerdict(ctx context.Context, v evidence.Verdict) error
	LatestVerdict(ctx context.Context, projectID string) (evidence.Verdict, bool, error)
	PutReviewStatus(ctx context.Context, projectID string, status review.Status) error
	ReviewStatus(ctx context.Context, projectID string) (review.Status, bool, error)
}

type MemoryProjectStore struct {
	mu       sync.RWMutex
	projects map[string]evidence.Project
	verdicts map[string]evidence.Verdict
	reviews  map[string]review.Status
}

func NewMemoryProjectStore() *MemoryProjectStore {
	return &MemoryProjectStore{
		projects: map[string]evidence.Project{},
		verdicts: map[string]evidence.Verdict{},
		reviews:  map[string]review.Status{},
	}
}

func (m *MemoryProjectStore) PutProject(_ context.Context, p evidence.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
	return nil
}

func (m *MemoryProjectStore) GetProject(_ context.Context, projectID string) (evidence.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[projectID]
	if !ok {
		return evidence.Project{}, ErrProjectNotFound
	}
	return p, nil
}

func (m *MemoryProjectStore) PutVerdict(_ context.Context, v evidence.Verdict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verdicts[v.ProjectID] = v
	// a fresh verdict resets the review cycle to its recommendation
	m.reviews[v.ProjectID] = review.Recommend(v)
	return nil
}

func (m *MemoryProjectStore) LatestVerdict(_ context.Context, projectID string) (evidence.Verdict, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.verdicts[projectID]
	return v, ok, nil
}

func (m *MemoryProjectStore) PutReviewStatus(_ context.Context, projectID string, status review.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviews[projectID] = status
	return nil
}

func (m *MemoryProjectStore) ReviewStatus(_ context.Context, projectID string) (review.Status, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.reviews[projectID]
	return s, ok, nil
}

var _ ProjectStore = (*MemoryProjectStore)(nil)
