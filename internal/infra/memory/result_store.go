package memory

import (
	"context"
	"sort"
	"sync"

	"dus-exam-service/internal/domain"
	"github.com/google/uuid"
)

// ResultStore is an append-only in-memory result collection. Results are
// copied in and out, so stored records never change after SaveResult.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]domain.Result
	order   []string
}

func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]domain.Result)}
}

// SaveResult appends result, keeping its id when set. Saving an id twice is a no-op.
func (s *ResultStore) SaveResult(_ context.Context, result domain.Result) (string, error) {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[result.ID]; ok {
		return result.ID, nil
	}
	s.results[result.ID] = result.Clone()
	s.order = append(s.order, result.ID)
	return result.ID, nil
}

func (s *ResultStore) LoadResult(_ context.Context, resultID string) (domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[resultID]
	if !ok {
		return domain.Result{}, domain.ErrResultNotFound
	}
	return result.Clone(), nil
}

func (s *ResultStore) LoadResultsForExam(_ context.Context, examID string) ([]domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Result
	for _, id := range s.order {
		if r := s.results[id]; r.ExamID == examID {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

// ListRecent returns up to limit results, newest first. A non-positive limit returns all.
func (s *ResultStore) ListRecent(_ context.Context, limit int) ([]domain.Result, error) {
	s.mu.RLock()
	out := make([]domain.Result, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.results[id].Clone())
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompletedAt.After(out[j].CompletedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
