package memory

import (
	"context"
	"sync"

	"github.com/hamed0406/healthreport/internal/domain"
	"github.com/hamed0406/healthreport/internal/repo"
)

// Store holds only the latest report; older ones are dropped on Save.
type Store struct {
	mu     sync.RWMutex
	latest *domain.Report
}

func New() *Store {
	return &Store{}
}

func (m *Store) Save(ctx context.Context, r *domain.Report) error {
	cp := copyReport(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = cp
	return nil
}

func (m *Store) Latest(ctx context.Context) (*domain.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return nil, repo.ErrNoReport
	}
	return copyReport(m.latest), nil
}

func copyReport(r *domain.Report) *domain.Report {
	cp := *r
	cp.Recipients = append([]string(nil), r.Recipients...)
	cp.Results = append([]domain.SystemCheckResult(nil), r.Results...)
	return &cp
}
