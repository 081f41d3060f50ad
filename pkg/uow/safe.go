package uow

import (
	"sync"

	"github.com/jacquetc/qleany/pkg/repository"
)

// SafeUnitOfWork guards a unit of work with a mutex so several goroutines
// can share one handle. The transaction inside stays serial; callers run
// their repository work inside With.
type SafeUnitOfWork struct {
	mu sync.Mutex
	u  *UnitOfWork
}

// BeginSafe opens a unit of work wrapped for concurrent use.
func (f *Factory) BeginSafe(writable bool) (*SafeUnitOfWork, error) {
	u, err := f.Begin(writable)
	if err != nil {
		return nil, err
	}
	return &SafeUnitOfWork{u: u}, nil
}

// With runs fn while holding the handle lock.
func (s *SafeUnitOfWork) With(fn func(*repository.Set) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.u.Repos())
}

// Commit commits the wrapped unit of work.
func (s *SafeUnitOfWork) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.u.Commit()
}

// Rollback rolls back the wrapped unit of work.
func (s *SafeUnitOfWork) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.u.Rollback()
}
