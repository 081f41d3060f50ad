// Package longop runs long operations on their own goroutines with progress
// reporting, cooperative cancellation and per-operation result storage.
package longop

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/events"
)

// Status is the lifecycle state of an operation.
type Status int

const (
	StatusRunning Status = iota
	StatusCompleted
	StatusCancelled
	StatusFailed
)

// String returns the display name of the status.
func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Progress is the last reported progress of an operation.
type Progress struct {
	Percentage int
	Message    string
}

// Handle is passed to the worker. It reports progress and exposes the
// cooperative cancellation flag the worker must poll.
type Handle struct {
	id      string
	manager *Manager
	cancel  atomic.Bool
}

// ID returns the operation id.
func (h *Handle) ID() string { return h.id }

// Cancelled reports whether cancellation was requested. Workers poll this at
// every logical step and return promptly when it turns true.
func (h *Handle) Cancelled() bool { return h.cancel.Load() }

// Progress reports progress. Percentage is clamped to [0,100].
func (h *Handle) Progress(percentage int, message string) {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}
	h.manager.reportProgress(h.id, Progress{Percentage: percentage, Message: message})
}

// Worker is the body of a long operation. The returned payload is stored as
// the operation result unless the operation was cancelled.
type Worker func(h *Handle) ([]byte, error)

type record struct {
	handle   *Handle
	status   Status
	progress Progress
	result   []byte
	errMsg   string
	done     chan struct{}
}

// Manager tracks every submitted operation by uuid.
type Manager struct {
	hub *events.Hub
	log *zap.Logger

	mu  sync.Mutex
	ops map[string]*record
}

// NewManager creates a manager publishing transitions on hub. Both hub and
// log may be nil.
func NewManager(hub *events.Hub, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{hub: hub, log: log, ops: make(map[string]*record)}
}

func (m *Manager) publish(tag events.Tag, id string) {
	if m.hub == nil {
		return
	}
	m.hub.Publish(events.Event{
		Origin: events.Origin{Subsystem: events.SubsystemLongOperation, Tag: tag},
		Data:   id,
	})
}

// Start launches worker on its own goroutine and returns the operation id.
func (m *Manager) Start(worker Worker) string {
	id := uuid.NewString()
	handle := &Handle{id: id, manager: m}
	rec := &record{handle: handle, status: StatusRunning, done: make(chan struct{})}

	m.mu.Lock()
	m.ops[id] = rec
	m.mu.Unlock()

	m.publish(events.OperationStarted, id)
	m.log.Debug("operation started", zap.String("id", id))

	go func() {
		result, err := worker(handle)

		m.mu.Lock()
		alreadyCancelled := rec.status == StatusCancelled
		var tag events.Tag
		if !alreadyCancelled {
			switch {
			case handle.Cancelled():
				rec.status = StatusCancelled
				tag = events.OperationCancelled
			case err != nil:
				rec.status = StatusFailed
				rec.errMsg = err.Error()
				tag = events.OperationFailed
			default:
				rec.status = StatusCompleted
				rec.result = result
				tag = events.OperationCompleted
			}
		}
		m.mu.Unlock()

		// Cancel already transitioned and published; the late result is
		// dropped silently.
		if !alreadyCancelled {
			if err != nil && tag == events.OperationFailed {
				m.log.Warn("operation failed", zap.String("id", id), zap.Error(err))
			}
			m.publish(tag, id)
		}
		close(rec.done)
	}()
	return id
}

// Cancel requests cancellation. A running operation transitions to
// Cancelled immediately; the worker is expected to notice the flag and
// return. Cancelling a finished operation is a no-op.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	rec, ok := m.ops[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: operation %s", domain.ErrNotFound, id)
	}
	if rec.status != StatusRunning {
		m.mu.Unlock()
		return nil
	}
	rec.handle.cancel.Store(true)
	rec.status = StatusCancelled
	m.mu.Unlock()

	m.publish(events.OperationCancelled, id)
	return nil
}

func (m *Manager) reportProgress(id string, p Progress) {
	m.mu.Lock()
	rec, ok := m.ops[id]
	if ok && rec.status == StatusRunning {
		rec.progress = p
	}
	m.mu.Unlock()
	if ok {
		m.publish(events.OperationProgress, id)
	}
}

// Status returns the current status of an operation.
func (m *Manager) Status(id string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.ops[id]
	if !ok {
		return 0, fmt.Errorf("%w: operation %s", domain.ErrNotFound, id)
	}
	return rec.status, nil
}

// Progress returns the last reported progress of an operation.
func (m *Manager) Progress(id string) (Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.ops[id]
	if !ok {
		return Progress{}, fmt.Errorf("%w: operation %s", domain.ErrNotFound, id)
	}
	return rec.progress, nil
}

// FailureMessage returns the error message of a failed operation, or "".
func (m *Manager) FailureMessage(id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.ops[id]
	if !ok {
		return "", fmt.Errorf("%w: operation %s", domain.ErrNotFound, id)
	}
	return rec.errMsg, nil
}

// Result returns the stored payload of a completed operation. Cancelled and
// failed operations have none.
func (m *Manager) Result(id string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.ops[id]
	if !ok || rec.status != StatusCompleted {
		return nil, false
	}
	return rec.result, true
}

// Wait blocks until the operation's worker returns.
func (m *Manager) Wait(id string) error {
	m.mu.Lock()
	rec, ok := m.ops[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: operation %s", domain.ErrNotFound, id)
	}
	<-rec.done
	return nil
}

// Cleanup drops every record in a terminal state and returns how many were
// removed.
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, rec := range m.ops {
		if rec.status != StatusRunning {
			delete(m.ops, id)
			removed++
		}
	}
	return removed
}
