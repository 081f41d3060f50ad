// Package uow coordinates transactions, repositories and event publication.
// A unit of work owns one datastore transaction and the repository set bound
// to it; events queued by repositories are published on the hub only after
// the transaction commits, so subscribers never observe rolled-back state.
package uow

import (
	"fmt"
	"sync"

	"github.com/jacquetc/qleany/datastore"
	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/events"
	"github.com/jacquetc/qleany/pkg/repository"
)

// Factory creates units of work over one datastore and one hub. Writable
// units are serialized through an internal mutex so engines with snapshot
// write transactions never race.
type Factory struct {
	store   datastore.DataStore
	hub     *events.Hub
	writeMu sync.Mutex
}

// NewFactory binds a factory to a store and a hub. The hub may be nil when
// no subscriber exists, for example in import tooling.
func NewFactory(store datastore.DataStore, hub *events.Hub) *Factory {
	return &Factory{store: store, hub: hub}
}

// Hub returns the event hub the factory publishes on.
func (f *Factory) Hub() *events.Hub { return f.hub }

// UnitOfWork is one transaction plus its repositories and deferred events.
type UnitOfWork struct {
	tx       datastore.Tx
	set      *repository.Set
	hub      *events.Hub
	queued   []events.Event
	done     bool
	writable bool
	release  func()
}

// Begin opens a unit of work. Writable units hold the factory write lock
// until Commit or Rollback.
func (f *Factory) Begin(writable bool) (*UnitOfWork, error) {
	var release func()
	if writable {
		f.writeMu.Lock()
		release = f.writeMu.Unlock
	}

	tx, err := f.store.Begin(writable)
	if err != nil {
		if release != nil {
			release()
		}
		return nil, fmt.Errorf("%w: begin transaction: %v", domain.ErrStorage, err)
	}

	u := &UnitOfWork{
		tx:       tx,
		hub:      f.hub,
		writable: writable,
		release:  release,
	}
	u.set = repository.NewSet(tx, u)
	return u, nil
}

// Repos returns the repository set bound to this unit of work.
func (u *UnitOfWork) Repos() *repository.Set { return u.set }

// Writable reports whether this unit of work can mutate.
func (u *UnitOfWork) Writable() bool { return u.writable }

// Queue defers an event until commit. Implements repository.Publisher.
func (u *UnitOfWork) Queue(e events.Event) {
	u.queued = append(u.queued, e)
}

// Commit commits the transaction and publishes the queued events in order.
func (u *UnitOfWork) Commit() error {
	if u.done {
		return fmt.Errorf("%w: unit of work already finished", domain.ErrStorage)
	}
	u.done = true
	defer u.releaseLock()

	if err := u.tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrStorage, err)
	}
	if u.hub != nil {
		for _, e := range u.queued {
			u.hub.Publish(e)
		}
	}
	u.queued = nil
	return nil
}

// Rollback aborts the transaction and discards the queued events. Safe to
// call after Commit; it then does nothing, which makes it defer-friendly.
func (u *UnitOfWork) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	defer u.releaseLock()

	u.queued = nil
	if err := u.tx.Rollback(); err != nil {
		return fmt.Errorf("%w: rollback: %v", domain.ErrStorage, err)
	}
	return nil
}

func (u *UnitOfWork) releaseLock() {
	if u.release != nil {
		u.release()
		u.release = nil
	}
}

// Read runs fn inside a read-only unit of work.
func (f *Factory) Read(fn func(*repository.Set) error) error {
	u, err := f.Begin(false)
	if err != nil {
		return err
	}
	defer u.Rollback()
	return fn(u.Repos())
}

// Write runs fn inside a writable unit of work and commits when fn returns
// nil. Any error rolls everything back, queued events included.
func (f *Factory) Write(fn func(*repository.Set) error) error {
	u, err := f.Begin(true)
	if err != nil {
		return err
	}
	defer u.Rollback()

	if err := fn(u.Repos()); err != nil {
		return err
	}
	return u.Commit()
}
