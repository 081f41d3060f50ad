package uow_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacquetc/qleany/datastore"
	_ "github.com/jacquetc/qleany/datastore/memory"
	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/events"
	"github.com/jacquetc/qleany/pkg/repository"
	"github.com/jacquetc/qleany/pkg/uow"
)

func newFactory(t *testing.T) (*uow.Factory, *events.Hub) {
	t.Helper()
	store, err := datastore.New(datastore.DefaultConfig(datastore.TypeMemory))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	hub := events.NewHub()
	return uow.NewFactory(store, hub), hub
}

func TestEventsPublishedAfterCommitOnly(t *testing.T) {
	factory, hub := newFactory(t)

	var seen []domain.EntityID
	hub.Subscribe(events.Origin{
		Subsystem: events.SubsystemEntities,
		Kind:      domain.KindEntity,
		Tag:       events.Created,
	}, func(e events.Event) { seen = append(seen, e.IDs...) })

	u, err := factory.Begin(true)
	require.NoError(t, err)

	id, err := u.Repos().Entities().Create(&domain.Entity{Name: "Book"})
	require.NoError(t, err)
	assert.Empty(t, seen, "nothing published before commit")

	require.NoError(t, u.Commit())
	assert.Equal(t, []domain.EntityID{id}, seen)
}

func TestRollbackDiscardsWritesAndEvents(t *testing.T) {
	factory, hub := newFactory(t)

	published := 0
	hub.Subscribe(events.Origin{
		Subsystem: events.SubsystemEntities,
		Kind:      domain.KindEntity,
		Tag:       events.Created,
	}, func(events.Event) { published++ })

	err := factory.Write(func(set *repository.Set) error {
		if _, err := set.Entities().Create(&domain.Entity{Name: "Ghost"}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)
	assert.Zero(t, published)

	err = factory.Read(func(set *repository.Set) error {
		page, err := set.Entities().Page(0, 10)
		if err != nil {
			return err
		}
		assert.Empty(t, page)
		return nil
	})
	require.NoError(t, err)
}

func TestWriteCommitsAndReadSees(t *testing.T) {
	factory, _ := newFactory(t)

	var id domain.EntityID
	err := factory.Write(func(set *repository.Set) error {
		var err error
		id, err = set.Features().Create(&domain.Feature{Name: "crud"})
		return err
	})
	require.NoError(t, err)

	err = factory.Read(func(set *repository.Set) error {
		got, err := set.Features().Get(id)
		if err != nil {
			return err
		}
		assert.Equal(t, "crud", got.Name)
		return nil
	})
	require.NoError(t, err)
}

func TestIdempotentUpdateStillPublishes(t *testing.T) {
	factory, hub := newFactory(t)

	var id domain.EntityID
	require.NoError(t, factory.Write(func(set *repository.Set) error {
		var err error
		id, err = set.Entities().Create(&domain.Entity{Name: "Book"})
		return err
	}))

	updates := 0
	hub.Subscribe(events.Origin{
		Subsystem: events.SubsystemEntities,
		Kind:      domain.KindEntity,
		Tag:       events.Updated,
	}, func(events.Event) { updates++ })

	// Writing identical state is a real update: the event still fires.
	require.NoError(t, factory.Write(func(set *repository.Set) error {
		ent, err := set.Entities().Get(id)
		if err != nil {
			return err
		}
		return set.Entities().Update(ent)
	}))
	assert.Equal(t, 1, updates)
}

func TestCommitTwiceFails(t *testing.T) {
	factory, _ := newFactory(t)

	u, err := factory.Begin(true)
	require.NoError(t, err)
	require.NoError(t, u.Commit())
	assert.Error(t, u.Commit())
	assert.NoError(t, u.Rollback(), "rollback after commit is a no-op")
}
