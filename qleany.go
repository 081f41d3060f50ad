// Package qleany wires the model-driven code generator together: the
// embedded store, the unit-of-work factory, the event hub, undo/redo, long
// operations and the generation pipeline.
package qleany

import (
	"errors"

	"go.uber.org/zap"

	"github.com/jacquetc/qleany/config"
	"github.com/jacquetc/qleany/datastore"
	_ "github.com/jacquetc/qleany/datastore/badger"
	_ "github.com/jacquetc/qleany/datastore/bolt"
	_ "github.com/jacquetc/qleany/datastore/memory"
	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/events"
	"github.com/jacquetc/qleany/pkg/generate"
	"github.com/jacquetc/qleany/pkg/longop"
	"github.com/jacquetc/qleany/pkg/manifest"
	"github.com/jacquetc/qleany/pkg/render"
	"github.com/jacquetc/qleany/pkg/repository"
	"github.com/jacquetc/qleany/pkg/undo"
	"github.com/jacquetc/qleany/pkg/uow"
	"github.com/jacquetc/qleany/pkg/usecase"
)

// Core types re-exported for the public API.
type (
	EntityID = domain.EntityID
	Event    = events.Event
	Document = manifest.Document
)

// App is one open workspace with every subsystem wired.
type App struct {
	cfg   *config.Config
	log   *zap.Logger
	store datastore.DataStore

	Hub        *events.Hub
	Factory    *uow.Factory
	History    *undo.Manager
	Operations *longop.Manager
	Pipeline   *generate.Pipeline
}

// New opens the configured store, bootstraps the singleton rows and wires
// the subsystems. Close releases the store.
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	store, err := datastore.New(cfg.DatastoreConfig())
	if err != nil {
		return nil, err
	}

	hub := events.NewHub()
	factory := uow.NewFactory(store, hub)
	if err := bootstrap(factory); err != nil {
		store.Close()
		return nil, err
	}

	renderer, err := render.Default()
	if err != nil {
		store.Close()
		return nil, err
	}
	operations := longop.NewManager(hub, log)

	return &App{
		cfg:        cfg,
		log:        log,
		store:      store,
		Hub:        hub,
		Factory:    factory,
		History:    undo.NewManager(),
		Operations: operations,
		Pipeline:   generate.NewPipeline(factory, renderer, operations, log),
	}, nil
}

// Close announces the workspace closing and releases the underlying store.
func (a *App) Close() error {
	a.Hub.Publish(events.Event{Origin: events.Origin{
		Subsystem: events.SubsystemManifest,
		Tag:       events.ManifestClose,
	}})
	return a.store.Close()
}

// Deps bundles what the use cases need.
func (a *App) Deps() usecase.Deps {
	return usecase.Deps{Factory: a.Factory, History: a.History, Log: a.log}
}

// LoadManifest imports a manifest file into the store.
func (a *App) LoadManifest(path string) error {
	a.History.ClearAll()
	if err := manifest.Load(a.Factory, path); err != nil {
		return err
	}
	a.Hub.Publish(events.Event{Origin: events.Origin{
		Subsystem: events.SubsystemManifest,
		Tag:       events.ManifestLoad,
	}, Data: path})
	return nil
}

// NewManifest replaces the workspace with a blank manifest. The System row
// and its generated file list survive, as on a manifest load.
func (a *App) NewManifest() error {
	a.History.ClearAll()
	err := a.Factory.Write(func(set *repository.Set) error {
		root, err := set.Roots().Get(domain.RootID)
		if err != nil {
			return err
		}
		if root.Workspace != 0 {
			if err := set.Workspaces().Delete(root.Workspace); err != nil {
				return err
			}
		}
		globalID, err := set.Globals().Create(&domain.Global{})
		if err != nil {
			return err
		}
		uiID, err := set.UserInterfaces().Create(&domain.UserInterface{})
		if err != nil {
			return err
		}
		root.Workspace, err = set.Workspaces().Create(&domain.Workspace{
			Global: globalID,
			UI:     uiID,
		})
		if err != nil {
			return err
		}
		return set.Roots().Update(root)
	})
	if err != nil {
		return err
	}
	a.Hub.Publish(events.Event{Origin: events.Origin{
		Subsystem: events.SubsystemManifest,
		Tag:       events.ManifestNew,
	}})
	return nil
}

// SaveManifest exports the store into a manifest file.
func (a *App) SaveManifest(path string) error {
	return manifest.Save(a.Factory, path)
}

// GenerateOptions returns the pipeline options derived from configuration.
func (a *App) GenerateOptions() generate.Options {
	return generate.Options{
		OutputRoot:   a.cfg.Generator.OutputRoot,
		OnlyExisting: a.cfg.Generator.OnlyExisting,
	}
}

// bootstrap creates the singleton Root, Workspace, System, Global and
// UserInterface rows on a fresh store. An already populated store is left
// untouched.
func bootstrap(factory *uow.Factory) error {
	return factory.Write(func(set *repository.Set) error {
		_, err := set.Roots().Get(domain.RootID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		globalID, err := set.Globals().Create(&domain.Global{})
		if err != nil {
			return err
		}
		uiID, err := set.UserInterfaces().Create(&domain.UserInterface{})
		if err != nil {
			return err
		}
		wsID, err := set.Workspaces().Create(&domain.Workspace{
			Global: globalID,
			UI:     uiID,
		})
		if err != nil {
			return err
		}
		systemID, err := set.Systems().Create(&domain.System{})
		if err != nil {
			return err
		}
		_, err = set.Roots().Create(&domain.Root{
			ID:        domain.RootID,
			Workspace: wsID,
			System:    systemID,
		})
		return err
	})
}
