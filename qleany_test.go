package qleany_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacquetc/qleany"
	"github.com/jacquetc/qleany/config"
	"github.com/jacquetc/qleany/datastore"
	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/events"
	"github.com/jacquetc/qleany/pkg/longop"
	"github.com/jacquetc/qleany/pkg/repository"
)

func newApp(t *testing.T) *qleany.App {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.Engine = datastore.TypeMemory
	cfg.Database.Path = ""
	cfg.Generator.OutputRoot = t.TempDir()

	app, err := qleany.New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

func TestBootstrapCreatesSingletons(t *testing.T) {
	app := newApp(t)

	require.NoError(t, app.Factory.Read(func(set *repository.Set) error {
		root, err := set.Roots().Get(domain.RootID)
		require.NoError(t, err)
		assert.NotZero(t, root.Workspace)
		assert.NotZero(t, root.System)

		ws, err := set.Workspaces().Get(root.Workspace)
		require.NoError(t, err)
		assert.NotZero(t, ws.Global)
		assert.NotZero(t, ws.UI)
		return nil
	}))
}

func TestLoadListGenerate(t *testing.T) {
	app := newApp(t)

	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`schema:
  version: 1
global:
  application_name: bookshop
  language: rust
ui:
  cli: true
entities:
  - name: Book
    fields:
      - name: title
        type: string
features:
  - name: catalog
    use_cases:
      - name: add_book
        entities:
          - Book
`), 0o644))
	require.NoError(t, app.LoadManifest(path))

	descriptors, err := app.Pipeline.List(domain.LanguageRust)
	require.NoError(t, err)
	paths := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		paths = append(paths, d.RelativePath)
	}
	assert.Contains(t, paths, "Cargo.toml")
	assert.Contains(t, paths, "src/entities/book.rs")
	assert.Contains(t, paths, "src/features/catalog/add_book.rs")
	assert.Contains(t, paths, "src/main.rs")

	id, err := app.Pipeline.Generate(domain.LanguageRust, app.GenerateOptions())
	require.NoError(t, err)
	require.NoError(t, app.Operations.Wait(id))
	status, err := app.Operations.Status(id)
	require.NoError(t, err)
	assert.Equal(t, longop.StatusCompleted, status)

	book, err := os.ReadFile(filepath.Join(app.GenerateOptions().OutputRoot, "src/entities/book.rs"))
	require.NoError(t, err)
	assert.Contains(t, string(book), "pub struct Book {")
}

func TestManifestLifecycleEvents(t *testing.T) {
	app := newApp(t)

	var got []events.Tag
	var paths []string
	for _, tag := range []events.Tag{events.ManifestLoad, events.ManifestNew, events.ManifestClose} {
		app.Hub.Subscribe(events.Origin{Subsystem: events.SubsystemManifest, Tag: tag}, func(e events.Event) {
			got = append(got, e.Origin.Tag)
			paths = append(paths, e.Data)
		})
	}

	in := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(in, []byte(`schema:
  version: 1
global:
  application_name: bookshop
  language: rust
ui:
  cli: true
entities:
  - name: Book
    fields:
      - name: title
        type: string
`), 0o644))
	require.NoError(t, app.LoadManifest(in))
	require.NoError(t, app.NewManifest())

	// The reset workspace is blank again.
	require.NoError(t, app.Factory.Read(func(set *repository.Set) error {
		root, err := set.Roots().Get(domain.RootID)
		require.NoError(t, err)
		ws, err := set.Workspaces().Get(root.Workspace)
		require.NoError(t, err)
		assert.Empty(t, ws.Entities)
		global, err := set.Globals().Get(ws.Global)
		require.NoError(t, err)
		assert.Empty(t, global.ApplicationName)
		return nil
	}))

	require.NoError(t, app.Close())
	assert.Equal(t, []events.Tag{events.ManifestLoad, events.ManifestNew, events.ManifestClose}, got)
	assert.Equal(t, in, paths[0])
}

func TestSaveManifestRoundTrip(t *testing.T) {
	app := newApp(t)

	dir := t.TempDir()
	in := filepath.Join(dir, "in.yaml")
	require.NoError(t, os.WriteFile(in, []byte(`schema:
  version: 1
global:
  application_name: bookshop
  language: rust
ui:
  cli: true
entities:
  - name: Book
    fields:
      - name: title
        type: string
`), 0o644))
	require.NoError(t, app.LoadManifest(in))

	out := filepath.Join(dir, "out.yaml")
	require.NoError(t, app.SaveManifest(out))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "application_name: bookshop")
	assert.Contains(t, string(raw), "name: Book")
}
