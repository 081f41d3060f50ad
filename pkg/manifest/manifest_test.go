package manifest_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacquetc/qleany/datastore"
	_ "github.com/jacquetc/qleany/datastore/memory"
	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/manifest"
	"github.com/jacquetc/qleany/pkg/repository"
	"github.com/jacquetc/qleany/pkg/uow"
)

const userManifest = `schema:
  version: 1
global:
  application_name: bookshop
  language: rust
ui:
  cli: true
entities:
  - name: User
    fields:
      - name: name
        type: string
      - name: age
        type: integer
`

func newFactory(t *testing.T) *uow.Factory {
	t.Helper()
	store, err := datastore.New(datastore.DefaultConfig(datastore.TypeMemory))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return uow.NewFactory(store, nil)
}

func writeManifest(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSingleEntity(t *testing.T) {
	factory := newFactory(t)
	path := writeManifest(t, "app.yaml", userManifest)
	require.NoError(t, manifest.Load(factory, path))

	require.NoError(t, factory.Read(func(set *repository.Set) error {
		root, err := set.Roots().Get(domain.RootID)
		require.NoError(t, err)
		ws, err := set.Workspaces().Get(root.Workspace)
		require.NoError(t, err)
		require.Len(t, ws.Entities, 1)

		user, err := set.Entities().Get(ws.Entities[0])
		require.NoError(t, err)
		assert.Equal(t, "User", user.Name)

		fields, err := set.Fields().GetMulti(user.Fields)
		require.NoError(t, err)
		require.Len(t, fields, 2)
		assert.Equal(t, "name", fields[0].Name)
		assert.Equal(t, domain.FieldString, fields[0].Type)
		assert.Equal(t, "age", fields[1].Name)
		assert.Equal(t, domain.FieldInteger, fields[1].Type)

		assert.Empty(t, ws.Features)
		return nil
	}))
}

func TestLoadBuildsDerivedRelationships(t *testing.T) {
	factory := newFactory(t)
	path := writeManifest(t, "app.yaml", `schema:
  version: 1
global:
  application_name: blog
  language: cpp-qt
ui:
  qml: true
entities:
  - name: User
    fields:
      - name: name
        type: string
  - name: Post
    fields:
      - name: author
        type: entity
        target_entity: User
        relationship: many_to_one
        strong: true
`)
	require.NoError(t, manifest.Load(factory, path))

	require.NoError(t, factory.Read(func(set *repository.Set) error {
		root, err := set.Roots().Get(domain.RootID)
		require.NoError(t, err)
		ws, err := set.Workspaces().Get(root.Workspace)
		require.NoError(t, err)
		entities, err := set.Entities().GetMulti(ws.Entities)
		require.NoError(t, err)

		var user, post *domain.Entity
		for _, e := range entities {
			switch e.Name {
			case "User":
				user = e
			case "Post":
				post = e
			}
		}
		require.NotNil(t, user)
		require.NotNil(t, post)

		require.Len(t, post.Relationships, 1)
		forward, err := set.Relationships().Get(post.Relationships[0])
		require.NoError(t, err)
		assert.Equal(t, domain.Forward, forward.Direction)
		assert.Equal(t, domain.Strong, forward.Strength)
		assert.Equal(t, user.ID, forward.RightEntity)

		require.Len(t, user.Relationships, 1)
		backward, err := set.Relationships().Get(user.Relationships[0])
		require.NoError(t, err)
		assert.Equal(t, domain.Backward, backward.Direction)
		return nil
	}))
}

func TestReloadReplacesWorkspace(t *testing.T) {
	factory := newFactory(t)
	path := writeManifest(t, "app.yaml", userManifest)
	require.NoError(t, manifest.Load(factory, path))
	require.NoError(t, manifest.Load(factory, path))

	require.NoError(t, factory.Read(func(set *repository.Set) error {
		root, err := set.Roots().Get(domain.RootID)
		require.NoError(t, err)
		ws, err := set.Workspaces().Get(root.Workspace)
		require.NoError(t, err)
		assert.Len(t, ws.Entities, 1, "reload does not duplicate entities")

		workspaces, err := set.Workspaces().Page(0, 10)
		require.NoError(t, err)
		assert.Len(t, workspaces, 1, "the previous workspace is gone")
		return nil
	}))
}

func TestRoundTrip(t *testing.T) {
	factory := newFactory(t)
	in := writeManifest(t, "app.yaml", `schema:
  version: 1
global:
  application_name: blog
  organisation_name: acme
  language: cpp-qt
ui:
  qml: true
  widgets: true
entities:
  - name: Base
    only_for_heritage: true
    fields:
      - name: id
        type: uuid
  - name: User
    inherits_from: Base
    fields:
      - name: name
        type: string
features:
  - name: users
    use_cases:
      - name: create_user
        undoable: true
        entities:
          - User
        dto_in:
          name: CreateUserDto
          fields:
            - name: name
              type: string
`)
	require.NoError(t, manifest.Load(factory, in))

	exported, err := manifest.Export(factory)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, manifest.Save(factory, out))

	// Reloading the exported manifest yields the same document again.
	factory2 := newFactory(t)
	require.NoError(t, manifest.Load(factory2, out))
	exported2, err := manifest.Export(factory2)
	require.NoError(t, err)
	assert.Equal(t, exported, exported2)

	assert.Equal(t, "blog", exported.Global.ApplicationName)
	require.Len(t, exported.Entities, 2)
	assert.Equal(t, "Base", exported.Entities[0].Name)
	assert.True(t, exported.Entities[0].OnlyForHeritage)
	assert.Equal(t, "Base", exported.Entities[1].InheritsFrom)
	require.Len(t, exported.Features, 1)
	require.Len(t, exported.Features[0].UseCases, 1)
	uc := exported.Features[0].UseCases[0]
	assert.Equal(t, []string{"User"}, uc.Entities)
	require.NotNil(t, uc.DtoIn)
	assert.Equal(t, "CreateUserDto", uc.DtoIn.Name)
	assert.Nil(t, uc.DtoOut)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := manifest.Parse([]byte(`schema:
  version: 1
global:
  application_name: x
  language: rust
surprise: true
`), "m.yaml")
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	_, err = manifest.Parse([]byte(`{"schema":{"version":1},"global":{"application_name":"x","language":"rust"},"surprise":true}`), "m.json")
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
}

func TestParseRejectsWrongVersion(t *testing.T) {
	_, err := manifest.Parse([]byte(`schema:
  version: 2
global:
  application_name: x
  language: rust
`), "m.yaml")
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
}

func TestRejectsInheritanceCycles(t *testing.T) {
	const mutual = `schema:
  version: 1
global:
  application_name: x
  language: rust
entities:
  - name: A
    inherits_from: B
    fields: []
  - name: B
    inherits_from: A
    fields: []
`
	_, err := manifest.Parse([]byte(mutual), "m.yaml")
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	const self = `schema:
  version: 1
global:
  application_name: x
  language: rust
entities:
  - name: A
    inherits_from: A
    fields: []
`
	_, err = manifest.Parse([]byte(self), "m.yaml")
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	// Import revalidates, so a hand-built cyclic document is rejected too.
	doc := &manifest.Document{
		Schema: manifest.Schema{Version: manifest.SchemaVersion},
		Global: manifest.GlobalDoc{ApplicationName: "x", Language: "rust"},
		Entities: []manifest.EntityDoc{
			{Name: "A", InheritsFrom: "B"},
			{Name: "B", InheritsFrom: "A"},
		},
	}
	err = manifest.Import(newFactory(t), doc, "m.yaml")
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
}

func TestParseRejectsBadReferences(t *testing.T) {
	for name, body := range map[string]string{
		"unknown language": `schema:
  version: 1
global:
  application_name: x
  language: cobol
`,
		"unknown field type": `schema:
  version: 1
global:
  application_name: x
  language: rust
entities:
  - name: A
    fields:
      - name: f
        type: blob
`,
		"unknown target": `schema:
  version: 1
global:
  application_name: x
  language: rust
entities:
  - name: A
    fields:
      - name: f
        type: entity
        target_entity: Nope
        relationship: many_to_one
`,
		"unknown extension": "whatever",
	} {
		path := "m.yaml"
		if name == "unknown extension" {
			path = "m.toml"
		}
		_, err := manifest.Parse([]byte(body), path)
		assert.ErrorIs(t, err, domain.ErrValidationFailed, name)
	}
}
