package generate_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacquetc/qleany/datastore"
	_ "github.com/jacquetc/qleany/datastore/memory"
	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/events"
	"github.com/jacquetc/qleany/pkg/generate"
	"github.com/jacquetc/qleany/pkg/longop"
	"github.com/jacquetc/qleany/pkg/render"
	"github.com/jacquetc/qleany/pkg/repository"
	"github.com/jacquetc/qleany/pkg/uow"
)

// newPipeline seeds a cpp-qt manifest with one entity, one feature and one
// use case, then wires a pipeline around it.
func newPipeline(t *testing.T) (*generate.Pipeline, *uow.Factory) {
	t.Helper()
	store, err := datastore.New(datastore.DefaultConfig(datastore.TypeMemory))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	hub := events.NewHub()
	factory := uow.NewFactory(store, hub)

	require.NoError(t, factory.Write(func(set *repository.Set) error {
		globalID, err := set.Globals().Create(&domain.Global{
			ApplicationName: "bookshop",
			Language:        domain.LanguageCppQt,
		})
		if err != nil {
			return err
		}
		uiID, err := set.UserInterfaces().Create(&domain.UserInterface{QML: true})
		if err != nil {
			return err
		}
		nameField, err := set.Fields().Create(&domain.Field{Name: "name", Type: domain.FieldString})
		if err != nil {
			return err
		}
		userID, err := set.Entities().Create(&domain.Entity{
			Name:   "User",
			Fields: []domain.EntityID{nameField},
		})
		if err != nil {
			return err
		}
		ucID, err := set.UseCases().Create(&domain.UseCase{
			Name:     "create_user",
			Entities: []domain.EntityID{userID},
		})
		if err != nil {
			return err
		}
		featureID, err := set.Features().Create(&domain.Feature{
			Name:     "users",
			UseCases: []domain.EntityID{ucID},
		})
		if err != nil {
			return err
		}
		wsID, err := set.Workspaces().Create(&domain.Workspace{
			Global:   globalID,
			UI:       uiID,
			Entities: []domain.EntityID{userID},
			Features: []domain.EntityID{featureID},
		})
		if err != nil {
			return err
		}
		sysID, err := set.Systems().Create(&domain.System{})
		if err != nil {
			return err
		}
		_, err = set.Roots().Create(&domain.Root{
			ID:        domain.RootID,
			Workspace: wsID,
			System:    sysID,
		})
		return err
	}))

	renderer, err := render.Default()
	require.NoError(t, err)
	ops := longop.NewManager(hub, nil)
	return generate.NewPipeline(factory, renderer, ops, nil), factory
}

func TestListCppQtGolden(t *testing.T) {
	pipeline, _ := newPipeline(t)

	descriptors, err := pipeline.List(domain.LanguageCppQt)
	require.NoError(t, err)

	payload, err := json.MarshalIndent(descriptors, "", "  ")
	require.NoError(t, err)
	g := goldie.New(t)
	g.Assert(t, "cpp_qt_list", append(payload, '\n'))
}

func TestListNamesUniquePerPath(t *testing.T) {
	pipeline, _ := newPipeline(t)

	for _, target := range []domain.TargetLanguage{domain.LanguageRust, domain.LanguageCppQt} {
		descriptors, err := pipeline.List(target)
		require.NoError(t, err)
		require.NotEmpty(t, descriptors)
		seen := make(map[string]bool)
		for _, d := range descriptors {
			assert.False(t, seen[d.RelativePath], "duplicate path %s for %s", d.RelativePath, target)
			seen[d.RelativePath] = true
			assert.Equal(t, d.Name, filepath.Base(d.RelativePath))
		}
	}
}

func TestListUnknownTarget(t *testing.T) {
	pipeline, _ := newPipeline(t)

	_, err := pipeline.List(domain.TargetLanguage("cobol"))
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
}

func waitForReport(t *testing.T, pipeline *generate.Pipeline, ops *longop.Manager, id string) *generate.Report {
	t.Helper()
	require.NoError(t, ops.Wait(id))
	status, err := ops.Status(id)
	require.NoError(t, err)
	require.Equal(t, longop.StatusCompleted, status)
	raw, ok := ops.Result(id)
	require.True(t, ok)
	var report generate.Report
	require.NoError(t, json.Unmarshal(raw, &report))
	return &report
}

func TestGenerateWritesTree(t *testing.T) {
	pipeline, factory := newPipeline(t)
	ops := longop.NewManager(nil, nil)
	renderer, err := render.Default()
	require.NoError(t, err)
	pipeline = generate.NewPipeline(factory, renderer, ops, nil)

	out := t.TempDir()
	id, err := pipeline.Generate(domain.LanguageCppQt, generate.Options{OutputRoot: out})
	require.NoError(t, err)
	report := waitForReport(t, pipeline, ops, id)

	assert.Empty(t, report.Failed)
	assert.Contains(t, report.Written, "CMakeLists.txt")
	assert.Contains(t, report.Written, "src/entities/user.h")
	assert.Contains(t, report.Written, "src/use_cases/create_user.cpp")
	assert.Contains(t, report.Written, "qml/Main.qml")

	header, err := os.ReadFile(filepath.Join(out, "src/entities/user.h"))
	require.NoError(t, err)
	assert.Contains(t, string(header), "class User")

	cmake, err := os.ReadFile(filepath.Join(out, "CMakeLists.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(cmake), "project(Bookshop")

	// The run registered its files under System.
	require.NoError(t, factory.Read(func(set *repository.Set) error {
		root, err := set.Roots().Get(domain.RootID)
		if err != nil {
			return err
		}
		system, err := set.Systems().Get(root.System)
		if err != nil {
			return err
		}
		assert.Len(t, system.Files, len(report.Written))
		return nil
	}))
}

func TestGenerateReplacesPreviousFileRows(t *testing.T) {
	pipeline, factory := newPipeline(t)
	ops := longop.NewManager(nil, nil)
	renderer, err := render.Default()
	require.NoError(t, err)
	pipeline = generate.NewPipeline(factory, renderer, ops, nil)

	out := t.TempDir()
	first, err := pipeline.Generate(domain.LanguageCppQt, generate.Options{OutputRoot: out})
	require.NoError(t, err)
	waitForReport(t, pipeline, ops, first)

	second, err := pipeline.Generate(domain.LanguageRust, generate.Options{OutputRoot: t.TempDir()})
	require.NoError(t, err)
	report := waitForReport(t, pipeline, ops, second)

	require.NoError(t, factory.Read(func(set *repository.Set) error {
		root, err := set.Roots().Get(domain.RootID)
		if err != nil {
			return err
		}
		system, err := set.Systems().Get(root.System)
		if err != nil {
			return err
		}
		assert.Len(t, system.Files, len(report.Written), "old rows are cleared before the new run")
		files, err := set.Files().GetMulti(system.Files)
		if err != nil {
			return err
		}
		for _, f := range files {
			assert.Contains(t, f.TemplateName, "rust/")
		}
		return nil
	}))
}

func TestGenerateOnlyExisting(t *testing.T) {
	pipeline, factory := newPipeline(t)
	ops := longop.NewManager(nil, nil)
	renderer, err := render.Default()
	require.NoError(t, err)
	pipeline = generate.NewPipeline(factory, renderer, ops, nil)

	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(out, "CMakeLists.txt"), []byte("old"), 0o644))

	id, err := pipeline.Generate(domain.LanguageCppQt, generate.Options{OutputRoot: out, OnlyExisting: true})
	require.NoError(t, err)
	report := waitForReport(t, pipeline, ops, id)

	assert.Equal(t, []string{"CMakeLists.txt"}, report.Written)
	_, err = os.Stat(filepath.Join(out, "src"))
	assert.True(t, os.IsNotExist(err), "absent files stay absent in only-existing mode")
}

func TestGenerateUnknownTargetFailsFast(t *testing.T) {
	pipeline, _ := newPipeline(t)

	_, err := pipeline.Generate(domain.TargetLanguage("cobol"), generate.Options{})
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
}
