package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacquetc/qleany/datastore"
	_ "github.com/jacquetc/qleany/datastore/memory"
	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/events"
	"github.com/jacquetc/qleany/pkg/repository"
	"github.com/jacquetc/qleany/pkg/undo"
	"github.com/jacquetc/qleany/pkg/uow"
	"github.com/jacquetc/qleany/pkg/usecase"
)

type fixture struct {
	deps        usecase.Deps
	factory     *uow.Factory
	history     *undo.Manager
	workspaceID domain.EntityID
	systemID    domain.EntityID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := datastore.New(datastore.DefaultConfig(datastore.TypeMemory))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	factory := uow.NewFactory(store, events.NewHub())
	history := undo.NewManager()
	f := &fixture{
		deps:    usecase.Deps{Factory: factory, History: history},
		factory: factory,
		history: history,
	}

	require.NoError(t, factory.Write(func(set *repository.Set) error {
		globalID, err := set.Globals().Create(&domain.Global{ApplicationName: "app", Language: domain.LanguageRust})
		if err != nil {
			return err
		}
		uiID, err := set.UserInterfaces().Create(&domain.UserInterface{CLI: true})
		if err != nil {
			return err
		}
		f.workspaceID, err = set.Workspaces().Create(&domain.Workspace{Global: globalID, UI: uiID})
		if err != nil {
			return err
		}
		f.systemID, err = set.Systems().Create(&domain.System{})
		if err != nil {
			return err
		}
		_, err = set.Roots().Create(&domain.Root{
			ID:        domain.RootID,
			Workspace: f.workspaceID,
			System:    f.systemID,
		})
		return err
	}))
	return f
}

func (f *fixture) readEntities(t *testing.T) []domain.EntityID {
	t.Helper()
	var ids []domain.EntityID
	require.NoError(t, f.factory.Read(func(set *repository.Set) error {
		ws, err := set.Workspaces().Get(f.workspaceID)
		if err != nil {
			return err
		}
		ids = ws.Entities
		return nil
	}))
	return ids
}

func TestCreateEntityAttachesToWorkspace(t *testing.T) {
	f := newFixture(t)

	out, err := usecase.NewCreateEntity(f.deps).Execute(usecase.EntityIn{
		WorkspaceID: f.workspaceID,
		Name:        "User",
		Undoable:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.EntityID{out.ID}, f.readEntities(t))

	got, err := usecase.NewGetEntity(f.deps).Execute(out.ID)
	require.NoError(t, err)
	assert.Equal(t, "User", got.Name)
	assert.True(t, got.Undoable)
}

func TestCreateEntityValidatesInput(t *testing.T) {
	f := newFixture(t)
	create := usecase.NewCreateEntity(f.deps)

	_, err := create.Execute(usecase.EntityIn{WorkspaceID: f.workspaceID, Name: ""})
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	_, err = create.Execute(usecase.EntityIn{WorkspaceID: f.workspaceID, Name: "9lives"})
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	_, err = create.Execute(usecase.EntityIn{Name: "User"})
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
}

func TestUpdateEntityRejectsInheritanceCycle(t *testing.T) {
	f := newFixture(t)
	create := usecase.NewCreateEntity(f.deps)

	base, err := create.Execute(usecase.EntityIn{WorkspaceID: f.workspaceID, Name: "Base"})
	require.NoError(t, err)
	child, err := create.Execute(usecase.EntityIn{WorkspaceID: f.workspaceID, Name: "Child", InheritsFrom: base.ID})
	require.NoError(t, err)

	// Base inheriting from its own descendant closes a cycle.
	_, err = usecase.NewUpdateEntity(f.deps).Execute(usecase.EntityIn{
		ID:           base.ID,
		Name:         "Base",
		InheritsFrom: child.ID,
	})
	assert.ErrorIs(t, err, domain.ErrCycleDetected)

	// Self-inheritance is the smallest cycle.
	_, err = usecase.NewUpdateEntity(f.deps).Execute(usecase.EntityIn{
		ID:           base.ID,
		Name:         "Base",
		InheritsFrom: base.ID,
	})
	assert.ErrorIs(t, err, domain.ErrCycleDetected)
}

func TestCreateFieldDerivesRelationships(t *testing.T) {
	f := newFixture(t)
	create := usecase.NewCreateEntity(f.deps)

	user, err := create.Execute(usecase.EntityIn{WorkspaceID: f.workspaceID, Name: "User"})
	require.NoError(t, err)
	post, err := create.Execute(usecase.EntityIn{WorkspaceID: f.workspaceID, Name: "Post"})
	require.NoError(t, err)

	_, err = usecase.NewCreateField(f.deps).Execute(usecase.FieldIn{
		EntityID:         post.ID,
		Name:             "author",
		Type:             domain.FieldEntity,
		RelationshipKind: domain.ManyToOne,
		TargetEntity:     user.ID,
		Strong:           true,
	})
	require.NoError(t, err)

	require.NoError(t, f.factory.Read(func(set *repository.Set) error {
		postEnt, err := set.Entities().Get(post.ID)
		require.NoError(t, err)
		require.Len(t, postEnt.Relationships, 1, "forward row on the owner")

		rel, err := set.Relationships().Get(postEnt.Relationships[0])
		require.NoError(t, err)
		assert.Equal(t, post.ID, rel.LeftEntity)
		assert.Equal(t, user.ID, rel.RightEntity)
		assert.Equal(t, "author", rel.FieldName)
		assert.Equal(t, domain.ManyToOne, rel.Type)
		assert.Equal(t, domain.Forward, rel.Direction)
		assert.Equal(t, domain.Strong, rel.Strength)

		userEnt, err := set.Entities().Get(user.ID)
		require.NoError(t, err)
		require.Len(t, userEnt.Relationships, 1, "backward row on the target")
		back, err := set.Relationships().Get(userEnt.Relationships[0])
		require.NoError(t, err)
		assert.Equal(t, domain.Backward, back.Direction)
		return nil
	}))
}

func TestUndoRedoCreateEntity(t *testing.T) {
	f := newFixture(t)

	out, err := usecase.NewCreateEntity(f.deps).Execute(usecase.EntityIn{
		WorkspaceID: f.workspaceID,
		Name:        "User",
	})
	require.NoError(t, err)
	require.True(t, f.history.CanUndo())

	require.NoError(t, f.history.Undo())
	assert.Empty(t, f.readEntities(t))
	_, err = usecase.NewGetEntity(f.deps).Execute(out.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, f.history.Redo())
	assert.Equal(t, []domain.EntityID{out.ID}, f.readEntities(t))
	got, err := usecase.NewGetEntity(f.deps).Execute(out.ID)
	require.NoError(t, err)
	assert.Equal(t, "User", got.Name)
}

func TestUndoRemoveEntityRestoresSubtree(t *testing.T) {
	f := newFixture(t)

	user, err := usecase.NewCreateEntity(f.deps).Execute(usecase.EntityIn{
		WorkspaceID: f.workspaceID,
		Name:        "User",
	})
	require.NoError(t, err)
	field, err := usecase.NewCreateField(f.deps).Execute(usecase.FieldIn{
		EntityID: user.ID,
		Name:     "name",
		Type:     domain.FieldString,
	})
	require.NoError(t, err)

	require.NoError(t, usecase.NewRemoveEntity(f.deps).Execute(user.ID))
	_, err = usecase.NewGetField(f.deps).Execute(field.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, f.history.Undo())

	got, err := usecase.NewGetEntity(f.deps).Execute(user.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.EntityID{field.ID}, got.Fields)
	restored, err := usecase.NewGetField(f.deps).Execute(field.ID)
	require.NoError(t, err)
	assert.Equal(t, "name", restored.Name)
	assert.Equal(t, []domain.EntityID{user.ID}, f.readEntities(t), "workspace link restored")
}

func TestConsecutiveUpdatesMerge(t *testing.T) {
	f := newFixture(t)

	out, err := usecase.NewCreateEntity(f.deps).Execute(usecase.EntityIn{
		WorkspaceID: f.workspaceID,
		Name:        "User",
	})
	require.NoError(t, err)

	update := usecase.NewUpdateEntity(f.deps)
	_, err = update.Execute(usecase.EntityIn{ID: out.ID, Name: "Person"})
	require.NoError(t, err)
	_, err = update.Execute(usecase.EntityIn{ID: out.ID, Name: "Account"})
	require.NoError(t, err)

	// Both updates merged into one step: one undo returns to the created
	// name, the next one removes the entity.
	require.NoError(t, f.history.Undo())
	got, err := usecase.NewGetEntity(f.deps).Execute(out.ID)
	require.NoError(t, err)
	assert.Equal(t, "User", got.Name)

	require.NoError(t, f.history.Undo())
	_, err = usecase.NewGetEntity(f.deps).Execute(out.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateDtoBindsSlotUniquely(t *testing.T) {
	f := newFixture(t)

	feature, err := usecase.NewCreateFeature(f.deps).Execute(usecase.FeatureIn{
		WorkspaceID: f.workspaceID,
		Name:        "accounts",
	})
	require.NoError(t, err)

	uc1, err := usecase.NewCreateUseCase(f.deps).Execute(usecase.UseCaseIn{
		FeatureID: feature.ID,
		Name:      "create_user",
	})
	require.NoError(t, err)
	uc2, err := usecase.NewCreateUseCase(f.deps).Execute(usecase.UseCaseIn{
		FeatureID: feature.ID,
		Name:      "update_user",
	})
	require.NoError(t, err)

	dto, err := usecase.NewCreateDto(f.deps).Execute(usecase.DtoIn{
		UseCaseID: uc1.ID,
		Side:      usecase.DtoSideIn,
		Name:      "UserDto",
	})
	require.NoError(t, err)

	// The same DTO cannot fill a slot of another use case.
	err = f.factory.Write(func(set *repository.Set) error {
		return set.UseCases().SetRelationship(uc2.ID, domain.RelUseCaseDtoIn, []domain.EntityID{dto.ID})
	})
	assert.ErrorIs(t, err, domain.ErrUniquenessViolation)
}

func TestRemoveFeatureCascadesAndRestores(t *testing.T) {
	f := newFixture(t)

	feature, err := usecase.NewCreateFeature(f.deps).Execute(usecase.FeatureIn{
		WorkspaceID: f.workspaceID,
		Name:        "accounts",
	})
	require.NoError(t, err)
	uc1, err := usecase.NewCreateUseCase(f.deps).Execute(usecase.UseCaseIn{
		FeatureID: feature.ID,
		Name:      "create_user",
	})
	require.NoError(t, err)
	dto, err := usecase.NewCreateDto(f.deps).Execute(usecase.DtoIn{
		UseCaseID: uc1.ID,
		Side:      usecase.DtoSideOut,
		Name:      "UserDto",
	})
	require.NoError(t, err)

	require.NoError(t, usecase.NewRemoveFeature(f.deps).Execute(feature.ID))

	require.NoError(t, f.factory.Read(func(set *repository.Set) error {
		for _, probe := range []struct {
			kind domain.Kind
			id   domain.EntityID
		}{
			{domain.KindFeature, feature.ID},
			{domain.KindUseCase, uc1.ID},
			{domain.KindDto, dto.ID},
		} {
			_, err := set.GetAny(probe.kind, probe.id)
			assert.ErrorIs(t, err, domain.ErrNotFound, "%s should be gone", probe.kind)
		}
		return nil
	}))

	require.NoError(t, f.history.Undo())
	got, err := usecase.NewGetUseCase(f.deps).Execute(uc1.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.ID, got.DtoOut)
}
