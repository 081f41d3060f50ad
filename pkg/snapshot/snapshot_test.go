package snapshot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacquetc/qleany/datastore"
	_ "github.com/jacquetc/qleany/datastore/memory"
	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/repository"
	"github.com/jacquetc/qleany/pkg/snapshot"
	"github.com/jacquetc/qleany/pkg/uow"
)

func TestDeriveNameForms(t *testing.T) {
	for _, tc := range []struct {
		in     string
		snake  string
		pascal string
		camel  string
		plural string
	}{
		{"User", "user", "User", "user", "users"},
		{"user_account", "user_account", "UserAccount", "userAccount", "user_accounts"},
		{"createBook", "create_book", "CreateBook", "createBook", "create_books"},
		{"Category", "category", "Category", "category", "categories"},
		{"address", "address", "Address", "address", "addresses"},
	} {
		forms := snapshot.DeriveNameForms(tc.in)
		assert.Equal(t, tc.snake, forms.Snake, tc.in)
		assert.Equal(t, tc.pascal, forms.Pascal, tc.in)
		assert.Equal(t, tc.camel, forms.Camel, tc.in)
		assert.Equal(t, tc.plural, forms.Plural, tc.in)
	}
}

// seed is the id map of the fixture manifest.
type seed struct {
	workspace domain.EntityID
	user      domain.EntityID
	post      domain.EntityID
	base      domain.EntityID
	feature   domain.EntityID
	useCase   domain.EntityID
	dtoIn     domain.EntityID
}

// newStore seeds a workspace with a Base<-User inheritance pair, a Post
// referencing User, a heritage-only entity and one feature with one use
// case.
func newStore(t *testing.T) (*uow.Factory, *seed) {
	t.Helper()
	store, err := datastore.New(datastore.DefaultConfig(datastore.TypeMemory))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	factory := uow.NewFactory(store, nil)
	s := &seed{}

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

		baseField, err := set.Fields().Create(&domain.Field{Name: "id", Type: domain.FieldUuid})
		if err != nil {
			return err
		}
		s.base, err = set.Entities().Create(&domain.Entity{
			Name:            "Base",
			OnlyForHeritage: true,
			Fields:          []domain.EntityID{baseField},
		})
		if err != nil {
			return err
		}

		nameField, err := set.Fields().Create(&domain.Field{Name: "name", Type: domain.FieldString})
		if err != nil {
			return err
		}
		s.user, err = set.Entities().Create(&domain.Entity{
			Name:         "User",
			InheritsFrom: s.base,
			Fields:       []domain.EntityID{nameField},
		})
		if err != nil {
			return err
		}

		authorField, err := set.Fields().Create(&domain.Field{
			Name:             "author",
			Type:             domain.FieldEntity,
			RelationshipKind: domain.ManyToOne,
			TargetEntity:     s.user,
			Strong:           true,
		})
		if err != nil {
			return err
		}
		s.post, err = set.Entities().Create(&domain.Entity{
			Name:   "Post",
			Fields: []domain.EntityID{authorField},
		})
		if err != nil {
			return err
		}

		forwardRel, err := set.Relationships().Create(&domain.Relationship{
			LeftEntity:  s.post,
			RightEntity: s.user,
			FieldName:   "author",
			Type:        domain.ManyToOne,
			Direction:   domain.Forward,
			Strength:    domain.Strong,
		})
		if err != nil {
			return err
		}
		backwardRel, err := set.Relationships().Create(&domain.Relationship{
			LeftEntity:  s.post,
			RightEntity: s.user,
			FieldName:   "author",
			Type:        domain.ManyToOne,
			Direction:   domain.Backward,
			Strength:    domain.Strong,
		})
		if err != nil {
			return err
		}
		if err := set.Entities().SetRelationship(s.post, domain.RelEntityRelationships, []domain.EntityID{forwardRel}); err != nil {
			return err
		}
		if err := set.Entities().SetRelationship(s.user, domain.RelEntityRelationships, []domain.EntityID{backwardRel}); err != nil {
			return err
		}

		s.dtoIn, err = set.Dtos().Create(&domain.Dto{Name: "CreatePostDto"})
		if err != nil {
			return err
		}
		s.useCase, err = set.UseCases().Create(&domain.UseCase{
			Name:     "create_post",
			Entities: []domain.EntityID{s.post},
			DtoIn:    s.dtoIn,
		})
		if err != nil {
			return err
		}
		s.feature, err = set.Features().Create(&domain.Feature{
			Name:     "posts",
			UseCases: []domain.EntityID{s.useCase},
		})
		if err != nil {
			return err
		}

		s.workspace, err = set.Workspaces().Create(&domain.Workspace{
			Global:   globalID,
			UI:       uiID,
			Entities: []domain.EntityID{s.base, s.user, s.post},
			Features: []domain.EntityID{s.feature},
		})
		if err != nil {
			return err
		}
		_, err = set.Roots().Create(&domain.Root{
			ID:        domain.RootID,
			Workspace: s.workspace,
		})
		return err
	}))
	return factory, s
}

func build(t *testing.T, factory *uow.Factory, file *domain.File) *snapshot.Snapshot {
	t.Helper()
	var snap *snapshot.Snapshot
	require.NoError(t, factory.Read(func(set *repository.Set) error {
		var err error
		snap, err = snapshot.NewBuilder(set).Build(file)
		return err
	}))
	return snap
}

func idRef(id domain.EntityID) *domain.EntityID { return &id }

func TestMinimalScope(t *testing.T) {
	factory, _ := newStore(t)

	snap := build(t, factory, &domain.File{Name: "CMakeLists.txt"})
	assert.Equal(t, "bookshop", snap.Global.ApplicationName)
	assert.Equal(t, "cpp-qt", snap.Global.Language)
	assert.True(t, snap.UI.QML)
	assert.Empty(t, snap.Entities)
	assert.Empty(t, snap.Features)
	assert.Empty(t, snap.UseCases)
	assert.Empty(t, snap.Dtos)
}

func TestFeatureScopePullsUseCasesAndDtos(t *testing.T) {
	factory, s := newStore(t)

	snap := build(t, factory, &domain.File{Name: "f.rs", Feature: idRef(s.feature)})
	require.Len(t, snap.Features, 1)
	assert.Equal(t, "posts", snap.Features[0].Name.Original)
	require.Len(t, snap.UseCases, 1)
	assert.Equal(t, "CreatePost", snap.UseCases[0].Name.Pascal)
	assert.True(t, snap.UseCases[0].HasDtoIn)
	require.Len(t, snap.Dtos, 1)

	// Use-case entities come along, plus relationship endpoints.
	names := entityNames(snap)
	assert.Contains(t, names, "Post")
	assert.Contains(t, names, "User")
}

func TestEntityWildcardExcludesHeritageOnly(t *testing.T) {
	factory, _ := newStore(t)

	snap := build(t, factory, &domain.File{Name: "all.rs", Entity: idRef(0)})
	names := entityNames(snap)
	assert.Contains(t, names, "User")
	assert.Contains(t, names, "Post")
	assert.NotContains(t, names, "Base", "heritage-only entities are skipped by the wildcard")
}

func TestEntityScopePullsDependencies(t *testing.T) {
	factory, s := newStore(t)

	snap := build(t, factory, &domain.File{Name: "post.rs", Entity: idRef(s.post)})
	names := entityNames(snap)
	assert.Equal(t, []string{"Post", "User"}, names, "target of the entity-typed field is pulled in")
}

func TestEntityVMShape(t *testing.T) {
	factory, s := newStore(t)

	snap := build(t, factory, &domain.File{Name: "user.rs", Entity: idRef(s.user)})
	require.NotEmpty(t, snap.Entities)
	user := snap.Entities[0]
	assert.Equal(t, "User", user.Name.Original)
	assert.True(t, user.HasParent)
	assert.Equal(t, "Base", user.ParentName.Original)

	// Inherited fields come first.
	require.Len(t, user.Fields, 2)
	assert.Equal(t, "id", user.Fields[0].Name.Original)
	assert.True(t, user.Fields[0].Inherited)
	assert.Equal(t, "name", user.Fields[1].Name.Original)
	assert.False(t, user.Fields[1].Inherited)

	// User is strongly referenced by Post.author, so Post owns it.
	require.True(t, user.Owner.Found)
	assert.Equal(t, "Post", user.Owner.Name.Original)
	assert.Equal(t, "author", user.Owner.Field.Original)
	require.Len(t, user.BackwardOnly, 1)
	assert.Equal(t, "backward", user.BackwardOnly[0].Direction)
}

func TestSnapshotDeterminismAcrossFiles(t *testing.T) {
	factory, s := newStore(t)

	a := build(t, factory, &domain.File{ID: 1, Name: "a.rs", Entity: idRef(s.post)})
	b := build(t, factory, &domain.File{ID: 2, Name: "b.rs", Entity: idRef(s.post)})

	// Same scope triple, same payload modulo the file slot.
	a.File = snapshot.FileVM{}
	b.File = snapshot.FileVM{}
	assert.Equal(t, a, b)
}

func TestCacheHitRebindsFile(t *testing.T) {
	factory, s := newStore(t)
	cache := snapshot.NewCache()

	first := &domain.File{ID: 1, Name: "a.rs", Entity: idRef(s.post)}
	_, ok := cache.Get(first)
	assert.False(t, ok)

	snap := build(t, factory, first)
	cache.Put(first, snap)

	second := &domain.File{ID: 2, Name: "b.rs", Entity: idRef(s.post)}
	hit, ok := cache.Get(second)
	require.True(t, ok)
	assert.Equal(t, domain.EntityID(2), hit.File.ID)
	assert.Equal(t, "b.rs", hit.File.Name)
	assert.Equal(t, len(snap.Entities), len(hit.Entities))

	// Wildcard and nil scopes are distinct keys.
	_, ok = cache.Get(&domain.File{Name: "c.rs", Entity: idRef(0)})
	assert.False(t, ok)
	_, ok = cache.Get(&domain.File{Name: "d.rs"})
	assert.False(t, ok)
	assert.Equal(t, 1, cache.Len())
}

func TestDanglingScopeFabricatesEmptyVM(t *testing.T) {
	factory, _ := newStore(t)

	snap := build(t, factory, &domain.File{Name: "ghost.rs", Entity: idRef(9999)})
	require.Len(t, snap.Entities, 1)
	assert.Equal(t, domain.EntityID(9999), snap.Entities[0].ID)
	assert.Equal(t, "", snap.Entities[0].Name.Original)
}

func entityNames(snap *snapshot.Snapshot) []string {
	var names []string
	for _, e := range snap.Entities {
		names = append(names, e.Name.Original)
	}
	return names
}
