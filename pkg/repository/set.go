package repository

import (
	"fmt"

	"github.com/jacquetc/qleany/datastore"
	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/events"
)

// Publisher collects events queued by repositories during a transaction. The
// unit of work implements it and replays the queue after commit.
type Publisher interface {
	Queue(events.Event)
}

// kindRepo is the untyped surface Set needs for cascade dispatch and for
// kind-agnostic callers such as undo state capture.
type kindRepo interface {
	deleteByID(id domain.EntityID, tolerateMissing bool) error
	scrubField(field string, id domain.EntityID) error
	getAny(id domain.EntityID) (domain.Persistable, error)
	createAny(p domain.Persistable) (domain.EntityID, error)
	updateAny(p domain.Persistable) error

	GetRelationship(id domain.EntityID, field string) ([]domain.EntityID, error)
	GetRelationshipsFromRightIDs(field string, rightIDs []domain.EntityID) ([]RelationshipEntry, error)
	SetRelationship(id domain.EntityID, field string, rightIDs []domain.EntityID) error
}

func (r *Repo[T]) scrubField(field string, id domain.EntityID) error {
	return r.DeleteAllRelationshipsWith(field, []domain.EntityID{id})
}

func (r *Repo[T]) getAny(id domain.EntityID) (domain.Persistable, error) {
	return r.Get(id)
}

func (r *Repo[T]) createAny(p domain.Persistable) (domain.EntityID, error) {
	typed, ok := p.(T)
	if !ok {
		return 0, fmt.Errorf("%w: value is not a %s", domain.ErrValidationFailed, r.desc.Kind)
	}
	return r.Create(typed)
}

func (r *Repo[T]) updateAny(p domain.Persistable) error {
	typed, ok := p.(T)
	if !ok {
		return fmt.Errorf("%w: value is not a %s", domain.ErrValidationFailed, r.desc.Kind)
	}
	return r.Update(typed)
}

// Set is the repository factory bound to one transaction. Every repository
// obtained from the same Set shares that transaction, so a use case touching
// several kinds commits or rolls back as one unit.
type Set struct {
	tx        datastore.Tx
	readOnly  bool
	publisher Publisher

	roots          *Repo[*domain.Root]
	workspaces     *Repo[*domain.Workspace]
	systems        *Repo[*domain.System]
	globals        *Repo[*domain.Global]
	userInterfaces *Repo[*domain.UserInterface]
	entities       *Repo[*domain.Entity]
	fields         *Repo[*domain.Field]
	relationships  *Repo[*domain.Relationship]
	features       *Repo[*domain.Feature]
	useCases       *Repo[*domain.UseCase]
	dtos           *Repo[*domain.Dto]
	dtoFields      *Repo[*domain.DtoField]
	files          *Repo[*domain.File]

	byKind map[domain.Kind]kindRepo
}

// NewSet binds a repository set to a transaction. The publisher may be nil,
// in which case repositories queue nothing.
func NewSet(tx datastore.Tx, publisher Publisher) *Set {
	s := &Set{
		tx:        tx,
		readOnly:  !tx.Writable(),
		publisher: publisher,
	}

	s.roots = newRepo(s, domain.KindRoot, func() *domain.Root { return &domain.Root{} })
	s.workspaces = newRepo(s, domain.KindWorkspace, func() *domain.Workspace { return &domain.Workspace{} })
	s.systems = newRepo(s, domain.KindSystem, func() *domain.System { return &domain.System{} })
	s.globals = newRepo(s, domain.KindGlobal, func() *domain.Global { return &domain.Global{} })
	s.userInterfaces = newRepo(s, domain.KindUserInterface, func() *domain.UserInterface { return &domain.UserInterface{} })
	s.entities = newRepo(s, domain.KindEntity, func() *domain.Entity { return &domain.Entity{} })
	s.fields = newRepo(s, domain.KindField, func() *domain.Field { return &domain.Field{} })
	s.relationships = newRepo(s, domain.KindRelationship, func() *domain.Relationship { return &domain.Relationship{} })
	s.features = newRepo(s, domain.KindFeature, func() *domain.Feature { return &domain.Feature{} })
	s.useCases = newRepo(s, domain.KindUseCase, func() *domain.UseCase { return &domain.UseCase{} })
	s.dtos = newRepo(s, domain.KindDto, func() *domain.Dto { return &domain.Dto{} })
	s.dtoFields = newRepo(s, domain.KindDtoField, func() *domain.DtoField { return &domain.DtoField{} })
	s.files = newRepo(s, domain.KindFile, func() *domain.File { return &domain.File{} })

	s.byKind = map[domain.Kind]kindRepo{
		domain.KindRoot:          s.roots,
		domain.KindWorkspace:     s.workspaces,
		domain.KindSystem:        s.systems,
		domain.KindGlobal:        s.globals,
		domain.KindUserInterface: s.userInterfaces,
		domain.KindEntity:        s.entities,
		domain.KindField:         s.fields,
		domain.KindRelationship:  s.relationships,
		domain.KindFeature:       s.features,
		domain.KindUseCase:       s.useCases,
		domain.KindDto:           s.dtos,
		domain.KindDtoField:      s.dtoFields,
		domain.KindFile:          s.files,
	}
	return s
}

// ReadOnly reports whether the underlying transaction is read-only.
func (s *Set) ReadOnly() bool { return s.readOnly }

func (s *Set) Roots() *Repo[*domain.Root]                   { return s.roots }
func (s *Set) Workspaces() *Repo[*domain.Workspace]         { return s.workspaces }
func (s *Set) Systems() *Repo[*domain.System]               { return s.systems }
func (s *Set) Globals() *Repo[*domain.Global]               { return s.globals }
func (s *Set) UserInterfaces() *Repo[*domain.UserInterface] { return s.userInterfaces }
func (s *Set) Entities() *Repo[*domain.Entity]              { return s.entities }
func (s *Set) Fields() *Repo[*domain.Field]                 { return s.fields }
func (s *Set) Relationships() *Repo[*domain.Relationship]   { return s.relationships }
func (s *Set) Features() *Repo[*domain.Feature]             { return s.features }
func (s *Set) UseCases() *Repo[*domain.UseCase]             { return s.useCases }
func (s *Set) Dtos() *Repo[*domain.Dto]                     { return s.dtos }
func (s *Set) DtoFields() *Repo[*domain.DtoField]           { return s.dtoFields }
func (s *Set) Files() *Repo[*domain.File]                   { return s.files }

func (s *Set) repoOf(kind domain.Kind) (kindRepo, error) {
	repo, ok := s.byKind[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", domain.ErrStorage, kind)
	}
	return repo, nil
}

// GetAny loads an entity by kind and id without static typing.
func (s *Set) GetAny(kind domain.Kind, id domain.EntityID) (domain.Persistable, error) {
	repo, err := s.repoOf(kind)
	if err != nil {
		return nil, err
	}
	return repo.getAny(id)
}

// CreateAny persists an entity through the repository of its own kind.
func (s *Set) CreateAny(p domain.Persistable) (domain.EntityID, error) {
	repo, err := s.repoOf(p.EntityKind())
	if err != nil {
		return 0, err
	}
	return repo.createAny(p)
}

// UpdateAny overwrites an entity through the repository of its own kind.
func (s *Set) UpdateAny(p domain.Persistable) error {
	repo, err := s.repoOf(p.EntityKind())
	if err != nil {
		return err
	}
	return repo.updateAny(p)
}

// DeleteAny deletes by kind and id with full cascade.
func (s *Set) DeleteAny(kind domain.Kind, id domain.EntityID) error {
	if s.readOnly {
		return fmt.Errorf("%w: repository set is read-only", domain.ErrStorage)
	}
	return s.deleteCascade(kind, id, false)
}

// SetRelationshipAny rewrites one forward junction row by kind.
func (s *Set) SetRelationshipAny(kind domain.Kind, id domain.EntityID, field string, rightIDs []domain.EntityID) error {
	repo, err := s.repoOf(kind)
	if err != nil {
		return err
	}
	return repo.SetRelationship(id, field, rightIDs)
}

// deleteCascade dispatches a delete to the repository of the given kind.
func (s *Set) deleteCascade(kind domain.Kind, id domain.EntityID, tolerateMissing bool) error {
	repo, ok := s.byKind[kind]
	if !ok {
		return fmt.Errorf("%w: unknown kind %q", domain.ErrStorage, kind)
	}
	return repo.deleteByID(id, tolerateMissing)
}

// scrubReferences removes id from every row of the forward junction named by
// edge, keeping the referencing rows themselves.
func (s *Set) scrubReferences(edge backEdge, id domain.EntityID) error {
	repo, ok := s.byKind[edge.Left]
	if !ok {
		return fmt.Errorf("%w: unknown kind %q", domain.ErrStorage, edge.Left)
	}
	return repo.scrubField(edge.Field.Name, id)
}
