package snapshot

import (
	"errors"

	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/repository"
)

// Builder materializes snapshots against one repository set, usually bound
// to a read transaction.
type Builder struct {
	set *repository.Set
}

// NewBuilder creates a builder over a repository set.
func NewBuilder(set *repository.Set) *Builder {
	return &Builder{set: set}
}

// collector accumulates scope members in insertion order, deduplicated.
type collector struct {
	entityIDs  []domain.EntityID
	entitySeen map[domain.EntityID]bool

	featureIDs  []domain.EntityID
	featureSeen map[domain.EntityID]bool

	useCaseIDs  []domain.EntityID
	useCaseSeen map[domain.EntityID]bool

	dtoIDs  []domain.EntityID
	dtoSeen map[domain.EntityID]bool
}

func newCollector() *collector {
	return &collector{
		entitySeen:  make(map[domain.EntityID]bool),
		featureSeen: make(map[domain.EntityID]bool),
		useCaseSeen: make(map[domain.EntityID]bool),
		dtoSeen:     make(map[domain.EntityID]bool),
	}
}

func (c *collector) addEntity(id domain.EntityID) bool {
	if id == 0 || c.entitySeen[id] {
		return false
	}
	c.entitySeen[id] = true
	c.entityIDs = append(c.entityIDs, id)
	return true
}

func (c *collector) addFeature(id domain.EntityID) bool {
	if id == 0 || c.featureSeen[id] {
		return false
	}
	c.featureSeen[id] = true
	c.featureIDs = append(c.featureIDs, id)
	return true
}

func (c *collector) addUseCase(id domain.EntityID) bool {
	if id == 0 || c.useCaseSeen[id] {
		return false
	}
	c.useCaseSeen[id] = true
	c.useCaseIDs = append(c.useCaseIDs, id)
	return true
}

func (c *collector) addDto(id domain.EntityID) bool {
	if id == 0 || c.dtoSeen[id] {
		return false
	}
	c.dtoSeen[id] = true
	c.dtoIDs = append(c.dtoIDs, id)
	return true
}

// Build materializes the snapshot for one generator file. Scope slots
// compose additively; dangling references yield fabricated empty view
// models rather than failures.
func (b *Builder) Build(file *domain.File) (*Snapshot, error) {
	snap := &Snapshot{
		File: FileVM{
			ID:           file.ID,
			Name:         file.Name,
			RelativePath: file.RelativePath,
			Group:        file.Group,
			TemplateName: file.TemplateName,
		},
	}

	workspace, err := b.loadWorkspace(snap)
	if err != nil {
		return nil, err
	}

	c := newCollector()

	if file.Feature != nil {
		if *file.Feature == 0 {
			if workspace != nil {
				for _, id := range workspace.Features {
					if err := b.collectFeature(c, id); err != nil {
						return nil, err
					}
				}
			}
		} else if err := b.collectFeature(c, *file.Feature); err != nil {
			return nil, err
		}
	}

	if file.UseCase != nil {
		if *file.UseCase == 0 {
			if workspace != nil {
				for _, featureID := range workspace.Features {
					feature, err := b.set.Features().Get(featureID)
					if err != nil {
						if errors.Is(err, domain.ErrNotFound) {
							continue
						}
						return nil, err
					}
					for _, id := range feature.UseCases {
						if err := b.collectUseCase(c, id); err != nil {
							return nil, err
						}
					}
				}
			}
		} else if err := b.collectUseCase(c, *file.UseCase); err != nil {
			return nil, err
		}
	}

	if file.Entity != nil {
		if *file.Entity == 0 {
			if workspace != nil {
				for _, id := range workspace.Entities {
					ent, err := b.set.Entities().Get(id)
					if err != nil {
						if errors.Is(err, domain.ErrNotFound) {
							continue
						}
						return nil, err
					}
					if ent.OnlyForHeritage {
						continue
					}
					if err := b.collectEntityWithDeps(c, id); err != nil {
						return nil, err
					}
				}
			}
		} else if err := b.collectEntityWithDeps(c, *file.Entity); err != nil {
			return nil, err
		}
	}

	// Pull in missing relationship endpoints so templates never see a
	// dangling counterpart. The list may grow while scanning it.
	for i := 0; i < len(c.entityIDs); i++ {
		ent, err := b.set.Entities().Get(c.entityIDs[i])
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		rels, err := b.loadRelationships(ent.Relationships)
		if err != nil {
			return nil, err
		}
		for _, rel := range rels {
			c.addEntity(rel.LeftEntity)
			c.addEntity(rel.RightEntity)
		}
	}

	for _, id := range c.entityIDs {
		vm, err := b.entityVM(id)
		if err != nil {
			return nil, err
		}
		snap.Entities = append(snap.Entities, vm)
	}
	for _, id := range c.featureIDs {
		vm, err := b.featureVM(id)
		if err != nil {
			return nil, err
		}
		snap.Features = append(snap.Features, vm)
	}
	for _, id := range c.useCaseIDs {
		vm, err := b.useCaseVM(id)
		if err != nil {
			return nil, err
		}
		snap.UseCases = append(snap.UseCases, vm)
	}
	for _, id := range c.dtoIDs {
		vm, err := b.dtoVM(id)
		if err != nil {
			return nil, err
		}
		snap.Dtos = append(snap.Dtos, vm)
	}
	return snap, nil
}

// loadWorkspace fills the global and ui slots and returns the workspace, or
// nil when the store has no bootstrap yet.
func (b *Builder) loadWorkspace(snap *Snapshot) (*domain.Workspace, error) {
	root, err := b.set.Roots().Get(domain.RootID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	workspace, err := b.set.Workspaces().Get(root.Workspace)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if global, err := b.set.Globals().Get(workspace.Global); err == nil {
		snap.Global = GlobalVM{
			ApplicationName:    global.ApplicationName,
			OrganisationName:   global.OrganisationName,
			OrganisationDomain: global.OrganisationDomain,
			Language:           string(global.Language),
			PrefixPath:         global.PrefixPath,
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if ui, err := b.set.UserInterfaces().Get(workspace.UI); err == nil {
		snap.UI = UIVM{
			CLI:           ui.CLI,
			DeclarativeUI: ui.DeclarativeUI,
			Widgets:       ui.Widgets,
			QML:           ui.QML,
			Kirigami:      ui.Kirigami,
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return workspace, nil
}

// collectFeature pulls a feature, its use cases, their entities and DTOs.
func (b *Builder) collectFeature(c *collector, id domain.EntityID) error {
	if !c.addFeature(id) {
		return nil
	}
	feature, err := b.set.Features().Get(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	for _, useCaseID := range feature.UseCases {
		if err := b.collectUseCase(c, useCaseID); err != nil {
			return err
		}
	}
	return nil
}

// collectUseCase pulls a use case, its entities and its DTOs.
func (b *Builder) collectUseCase(c *collector, id domain.EntityID) error {
	if !c.addUseCase(id) {
		return nil
	}
	useCase, err := b.set.UseCases().Get(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	for _, entityID := range useCase.Entities {
		c.addEntity(entityID)
	}
	c.addDto(useCase.DtoIn)
	c.addDto(useCase.DtoOut)
	return nil
}

// collectEntityWithDeps pulls an entity plus every entity reachable through
// its entity-typed fields.
func (b *Builder) collectEntityWithDeps(c *collector, id domain.EntityID) error {
	if !c.addEntity(id) {
		return nil
	}
	ent, err := b.set.Entities().Get(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	fields, err := b.loadFields(ent.Fields)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if f.Type == domain.FieldEntity && f.TargetEntity != 0 {
			c.addEntity(f.TargetEntity)
		}
	}
	return nil
}

// loadFields reads fields tolerating dangling ids.
func (b *Builder) loadFields(ids []domain.EntityID) ([]*domain.Field, error) {
	out := make([]*domain.Field, 0, len(ids))
	for _, id := range ids {
		f, err := b.set.Fields().Get(id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// loadRelationships reads relationship rows tolerating dangling ids.
func (b *Builder) loadRelationships(ids []domain.EntityID) ([]*domain.Relationship, error) {
	out := make([]*domain.Relationship, 0, len(ids))
	for _, id := range ids {
		rel, err := b.set.Relationships().Get(id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, rel)
	}
	return out, nil
}

func (b *Builder) entityName(id domain.EntityID) NameForms {
	if id == 0 {
		return NameForms{}
	}
	ent, err := b.set.Entities().Get(id)
	if err != nil {
		return NameForms{}
	}
	return DeriveNameForms(ent.Name)
}

// entityVM builds the denormalized view of one entity. Every scope path
// funnels through here. A missing entity yields an empty view model with
// only the id set.
func (b *Builder) entityVM(id domain.EntityID) (EntityVM, error) {
	ent, err := b.set.Entities().Get(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return EntityVM{ID: id}, nil
		}
		return EntityVM{}, err
	}

	vm := EntityVM{
		ID:                id,
		Name:              DeriveNameForms(ent.Name),
		OnlyForHeritage:   ent.OnlyForHeritage,
		SingleModel:       ent.SingleModel,
		AllowDirectAccess: ent.AllowDirectAccess,
		Undoable:          ent.Undoable,
	}
	if ent.InheritsFrom != 0 {
		vm.HasParent = true
		vm.ParentName = b.entityName(ent.InheritsFrom)
	}

	// Ancestor chain, topmost first, for inherited-first field ordering.
	var chain []*domain.Entity
	seen := map[domain.EntityID]bool{id: true}
	for parentID := ent.InheritsFrom; parentID != 0 && !seen[parentID]; {
		seen[parentID] = true
		parent, err := b.set.Entities().Get(parentID)
		if err != nil {
			break
		}
		chain = append([]*domain.Entity{parent}, chain...)
		parentID = parent.InheritsFrom
	}

	for _, ancestor := range chain {
		fields, err := b.loadFields(ancestor.Fields)
		if err != nil {
			return EntityVM{}, err
		}
		for _, f := range fields {
			vm.Fields = append(vm.Fields, b.fieldVM(f, true))
		}
	}
	ownFields, err := b.loadFields(ent.Fields)
	if err != nil {
		return EntityVM{}, err
	}
	for _, f := range ownFields {
		vm.Fields = append(vm.Fields, b.fieldVM(f, false))
	}

	rels, err := b.loadRelationships(ent.Relationships)
	if err != nil {
		return EntityVM{}, err
	}
	type dedupeKey struct {
		field       string
		counterpart domain.EntityID
	}
	seenAll := make(map[dedupeKey]bool)
	for _, rel := range rels {
		var counterpart domain.EntityID
		if rel.Direction == domain.Forward {
			counterpart = rel.RightEntity
		} else {
			counterpart = rel.LeftEntity
		}
		relVM := RelationshipVM{
			FieldName:       DeriveNameForms(rel.FieldName),
			CounterpartName: b.entityName(counterpart),
			Type:            rel.Type.String(),
			Direction:       rel.Direction.String(),
			Strength:        rel.Strength.String(),
		}

		key := dedupeKey{field: rel.FieldName, counterpart: counterpart}
		if !seenAll[key] {
			seenAll[key] = true
			vm.All = append(vm.All, relVM)
		}
		if rel.Direction == domain.Forward {
			vm.ForwardOnly = append(vm.ForwardOnly, relVM)
		} else {
			vm.BackwardOnly = append(vm.BackwardOnly, relVM)
			if rel.Strength == domain.Strong && !vm.Owner.Found {
				vm.Owner = OwnerVM{
					Found: true,
					Name:  b.entityName(rel.LeftEntity),
					Field: DeriveNameForms(rel.FieldName),
				}
			}
		}
	}
	return vm, nil
}

func (b *Builder) fieldVM(f *domain.Field, inherited bool) FieldVM {
	vm := FieldVM{
		Name:             DeriveNameForms(f.Name),
		Type:             f.Type.String(),
		RelationshipKind: f.RelationshipKind.String(),
		Optional:         f.Optional,
		Strong:           f.Strong,
		ListModel:        f.ListModel,
		EnumName:         f.EnumName,
		EnumValues:       append([]string(nil), f.EnumValues...),
		Inherited:        inherited,
	}
	if f.TargetEntity != 0 {
		vm.TargetEntityName = b.entityName(f.TargetEntity)
	}
	return vm
}

func (b *Builder) featureVM(id domain.EntityID) (FeatureVM, error) {
	feature, err := b.set.Features().Get(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return FeatureVM{ID: id}, nil
		}
		return FeatureVM{}, err
	}
	vm := FeatureVM{ID: id, Name: DeriveNameForms(feature.Name)}
	for _, useCaseID := range feature.UseCases {
		useCase, err := b.set.UseCases().Get(useCaseID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return FeatureVM{}, err
		}
		vm.UseCaseNames = append(vm.UseCaseNames, DeriveNameForms(useCase.Name))
	}
	return vm, nil
}

func (b *Builder) useCaseVM(id domain.EntityID) (UseCaseVM, error) {
	useCase, err := b.set.UseCases().Get(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return UseCaseVM{ID: id}, nil
		}
		return UseCaseVM{}, err
	}
	vm := UseCaseVM{
		ID:            id,
		Name:          DeriveNameForms(useCase.Name),
		Validator:     useCase.Validator,
		Undoable:      useCase.Undoable,
		ReadOnly:      useCase.ReadOnly,
		LongOperation: useCase.LongOperation,
	}
	for _, entityID := range useCase.Entities {
		vm.EntityNames = append(vm.EntityNames, b.entityName(entityID))
	}
	if useCase.DtoIn != 0 {
		if dto, err := b.set.Dtos().Get(useCase.DtoIn); err == nil {
			vm.HasDtoIn = true
			vm.DtoInName = DeriveNameForms(dto.Name)
		}
	}
	if useCase.DtoOut != 0 {
		if dto, err := b.set.Dtos().Get(useCase.DtoOut); err == nil {
			vm.HasDtoOut = true
			vm.DtoOutName = DeriveNameForms(dto.Name)
		}
	}
	return vm, nil
}

func (b *Builder) dtoVM(id domain.EntityID) (DtoVM, error) {
	dto, err := b.set.Dtos().Get(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return DtoVM{ID: id}, nil
		}
		return DtoVM{}, err
	}
	vm := DtoVM{ID: id, Name: DeriveNameForms(dto.Name)}
	for _, fieldID := range dto.Fields {
		field, err := b.set.DtoFields().Get(fieldID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return DtoVM{}, err
		}
		vm.Fields = append(vm.Fields, DtoFieldVM{
			Name:       DeriveNameForms(field.Name),
			Type:       field.Type.String(),
			Optional:   field.Optional,
			IsList:     field.IsList,
			EnumName:   field.EnumName,
			EnumValues: append([]string(nil), field.EnumValues...),
		})
	}
	return vm, nil
}
