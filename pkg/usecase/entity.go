package usecase

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/repository"
)

// EntityIn is the input of entity create and update.
type EntityIn struct {
	ID                domain.EntityID
	WorkspaceID       domain.EntityID
	Name              string
	OnlyForHeritage   bool
	SingleModel       bool
	AllowDirectAccess bool
	Undoable          bool
	InheritsFrom      domain.EntityID
}

// EntityOut is the read model of an entity.
type EntityOut struct {
	ID                domain.EntityID
	Name              string
	OnlyForHeritage   bool
	SingleModel       bool
	AllowDirectAccess bool
	Undoable          bool
	InheritsFrom      domain.EntityID
	Fields            []domain.EntityID
	Relationships     []domain.EntityID
}

func entityOut(e *domain.Entity) EntityOut {
	return EntityOut{
		ID:                e.ID,
		Name:              e.Name,
		OnlyForHeritage:   e.OnlyForHeritage,
		SingleModel:       e.SingleModel,
		AllowDirectAccess: e.AllowDirectAccess,
		Undoable:          e.Undoable,
		InheritsFrom:      e.InheritsFrom,
		Fields:            e.Fields,
		Relationships:     e.Relationships,
	}
}

// checkInheritanceCycle walks the parent chain starting at parent and fails
// when it reaches self.
func checkInheritanceCycle(set *repository.Set, self, parent domain.EntityID) error {
	seen := map[domain.EntityID]bool{self: true}
	for current := parent; current != 0; {
		if seen[current] {
			return fmt.Errorf("%w: inherits_from chain revisits entity %d", domain.ErrCycleDetected, current)
		}
		seen[current] = true
		ent, err := set.Entities().Get(current)
		if err != nil {
			return err
		}
		current = ent.InheritsFrom
	}
	return nil
}

// CreateEntity adds an entity to a workspace.
type CreateEntity struct {
	deps Deps
}

func NewCreateEntity(deps Deps) *CreateEntity { return &CreateEntity{deps: deps} }

func (uc *CreateEntity) Execute(in EntityIn) (EntityOut, error) {
	var out EntityOut
	if err := validateName(in.Name); err != nil {
		return out, err
	}
	if in.WorkspaceID == 0 {
		return out, fmt.Errorf("%w: workspace id is required", domain.ErrValidationFailed)
	}

	var capture *repository.Subtree
	err := uc.deps.Factory.Write(func(set *repository.Set) error {
		ent := &domain.Entity{
			ID:                in.ID,
			Name:              in.Name,
			OnlyForHeritage:   in.OnlyForHeritage,
			SingleModel:       in.SingleModel,
			AllowDirectAccess: in.AllowDirectAccess,
			Undoable:          in.Undoable,
			InheritsFrom:      in.InheritsFrom,
		}
		id, err := set.Entities().Create(ent)
		if err != nil {
			return err
		}

		ws, err := set.Workspaces().Get(in.WorkspaceID)
		if err != nil {
			return err
		}
		if err := set.Workspaces().SetRelationship(ws.ID, domain.RelWorkspaceEntities, append(ws.Entities, id)); err != nil {
			return err
		}

		capture, err = set.CaptureSubtree(domain.KindEntity, id)
		if err != nil {
			return err
		}
		out = entityOut(ent)
		return nil
	})
	if err != nil {
		return EntityOut{}, err
	}

	uc.deps.logger().Debug("entity created", zap.Uint64("id", uint64(out.ID)), zap.String("name", out.Name))
	return out, uc.deps.push(&createCommand{
		factory: uc.deps.Factory,
		label:   "create entity " + out.Name,
		capture: capture,
	})
}

// UpdateEntity overwrites an entity's scalar fields and parent reference.
type UpdateEntity struct {
	deps Deps
}

func NewUpdateEntity(deps Deps) *UpdateEntity { return &UpdateEntity{deps: deps} }

func (uc *UpdateEntity) Execute(in EntityIn) (EntityOut, error) {
	var out EntityOut
	if err := validateName(in.Name); err != nil {
		return out, err
	}

	var before, after *domain.Entity
	err := uc.deps.Factory.Write(func(set *repository.Set) error {
		current, err := set.Entities().Get(in.ID)
		if err != nil {
			return err
		}
		if in.InheritsFrom != 0 {
			if err := checkInheritanceCycle(set, in.ID, in.InheritsFrom); err != nil {
				return err
			}
		}

		beforeCopy := *current
		before = &beforeCopy

		current.Name = in.Name
		current.OnlyForHeritage = in.OnlyForHeritage
		current.SingleModel = in.SingleModel
		current.AllowDirectAccess = in.AllowDirectAccess
		current.Undoable = in.Undoable
		current.InheritsFrom = in.InheritsFrom
		if err := set.Entities().Update(current); err != nil {
			return err
		}

		afterCopy := *current
		after = &afterCopy
		out = entityOut(current)
		return nil
	})
	if err != nil {
		return EntityOut{}, err
	}

	return out, uc.deps.push(&updateCommand{
		factory: uc.deps.Factory,
		label:   "update entity " + out.Name,
		kind:    domain.KindEntity,
		id:      out.ID,
		before:  before,
		after:   after,
	})
}

// RemoveEntity deletes an entity, its fields and its owned relationship
// rows, and detaches it from its workspace.
type RemoveEntity struct {
	deps Deps
}

func NewRemoveEntity(deps Deps) *RemoveEntity { return &RemoveEntity{deps: deps} }

func (uc *RemoveEntity) Execute(id domain.EntityID) error {
	var capture *repository.Subtree
	err := uc.deps.Factory.Write(func(set *repository.Set) error {
		var err error
		capture, err = set.CaptureSubtree(domain.KindEntity, id)
		if err != nil {
			return err
		}
		return set.Entities().Delete(id)
	})
	if err != nil {
		return err
	}

	uc.deps.logger().Debug("entity removed", zap.Uint64("id", uint64(id)))
	return uc.deps.push(&removeCommand{
		factory: uc.deps.Factory,
		label:   fmt.Sprintf("remove entity %d", id),
		capture: capture,
	})
}

// GetEntity reads one entity.
type GetEntity struct {
	deps Deps
}

func NewGetEntity(deps Deps) *GetEntity { return &GetEntity{deps: deps} }

func (uc *GetEntity) Execute(id domain.EntityID) (EntityOut, error) {
	var out EntityOut
	err := uc.deps.Factory.Read(func(set *repository.Set) error {
		ent, err := set.Entities().Get(id)
		if err != nil {
			return err
		}
		out = entityOut(ent)
		return nil
	})
	return out, err
}

// GetEntityMulti reads several entities in one transaction.
type GetEntityMulti struct {
	deps Deps
}

func NewGetEntityMulti(deps Deps) *GetEntityMulti { return &GetEntityMulti{deps: deps} }

func (uc *GetEntityMulti) Execute(ids []domain.EntityID) ([]EntityOut, error) {
	var out []EntityOut
	err := uc.deps.Factory.Read(func(set *repository.Set) error {
		ents, err := set.Entities().GetMulti(ids)
		if err != nil {
			return err
		}
		for _, ent := range ents {
			out = append(out, entityOut(ent))
		}
		return nil
	})
	return out, err
}
