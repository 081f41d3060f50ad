package usecase

import (
	"fmt"

	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/repository"
)

// FieldIn is the input of field create and update.
type FieldIn struct {
	ID                      domain.EntityID
	EntityID                domain.EntityID
	Name                    string
	Type                    domain.FieldType
	RelationshipKind        domain.RelationshipType
	TargetEntity            domain.EntityID
	Optional                bool
	Strong                  bool
	ListModel               bool
	ListModelDisplayedField string
	EnumName                string
	EnumValues              []string
}

// FieldOut is the read model of a field.
type FieldOut struct {
	ID                      domain.EntityID
	Name                    string
	Type                    domain.FieldType
	RelationshipKind        domain.RelationshipType
	TargetEntity            domain.EntityID
	Optional                bool
	Strong                  bool
	ListModel               bool
	ListModelDisplayedField string
	EnumName                string
	EnumValues              []string
}

func fieldOut(f *domain.Field) FieldOut {
	return FieldOut{
		ID:                      f.ID,
		Name:                    f.Name,
		Type:                    f.Type,
		RelationshipKind:        f.RelationshipKind,
		TargetEntity:            f.TargetEntity,
		Optional:                f.Optional,
		Strong:                  f.Strong,
		ListModel:               f.ListModel,
		ListModelDisplayedField: f.ListModelDisplayedField,
		EnumName:                f.EnumName,
		EnumValues:              f.EnumValues,
	}
}

func validateFieldIn(in FieldIn) error {
	if err := validateName(in.Name); err != nil {
		return err
	}
	if in.Type == domain.FieldEntity && in.TargetEntity == 0 {
		return fmt.Errorf("%w: entity-typed field %q needs a target entity", domain.ErrValidationFailed, in.Name)
	}
	if in.Type != domain.FieldEntity && in.TargetEntity != 0 {
		return fmt.Errorf("%w: field %q has a target entity but is not entity-typed", domain.ErrValidationFailed, in.Name)
	}
	if in.Type == domain.FieldEnum && in.EnumName == "" {
		return fmt.Errorf("%w: enum field %q needs an enum name", domain.ErrValidationFailed, in.Name)
	}
	return nil
}

// RebuildDerivedRelationships recomputes the Relationship rows of an entity
// from its entity-typed fields: one forward row on the owner and one
// backward row on each target. The manifest importer reuses it after bulk
// entity creation.
func RebuildDerivedRelationships(set *repository.Set, ownerID domain.EntityID) error {
	owner, err := set.Entities().Get(ownerID)
	if err != nil {
		return err
	}

	// Drop every derived row where the owner is the left side; deleting a
	// relationship row scrubs it from the entity lists it sat in.
	stale, err := set.Relationships().GetRelationshipsFromRightIDs(domain.RelRelationshipLeft, []domain.EntityID{ownerID})
	if err != nil {
		return err
	}
	for _, entry := range stale {
		if err := set.Relationships().Delete(entry.LeftID); err != nil {
			return err
		}
	}

	owner, err = set.Entities().Get(ownerID)
	if err != nil {
		return err
	}
	fields, err := set.Fields().GetMulti(owner.Fields)
	if err != nil {
		return err
	}

	ownerRels := owner.Relationships
	targetRels := make(map[domain.EntityID][]domain.EntityID)
	for _, f := range fields {
		if f.Type != domain.FieldEntity || f.TargetEntity == 0 {
			continue
		}
		strength := domain.Weak
		if f.Strong {
			strength = domain.Strong
		}

		forwardID, err := set.Relationships().Create(&domain.Relationship{
			LeftEntity:  ownerID,
			RightEntity: f.TargetEntity,
			FieldName:   f.Name,
			Type:        f.RelationshipKind,
			Direction:   domain.Forward,
			Strength:    strength,
		})
		if err != nil {
			return err
		}
		ownerRels = append(ownerRels, forwardID)

		backwardID, err := set.Relationships().Create(&domain.Relationship{
			LeftEntity:  ownerID,
			RightEntity: f.TargetEntity,
			FieldName:   f.Name,
			Type:        f.RelationshipKind,
			Direction:   domain.Backward,
			Strength:    strength,
		})
		if err != nil {
			return err
		}
		targetRels[f.TargetEntity] = append(targetRels[f.TargetEntity], backwardID)
	}

	if err := set.Entities().SetRelationship(ownerID, domain.RelEntityRelationships, ownerRels); err != nil {
		return err
	}
	for targetID, ids := range targetRels {
		target, err := set.Entities().Get(targetID)
		if err != nil {
			return err
		}
		merged := append(target.Relationships, ids...)
		if err := set.Entities().SetRelationship(targetID, domain.RelEntityRelationships, merged); err != nil {
			return err
		}
	}
	return nil
}

// CreateField adds a field to an entity and refreshes the entity's derived
// relationship rows.
type CreateField struct {
	deps Deps
}

func NewCreateField(deps Deps) *CreateField { return &CreateField{deps: deps} }

func (uc *CreateField) Execute(in FieldIn) (FieldOut, error) {
	var out FieldOut
	if err := validateFieldIn(in); err != nil {
		return out, err
	}
	if in.EntityID == 0 {
		return out, fmt.Errorf("%w: owning entity id is required", domain.ErrValidationFailed)
	}

	var capture *repository.Subtree
	err := uc.deps.Factory.Write(func(set *repository.Set) error {
		field := &domain.Field{
			ID:                      in.ID,
			Name:                    in.Name,
			Type:                    in.Type,
			RelationshipKind:        in.RelationshipKind,
			TargetEntity:            in.TargetEntity,
			Optional:                in.Optional,
			Strong:                  in.Strong,
			ListModel:               in.ListModel,
			ListModelDisplayedField: in.ListModelDisplayedField,
			EnumName:                in.EnumName,
			EnumValues:              in.EnumValues,
		}
		id, err := set.Fields().Create(field)
		if err != nil {
			return err
		}

		owner, err := set.Entities().Get(in.EntityID)
		if err != nil {
			return err
		}
		if err := set.Entities().SetRelationship(owner.ID, domain.RelEntityFields, append(owner.Fields, id)); err != nil {
			return err
		}
		if err := RebuildDerivedRelationships(set, owner.ID); err != nil {
			return err
		}

		capture, err = set.CaptureSubtree(domain.KindField, id)
		if err != nil {
			return err
		}
		out = fieldOut(field)
		return nil
	})
	if err != nil {
		return FieldOut{}, err
	}

	return out, uc.deps.push(&createCommand{
		factory: uc.deps.Factory,
		label:   "create field " + out.Name,
		capture: capture,
	})
}

// UpdateField overwrites a field and refreshes the owner's derived
// relationship rows.
type UpdateField struct {
	deps Deps
}

func NewUpdateField(deps Deps) *UpdateField { return &UpdateField{deps: deps} }

func (uc *UpdateField) Execute(in FieldIn) (FieldOut, error) {
	var out FieldOut
	if err := validateFieldIn(in); err != nil {
		return out, err
	}

	var before, after *domain.Field
	err := uc.deps.Factory.Write(func(set *repository.Set) error {
		current, err := set.Fields().Get(in.ID)
		if err != nil {
			return err
		}
		beforeCopy := *current
		before = &beforeCopy

		current.Name = in.Name
		current.Type = in.Type
		current.RelationshipKind = in.RelationshipKind
		current.TargetEntity = in.TargetEntity
		current.Optional = in.Optional
		current.Strong = in.Strong
		current.ListModel = in.ListModel
		current.ListModelDisplayedField = in.ListModelDisplayedField
		current.EnumName = in.EnumName
		current.EnumValues = in.EnumValues
		if err := set.Fields().Update(current); err != nil {
			return err
		}

		if in.EntityID != 0 {
			if err := RebuildDerivedRelationships(set, in.EntityID); err != nil {
				return err
			}
		}

		afterCopy := *current
		after = &afterCopy
		out = fieldOut(current)
		return nil
	})
	if err != nil {
		return FieldOut{}, err
	}

	return out, uc.deps.push(&updateCommand{
		factory: uc.deps.Factory,
		label:   "update field " + out.Name,
		kind:    domain.KindField,
		id:      out.ID,
		before:  before,
		after:   after,
	})
}

// RemoveField deletes a field and refreshes the owner's derived rows.
type RemoveField struct {
	deps Deps
}

func NewRemoveField(deps Deps) *RemoveField { return &RemoveField{deps: deps} }

func (uc *RemoveField) Execute(entityID, fieldID domain.EntityID) error {
	var capture *repository.Subtree
	err := uc.deps.Factory.Write(func(set *repository.Set) error {
		var err error
		capture, err = set.CaptureSubtree(domain.KindField, fieldID)
		if err != nil {
			return err
		}
		if err := set.Fields().Delete(fieldID); err != nil {
			return err
		}
		if entityID != 0 {
			return RebuildDerivedRelationships(set, entityID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return uc.deps.push(&removeCommand{
		factory: uc.deps.Factory,
		label:   fmt.Sprintf("remove field %d", fieldID),
		capture: capture,
	})
}

// GetField reads one field.
type GetField struct {
	deps Deps
}

func NewGetField(deps Deps) *GetField { return &GetField{deps: deps} }

func (uc *GetField) Execute(id domain.EntityID) (FieldOut, error) {
	var out FieldOut
	err := uc.deps.Factory.Read(func(set *repository.Set) error {
		f, err := set.Fields().Get(id)
		if err != nil {
			return err
		}
		out = fieldOut(f)
		return nil
	})
	return out, err
}
