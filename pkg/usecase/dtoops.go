package usecase

import (
	"fmt"

	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/repository"
)

// DtoIn is the input of DTO create and update. Side selects which slot of
// the owning use case the DTO fills.
type DtoIn struct {
	ID        domain.EntityID
	UseCaseID domain.EntityID
	Side      DtoSide
	Name      string
}

// DtoSide names the use case slot a DTO occupies.
type DtoSide string

const (
	DtoSideIn  DtoSide = "in"
	DtoSideOut DtoSide = "out"
)

// DtoOut is the read model of a DTO.
type DtoOut struct {
	ID     domain.EntityID
	Name   string
	Fields []domain.EntityID
}

func dtoOut(d *domain.Dto) DtoOut {
	return DtoOut{ID: d.ID, Name: d.Name, Fields: d.Fields}
}

// CreateDto creates a DTO and binds it to a use case slot.
type CreateDto struct {
	deps Deps
}

func NewCreateDto(deps Deps) *CreateDto { return &CreateDto{deps: deps} }

func (uc *CreateDto) Execute(in DtoIn) (DtoOut, error) {
	var out DtoOut
	if err := validateName(in.Name); err != nil {
		return out, err
	}
	if in.UseCaseID == 0 {
		return out, fmt.Errorf("%w: use case id is required", domain.ErrValidationFailed)
	}
	var slot string
	switch in.Side {
	case DtoSideIn:
		slot = domain.RelUseCaseDtoIn
	case DtoSideOut:
		slot = domain.RelUseCaseDtoOut
	default:
		return out, fmt.Errorf("%w: unknown dto side %q", domain.ErrValidationFailed, in.Side)
	}

	var capture *repository.Subtree
	err := uc.deps.Factory.Write(func(set *repository.Set) error {
		dto := &domain.Dto{ID: in.ID, Name: in.Name}
		id, err := set.Dtos().Create(dto)
		if err != nil {
			return err
		}
		if err := set.UseCases().SetRelationship(in.UseCaseID, slot, []domain.EntityID{id}); err != nil {
			return err
		}

		capture, err = set.CaptureSubtree(domain.KindDto, id)
		if err != nil {
			return err
		}
		out = dtoOut(dto)
		return nil
	})
	if err != nil {
		return DtoOut{}, err
	}

	return out, uc.deps.push(&createCommand{
		factory: uc.deps.Factory,
		label:   "create dto " + out.Name,
		capture: capture,
	})
}

// UpdateDto renames a DTO.
type UpdateDto struct {
	deps Deps
}

func NewUpdateDto(deps Deps) *UpdateDto { return &UpdateDto{deps: deps} }

func (uc *UpdateDto) Execute(in DtoIn) (DtoOut, error) {
	var out DtoOut
	if err := validateName(in.Name); err != nil {
		return out, err
	}

	var before, after *domain.Dto
	err := uc.deps.Factory.Write(func(set *repository.Set) error {
		current, err := set.Dtos().Get(in.ID)
		if err != nil {
			return err
		}
		beforeCopy := *current
		before = &beforeCopy

		current.Name = in.Name
		if err := set.Dtos().Update(current); err != nil {
			return err
		}

		afterCopy := *current
		after = &afterCopy
		out = dtoOut(current)
		return nil
	})
	if err != nil {
		return DtoOut{}, err
	}

	return out, uc.deps.push(&updateCommand{
		factory: uc.deps.Factory,
		label:   "update dto " + out.Name,
		kind:    domain.KindDto,
		id:      out.ID,
		before:  before,
		after:   after,
	})
}

// RemoveDto deletes a DTO and its fields.
type RemoveDto struct {
	deps Deps
}

func NewRemoveDto(deps Deps) *RemoveDto { return &RemoveDto{deps: deps} }

func (uc *RemoveDto) Execute(id domain.EntityID) error {
	var capture *repository.Subtree
	err := uc.deps.Factory.Write(func(set *repository.Set) error {
		var err error
		capture, err = set.CaptureSubtree(domain.KindDto, id)
		if err != nil {
			return err
		}
		return set.Dtos().Delete(id)
	})
	if err != nil {
		return err
	}

	return uc.deps.push(&removeCommand{
		factory: uc.deps.Factory,
		label:   fmt.Sprintf("remove dto %d", id),
		capture: capture,
	})
}

// DtoFieldIn is the input of DTO field create and update.
type DtoFieldIn struct {
	ID         domain.EntityID
	DtoID      domain.EntityID
	Name       string
	Type       domain.FieldType
	Optional   bool
	IsList     bool
	EnumName   string
	EnumValues []string
}

// DtoFieldOut is the read model of a DTO field.
type DtoFieldOut struct {
	ID         domain.EntityID
	Name       string
	Type       domain.FieldType
	Optional   bool
	IsList     bool
	EnumName   string
	EnumValues []string
}

func dtoFieldOut(f *domain.DtoField) DtoFieldOut {
	return DtoFieldOut{
		ID:         f.ID,
		Name:       f.Name,
		Type:       f.Type,
		Optional:   f.Optional,
		IsList:     f.IsList,
		EnumName:   f.EnumName,
		EnumValues: f.EnumValues,
	}
}

func validateDtoFieldIn(in DtoFieldIn) error {
	if err := validateName(in.Name); err != nil {
		return err
	}
	if in.Type == domain.FieldEntity {
		return fmt.Errorf("%w: dto field %q cannot be entity-typed", domain.ErrValidationFailed, in.Name)
	}
	if in.Type == domain.FieldEnum && in.EnumName == "" {
		return fmt.Errorf("%w: enum dto field %q needs an enum name", domain.ErrValidationFailed, in.Name)
	}
	return nil
}

// CreateDtoField appends a field to a DTO.
type CreateDtoField struct {
	deps Deps
}

func NewCreateDtoField(deps Deps) *CreateDtoField { return &CreateDtoField{deps: deps} }

func (uc *CreateDtoField) Execute(in DtoFieldIn) (DtoFieldOut, error) {
	var out DtoFieldOut
	if err := validateDtoFieldIn(in); err != nil {
		return out, err
	}
	if in.DtoID == 0 {
		return out, fmt.Errorf("%w: dto id is required", domain.ErrValidationFailed)
	}

	var capture *repository.Subtree
	err := uc.deps.Factory.Write(func(set *repository.Set) error {
		field := &domain.DtoField{
			ID:         in.ID,
			Name:       in.Name,
			Type:       in.Type,
			Optional:   in.Optional,
			IsList:     in.IsList,
			EnumName:   in.EnumName,
			EnumValues: in.EnumValues,
		}
		id, err := set.DtoFields().Create(field)
		if err != nil {
			return err
		}

		dto, err := set.Dtos().Get(in.DtoID)
		if err != nil {
			return err
		}
		if err := set.Dtos().SetRelationship(dto.ID, domain.RelDtoFields, append(dto.Fields, id)); err != nil {
			return err
		}

		capture, err = set.CaptureSubtree(domain.KindDtoField, id)
		if err != nil {
			return err
		}
		out = dtoFieldOut(field)
		return nil
	})
	if err != nil {
		return DtoFieldOut{}, err
	}

	return out, uc.deps.push(&createCommand{
		factory: uc.deps.Factory,
		label:   "create dto field " + out.Name,
		capture: capture,
	})
}

// UpdateDtoField overwrites a DTO field.
type UpdateDtoField struct {
	deps Deps
}

func NewUpdateDtoField(deps Deps) *UpdateDtoField { return &UpdateDtoField{deps: deps} }

func (uc *UpdateDtoField) Execute(in DtoFieldIn) (DtoFieldOut, error) {
	var out DtoFieldOut
	if err := validateDtoFieldIn(in); err != nil {
		return out, err
	}

	var before, after *domain.DtoField
	err := uc.deps.Factory.Write(func(set *repository.Set) error {
		current, err := set.DtoFields().Get(in.ID)
		if err != nil {
			return err
		}
		beforeCopy := *current
		before = &beforeCopy

		current.Name = in.Name
		current.Type = in.Type
		current.Optional = in.Optional
		current.IsList = in.IsList
		current.EnumName = in.EnumName
		current.EnumValues = in.EnumValues
		if err := set.DtoFields().Update(current); err != nil {
			return err
		}

		afterCopy := *current
		after = &afterCopy
		out = dtoFieldOut(current)
		return nil
	})
	if err != nil {
		return DtoFieldOut{}, err
	}

	return out, uc.deps.push(&updateCommand{
		factory: uc.deps.Factory,
		label:   "update dto field " + out.Name,
		kind:    domain.KindDtoField,
		id:      out.ID,
		before:  before,
		after:   after,
	})
}

// RemoveDtoField deletes a DTO field.
type RemoveDtoField struct {
	deps Deps
}

func NewRemoveDtoField(deps Deps) *RemoveDtoField { return &RemoveDtoField{deps: deps} }

func (uc *RemoveDtoField) Execute(id domain.EntityID) error {
	var capture *repository.Subtree
	err := uc.deps.Factory.Write(func(set *repository.Set) error {
		var err error
		capture, err = set.CaptureSubtree(domain.KindDtoField, id)
		if err != nil {
			return err
		}
		return set.DtoFields().Delete(id)
	})
	if err != nil {
		return err
	}

	return uc.deps.push(&removeCommand{
		factory: uc.deps.Factory,
		label:   fmt.Sprintf("remove dto field %d", id),
		capture: capture,
	})
}
