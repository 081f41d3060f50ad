package usecase

import (
	"fmt"

	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/repository"
)

// UseCaseIn is the input of use case create and update.
type UseCaseIn struct {
	ID            domain.EntityID
	FeatureID     domain.EntityID
	Name          string
	Validator     bool
	Undoable      bool
	ReadOnly      bool
	LongOperation bool
	Entities      []domain.EntityID
	DtoIn         domain.EntityID
	DtoOut        domain.EntityID
}

// UseCaseOut is the read model of a use case.
type UseCaseOut struct {
	ID            domain.EntityID
	Name          string
	Validator     bool
	Undoable      bool
	ReadOnly      bool
	LongOperation bool
	Entities      []domain.EntityID
	DtoIn         domain.EntityID
	DtoOut        domain.EntityID
}

func useCaseOut(u *domain.UseCase) UseCaseOut {
	return UseCaseOut{
		ID:            u.ID,
		Name:          u.Name,
		Validator:     u.Validator,
		Undoable:      u.Undoable,
		ReadOnly:      u.ReadOnly,
		LongOperation: u.LongOperation,
		Entities:      u.Entities,
		DtoIn:         u.DtoIn,
		DtoOut:        u.DtoOut,
	}
}

// CreateUseCase adds a use case to a feature.
type CreateUseCase struct {
	deps Deps
}

func NewCreateUseCase(deps Deps) *CreateUseCase { return &CreateUseCase{deps: deps} }

func (uc *CreateUseCase) Execute(in UseCaseIn) (UseCaseOut, error) {
	var out UseCaseOut
	if err := validateName(in.Name); err != nil {
		return out, err
	}
	if in.FeatureID == 0 {
		return out, fmt.Errorf("%w: feature id is required", domain.ErrValidationFailed)
	}

	var capture *repository.Subtree
	err := uc.deps.Factory.Write(func(set *repository.Set) error {
		useCase := &domain.UseCase{
			ID:            in.ID,
			Name:          in.Name,
			Validator:     in.Validator,
			Undoable:      in.Undoable,
			ReadOnly:      in.ReadOnly,
			LongOperation: in.LongOperation,
			Entities:      in.Entities,
			DtoIn:         in.DtoIn,
			DtoOut:        in.DtoOut,
		}
		id, err := set.UseCases().Create(useCase)
		if err != nil {
			return err
		}

		feature, err := set.Features().Get(in.FeatureID)
		if err != nil {
			return err
		}
		if err := set.Features().SetRelationship(feature.ID, domain.RelFeatureUseCases, append(feature.UseCases, id)); err != nil {
			return err
		}

		capture, err = set.CaptureSubtree(domain.KindUseCase, id)
		if err != nil {
			return err
		}
		out = useCaseOut(useCase)
		return nil
	})
	if err != nil {
		return UseCaseOut{}, err
	}

	return out, uc.deps.push(&createCommand{
		factory: uc.deps.Factory,
		label:   "create use case " + out.Name,
		capture: capture,
	})
}

// UpdateUseCase overwrites a use case's scalars and references.
type UpdateUseCase struct {
	deps Deps
}

func NewUpdateUseCase(deps Deps) *UpdateUseCase { return &UpdateUseCase{deps: deps} }

func (uc *UpdateUseCase) Execute(in UseCaseIn) (UseCaseOut, error) {
	var out UseCaseOut
	if err := validateName(in.Name); err != nil {
		return out, err
	}

	var before, after *domain.UseCase
	err := uc.deps.Factory.Write(func(set *repository.Set) error {
		current, err := set.UseCases().Get(in.ID)
		if err != nil {
			return err
		}
		beforeCopy := *current
		before = &beforeCopy

		current.Name = in.Name
		current.Validator = in.Validator
		current.Undoable = in.Undoable
		current.ReadOnly = in.ReadOnly
		current.LongOperation = in.LongOperation
		current.Entities = in.Entities
		current.DtoIn = in.DtoIn
		current.DtoOut = in.DtoOut
		if err := set.UseCases().Update(current); err != nil {
			return err
		}

		afterCopy := *current
		after = &afterCopy
		out = useCaseOut(current)
		return nil
	})
	if err != nil {
		return UseCaseOut{}, err
	}

	return out, uc.deps.push(&updateCommand{
		factory: uc.deps.Factory,
		label:   "update use case " + out.Name,
		kind:    domain.KindUseCase,
		id:      out.ID,
		before:  before,
		after:   after,
	})
}

// RemoveUseCase deletes a use case together with its DTOs.
type RemoveUseCase struct {
	deps Deps
}

func NewRemoveUseCase(deps Deps) *RemoveUseCase { return &RemoveUseCase{deps: deps} }

func (uc *RemoveUseCase) Execute(id domain.EntityID) error {
	var capture *repository.Subtree
	err := uc.deps.Factory.Write(func(set *repository.Set) error {
		var err error
		capture, err = set.CaptureSubtree(domain.KindUseCase, id)
		if err != nil {
			return err
		}
		return set.UseCases().Delete(id)
	})
	if err != nil {
		return err
	}

	return uc.deps.push(&removeCommand{
		factory: uc.deps.Factory,
		label:   fmt.Sprintf("remove use case %d", id),
		capture: capture,
	})
}

// GetUseCase reads one use case.
type GetUseCase struct {
	deps Deps
}

func NewGetUseCase(deps Deps) *GetUseCase { return &GetUseCase{deps: deps} }

func (uc *GetUseCase) Execute(id domain.EntityID) (UseCaseOut, error) {
	var out UseCaseOut
	err := uc.deps.Factory.Read(func(set *repository.Set) error {
		u, err := set.UseCases().Get(id)
		if err != nil {
			return err
		}
		out = useCaseOut(u)
		return nil
	})
	return out, err
}
