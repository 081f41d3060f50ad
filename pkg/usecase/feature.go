package usecase

import (
	"fmt"

	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/repository"
)

// FeatureIn is the input of feature create and update.
type FeatureIn struct {
	ID          domain.EntityID
	WorkspaceID domain.EntityID
	Name        string
}

// FeatureOut is the read model of a feature.
type FeatureOut struct {
	ID       domain.EntityID
	Name     string
	UseCases []domain.EntityID
}

func featureOut(f *domain.Feature) FeatureOut {
	return FeatureOut{ID: f.ID, Name: f.Name, UseCases: f.UseCases}
}

// CreateFeature adds a feature to a workspace.
type CreateFeature struct {
	deps Deps
}

func NewCreateFeature(deps Deps) *CreateFeature { return &CreateFeature{deps: deps} }

func (uc *CreateFeature) Execute(in FeatureIn) (FeatureOut, error) {
	var out FeatureOut
	if err := validateName(in.Name); err != nil {
		return out, err
	}
	if in.WorkspaceID == 0 {
		return out, fmt.Errorf("%w: workspace id is required", domain.ErrValidationFailed)
	}

	var capture *repository.Subtree
	err := uc.deps.Factory.Write(func(set *repository.Set) error {
		feature := &domain.Feature{ID: in.ID, Name: in.Name}
		id, err := set.Features().Create(feature)
		if err != nil {
			return err
		}

		ws, err := set.Workspaces().Get(in.WorkspaceID)
		if err != nil {
			return err
		}
		if err := set.Workspaces().SetRelationship(ws.ID, domain.RelWorkspaceFeatures, append(ws.Features, id)); err != nil {
			return err
		}

		capture, err = set.CaptureSubtree(domain.KindFeature, id)
		if err != nil {
			return err
		}
		out = featureOut(feature)
		return nil
	})
	if err != nil {
		return FeatureOut{}, err
	}

	return out, uc.deps.push(&createCommand{
		factory: uc.deps.Factory,
		label:   "create feature " + out.Name,
		capture: capture,
	})
}

// UpdateFeature renames a feature.
type UpdateFeature struct {
	deps Deps
}

func NewUpdateFeature(deps Deps) *UpdateFeature { return &UpdateFeature{deps: deps} }

func (uc *UpdateFeature) Execute(in FeatureIn) (FeatureOut, error) {
	var out FeatureOut
	if err := validateName(in.Name); err != nil {
		return out, err
	}

	var before, after *domain.Feature
	err := uc.deps.Factory.Write(func(set *repository.Set) error {
		current, err := set.Features().Get(in.ID)
		if err != nil {
			return err
		}
		beforeCopy := *current
		before = &beforeCopy

		current.Name = in.Name
		if err := set.Features().Update(current); err != nil {
			return err
		}

		afterCopy := *current
		after = &afterCopy
		out = featureOut(current)
		return nil
	})
	if err != nil {
		return FeatureOut{}, err
	}

	return out, uc.deps.push(&updateCommand{
		factory: uc.deps.Factory,
		label:   "update feature " + out.Name,
		kind:    domain.KindFeature,
		id:      out.ID,
		before:  before,
		after:   after,
	})
}

// RemoveFeature deletes a feature and cascades into its use cases and their
// DTOs.
type RemoveFeature struct {
	deps Deps
}

func NewRemoveFeature(deps Deps) *RemoveFeature { return &RemoveFeature{deps: deps} }

func (uc *RemoveFeature) Execute(id domain.EntityID) error {
	var capture *repository.Subtree
	err := uc.deps.Factory.Write(func(set *repository.Set) error {
		var err error
		capture, err = set.CaptureSubtree(domain.KindFeature, id)
		if err != nil {
			return err
		}
		return set.Features().Delete(id)
	})
	if err != nil {
		return err
	}

	return uc.deps.push(&removeCommand{
		factory: uc.deps.Factory,
		label:   fmt.Sprintf("remove feature %d", id),
		capture: capture,
	})
}

// GetFeature reads one feature.
type GetFeature struct {
	deps Deps
}

func NewGetFeature(deps Deps) *GetFeature { return &GetFeature{deps: deps} }

func (uc *GetFeature) Execute(id domain.EntityID) (FeatureOut, error) {
	var out FeatureOut
	err := uc.deps.Factory.Read(func(set *repository.Set) error {
		f, err := set.Features().Get(id)
		if err != nil {
			return err
		}
		out = featureOut(f)
		return nil
	})
	return out, err
}
