package usecase

import (
	"fmt"

	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/repository"
)

// FileIn is the input of file descriptor create and update. Scope slots are
// nil when unscoped; an explicit zero means "all".
type FileIn struct {
	ID           domain.EntityID
	SystemID     domain.EntityID
	Name         string
	RelativePath string
	Group        string
	TemplateName string
	Feature      *domain.EntityID
	Entity       *domain.EntityID
	UseCase      *domain.EntityID
	Field        *domain.EntityID
}

// FileOut is the read model of a file descriptor.
type FileOut struct {
	ID           domain.EntityID
	Name         string
	RelativePath string
	Group        string
	TemplateName string
	Feature      *domain.EntityID
	Entity       *domain.EntityID
	UseCase      *domain.EntityID
	Field        *domain.EntityID
}

func fileOut(f *domain.File) FileOut {
	return FileOut{
		ID:           f.ID,
		Name:         f.Name,
		RelativePath: f.RelativePath,
		Group:        f.Group,
		TemplateName: f.TemplateName,
		Feature:      f.Feature,
		Entity:       f.Entity,
		UseCase:      f.UseCase,
		Field:        f.Field,
	}
}

// CreateFile adds a generator file descriptor to the system.
type CreateFile struct {
	deps Deps
}

func NewCreateFile(deps Deps) *CreateFile { return &CreateFile{deps: deps} }

func (uc *CreateFile) Execute(in FileIn) (FileOut, error) {
	var out FileOut
	if in.Name == "" {
		return out, fmt.Errorf("%w: file name is empty", domain.ErrValidationFailed)
	}
	if in.SystemID == 0 {
		return out, fmt.Errorf("%w: system id is required", domain.ErrValidationFailed)
	}

	var capture *repository.Subtree
	err := uc.deps.Factory.Write(func(set *repository.Set) error {
		file := &domain.File{
			ID:           in.ID,
			Name:         in.Name,
			RelativePath: in.RelativePath,
			Group:        in.Group,
			TemplateName: in.TemplateName,
			Feature:      in.Feature,
			Entity:       in.Entity,
			UseCase:      in.UseCase,
			Field:        in.Field,
		}
		id, err := set.Files().Create(file)
		if err != nil {
			return err
		}

		system, err := set.Systems().Get(in.SystemID)
		if err != nil {
			return err
		}
		if err := set.Systems().SetRelationship(system.ID, domain.RelSystemFiles, append(system.Files, id)); err != nil {
			return err
		}

		capture, err = set.CaptureSubtree(domain.KindFile, id)
		if err != nil {
			return err
		}
		out = fileOut(file)
		return nil
	})
	if err != nil {
		return FileOut{}, err
	}

	return out, uc.deps.push(&createCommand{
		factory: uc.deps.Factory,
		label:   "create file " + out.Name,
		capture: capture,
	})
}

// UpdateFile overwrites a file descriptor.
type UpdateFile struct {
	deps Deps
}

func NewUpdateFile(deps Deps) *UpdateFile { return &UpdateFile{deps: deps} }

func (uc *UpdateFile) Execute(in FileIn) (FileOut, error) {
	var out FileOut
	if in.Name == "" {
		return out, fmt.Errorf("%w: file name is empty", domain.ErrValidationFailed)
	}

	var before, after *domain.File
	err := uc.deps.Factory.Write(func(set *repository.Set) error {
		current, err := set.Files().Get(in.ID)
		if err != nil {
			return err
		}
		beforeCopy := *current
		before = &beforeCopy

		current.Name = in.Name
		current.RelativePath = in.RelativePath
		current.Group = in.Group
		current.TemplateName = in.TemplateName
		current.Feature = in.Feature
		current.Entity = in.Entity
		current.UseCase = in.UseCase
		current.Field = in.Field
		if err := set.Files().Update(current); err != nil {
			return err
		}

		afterCopy := *current
		after = &afterCopy
		out = fileOut(current)
		return nil
	})
	if err != nil {
		return FileOut{}, err
	}

	return out, uc.deps.push(&updateCommand{
		factory: uc.deps.Factory,
		label:   "update file " + out.Name,
		kind:    domain.KindFile,
		id:      out.ID,
		before:  before,
		after:   after,
	})
}

// RemoveFile deletes a file descriptor.
type RemoveFile struct {
	deps Deps
}

func NewRemoveFile(deps Deps) *RemoveFile { return &RemoveFile{deps: deps} }

func (uc *RemoveFile) Execute(id domain.EntityID) error {
	var capture *repository.Subtree
	err := uc.deps.Factory.Write(func(set *repository.Set) error {
		var err error
		capture, err = set.CaptureSubtree(domain.KindFile, id)
		if err != nil {
			return err
		}
		return set.Files().Delete(id)
	})
	if err != nil {
		return err
	}

	return uc.deps.push(&removeCommand{
		factory: uc.deps.Factory,
		label:   fmt.Sprintf("remove file %d", id),
		capture: capture,
	})
}

// GetFile reads one file descriptor.
type GetFile struct {
	deps Deps
}

func NewGetFile(deps Deps) *GetFile { return &GetFile{deps: deps} }

func (uc *GetFile) Execute(id domain.EntityID) (FileOut, error) {
	var out FileOut
	err := uc.deps.Factory.Read(func(set *repository.Set) error {
		f, err := set.Files().Get(id)
		if err != nil {
			return err
		}
		out = fileOut(f)
		return nil
	})
	return out, err
}
