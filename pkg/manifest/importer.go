package manifest

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/repository"
	"github.com/jacquetc/qleany/pkg/uow"
	"github.com/jacquetc/qleany/pkg/usecase"
)

// Load parses the manifest at path and imports it into the store.
func Load(factory *uow.Factory, path string) error {
	doc, err := ParseFile(path)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return Import(factory, doc, abs)
}

// Import replaces the workspace content with the document. Everything runs
// in one write transaction, so a failing import leaves the previous
// workspace untouched. The System row and its generated file list survive
// reloads.
func Import(factory *uow.Factory, doc *Document, absPath string) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	return factory.Write(func(set *repository.Set) error {
		root, err := set.Roots().Get(domain.RootID)
		haveRoot := err == nil
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if haveRoot && root.Workspace != 0 {
			if err := set.Workspaces().Delete(root.Workspace); err != nil {
				return err
			}
		}

		globalID, err := set.Globals().Create(&domain.Global{
			ApplicationName:    doc.Global.ApplicationName,
			OrganisationName:   doc.Global.OrganisationName,
			OrganisationDomain: doc.Global.OrganisationDomain,
			Language:           domain.TargetLanguage(doc.Global.Language),
			PrefixPath:         doc.Global.PrefixPath,
		})
		if err != nil {
			return err
		}
		uiID, err := set.UserInterfaces().Create(&domain.UserInterface{
			CLI:           doc.UI.CLI,
			DeclarativeUI: doc.UI.DeclarativeUI,
			Widgets:       doc.UI.Widgets,
			QML:           doc.UI.QML,
			Kirigami:      doc.UI.Kirigami,
		})
		if err != nil {
			return err
		}

		entityIDs, err := importEntities(set, doc.Entities)
		if err != nil {
			return err
		}
		featureIDs, err := importFeatures(set, doc.Features, entityIDs)
		if err != nil {
			return err
		}

		orderedEntities := make([]domain.EntityID, 0, len(doc.Entities))
		for _, e := range doc.Entities {
			orderedEntities = append(orderedEntities, entityIDs[e.Name])
		}
		wsID, err := set.Workspaces().Create(&domain.Workspace{
			ManifestAbsolutePath: absPath,
			Global:               globalID,
			UI:                   uiID,
			Entities:             orderedEntities,
			Features:             featureIDs,
		})
		if err != nil {
			return err
		}

		systemID := domain.EntityID(0)
		if haveRoot {
			systemID = root.System
		}
		if systemID == 0 {
			if systemID, err = set.Systems().Create(&domain.System{}); err != nil {
				return err
			}
		}
		if haveRoot {
			root.Workspace = wsID
			root.System = systemID
			return set.Roots().Update(root)
		}
		_, err = set.Roots().Create(&domain.Root{
			ID:        domain.RootID,
			Workspace: wsID,
			System:    systemID,
		})
		return err
	})
}

// importEntities creates the entities first and attaches fields second, so
// entity-typed fields can resolve forward declarations.
func importEntities(set *repository.Set, docs []EntityDoc) (map[string]domain.EntityID, error) {
	ids := make(map[string]domain.EntityID, len(docs))
	for _, e := range docs {
		id, err := set.Entities().Create(&domain.Entity{
			Name:              e.Name,
			OnlyForHeritage:   e.OnlyForHeritage,
			SingleModel:       e.SingleModel,
			AllowDirectAccess: e.AllowDirectAccess,
			Undoable:          e.Undoable,
		})
		if err != nil {
			return nil, err
		}
		ids[e.Name] = id
	}
	for _, e := range docs {
		fieldIDs := make([]domain.EntityID, 0, len(e.Fields))
		for _, f := range e.Fields {
			ft, _ := domain.ParseFieldType(f.Type)
			field := &domain.Field{
				Name:       f.Name,
				Type:       ft,
				Optional:   f.Optional,
				Strong:     f.Strong,
				ListModel:  f.ListModel,
				EnumName:   f.EnumName,
				EnumValues: f.EnumValues,
			}
			if ft == domain.FieldEntity {
				rel, _ := domain.ParseRelationshipType(f.Relationship)
				field.RelationshipKind = rel
				field.TargetEntity = ids[f.TargetEntity]
			}
			fieldID, err := set.Fields().Create(field)
			if err != nil {
				return nil, err
			}
			fieldIDs = append(fieldIDs, fieldID)
		}
		if err := set.Entities().SetRelationship(ids[e.Name], domain.RelEntityFields, fieldIDs); err != nil {
			return nil, err
		}
		if e.InheritsFrom != "" {
			parent := []domain.EntityID{ids[e.InheritsFrom]}
			if err := set.Entities().SetRelationship(ids[e.Name], domain.RelEntityInheritsFrom, parent); err != nil {
				return nil, err
			}
		}
	}
	for _, e := range docs {
		if err := usecase.RebuildDerivedRelationships(set, ids[e.Name]); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func importFeatures(set *repository.Set, docs []FeatureDoc, entityIDs map[string]domain.EntityID) ([]domain.EntityID, error) {
	featureIDs := make([]domain.EntityID, 0, len(docs))
	for _, feature := range docs {
		ucIDs := make([]domain.EntityID, 0, len(feature.UseCases))
		for _, uc := range feature.UseCases {
			dtoIn, err := importDto(set, uc.DtoIn)
			if err != nil {
				return nil, err
			}
			dtoOut, err := importDto(set, uc.DtoOut)
			if err != nil {
				return nil, err
			}
			ucEntities := make([]domain.EntityID, 0, len(uc.Entities))
			for _, name := range uc.Entities {
				ucEntities = append(ucEntities, entityIDs[name])
			}
			ucID, err := set.UseCases().Create(&domain.UseCase{
				Name:          uc.Name,
				Validator:     uc.Validator,
				Undoable:      uc.Undoable,
				ReadOnly:      uc.ReadOnly,
				LongOperation: uc.LongOperation,
				Entities:      ucEntities,
				DtoIn:         dtoIn,
				DtoOut:        dtoOut,
			})
			if err != nil {
				return nil, err
			}
			ucIDs = append(ucIDs, ucID)
		}
		featureID, err := set.Features().Create(&domain.Feature{
			Name:     feature.Name,
			UseCases: ucIDs,
		})
		if err != nil {
			return nil, err
		}
		featureIDs = append(featureIDs, featureID)
	}
	return featureIDs, nil
}

func importDto(set *repository.Set, doc *DtoDoc) (domain.EntityID, error) {
	if doc == nil {
		return 0, nil
	}
	fieldIDs := make([]domain.EntityID, 0, len(doc.Fields))
	for _, f := range doc.Fields {
		ft, ok := domain.ParseFieldType(f.Type)
		if !ok {
			return 0, fmt.Errorf("%w: dto %q field %q has unknown type %q", domain.ErrValidationFailed, doc.Name, f.Name, f.Type)
		}
		id, err := set.DtoFields().Create(&domain.DtoField{
			Name:       f.Name,
			Type:       ft,
			Optional:   f.Optional,
			IsList:     f.IsList,
			EnumName:   f.EnumName,
			EnumValues: f.EnumValues,
		})
		if err != nil {
			return 0, err
		}
		fieldIDs = append(fieldIDs, id)
	}
	return set.Dtos().Create(&domain.Dto{Name: doc.Name, Fields: fieldIDs})
}
