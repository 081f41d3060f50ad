package manifest

import (
	"fmt"
	"os"

	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/repository"
	"github.com/jacquetc/qleany/pkg/uow"
)

// Save exports the store into a manifest file at path. The format follows
// the extension, like Load.
func Save(factory *uow.Factory, path string) error {
	doc, err := Export(factory)
	if err != nil {
		return err
	}
	raw, err := doc.Encode(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	return nil
}

// Export reads the workspace back into a document.
func Export(factory *uow.Factory) (*Document, error) {
	doc := &Document{Schema: Schema{Version: SchemaVersion}}
	err := factory.Read(func(set *repository.Set) error {
		root, err := set.Roots().Get(domain.RootID)
		if err != nil {
			return err
		}
		ws, err := set.Workspaces().Get(root.Workspace)
		if err != nil {
			return err
		}
		global, err := set.Globals().Get(ws.Global)
		if err != nil {
			return err
		}
		doc.Global = GlobalDoc{
			ApplicationName:    global.ApplicationName,
			OrganisationName:   global.OrganisationName,
			OrganisationDomain: global.OrganisationDomain,
			Language:           string(global.Language),
			PrefixPath:         global.PrefixPath,
		}
		ui, err := set.UserInterfaces().Get(ws.UI)
		if err != nil {
			return err
		}
		doc.UI = UIDoc{
			CLI:           ui.CLI,
			DeclarativeUI: ui.DeclarativeUI,
			Widgets:       ui.Widgets,
			QML:           ui.QML,
			Kirigami:      ui.Kirigami,
		}

		entities, err := set.Entities().GetMulti(ws.Entities)
		if err != nil {
			return err
		}
		names := make(map[domain.EntityID]string, len(entities))
		for _, e := range entities {
			names[e.ID] = e.Name
		}
		for _, e := range entities {
			entityDoc := EntityDoc{
				Name:              e.Name,
				OnlyForHeritage:   e.OnlyForHeritage,
				SingleModel:       e.SingleModel,
				AllowDirectAccess: e.AllowDirectAccess,
				Undoable:          e.Undoable,
				InheritsFrom:      names[e.InheritsFrom],
			}
			fields, err := set.Fields().GetMulti(e.Fields)
			if err != nil {
				return err
			}
			for _, f := range fields {
				fieldDoc := FieldDoc{
					Name:       f.Name,
					Type:       f.Type.String(),
					Optional:   f.Optional,
					Strong:     f.Strong,
					ListModel:  f.ListModel,
					EnumName:   f.EnumName,
					EnumValues: f.EnumValues,
				}
				if f.Type == domain.FieldEntity {
					fieldDoc.TargetEntity = names[f.TargetEntity]
					fieldDoc.Relationship = f.RelationshipKind.String()
				}
				entityDoc.Fields = append(entityDoc.Fields, fieldDoc)
			}
			doc.Entities = append(doc.Entities, entityDoc)
		}

		features, err := set.Features().GetMulti(ws.Features)
		if err != nil {
			return err
		}
		for _, feature := range features {
			featureDoc := FeatureDoc{Name: feature.Name}
			useCases, err := set.UseCases().GetMulti(feature.UseCases)
			if err != nil {
				return err
			}
			for _, uc := range useCases {
				ucDoc := UseCaseDoc{
					Name:          uc.Name,
					Validator:     uc.Validator,
					Undoable:      uc.Undoable,
					ReadOnly:      uc.ReadOnly,
					LongOperation: uc.LongOperation,
				}
				for _, id := range uc.Entities {
					ucDoc.Entities = append(ucDoc.Entities, names[id])
				}
				if ucDoc.DtoIn, err = exportDto(set, uc.DtoIn); err != nil {
					return err
				}
				if ucDoc.DtoOut, err = exportDto(set, uc.DtoOut); err != nil {
					return err
				}
				featureDoc.UseCases = append(featureDoc.UseCases, ucDoc)
			}
			doc.Features = append(doc.Features, featureDoc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func exportDto(set *repository.Set, id domain.EntityID) (*DtoDoc, error) {
	if id == 0 {
		return nil, nil
	}
	dto, err := set.Dtos().Get(id)
	if err != nil {
		return nil, err
	}
	doc := &DtoDoc{Name: dto.Name}
	fields, err := set.DtoFields().GetMulti(dto.Fields)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		doc.Fields = append(doc.Fields, DtoFieldDoc{
			Name:       f.Name,
			Type:       f.Type.String(),
			Optional:   f.Optional,
			IsList:     f.IsList,
			EnumName:   f.EnumName,
			EnumValues: f.EnumValues,
		})
	}
	return doc, nil
}
