// Package generate turns the manifest into a source tree. It enumerates the
// generator files for a target stack, persists them under System, then
// renders each one from its snapshot.
package generate

import (
	"path"

	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/repository"
	"github.com/jacquetc/qleany/pkg/snapshot"
)

// Groups tag descriptors by what drives them.
const (
	GroupBoilerplate = "boilerplate"
	GroupEntity      = "entity"
	GroupFeature     = "feature"
	GroupUseCase     = "use_case"
	GroupUI          = "ui"
)

// Descriptor is one file the pipeline will emit. The scope slots follow the
// File convention: nil means unscoped, zero means "all".
type Descriptor struct {
	Name         string           `json:"name"`
	RelativePath string           `json:"relative_path"`
	Group        string           `json:"group"`
	TemplateName string           `json:"template_name"`
	Feature      *domain.EntityID `json:"feature,omitempty"`
	Entity       *domain.EntityID `json:"entity,omitempty"`
	UseCase      *domain.EntityID `json:"use_case,omitempty"`
}

func (d Descriptor) toFile() *domain.File {
	return &domain.File{
		Name:         d.Name,
		RelativePath: d.RelativePath,
		Group:        d.Group,
		TemplateName: d.TemplateName,
		Feature:      d.Feature,
		Entity:       d.Entity,
		UseCase:      d.UseCase,
	}
}

func ref(id domain.EntityID) *domain.EntityID { return &id }

// manifestView is the slice of the manifest the enumeration needs.
type manifestView struct {
	ui       *domain.UserInterface
	entities []*domain.Entity
	features []*domain.Feature
	useCases map[domain.EntityID][]*domain.UseCase
}

func loadManifestView(set *repository.Set) (*manifestView, error) {
	root, err := set.Roots().Get(domain.RootID)
	if err != nil {
		return nil, err
	}
	ws, err := set.Workspaces().Get(root.Workspace)
	if err != nil {
		return nil, err
	}
	view := &manifestView{useCases: make(map[domain.EntityID][]*domain.UseCase)}
	if ws.UI != 0 {
		if view.ui, err = set.UserInterfaces().Get(ws.UI); err != nil {
			return nil, err
		}
	}
	if view.entities, err = set.Entities().GetMulti(ws.Entities); err != nil {
		return nil, err
	}
	if view.features, err = set.Features().GetMulti(ws.Features); err != nil {
		return nil, err
	}
	for _, feature := range view.features {
		ucs, err := set.UseCases().GetMulti(feature.UseCases)
		if err != nil {
			return nil, err
		}
		view.useCases[feature.ID] = ucs
	}
	return view, nil
}

// Descriptors enumerates the fixed file list for a target. The order is
// stable: boilerplate, entities, features with their use cases, UI files.
func Descriptors(set *repository.Set, target domain.TargetLanguage) ([]Descriptor, error) {
	view, err := loadManifestView(set)
	if err != nil {
		return nil, err
	}
	switch target {
	case domain.LanguageRust:
		return rustDescriptors(view), nil
	case domain.LanguageCppQt:
		return cppQtDescriptors(view), nil
	default:
		return nil, domain.ErrValidationFailed
	}
}

func rustDescriptors(view *manifestView) []Descriptor {
	out := []Descriptor{
		{Name: "Cargo.toml", RelativePath: "Cargo.toml", Group: GroupBoilerplate, TemplateName: "rust/cargo.toml.tmpl"},
		{Name: "lib.rs", RelativePath: "src/lib.rs", Group: GroupBoilerplate, TemplateName: "rust/lib.rs.tmpl"},
		{Name: "error.rs", RelativePath: "src/error.rs", Group: GroupBoilerplate, TemplateName: "rust/error.rs.tmpl"},
	}
	for _, e := range view.entities {
		if e.OnlyForHeritage {
			continue
		}
		forms := snapshot.DeriveNameForms(e.Name)
		out = append(out, Descriptor{
			Name:         forms.Snake + ".rs",
			RelativePath: path.Join("src/entities", forms.Snake+".rs"),
			Group:        GroupEntity,
			TemplateName: "rust/entity.rs.tmpl",
			Entity:       ref(e.ID),
		})
	}
	out = append(out, Descriptor{
		Name:         "mod.rs",
		RelativePath: "src/entities/mod.rs",
		Group:        GroupEntity,
		TemplateName: "rust/entities_mod.rs.tmpl",
		Entity:       ref(0),
	})
	for _, f := range view.features {
		featureForms := snapshot.DeriveNameForms(f.Name)
		out = append(out, Descriptor{
			Name:         "mod.rs",
			RelativePath: path.Join("src/features", featureForms.Snake, "mod.rs"),
			Group:        GroupFeature,
			TemplateName: "rust/feature_mod.rs.tmpl",
			Feature:      ref(f.ID),
		})
		for _, uc := range view.useCases[f.ID] {
			ucForms := snapshot.DeriveNameForms(uc.Name)
			out = append(out, Descriptor{
				Name:         ucForms.Snake + ".rs",
				RelativePath: path.Join("src/features", featureForms.Snake, ucForms.Snake+".rs"),
				Group:        GroupUseCase,
				TemplateName: "rust/use_case.rs.tmpl",
				Feature:      ref(f.ID),
				UseCase:      ref(uc.ID),
			})
		}
	}
	if view.ui != nil && view.ui.CLI {
		out = append(out, Descriptor{
			Name:         "main.rs",
			RelativePath: "src/main.rs",
			Group:        GroupUI,
			TemplateName: "rust/main.rs.tmpl",
		})
	}
	return out
}

func cppQtDescriptors(view *manifestView) []Descriptor {
	out := []Descriptor{
		{Name: "CMakeLists.txt", RelativePath: "CMakeLists.txt", Group: GroupBoilerplate, TemplateName: "cpp_qt/cmakelists.tmpl"},
	}
	for _, e := range view.entities {
		if e.OnlyForHeritage {
			continue
		}
		forms := snapshot.DeriveNameForms(e.Name)
		out = append(out,
			Descriptor{
				Name:         forms.Snake + ".h",
				RelativePath: path.Join("src/entities", forms.Snake+".h"),
				Group:        GroupEntity,
				TemplateName: "cpp_qt/entity.h.tmpl",
				Entity:       ref(e.ID),
			},
			Descriptor{
				Name:         forms.Snake + ".cpp",
				RelativePath: path.Join("src/entities", forms.Snake+".cpp"),
				Group:        GroupEntity,
				TemplateName: "cpp_qt/entity.cpp.tmpl",
				Entity:       ref(e.ID),
			})
	}
	for _, f := range view.features {
		featureForms := snapshot.DeriveNameForms(f.Name)
		out = append(out,
			Descriptor{
				Name:         featureForms.Snake + "_controller.h",
				RelativePath: path.Join("src/controllers", featureForms.Snake+"_controller.h"),
				Group:        GroupFeature,
				TemplateName: "cpp_qt/feature_controller.h.tmpl",
				Feature:      ref(f.ID),
			},
			Descriptor{
				Name:         featureForms.Snake + "_controller.cpp",
				RelativePath: path.Join("src/controllers", featureForms.Snake+"_controller.cpp"),
				Group:        GroupFeature,
				TemplateName: "cpp_qt/feature_controller.cpp.tmpl",
				Feature:      ref(f.ID),
			})
		for _, uc := range view.useCases[f.ID] {
			ucForms := snapshot.DeriveNameForms(uc.Name)
			out = append(out,
				Descriptor{
					Name:         ucForms.Snake + ".h",
					RelativePath: path.Join("src/use_cases", ucForms.Snake+".h"),
					Group:        GroupUseCase,
					TemplateName: "cpp_qt/use_case.h.tmpl",
					Feature:      ref(f.ID),
					UseCase:      ref(uc.ID),
				},
				Descriptor{
					Name:         ucForms.Snake + ".cpp",
					RelativePath: path.Join("src/use_cases", ucForms.Snake+".cpp"),
					Group:        GroupUseCase,
					TemplateName: "cpp_qt/use_case.cpp.tmpl",
					Feature:      ref(f.ID),
					UseCase:      ref(uc.ID),
				})
		}
	}
	if view.ui != nil && view.ui.QML {
		out = append(out, Descriptor{
			Name:         "Main.qml",
			RelativePath: "qml/Main.qml",
			Group:        GroupUI,
			TemplateName: "cpp_qt/main.qml.tmpl",
		})
	}
	return out
}
