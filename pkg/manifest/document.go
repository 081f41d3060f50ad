// Package manifest reads and writes the designer-facing manifest file and
// moves it in and out of the store. The format is strict: unknown keys are
// rejected and the schema version is pinned.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jacquetc/qleany/pkg/domain"
)

// SchemaVersion is the only manifest version this build accepts.
const SchemaVersion = 1

type Schema struct {
	Version int `json:"version" yaml:"version"`
}

type GlobalDoc struct {
	ApplicationName    string `json:"application_name" yaml:"application_name"`
	OrganisationName   string `json:"organisation_name,omitempty" yaml:"organisation_name,omitempty"`
	OrganisationDomain string `json:"organisation_domain,omitempty" yaml:"organisation_domain,omitempty"`
	Language           string `json:"language" yaml:"language"`
	PrefixPath         string `json:"prefix_path,omitempty" yaml:"prefix_path,omitempty"`
}

type UIDoc struct {
	CLI           bool `json:"cli,omitempty" yaml:"cli,omitempty"`
	DeclarativeUI bool `json:"declarative_ui,omitempty" yaml:"declarative_ui,omitempty"`
	Widgets       bool `json:"widgets,omitempty" yaml:"widgets,omitempty"`
	QML           bool `json:"qml,omitempty" yaml:"qml,omitempty"`
	Kirigami      bool `json:"kirigami,omitempty" yaml:"kirigami,omitempty"`
}

type FieldDoc struct {
	Name         string   `json:"name" yaml:"name"`
	Type         string   `json:"type" yaml:"type"`
	TargetEntity string   `json:"target_entity,omitempty" yaml:"target_entity,omitempty"`
	Relationship string   `json:"relationship,omitempty" yaml:"relationship,omitempty"`
	Optional     bool     `json:"optional,omitempty" yaml:"optional,omitempty"`
	Strong       bool     `json:"strong,omitempty" yaml:"strong,omitempty"`
	ListModel    bool     `json:"list_model,omitempty" yaml:"list_model,omitempty"`
	EnumName     string   `json:"enum_name,omitempty" yaml:"enum_name,omitempty"`
	EnumValues   []string `json:"enum_values,omitempty" yaml:"enum_values,omitempty"`
}

type EntityDoc struct {
	Name              string     `json:"name" yaml:"name"`
	OnlyForHeritage   bool       `json:"only_for_heritage,omitempty" yaml:"only_for_heritage,omitempty"`
	SingleModel       bool       `json:"single_model,omitempty" yaml:"single_model,omitempty"`
	AllowDirectAccess bool       `json:"allow_direct_access,omitempty" yaml:"allow_direct_access,omitempty"`
	Undoable          bool       `json:"undoable,omitempty" yaml:"undoable,omitempty"`
	InheritsFrom      string     `json:"inherits_from,omitempty" yaml:"inherits_from,omitempty"`
	Fields            []FieldDoc `json:"fields" yaml:"fields"`
}

type DtoFieldDoc struct {
	Name       string   `json:"name" yaml:"name"`
	Type       string   `json:"type" yaml:"type"`
	Optional   bool     `json:"optional,omitempty" yaml:"optional,omitempty"`
	IsList     bool     `json:"is_list,omitempty" yaml:"is_list,omitempty"`
	EnumName   string   `json:"enum_name,omitempty" yaml:"enum_name,omitempty"`
	EnumValues []string `json:"enum_values,omitempty" yaml:"enum_values,omitempty"`
}

type DtoDoc struct {
	Name   string        `json:"name" yaml:"name"`
	Fields []DtoFieldDoc `json:"fields" yaml:"fields"`
}

type UseCaseDoc struct {
	Name          string   `json:"name" yaml:"name"`
	Validator     bool     `json:"validator,omitempty" yaml:"validator,omitempty"`
	Undoable      bool     `json:"undoable,omitempty" yaml:"undoable,omitempty"`
	ReadOnly      bool     `json:"read_only,omitempty" yaml:"read_only,omitempty"`
	LongOperation bool     `json:"long_operation,omitempty" yaml:"long_operation,omitempty"`
	Entities      []string `json:"entities,omitempty" yaml:"entities,omitempty"`
	DtoIn         *DtoDoc  `json:"dto_in,omitempty" yaml:"dto_in,omitempty"`
	DtoOut        *DtoDoc  `json:"dto_out,omitempty" yaml:"dto_out,omitempty"`
}

type FeatureDoc struct {
	Name     string       `json:"name" yaml:"name"`
	UseCases []UseCaseDoc `json:"use_cases" yaml:"use_cases"`
}

// Document is the full manifest payload.
type Document struct {
	Schema   Schema       `json:"schema" yaml:"schema"`
	Global   GlobalDoc    `json:"global" yaml:"global"`
	UI       UIDoc        `json:"ui" yaml:"ui"`
	Entities []EntityDoc  `json:"entities" yaml:"entities"`
	Features []FeatureDoc `json:"features,omitempty" yaml:"features,omitempty"`
}

// Parse decodes a manifest from raw bytes. The format follows the file
// extension: ".json" or ".yaml"/".yml".
func Parse(raw []byte, path string) (*Document, error) {
	var doc Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidationFailed, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidationFailed, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported manifest extension %q", domain.ErrValidationFailed, filepath.Ext(path))
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ParseFile reads and decodes a manifest file.
func ParseFile(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	return Parse(raw, path)
}

// Validate checks the pinned version, the target language, name presence
// and that every type string parses.
func (doc *Document) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{domain.ErrValidationFailed}, args...)...)
	}
	if doc.Schema.Version != SchemaVersion {
		return fail("schema version %d, want %d", doc.Schema.Version, SchemaVersion)
	}
	if doc.Global.ApplicationName == "" {
		return fail("global.application_name is required")
	}
	if !domain.TargetLanguage(doc.Global.Language).Valid() {
		return fail("unknown language %q", doc.Global.Language)
	}

	entityNames := make(map[string]bool)
	for _, e := range doc.Entities {
		if e.Name == "" {
			return fail("entity without a name")
		}
		if entityNames[e.Name] {
			return fail("duplicate entity %q", e.Name)
		}
		entityNames[e.Name] = true
	}
	parents := make(map[string]string)
	for _, e := range doc.Entities {
		if e.InheritsFrom != "" {
			parents[e.Name] = e.InheritsFrom
		}
	}
	for name := range parents {
		seen := map[string]bool{name: true}
		for cur := parents[name]; cur != ""; cur = parents[cur] {
			if seen[cur] {
				return fail("inheritance cycle through entity %q", cur)
			}
			seen[cur] = true
		}
	}

	for _, e := range doc.Entities {
		if e.InheritsFrom != "" && !entityNames[e.InheritsFrom] {
			return fail("entity %q inherits from unknown entity %q", e.Name, e.InheritsFrom)
		}
		for _, f := range e.Fields {
			if f.Name == "" {
				return fail("entity %q has a field without a name", e.Name)
			}
			ft, ok := domain.ParseFieldType(f.Type)
			if !ok {
				return fail("entity %q field %q has unknown type %q", e.Name, f.Name, f.Type)
			}
			if ft == domain.FieldEntity {
				if !entityNames[f.TargetEntity] {
					return fail("entity %q field %q targets unknown entity %q", e.Name, f.Name, f.TargetEntity)
				}
				if _, ok := domain.ParseRelationshipType(f.Relationship); !ok {
					return fail("entity %q field %q has unknown relationship %q", e.Name, f.Name, f.Relationship)
				}
			} else if f.TargetEntity != "" {
				return fail("entity %q field %q has a target entity but is not entity-typed", e.Name, f.Name)
			}
			if ft == domain.FieldEnum && f.EnumName == "" {
				return fail("entity %q field %q needs an enum name", e.Name, f.Name)
			}
		}
	}

	featureNames := make(map[string]bool)
	for _, feature := range doc.Features {
		if feature.Name == "" {
			return fail("feature without a name")
		}
		if featureNames[feature.Name] {
			return fail("duplicate feature %q", feature.Name)
		}
		featureNames[feature.Name] = true
		for _, uc := range feature.UseCases {
			if uc.Name == "" {
				return fail("feature %q has a use case without a name", feature.Name)
			}
			for _, name := range uc.Entities {
				if !entityNames[name] {
					return fail("use case %q references unknown entity %q", uc.Name, name)
				}
			}
			for _, dto := range []*DtoDoc{uc.DtoIn, uc.DtoOut} {
				if dto == nil {
					continue
				}
				if dto.Name == "" {
					return fail("use case %q has a DTO without a name", uc.Name)
				}
				for _, f := range dto.Fields {
					ft, ok := domain.ParseFieldType(f.Type)
					if !ok {
						return fail("dto %q field %q has unknown type %q", dto.Name, f.Name, f.Type)
					}
					if ft == domain.FieldEntity {
						return fail("dto %q field %q cannot be entity-typed", dto.Name, f.Name)
					}
				}
			}
		}
	}
	return nil
}

// Encode serializes the document in the format matching the extension.
func (doc *Document) Encode(path string) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidationFailed, err)
		}
		return append(out, '\n'), nil
	case ".yaml", ".yml":
		out, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidationFailed, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported manifest extension %q", domain.ErrValidationFailed, filepath.Ext(path))
	}
}
