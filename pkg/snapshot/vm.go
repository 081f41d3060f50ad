// Package snapshot builds the denormalized, template-ready view of the
// manifest for one generator file. Collections keep insertion order so
// template iteration is deterministic.
package snapshot

import "github.com/jacquetc/qleany/pkg/domain"

// FileVM is the generator file slot of a snapshot.
type FileVM struct {
	ID           domain.EntityID
	Name         string
	RelativePath string
	Group        string
	TemplateName string
}

// GlobalVM carries the application-wide identifiers.
type GlobalVM struct {
	ApplicationName    string
	OrganisationName   string
	OrganisationDomain string
	Language           string
	PrefixPath         string
}

// UIVM carries the UI target flags.
type UIVM struct {
	CLI           bool
	DeclarativeUI bool
	Widgets       bool
	QML           bool
	Kirigami      bool
}

// FieldVM is one field of an entity, ready for interpolation.
type FieldVM struct {
	Name             NameForms
	Type             string
	RelationshipKind string
	TargetEntityName NameForms
	Optional         bool
	Strong           bool
	ListModel        bool
	EnumName         string
	EnumValues       []string
	Inherited        bool
}

// RelationshipVM is one edge of an entity, seen from that entity's side.
type RelationshipVM struct {
	FieldName       NameForms
	CounterpartName NameForms
	Type            string
	Direction       string
	Strength        string
}

// OwnerVM names the strong owner of an entity, when one exists.
type OwnerVM struct {
	Found bool
	Name  NameForms
	Field NameForms
}

// EntityVM is the denormalized view of one entity. Fields list inherited
// fields first, then declared ones. The relationship maps are deduplicated
// by (field name, counterpart).
type EntityVM struct {
	ID                domain.EntityID
	Name              NameForms
	OnlyForHeritage   bool
	SingleModel       bool
	AllowDirectAccess bool
	Undoable          bool
	ParentName        NameForms
	HasParent         bool
	Fields            []FieldVM
	All               []RelationshipVM
	ForwardOnly       []RelationshipVM
	BackwardOnly      []RelationshipVM
	Owner             OwnerVM
}

// DtoFieldVM is one field of a DTO.
type DtoFieldVM struct {
	Name       NameForms
	Type       string
	Optional   bool
	IsList     bool
	EnumName   string
	EnumValues []string
}

// DtoVM is the view of one DTO.
type DtoVM struct {
	ID     domain.EntityID
	Name   NameForms
	Fields []DtoFieldVM
}

// UseCaseVM is the view of one use case.
type UseCaseVM struct {
	ID            domain.EntityID
	Name          NameForms
	Validator     bool
	Undoable      bool
	ReadOnly      bool
	LongOperation bool
	EntityNames   []NameForms
	DtoInName     NameForms
	DtoOutName    NameForms
	HasDtoIn      bool
	HasDtoOut     bool
}

// FeatureVM is the view of one feature.
type FeatureVM struct {
	ID           domain.EntityID
	Name         NameForms
	UseCaseNames []NameForms
}

// Snapshot is the full template payload for one generator file.
type Snapshot struct {
	File     FileVM
	Global   GlobalVM
	UI       UIVM
	Entities []EntityVM
	Features []FeatureVM
	UseCases []UseCaseVM
	Dtos     []DtoVM
}

// Clone deep-copies a snapshot so cache hits can rebind File without
// aliasing the cached payload.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		File:   s.File,
		Global: s.Global,
		UI:     s.UI,
	}
	out.Entities = make([]EntityVM, len(s.Entities))
	for i, e := range s.Entities {
		clone := e
		clone.Fields = cloneFieldVMs(e.Fields)
		clone.All = append([]RelationshipVM(nil), e.All...)
		clone.ForwardOnly = append([]RelationshipVM(nil), e.ForwardOnly...)
		clone.BackwardOnly = append([]RelationshipVM(nil), e.BackwardOnly...)
		out.Entities[i] = clone
	}
	out.Features = make([]FeatureVM, len(s.Features))
	for i, f := range s.Features {
		clone := f
		clone.UseCaseNames = append([]NameForms(nil), f.UseCaseNames...)
		out.Features[i] = clone
	}
	out.UseCases = make([]UseCaseVM, len(s.UseCases))
	for i, u := range s.UseCases {
		clone := u
		clone.EntityNames = append([]NameForms(nil), u.EntityNames...)
		out.UseCases[i] = clone
	}
	out.Dtos = make([]DtoVM, len(s.Dtos))
	for i, d := range s.Dtos {
		clone := d
		clone.Fields = make([]DtoFieldVM, len(d.Fields))
		for j, f := range d.Fields {
			fc := f
			fc.EnumValues = append([]string(nil), f.EnumValues...)
			clone.Fields[j] = fc
		}
		out.Dtos[i] = clone
	}
	return out
}

func cloneFieldVMs(fields []FieldVM) []FieldVM {
	out := make([]FieldVM, len(fields))
	for i, f := range fields {
		clone := f
		clone.EnumValues = append([]string(nil), f.EnumValues...)
		out[i] = clone
	}
	return out
}
