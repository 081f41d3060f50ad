package domain

import "github.com/jacquetc/qleany/pkg/codec"

// Relationship field names. These double as junction table name components,
// so renaming one is schema-breaking.
const (
	RelRootWorkspace       = "workspace"
	RelRootSystem          = "system"
	RelWorkspaceGlobal     = "global"
	RelWorkspaceUI         = "ui"
	RelWorkspaceEntities   = "entities"
	RelWorkspaceFeatures   = "features"
	RelSystemFiles         = "files"
	RelEntityInheritsFrom  = "inherits_from"
	RelEntityFields        = "fields"
	RelEntityRelationships = "relationships"
	RelFieldTargetEntity   = "target_entity"
	RelRelationshipLeft    = "left_entity"
	RelRelationshipRight   = "right_entity"
	RelFeatureUseCases     = "use_cases"
	RelUseCaseEntities     = "entities"
	RelUseCaseDtoIn        = "dto_in"
	RelUseCaseDtoOut       = "dto_out"
	RelDtoFields           = "fields"
)

// Persistable is the capability every entity kind implements. Rows
// encode scalar fields only; relationships live in junction tables and are
// hydrated by the repository through ForwardRefs/SetForwardRef.
type Persistable interface {
	EntityID() EntityID
	SetEntityID(EntityID)
	EntityKind() Kind
	EncodeFields(*codec.Encoder)
	DecodeFields(*codec.Decoder) error
	ForwardRefs() map[string][]EntityID
	SetForwardRef(field string, ids []EntityID)
}

// single converts a 0..1 ref to its uniform list form.
func single(id EntityID) []EntityID {
	if id == 0 {
		return nil
	}
	return []EntityID{id}
}

// first converts the uniform list form back to a 0..1 ref.
func first(ids []EntityID) EntityID {
	if len(ids) == 0 {
		return 0
	}
	return ids[0]
}

// encodeOptionalID appends a presence byte followed by the id when present.
func encodeOptionalID(e *codec.Encoder, id *EntityID) {
	if id == nil {
		e.Bool(false)
		return
	}
	e.Bool(true)
	e.Uint64(uint64(*id))
}

// decodeOptionalID reads a presence-prefixed id, nil when absent.
func decodeOptionalID(d *codec.Decoder) *EntityID {
	if !d.Bool() {
		return nil
	}
	id := EntityID(d.Uint64())
	return &id
}

// Root is the singleton anchor of the store, created once at initialization
// with id 1 and never destroyed.
type Root struct {
	ID        EntityID
	Workspace EntityID
	System    EntityID
}

func (r *Root) EntityID() EntityID      { return r.ID }
func (r *Root) SetEntityID(id EntityID) { r.ID = id }
func (r *Root) EntityKind() Kind        { return KindRoot }

func (r *Root) EncodeFields(*codec.Encoder) {}

func (r *Root) DecodeFields(d *codec.Decoder) error { return d.Err() }

func (r *Root) ForwardRefs() map[string][]EntityID {
	return map[string][]EntityID{
		RelRootWorkspace: single(r.Workspace),
		RelRootSystem:    single(r.System),
	}
}

func (r *Root) SetForwardRef(field string, ids []EntityID) {
	switch field {
	case RelRootWorkspace:
		r.Workspace = first(ids)
	case RelRootSystem:
		r.System = first(ids)
	}
}

// Workspace holds the designer-facing manifest state: the manifest path, the
// global settings, the UI target flags and the modeled entities and features.
type Workspace struct {
	ID                   EntityID
	ManifestAbsolutePath string
	Global               EntityID
	UI                   EntityID
	Entities             []EntityID
	Features             []EntityID
}

func (w *Workspace) EntityID() EntityID      { return w.ID }
func (w *Workspace) SetEntityID(id EntityID) { w.ID = id }
func (w *Workspace) EntityKind() Kind        { return KindWorkspace }

func (w *Workspace) EncodeFields(e *codec.Encoder) {
	e.String(w.ManifestAbsolutePath)
}

func (w *Workspace) DecodeFields(d *codec.Decoder) error {
	w.ManifestAbsolutePath = d.String()
	return d.Err()
}

func (w *Workspace) ForwardRefs() map[string][]EntityID {
	return map[string][]EntityID{
		RelWorkspaceGlobal:   single(w.Global),
		RelWorkspaceUI:       single(w.UI),
		RelWorkspaceEntities: w.Entities,
		RelWorkspaceFeatures: w.Features,
	}
}

func (w *Workspace) SetForwardRef(field string, ids []EntityID) {
	switch field {
	case RelWorkspaceGlobal:
		w.Global = first(ids)
	case RelWorkspaceUI:
		w.UI = first(ids)
	case RelWorkspaceEntities:
		w.Entities = ids
	case RelWorkspaceFeatures:
		w.Features = ids
	}
}

// System owns the generator File descriptors of the current run.
type System struct {
	ID    EntityID
	Files []EntityID
}

func (s *System) EntityID() EntityID      { return s.ID }
func (s *System) SetEntityID(id EntityID) { s.ID = id }
func (s *System) EntityKind() Kind        { return KindSystem }

func (s *System) EncodeFields(*codec.Encoder) {}

func (s *System) DecodeFields(d *codec.Decoder) error { return d.Err() }

func (s *System) ForwardRefs() map[string][]EntityID {
	return map[string][]EntityID{RelSystemFiles: s.Files}
}

func (s *System) SetForwardRef(field string, ids []EntityID) {
	if field == RelSystemFiles {
		s.Files = ids
	}
}

// Global carries application-wide identifiers and the target language tag.
type Global struct {
	ID               EntityID
	ApplicationName  string
	OrganisationName string
	OrganisationDomain string
	Language         TargetLanguage
	PrefixPath       string
}

func (g *Global) EntityID() EntityID      { return g.ID }
func (g *Global) SetEntityID(id EntityID) { g.ID = id }
func (g *Global) EntityKind() Kind        { return KindGlobal }

func (g *Global) EncodeFields(e *codec.Encoder) {
	e.String(g.ApplicationName)
	e.String(g.OrganisationName)
	e.String(g.OrganisationDomain)
	e.String(string(g.Language))
	e.String(g.PrefixPath)
}

func (g *Global) DecodeFields(d *codec.Decoder) error {
	g.ApplicationName = d.String()
	g.OrganisationName = d.String()
	g.OrganisationDomain = d.String()
	g.Language = TargetLanguage(d.String())
	g.PrefixPath = d.String()
	return d.Err()
}

func (g *Global) ForwardRefs() map[string][]EntityID { return nil }

func (g *Global) SetForwardRef(string, []EntityID) {}

// UserInterface flags the UI targets the generator should emit.
type UserInterface struct {
	ID            EntityID
	CLI           bool
	DeclarativeUI bool
	Widgets       bool
	QML           bool
	Kirigami      bool
}

func (u *UserInterface) EntityID() EntityID      { return u.ID }
func (u *UserInterface) SetEntityID(id EntityID) { u.ID = id }
func (u *UserInterface) EntityKind() Kind        { return KindUserInterface }

func (u *UserInterface) EncodeFields(e *codec.Encoder) {
	e.Bool(u.CLI)
	e.Bool(u.DeclarativeUI)
	e.Bool(u.Widgets)
	e.Bool(u.QML)
	e.Bool(u.Kirigami)
}

func (u *UserInterface) DecodeFields(d *codec.Decoder) error {
	u.CLI = d.Bool()
	u.DeclarativeUI = d.Bool()
	u.Widgets = d.Bool()
	u.QML = d.Bool()
	u.Kirigami = d.Bool()
	return d.Err()
}

func (u *UserInterface) ForwardRefs() map[string][]EntityID { return nil }

func (u *UserInterface) SetForwardRef(string, []EntityID) {}

// Entity is a domain entity of the user's model.
type Entity struct {
	ID                EntityID
	Name              string
	OnlyForHeritage   bool
	SingleModel       bool
	AllowDirectAccess bool
	Undoable          bool
	InheritsFrom      EntityID
	Fields            []EntityID
	Relationships     []EntityID
}

func (en *Entity) EntityID() EntityID      { return en.ID }
func (en *Entity) SetEntityID(id EntityID) { en.ID = id }
func (en *Entity) EntityKind() Kind        { return KindEntity }

func (en *Entity) EncodeFields(e *codec.Encoder) {
	e.String(en.Name)
	e.Bool(en.OnlyForHeritage)
	e.Bool(en.SingleModel)
	e.Bool(en.AllowDirectAccess)
	e.Bool(en.Undoable)
}

func (en *Entity) DecodeFields(d *codec.Decoder) error {
	en.Name = d.String()
	en.OnlyForHeritage = d.Bool()
	en.SingleModel = d.Bool()
	en.AllowDirectAccess = d.Bool()
	en.Undoable = d.Bool()
	return d.Err()
}

func (en *Entity) ForwardRefs() map[string][]EntityID {
	return map[string][]EntityID{
		RelEntityInheritsFrom:  single(en.InheritsFrom),
		RelEntityFields:        en.Fields,
		RelEntityRelationships: en.Relationships,
	}
}

func (en *Entity) SetForwardRef(field string, ids []EntityID) {
	switch field {
	case RelEntityInheritsFrom:
		en.InheritsFrom = first(ids)
	case RelEntityFields:
		en.Fields = ids
	case RelEntityRelationships:
		en.Relationships = ids
	}
}

// Field is a property of a domain entity. Entity-typed fields carry a target
// entity and a relationship kind; enum fields carry their value list.
type Field struct {
	ID                      EntityID
	Name                    string
	Type                    FieldType
	RelationshipKind        RelationshipType
	TargetEntity            EntityID
	Optional                bool
	Strong                  bool
	ListModel               bool
	ListModelDisplayedField string
	EnumName                string
	EnumValues              []string
}

func (f *Field) EntityID() EntityID      { return f.ID }
func (f *Field) SetEntityID(id EntityID) { f.ID = id }
func (f *Field) EntityKind() Kind        { return KindField }

func (f *Field) EncodeFields(e *codec.Encoder) {
	e.String(f.Name)
	e.Int64(int64(f.Type))
	e.Int64(int64(f.RelationshipKind))
	e.Bool(f.Optional)
	e.Bool(f.Strong)
	e.Bool(f.ListModel)
	e.String(f.ListModelDisplayedField)
	e.String(f.EnumName)
	e.StringSlice(f.EnumValues)
}

func (f *Field) DecodeFields(d *codec.Decoder) error {
	f.Name = d.String()
	f.Type = FieldType(d.Int64())
	f.RelationshipKind = RelationshipType(d.Int64())
	f.Optional = d.Bool()
	f.Strong = d.Bool()
	f.ListModel = d.Bool()
	f.ListModelDisplayedField = d.String()
	f.EnumName = d.String()
	f.EnumValues = d.StringSlice()
	return d.Err()
}

func (f *Field) ForwardRefs() map[string][]EntityID {
	return map[string][]EntityID{RelFieldTargetEntity: single(f.TargetEntity)}
}

func (f *Field) SetForwardRef(field string, ids []EntityID) {
	if field == RelFieldTargetEntity {
		f.TargetEntity = first(ids)
	}
}

// Relationship is derived from Entity-typed fields: one row per direction,
// owned by the entity on that side.
type Relationship struct {
	ID          EntityID
	LeftEntity  EntityID
	RightEntity EntityID
	FieldName   string
	Type        RelationshipType
	Direction   Direction
	Strength    Strength
}

func (r *Relationship) EntityID() EntityID      { return r.ID }
func (r *Relationship) SetEntityID(id EntityID) { r.ID = id }
func (r *Relationship) EntityKind() Kind        { return KindRelationship }

func (r *Relationship) EncodeFields(e *codec.Encoder) {
	e.String(r.FieldName)
	e.Int64(int64(r.Type))
	e.Int64(int64(r.Direction))
	e.Int64(int64(r.Strength))
}

func (r *Relationship) DecodeFields(d *codec.Decoder) error {
	r.FieldName = d.String()
	r.Type = RelationshipType(d.Int64())
	r.Direction = Direction(d.Int64())
	r.Strength = Strength(d.Int64())
	return d.Err()
}

func (r *Relationship) ForwardRefs() map[string][]EntityID {
	return map[string][]EntityID{
		RelRelationshipLeft:  single(r.LeftEntity),
		RelRelationshipRight: single(r.RightEntity),
	}
}

func (r *Relationship) SetForwardRef(field string, ids []EntityID) {
	switch field {
	case RelRelationshipLeft:
		r.LeftEntity = first(ids)
	case RelRelationshipRight:
		r.RightEntity = first(ids)
	}
}

// Feature groups use cases.
type Feature struct {
	ID       EntityID
	Name     string
	UseCases []EntityID
}

func (f *Feature) EntityID() EntityID      { return f.ID }
func (f *Feature) SetEntityID(id EntityID) { f.ID = id }
func (f *Feature) EntityKind() Kind        { return KindFeature }

func (f *Feature) EncodeFields(e *codec.Encoder) {
	e.String(f.Name)
}

func (f *Feature) DecodeFields(d *codec.Decoder) error {
	f.Name = d.String()
	return d.Err()
}

func (f *Feature) ForwardRefs() map[string][]EntityID {
	return map[string][]EntityID{RelFeatureUseCases: f.UseCases}
}

func (f *Feature) SetForwardRef(field string, ids []EntityID) {
	if field == RelFeatureUseCases {
		f.UseCases = ids
	}
}

// UseCase is a single command of a feature, optionally bound to DTOs and the
// entities it touches.
type UseCase struct {
	ID            EntityID
	Name          string
	Validator     bool
	Undoable      bool
	ReadOnly      bool
	LongOperation bool
	Entities      []EntityID
	DtoIn         EntityID
	DtoOut        EntityID
}

func (u *UseCase) EntityID() EntityID      { return u.ID }
func (u *UseCase) SetEntityID(id EntityID) { u.ID = id }
func (u *UseCase) EntityKind() Kind        { return KindUseCase }

func (u *UseCase) EncodeFields(e *codec.Encoder) {
	e.String(u.Name)
	e.Bool(u.Validator)
	e.Bool(u.Undoable)
	e.Bool(u.ReadOnly)
	e.Bool(u.LongOperation)
}

func (u *UseCase) DecodeFields(d *codec.Decoder) error {
	u.Name = d.String()
	u.Validator = d.Bool()
	u.Undoable = d.Bool()
	u.ReadOnly = d.Bool()
	u.LongOperation = d.Bool()
	return d.Err()
}

func (u *UseCase) ForwardRefs() map[string][]EntityID {
	return map[string][]EntityID{
		RelUseCaseEntities: u.Entities,
		RelUseCaseDtoIn:    single(u.DtoIn),
		RelUseCaseDtoOut:   single(u.DtoOut),
	}
}

func (u *UseCase) SetForwardRef(field string, ids []EntityID) {
	switch field {
	case RelUseCaseEntities:
		u.Entities = ids
	case RelUseCaseDtoIn:
		u.DtoIn = first(ids)
	case RelUseCaseDtoOut:
		u.DtoOut = first(ids)
	}
}

// Dto is a data transfer object with ordered fields.
type Dto struct {
	ID     EntityID
	Name   string
	Fields []EntityID
}

func (d *Dto) EntityID() EntityID      { return d.ID }
func (d *Dto) SetEntityID(id EntityID) { d.ID = id }
func (d *Dto) EntityKind() Kind        { return KindDto }

func (d *Dto) EncodeFields(e *codec.Encoder) {
	e.String(d.Name)
}

func (d *Dto) DecodeFields(dec *codec.Decoder) error {
	d.Name = dec.String()
	return dec.Err()
}

func (d *Dto) ForwardRefs() map[string][]EntityID {
	return map[string][]EntityID{RelDtoFields: d.Fields}
}

func (d *Dto) SetForwardRef(field string, ids []EntityID) {
	if field == RelDtoFields {
		d.Fields = ids
	}
}

// DtoField is a property of a DTO. Entity-typed fields are not allowed here.
type DtoField struct {
	ID         EntityID
	Name       string
	Type       FieldType
	Optional   bool
	IsList     bool
	EnumName   string
	EnumValues []string
}

func (f *DtoField) EntityID() EntityID      { return f.ID }
func (f *DtoField) SetEntityID(id EntityID) { f.ID = id }
func (f *DtoField) EntityKind() Kind        { return KindDtoField }

func (f *DtoField) EncodeFields(e *codec.Encoder) {
	e.String(f.Name)
	e.Int64(int64(f.Type))
	e.Bool(f.Optional)
	e.Bool(f.IsList)
	e.String(f.EnumName)
	e.StringSlice(f.EnumValues)
}

func (f *DtoField) DecodeFields(d *codec.Decoder) error {
	f.Name = d.String()
	f.Type = FieldType(d.Int64())
	f.Optional = d.Bool()
	f.IsList = d.Bool()
	f.EnumName = d.String()
	f.EnumValues = d.StringSlice()
	return d.Err()
}

func (f *DtoField) ForwardRefs() map[string][]EntityID { return nil }

func (f *DtoField) SetForwardRef(string, []EntityID) {}

// File is a generator descriptor: one output file plus the scope triple that
// parameterizes its snapshot. A nil scope slot means "not scoped"; an explicit
// zero means "all" (the wildcard convention of the manifest format).
type File struct {
	ID           EntityID
	Name         string
	RelativePath string
	Group        string
	TemplateName string
	Feature      *EntityID
	Entity       *EntityID
	UseCase      *EntityID
	Field        *EntityID
}

func (f *File) EntityID() EntityID      { return f.ID }
func (f *File) SetEntityID(id EntityID) { f.ID = id }
func (f *File) EntityKind() Kind        { return KindFile }

func (f *File) EncodeFields(e *codec.Encoder) {
	e.String(f.Name)
	e.String(f.RelativePath)
	e.String(f.Group)
	e.String(f.TemplateName)
	encodeOptionalID(e, f.Feature)
	encodeOptionalID(e, f.Entity)
	encodeOptionalID(e, f.UseCase)
	encodeOptionalID(e, f.Field)
}

func (f *File) DecodeFields(d *codec.Decoder) error {
	f.Name = d.String()
	f.RelativePath = d.String()
	f.Group = d.String()
	f.TemplateName = d.String()
	f.Feature = decodeOptionalID(d)
	f.Entity = decodeOptionalID(d)
	f.UseCase = decodeOptionalID(d)
	f.Field = decodeOptionalID(d)
	return d.Err()
}

func (f *File) ForwardRefs() map[string][]EntityID { return nil }

func (f *File) SetForwardRef(string, []EntityID) {}
