// Package domain defines the entity model persisted by the store: identifier
// and kind types, the entity structs themselves, and the error taxonomy shared
// by every layer above the datastore.
package domain

// EntityID is a 64-bit identifier. Zero is the "unassigned" sentinel and asks
// the repository to allocate the next value from the per-kind counter.
type EntityID uint64

// Unassigned is the EntityID sentinel meaning "allocate next".
const Unassigned EntityID = 0

// RootID is the conventional identifier of the singleton Root entity.
const RootID EntityID = 1

// Kind names an entity kind. Kind values double as primary table names, so
// renaming one is schema-breaking.
type Kind string

const (
	KindRoot          Kind = "root"
	KindWorkspace     Kind = "workspace"
	KindSystem        Kind = "system"
	KindGlobal        Kind = "global"
	KindUserInterface Kind = "user_interface"
	KindEntity        Kind = "entity"
	KindField         Kind = "field"
	KindRelationship  Kind = "relationship"
	KindFeature       Kind = "feature"
	KindUseCase       Kind = "use_case"
	KindDto           Kind = "dto"
	KindDtoField      Kind = "dto_field"
	KindFile          Kind = "file"
)

// Kinds lists every entity kind in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindRoot, KindWorkspace, KindSystem, KindGlobal, KindUserInterface,
		KindEntity, KindField, KindRelationship, KindFeature, KindUseCase,
		KindDto, KindDtoField, KindFile,
	}
}

// FieldType enumerates the primitive types a Field or DtoField can carry.
type FieldType int

const (
	FieldBoolean FieldType = iota
	FieldInteger
	FieldUInteger
	FieldFloat
	FieldString
	FieldUuid
	FieldDateTime
	FieldEntity
	FieldEnum
)

// String returns the lowercase manifest spelling of the field type.
func (ft FieldType) String() string {
	switch ft {
	case FieldBoolean:
		return "boolean"
	case FieldInteger:
		return "integer"
	case FieldUInteger:
		return "uinteger"
	case FieldFloat:
		return "float"
	case FieldString:
		return "string"
	case FieldUuid:
		return "uuid"
	case FieldDateTime:
		return "date_time"
	case FieldEntity:
		return "entity"
	case FieldEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// ParseFieldType parses the lowercase manifest spelling of a field type.
func ParseFieldType(s string) (FieldType, bool) {
	switch s {
	case "boolean":
		return FieldBoolean, true
	case "integer":
		return FieldInteger, true
	case "uinteger":
		return FieldUInteger, true
	case "float":
		return FieldFloat, true
	case "string":
		return FieldString, true
	case "uuid":
		return FieldUuid, true
	case "date_time":
		return FieldDateTime, true
	case "entity":
		return FieldEntity, true
	case "enum":
		return FieldEnum, true
	default:
		return 0, false
	}
}

// RelationshipType enumerates the cardinalities of Entity-typed fields.
type RelationshipType int

const (
	OneToOne RelationshipType = iota
	ManyToOne
	OneToMany
	OrderedOneToMany
	ManyToMany
)

// String returns the lowercase manifest spelling of the relationship type.
func (rt RelationshipType) String() string {
	switch rt {
	case OneToOne:
		return "one_to_one"
	case ManyToOne:
		return "many_to_one"
	case OneToMany:
		return "one_to_many"
	case OrderedOneToMany:
		return "ordered_one_to_many"
	case ManyToMany:
		return "many_to_many"
	default:
		return "unknown"
	}
}

// ParseRelationshipType parses the lowercase manifest spelling.
func ParseRelationshipType(s string) (RelationshipType, bool) {
	switch s {
	case "one_to_one":
		return OneToOne, true
	case "many_to_one":
		return ManyToOne, true
	case "one_to_many":
		return OneToMany, true
	case "ordered_one_to_many":
		return OrderedOneToMany, true
	case "many_to_many":
		return ManyToMany, true
	default:
		return 0, false
	}
}

// Direction tells whether a Relationship row describes the owning side
// (Forward) or the mirrored side (Backward).
type Direction int

const (
	Forward Direction = iota
	Backward
)

// String returns the display name of the direction.
func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// Strength tells whether an edge owns its target. Deleting the owner of a
// strong edge cascades into the target.
type Strength int

const (
	Weak Strength = iota
	Strong
)

// String returns the display name of the strength.
func (s Strength) String() string {
	if s == Strong {
		return "strong"
	}
	return "weak"
}

// TargetLanguage selects the generated stack.
type TargetLanguage string

const (
	LanguageRust  TargetLanguage = "rust"
	LanguageCppQt TargetLanguage = "cpp-qt"
)

// Valid reports whether the language tag is one of the supported stacks.
func (l TargetLanguage) Valid() bool {
	return l == LanguageRust || l == LanguageCppQt
}
