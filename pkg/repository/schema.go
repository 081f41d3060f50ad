// Package repository implements the relational layer over the datastore: one
// primary table per entity kind, a shared counter table for id allocation,
// forward junction tables materializing outgoing relationships, and mirror
// backward junctions answering "who points at me" for cascade cleanup.
package repository

import "github.com/jacquetc/qleany/pkg/domain"

// CounterTable is the shared per-kind id counter table.
const CounterTable = "__counter"

// ForwardField describes one outgoing relationship field of an entity kind.
type ForwardField struct {
	// Name is the relationship field name; it is part of the junction table
	// names, so renaming it is schema-breaking.
	Name string

	// Target is the entity kind on the right side.
	Target domain.Kind

	// Type is the cardinality of the edge.
	Type domain.RelationshipType

	// Strength decides cascade: deleting the left side of a strong edge
	// deletes the right side.
	Strength domain.Strength

	// Unique enforces cross-row one-to-one: no two left rows may reference
	// the same right id.
	Unique bool
}

// Descriptor describes the storage shape of one entity kind.
type Descriptor struct {
	Kind    domain.Kind
	Forward []ForwardField
}

// Field returns the forward field with the given name, or nil.
func (d *Descriptor) Field(name string) *ForwardField {
	for i := range d.Forward {
		if d.Forward[i].Name == name {
			return &d.Forward[i]
		}
	}
	return nil
}

// ForwardTable names the forward junction of (kind, field).
func ForwardTable(kind domain.Kind, field string) string {
	return "j_" + string(kind) + "_" + field
}

// BackwardTable names the backward junction mirroring (kind, field). It is
// keyed by the right-side id and lists the left-side ids referencing it.
func BackwardTable(kind domain.Kind, field string) string {
	return "jb_" + string(kind) + "_" + field
}

// Schema lists every entity kind descriptor. Table names derive from it and
// are stable identifiers.
var Schema = map[domain.Kind]*Descriptor{
	domain.KindRoot: {
		Kind: domain.KindRoot,
		Forward: []ForwardField{
			{Name: domain.RelRootWorkspace, Target: domain.KindWorkspace, Type: domain.OneToOne, Strength: domain.Strong},
			{Name: domain.RelRootSystem, Target: domain.KindSystem, Type: domain.OneToOne, Strength: domain.Strong},
		},
	},
	domain.KindWorkspace: {
		Kind: domain.KindWorkspace,
		Forward: []ForwardField{
			{Name: domain.RelWorkspaceGlobal, Target: domain.KindGlobal, Type: domain.OneToOne, Strength: domain.Strong, Unique: true},
			{Name: domain.RelWorkspaceUI, Target: domain.KindUserInterface, Type: domain.OneToOne, Strength: domain.Strong, Unique: true},
			{Name: domain.RelWorkspaceEntities, Target: domain.KindEntity, Type: domain.OneToMany, Strength: domain.Strong},
			{Name: domain.RelWorkspaceFeatures, Target: domain.KindFeature, Type: domain.OneToMany, Strength: domain.Strong},
		},
	},
	domain.KindSystem: {
		Kind: domain.KindSystem,
		Forward: []ForwardField{
			{Name: domain.RelSystemFiles, Target: domain.KindFile, Type: domain.OneToMany, Strength: domain.Strong},
		},
	},
	domain.KindGlobal:        {Kind: domain.KindGlobal},
	domain.KindUserInterface: {Kind: domain.KindUserInterface},
	domain.KindEntity: {
		Kind: domain.KindEntity,
		Forward: []ForwardField{
			{Name: domain.RelEntityInheritsFrom, Target: domain.KindEntity, Type: domain.ManyToOne, Strength: domain.Weak},
			{Name: domain.RelEntityFields, Target: domain.KindField, Type: domain.OrderedOneToMany, Strength: domain.Strong},
			{Name: domain.RelEntityRelationships, Target: domain.KindRelationship, Type: domain.OneToMany, Strength: domain.Strong},
		},
	},
	domain.KindField: {
		Kind: domain.KindField,
		Forward: []ForwardField{
			{Name: domain.RelFieldTargetEntity, Target: domain.KindEntity, Type: domain.ManyToOne, Strength: domain.Weak},
		},
	},
	domain.KindRelationship: {
		Kind: domain.KindRelationship,
		Forward: []ForwardField{
			{Name: domain.RelRelationshipLeft, Target: domain.KindEntity, Type: domain.ManyToOne, Strength: domain.Weak},
			{Name: domain.RelRelationshipRight, Target: domain.KindEntity, Type: domain.ManyToOne, Strength: domain.Weak},
		},
	},
	domain.KindFeature: {
		Kind: domain.KindFeature,
		Forward: []ForwardField{
			{Name: domain.RelFeatureUseCases, Target: domain.KindUseCase, Type: domain.OneToMany, Strength: domain.Strong},
		},
	},
	domain.KindUseCase: {
		Kind: domain.KindUseCase,
		Forward: []ForwardField{
			{Name: domain.RelUseCaseEntities, Target: domain.KindEntity, Type: domain.ManyToMany, Strength: domain.Weak},
			{Name: domain.RelUseCaseDtoIn, Target: domain.KindDto, Type: domain.OneToOne, Strength: domain.Strong, Unique: true},
			{Name: domain.RelUseCaseDtoOut, Target: domain.KindDto, Type: domain.OneToOne, Strength: domain.Strong, Unique: true},
		},
	},
	domain.KindDto: {
		Kind: domain.KindDto,
		Forward: []ForwardField{
			{Name: domain.RelDtoFields, Target: domain.KindDtoField, Type: domain.OrderedOneToMany, Strength: domain.Strong},
		},
	},
	domain.KindDtoField: {Kind: domain.KindDtoField},
	domain.KindFile:     {Kind: domain.KindFile},
}

// backEdge records that field Field of kind Left points at some kind.
type backEdge struct {
	Left  domain.Kind
	Field ForwardField
}

// backwardIndex maps each kind to the edges targeting it. Built once from
// the schema.
var backwardIndex = buildBackwardIndex()

func buildBackwardIndex() map[domain.Kind][]backEdge {
	index := make(map[domain.Kind][]backEdge)
	for _, kind := range domain.Kinds() {
		desc := Schema[kind]
		for _, field := range desc.Forward {
			index[field.Target] = append(index[field.Target], backEdge{Left: kind, Field: field})
		}
	}
	return index
}
