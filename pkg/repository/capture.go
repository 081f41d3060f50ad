package repository

import (
	"errors"

	"github.com/jacquetc/qleany/pkg/domain"
)

// capturedNode is one row of a captured subtree, with the forward reference
// lists as they were at capture time.
type capturedNode struct {
	kind domain.Kind
	id   domain.EntityID
	row  domain.Persistable
	refs map[string][]domain.EntityID
}

// inboundRef is one forward junction row outside the subtree that referenced
// a subtree member at capture time.
type inboundRef struct {
	kind   domain.Kind
	field  string
	leftID domain.EntityID
	rights []domain.EntityID
}

// Subtree is the self-contained state of one entity and everything its
// strong edges own, captured for undo. Restore recreates the rows with their
// original ids and relinks the references that deletion scrubbed.
type Subtree struct {
	rootKind domain.Kind
	rootID   domain.EntityID
	nodes    []capturedNode
	inbound  []inboundRef
}

// RootID returns the id of the captured subtree root.
func (st *Subtree) RootID() domain.EntityID { return st.rootID }

// RootKind returns the kind of the captured subtree root.
func (st *Subtree) RootKind() domain.Kind { return st.rootKind }

// CaptureSubtree snapshots the strong-edge closure of (kind, id) plus every
// outside reference into it.
func (s *Set) CaptureSubtree(kind domain.Kind, id domain.EntityID) (*Subtree, error) {
	st := &Subtree{rootKind: kind, rootID: id}
	visited := make(map[domain.Kind]map[domain.EntityID]bool)

	var walk func(kind domain.Kind, id domain.EntityID) error
	walk = func(kind domain.Kind, id domain.EntityID) error {
		if visited[kind] == nil {
			visited[kind] = make(map[domain.EntityID]bool)
		}
		if visited[kind][id] {
			return nil
		}
		visited[kind][id] = true

		row, err := s.GetAny(kind, id)
		if err != nil {
			return err
		}
		refs := make(map[string][]domain.EntityID)
		for field, ids := range row.ForwardRefs() {
			refs[field] = append([]domain.EntityID(nil), ids...)
		}
		st.nodes = append(st.nodes, capturedNode{kind: kind, id: id, row: row, refs: refs})

		for _, field := range Schema[kind].Forward {
			if field.Strength != domain.Strong {
				continue
			}
			for _, right := range refs[field.Name] {
				if err := walk(field.Target, right); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(kind, id); err != nil {
		return nil, err
	}

	// References into the subtree from rows outside it.
	for _, node := range st.nodes {
		for _, edge := range backwardIndex[node.kind] {
			repo, err := s.repoOf(edge.Left)
			if err != nil {
				return nil, err
			}
			entries, err := repo.GetRelationshipsFromRightIDs(edge.Field.Name, []domain.EntityID{node.id})
			if err != nil {
				return nil, err
			}
			for _, entry := range entries {
				if visited[edge.Left] != nil && visited[edge.Left][entry.LeftID] {
					continue
				}
				st.inbound = append(st.inbound, inboundRef{
					kind:   edge.Left,
					field:  edge.Field.Name,
					leftID: entry.LeftID,
					rights: append([]domain.EntityID(nil), entry.RightIDs...),
				})
			}
		}
	}
	return st, nil
}

// Restore recreates the captured rows with their original ids. Rows come
// back in two phases: bare rows first so every id resolves, then the
// reference lists, then the outside rows that pointed in.
func (st *Subtree) Restore(s *Set) error {
	for _, node := range st.nodes {
		for field := range node.refs {
			node.row.SetForwardRef(field, nil)
		}
		node.row.SetEntityID(node.id)
		if _, err := s.CreateAny(node.row); err != nil {
			return err
		}
	}
	for _, node := range st.nodes {
		repo, err := s.repoOf(node.kind)
		if err != nil {
			return err
		}
		for _, field := range Schema[node.kind].Forward {
			refs := node.refs[field.Name]
			if len(refs) == 0 {
				continue
			}
			if err := repo.SetRelationship(node.id, field.Name, refs); err != nil {
				return err
			}
		}
	}
	for _, in := range st.inbound {
		repo, err := s.repoOf(in.kind)
		if err != nil {
			return err
		}
		err = repo.SetRelationship(in.leftID, in.field, in.rights)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	return nil
}
