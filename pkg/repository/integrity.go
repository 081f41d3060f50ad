package repository

import (
	"fmt"

	"github.com/jacquetc/qleany/pkg/codec"
	"github.com/jacquetc/qleany/pkg/domain"
)

// RebuildBackwardJunctions drops every backward junction table's content and
// rebuilds it from the forward junctions. Used after importing a manifest,
// where only forward edges are authoritative.
func (s *Set) RebuildBackwardJunctions() error {
	if s.readOnly {
		return fmt.Errorf("%w: rebuild requires a writable transaction", domain.ErrStorage)
	}
	for _, kind := range domain.Kinds() {
		for _, field := range Schema[kind].Forward {
			if err := s.rebuildOne(kind, field); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Set) rebuildOne(kind domain.Kind, field ForwardField) error {
	backward, err := s.tx.Table(BackwardTable(kind, field.Name))
	if err != nil {
		return wrapStorage(err)
	}

	// Collect keys first; deleting while scanning is adapter-dependent.
	var stale [][]byte
	err = backward.Scan(nil, 0, func(key, value []byte) error {
		k := make([]byte, len(key))
		copy(k, key)
		stale = append(stale, k)
		return nil
	})
	if err != nil {
		return wrapStorage(err)
	}
	for _, key := range stale {
		if err := backward.Delete(key); err != nil {
			return wrapStorage(err)
		}
	}

	forward, err := s.tx.Table(ForwardTable(kind, field.Name))
	if err != nil {
		return wrapStorage(err)
	}

	mirror := make(map[domain.EntityID][]domain.EntityID)
	err = forward.Scan(nil, 0, func(key, value []byte) error {
		leftRaw, err := codec.DecodeID(key)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrCodec, err)
		}
		rights, err := decodeIDList(value)
		if err != nil {
			return err
		}
		for _, right := range rights {
			mirror[right] = append(mirror[right], domain.EntityID(leftRaw))
		}
		return nil
	})
	if err != nil {
		return wrapStorage(err)
	}

	for right, lefts := range mirror {
		if err := backward.Put(codec.EncodeID(uint64(right)), encodeIDList(lefts)); err != nil {
			return wrapStorage(err)
		}
	}
	return nil
}

// IntegrityIssue describes one inconsistency found by CheckIntegrity.
type IntegrityIssue struct {
	Kind    domain.Kind
	Field   string
	Message string
}

// CheckIntegrity verifies that every forward junction references existing
// rows and that the backward junctions mirror the forward ones exactly.
func (s *Set) CheckIntegrity() ([]IntegrityIssue, error) {
	var issues []IntegrityIssue
	for _, kind := range domain.Kinds() {
		for _, field := range Schema[kind].Forward {
			found, err := s.checkOne(kind, field)
			if err != nil {
				return nil, err
			}
			issues = append(issues, found...)
		}
	}
	return issues, nil
}

func (s *Set) checkOne(kind domain.Kind, field ForwardField) ([]IntegrityIssue, error) {
	forward, err := s.tx.Table(ForwardTable(kind, field.Name))
	if err != nil {
		return nil, wrapStorage(err)
	}
	target, err := s.tx.Table(string(field.Target))
	if err != nil {
		return nil, wrapStorage(err)
	}

	type pair struct{ left, right domain.EntityID }
	forwardPairs := make(map[pair]bool)

	var issues []IntegrityIssue
	err = forward.Scan(nil, 0, func(key, value []byte) error {
		leftRaw, err := codec.DecodeID(key)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrCodec, err)
		}
		left := domain.EntityID(leftRaw)
		rights, err := decodeIDList(value)
		if err != nil {
			return err
		}
		for _, right := range rights {
			forwardPairs[pair{left, right}] = true
			ok, err := target.Has(codec.EncodeID(uint64(right)))
			if err != nil {
				return wrapStorage(err)
			}
			if !ok {
				issues = append(issues, IntegrityIssue{
					Kind:    kind,
					Field:   field.Name,
					Message: fmt.Sprintf("%s %d references missing %s %d", kind, left, field.Target, right),
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapStorage(err)
	}

	backward, err := s.tx.Table(BackwardTable(kind, field.Name))
	if err != nil {
		return nil, wrapStorage(err)
	}
	backwardPairs := make(map[pair]bool)
	err = backward.Scan(nil, 0, func(key, value []byte) error {
		rightRaw, err := codec.DecodeID(key)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrCodec, err)
		}
		right := domain.EntityID(rightRaw)
		lefts, err := decodeIDList(value)
		if err != nil {
			return err
		}
		for _, left := range lefts {
			backwardPairs[pair{left, right}] = true
		}
		return nil
	})
	if err != nil {
		return nil, wrapStorage(err)
	}

	for p := range forwardPairs {
		if !backwardPairs[p] {
			issues = append(issues, IntegrityIssue{
				Kind:    kind,
				Field:   field.Name,
				Message: fmt.Sprintf("backward junction misses %s %d -> %s %d", kind, p.left, field.Target, p.right),
			})
		}
	}
	for p := range backwardPairs {
		if !forwardPairs[p] {
			issues = append(issues, IntegrityIssue{
				Kind:    kind,
				Field:   field.Name,
				Message: fmt.Sprintf("backward junction has stale %s %d -> %s %d", kind, p.left, field.Target, p.right),
			})
		}
	}
	return issues, nil
}
