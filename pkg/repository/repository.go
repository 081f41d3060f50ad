package repository

import (
	"errors"
	"fmt"

	"github.com/jacquetc/qleany/datastore"
	"github.com/jacquetc/qleany/pkg/codec"
	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/events"
)

// RelationshipEntry pairs a left-side id with its right-side list, as read
// from or written to one forward junction row.
type RelationshipEntry struct {
	LeftID   domain.EntityID
	RightIDs []domain.EntityID
}

// Repo is the repository for one entity kind. Write-capable repositories are
// bound to a writable transaction; read-only ones refuse every mutation. All
// operations run inside the bound transaction, so a failed use case rolls
// everything back at once.
type Repo[T domain.Persistable] struct {
	desc     *Descriptor
	set      *Set
	readOnly bool
	newFn    func() T
}

func newRepo[T domain.Persistable](set *Set, kind domain.Kind, newFn func() T) *Repo[T] {
	return &Repo[T]{
		desc:     Schema[kind],
		set:      set,
		readOnly: set.readOnly,
		newFn:    newFn,
	}
}

// Kind returns the entity kind this repository manages.
func (r *Repo[T]) Kind() domain.Kind {
	return r.desc.Kind
}

// wrapStorage maps a datastore failure into the error taxonomy.
func wrapStorage(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, datastore.ErrNotFound) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%w: %v", domain.ErrStorage, err)
}

// encodeIDList renders a junction value.
func encodeIDList(ids []domain.EntityID) []byte {
	e := codec.NewEncoder()
	e.Uint64(uint64(len(ids)))
	for _, id := range ids {
		e.Uint64(uint64(id))
	}
	return e.Bytes()
}

// decodeIDList parses a junction value.
func decodeIDList(b []byte) ([]domain.EntityID, error) {
	d := codec.NewDecoder(b)
	n := d.Uint64()
	ids := make([]domain.EntityID, 0, n)
	for i := uint64(0); i < n; i++ {
		ids = append(ids, domain.EntityID(d.Uint64()))
	}
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCodec, err)
	}
	return ids, nil
}

func (r *Repo[T]) table(name string) (datastore.Table, error) {
	t, err := r.set.tx.Table(name)
	if err != nil {
		return nil, wrapStorage(err)
	}
	return t, nil
}

func (r *Repo[T]) primary() (datastore.Table, error) {
	return r.table(string(r.desc.Kind))
}

// guardWrite rejects mutations on read-only repositories.
func (r *Repo[T]) guardWrite() error {
	if r.readOnly {
		return fmt.Errorf("%w: %s repository is read-only", domain.ErrStorage, r.desc.Kind)
	}
	return nil
}

// allocateID advances the per-kind counter until it lands on a free id. The
// counter only moves during allocation, so explicit-id creates never advance
// it.
func (r *Repo[T]) allocateID() (domain.EntityID, error) {
	counters, err := r.table(CounterTable)
	if err != nil {
		return 0, err
	}
	primary, err := r.primary()
	if err != nil {
		return 0, err
	}

	key := []byte(r.desc.Kind)
	var current uint64
	raw, err := counters.Get(key)
	switch {
	case err == nil:
		current, err = codec.DecodeID(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: counter for %s: %v", domain.ErrCodec, r.desc.Kind, err)
		}
	case errors.Is(err, datastore.ErrNotFound):
		current = 0
	default:
		return 0, wrapStorage(err)
	}

	next := current + 1
	for {
		exists, err := primary.Has(codec.EncodeID(next))
		if err != nil {
			return 0, wrapStorage(err)
		}
		if !exists {
			break
		}
		next++
	}
	if err := counters.Put(key, codec.EncodeID(next)); err != nil {
		return 0, wrapStorage(err)
	}
	return domain.EntityID(next), nil
}

// Exists reports whether a row exists for id.
func (r *Repo[T]) Exists(id domain.EntityID) (bool, error) {
	primary, err := r.primary()
	if err != nil {
		return false, err
	}
	ok, err := primary.Has(codec.EncodeID(uint64(id)))
	if err != nil {
		return false, wrapStorage(err)
	}
	return ok, nil
}

// Get loads a row and hydrates its relationship fields from the forward
// junctions.
func (r *Repo[T]) Get(id domain.EntityID) (T, error) {
	var zero T
	primary, err := r.primary()
	if err != nil {
		return zero, err
	}
	raw, err := primary.Get(codec.EncodeID(uint64(id)))
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return zero, fmt.Errorf("%w: %s %d", domain.ErrNotFound, r.desc.Kind, id)
		}
		return zero, wrapStorage(err)
	}
	return r.decodeRow(id, raw)
}

func (r *Repo[T]) decodeRow(id domain.EntityID, raw []byte) (T, error) {
	var zero T
	ent := r.newFn()
	ent.SetEntityID(id)
	if err := ent.DecodeFields(codec.NewDecoder(raw)); err != nil {
		return zero, fmt.Errorf("%w: %s %d: %v", domain.ErrCodec, r.desc.Kind, id, err)
	}
	for _, field := range r.desc.Forward {
		rights, err := r.GetRelationship(id, field.Name)
		if err != nil {
			return zero, err
		}
		ent.SetForwardRef(field.Name, rights)
	}
	return ent, nil
}

// GetMulti loads the given ids in one logical read. Every id must resolve;
// missing ids fail the whole read with NotFound.
func (r *Repo[T]) GetMulti(ids []domain.EntityID) ([]T, error) {
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		ent, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, ent)
	}
	return out, nil
}

// Page reads up to limit rows in ascending id order, starting after the
// given id (zero starts from the beginning). The limit is mandatory: there
// is no implicit row cap.
func (r *Repo[T]) Page(after domain.EntityID, limit int) ([]T, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: page limit must be positive", domain.ErrValidationFailed)
	}
	primary, err := r.primary()
	if err != nil {
		return nil, err
	}

	var start []byte
	if after > 0 {
		start = codec.EncodeID(uint64(after) + 1)
	}

	var out []T
	err = primary.Scan(start, limit, func(key, value []byte) error {
		rawID, err := codec.DecodeID(key)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrCodec, err)
		}
		ent, err := r.decodeRow(domain.EntityID(rawID), value)
		if err != nil {
			return err
		}
		out = append(out, ent)
		return nil
	})
	if err != nil {
		return nil, wrapStorage(err)
	}
	return out, nil
}

// Create persists a new entity. An unassigned id allocates the next counter
// value; an explicit id that already exists fails with IdInUse. The primary
// row is written first, then every forward junction derived from the value.
func (r *Repo[T]) Create(ent T) (domain.EntityID, error) {
	if err := r.guardWrite(); err != nil {
		return 0, err
	}

	id := ent.EntityID()
	if id == domain.Unassigned {
		allocated, err := r.allocateID()
		if err != nil {
			return 0, err
		}
		id = allocated
	} else {
		exists, err := r.Exists(id)
		if err != nil {
			return 0, err
		}
		if exists {
			return 0, fmt.Errorf("%w: %s %d", domain.ErrIDInUse, r.desc.Kind, id)
		}
	}

	refs := ent.ForwardRefs()
	for _, field := range r.desc.Forward {
		rights := refs[field.Name]
		if err := r.verifyRefs(field, rights); err != nil {
			return 0, err
		}
		if field.Unique {
			if err := r.checkUnique(field, id, rights); err != nil {
				return 0, err
			}
		}
	}

	primary, err := r.primary()
	if err != nil {
		return 0, err
	}
	enc := codec.NewEncoder()
	ent.EncodeFields(enc)
	if err := primary.Put(codec.EncodeID(uint64(id)), enc.Bytes()); err != nil {
		return 0, wrapStorage(err)
	}

	for _, field := range r.desc.Forward {
		if err := r.writeJunction(field, id, refs[field.Name], nil); err != nil {
			return 0, err
		}
	}

	ent.SetEntityID(id)
	r.queueEvent(events.Created, id)
	return id, nil
}

// Update overwrites a row and rewrites every forward junction, clearing 0..1
// fields by emptying their lists.
func (r *Repo[T]) Update(ent T) error {
	if err := r.guardWrite(); err != nil {
		return err
	}

	id := ent.EntityID()
	old, err := r.Get(id)
	if err != nil {
		return err
	}
	oldRefs := old.ForwardRefs()

	refs := ent.ForwardRefs()
	for _, field := range r.desc.Forward {
		rights := refs[field.Name]
		if err := r.verifyRefs(field, rights); err != nil {
			return err
		}
		if field.Unique {
			if err := r.checkUnique(field, id, rights); err != nil {
				return err
			}
		}
	}

	primary, err := r.primary()
	if err != nil {
		return err
	}
	enc := codec.NewEncoder()
	ent.EncodeFields(enc)
	if err := primary.Put(codec.EncodeID(uint64(id)), enc.Bytes()); err != nil {
		return wrapStorage(err)
	}

	for _, field := range r.desc.Forward {
		if err := r.writeJunction(field, id, refs[field.Name], oldRefs[field.Name]); err != nil {
			return err
		}
	}

	r.queueEvent(events.Updated, id)
	return nil
}

// Delete removes a row, cascades into strong forward edges, scrubs every
// backward junction referencing the id, and removes the forward junctions
// rooted at it. Everything happens inside the bound transaction, so partial
// cascade is never observable.
func (r *Repo[T]) Delete(id domain.EntityID) error {
	if err := r.guardWrite(); err != nil {
		return err
	}
	return r.set.deleteCascade(r.desc.Kind, id, false)
}

// deleteByID implements the cascade entry point used by Set. Tolerant of
// rows already removed earlier in the same cascade.
func (r *Repo[T]) deleteByID(id domain.EntityID, tolerateMissing bool) error {
	primary, err := r.primary()
	if err != nil {
		return err
	}
	exists, err := primary.Has(codec.EncodeID(uint64(id)))
	if err != nil {
		return wrapStorage(err)
	}
	if !exists {
		if tolerateMissing {
			return nil
		}
		return fmt.Errorf("%w: %s %d", domain.ErrNotFound, r.desc.Kind, id)
	}

	// Strong forward edges cascade; weak ones only scrub the mirror state.
	for _, field := range r.desc.Forward {
		rights, err := r.GetRelationship(id, field.Name)
		if err != nil {
			return err
		}
		if field.Strength == domain.Strong {
			for _, right := range rights {
				if err := r.set.deleteCascade(field.Target, right, true); err != nil {
					return err
				}
			}
		} else {
			for _, right := range rights {
				if err := r.removeFromBackward(field, right, id); err != nil {
					return err
				}
			}
		}
		forward, err := r.table(ForwardTable(r.desc.Kind, field.Name))
		if err != nil {
			return err
		}
		if err := forward.Delete(codec.EncodeID(uint64(id))); err != nil {
			return wrapStorage(err)
		}
	}

	// Scrub every forward junction elsewhere that references this id.
	for _, edge := range backwardIndex[r.desc.Kind] {
		if err := r.set.scrubReferences(edge, id); err != nil {
			return err
		}
	}

	if err := primary.Delete(codec.EncodeID(uint64(id))); err != nil {
		return wrapStorage(err)
	}
	r.queueEvent(events.Removed, id)
	return nil
}

// GetRelationship returns the right-side ids of one forward junction row.
func (r *Repo[T]) GetRelationship(id domain.EntityID, field string) ([]domain.EntityID, error) {
	if r.desc.Field(field) == nil {
		return nil, fmt.Errorf("%w: %s has no relationship field %q", domain.ErrValidationFailed, r.desc.Kind, field)
	}
	forward, err := r.table(ForwardTable(r.desc.Kind, field))
	if err != nil {
		return nil, err
	}
	raw, err := forward.Get(codec.EncodeID(uint64(id)))
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStorage(err)
	}
	return decodeIDList(raw)
}

// GetRelationshipsFromRightIDs scans one forward junction and returns every
// row whose list contains any of the given right ids.
func (r *Repo[T]) GetRelationshipsFromRightIDs(field string, rightIDs []domain.EntityID) ([]RelationshipEntry, error) {
	if r.desc.Field(field) == nil {
		return nil, fmt.Errorf("%w: %s has no relationship field %q", domain.ErrValidationFailed, r.desc.Kind, field)
	}
	wanted := make(map[domain.EntityID]bool, len(rightIDs))
	for _, id := range rightIDs {
		wanted[id] = true
	}

	forward, err := r.table(ForwardTable(r.desc.Kind, field))
	if err != nil {
		return nil, err
	}

	var out []RelationshipEntry
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
			if wanted[right] {
				out = append(out, RelationshipEntry{LeftID: domain.EntityID(leftRaw), RightIDs: rights})
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapStorage(err)
	}
	return out, nil
}

// SetRelationship replaces the right-side list of one forward junction row.
func (r *Repo[T]) SetRelationship(id domain.EntityID, field string, rightIDs []domain.EntityID) error {
	if err := r.guardWrite(); err != nil {
		return err
	}
	f := r.desc.Field(field)
	if f == nil {
		return fmt.Errorf("%w: %s has no relationship field %q", domain.ErrValidationFailed, r.desc.Kind, field)
	}
	exists, err := r.Exists(id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s %d", domain.ErrNotFound, r.desc.Kind, id)
	}
	if err := r.verifyRefs(*f, rightIDs); err != nil {
		return err
	}
	if f.Unique {
		if err := r.checkUnique(*f, id, rightIDs); err != nil {
			return err
		}
	}

	prev, err := r.GetRelationship(id, field)
	if err != nil {
		return err
	}
	if err := r.writeJunction(*f, id, rightIDs, prev); err != nil {
		return err
	}
	r.queueEvent(events.Updated, id)
	return nil
}

// SetRelationshipMulti applies SetRelationship to a batch of rows.
func (r *Repo[T]) SetRelationshipMulti(field string, entries []RelationshipEntry) error {
	for _, entry := range entries {
		if err := r.SetRelationship(entry.LeftID, field, entry.RightIDs); err != nil {
			return err
		}
	}
	return nil
}

// DeleteAllRelationshipsWith removes any occurrence of the given right ids
// from every row of one forward junction, without deleting the left rows.
func (r *Repo[T]) DeleteAllRelationshipsWith(field string, rightIDs []domain.EntityID) error {
	if err := r.guardWrite(); err != nil {
		return err
	}
	f := r.desc.Field(field)
	if f == nil {
		return fmt.Errorf("%w: %s has no relationship field %q", domain.ErrValidationFailed, r.desc.Kind, field)
	}

	entries, err := r.GetRelationshipsFromRightIDs(field, rightIDs)
	if err != nil {
		return err
	}
	drop := make(map[domain.EntityID]bool, len(rightIDs))
	for _, id := range rightIDs {
		drop[id] = true
	}

	var affected []domain.EntityID
	for _, entry := range entries {
		kept := make([]domain.EntityID, 0, len(entry.RightIDs))
		for _, right := range entry.RightIDs {
			if !drop[right] {
				kept = append(kept, right)
			}
		}
		if err := r.writeJunction(*f, entry.LeftID, kept, entry.RightIDs); err != nil {
			return err
		}
		affected = append(affected, entry.LeftID)
	}
	if len(affected) > 0 {
		r.queueEvent(events.Updated, affected...)
	}
	return nil
}

// verifyRefs checks that every referenced id resolves in the target table.
func (r *Repo[T]) verifyRefs(field ForwardField, rights []domain.EntityID) error {
	if len(rights) == 0 {
		return nil
	}
	target, err := r.table(string(field.Target))
	if err != nil {
		return err
	}
	for _, right := range rights {
		if right == 0 {
			return fmt.Errorf("%w: %s.%s references the zero id", domain.ErrMissingRequiredReference, r.desc.Kind, field.Name)
		}
		ok, err := target.Has(codec.EncodeID(uint64(right)))
		if err != nil {
			return wrapStorage(err)
		}
		if !ok {
			return fmt.Errorf("%w: %s.%s -> %s %d", domain.ErrMissingRequiredReference, r.desc.Kind, field.Name, field.Target, right)
		}
	}
	return nil
}

// checkUnique scans the forward junction of a cross-row one-to-one field and
// fails when another left row already references any of the given rights.
func (r *Repo[T]) checkUnique(field ForwardField, leftID domain.EntityID, rights []domain.EntityID) error {
	if len(rights) == 0 {
		return nil
	}
	wanted := make(map[domain.EntityID]bool, len(rights))
	for _, id := range rights {
		wanted[id] = true
	}

	forward, err := r.table(ForwardTable(r.desc.Kind, field.Name))
	if err != nil {
		return err
	}
	err = forward.Scan(nil, 0, func(key, value []byte) error {
		otherRaw, err := codec.DecodeID(key)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrCodec, err)
		}
		if domain.EntityID(otherRaw) == leftID {
			return nil
		}
		existing, err := decodeIDList(value)
		if err != nil {
			return err
		}
		for _, right := range existing {
			if wanted[right] {
				return fmt.Errorf("%w: %s.%s: %s %d already referenced by %s %d",
					domain.ErrUniquenessViolation, r.desc.Kind, field.Name, field.Target, right, r.desc.Kind, otherRaw)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrUniquenessViolation) || errors.Is(err, domain.ErrCodec) {
			return err
		}
		return wrapStorage(err)
	}
	return nil
}

// writeJunction rewrites one forward junction row and keeps the mirror
// backward junction in sync with the delta between prev and next.
func (r *Repo[T]) writeJunction(field ForwardField, leftID domain.EntityID, next, prev []domain.EntityID) error {
	forward, err := r.table(ForwardTable(r.desc.Kind, field.Name))
	if err != nil {
		return err
	}

	key := codec.EncodeID(uint64(leftID))
	if len(next) == 0 {
		if err := forward.Delete(key); err != nil {
			return wrapStorage(err)
		}
	} else {
		if err := forward.Put(key, encodeIDList(next)); err != nil {
			return wrapStorage(err)
		}
	}

	inNext := make(map[domain.EntityID]bool, len(next))
	for _, id := range next {
		inNext[id] = true
	}
	inPrev := make(map[domain.EntityID]bool, len(prev))
	for _, id := range prev {
		inPrev[id] = true
	}

	for _, right := range prev {
		if !inNext[right] {
			if err := r.removeFromBackward(field, right, leftID); err != nil {
				return err
			}
		}
	}
	for _, right := range next {
		if !inPrev[right] {
			if err := r.addToBackward(field, right, leftID); err != nil {
				return err
			}
		}
	}
	return nil
}

// addToBackward appends leftID to the backward junction row of right.
func (r *Repo[T]) addToBackward(field ForwardField, right, leftID domain.EntityID) error {
	backward, err := r.table(BackwardTable(r.desc.Kind, field.Name))
	if err != nil {
		return err
	}
	key := codec.EncodeID(uint64(right))

	var lefts []domain.EntityID
	raw, err := backward.Get(key)
	if err == nil {
		lefts, err = decodeIDList(raw)
		if err != nil {
			return err
		}
	} else if !errors.Is(err, datastore.ErrNotFound) {
		return wrapStorage(err)
	}

	for _, existing := range lefts {
		if existing == leftID {
			return nil
		}
	}
	lefts = append(lefts, leftID)
	if err := backward.Put(key, encodeIDList(lefts)); err != nil {
		return wrapStorage(err)
	}
	return nil
}

// removeFromBackward removes leftID from the backward junction row of right.
func (r *Repo[T]) removeFromBackward(field ForwardField, right, leftID domain.EntityID) error {
	backward, err := r.table(BackwardTable(r.desc.Kind, field.Name))
	if err != nil {
		return err
	}
	key := codec.EncodeID(uint64(right))

	raw, err := backward.Get(key)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return wrapStorage(err)
	}
	lefts, err := decodeIDList(raw)
	if err != nil {
		return err
	}

	kept := make([]domain.EntityID, 0, len(lefts))
	for _, existing := range lefts {
		if existing != leftID {
			kept = append(kept, existing)
		}
	}
	if len(kept) == 0 {
		if err := backward.Delete(key); err != nil {
			return wrapStorage(err)
		}
		return nil
	}
	if err := backward.Put(key, encodeIDList(kept)); err != nil {
		return wrapStorage(err)
	}
	return nil
}

// queueEvent defers a post-commit notification on the unit of work.
func (r *Repo[T]) queueEvent(tag events.Tag, ids ...domain.EntityID) {
	if r.set.publisher == nil {
		return
	}
	r.set.publisher.Queue(events.Event{
		Origin: events.Origin{Subsystem: events.SubsystemEntities, Kind: r.desc.Kind, Tag: tag},
		IDs:    ids,
	})
}
