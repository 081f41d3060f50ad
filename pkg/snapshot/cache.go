package snapshot

import "github.com/jacquetc/qleany/pkg/domain"

// scopeKey identifies the materialized scope of a file. Nil slots and zero
// wildcards are distinct, so both participate in the key.
type scopeKey struct {
	feature int64
	entity  int64
	useCase int64
}

func slot(id *domain.EntityID) int64 {
	if id == nil {
		return -1
	}
	return int64(*id)
}

func keyOf(file *domain.File) scopeKey {
	return scopeKey{
		feature: slot(file.Feature),
		entity:  slot(file.Entity),
		useCase: slot(file.UseCase),
	}
}

// Cache holds snapshots keyed by scope triple. One cache lives per
// generation run; it is not safe for concurrent use and never evicts.
type Cache struct {
	entries map[scopeKey]*Snapshot
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[scopeKey]*Snapshot)}
}

// Get returns a clone of the cached snapshot for the file's scope with the
// File slot rebound to this file, or false on miss.
func (c *Cache) Get(file *domain.File) (*Snapshot, bool) {
	cached, ok := c.entries[keyOf(file)]
	if !ok {
		return nil, false
	}
	clone := cached.Clone()
	clone.File = FileVM{
		ID:           file.ID,
		Name:         file.Name,
		RelativePath: file.RelativePath,
		Group:        file.Group,
		TemplateName: file.TemplateName,
	}
	return clone, true
}

// Put stores a snapshot under the file's scope key.
func (c *Cache) Put(file *domain.File, snap *Snapshot) {
	c.entries[keyOf(file)] = snap
}

// Len returns the number of cached scopes.
func (c *Cache) Len() int { return len(c.entries) }
