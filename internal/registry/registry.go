// Package registry is the entity registry: a book-scoped reverse index from
// GUID to entity.
//
// The registry never owns entities. Ownership lives in the transaction and
// split graph; the registry only holds type-tagged lookup handles and must
// be kept consistent by its callers (store on creation or GUID change,
// remove on destruction).
package registry

import (
	"fmt"
	"sync"

	"github.com/roach88/splitledger/internal/guid"
)

// Tag names an entity type.
type Tag string

const (
	TagTransaction Tag = "Trans"
	TagSplit       Tag = "Split"
)

type entry struct {
	entity any
	tag    Tag
}

// Registry maps GUIDs to entities.
//
// Thread-safety: Registry is safe for concurrent use; the entities it
// points at are not.
type Registry struct {
	mu      sync.RWMutex
	entries map[guid.GUID]entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[guid.GUID]entry)}
}

// Store records entity under id, replacing any previous entry.
// The null GUID is rejected.
func (r *Registry) Store(entity any, id guid.GUID, tag Tag) error {
	if id.IsNull() {
		return fmt.Errorf("registry: store %s with null guid", tag)
	}
	if entity == nil {
		return fmt.Errorf("registry: store nil %s %s", tag, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = entry{entity: entity, tag: tag}
	return nil
}

// Lookup returns the entity registered under id.
func (r *Registry) Lookup(id guid.GUID) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.entity, true
}

// LookupTag returns the entity registered under id only if its tag matches.
func (r *Registry) LookupTag(id guid.GUID, tag Tag) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok || e.tag != tag {
		return nil, false
	}
	return e.entity, true
}

// TagOf returns the type tag registered under id.
func (r *Registry) TagOf(id guid.GUID) (Tag, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e.tag, ok
}

// Remove drops id. Removing an unknown id is a no-op.
func (r *Registry) Remove(id guid.GUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Count returns the number of registered entities with the given tag.
func (r *Registry) Count(tag Tag) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.entries {
		if e.tag == tag {
			n++
		}
	}
	return n
}
