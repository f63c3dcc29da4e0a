// Package lexicon provides the exact-match name index over graph entities
// and relationship types.
package lexicon

import (
	"strings"
	"sync/atomic"

	"github.com/smallnest/kgqa/rag"
)

type snapshot struct {
	entities      map[string]rag.Entity
	relationships map[string]rag.RelationshipType
}

var emptySnapshot = &snapshot{
	entities:      map[string]rag.Entity{},
	relationships: map[string]rag.RelationshipType{},
}

// Cache maps lower-cased names to canonical records. Rebuild swaps a fully
// built snapshot in one atomic store, so a reader observes either the old or
// the new mapping and never blocks.
type Cache struct {
	current atomic.Pointer[snapshot]
}

// New returns an empty cache.
func New() *Cache {
	c := &Cache{}
	c.current.Store(emptySnapshot)
	return c
}

// snapshot returns the current mapping; a zero Cache reads as empty.
func (c *Cache) snapshot() *snapshot {
	if s := c.current.Load(); s != nil {
		return s
	}
	return emptySnapshot
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Rebuild replaces the whole mapping. Entries with a blank key are skipped;
// on duplicate keys the first record wins.
func (c *Cache) Rebuild(entities []rag.Entity, relationshipTypes []rag.RelationshipType) {
	next := &snapshot{
		entities:      make(map[string]rag.Entity, len(entities)),
		relationships: make(map[string]rag.RelationshipType, len(relationshipTypes)),
	}
	for _, e := range entities {
		key := normalize(e.Name)
		if key == "" {
			continue
		}
		if _, dup := next.entities[key]; !dup {
			next.entities[key] = e
		}
	}
	for _, r := range relationshipTypes {
		key := normalize(r.Type)
		if key == "" {
			continue
		}
		if _, dup := next.relationships[key]; !dup {
			next.relationships[key] = r
		}
	}
	c.current.Store(next)
}

// LookupEntity performs an exact, case-insensitive lookup.
func (c *Cache) LookupEntity(name string) (rag.Entity, bool) {
	e, ok := c.snapshot().entities[normalize(name)]
	return e, ok
}

// LookupRelationship performs an exact, case-insensitive lookup.
func (c *Cache) LookupRelationship(relType string) (rag.RelationshipType, bool) {
	r, ok := c.snapshot().relationships[normalize(relType)]
	return r, ok
}

// Lookup dispatches on kind and returns the canonical name.
func (c *Cache) Lookup(kind rag.Kind, text string) (string, bool) {
	switch kind {
	case rag.KindEntity:
		if e, ok := c.LookupEntity(text); ok {
			return e.Name, true
		}
	case rag.KindRelationship:
		if r, ok := c.LookupRelationship(text); ok {
			return r.Type, true
		}
	}
	return "", false
}

// Len returns the number of entities and relationship types.
func (c *Cache) Len() (entities, relationships int) {
	s := c.snapshot()
	return len(s.entities), len(s.relationships)
}
