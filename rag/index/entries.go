package index

import (
	"fmt"
	"strings"

	"github.com/smallnest/kgqa/rag"
)

// GraphEntries builds one entry per entity and per relationship type, in that
// order. Entity text is "Entity: <name> <description>", relationship text is
// "Relationship: <type>".
func GraphEntries(entities []rag.Entity, relationshipTypes []rag.RelationshipType) []Entry {
	entries := make([]Entry, 0, len(entities)+len(relationshipTypes))
	for _, e := range entities {
		entries = append(entries, Entry{
			Text: strings.TrimSpace("Entity: " + e.Name + " " + e.Description),
			Kind: rag.KindEntity,
			Name: e.Name,
			ID:   e.ID,
		})
	}
	for _, r := range relationshipTypes {
		entries = append(entries, Entry{
			Text: "Relationship: " + r.Type,
			Kind: rag.KindRelationship,
			Name: r.Type,
		})
	}
	return entries
}

// ChunkEntries turns split documents into chunk entries. The chunk text is
// both the embedded text and the returned name. Metadata values are kept in
// their fmt.Sprint form; nil values are dropped.
func ChunkEntries(chunks []rag.Document) []Entry {
	entries := make([]Entry, 0, len(chunks))
	for _, c := range chunks {
		meta := make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			switch v := v.(type) {
			case nil:
			case string:
				meta[k] = v
			default:
				meta[k] = fmt.Sprint(v)
			}
		}
		entries = append(entries, Entry{
			Text:     c.Content,
			Kind:     rag.KindChunk,
			Name:     c.Content,
			ID:       c.ID,
			Metadata: meta,
		})
	}
	return entries
}
