package rag

import (
	"context"
	"strings"
)

// Entity is a named node of the knowledge graph. Name is the canonical key
// and is case-folded for matching.
type Entity struct {
	Name        string `json:"name"`
	ID          string `json:"id,omitempty"`
	Description string `json:"description,omitempty"`
}

// RelationshipType is a distinct edge type found in the graph.
type RelationshipType struct {
	Type string `json:"type"`
}

// Kind tells which lexicon an index entry or match belongs to.
type Kind string

const (
	KindEntity       Kind = "entity"
	KindRelationship Kind = "relationship"
	KindChunk        Kind = "chunk"
)

// Mention is a candidate phrase pulled out of a question.
type Mention struct {
	Text string `json:"text"`
}

// MentionTexts flattens mentions for logging and debug output.
func MentionTexts(mentions []Mention) []string {
	out := make([]string, len(mentions))
	for i, m := range mentions {
		out[i] = m.Text
	}
	return out
}

// Fixed confidences per resolution path. They are not similarity scores.
const (
	ConfidenceExact        = 1.0
	ConfidenceEmbedding    = 0.8
	ConfidenceQueryContext = 0.6
)

// QueryContextOrigin marks matches produced by the whole-question fallback.
const QueryContextOrigin = "query_context"

// MatchResult is a mention resolved to a canonical graph name.
type MatchResult struct {
	Original   string  `json:"original"`
	Matched    string  `json:"matched"`
	Kind       Kind    `json:"type"`
	Confidence float64 `json:"confidence"`
}

// Record is one row returned by the graph store, keyed by column name.
type Record map[string]any

// Tier names the fallback stage that produced a query outcome.
type Tier string

const (
	TierEntityRelationships   Tier = "entity_relationships"
	TierEntityNoRelationships Tier = "entity_no_relationships"
	TierAllRelationships      Tier = "all_relationships"
	TierNoData                Tier = "no_data"
	TierError                 Tier = "error"
)

// QueryOutcome is what the fallback executor hands to answer synthesis.
type QueryOutcome struct {
	Records []Record
	Tier    Tier
	// Entity is the matched name the traversal was centred on, if any.
	Entity string
	// Faults holds every store error swallowed on the way down the ladder.
	Faults []error
}

// Triplet is a (subject, predicate, object) fact, the unit of ingestion.
type Triplet struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// Valid reports whether every field is non-blank.
func (t Triplet) Valid() bool {
	return strings.TrimSpace(t.Subject) != "" &&
		strings.TrimSpace(t.Predicate) != "" &&
		strings.TrimSpace(t.Object) != ""
}

// GraphStats summarises the graph after ingestion.
type GraphStats struct {
	NodeCount         int64    `json:"node_count"`
	RelationshipCount int64    `json:"relationship_count"`
	Labels            []string `json:"node_labels"`
}

// EntityDegree is an entity with its number of incident edges.
type EntityDegree struct {
	Name        string `json:"entity"`
	Connections int64  `json:"connection_count"`
}

// Document is a unit of text for the semantic corpus.
type Document struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DocumentLoader loads documents from some source.
type DocumentLoader interface {
	Load(ctx context.Context) ([]Document, error)
}

// LLM is a single-turn, stateless text completion model.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder maps text to fixed-length vectors.
type Embedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	GetDimension() int
}

// KnowledgeGraph is the narrow contract the pipeline needs from a property
// graph whose nodes carry a name and whose edges carry a type.
type KnowledgeGraph interface {
	// Entities returns every node with a non-null name.
	Entities(ctx context.Context) ([]Entity, error)
	// RelationshipTypes returns every distinct edge type.
	RelationshipTypes(ctx context.Context) ([]RelationshipType, error)
	// Neighbors returns the 1-hop edges around the named node, matched
	// case-insensitively.
	Neighbors(ctx context.Context, name string) ([]Record, error)
	// FindEntity returns the named node, matched case-insensitively.
	FindEntity(ctx context.Context, name string) ([]Record, error)
	// SampleRelationships returns at most limit edges from anywhere.
	SampleRelationships(ctx context.Context, limit int) ([]Record, error)

	AddTriplets(ctx context.Context, triplets []Triplet) (int, error)
	Stats(ctx context.Context) (*GraphStats, error)
	PopularEntities(ctx context.Context, limit int) ([]EntityDegree, error)
	Connections(ctx context.Context, name string, depth int) ([]Record, error)
	Clear(ctx context.Context) error
	Close() error
}
