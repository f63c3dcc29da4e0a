package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/smallnest/kgqa/rag"
)

// NewKnowledgeGraph creates a new knowledge graph based on the database URL
func NewKnowledgeGraph(databaseURL string) (rag.KnowledgeGraph, error) {
	if strings.HasPrefix(databaseURL, "memory://") {
		return NewMemoryGraph(), nil
	}

	if strings.HasPrefix(databaseURL, "falkordb://") {
		return NewFalkorDBGraph(databaseURL)
	}

	return nil, fmt.Errorf("only memory:// and falkordb:// URLs are currently supported")
}

// Operation names passed to MemoryGraph.Fail.
const (
	OpEntities            = "entities"
	OpRelationshipTypes   = "relationship_types"
	OpNeighbors           = "neighbors"
	OpFindEntity          = "find_entity"
	OpSampleRelationships = "sample_relationships"
)

type memoryNode struct {
	name        string
	id          string
	description string
}

type memoryEdge struct {
	source string // lower-cased keys
	typ    string
	target string
}

// MemoryGraph implements an in-memory knowledge graph. Reads match names
// case-insensitively, as FalkorDBGraph does. Ingestion differs: MemoryGraph
// folds "Ada" and "ada" into one node where FalkorDB's MERGE keeps two.
type MemoryGraph struct {
	// Fail, when set, is consulted before every read and can inject a store
	// fault for the named operation.
	Fail func(op string) error

	mu     sync.RWMutex
	nodes  map[string]*memoryNode
	order  []string
	edges  []memoryEdge
	nextID int
}

var _ rag.KnowledgeGraph = (*MemoryGraph)(nil)

// NewMemoryGraph creates an empty graph.
func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{
		nodes: make(map[string]*memoryNode),
	}
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (m *MemoryGraph) fail(op string) error {
	if m.Fail == nil {
		return nil
	}
	return m.Fail(op)
}

// node returns the node for name, creating it when missing. Callers hold mu.
func (m *MemoryGraph) node(name string) *memoryNode {
	k := key(name)
	if n, ok := m.nodes[k]; ok {
		return n
	}
	n := &memoryNode{name: strings.TrimSpace(name), id: fmt.Sprint(m.nextID)}
	m.nextID++
	m.nodes[k] = n
	m.order = append(m.order, k)
	return n
}

// AddEntity adds or updates a node. A blank description keeps the old one.
func (m *MemoryGraph) AddEntity(name, description string) {
	if key(name) == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.node(name)
	if description != "" {
		n.description = description
	}
}

// AddTriplets merges nodes and edges; an identical edge is stored once.
func (m *MemoryGraph) AddTriplets(ctx context.Context, triplets []rag.Triplet) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, t := range triplets {
		if !t.Valid() {
			continue
		}
		s := m.node(t.Subject)
		o := m.node(t.Object)
		e := memoryEdge{source: key(s.name), typ: strings.TrimSpace(t.Predicate), target: key(o.name)}
		if !m.hasEdge(e) {
			m.edges = append(m.edges, e)
		}
		n++
	}
	return n, nil
}

func (m *MemoryGraph) hasEdge(e memoryEdge) bool {
	for _, x := range m.edges {
		if x == e {
			return true
		}
	}
	return false
}

func (m *MemoryGraph) Entities(ctx context.Context) ([]rag.Entity, error) {
	if err := m.fail(OpEntities); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]rag.Entity, 0, len(m.order))
	for _, k := range m.order {
		n := m.nodes[k]
		out = append(out, rag.Entity{Name: n.name, ID: n.id, Description: n.description})
	}
	return out, nil
}

func (m *MemoryGraph) RelationshipTypes(ctx context.Context) ([]rag.RelationshipType, error) {
	if err := m.fail(OpRelationshipTypes); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	out := make([]rag.RelationshipType, 0)
	for _, e := range m.edges {
		if seen[e.typ] {
			continue
		}
		seen[e.typ] = true
		out = append(out, rag.RelationshipType{Type: e.typ})
	}
	return out, nil
}

// Neighbors returns every edge touching name, in either direction, with the
// named node always reported as source.
func (m *MemoryGraph) Neighbors(ctx context.Context, name string) ([]rag.Record, error) {
	if err := m.fail(OpNeighbors); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	k := key(name)
	n, ok := m.nodes[k]
	if !ok {
		return []rag.Record{}, nil
	}

	out := make([]rag.Record, 0)
	for _, e := range m.edges {
		var other string
		switch k {
		case e.source:
			other = e.target
		case e.target:
			other = e.source
		default:
			continue
		}
		out = append(out, rag.Record{
			"source":            n.name,
			"relationship_type": e.typ,
			"target":            m.nodes[other].name,
		})
	}
	return out, nil
}

func (m *MemoryGraph) FindEntity(ctx context.Context, name string) ([]rag.Record, error) {
	if err := m.fail(OpFindEntity); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.nodes[key(name)]
	if !ok {
		return []rag.Record{}, nil
	}
	var desc any
	if n.description != "" {
		desc = n.description
	}
	return []rag.Record{{"name": n.name, "description": desc}}, nil
}

func (m *MemoryGraph) SampleRelationships(ctx context.Context, limit int) ([]rag.Record, error) {
	if err := m.fail(OpSampleRelationships); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]rag.Record, 0)
	for _, e := range m.edges {
		if len(out) >= limit {
			break
		}
		out = append(out, rag.Record{
			"source":            m.nodes[e.source].name,
			"relationship_type": e.typ,
			"target":            m.nodes[e.target].name,
		})
	}
	return out, nil
}

func (m *MemoryGraph) Stats(ctx context.Context) (*rag.GraphStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &rag.GraphStats{
		NodeCount:         int64(len(m.nodes)),
		RelationshipCount: int64(len(m.edges)),
		Labels:            []string{},
	}
	if len(m.nodes) > 0 {
		stats.Labels = append(stats.Labels, "Entity")
	}
	return stats, nil
}

func (m *MemoryGraph) PopularEntities(ctx context.Context, limit int) ([]rag.EntityDegree, error) {
	if limit <= 0 {
		limit = 5
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	degree := make(map[string]int64)
	for _, e := range m.edges {
		degree[e.source]++
		degree[e.target]++
	}

	out := make([]rag.EntityDegree, 0, len(degree))
	for _, k := range m.order {
		if d := degree[k]; d > 0 {
			out = append(out, rag.EntityDegree{Name: m.nodes[k].name, Connections: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Connections > out[j].Connections
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Connections walks breadth-first up to depth hops and reports each reached
// node once with its shortest distance.
func (m *MemoryGraph) Connections(ctx context.Context, name string, depth int) ([]rag.Record, error) {
	if depth < 1 {
		depth = 1
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := key(name)
	out := make([]rag.Record, 0)
	if _, ok := m.nodes[start]; !ok {
		return out, nil
	}

	visited := map[string]bool{start: true}
	frontier := []string{start}
	for d := 1; d <= depth && len(frontier) > 0; d++ {
		var next []string
		for _, cur := range frontier {
			for _, e := range m.edges {
				var other string
				switch cur {
				case e.source:
					other = e.target
				case e.target:
					other = e.source
				default:
					continue
				}
				if visited[other] {
					continue
				}
				visited[other] = true
				next = append(next, other)
				out = append(out, rag.Record{
					"connected_name": m.nodes[other].name,
					"path_length":    int64(d),
				})
			}
		}
		frontier = next
	}
	return out, nil
}

func (m *MemoryGraph) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes = make(map[string]*memoryNode)
	m.order = nil
	m.edges = nil
	return nil
}

func (m *MemoryGraph) Close() error {
	return nil
}
