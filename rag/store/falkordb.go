package store

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/smallnest/kgqa/rag"
)

// DefaultGraphName is used when the connection string names no graph.
const DefaultGraphName = "kg"

// Cypher issued by the pipeline. Names are always passed as parameters.
const (
	allEntitiesQuery = `MATCH (n) WHERE n.name IS NOT NULL RETURN n.name AS name, ID(n) AS id, n.description AS description`

	relationshipTypesQuery = `MATCH ()-[r]->() RETURN DISTINCT coalesce(r.type, type(r)) AS type`

	neighborsQuery = `MATCH (n)-[r]-(m) WHERE toLower(n.name) = toLower($name) ` +
		`RETURN n.name AS source, coalesce(r.type, type(r)) AS relationship_type, m.name AS target`

	findEntityQuery = `MATCH (n) WHERE toLower(n.name) = toLower($name) RETURN n.name AS name, n.description AS description`

	sampleRelationshipsQuery = `MATCH (n)-[r]->(m) ` +
		`RETURN n.name AS source, coalesce(r.type, type(r)) AS relationship_type, m.name AS target LIMIT %d`

	mergeTripletQuery = `MERGE (s:Entity {name: $subject}) MERGE (o:Entity {name: $object}) ` +
		`MERGE (s)-[r:RELATES {type: $predicate}]->(o)`

	nodeCountQuery         = `MATCH (n) RETURN count(n) AS node_count`
	relationshipCountQuery = `MATCH ()-[r]->() RETURN count(r) AS relationship_count`
	labelsQuery            = `MATCH (n) UNWIND labels(n) AS label RETURN DISTINCT label ORDER BY label`

	popularEntitiesQuery = `MATCH (n:Entity)-[r]-() RETURN n.name AS entity, count(r) AS connection_count ` +
		`ORDER BY connection_count DESC LIMIT %d`

	connectionsQuery = `MATCH path = (start)-[*1..%d]-(connected) ` +
		`WHERE toLower(start.name) = toLower($name) AND connected <> start ` +
		`RETURN connected.name AS connected_name, min(length(path)) AS path_length ` +
		`ORDER BY path_length, connected_name`

	clearQuery = `MATCH (n) DETACH DELETE n`
)

// FalkorDBGraph implements rag.KnowledgeGraph on FalkorDB.
type FalkorDBGraph struct {
	client    redis.UniversalClient
	graphName string
}

var _ rag.KnowledgeGraph = (*FalkorDBGraph)(nil)

// NewFalkorDBGraph connects using falkordb://[:password@]host:port/graph.
func NewFalkorDBGraph(connectionString string) (*FalkorDBGraph, error) {
	u, err := url.Parse(connectionString)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w", err)
	}
	if u.Scheme != "falkordb" {
		return nil, fmt.Errorf("invalid connection string: unsupported scheme %q", u.Scheme)
	}

	addr := u.Host
	if addr == "" {
		return nil, fmt.Errorf("invalid connection string: missing host")
	}

	opts := &redis.Options{Addr: addr}
	if u.User != nil {
		opts.Username = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			opts.Password = pw
		}
	}

	return NewFalkorDBGraphWithClient(redis.NewClient(opts), strings.TrimPrefix(u.Path, "/")), nil
}

// NewFalkorDBGraphWithClient uses an existing Redis client.
func NewFalkorDBGraphWithClient(client redis.UniversalClient, graphName string) *FalkorDBGraph {
	if graphName == "" {
		graphName = DefaultGraphName
	}
	return &FalkorDBGraph{
		client:    client,
		graphName: graphName,
	}
}

func (f *FalkorDBGraph) graph() Graph {
	return NewGraph(f.graphName, f.client)
}

func (f *FalkorDBGraph) records(ctx context.Context, q string, params map[string]any) ([]rag.Record, error) {
	g := f.graph()
	qr, err := g.Query(ctx, q, params)
	if err != nil {
		return nil, err
	}
	return qr.Records(), nil
}

// Entities returns every node with a name.
func (f *FalkorDBGraph) Entities(ctx context.Context) ([]rag.Entity, error) {
	recs, err := f.records(ctx, allEntitiesQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entities: %w", err)
	}

	entities := make([]rag.Entity, 0, len(recs))
	for _, rec := range recs {
		name := stringValue(rec["name"])
		if name == "" {
			continue
		}
		entities = append(entities, rag.Entity{
			Name:        name,
			ID:          stringValue(rec["id"]),
			Description: stringValue(rec["description"]),
		})
	}
	return entities, nil
}

// RelationshipTypes returns every distinct edge type.
func (f *FalkorDBGraph) RelationshipTypes(ctx context.Context) ([]rag.RelationshipType, error) {
	recs, err := f.records(ctx, relationshipTypesQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch relationship types: %w", err)
	}

	types := make([]rag.RelationshipType, 0, len(recs))
	for _, rec := range recs {
		if t := stringValue(rec["type"]); t != "" {
			types = append(types, rag.RelationshipType{Type: t})
		}
	}
	return types, nil
}

func (f *FalkorDBGraph) Neighbors(ctx context.Context, name string) ([]rag.Record, error) {
	return f.records(ctx, neighborsQuery, map[string]any{"name": name})
}

func (f *FalkorDBGraph) FindEntity(ctx context.Context, name string) ([]rag.Record, error) {
	return f.records(ctx, findEntityQuery, map[string]any{"name": name})
}

func (f *FalkorDBGraph) SampleRelationships(ctx context.Context, limit int) ([]rag.Record, error) {
	if limit <= 0 {
		return []rag.Record{}, nil
	}
	return f.records(ctx, fmt.Sprintf(sampleRelationshipsQuery, limit), nil)
}

// AddTriplets merges each complete triplet; blank fields are skipped. It
// returns how many triplets were written.
func (f *FalkorDBGraph) AddTriplets(ctx context.Context, triplets []rag.Triplet) (int, error) {
	g := f.graph()
	n := 0
	for _, t := range triplets {
		if !t.Valid() {
			continue
		}
		params := map[string]any{
			"subject":   strings.TrimSpace(t.Subject),
			"predicate": strings.TrimSpace(t.Predicate),
			"object":    strings.TrimSpace(t.Object),
		}
		if _, err := g.Query(ctx, mergeTripletQuery, params); err != nil {
			return n, fmt.Errorf("failed to merge triplet %d: %w", n, err)
		}
		n++
	}
	return n, nil
}

// Stats counts nodes and edges and lists node labels.
func (f *FalkorDBGraph) Stats(ctx context.Context) (*rag.GraphStats, error) {
	nodes, err := f.records(ctx, nodeCountQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count nodes: %w", err)
	}
	edges, err := f.records(ctx, relationshipCountQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count relationships: %w", err)
	}
	labels, err := f.records(ctx, labelsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}

	stats := &rag.GraphStats{Labels: []string{}}
	if len(nodes) > 0 {
		stats.NodeCount = int64Value(nodes[0]["node_count"])
	}
	if len(edges) > 0 {
		stats.RelationshipCount = int64Value(edges[0]["relationship_count"])
	}
	for _, rec := range labels {
		if l := stringValue(rec["label"]); l != "" {
			stats.Labels = append(stats.Labels, l)
		}
	}
	return stats, nil
}

// PopularEntities returns the most connected entities.
func (f *FalkorDBGraph) PopularEntities(ctx context.Context, limit int) ([]rag.EntityDegree, error) {
	if limit <= 0 {
		limit = 5
	}
	recs, err := f.records(ctx, fmt.Sprintf(popularEntitiesQuery, limit), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to rank entities: %w", err)
	}
	out := make([]rag.EntityDegree, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rag.EntityDegree{
			Name:        stringValue(rec["entity"]),
			Connections: int64Value(rec["connection_count"]),
		})
	}
	return out, nil
}

// Connections returns each node reachable from name within depth hops once,
// with its shortest distance.
func (f *FalkorDBGraph) Connections(ctx context.Context, name string, depth int) ([]rag.Record, error) {
	if depth < 1 {
		depth = 1
	}
	return f.records(ctx, fmt.Sprintf(connectionsQuery, depth), map[string]any{"name": name})
}

// Clear deletes every node and edge.
func (f *FalkorDBGraph) Clear(ctx context.Context) error {
	g := f.graph()
	_, err := g.Query(ctx, clearQuery, nil)
	return err
}

// Raw runs an arbitrary query and returns the full result set.
func (f *FalkorDBGraph) Raw(ctx context.Context, q string, params map[string]any) (QueryResult, error) {
	g := f.graph()
	return g.Query(ctx, q, params)
}

// Close closes the client
func (f *FalkorDBGraph) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func int64Value(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		return int64(x)
	case string:
		n, _ := strconv.ParseInt(x, 10, 64)
		return n
	default:
		return 0
	}
}
