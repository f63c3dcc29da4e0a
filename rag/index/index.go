// Package index implements the persisted nearest-neighbour index used when
// an exact lexicon lookup misses.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/smallnest/kgqa/log"
	"github.com/smallnest/kgqa/rag"
	"github.com/smallnest/kgqa/store"
)

// ErrInvalidK is returned by Query when k is not positive.
var ErrInvalidK = errors.New("k must be positive")

// DefaultKey is the snapshot key of the graph index.
const DefaultKey = "graph-index"

// Entry is one indexed text with the canonical name it stands for.
type Entry struct {
	Text     string
	Kind     rag.Kind
	Name     string
	ID       string
	Metadata map[string]string
}

// Hit is a query result.
type Hit struct {
	Entry Entry
	Score float64
}

type snapshot struct {
	entries []Entry
	vectors [][]float32
	norms   []float64
	dim     int
}

func newSnapshot(entries []Entry, vectors [][]float32) *snapshot {
	s := &snapshot{
		entries: entries,
		vectors: vectors,
		norms:   make([]float64, len(vectors)),
	}
	for i, v := range vectors {
		s.norms[i] = norm(v)
		if s.dim == 0 {
			s.dim = len(v)
		}
	}
	return s
}

// Index is safe for concurrent queries while a rebuild runs; Build and Load
// swap the in-memory snapshot atomically once it is complete.
type Index struct {
	embedder  rag.Embedder
	store     store.SnapshotStore
	key       string
	batchSize int
	logger    log.Logger

	current atomic.Pointer[snapshot]
}

// Options configures an Index
type Options struct {
	Embedder  rag.Embedder
	Store     store.SnapshotStore
	Key       string // default DefaultKey
	BatchSize int    // texts per EmbedDocuments call, default 64
	Logger    log.Logger
}

// New creates an empty index.
func New(opts Options) (*Index, error) {
	if opts.Embedder == nil {
		return nil, errors.New("index: embedder is required")
	}
	if opts.Store == nil {
		return nil, errors.New("index: snapshot store is required")
	}
	key := opts.Key
	if key == "" {
		key = DefaultKey
	}
	if err := store.ValidateKey(key); err != nil {
		return nil, err
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 64
	}

	ix := &Index{
		embedder:  opts.Embedder,
		store:     opts.Store,
		key:       key,
		batchSize: batch,
		logger:    log.OrDefault(opts.Logger),
	}
	ix.current.Store(newSnapshot(nil, nil))
	return ix, nil
}

// Build embeds every entry, persists the encoded index, then swaps it in.
// An empty entry list clears the in-memory index and persists nothing.
func (ix *Index) Build(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		ix.logger.Warn("index %s: no entries to build from", ix.key)
		ix.current.Store(newSnapshot(nil, nil))
		return nil
	}

	owned := make([]Entry, len(entries))
	copy(owned, entries)

	vectors := make([][]float32, 0, len(owned))
	for start := 0; start < len(owned); start += ix.batchSize {
		end := min(start+ix.batchSize, len(owned))
		texts := make([]string, 0, end-start)
		for _, e := range owned[start:end] {
			texts = append(texts, e.Text)
		}
		batch, err := ix.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed entries %d-%d: %w", start, end, err)
		}
		if len(batch) != len(texts) {
			return fmt.Errorf("embedder returned %d vectors for %d texts", len(batch), len(texts))
		}
		vectors = append(vectors, batch...)
	}

	data, err := encode(owned, vectors)
	if err != nil {
		return err
	}
	if err := ix.store.Save(ctx, ix.key, data); err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}

	ix.current.Store(newSnapshot(owned, vectors))
	ix.logger.Info("index %s: built %d entries", ix.key, len(owned))
	return nil
}

// Load restores a persisted index without calling the embedder. It reports
// false when nothing has been persisted yet.
func (ix *Index) Load(ctx context.Context) (bool, error) {
	data, err := ix.store.Load(ctx, ix.key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read index: %w", err)
	}

	entries, vectors, err := decode(data)
	if err != nil {
		return false, err
	}

	ix.current.Store(newSnapshot(entries, vectors))
	ix.logger.Info("index %s: loaded %d entries", ix.key, len(entries))
	return true, nil
}

// Persisted reports whether a snapshot exists in the backing store.
func (ix *Index) Persisted(ctx context.Context) (bool, error) {
	return ix.store.Exists(ctx, ix.key)
}

// Query returns the k entries most similar to text, best first. Equal scores
// keep insertion order. An empty index or empty text yields no hits.
func (ix *Index) Query(ctx context.Context, text string, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	snap := ix.current.Load()
	if len(snap.entries) == 0 || text == "" {
		return []Hit{}, nil
	}

	q, err := ix.embedder.EmbedDocument(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	qn := norm(q)

	hits := make([]Hit, len(snap.entries))
	for i := range snap.entries {
		hits[i] = Hit{
			Entry: snap.entries[i],
			Score: cosine(q, qn, snap.vectors[i], snap.norms[i]),
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// QueryKind runs Query and keeps only hits of the given kind, in order.
func (ix *Index) QueryKind(ctx context.Context, text string, k int, kind rag.Kind) ([]Hit, error) {
	hits, err := ix.Query(ctx, text, k)
	if err != nil {
		return nil, err
	}
	out := hits[:0]
	for _, h := range hits {
		if h.Entry.Kind == kind {
			out = append(out, h)
		}
	}
	return out, nil
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int {
	return len(ix.current.Load().entries)
}

// Counts returns the number of entries per kind.
func (ix *Index) Counts() map[rag.Kind]int {
	counts := make(map[rag.Kind]int)
	for _, e := range ix.current.Load().entries {
		counts[e.Kind]++
	}
	return counts
}

// Dimension returns the vector length of the loaded index, 0 when empty.
func (ix *Index) Dimension() int {
	return ix.current.Load().dim
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, na float64, b []float32, nb float64) float64 {
	if len(a) != len(b) || na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}
