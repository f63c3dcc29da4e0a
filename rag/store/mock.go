package store

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/smallnest/kgqa/rag"
)

// MockEmbedder is a deterministic bag-of-words embedder for tests and
// offline runs: every lower-cased token is hashed onto one dimension, so
// texts sharing words score high and disjoint texts score zero.
type MockEmbedder struct {
	Dimension int

	calls atomic.Int64
}

var _ rag.Embedder = (*MockEmbedder)(nil)

// NewMockEmbedder creates a new MockEmbedder
func NewMockEmbedder(dimension int) *MockEmbedder {
	if dimension <= 0 {
		dimension = 64
	}
	return &MockEmbedder{
		Dimension: dimension,
	}
}

// EmbedDocument generates a mock embedding for one text
func (e *MockEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	return e.generateEmbedding(text), nil
}

// EmbedDocuments generates mock embeddings for a batch of texts
func (e *MockEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = e.generateEmbedding(text)
	}
	return embeddings, nil
}

// GetDimension returns the embedding dimension
func (e *MockEmbedder) GetDimension() int {
	return e.Dimension
}

// Calls returns how many embedding requests were served.
func (e *MockEmbedder) Calls() int64 {
	return e.calls.Load()
}

func (e *MockEmbedder) generateEmbedding(text string) []float32 {
	embedding := make([]float32, e.Dimension)

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	for _, tok := range tokens {
		h := fnv.New32a()
		h.Write([]byte(tok))
		embedding[h.Sum32()%uint32(e.Dimension)]++
	}

	var norm float64
	for _, v := range embedding {
		norm += float64(v * v)
	}
	norm = math.Sqrt(norm)

	if norm > 0 {
		for i := range embedding {
			embedding[i] = float32(float64(embedding[i]) / norm)
		}
	}

	return embedding
}
