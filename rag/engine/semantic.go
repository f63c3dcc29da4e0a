package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallnest/kgqa/log"
	"github.com/smallnest/kgqa/rag"
	"github.com/smallnest/kgqa/rag/index"
	"github.com/smallnest/kgqa/store"
)

// Defaults for the document corpus.
const (
	DocumentsIndexKey   = "documents-index"
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 100
	DefaultSemanticTopK = 3
)

// ErrNoDocuments is returned when there is no corpus to index or search.
var ErrNoDocuments = errors.New("no documents indexed for semantic retrieval")

// Splitter splits documents into chunks.
type Splitter interface {
	SplitDocuments(docs []rag.Document) ([]rag.Document, error)
}

// SemanticRAG answers questions from plain-text documents by retrieving the
// nearest chunks and asking the model to answer from them alone.
type SemanticRAG struct {
	llm      rag.LLM
	index    *index.Index
	splitter Splitter
	k        int
	timeout  time.Duration
	logger   log.Logger
}

// SemanticOptions configures SemanticRAG
type SemanticOptions struct {
	LLM      rag.LLM
	Embedder rag.Embedder
	Store    store.SnapshotStore
	Splitter Splitter // default recursive splitter, 500/100
	K        int      // chunks per answer, default 3
	Timeout  time.Duration
	Logger   log.Logger
}

// NewSemanticRAG creates an engine with an empty chunk index.
func NewSemanticRAG(opts SemanticOptions) (*SemanticRAG, error) {
	if opts.LLM == nil {
		return nil, errors.New("semantic rag: llm is required")
	}
	logger := log.OrDefault(opts.Logger)

	ix, err := index.New(index.Options{
		Embedder: opts.Embedder,
		Store:    opts.Store,
		Key:      DocumentsIndexKey,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("semantic rag: %w", err)
	}

	splitter := opts.Splitter
	if splitter == nil {
		splitter = rag.NewRecursiveSplitter(DefaultChunkSize, DefaultChunkOverlap)
	}
	k := opts.K
	if k <= 0 {
		k = DefaultSemanticTopK
	}

	return &SemanticRAG{
		llm:      opts.LLM,
		index:    ix,
		splitter: splitter,
		k:        k,
		timeout:  opts.Timeout,
		logger:   logger,
	}, nil
}

// IndexDocuments splits docs, embeds the chunks and persists the chunk
// index. It returns the number of chunks indexed.
func (s *SemanticRAG) IndexDocuments(ctx context.Context, docs []rag.Document) (int, error) {
	if len(docs) == 0 {
		return 0, ErrNoDocuments
	}

	chunks, err := s.splitter.SplitDocuments(docs)
	if err != nil {
		return 0, fmt.Errorf("failed to split documents: %w", err)
	}
	if len(chunks) == 0 {
		return 0, fmt.Errorf("splitting produced no chunks: %w", ErrNoDocuments)
	}

	if err := s.index.Build(ctx, index.ChunkEntries(chunks)); err != nil {
		return 0, fmt.Errorf("failed to index chunks: %w", err)
	}
	s.logger.Info("indexed %d documents as %d chunks", len(docs), len(chunks))
	return len(chunks), nil
}

// Load restores a persisted chunk index.
func (s *SemanticRAG) Load(ctx context.Context) (bool, error) {
	return s.index.Load(ctx)
}

// Len returns the number of indexed chunks.
func (s *SemanticRAG) Len() int {
	return s.index.Len()
}

// Retrieve returns the k nearest chunks joined by newlines.
func (s *SemanticRAG) Retrieve(ctx context.Context, question string) (string, error) {
	if s.index.Len() == 0 {
		return "", ErrNoDocuments
	}
	hits, err := s.index.QueryKind(ctx, question, s.k, rag.KindChunk)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve chunks: %w", err)
	}
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Entry.Text
	}
	return strings.Join(texts, "\n"), nil
}

// Answer retrieves context for question and asks the model to answer from
// it. Errors are returned to the caller.
func (s *SemanticRAG) Answer(ctx context.Context, question string) (string, error) {
	retrieved, err := s.Retrieve(ctx, question)
	if err != nil {
		return "", err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	answer, err := s.llm.Generate(ctx, fmt.Sprintf(SemanticAnswerPrompt, retrieved, question))
	if err != nil {
		return "", fmt.Errorf("semantic answer generation failed: %w", err)
	}
	return strings.TrimSpace(answer), nil
}
