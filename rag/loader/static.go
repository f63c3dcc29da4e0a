package loader

import (
	"context"
	"maps"

	"github.com/smallnest/kgqa/rag"
)

// StaticLoader serves a fixed list of documents, e.g. documents posted over
// HTTP or built in tests.
type StaticLoader struct {
	documents []rag.Document
}

var _ rag.DocumentLoader = (*StaticLoader)(nil)

// NewStaticLoader creates a new StaticLoader
func NewStaticLoader(documents ...rag.Document) *StaticLoader {
	return &StaticLoader{documents: documents}
}

// Load returns copies of the documents, so callers may edit metadata freely
func (l *StaticLoader) Load(ctx context.Context) ([]rag.Document, error) {
	docs := make([]rag.Document, len(l.documents))
	for i, doc := range l.documents {
		if doc.Metadata != nil {
			doc.Metadata = maps.Clone(doc.Metadata)
		}
		docs[i] = doc
	}
	return docs, nil
}
