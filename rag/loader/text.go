package loader

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"

	"github.com/smallnest/kgqa/rag"
)

// Option configures a file loader
type Option func(*fileLoader)

// WithMetadata sets additional metadata for loaded documents
func WithMetadata(metadata map[string]any) Option {
	return func(l *fileLoader) {
		maps.Copy(l.metadata, metadata)
	}
}

// fileLoader holds what every single-file loader shares.
type fileLoader struct {
	filePath string
	metadata map[string]any
}

func newFileLoader(filePath, docType string, opts []Option) fileLoader {
	l := fileLoader{
		filePath: filePath,
		metadata: map[string]any{
			"source": filePath,
			"type":   docType,
		},
	}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

// document wraps extracted text. The ID is the file's base name, which is
// what chunk IDs and debug output refer to.
func (l fileLoader) document(content string) rag.Document {
	metadata := make(map[string]any, len(l.metadata))
	maps.Copy(metadata, l.metadata)
	return rag.Document{
		ID:       filepath.Base(l.filePath),
		Content:  content,
		Metadata: metadata,
	}
}

// TextLoader loads a UTF-8 text file as one document
type TextLoader struct {
	fileLoader
}

var _ rag.DocumentLoader = (*TextLoader)(nil)

// NewTextLoader creates a new TextLoader
func NewTextLoader(filePath string, opts ...Option) *TextLoader {
	return &TextLoader{fileLoader: newFileLoader(filePath, "text", opts)}
}

// Load reads the whole file
func (l *TextLoader) Load(ctx context.Context) ([]rag.Document, error) {
	content, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", l.filePath, err)
	}
	return []rag.Document{l.document(string(content))}, nil
}
