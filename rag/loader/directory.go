package loader

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/smallnest/kgqa/log"
	"github.com/smallnest/kgqa/rag"
)

// DirectoryLoader loads every supported file under a directory, walking
// subdirectories. Files are loaded in lexical path order.
type DirectoryLoader struct {
	dir    string
	logger log.Logger
}

var _ rag.DocumentLoader = (*DirectoryLoader)(nil)

// NewDirectoryLoader creates a new DirectoryLoader
func NewDirectoryLoader(dir string, logger log.Logger) *DirectoryLoader {
	return &DirectoryLoader{dir: dir, logger: log.OrDefault(logger)}
}

// ForFile picks a loader by file extension; nil when unsupported.
func ForFile(path string, opts ...Option) rag.DocumentLoader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return NewTextLoader(path, opts...)
	case ".html", ".htm":
		return NewHTMLLoader(path, opts...)
	case ".pdf":
		return NewPDFLoader(path, opts...)
	default:
		return nil
	}
}

// Load walks the directory. A file that fails to load is logged and skipped;
// an unreadable directory is an error.
func (l *DirectoryLoader) Load(ctx context.Context) ([]rag.Document, error) {
	var paths []string
	err := filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", l.dir, err)
	}
	sort.Strings(paths)

	var docs []rag.Document
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loader := ForFile(path)
		if loader == nil {
			l.logger.Debug("skipping unsupported file %s", path)
			continue
		}
		loaded, err := loader.Load(ctx)
		if err != nil {
			l.logger.Warn("skipping %s: %v", path, err)
			continue
		}
		for _, d := range loaded {
			if strings.TrimSpace(d.Content) != "" {
				docs = append(docs, d)
			}
		}
	}

	l.logger.Info("loaded %d documents from %s", len(docs), l.dir)
	return docs, nil
}
