package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
	"github.com/smallnest/kgqa/rag"
)

// PDFLoader loads the plain text of a PDF file as one document
type PDFLoader struct {
	fileLoader
}

var _ rag.DocumentLoader = (*PDFLoader)(nil)

// NewPDFLoader creates a new PDFLoader
func NewPDFLoader(filePath string, opts ...Option) *PDFLoader {
	return &PDFLoader{fileLoader: newFileLoader(filePath, "pdf", opts)}
}

// Load extracts text from every page
func (l *PDFLoader) Load(ctx context.Context) ([]rag.Document, error) {
	file, reader, err := pdf.Open(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf %s: %w", l.filePath, err)
	}
	defer func() {
		_ = file.Close()
	}()

	plain, err := reader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("failed to extract text from %s: %w", l.filePath, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return nil, fmt.Errorf("failed to read text from %s: %w", l.filePath, err)
	}

	doc := l.document(buf.String())
	doc.Metadata["pages"] = reader.NumPage()
	return []rag.Document{doc}, nil
}
