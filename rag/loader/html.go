package loader

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/smallnest/kgqa/rag"
)

// HTMLLoader loads the visible text of an HTML file as one document.
// Script, style and noscript elements are dropped; the page title, when
// present, is kept in metadata.
type HTMLLoader struct {
	fileLoader
}

var _ rag.DocumentLoader = (*HTMLLoader)(nil)

// NewHTMLLoader creates a new HTMLLoader
func NewHTMLLoader(filePath string, opts ...Option) *HTMLLoader {
	return &HTMLLoader{fileLoader: newFileLoader(filePath, "html", opts)}
}

// Load parses the file and extracts its body text
func (l *HTMLLoader) Load(ctx context.Context) ([]rag.Document, error) {
	f, err := os.Open(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", l.filePath, err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html %s: %w", l.filePath, err)
	}

	out := l.document(HTMLText(doc))
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		out.Metadata["title"] = title
	}
	return []rag.Document{out}, nil
}

// HTMLText returns the whitespace-normalised text of the body, one line per
// block of text.
func HTMLText(doc *goquery.Document) string {
	doc.Find("script, style, noscript").Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}

	var lines []string
	for _, line := range strings.Split(body.Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
