package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/smallnest/kgqa/rag"
	"github.com/smallnest/kgqa/rag/index"
)

// mockLLM answers by the first matching prompt prefix and records every
// prompt it receives.
type mockLLM struct {
	mu      sync.Mutex
	prompts []string
	respond func(prompt string) (string, error)
}

func (m *mockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.respond == nil {
		return "", nil
	}
	return m.respond(prompt)
}

func (m *mockLLM) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

func replyWith(answer string) *mockLLM {
	return &mockLLM{respond: func(string) (string, error) { return answer, nil }}
}

func failWith(err error) *mockLLM {
	return &mockLLM{respond: func(string) (string, error) { return "", err }}
}

// blockingLLM waits for its context to end.
type blockingLLM struct{}

func (blockingLLM) Generate(ctx context.Context, prompt string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

// stubLexicon is a fixed case-insensitive lookup table per kind.
type stubLexicon map[rag.Kind]map[string]string

func (s stubLexicon) Lookup(kind rag.Kind, text string) (string, bool) {
	name, ok := s[kind][strings.ToLower(strings.TrimSpace(text))]
	return name, ok
}

// stubSearcher returns scripted hits per query text.
type stubSearcher struct {
	mu    sync.Mutex
	hits  map[string][]index.Hit
	err   error
	calls []string
}

func (s *stubSearcher) QueryKind(ctx context.Context, text string, k int, kind rag.Kind) ([]index.Hit, error) {
	s.mu.Lock()
	s.calls = append(s.calls, text)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []index.Hit
	for _, h := range s.hits[text] {
		if h.Entry.Kind == kind && len(out) < k {
			out = append(out, h)
		}
	}
	return out, nil
}

func hit(kind rag.Kind, name string, score float64) index.Hit {
	return index.Hit{Entry: index.Entry{Kind: kind, Name: name, Text: name}, Score: score}
}
