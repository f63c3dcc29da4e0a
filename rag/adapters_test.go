package rag

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type mockLCEmbedder struct {
	calls int
}

func (m *mockLCEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls++
	res := make([][]float32, len(texts))
	for i := range texts {
		res[i] = []float32{0.1, 0.2}
	}
	return res, nil
}

func (m *mockLCEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	return []float32{0.1, 0.2}, nil
}

type mockLCModel struct {
	reply  string
	err    error
	prompt string
}

func (m *mockLCModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if tp, ok := part.(llms.TextContent); ok {
				m.prompt = tp.Text
			}
		}
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.reply}},
	}, nil
}

func (m *mockLCModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestLangChainAdapters(t *testing.T) {
	ctx := context.Background()

	t.Run("LangChainEmbedder", func(t *testing.T) {
		lcEmb := &mockLCEmbedder{}
		adapter := NewLangChainEmbedder(lcEmb)

		emb, err := adapter.EmbedDocument(ctx, "INSAT-3DR")
		assert.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2}, emb)

		embs, err := adapter.EmbedDocuments(ctx, []string{"a", "b"})
		assert.NoError(t, err)
		assert.Len(t, embs, 2)

		before := lcEmb.calls
		assert.Equal(t, 2, adapter.GetDimension())
		assert.Equal(t, 2, adapter.GetDimension())
		assert.Equal(t, before+1, lcEmb.calls, "dimension is measured once")
	})

	t.Run("LangChainLLM", func(t *testing.T) {
		model := &mockLCModel{reply: "  ISRO launched it.  "}
		llm := NewLangChainLLM(model, 0.1)

		out, err := llm.Generate(ctx, "Who launched INSAT-3DR?")
		require.NoError(t, err)
		assert.Equal(t, "ISRO launched it.", out)
		assert.Equal(t, "Who launched INSAT-3DR?", model.prompt)
	})

	t.Run("LangChainLLM error", func(t *testing.T) {
		llm := NewLangChainLLM(&mockLCModel{err: errors.New("rate limited")}, 0)
		_, err := llm.Generate(ctx, "q")
		assert.ErrorContains(t, err, "rate limited")
	})

	t.Run("RecursiveSplitter", func(t *testing.T) {
		splitter := NewRecursiveSplitter(50, 10)
		text := strings.Repeat("The satellite carries a meteorological payload. ", 6)

		chunks, err := splitter.SplitDocuments([]Document{{ID: "doc1", Content: text, Metadata: map[string]any{"source": "a.txt"}}})
		require.NoError(t, err)
		require.Greater(t, len(chunks), 1)

		for i, c := range chunks {
			assert.LessOrEqual(t, len(c.Content), 50)
			assert.Equal(t, "doc1", c.Metadata["parent_id"])
			assert.Equal(t, i, c.Metadata["chunk_index"])
			assert.Equal(t, "a.txt", c.Metadata["source"])
		}
		assert.Equal(t, "doc1#0", chunks[0].ID)
	})
}

func TestOpenAIChatLLM(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotModel, _ = req["model"].(string)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "llama",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": " INSAT-3DR, ISRO "}, "finish_reason": "stop"}]
		}`))
	}))
	defer srv.Close()

	llm, err := NewOpenAIChatLLM(OpenAIChatOptions{
		APIKey:      "test",
		BaseURL:     srv.URL + "/v1",
		Model:       "llama",
		Temperature: 0.1,
	})
	require.NoError(t, err)

	out, err := llm.Generate(context.Background(), "Extract entities")
	require.NoError(t, err)
	assert.Equal(t, "INSAT-3DR, ISRO", out)
	assert.Equal(t, "llama", gotModel)

	_, err = NewOpenAIChatLLM(OpenAIChatOptions{})
	assert.Error(t, err)
}

func TestTripletValid(t *testing.T) {
	assert.True(t, Triplet{Subject: "ISRO", Predicate: "launched", Object: "INSAT-3DR"}.Valid())
	assert.False(t, Triplet{Subject: "ISRO", Predicate: " ", Object: "INSAT-3DR"}.Valid())
}

func TestMentionTexts(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, MentionTexts([]Mention{{Text: "a"}, {Text: "b"}}))
	assert.Empty(t, MentionTexts(nil))
}
