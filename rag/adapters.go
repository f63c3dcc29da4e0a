package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/textsplitter"
)

// LangChainLLM adapts a langchaingo llms.Model to the LLM interface
type LangChainLLM struct {
	model       llms.Model
	temperature float64
}

var _ LLM = (*LangChainLLM)(nil)

// NewLangChainLLM creates a new adapter for langchaingo models
func NewLangChainLLM(model llms.Model, temperature float64) *LangChainLLM {
	return &LangChainLLM{
		model:       model,
		temperature: temperature,
	}
}

// Generate sends a single user prompt and returns the trimmed completion
func (l *LangChainLLM) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, l.model, prompt, llms.WithTemperature(l.temperature))
	if err != nil {
		return "", fmt.Errorf("langchain generate: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// OpenAIChatLLM talks to any OpenAI-compatible chat completions endpoint,
// including Groq.
type OpenAIChatLLM struct {
	client      *openai.Client
	model       string
	temperature float32
}

var _ LLM = (*OpenAIChatLLM)(nil)

// OpenAIChatOptions configures OpenAIChatLLM
type OpenAIChatOptions struct {
	APIKey      string
	BaseURL     string // empty keeps the OpenAI default
	Model       string
	Temperature float32
}

// NewOpenAIChatLLM creates a chat model client
func NewOpenAIChatLLM(opts OpenAIChatOptions) (*OpenAIChatLLM, error) {
	if opts.Model == "" {
		return nil, errors.New("model is required")
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &OpenAIChatLLM{
		client:      openai.NewClientWithConfig(cfg),
		model:       opts.Model,
		temperature: opts.Temperature,
	}, nil
}

// Generate sends the prompt as a single user message
func (o *OpenAIChatLLM) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: o.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// LangChainEmbedder adapts langchaingo's embeddings.Embedder to our Embedder interface
type LangChainEmbedder struct {
	embedder embeddings.Embedder

	dimOnce sync.Once
	dim     int
}

var _ Embedder = (*LangChainEmbedder)(nil)

// NewLangChainEmbedder creates a new adapter for langchaingo embedders
func NewLangChainEmbedder(embedder embeddings.Embedder) *LangChainEmbedder {
	return &LangChainEmbedder{
		embedder: embedder,
	}
}

// EmbedDocument embeds a single text
func (l *LangChainEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	embedding, err := l.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	result := make([]float32, len(embedding))
	for i, val := range embedding {
		result[i] = float32(val)
	}
	return result, nil
}

// EmbedDocuments embeds a batch of texts
func (l *LangChainEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := l.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}

	result := make([][]float32, len(vectors))
	for i, embedding := range vectors {
		result[i] = make([]float32, len(embedding))
		for j, val := range embedding {
			result[i][j] = float32(val)
		}
	}
	return result, nil
}

// GetDimension embeds a sample once and caches the vector length.
func (l *LangChainEmbedder) GetDimension() int {
	l.dimOnce.Do(func() {
		sample, err := l.embedder.EmbedQuery(context.Background(), "dimension check")
		if err == nil {
			l.dim = len(sample)
		}
	})
	return l.dim
}

// LangChainTextSplitter splits documents with a langchaingo splitter and
// records chunk positions in metadata.
type LangChainTextSplitter struct {
	splitter textsplitter.TextSplitter
}

// NewLangChainTextSplitter creates a new adapter for langchaingo text splitters
func NewLangChainTextSplitter(splitter textsplitter.TextSplitter) *LangChainTextSplitter {
	return &LangChainTextSplitter{
		splitter: splitter,
	}
}

// NewRecursiveSplitter returns the recursive character splitter used for the
// semantic corpus.
func NewRecursiveSplitter(chunkSize, chunkOverlap int) *LangChainTextSplitter {
	return NewLangChainTextSplitter(textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	))
}

// SplitDocuments splits every document; blank chunks are dropped.
func (l *LangChainTextSplitter) SplitDocuments(docs []Document) ([]Document, error) {
	var result []Document
	for _, doc := range docs {
		chunks, err := l.splitter.SplitText(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to split %s: %w", doc.ID, err)
		}

		n := 0
		for _, chunk := range chunks {
			chunk = strings.TrimSpace(chunk)
			if chunk == "" {
				continue
			}
			metadata := make(map[string]any, len(doc.Metadata)+2)
			for k, v := range doc.Metadata {
				metadata[k] = v
			}
			metadata["parent_id"] = doc.ID
			metadata["chunk_index"] = n

			result = append(result, Document{
				ID:       fmt.Sprintf("%s#%d", doc.ID, n),
				Content:  chunk,
				Metadata: metadata,
			})
			n++
		}
	}
	return result, nil
}
