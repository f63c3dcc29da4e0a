package main

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/smallnest/kgqa/assistant"
	"github.com/smallnest/kgqa/log"
	"github.com/smallnest/kgqa/rag"
	"github.com/smallnest/kgqa/rag/engine"
	ragstore "github.com/smallnest/kgqa/rag/store"
	"github.com/smallnest/kgqa/store"
	"github.com/smallnest/kgqa/store/file"
	"github.com/smallnest/kgqa/store/memory"
	"github.com/smallnest/kgqa/store/postgres"
	"github.com/smallnest/kgqa/store/redis"
	"github.com/smallnest/kgqa/store/sqlite"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	groqBaseURL   = "https://api.groq.com/openai/v1"
	ollamaBaseURL = "http://localhost:11434/v1"
)

// components are the long-lived objects behind every mode.
type components struct {
	graph     rag.KnowledgeGraph
	snapshots store.SnapshotStore
	assistant *assistant.Assistant
}

func (c *components) Close() {
	if c.assistant != nil {
		c.assistant.Stop()
	}
	if c.snapshots != nil {
		_ = c.snapshots.Close()
	}
	if c.graph != nil {
		_ = c.graph.Close()
	}
}

// openComponents connects to the graph and snapshot store and wires the
// assistant. The caller must Close the result.
func openComponents(ctx context.Context, cfg *Config, logger log.Logger) (*components, error) {
	c := &components{}

	graph, err := ragstore.NewKnowledgeGraph(cfg.GraphURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph: %w", err)
	}
	c.graph = graph

	snapshots, err := openSnapshotStore(ctx, cfg.IndexStore)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.snapshots = snapshots

	llm, err := newLLM(cfg)
	if err != nil {
		c.Close()
		return nil, err
	}
	embedder, err := newEmbedder(cfg)
	if err != nil {
		c.Close()
		return nil, err
	}

	var semantic *engine.SemanticRAG
	if cfg.DocumentsDir != "" {
		semantic, err = engine.NewSemanticRAG(engine.SemanticOptions{
			LLM:      llm,
			Embedder: embedder,
			Store:    snapshots,
			Timeout:  cfg.LLMTimeout,
			Logger:   logger,
		})
		if err != nil {
			c.Close()
			return nil, err
		}
	}

	c.assistant, err = assistant.New(assistant.Options{
		Graph:        graph,
		LLM:          llm,
		Embedder:     embedder,
		Store:        snapshots,
		Semantic:     semantic,
		MinScore:     cfg.MinScore,
		QueryTimeout: cfg.QueryTimeout,
		LLMTimeout:   cfg.LLMTimeout,
		Logger:       logger,
	})
	if err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// openSnapshotStore picks a snapshot backend by URL scheme.
func openSnapshotStore(ctx context.Context, rawURL string) (store.SnapshotStore, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid index store %q: %w", rawURL, err)
	}

	switch u.Scheme {
	case "memory":
		return memory.NewMemorySnapshotStore(), nil
	case "file":
		return file.NewFileSnapshotStore(u.Host + u.Path)
	case "redis":
		db := 0
		if p := strings.TrimPrefix(u.Path, "/"); p != "" {
			if db, err = strconv.Atoi(p); err != nil {
				return nil, fmt.Errorf("invalid redis db %q", p)
			}
		}
		password, _ := u.User.Password()
		return redis.NewRedisSnapshotStore(redis.RedisOptions{
			Addr:     u.Host,
			Password: password,
			DB:       db,
		}), nil
	case "sqlite":
		return sqlite.NewSqliteSnapshotStore(sqlite.SqliteOptions{Path: u.Host + u.Path})
	case "postgres", "postgresql":
		return postgres.NewPostgresSnapshotStore(ctx, postgres.PostgresOptions{ConnString: rawURL})
	default:
		return nil, fmt.Errorf("unsupported index store scheme %q", u.Scheme)
	}
}

func newLLM(cfg *Config) (rag.LLM, error) {
	switch cfg.LLMProvider {
	case "openai", "groq":
		base := cfg.LLMBaseURL
		if base == "" && cfg.LLMProvider == "groq" {
			base = groqBaseURL
		}
		return rag.NewOpenAIChatLLM(rag.OpenAIChatOptions{
			APIKey:      cfg.APIKey,
			BaseURL:     base,
			Model:       cfg.LLMModel,
			Temperature: 0.1,
		})
	case "ollama":
		client, err := openai.New(ollamaOptions(cfg.LLMBaseURL, openai.WithModel(cfg.LLMModel))...)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return rag.NewLangChainLLM(client, 0.1), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}

func newEmbedder(cfg *Config) (rag.Embedder, error) {
	var opts []openai.Option
	switch cfg.EmbeddingProvider {
	case "mock":
		return ragstore.NewMockEmbedder(384), nil
	case "openai":
		opts = []openai.Option{openai.WithEmbeddingModel(cfg.EmbeddingModel)}
	case "ollama":
		opts = ollamaOptions(cfg.LLMBaseURL, openai.WithEmbeddingModel(cfg.EmbeddingModel))
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	e, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return rag.NewLangChainEmbedder(e), nil
}

// ollamaOptions points the OpenAI client at Ollama's compatible endpoint.
func ollamaOptions(base string, opts ...openai.Option) []openai.Option {
	if base == "" {
		base = ollamaBaseURL
	}
	return append(opts, openai.WithBaseURL(base), openai.WithToken("ollama"))
}
