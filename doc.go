// KGQA - Question Answering over Knowledge Graphs in Go
//
// KGQA answers natural-language questions from a property graph. A question
// goes through mention extraction, entity resolution, a tiered graph query
// and answer synthesis, each step backed by an LLM or the graph store. When
// a document corpus is configured, a semantic retrieval answer is produced
// alongside and both are merged into one reply.
//
// # Quick Start
//
// Run the server against a local FalkorDB:
//
//	KGQA_GRAPH_URL=falkordb://localhost:6379/kg \
//	GROQ_API_KEY=... OPENAI_API_KEY=... \
//	go run ./cmd/kgqa
//
// Then ask:
//
//	curl -X POST localhost:8000/ask -d '{"query":"Who launched INSAT-3DR?"}'
//
// Or embed the pipeline directly:
//
//	graph, _ := store.NewKnowledgeGraph("memory://")
//	a, _ := assistant.New(assistant.Options{
//		Graph:    graph,
//		LLM:      llm,
//		Embedder: embedder,
//		Store:    memory.NewMemorySnapshotStore(),
//	})
//	ans, _ := a.AnswerQuestion(ctx, "Who launched INSAT-3DR?")
//	fmt.Println(ans.Answer, ans.Tier)
//
// # Answer Tiers
//
// The graph query falls back through a fixed ladder, reported as the answer
// tier:
//
//   - entity_relationships: relationships of the most confident matched entity
//   - entity_no_relationships: the entity exists but has no edges
//   - all_relationships: a sample of the graph when nothing matched
//   - no_data: the graph is empty
//   - error: the store failed; a generic answer is returned
//
// # Package Structure
//
// rag/
// Core types (Entity, MatchResult, Record, Tier) and the LLM and embedder
// adapters over langchaingo and go-openai.
//
// rag/lexicon/
// Exact, case-insensitive lookup of entity names and relationship types.
//
// rag/index/
// Nearest-neighbour index over graph names and document chunks, persisted
// through a snapshot store.
//
// rag/engine/
// The pipeline stages: MentionExtractor, EntityResolver, FallbackExecutor,
// AnswerSynthesizer, SemanticRAG and AnswerCombiner.
//
// rag/store/
// Knowledge graph backends: FalkorDB over go-redis and an in-memory graph.
//
// rag/loader/
// Text, HTML and PDF document loaders for the semantic corpus.
//
// store/
// Snapshot stores for the index: memory, file, Redis, SQLite and Postgres.
//
// assistant/
// The service tying the stages together, with index refresh and scheduling.
//
// log/
// Logger interface with standard library and golog backends.
//
// cmd/kgqa/
// HTTP server and command line modes.
//
// # Configuration
//
// The binary reads an optional YAML file, a .env file and the environment:
//
//   - KGQA_GRAPH_URL: memory:// or falkordb://host:port/graph
//   - KGQA_INDEX_STORE: where the index is persisted (file://, redis://, sqlite://, postgres://)
//   - KGQA_LLM_PROVIDER: groq, openai or ollama
//   - KGQA_EMBEDDING_PROVIDER: openai, ollama or mock
//   - KGQA_DOCUMENTS_DIR: enables semantic retrieval over the files in it
//   - KGQA_REFRESH_SCHEDULE: cron spec for rebuilding the index
//   - KGQA_LOG_LEVEL: debug, info, warn or error
package kgqa // import "github.com/smallnest/kgqa"
