// Package rag holds the core types and external contracts of the kgqa
// question-answering pipeline.
//
// A question flows through four stages:
//
//  1. mention extraction: an LLM lists candidate entities and relationship verbs
//  2. resolution: mentions are matched against the lexicon, then the
//     embedding index (see subpackages lexicon and index)
//  3. fallback querying: a tiered traversal of the knowledge graph
//  4. synthesis: a tier-specific prompt turns graph rows into an answer
//
// The stages live in rag/engine; graph access lives in rag/store.
//
// # Contracts
//
// LLM is a single-turn completion model. LangChainLLM wraps any langchaingo
// llms.Model and OpenAIChatLLM talks to OpenAI-compatible endpoints such as
// Groq:
//
//	llm, _ := rag.NewOpenAIChatLLM(rag.OpenAIChatOptions{
//		APIKey:  os.Getenv("GROQ_API_KEY"),
//		BaseURL: "https://api.groq.com/openai/v1",
//		Model:   "meta-llama/llama-4-maverick-17b-128e-instruct",
//	})
//
// Embedder maps text to vectors; LangChainEmbedder wraps langchaingo
// embedders (OpenAI, Ollama, ...).
//
// KnowledgeGraph is the narrow graph contract: five read shapes used by the
// pipeline plus ingestion and statistics.
package rag
