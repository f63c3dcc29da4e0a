// Package assistant wires the question answering pipeline together.
//
// An Assistant owns the lexicon and the graph index built from a knowledge
// graph. It answers questions by extracting mentions, resolving them against
// the lexicon and index, querying the graph through the fallback ladder and
// synthesizing a reply:
//
//	a, err := assistant.New(assistant.Options{
//		Graph:    graph,
//		LLM:      llm,
//		Embedder: embedder,
//		Store:    snapshots,
//	})
//	ans, err := a.AnswerQuestion(ctx, "Who launched INSAT-3DR?")
//
// The index is loaded from the snapshot store, or built, on the first
// question. RefreshIndex reloads it on demand and Schedule on a cron spec.
// When a SemanticRAG is configured every answer is also drawn from the
// document corpus and the two replies are merged.
package assistant
