// Package engine holds the question-answering pipeline stages: mention
// extraction, resolution onto graph names, the tiered graph query, answer
// synthesis, and the document-based semantic answer with its combiner.
package engine
