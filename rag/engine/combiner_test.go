package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/smallnest/kgqa/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerCombiner(t *testing.T) {
	tests := []struct {
		name       string
		llm        *mockLLM
		graph      string
		semantic   string
		want       string
		wantSource Source
		wantCalls  int
	}{
		{"Graph only", replyWith("x"), "Alice works at Acme.", "", "Alice works at Acme.", SourceGraph, 0},
		{"Semantic only", replyWith("x"), " ", "Acme builds rockets.", "Acme builds rockets.", SourceSemantic, 0},
		{"Neither", replyWith("x"), "", "", NoCombinedAnswer, SourceNone, 0},
		{"Both", replyWith(" merged \n"), "g", "s", "merged", SourceCombined, 1},
		{"Merge fails", failWith(errors.New("down")), "g", "s", "Graph RAG:\ng\n\nSemantic RAG:\ns", SourcePartial, 1},
		{"Merge empty", replyWith(""), "g", "s", PartialAnswer("g", "s"), SourcePartial, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewAnswerCombiner(tt.llm, 0, &log.NoOpLogger{})
			got, source := c.Combine(context.Background(), "Where does Alice work?", tt.graph, tt.semantic)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantSource, source)
			assert.Len(t, tt.llm.calls(), tt.wantCalls)
		})
	}
}

func TestAnswerCombinerPrompt(t *testing.T) {
	llm := replyWith("ok")
	c := NewAnswerCombiner(llm, 0, &log.NoOpLogger{})
	c.Combine(context.Background(), "Where does Alice work?", "At Acme.", "Acme is in Berlin.")

	prompts := llm.calls()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "User Query: Where does Alice work?")
	assert.Contains(t, prompts[0], "Answer from Knowledge Graph:\nAt Acme.")
	assert.Contains(t, prompts[0], "Answer from Semantic Retrieval:\nAcme is in Berlin.")
}
