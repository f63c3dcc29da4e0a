package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smallnest/kgqa/log"
	"github.com/smallnest/kgqa/rag"
)

// Source says where a final answer came from.
type Source string

const (
	SourceGraph    Source = "graph"
	SourceSemantic Source = "semantic"
	SourceCombined Source = "combined"
	SourcePartial  Source = "partial"
	SourceNone     Source = "none"
)

// AnswerCombiner merges the graph and semantic answers into one reply.
type AnswerCombiner struct {
	llm     rag.LLM
	timeout time.Duration
	logger  log.Logger
}

// NewAnswerCombiner creates a combiner.
func NewAnswerCombiner(llm rag.LLM, timeout time.Duration, logger log.Logger) *AnswerCombiner {
	return &AnswerCombiner{
		llm:     llm,
		timeout: timeout,
		logger:  log.OrDefault(logger),
	}
}

// Combine returns whichever answer is present. With both present the model
// merges them; if that fails both are returned side by side.
func (c *AnswerCombiner) Combine(ctx context.Context, question, graphAnswer, semanticAnswer string) (string, Source) {
	hasGraph := strings.TrimSpace(graphAnswer) != ""
	hasSemantic := strings.TrimSpace(semanticAnswer) != ""

	switch {
	case hasGraph && !hasSemantic:
		return graphAnswer, SourceGraph
	case hasSemantic && !hasGraph:
		return semanticAnswer, SourceSemantic
	case !hasGraph && !hasSemantic:
		return NoCombinedAnswer, SourceNone
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	merged, err := c.llm.Generate(ctx, fmt.Sprintf(CombineAnswersPrompt, question, graphAnswer, semanticAnswer))
	merged = strings.TrimSpace(merged)
	if err != nil || merged == "" {
		c.logger.Warn("combining answers failed: %v", err)
		return PartialAnswer(graphAnswer, semanticAnswer), SourcePartial
	}
	return merged, SourceCombined
}

// PartialAnswer labels both answers when they could not be merged.
func PartialAnswer(graphAnswer, semanticAnswer string) string {
	return "Graph RAG:\n" + graphAnswer + "\n\nSemantic RAG:\n" + semanticAnswer
}
