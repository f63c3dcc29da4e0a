package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/smallnest/kgqa/log"
	"github.com/smallnest/kgqa/rag"
)

// MaxAnswerRecords is how many records are shown to the model.
const MaxAnswerRecords = 10

// AnswerSynthesizer turns graph records into a natural-language answer.
// It always returns an answer; failures become canned text.
type AnswerSynthesizer struct {
	llm     rag.LLM
	timeout time.Duration
	logger  log.Logger
}

// NewAnswerSynthesizer creates a synthesizer.
func NewAnswerSynthesizer(llm rag.LLM, timeout time.Duration, logger log.Logger) *AnswerSynthesizer {
	return &AnswerSynthesizer{
		llm:     llm,
		timeout: timeout,
		logger:  log.OrDefault(logger),
	}
}

// Synthesize answers question from records using the template for tier.
// The error tier never reaches the model.
func (s *AnswerSynthesizer) Synthesize(ctx context.Context, question string, records []rag.Record, tier rag.Tier) string {
	if tier == rag.TierError {
		return GraphUnavailableAnswer
	}
	if len(records) == 0 {
		return NoGraphDataAnswer
	}

	prompt := BuildAnswerPrompt(question, records, tier)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	answer, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		s.logger.Error("answer generation failed: %v", err)
		return SynthesisFailedAnswer
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return EmptySynthesisAnswer
	}
	return answer
}

// BuildAnswerPrompt renders the first MaxAnswerRecords records as indented
// JSON into the template for tier.
func BuildAnswerPrompt(question string, records []rag.Record, tier rag.Tier) string {
	if len(records) > MaxAnswerRecords {
		records = records[:MaxAnswerRecords]
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		data = []byte(fmt.Sprint(records))
	}

	var tmpl string
	switch tier {
	case rag.TierEntityRelationships:
		tmpl = EntityRelationshipsAnswerPrompt
	case rag.TierEntityNoRelationships:
		tmpl = EntityNoRelationshipsAnswerPrompt
	case rag.TierAllRelationships:
		tmpl = AllRelationshipsAnswerPrompt
	default:
		tmpl = DefaultAnswerPrompt
	}
	return fmt.Sprintf(tmpl, question, data)
}
