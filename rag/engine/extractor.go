package engine

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/smallnest/kgqa/log"
	"github.com/smallnest/kgqa/rag"
)

// ExtractionError reports a failed mention extraction. It is never fatal to
// a request; callers continue with no mentions of that kind.
type ExtractionError struct {
	Kind rag.Kind
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s extraction failed: %v", e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// MentionExtractor asks the LLM for candidate entity and relationship
// phrases in a question.
type MentionExtractor struct {
	llm     rag.LLM
	timeout time.Duration
	logger  log.Logger
}

// NewMentionExtractor creates an extractor. A zero timeout leaves calls
// bounded only by the caller's context.
func NewMentionExtractor(llm rag.LLM, timeout time.Duration, logger log.Logger) *MentionExtractor {
	return &MentionExtractor{
		llm:     llm,
		timeout: timeout,
		logger:  log.OrDefault(logger),
	}
}

// ExtractEntities returns entity-like mentions in question.
func (m *MentionExtractor) ExtractEntities(ctx context.Context, question string) ([]rag.Mention, error) {
	return m.extract(ctx, rag.KindEntity, fmt.Sprintf(EntityExtractionPrompt, question))
}

// ExtractRelationshipVerbs returns relationship-like mentions in question.
func (m *MentionExtractor) ExtractRelationshipVerbs(ctx context.Context, question string) ([]rag.Mention, error) {
	return m.extract(ctx, rag.KindRelationship, fmt.Sprintf(RelationshipExtractionPrompt, question))
}

func (m *MentionExtractor) extract(ctx context.Context, kind rag.Kind, prompt string) ([]rag.Mention, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	response, err := m.llm.Generate(ctx, prompt)
	if err != nil {
		m.logger.Warn("%s extraction failed: %v", kind, err)
		return []rag.Mention{}, &ExtractionError{Kind: kind, Err: err}
	}

	mentions := ParseMentions(response)
	m.logger.Debug("extracted %d %s mentions: %v", len(mentions), kind, rag.MentionTexts(mentions))
	return mentions, nil
}

// ParseMentions splits a comma-separated model reply into mentions. Tokens
// are trimmed of whitespace and then of quotes; anything a single character
// long or shorter is dropped.
func ParseMentions(response string) []rag.Mention {
	mentions := []rag.Mention{}
	for _, tok := range strings.Split(response, ",") {
		tok = strings.Trim(strings.TrimSpace(tok), `"'`)
		if utf8.RuneCountInString(tok) <= 1 {
			continue
		}
		mentions = append(mentions, rag.Mention{Text: tok})
	}
	return mentions
}
