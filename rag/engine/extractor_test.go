package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallnest/kgqa/log"
	"github.com/smallnest/kgqa/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMentions(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     []string
	}{
		{"Simple list", "Alice, Acme", []string{"Alice", "Acme"}},
		{"Quotes and spaces", ` "Acme Corp" , 'Bob',works at `, []string{"Acme Corp", "Bob", "works at"}},
		{"Short tokens dropped", "a, ,x, ok", []string{"ok"}},
		{"Single multibyte characters dropped", `中, "é", ab, 北京`, []string{"ab", "北京"}},
		{"Quotes inside whitespace", `" Alice "`, []string{" Alice "}},
		{"Empty", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rag.MentionTexts(ParseMentions(tt.response))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMentionExtractor(t *testing.T) {
	ctx := context.Background()

	t.Run("Entities prompt", func(t *testing.T) {
		llm := replyWith("Alice, Acme")
		x := NewMentionExtractor(llm, 0, &log.NoOpLogger{})

		mentions, err := x.ExtractEntities(ctx, "Where does Alice work?")
		require.NoError(t, err)
		assert.Equal(t, []rag.Mention{{Text: "Alice"}, {Text: "Acme"}}, mentions)

		prompts := llm.calls()
		require.Len(t, prompts, 1)
		assert.Equal(t, "Extract all entities, concepts, names, and important terms from the following query.\n"+
			"Return them as a simple comma-separated list with no explanations.\n\n"+
			"Query: Where does Alice work?\n\nEntities:", prompts[0])
	})

	t.Run("Relationships prompt", func(t *testing.T) {
		llm := replyWith("works at")
		x := NewMentionExtractor(llm, 0, &log.NoOpLogger{})

		mentions, err := x.ExtractRelationshipVerbs(ctx, "Where does Alice work?")
		require.NoError(t, err)
		assert.Equal(t, []rag.Mention{{Text: "works at"}}, mentions)
		assert.Contains(t, llm.calls()[0], "\n\nRelationships:")
	})

	t.Run("Failure is typed and empty", func(t *testing.T) {
		boom := errors.New("model down")
		x := NewMentionExtractor(failWith(boom), 0, &log.NoOpLogger{})

		mentions, err := x.ExtractEntities(ctx, "anything")
		assert.NotNil(t, mentions)
		assert.Empty(t, mentions)

		var xerr *ExtractionError
		require.ErrorAs(t, err, &xerr)
		assert.Equal(t, rag.KindEntity, xerr.Kind)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("Timeout", func(t *testing.T) {
		x := NewMentionExtractor(blockingLLM{}, 10*time.Millisecond, &log.NoOpLogger{})

		mentions, err := x.ExtractRelationshipVerbs(ctx, "anything")
		assert.Empty(t, mentions)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
