package loader

import (
	"context"
	"testing"

	"github.com/smallnest/kgqa/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticLoader(t *testing.T) {
	ctx := context.Background()
	docs := []rag.Document{
		{ID: "1", Content: "static 1", Metadata: map[string]any{"source": "inline"}},
		{ID: "2", Content: "static 2"},
	}

	loader := NewStaticLoader(docs...)

	loaded, err := loader.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, docs, loaded)

	loaded[0].Metadata["source"] = "edited"
	again, err := loader.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "inline", again[0].Metadata["source"])
}
