package main

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/alicebob/miniredis/v2/server"
	"github.com/redis/go-redis/v9"
	"github.com/smallnest/kgqa/rag"
	ragstore "github.com/smallnest/kgqa/rag/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunQuery(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	var (
		mu   sync.Mutex
		seen []string
	)
	require.NoError(t, mr.Server().Register("GRAPH.QUERY", func(c *server.Peer, cmd string, args []string) {
		mu.Lock()
		seen = append(seen, args[1])
		mu.Unlock()
		c.WriteLen(3)
		c.WriteLen(1)
		c.WriteBulk("name")
		c.WriteLen(1)
		c.WriteLen(1)
		c.WriteBulk("Ada")
		c.WriteLen(1)
		c.WriteBulk("Query internal execution time: 0.1 milliseconds")
	}))

	g := ragstore.NewFalkorDBGraphWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "kg")
	t.Cleanup(func() { _ = g.Close() })

	var buf bytes.Buffer
	require.NoError(t, runQuery(ctx, &buf, g, "MATCH (n) RETURN n.name AS name"))
	mu.Lock()
	assert.Equal(t, []string{"MATCH (n) RETURN n.name AS name"}, seen)
	mu.Unlock()
	assert.Contains(t, buf.String(), "Ada")
	assert.Contains(t, buf.String(), "execution time")

	assert.ErrorContains(t, runQuery(ctx, &buf, g, "  "), "-cypher")
}

func TestRunQueryNeedsFalkorDB(t *testing.T) {
	var g rag.KnowledgeGraph = ragstore.NewMemoryGraph()
	err := runQuery(context.Background(), &bytes.Buffer{}, g, "MATCH (n) RETURN n")
	assert.ErrorContains(t, err, "FalkorDB")
}
