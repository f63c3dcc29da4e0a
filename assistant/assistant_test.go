package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smallnest/kgqa/log"
	"github.com/smallnest/kgqa/rag"
	"github.com/smallnest/kgqa/rag/engine"
	"github.com/smallnest/kgqa/rag/loader"
	ragstore "github.com/smallnest/kgqa/rag/store"
	"github.com/smallnest/kgqa/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLLM answers each pipeline prompt with a canned reply.
type scriptedLLM struct {
	mu            sync.Mutex
	entities      string
	relationships string
	extractErr    error
	prompts       []string
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()

	switch {
	case strings.HasPrefix(prompt, "Extract") && s.extractErr != nil:
		return "", s.extractErr
	case strings.HasPrefix(prompt, "Extract all entities"):
		return s.entities, nil
	case strings.HasPrefix(prompt, "Extract all possible relationship"):
		return s.relationships, nil
	case strings.Contains(prompt, "has no relationships with other entities"):
		return "The entity exists but has no known connections.", nil
	case strings.Contains(prompt, "Knowledge graph data:"):
		return "graph answer from relationships", nil
	case strings.Contains(prompt, "Available relationships:"):
		return "That was not found; the graph holds other relationships.", nil
	case strings.Contains(prompt, "based only on the context provided"):
		return "semantic answer", nil
	case strings.Contains(prompt, "combining structured data"):
		return "combined answer", nil
	}
	return "", fmt.Errorf("unexpected prompt: %.40s", prompt)
}

func (s *scriptedLLM) find(substr string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, p := range s.prompts {
		if strings.Contains(p, substr) {
			out = append(out, p)
		}
	}
	return out
}

func satelliteGraph(t *testing.T) *ragstore.MemoryGraph {
	t.Helper()
	g := ragstore.NewMemoryGraph()
	_, err := g.AddTriplets(context.Background(), []rag.Triplet{
		{Subject: "INSAT-3DR", Predicate: "LAUNCHED_BY", Object: "ISRO"},
		{Subject: "INSAT-3DR", Predicate: "LAUNCHED_ON", Object: "GSLV-F05"},
		{Subject: "INSAT-3DR", Predicate: "CARRIES", Object: "Imager"},
		{Subject: "INSAT-3DR", Predicate: "CARRIES", Object: "Sounder"},
		{Subject: "INSAT-3DR", Predicate: "USED_FOR", Object: "Weather Forecasting"},
	})
	require.NoError(t, err)
	g.AddEntity("Kalpana-1", "retired meteorological spacecraft")
	return g
}

type fixture struct {
	assistant *Assistant
	llm       *scriptedLLM
	graph     *ragstore.MemoryGraph
	embedder  *ragstore.MockEmbedder
}

func newFixture(t *testing.T, g *ragstore.MemoryGraph, llm *scriptedLLM) fixture {
	t.Helper()
	embedder := ragstore.NewMockEmbedder(256)
	a, err := New(Options{
		Graph:    g,
		LLM:      llm,
		Embedder: embedder,
		Store:    memory.NewMemorySnapshotStore(),
		MinScore: 0.1,
		Logger:   &log.NoOpLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(a.Stop)
	return fixture{assistant: a, llm: llm, graph: g, embedder: embedder}
}

func TestNewValidation(t *testing.T) {
	_, err := New(Options{LLM: &scriptedLLM{}})
	assert.Error(t, err)

	_, err = New(Options{Graph: ragstore.NewMemoryGraph()})
	assert.Error(t, err)

	_, err = New(Options{Graph: ragstore.NewMemoryGraph(), LLM: &scriptedLLM{}, Embedder: ragstore.NewMockEmbedder(8)})
	assert.Error(t, err, "a snapshot store is required")
}

func TestAnswerQuestionEmpty(t *testing.T) {
	f := newFixture(t, satelliteGraph(t), &scriptedLLM{})
	_, err := f.assistant.AnswerQuestion(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestAnswerQuestionEntityWithRelationships(t *testing.T) {
	f := newFixture(t, satelliteGraph(t), &scriptedLLM{entities: "INSAT-3DR", relationships: "used for"})

	ans, err := f.assistant.AnswerQuestion(context.Background(), "What is INSAT-3DR used for?")
	require.NoError(t, err)

	assert.Equal(t, rag.TierEntityRelationships, ans.Tier)
	assert.Equal(t, engine.SourceGraph, ans.Source)
	assert.Equal(t, "graph answer from relationships", ans.Answer)
	assert.Equal(t, 5, ans.Debug.ResultCount)
	assert.Equal(t, []string{"INSAT-3DR"}, ans.Debug.ExtractedEntities)
	require.Len(t, ans.Debug.MatchedEntities, 1)
	assert.Equal(t, rag.ConfidenceExact, ans.Debug.MatchedEntities[0].Confidence)
	assert.NotEmpty(t, ans.Debug.RequestID)
	assert.Empty(t, ans.Debug.Errors)

	prompts := f.llm.find("Knowledge graph data:")
	require.Len(t, prompts, 1)
	assert.Equal(t, 5, strings.Count(prompts[0], `"source": "INSAT-3DR"`))
}

func TestAnswerQuestionUnknownEntity(t *testing.T) {
	g := satelliteGraph(t)
	var extra []rag.Triplet
	for i := 0; i < 25; i++ {
		extra = append(extra, rag.Triplet{Subject: "Hub", Predicate: "LINKS", Object: fmt.Sprintf("spoke-%d", i)})
	}
	_, err := g.AddTriplets(context.Background(), extra)
	require.NoError(t, err)

	f := newFixture(t, g, &scriptedLLM{entities: "Foo", relationships: "zzz"})
	ans, err := f.assistant.AnswerQuestion(context.Background(), "Tell me about Foo")
	require.NoError(t, err)

	assert.Equal(t, rag.TierAllRelationships, ans.Tier)
	assert.Empty(t, ans.Debug.MatchedEntities)
	assert.LessOrEqual(t, ans.Debug.ResultCount, 20)
	assert.Equal(t, 20, ans.Debug.ResultCount)
}

func TestAnswerQuestionIsolatedEntity(t *testing.T) {
	f := newFixture(t, satelliteGraph(t), &scriptedLLM{entities: "kalpana-1", relationships: ""})

	ans, err := f.assistant.AnswerQuestion(context.Background(), "What is Kalpana-1 connected to?")
	require.NoError(t, err)

	assert.Equal(t, rag.TierEntityNoRelationships, ans.Tier)
	assert.Contains(t, ans.Answer, "no known connections")
	assert.Equal(t, 1, ans.Debug.ResultCount)
}

func TestAnswerQuestionStoreDown(t *testing.T) {
	g := satelliteGraph(t)
	g.Fail = func(string) error { return errors.New("dial tcp: connection refused") }
	f := newFixture(t, g, &scriptedLLM{entities: "INSAT-3DR", relationships: "launched"})

	ans, err := f.assistant.AnswerQuestion(context.Background(), "Who launched INSAT-3DR?")
	require.NoError(t, err)

	assert.Equal(t, rag.TierError, ans.Tier)
	assert.Equal(t, engine.GraphUnavailableAnswer, ans.Answer)
	assert.NotContains(t, ans.Answer, "connection refused")
	assert.NotEmpty(t, ans.Debug.Faults)
	assert.NotEmpty(t, ans.Debug.Errors)
}

func TestAnswerQuestionPartialLexiconMatch(t *testing.T) {
	f := newFixture(t, satelliteGraph(t), &scriptedLLM{entities: "satellite, ISRO", relationships: ""})

	ans, err := f.assistant.AnswerQuestion(context.Background(), "Which satellite did ISRO launch?")
	require.NoError(t, err)

	require.Len(t, ans.Debug.MatchedEntities, 1)
	assert.Equal(t, rag.MatchResult{
		Original:   "ISRO",
		Matched:    "ISRO",
		Kind:       rag.KindEntity,
		Confidence: rag.ConfidenceExact,
	}, ans.Debug.MatchedEntities[0])
}

func TestAnswerQuestionNoEntities(t *testing.T) {
	for _, g := range []*ragstore.MemoryGraph{satelliteGraph(t), ragstore.NewMemoryGraph()} {
		f := newFixture(t, g, &scriptedLLM{entities: "", relationships: ""})
		ans, err := f.assistant.AnswerQuestion(context.Background(), "Anything interesting?")
		require.NoError(t, err)
		assert.Contains(t, []rag.Tier{rag.TierAllRelationships, rag.TierNoData}, ans.Tier)
	}
}

func TestAnswerQuestionExtractionFailure(t *testing.T) {
	llm := &scriptedLLM{extractErr: errors.New("model unavailable")}
	f := newFixture(t, satelliteGraph(t), llm)

	ans, err := f.assistant.AnswerQuestion(context.Background(), "What is INSAT-3DR?")
	require.NoError(t, err)
	assert.Equal(t, rag.TierAllRelationships, ans.Tier)
	assert.Empty(t, ans.Debug.ExtractedEntities)
	assert.Len(t, ans.Debug.Errors, 2)
	assert.Equal(t, "That was not found; the graph holds other relationships.", ans.Answer)
}

func TestAnswerQuestionWithSemantic(t *testing.T) {
	ctx := context.Background()
	llm := &scriptedLLM{entities: "INSAT-3DR", relationships: ""}
	semantic, err := engine.NewSemanticRAG(engine.SemanticOptions{
		LLM:      llm,
		Embedder: ragstore.NewMockEmbedder(256),
		Store:    memory.NewMemorySnapshotStore(),
		Logger:   &log.NoOpLogger{},
	})
	require.NoError(t, err)

	a, err := New(Options{
		Graph:    satelliteGraph(t),
		LLM:      llm,
		Embedder: ragstore.NewMockEmbedder(256),
		Store:    memory.NewMemorySnapshotStore(),
		Semantic: semantic,
		Logger:   &log.NoOpLogger{},
	})
	require.NoError(t, err)

	t.Run("No documents yet", func(t *testing.T) {
		ans, err := a.AnswerQuestion(ctx, "What is INSAT-3DR?")
		require.NoError(t, err)
		assert.Equal(t, engine.SourceGraph, ans.Source)
		assert.Contains(t, strings.Join(ans.Debug.Errors, ";"), "semantic")
	})

	t.Run("Combined", func(t *testing.T) {
		n, err := a.IndexDocuments(ctx, loader.NewStaticLoader(rag.Document{ID: "insat.txt", Content: "INSAT-3DR is a meteorological satellite."}))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		ans, err := a.AnswerQuestion(ctx, "What is INSAT-3DR?")
		require.NoError(t, err)
		assert.Equal(t, engine.SourceCombined, ans.Source)
		assert.Equal(t, "combined answer", ans.Answer)
		assert.Equal(t, "semantic answer", ans.Debug.SemanticAnswer)
		assert.Equal(t, "graph answer from relationships", ans.Debug.GraphAnswer)
	})
}

func TestDocumentsDisabled(t *testing.T) {
	f := newFixture(t, satelliteGraph(t), &scriptedLLM{})
	_, err := f.assistant.RefreshDocuments(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ErrSemanticDisabled)
}

func TestRefreshIndex(t *testing.T) {
	ctx := context.Background()
	g := satelliteGraph(t)
	snapshots := memory.NewMemorySnapshotStore()
	embedder := ragstore.NewMockEmbedder(256)
	newAssistant := func() *Assistant {
		a, err := New(Options{Graph: g, LLM: &scriptedLLM{}, Embedder: embedder, Store: snapshots, Logger: &log.NoOpLogger{}})
		require.NoError(t, err)
		return a
	}
	a := newAssistant()

	status, err := a.RefreshIndex(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, ActionRebuilt, status.Action)
	assert.Equal(t, 7, status.Entities)
	assert.Equal(t, 4, status.Relationships)
	assert.Equal(t, 11, status.IndexEntries)
	built := embedder.Calls()
	assert.Positive(t, built)

	t.Run("Second refresh loads", func(t *testing.T) {
		status, err := a.RefreshIndex(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, ActionLoaded, status.Action)
		assert.Equal(t, 11, status.IndexEntries)
		assert.Equal(t, built, embedder.Calls())
	})

	t.Run("Fresh process loads", func(t *testing.T) {
		status, err := newAssistant().RefreshIndex(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, ActionLoaded, status.Action)
		assert.Equal(t, built, embedder.Calls())
	})

	t.Run("Force rebuilds", func(t *testing.T) {
		status, err := a.RefreshIndex(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, ActionRebuilt, status.Action)
		assert.Greater(t, embedder.Calls(), built)
	})

	t.Run("Graph failure", func(t *testing.T) {
		g.Fail = func(op string) error {
			if op == ragstore.OpRelationshipTypes {
				return errors.New("timeout")
			}
			return nil
		}
		defer func() { g.Fail = nil }()
		_, err := a.RefreshIndex(ctx, true)
		assert.ErrorContains(t, err, "relationship types")
	})
}

func TestRefreshPicksUpIngestedEntities(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, satelliteGraph(t), &scriptedLLM{entities: "Chandrayaan-3", relationships: ""})

	ans, err := f.assistant.AnswerQuestion(ctx, "What did Chandrayaan-3 carry?")
	require.NoError(t, err)
	assert.Equal(t, rag.TierAllRelationships, ans.Tier)

	stats, err := f.assistant.IngestTriplets(ctx, []rag.Triplet{
		{Subject: "Chandrayaan-3", Predicate: "CARRIES", Object: "Pragyan"},
		{Subject: "Chandrayaan-3", Predicate: "", Object: "ignored"},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, int64(9), stats.NodeCount)

	_, err = f.assistant.RefreshIndex(ctx, true)
	require.NoError(t, err)

	ans, err = f.assistant.AnswerQuestion(ctx, "What did Chandrayaan-3 carry?")
	require.NoError(t, err)
	assert.Equal(t, rag.TierEntityRelationships, ans.Tier)
	assert.Equal(t, 1, ans.Debug.ResultCount)
}

func TestIngestTripletsClear(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, satelliteGraph(t), &scriptedLLM{})

	stats, err := f.assistant.IngestTriplets(ctx, []rag.Triplet{
		{Subject: "A", Predicate: "LINKS", Object: "B"},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.NodeCount)
	assert.Equal(t, int64(1), stats.RelationshipCount)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, satelliteGraph(t), &scriptedLLM{})
	s, err := f.assistant.Stats(ctx)
	require.NoError(t, err)
	assert.False(t, s.IndexPersisted)

	_, err = f.assistant.RefreshIndex(ctx, false)
	require.NoError(t, err)

	s, err = f.assistant.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), s.Graph.NodeCount)
	assert.Equal(t, int64(5), s.Graph.RelationshipCount)
	require.NotEmpty(t, s.PopularEntities)
	assert.Equal(t, "INSAT-3DR", s.PopularEntities[0].Name)
	assert.Equal(t, 7, s.LexiconEntities)
	assert.Equal(t, 4, s.LexiconRelationships)
	assert.Equal(t, 11, s.IndexEntries)
	assert.True(t, s.IndexPersisted)
	assert.Zero(t, s.DocumentChunks)
}

func TestConnections(t *testing.T) {
	f := newFixture(t, satelliteGraph(t), &scriptedLLM{})
	records, err := f.assistant.Connections(context.Background(), "ISRO", 2)
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestSchedule(t *testing.T) {
	f := newFixture(t, satelliteGraph(t), &scriptedLLM{})

	assert.Error(t, f.assistant.Schedule("not a schedule"))
	require.NoError(t, f.assistant.Schedule("@every 1h"))
	require.NoError(t, f.assistant.Schedule("*/5 * * * *"))
	f.assistant.Stop()
	f.assistant.Stop()
}

func TestConcurrentAnswersDuringRefresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, satelliteGraph(t), &scriptedLLM{entities: "INSAT-3DR", relationships: "carries"})
	_, err := f.assistant.RefreshIndex(ctx, false)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ans, err := f.assistant.AnswerQuestion(ctx, "What does INSAT-3DR carry?")
			assert.NoError(t, err)
			assert.Equal(t, rag.TierEntityRelationships, ans.Tier)
		}()
		go func() {
			defer wg.Done()
			_, err := f.assistant.RefreshIndex(ctx, true)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

// stallingGraph blocks entity reads until released or cancelled.
type stallingGraph struct {
	*ragstore.MemoryGraph
	entered chan struct{}
	release chan struct{}
}

func newStallingGraph(g *ragstore.MemoryGraph) *stallingGraph {
	return &stallingGraph{MemoryGraph: g, entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *stallingGraph) Entities(ctx context.Context) ([]rag.Entity, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.MemoryGraph.Entities(ctx)
}

func TestColdStartDoesNotQueueBehindRefresh(t *testing.T) {
	ctx := context.Background()
	g := newStallingGraph(satelliteGraph(t))
	a, err := New(Options{
		Graph:    g,
		LLM:      &scriptedLLM{entities: "INSAT-3DR", relationships: "carries"},
		Embedder: ragstore.NewMockEmbedder(64),
		Store:    memory.NewMemorySnapshotStore(),
		Logger:   &log.NoOpLogger{},
	})
	require.NoError(t, err)

	first := make(chan *Answer, 1)
	go func() {
		ans, err := a.AnswerQuestion(ctx, "What does INSAT-3DR carry?")
		assert.NoError(t, err)
		first <- ans
	}()
	<-g.entered

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ans, err := a.AnswerQuestion(ctx, "What does INSAT-3DR carry?")
			assert.NoError(t, err)
			assert.Contains(t, ans.Debug.Errors, errRefreshInProgress.Error())
		}()
	}
	wg.Wait()

	select {
	case <-first:
		t.Fatal("the first question should still be waiting on the graph")
	default:
	}

	close(g.release)
	ans := <-first
	assert.Equal(t, rag.TierEntityRelationships, ans.Tier)
	assert.Empty(t, ans.Debug.Errors)
}

func TestRefreshHonoursQueryTimeout(t *testing.T) {
	g := newStallingGraph(satelliteGraph(t))
	a, err := New(Options{
		Graph:        g,
		LLM:          &scriptedLLM{entities: "INSAT-3DR"},
		Embedder:     ragstore.NewMockEmbedder(64),
		Store:        memory.NewMemorySnapshotStore(),
		QueryTimeout: 20 * time.Millisecond,
		Logger:       &log.NoOpLogger{},
	})
	require.NoError(t, err)

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ans, err := a.AnswerQuestion(context.Background(), "Who launched INSAT-3DR?")
			assert.NoError(t, err)
			assert.NotEmpty(t, ans.Debug.Errors)
		}()
	}
	wg.Wait()
	assert.Less(t, time.Since(start), 250*time.Millisecond)

	_, err = a.RefreshIndex(context.Background(), false)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// flakyEmbedder fails every call once broken is set.
type flakyEmbedder struct {
	*ragstore.MockEmbedder
	broken atomic.Bool
}

func (e *flakyEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if e.broken.Load() {
		return nil, errors.New("embedding service unavailable")
	}
	return e.MockEmbedder.EmbedDocuments(ctx, texts)
}

func (e *flakyEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	if e.broken.Load() {
		return nil, errors.New("embedding service unavailable")
	}
	return e.MockEmbedder.EmbedDocument(ctx, text)
}

func TestFailedRebuildKeepsLexiconAndIndexInStep(t *testing.T) {
	ctx := context.Background()
	g := satelliteGraph(t)
	embedder := &flakyEmbedder{MockEmbedder: ragstore.NewMockEmbedder(64)}
	a, err := New(Options{Graph: g, LLM: &scriptedLLM{}, Embedder: embedder, Store: memory.NewMemorySnapshotStore(), Logger: &log.NoOpLogger{}})
	require.NoError(t, err)

	_, err = a.RefreshIndex(ctx, false)
	require.NoError(t, err)

	_, err = g.AddTriplets(ctx, []rag.Triplet{{Subject: "Chandrayaan-3", Predicate: "LAUNCHED_BY", Object: "ISRO"}})
	require.NoError(t, err)
	embedder.broken.Store(true)

	_, err = a.RefreshIndex(ctx, true)
	require.Error(t, err)

	stats, err := a.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, stats.LexiconEntities)
	assert.Equal(t, 11, stats.IndexEntries)
	_, ok := a.lexicon.LookupEntity("Chandrayaan-3")
	assert.False(t, ok)
}
