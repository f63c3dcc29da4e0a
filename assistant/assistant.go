package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/smallnest/kgqa/log"
	"github.com/smallnest/kgqa/rag"
	"github.com/smallnest/kgqa/rag/engine"
	"github.com/smallnest/kgqa/rag/index"
	"github.com/smallnest/kgqa/rag/lexicon"
	"github.com/smallnest/kgqa/rag/loader"
	"github.com/smallnest/kgqa/store"
)

var (
	// ErrEmptyQuestion is the only error AnswerQuestion returns.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrSemanticDisabled is returned by document operations when no
	// semantic engine is configured.
	ErrSemanticDisabled = errors.New("semantic retrieval is not configured")

	errRefreshInProgress = errors.New("index refresh in progress, answered from the current snapshot")
)

// Refresh actions reported in RefreshStatus.
const (
	ActionLoaded  = "loaded"
	ActionRebuilt = "rebuilt"
)

// Options configures an Assistant
type Options struct {
	Graph    rag.KnowledgeGraph
	LLM      rag.LLM
	Embedder rag.Embedder
	// Store persists the graph index.
	Store    store.SnapshotStore
	IndexKey string // default index.DefaultKey

	// Semantic enables document answers and answer combining when set.
	Semantic *engine.SemanticRAG

	MinScore     float64
	QueryTimeout time.Duration
	LLMTimeout   time.Duration
	Logger       log.Logger
}

// Assistant answers natural-language questions from a knowledge graph,
// optionally blended with answers from a document corpus. All methods are
// safe for concurrent use.
type Assistant struct {
	graph       rag.KnowledgeGraph
	lexicon     *lexicon.Cache
	index       *index.Index
	extractor   *engine.MentionExtractor
	resolver    *engine.EntityResolver
	executor    *engine.FallbackExecutor
	synthesizer *engine.AnswerSynthesizer
	semantic    *engine.SemanticRAG
	combiner    *engine.AnswerCombiner
	logger      log.Logger

	queryTimeout time.Duration

	refreshMu sync.Mutex
	ready     atomic.Bool

	cronMu sync.Mutex
	cron   *cron.Cron
}

// New wires the pipeline. Nothing is loaded or built until first use or an
// explicit RefreshIndex.
func New(opts Options) (*Assistant, error) {
	if opts.Graph == nil {
		return nil, errors.New("assistant: knowledge graph is required")
	}
	if opts.LLM == nil {
		return nil, errors.New("assistant: llm is required")
	}
	logger := log.OrDefault(opts.Logger)

	ix, err := index.New(index.Options{
		Embedder: opts.Embedder,
		Store:    opts.Store,
		Key:      opts.IndexKey,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("assistant: %w", err)
	}
	lex := lexicon.New()

	return &Assistant{
		graph:     opts.Graph,
		lexicon:   lex,
		index:     ix,
		extractor: engine.NewMentionExtractor(opts.LLM, opts.LLMTimeout, logger),
		resolver: engine.NewEntityResolver(engine.ResolverOptions{
			Lexicon:  lex,
			Searcher: ix,
			MinScore: opts.MinScore,
			Logger:   logger,
		}),
		executor:    engine.NewFallbackExecutor(opts.Graph, opts.QueryTimeout, logger),
		synthesizer: engine.NewAnswerSynthesizer(opts.LLM, opts.LLMTimeout, logger),
		semantic:    opts.Semantic,
		combiner:    engine.NewAnswerCombiner(opts.LLM, opts.LLMTimeout, logger),
		logger:      logger,

		queryTimeout: opts.QueryTimeout,
	}, nil
}

// Answer is the result of AnswerQuestion.
type Answer struct {
	Answer string        `json:"answer"`
	Tier   rag.Tier      `json:"tier"`
	Source engine.Source `json:"source"`
	Debug  DebugInfo     `json:"debug"`
}

// DebugInfo exposes every intermediate step of a request.
type DebugInfo struct {
	RequestID              string            `json:"request_id"`
	ExtractedEntities      []string          `json:"extracted_entities"`
	ExtractedRelationships []string          `json:"extracted_relationships"`
	MatchedEntities        []rag.MatchResult `json:"matched_entities"`
	MatchedRelationships   []rag.MatchResult `json:"matched_relationships"`
	QueryType              rag.Tier          `json:"query_type"`
	ResultCount            int               `json:"result_count"`
	Faults                 []string          `json:"faults"`
	GraphAnswer            string            `json:"graph_answer"`
	SemanticAnswer         string            `json:"semantic_answer,omitempty"`
	Errors                 []string          `json:"errors"`
}

// AnswerQuestion runs the full pipeline. Downstream failures degrade the
// answer and are reported in Debug; the only error is ErrEmptyQuestion.
func (a *Assistant) AnswerQuestion(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	debug := DebugInfo{
		RequestID: uuid.NewString(),
		Faults:    []string{},
		Errors:    []string{},
	}
	start := time.Now()

	if err := a.ensureReady(ctx); err != nil {
		debug.Errors = append(debug.Errors, err.Error())
	}

	entityMentions, err := a.extractor.ExtractEntities(ctx, question)
	if err != nil {
		debug.Errors = append(debug.Errors, err.Error())
	}
	relationshipMentions, err := a.extractor.ExtractRelationshipVerbs(ctx, question)
	if err != nil {
		debug.Errors = append(debug.Errors, err.Error())
	}
	debug.ExtractedEntities = rag.MentionTexts(entityMentions)
	debug.ExtractedRelationships = rag.MentionTexts(relationshipMentions)

	debug.MatchedEntities = a.resolver.Resolve(ctx, question, entityMentions, rag.KindEntity)
	debug.MatchedRelationships = a.resolver.Resolve(ctx, question, relationshipMentions, rag.KindRelationship)

	outcome := a.executor.Execute(ctx, debug.MatchedEntities)
	debug.QueryType = outcome.Tier
	debug.ResultCount = len(outcome.Records)
	for _, f := range outcome.Faults {
		debug.Faults = append(debug.Faults, f.Error())
	}

	graphAnswer := a.synthesizer.Synthesize(ctx, question, outcome.Records, outcome.Tier)
	debug.GraphAnswer = graphAnswer

	answer := &Answer{
		Answer: graphAnswer,
		Tier:   outcome.Tier,
		Source: engine.SourceGraph,
	}

	if a.semantic != nil {
		semanticAnswer, err := a.semantic.Answer(ctx, question)
		if err != nil {
			debug.Errors = append(debug.Errors, fmt.Sprintf("semantic: %v", err))
		}
		debug.SemanticAnswer = semanticAnswer
		answer.Answer, answer.Source = a.combiner.Combine(ctx, question, graphAnswer, semanticAnswer)
	}

	answer.Debug = debug
	a.logger.Info("request %s answered: tier=%s source=%s records=%d faults=%d in %s",
		debug.RequestID, outcome.Tier, answer.Source, debug.ResultCount, len(debug.Faults), time.Since(start))
	return answer, nil
}

// ensureReady loads the persisted index, or builds one, the first time it is
// needed. A failure is retried on the next request. While another refresh
// holds the lock the request goes ahead with whatever is loaded.
func (a *Assistant) ensureReady(ctx context.Context) error {
	if a.ready.Load() {
		return nil
	}
	if !a.refreshMu.TryLock() {
		return errRefreshInProgress
	}
	defer a.refreshMu.Unlock()
	if a.ready.Load() {
		return nil
	}

	if _, err := a.refreshLocked(ctx, false); err != nil {
		a.logger.Error("index initialisation failed: %v", err)
		return fmt.Errorf("index initialisation: %w", err)
	}
	if a.semantic != nil && a.semantic.Len() == 0 {
		if _, err := a.semantic.Load(ctx); err != nil {
			a.logger.Warn("failed to load document index: %v", err)
		}
	}
	return nil
}

// RefreshStatus reports what RefreshIndex did.
type RefreshStatus struct {
	Action        string        `json:"action"`
	Entities      int           `json:"entities"`
	Relationships int           `json:"relationships"`
	IndexEntries  int           `json:"index_entries"`
	Duration      time.Duration `json:"duration"`
}

// RefreshIndex reads the graph names, then loads the persisted index or, when
// forceRebuild is set or nothing is persisted, rebuilds and persists it. The
// lexicon is swapped only once the index is in place, so a failed refresh
// leaves both at their previous state. Concurrent refreshes run one at a
// time; questions keep being answered from the previous snapshot meanwhile.
func (a *Assistant) RefreshIndex(ctx context.Context, forceRebuild bool) (*RefreshStatus, error) {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()
	return a.refreshLocked(ctx, forceRebuild)
}

func (a *Assistant) refreshLocked(ctx context.Context, forceRebuild bool) (*RefreshStatus, error) {
	start := time.Now()

	entities, types, err := a.readNames(ctx)
	if err != nil {
		return nil, err
	}

	action := ActionRebuilt
	if !forceRebuild {
		loaded, err := a.index.Load(ctx)
		if err != nil {
			a.logger.Warn("persisted index unusable, rebuilding: %v", err)
		}
		if loaded {
			action = ActionLoaded
		}
	}
	if action == ActionRebuilt {
		if err := a.index.Build(ctx, index.GraphEntries(entities, types)); err != nil {
			return nil, fmt.Errorf("failed to build index: %w", err)
		}
	}
	a.lexicon.Rebuild(entities, types)
	a.ready.Store(true)

	nEntities, nRelationships := a.lexicon.Len()
	status := &RefreshStatus{
		Action:        action,
		Entities:      nEntities,
		Relationships: nRelationships,
		IndexEntries:  a.index.Len(),
		Duration:      time.Since(start),
	}
	a.logger.Info("index %s: %d entities, %d relationship types, %d entries in %s",
		status.Action, status.Entities, status.Relationships, status.IndexEntries, status.Duration)
	return status, nil
}

// readNames reads every entity and relationship type, each call bounded by
// the query timeout.
func (a *Assistant) readNames(ctx context.Context) ([]rag.Entity, []rag.RelationshipType, error) {
	entities, err := withTimeout(ctx, a.queryTimeout, a.graph.Entities)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read entities: %w", err)
	}
	types, err := withTimeout(ctx, a.queryTimeout, a.graph.RelationshipTypes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read relationship types: %w", err)
	}
	return entities, types, nil
}

func withTimeout[T any](ctx context.Context, timeout time.Duration, read func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return read(ctx)
}

// IndexDocuments replaces the semantic corpus with what l loads and returns
// the number of chunks indexed.
func (a *Assistant) IndexDocuments(ctx context.Context, l rag.DocumentLoader) (int, error) {
	if a.semantic == nil {
		return 0, ErrSemanticDisabled
	}
	docs, err := l.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load documents: %w", err)
	}
	return a.semantic.IndexDocuments(ctx, docs)
}

// RefreshDocuments re-indexes every supported file under dir.
func (a *Assistant) RefreshDocuments(ctx context.Context, dir string) (int, error) {
	return a.IndexDocuments(ctx, loader.NewDirectoryLoader(dir, a.logger))
}

// IngestTriplets writes triplets to the graph, optionally clearing it first,
// and returns the resulting graph statistics. The lexicon and index are not
// touched; call RefreshIndex afterwards.
func (a *Assistant) IngestTriplets(ctx context.Context, triplets []rag.Triplet, clearFirst bool) (*rag.GraphStats, error) {
	if clearFirst {
		if err := a.graph.Clear(ctx); err != nil {
			return nil, fmt.Errorf("failed to clear graph: %w", err)
		}
		a.logger.Info("graph cleared")
	}

	n, err := a.graph.AddTriplets(ctx, triplets)
	if err != nil {
		return nil, fmt.Errorf("ingested %d of %d triplets: %w", n, len(triplets), err)
	}
	a.logger.Info("ingested %d triplets, skipped %d", n, len(triplets)-n)

	return a.graph.Stats(ctx)
}

// Stats summarises the graph and the in-memory indexes.
type Stats struct {
	Graph                *rag.GraphStats    `json:"graph"`
	PopularEntities      []rag.EntityDegree `json:"popular_entities"`
	LexiconEntities      int                `json:"lexicon_entities"`
	LexiconRelationships int                `json:"lexicon_relationships"`
	IndexEntries         int                `json:"index_entries"`
	IndexPersisted       bool               `json:"index_persisted"`
	DocumentChunks       int                `json:"document_chunks"`
}

// Stats reads graph statistics and the current index sizes.
func (a *Assistant) Stats(ctx context.Context) (*Stats, error) {
	gs, err := a.graph.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph stats: %w", err)
	}
	popular, err := a.graph.PopularEntities(ctx, 5)
	if err != nil {
		return nil, fmt.Errorf("failed to rank entities: %w", err)
	}

	s := &Stats{
		Graph:           gs,
		PopularEntities: popular,
		IndexEntries:    a.index.Len(),
	}
	s.LexiconEntities, s.LexiconRelationships = a.lexicon.Len()
	if s.IndexPersisted, err = a.index.Persisted(ctx); err != nil {
		a.logger.Warn("failed to check persisted index: %v", err)
	}
	if a.semantic != nil {
		s.DocumentChunks = a.semantic.Len()
	}
	return s, nil
}

// Connections lists entities reachable from name within depth hops.
func (a *Assistant) Connections(ctx context.Context, name string, depth int) ([]rag.Record, error) {
	return a.graph.Connections(ctx, name, depth)
}

// Schedule rebuilds the index on a cron spec, replacing any earlier
// schedule.
func (a *Assistant) Schedule(spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := a.RefreshIndex(context.Background(), true); err != nil {
			a.logger.Error("scheduled refresh failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}

	a.cronMu.Lock()
	old := a.cron
	a.cron = c
	a.cronMu.Unlock()

	if old != nil {
		<-old.Stop().Done()
	}
	c.Start()
	a.logger.Info("index refresh scheduled: %s", spec)
	return nil
}

// Stop halts scheduled refreshes and waits for a running one to finish.
func (a *Assistant) Stop() {
	a.cronMu.Lock()
	c := a.cron
	a.cron = nil
	a.cronMu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
