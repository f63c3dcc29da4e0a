package engine

import (
	"context"

	"github.com/smallnest/kgqa/log"
	"github.com/smallnest/kgqa/rag"
	"github.com/smallnest/kgqa/rag/index"
)

// Search widths per resolution path.
const (
	EntitySearchK       = 3
	RelationshipSearchK = 2
	QueryContextSearchK = 5
)

// Lexicon is the exact-match lookup the resolver consults first.
// *lexicon.Cache satisfies it.
type Lexicon interface {
	Lookup(kind rag.Kind, text string) (string, bool)
}

// Searcher is the nearest-neighbour lookup used when the lexicon misses.
// *index.Index satisfies it.
type Searcher interface {
	QueryKind(ctx context.Context, text string, k int, kind rag.Kind) ([]index.Hit, error)
}

// EntityResolver maps mentions onto canonical graph names.
type EntityResolver struct {
	lexicon  Lexicon
	searcher Searcher
	minScore float64
	logger   log.Logger
}

// ResolverOptions configures an EntityResolver
type ResolverOptions struct {
	Lexicon  Lexicon
	Searcher Searcher
	// MinScore drops embedding hits scoring below it. Zero disables the
	// threshold, which keeps every top-k hit.
	MinScore float64
	Logger   log.Logger
}

// NewEntityResolver creates a resolver.
func NewEntityResolver(opts ResolverOptions) *EntityResolver {
	return &EntityResolver{
		lexicon:  opts.Lexicon,
		searcher: opts.Searcher,
		minScore: opts.MinScore,
		logger:   log.OrDefault(opts.Logger),
	}
}

// Resolve matches each mention in order, first against the lexicon and then
// against the embedding index. For relationships, when no mention matched at
// all, the whole question is searched and every relationship hit is kept.
// Index failures count as misses.
func (r *EntityResolver) Resolve(ctx context.Context, question string, mentions []rag.Mention, kind rag.Kind) []rag.MatchResult {
	k := EntitySearchK
	if kind == rag.KindRelationship {
		k = RelationshipSearchK
	}

	matches := []rag.MatchResult{}
	for _, m := range mentions {
		if name, ok := r.lexicon.Lookup(kind, m.Text); ok {
			matches = append(matches, rag.MatchResult{
				Original:   m.Text,
				Matched:    name,
				Kind:       kind,
				Confidence: rag.ConfidenceExact,
			})
			continue
		}

		hits := r.search(ctx, m.Text, k, kind)
		if len(hits) > 0 {
			matches = append(matches, rag.MatchResult{
				Original:   m.Text,
				Matched:    hits[0].Entry.Name,
				Kind:       kind,
				Confidence: rag.ConfidenceEmbedding,
			})
		}
	}

	if kind == rag.KindRelationship && len(matches) == 0 {
		for _, h := range r.search(ctx, question, QueryContextSearchK, kind) {
			matches = append(matches, rag.MatchResult{
				Original:   rag.QueryContextOrigin,
				Matched:    h.Entry.Name,
				Kind:       kind,
				Confidence: rag.ConfidenceQueryContext,
			})
		}
	}

	r.logger.Debug("resolved %d/%d %s mentions", len(matches), len(mentions), kind)
	return matches
}

func (r *EntityResolver) search(ctx context.Context, text string, k int, kind rag.Kind) []index.Hit {
	if r.searcher == nil {
		return nil
	}
	hits, err := r.searcher.QueryKind(ctx, text, k, kind)
	if err != nil {
		r.logger.Warn("index search for %q failed: %v", text, err)
		return nil
	}
	if r.minScore <= 0 {
		return hits
	}
	kept := hits[:0]
	for _, h := range hits {
		if h.Score >= r.minScore {
			kept = append(kept, h)
		}
	}
	return kept
}
