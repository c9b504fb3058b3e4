package search

import (
	"context"
	"log/slog"

	"github.com/fppclabs/opinionsearch/internal/citation"
	"github.com/fppclabs/opinionsearch/internal/embed"
	"github.com/fppclabs/opinionsearch/internal/store"
)

// CitationPooledFusion narrows the candidate pool to opinions that cite
// the statutes or regulations named in the query, unioned with the
// lexical top candidates, then blends min-max-normalized lexical and
// semantic scores within that pool. Queries with no extractable citation
// fall through to plain lexical ranking and skip embedding entirely.
type CitationPooledFusion struct {
	lexical   LexicalScorer
	vector    VectorScorer
	citations *citation.Index
	embedder  embed.Embedder
	cfg       Config
	log       *slog.Logger
}

// NewCitationPooledFusion creates the citation-pooled strategy. A nil
// Embedder or Vector is accepted; the semantic arm then fails per query
// when a citation pool is built and the breaker does not fire.
func NewCitationPooledFusion(deps Deps, cfg Config) (*CitationPooledFusion, error) {
	if deps.Lexical == nil {
		return nil, nilDependency("lexical")
	}
	if deps.Citations == nil {
		return nil, nilDependency("citations")
	}
	return &CitationPooledFusion{
		lexical:   deps.Lexical,
		vector:    deps.Vector,
		citations: deps.Citations,
		embedder:  deps.Embedder,
		cfg:       cfg.withDefaults(),
		log:       deps.logger(),
	}, nil
}

// Name implements Strategy.
func (s *CitationPooledFusion) Name() string { return NameCitationFusion }

// Rank implements Strategy.
func (s *CitationPooledFusion) Rank(ctx context.Context, query string, topK int) ([]string, error) {
	tokens := store.TokenizeLegal(query)
	if len(tokens) == 0 {
		return []string{}, nil
	}

	scores, err := s.lexical.ScoreAll(ctx, tokens)
	if err != nil {
		return nil, err
	}

	parsed := citation.Parse(query)
	if !parsed.HasCitations() {
		return rankIDs(topNPositive(scores, topK), topK), nil
	}

	pool := s.citationPool(parsed)
	for id := range topNPositive(scores, s.cfg.PoolSize) {
		pool[id] = true
	}
	if len(pool) == 0 {
		return []string{}, nil
	}

	// Pool members without a lexical hit stay at 0.0 so citation-only
	// candidates survive into the semantic arm.
	lexPool := make(map[string]float64, len(pool))
	for id := range pool {
		lexPool[id] = scores[id]
	}

	if ratio := breakerRatio(lexPool); ratio >= s.cfg.BreakerThreshold {
		s.log.Debug("circuit_breaker_fired",
			slog.String("strategy", s.Name()),
			slog.Float64("ratio", roundedRatio(ratio)),
			slog.Int("pool_size", len(pool)))
		return rankIDs(lexPool, topK), nil
	}

	semPool, err := s.semanticPool(ctx, query, pool)
	if err != nil {
		return nil, err
	}

	lexNorm := minMaxNormalize(lexPool)
	semNorm := minMaxNormalize(semPool)

	fused := make(map[string]float64, len(pool))
	for id, v := range lexNorm {
		fused[id] += s.cfg.PooledLexicalWeight * v
	}
	for id, v := range semNorm {
		fused[id] += s.cfg.PooledSemanticWeight * v
	}

	return rankIDs(fused, topK), nil
}

// citationPool gathers every opinion citing a query statute at the exact
// or base level, or a query regulation exactly (base-level only when the
// query names a decimal subsection).
func (s *CitationPooledFusion) citationPool(parsed citation.ParsedQuery) citation.IDSet {
	pool := make(citation.IDSet)
	for _, ref := range parsed.GovCode {
		for id := range s.citations.GCExact[ref.Raw] {
			pool[id] = true
		}
		for id := range s.citations.GCBase[ref.Base] {
			pool[id] = true
		}
	}
	for _, ref := range parsed.Regulations {
		for id := range s.citations.RegExact[ref.Raw] {
			pool[id] = true
		}
		if ref.Subsection != "" {
			for id := range s.citations.RegExact[ref.Base] {
				pool[id] = true
			}
		}
	}
	return pool
}

func (s *CitationPooledFusion) semanticPool(ctx context.Context, query string, pool citation.IDSet) (map[string]float64, error) {
	if s.embedder == nil {
		return nil, nilDependency("embedder")
	}
	if s.vector == nil {
		return nil, nilDependency("vector")
	}
	qv, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(pool))
	for id := range pool {
		ids = append(ids, id)
	}
	return s.vector.ScoreSubset(qv, ids), nil
}
