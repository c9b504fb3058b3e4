package search

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/fppclabs/opinionsearch/internal/embed"
	"github.com/fppclabs/opinionsearch/internal/store"
)

// WeightedRankFusion runs the lexical and semantic arms in parallel and
// merges them with weighted reciprocal rank fusion: each arm contributes
// weight/(k+rank) per document. Ranks are scale-free, so the two arms'
// incompatible score distributions never need normalizing.
type WeightedRankFusion struct {
	lexical  LexicalScorer
	vector   VectorScorer
	embedder embed.Embedder
	cfg      Config
	log      *slog.Logger
}

// NewWeightedRankFusion creates the RRF strategy. Both arms are
// mandatory: the strategy has no lexical-only degradation path.
func NewWeightedRankFusion(deps Deps, cfg Config) (*WeightedRankFusion, error) {
	if deps.Lexical == nil {
		return nil, nilDependency("lexical")
	}
	if deps.Vector == nil {
		return nil, nilDependency("vector")
	}
	if deps.Embedder == nil {
		return nil, nilDependency("embedder")
	}
	return &WeightedRankFusion{
		lexical:  deps.Lexical,
		vector:   deps.Vector,
		embedder: deps.Embedder,
		cfg:      cfg.withDefaults(),
		log:      deps.logger(),
	}, nil
}

// Name implements Strategy.
func (s *WeightedRankFusion) Name() string { return NameRRF }

// Rank implements Strategy.
func (s *WeightedRankFusion) Rank(ctx context.Context, query string, topK int) ([]string, error) {
	tokens := store.TokenizeLegal(query)
	if len(tokens) == 0 {
		return []string{}, nil
	}

	var (
		lexRanks map[string]int
		semRanks map[string]int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scores, err := s.lexical.ScoreAll(gctx, tokens)
		if err != nil {
			return err
		}
		lexRanks = positiveRanks(sortByScore(scores), s.cfg.PoolSize)
		return nil
	})
	g.Go(func() error {
		qv, err := s.embedder.Embed(gctx, query)
		if err != nil {
			return err
		}
		semRanks = allRanks(s.vector.TopN(qv, s.cfg.PoolSize))
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := make(map[string]float64, len(lexRanks)+len(semRanks))
	for id, rank := range lexRanks {
		fused[id] += s.cfg.RRFLexicalWeight / (s.cfg.RRFConstant + float64(rank))
	}
	for id, rank := range semRanks {
		fused[id] += s.cfg.RRFSemanticWeight / (s.cfg.RRFConstant + float64(rank))
	}

	s.log.Debug("rrf_fused",
		slog.Int("lexical_candidates", len(lexRanks)),
		slog.Int("semantic_candidates", len(semRanks)))

	return rankIDs(fused, topK), nil
}

// positiveRanks assigns 1-based ranks to the first limit positive-scored
// docs of an already-sorted list. Zero-scored docs carry no rank signal.
func positiveRanks(docs []store.ScoredDoc, limit int) map[string]int {
	ranks := make(map[string]int)
	for _, doc := range docs {
		if len(ranks) >= limit {
			break
		}
		if doc.Score <= 0 {
			continue
		}
		ranks[doc.ID] = len(ranks) + 1
	}
	return ranks
}

// allRanks assigns 1-based ranks to a sorted list. Cosine similarity can
// be legitimately zero or negative, so no positivity filter applies.
func allRanks(docs []store.ScoredDoc) map[string]int {
	ranks := make(map[string]int, len(docs))
	for i, doc := range docs {
		ranks[doc.ID] = i + 1
	}
	return ranks
}
