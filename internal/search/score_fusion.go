package search

import (
	"context"
	"log/slog"
	"math"

	"github.com/fppclabs/opinionsearch/internal/embed"
	"github.com/fppclabs/opinionsearch/internal/store"
)

// ScoreFusion blends min-max-normalized lexical and semantic scores over
// the union of each arm's top candidates, guarded by a lexical circuit
// breaker: when the best lexical score dominates the runner-up by
// BreakerThreshold or more, the query is treated as navigational and the
// embedding call is skipped entirely.
type ScoreFusion struct {
	lexical  LexicalScorer
	vector   VectorScorer
	embedder embed.Embedder
	cfg      Config
	log      *slog.Logger
}

// NewScoreFusion creates the score-fusion strategy. A nil Embedder or
// Vector is accepted so the index can run degraded; the semantic arm
// then fails per query when the breaker does not fire.
func NewScoreFusion(deps Deps, cfg Config) (*ScoreFusion, error) {
	if deps.Lexical == nil {
		return nil, nilDependency("lexical")
	}
	return &ScoreFusion{
		lexical:  deps.Lexical,
		vector:   deps.Vector,
		embedder: deps.Embedder,
		cfg:      cfg.withDefaults(),
		log:      deps.logger(),
	}, nil
}

// Name implements Strategy.
func (s *ScoreFusion) Name() string { return NameScoreFusion }

// Rank implements Strategy.
func (s *ScoreFusion) Rank(ctx context.Context, query string, topK int) ([]string, error) {
	tokens := store.TokenizeLegal(query)
	if len(tokens) == 0 {
		return []string{}, nil
	}

	scores, err := s.lexical.ScoreAll(ctx, tokens)
	if err != nil {
		return nil, err
	}
	lexPool := topNPositive(scores, s.cfg.PoolSize)
	if len(lexPool) == 0 {
		return []string{}, nil
	}

	if ratio := breakerRatio(lexPool); ratio >= s.cfg.BreakerThreshold {
		s.log.Debug("circuit_breaker_fired",
			slog.String("strategy", s.Name()),
			slog.Float64("ratio", roundedRatio(ratio)))
		return rankIDs(lexPool, topK), nil
	}

	semPool, err := s.semanticPool(ctx, query)
	if err != nil {
		return nil, err
	}

	lexNorm := minMaxNormalize(lexPool)
	semNorm := minMaxNormalize(semPool)

	fused := make(map[string]float64, len(lexNorm)+len(semNorm))
	for id, v := range lexNorm {
		fused[id] += s.cfg.FusionLexicalWeight * v
	}
	for id, v := range semNorm {
		fused[id] += s.cfg.FusionSemanticWeight * v
	}

	return rankIDs(fused, topK), nil
}

func (s *ScoreFusion) semanticPool(ctx context.Context, query string) (map[string]float64, error) {
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
	top := s.vector.TopN(qv, s.cfg.PoolSize)
	pool := make(map[string]float64, len(top))
	for _, doc := range top {
		pool[doc.ID] = doc.Score
	}
	return pool, nil
}

// roundedRatio keeps +Inf out of the structured log output.
func roundedRatio(ratio float64) float64 {
	if math.IsInf(ratio, 1) {
		return -1
	}
	return ratio
}
