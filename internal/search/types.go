// Package search implements the retrieval fusion strategies that combine
// lexical scores, citation matches, and semantic similarity into one
// ranked opinion list.
package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fppclabs/opinionsearch/internal/citation"
	"github.com/fppclabs/opinionsearch/internal/embed"
	"github.com/fppclabs/opinionsearch/internal/store"

	oserrors "github.com/fppclabs/opinionsearch/internal/errors"
)

// DefaultTopK is the default ranked-list size.
const DefaultTopK = 20

// Strategy ranks opinions for a query. Implementations are safe for
// concurrent use once constructed; all index state is read-only.
type Strategy interface {
	// Name returns the strategy identifier used by the CLI and the
	// evaluation scorecard.
	Name() string

	// Rank returns up to topK opinion ids, best first. A query with no
	// extractable tokens yields an empty list, never an error.
	Rank(ctx context.Context, query string, topK int) ([]string, error)
}

// LexicalScorer is the term-statistics ranking model over the full corpus.
type LexicalScorer interface {
	// ScoreAll returns the score of every document matching at least one
	// token; absent documents score zero.
	ScoreAll(ctx context.Context, tokens []string) (map[string]float64, error)

	// Contains reports whether id is part of the indexed corpus.
	Contains(id string) bool

	// DocCount returns the corpus size.
	DocCount() int
}

// VectorScorer is the multi-field cosine-similarity model.
type VectorScorer interface {
	// TopN returns the n best max-pooled similarities, score descending
	// with id ascending on ties.
	TopN(query []float32, n int) []store.ScoredDoc

	// ScoreSubset returns max-pooled similarity per requested id, 0.0 for
	// ids outside coverage.
	ScoreSubset(query []float32, ids []string) map[string]float64
}

// Deps carries the collaborators a strategy needs. Which fields are
// required depends on the strategy; constructors validate their own.
type Deps struct {
	Lexical   LexicalScorer
	Vector    VectorScorer
	Citations *citation.Index
	Embedder  embed.Embedder
	Logger    *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func nilDependency(name string) error {
	return oserrors.ValidationError("nil dependency: "+name, nil)
}

// Config holds the fusion constants. Zero values are replaced with the
// defaults from DefaultConfig by each constructor.
type Config struct {
	// PoolSize bounds each arm's candidate pool.
	PoolSize int

	// CiteBoostWeight scales the IDF citation boost by the max lexical
	// score.
	CiteBoostWeight float64
	// TopicBoostWeight scales the topic boost by the max lexical score.
	TopicBoostWeight float64

	// RRFConstant is the rank offset k in weight/(k+rank).
	RRFConstant float64
	// RRFLexicalWeight and RRFSemanticWeight weight the two RRF arms.
	RRFLexicalWeight  float64
	RRFSemanticWeight float64

	// BreakerThreshold is the top1/top2 lexical ratio at or above which
	// the semantic arm is skipped.
	BreakerThreshold float64

	// FusionLexicalWeight and FusionSemanticWeight combine normalized
	// scores in ScoreFusion.
	FusionLexicalWeight  float64
	FusionSemanticWeight float64

	// PooledLexicalWeight and PooledSemanticWeight combine normalized
	// scores in CitationPooledFusion. Semantic discrimination dominates
	// within a citation-narrowed pool.
	PooledLexicalWeight  float64
	PooledSemanticWeight float64
}

// DefaultConfig returns the tuned fusion constants.
func DefaultConfig() Config {
	return Config{
		PoolSize:             100,
		CiteBoostWeight:      0.30,
		TopicBoostWeight:     0.03,
		RRFConstant:          60,
		RRFLexicalWeight:     0.7,
		RRFSemanticWeight:    0.3,
		BreakerThreshold:     1.3,
		FusionLexicalWeight:  0.5,
		FusionSemanticWeight: 0.5,
		PooledLexicalWeight:  0.4,
		PooledSemanticWeight: 0.6,
	}
}

// withDefaults fills zero-valued fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.PoolSize <= 0 {
		c.PoolSize = def.PoolSize
	}
	if c.CiteBoostWeight == 0 {
		c.CiteBoostWeight = def.CiteBoostWeight
	}
	if c.TopicBoostWeight == 0 {
		c.TopicBoostWeight = def.TopicBoostWeight
	}
	if c.RRFConstant == 0 {
		c.RRFConstant = def.RRFConstant
	}
	if c.RRFLexicalWeight == 0 {
		c.RRFLexicalWeight = def.RRFLexicalWeight
	}
	if c.RRFSemanticWeight == 0 {
		c.RRFSemanticWeight = def.RRFSemanticWeight
	}
	if c.BreakerThreshold == 0 {
		c.BreakerThreshold = def.BreakerThreshold
	}
	if c.FusionLexicalWeight == 0 {
		c.FusionLexicalWeight = def.FusionLexicalWeight
	}
	if c.FusionSemanticWeight == 0 {
		c.FusionSemanticWeight = def.FusionSemanticWeight
	}
	if c.PooledLexicalWeight == 0 {
		c.PooledLexicalWeight = def.PooledLexicalWeight
	}
	if c.PooledSemanticWeight == 0 {
		c.PooledSemanticWeight = def.PooledSemanticWeight
	}
	return c
}

// Strategy names accepted by NewStrategy.
const (
	NameLexical        = "lexical"
	NameCitationBoost  = "citation-boost"
	NameRRF            = "rrf"
	NameScoreFusion    = "score-fusion"
	NameCitationFusion = "citation-fusion"
)

// NewStrategy constructs a strategy by name.
func NewStrategy(name string, deps Deps, cfg Config) (Strategy, error) {
	switch name {
	case NameLexical:
		return NewLexical(deps, cfg)
	case NameCitationBoost:
		return NewCitationBoost(deps, cfg)
	case NameRRF:
		return NewWeightedRankFusion(deps, cfg)
	case NameScoreFusion:
		return NewScoreFusion(deps, cfg)
	case NameCitationFusion:
		return NewCitationPooledFusion(deps, cfg)
	default:
		return nil, oserrors.ValidationError(
			fmt.Sprintf("unknown strategy %q", name), nil)
	}
}
