package search

import (
	"context"

	"github.com/fppclabs/opinionsearch/internal/store"
)

// Lexical ranks by BM25 score alone. It is the baseline the fusion
// strategies are measured against and the cheap path the pooled fusion
// falls back to.
type Lexical struct {
	lexical LexicalScorer
	cfg     Config
}

// NewLexical creates the plain lexical strategy.
func NewLexical(deps Deps, cfg Config) (*Lexical, error) {
	if deps.Lexical == nil {
		return nil, nilDependency("lexical")
	}
	return &Lexical{lexical: deps.Lexical, cfg: cfg.withDefaults()}, nil
}

// Name implements Strategy.
func (s *Lexical) Name() string { return NameLexical }

// Rank implements Strategy.
func (s *Lexical) Rank(ctx context.Context, query string, topK int) ([]string, error) {
	tokens := store.TokenizeLegal(query)
	if len(tokens) == 0 {
		return []string{}, nil
	}

	scores, err := s.lexical.ScoreAll(ctx, tokens)
	if err != nil {
		return nil, err
	}

	return rankIDs(topNPositive(scores, topK), topK), nil
}
