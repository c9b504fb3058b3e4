package search

import (
	"context"
	"log/slog"

	"github.com/fppclabs/opinionsearch/internal/citation"
	"github.com/fppclabs/opinionsearch/internal/store"
)

// CitationBoost adds IDF-weighted boosts to full-corpus lexical scores
// for opinions whose structured citation metadata matches statutes or
// regulations extracted from the query, plus a small topic boost when the
// query's topic can be confidently inferred. No embedding call is made.
//
// BM25 treats statute numbers like any other token, so common statutes
// are non-discriminative; the structured citation fields record which
// statutes an opinion analyzes, and IDF weighting makes rare citations
// count more.
type CitationBoost struct {
	lexical   LexicalScorer
	citations *citation.Index
	cfg       Config
	log       *slog.Logger
}

// NewCitationBoost creates the citation-boost strategy.
func NewCitationBoost(deps Deps, cfg Config) (*CitationBoost, error) {
	if deps.Lexical == nil {
		return nil, nilDependency("lexical")
	}
	if deps.Citations == nil {
		return nil, nilDependency("citations")
	}
	return &CitationBoost{
		lexical:   deps.Lexical,
		citations: deps.Citations,
		cfg:       cfg.withDefaults(),
		log:       deps.logger(),
	}, nil
}

// Name implements Strategy.
func (s *CitationBoost) Name() string { return NameCitationBoost }

// Rank implements Strategy.
func (s *CitationBoost) Rank(ctx context.Context, query string, topK int) ([]string, error) {
	tokens := store.TokenizeLegal(query)
	if len(tokens) == 0 {
		return []string{}, nil
	}

	scores, err := s.lexical.ScoreAll(ctx, tokens)
	if err != nil {
		return nil, err
	}
	maxLex := maxValue(scores)
	if maxLex <= 0 {
		return []string{}, nil
	}

	parsed := citation.Parse(query)

	citeBoost := make(map[string]float64)
	if parsed.HasCitations() {
		s.boostGovCode(parsed.GovCode, citeBoost)
		s.boostRegulations(parsed.Regulations, citeBoost)
	}

	topicBoost := make(map[string]float64)
	if topic := citation.InferTopic(query, parsed); topic != "" {
		for id := range s.citations.Topic[topic] {
			if s.lexical.Contains(id) {
				topicBoost[id] = 1.0
			}
		}
		s.log.Debug("topic_inferred",
			slog.String("topic", topic),
			slog.Int("documents", len(topicBoost)))
	}

	combined := make(map[string]float64, len(scores)+len(citeBoost)+len(topicBoost))
	for id, v := range scores {
		combined[id] = v
	}
	for id, b := range citeBoost {
		combined[id] += maxLex * s.cfg.CiteBoostWeight * b
	}
	for id, b := range topicBoost {
		combined[id] += maxLex * s.cfg.TopicBoostWeight * b
	}

	return rankIDs(topNPositive(combined, topK), topK), nil
}

// boostGovCode applies the two-tier statute boost: exact subsection match
// weighted 1.0, base-number match weighted 0.2 for opinions not already
// exact-matched.
func (s *CitationBoost) boostGovCode(refs []citation.Reference, boost map[string]float64) {
	for _, ref := range refs {
		exact := s.citations.GCExact[ref.Raw]
		if len(exact) > 0 {
			idf := s.citations.IDF(len(exact))
			for id := range exact {
				if s.lexical.Contains(id) {
					boost[id] += 1.0 * idf
				}
			}
		}

		base := s.citations.GCBase[ref.Base]
		if len(base) > 0 {
			baseIDF := s.citations.IDF(len(base))
			for id := range base {
				if !exact[id] && s.lexical.Contains(id) {
					boost[id] += 0.2 * baseIDF
				}
			}
		}

		// Bare-base exact credit. Raw equals Base whenever the subsection
		// is empty, so this tier never adds anything; it stays to keep the
		// boost definition intact rather than silently rebalancing it.
		if ref.Subsection == "" && ref.Base != ref.Raw {
			baseExact := s.citations.GCExact[ref.Base]
			if len(baseExact) > 0 {
				baseExactIDF := s.citations.IDF(len(baseExact))
				for id := range baseExact {
					if !exact[id] && s.lexical.Contains(id) {
						boost[id] += 1.0 * baseExactIDF
					}
				}
			}
		}
	}
}

// boostRegulations applies the regulation boost: exact match weighted
// 1.0; when the query cites a decimal subsection, the base regulation
// gets the 0.2 fallback tier.
func (s *CitationBoost) boostRegulations(refs []citation.Reference, boost map[string]float64) {
	for _, ref := range refs {
		exact := s.citations.RegExact[ref.Raw]
		if len(exact) > 0 {
			idf := s.citations.IDF(len(exact))
			for id := range exact {
				if s.lexical.Contains(id) {
					boost[id] += 1.0 * idf
				}
			}
		}

		if ref.Subsection != "" {
			base := s.citations.RegExact[ref.Base]
			if len(base) > 0 {
				baseIDF := s.citations.IDF(len(base))
				for id := range base {
					if !exact[id] && s.lexical.Contains(id) {
						boost[id] += 0.2 * baseIDF
					}
				}
			}
		}
	}
}
