package cmd

import (
	"log/slog"
	"path/filepath"

	"github.com/fppclabs/opinionsearch/internal/citation"
	"github.com/fppclabs/opinionsearch/internal/config"
	"github.com/fppclabs/opinionsearch/internal/embed"
	"github.com/fppclabs/opinionsearch/internal/search"
	"github.com/fppclabs/opinionsearch/internal/store"
)

// Index file names under paths.index_dir.
const (
	lexicalIndexName  = "lexical.bleve"
	vectorIndexName   = "vectors.gob"
	citationIndexName = "citations.gob"
)

func lexicalIndexPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.IndexDir, lexicalIndexName)
}

func vectorIndexPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.IndexDir, vectorIndexName)
}

func citationIndexPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.IndexDir, citationIndexName)
}

// engine bundles the opened indexes and collaborators a query needs.
type engine struct {
	lexical   *store.BleveLexicalIndex
	vector    *store.MultiVectorIndex
	citations *citation.Index
	embedder  embed.Embedder
}

// openEngine opens the built indexes. The vector index and embedder are
// optional: withSemantic=false opens only what the lexical-side
// strategies need.
func openEngine(cfg *config.Config, withSemantic bool) (*engine, error) {
	lexical, err := store.OpenBleveLexicalIndex(lexicalIndexPath(cfg))
	if err != nil {
		return nil, err
	}

	citations, err := citation.Load(citationIndexPath(cfg))
	if err != nil {
		lexical.Close()
		return nil, err
	}

	eng := &engine{lexical: lexical, citations: citations}
	if !withSemantic {
		return eng, nil
	}

	vector, err := store.LoadMultiVectorIndex(vectorIndexPath(cfg))
	if err != nil {
		eng.close()
		return nil, err
	}
	eng.vector = vector

	embedder, err := newEmbedder(cfg)
	if err != nil {
		eng.close()
		return nil, err
	}
	eng.embedder = embedder

	return eng, nil
}

func newEmbedder(cfg *config.Config) (embed.Embedder, error) {
	return embed.New(embed.Options{
		Provider:   cfg.Embeddings.Provider,
		Model:      cfg.Embeddings.Model,
		BaseURL:    cfg.Embeddings.BaseURL,
		Dimensions: cfg.Embeddings.Dimensions,
		CacheSize:  cfg.Embeddings.CacheSize,
	})
}

func (e *engine) close() {
	if e.embedder != nil {
		_ = e.embedder.Close()
	}
	if e.lexical != nil {
		_ = e.lexical.Close()
	}
}

// deps assembles the strategy dependency set.
func (e *engine) deps() search.Deps {
	d := search.Deps{
		Lexical:   e.lexical,
		Citations: e.citations,
		Embedder:  e.embedder,
		Logger:    slog.Default(),
	}
	if e.vector != nil {
		d.Vector = e.vector
	}
	return d
}

// searchConfig maps the file config onto the fusion constants.
func searchConfig(cfg *config.Config) search.Config {
	return search.Config{
		PoolSize:             cfg.Search.PoolSize,
		CiteBoostWeight:      cfg.Search.CiteBoostWeight,
		TopicBoostWeight:     cfg.Search.TopicBoostWeight,
		RRFConstant:          cfg.Search.RRFConstant,
		RRFLexicalWeight:     cfg.Search.RRFLexicalWeight,
		RRFSemanticWeight:    cfg.Search.RRFSemanticWeight,
		BreakerThreshold:     cfg.Search.BreakerThreshold,
		FusionLexicalWeight:  cfg.Search.FusionLexicalWeight,
		FusionSemanticWeight: cfg.Search.FusionSemanticWeight,
		PooledLexicalWeight:  cfg.Search.PooledLexicalWeight,
		PooledSemanticWeight: cfg.Search.PooledSemanticWeight,
	}
}

// strategyNeedsSemantic reports whether a strategy can invoke the
// embedding and vector arm.
func strategyNeedsSemantic(name string) bool {
	switch name {
	case search.NameLexical, search.NameCitationBoost:
		return false
	}
	return true
}
