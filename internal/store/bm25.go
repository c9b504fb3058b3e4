package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	index "github.com/blevesearch/bleve_index_api"

	oserrors "github.com/fppclabs/opinionsearch/internal/errors"
)

const (
	// LegalTokenizerName is the name of the registered legal tokenizer.
	LegalTokenizerName = "legal_tokenizer"

	// LegalStopFilterName is the name of the registered stop word filter.
	LegalStopFilterName = "legal_stop"

	// LegalAnalyzerName is the name of the registered legal analyzer.
	LegalAnalyzerName = "legal_analyzer"

	contentField = "content"
)

func init() {
	_ = registry.RegisterTokenizer(LegalTokenizerName, legalTokenizerConstructor)
	_ = registry.RegisterTokenFilter(LegalStopFilterName, legalStopFilterConstructor)
}

// BleveLexicalIndex wraps bleve v2 for BM25 scoring over opinion full text.
// Once built it is read-only and safe for concurrent queries.
type BleveLexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	ids    map[string]struct{}
	closed bool
}

type bleveDocument struct {
	Content string `json:"content"`
}

// NewBleveLexicalIndex creates a new lexical index at path, or an
// in-memory index when path is empty (used by tests).
func NewBleveLexicalIndex(path string) (*BleveLexicalIndex, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, err
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, oserrors.Wrap(oserrors.ErrCodeIndexWrite, mkErr)
		}
		idx, err = bleve.New(path, indexMapping)
	}
	if err != nil {
		return nil, oserrors.New(oserrors.ErrCodeIndexWrite,
			fmt.Sprintf("failed to create lexical index: %v", err), err)
	}

	return &BleveLexicalIndex{
		index: idx,
		path:  path,
		ids:   make(map[string]struct{}),
	}, nil
}

// OpenBleveLexicalIndex opens an existing on-disk index and loads its
// document-id coverage.
func OpenBleveLexicalIndex(path string) (*BleveLexicalIndex, error) {
	if err := validateIndexIntegrity(path); err != nil {
		return nil, oserrors.New(oserrors.ErrCodeCorruptIndex,
			fmt.Sprintf("lexical index corrupt at %s: %v", path, err), err).
			WithSuggestion("delete the index directory and run `opinionsearch index`")
	}

	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		return nil, oserrors.New(oserrors.ErrCodeFileNotFound,
			"lexical index not found: "+path, err).
			WithSuggestion("run `opinionsearch index` to build indexes")
	}
	if err != nil {
		return nil, oserrors.New(oserrors.ErrCodeCorruptIndex,
			fmt.Sprintf("failed to open lexical index: %v", err), err)
	}

	b := &BleveLexicalIndex{index: idx, path: path}
	if err := b.loadIDs(); err != nil {
		_ = idx.Close()
		return nil, err
	}
	return b, nil
}

// validateIndexIntegrity checks a bleve index directory before opening.
// Catches partially written indexes left by an interrupted build.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}

	return nil
}

// createIndexMapping builds the bleve mapping with the legal analyzer and
// BM25 scoring.
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(LegalAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": LegalTokenizerName,
		"token_filters": []string{
			LegalStopFilterName,
		},
	})
	if err != nil {
		return nil, oserrors.New(oserrors.ErrCodeInternal,
			fmt.Sprintf("failed to add legal analyzer: %v", err), err)
	}

	indexMapping.DefaultAnalyzer = LegalAnalyzerName
	indexMapping.ScoringModel = index.BM25Scoring

	return indexMapping, nil
}

// Index adds documents in one batch.
func (b *BleveLexicalIndex) Index(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return oserrors.InternalError("lexical index is closed", nil)
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, bleveDocument{Content: doc.Content}); err != nil {
			return oserrors.New(oserrors.ErrCodeIndexWrite,
				fmt.Sprintf("failed to index document %s: %v", doc.ID, err), err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return oserrors.Wrap(oserrors.ErrCodeIndexWrite, err)
	}

	for _, doc := range docs {
		b.ids[doc.ID] = struct{}{}
	}
	return nil
}

// ScoreAll returns the BM25 score of every document matching at least one
// query token. Documents absent from the result score zero. An empty token
// sequence yields an empty map.
func (b *BleveLexicalIndex) ScoreAll(ctx context.Context, tokens []string) (map[string]float64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, oserrors.InternalError("lexical index is closed", nil)
	}
	if len(tokens) == 0 {
		return map[string]float64{}, nil
	}

	seen := make(map[string]struct{}, len(tokens))
	disjuncts := bleve.NewDisjunctionQuery()
	for _, token := range tokens {
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		tq := bleve.NewTermQuery(token)
		tq.SetField(contentField)
		disjuncts.AddQuery(tq)
	}

	req := bleve.NewSearchRequest(disjuncts)
	req.Size = len(b.ids)
	req.Fields = []string{}

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, oserrors.New(oserrors.ErrCodeSearchFailed,
			fmt.Sprintf("lexical query failed: %v", err), err)
	}

	scores := make(map[string]float64, len(result.Hits))
	for _, hit := range result.Hits {
		if hit.Score > 0 {
			scores[hit.ID] = hit.Score
		}
	}
	return scores, nil
}

// Contains reports whether id is part of the indexed corpus.
func (b *BleveLexicalIndex) Contains(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.ids[id]
	return ok
}

// DocCount returns the corpus size.
func (b *BleveLexicalIndex) DocCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.ids)
}

// loadIDs populates the id set from an opened index.
func (b *BleveLexicalIndex) loadIDs() error {
	docCount, err := b.index.DocCount()
	if err != nil {
		return oserrors.Wrap(oserrors.ErrCodeCorruptIndex, err)
	}

	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(docCount)
	req.Fields = []string{}

	result, err := b.index.Search(req)
	if err != nil {
		return oserrors.Wrap(oserrors.ErrCodeCorruptIndex, err)
	}

	b.ids = make(map[string]struct{}, len(result.Hits))
	for _, hit := range result.Hits {
		b.ids[hit.ID] = struct{}{}
	}

	slog.Debug("lexical_index_opened",
		slog.String("path", b.path),
		slog.Int("documents", len(b.ids)))
	return nil
}

// Close closes the underlying index.
func (b *BleveLexicalIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

// legalTokenizerConstructor creates the legal tokenizer for bleve.
func legalTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &bleveLegalTokenizer{}, nil
}

// bleveLegalTokenizer implements analysis.Tokenizer with the legal
// tokenization rules (lowercase, subsection merging).
type bleveLegalTokenizer struct{}

func (t *bleveLegalTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := splitLegal(text)

	result := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0

	for _, token := range tokens {
		// Best-effort offsets; scoring only depends on terms and positions.
		start := strings.Index(strings.ToLower(text[offset:]), token)
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(token)

		result = append(result, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}

	return result
}

// legalStopFilterConstructor creates the legal stop word filter for bleve.
func legalStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &bleveLegalStopFilter{stopWords: legalStopWordSet}, nil
}

type bleveLegalStopFilter struct {
	stopWords map[string]struct{}
}

func (f *bleveLegalStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		if _, isStop := f.stopWords[string(token.Term)]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
