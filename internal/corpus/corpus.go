// Package corpus loads extracted FPPC opinion files and projects them
// into the shapes the lexical, vector, and citation indexes consume.
package corpus

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fppclabs/opinionsearch/internal/citation"
	"github.com/fppclabs/opinionsearch/internal/store"

	oserrors "github.com/fppclabs/opinionsearch/internal/errors"
)

// MinTextLen is the shortest field text worth indexing. Shorter values
// are boilerplate fragments that only add noise to an embedding field.
const MinTextLen = 20

// Opinion is one extracted opinion file.
type Opinion struct {
	ID             string         `json:"id"`
	Content        Content        `json:"content"`
	Embedding      Embedding      `json:"embedding"`
	Sections       Sections       `json:"sections"`
	Citations      Citations      `json:"citations"`
	Classification Classification `json:"classification"`
}

// Content holds the full opinion text.
type Content struct {
	FullText string `json:"full_text"`
}

// Embedding holds the curated embedding text, when extraction produced
// one.
type Embedding struct {
	QAText string `json:"qa_text"`
}

// Sections holds the structural segments the extractor identified.
type Sections struct {
	Facts      string `json:"facts"`
	Analysis   string `json:"analysis"`
	Conclusion string `json:"conclusion"`
}

// Citations holds the statutes and regulations the opinion analyzes.
type Citations struct {
	GovernmentCode []string `json:"government_code"`
	Regulations    []string `json:"regulations"`
}

// Classification holds the extractor's topic labels.
type Classification struct {
	TopicPrimary string `json:"topic_primary"`
}

// Load walks dataDir's per-year subdirectories in sorted order and
// parses every opinion JSON file. Unreadable or malformed files are
// skipped with a warning so one bad extraction does not sink a corpus
// build.
func Load(dataDir string, log *slog.Logger) ([]Opinion, error) {
	if log == nil {
		log = slog.Default()
	}

	years, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, oserrors.New(oserrors.ErrCodeFileNotFound,
			"corpus directory not found: "+dataDir, err).
			WithSuggestion("set paths.data_dir to the extracted opinions directory")
	}

	var opinions []Opinion
	for _, year := range sortedDirs(years) {
		yearPath := filepath.Join(dataDir, year)
		entries, err := os.ReadDir(yearPath)
		if err != nil {
			return nil, oserrors.IOError("reading corpus year directory "+yearPath, err)
		}

		for _, entry := range sortedJSONFiles(entries) {
			path := filepath.Join(yearPath, entry)
			op, err := loadOpinion(path)
			if err != nil {
				log.Warn("skipping unreadable opinion file",
					slog.String("path", path),
					slog.Any("error", err))
				continue
			}
			if op.ID == "" {
				op.ID = strings.TrimSuffix(entry, ".json")
			}
			opinions = append(opinions, op)
		}
	}

	log.Info("corpus loaded",
		slog.String("data_dir", dataDir),
		slog.Int("opinions", len(opinions)))
	return opinions, nil
}

func loadOpinion(path string) (Opinion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Opinion{}, err
	}
	var op Opinion
	if err := json.Unmarshal(data, &op); err != nil {
		return Opinion{}, err
	}
	return op, nil
}

func sortedDirs(entries []os.DirEntry) []string {
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func sortedJSONFiles(entries []os.DirEntry) []string {
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// LexicalText returns the text the lexical index scores: the full
// opinion text.
func (o Opinion) LexicalText() string {
	return o.Content.FullText
}

// QAText returns the master embedding text. The curated qa_text is
// preferred; opinions where extraction produced nothing usable fall back
// to the full text so master-field coverage stays complete.
func (o Opinion) QAText() string {
	if len(o.Embedding.QAText) >= MinTextLen {
		return o.Embedding.QAText
	}
	return o.Content.FullText
}

// FactsText returns the facts section, or empty when it is too short to
// embed.
func (o Opinion) FactsText() string {
	if len(o.Sections.Facts) >= MinTextLen {
		return o.Sections.Facts
	}
	return ""
}

// AnalysisText returns the analysis and conclusion sections joined, or
// whichever one is long enough to embed on its own.
func (o Opinion) AnalysisText() string {
	analysis := o.Sections.Analysis
	conclusion := o.Sections.Conclusion

	switch {
	case len(analysis) >= MinTextLen && len(conclusion) >= MinTextLen:
		return analysis + "\n\n" + conclusion
	case len(analysis) >= MinTextLen:
		return analysis
	case len(conclusion) >= MinTextLen:
		return conclusion
	}
	return ""
}

// Documents projects the corpus into lexical index documents.
func Documents(opinions []Opinion) []store.Document {
	docs := make([]store.Document, len(opinions))
	for i, op := range opinions {
		docs[i] = store.Document{ID: op.ID, Content: op.LexicalText()}
	}
	return docs
}

// DocumentCitations projects the corpus into citation index input.
func DocumentCitations(opinions []Opinion) []citation.DocumentCitations {
	docs := make([]citation.DocumentCitations, len(opinions))
	for i, op := range opinions {
		docs[i] = citation.DocumentCitations{
			ID:             op.ID,
			GovernmentCode: op.Citations.GovernmentCode,
			Regulations:    op.Citations.Regulations,
			Topic:          op.Classification.TopicPrimary,
		}
	}
	return docs
}
