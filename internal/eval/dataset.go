package eval

import (
	"encoding/json"
	"log/slog"
	"os"

	oserrors "github.com/fppclabs/opinionsearch/internal/errors"
)

// Judgment is one graded relevance label for a query.
type Judgment struct {
	OpinionID string `json:"opinion_id"`
	Score     int    `json:"score"`
}

// Query is one evaluation query with its judgments. Type and Topic drive
// the scorecard breakdowns.
type Query struct {
	ID                 string     `json:"id"`
	Text               string     `json:"text"`
	Type               string     `json:"type"`
	Topic              string     `json:"topic"`
	RelevanceJudgments []Judgment `json:"relevance_judgments"`
}

// Judgments flattens the judgment list into a lookup map.
func (q Query) Judgments() Judgments {
	out := make(Judgments, len(q.RelevanceJudgments))
	for _, j := range q.RelevanceJudgments {
		out[j.OpinionID] = j.Score
	}
	return out
}

// Dataset is the evaluation query set.
type Dataset struct {
	Queries []Query `json:"queries"`
}

// LoadDataset reads a dataset file, dropping queries with no judgments.
// An unjudged query cannot be scored, so it is skipped with a warning
// rather than failing the whole run.
func LoadDataset(path string, log *slog.Logger) (*Dataset, error) {
	if log == nil {
		log = slog.Default()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, oserrors.New(oserrors.ErrCodeFileNotFound,
			"eval dataset not found: "+path, err)
	}

	var ds Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, oserrors.New(oserrors.ErrCodeDatasetInvalid,
			"eval dataset is not valid JSON: "+path, err)
	}

	kept := ds.Queries[:0]
	for _, q := range ds.Queries {
		if len(q.RelevanceJudgments) == 0 {
			log.Warn("skipping query with empty relevance judgments",
				slog.String("query_id", q.ID))
			continue
		}
		kept = append(kept, q)
	}
	ds.Queries = kept

	return &ds, nil
}
