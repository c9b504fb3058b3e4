package eval

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedRanker returns canned results per query text.
type fixedRanker struct {
	results map[string][]string
}

func (f *fixedRanker) Name() string { return "fixed" }

func (f *fixedRanker) Rank(ctx context.Context, query string, topK int) ([]string, error) {
	return f.results[query], nil
}

func TestEvaluateQuery_ComputesFullProfile(t *testing.T) {
	h, err := NewHarness(&fixedRanker{results: map[string][]string{
		"q": {"a", "b", "c", "d", "e"},
	}}, nil)
	require.NoError(t, err)

	qr, err := h.EvaluateQuery(context.Background(), Query{
		ID:   "q1",
		Text: "q",
		Type: "citation",
		RelevanceJudgments: []Judgment{
			{OpinionID: "a", Score: 2},
			{OpinionID: "b", Score: 1},
			{OpinionID: "d", Score: 1},
			{OpinionID: "e", Score: 2},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, qr.Metrics["mrr"])
	assert.InDelta(t, 0.9147, qr.Metrics["ndcg@5"], 0.0005)
	assert.Equal(t, 0.8, qr.Metrics["precision@5"])
	assert.Equal(t, 1.0, qr.Metrics["recall@10"])
	assert.Equal(t, 5, qr.NumResults)
	assert.Equal(t, "unknown", qr.QueryTopic)
}

func TestEvaluateQuery_DeduplicatesKeepingFirst(t *testing.T) {
	h, err := NewHarness(&fixedRanker{results: map[string][]string{
		"q": {"a", "b", "a", "c"},
	}}, nil)
	require.NoError(t, err)

	qr, err := h.EvaluateQuery(context.Background(), Query{
		ID:                 "q1",
		Text:               "q",
		RelevanceJudgments: []Judgment{{OpinionID: "a", Score: 2}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, qr.Results)
	assert.Equal(t, 3, qr.NumResults)
}

func TestRun_AggregatesByTypeAndTopic(t *testing.T) {
	h, err := NewHarness(&fixedRanker{results: map[string][]string{
		"q one": {"a"},
		"q two": {"x"},
	}}, nil)
	require.NoError(t, err)

	report, err := h.Run(context.Background(), &Dataset{Queries: []Query{
		{
			ID: "q1", Text: "q one", Type: "citation", Topic: "gifts_honoraria",
			RelevanceJudgments: []Judgment{{OpinionID: "a", Score: 2}},
		},
		{
			ID: "q2", Text: "q two", Type: "conceptual", Topic: "lobbying",
			RelevanceJudgments: []Judgment{{OpinionID: "a", Score: 2}},
		},
	}})
	require.NoError(t, err)

	// q1 hits at rank 1, q2 misses entirely
	assert.Equal(t, 0.5, report.Overall["mrr"])
	assert.Equal(t, 1.0, report.ByType["citation"]["mrr"])
	assert.Equal(t, 0.0, report.ByType["conceptual"]["mrr"])
	assert.Equal(t, 1.0, report.ByTopic["gifts_honoraria"]["mrr"])
	require.Len(t, report.PerQuery, 2)
	assert.False(t, report.Timestamp.IsZero())
}

func TestRun_EmptyDataset(t *testing.T) {
	h, err := NewHarness(&fixedRanker{}, nil)
	require.NoError(t, err)

	_, err = h.Run(context.Background(), &Dataset{})
	require.Error(t, err)
}

func TestAggregateMetrics_EmptyInput(t *testing.T) {
	assert.Empty(t, AggregateMetrics(nil))
}

func TestWriteScorecard_Layout(t *testing.T) {
	report := &Report{
		Engine:  "citation-boost",
		Overall: Metrics{"mrr": 0.5, "ndcg@5": 0.25},
		ByTopic: map[string]Metrics{
			"conflicts_of_interest": {"mrr": 0.5},
		},
		PerQuery: make([]QueryResult, 3),
	}

	var buf bytes.Buffer
	report.WriteScorecard(&buf)
	out := buf.String()

	assert.Contains(t, out, "FPPC Opinions Search Evaluation — citation-boost")
	assert.Contains(t, out, "3 queries evaluated")
	assert.Contains(t, out, "Overall")
	// Topic labels are truncated to fit the label column
	assert.Contains(t, out, "conflicts_of_inter")
	assert.NotContains(t, out, "conflicts_of_interest")

	assert.Contains(t, out, strings.Repeat("=", 80))
	assert.Contains(t, out, strings.Repeat("-", 80))
}

func TestLoadDataset_SkipsUnjudgedQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.json")
	raw := map[string]any{
		"queries": []map[string]any{
			{"id": "q1", "text": "one", "relevance_judgments": []map[string]any{
				{"opinion_id": "a", "score": 2},
			}},
			{"id": "q2", "text": "two", "relevance_judgments": []map[string]any{}},
		},
	}
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	ds, err := LoadDataset(path, nil)
	require.NoError(t, err)

	require.Len(t, ds.Queries, 1)
	assert.Equal(t, "q1", ds.Queries[0].ID)
}

func TestLoadDataset_MissingFile(t *testing.T) {
	_, err := LoadDataset(filepath.Join(t.TempDir(), "nope.json"), nil)
	require.Error(t, err)
}

func TestWriteResults_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	report := &Report{
		Engine:  "rrf",
		Overall: Metrics{"mrr": 0.5},
	}

	require.NoError(t, report.WriteResults(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded Report
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, "rrf", loaded.Engine)
	assert.Equal(t, 0.5, loaded.Overall["mrr"])
}
