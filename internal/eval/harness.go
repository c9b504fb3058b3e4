package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	oserrors "github.com/fppclabs/opinionsearch/internal/errors"
)

// ResultDepth is how many results each query requests from the engine.
const ResultDepth = 20

// metricKeys fixes the metric order used in reports and the scorecard.
var metricKeys = []string{
	"mrr", "ndcg@5", "ndcg@10",
	"precision@5", "precision@10",
	"recall@10", "recall@20",
}

var metricLabels = []string{"MRR", "nDCG@5", "nDCG@10", "P@5", "P@10", "R@10", "R@20"}

// Ranker is the engine surface the harness evaluates.
type Ranker interface {
	Name() string
	Rank(ctx context.Context, query string, topK int) ([]string, error)
}

// Metrics holds one metric profile keyed by metricKeys.
type Metrics map[string]float64

// QueryResult records one query's results and metric profile.
type QueryResult struct {
	QueryID    string   `json:"query_id"`
	QueryText  string   `json:"query_text"`
	QueryType  string   `json:"query_type"`
	QueryTopic string   `json:"query_topic"`
	NumResults int      `json:"num_results"`
	Results    []string `json:"results"`
	Metrics    Metrics  `json:"metrics"`
}

// Report is a full evaluation run: per-query profiles plus mean
// aggregates overall and broken down by query type and topic.
type Report struct {
	Timestamp time.Time          `json:"timestamp"`
	Engine    string             `json:"engine"`
	Overall   Metrics            `json:"overall"`
	ByType    map[string]Metrics `json:"by_type"`
	ByTopic   map[string]Metrics `json:"by_topic"`
	PerQuery  []QueryResult      `json:"per_query"`
}

// Harness runs a dataset through a Ranker and aggregates the results.
type Harness struct {
	ranker Ranker
	log    *slog.Logger
}

// NewHarness creates an evaluation harness.
func NewHarness(ranker Ranker, log *slog.Logger) (*Harness, error) {
	if ranker == nil {
		return nil, oserrors.ValidationError("nil ranker", nil)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Harness{ranker: ranker, log: log}, nil
}

// EvaluateQuery runs one query and computes its metric profile.
// Duplicate results keep their first occurrence; later ones are dropped
// with a warning since a duplicated id would double-count relevance.
func (h *Harness) EvaluateQuery(ctx context.Context, q Query) (QueryResult, error) {
	results, err := h.ranker.Rank(ctx, q.Text, ResultDepth)
	if err != nil {
		return QueryResult{}, oserrors.Wrap(oserrors.ErrCodeSearchFailed, err)
	}

	seen := make(map[string]bool, len(results))
	deduped := results[:0]
	for _, id := range results {
		if seen[id] {
			h.log.Warn("duplicate result, keeping first occurrence",
				slog.String("query_id", q.ID),
				slog.String("opinion_id", id))
			continue
		}
		seen[id] = true
		deduped = append(deduped, id)
	}
	results = deduped

	judgments := q.Judgments()
	return QueryResult{
		QueryID:    q.ID,
		QueryText:  q.Text,
		QueryType:  orUnknown(q.Type),
		QueryTopic: orUnknown(q.Topic),
		NumResults: len(results),
		Results:    results,
		Metrics: Metrics{
			"mrr":          MRR(results, judgments),
			"ndcg@5":       NDCG(results, judgments, 5),
			"ndcg@10":      NDCG(results, judgments, 10),
			"precision@5":  PrecisionAt(results, judgments, 5),
			"precision@10": PrecisionAt(results, judgments, 10),
			"recall@10":    RecallAt(results, judgments, 10),
			"recall@20":    RecallAt(results, judgments, 20),
		},
	}, nil
}

// Run evaluates every dataset query and builds the report.
func (h *Harness) Run(ctx context.Context, ds *Dataset) (*Report, error) {
	if len(ds.Queries) == 0 {
		return nil, oserrors.New(oserrors.ErrCodeDatasetInvalid,
			"no queries with relevance judgments to evaluate", nil)
	}

	perQuery := make([]QueryResult, 0, len(ds.Queries))
	for i, q := range ds.Queries {
		h.log.Info("evaluating query",
			slog.Int("n", i+1),
			slog.Int("total", len(ds.Queries)),
			slog.String("query_id", q.ID))
		qr, err := h.EvaluateQuery(ctx, q)
		if err != nil {
			return nil, err
		}
		perQuery = append(perQuery, qr)
	}

	byType := make(map[string][]QueryResult)
	byTopic := make(map[string][]QueryResult)
	for _, qr := range perQuery {
		byType[qr.QueryType] = append(byType[qr.QueryType], qr)
		byTopic[qr.QueryTopic] = append(byTopic[qr.QueryTopic], qr)
	}

	return &Report{
		Timestamp: time.Now().UTC(),
		Engine:    h.ranker.Name(),
		Overall:   AggregateMetrics(perQuery),
		ByType:    aggregateGroups(byType),
		ByTopic:   aggregateGroups(byTopic),
		PerQuery:  perQuery,
	}, nil
}

// AggregateMetrics returns the per-metric mean across query results.
func AggregateMetrics(results []QueryResult) Metrics {
	if len(results) == 0 {
		return Metrics{}
	}
	agg := make(Metrics, len(metricKeys))
	for _, key := range metricKeys {
		sum := 0.0
		for _, qr := range results {
			sum += qr.Metrics[key]
		}
		agg[key] = sum / float64(len(results))
	}
	return agg
}

func aggregateGroups(groups map[string][]QueryResult) map[string]Metrics {
	out := make(map[string]Metrics, len(groups))
	for name, results := range groups {
		out[name] = AggregateMetrics(results)
	}
	return out
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// WriteScorecard renders the report as an 80-column table.
func (r *Report) WriteScorecard(w io.Writer) {
	sep := strings.Repeat("=", 80)
	thin := strings.Repeat("-", 80)

	fmt.Fprintln(w, sep)
	fmt.Fprintf(w, "  FPPC Opinions Search Evaluation — %s\n", r.Engine)
	fmt.Fprintf(w, "  %d queries evaluated\n", len(r.PerQuery))
	fmt.Fprintln(w, sep)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%20s", "")
	for _, label := range metricLabels {
		fmt.Fprintf(w, "  %7s", label)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, thin)

	writeMetricRow(w, "Overall", r.Overall)
	fmt.Fprintln(w, thin)

	if len(r.ByType) > 0 {
		fmt.Fprintf(w, "%20s\n", "By Query Type")
		for _, name := range sortedKeys(r.ByType) {
			writeMetricRow(w, "  "+name, r.ByType[name])
		}
		fmt.Fprintln(w, thin)
	}

	if len(r.ByTopic) > 0 {
		fmt.Fprintf(w, "%20s\n", "By Topic")
		for _, name := range sortedKeys(r.ByTopic) {
			label := name
			if len(label) > 18 {
				label = label[:18]
			}
			writeMetricRow(w, "  "+label, r.ByTopic[name])
		}
		fmt.Fprintln(w, thin)
	}

	fmt.Fprintln(w)
}

func writeMetricRow(w io.Writer, label string, m Metrics) {
	fmt.Fprintf(w, "%20s", label)
	for _, key := range metricKeys {
		fmt.Fprintf(w, "  %7.3f", m[key])
	}
	fmt.Fprintln(w)
}

func sortedKeys(m map[string]Metrics) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WriteResults persists the full report as indented JSON.
func (r *Report) WriteResults(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return oserrors.InternalError("encoding eval results", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return oserrors.Wrap(oserrors.ErrCodeIndexWrite, err)
	}
	return nil
}
