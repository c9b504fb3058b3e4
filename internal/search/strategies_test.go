package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fppclabs/opinionsearch/internal/citation"
	"github.com/fppclabs/opinionsearch/internal/store"
)

type fakeLexical struct {
	scores map[string]float64
}

func (f *fakeLexical) ScoreAll(ctx context.Context, tokens []string) (map[string]float64, error) {
	out := make(map[string]float64, len(f.scores))
	for id, v := range f.scores {
		out[id] = v
	}
	return out, nil
}

func (f *fakeLexical) Contains(id string) bool {
	_, ok := f.scores[id]
	return ok
}

func (f *fakeLexical) DocCount() int { return len(f.scores) }

type fakeVector struct {
	top    []store.ScoredDoc
	subset map[string]float64
}

func (f *fakeVector) TopN(query []float32, n int) []store.ScoredDoc {
	if n < len(f.top) {
		return f.top[:n]
	}
	return f.top
}

func (f *fakeVector) ScoreSubset(query []float32, ids []string) map[string]float64 {
	out := make(map[string]float64, len(ids))
	for _, id := range ids {
		out[id] = f.subset[id]
	}
	return out
}

type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return []float32{1, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i := range texts {
		f.calls++
		vecs[i] = []float32{1, 0}
	}
	return vecs, nil
}

func (f *fakeEmbedder) Dimensions() int   { return 2 }
func (f *fakeEmbedder) ModelName() string { return "fake" }
func (f *fakeEmbedder) Close() error      { return nil }

func buildTestCitations(t *testing.T) *citation.Index {
	t.Helper()
	return citation.BuildIndex([]citation.DocumentCitations{
		{ID: "op1", GovernmentCode: []string{"87103(a)"}},
		{ID: "op2", GovernmentCode: []string{"87103"}},
		{ID: "op3"},
	})
}

func TestAllStrategies_EmptyTokensYieldEmptyList(t *testing.T) {
	deps := Deps{
		Lexical:   &fakeLexical{scores: map[string]float64{"op1": 1}},
		Vector:    &fakeVector{},
		Citations: buildTestCitations(t),
		Embedder:  &fakeEmbedder{},
	}
	embedder := deps.Embedder.(*fakeEmbedder)

	for _, name := range []string{NameLexical, NameCitationBoost, NameRRF, NameScoreFusion, NameCitationFusion} {
		strat, err := NewStrategy(name, deps, Config{})
		require.NoError(t, err, name)

		// "of the" tokenizes to nothing
		got, err := strat.Rank(context.Background(), "of the", 10)
		require.NoError(t, err, name)
		assert.Empty(t, got, name)
	}

	assert.Zero(t, embedder.calls, "embedding must not run for empty-token queries")
}

func TestNewStrategy_UnknownName(t *testing.T) {
	_, err := NewStrategy("quantum", Deps{Lexical: &fakeLexical{}}, Config{})
	require.Error(t, err)
}

func TestNewStrategy_MissingDependencies(t *testing.T) {
	_, err := NewLexical(Deps{}, Config{})
	require.Error(t, err)

	_, err = NewCitationBoost(Deps{Lexical: &fakeLexical{}}, Config{})
	require.Error(t, err)

	_, err = NewWeightedRankFusion(Deps{Lexical: &fakeLexical{}, Vector: &fakeVector{}}, Config{})
	require.Error(t, err, "rrf has no degraded path and requires an embedder")
}

func TestLexical_RanksByScore(t *testing.T) {
	strat, err := NewLexical(Deps{
		Lexical: &fakeLexical{scores: map[string]float64{"op1": 1, "op2": 3, "op3": 2, "op4": 0}},
	}, Config{})
	require.NoError(t, err)

	got, err := strat.Rank(context.Background(), "conflict advice", 10)
	require.NoError(t, err)

	// op4 scored zero and is excluded
	assert.Equal(t, []string{"op2", "op3", "op1"}, got)
}

func TestCitationBoost_ExactMatchOutranksLexicalWinner(t *testing.T) {
	// Given op2 wins on raw term statistics but op1 exactly cites the
	// queried subsection
	strat, err := NewCitationBoost(Deps{
		Lexical:   &fakeLexical{scores: map[string]float64{"op1": 1.8, "op2": 2.0}},
		Citations: buildTestCitations(t),
	}, Config{})
	require.NoError(t, err)

	got, err := strat.Rank(context.Background(), "Section 87103(a) advice", 10)
	require.NoError(t, err)

	// op1: 1.8 + 2.0*0.30*ln(3/1) = 2.459
	// op2: 2.0 + 2.0*0.30*0.2*ln(3/2) = 2.049 (base-tier only)
	assert.Equal(t, []string{"op1", "op2"}, got)
}

func TestCitationBoost_SkipsDocumentsOutsideLexicalCorpus(t *testing.T) {
	// op2 cites the statute but was never indexed lexically
	strat, err := NewCitationBoost(Deps{
		Lexical:   &fakeLexical{scores: map[string]float64{"op3": 1.0}},
		Citations: buildTestCitations(t),
	}, Config{})
	require.NoError(t, err)

	got, err := strat.Rank(context.Background(), "Section 87103 advice", 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"op3"}, got)
}

func TestCitationBoost_NoLexicalHitsYieldEmptyList(t *testing.T) {
	strat, err := NewCitationBoost(Deps{
		Lexical:   &fakeLexical{scores: map[string]float64{}},
		Citations: buildTestCitations(t),
	}, Config{})
	require.NoError(t, err)

	got, err := strat.Rank(context.Background(), "Section 87103 advice", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWeightedRankFusion_MergesBothArms(t *testing.T) {
	embedder := &fakeEmbedder{}
	strat, err := NewWeightedRankFusion(Deps{
		Lexical: &fakeLexical{scores: map[string]float64{"op1": 3, "op2": 2, "op3": 1}},
		Vector: &fakeVector{top: []store.ScoredDoc{
			{ID: "op2", Score: 0.9},
			{ID: "op3", Score: 0.8},
			{ID: "op4", Score: 0.7},
		}},
		Embedder: embedder,
	}, Config{})
	require.NoError(t, err)

	got, err := strat.Rank(context.Background(), "conflict advice", 10)
	require.NoError(t, err)

	// op2: 0.7/62 + 0.3/61 = 0.01621
	// op3: 0.7/63 + 0.3/62 = 0.01595
	// op1: 0.7/61          = 0.01148
	// op4: 0.3/63          = 0.00476
	assert.Equal(t, []string{"op2", "op3", "op1", "op4"}, got)
	assert.Equal(t, 1, embedder.calls)
}

func TestWeightedRankFusion_ZeroLexicalScoresCarryNoRank(t *testing.T) {
	embedder := &fakeEmbedder{}
	strat, err := NewWeightedRankFusion(Deps{
		Lexical:  &fakeLexical{scores: map[string]float64{"op1": 2, "op2": 0}},
		Vector:   &fakeVector{top: []store.ScoredDoc{{ID: "op2", Score: 0.9}}},
		Embedder: embedder,
	}, Config{})
	require.NoError(t, err)

	got, err := strat.Rank(context.Background(), "conflict advice", 10)
	require.NoError(t, err)

	// op1 only holds a lexical rank; op2 only a semantic one
	// op1: 0.7/61 = 0.01148 > op2: 0.3/61 = 0.00492
	assert.Equal(t, []string{"op1", "op2"}, got)
}

func TestScoreFusion_BreakerFiresAndSkipsEmbedding(t *testing.T) {
	embedder := &fakeEmbedder{}
	strat, err := NewScoreFusion(Deps{
		Lexical:  &fakeLexical{scores: map[string]float64{"op1": 10, "op2": 5}},
		Vector:   &fakeVector{},
		Embedder: embedder,
	}, Config{})
	require.NoError(t, err)

	got, err := strat.Rank(context.Background(), "conflict advice", 10)
	require.NoError(t, err)

	// ratio 10/5 = 2.0 >= 1.3
	assert.Equal(t, []string{"op1", "op2"}, got)
	assert.Zero(t, embedder.calls)
}

func TestScoreFusion_CloseScoresBlendSemanticArm(t *testing.T) {
	embedder := &fakeEmbedder{}
	strat, err := NewScoreFusion(Deps{
		Lexical: &fakeLexical{scores: map[string]float64{"op1": 10, "op2": 9, "op3": 1}},
		Vector: &fakeVector{top: []store.ScoredDoc{
			{ID: "op2", Score: 0.9},
			{ID: "op3", Score: 0.5},
			{ID: "op1", Score: 0.1},
		}},
		Embedder: embedder,
	}, Config{})
	require.NoError(t, err)

	got, err := strat.Rank(context.Background(), "conflict advice", 10)
	require.NoError(t, err)

	// ratio 10/9 = 1.11 < 1.3, so both arms blend at 0.5/0.5:
	// op2 = 0.5*(8/9) + 0.5*1.0 = 0.944
	// op1 = 0.5*1.0   + 0.5*0.0 = 0.500
	// op3 = 0.5*0.0   + 0.5*0.5 = 0.250
	assert.Equal(t, []string{"op2", "op1", "op3"}, got)
	assert.Equal(t, 1, embedder.calls)
}

func TestScoreFusion_SingleHitFiresBreaker(t *testing.T) {
	embedder := &fakeEmbedder{}
	strat, err := NewScoreFusion(Deps{
		Lexical:  &fakeLexical{scores: map[string]float64{"op1": 4}},
		Embedder: embedder,
	}, Config{})
	require.NoError(t, err)

	got, err := strat.Rank(context.Background(), "conflict advice", 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"op1"}, got)
	assert.Zero(t, embedder.calls)
}

func TestScoreFusion_NoLexicalHitsYieldEmptyList(t *testing.T) {
	strat, err := NewScoreFusion(Deps{
		Lexical: &fakeLexical{scores: map[string]float64{}},
	}, Config{})
	require.NoError(t, err)

	got, err := strat.Rank(context.Background(), "conflict advice", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScoreFusion_DegradedWithoutEmbedderFailsPastBreaker(t *testing.T) {
	strat, err := NewScoreFusion(Deps{
		Lexical: &fakeLexical{scores: map[string]float64{"op1": 10, "op2": 9}},
	}, Config{})
	require.NoError(t, err)

	_, err = strat.Rank(context.Background(), "conflict advice", 10)
	require.Error(t, err)
}

func TestCitationPooledFusion_NoCitationsFallsBackToLexical(t *testing.T) {
	embedder := &fakeEmbedder{}
	strat, err := NewCitationPooledFusion(Deps{
		Lexical:   &fakeLexical{scores: map[string]float64{"op1": 1, "op2": 3}},
		Vector:    &fakeVector{},
		Citations: buildTestCitations(t),
		Embedder:  embedder,
	}, Config{})
	require.NoError(t, err)

	got, err := strat.Rank(context.Background(), "remote work advice", 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"op2", "op1"}, got)
	assert.Zero(t, embedder.calls)
}

func TestCitationPooledFusion_CitationOnlyCandidateRanksViaSemantics(t *testing.T) {
	// op1 cites 87103(a) but has no lexical hit; it enters the pool
	// through the citation index and is scored by the semantic arm
	embedder := &fakeEmbedder{}
	strat, err := NewCitationPooledFusion(Deps{
		Lexical: &fakeLexical{scores: map[string]float64{"op2": 4, "op3": 3.9}},
		Vector: &fakeVector{subset: map[string]float64{
			"op1": 0.9,
			"op2": 0.5,
			"op3": 0.1,
		}},
		Citations: buildTestCitations(t),
		Embedder:  embedder,
	}, Config{})
	require.NoError(t, err)

	got, err := strat.Rank(context.Background(), "Section 87103 advice", 10)
	require.NoError(t, err)

	// pool = {op1, op2 via citations} ∪ {op2, op3 via lexical}
	// lexical ratio 4/3.9 = 1.026 < 1.3, blend at 0.4/0.6:
	// op2 = 0.4*1.000 + 0.6*0.5 = 0.700
	// op1 = 0.4*0.000 + 0.6*1.0 = 0.600
	// op3 = 0.4*0.975 + 0.6*0.0 = 0.390
	assert.Equal(t, []string{"op2", "op1", "op3"}, got)
	assert.Equal(t, 1, embedder.calls)
}

func TestCitationPooledFusion_PoolScopedBreakerSkipsEmbedding(t *testing.T) {
	embedder := &fakeEmbedder{}
	strat, err := NewCitationPooledFusion(Deps{
		Lexical:   &fakeLexical{scores: map[string]float64{"op2": 10, "op3": 2}},
		Vector:    &fakeVector{},
		Citations: buildTestCitations(t),
		Embedder:  embedder,
	}, Config{})
	require.NoError(t, err)

	got, err := strat.Rank(context.Background(), "Section 87103 advice", 10)
	require.NoError(t, err)

	// ratio within the pool is 10/2 = 5.0; lexical order wins and the
	// citation-only member op1 trails at zero
	require.NotEmpty(t, got)
	assert.Equal(t, []string{"op2", "op3", "op1"}, got)
	assert.Zero(t, embedder.calls)
}
