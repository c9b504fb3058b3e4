package embed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oserrors "github.com/fppclabs/opinionsearch/internal/errors"
)

// countingEmbedder wraps StaticEmbedder and counts provider calls.
type countingEmbedder struct {
	*StaticEmbedder
	calls int
	fail  bool
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	if c.fail {
		return nil, oserrors.EmbedError("provider down", nil)
	}
	return c.StaticEmbedder.Embed(ctx, text)
}

func TestStaticEmbedder_Deterministic(t *testing.T) {
	e := NewStaticEmbedder(64)

	a, err := e.Embed(context.Background(), "conflict of interest")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "conflict of interest")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestStaticEmbedder_Normalized(t *testing.T) {
	e := NewStaticEmbedder(64)

	vec, err := e.Embed(context.Background(), "gift limits for officials")
	require.NoError(t, err)

	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestCachedEmbedder_HitsSkipProvider(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder(32)}
	cached := NewCachedEmbedder(inner, 10)

	_, err := cached.Embed(context.Background(), "lobbyist registration")
	require.NoError(t, err)
	_, err = cached.Embed(context.Background(), "lobbyist registration")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
}

func TestCachedEmbedder_FailuresNotCached(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder(32), fail: true}
	cached := NewCachedEmbedder(inner, 10)

	_, err := cached.Embed(context.Background(), "query")
	require.Error(t, err)

	// The failure was not stored; the provider is called again and the
	// success is returned
	inner.fail = false
	vec, err := cached.Embed(context.Background(), "query")
	require.NoError(t, err)
	assert.NotNil(t, vec)
	assert.Equal(t, 2, inner.calls)
}

func TestOpenAIEmbedder_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIEmbedder("", "", "", 0)
	require.Error(t, err)
	assert.Equal(t, oserrors.ErrCodeCredentialMissing, oserrors.GetCode(err))
}

func TestOpenAIEmbedder_EmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Input, 2)

		// Deliberately out of order; the client must sort by index
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{0, 2}},
				{"index": 0, "embedding": []float32{3, 0}},
			},
		})
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedder(server.URL, "test-key", "test-model", 2)
	require.NoError(t, err)
	defer e.Close()

	vecs, err := e.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	// Normalized and index-ordered
	assert.InDelta(t, 1.0, float64(vecs[0][0]), 1e-6)
	assert.InDelta(t, 1.0, float64(vecs[1][1]), 1e-6)
}

func TestOpenAIEmbedder_ServerErrorIsRetryableCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedder(server.URL, "test-key", "test-model", 2)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Embed(context.Background(), "query")
	require.Error(t, err)
	assert.True(t, oserrors.IsRetryable(err))

	var searchErr *oserrors.SearchError
	require.True(t, errors.As(err, &searchErr))
	assert.Equal(t, oserrors.ErrCodeEmbedFailed, searchErr.Code)
}

func TestOpenAIEmbedder_DimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 0, "embedding": []float32{1, 2, 3}},
			},
		})
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedder(server.URL, "test-key", "test-model", 2)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Embed(context.Background(), "query")
	require.Error(t, err)
	assert.Equal(t, oserrors.ErrCodeDimensionMismatch, oserrors.GetCode(err))
}

func TestFactory_StaticProvider(t *testing.T) {
	e, err := New(Options{Provider: ProviderStatic, Dimensions: 16})
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, 16, e.Dimensions())
	assert.Equal(t, "static-hash", e.ModelName())
}

func TestFactory_UnknownProvider(t *testing.T) {
	_, err := New(Options{Provider: "quantum"})
	require.Error(t, err)
}
