package embed

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/fppclabs/opinionsearch/internal/store"
)

// DefaultStaticDimensions is the vector width of the static embedder.
const DefaultStaticDimensions = 256

// StaticEmbedder produces deterministic embeddings by hashing tokens into
// a fixed-width vector. It needs no network or credentials and is used
// for offline runs and tests; vectors are L2-normalized like provider
// output.
type StaticEmbedder struct {
	dims int
}

// NewStaticEmbedder creates a deterministic offline embedder.
func NewStaticEmbedder(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = DefaultStaticDimensions
	}
	return &StaticEmbedder{dims: dims}
}

// Embed hashes each whitespace token into a bucket and normalizes.
func (s *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, s.dims)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vec[int(h.Sum32())%s.dims] += 1.0
	}
	return store.NormalizeVector(vec), nil
}

// EmbedBatch embeds each text independently.
func (s *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// Dimensions returns the embedding width.
func (s *StaticEmbedder) Dimensions() int { return s.dims }

// ModelName returns the model identifier.
func (s *StaticEmbedder) ModelName() string { return "static-hash" }

// Close is a no-op.
func (s *StaticEmbedder) Close() error { return nil }

var _ Embedder = (*StaticEmbedder)(nil)
