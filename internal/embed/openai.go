package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/fppclabs/opinionsearch/internal/store"

	oserrors "github.com/fppclabs/opinionsearch/internal/errors"
)

const (
	// DefaultOpenAIBaseURL is the OpenAI API base.
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	// DefaultOpenAIModel is the embedding model used for opinion search.
	DefaultOpenAIModel = "text-embedding-3-small"

	// DefaultOpenAIDimensions is text-embedding-3-small's vector width.
	DefaultOpenAIDimensions = 1536

	defaultRequestTimeout = 60 * time.Second
)

// OpenAIEmbedder calls the OpenAI embeddings HTTP API.
// Failures surface as coded errors for the current call; there is no
// internal retry.
type OpenAIEmbedder struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	dims    int
}

// NewOpenAIEmbedder creates an OpenAI embedder. The API key is required.
func NewOpenAIEmbedder(baseURL, apiKey, model string, dims int) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, oserrors.New(oserrors.ErrCodeCredentialMissing,
			"OPENAI_API_KEY not set", nil).
			WithSuggestion("set OPENAI_API_KEY in the environment or .env file")
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if dims <= 0 {
		dims = DefaultOpenAIDimensions
	}

	// Pooled transport; per-request deadlines come from the context.
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &OpenAIEmbedder{
		client:  &http.Client{Transport: transport},
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		dims:    dims,
	}, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed generates one embedding.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one API call.
// Returned vectors are L2-normalized.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultRequestTimeout)
		defer cancel()
	}

	// The API rejects empty input strings.
	input := make([]string, len(texts))
	for i, t := range texts {
		if t == "" {
			t = " "
		}
		input[i] = t
	}

	body, err := json.Marshal(embeddingRequest{Model: e.model, Input: input})
	if err != nil {
		return nil, oserrors.Wrap(oserrors.ErrCodeInternal, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, oserrors.Wrap(oserrors.ErrCodeInternal, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, oserrors.New(oserrors.ErrCodeEmbedUnavailable,
			fmt.Sprintf("embeddings request failed: %v", err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, oserrors.New(oserrors.ErrCodeCredentialMissing,
			fmt.Sprintf("embeddings request rejected with status %d", resp.StatusCode), nil).
			WithSuggestion("check OPENAI_API_KEY")
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, oserrors.New(oserrors.ErrCodeEmbedFailed,
			fmt.Sprintf("embeddings request returned status %d: %s", resp.StatusCode, string(msg)), nil)
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, oserrors.New(oserrors.ErrCodeEmbedFailed,
			fmt.Sprintf("cannot decode embeddings response: %v", err), err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, oserrors.New(oserrors.ErrCodeEmbedFailed,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(parsed.Data)), nil)
	}

	sort.Slice(parsed.Data, func(i, j int) bool {
		return parsed.Data[i].Index < parsed.Data[j].Index
	})

	vecs := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		if len(d.Embedding) != e.dims {
			return nil, oserrors.New(oserrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("expected %d dimensions, got %d", e.dims, len(d.Embedding)), nil)
		}
		vecs[i] = store.NormalizeVector(d.Embedding)
	}
	return vecs, nil
}

// Dimensions returns the embedding width.
func (e *OpenAIEmbedder) Dimensions() int { return e.dims }

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string { return e.model }

// Close shuts down idle connections.
func (e *OpenAIEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

var _ Embedder = (*OpenAIEmbedder)(nil)
