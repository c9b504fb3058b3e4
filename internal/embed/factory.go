package embed

import (
	"fmt"
	"os"

	oserrors "github.com/fppclabs/opinionsearch/internal/errors"
)

// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderStatic = "static"
)

// Options selects and configures an embedding provider.
type Options struct {
	Provider   string
	Model      string
	BaseURL    string
	Dimensions int
	CacheSize  int
}

// New constructs an embedder for the configured provider, wrapped with an
// LRU cache. The OpenAI provider reads OPENAI_API_KEY from the
// environment (loaded earlier from .env by the CLI).
func New(opts Options) (Embedder, error) {
	var inner Embedder

	switch opts.Provider {
	case ProviderOpenAI, "":
		e, err := NewOpenAIEmbedder(opts.BaseURL, os.Getenv("OPENAI_API_KEY"), opts.Model, opts.Dimensions)
		if err != nil {
			return nil, err
		}
		inner = e
	case ProviderStatic:
		inner = NewStaticEmbedder(opts.Dimensions)
	default:
		return nil, oserrors.ConfigError(
			fmt.Sprintf("unknown embedding provider %q", opts.Provider), nil)
	}

	return NewCachedEmbedder(inner, opts.CacheSize), nil
}
