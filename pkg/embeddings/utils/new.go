// Package embeddingutils builds the configured embedding provider.
package embeddingutils

import (
	"fmt"
	"slices"
	"strings"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/embeddings"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/embeddings/ollama"
)

const providerOllama = "ollama"

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string

	// Dimensions is enforced on provider output when non-zero.
	Dimensions uint
}

// NewEmbedder returns the embedder named by o.ProviderType.
func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	if o == nil {
		return nil, fmt.Errorf("embedder options are required")
	}

	switch strings.ToLower(o.ProviderType) {
	case providerOllama:
		return ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL:    o.TargetURL,
			Model:      o.Model,
			Dimensions: int(o.Dimensions),
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q (available: %s)",
			o.ProviderType, strings.Join(ValidProviders(), ", "))
	}
}

// ValidProviders returns the recognized embedding provider names.
func ValidProviders() []string {
	return []string{providerOllama}
}

// IsValidProvider reports whether name is one of ValidProviders.
func IsValidProvider(name string) bool {
	return slices.Contains(ValidProviders(), strings.ToLower(name))
}
