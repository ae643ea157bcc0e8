// Package ollama embeds chunk text through Ollama's /api/embed endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/embeddings"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/vector"
)

const (
	// DefaultEmbeddingModel produces 384-dimension vectors.
	DefaultEmbeddingModel = "all-minilm"

	DefaultBaseURL = "http://localhost:11434"

	// DefaultBatchSize caps the number of inputs sent in one request. A
	// full rebuild of a large folder is split into several requests.
	DefaultBatchSize = 64

	defaultTimeout = 2 * time.Minute

	// maxErrorBody bounds how much of a failed response ends up in the
	// error message.
	maxErrorBody = 512
)

// Embedder talks to a single Ollama model.
type Embedder struct {
	baseURL    string
	model      string
	dimensions int
	batchSize  int
	httpClient *http.Client
}

// EmbedderConfig holds configuration for the Ollama embedder. Zero values
// take the package defaults.
type EmbedderConfig struct {
	BaseURL string
	Model   string

	// Dimensions, when set, is checked against every returned vector so a
	// model swap is caught before vectors reach the index.
	Dimensions int

	BatchSize int

	// Timeout bounds a single request.
	Timeout time.Duration
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewEmbedder applies defaults to cfg. No request is made.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	if cfg.Dimensions < 0 {
		return nil, fmt.Errorf("invalid dimensions %d", cfg.Dimensions)
	}

	e := &Embedder{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		batchSize:  cfg.BatchSize,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	if e.baseURL == "" {
		e.baseURL = DefaultBaseURL
	}
	if e.model == "" {
		e.model = DefaultEmbeddingModel
	}
	if e.batchSize <= 0 {
		e.batchSize = DefaultBatchSize
	}
	if e.httpClient.Timeout == 0 {
		e.httpClient.Timeout = defaultTimeout
	}
	return e, nil
}

// Model returns the model name sent with every request.
func (e *Embedder) Model() string {
	return e.model
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.request(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in order, issuing one request per BatchSize
// inputs.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vectors, err := e.request(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *Embedder) request(ctx context.Context, input []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", vector.ErrEmbedding, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", vector.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: calling ollama: %v", vector.ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: ollama model %q returned status %d: %s",
			vector.ErrEmbedding, e.model, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", vector.ErrEmbedding, err)
	}
	if len(parsed.Embeddings) != len(input) {
		return nil, fmt.Errorf("%w: ollama returned %d embeddings for %d inputs",
			vector.ErrEmbedding, len(parsed.Embeddings), len(input))
	}
	if e.dimensions > 0 {
		for i, v := range parsed.Embeddings {
			if len(v) != e.dimensions {
				return nil, fmt.Errorf("%w: model %q returned %d dimensions for input %d, configured %d",
					vector.ErrDimensionMismatch, e.model, len(v), i, e.dimensions)
			}
		}
	}

	return parsed.Embeddings, nil
}

// Close is a no-op; the embedder holds no connections of its own.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.BatchEmbedder = (*Embedder)(nil)
