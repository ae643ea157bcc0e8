package testutils

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/embeddings"
)

// MockDimensions is the dimension of vectors produced by MockEmbedder.
const MockDimensions = 4

// MockEmbedder is a test embedder that returns predictable embeddings.
// Texts without an entry in Embeddings get a vector derived from an FNV hash
// of the text, so equal texts always embed equally.
type MockEmbedder struct {
	Embeddings map[string][]float32

	// FailOn causes embedding to fail when any input text matches.
	FailOn string

	mu         sync.Mutex
	embedded   []string
	batchCalls int
	failAll    bool
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
	}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.embedLocked(text)
}

func (m *MockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.batchCalls++
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := m.embedLocked(text)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (m *MockEmbedder) embedLocked(text string) ([]float32, error) {
	if m.failAll {
		return nil, fmt.Errorf("mock embedding provider unavailable")
	}
	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("mock embedding failure for: %s", text)
	}

	m.embedded = append(m.embedded, text)

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}
	return HashVector(text), nil
}

// SetFailing makes every subsequent call fail (or succeed again).
func (m *MockEmbedder) SetFailing(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = fail
}

// Embedded returns every text embedded so far, in call order.
func (m *MockEmbedder) Embedded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.embedded...)
}

// BatchCalls returns the number of EmbedBatch calls.
func (m *MockEmbedder) BatchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batchCalls
}

// Reset clears the recorded calls.
func (m *MockEmbedder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedded = nil
	m.batchCalls = 0
}

func (m *MockEmbedder) Close() error {
	return nil
}

// HashVector derives a deterministic MockDimensions vector from text.
func HashVector(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	sum := h.Sum64()

	v := make([]float32, MockDimensions)
	for i := range v {
		v[i] = float32((sum>>(uint(i)*16))&0xffff) / 65535
	}
	return v
}

var _ embeddings.BatchEmbedder = (*MockEmbedder)(nil)
