package fakes

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"

	einoembedding "github.com/cloudwego/eino/components/embedding"
)

// Embedder hashes lowercase words into a fixed-size bag-of-words vector, so
// texts sharing words land close together.
type Embedder struct {
	mu    sync.Mutex
	Dim   int
	Err   error
	Calls int
}

var _ einoembedding.Embedder = (*Embedder)(nil)

func (e *Embedder) EmbedStrings(ctx context.Context, texts []string, opts ...einoembedding.Option) ([][]float64, error) {
	e.mu.Lock()
	e.Calls++
	err := e.Err
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *Embedder) vector(text string) []float64 {
	vec := make([]float64, e.Dim)
	for _, word := range strings.FieldsFunc(strings.ToLower(text), isSeparator) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%uint32(e.Dim)]++
	}
	return vec
}

func isSeparator(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
}
