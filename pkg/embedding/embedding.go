package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	einoembedding "github.com/cloudwego/eino/components/embedding"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var ErrDimension = errors.New("embedding dimension mismatch")

type Config struct {
	BaseURL   string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.openai.com/v1"`
	APIKey    string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model     string        `envconfig:"MODEL" split_words:"true" required:"true"`
	Dimension int           `envconfig:"DIMENSION" split_words:"true" required:"true"`
	BatchSize int           `envconfig:"BATCH_SIZE" split_words:"true" default:"64"`
	Timeout   time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
}

// Embedder calls an OpenAI-compatible /embeddings endpoint.
type Embedder struct {
	client    openaisdk.Client
	model     string
	dimension int
	batchSize int
}

var _ einoembedding.Embedder = (*Embedder)(nil)

func New(cfg Config, extra ...option.RequestOption) (*Embedder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("embedding api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("embedding model is required")
	}
	if cfg.Dimension <= 0 {
		return nil, errors.New("embedding dimension must be > 0")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
	}
	if trimmed := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	opts = append(opts, extra...)

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 64
	}

	return &Embedder{
		client:    openaisdk.NewClient(opts...),
		model:     strings.TrimSpace(cfg.Model),
		dimension: cfg.Dimension,
		batchSize: batch,
	}, nil
}

func (e *Embedder) Dimension() int {
	return e.dimension
}

// EmbedStrings returns one vector per input, in input order.
func (e *Embedder) EmbedStrings(ctx context.Context, texts []string, opts ...einoembedding.Option) ([][]float64, error) {
	model := e.model
	if o := einoembedding.GetCommonOptions(&einoembedding.Options{}, opts...); o.Model != nil && *o.Model != "" {
		model = *o.Model
	}

	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vectors, err := e.embedBatch(ctx, model, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *Embedder) embedBatch(ctx context.Context, model string, texts []string) ([][]float64, error) {
	resp, err := e.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openaisdk.EmbeddingModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float64, len(texts))
	for _, item := range resp.Data {
		idx := int(item.Index)
		if idx < 0 || idx >= len(texts) {
			return nil, fmt.Errorf("embeddings response index %d out of range", idx)
		}
		if len(item.Embedding) != e.dimension {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(item.Embedding), e.dimension)
		}
		vectors[idx] = item.Embedding
	}
	return vectors, nil
}
