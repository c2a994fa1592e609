package rag

import (
	"context"
	"fmt"
	"strings"

	einoembedding "github.com/cloudwego/eino/components/embedding"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
)

// Retriever embeds a question and returns the nearest indexed chunks.
type Retriever struct {
	embedder einoembedding.Embedder
	index    contractx.VectorIndex
	topK     int
}

var _ einoretriever.Retriever = (*Retriever)(nil)

func NewRetriever(embedder einoembedding.Embedder, index contractx.VectorIndex, topK int) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", contractx.ErrValidation)
	}
	if index == nil {
		return nil, fmt.Errorf("%w: vector index is required", contractx.ErrValidation)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{embedder: embedder, index: index, topK: topK}, nil
}

// Context is computed fresh on every call. Ranks start at 1.
func (r *Retriever) Context(ctx context.Context, question string, topK int) (contractx.RetrievedContext, error) {
	if topK <= 0 {
		topK = r.topK
	}

	vectors, err := r.embedder.EmbedStrings(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("%w: embed question: %v", contractx.ErrCollaborator, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for one question", contractx.ErrCollaborator, len(vectors))
	}

	matches, err := r.index.Query(ctx, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("%w: query vector index: %w", contractx.ErrCollaborator, err)
	}

	out := make(contractx.RetrievedContext, 0, len(matches))
	for i, m := range matches {
		out = append(out, contractx.RetrievedChunk{
			Text:     m.Text,
			Rank:     i + 1,
			Score:    m.Score,
			Metadata: m.Metadata,
		})
	}
	return out, nil
}

func (r *Retriever) Retrieve(ctx context.Context, query string, opts ...einoretriever.Option) ([]*schema.Document, error) {
	topK := r.topK
	if o := einoretriever.GetCommonOptions(&einoretriever.Options{}, opts...); o.TopK != nil && *o.TopK > 0 {
		topK = *o.TopK
	}

	chunks, err := r.Context(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	docs := make([]*schema.Document, 0, len(chunks))
	for _, c := range chunks {
		id := fmt.Sprintf("rank-%d", c.Rank)
		if v, ok := c.Metadata["chunk_id"].(string); ok && v != "" {
			id = v
		}
		doc := &schema.Document{ID: id, Content: c.Text, MetaData: c.Metadata}
		docs = append(docs, doc.WithScore(c.Score))
	}
	return docs, nil
}

func formatContext(chunks contractx.RetrievedContext) string {
	return strings.Join(chunks.Texts(), "\n\n")
}
