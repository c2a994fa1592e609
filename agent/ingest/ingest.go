// Package ingest loads recent CRM deals into the vector index.
package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	einoembedding "github.com/cloudwego/eino/components/embedding"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
	logx "github.com/tanpawarit/Breeze-CRM-Copilot/pkg/logger"
)

const (
	DefaultDealLimit = 100
	SourcePipedrive  = "pipedrive"
)

type Config struct {
	DealLimit    int `envconfig:"DEAL_LIMIT" split_words:"true" default:"100"`
	ChunkSize    int `envconfig:"CHUNK_SIZE" split_words:"true" default:"500"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" split_words:"true" default:"50"`
	BatchSize    int `envconfig:"BATCH_SIZE" split_words:"true" default:"16"`
	Workers      int `envconfig:"WORKERS" default:"4"`
}

func (c Config) withDefaults() Config {
	if c.DealLimit <= 0 {
		c.DealLimit = DefaultDealLimit
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = DefaultChunkOverlap
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 16
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	return c
}

// Document is one deal rendered as prose for embedding.
type Document struct {
	DealID   int64
	Text     string
	Metadata map[string]any
}

type Report struct {
	Deals  int `json:"deals"`
	Chunks int `json:"chunks"`
}

type Pipeline struct {
	crm      contractx.CRM
	embedder einoembedding.Embedder
	index    contractx.VectorIndex
	splitter Splitter
	cfg      Config
}

func NewPipeline(crm contractx.CRM, embedder einoembedding.Embedder, index contractx.VectorIndex, cfg Config) (*Pipeline, error) {
	if crm == nil || embedder == nil || index == nil {
		return nil, fmt.Errorf("%w: crm, embedder and index are required", contractx.ErrValidation)
	}
	cfg = cfg.withDefaults()
	return &Pipeline{
		crm:      crm,
		embedder: embedder,
		index:    index,
		splitter: NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		cfg:      cfg,
	}, nil
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func RenderDeal(d contractx.Deal) Document {
	text := fmt.Sprintf(
		"Information about the CRM deal titled '%s' with Deal ID: %d. "+
			"The current status of this deal is '%s'. "+
			"It has a value of %s %s. "+
			"The deal is owned by %s. "+
			"The main contact person is %s at the organization %s.",
		orNA(d.Title), d.ID, orNA(d.Status), formatValue(d.Value), d.Currency,
		orNA(d.OwnerName), orNA(d.PersonName), orNA(d.OrgName),
	)
	return Document{
		DealID: d.ID,
		Text:   text,
		Metadata: map[string]any{
			"source":  SourcePipedrive,
			"deal_id": d.ID,
			"status":  orNA(d.Status),
			"value":   d.Value,
		},
	}
}

// Chunks splits documents and assigns stable ids so re-ingesting a deal
// overwrites its previous chunks.
func (p *Pipeline) Chunks(docs []Document) []contractx.VectorRecord {
	var records []contractx.VectorRecord
	for _, doc := range docs {
		for i, text := range p.splitter.Split(doc.Text) {
			meta := make(map[string]any, len(doc.Metadata)+1)
			for k, v := range doc.Metadata {
				meta[k] = v
			}
			meta["chunk_id"] = i
			records = append(records, contractx.VectorRecord{
				ID:       fmt.Sprintf("deal-%d-%d", doc.DealID, i),
				Text:     text,
				Metadata: meta,
			})
		}
	}
	return records
}

type embeddedBatch struct {
	offset  int
	vectors [][]float64
}

// Embed fills in the vectors, running up to Workers batches at once.
func (p *Pipeline) Embed(ctx context.Context, records []contractx.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	workers := pool.NewWithResults[embeddedBatch]().
		WithContext(ctx).
		WithCancelOnError().
		WithMaxGoroutines(p.cfg.Workers)

	for start := 0; start < len(records); start += p.cfg.BatchSize {
		end := min(start+p.cfg.BatchSize, len(records))
		texts := make([]string, 0, end-start)
		for _, r := range records[start:end] {
			texts = append(texts, r.Text)
		}
		offset := start
		workers.Go(func(ctx context.Context) (embeddedBatch, error) {
			vectors, err := p.embedder.EmbedStrings(ctx, texts)
			if err != nil {
				return embeddedBatch{}, fmt.Errorf("embed batch at %d: %w", offset, err)
			}
			if len(vectors) != len(texts) {
				return embeddedBatch{}, fmt.Errorf("embed batch at %d: got %d vectors for %d texts", offset, len(vectors), len(texts))
			}
			return embeddedBatch{offset: offset, vectors: vectors}, nil
		})
	}

	batches, err := workers.Wait()
	if err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrCollaborator, err)
	}
	for _, b := range batches {
		for i, v := range b.vectors {
			records[b.offset+i].Vector = v
		}
	}
	return nil
}

func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	ctx, finish := logx.StartSpan(ctx, "ingest", map[string]any{"deal_limit": p.cfg.DealLimit})
	report, err := p.run(ctx)
	finish(err)
	return report, err
}

func (p *Pipeline) run(ctx context.Context) (Report, error) {
	logger := zerolog.Ctx(ctx)

	deals, err := p.crm.ListRecentDeals(ctx, p.cfg.DealLimit)
	if err != nil {
		return Report{}, fmt.Errorf("fetch deals: %w", err)
	}
	if len(deals) == 0 {
		logger.Warn().Msg("no deals found, nothing to ingest")
		return Report{}, nil
	}

	docs := make([]Document, 0, len(deals))
	for _, d := range deals {
		docs = append(docs, RenderDeal(d))
	}
	records := p.Chunks(docs)
	logger.Info().Int("deals", len(deals)).Int("chunks", len(records)).Msg("deals split into chunks")

	if err := p.Embed(ctx, records); err != nil {
		return Report{}, err
	}
	if err := p.index.Upsert(ctx, records); err != nil {
		return Report{}, fmt.Errorf("upsert chunks: %w", err)
	}

	logger.Info().Int("chunks", len(records)).Msg("ingestion complete")
	return Report{Deals: len(deals), Chunks: len(records)}, nil
}
