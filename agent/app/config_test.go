package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigAppliesDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", "")
	t.Setenv("LLM_API_KEY", "k")
	t.Setenv("LLM_MODEL", "openai/gpt-4o-mini")
	t.Setenv("EMBEDDING_API_KEY", "k")
	t.Setenv("EMBEDDING_MODEL", "text-embedding-3-small")
	t.Setenv("EMBEDDING_DIMENSION", "1536")
	t.Setenv("PIPEDRIVE_API_TOKEN", "tok")
	t.Setenv("PIPEDRIVE_COMPANY_DOMAIN", "breeze")
	t.Setenv("SALES_MAX_STEPS", "6")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "openai/gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 1536, cfg.Embedding.Dimension)
	assert.Equal(t, "https://breeze.pipedrive.com/api/v1", cfg.Pipedrive.Endpoint())
	assert.Equal(t, "copilot.db", cfg.Vector.Path)
	assert.Equal(t, 4, cfg.RAG.TopK)
	assert.Equal(t, 6, cfg.Sales.MaxSteps)
	assert.Equal(t, 100, cfg.Ingest.DealLimit)
	assert.False(t, cfg.Upstash.Enabled())
	assert.False(t, cfg.QStash.Enabled())
	assert.False(t, cfg.Audit.Enabled())
}
