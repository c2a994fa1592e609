package app

import (
	specialistx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/agents/specialist"
	auditx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/audit"
	ingestx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/ingest"
	llmx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/llm"
	ragx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/rag"
	statex "github.com/tanpawarit/Breeze-CRM-Copilot/agent/state"
	"github.com/tanpawarit/Breeze-CRM-Copilot/agent/vectorstore"
	configx "github.com/tanpawarit/Breeze-CRM-Copilot/pkg/config"
	embeddingx "github.com/tanpawarit/Breeze-CRM-Copilot/pkg/embedding"
	pipedrivex "github.com/tanpawarit/Breeze-CRM-Copilot/pkg/pipedrive"
	qstashx "github.com/tanpawarit/Breeze-CRM-Copilot/pkg/qstash"
)

// Config groups every section the application reads from the environment.
type Config struct {
	LLM       llmx.Config
	Embedding embeddingx.Config
	Pipedrive pipedrivex.Config
	Vector    vectorstore.Config
	RAG       ragx.Config
	Sales     specialistx.Config
	Ingest    ingestx.Config
	Upstash   statex.UpstashRedisConfig
	QStash    qstashx.Config
	Audit     auditx.Config
}

// LoadConfig reads all sections. Missing required settings fail here, before
// anything is served.
func LoadConfig() (Config, error) {
	var cfg Config
	steps := []func() error{
		load(&cfg.LLM, "LLM"),
		load(&cfg.Embedding, "EMBEDDING"),
		load(&cfg.Pipedrive, "PIPEDRIVE"),
		load(&cfg.Vector, "VECTOR"),
		load(&cfg.RAG, "RAG"),
		load(&cfg.Sales, "SALES"),
		load(&cfg.Ingest, "INGEST"),
		load(&cfg.Upstash, "UPSTASH_REDIS"),
		load(&cfg.QStash, "QSTASH"),
		load(&cfg.Audit, "AUDIT"),
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

func load[T any](dst *T, prefix string) func() error {
	return func() error {
		v, err := configx.New[T](prefix)
		if err != nil {
			return err
		}
		*dst = *v
		return nil
	}
}
