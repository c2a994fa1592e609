// Package app wires configuration into the collaborators a process needs.
// Everything is built once and only read afterwards.
package app

import (
	"context"
	"errors"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog/log"
	specialistx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/agents/specialist"
	supervisorx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/agents/supervisor"
	auditx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/audit"
	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
	ingestx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/ingest"
	promptx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/prompt"
	ragx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/rag"
	statex "github.com/tanpawarit/Breeze-CRM-Copilot/agent/state"
	toolx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/tool"
	"github.com/tanpawarit/Breeze-CRM-Copilot/agent/vectorstore"
	embeddingx "github.com/tanpawarit/Breeze-CRM-Copilot/pkg/embedding"
	openrouterx "github.com/tanpawarit/Breeze-CRM-Copilot/pkg/openrouter"
	pipedrivex "github.com/tanpawarit/Breeze-CRM-Copilot/pkg/pipedrive"
	qstashx "github.com/tanpawarit/Breeze-CRM-Copilot/pkg/qstash"
)

type App struct {
	Config Config

	CRM        contractx.CRM
	Index      *vectorstore.Store
	RAG        *ragx.Chain
	Catalog    *toolx.Catalog
	Handlers   contractx.Registry
	Supervisor *supervisorx.Service
	Ingest     *ingestx.Pipeline
	History    statex.HistoryStore
	Audit      contractx.InvocationLog
	// QStash is nil when no signing keys are configured.
	QStash *qstashx.Client

	closers []func() error
}

func New(ctx context.Context, cfg Config) (*App, error) {
	a := &App{Config: cfg}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config
	if err := cfg.LLM.Validate(); err != nil {
		return err
	}
	prompts := promptx.LoadPromptSet()
	if err := prompts.Validate(); err != nil {
		return err
	}

	embedder, err := embeddingx.New(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("embedding client: %w", err)
	}
	index, err := vectorstore.Open(ctx, cfg.Vector.Path, embedder.Dimension())
	if err != nil {
		return fmt.Errorf("vector index: %w", err)
	}
	a.Index = index
	a.closers = append(a.closers, index.Close)

	pipedrive, err := pipedrivex.NewClient(cfg.Pipedrive)
	if err != nil {
		return fmt.Errorf("%w: pipedrive client: %v", contractx.ErrValidation, err)
	}
	a.CRM = NewPipedriveCRM(pipedrive)

	if err := a.initAudit(ctx); err != nil {
		return err
	}

	retriever, err := ragx.NewRetriever(embedder, index, cfg.RAG.TopK)
	if err != nil {
		return err
	}
	ragModel, err := a.chatModel(ctx, contractx.AgentTypeRAG)
	if err != nil {
		return err
	}
	a.RAG, err = ragx.NewChain(ctx, retriever, ragModel, prompts.RAG)
	if err != nil {
		return err
	}

	generator, err := a.chatModel(ctx, contractx.AgentTypeGenerator)
	if err != nil {
		return err
	}
	a.Catalog, err = toolx.NewCatalog(ctx, toolx.Deps{
		CRM:       a.CRM,
		Answerer:  a.RAG,
		Log:       a.Audit,
		Generator: generator,
		Prompts:   prompts,
	})
	if err != nil {
		return err
	}

	salesModel, err := a.chatModel(ctx, contractx.AgentTypeSales)
	if err != nil {
		return err
	}
	a.Handlers, err = specialistx.NewRegistry(ctx, specialistx.Deps{
		Catalog:    a.Catalog,
		SalesModel: salesModel,
		Prompts:    prompts,
		Config:     cfg.Sales,
	})
	if err != nil {
		return err
	}

	routerCfg := cfg.LLM.OpenRouterFor(contractx.AgentTypeSupervisor)
	classifier, err := supervisorx.NewClassifier(openrouterx.NewClient(routerCfg), routerCfg.Model, routerCfg.Temperature, prompts.Supervisor)
	if err != nil {
		return err
	}

	if err := a.initHistory(); err != nil {
		return err
	}
	a.Supervisor, err = supervisorx.New(ctx, classifier, a.Handlers, supervisorx.WithHistory(a.History))
	if err != nil {
		return err
	}

	a.Ingest, err = ingestx.NewPipeline(a.CRM, embedder, index, cfg.Ingest)
	if err != nil {
		return err
	}

	if cfg.QStash.Enabled() {
		a.QStash, err = qstashx.NewClient(cfg.QStash)
		if err != nil {
			return fmt.Errorf("%w: qstash client: %v", contractx.ErrValidation, err)
		}
	}
	return nil
}

func (a *App) chatModel(ctx context.Context, agentType contractx.AgentType) (einomodel.BaseChatModel, error) {
	cfg := a.Config.LLM.OpenRouterFor(agentType)
	m, err := cfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s model: %v", contractx.ErrModelInvoke, agentType, err)
	}
	return m, nil
}

func (a *App) initAudit(ctx context.Context) error {
	if !a.Config.Audit.Enabled() {
		a.Audit = auditx.NoopLog{}
		return nil
	}
	l, err := auditx.Open(ctx, a.Config.Audit)
	if err != nil {
		return fmt.Errorf("audit log: %w", err)
	}
	a.Audit = l
	a.closers = append(a.closers, l.Close)
	return nil
}

func (a *App) initHistory() error {
	if !a.Config.Upstash.Enabled() {
		a.History = statex.NoopHistoryStore{}
		return nil
	}
	store, err := statex.NewUpstashRedisStore(a.Config.Upstash)
	if err != nil {
		return fmt.Errorf("%w: history store: %v", contractx.ErrValidation, err)
	}
	a.History = store
	return nil
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		log.Warn().Err(err).Msg("close application resources")
		return err
	}
	return nil
}
