package specialist

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
	promptx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/prompt"
	toolx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/tool"
)

type Config struct {
	MaxSteps int `envconfig:"MAX_STEPS" split_words:"true" default:"12"`
}

type Deps struct {
	Catalog    *toolx.Catalog
	SalesModel einomodel.BaseChatModel
	Prompts    promptx.PromptSet
	Config     Config
}

type registryImpl struct {
	sales     contractx.Handler
	marketing contractx.Handler
	service   contractx.Handler
}

func (r *registryImpl) Sales() contractx.Handler {
	return r.sales
}

func (r *registryImpl) Marketing() contractx.Handler {
	return r.marketing
}

func (r *registryImpl) Service() contractx.Handler {
	return r.service
}

func NewRegistry(ctx context.Context, deps Deps) (contractx.Registry, error) {
	if deps.Catalog == nil {
		return nil, fmt.Errorf("%w: tool catalog is required", contractx.ErrValidation)
	}
	if deps.SalesModel == nil {
		return nil, fmt.Errorf("%w: sales model is required", contractx.ErrValidation)
	}

	sales, err := NewSalesAgent(ctx, deps.SalesModel, deps.Catalog, deps.Prompts.Sales, deps.Config.MaxSteps)
	if err != nil {
		return nil, err
	}
	marketing, err := newRouterHandler(ctx, contractx.AgentTypeMarketing, pickMarketingTool, deps.Catalog)
	if err != nil {
		return nil, err
	}
	service, err := newRouterHandler(ctx, contractx.AgentTypeService, pickServiceTool, deps.Catalog)
	if err != nil {
		return nil, err
	}

	return &registryImpl{
		sales:     sales,
		marketing: marketing,
		service:   service,
	}, nil
}
