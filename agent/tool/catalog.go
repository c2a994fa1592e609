package tool

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
	promptx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/prompt"
)

// Executor runs one named tool and always yields text for the caller.
type Executor func(ctx context.Context, tool string, input string) string

type Deps struct {
	CRM       contractx.CRM
	Answerer  contractx.Answerer
	Log       contractx.InvocationLog
	Generator einomodel.BaseChatModel
	Prompts   promptx.PromptSet
}

// Catalog is built once at start-up and is read-only afterwards.
type Catalog struct {
	tools   map[string]einotool.InvokableTool
	byAgent map[contractx.AgentType][]string
}

func NewCatalog(ctx context.Context, deps Deps) (*Catalog, error) {
	if deps.CRM == nil {
		return nil, fmt.Errorf("%w: crm is required", contractx.ErrValidation)
	}
	if deps.Answerer == nil {
		return nil, fmt.Errorf("%w: answerer is required", contractx.ErrValidation)
	}
	if deps.Generator == nil {
		return nil, fmt.Errorf("%w: generator model is required", contractx.ErrValidation)
	}

	blog, err := NewGeneratorTool(ctx, deps.Generator, GeneratorSpec{
		Name:      ToolBlogOutline,
		Desc:      "Use this tool to generate a blog post outline on a given topic. The input should be the topic of the blog.",
		ParamDesc: "Topic of the blog post",
		Prompt:    deps.Prompts.BlogOutline,
		Log:       deps.Log,
	})
	if err != nil {
		return nil, err
	}
	email, err := NewGeneratorTool(ctx, deps.Generator, GeneratorSpec{
		Name:      ToolMarketingEmail,
		Desc:      "Use this tool to draft a marketing email on a given topic. The input should describe the purpose or topic of the email.",
		ParamDesc: "Purpose or topic of the email",
		Prompt:    deps.Prompts.MarketingEmail,
		Log:       deps.Log,
	})
	if err != nil {
		return nil, err
	}
	reply, err := NewGeneratorTool(ctx, deps.Generator, GeneratorSpec{
		Name:      ToolCustomerResponse,
		Desc:      "Use this tool to draft a response to a customer's question. The input should be the customer's full question.",
		ParamDesc: "The customer's full question",
		Prompt:    deps.Prompts.CustomerResponse,
		Log:       deps.Log,
	})
	if err != nil {
		return nil, err
	}

	tools := map[string]einotool.InvokableTool{
		ToolCRMLookup:        NewLookupTool(deps.Answerer),
		ToolCreateNote:       NewCreateNoteTool(deps.CRM, deps.Log),
		ToolUpdateDealStatus: NewUpdateStatusTool(deps.CRM, deps.Log),
		ToolBlogOutline:      blog,
		ToolMarketingEmail:   email,
		ToolCustomerResponse: reply,
	}

	return &Catalog{
		tools: tools,
		byAgent: map[contractx.AgentType][]string{
			contractx.AgentTypeSales:     {ToolCRMLookup, ToolCreateNote, ToolUpdateDealStatus},
			contractx.AgentTypeMarketing: {ToolBlogOutline, ToolMarketingEmail},
			contractx.AgentTypeService:   {ToolCustomerResponse, ToolCRMLookup},
		},
	}, nil
}

func (c *Catalog) Get(name string) (einotool.InvokableTool, bool) {
	t, ok := c.tools[name]
	return t, ok
}

// Names lists the tools an agent may call, in a stable order.
func (c *Catalog) Names(agentType contractx.AgentType) []string {
	return append([]string(nil), c.byAgent[agentType]...)
}

func (c *Catalog) Infos(ctx context.Context, agentType contractx.AgentType) ([]*schema.ToolInfo, error) {
	names := c.byAgent[agentType]
	infos := make([]*schema.ToolInfo, 0, len(names))
	for _, name := range names {
		info, err := c.tools[name].Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info %s: %w", name, err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (c *Catalog) BuildForAgent(ctx context.Context, agentType contractx.AgentType) ([]*schema.ToolInfo, Executor, error) {
	infos, err := c.Infos(ctx, agentType)
	if err != nil {
		return nil, nil, err
	}
	return infos, c.NewExecutor(agentType), nil
}

// NewExecutor dispatches to the agent's tools and reports anything else as
// unavailable.
func (c *Catalog) NewExecutor(agentType contractx.AgentType) Executor {
	allowed := make(map[string]einotool.InvokableTool, len(c.byAgent[agentType]))
	for _, name := range c.byAgent[agentType] {
		allowed[name] = c.tools[name]
	}
	fallback := DefaultExecutor(agentType, c.byAgent[agentType])

	return func(ctx context.Context, tool string, input string) string {
		t, ok := allowed[strings.TrimSpace(tool)]
		if !ok {
			return fallback(ctx, tool, input)
		}
		out, err := t.InvokableRun(ctx, input)
		if err != nil {
			return fmt.Sprintf("Error: tool=%s failed: %v", tool, err)
		}
		return out
	}
}

func DefaultExecutor(agentType contractx.AgentType, available []string) Executor {
	return func(ctx context.Context, tool string, _ string) string {
		return fmt.Sprintf("Error: tool=%s is unavailable for agent=%s. Use one of [%s].",
			tool, agentType, strings.Join(available, ", "))
	}
}

// Describe renders tool infos as "name: description" lines for text prompts.
func Describe(infos []*schema.ToolInfo) string {
	lines := make([]string, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		lines = append(lines, info.Name+": "+info.Desc)
	}
	return strings.Join(lines, "\n")
}
