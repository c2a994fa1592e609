package tool

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
	logx "github.com/tanpawarit/Breeze-CRM-Copilot/pkg/logger"
)

const (
	ToolBlogOutline      = "Blog_Post_Outline_Generator"
	ToolMarketingEmail   = "Marketing_Email_Drafter"
	ToolCustomerResponse = "Customer_Response_Drafter"

	CreativeTemperature float32 = 0.7
)

// GeneratorTool drafts content from a single prompt. It touches no external
// system. Each draft is recorded as a generateContent invocation.
type GeneratorTool struct {
	name        string
	desc        string
	paramDesc   string
	temperature float32
	runner      compose.Runnable[map[string]any, string]
	log         contractx.InvocationLog
}

var _ einotool.InvokableTool = (*GeneratorTool)(nil)

type GeneratorSpec struct {
	Name      string
	Desc      string
	ParamDesc string
	Prompt    string
	Log       contractx.InvocationLog
}

func NewGeneratorTool(ctx context.Context, chatModel einomodel.BaseChatModel, spec GeneratorSpec) (*GeneratorTool, error) {
	if strings.TrimSpace(spec.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt for %s", contractx.ErrPromptMissing, spec.Name)
	}
	runner, err := compileGeneratorGraph(ctx, chatModel, spec.Prompt, "tool."+spec.Name)
	if err != nil {
		return nil, err
	}
	return &GeneratorTool{
		name:        spec.Name,
		desc:        spec.Desc,
		paramDesc:   spec.ParamDesc,
		temperature: CreativeTemperature,
		runner:      runner,
		log:         spec.Log,
	}, nil
}

func (t *GeneratorTool) Info(context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.name,
		Desc: t.desc,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"input": {Type: schema.String, Desc: t.paramDesc, Required: true},
		}),
	}, nil
}

func (t *GeneratorTool) InvokableRun(ctx context.Context, input string, _ ...einotool.Option) (string, error) {
	ctx, finish := logx.StartSpan(ctx, "tool", map[string]any{"tool": t.name})

	topic := plainInput(input)
	inv := newInvocation(t.name, contractx.TargetGenerateContent, input, map[string]any{"input": topic})

	out, err := t.runner.Invoke(ctx, map[string]any{"input": topic},
		compose.WithChatModelOption(einomodel.WithTemperature(t.temperature)),
	)
	if err != nil {
		inv.Outcome = contractx.OutcomeCollaboratorError
		inv.Result = fmt.Sprintf("Error: %s could not generate content: %v", t.name, err)
	} else {
		inv.Outcome = contractx.OutcomeSucceeded
		inv.Result = out
	}
	recordInvocation(ctx, t.log, inv)
	finish(err)
	return inv.Result, nil
}

func compileGeneratorGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	promptText string,
	graphName string,
) (compose.Runnable[map[string]any, string], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.UserMessage(promptText),
	)

	graph := compose.NewGraph[map[string]any, string]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add generator prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add generator model node: %w", err)
	}
	if err := graph.AddLambdaNode("content",
		compose.InvokableLambda(func(ctx context.Context, msg *schema.Message) (string, error) {
			if msg == nil {
				return "", fmt.Errorf("%w: empty model reply", contractx.ErrModelInvoke)
			}
			return strings.TrimSpace(msg.Content), nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add generator content node: %w", err)
	}

	edges := [][2]string{
		{compose.START, "prompt"},
		{"prompt", "model"},
		{"model", "content"},
		{"content", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add generator edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile generator graph: %w", err)
	}
	return runner, nil
}
