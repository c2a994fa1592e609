package specialist

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
)

// stepInput is one ReAct step: the rendered instructions, the question and
// everything the agent has thought and observed so far.
type stepInput struct {
	System     string
	Question   string
	Scratchpad string
}

// compileStepGraph builds prompt -> model. The prompt is assembled by a
// lambda because the scratchpad carries raw JSON that template engines would
// try to interpolate.
func compileStepGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
) (compose.Runnable[stepInput, *schema.Message], error) {
	graph := compose.NewGraph[stepInput, *schema.Message]()

	if err := graph.AddLambdaNode("prompt",
		compose.InvokableLambda(func(ctx context.Context, in stepInput) ([]*schema.Message, error) {
			return []*schema.Message{
				schema.SystemMessage(in.System),
				schema.UserMessage("Question: " + in.Question + "\nThought:" + in.Scratchpad),
			}, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add step prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add step model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add step edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add step edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add step edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("specialist.sales_step"))
	if err != nil {
		return nil, fmt.Errorf("compile sales step graph: %w", err)
	}
	return runner, nil
}

type routedRequest struct {
	Request string
	Tool    string
}

// compileRouterGraph builds prepare -> branch -> one node per tool. pick must
// return one of tools.
func compileRouterGraph(
	ctx context.Context,
	name string,
	tools []string,
	pick func(request string) string,
	exec func(ctx context.Context, tool string, input string) string,
) (compose.Runnable[string, string], error) {
	graph := compose.NewGraph[string, string]()

	if err := graph.AddLambdaNode("prepare",
		compose.InvokableLambda(func(ctx context.Context, request string) (*routedRequest, error) {
			trimmed := strings.TrimSpace(request)
			if trimmed == "" {
				return nil, fmt.Errorf("%w: request is empty", contractx.ErrValidation)
			}
			return &routedRequest{Request: trimmed, Tool: pick(trimmed)}, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add %s prepare node: %w", name, err)
	}

	endNodes := make(map[string]bool, len(tools))
	for _, tool := range tools {
		tool := tool
		if err := graph.AddLambdaNode(tool,
			compose.InvokableLambda(func(ctx context.Context, in *routedRequest) (string, error) {
				return exec(ctx, tool, in.Request), nil
			}),
		); err != nil {
			return nil, fmt.Errorf("add %s tool node %s: %w", name, tool, err)
		}
		if err := graph.AddEdge(tool, compose.END); err != nil {
			return nil, fmt.Errorf("add %s edge %s->end: %w", name, tool, err)
		}
		endNodes[tool] = true
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *routedRequest) (string, error) {
			if in == nil || !endNodes[in.Tool] {
				return "", fmt.Errorf("%w: no tool node for %s request", contractx.ErrValidation, name)
			}
			return in.Tool, nil
		},
		endNodes,
	)
	if err := graph.AddBranch("prepare", branch); err != nil {
		return nil, fmt.Errorf("add %s branch: %w", name, err)
	}
	if err := graph.AddEdge(compose.START, "prepare"); err != nil {
		return nil, fmt.Errorf("add %s edge start->prepare: %w", name, err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("specialist."+name))
	if err != nil {
		return nil, fmt.Errorf("compile %s router graph: %w", name, err)
	}
	return runner, nil
}
