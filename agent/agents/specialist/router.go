package specialist

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
	toolx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/tool"
	logx "github.com/tanpawarit/Breeze-CRM-Copilot/pkg/logger"
)

var serviceDraftKeywords = []string{"draft", "write", "respond", "response", "reply"}

func pickMarketingTool(request string) string {
	if strings.Contains(strings.ToLower(request), "email") {
		return toolx.ToolMarketingEmail
	}
	return toolx.ToolBlogOutline
}

func pickServiceTool(request string) string {
	lower := strings.ToLower(request)
	for _, kw := range serviceDraftKeywords {
		if strings.Contains(lower, kw) {
			return toolx.ToolCustomerResponse
		}
	}
	return toolx.ToolCRMLookup
}

// routerHandler selects exactly one tool by keyword and invokes it once.
type routerHandler struct {
	agentType contractx.AgentType
	runner    compose.Runnable[string, string]
}

var _ contractx.Handler = (*routerHandler)(nil)

func newRouterHandler(
	ctx context.Context,
	agentType contractx.AgentType,
	pick func(string) string,
	catalog *toolx.Catalog,
) (*routerHandler, error) {
	runner, err := compileRouterGraph(ctx, string(agentType), catalog.Names(agentType), pick, catalog.NewExecutor(agentType))
	if err != nil {
		return nil, fmt.Errorf("%w: compile %s handler: %v", contractx.ErrValidation, agentType, err)
	}
	return &routerHandler{agentType: agentType, runner: runner}, nil
}

func (h *routerHandler) Handle(ctx context.Context, request string) (string, error) {
	ctx, finish := logx.StartSpan(ctx, "handler", map[string]any{"agent": string(h.agentType)})
	out, err := h.runner.Invoke(ctx, request)
	finish(err)
	if err != nil {
		return "", err
	}
	return out, nil
}
