package supervisor

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
	statex "github.com/tanpawarit/Breeze-CRM-Copilot/agent/state"
)

const nodeSupervisor = "Supervisor"

// TraceStep records one state the turn passed through.
type TraceStep struct {
	Node   string          `json:"node"`
	Route  contractx.Route `json:"route,omitempty"`
	Detail string          `json:"detail,omitempty"`
}

type turnState struct {
	Conversation *statex.ConversationState
	Request      string
	Trace        []TraceStep
}

// compileTurnGraph builds Supervisor -> {SalesAgent | MarketingAgent |
// ServiceAgent} -> END, or Supervisor -> END on Finish.
func (s *Service) compileTurnGraph(ctx context.Context) (compose.Runnable[*turnState, *turnState], error) {
	graph := compose.NewGraph[*turnState, *turnState]()

	if err := graph.AddLambdaNode(nodeSupervisor,
		compose.InvokableLambda(func(ctx context.Context, in *turnState) (*turnState, error) {
			route, err := s.classifier.Classify(ctx, in.Request)
			if err != nil {
				return nil, err
			}
			in.Conversation.NextRoute = route
			in.Trace = append(in.Trace, TraceStep{Node: nodeSupervisor, Route: route})
			return in, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeSupervisor, err)
	}

	handlers := map[contractx.Route]func() contractx.Handler{
		contractx.RouteSales:     s.handlers.Sales,
		contractx.RouteMarketing: s.handlers.Marketing,
		contractx.RouteService:   s.handlers.Service,
	}
	endNodes := map[string]bool{compose.END: true}

	for _, route := range []contractx.Route{contractx.RouteSales, contractx.RouteMarketing, contractx.RouteService} {
		route := route
		handler := handlers[route]()
		if handler == nil {
			return nil, fmt.Errorf("%w: no handler for route=%s", contractx.ErrValidation, route)
		}

		if err := graph.AddLambdaNode(string(route),
			compose.InvokableLambda(func(ctx context.Context, in *turnState) (*turnState, error) {
				out, err := handler.Handle(ctx, in.Request)
				if err != nil {
					return nil, fmt.Errorf("handler %s: %w", route.Handler(), err)
				}
				in.Conversation.Append(statex.Message{
					Role:    statex.RoleAssistant,
					Content: out,
					Origin:  route.Handler(),
				})
				in.Conversation.NextRoute = contractx.RouteFinish
				in.Trace = append(in.Trace, TraceStep{Node: string(route), Route: contractx.RouteFinish, Detail: route.Handler()})
				return in, nil
			}),
		); err != nil {
			return nil, fmt.Errorf("add node %s: %w", route, err)
		}
		if err := graph.AddEdge(string(route), compose.END); err != nil {
			return nil, fmt.Errorf("add edge %s->end: %w", route, err)
		}
		endNodes[string(route)] = true
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *turnState) (string, error) {
			switch route := in.Conversation.NextRoute; route {
			case contractx.RouteSales, contractx.RouteMarketing, contractx.RouteService:
				return string(route), nil
			case contractx.RouteFinish:
				return compose.END, nil
			default:
				return "", fmt.Errorf("%w: route=%q", contractx.ErrUnclassifiable, route)
			}
		},
		endNodes,
	)
	if err := graph.AddBranch(nodeSupervisor, branch); err != nil {
		return nil, fmt.Errorf("add supervisor branch: %w", err)
	}
	if err := graph.AddEdge(compose.START, nodeSupervisor); err != nil {
		return nil, fmt.Errorf("add edge start->%s: %w", nodeSupervisor, err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("supervisor.turn"))
	if err != nil {
		return nil, fmt.Errorf("compile supervisor graph: %w", err)
	}
	return runner, nil
}
