package specialist

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
	promptx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/prompt"
	toolx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/tool"
	logx "github.com/tanpawarit/Breeze-CRM-Copilot/pkg/logger"
)

const (
	DefaultMaxSteps = 12

	finalAnswerMarker = "Final Answer:"
	observationStop   = "\nObservation:"
)

var (
	actionPattern      = regexp.MustCompile(`(?s)Action\s*\d*\s*:\s*(.*?)\s*Action\s*\d*\s*Input\s*\d*\s*:\s*(.*)`)
	actionLinePattern  = regexp.MustCompile(`Action\s*\d*\s*:`)
	actionInputPattern = regexp.MustCompile(`Action\s*\d*\s*Input\s*\d*\s*:`)
)

const (
	msgMissingAction      = "Invalid Format: Missing 'Action:' after 'Thought:'. Reply with an Action and Action Input, or with a Final Answer."
	msgMissingActionInput = "Invalid Format: Missing 'Action Input:' after 'Action:'."
	msgBothActionAndFinal = "Invalid Format: Reply with either an Action or a Final Answer, not both."
	msgEmptyFinalAnswer   = "Invalid Format: 'Final Answer:' must be followed by the answer."
)

type stepKind int

const (
	stepMalformed stepKind = iota
	stepAction
	stepFinal
)

type parsedStep struct {
	Kind    stepKind
	Tool    string
	Input   string
	Answer  string
	Problem string
}

// parseStep reads one model turn. Anything after a hallucinated observation
// is ignored.
func parseStep(text string) parsedStep {
	if idx := strings.Index(text, observationStop); idx >= 0 {
		text = text[:idx]
	}

	includesAnswer := strings.Contains(text, finalAnswerMarker)
	match := actionPattern.FindStringSubmatch(text)

	switch {
	case match != nil && includesAnswer:
		return parsedStep{Kind: stepMalformed, Problem: msgBothActionAndFinal}
	case match != nil:
		tool := strings.TrimSpace(match[1])
		if tool == "" {
			return parsedStep{Kind: stepMalformed, Problem: msgMissingAction}
		}
		input := strings.Trim(strings.TrimSpace(match[2]), `"`)
		return parsedStep{Kind: stepAction, Tool: tool, Input: input}
	case includesAnswer:
		parts := strings.Split(text, finalAnswerMarker)
		answer := strings.TrimSpace(parts[len(parts)-1])
		if answer == "" {
			return parsedStep{Kind: stepMalformed, Problem: msgEmptyFinalAnswer}
		}
		return parsedStep{Kind: stepFinal, Answer: answer}
	case actionLinePattern.MatchString(text) && !actionInputPattern.MatchString(text):
		return parsedStep{Kind: stepMalformed, Problem: msgMissingActionInput}
	default:
		return parsedStep{Kind: stepMalformed, Problem: msgMissingAction}
	}
}

// SalesAgent runs a bounded ReAct loop over the CRM tools.
type SalesAgent struct {
	runner   compose.Runnable[stepInput, *schema.Message]
	exec     toolx.Executor
	system   string
	maxSteps int
}

var _ contractx.Handler = (*SalesAgent)(nil)

func NewSalesAgent(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	catalog *toolx.Catalog,
	promptText string,
	maxSteps int,
) (*SalesAgent, error) {
	if strings.TrimSpace(promptText) == "" {
		return nil, fmt.Errorf("%w: sales prompt", contractx.ErrPromptMissing)
	}
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	infos, exec, err := catalog.BuildForAgent(ctx, contractx.AgentTypeSales)
	if err != nil {
		return nil, fmt.Errorf("%w: sales tools: %v", contractx.ErrValidation, err)
	}
	runner, err := compileStepGraph(ctx, chatModel)
	if err != nil {
		return nil, fmt.Errorf("%w: compile sales graph: %v", contractx.ErrModelInvoke, err)
	}

	return &SalesAgent{
		runner:   runner,
		exec:     exec,
		system:   renderSalesPrompt(promptText, infos),
		maxSteps: maxSteps,
	}, nil
}

func renderSalesPrompt(promptText string, infos []*schema.ToolInfo) string {
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	return promptx.Render(promptText, map[string]string{
		"tools":      toolx.Describe(infos),
		"tool_names": strings.Join(names, ", "),
	})
}

func (a *SalesAgent) MaxSteps() int {
	return a.maxSteps
}

func (a *SalesAgent) Handle(ctx context.Context, request string) (string, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return "", fmt.Errorf("%w: request is empty", contractx.ErrValidation)
	}

	ctx, finish := logx.StartSpan(ctx, "handler", map[string]any{"agent": string(contractx.AgentTypeSales)})
	answer, err := a.loop(ctx, request)
	finish(err)
	return answer, err
}

func (a *SalesAgent) loop(ctx context.Context, request string) (string, error) {
	logger := zerolog.Ctx(ctx)
	var scratchpad strings.Builder
	lastObservation := ""

	for step := 1; step <= a.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("sales loop aborted at step %d: %w", step, err)
		}

		msg, err := a.runner.Invoke(ctx, stepInput{
			System:     a.system,
			Question:   request,
			Scratchpad: scratchpad.String(),
		},
			compose.WithChatModelOption(einomodel.WithTemperature(0)),
			compose.WithChatModelOption(einomodel.WithStop([]string{observationStop})),
		)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", fmt.Errorf("sales loop aborted at step %d: %w", step, ctxErr)
			}
			lastObservation = fmt.Sprintf("Error: model call failed: %v", err)
			logger.Warn().Err(err).Int("step", step).Msg("sales step model call failed")
			continue
		}

		text := ""
		if msg != nil {
			text = msg.Content
		}
		if idx := strings.Index(text, observationStop); idx >= 0 {
			text = text[:idx]
		}

		parsed := parseStep(text)
		var observation string
		switch parsed.Kind {
		case stepFinal:
			logger.Debug().Int("step", step).Msg("sales loop reached final answer")
			return parsed.Answer, nil
		case stepAction:
			logger.Debug().Int("step", step).Str("tool", parsed.Tool).Msg("sales loop action")
			observation = a.exec(ctx, parsed.Tool, parsed.Input)
		default:
			logger.Debug().Int("step", step).Str("problem", parsed.Problem).Msg("sales loop malformed step")
			observation = parsed.Problem
		}

		lastObservation = observation
		scratchpad.WriteString(text)
		scratchpad.WriteString("\nObservation: ")
		scratchpad.WriteString(observation)
		scratchpad.WriteString("\nThought: ")
	}

	logger.Warn().Int("max_steps", a.maxSteps).Msg("sales loop exhausted its step budget")
	return exhaustedAnswer(a.maxSteps, lastObservation), nil
}

func exhaustedAnswer(maxSteps int, lastObservation string) string {
	if strings.TrimSpace(lastObservation) == "" {
		return fmt.Sprintf("I stopped after %d steps without reaching a final answer, and no observation was produced.", maxSteps)
	}
	return fmt.Sprintf("I stopped after %d steps without reaching a final answer. Last observation: %s", maxSteps, lastObservation)
}
