package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
	promptx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/prompt"
	logx "github.com/tanpawarit/Breeze-CRM-Copilot/pkg/logger"
)

const routeSchemaName = "route"

// routeSchema restricts the reply to the closed route set.
func routeSchema() map[string]any {
	enum := make([]string, 0, len(contractx.AllRoutes))
	for _, r := range contractx.AllRoutes {
		enum = append(enum, string(r))
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"next": map[string]any{
				"type":        "string",
				"description": "The agent that should act next, or Finish.",
				"enum":        enum,
			},
		},
		"required":             []string{"next"},
		"additionalProperties": false,
	}
}

type routeDecision struct {
	Next string `json:"next"`
}

// Classifier asks the model for a route under a strict JSON schema response
// format. Replies outside the enum are rejected, not repaired.
type Classifier struct {
	client      *openai.Client
	model       string
	temperature float32
	system      string
}

var _ contractx.Classifier = (*Classifier)(nil)

func NewClassifier(client *openai.Client, model string, temperature float32, promptText string) (*Classifier, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: classifier client is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("%w: classifier model is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(promptText) == "" {
		return nil, fmt.Errorf("%w: supervisor prompt", contractx.ErrPromptMissing)
	}
	return &Classifier{
		client:      client,
		model:       strings.TrimSpace(model),
		temperature: temperature,
		system:      promptx.Render(promptText, map[string]string{"members": memberList()}),
	}, nil
}

func memberList() string {
	members := make([]string, 0, len(contractx.AllRoutes))
	for _, r := range contractx.AllRoutes {
		if r == contractx.RouteFinish {
			continue
		}
		members = append(members, string(r))
	}
	return strings.Join(members, ", ")
}

func (c *Classifier) Classify(ctx context.Context, message string) (contractx.Route, error) {
	ctx, finish := logx.StartSpan(ctx, "classify", map[string]any{"model": c.model})
	route, err := c.classify(ctx, message)
	finish(err)
	return route, err
}

func (c *Classifier) classify(ctx context.Context, message string) (contractx.Route, error) {
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.system),
			openai.UserMessage(message),
		},
		Temperature: openai.Float(float64(c.temperature)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        routeSchemaName,
					Description: openai.String("Routing decision for the user's request"),
					Schema:      routeSchema(),
					Strict:      openai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: classification call: %v", contractx.ErrUnclassifiable, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: classification returned no choices", contractx.ErrUnclassifiable)
	}

	var decision routeDecision
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &decision); err != nil {
		return "", fmt.Errorf("%w: %w: classification reply is not a route object: %v", contractx.ErrUnclassifiable, contractx.ErrSchemaViolation, err)
	}
	route := contractx.Route(decision.Next)
	if !route.Valid() {
		return "", fmt.Errorf("%w: %w: route=%q is not one of %v", contractx.ErrUnclassifiable, contractx.ErrSchemaViolation, decision.Next, contractx.AllRoutes)
	}
	return route, nil
}
