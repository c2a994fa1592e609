// Package rag answers CRM questions from indexed deal records only.
package rag

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
	logx "github.com/tanpawarit/Breeze-CRM-Copilot/pkg/logger"
)

const DefaultTopK = 4

type Config struct {
	TopK int `envconfig:"TOP_K" split_words:"true" default:"4"`
}

// Chain is retrieve -> prompt -> model -> answer, compiled once.
type Chain struct {
	retriever *Retriever
	runner    compose.Runnable[string, string]
}

var _ contractx.Answerer = (*Chain)(nil)

func NewChain(ctx context.Context, retriever *Retriever, chatModel einomodel.BaseChatModel, promptText string) (*Chain, error) {
	if retriever == nil {
		return nil, fmt.Errorf("%w: retriever is required", contractx.ErrValidation)
	}
	if chatModel == nil {
		return nil, fmt.Errorf("%w: chat model is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(promptText) == "" {
		return nil, fmt.Errorf("%w: rag prompt", contractx.ErrPromptMissing)
	}

	c := &Chain{retriever: retriever}
	runner, err := c.compile(ctx, chatModel, promptText)
	if err != nil {
		return nil, err
	}
	c.runner = runner
	return c, nil
}

func (c *Chain) compile(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	promptText string,
) (compose.Runnable[string, string], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.UserMessage(promptText),
	)

	graph := compose.NewGraph[string, string]()

	if err := graph.AddLambdaNode("retrieve",
		compose.InvokableLambda(func(ctx context.Context, question string) (map[string]any, error) {
			chunks, err := c.retriever.Context(ctx, question, 0)
			if err != nil {
				return nil, err
			}
			zerolog.Ctx(ctx).Debug().Int("chunks", len(chunks)).Msg("retrieved context")
			return map[string]any{
				"context":  formatContext(chunks),
				"question": question,
			}, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add rag retrieve node: %w", err)
	}
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add rag prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add rag model node: %w", err)
	}
	if err := graph.AddLambdaNode("answer",
		compose.InvokableLambda(func(ctx context.Context, msg *schema.Message) (string, error) {
			if msg == nil {
				return "", fmt.Errorf("%w: empty model reply", contractx.ErrModelInvoke)
			}
			return strings.TrimSpace(msg.Content), nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add rag answer node: %w", err)
	}

	edges := [][2]string{
		{compose.START, "retrieve"},
		{"retrieve", "prompt"},
		{"prompt", "model"},
		{"model", "answer"},
		{"answer", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add rag edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("rag.answer"))
	if err != nil {
		return nil, fmt.Errorf("compile rag graph: %w", err)
	}
	return runner, nil
}

// Answer runs the chain at temperature 0.
func (c *Chain) Answer(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("%w: question is empty", contractx.ErrValidation)
	}

	ctx, finish := logx.StartSpan(ctx, "rag.answer", nil)
	out, err := c.runner.Invoke(ctx, question,
		compose.WithChatModelOption(einomodel.WithTemperature(0)),
	)
	finish(err)
	if err != nil {
		return "", fmt.Errorf("%w: rag chain: %w", contractx.ErrModelInvoke, err)
	}
	return out, nil
}
