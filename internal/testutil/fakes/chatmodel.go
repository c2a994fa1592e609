// Package fakes holds scripted collaborators shared by package tests.
package fakes

import (
	"context"
	"errors"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

var ErrScriptExhausted = errors.New("fake chat model: no scripted reply left")

// Reply is one scripted model answer. A non-nil Err is returned instead of
// the content.
type Reply struct {
	Content string
	Err     error
}

// ChatModel replays scripted replies in order and records every prompt.
// When Repeat is set the last reply is reused once the script runs out.
type ChatModel struct {
	mu      sync.Mutex
	replies []Reply
	Repeat  bool
	calls   [][]*schema.Message
	options [][]einomodel.Option
}

var _ einomodel.BaseChatModel = (*ChatModel)(nil)

func NewChatModel(replies ...Reply) *ChatModel {
	return &ChatModel{replies: replies}
}

// Text is a shorthand for scripting plain content replies.
func Text(contents ...string) []Reply {
	out := make([]Reply, 0, len(contents))
	for _, c := range contents {
		out = append(out, Reply{Content: c})
	}
	return out
}

func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, append([]*schema.Message(nil), input...))
	m.options = append(m.options, opts)

	idx := len(m.calls) - 1
	if idx >= len(m.replies) {
		if !m.Repeat || len(m.replies) == 0 {
			return nil, ErrScriptExhausted
		}
		idx = len(m.replies) - 1
	}
	r := m.replies[idx]
	if r.Err != nil {
		return nil, r.Err
	}
	return schema.AssistantMessage(r.Content, nil), nil
}

func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *ChatModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Prompt returns the messages of call i.
func (m *ChatModel) Prompt(i int) []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.calls) {
		return nil
	}
	return m.calls[i]
}

// Options returns the common model options passed on call i.
func (m *ChatModel) Options(i int) *einomodel.Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.options) {
		return nil
	}
	return einomodel.GetCommonOptions(&einomodel.Options{}, m.options[i]...)
}
