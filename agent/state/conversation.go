package state

import (
	"errors"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
)

const OriginSupervisor = "supervisor"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn entry. Origin names the handler that produced it.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Origin  string `json:"origin,omitempty"`
}

// ConversationState is threaded through one turn. Messages only grow;
// NextRoute is scratch space for the supervisor and is not persisted.
type ConversationState struct {
	ConversationID string          `json:"conversation_id,omitempty"`
	Messages       []Message       `json:"messages"`
	NextRoute      contractx.Route `json:"-"`
}

var (
	ErrEmptyConversation = errors.New("conversation has no messages")
	ErrSupervisorAnswer  = errors.New("supervisor must not author the delivered answer")
)

// NewConversation seeds a fresh state with prior turns and the new user message.
func NewConversation(conversationID string, history []Message, userText string) *ConversationState {
	msgs := make([]Message, 0, len(history)+2)
	msgs = append(msgs, history...)
	msgs = append(msgs, Message{Role: RoleUser, Content: userText})
	return &ConversationState{
		ConversationID: conversationID,
		Messages:       msgs,
	}
}

func (s *ConversationState) Append(msgs ...Message) {
	s.Messages = append(s.Messages, msgs...)
}

func (s *ConversationState) Last() (Message, bool) {
	if s == nil || len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// LatestUserMessage returns the most recent user-authored content.
func (s *ConversationState) LatestUserMessage() (string, error) {
	if s == nil {
		return "", ErrEmptyConversation
	}
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content, nil
		}
	}
	return "", ErrEmptyConversation
}

// Reply returns the content of the last handler-authored message, if any.
func (s *ConversationState) Reply() (Message, bool) {
	last, ok := s.Last()
	if !ok || last.Role != RoleAssistant || strings.TrimSpace(last.Origin) == "" {
		return Message{}, false
	}
	return last, true
}

func (s *ConversationState) Validate() error {
	if s == nil || len(s.Messages) == 0 {
		return ErrEmptyConversation
	}
	for i, m := range s.Messages {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return fmt.Errorf("%w: message %d has role=%q", contractx.ErrValidation, i, m.Role)
		}
	}
	if last, _ := s.Last(); last.Origin == OriginSupervisor {
		return ErrSupervisorAnswer
	}
	return nil
}
