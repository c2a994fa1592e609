package supervisor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
	statex "github.com/tanpawarit/Breeze-CRM-Copilot/agent/state"
	logx "github.com/tanpawarit/Breeze-CRM-Copilot/pkg/logger"
)

// FallbackReply is what the user sees when a turn cannot be completed.
const FallbackReply = "I'm sorry, I couldn't process that request. Please try rephrasing."

var (
	ErrInvalidMessage = errors.New("message is required")
	ErrInvalidHistory = errors.New("conversation history is invalid")
)

type TurnRequest struct {
	Message        string
	History        []statex.Message
	ConversationID string
}

// TurnResult always carries a reply, including when HandleTurn also returns
// an error.
type TurnResult struct {
	TurnID  string                    `json:"turn_id"`
	Reply   string                    `json:"reply"`
	Route   contractx.Route           `json:"route"`
	Handler string                    `json:"handler,omitempty"`
	Trace   []TraceStep               `json:"trace"`
	State   *statex.ConversationState `json:"-"`
}

type Option func(*Service)

// WithHistory loads and saves prior turns for requests that carry a
// conversation id.
func WithHistory(store statex.HistoryStore) Option {
	return func(s *Service) {
		if store != nil {
			s.history = store
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// Service runs one supervisor turn per call. It holds no per-turn state and
// is safe for concurrent use.
type Service struct {
	classifier contractx.Classifier
	handlers   contractx.Registry
	history    statex.HistoryStore
	newID      func() string

	runner compose.Runnable[*turnState, *turnState]
}

func New(ctx context.Context, classifier contractx.Classifier, handlers contractx.Registry, opts ...Option) (*Service, error) {
	if classifier == nil {
		return nil, errors.New("route classifier is required")
	}
	if handlers == nil {
		return nil, errors.New("handler registry is required")
	}

	s := &Service{
		classifier: classifier,
		handlers:   handlers,
		history:    statex.NoopHistoryStore{},
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	runner, err := s.compileTurnGraph(ctx)
	if err != nil {
		return nil, err
	}
	s.runner = runner
	return s, nil
}

func (s *Service) HandleTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	turnID := s.newID()
	result := TurnResult{TurnID: turnID, Reply: FallbackReply, Route: contractx.RouteFinish}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return result, ErrInvalidMessage
	}

	logger := log.With().Str("turn_id", turnID).Str("conversation_id", req.ConversationID).Logger()
	ctx = logger.WithContext(ctx)
	ctx, finish := logx.StartSpan(ctx, "turn", nil)

	conversation := statex.NewConversation(req.ConversationID, s.seedHistory(ctx, req), message)
	result.State = conversation

	// Nothing is dispatched for a conversation that could not be saved.
	if err := conversation.Validate(); err != nil {
		finish(err)
		return result, fmt.Errorf("turn %s: %w: %w", turnID, ErrInvalidHistory, err)
	}
	request, err := conversation.LatestUserMessage()
	if err != nil {
		finish(err)
		return result, fmt.Errorf("turn %s: %w: %w", turnID, ErrInvalidHistory, err)
	}

	out, err := s.runner.Invoke(ctx, &turnState{Conversation: conversation, Request: request})
	if err != nil {
		finish(err)
		logger.Error().Err(err).Msg("turn aborted, replying with fallback")
		return result, fmt.Errorf("turn %s: %w", turnID, err)
	}

	result.Trace = out.Trace
	if len(out.Trace) > 0 {
		result.Route = out.Trace[0].Route
	}
	if reply, ok := out.Conversation.Reply(); ok {
		result.Reply = reply.Content
		result.Handler = reply.Origin
	}

	if err := out.Conversation.Validate(); err != nil {
		finish(err)
		return result, fmt.Errorf("turn %s: %w", turnID, err)
	}
	s.saveHistory(ctx, out.Conversation)

	logger.Info().Str("route", string(result.Route)).Str("handler", result.Handler).Msg("turn completed")
	finish(nil)
	return result, nil
}

func (s *Service) seedHistory(ctx context.Context, req TurnRequest) []statex.Message {
	if len(req.History) > 0 || strings.TrimSpace(req.ConversationID) == "" {
		return req.History
	}
	msgs, err := s.history.Load(ctx, req.ConversationID)
	if err != nil {
		if !errors.Is(err, statex.ErrHistoryNotFound) {
			log.Ctx(ctx).Warn().Err(err).Msg("load conversation history failed")
		}
		return nil
	}
	return msgs
}

func (s *Service) saveHistory(ctx context.Context, st *statex.ConversationState) {
	if strings.TrimSpace(st.ConversationID) == "" {
		return
	}
	if err := s.history.Save(ctx, st); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("save conversation history failed")
	}
}
