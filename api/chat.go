package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	supervisorx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/agents/supervisor"
	statex "github.com/tanpawarit/Breeze-CRM-Copilot/agent/state"
)

type chatRequest struct {
	Message        string           `json:"message"`
	ConversationID string           `json:"conversation_id,omitempty"`
	History        []statex.Message `json:"history,omitempty"`
}

func (c chatRequest) turn() supervisorx.TurnRequest {
	return supervisorx.TurnRequest{
		Message:        c.Message,
		ConversationID: c.ConversationID,
		History:        c.History,
	}
}

// chatResponse carries the fallback reply and the failure when a turn aborts.
type chatResponse struct {
	supervisorx.TurnResult
	Error string `json:"error,omitempty"`
}

func (s *Server) runTurn(r *http.Request, req supervisorx.TurnRequest) (chatResponse, int) {
	res, err := s.turns.HandleTurn(r.Context(), req)
	out := chatResponse{TurnResult: res}
	switch {
	case errors.Is(err, supervisorx.ErrInvalidMessage), errors.Is(err, supervisorx.ErrInvalidHistory):
		out.Error = err.Error()
		return out, http.StatusBadRequest
	case err != nil:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("turn_id", res.TurnID).Msg("turn failed")
		out.Error = err.Error()
	}
	return out, http.StatusOK
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	out, status := s.runTurn(r, req.turn())
	if status != http.StatusOK {
		writeError(w, status, "%s", out.Error)
		return
	}
	writeJSON(w, status, out)
}

// chatStream replies with server-sent events: one "delta" per growing prefix
// of the reply, then a "done" event with the full result.
func (s *Server) chatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	out, status := s.runTurn(r, req.turn())
	if status != http.StatusOK {
		writeError(w, status, "%s", out.Error)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for prefix := range supervisorx.StreamReply(out.Reply, s.cfg.StreamChunk) {
		if r.Context().Err() != nil {
			return
		}
		if err := writeEvent(w, "delta", map[string]string{"text": prefix}); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("stream write failed")
			return
		}
		flusher.Flush()
	}
	if err := writeEvent(w, "done", out); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("stream write failed")
		return
	}
	flusher.Flush()
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
