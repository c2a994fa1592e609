package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	supervisorx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/agents/supervisor"
)

const (
	eventAddedDeal   = "added.deal"
	signatureHeader  = "Upstash-Signature"
	ignoredMessage   = "Event ignored (not a new deal)."
	processedMessage = "Webhook processed and AI enrichment triggered."
	queuedMessage    = "Webhook accepted; AI enrichment queued."
)

type dealWebhook struct {
	Event   string `json:"event"`
	Current struct {
		ID      int64  `json:"id"`
		Title   string `json:"title"`
		OrgName string `json:"org_name"`
	} `json:"current"`
}

type webhookResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	FinalResponse string `json:"final_agent_response,omitempty"`
	MessageID     string `json:"message_id,omitempty"`
}

// turnJob is the payload QStash delivers back to the job route.
type turnJob struct {
	Message string `json:"message"`
	DealID  int64  `json:"deal_id,omitempty"`
}

// EnrichmentTask is the instruction handed to the supervisor for a new deal.
func EnrichmentTask(dealID int64, title, orgName string) string {
	return fmt.Sprintf(
		"A new CRM deal has been created with ID %d titled '%s' for the company '%s'. "+
			"Your task is to proactively enrich this deal. "+
			"First, look up the deal in the CRM to confirm its status and value. "+
			"Then create a concise summary note on deal %d covering the organization, the deal title and its current status. "+
			"Finally, confirm that the note has been added.",
		dealID, title, orgName, dealID,
	)
}

func (s *Server) pipedriveWebhook(w http.ResponseWriter, r *http.Request) {
	var hook dealWebhook
	if err := decodeJSON(w, r, &hook); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	logger := zerolog.Ctx(r.Context())
	logger.Info().Str("event", hook.Event).Msg("pipedrive webhook received")

	if hook.Event != eventAddedDeal {
		writeJSON(w, http.StatusOK, webhookResponse{Status: "success", Message: ignoredMessage})
		return
	}

	deal := hook.Current
	title, org := strings.TrimSpace(deal.Title), strings.TrimSpace(deal.OrgName)
	if deal.ID <= 0 || title == "" || org == "" {
		writeError(w, http.StatusBadRequest, "Missing deal_id, title, or org_name in webhook payload.")
		return
	}
	task := EnrichmentTask(deal.ID, title, org)
	logger.Debug().Int64("deal_id", deal.ID).Str("task", task).Msg("enrichment task formulated")

	if target := s.jobURL(); target != "" {
		id, err := s.jobs.Publish(r.Context(), target, turnJob{Message: task, DealID: deal.ID})
		if err != nil {
			logger.Error().Err(err).Int64("deal_id", deal.ID).Msg("queue enrichment")
			writeError(w, http.StatusBadGateway, "queue enrichment: %v", err)
			return
		}
		writeJSON(w, http.StatusAccepted, webhookResponse{Status: "queued", Message: queuedMessage, MessageID: id})
		return
	}

	res, err := s.turns.HandleTurn(r.Context(), supervisorx.TurnRequest{Message: task})
	if err != nil {
		logger.Error().Err(err).Int64("deal_id", deal.ID).Msg("enrichment turn failed")
		writeError(w, http.StatusInternalServerError, "Internal Server Error: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{Status: "success", Message: processedMessage, FinalResponse: res.Reply})
}

// deliverJob runs a turn that QStash delivers. The body is read once so the
// signature covers exactly what is decoded.
func (s *Server) deliverJob(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: %v", err)
		return
	}
	if err := s.jobs.Verify(r.Header.Get(signatureHeader), body, s.jobURL()); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("rejected job delivery")
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var job turnJob
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&job); err != nil {
		writeError(w, http.StatusBadRequest, "decode job: %v", err)
		return
	}
	out, status := s.runTurn(r, supervisorx.TurnRequest{Message: job.Message})
	if status != http.StatusOK {
		writeError(w, status, "%s", out.Error)
		return
	}
	// A failed turn is still acknowledged so QStash does not redeliver it.
	writeJSON(w, http.StatusOK, out)
}
