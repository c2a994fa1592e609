package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	supervisorx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/agents/supervisor"
	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
)

type fakeTurns struct {
	mu       sync.Mutex
	requests []supervisorx.TurnRequest
	result   supervisorx.TurnResult
	err      error
}

func (f *fakeTurns) HandleTurn(_ context.Context, req supervisorx.TurnRequest) (supervisorx.TurnResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if strings.TrimSpace(req.Message) == "" {
		return supervisorx.TurnResult{Reply: supervisorx.FallbackReply}, supervisorx.ErrInvalidMessage
	}
	return f.result, f.err
}

func (f *fakeTurns) calls() []supervisorx.TurnRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]supervisorx.TurnRequest(nil), f.requests...)
}

type published struct {
	destination string
	payload     any
}

type fakeQueue struct {
	mu        sync.Mutex
	published []published
	verifyErr error
	verified  []string
}

func (q *fakeQueue) Publish(_ context.Context, destination string, payload any) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, published{destination: destination, payload: payload})
	return "msg_1", nil
}

func (q *fakeQueue) Verify(signature string, _ []byte, targetURL string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.verified = append(q.verified, signature+"@"+targetURL)
	return q.verifyErr
}

func (q *fakeQueue) rejectWith(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.verifyErr = err
}

func (q *fakeQueue) snapshot() ([]published, []string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]published(nil), q.published...), append([]string(nil), q.verified...)
}

func newTestServer(t *testing.T, cfg Config, turns *fakeTurns, opts ...Option) *httptest.Server {
	t.Helper()
	s, err := New(cfg, turns, opts...)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string, headers ...string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, Config{}, &fakeTurns{})
	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	assert.Equal(t, "healthy", decode[map[string]string](t, resp)["status"])
}

func TestChatReturnsTurnResult(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{result: supervisorx.TurnResult{
		TurnID:  "t-1",
		Reply:   "Deal 42 is now won.",
		Route:   contractx.RouteSales,
		Handler: "Sales Agent",
	}}
	srv := newTestServer(t, Config{}, turns)

	resp := post(t, srv.URL+"/chat", `{"message":"mark deal 42 as won","conversation_id":"c-9"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "Deal 42 is now won.", body["reply"])
	assert.Equal(t, "SalesAgent", body["route"])
	assert.NotContains(t, body, "error")

	calls := turns.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "mark deal 42 as won", calls[0].Message)
	assert.Equal(t, "c-9", calls[0].ConversationID)
}

func TestChatKeepsFallbackReplyOnFailure(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{
		result: supervisorx.TurnResult{TurnID: "t-2", Reply: supervisorx.FallbackReply, Route: contractx.RouteFinish},
		err:    errors.New("classifier down"),
	}
	srv := newTestServer(t, Config{}, turns)

	resp := post(t, srv.URL+"/chat", `{"message":"hello"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, supervisorx.FallbackReply, body["reply"])
	assert.Equal(t, "classifier down", body["error"])
}

func TestChatRejectsBadInput(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, Config{}, &fakeTurns{})

	assert.Equal(t, http.StatusBadRequest, post(t, srv.URL+"/chat", `{"message":"  "}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(t, srv.URL+"/chat", `not json`).StatusCode)
}

func TestChatStreamSendsGrowingPrefixes(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{result: supervisorx.TurnResult{TurnID: "t-3", Reply: "abcdefgh", Route: contractx.RouteService}}
	srv := newTestServer(t, Config{StreamChunk: 3}, turns)

	resp := post(t, srv.URL+"/chat/stream", `{"message":"how do I reset my password?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var deltas []string
	var done map[string]any
	event := ""
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := []byte(strings.TrimPrefix(line, "data: "))
			if event == "delta" {
				var d map[string]string
				require.NoError(t, json.Unmarshal(data, &d))
				deltas = append(deltas, d["text"])
			} else {
				require.NoError(t, json.Unmarshal(data, &done))
			}
		}
	}
	require.NoError(t, scanner.Err())

	assert.Equal(t, []string{"abc", "abcdef", "abcdefgh"}, deltas)
	assert.Equal(t, "abcdefgh", done["reply"])
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{}
	srv := newTestServer(t, Config{}, turns)

	resp := post(t, srv.URL+"/webhook/pipedrive", `{"event":"updated.deal","current":{"id":1}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ignoredMessage, decode[webhookResponse](t, resp).Message)
	assert.Empty(t, turns.calls())
}

func TestWebhookRequiresDealFields(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{}
	srv := newTestServer(t, Config{}, turns)

	for _, body := range []string{
		`{"event":"added.deal","current":{"title":"Acme","org_name":"Acme"}}`,
		`{"event":"added.deal","current":{"id":7,"org_name":"Acme"}}`,
		`{"event":"added.deal","current":{"id":7,"title":"Acme"}}`,
	} {
		assert.Equal(t, http.StatusBadRequest, post(t, srv.URL+"/webhook/pipedrive", body).StatusCode, body)
	}
	assert.Empty(t, turns.calls())
}

func TestWebhookRunsEnrichmentInline(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{result: supervisorx.TurnResult{Reply: "Note added to deal 7."}}
	srv := newTestServer(t, Config{}, turns)

	resp := post(t, srv.URL+"/webhook/pipedrive", `{"event":"added.deal","current":{"id":7,"title":"Acme renewal","org_name":"Acme"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Note added to deal 7.", decode[webhookResponse](t, resp).FinalResponse)

	calls := turns.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, EnrichmentTask(7, "Acme renewal", "Acme"), calls[0].Message)
	assert.Contains(t, calls[0].Message, "ID 7")
	assert.Contains(t, calls[0].Message, "'Acme'")
}

func TestWebhookQueuesWhenJobQueueConfigured(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{}
	queue := &fakeQueue{}
	srv := newTestServer(t, Config{PublicURL: "https://copilot.example.test/"}, turns, WithJobQueue(queue))

	resp := post(t, srv.URL+"/webhook/pipedrive", `{"event":"added.deal","current":{"id":7,"title":"Acme renewal","org_name":"Acme"}}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "msg_1", decode[webhookResponse](t, resp).MessageID)

	sent, _ := queue.snapshot()
	require.Len(t, sent, 1)
	assert.Equal(t, "https://copilot.example.test/jobs/turn", sent[0].destination)
	assert.Equal(t, turnJob{Message: EnrichmentTask(7, "Acme renewal", "Acme"), DealID: 7}, sent[0].payload)
	assert.Empty(t, turns.calls())
}

func TestJobDeliveryVerifiesSignature(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{result: supervisorx.TurnResult{Reply: "done"}}
	queue := &fakeQueue{}
	srv := newTestServer(t, Config{PublicURL: "https://copilot.example.test"}, turns, WithJobQueue(queue))

	resp := post(t, srv.URL+"/jobs/turn", `{"message":"enrich deal 7"}`, signatureHeader, "sig")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, verified := queue.snapshot()
	assert.Equal(t, []string{"sig@https://copilot.example.test/jobs/turn"}, verified)
	require.Len(t, turns.calls(), 1)
	assert.Equal(t, "enrich deal 7", turns.calls()[0].Message)

	queue.rejectWith(errors.New("bad signature"))
	resp = post(t, srv.URL+"/jobs/turn", `{"message":"enrich deal 7"}`, signatureHeader, "forged")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Len(t, turns.calls(), 1)
}

func TestJobRouteAbsentWithoutQueue(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, Config{}, &fakeTurns{})
	resp := post(t, srv.URL+"/jobs/turn", `{"message":"x"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNewRequiresTurnHandler(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil)
	assert.Error(t, err)
}

func TestChatRejectsInvalidHistory(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{
		result: supervisorx.TurnResult{Reply: supervisorx.FallbackReply},
		err:    fmt.Errorf("turn t-4: %w: role=%q", supervisorx.ErrInvalidHistory, "system"),
	}
	srv := newTestServer(t, Config{}, turns)

	resp := post(t, srv.URL+"/chat", `{"message":"hi","history":[{"role":"system","content":"x"}]}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[errorBody](t, resp).Error, "conversation history is invalid")

	calls := turns.calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].History, 1)
	assert.Equal(t, "system", string(calls[0].History[0].Role))
}
