package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	supervisorx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/agents/supervisor"
	auditx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/audit"
	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
	llmx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/llm"
	statex "github.com/tanpawarit/Breeze-CRM-Copilot/agent/state"
	"github.com/tanpawarit/Breeze-CRM-Copilot/agent/vectorstore"
	embeddingx "github.com/tanpawarit/Breeze-CRM-Copilot/pkg/embedding"
	pipedrivex "github.com/tanpawarit/Breeze-CRM-Copilot/pkg/pipedrive"
)

const testDim = 8

// newModelServer speaks just enough of the OpenAI API: route classification
// when a response format is requested, a fixed draft otherwise, and constant
// embeddings.
func newModelServer(t *testing.T, route, draft string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.HasSuffix(r.URL.Path, "/embeddings"):
			inputs, _ := body["input"].([]any)
			data := make([]map[string]any, 0, len(inputs))
			for i := range inputs {
				vec := make([]float64, testDim)
				vec[i%testDim] = 1
				data = append(data, map[string]any{"object": "embedding", "index": i, "embedding": vec})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "model": "embed", "data": data})
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			content := draft
			if _, ok := body["response_format"]; ok {
				raw, _ := json.Marshal(map[string]string{"next": route})
				content = string(raw)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion",
				"created": 1,
				"model":   "test-model",
				"choices": []map[string]any{{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]any{"role": "assistant", "content": content},
				}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newPipedriveServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"data":[`+
			`{"id":1,"title":"Acme renewal","status":"open","value":5000,"currency":"USD","owner_name":"Dana","person_name":"Lee","org_name":"Acme"},`+
			`{"id":2,"title":"Globex pilot","status":"won","value":900,"currency":"USD","owner_name":"Sam","person_name":"Kim","org_name":"Globex"}]}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(modelURL, pipedriveURL string) Config {
	return Config{
		LLM: llmx.Config{
			BaseURL:               modelURL,
			APIKey:                "test-key",
			Model:                 "test-model",
			MaxCompletionToken:    256,
			SupervisorTemperature: -1,
			SalesTemperature:      -1,
			GeneratorTemperature:  -1,
			RAGTemperature:        -1,
		},
		Embedding: embeddingx.Config{BaseURL: modelURL, APIKey: "test-key", Model: "embed", Dimension: testDim},
		Pipedrive: pipedrivex.Config{APIToken: "tok", BaseURL: pipedriveURL},
		Vector:    vectorstore.Config{Path: ":memory:"},
	}
}

func TestNewWiresOptionalCollaboratorsAsNoops(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig(newModelServer(t, "Finish", "").URL, newPipedriveServer(t).URL))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.IsType(t, auditx.NoopLog{}, a.Audit)
	assert.IsType(t, statex.NoopHistoryStore{}, a.History)
	assert.Nil(t, a.QStash)
	assert.NotNil(t, a.Supervisor)
	assert.Equal(t, testDim, a.Index.Dimension())
}

func TestNewRejectsMissingModelKey(t *testing.T) {
	t.Parallel()

	cfg := testConfig("http://127.0.0.1:1", "http://127.0.0.1:1")
	cfg.LLM.APIKey = ""
	_, err := New(context.Background(), cfg)
	assert.ErrorIs(t, err, contractx.ErrValidation)
}

func TestNewRejectsMissingPipedriveToken(t *testing.T) {
	t.Parallel()

	cfg := testConfig("http://127.0.0.1:1", "http://127.0.0.1:1")
	cfg.Pipedrive.APIToken = ""
	_, err := New(context.Background(), cfg)
	assert.ErrorIs(t, err, contractx.ErrValidation)
}

func TestWiredTurnReachesMarketingHandler(t *testing.T) {
	t.Parallel()

	draft := "Subject: Meet Breeze\n\nHello there."
	a, err := New(context.Background(), testConfig(newModelServer(t, "MarketingAgent", draft).URL, newPipedriveServer(t).URL))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	res, err := a.Supervisor.HandleTurn(context.Background(), supervisorx.TurnRequest{Message: "Write a marketing email about Breeze"})
	require.NoError(t, err)
	assert.Equal(t, contractx.RouteMarketing, res.Route)
	assert.Equal(t, "Marketing Agent", res.Handler)
	assert.Equal(t, draft, res.Reply)
}

func TestWiredIngestFillsIndex(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig(newModelServer(t, "Finish", "").URL, newPipedriveServer(t).URL))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	report, err := a.Ingest.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Deals)
	assert.Equal(t, 2, report.Chunks)

	count, err := a.Index.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
