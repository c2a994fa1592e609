package supervisor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
	promptx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/prompt"
)

// routeServer answers every chat completion with {"next": route}.
type routeServer struct {
	*httptest.Server

	mu       sync.Mutex
	route    string
	status   int
	requests []map[string]any
}

func newRouteServer(t *testing.T, route string) *routeServer {
	t.Helper()

	rs := &routeServer{route: route, status: http.StatusOK}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		rs.mu.Lock()
		rs.requests = append(rs.requests, body)
		status, route := rs.status, rs.route
		rs.mu.Unlock()

		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream unavailable"}}`))
			return
		}

		content, _ := json.Marshal(map[string]string{"next": route})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1,
			"model":   "router-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": string(content),
				},
			}},
		})
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *routeServer) Requests() []map[string]any {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]map[string]any(nil), rs.requests...)
}

func newTestClassifier(t *testing.T, rs *routeServer) *Classifier {
	t.Helper()
	client := openai.NewClient(
		option.WithBaseURL(rs.URL),
		option.WithAPIKey("test-key"),
		option.WithMaxRetries(0),
	)
	c, err := NewClassifier(&client, "router-model", 0, promptx.LoadPromptSet().Supervisor)
	require.NoError(t, err)
	return c
}

func TestClassifierUsesEnumSchema(t *testing.T) {
	t.Parallel()

	rs := newRouteServer(t, "SalesAgent")
	route, err := newTestClassifier(t, rs).Classify(t.Context(), "What is deal 4 worth?")
	require.NoError(t, err)
	assert.Equal(t, contractx.RouteSales, route)

	reqs := rs.Requests()
	require.Len(t, reqs, 1)
	body := reqs[0]

	assert.Equal(t, "router-model", body["model"])
	assert.EqualValues(t, 0, body["temperature"])

	format, ok := body["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_schema", format["type"])
	jsonSchema := format["json_schema"].(map[string]any)
	assert.Equal(t, true, jsonSchema["strict"])
	next := jsonSchema["schema"].(map[string]any)["properties"].(map[string]any)["next"].(map[string]any)
	assert.Equal(t, []any{"SalesAgent", "MarketingAgent", "ServiceAgent", "Finish"}, next["enum"])

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	system := msgs[0].(map[string]any)["content"]
	assert.Contains(t, system, "SalesAgent, MarketingAgent, ServiceAgent.")
}

func TestClassifierRejectsOutOfEnumRoute(t *testing.T) {
	t.Parallel()

	rs := newRouteServer(t, "FinanceAgent")
	_, err := newTestClassifier(t, rs).Classify(t.Context(), "book a flight")
	assert.ErrorIs(t, err, contractx.ErrUnclassifiable)
	assert.ErrorIs(t, err, contractx.ErrSchemaViolation)
}

func TestClassifierIsCaseStrict(t *testing.T) {
	t.Parallel()

	rs := newRouteServer(t, "salesagent")
	_, err := newTestClassifier(t, rs).Classify(t.Context(), "deal 4")
	assert.ErrorIs(t, err, contractx.ErrUnclassifiable)
	assert.ErrorIs(t, err, contractx.ErrSchemaViolation)
}

func TestClassifierCallFailure(t *testing.T) {
	t.Parallel()

	rs := newRouteServer(t, "SalesAgent")
	rs.mu.Lock()
	rs.status = http.StatusBadGateway
	rs.mu.Unlock()

	_, err := newTestClassifier(t, rs).Classify(t.Context(), "deal 4")
	assert.ErrorIs(t, err, contractx.ErrUnclassifiable)
}

func TestNewClassifierRequiresPrompt(t *testing.T) {
	t.Parallel()

	client := openai.NewClient(option.WithAPIKey("k"))
	_, err := NewClassifier(&client, "m", 0, " ")
	assert.ErrorIs(t, err, contractx.ErrPromptMissing)
}
