package pipedrive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(Config{APIToken: "tok", BaseURL: server.URL})
	require.NoError(t, err)
	return c
}

func TestEndpointFromDomain(t *testing.T) {
	t.Parallel()

	cfg := Config{CompanyDomain: "breeze"}
	assert.Equal(t, "https://breeze.pipedrive.com/api/v1", cfg.Endpoint())
}

func TestRecentDeals(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/deals", r.URL.Path)
		assert.Equal(t, "tok", r.Header.Get("x-api-token"))
		assert.Empty(t, r.URL.Query().Get("api_token"))
		assert.Equal(t, "add_time DESC", r.URL.Query().Get("sort"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"success":true,"data":[{"id":10,"title":"Acme renewal","status":"open","value":5000,"currency":"USD","owner_name":"Dana","person_name":"Lee","org_name":"Acme"}]}`)
	})

	deals, err := c.RecentDeals(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, deals, 1)
	assert.Equal(t, Deal{ID: 10, Title: "Acme renewal", Status: "open", Value: 5000, Currency: "USD", OwnerName: "Dana", PersonName: "Lee", OrgName: "Acme"}, deals[0])
}

func TestRecentDealsNullData(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"data":null}`)
	})

	deals, err := c.RecentDeals(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, deals)
}

func TestCreateNote(t *testing.T) {
	t.Parallel()

	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/notes", r.URL.Path)
		assert.Empty(t, r.URL.RawQuery)
		assert.Equal(t, "tok", r.Header.Get("x-api-token"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"success":true,"data":{"id":1}}`)
	})

	require.NoError(t, c.CreateNote(context.Background(), 7, "called the client"))
	assert.Equal(t, float64(7), got["deal_id"])
	assert.Equal(t, "called the client", got["content"])
}

func TestUpdateDealStatus(t *testing.T) {
	t.Parallel()

	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/deals/10", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"success":true,"data":{"id":10}}`)
	})

	require.NoError(t, c.UpdateDealStatus(context.Background(), 10, "won"))
	assert.Equal(t, "won", got["status"])
}

func TestNon2xxIsError(t *testing.T) {
	t.Parallel()

	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"success":false,"error":"Deal not found"}`)
	})

	err := c.UpdateDealStatus(context.Background(), 99, "won")
	assert.True(t, errors.Is(err, ErrAPI), "err = %v", err)
	assert.Equal(t, 1, calls, "no retries")
}

func TestSuccessFalseIsError(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":false,"data":null}`)
	})

	err := c.CreateNote(context.Background(), 7, "x")
	assert.ErrorIs(t, err, ErrAPI)
	assert.Contains(t, err.Error(), "no success data")
}

func TestTransportErrorDoesNotExposeToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	const token = "SECRET-TOKEN-123"
	c, err := NewClient(Config{APIToken: token, BaseURL: baseURL})
	require.NoError(t, err)

	for _, err := range []error{
		c.CreateNote(context.Background(), 5, "hi"),
		c.UpdateDealStatus(context.Background(), 5, "won"),
		func() error { _, err := c.RecentDeals(context.Background(), 5); return err }(),
	} {
		require.ErrorIs(t, err, ErrAPI)
		assert.NotContains(t, err.Error(), token)
		assert.NotContains(t, err.Error(), baseURL)
	}
}
