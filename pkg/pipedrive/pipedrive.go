package pipedrive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var ErrAPI = errors.New("pipedrive api error")

const (
	maxResponseSizeBytes = 4 << 20
	tokenHeader          = "x-api-token"
)

type Config struct {
	APIToken      string        `split_words:"true" required:"true"`
	CompanyDomain string        `split_words:"true" required:"true"`
	BaseURL       string        `split_words:"true"`
	Timeout       time.Duration `split_words:"true" default:"15s"`
}

// Endpoint returns the REST v1 root for the configured company. BaseURL
// overrides the derived address.
func (c Config) Endpoint() string {
	if v := strings.TrimSpace(c.BaseURL); v != "" {
		return strings.TrimRight(v, "/")
	}
	return fmt.Sprintf("https://%s.pipedrive.com/api/v1", strings.TrimSpace(c.CompanyDomain))
}

// Deal mirrors the fields of a v1 deal object the copilot reads.
type Deal struct {
	ID         int64   `json:"id"`
	Title      string  `json:"title"`
	Status     string  `json:"status"`
	Value      float64 `json:"value"`
	Currency   string  `json:"currency"`
	OwnerName  string  `json:"owner_name"`
	PersonName string  `json:"person_name"`
	OrgName    string  `json:"org_name"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	token := strings.TrimSpace(cfg.APIToken)
	if token == "" {
		return nil, errors.New("pipedrive api token is required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" && strings.TrimSpace(cfg.CompanyDomain) == "" {
		return nil, errors.New("pipedrive company domain is required")
	}

	baseURL := cfg.Endpoint()
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid pipedrive url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// RecentDeals lists deals newest first.
func (c *Client) RecentDeals(ctx context.Context, limit int) ([]Deal, error) {
	if limit <= 0 {
		limit = 5
	}
	query := url.Values{}
	query.Set("sort", "add_time DESC")
	query.Set("limit", strconv.Itoa(limit))

	data, err := c.do(ctx, http.MethodGet, "/deals", query, nil)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || string(data) == "null" {
		return []Deal{}, nil
	}

	var deals []Deal
	if err := json.Unmarshal(data, &deals); err != nil {
		return nil, fmt.Errorf("%w: decode deals: %v", ErrAPI, err)
	}
	return deals, nil
}

func (c *Client) CreateNote(ctx context.Context, dealID int64, content string) error {
	_, err := c.do(ctx, http.MethodPost, "/notes", nil, map[string]any{
		"content": content,
		"deal_id": dealID,
	})
	return err
}

func (c *Client) UpdateDealStatus(ctx context.Context, dealID int64, status string) error {
	_, err := c.do(ctx, http.MethodPut, "/deals/"+strconv.FormatInt(dealID, 10), nil, map[string]any{
		"status": status,
	})
	return err
}

// do performs one request. There are no retries; any non-2xx is an error.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal pipedrive payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build pipedrive request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(tokenHeader, c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error repeats the request URL; keep only the cause.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("%w: %s %s: %v", ErrAPI, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrAPI, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s %s status=%d body=%s", ErrAPI, method, path, resp.StatusCode, string(raw))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrAPI, err)
	}
	if env.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrAPI, env.Error)
	}
	if !env.Success {
		return nil, fmt.Errorf("%w: %s %s returned no success data", ErrAPI, method, path)
	}
	return env.Data, nil
}
