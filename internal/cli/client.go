package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/yomu/internal/feedback"
	"github.com/hyperjump/yomu/internal/ingest"
	"github.com/hyperjump/yomu/internal/models"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to a running yomu server.
type Client struct {
	baseURL string
	token   string
	userID  string
	http    *http.Client
}

// NewClient creates a client for baseURL. token is sent as a bearer token;
// userID is sent as X-User-ID when no token is set.
func NewClient(baseURL, token, userID string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		userID:  userID,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) (int, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.userID != "":
		req.Header.Set("X-User-ID", c.userID)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &e)
		if e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: e.Error}
		if out != nil {
			// Some endpoints return a payload alongside the error.
			_ = json.Unmarshal(data, out)
		}
		return resp.StatusCode, apiErr
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func listQuery(category string, limit, offset int) url.Values {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	return q
}

// Trending fetches the trending list.
func (c *Client) Trending(ctx context.Context, category string, limit int) (*models.FeedResponse, error) {
	var out models.FeedResponse
	_, err := c.do(ctx, http.MethodGet, "/api/v1/trending", listQuery(category, limit, 0), nil, &out)
	return &out, err
}

// Feed fetches the personalized feed.
func (c *Client) Feed(ctx context.Context, category string, limit, offset int) (*models.FeedResponse, error) {
	var out models.FeedResponse
	_, err := c.do(ctx, http.MethodGet, "/api/v1/feed", listQuery(category, limit, offset), nil, &out)
	return &out, err
}

// Search runs a search.
func (c *Client) Search(ctx context.Context, query, category string, limit int) (*models.FeedResponse, error) {
	q := listQuery(category, limit, 0)
	q.Set("q", query)
	var out models.FeedResponse
	_, err := c.do(ctx, http.MethodGet, "/api/v1/search", q, nil, &out)
	return &out, err
}

// Interact records an interaction.
func (c *Client) Interact(ctx context.Context, articleID string, kind models.InteractionKind, duration float64) (*feedback.Ack, error) {
	body := map[string]interface{}{"article_id": articleID, "kind": kind}
	if duration > 0 {
		body["duration_seconds"] = duration
	}
	var ack feedback.Ack
	_, err := c.do(ctx, http.MethodPost, "/api/v1/interactions", nil, body, &ack)
	return &ack, err
}

// Refresh runs an on-demand ingestion cycle. The report is returned even
// when the cycle failed.
func (c *Client) Refresh(ctx context.Context) (*ingest.Report, error) {
	var out ingest.Report
	_, err := c.do(ctx, http.MethodPost, "/api/v1/refresh", nil, nil, &out)
	return &out, err
}

// Stats fetches catalog statistics.
func (c *Client) Stats(ctx context.Context) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	_, err := c.do(ctx, http.MethodGet, "/api/v1/stats", nil, nil, &out)
	return out, err
}
