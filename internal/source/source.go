// Package source fetches raw articles from news providers.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/hyperjump/yomu/internal/models"
)

// Adapter fetches up to limit raw articles of a canonical category.
// Adapters return nil, nil for categories they do not carry.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, category models.Category, limit int) ([]models.RawArticle, error)
}

// Carrier is implemented by adapters that serve only some categories.
type Carrier interface {
	Carries(category models.Category) bool
}

// Carries reports whether a serves category. Adapters that do not implement
// Carrier serve every category.
func Carries(a Adapter, category models.Category) bool {
	if c, ok := a.(Carrier); ok {
		return c.Carries(category)
	}
	return true
}

// FailureKind classifies adapter failures.
type FailureKind string

const (
	FailureTransport   FailureKind = "transport"
	FailureTimeout     FailureKind = "timeout"
	FailureRateLimited FailureKind = "rate_limited"
	FailureHTTPStatus  FailureKind = "http_status"
	FailureMalformed   FailureKind = "malformed"
	FailureCircuitOpen FailureKind = "circuit_open"
)

// Failure is the error returned by every adapter.
type Failure struct {
	Source     string
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (f *Failure) Error() string {
	if f.StatusCode != 0 {
		return fmt.Sprintf("source %s: %s (status %d): %v", f.Source, f.Kind, f.StatusCode, f.Err)
	}
	return fmt.Sprintf("source %s: %s: %v", f.Source, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// AsFailure returns err as a *Failure, classifying plain errors.
func AsFailure(source string, err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	kind := FailureTransport
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = FailureTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = FailureTimeout
	}
	return &Failure{Source: source, Kind: kind, Err: err}
}

// AdapterOption configures the HTTP adapters.
type AdapterOption func(*httpOptions)

type httpOptions struct {
	client *http.Client
	now    func() time.Time
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) AdapterOption {
	return func(o *httpOptions) { o.client = c }
}

// WithClock overrides the clock used for FetchedAt.
func WithClock(now func() time.Time) AdapterOption {
	return func(o *httpOptions) { o.now = now }
}

func buildOptions(opts []AdapterOption) httpOptions {
	o := httpOptions{client: &http.Client{Timeout: 30 * time.Second}, now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

const maxBody = 8 << 20

// get performs a GET and returns the body, mapping status codes to failures.
func get(ctx context.Context, client *http.Client, source, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Failure{Source: source, Kind: FailureTransport, Err: err}
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("User-Agent", "yomu/1.0")
	resp, err := client.Do(req)
	if err != nil {
		return nil, AsFailure(source, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, AsFailure(source, err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Failure{Source: source, Kind: FailureRateLimited, StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &Failure{Source: source, Kind: FailureHTTPStatus, StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}
	return body, nil
}

func getJSON(ctx context.Context, client *http.Client, source, url string, out any) error {
	body, err := get(ctx, client, source, url, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Failure{Source: source, Kind: FailureMalformed, Err: err}
	}
	return nil
}

// parseTime accepts the RFC 3339 variants the JSON providers emit.
func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05Z0700", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
