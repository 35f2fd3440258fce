package keepa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kyosuke-takei/slack-price-watch/internal/infra"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.keepa.com"

// DetailBatchSize is the maximum number of ASINs per detail call.
const DetailBatchSize = 20

const maxRetries = 3

// ErrUpstreamUnavailable is returned without touching the network when
// the guard has the upstream marked dead.
var ErrUpstreamUnavailable = errors.New("keepa: upstream unavailable (guard open)")

// RateLimitError carries the server-suggested backoff from the error body.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("keepa: rate limited, retry after %s", e.RetryAfter)
}

// StatusError is any other non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("keepa: unexpected status %d: %s", e.Code, e.Body)
}

// retryable reports whether the request may succeed on another attempt.
func (e *StatusError) retryable() bool {
	return e.Code >= 500
}

// Client talks to the product-data API. All calls are paced by the rate
// limiter and short-circuited by the upstream guard.
type Client struct {
	apiKey     string
	domain     int
	baseURL    string
	httpClient *http.Client
	limiter    *infra.RateLimiter
	guard      *infra.Guard
}

// NewClient creates a client for the configured region.
func NewClient(cfg *infra.Config, limiter *infra.RateLimiter, guard *infra.Guard) *Client {
	return &Client{
		apiKey:  cfg.Keepa.APIKey,
		domain:  cfg.Keepa.Domain,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: limiter,
		guard:   guard,
	}
}

// Search returns one page of ASINs for a category, best-selling first.
// page is zero-based.
func (c *Client) Search(ctx context.Context, category string, page, perPage int) (SearchResult, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("domain", strconv.Itoa(c.domain))
	q.Set("category", category)
	q.Set("page", strconv.Itoa(page))
	q.Set("perPage", strconv.Itoa(perPage))
	q.Set("sort", "SALES")

	var result SearchResult
	if err := c.getJSON(ctx, "/search", q, &result); err != nil {
		return SearchResult{}, err
	}
	return result, nil
}

// Details fetches per-item data for up to DetailBatchSize ASINs, with the
// stats block covering statsDays of history.
func (c *Client) Details(ctx context.Context, asins []string, statsDays int) ([]Product, error) {
	if len(asins) == 0 {
		return nil, nil
	}
	if len(asins) > DetailBatchSize {
		return nil, fmt.Errorf("keepa: detail batch too large: %d > %d", len(asins), DetailBatchSize)
	}

	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("domain", strconv.Itoa(c.domain))
	q.Set("asin", strings.Join(asins, ","))
	q.Set("stats", strconv.Itoa(statsDays))

	var result productResponse
	if err := c.getJSON(ctx, "/product", q, &result); err != nil {
		return nil, err
	}
	return result.Products, nil
}

// getJSON performs one logical call with the retry policy: a rate-limit
// response waits the server-suggested duration, other transient failures
// use exponential backoff, and the retry budget is bounded. Exhausting it
// returns the last error; the caller treats that as a skippable failure.
func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := infra.CalculateBackoff(attempt - 1)
			var rateErr *RateLimitError
			if errors.As(lastErr, &rateErr) {
				delay = infra.CapRetryAfter(rateErr.RetryAfter)
			}
			slog.Info("Retrying upstream call",
				slog.String("path", path),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if !c.guard.Allow() {
			return ErrUpstreamUnavailable
		}
		c.limiter.Wait()

		err := c.doGet(ctx, path, q, out)
		if err == nil {
			c.guard.RecordSuccess()
			return nil
		}
		if ctx.Err() != nil {
			return err
		}

		lastErr = err
		c.guard.RecordFailure()

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.retryable() {
			return err
		}
		slog.Warn("Upstream call attempt failed",
			slog.String("path", path),
			slog.Int("attempt", attempt+1),
			slog.Any("error", err))
	}
	return lastErr
}

func (c *Client) doGet(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		if retryAfter, ok := parseRetryAfter(body); ok {
			return &RateLimitError{RetryAfter: retryAfter}
		}
		return &StatusError{Code: resp.StatusCode, Body: truncateBody(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("keepa: decode %s response: %w", path, err)
	}
	return nil
}

// parseRetryAfter extracts the "retry after N milliseconds" hint from a
// machine-readable error body. Kept separate from the retry loop so the
// body-format coupling stays in one tested place.
func parseRetryAfter(body []byte) (time.Duration, bool) {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return 0, false
	}
	if er.RefillIn <= 0 {
		return 0, false
	}
	return time.Duration(er.RefillIn) * time.Millisecond, true
}

func truncateBody(body []byte) string {
	const max = 200
	s := string(body)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
