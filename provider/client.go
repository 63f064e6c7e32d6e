package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"cratedig/logger"
)

const (
	defaultUserAgent = "cratedig/1.0"
	maxAttempts      = 3
)

// BaseClient provides common HTTP functionality for all platform clients
type BaseClient struct {
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	UserAgent  string
}

// NewBaseClient creates a base client limited to requestsPerSecond
func NewBaseClient(httpClient *http.Client, requestsPerSecond float64) *BaseClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &BaseClient{
		HTTPClient: httpClient,
		Limiter:    rate.NewLimiter(limit, 1),
		UserAgent:  defaultUserAgent,
	}
}

// DoWithRetry sends req, retrying transport errors and 5xx/429 answers with a
// linear backoff. The body is fully read and closed.
func (c *BaseClient) DoWithRetry(ctx context.Context, req *http.Request) (*http.Response, []byte, error) {
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}

		resp, err := c.HTTPClient.Do(req.Clone(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			lastErr = err
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("failed to read response: %w", readErr)
			} else if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				lastErr = fmt.Errorf("server returned %d", resp.StatusCode)
				if attempt == maxAttempts {
					return resp, body, nil
				}
			} else {
				return resp, body, nil
			}
		}

		logger.Debug("Retrying provider request",
			logger.String("url", req.URL.Path),
			logger.Int("attempt", attempt),
			logger.ErrorField(lastErr))

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	return nil, nil, fmt.Errorf("request failed after %d attempts: %w", maxAttempts, lastErr)
}
