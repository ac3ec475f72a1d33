package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/daostar/proposals-api/src/proposals/metrics"
)

const defaultTimeout = 30 * time.Second

// ErrRetriesExhausted reports that every attempt hit a retryable status.
// It is a hard failure and must reach the caller, never an empty page.
var ErrRetriesExhausted = errors.New("maximum retries exceeded with status 429 or 503")

// StatusError is a non-200 response that is not retryable.
type StatusError struct {
	Code int
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream rejected request: HTTP %d", e.Code)
}

// Payload is the body of a GraphQL POST.
type Payload struct {
	Query     string `json:"query"`
	Variables any    `json:"variables,omitempty"`
}

// Client executes GraphQL POST requests with bounded exponential backoff on
// rate-limit and unavailability responses (429/503). Other failures are
// never retried.
type Client struct {
	httpClient  *http.Client
	maxAttempts int
	baseDelay   time.Duration

	// test seams; sleep blocks only the calling goroutine
	sleep  func(time.Duration)
	jitter func(max time.Duration) time.Duration
}

func New(maxAttempts int, baseDelay time.Duration) *Client {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Client{
		httpClient:  &http.Client{Timeout: defaultTimeout},
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		sleep:       time.Sleep,
		jitter: func(max time.Duration) time.Duration {
			if max <= 0 {
				return 0
			}
			return time.Duration(rand.Int63n(int64(max)))
		},
	}
}

// Do posts payload to endpoint and returns the response body of the first
// 200. A 429 or 503 sleeps delay + uniform(0, delay/2), doubles the delay
// and retries, up to maxAttempts total attempts before ErrRetriesExhausted.
// Any other status returns a *StatusError.
//
// A transport-level failure short-circuits to (nil, nil): the caller sees an
// empty result and no error, and treats a nil body as a terminal empty page.
func (c *Client) Do(ctx context.Context, endpoint string, payload Payload, headers map[string]string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	host := endpointHost(endpoint)
	delay := c.baseDelay

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.UpstreamRequests.WithLabelValues(host, "transport_error").Inc()
			log.Printf("graphql: request to %s failed: %v", host, err)
			return nil, nil
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			if readErr != nil {
				return nil, fmt.Errorf("read response: %w", readErr)
			}
			metrics.UpstreamRequests.WithLabelValues(host, "ok").Inc()
			return respBody, nil
		case http.StatusTooManyRequests, http.StatusServiceUnavailable:
			metrics.UpstreamRequests.WithLabelValues(host, "rate_limited").Inc()
			if attempt == c.maxAttempts {
				break
			}
			sleepFor := delay + c.jitter(delay/2)
			log.Printf("graphql: %s returned %d, attempt %d/%d, retrying in %s",
				host, resp.StatusCode, attempt, c.maxAttempts, sleepFor)
			metrics.UpstreamRetries.Inc()
			c.sleep(sleepFor)
			delay *= 2
		default:
			metrics.UpstreamRequests.WithLabelValues(host, "rejected").Inc()
			log.Printf("graphql: %s returned %d: %s", host, resp.StatusCode, respBody)
			return nil, &StatusError{Code: resp.StatusCode, Body: respBody}
		}
	}

	return nil, ErrRetriesExhausted
}

func endpointHost(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	return u.Host
}
