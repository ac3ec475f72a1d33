package graphql

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(maxAttempts int, baseDelay time.Duration) (*Client, *[]time.Duration) {
	c := New(maxAttempts, baseDelay)
	slept := &[]time.Duration{}
	c.sleep = func(d time.Duration) { *slept = append(*slept, d) }
	c.jitter = func(time.Duration) time.Duration { return 0 }
	return c, slept
}

func TestDoReturnsBodyOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"data":{"ok":true}}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(5, time.Second)
	body, err := c.Do(context.Background(), srv.URL, Payload{Query: "query {}"}, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"ok":true}}`, string(body))
}

func TestDoSetsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("Api-Key"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(5, time.Second)
	_, err := c.Do(context.Background(), srv.URL, Payload{Query: "q"}, map[string]string{"Api-Key": "secret"})
	require.NoError(t, err)
}

func TestDoBackoffScheduleAndExhaustion(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, slept := newTestClient(5, 3*time.Second)
	body, err := c.Do(context.Background(), srv.URL, Payload{Query: "q"}, nil)

	assert.Nil(t, body)
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 5, attempts)
	// delay doubles after each retryable response; no sleep after the last
	assert.Equal(t, []time.Duration{3 * time.Second, 6 * time.Second, 12 * time.Second, 24 * time.Second}, *slept)
}

func TestDoRecoversAfterRateLimit(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	c, slept := newTestClient(5, time.Second)
	body, err := c.Do(context.Background(), srv.URL, Payload{Query: "q"}, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{}}`, string(body))
	assert.Equal(t, 3, attempts)
	assert.Len(t, *slept, 2)
}

func TestDoRejectedStatusIsNotRetried(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"message":"bad query"}]}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(5, time.Second)
	body, err := c.Do(context.Background(), srv.URL, Payload{Query: "q"}, nil)

	assert.Nil(t, body)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Code)
	assert.Contains(t, string(statusErr.Body), "bad query")
	assert.Equal(t, 1, attempts)
}

func TestDoTransportFailureShortCircuits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c, slept := newTestClient(5, time.Second)
	body, err := c.Do(context.Background(), srv.URL, Payload{Query: "q"}, nil)

	assert.Nil(t, body)
	assert.NoError(t, err)
	assert.Empty(t, *slept)
}

func TestDoJitterBoundedByHalfDelay(t *testing.T) {
	c := New(5, 4*time.Second)
	for i := 0; i < 100; i++ {
		j := c.jitter(2 * time.Second)
		assert.GreaterOrEqual(t, j, time.Duration(0))
		assert.Less(t, j, 2*time.Second)
	}
}

func TestStatusErrorMessage(t *testing.T) {
	err := &StatusError{Code: 404}
	assert.Equal(t, "upstream rejected request: HTTP 404", err.Error())
	assert.True(t, errors.As(error(err), new(*StatusError)))
}
