package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdnguyen/outcall/internal/core/resilience"
)

func newTestExecutor(failMax int) *resilience.Executor {
	reg := resilience.NewRegistry(resilience.BreakerConfig{
		FailMax:      failMax,
		ResetTimeout: time.Minute,
	})
	return resilience.NewExecutor(reg)
}

// fastRetry retries transient failures without real backoff.
func fastRetry(attempts int) resilience.Policy {
	return resilience.Policy{MaxAttempts: attempts}
}

func TestGetDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/objects/1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","name":"Pixel 6 Pro"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, newTestExecutor(3))
	res, err := c.Get(context.Background(), "/objects/1")
	require.NoError(t, err)

	var obj map[string]any
	require.NoError(t, res.Decode(&obj))
	assert.Equal(t, "Pixel 6 Pro", obj["name"])
}

func TestPostSendsJSONBodyAndTraceHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Trace-Id"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	c := New(srv.URL, newTestExecutor(3))
	res, err := c.Post(context.Background(), "/create", map[string]string{"name": "Item"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.Status)
}

func TestDeleteNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, newTestExecutor(3))
	res, err := c.Delete(context.Background(), "/resource/123")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, res.Status)

	var v map[string]any
	require.NoError(t, res.Decode(&v))
	assert.Nil(t, v)
}

func TestRetriesOn5xxThenSucceeds(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	c := New(srv.URL, newTestExecutor(10), WithPolicy(fastRetry(3)))
	res, err := c.Get(context.Background(), "/flaky")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, int64(3), hits.Load())
}

func TestNoRetryOn404(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, newTestExecutor(10), WithPolicy(fastRetry(5)))
	_, err := c.Get(context.Background(), "/missing")
	require.Error(t, err)
	assert.Equal(t, int64(1), hits.Load())

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
}

func TestRetryExhaustedCarriesReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, newTestExecutor(10), WithPolicy(fastRetry(3)))
	_, err := c.Get(context.Background(), "/broken")
	require.Error(t, err)

	var exhausted *resilience.RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, resilience.Reason5xx, exhausted.Reason)
	assert.Equal(t, 3, exhausted.Attempts)
}

func TestStaleStatusNotReportedAfterConnectionFailure(t *testing.T) {
	// First attempt gets a 502; the retry hits a connection that dies before
	// any response. The error must reflect the connection failure, not the
	// earlier status.
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		conn, _, err := w.(http.Hijacker).Hijack()
		require.NoError(t, err)
		conn.Close()
	}))
	defer srv.Close()

	c := New(srv.URL, newTestExecutor(10),
		WithPolicy(fastRetry(2)),
		WithHTTPClient(&http.Client{Transport: &http.Transport{DisableKeepAlives: true}}),
	)
	_, err := c.Get(context.Background(), "/dying")
	require.Error(t, err)
	assert.Equal(t, int64(2), hits.Load())

	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr), "no response was read on the final attempt")

	var exhausted *resilience.RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, resilience.ReasonConnectionError, exhausted.Reason)
}

func TestAppErrorCodeNotRetried(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error_code":"E1042"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, newTestExecutor(10), WithPolicy(fastRetry(5)))
	_, err := c.Get(context.Background(), "/app-error")
	require.Error(t, err)
	assert.Equal(t, int64(1), hits.Load())

	var perm *resilience.PermanentError
	require.ErrorAs(t, err, &perm)
	assert.Equal(t, resilience.AppErrorReason("E1042"), perm.Reason)
}

func TestBreakerBlocksAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, newTestExecutor(3), WithPolicy(resilience.NoRetry()))
	for i := 0; i < 3; i++ {
		_, err := c.Get(context.Background(), "/down")
		require.Error(t, err)
	}

	before := hits.Load()
	_, err := c.Get(context.Background(), "/down")
	require.Error(t, err)
	assert.True(t, resilience.IsBreakerOpen(err))
	assert.Equal(t, before, hits.Load(), "no request while breaker is open")
}

func TestHealthCheck(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, newTestExecutor(5))
	assert.True(t, c.HealthCheck(context.Background()))
	assert.Equal(t, int64(1), hits.Load(), "health check must not retry")
}

func TestHealthCheckFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, newTestExecutor(5))
	assert.False(t, c.HealthCheck(context.Background()))
}

func TestQueryParameters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "russel", r.URL.Query().Get("name"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, newTestExecutor(3))
	_, err := c.Get(context.Background(), "/lookup", WithQuery(url.Values{"name": {"russel"}}))
	require.NoError(t, err)
}

func TestDefaultHeadersMerged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, "override", r.Header.Get("X-Custom"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, newTestExecutor(3),
		WithHeaders(map[string]string{"Authorization": "Bearer token", "X-Custom": "default"}))
	_, err := c.Get(context.Background(), "/", WithHeader("X-Custom", "override"))
	require.NoError(t, err)
}

func TestTenantClientUsesEntityBreakerKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"123","name":"acme"}`))
	}))
	defer srv.Close()

	exec := newTestExecutor(3)
	tc := NewTenantClient(New(srv.URL, exec), "x", "1")
	assert.Equal(t, "x:1", tc.BreakerKey())

	info, err := tc.TenantInfo(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, "acme", info["name"])

	// The entity key, not the host key, owns this call's breaker.
	assert.Equal(t, resilience.StateClosed, exec.Registry().ForKey("x:1").State())
	assert.Equal(t, 1, exec.Registry().Len())
}
