package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fastChecker() *Checker {
	c := NewChecker(zap.NewNop())
	c.attempts = 3
	c.delay = 20 * time.Millisecond
	return c
}

func TestWaitAllPassesWhenHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := fastChecker().WaitAll(context.Background(), map[string]string{"svc": srv.URL})
	require.NoError(t, err)
}

func TestWaitAllRetriesUntilReady(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := fastChecker().WaitAll(context.Background(), map[string]string{"svc": srv.URL})
	require.NoError(t, err)
	assert.Equal(t, int64(3), calls.Load())
}

func TestWaitAllFailsAfterRetryBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := fastChecker().WaitAll(context.Background(), map[string]string{"svc": srv.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "svc")
	assert.Contains(t, err.Error(), "3 attempts")
}

func TestWaitAllHonorsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	c := NewChecker(zap.NewNop())
	err := c.WaitAll(ctx, map[string]string{"svc": srv.URL})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
