package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficsim/internal/stats"
)

func TestObserveCountsRequestsAndFailures(t *testing.T) {
	c := NewCollector()

	c.Observe(stats.Outcome{Method: "GET", Endpoint: "/products", Status: 200, Latency: 10 * time.Millisecond})
	c.Observe(stats.Outcome{Method: "GET", Endpoint: "/products", Status: 200, Latency: 10 * time.Millisecond})
	c.Observe(stats.Outcome{Method: "POST", Endpoint: "/checkout", Status: 500, Latency: time.Millisecond, Err: "conn refused"})

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, out, `trafficsim_requests_total{endpoint="/products",method="GET",status="200"} 2`)
	assert.Contains(t, out, `trafficsim_requests_total{endpoint="/checkout",method="POST",status="500"} 1`)
	assert.Contains(t, out, `trafficsim_failures_total{endpoint="/checkout",method="POST"} 1`)
	assert.Contains(t, out, "trafficsim_request_latency_seconds_count 3")
}
