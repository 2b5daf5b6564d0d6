package sim

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trafficsim/internal/config"
	"trafficsim/internal/payload"
	"trafficsim/internal/profile"
	"trafficsim/internal/ratelimit"
	"trafficsim/internal/stats"
)

func supervisorFixture(t *testing.T, cfg *config.Config, target string) (*Supervisor, *stats.Aggregator) {
	t.Helper()
	for name, svc := range cfg.Services {
		svc.BaseURL = target
		cfg.Services[name] = svc
	}

	catalog, err := profile.NewCatalog(cfg)
	require.NoError(t, err)

	provider := payload.NewProvider()
	agg := stats.NewAggregator(time.Now(), nil)
	limiter := ratelimit.NewLimiter(cfg.Simulation.RequestsPerSecond, 0)
	executor := NewExecutor(time.Duration(cfg.Simulation.TimeoutSeconds)*time.Second, provider, zap.NewNop(), false)

	s := NewSupervisor(cfg, catalog, provider, limiter, executor, agg, zap.NewNop())
	s.SetSeed(1234)
	return s, agg
}

func singleEndpointConfig(requests []int) *config.Config {
	return &config.Config{
		Simulation: config.Simulation{
			Workers:           1,
			RequestsPerSecond: 1000,
			TimeoutSeconds:    5,
		},
		UserTypes: []config.UserType{
			{Name: "browser", Weight: 1, RequestsPerSession: requests, ThinkTimeSeconds: []float64{0, 0}},
		},
		Regions: []config.Region{
			{Region: "local", Weight: 1},
		},
		Services: map[string]config.Service{
			"svc": {
				BaseURL: "http://placeholder",
				Endpoints: []config.Endpoint{
					{Path: "/only", Methods: []string{"GET"}, Weight: 1},
				},
			},
		},
		Reporting: config.Reporting{StatsIntervalSeconds: 60},
	}
}

func TestSingleSessionProducesExactBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, agg := supervisorFixture(t, singleEndpointConfig([]int{3, 3}), srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.limiter.Start(time.Now())
	s.runSession(ctx, rand.New(rand.NewSource(7)), zap.NewNop())

	snap := agg.Snapshot(time.Now())
	assert.Equal(t, uint64(3), snap.Total, "fixed [3,3] budget must yield exactly 3 outcomes")
	require.Len(t, snap.TopEndpoints, 1)
	assert.Equal(t, "GET /only", snap.TopEndpoints[0].Endpoint)
	assert.Equal(t, uint64(3), snap.TopEndpoints[0].Count)
}

func TestSessionsStayWithinBudgetRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, agg := supervisorFixture(t, singleEndpointConfig([]int{2, 5}), srv.URL)
	s.limiter.Start(time.Now())

	ctx := context.Background()
	rng := rand.New(rand.NewSource(99))

	var prev uint64
	for i := 0; i < 20; i++ {
		s.runSession(ctx, rng, zap.NewNop())
		total := agg.Snapshot(time.Now()).Total
		made := total - prev
		prev = total
		assert.GreaterOrEqual(t, made, uint64(2), "session %d under budget", i)
		assert.LessOrEqual(t, made, uint64(5), "session %d over budget", i)
	}
}

func TestFailedRequestsStillConsumeBudget(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s, agg := supervisorFixture(t, singleEndpointConfig([]int{4, 4}), srv.URL)
	s.limiter.Start(time.Now())
	s.runSession(context.Background(), rand.New(rand.NewSource(11)), zap.NewNop())

	snap := agg.Snapshot(time.Now())
	assert.Equal(t, uint64(4), snap.Total, "no retry within session; failures count toward budget")
	assert.Equal(t, uint64(4), snap.Failed)
	assert.Equal(t, int64(4), calls.Load())
}

func TestRunStopsAfterConfiguredDuration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := singleEndpointConfig([]int{1, 2})
	cfg.Simulation.Workers = 3
	s, _ := supervisorFixture(t, cfg, srv.URL)

	// An already-expiring context plays the role of the duration bound.
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	done := make(chan stats.Snapshot, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case snap := <-done:
		assert.Equal(t, snap.Total, snap.Success+snap.Failed)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after the bounded duration")
	}
}

func TestShutdownDrainsAllWorkersPromptly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := singleEndpointConfig([]int{50, 100})
	cfg.Simulation.Workers = 50
	cfg.Simulation.TimeoutSeconds = 2
	s, agg := supervisorFixture(t, cfg, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan stats.Snapshot, 1)
	go func() { done <- s.Run(ctx) }()

	// Let the fleet get going, then pull the plug.
	time.Sleep(500 * time.Millisecond)
	stop := time.Now()
	cancel()

	select {
	case snap := <-done:
		// Bounded by the per-call timeout plus a small constant, not by
		// session completion (budgets are far from exhausted).
		assert.Less(t, time.Since(stop), 4*time.Second)
		assert.Equal(t, snap.Total, snap.Success+snap.Failed)
		assert.Equal(t, agg.Snapshot(time.Now()).Total, snap.Total)
	case <-time.After(15 * time.Second):
		t.Fatal("workers did not drain after cancellation")
	}
}

func TestRunClosesUpdatesChannel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, _ := supervisorFixture(t, singleEndpointConfig([]int{1, 2}), srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	// Consumers ranging over Updates must terminate once the run ends.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-s.Updates:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("Updates not closed after Run returned")
		}
	}
}

func TestReporterPublishesSnapshots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := singleEndpointConfig([]int{1, 3})
	cfg.Reporting.StatsIntervalSeconds = 1
	s, _ := supervisorFixture(t, cfg, srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	done := make(chan stats.Snapshot, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-s.Updates:
		// got a live frame
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot published on the reporting interval")
	}
	<-done
}
