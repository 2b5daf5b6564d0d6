package sim

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"trafficsim/internal/config"
	"trafficsim/internal/payload"
	"trafficsim/internal/profile"
	"trafficsim/internal/ratelimit"
	"trafficsim/internal/stats"
)

// SnapshotChan carries periodic stats snapshots to the live dashboard.
// Sends are non-blocking; a slow consumer just misses frames.
type SnapshotChan chan stats.Snapshot

// Supervisor owns the worker pool. Each worker continuously creates a
// session, runs it to termination, pauses a short randomized gap and
// repeats until the run context is cancelled.
type Supervisor struct {
	cfg      *config.Config
	catalog  *profile.Catalog
	provider *payload.Provider
	limiter  *ratelimit.Limiter
	executor *Executor
	stats    *stats.Aggregator
	logger   *zap.Logger

	// Updates feeds the live dashboard when one is attached.
	Updates SnapshotChan

	seed int64
}

func NewSupervisor(
	cfg *config.Config,
	catalog *profile.Catalog,
	provider *payload.Provider,
	limiter *ratelimit.Limiter,
	executor *Executor,
	agg *stats.Aggregator,
	logger *zap.Logger,
) *Supervisor {
	return &Supervisor{
		cfg:      cfg,
		catalog:  catalog,
		provider: provider,
		limiter:  limiter,
		executor: executor,
		stats:    agg,
		logger:   logger,
		Updates:  make(SnapshotChan, 16),
		seed:     time.Now().UnixNano(),
	}
}

// SetSeed makes worker randomness reproducible. Tests only.
func (s *Supervisor) SetSeed(seed int64) {
	s.seed = seed
}

// Run starts the pool and blocks until the run ends: either the
// configured duration elapses or ctx is cancelled externally. All
// workers and the reporter are fully drained before the final snapshot
// is taken and returned; Updates is closed so consumers ranging over it
// terminate.
func (s *Supervisor) Run(ctx context.Context) stats.Snapshot {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if d := s.cfg.Simulation.DurationMinutes; d > 0 {
		var timeoutCancel context.CancelFunc
		runCtx, timeoutCancel = context.WithTimeout(runCtx, time.Duration(d)*time.Minute)
		defer timeoutCancel()
	}

	s.limiter.Start(time.Now())

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Simulation.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.worker(runCtx, id)
		}(i)
	}

	reporterDone := make(chan struct{})
	go func() {
		defer close(reporterDone)
		s.reporter(runCtx)
	}()

	wg.Wait()
	cancel()
	<-reporterDone
	close(s.Updates)

	return s.stats.Snapshot(time.Now())
}

func (s *Supervisor) worker(ctx context.Context, id int) {
	rng := rand.New(rand.NewSource(s.seed + int64(id)))
	log := s.logger.With(zap.Int("worker", id))
	log.Debug("worker started")

	for ctx.Err() == nil {
		s.runSession(ctx, rng, log)

		// Small break between sessions for this worker.
		gap := time.Second + time.Duration(rng.Float64()*float64(2*time.Second))
		if !sleepCtx(ctx, gap) {
			break
		}
	}
	log.Debug("worker stopped")
}

// runSession drives one session from Created to Terminated. A panic
// from unexpected state is contained here so the worker loop survives
// and moves on to its next session.
func (s *Supervisor) runSession(ctx context.Context, rng *rand.Rand, log *zap.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("session aborted by unexpected error", zap.Any("panic", r))
		}
	}()

	sess := NewSession(s.catalog, s.provider, rng)
	sess.Begin()
	defer sess.Terminate()

	log.Debug("session started",
		zap.String("session", sess.ID),
		zap.String("user_type", sess.UserType.Name),
		zap.String("region", sess.Region.Region),
		zap.Int("budget", sess.Budget()))

	for !sess.Exhausted() {
		// Shutdown check at the session-boundary suspension point.
		if ctx.Err() != nil {
			return
		}

		ep := s.catalog.SelectEndpoint(sess.UserType.Name, rng)

		if err := s.limiter.Acquire(ctx); err != nil {
			return // cancelled while waiting for admission; not a failure
		}

		outcome, path := s.executor.Do(sess, ep)
		s.stats.Record(outcome)
		sess.ObserveRequest(path)

		if !sleepCtx(ctx, sess.ThinkTime()) {
			return
		}
	}

	log.Debug("session completed",
		zap.String("session", sess.ID),
		zap.Int("requests", sess.RequestsMade()))
}

// reporter logs a snapshot on the configured interval and feeds the
// live dashboard channel.
func (s *Supervisor) reporter(ctx context.Context) {
	interval := time.Duration(s.cfg.Reporting.StatsIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := s.stats.Snapshot(time.Now())
			s.logger.Info("stats",
				zap.Uint64("total", snap.Total),
				zap.Float64("rps", snap.RPS),
				zap.Float64("avg_latency_ms", snap.AvgLatencyMs),
				zap.Uint64("success", snap.Success),
				zap.Uint64("failed", snap.Failed))

			select {
			case s.Updates <- snap:
			default:
			}
		}
	}
}

// sleepCtx sleeps d unless ctx is done first; returns false on
// cancellation. Zero and negative durations return immediately.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
