package refresh

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tsamsiyu/k8schema/internal/cache"
	"github.com/tsamsiyu/k8schema/internal/config"
	"github.com/tsamsiyu/k8schema/internal/fetcher"
	"github.com/tsamsiyu/k8schema/internal/metrics"
)

// State of the refresh loop.
type State int32

const (
	Idle State = iota
	Refreshing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Refreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

var errAlreadyStarted = errors.New("refresh scheduler already started")

// Scheduler periodically fetches the cluster schemas and installs them in the
// store. It runs a cycle immediately on Start and then once per interval.
type Scheduler struct {
	logger   *zap.Logger
	fetcher  fetcher.Fetcher
	store    *cache.Store
	metrics  *metrics.Metrics
	interval time.Duration

	state atomic.Int32

	mu          sync.RWMutex
	lastSuccess time.Time
	lastErr     error
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewScheduler(
	logger *zap.Logger,
	fetcher fetcher.Fetcher,
	store *cache.Store,
	metrics *metrics.Metrics,
	cfg *config.Config,
) *Scheduler {
	return &Scheduler{
		logger:   logger,
		fetcher:  fetcher,
		store:    store,
		metrics:  metrics,
		interval: cfg.Refresh.Interval,
	}
}

// Start launches the refresh loop. The loop runs until ctx is cancelled or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return errAlreadyStarted
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	s.logger.Info("Starting refresh scheduler", zap.Duration("interval", s.interval))

	go s.run(loopCtx, s.done)
	return nil
}

// Stop cancels the loop and waits for it to exit, or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.RLock()
	cancel, done := s.cancel, s.done
	s.mu.RUnlock()

	if done == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "refresh scheduler did not stop in time")
	}
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.Refresh(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Refresh scheduler has stopped")
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Refresh runs one fetch and replace cycle. On failure the store keeps serving
// the previous snapshot. A cycle interrupted by ctx never touches the store.
func (s *Scheduler) Refresh(ctx context.Context) error {
	s.state.Store(int32(Refreshing))
	defer s.state.Store(int32(Idle))

	start := time.Now()
	set, err := s.fetcher.Fetch(ctx)
	if ctx.Err() != nil {
		s.logger.Info("Schema refresh abandoned", zap.Duration("elapsed", time.Since(start)))
		return errors.Wrap(ctx.Err(), "schema refresh abandoned")
	}
	if err == nil {
		err = s.store.Replace(set)
	}
	s.metrics.RefreshDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		s.metrics.RefreshTotal.WithLabelValues("failure").Inc()
		s.logger.Error("Schema refresh failed", zap.Error(err))

		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return err
	}

	now := time.Now()
	s.metrics.RefreshTotal.WithLabelValues("success").Inc()
	s.metrics.LastSuccessTimestamp.Set(float64(now.Unix()))
	s.metrics.Schemas.Set(float64(set.Len()))

	s.mu.Lock()
	s.lastSuccess = now
	s.lastErr = nil
	s.mu.Unlock()

	s.logger.Info("Schema refresh completed",
		zap.Int("count", set.Len()),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// LastSuccess is when the last successful cycle finished, zero if none has.
func (s *Scheduler) LastSuccess() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSuccess
}

// LastError is the error of the most recent cycle, nil if it succeeded.
func (s *Scheduler) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}
