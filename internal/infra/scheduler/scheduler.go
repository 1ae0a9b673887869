package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vidiwise/internal/infra/logging"
	"vidiwise/internal/infra/metrics"
)

// HealthChecker is anything that can tell whether the video backend answers.
type HealthChecker interface {
	Health(ctx context.Context) bool
}

// Scheduler probes the backend every interval, publishes the result as a
// gauge and reports transitions to OnChange.
type Scheduler struct {
	interval time.Duration
	checker  HealthChecker
	log      *zerolog.Logger

	// OnChange is called from the probe goroutine when reachability flips.
	OnChange func(up bool)

	mu     sync.Mutex
	up     bool
	known  bool
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler defaults interval to 30 seconds.
func NewScheduler(interval time.Duration, checker HealthChecker, logger *zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{
		interval: interval,
		checker:  checker,
		log:      logging.Component(logger, "backend_prober"),
	}
}

// Start probes once right away, then on every tick. Repeated calls are no-ops.
func (s *Scheduler) Start(parent context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("backend prober started")
	for {
		s.probe(ctx)
		select {
		case <-ctx.Done():
			s.log.Info().Msg("backend prober stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) probe(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, s.interval)
	up := s.checker.Health(pctx)
	cancel()
	if ctx.Err() != nil {
		return
	}
	metrics.SetBackendUp(up)

	s.mu.Lock()
	changed := !s.known || s.up != up
	s.up, s.known = up, true
	s.mu.Unlock()

	if !changed {
		return
	}
	if up {
		s.log.Info().Msg("backend reachable")
	} else {
		s.log.Warn().Msg("backend unreachable")
	}
	if s.OnChange != nil {
		s.OnChange(up)
	}
}

// Up returns the last probe result; false before the first probe.
func (s *Scheduler) Up() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.known && s.up
}

// Stop cancels the loop and waits for it. It is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
