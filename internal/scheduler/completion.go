package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Ticker is the unit of work run on every interval.
type Ticker interface {
	Tick(ctx context.Context) (int, error)
}

// CompletionScheduler runs the completion job once at start and then on a fixed interval.
// Ticks never overlap: a slow tick delays the next one.
type CompletionScheduler struct {
	job      Ticker
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewCompletionScheduler builds a scheduler; a non-positive interval defaults to one minute.
func NewCompletionScheduler(job Ticker, interval time.Duration, logger *zap.Logger) *CompletionScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompletionScheduler{job: job, interval: interval, logger: logger.With(zap.String("component", "completion-scheduler"))}
}

// Start launches the background loop. Calls while the loop is running are no-ops.
func (s *CompletionScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true

	s.logger.Info("starting completion scheduler", zap.Duration("interval", s.interval))
	go s.run(loopCtx, s.done)
}

// Stop cancels the loop and waits for an in-flight tick to finish.
func (s *CompletionScheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	done := s.done
	s.started = false
	s.mu.Unlock()

	<-done
	s.logger.Info("completion scheduler stopped")
}

func (s *CompletionScheduler) run(ctx context.Context, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		if s.done == done {
			s.started = false
		}
		s.mu.Unlock()
		close(done)
	}()

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *CompletionScheduler) tick(ctx context.Context) {
	completed, err := s.job.Tick(ctx)
	if err != nil {
		s.logger.Error("completion tick failed", zap.Int("completed", completed), zap.Error(err))
		return
	}
	if completed > 0 {
		s.logger.Info("completion tick", zap.Int("completed", completed))
		return
	}
	s.logger.Debug("completion tick: nothing due")
}
