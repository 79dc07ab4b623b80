package discovery

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultHeartbeatInterval = 5 * time.Second
	DefaultLivenessTimeout   = 15 * time.Second
	DefaultSweepInterval     = 10 * time.Second
)

// Scheduler drives the two periodic jobs of a peer: announcing itself and
// sweeping stale peers. It only calls the functions it is given.
type Scheduler struct {
	heartbeatInterval time.Duration
	sweepInterval     time.Duration
	beat              func()
	sweep             func()

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(heartbeatInterval, sweepInterval time.Duration, beat, sweep func()) *Scheduler {
	return &Scheduler{
		heartbeatInterval: heartbeatInterval,
		sweepInterval:     sweepInterval,
		beat:              beat,
		sweep:             sweep,
	}
}

// Start emits one heartbeat right away and then runs both tickers until ctx is
// cancelled or Stop is called. Starting a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.beat()
	slog.Info("Heartbeat started", "interval", s.heartbeatInterval, "sweep", s.sweepInterval)

	go s.run(ctx, done)
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	beatTicker := time.NewTicker(s.heartbeatInterval)
	defer beatTicker.Stop()
	sweepTicker := time.NewTicker(s.sweepInterval)
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-beatTicker.C:
			s.beat()
		case <-sweepTicker.C:
			s.sweep()
		}
	}
}

// Stop halts both tickers and waits for the loop to exit. Heartbeats already
// posted stay valid until they time out on the receiving side.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	slog.Info("Heartbeat stopped")
}

// Running reports whether Start has been called without a matching Stop.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
