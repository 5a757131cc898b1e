// Package scheduler provides a fixed-interval scheduler for polling Adminis accounts.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInterval is the time between two polls when none is configured.
const DefaultInterval = time.Hour

// Poller polls every configured account.
type Poller interface {
	PollAll(ctx context.Context) error
}

// Scheduler manages the polling schedule.
type Scheduler struct {
	poller   Poller
	interval time.Duration
	logger   zerolog.Logger

	mu         sync.RWMutex
	nextPollAt time.Time
	lastPollAt *time.Time
	running    bool
}

// New creates a new Scheduler. A non-positive interval falls back to DefaultInterval.
func New(p Poller, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		poller:   p,
		interval: interval,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start polls immediately and then once per interval.
// It blocks until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info().Dur("interval", s.interval).Msg("starting scheduler")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// nextPollAt is set before each poll starts.
	s.scheduleNext()
	s.runPoll(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.scheduleNext()
			s.runPoll(ctx)
		}
	}
}

func (s *Scheduler) scheduleNext() {
	next := time.Now().Add(s.interval)
	s.mu.Lock()
	s.nextPollAt = next
	s.mu.Unlock()

	s.logger.Debug().Time("nextPoll", next).Msg("next poll scheduled")
}

// runPoll polls all accounts. Failures are logged and retried at the next tick.
func (s *Scheduler) runPoll(ctx context.Context) {
	s.logger.Info().Msg("running scheduled poll")

	now := time.Now()
	s.mu.Lock()
	s.lastPollAt = &now
	s.mu.Unlock()

	if err := s.poller.PollAll(ctx); err != nil {
		s.logger.Error().Err(err).Msg("scheduled poll failed")
	} else {
		s.logger.Info().Dur("duration", time.Since(now)).Msg("scheduled poll completed")
	}
}

// Interval returns the time between two polls.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// NextPollAt returns the time of the next scheduled poll.
func (s *Scheduler) NextPollAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextPollAt
}

// LastPollAt returns the start time of the last poll.
func (s *Scheduler) LastPollAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPollAt
}

// IsRunning returns whether the scheduler is currently running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
