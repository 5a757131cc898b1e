package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPoller struct {
	calls atomic.Int32
	err   error
}

func (p *countingPoller) PollAll(context.Context) error {
	p.calls.Add(1)
	return p.err
}

func TestNewDefaultsInterval(t *testing.T) {
	s := New(&countingPoller{}, 0, zerolog.Nop())
	assert.Equal(t, DefaultInterval, s.Interval())

	s = New(&countingPoller{}, -time.Second, zerolog.Nop())
	assert.Equal(t, DefaultInterval, s.Interval())
}

func TestStart(t *testing.T) {
	testCases := []struct {
		name string
		err  error
	}{
		{name: "successful polls"},
		{name: "failing polls keep ticking", err: errors.New("portal down")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			poller := &countingPoller{err: tc.err}
			s := New(poller, 20*time.Millisecond, zerolog.Nop())

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- s.Start(ctx) }()

			require.Eventually(t, func() bool { return poller.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
			assert.True(t, s.IsRunning())
			assert.NotNil(t, s.LastPollAt())
			assert.False(t, s.NextPollAt().IsZero())

			cancel()
			select {
			case err := <-done:
				require.ErrorIs(t, err, context.Canceled)
			case <-time.After(2 * time.Second):
				t.Fatal("scheduler did not stop")
			}
			assert.False(t, s.IsRunning())
		})
	}
}

func TestStartPollsImmediately(t *testing.T) {
	poller := &countingPoller{}
	s := New(poller, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Start(ctx) }()

	require.Eventually(t, func() bool { return poller.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !s.NextPollAt().IsZero() }, time.Second, 5*time.Millisecond)
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.NextPollAt(), time.Minute)
}

// blockingPoller holds every poll until release is closed.
type blockingPoller struct {
	started chan struct{}
	release chan struct{}
}

func (p *blockingPoller) PollAll(ctx context.Context) error {
	select {
	case p.started <- struct{}{}:
	default:
	}
	select {
	case <-p.release:
	case <-ctx.Done():
	}
	return nil
}

func TestNextPollAtSetDuringFirstPoll(t *testing.T) {
	poller := &blockingPoller{started: make(chan struct{}, 1), release: make(chan struct{})}
	s := New(poller, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Start(ctx) }()

	select {
	case <-poller.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first poll did not start")
	}

	// The first poll is still running.
	assert.False(t, s.NextPollAt().IsZero())
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.NextPollAt(), time.Minute)

	close(poller.release)
}
