package pipeline

import (
	"context"
	"sync"
	"time"
)

// DefaultRefreshRate is the display refresh the loop paces itself to.
const DefaultRefreshRate = 60

// Scheduler decides when the next tick may start. Next is only called after
// the previous tick has completed, so ticks never overlap.
type Scheduler interface {
	Next(ctx context.Context) error
}

// RefreshScheduler releases one tick per display refresh. A tick that
// overruns the refresh interval is followed immediately by the next one;
// missed refreshes are not replayed.
type RefreshScheduler struct {
	interval time.Duration

	once   sync.Once
	ticker *time.Ticker
}

// NewRefreshScheduler paces ticks to hz refreshes per second.
func NewRefreshScheduler(hz int) *RefreshScheduler {
	if hz <= 0 {
		hz = DefaultRefreshRate
	}
	return &RefreshScheduler{interval: time.Second / time.Duration(hz)}
}

// Interval returns the refresh period.
func (s *RefreshScheduler) Interval() time.Duration {
	return s.interval
}

// Next implements Scheduler.
func (s *RefreshScheduler) Next(ctx context.Context) error {
	s.once.Do(func() { s.ticker = time.NewTicker(s.interval) })
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ticker.C:
		return nil
	}
}

// Stop releases the underlying ticker.
func (s *RefreshScheduler) Stop() {
	s.once.Do(func() { s.ticker = time.NewTicker(s.interval) })
	s.ticker.Stop()
}

// ImmediateScheduler starts the next tick as soon as the previous one ends.
type ImmediateScheduler struct{}

// Next implements Scheduler.
func (ImmediateScheduler) Next(ctx context.Context) error {
	return ctx.Err()
}
