package app

import (
	"sync"
	"time"
)

// Timer is the single countdown clock of a session. It invokes tick at a
// fixed cadence until tick returns false or Stop is called.
type Timer struct {
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	runOnce  sync.Once
}

func NewTimer(interval time.Duration) *Timer {
	if interval <= 0 {
		interval = time.Second
	}
	return &Timer{
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Run starts the tick loop in its own goroutine. Only the first call has effect.
func (t *Timer) Run(tick func() bool) {
	t.runOnce.Do(func() {
		go t.loop(tick)
	})
}

func (t *Timer) loop(tick func() bool) {
	defer close(t.doneCh)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			// Stop may race with a pending tick; prefer stop.
			select {
			case <-t.stopCh:
				return
			default:
			}
			if !tick() {
				return
			}
		}
	}
}

// Stop cancels the timer. Safe to call repeatedly and from inside tick.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
	})
}

// Done is closed once the tick loop has exited.
func (t *Timer) Done() <-chan struct{} {
	return t.doneCh
}
