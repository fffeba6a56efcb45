// internal/poller/runner.go
package poller

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Start launches the polling goroutine. No-op while running.
//
// Start may be called from an observer while the previous loop is still
// unwinding; the new loop waits for it to exit before touching the bus.
func (e *Engine) Start() {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if e.running.Load() {
		return
	}
	if e.cancel != nil {
		e.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	prev := e.done
	e.gen++
	e.cancel = cancel
	e.done = make(chan struct{})
	e.lost.Store(false)
	e.running.Store(true)

	e.log.Info("polling started", zap.Duration("interval", e.Interval()))
	go e.run(ctx, e.gen, prev, e.done)
}

// Stop requests shutdown and waits up to StopTimeout for the loop to
// exit. It returns false if the loop is still finishing a cycle; the
// loop exits at its next check and is never killed mid-transaction.
// A later Stop waits on the same loop again.
func (e *Engine) Stop() bool {
	e.runMu.Lock()
	cancel, done := e.cancel, e.done
	e.runMu.Unlock()

	if cancel == nil {
		return true
	}
	select {
	case <-done:
		return true
	default:
	}
	cancel()

	select {
	case <-done:
		e.log.Info("polling stopped")
		return true
	case <-time.After(StopTimeout):
		e.log.Warn("polling stop timed out; loop will exit after current cycle")
		return false
	}
}

func (e *Engine) IsRunning() bool { return e.running.Load() }

// release clears the running flag if gen is still the current run.
func (e *Engine) release(gen uint64) {
	e.runMu.Lock()
	if e.gen == gen {
		e.running.Store(false)
	}
	e.runMu.Unlock()
}

// run is the polling loop. At most one loop polls at a time.
// Cancellation is checked at the top of every cycle.
func (e *Engine) run(ctx context.Context, gen uint64, prev <-chan struct{}, done chan struct{}) {
	defer close(done)
	defer e.release(gen)

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			return
		}
	}

	var lastNotify time.Time
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		if ctx.Err() != nil {
			return
		}

		started := time.Now()
		res := e.PollOnce()
		if res.Err != nil {
			e.connectionLost(gen, res.Err)
			return
		}

		// The state update above always happens; only the notification is capped.
		if now := e.now(); now.Sub(lastNotify) >= e.cfg.NotifyInterval {
			lastNotify = now
			e.notifyData()
		}

		// Fixed turnaround pause on top of whatever is left of the interval.
		wait := e.Interval() - time.Since(started)
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait + e.cfg.Turnaround)

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// connectionLost marks run gen stopped and fires ConnectionLost at most
// once per run. Observers may call Start from the callback.
func (e *Engine) connectionLost(gen uint64, err error) {
	e.release(gen)
	if !e.lost.CompareAndSwap(false, true) {
		return
	}
	e.log.Error("connection lost", zap.Error(err))
	e.notifyConnectionLost()
}
