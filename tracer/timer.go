package tracer

import (
	"context"
	"sync"
	"time"
)

// poller runs a task periodically in its own goroutine. The delay before each run is asked
// from next, so the period may change between runs. A started poller can be restarted, which
// cancels the running loop, waits for it to exit and starts a fresh one.
type poller struct {
	run  func(ctx context.Context)
	next func() time.Duration

	// immediate runs the task once as soon as the loop starts.
	immediate bool

	mu     sync.Mutex
	parent context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newPoller(immediate bool, next func() time.Duration, run func(ctx context.Context)) *poller {
	return &poller{
		run:       run,
		next:      next,
		immediate: immediate,
	}
}

// start starts the loop, stopping the previous one if any. The loop lives until ctx is done
// or the poller is stopped.
func (p *poller) start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.parent = ctx
	p.startLocked()
}

// restart stops the running loop and starts a new one under the context given to start.
func (p *poller) restart() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.parent == nil {
		return
	}
	p.stopLocked()
	p.startLocked()
}

// stop stops the loop and waits for it to exit. A stopped poller ignores restart.
func (p *poller) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.parent = nil
}

func (p *poller) startLocked() {
	ctx, cancel := context.WithCancel(p.parent)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go p.loop(ctx, done)
}

func (p *poller) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil
}

func (p *poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if p.immediate && ctx.Err() == nil {
		p.run(ctx)
	}

	for {
		t := time.NewTimer(p.next())
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
			p.run(ctx)
		}
	}
}
