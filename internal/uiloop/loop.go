// Package uiloop provides a single execution context that runs posted work
// one item at a time, in posting order, on one goroutine.
package uiloop

import (
	"context"
	"sync"

	"fleetd/internal/hub"
)

// Loop implements hub.UIRunner.
type Loop struct {
	mu      sync.Mutex
	queue   []func(ctx context.Context)
	wake    chan struct{}
	stopped bool
}

func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post enqueues fn. Work posted after Run returns is dropped.
func (l *Loop) Post(fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run drains the queue until ctx is done. Each function receives a context
// marked with hub.MarkUIContext.
func (l *Loop) Run(ctx context.Context) {
	uctx := hub.MarkUIContext(ctx)
	for {
		for {
			fn := l.next()
			if fn == nil {
				break
			}
			fn(uctx)
		}
		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.stopped = true
			l.queue = nil
			l.mu.Unlock()
			return
		case <-l.wake:
		}
	}
}

func (l *Loop) next() func(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn
}
