package platform

import (
	"context"
	"sync"
)

// Loop is a serial executor backed by a single goroutine. It plays the role
// of the thread-affine rendering context: every submitted func runs on the
// same goroutine, in submission order.
type Loop struct {
	queue chan func()
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

// NewLoop starts a loop with the given queue depth. It runs until ctx is
// cancelled or Close is called.
func NewLoop(ctx context.Context, depth int) *Loop {
	if depth <= 0 {
		depth = 16
	}
	l := &Loop{
		queue: make(chan func(), depth),
		done:  make(chan struct{}),
	}
	l.wg.Add(1)
	go l.run(ctx)
	return l
}

func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()
	for {
		select {
		case fn := <-l.queue:
			fn()
		case <-ctx.Done():
			l.once.Do(func() { close(l.done) })
			l.drain()
			return
		case <-l.done:
			l.drain()
			return
		}
	}
}

func (l *Loop) drain() {
	for {
		select {
		case fn := <-l.queue:
			fn()
		default:
			return
		}
	}
}

// Submit enqueues fn. It blocks only while the queue is full and drops fn
// once the loop has stopped.
func (l *Loop) Submit(fn func()) {
	select {
	case <-l.done:
		return
	default:
	}
	select {
	case l.queue <- fn:
	case <-l.done:
	}
}

// Close stops the loop after running everything already queued.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.done) })
	l.wg.Wait()
}
