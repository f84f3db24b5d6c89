package engine

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Queue runs tasks one at a time on a single goroutine, in the order they
// were posted. Posting never blocks.
type Queue struct {
	name   string
	logger *slog.Logger

	mu     sync.Mutex
	tasks  []func()
	wake   chan struct{}
	closed bool
	done   chan struct{}
}

// NewQueue starts a queue.
func NewQueue(name string, logger *slog.Logger) *Queue {
	q := &Queue{
		name:   name,
		logger: logger.With("queue", name),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// Post enqueues fn. It returns false once the queue is closed.
func (q *Queue) Post(fn func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.tasks = append(q.tasks, fn)
	select {
	case q.wake <- struct{}{}:
	default:
	}
	q.mu.Unlock()
	return true
}

// Call runs fn on the queue and waits for it to finish. It must not be
// called from a task of the same queue.
func (q *Queue) Call(fn func()) bool {
	done := make(chan struct{})
	if !q.Post(func() {
		defer close(done)
		fn()
	}) {
		return false
	}
	select {
	case <-done:
		return true
	case <-q.done:
		return false
	}
}

// Flush waits until every task posted before the call has run.
func (q *Queue) Flush() { q.Call(func() {}) }

// Schedule posts fn after d. A cancelled timer never runs fn.
func (q *Queue) Schedule(d time.Duration, fn func()) *Timer {
	t := &Timer{}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.t = time.AfterFunc(d, func() {
		if t.cancelled.Load() {
			return
		}
		q.Post(func() {
			if t.cancelled.Load() {
				return
			}
			fn()
		})
	})
	return t
}

// Close stops the queue after the running task. Pending tasks are dropped.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.tasks = nil
	close(q.wake)
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for range q.wake {
		for {
			q.mu.Lock()
			if len(q.tasks) == 0 || q.closed {
				q.mu.Unlock()
				break
			}
			fn := q.tasks[0]
			q.tasks[0] = nil
			q.tasks = q.tasks[1:]
			q.mu.Unlock()
			q.exec(fn)
		}
	}
}

func (q *Queue) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}

// Timer is a pending scheduled task.
type Timer struct {
	mu        sync.Mutex
	t         *time.Timer
	cancelled atomic.Bool
}

// Cancel stops the timer. Safe on a nil timer and from any goroutine.
func (t *Timer) Cancel() {
	if t == nil {
		return
	}
	t.cancelled.Store(true)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.t != nil {
		t.t.Stop()
	}
}

// Cancelled reports whether Cancel was called.
func (t *Timer) Cancelled() bool { return t != nil && t.cancelled.Load() }
