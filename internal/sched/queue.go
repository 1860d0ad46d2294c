package sched

import (
	"context"
	"sync"
)

// jobQueue is an unbounded FIFO of pending jobs. Submissions beyond worker
// capacity wait here in submission order; nothing is dropped. Shutdown is a
// one-shot close that wakes every blocked consumer, so a blocking Dequeue
// never needs a watcher goroutine of its own.
type jobQueue struct {
	mu     sync.Mutex
	queue  []*Job
	cond   *sync.Cond
	closed bool
}

func newJobQueue() *jobQueue {
	q := &jobQueue{queue: make([]*Job, 0)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *jobQueue) Enqueue(j *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = append(q.queue, j)
	q.cond.Signal()
}

// Dequeue blocks until a job is available or the queue is closed.
func (q *jobQueue) Dequeue(ctx context.Context) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(q.queue) > 0 {
			j := q.queue[0]
			q.queue = q.queue[1:]
			return j, nil
		}
		if q.closed {
			return nil, context.Canceled
		}
		q.cond.Wait()
	}
}

func (q *jobQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *jobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}
