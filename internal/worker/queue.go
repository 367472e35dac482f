package worker

import "sync"

// queue is an unbounded multi-producer/single-consumer FIFO. Producers never
// block; the single consumer blocks in pop until an item or close arrives.
type queue struct {
	mu     sync.Mutex
	buf    []Command
	wake   chan struct{}
	closed bool
}

func newQueue() *queue {
	return &queue{wake: make(chan struct{}, 1)}
}

// push appends a command. Returns false once the queue is closed.
func (q *queue) push(c Command) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.buf = append(q.buf, c)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// pop removes the oldest command, blocking while the queue is empty. After
// close it keeps returning buffered commands until the queue drains, then
// reports !ok.
func (q *queue) pop() (Command, bool) {
	for {
		q.mu.Lock()
		if len(q.buf) > 0 {
			c := q.buf[0]
			q.buf = q.buf[1:]
			q.mu.Unlock()
			return c, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, false
		}
		<-q.wake
	}
}

func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *queue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}
