package ipc

// Queue is a FIFO of Requests with exactly one outstanding dispatch at a
// time. Enqueue is safe to call concurrently from many connection
// goroutines (C2); Next is meant to be read by a single dispatch loop (C5),
// mirroring at.AT's cmdCh/nLoop split between producers and the one
// consumer that owns modem state.
type Queue struct {
	in   chan *Request
	next chan *Request
	quit chan struct{}
}

// NewQueue creates an empty queue and starts its internal feeder goroutine.
func NewQueue() *Queue {
	q := &Queue{
		in:   make(chan *Request),
		next: make(chan *Request),
		quit: make(chan struct{}),
	}
	go q.run()
	return q
}

// Enqueue appends req to the tail of the queue. It blocks until accepted or
// the queue is closed.
func (q *Queue) Enqueue(req *Request) {
	select {
	case q.in <- req:
	case <-q.quit:
	}
}

// Next returns the channel the single dispatch loop reads from. Exactly one
// Request is offered at a time; the feeder will not offer the next one
// until this one has been received.
func (q *Queue) Next() <-chan *Request {
	return q.next
}

// Close shuts the queue down. Any Requests still pending are dropped.
func (q *Queue) Close() {
	close(q.quit)
}

func (q *Queue) run() {
	var pending []*Request
	for {
		if len(pending) == 0 {
			select {
			case r := <-q.in:
				pending = append(pending, r)
			case <-q.quit:
				return
			}
			continue
		}
		select {
		case r := <-q.in:
			pending = append(pending, r)
		case q.next <- pending[0]:
			pending = pending[1:]
		case <-q.quit:
			return
		}
	}
}
