package editor

import "sync"

// outbox delivers the work queued by the session in order. Whoever finds it
// idle delivers everything queued until it is empty, including work queued
// meanwhile by other goroutines or by the callbacks themselves.
type outbox struct {
	mu         sync.Mutex
	cond       *sync.Cond
	queue      []func()
	delivering bool
	queued     uint64
	delivered  uint64
}

// push appends work and returns the position of its last item.
func (o *outbox) push(work []func()) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queue = append(o.queue, work...)
	o.queued += uint64(len(work))
	return o.queued
}

// drain delivers queued work unless another goroutine already is.
func (o *outbox) drain() {
	o.mu.Lock()
	if o.delivering {
		o.mu.Unlock()
		return
	}
	o.delivering = true
	for len(o.queue) > 0 {
		fn := o.queue[0]
		o.queue[0] = nil
		o.queue = o.queue[1:]
		o.mu.Unlock()

		fn()

		o.mu.Lock()
		o.delivered++
		o.signal()
	}
	o.delivering = false
	o.mu.Unlock()
}

// wait blocks until every item up to seq has been delivered. It must not be
// called while delivering.
func (o *outbox) wait(seq uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for o.delivered < seq {
		if o.cond == nil {
			o.cond = sync.NewCond(&o.mu)
		}
		o.cond.Wait()
	}
}

func (o *outbox) signal() {
	if o.cond != nil {
		o.cond.Broadcast()
	}
}
