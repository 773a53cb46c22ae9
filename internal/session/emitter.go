package session

import (
	"context"
	"time"

	"bellavista/internal/models"
)

// outgoing is one queued emission. A message whose ctx is canceled before it is delivered
// belongs to a superseded turn and is dropped.
type outgoing struct {
	msg     models.ChatMessage
	delay   time.Duration
	ctx     context.Context
	speak   bool
	reset   bool
	flushed chan struct{}
}

// emitter serializes message delivery for one session.
type emitter struct {
	queue   chan outgoing
	quit    chan struct{}
	done    chan struct{}
	deliver func(outgoing)
	dropped func(outgoing)
}

func newEmitter(capacity int, deliver, dropped func(outgoing)) *emitter {
	e := &emitter{
		queue:   make(chan outgoing, capacity),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		deliver: deliver,
		dropped: dropped,
	}
	go e.run()
	return e
}

func (e *emitter) run() {
	defer close(e.done)
	for {
		select {
		case <-e.quit:
			return
		case o := <-e.queue:
			if o.flushed != nil {
				close(o.flushed)
				continue
			}
			if !e.wait(o) {
				if e.dropped != nil {
					e.dropped(o)
				}
				continue
			}
			e.deliver(o)
		}
	}
}

// wait sleeps for the message delay and reports whether the message is still current.
func (e *emitter) wait(o outgoing) bool {
	var cancelled <-chan struct{}
	if o.ctx != nil {
		if o.ctx.Err() != nil {
			return false
		}
		cancelled = o.ctx.Done()
	}
	if o.delay <= 0 {
		return true
	}

	timer := time.NewTimer(o.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return o.ctx == nil || o.ctx.Err() == nil
	case <-cancelled:
		return false
	case <-e.quit:
		return false
	}
}

func (e *emitter) enqueue(o outgoing) bool {
	select {
	case e.queue <- o:
		return true
	case <-e.quit:
		return false
	}
}

// flush blocks until everything queued before the call has been delivered or dropped.
func (e *emitter) flush(ctx context.Context) error {
	ch := make(chan struct{})
	if !e.enqueue(outgoing{flushed: ch}) {
		return ErrClosed
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.quit:
		return ErrClosed
	}
}

func (e *emitter) stop() {
	select {
	case <-e.quit:
	default:
		close(e.quit)
	}
	<-e.done
}
