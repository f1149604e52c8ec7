package eventloop

import (
	"context"
	"sync"

	"github.com/valkey-io/valkeycluster-go/conn"
)

// Embedded is the default Adapter: one dedicated goroutine (the "loop")
// processes every registered connection's events plus every posted task,
// giving the dispatcher its single-threaded state-machine guarantee without
// an actual shared-memory data race. This is a direct generalization of the
// teacher's Dispatcher.Run()/slotInfoChan pattern — already a single
// consuming goroutine — to every dispatcher state transition.
type Embedded struct {
	merged chan mergedEvent
	tasks  chan func()
	stop   chan struct{}
	done   chan struct{}

	mu       sync.Mutex
	handlers map[*conn.Connection]ReadHandler
	running  map[*conn.Connection]chan struct{} // per-connection forwarder stop signal
}

type mergedEvent struct {
	c  *conn.Connection
	ev conn.Event
}

// NewEmbedded constructs an Embedded adapter. Call Attach before using it.
func NewEmbedded() *Embedded {
	return &Embedded{
		merged:   make(chan mergedEvent, 256),
		tasks:    make(chan func(), 256),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		handlers: make(map[*conn.Connection]ReadHandler),
		running:  make(map[*conn.Connection]chan struct{}),
	}
}

// Attach starts the loop goroutine. ctx cancellation triggers Cleanup.
func (e *Embedded) Attach(ctx context.Context) error {
	go e.run(ctx)
	return nil
}

func (e *Embedded) run(ctx context.Context) {
	defer close(e.done)
	for {
		select {
		case fn := <-e.tasks:
			fn()
		case me := <-e.merged:
			e.mu.Lock()
			fn := e.handlers[me.c]
			e.mu.Unlock()
			if fn != nil {
				fn(me.ev)
			}
		case <-e.stop:
			return
		case <-ctx.Done():
			// Same effect as Cleanup: stop the forwarders and unblock Post.
			select {
			case <-e.stop:
			default:
				close(e.stop)
			}
			return
		}
	}
}

// AddRead registers fn to fire for every event c produces. fn receives the
// conn.Event the forwarder goroutine already dequeued from c.Events() — by
// the time the loop invokes fn, that event is no longer sitting on c's
// channel, so fn must not (and does not need to) read c.Events() itself.
func (e *Embedded) AddRead(c *conn.Connection, fn ReadHandler) error {
	e.mu.Lock()
	if _, ok := e.running[c]; ok {
		e.handlers[c] = fn
		e.mu.Unlock()
		return nil
	}
	stopCh := make(chan struct{})
	e.running[c] = stopCh
	e.handlers[c] = fn
	e.mu.Unlock()

	go e.forward(c, stopCh)
	return nil
}

func (e *Embedded) forward(c *conn.Connection, stopCh chan struct{}) {
	for {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				return
			}
			select {
			case e.merged <- mergedEvent{c: c, ev: ev}:
			case <-stopCh:
				return
			case <-e.stop:
				return
			}
		case <-stopCh:
			return
		case <-e.stop:
			return
		}
	}
}

// DelRead stops delivering c's events to the loop.
func (e *Embedded) DelRead(c *conn.Connection) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if stopCh, ok := e.running[c]; ok {
		close(stopCh)
		delete(e.running, c)
	}
	delete(e.handlers, c)
	return nil
}

// AddWrite/DelWrite are no-ops: Embedded connections write synchronously
// from Enqueue and never need write-readiness.
func (e *Embedded) AddWrite(c *conn.Connection, fn ReadyFunc) error { return nil }
func (e *Embedded) DelWrite(c *conn.Connection) error               { return nil }

// Post schedules fn to run on the loop goroutine, serialized with every
// read-readiness callback.
func (e *Embedded) Post(fn func()) {
	select {
	case e.tasks <- fn:
	case <-e.stop:
	}
}

// Cleanup stops the loop and every per-connection forwarder goroutine, then
// blocks until the loop goroutine has actually exited.
func (e *Embedded) Cleanup() {
	select {
	case <-e.stop:
	default:
		close(e.stop)
	}
	<-e.done
}
