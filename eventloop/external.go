package eventloop

import (
	"context"
	"fmt"

	"github.com/valkey-io/valkeycluster-go/conn"
)

// External lets an application wire the dispatcher into a poller it already
// runs (the Go analogue of the C library's libevent/libev/libuv adapters in
// original_source's adapters/ directory). The application supplies the four
// hook functions; External itself holds no goroutine and makes no I/O
// decisions of its own.
type External struct {
	// AttachFunc is called once, from Attach, to let the host loop learn
	// about ctx cancellation if it wants to.
	AttachFunc func(ctx context.Context) error

	// OnAddRead/OnDelRead/OnAddWrite/OnDelWrite are the host loop's own
	// readiness registration primitives. OnAddRead receives the same
	// ReadHandler the dispatcher would have called directly; the host loop
	// is responsible for draining one conn.Event off c.Events() itself and
	// passing it to fn when the connection becomes readable, exactly as
	// Embedded's forwarder goroutine does.
	OnAddRead  func(c *conn.Connection, fn ReadHandler) error
	OnDelRead  func(c *conn.Connection) error
	OnAddWrite func(c *conn.Connection, fn ReadyFunc) error
	OnDelWrite func(c *conn.Connection) error

	// PostFunc schedules fn to run on the host loop's thread. A host loop
	// that has no such primitive can run fn synchronously only if Post is
	// never called from a context where that would reenter a callback.
	PostFunc func(fn func())

	// CleanupFunc releases whatever resources the host loop associates
	// with this dispatcher.
	CleanupFunc func()
}

func (x *External) Attach(ctx context.Context) error {
	if x.AttachFunc == nil {
		return nil
	}
	return x.AttachFunc(ctx)
}

func (x *External) AddRead(c *conn.Connection, fn ReadHandler) error {
	if x.OnAddRead == nil {
		return fmt.Errorf("eventloop: External.OnAddRead not configured")
	}
	return x.OnAddRead(c, fn)
}

func (x *External) DelRead(c *conn.Connection) error {
	if x.OnDelRead == nil {
		return nil
	}
	return x.OnDelRead(c)
}

func (x *External) AddWrite(c *conn.Connection, fn ReadyFunc) error {
	if x.OnAddWrite == nil {
		return nil
	}
	return x.OnAddWrite(c, fn)
}

func (x *External) DelWrite(c *conn.Connection) error {
	if x.OnDelWrite == nil {
		return nil
	}
	return x.OnDelWrite(c)
}

func (x *External) Post(fn func()) {
	if x.PostFunc == nil {
		fn()
		return
	}
	x.PostFunc(fn)
}

func (x *External) Cleanup() {
	if x.CleanupFunc != nil {
		x.CleanupFunc()
	}
}
