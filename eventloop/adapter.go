// Package eventloop provides the dispatcher's event-loop adapter contract
// (spec §6: attach/add_read/del_read/add_write/del_write/cleanup) and two
// realizations of it: Embedded, a goroutine-driven default that needs
// nothing from the caller, and External, a thin shim an application wires to
// its own poller.
package eventloop

import (
	"context"

	"github.com/valkey-io/valkeycluster-go/conn"
)

// ReadyFunc is invoked by an Adapter when the condition it was registered
// for becomes true. It always runs on the adapter's own serialization
// point (Embedded's loop goroutine, or whatever thread the External
// implementation's poller calls back on), never concurrently with any
// other ReadyFunc from the same Adapter.
type ReadyFunc func()

// ReadHandler is invoked by an Adapter with the conn.Event that made c ready,
// already dequeued from c.Events() by the adapter itself — the handler must
// not (and need not) read c.Events() again, since the adapter only pulls one
// event per AddRead registration per wakeup.
type ReadHandler func(ev conn.Event)

// Adapter is the single capability set the dispatcher depends on: register
// or unregister readiness on a connection, and tear everything down. It is
// the Go realization of the C library's libevent/libev/libuv adapter
// interface.
type Adapter interface {
	// Attach begins the adapter's lifecycle; ctx cancellation is equivalent
	// to calling Cleanup.
	Attach(ctx context.Context) error

	// AddRead arms fn to run whenever c reports a completed or failed
	// request, passing it the event that triggered the call. DelRead
	// disarms it.
	AddRead(c *conn.Connection, fn ReadHandler) error
	DelRead(c *conn.Connection) error

	// AddWrite/DelWrite exist to complete the contract for adapters backed
	// by a real readiness-based poller (External); Embedded's connections
	// always write synchronously from Enqueue (conn/connection.go) and so
	// never need write-readiness, making these no-ops there.
	AddWrite(c *conn.Connection, fn ReadyFunc) error
	DelWrite(c *conn.Connection) error

	// Post schedules fn to run on the adapter's serialization point,
	// exactly like a readiness callback — this is how the dispatcher
	// submits new work without itself owning a goroutine.
	Post(fn func())

	// Cleanup releases every resource the adapter holds. No ReadyFunc or
	// posted task runs after Cleanup returns.
	Cleanup()
}
