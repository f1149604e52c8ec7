// Package valkeycluster is the public façade over the dispatcher: the
// library's actual external interface (spec §6), a thin rename of the
// teacher's own NewDispatcher/InitSlotTable/Run constructor-and-lifecycle
// shape from a proxy's internal wiring to a client library's entry point.
package valkeycluster

import (
	"context"

	"github.com/valkey-io/valkeycluster-go/config"
	"github.com/valkey-io/valkeycluster-go/dispatcher"
	"github.com/valkey-io/valkeycluster-go/eventloop"
	"github.com/valkey-io/valkeycluster-go/proto"
	"github.com/valkey-io/valkeycluster-go/topology"
)

// ClusterContext is a running connection to a Valkey/Redis Cluster: the
// handle applications hold for the lifetime of the process.
type ClusterContext struct {
	d    *dispatcher.Dispatcher
	loop eventloop.Adapter
}

// Connect discovers the cluster topology from seeds and returns a ready
// ClusterContext. loop is optional: pass nil to get the default
// eventloop.Embedded; pass an eventloop.External to integrate with an
// application's own poller.
func Connect(ctx context.Context, seeds []string, opts *config.Options, loop eventloop.Adapter) (*ClusterContext, error) {
	if loop == nil {
		loop = eventloop.NewEmbedded()
	}
	d := dispatcher.New(seeds, opts, loop)
	if err := d.Start(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return &ClusterContext{d: d, loop: loop}, nil
}

// Submit formats a command from string arguments and enqueues it,
// delivering the reply (or error) to cb.
func (c *ClusterContext) Submit(cb dispatcher.Callback, privdata any, args ...string) error {
	return c.d.Submit(cb, privdata, args...)
}

// SubmitArgv enqueues an already-split argument vector.
func (c *ClusterContext) SubmitArgv(argv [][]byte, cb dispatcher.Callback, privdata any) error {
	return c.d.SubmitArgv(argv, cb, privdata)
}

// SubmitCtx is the synchronous convenience form for call sites that would
// rather block than thread a callback through: it submits the command and
// waits for exactly one reply or ctx's cancellation.
func (c *ClusterContext) SubmitCtx(ctx context.Context, args ...string) (*proto.Data, error) {
	type outcome struct {
		reply *proto.Data
		err   error
	}
	results := make(chan outcome, 1)
	if err := c.d.Submit(func(reply *proto.Data, err error, _ any) {
		results <- outcome{reply, err}
	}, nil, args...); err != nil {
		return nil, err
	}
	select {
	case o := <-results:
		return o.reply, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Tx opens a single-slot transaction pinned to slotKey's slot (§4.10).
func (c *ClusterContext) Tx(slotKey []byte) *dispatcher.Transaction {
	return c.d.Tx(slotKey)
}

// OnConnect/OnDisconnect register per-node lifecycle hooks.
func (c *ClusterContext) OnConnect(fn func(node topology.NodeID, err error)) {
	c.d.OnConnect(fn)
}

func (c *ClusterContext) OnDisconnect(fn func(node topology.NodeID, err error)) {
	c.d.OnDisconnect(fn)
}

// Disconnect closes every backend connection without waiting for outstanding
// replies (see dispatcher.Dispatcher.Close) and stops the event loop. ctx is
// not used.
func (c *ClusterContext) Disconnect(ctx context.Context) error {
	return c.d.Close()
}
