// Package dispatcher implements routing, the redirection state machine, and
// the request/reply lifecycle: the generalized descendant of the teacher's
// Dispatcher (topology ownership, TriggerReloadSlots/slotsReloadLoop) fused
// with Session's per-request sequencing (handleResp/redirect), now driving a
// conn.Connection pool instead of a downstream RESP listener.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/valkey-io/valkeycluster-go/command"
	"github.com/valkey-io/valkeycluster-go/config"
	"github.com/valkey-io/valkeycluster-go/conn"
	"github.com/valkey-io/valkeycluster-go/eventloop"
	"github.com/valkey-io/valkeycluster-go/fnet"
	"github.com/valkey-io/valkeycluster-go/proto"
	"github.com/valkey-io/valkeycluster-go/slot"
	"github.com/valkey-io/valkeycluster-go/topology"
)

// Callback receives the final outcome of a Submit/SubmitArgv call: exactly
// one of reply/err is non-nil. privdata is handed back verbatim from the
// Submit/SubmitArgv call that produced this reply, the same opaque-pointer
// pattern the hiredis-style async API this library's event loop is modeled
// on uses to let one callback function serve many in-flight calls.
type Callback func(reply *proto.Data, err error, privdata any)

// requestCtx is what a dispatcher request stashes in conn.Request.Privdata
// so the loop can correlate a conn.Event back to the user's callback and
// drive redirection.
type requestCtx struct {
	argv  [][]byte
	raw   []byte
	slot  int // -1 if the command has no routable key
	hops  int
	cb    Callback
	priv  any
	start time.Time

	// conn is the connection rc is currently pending on, nil until the
	// first successful enqueue; timer is the CommandTimeout watchdog
	// (spec §5), armed once at submit time and stopped on delivery.
	// Both are only ever touched on the dispatcher's loop goroutine.
	conn      *conn.Connection
	timer     *time.Timer
	delivered bool
}

// Dispatcher owns the topology table and the backend connection pool, and
// serializes every state transition through an eventloop.Adapter.
type Dispatcher struct {
	opts  *config.Options
	seeds []string
	loop  eventloop.Adapter
	pool  *pool
	table atomic.Pointer[topology.Table]

	mu           sync.Mutex
	reloading    bool
	lastReload   time.Time
	onConnect    func(node topology.NodeID, err error)
	onDisconnect func(node topology.NodeID, err error)
	metrics      *Metrics
	closed       chan struct{}
}

// New constructs a Dispatcher wired to loop (an eventloop.Embedded unless
// the caller supplies its own eventloop.External). seeds are the initial
// "host:port" contact points used for the first topology discovery.
func New(seeds []string, opts *config.Options, loop eventloop.Adapter) *Dispatcher {
	if opts == nil {
		opts = config.Default()
	}
	d := &Dispatcher{
		opts:   opts,
		seeds:  seeds,
		loop:   loop,
		closed: make(chan struct{}),
	}
	d.table.Store(topology.NewTable())
	dialOpts := fnet.Options{Timeout: opts.ConnectTimeout, TLS: opts.TLS}
	authOpts := conn.AuthOptions{Username: opts.Username, Password: opts.Password}
	d.pool = newPool(dialOpts, authOpts, d.onConnEvent, d.onDialResult)
	return d
}

// SetMetrics installs an optional Prometheus instrument set (§4.9); nil
// disables metrics, which is also the default.
func (d *Dispatcher) SetMetrics(m *Metrics) { d.metrics = m }

// OnConnect/OnDisconnect register lifecycle hooks per node (spec §6).
func (d *Dispatcher) OnConnect(fn func(node topology.NodeID, err error)) {
	d.mu.Lock()
	d.onConnect = fn
	d.mu.Unlock()
}

func (d *Dispatcher) OnDisconnect(fn func(node topology.NodeID, err error)) {
	d.mu.Lock()
	d.onDisconnect = fn
	d.mu.Unlock()
}

func (d *Dispatcher) onDialResult(addr string, err error) {
	d.mu.Lock()
	cb := d.onConnect
	d.mu.Unlock()
	if cb != nil {
		cb(topology.NewNodeIDFromAddr(addr), err)
	}
}

func (d *Dispatcher) notifyDisconnect(addr string, err error) {
	d.mu.Lock()
	cb := d.onDisconnect
	d.mu.Unlock()
	if cb != nil {
		cb(topology.NewNodeIDFromAddr(addr), err)
	}
}

// Start attaches the loop and performs the first topology discovery against
// the seed nodes. Discovery runs on the calling goroutine, not through the
// loop: Start blocks until a CLUSTER SLOTS reply has been applied or every
// node has failed (SPEC_FULL.md §9).
func (d *Dispatcher) Start(ctx context.Context) error {
	if err := d.loop.Attach(ctx); err != nil {
		return err
	}
	return d.refreshTopology(ctx)
}

// refreshTopology sends CLUSTER SLOTS to the seeds and then to every primary
// in the current table, in that order, and installs the table built from the
// first reply that parses; descended from the teacher's doReload.
func (d *Dispatcher) refreshTopology(ctx context.Context) error {
	d.mu.Lock()
	if d.reloading {
		d.mu.Unlock()
		return nil
	}
	d.reloading = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.reloading = false
		d.lastReload = time.Now()
		d.mu.Unlock()
	}()

	addrs := d.seeds
	if cur := d.table.Load(); cur != nil {
		for _, n := range cur.Nodes() {
			if n.Role == topology.RolePrimary {
				addrs = append(addrs, n.Addr())
			}
		}
	}

	var lastErr error
	for _, addr := range addrs {
		c, err := d.pool.get(ctx, addr, d.loop)
		if err != nil {
			lastErr = err
			continue
		}
		reply, err := d.syncCommand(ctx, c, mustCommand("CLUSTER", "SLOTS"))
		if err != nil {
			lastErr = err
			continue
		}
		newTable, err := topology.FromClusterSlots(reply)
		if err != nil {
			lastErr = err
			continue
		}
		d.table.Store(newTable)
		glog.V(2).Infof("dispatcher: topology refreshed from %s, %d nodes", addr, len(newTable.Nodes()))
		return nil
	}
	return fmt.Errorf("dispatcher: topology refresh failed against all known nodes: %w", lastErr)
}

// TriggerReload asks for a topology refresh without blocking the caller,
// throttled the way the teacher's TriggerReloadSlots debounces repeated
// MOVED replies into one reload.
func (d *Dispatcher) TriggerReload() {
	d.mu.Lock()
	tooSoon := time.Since(d.lastReload) < 200*time.Millisecond
	d.mu.Unlock()
	if tooSoon {
		return
	}
	d.loop.Post(func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.opts.ConnectTimeout+time.Second)
		defer cancel()
		if err := d.refreshTopology(ctx); err != nil {
			glog.Errorf("dispatcher: topology reload failed: %v", err)
		}
	})
}

// syncCommand is an internal blocking helper (used only for topology
// bootstrapping, never from user-facing Submit) that writes argv and waits
// for the single matching reply on a private event subscription.
func (d *Dispatcher) syncCommand(ctx context.Context, c *conn.Connection, cmd *proto.Command) (*proto.Data, error) {
	req := &conn.Request{Raw: cmd.Format()}
	if err := c.Enqueue(req); err != nil {
		return nil, err
	}
	select {
	case ev := <-c.Events():
		if ev.Err != nil {
			return nil, ev.Err
		}
		return ev.Reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func mustCommand(args ...string) *proto.Command {
	cmd, err := proto.NewCommand(args...)
	if err != nil {
		panic(err)
	}
	return cmd
}

// Submit formats a command from string arguments and calls SubmitArgv.
func (d *Dispatcher) Submit(cb Callback, privdata any, args ...string) error {
	argv := make([][]byte, len(args))
	for i, a := range args {
		argv[i] = []byte(a)
	}
	return d.SubmitArgv(argv, cb, privdata)
}

// SubmitArgv parses, routes, and enqueues one command (spec §6). Parse/
// routing errors are both returned synchronously and, if cb is non-nil,
// delivered to cb via the loop so callers that only watch the callback are
// never left hanging.
func (d *Dispatcher) SubmitArgv(argv [][]byte, cb Callback, privdata any) error {
	cmd, err := proto.NewCommandArgv(argv)
	if err != nil {
		return d.failSubmit(newError(KindProtocol, err, "failed to format command"), cb, privdata)
	}
	parsed := command.Parse(cmd.Format())
	if parsed.Result == command.ResultError {
		return d.failSubmit(newError(mapParseKind(parsed.ErrKind), nil, "%s", parsed.ErrStr), cb, privdata)
	}

	targetSlot, err := routeSlot(parsed)
	if err != nil {
		return d.failSubmit(err.(*Error), cb, privdata)
	}

	return d.submitParsed(argv, cmd.Format(), targetSlot, cb, privdata)
}

// submitArgvAt is like SubmitArgv but routes to targetSlot's owning node
// regardless of what the command's own keys (if any) would hash to. Used by
// Transaction to keep MULTI/queued-commands/EXEC on one connection even
// though MULTI and EXEC carry no keys of their own to route by.
func (d *Dispatcher) submitArgvAt(targetSlot int, argv [][]byte, cb Callback, privdata any) error {
	cmd, err := proto.NewCommandArgv(argv)
	if err != nil {
		return d.failSubmit(newError(KindProtocol, err, "failed to format command"), cb, privdata)
	}
	parsed := command.Parse(cmd.Format())
	if parsed.Result == command.ResultError {
		return d.failSubmit(newError(mapParseKind(parsed.ErrKind), nil, "%s", parsed.ErrStr), cb, privdata)
	}
	return d.submitParsed(argv, cmd.Format(), targetSlot, cb, privdata)
}

func (d *Dispatcher) submitParsed(argv [][]byte, raw []byte, targetSlot int, cb Callback, privdata any) error {
	rc := &requestCtx{argv: argv, raw: raw, slot: targetSlot, cb: cb, priv: privdata, start: time.Now()}
	if d.opts.CommandTimeout > 0 {
		rc.timer = time.AfterFunc(d.opts.CommandTimeout, func() {
			d.loop.Post(func() { d.onRequestTimeout(rc) })
		})
	}
	d.loop.Post(func() { d.dispatch(rc) })
	return nil
}

// onRequestTimeout fires CommandTimeout after the request's clock expires.
// Per spec §5, a timed-out request cannot simply be plucked out of its
// connection's pending queue without desynchronizing every reply after it,
// so the whole connection is marked failed the same way a transport error
// would (conn.Connection.failAll), which also fails every other request
// still pending on it.
func (d *Dispatcher) onRequestTimeout(rc *requestCtx) {
	if rc.delivered {
		return
	}
	if rc.conn != nil {
		rc.conn.Fail(newError(KindTimeout, nil, "command timed out after %s", d.opts.CommandTimeout))
		return
	}
	d.deliver(rc, nil, newError(KindTimeout, nil, "command timed out after %s", d.opts.CommandTimeout))
}

func (d *Dispatcher) failSubmit(err *Error, cb Callback, privdata any) error {
	if cb != nil {
		d.loop.Post(func() { cb(nil, err, privdata) })
	}
	return err
}

// routeSlot hashes every key in parsed and asserts they share one slot,
// surfacing CROSSSLOT (distilled spec §4.5 step 3) instead of the teacher's
// silent multi-node fan-out (see DESIGN.md's "Redesign vs. teacher" note).
func routeSlot(parsed *command.Command) (int, error) {
	if len(parsed.Keys) == 0 {
		return -1, nil
	}
	first := slot.Of(parsed.Key(0))
	for i := 1; i < len(parsed.Keys); i++ {
		if slot.Of(parsed.Key(i)) != first {
			return 0, newError(KindCrossSlot, nil, "keys of command %s hash to different slots", command.DisplayName(parsed.Argv()))
		}
	}
	return int(first), nil
}

// dispatch resolves rc's target node and enqueues it, runs only on the loop.
func (d *Dispatcher) dispatch(rc *requestCtx) {
	addr, err := d.resolveAddr(rc.slot)
	if err != nil {
		d.deliver(rc, nil, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.ConnectTimeout)
	defer cancel()
	c, dialErr := d.pool.get(ctx, addr, d.loop)
	if dialErr != nil {
		d.pool.remove(addr)
		d.deliver(rc, nil, newError(KindTransport, dialErr, "connect to %s", addr))
		return
	}
	d.enqueue(c, rc, rc.raw)
}

func (d *Dispatcher) enqueue(c *conn.Connection, rc *requestCtx, raw []byte) {
	req := &conn.Request{Raw: raw, Privdata: rc, TargetSlot: rc.slot, RedirectHops: rc.hops}
	if err := c.Enqueue(req); err != nil {
		d.pool.remove(c.Addr)
		d.deliver(rc, nil, newError(KindTransport, err, "write to %s", c.Addr))
		return
	}
	rc.conn = c
}

// onConnEvent is registered with the loop for every pooled connection; the
// loop hands it the conn.Event it already dequeued for this wakeup, so it
// must not read c.Events() again.
func (d *Dispatcher) onConnEvent(c *conn.Connection, ev conn.Event) {
	d.handleEvent(c, ev)
}

func (d *Dispatcher) handleEvent(c *conn.Connection, ev conn.Event) {
	if ev.Req.AskPending && ev.Req.Privdata == nil {
		return // the "+OK" to our own ASKING prefix, nothing to deliver
	}
	rc, ok := ev.Req.Privdata.(*requestCtx)
	if !ok || rc == nil {
		return
	}
	if ev.Err != nil {
		d.pool.remove(c.Addr)
		d.TriggerReload()
		d.notifyDisconnect(c.Addr, ev.Err)
		d.deliver(rc, nil, newError(KindTransport, ev.Err, "connection to %s failed", c.Addr))
		return
	}
	if ev.Reply.T == proto.T_Error {
		if handled := d.handleRedirect(c, rc, ev.Reply); handled {
			return
		}
	}
	if d.metrics != nil {
		d.metrics.observeLatency(time.Since(rc.start))
	}
	d.deliver(rc, ev.Reply, nil)
}

// deliver invokes rc's callback at most once: the CommandTimeout watchdog
// and a real reply/error race to call this for the same requestCtx, and
// whichever arrives first wins (spec §8's at-most-once-dispatched,
// exactly-once-completed invariant).
func (d *Dispatcher) deliver(rc *requestCtx, reply *proto.Data, err error) {
	if rc.delivered {
		return
	}
	rc.delivered = true
	if rc.timer != nil {
		rc.timer.Stop()
	}
	if rc.cb == nil {
		return
	}
	rc.cb(reply, err, rc.priv)
}

// Close closes every pooled connection at once and stops the loop. It does
// not wait for outstanding replies: a connection fails whatever is still
// pending on it as it closes.
func (d *Dispatcher) Close() error {
	select {
	case <-d.closed:
		return nil
	default:
		close(d.closed)
	}
	d.pool.closeAll()
	d.loop.Cleanup()
	return nil
}
