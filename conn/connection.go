// Package conn implements the per-node pipelined connection: a send/receive
// byte pipe with an outstanding-request queue whose FIFO order is the basis
// of reply correlation (spec §3, §4.4). It is the direct descendant of the
// teacher's BackendServer/ValkeyConn pair.
package conn

import (
	"bufio"
	"container/list"
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/golang/glog"
	"github.com/valkey-io/valkeycluster-go/fnet"
	"github.com/valkey-io/valkeycluster-go/proto"
)

// State is one of the connection lifecycle states of spec §4.4.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
	StateDraining
	StateFailed
)

// AuthOptions carries the credentials sent as an AUTH command immediately
// after connecting, the same postConnect step the teacher's ValkeyConn
// performs before handing a connection back to its pool.
type AuthOptions struct {
	Username string
	Password string
}

// Request is one outstanding command: its already-formatted wire bytes plus
// enough context for the dispatcher to correlate the eventual reply back to
// a user callback and to drive redirection.
type Request struct {
	Raw          []byte
	Privdata     any
	TargetSlot   int
	RedirectHops int
	AskPending   bool
}

// Event is what a Connection reports back to its owner (the dispatcher, via
// the event loop) for one completed or failed request.
type Event struct {
	Req   *Request
	Reply *proto.Data
	Err   error
}

// Connection is exclusively owned by the dispatcher; nothing else should
// call its methods concurrently except the internal read goroutine, which
// only ever touches the pending queue under mu.
type Connection struct {
	Addr string

	mu      sync.Mutex
	state   State
	pending *list.List // of *Request, front = oldest unanswered

	netConn net.Conn
	r       *bufio.Reader
	w       *bufio.Writer

	events chan Event
	done   chan struct{}
}

// Dial opens a connection to addr, authenticates it if auth.Password is set,
// and starts its reply-reading goroutine. The returned Connection is in
// StateReady on success.
func Dial(ctx context.Context, addr string, opts fnet.Options, auth AuthOptions) (*Connection, error) {
	c := &Connection{
		Addr:    addr,
		pending: list.New(),
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
		state:   StateConnecting,
	}
	nc, err := fnet.Dial(ctx, addr, opts)
	if err != nil {
		c.state = StateFailed
		return nil, fmt.Errorf("conn: dial %s: %w", addr, err)
	}
	c.attach(nc)
	if auth.Password != "" {
		if err := c.authenticate(auth); err != nil {
			nc.Close()
			c.state = StateFailed
			return nil, fmt.Errorf("conn: auth %s: %w", addr, err)
		}
	}
	go c.readLoop()
	return c, nil
}

// authenticate sends AUTH synchronously over the freshly dialed connection,
// the same blocking request/reply postConnect step as the teacher's
// ValkeyConn.postConnect, before the pipelined readLoop goroutine starts.
func (c *Connection) authenticate(auth AuthOptions) error {
	var cmd *proto.Command
	var err error
	if auth.Username != "" {
		cmd, err = proto.NewCommand("AUTH", auth.Username, auth.Password)
	} else {
		cmd, err = proto.NewCommand("AUTH", auth.Password)
	}
	if err != nil {
		return err
	}
	if _, err := c.w.Write(cmd.Format()); err != nil {
		return err
	}
	if err := c.w.Flush(); err != nil {
		return err
	}
	reply, err := proto.ReadData(c.r)
	if err != nil {
		return err
	}
	if reply.T == proto.T_Error {
		return fmt.Errorf("AUTH rejected: %s", reply.String)
	}
	return nil
}

func (c *Connection) attach(nc net.Conn) {
	c.netConn = nc
	c.r = bufio.NewReaderSize(nc, 64*1024)
	c.w = bufio.NewWriterSize(nc, 64*1024)
	c.state = StateReady
}

// Events returns the channel of completed/failed replies, FIFO with respect
// to Enqueue order. The event-loop adapter forwards these into the
// dispatcher's single state-owning goroutine.
func (c *Connection) Events() <-chan Event { return c.events }

// State reports the connection's current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending reports the number of requests written but not yet answered.
func (c *Connection) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.Len()
}

// Enqueue appends req's bytes to the send buffer and pushes req onto the
// pending queue, preserving the invariant that pending order equals
// send-order (spec §3). The bytes are flushed immediately: like the
// teacher's writeToBackend, this trades a little write-syscall batching for
// never holding a half-sent request across a scheduling point.
func (c *Connection) Enqueue(req *Request) error {
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return fmt.Errorf("conn: %s is not ready (state=%d)", c.Addr, c.state)
	}
	c.pending.PushBack(req)
	c.mu.Unlock()

	if _, err := c.w.Write(req.Raw); err != nil {
		glog.Errorf("conn: write to %s failed: %v", c.Addr, err)
		c.failAll(err)
		return err
	}
	if err := c.w.Flush(); err != nil {
		glog.Errorf("conn: flush to %s failed: %v", c.Addr, err)
		c.failAll(err)
		return err
	}
	return nil
}

// readLoop drains replies in FIFO order, matching each to the pending
// queue's front, until the connection fails or is closed.
func (c *Connection) readLoop() {
	for {
		reply, err := proto.ReadData(c.r)
		if err != nil {
			if err != io.EOF {
				glog.Errorf("conn: read from %s failed: %v", c.Addr, err)
			}
			c.failAll(err)
			return
		}
		c.mu.Lock()
		front := c.pending.Front()
		if front == nil {
			c.mu.Unlock()
			glog.Errorf("conn: %s received a reply with no pending request", c.Addr)
			continue
		}
		req := c.pending.Remove(front).(*Request)
		drainingEmpty := c.state == StateDraining && c.pending.Len() == 0
		c.mu.Unlock()

		c.events <- Event{Req: req, Reply: reply}
		if drainingEmpty {
			c.closeLocked(nil)
			return
		}
	}
}

// failAll marks the connection failed and delivers err to every pending
// request, in FIFO order, then tears down the socket. This is also used by
// the dispatcher's per-request timeout path (spec §5): once one reply's
// wire position is skipped, every subsequent pending entry would
// desynchronize, so the whole connection must go.
func (c *Connection) failAll(err error) {
	c.mu.Lock()
	if c.state == StateFailed || c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateFailed
	var reqs []*Request
	for e := c.pending.Front(); e != nil; {
		reqs = append(reqs, e.Value.(*Request))
		next := e.Next()
		c.pending.Remove(e)
		e = next
	}
	nc := c.netConn
	c.mu.Unlock()

	for _, req := range reqs {
		c.events <- Event{Req: req, Err: err}
	}
	if nc != nil {
		nc.Close()
	}
	close(c.done)
}

// Drain stops accepting new requests; once the pending queue empties the
// connection transitions to disconnected on its own (spec §4.4).
func (c *Connection) Drain() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady {
		return
	}
	if c.pending.Len() == 0 {
		c.closeLocked(nil)
		return
	}
	c.state = StateDraining
}

func (c *Connection) closeLocked(err error) {
	c.state = StateDisconnected
	if c.netConn != nil {
		c.netConn.Close()
	}
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

// Close forcibly tears down the connection, failing anything still pending.
func (c *Connection) Close() error {
	c.failAll(fmt.Errorf("conn: closed"))
	return nil
}

// Fail marks the connection failed and delivers err to every request still
// pending on it, in FIFO order. Exported for callers outside this package
// that detect a failure the connection itself cannot see, such as the
// dispatcher's per-request timeout watchdog: one reply skipped desyncs
// every later entry in the pending queue, so the whole connection must go.
func (c *Connection) Fail(err error) {
	c.failAll(err)
}

// Done is closed once the connection has fully torn down (failed, drained,
// or explicitly closed).
func (c *Connection) Done() <-chan struct{} { return c.done }
