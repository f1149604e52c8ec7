package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/glog"
	"github.com/valkey-io/valkeycluster-go/conn"
	"github.com/valkey-io/valkeycluster-go/eventloop"
	"github.com/valkey-io/valkeycluster-go/fnet"
)

// pool is the backend connection registry, the direct descendant of the
// teacher's BackendServerPool: one persistent, pipelined conn.Connection per
// node address, created lazily and kept until explicitly removed.
type pool struct {
	mu        sync.Mutex
	conns     map[string]*conn.Connection
	dialOpts  fnet.Options
	authOpts  conn.AuthOptions
	onEvent   func(c *conn.Connection, ev conn.Event)
	onConnect func(addr string, err error)
}

func newPool(dialOpts fnet.Options, authOpts conn.AuthOptions, onEvent func(c *conn.Connection, ev conn.Event), onConnect func(addr string, err error)) *pool {
	return &pool{
		conns:     make(map[string]*conn.Connection),
		dialOpts:  dialOpts,
		authOpts:  authOpts,
		onEvent:   onEvent,
		onConnect: onConnect,
	}
}

// get returns the connection for addr, dialing and registering it with the
// event loop if this is the first time addr has been seen.
func (p *pool) get(ctx context.Context, addr string, loop eventloop.Adapter) (*conn.Connection, error) {
	p.mu.Lock()
	if c, ok := p.conns[addr]; ok && c.State() == conn.StateReady {
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	c, err := conn.Dial(ctx, addr, p.dialOpts, p.authOpts)
	if p.onConnect != nil {
		p.onConnect(addr, err)
	}
	if err != nil {
		return nil, fmt.Errorf("dispatcher: connect %s: %w", addr, err)
	}

	p.mu.Lock()
	p.conns[addr] = c
	p.mu.Unlock()

	if loop != nil {
		loop.AddRead(c, func(ev conn.Event) { p.onEvent(c, ev) })
	}
	glog.V(2).Infof("dispatcher: connected to %s", addr)
	return c, nil
}

// remove drops addr from the pool; called once a connection has failed so
// the next get() redials instead of handing back a dead entry.
func (p *pool) remove(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.conns, addr)
}

// closeAll tears down every pooled connection.
func (p *pool) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for addr, c := range p.conns {
		c.Close()
		delete(p.conns, addr)
	}
}
