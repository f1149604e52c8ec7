package eventloop

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/valkey-io/valkeycluster-go/conn"
	"github.com/valkey-io/valkeycluster-go/fnet"
)

func serveOK(t *testing.T, ln net.Listener) {
	t.Helper()
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		r := bufio.NewReader(c)
		for {
			if _, err := r.ReadString('\n'); err != nil {
				return
			}
			r.ReadString('\n')
			r.ReadString('\n')
			if _, err := c.Write([]byte("+OK\r\n")); err != nil {
				return
			}
		}
	}()
}

func TestEmbeddedDeliversConnectionEvents(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	serveOK(t, ln)

	c, err := conn.Dial(context.Background(), ln.Addr().String(), fnet.Options{Timeout: time.Second}, conn.AuthOptions{})
	require.NoError(t, err)
	defer c.Close()

	loop := NewEmbedded()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, loop.Attach(ctx))
	defer loop.Cleanup()

	received := make(chan conn.Event, 1)
	loop.AddRead(c, func(ev conn.Event) { received <- ev })

	require.NoError(t, c.Enqueue(&conn.Request{Raw: []byte("*1\r\n$4\r\nPING\r\n")}))

	select {
	case ev := <-received:
		require.NoError(t, ev.Err)
		require.Equal(t, "OK", string(ev.Reply.String))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the loop to deliver an event")
	}
}

func TestEmbeddedPostRunsOnLoop(t *testing.T) {
	loop := NewEmbedded()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop.Attach(ctx)
	defer loop.Cleanup()

	done := make(chan struct{})
	loop.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("posted task never ran")
	}
}

func TestEmbeddedDelReadStopsDelivery(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	serveOK(t, ln)

	c, err := conn.Dial(context.Background(), ln.Addr().String(), fnet.Options{Timeout: time.Second}, conn.AuthOptions{})
	require.NoError(t, err)
	defer c.Close()

	loop := NewEmbedded()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop.Attach(ctx)
	defer loop.Cleanup()

	var fired int
	loop.AddRead(c, func(conn.Event) { fired++ })
	loop.DelRead(c)

	c.Enqueue(&conn.Request{Raw: []byte("*1\r\n$4\r\nPING\r\n")})
	time.Sleep(100 * time.Millisecond)
	require.Zero(t, fired, "expected no callback after DelRead")
}
