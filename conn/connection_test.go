package conn

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/valkey-io/valkeycluster-go/fnet"
)

// serveOnce accepts a single connection and replies to every multi-bulk
// command it reads with a fixed simple-string reply, until the client hangs
// up (or closeAfter requests are seen).
func serveOnce(t *testing.T, ln net.Listener, closeAfter int) {
	t.Helper()
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		r := bufio.NewReader(c)
		count := 0
		for {
			if _, err := r.ReadString('\n'); err != nil {
				return
			}
			// drain the rest of the multi-bulk request: read until we've
			// consumed as many lines as a *1 command implies. Tests below
			// only ever send single-element arrays, so one more line
			// (the bulk header) plus one more (the payload) follow.
			r.ReadString('\n')
			r.ReadString('\n')
			if _, err := c.Write([]byte("+OK\r\n")); err != nil {
				return
			}
			count++
			if closeAfter > 0 && count >= closeAfter {
				return
			}
		}
	}()
}

func TestEnqueueAndReadReply(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	serveOnce(t, ln, 0)

	c, err := Dial(context.Background(), ln.Addr().String(), fnet.Options{Timeout: time.Second}, AuthOptions{})
	require.NoError(t, err)
	defer c.Close()

	req := &Request{Raw: []byte("*1\r\n$4\r\nPING\r\n")}
	require.NoError(t, c.Enqueue(req))

	select {
	case ev := <-c.Events():
		require.NoError(t, ev.Err)
		require.Same(t, req, ev.Req, "reply not matched to the request that produced it")
		require.Equal(t, "OK", string(ev.Reply.String))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reply")
	}
}

func TestFIFOOrderingAcrossPipelinedRequests(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	serveOnce(t, ln, 0)

	c, err := Dial(context.Background(), ln.Addr().String(), fnet.Options{Timeout: time.Second}, AuthOptions{})
	require.NoError(t, err)
	defer c.Close()

	reqs := make([]*Request, 3)
	for i := range reqs {
		reqs[i] = &Request{Raw: []byte("*1\r\n$4\r\nPING\r\n")}
		require.NoError(t, c.Enqueue(reqs[i]), "enqueue %d", i)
	}

	for i := range reqs {
		select {
		case ev := <-c.Events():
			require.Same(t, reqs[i], ev.Req, "reply %d matched to wrong request", i)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for reply %d", i)
		}
	}
}

func TestFailAllOnPeerClose(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	serveOnce(t, ln, 1)

	c, err := Dial(context.Background(), ln.Addr().String(), fnet.Options{Timeout: time.Second}, AuthOptions{})
	require.NoError(t, err)
	defer c.Close()

	first := &Request{Raw: []byte("*1\r\n$4\r\nPING\r\n")}
	second := &Request{Raw: []byte("*1\r\n$4\r\nPING\r\n")}
	c.Enqueue(first)
	c.Enqueue(second)

	<-c.Events() // the one reply the server sends before closing

	select {
	case ev := <-c.Events():
		require.Error(t, ev.Err, "expected the second request to fail once the peer closes")
		require.Same(t, second, ev.Req, "failure delivered for the wrong request")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for failure event")
	}

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not report done after failing")
	}
}
