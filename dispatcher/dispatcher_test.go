package dispatcher

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/valkey-io/valkeycluster-go/config"
	"github.com/valkey-io/valkeycluster-go/eventloop"
	"github.com/valkey-io/valkeycluster-go/proto"
	"github.com/valkey-io/valkeycluster-go/slot"
	"github.com/valkey-io/valkeycluster-go/topology"
)

// stubNode accepts a single connection and, for each decoded command it
// receives, writes back the next canned reply in order.
func stubNode(t *testing.T, replies ...[]byte) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		r := bufio.NewReader(c)
		for _, reply := range replies {
			if _, err := proto.ReadData(r); err != nil {
				return
			}
			if _, err := c.Write(reply); err != nil {
				return
			}
		}
		// keep the connection open so pipelined follow-ups don't EOF early
		buf := make([]byte, 1)
		c.Read(buf)
	}()
	return ln
}

func newDispatcherForTest(t *testing.T) (*Dispatcher, *eventloop.Embedded) {
	t.Helper()
	loop := eventloop.NewEmbedded()
	d := New(nil, config.Default(), loop)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, loop.Attach(ctx), "attach loop")
	t.Cleanup(loop.Cleanup)
	return d, loop
}

// TestMovedRedirection is scenario 10: a command sent to the node the table
// says owns the key gets a MOVED reply, and the dispatcher must re-send it
// to the node named in that reply and deliver its real result.
func TestMovedRedirection(t *testing.T) {
	key := []byte("somekey")
	targetSlot := slot.Of(key)

	nodeB := stubNode(t, []byte("+OK\r\n"))
	defer nodeB.Close()

	movedMsg := []byte("-MOVED " + strconv.Itoa(int(targetSlot)) + " " + nodeB.Addr().String() + "\r\n")
	nodeA := stubNode(t, movedMsg)
	defer nodeA.Close()

	d, _ := newDispatcherForTest(t)

	hostA, portAStr, err := net.SplitHostPort(nodeA.Addr().String())
	require.NoError(t, err, "split nodeA addr")
	portA, err := strconv.Atoi(portAStr)
	require.NoError(t, err, "parse nodeA port")

	table := topology.NewTable()
	idA := topology.NewNodeID(hostA, portA)
	table.SetSlot(targetSlot, idA, hostA, portA)
	d.table.Store(table)

	result := make(chan struct {
		reply *proto.Data
		err   error
	}, 1)
	err = d.SubmitArgv([][]byte{[]byte("GET"), key}, func(reply *proto.Data, err error, _ any) {
		result <- struct {
			reply *proto.Data
			err   error
		}{reply, err}
	}, nil)
	require.NoError(t, err, "SubmitArgv")

	select {
	case r := <-result:
		require.NoError(t, r.err)
		require.Equal(t, "OK", string(r.reply.String))
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for redirected reply")
	}
}

// TestCrossSlotRejected verifies the library-side CROSSSLOT check: a
// two-key command whose keys hash to different slots never reaches the
// network at all.
func TestCrossSlotRejected(t *testing.T) {
	d, _ := newDispatcherForTest(t)
	d.table.Store(topology.NewTable())

	err := d.SubmitArgv([][]byte{[]byte("MSET"), []byte("a"), []byte("1"), []byte("b"), []byte("2")}, nil, nil)
	require.Error(t, err, "expected a CROSSSLOT-ish error for keys on different slots")
	var derr *Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, KindCrossSlot, derr.Kind)
}
