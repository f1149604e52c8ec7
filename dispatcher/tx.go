package dispatcher

import (
	"fmt"

	"github.com/valkey-io/valkeycluster-go/command"
	"github.com/valkey-io/valkeycluster-go/proto"
	"github.com/valkey-io/valkeycluster-go/slot"
)

// Transaction is a supplemented feature the distilled spec silently drops
// (it names MULTI/EXEC nowhere) but which the teacher's
// Session.handleMultiCmd models. A cluster client cannot offer a general
// cross-node transaction, so Transaction only ever targets one slot: every
// queued command's keys must hash to the same slot as the key it was opened
// with, reusing the CROSSSLOT check from routeSlot.
type Transaction struct {
	d        *Dispatcher
	slot     uint16
	commands [][][]byte
	err      error
}

// Tx opens a transaction pinned to slotKey's slot.
func (d *Dispatcher) Tx(slotKey []byte) *Transaction {
	return &Transaction{d: d, slot: slot.Of(slotKey)}
}

// Queue adds one command to the transaction, rejecting it immediately if
// any of its keys hash to a different slot than the transaction's.
func (t *Transaction) Queue(argv [][]byte) error {
	if t.err != nil {
		return t.err
	}
	cmd, err := proto.NewCommandArgv(argv)
	if err != nil {
		return err
	}
	parsed := command.Parse(cmd.Format())
	if parsed.Result == command.ResultError {
		return newError(mapParseKind(parsed.ErrKind), nil, "%s", parsed.ErrStr)
	}
	for i := range parsed.Keys {
		if slot.Of(parsed.Key(i)) != t.slot {
			return newError(KindCrossSlot, nil, "queued command %s does not hash to this transaction's slot", command.DisplayName(argv))
		}
	}
	t.commands = append(t.commands, argv)
	return nil
}

// Exec submits MULTI, every queued command, and EXEC as one pipelined burst
// to the node owning the transaction's slot, and returns EXEC's array reply
// (one element per queued command) or the server's EXECABORT/queue error.
func (t *Transaction) Exec() (*proto.Data, error) {
	if t.err != nil {
		return nil, t.err
	}

	type outcome struct {
		reply *proto.Data
		err   error
	}
	results := make(chan outcome, len(t.commands)+2)
	cb := func(reply *proto.Data, err error, _ any) { results <- outcome{reply, err} }

	// Every step is pinned to the same slot/node, including MULTI and EXEC
	// which carry no keys of their own to route by: ordinary SubmitArgv
	// routing would otherwise scatter them across different connections.
	if err := t.d.submitArgvAt(int(t.slot), [][]byte{[]byte("MULTI")}, cb, nil); err != nil {
		return nil, err
	}
	for _, argv := range t.commands {
		if err := t.d.submitArgvAt(int(t.slot), argv, cb, nil); err != nil {
			return nil, err
		}
	}
	if err := t.d.submitArgvAt(int(t.slot), [][]byte{[]byte("EXEC")}, cb, nil); err != nil {
		return nil, err
	}

	var last outcome
	for i := 0; i < len(t.commands)+2; i++ {
		last = <-results
		if last.err != nil {
			return nil, last.err
		}
		if last.reply != nil && last.reply.T == proto.T_Error {
			return nil, fmt.Errorf("dispatcher: transaction error: %s", last.reply.String)
		}
	}
	return last.reply, nil
}
