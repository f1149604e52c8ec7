package dispatcher

import (
	"context"

	"github.com/valkey-io/valkeycluster-go/config"
	"github.com/valkey-io/valkeycluster-go/eventloop"
	"github.com/valkey-io/valkeycluster-go/proto"
)

// Sync wraps a Dispatcher with a private eventloop.Embedded instance and
// blocks the calling goroutine per call, simulating a synchronous client on
// top of the same async dispatcher everything else uses (spec §5's
// synchronous-call wrapper). Never call Sync's methods from inside a
// callback running on any dispatcher's loop goroutine — that would block the
// loop it's waiting on.
type Sync struct {
	d *Dispatcher
}

// NewSync starts a Dispatcher with its own private Embedded loop and wraps
// it for blocking calls.
func NewSync(ctx context.Context, seeds []string, opts *config.Options) (*Sync, error) {
	loop := eventloop.NewEmbedded()
	d := New(seeds, opts, loop)
	if err := d.Start(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return &Sync{d: d}, nil
}

// Do submits a command and blocks until its reply or error arrives, or ctx
// is done.
func (s *Sync) Do(ctx context.Context, args ...string) (*proto.Data, error) {
	argv := make([][]byte, len(args))
	for i, a := range args {
		argv[i] = []byte(a)
	}
	return s.DoArgv(ctx, argv)
}

// DoArgv is Do for an already-split argument vector.
func (s *Sync) DoArgv(ctx context.Context, argv [][]byte) (*proto.Data, error) {
	type outcome struct {
		reply *proto.Data
		err   error
	}
	results := make(chan outcome, 1)
	if err := s.d.SubmitArgv(argv, func(reply *proto.Data, err error, _ any) {
		results <- outcome{reply, err}
	}, nil); err != nil {
		return nil, err
	}
	select {
	case o := <-results:
		return o.reply, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Dispatcher returns the wrapped async Dispatcher, for callers that want to
// mix blocking and callback-style calls against the same connections.
func (s *Sync) Dispatcher() *Dispatcher { return s.d }

// Close tears down the wrapped dispatcher and its private loop.
func (s *Sync) Close() error { return s.d.Close() }
