package dispatcher

import (
	"fmt"

	"github.com/valkey-io/valkeycluster-go/command"
)

// Kind classifies a dispatcher error along the same taxonomy the distilled
// spec names: protocol parse, unknown/arity, key extraction, routing,
// transport, server, cluster-unavailable.
type Kind int

const (
	KindProtocol Kind = iota
	KindUnknownCommand
	KindArity
	KindKeyExtraction
	KindCrossSlot
	KindTransport
	KindServer
	KindClusterDown
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "protocol"
	case KindUnknownCommand:
		return "unknown_command"
	case KindArity:
		return "arity"
	case KindKeyExtraction:
		return "key_extraction"
	case KindCrossSlot:
		return "cross_slot"
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	case KindClusterDown:
		return "cluster_down"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is what every dispatcher operation returns or hands a callback on
// failure. Callers branch on Kind with errors.As, or compare against one of
// the Err* sentinels below with errors.Is.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dispatcher: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("dispatcher: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrCrossSlot) match any *Error of the same Kind,
// regardless of Msg/wrapped Err, the way a sentinel error is normally
// compared.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// mapParseKind translates a command.ErrorKind (the parser's own taxonomy,
// shared with the distilled spec's §7 list) into a dispatcher Kind.
func mapParseKind(k command.ErrorKind) Kind {
	switch k {
	case command.ErrProtocol:
		return KindProtocol
	case command.ErrUnknownCommand:
		return KindUnknownCommand
	case command.ErrArity:
		return KindArity
	case command.ErrKeyExtraction:
		return KindKeyExtraction
	default:
		return KindServer
	}
}

// Sentinels for errors.Is comparison; their Msg/Err fields are never
// populated, only Kind is significant for Is.
var (
	ErrProtocol       = &Error{Kind: KindProtocol}
	ErrUnknownCommand = &Error{Kind: KindUnknownCommand}
	ErrArity          = &Error{Kind: KindArity}
	ErrKeyExtraction  = &Error{Kind: KindKeyExtraction}
	ErrCrossSlot      = &Error{Kind: KindCrossSlot}
	ErrTransport      = &Error{Kind: KindTransport}
	ErrServer         = &Error{Kind: KindServer}
	ErrClusterDown    = &Error{Kind: KindClusterDown}
	ErrTimeout        = &Error{Kind: KindTimeout}
)
