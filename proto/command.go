// Package proto implements the RESP wire protocol: formatting outbound
// commands as multi-bulk arrays and decoding inbound replies into a tagged
// reply tree. It has no knowledge of cluster topology or key extraction.
package proto

import (
	"bytes"
	"fmt"
)

// Command is a single serialized RESP request, still addressable by its
// original argument boundaries so the command package can extract key
// spans without copying.
type Command struct {
	raw  []byte
	argv [][]byte
}

// NewCommand builds a Command from string arguments, formatting it as a
// RESP multi-bulk array immediately.
func NewCommand(args ...string) (*Command, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("proto: command needs at least one argument")
	}
	argv := make([][]byte, len(args))
	for i, a := range args {
		argv[i] = []byte(a)
	}
	return NewCommandArgv(argv)
}

// NewCommandArgv builds a Command from raw byte arguments.
func NewCommandArgv(argv [][]byte) (*Command, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("proto: command needs at least one argument")
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "*%d\r\n", len(argv))
	for _, a := range argv {
		fmt.Fprintf(&buf, "$%d\r\n", len(a))
		buf.Write(a)
		buf.WriteString("\r\n")
	}
	return &Command{raw: buf.Bytes(), argv: argv}, nil
}

// Name returns the uppercased command name (argv[0]).
func (c *Command) Name() string {
	if len(c.argv) == 0 {
		return ""
	}
	return string(bytes.ToUpper(c.argv[0]))
}

// Value returns argv[i], or nil if out of range.
func (c *Command) Value(i int) []byte {
	if i < 0 || i >= len(c.argv) {
		return nil
	}
	return c.argv[i]
}

// Argv returns every argument, including argv[0].
func (c *Command) Argv() [][]byte { return c.argv }

// Format returns the wire-ready bytes for this command.
func (c *Command) Format() []byte { return c.raw }

// FormatASKING is a convenience constant used by the redirection FSM: a
// single-bulk inline ASKING, issued immediately before a redirected command
// shares the same pipeline slot.
var FormatASKING = []byte("*1\r\n$6\r\nASKING\r\n")
