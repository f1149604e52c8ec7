package command

import (
	"fmt"
	"strconv"
)

// Result classifies whether parsing succeeded.
type Result int

const (
	ResultOK Result = iota
	ResultError
)

// ErrorKind further classifies a ResultError Command, so callers can branch
// without string-matching the human-readable message.
type ErrorKind int

const (
	ErrNone ErrorKind = iota
	ErrProtocol
	ErrUnknownCommand
	ErrArity
	ErrKeyExtraction
)

// KeyPos is a pair of byte offsets into Command.Buf identifying one key
// argument. It never copies the key bytes.
type KeyPos struct {
	Start, End int
}

// Command is the parsed-command entity of the spec's data model: the
// original buffer, the resolved descriptor, the ordered key list, and the
// parse outcome.
type Command struct {
	Buf        []byte
	Descriptor *Descriptor
	Keys       []KeyPos

	Result  Result
	ErrStr  string
	ErrKind ErrorKind

	argv [][]byte
}

// Key returns the raw bytes of key i.
func (c *Command) Key(i int) []byte {
	p := c.Keys[i]
	return c.Buf[p.Start:p.End]
}

// Argv returns the decoded argument vector.
func (c *Command) Argv() [][]byte { return c.argv }

func fail(c *Command, kind ErrorKind, format string, args ...any) *Command {
	c.Result = ResultError
	c.ErrKind = kind
	c.ErrStr = fmt.Sprintf(format, args...)
	return c
}

// Parse decodes one serialized RESP request (spec §4.1) and extracts its
// key positions. It never reads past the end of buf.
func Parse(buf []byte) *Command {
	c := &Command{Buf: buf}

	if len(buf) == 0 || buf[0] != '*' {
		return fail(c, ErrProtocol, "Command parse error")
	}

	argv, spans, err := parseMultiBulk(buf)
	if err != nil {
		return fail(c, ErrProtocol, "Command parse error")
	}
	if len(argv) == 0 {
		return fail(c, ErrProtocol, "Command parse error")
	}
	c.argv = argv

	desc := Lookup(argv)
	if desc == nil {
		return fail(c, ErrUnknownCommand, "Unknown command %s", DisplayName(argv))
	}
	c.Descriptor = desc

	if !arityOK(desc.Arity, len(argv)) {
		return fail(c, ErrArity, "Wrong number of arguments for %s", desc.Name)
	}

	keys, err := extractKeys(desc, argv, spans)
	if err != nil {
		return fail(c, ErrKeyExtraction, "%s", err.Error())
	}
	c.Keys = keys

	if desc.has(FlagNeedsKeys) && len(keys) == 0 {
		return fail(c, ErrKeyExtraction, "Failed to find keys of command %s", desc.Name)
	}

	c.Result = ResultOK
	return c
}

func arityOK(arity, argc int) bool {
	if arity >= 0 {
		return argc == arity
	}
	return argc >= -arity
}

// parseMultiBulk decodes "*N\r\n$L1\r\n<arg1>\r\n...$LN\r\n<argN>\r\n" into
// argument byte slices (views into buf) and their [start,end) spans of the
// argument *content* within buf, bounds-checking every declared length
// against the remaining buffer.
func parseMultiBulk(buf []byte) (argv [][]byte, spans []KeyPos, err error) {
	pos := 0
	line, next, ok := readCRLFLine(buf, pos)
	if !ok || len(line) < 2 || line[0] != '*' {
		return nil, nil, fmt.Errorf("malformed multibulk header")
	}
	argc, convErr := strconv.Atoi(string(line[1:]))
	if convErr != nil || argc < 0 {
		return nil, nil, fmt.Errorf("malformed argc")
	}
	pos = next

	argv = make([][]byte, 0, argc)
	spans = make([]KeyPos, 0, argc)
	for i := 0; i < argc; i++ {
		hdr, afterHdr, ok := readCRLFLine(buf, pos)
		if !ok || len(hdr) < 2 || hdr[0] != '$' {
			return nil, nil, fmt.Errorf("malformed bulk header")
		}
		n, convErr := strconv.Atoi(string(hdr[1:]))
		if convErr != nil || n < 0 {
			return nil, nil, fmt.Errorf("malformed bulk length")
		}
		start := afterHdr
		end := start + n
		if end+2 > len(buf) || end < start {
			return nil, nil, fmt.Errorf("bulk argument exceeds buffer")
		}
		if buf[end] != '\r' || buf[end+1] != '\n' {
			return nil, nil, fmt.Errorf("malformed bulk trailer")
		}
		argv = append(argv, buf[start:end])
		spans = append(spans, KeyPos{Start: start, End: end})
		pos = end + 2
	}
	return argv, spans, nil
}

// readCRLFLine returns the bytes of the line starting at pos (excluding the
// terminating CRLF) and the offset of the byte following it.
func readCRLFLine(buf []byte, pos int) (line []byte, next int, ok bool) {
	for i := pos; i+1 < len(buf); i++ {
		if buf[i] == '\r' && buf[i+1] == '\n' {
			return buf[pos:i], i + 2, true
		}
	}
	return nil, 0, false
}
