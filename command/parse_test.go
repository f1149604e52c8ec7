package command

import (
	"testing"

	"github.com/valkey-io/valkeycluster-go/proto"
)

func keyStrings(t *testing.T, c *Command) []string {
	t.Helper()
	out := make([]string, len(c.Keys))
	for i := range c.Keys {
		out[i] = string(c.Key(i))
	}
	return out
}

func assertKeys(t *testing.T, c *Command, want ...string) {
	t.Helper()
	if c.Result != ResultOK {
		t.Fatalf("expected parse OK, got error: %s", c.ErrStr)
	}
	got := keyStrings(t, c)
	if len(got) != len(want) {
		t.Fatalf("expected keys %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected keys %v, got %v", want, got)
		}
	}
}

func format(t *testing.T, args ...string) []byte {
	t.Helper()
	cmd, err := proto.NewCommand(args...)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	return cmd.Format()
}

// Scenario 1.
func TestParseGet(t *testing.T) {
	buf := format(t, "GET", "foo")
	assertKeys(t, Parse(buf), "foo")
}

// Scenario 2.
func TestParseMSet(t *testing.T) {
	buf := format(t, "MSET", "foo", "val1", "bar", "val2")
	assertKeys(t, Parse(buf), "foo", "bar")
}

// Scenario 3.
func TestParseEval(t *testing.T) {
	assertKeys(t, Parse(format(t, "EVAL", "dummy", "1", "foo")), "foo")
	assertKeys(t, Parse(format(t, "EVAL", "dummy", "0", "foo")))
}

// Scenario 4.
func TestParseXReadGroupConfusingNames(t *testing.T) {
	buf := format(t, "XREADGROUP", "GROUP", "streams", "streams", "COUNT", "1", "streams", "mystream", ">")
	assertKeys(t, Parse(buf), "mystream")
}

// Scenario 5.
func TestParseXRead(t *testing.T) {
	buf := format(t, "XREAD", "BLOCK", "42", "STREAMS", "mystream", "another", "$", "$")
	assertKeys(t, Parse(buf), "mystream", "another")
}

// Scenario 6.
func TestParseXGroup(t *testing.T) {
	c := Parse(format(t, "XGROUP"))
	if c.Result != ResultError || c.ErrStr != "Unknown command XGROUP" {
		t.Fatalf("expected Unknown command XGROUP, got %+v", c)
	}

	c = Parse(format(t, "XGROUP", "DESTROY"))
	want := "Failed to find keys of command XGROUP DESTROY"
	if c.Result != ResultError || c.ErrStr != want {
		t.Fatalf("expected %q, got %+v", want, c)
	}

	assertKeys(t, Parse(format(t, "XGROUP", "DESTROY", "mystream", "mygroup")), "mystream")
}

// Scenario 7.
func TestParseNameDisambiguation(t *testing.T) {
	assertKeys(t, Parse(format(t, "RESTORE", "k", "0", "xxx")), "k")
	assertKeys(t, Parse(format(t, "RESTORE-ASKING", "k", "0", "xxx")), "k")
	assertKeys(t, Parse(format(t, "GEORADIUS_RO", "k", "0", "0", "0", "km")), "k")
}

// Scenario 8.
func TestParseNonResp(t *testing.T) {
	c := Parse([]byte("+++Not RESP+++\r\n"))
	if c.Result != ResultError || c.ErrStr != "Command parse error" {
		t.Fatalf("expected Command parse error, got %+v", c)
	}
}

func TestParseUnknownCommand(t *testing.T) {
	c := Parse(format(t, "BOGUSCMD", "x"))
	if c.Result != ResultError || c.ErrKind != ErrUnknownCommand {
		t.Fatalf("expected unknown command error, got %+v", c)
	}
}

func TestParseArityError(t *testing.T) {
	c := Parse(format(t, "GET"))
	if c.Result != ResultError || c.ErrKind != ErrArity {
		t.Fatalf("expected arity error, got %+v", c)
	}
}

func TestParseSortStore(t *testing.T) {
	buf := format(t, "SORT", "mylist", "STORE", "dest")
	assertKeys(t, Parse(buf), "mylist", "dest")
}

func TestParseGeoRadiusStore(t *testing.T) {
	buf := format(t, "GEORADIUS", "geo", "0", "0", "1", "km", "STORE", "dest")
	assertKeys(t, Parse(buf), "geo", "dest")
}

func TestParseNeverReadsPastBuffer(t *testing.T) {
	// Truncated bulk body: declared length exceeds what's available.
	buf := []byte("*2\r\n$3\r\nGET\r\n$10\r\nfoo\r\n")
	c := Parse(buf)
	if c.Result != ResultError {
		t.Fatalf("expected parse error for truncated buffer, got %+v", c)
	}
}
