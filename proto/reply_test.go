package proto

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, wire string) *Data {
	t.Helper()
	d, err := ReadData(bufio.NewReader(bytes.NewBufferString(wire)))
	require.NoError(t, err)
	return d
}

func TestReadDataSimpleString(t *testing.T) {
	d := decode(t, "+OK\r\n")
	require.Equal(t, T_SimpleString, d.T)
	require.Equal(t, "OK", string(d.String))
}

func TestReadDataError(t *testing.T) {
	d := decode(t, "-MOVED 3999 127.0.0.1:6381\r\n")
	require.Equal(t, T_Error, d.T)
	require.Equal(t, "MOVED 3999 127.0.0.1:6381", string(d.String))
	require.True(t, bytes.HasPrefix(d.Raw(), []byte("-MOVED")))
}

func TestReadDataInteger(t *testing.T) {
	d := decode(t, ":1000\r\n")
	require.Equal(t, T_Integer, d.T)
	require.Equal(t, int64(1000), d.Integer)
}

func TestReadDataBulkString(t *testing.T) {
	d := decode(t, "$5\r\nhello\r\n")
	require.Equal(t, T_Bulk, d.T)
	require.False(t, d.IsNil)
	require.Equal(t, "hello", string(d.String))
}

func TestReadDataNilBulk(t *testing.T) {
	d := decode(t, "$-1\r\n")
	require.Equal(t, T_Bulk, d.T)
	require.True(t, d.IsNil)
}

func TestReadDataNestedArray(t *testing.T) {
	d := decode(t, "*2\r\n$3\r\nfoo\r\n*2\r\n:1\r\n:2\r\n")
	require.Equal(t, T_Array, d.T)
	require.Len(t, d.Array, 2)
	require.Equal(t, "foo", string(d.Array[0].String))
	require.Equal(t, T_Array, d.Array[1].T)
	require.Len(t, d.Array[1].Array, 2)
	require.Equal(t, int64(1), d.Array[1].Array[0].Integer)
	require.Equal(t, int64(2), d.Array[1].Array[1].Integer)
}

func TestReadDataNilArray(t *testing.T) {
	d := decode(t, "*-1\r\n")
	require.Equal(t, T_Array, d.T)
	require.True(t, d.IsNil)
}

func TestReadDataMalformedLine(t *testing.T) {
	_, err := ReadData(bufio.NewReader(bytes.NewBufferString("+OK\n")))
	require.Error(t, err)
}

func TestRawRoundTripsForArray(t *testing.T) {
	wire := "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n"
	d := decode(t, wire)
	require.Equal(t, wire, string(d.Raw()))
}

func TestNewCommandArgvFormat(t *testing.T) {
	cmd, err := NewCommandArgv([][]byte{[]byte("GET"), []byte("somekey")})
	require.NoError(t, err)
	require.Equal(t, "*2\r\n$3\r\nGET\r\n$7\r\nsomekey\r\n", string(cmd.Format()))
	require.Equal(t, "GET", cmd.Name())
	require.Equal(t, []byte("somekey"), cmd.Value(1))
	require.Nil(t, cmd.Value(5))
}

func TestNewCommandRejectsEmptyArgv(t *testing.T) {
	_, err := NewCommand()
	require.Error(t, err)
}

func TestIsRedirectError(t *testing.T) {
	require.True(t, IsRedirectError([]byte("-MOVED 100 127.0.0.1:7001\r\n"), []byte("-MOVED")))
	require.False(t, IsRedirectError([]byte("-ASK 100 127.0.0.1:7001\r\n"), []byte("-MOVED")))
}
