// Package fnet provides the dial-time socket tuning used by conn.Connection:
// SO_REUSEPORT, TCP_FASTOPEN and TCP_DEFER_ACCEPT, applied through a
// net.Dialer's Control hook (TCP keepalive is left to net.Dialer's default).
// This is the concrete transport behind the spec's "raw TCP/TLS
// byte transport" external collaborator (SPEC_FULL.md §2).
package fnet

import (
	"context"
	"crypto/tls"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Options toggle individual socket-level tunables.
type Options struct {
	ReusePort   bool
	FastOpen    bool
	DeferAccept bool
	Timeout     time.Duration

	// TLS, when non-nil, wraps the raw TCP connection in a TLS client
	// handshake before Dial returns (spec §6 configuration's tls_options).
	TLS *tls.Config
}

// Dial connects to addr, applying Options via the dialer's Control hook
// before the connect() syscall completes, then performs a TLS handshake
// over the raw connection if opts.TLS is set.
func Dial(ctx context.Context, addr string, opts Options) (net.Conn, error) {
	dialer := net.Dialer{
		Timeout: opts.Timeout,
		Control: control(opts),
	}
	nc, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if opts.TLS == nil {
		return nc, nil
	}
	tc := tls.Client(nc, opts.TLS)
	if err := tc.HandshakeContext(ctx); err != nil {
		nc.Close()
		return nil, err
	}
	return tc, nil
}

// control returns a Control callback suitable for net.Dialer, applying the
// requested socket options to the pre-connect file descriptor.
func control(opts Options) func(string, string, syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			if opts.ReusePort {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
				if sockErr != nil {
					return
				}
			}
			if opts.FastOpen {
				// TCP_FASTOPEN_CONNECT lets the fast-open handshake ride
				// along with the first Write instead of requiring
				// sendto(MSG_FASTOPEN) plumbing.
				sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_FASTOPEN_CONNECT, 1)
				if sockErr != nil {
					return
				}
			}
			if opts.DeferAccept {
				sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_DEFER_ACCEPT, 1)
			}
		})
		if err != nil {
			return err
		}
		return sockErr
	}
}
