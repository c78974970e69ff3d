//go:build linux

package net

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/parastrom/ioruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// newTestRuntime builds a Runtime for tests that drive real ring I/O,
// skipping when the host kernel lacks io_uring or a required opcode,
// matching the root package's own newTestRuntime skip pattern.
func newTestRuntime(t *testing.T) *ioruntime.Runtime {
	t.Helper()
	rt, err := ioruntime.New(ioruntime.WithRingSize(32))
	if err != nil {
		t.Skipf("io_uring unavailable or missing a required feature/opcode: %v", err)
	}
	return rt
}

// boundAddr recovers the ephemeral address/port the kernel assigned to a
// socket bound to port 0, so a test can Dial back to it.
func boundAddr(t *testing.T, fd int) netip.AddrPort {
	t.Helper()
	sa, err := unix.Getsockname(fd)
	require.NoError(t, err)
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port))
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(sa.Addr), uint16(sa.Port))
	default:
		t.Fatalf("unexpected sockaddr type %T", sa)
		return netip.AddrPort{}
	}
}

// TestTCPEcho is SPEC_FULL.md §8 scenario 1: accept one client, read up to
// 1024 bytes, echo them back, then observe EOF.
func TestTCPEcho(t *testing.T) {
	rt := newTestRuntime(t)

	l, err := Listen(netip.MustParseAddrPort("127.0.0.1:0"), 1)
	require.NoError(t, err)
	defer l.Close()
	addr := boundAddr(t, l.fd)

	result, err := rt.Run(func(root *ioruntime.Task) (any, error) {
		server := ioruntime.Spawn(root, func(ct *ioruntime.Task) (string, error) {
			conn, _, err := l.Accept(ct)
			if err != nil {
				return "", err
			}
			defer conn.Close(ct)

			buf := make([]byte, 1024)
			n, err := conn.Read(ct, buf)
			if err != nil {
				return "", err
			}
			echoed := string(buf[:n])
			if _, err := conn.Write(ct, buf[:n]); err != nil {
				return "", err
			}

			n2, err := conn.Read(ct, buf)
			if err != nil {
				return "", err
			}
			if n2 != 0 {
				return "", errors.New("net: expected EOF after echo")
			}
			return echoed, nil
		})

		client, err := Dial(root, addr)
		if err != nil {
			return nil, err
		}
		defer client.Close(root)

		if _, err := client.Write(root, []byte("hello")); err != nil {
			return nil, err
		}
		if err := client.Shutdown(root, unix.SHUT_WR); err != nil {
			return nil, err
		}

		return server.Join(root)
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", result)
}
