//go:build linux

package net

import (
	"net/netip"
	"testing"

	"github.com/parastrom/ioruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// TestUDPEcho is SPEC_FULL.md §8 scenario 5: client sends "ping", server
// receives it along with the sender's address via RecvFrom and echoes it
// back via SendTo, client receives "ping".
func TestUDPEcho(t *testing.T) {
	rt := newTestRuntime(t)

	server, err := ListenPacket(netip.MustParseAddrPort("127.0.0.1:0"))
	require.NoError(t, err)
	defer func() { _ = unix.Close(server.fd) }()
	serverAddr := boundAddr(t, server.fd)

	client, err := ListenPacket(netip.MustParseAddrPort("127.0.0.1:0"))
	require.NoError(t, err)
	defer func() { _ = unix.Close(client.fd) }()

	result, err := rt.Run(func(root *ioruntime.Task) (any, error) {
		serverDone := ioruntime.Spawn(root, func(ct *ioruntime.Task) (string, error) {
			buf := make([]byte, 64)
			n, clientAddr, err := server.RecvFrom(ct, buf)
			if err != nil {
				return "", err
			}
			if _, err := server.SendTo(ct, buf[:n], clientAddr); err != nil {
				return "", err
			}
			return string(buf[:n]), nil
		})

		if _, err := client.SendTo(root, []byte("ping"), serverAddr); err != nil {
			return nil, err
		}
		if _, err := serverDone.Join(root); err != nil {
			return nil, err
		}

		buf := make([]byte, 64)
		n, err := client.Recv(root, buf)
		if err != nil {
			return nil, err
		}
		return string(buf[:n]), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ping", result)
}
