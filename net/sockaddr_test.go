//go:build linux

package net

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeRoundTripIPv4(t *testing.T) {
	addr := netip.MustParseAddrPort("127.0.0.1:8080")

	var storage sockaddrStorage
	_, size := encode(&storage, addr)
	assert.Positive(t, size)

	got := decode(&storage)
	assert.Equal(t, addr, got)
}

func TestEncodeDecodeRoundTripIPv6(t *testing.T) {
	addr := netip.MustParseAddrPort("[::1]:9090")

	var storage sockaddrStorage
	_, size := encode(&storage, addr)
	assert.Positive(t, size)

	got := decode(&storage)
	assert.Equal(t, addr, got)
}

func TestFamilyMatchesAddressKind(t *testing.T) {
	assert.Equal(t, 2 /* AF_INET */, family(netip.MustParseAddr("10.0.0.1")))
	assert.Equal(t, 10 /* AF_INET6 */, family(netip.MustParseAddr("::1")))
}
