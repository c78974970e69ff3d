//go:build linux

// Package net provides TCP and UDP operations built on the io_uring ring
// owned by an ioruntime.Runtime, grounded on this module's original Rust
// net::tcp/net::udp implementation: a thin wrapper over connect/accept/
// send(msg)/recv(msg)/shutdown/close, with the listen-side bind/listen done
// through ordinary blocking syscalls (io_uring has no bind/listen opcode in
// the version this runtime targets) and everything else async.
package net

import (
	"net/netip"
	"unsafe"

	"golang.org/x/sys/unix"
)

// sockaddrStorage holds either family of raw sockaddr, large enough for
// both, so callers can pass one address type through a single
// unsafe.Pointer without a type switch at every call site. Either family is
// written and read at the start of the storage (where in4 lies), as the
// kernel does for accept and recvmsg.
type sockaddrStorage struct {
	in4 unix.RawSockaddrInet4
	in6 unix.RawSockaddrInet6
}

// encode fills s with addr's raw sockaddr representation and returns a
// pointer to it plus its length, for use as an SQE's address argument.
// The caller must keep s alive until the kernel has read the address,
// i.e. at least until the owning Task.resolve call returns.
func encode(s *sockaddrStorage, addr netip.AddrPort) (unsafe.Pointer, uint32) {
	if addr.Addr().Is4() {
		s.in4 = unix.RawSockaddrInet4{
			Family: unix.AF_INET,
			Port:   htons(addr.Port()),
			Addr:   addr.Addr().As4(),
		}
		return unsafe.Pointer(&s.in4), uint32(unsafe.Sizeof(s.in4))
	}
	in6 := (*unix.RawSockaddrInet6)(unsafe.Pointer(s))
	*in6 = unix.RawSockaddrInet6{
		Family: unix.AF_INET6,
		Port:   htons(addr.Port()),
		Addr:   addr.Addr().As16(),
	}
	return unsafe.Pointer(in6), uint32(unsafe.Sizeof(*in6))
}

// decode reads a filled sockaddrStorage back into a netip.AddrPort, after
// an accept or recvmsg populated it.
func decode(s *sockaddrStorage) netip.AddrPort {
	switch s.in4.Family {
	case unix.AF_INET:
		return netip.AddrPortFrom(netip.AddrFrom4(s.in4.Addr), ntohs(s.in4.Port))
	case unix.AF_INET6:
		in6 := (*unix.RawSockaddrInet6)(unsafe.Pointer(s))
		return netip.AddrPortFrom(netip.AddrFrom16(in6.Addr), ntohs(in6.Port))
	default:
		return netip.AddrPort{}
	}
}

// ptr and maxLen give accept/recvmsg a raw output buffer large enough for
// either address family, without the caller needing to know which one the
// kernel will fill in until after the call.
func (s *sockaddrStorage) ptr() unsafe.Pointer { return unsafe.Pointer(s) }

func (s *sockaddrStorage) maxLen() uint32 { return uint32(unsafe.Sizeof(*s)) }

func htons(p uint16) uint16 { return p<<8 | p>>8 }
func ntohs(p uint16) uint16 { return p<<8 | p>>8 }

// family returns the AF_INET/AF_INET6 constant for an address, used when
// creating the socket that will later connect or bind to it.
func family(addr netip.Addr) int {
	if addr.Is4() {
		return unix.AF_INET
	}
	return unix.AF_INET6
}
