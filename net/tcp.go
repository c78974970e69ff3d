//go:build linux

package net

import (
	"fmt"
	"net/netip"

	"github.com/parastrom/ioruntime"
	"github.com/parastrom/ioruntime/internal/uring"
	"golang.org/x/sys/unix"
)

// Stream is an async TCP connection, grounded on the original
// net::tcp::TcpStream: connect and accept go through the runtime's ring,
// read/write/shutdown are plain async ops, and the fd is closed
// fire-and-forget (reserved key 0) rather than awaited.
type Stream struct {
	fd int
}

// Dial creates a socket and connects it to addr via the runtime's ring.
func Dial(t *ioruntime.Task, addr netip.AddrPort) (*Stream, error) {
	fd, err := socket(t, family(addr.Addr()), unix.SOCK_STREAM)
	if err != nil {
		return nil, err
	}

	var storage sockaddrStorage
	ptr, size := encode(&storage, addr)
	_, err = t.Do(func(r *uring.Ring, key ioruntime.IoKey) error {
		return r.PrepConnect(fd, ptr, size, uint64(key))
	})
	if err != nil {
		t.Close(fd)
		return nil, fmt.Errorf("net: connect: %w", err)
	}
	return &Stream{fd: fd}, nil
}

// Read reads into buf, returning the number of bytes read.
func (s *Stream) Read(t *ioruntime.Task, buf []byte) (int, error) {
	res, err := t.Do(func(r *uring.Ring, key ioruntime.IoKey) error {
		return r.PrepRead(s.fd, buf, 0, uint64(key))
	})
	return int(res), err
}

// Write writes buf, returning the number of bytes written.
func (s *Stream) Write(t *ioruntime.Task, buf []byte) (int, error) {
	res, err := t.Do(func(r *uring.Ring, key ioruntime.IoKey) error {
		return r.PrepWrite(s.fd, buf, 0, uint64(key))
	})
	return int(res), err
}

// Shutdown shuts down how (unix.SHUT_RD/WR/RDWR) on the connection.
func (s *Stream) Shutdown(t *ioruntime.Task, how uint32) error {
	_, err := t.Do(func(r *uring.Ring, key ioruntime.IoKey) error {
		return r.PrepShutdown(s.fd, how, uint64(key))
	})
	return err
}

// Close submits a fire-and-forget close of the underlying fd.
func (s *Stream) Close(t *ioruntime.Task) {
	t.Close(s.fd)
}

// Listener accepts inbound TCP connections. Bind itself is an ordinary
// blocking syscall, matching the original's use of std's blocking
// TcpListener::bind for the listen side; only Accept goes through the ring.
type Listener struct {
	fd int
}

// Listen creates, binds, and starts listening on a TCP socket at addr.
func Listen(addr netip.AddrPort, backlog int) (*Listener, error) {
	fam := family(addr.Addr())
	fd, err := unix.Socket(fam, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("net: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("net: setsockopt: %w", err)
	}
	if err := bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("net: listen: %w", err)
	}
	return &Listener{fd: fd}, nil
}

// Accept waits for and accepts one inbound connection.
func (l *Listener) Accept(t *ioruntime.Task) (*Stream, netip.AddrPort, error) {
	var storage sockaddrStorage
	addrlen := storage.maxLen()
	res, err := t.Do(func(r *uring.Ring, key ioruntime.IoKey) error {
		return r.PrepAccept(l.fd, storage.ptr(), &addrlen, 0, uint64(key))
	})
	if err != nil {
		return nil, netip.AddrPort{}, fmt.Errorf("net: accept: %w", err)
	}
	return &Stream{fd: int(res)}, decode(&storage), nil
}

// Close closes the listening socket synchronously; there is no task whose
// turn to suspend on, so this is an ordinary syscall rather than a ring op.
func (l *Listener) Close() error {
	return unix.Close(l.fd)
}

func socket(t *ioruntime.Task, domain, typ int) (int, error) {
	res, err := t.Do(func(r *uring.Ring, key ioruntime.IoKey) error {
		return r.PrepSocket(domain, typ, 0, uint64(key))
	})
	if err != nil {
		return 0, fmt.Errorf("net: socket: %w", err)
	}
	return int(res), nil
}

func bind(fd int, addr netip.AddrPort) error {
	if addr.Addr().Is4() {
		sa := &unix.SockaddrInet4{Port: int(addr.Port()), Addr: addr.Addr().As4()}
		return unix.Bind(fd, sa)
	}
	sa := &unix.SockaddrInet6{Port: int(addr.Port()), Addr: addr.Addr().As16()}
	return unix.Bind(fd, sa)
}
