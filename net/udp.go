//go:build linux

package net

import (
	"fmt"
	"net/netip"
	"unsafe"

	"github.com/parastrom/ioruntime"
	"github.com/parastrom/ioruntime/internal/uring"
	"golang.org/x/sys/unix"
)

// Packet is an async UDP socket, grounded on the original net::udp::UdpSocket.
// recvmsg/sendmsg (rather than plain recv/send) are used throughout so the
// peer address is always recoverable, matching recv_from/send_to there.
type Packet struct {
	fd int
}

// ListenPacket creates and binds a UDP socket at addr.
func ListenPacket(addr netip.AddrPort) (*Packet, error) {
	fd, err := unix.Socket(family(addr.Addr()), unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, fmt.Errorf("net: socket: %w", err)
	}
	if err := bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &Packet{fd: fd}, nil
}

// Connect fixes the socket's default peer, so subsequent Send/Recv calls
// need not repeat the address.
func (p *Packet) Connect(t *ioruntime.Task, addr netip.AddrPort) error {
	var storage sockaddrStorage
	ptr, size := encode(&storage, addr)
	_, err := t.Do(func(r *uring.Ring, key ioruntime.IoKey) error {
		return r.PrepConnect(p.fd, ptr, size, uint64(key))
	})
	return err
}

// Recv reads one datagram into buf from the connected peer.
func (p *Packet) Recv(t *ioruntime.Task, buf []byte) (int, error) {
	n, _, err := p.RecvFrom(t, buf)
	return n, err
}

// RecvFrom reads one datagram into buf, reporting the sender's address.
func (p *Packet) RecvFrom(t *ioruntime.Task, buf []byte) (int, netip.AddrPort, error) {
	var storage sockaddrStorage
	iov := unix.Iovec{Base: bufPtr(buf), Len: uint64(len(buf))}
	msg := unix.Msghdr{
		Name:    (*byte)(storage.ptr()),
		Namelen: storage.maxLen(),
		Iov:     &iov,
		Iovlen:  1,
	}
	res, err := t.Do(func(r *uring.Ring, key ioruntime.IoKey) error {
		return r.PrepRecvmsg(p.fd, unsafe.Pointer(&msg), 0, uint64(key))
	})
	if err != nil {
		return 0, netip.AddrPort{}, fmt.Errorf("net: recvmsg: %w", err)
	}
	return int(res), decode(&storage), nil
}

// Send writes buf to the connected peer.
func (p *Packet) Send(t *ioruntime.Task, buf []byte) (int, error) {
	iov := unix.Iovec{Base: bufPtr(buf), Len: uint64(len(buf))}
	msg := unix.Msghdr{Iov: &iov, Iovlen: 1}
	res, err := t.Do(func(r *uring.Ring, key ioruntime.IoKey) error {
		return r.PrepSendmsg(p.fd, unsafe.Pointer(&msg), 0, uint64(key))
	})
	if err != nil {
		return 0, fmt.Errorf("net: sendmsg: %w", err)
	}
	return int(res), nil
}

// SendTo writes buf to addr, overriding any connected peer for this call.
func (p *Packet) SendTo(t *ioruntime.Task, buf []byte, addr netip.AddrPort) (int, error) {
	var storage sockaddrStorage
	ptr, size := encode(&storage, addr)
	iov := unix.Iovec{Base: bufPtr(buf), Len: uint64(len(buf))}
	msg := unix.Msghdr{
		Name:    (*byte)(ptr),
		Namelen: size,
		Iov:     &iov,
		Iovlen:  1,
	}
	res, err := t.Do(func(r *uring.Ring, key ioruntime.IoKey) error {
		return r.PrepSendmsg(p.fd, unsafe.Pointer(&msg), 0, uint64(key))
	})
	if err != nil {
		return 0, fmt.Errorf("net: sendmsg: %w", err)
	}
	return int(res), nil
}

// Close submits a fire-and-forget close of the underlying fd.
func (p *Packet) Close(t *ioruntime.Task) {
	t.Close(p.fd)
}

func bufPtr(buf []byte) *byte {
	if len(buf) == 0 {
		return nil
	}
	return &buf[0]
}
