//go:build linux

package uring

import (
	"errors"
	"fmt"
	"unsafe"
)

// ErrSQFull is returned by prep only if a forced submit could not free any
// space at all (a broker-level syscall failure); ordinary transient
// fullness is handled internally and never reaches the caller.
var ErrSQFull = errors.New("uring: submission queue full")

// prep allocates one submission queue slot, forcing a kernel submit to
// drain space and retrying when the queue is transiently full, per
// SPEC_FULL.md's "must not fail user-visibly on transient fullness"
// requirement — every Prep* method funnels through here.
func (r *Ring) prep() (*sqe, error) {
	for {
		r.sqLock.Lock()
		s := r.getSQE()
		r.sqLock.Unlock()
		if s != nil {
			return s, nil
		}
		if _, err := r.Submit(); err != nil {
			return nil, fmt.Errorf("%w: forced submit to drain: %v", ErrSQFull, err)
		}
	}
}

// PrepNop prepares a no-op SQE, used to ping the ring awake without any
// real I/O (e.g. an externally-triggered wakeup).
func (r *Ring) PrepNop(userData uint64) error {
	s, err := r.prep()
	if err != nil {
		return err
	}
	s.Opcode = uint8(OpNop)
	s.UserData = userData
	return nil
}

// PrepRead prepares a read of len(buf) bytes from fd at offset off.
func (r *Ring) PrepRead(fd int, buf []byte, off uint64, userData uint64) error {
	s, err := r.prep()
	if err != nil {
		return err
	}
	s.Opcode = uint8(OpRead)
	s.Fd = int32(fd)
	s.Off = off
	if len(buf) > 0 {
		s.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
	}
	s.Len = uint32(len(buf))
	s.UserData = userData
	return nil
}

// PrepWrite prepares a write of buf to fd at offset off.
func (r *Ring) PrepWrite(fd int, buf []byte, off uint64, userData uint64) error {
	s, err := r.prep()
	if err != nil {
		return err
	}
	s.Opcode = uint8(OpWrite)
	s.Fd = int32(fd)
	s.Off = off
	if len(buf) > 0 {
		s.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
	}
	s.Len = uint32(len(buf))
	s.UserData = userData
	return nil
}

// PrepAccept prepares an accept on the listening socket fd. addr/addrlen
// receive the peer address; both may be nil to discard it.
func (r *Ring) PrepAccept(fd int, addr unsafe.Pointer, addrlen *uint32, flags uint32, userData uint64) error {
	s, err := r.prep()
	if err != nil {
		return err
	}
	s.Opcode = uint8(OpAccept)
	s.Fd = int32(fd)
	s.Addr = uint64(uintptr(addr))
	if addrlen != nil {
		s.Off = uint64(uintptr(unsafe.Pointer(addrlen)))
	}
	s.OpFlags = flags
	s.UserData = userData
	return nil
}

// PrepConnect prepares a connect of fd to the address described by addr.
func (r *Ring) PrepConnect(fd int, addr unsafe.Pointer, addrlen uint32, userData uint64) error {
	s, err := r.prep()
	if err != nil {
		return err
	}
	s.Opcode = uint8(OpConnect)
	s.Fd = int32(fd)
	s.Addr = uint64(uintptr(addr))
	s.Off = uint64(addrlen)
	s.UserData = userData
	return nil
}

// PrepSendmsg prepares a sendmsg of msg to fd.
func (r *Ring) PrepSendmsg(fd int, msg unsafe.Pointer, flags uint32, userData uint64) error {
	s, err := r.prep()
	if err != nil {
		return err
	}
	s.Opcode = uint8(OpSendmsg)
	s.Fd = int32(fd)
	s.Addr = uint64(uintptr(msg))
	s.Len = 1
	s.OpFlags = flags
	s.UserData = userData
	return nil
}

// PrepRecvmsg prepares a recvmsg into msg from fd. recvmsg (rather than
// plain recv) is required so UDP operations can recover the sender address.
func (r *Ring) PrepRecvmsg(fd int, msg unsafe.Pointer, flags uint32, userData uint64) error {
	s, err := r.prep()
	if err != nil {
		return err
	}
	s.Opcode = uint8(OpRecvmsg)
	s.Fd = int32(fd)
	s.Addr = uint64(uintptr(msg))
	s.Len = 1
	s.OpFlags = flags
	s.UserData = userData
	return nil
}

// PrepClose prepares a close of fd.
func (r *Ring) PrepClose(fd int, userData uint64) error {
	s, err := r.prep()
	if err != nil {
		return err
	}
	s.Opcode = uint8(OpClose)
	s.Fd = int32(fd)
	s.UserData = userData
	return nil
}

// PrepShutdown prepares a shutdown(fd, how).
func (r *Ring) PrepShutdown(fd int, how uint32, userData uint64) error {
	s, err := r.prep()
	if err != nil {
		return err
	}
	s.Opcode = uint8(OpShutdown)
	s.Fd = int32(fd)
	s.Len = how
	s.UserData = userData
	return nil
}

// PrepSocket prepares a socket(domain, typ, protocol) call, returning the
// new fd as the CQE result.
func (r *Ring) PrepSocket(domain, typ, protocol int, userData uint64) error {
	s, err := r.prep()
	if err != nil {
		return err
	}
	s.Opcode = uint8(OpSocket)
	s.Fd = int32(domain)
	s.Off = uint64(typ)
	s.Len = uint32(protocol)
	s.UserData = userData
	return nil
}

// PrepOpenat prepares an openat(dirfd, path, flags, mode).
func (r *Ring) PrepOpenat(dirfd int, path *byte, flags uint32, mode uint32, userData uint64) error {
	s, err := r.prep()
	if err != nil {
		return err
	}
	s.Opcode = uint8(OpOpenat)
	s.Fd = int32(dirfd)
	s.Addr = uint64(uintptr(unsafe.Pointer(path)))
	s.Len = mode
	s.OpFlags = flags
	s.UserData = userData
	return nil
}

// PrepTimeout prepares a relative timeout, completing after ts elapses with
// -ETIME, or earlier with -ECANCELED if cancelled. count is the number of
// completions to wait for before the timeout is considered satisfied early;
// the runtime always uses 0 (wait the full duration).
func (r *Ring) PrepTimeout(ts *timespecArg, count uint32, userData uint64) error {
	s, err := r.prep()
	if err != nil {
		return err
	}
	s.Opcode = uint8(OpTimeout)
	s.Addr = uint64(uintptr(unsafe.Pointer(ts)))
	s.Len = 1
	s.Off = uint64(count)
	s.UserData = userData
	return nil
}

// timespecArg is an alias for the kernel timespec layout used by
// PrepTimeout. The alias itself is unexported; callers outside this package
// obtain one from NewTimespec.
type timespecArg = timespec

// NewTimespec builds a timespecArg from a duration split into seconds and
// nanoseconds, matching the kernel's __kernel_timespec layout.
func NewTimespec(sec, nsec int64) timespecArg {
	return timespecArg{Sec: sec, Nsec: nsec}
}

// PrepCancel prepares an IORING_OP_ASYNC_CANCEL targeting the SQE originally
// submitted with user data target. This is how the Ring Broker implements
// cancel-on-drop: submitted fire-and-forget, under the reserved key 0.
func (r *Ring) PrepCancel(target uint64, flags uint32, userData uint64) error {
	s, err := r.prep()
	if err != nil {
		return err
	}
	s.Opcode = uint8(OpCancel)
	s.Addr = target
	s.OpFlags = flags
	s.UserData = userData
	return nil
}
