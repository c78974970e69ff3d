//go:build linux

package uring

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// setup issues io_uring_setup, returning the ring fd and filling p with the
// kernel's resolved ring geometry and feature set.
func setup(entries uint32, p *params) (int, error) {
	r1, _, errno := unix.Syscall(sysIOURingSetup, uintptr(entries), uintptr(unsafe.Pointer(p)), 0)
	if errno != 0 {
		return 0, errno
	}
	return int(r1), nil
}

// enter issues io_uring_enter, submitting toSubmit SQEs and optionally
// blocking until minComplete CQEs are available.
func enter(fd int, toSubmit, minComplete, flags uint32) (int, error) {
	r1, _, errno := unix.Syscall6(sysIOURingEnter, uintptr(fd), uintptr(toSubmit), uintptr(minComplete), uintptr(flags), 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return int(r1), nil
}

// enterTimeout issues io_uring_enter with IORING_ENTER_EXT_ARG so the wait
// is bounded by the kernel itself rather than by userspace polling.
func enterTimeout(fd int, minComplete uint32, arg *getEventsArg) (int, error) {
	r1, _, errno := unix.Syscall6(
		sysIOURingEnter, uintptr(fd), 0, uintptr(minComplete),
		uintptr(enterGetEvents|enterExtArgFlag), uintptr(unsafe.Pointer(arg)), unsafe.Sizeof(*arg),
	)
	if errno != 0 {
		return 0, errno
	}
	return int(r1), nil
}

// enterExtArgFlag is IORING_ENTER_EXT_ARG, kept local to this file since the
// timeout path is the only caller.
const enterExtArgFlag uint32 = 1 << 3

// registerProbeOp issues io_uring_register(IORING_REGISTER_PROBE).
func registerProbeOp(fd int, p *probe) error {
	_, _, errno := unix.Syscall6(
		sysIOURingRegister, uintptr(fd), uintptr(registerProbe),
		uintptr(unsafe.Pointer(p)), uintptr(len(p.Ops)), 0, 0,
	)
	if errno != 0 {
		return errno
	}
	return nil
}

// mmapRing wraps unix.Mmap for ring regions.
func mmapRing(fd int, offset int64, length int) ([]byte, error) {
	return unix.Mmap(fd, offset, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
}

func munmapRing(b []byte) error {
	return unix.Munmap(b)
}
