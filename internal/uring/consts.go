//go:build linux

// Package uring provides the low-level io_uring submission/completion ring
// mechanics the Ring Broker is built on: syscall wrappers, the mmap'd ring
// layout, SQE preparation for the runtime's required opcode set, and CQE
// draining.
//
// This package knows nothing about tasks, join handles, or the baton
// protocol — it is pure kernel-ABI plumbing, intentionally kept separate so
// ioruntime.Runtime can own scheduling while this package owns the ring.
package uring

// Syscall numbers for io_uring (x86_64).
const (
	sysIOURingSetup    = 425
	sysIOURingEnter    = 426
	sysIOURingRegister = 427
)

// Op is an io_uring opcode (IORING_OP_*).
type Op uint8

// The opcodes the runtime's required operation set and its net/fs
// collaborators issue, plus Readv, Writev and Fsync, which are named here
// but not issued by any Prep* method. The kernel's numbering is fixed ABI,
// so gaps between these values are intentional — OpLast lets probing
// address entries by their real kernel-assigned number.
const (
	OpNop      Op = 0
	OpReadv    Op = 1
	OpWritev   Op = 2
	OpFsync    Op = 3
	OpSendmsg  Op = 9
	OpRecvmsg  Op = 10
	OpTimeout  Op = 11
	OpAccept   Op = 13
	OpCancel   Op = 14
	OpConnect  Op = 16
	OpOpenat   Op = 18
	OpClose    Op = 19
	OpRead     Op = 22
	OpWrite    Op = 23
	OpShutdown Op = 34
	OpSocket   Op = 45

	// OpLast bounds the probe's Ops array; it must be >= the highest opcode
	// the kernel might report, so it is sized generously rather than to the
	// subset above.
	OpLast Op = 48
)

// SQE flags (IOSQE_*). Only ASYNC is defined (it forces io-wq execution for
// ops the fast-path poller cannot otherwise make non-blocking, e.g. plain
// files); no Prep* method sets it.
const (
	sqeAsync uint8 = 1 << 4
)

// Feature flags (IORING_FEAT_*).
const (
	featSingleMmap uint32 = 1 << 0
	featNoDrop     uint32 = 1 << 1
	featExtArg     uint32 = 1 << 8
)

// Enter flags (IORING_ENTER_*).
const (
	enterGetEvents uint32 = 1 << 0
)

// Register opcodes (IORING_REGISTER_*).
const (
	registerProbe uint32 = 8
)

// Async-cancel flags (IORING_ASYNC_CANCEL_*).
const (
	// AsyncCancelAll is unused by the runtime (cancellation always targets
	// exactly one key) but kept named for clarity at call sites that pass 0.
	AsyncCancelAll uint32 = 1 << 0
)

// mmap offsets for the ring regions.
const (
	offSQRing uint64 = 0
	offCQRing uint64 = 0x8000000
	offSQEs   uint64 = 0x10000000
)

// opSupported marks a ProbeOp as supported in its Flags field.
const opSupported uint16 = 1 << 0
