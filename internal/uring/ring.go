//go:build linux

package uring

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Ring owns one io_uring instance: the mmap'd submission/completion regions
// and the kernel fd. It exposes exactly the primitives the Ring Broker
// needs — SQE preparation, submission, and completion draining — and none of
// the fixed-buffer, SQPOLL, or multishot machinery the runtime's required
// operation set does not use.
type Ring struct {
	fd int

	sqMmap  []byte
	cqMmap  []byte
	sqeMmap []byte

	sqHead        *uint32
	sqTail        *uint32
	sqRingMask    uint32
	sqRingEntries uint32
	sqArray       []uint32
	sqDropped     *uint32

	cqHead        *uint32
	cqTail        *uint32
	cqRingMask    uint32
	cqRingEntries uint32
	cqOverflow    *uint32
	cqes          []cqe

	sqes []sqe

	sqLock    sync.Mutex
	sqPending uint32

	features uint32
	closed   atomic.Bool
}

// New creates a Ring with the given submission queue depth. entries is
// rounded up to a power of two by the kernel.
func New(entries uint32) (*Ring, error) {
	var p params
	fd, err := setup(entries, &p)
	if err != nil {
		return nil, fmt.Errorf("uring: setup: %w", err)
	}
	r := &Ring{fd: fd, features: p.Features}
	if err := r.mapRings(&p); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return r, nil
}

func (r *Ring) mapRings(p *params) error {
	sqRingSize := int(p.SqOff.Array) + int(p.SqEntries)*int(unsafe.Sizeof(uint32(0)))
	cqRingSize := int(p.CqOff.Cqes) + int(p.CqEntries)*int(cqeSize)

	single := r.features&featSingleMmap != 0
	if single && cqRingSize > sqRingSize {
		sqRingSize = cqRingSize
	}

	sq, err := mmapRing(r.fd, int64(offSQRing), sqRingSize)
	if err != nil {
		return fmt.Errorf("uring: mmap sq ring: %w", err)
	}
	r.sqMmap = sq

	var cq []byte
	if single {
		cq = sq
	} else {
		cq, err = mmapRing(r.fd, int64(offCQRing), cqRingSize)
		if err != nil {
			munmapRing(sq)
			return fmt.Errorf("uring: mmap cq ring: %w", err)
		}
	}
	r.cqMmap = cq

	sqes, err := mmapRing(r.fd, int64(offSQEs), int(p.SqEntries)*int(sqeSize))
	if err != nil {
		munmapRing(sq)
		if !single {
			munmapRing(cq)
		}
		return fmt.Errorf("uring: mmap sqes: %w", err)
	}
	r.sqeMmap = sqes

	r.sqHead = (*uint32)(unsafe.Pointer(&sq[p.SqOff.Head]))
	r.sqTail = (*uint32)(unsafe.Pointer(&sq[p.SqOff.Tail]))
	r.sqRingMask = *(*uint32)(unsafe.Pointer(&sq[p.SqOff.RingMask]))
	r.sqRingEntries = *(*uint32)(unsafe.Pointer(&sq[p.SqOff.RingEntries]))
	r.sqDropped = (*uint32)(unsafe.Pointer(&sq[p.SqOff.Dropped]))
	r.sqArray = unsafe.Slice((*uint32)(unsafe.Pointer(&sq[p.SqOff.Array])), r.sqRingEntries)

	r.cqHead = (*uint32)(unsafe.Pointer(&cq[p.CqOff.Head]))
	r.cqTail = (*uint32)(unsafe.Pointer(&cq[p.CqOff.Tail]))
	r.cqRingMask = *(*uint32)(unsafe.Pointer(&cq[p.CqOff.RingMask]))
	r.cqRingEntries = *(*uint32)(unsafe.Pointer(&cq[p.CqOff.RingEntries]))
	r.cqOverflow = (*uint32)(unsafe.Pointer(&cq[p.CqOff.Overflow]))
	r.cqes = unsafe.Slice((*cqe)(unsafe.Pointer(&cq[p.CqOff.Cqes])), r.cqRingEntries)

	r.sqes = unsafe.Slice((*sqe)(unsafe.Pointer(&sqes[0])), p.SqEntries)

	return nil
}

// Close tears down the mmap'd regions and closes the ring fd. It is safe to
// call more than once.
func (r *Ring) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	munmapRing(r.sqeMmap)
	if len(r.cqMmap) > 0 && &r.cqMmap[0] != &r.sqMmap[0] {
		munmapRing(r.cqMmap)
	}
	munmapRing(r.sqMmap)
	return unix.Close(r.fd)
}

// Fd returns the ring's kernel file descriptor.
func (r *Ring) Fd() int { return r.fd }

// Features returns the kernel-reported IORING_FEAT_* bitmask.
func (r *Ring) Features() uint32 { return r.features }

// HasFeature reports whether every bit in want is set in Features.
func (r *Ring) HasFeature(want uint32) bool { return r.features&want == want }

// HasNoDrop reports IORING_FEAT_NODROP support, a hard requirement: without
// it, completions can be silently dropped under CQ overflow.
func (r *Ring) HasNoDrop() bool { return r.HasFeature(featNoDrop) }

// HasExtArg reports IORING_FEAT_EXT_ARG support, used for timeout-bounded
// waits in a single syscall.
func (r *Ring) HasExtArg() bool { return r.HasFeature(featExtArg) }

// getSQE allocates one submission queue slot, or returns nil if every slot
// between the kernel's consumption cursor and our not-yet-flushed tail is
// already spoken for. Caller must hold sqLock.
func (r *Ring) getSQE() *sqe {
	head := atomic.LoadUint32(r.sqHead)
	tail := atomic.LoadUint32(r.sqTail)
	if tail+r.sqPending-head >= r.sqRingEntries {
		return nil
	}
	idx := (tail + r.sqPending) & r.sqRingMask
	r.sqPending++
	s := &r.sqes[idx]
	*s = sqe{}
	r.sqArray[idx] = idx
	return s
}

// Submit flushes any prepared-but-unsubmitted SQEs to the kernel without
// waiting for completions.
func (r *Ring) Submit() (int, error) {
	return r.SubmitAndWait(0)
}

// SubmitAndWait flushes prepared SQEs and blocks until at least waitNr
// completions are available.
func (r *Ring) SubmitAndWait(waitNr uint32) (int, error) {
	r.sqLock.Lock()
	toSubmit := r.sqPending
	if toSubmit > 0 {
		tail := atomic.LoadUint32(r.sqTail)
		atomic.StoreUint32(r.sqTail, tail+toSubmit)
		r.sqPending = 0
	}
	r.sqLock.Unlock()

	var flags uint32
	if waitNr > 0 {
		flags |= enterGetEvents
	}
	n, err := enter(r.fd, toSubmit, waitNr, flags)
	if err != nil {
		return n, fmt.Errorf("uring: enter: %w", err)
	}
	return n, nil
}

// SubmitAndWaitTimeout is like SubmitAndWait but bounds the wait by timeout
// when the kernel supports IORING_FEAT_EXT_ARG; otherwise it degrades to an
// untimed wait for waitNr completions, relying on the caller's own
// cancellation op (e.g. a linked timeout SQE) to bound the wait instead.
func (r *Ring) SubmitAndWaitTimeout(waitNr uint32, nsec int64) (int, error) {
	r.sqLock.Lock()
	toSubmit := r.sqPending
	if toSubmit > 0 {
		tail := atomic.LoadUint32(r.sqTail)
		atomic.StoreUint32(r.sqTail, tail+toSubmit)
		r.sqPending = 0
	}
	r.sqLock.Unlock()

	if !r.HasExtArg() {
		return enter(r.fd, toSubmit, waitNr, enterGetEvents)
	}
	if toSubmit > 0 {
		// enterTimeout submits nothing, so flush the prepared SQEs first.
		if _, err := enter(r.fd, toSubmit, 0, 0); err != nil {
			return 0, fmt.Errorf("uring: enter: %w", err)
		}
	}
	ts := timespec{Sec: nsec / 1e9, Nsec: nsec % 1e9}
	arg := getEventsArg{Ts: uint64(uintptr(unsafe.Pointer(&ts)))}
	n, err := enterTimeout(r.fd, waitNr, &arg)
	runtime.KeepAlive(&ts)
	if err != nil {
		return n, fmt.Errorf("uring: enter (timeout): %w", err)
	}
	return n, nil
}
