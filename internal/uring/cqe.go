//go:build linux

package uring

import "sync/atomic"

// CQE is the caller-visible completion: a user-data tag correlating it to
// the submitted SQE, and a raw kernel result following the raw-result
// convention (>=0 success payload, <0 negated errno).
type CQE struct {
	UserData uint64
	Res      int32
	Flags    uint32
}

// PeekCQE returns the next ready completion without advancing the CQ head,
// or ok=false if none is ready. It performs no syscall.
func (r *Ring) PeekCQE() (c CQE, ok bool) {
	head := atomic.LoadUint32(r.cqHead)
	tail := atomic.LoadUint32(r.cqTail)
	if head == tail {
		return CQE{}, false
	}
	e := &r.cqes[head&r.cqRingMask]
	return CQE{UserData: e.UserData, Res: e.Res, Flags: e.Flags}, true
}

// SeenCQE advances the CQ head past one completion, returning its slot to
// the kernel. Must be called exactly once per completion consumed.
func (r *Ring) SeenCQE() {
	atomic.AddUint32(r.cqHead, 1)
}

// DrainCQEs calls fn for every currently-ready completion, advancing the CQ
// head once at the end. This is the primary interface the Ring Broker uses
// after a SubmitAndWait: drain everything the kernel handed back, then
// resolve each IoKey's future in turn.
func (r *Ring) DrainCQEs(fn func(c CQE)) int {
	head := atomic.LoadUint32(r.cqHead)
	tail := atomic.LoadUint32(r.cqTail)
	n := 0
	for ; head != tail; head++ {
		e := &r.cqes[head&r.cqRingMask]
		fn(CQE{UserData: e.UserData, Res: e.Res, Flags: e.Flags})
		n++
	}
	if n > 0 {
		atomic.StoreUint32(r.cqHead, head)
	}
	return n
}

// Overflow reports the kernel's CQ overflow counter. The runtime requires
// IORING_FEAT_NODROP precisely so this should never advance in practice;
// a non-zero reading here indicates a ring-size or draining bug.
func (r *Ring) Overflow() uint32 {
	return atomic.LoadUint32(r.cqOverflow)
}

// CQReady reports how many completions are waiting to be drained.
func (r *Ring) CQReady() uint32 {
	return atomic.LoadUint32(r.cqTail) - atomic.LoadUint32(r.cqHead)
}
