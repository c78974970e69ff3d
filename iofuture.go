package ioruntime

import "github.com/parastrom/ioruntime/internal/uring"

// ioFuture is the per-operation state machine SPEC_FULL.md §4.2 describes:
// NotSubmitted, Submitted under an IoKey, then Done once the broker reports
// a completion for that key.
//
// Because every task is a real goroutine the Driver Loop wakes exactly once
// per completion (never polled speculatively), resolve collapses the
// NotSubmitted->Submitted->Done walk into a single suspend rather than a
// poll loop revisited on every Driver Loop tick.
type ioFuture struct {
	state ioState
	key   IoKey
}

// resolve is the sole entry point net and fs operations use to turn a
// single kernel op into a blocking (from the task's point of view) Go call:
// prep is handed a freshly minted IoKey to stamp into the SQE's user-data
// field, the task suspends, and resolve returns the raw CQE result once the
// broker observes it.
func (t *Task) resolve(prep func(key IoKey) error) (int32, error) {
	if t.rt.current != t.id {
		panic(ErrRuntimeNotOwned)
	}
	rt := t.rt
	f := &ioFuture{state: NotSubmitted}

	key := rt.keys.mint()
	if err := prep(key); err != nil {
		return 0, err
	}
	f.state = Submitted
	f.key = key
	rt.pending[key] = t.id
	t.pendingKey = &key

	if _, err := rt.ring.Submit(); err != nil {
		delete(rt.pending, key)
		t.pendingKey = nil
		return 0, err
	}

	t.suspend()
	t.pendingKey = nil

	if res, ok := rt.results[key]; ok {
		delete(rt.results, key)
		f.state = Done
		return res, rawToError(res)
	}

	select {
	case <-t.ctx.Done():
		return 0, t.ctx.Err()
	default:
		// Woken for a reason other than this key's completion, with no
		// substitute result recorded and no cancellation: a Driver Loop
		// invariant was violated.
		panic(ErrDonePoll)
	}
}

// Do submits one raw kernel operation and suspends the calling task until
// it completes, returning the raw CQE result. prep is handed the runtime's
// ring and a freshly minted IoKey to stamp into the SQE's user-data field.
//
// This is the seam net and fs operations are built on: they live outside
// this package (so this package stays free of any particular protocol's
// concerns) but still need to drive the same I/O Future state machine every
// other operation does, so it is exported rather than kept private to this
// package's own built-in operations.
func (t *Task) Do(prep func(r *uring.Ring, key IoKey) error) (int32, error) {
	return t.resolve(func(key IoKey) error {
		return prep(t.rt.ring, key)
	})
}

// Close submits a fire-and-forget close of fd under the reserved key 0,
// matching the runtime's close-on-drop convention: nobody is waiting on the
// result, so it never touches the pending/results tables.
func (t *Task) Close(fd int) {
	if t.rt.current != t.id {
		panic(ErrRuntimeNotOwned)
	}
	t.rt.ring.PrepClose(fd, 0)
	t.rt.ring.Submit()
}

