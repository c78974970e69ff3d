package ioruntime

// joinSlot holds one task's eventual result plus, if another task is
// waiting on it, which one to wake on delivery. SPEC_FULL.md §4.4 allows at
// most one waiter per task: a second concurrent Join on the same Handle is
// a programmer error the registry does not attempt to multiplex.
type joinSlot struct {
	done      bool
	result    any
	err       error
	waiter    TaskId
	hasWaiter bool
}

// joinRegistry is the Join Registry: every spawned task gets a slot at
// spawn time, filled in once by its goroutine's completion and consumed at
// most once by a Join.
type joinRegistry struct {
	slots map[TaskId]*joinSlot
}

func newJoinRegistry() *joinRegistry {
	return &joinRegistry{slots: make(map[TaskId]*joinSlot)}
}

func (j *joinRegistry) register(id TaskId) {
	j.slots[id] = &joinSlot{}
}

// setWaiter records that waiter wants to be woken when id's slot is filled.
func (j *joinRegistry) setWaiter(id, waiter TaskId) {
	if s := j.slots[id]; s != nil {
		s.waiter = waiter
		s.hasWaiter = true
	}
}

// deliver fills id's slot and reports the waiter to wake, if any.
func (j *joinRegistry) deliver(id TaskId, result any, err error) (waiter TaskId, hasWaiter bool) {
	s, ok := j.slots[id]
	if !ok {
		return 0, false
	}
	s.done = true
	s.result = result
	s.err = err
	return s.waiter, s.hasWaiter
}

// snapshot returns a copy of id's slot so callers can inspect done/result/err
// without holding a pointer into registry-owned state.
func (j *joinRegistry) snapshot(id TaskId) (joinSlot, bool) {
	s, ok := j.slots[id]
	if !ok {
		return joinSlot{}, false
	}
	return *s, true
}

// close discards id's slot. Called once a Join or Close has consumed it.
func (j *joinRegistry) close(id TaskId) {
	delete(j.slots, id)
}

// Handle is a type-erased-internally, typed-externally reference to a
// spawned task's eventual result. The erasure happens once, at the single
// downcast site in Join; everywhere else a Handle[T] behaves as if the
// runtime had always known T.
type Handle[T any] struct {
	id TaskId
	rt *Runtime
}

// ID returns the handle's task identity.
func (h *Handle[T]) ID() TaskId { return h.id }

// Join suspends the calling task, t, until h's task finishes, then returns
// its result. Join may only be called once per Handle; calling it again
// after it has returned panics, matching the spec's "single waiter, single
// consumption" Join Registry contract.
func (h *Handle[T]) Join(t *Task) (T, error) {
	if h.rt.current != t.id {
		panic(ErrRuntimeNotOwned)
	}
	var zero T
	for {
		slot, ok := h.rt.joins.snapshot(h.id)
		if !ok {
			panic(ErrJoinSlotMissing)
		}
		if slot.done {
			h.rt.joins.close(h.id)
			delete(h.rt.tasks, h.id)
			if slot.err != nil {
				return zero, slot.err
			}
			v, _ := slot.result.(T)
			return v, nil
		}
		h.rt.joins.setWaiter(h.id, t.id)
		t.suspend()
		select {
		case <-t.ctx.Done():
			// Force-woken (teardown or a Close on our own handle) rather
			// than delivered: h's task may never finish, so give up on it
			// instead of re-parking forever.
			return zero, t.ctx.Err()
		default:
		}
	}
}

// Close cancels h's task (via context) and, if it is currently suspended on
// an in-flight kernel operation, submits a fire-and-forget AsyncCancel for
// that operation so the kernel does not keep it running unsupervised. Close
// does not wait for the task to actually finish; pair it with Join if the
// caller needs to observe the resulting error (which will be
// context.Canceled or the cancelled syscall's ECANCELED).
func (h *Handle[T]) Close(t *Task) error {
	if h.rt.current != t.id {
		panic(ErrRuntimeNotOwned)
	}
	return h.rt.closeTask(h.id)
}
