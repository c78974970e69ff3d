package ioruntime

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/parastrom/ioruntime/internal/uring"
)

// taskEntry is the Task Table's bookkeeping for one spawned task: its Task
// handle plus the rendezvous channels the baton protocol hands back and
// forth between the Driver Loop and the task's goroutine.
type taskEntry struct {
	task     *Task
	resumeCh chan struct{}
	yieldCh  chan struct{}
	done     bool
}

// Runtime is a single-threaded, single-goroutine-at-a-time async I/O
// runtime. It owns one kernel io_uring instance (the Ring Broker), the
// Task Table, and the Join Registry, and drives all three from Run.
//
// A Runtime must not be used from more than one OS thread concurrently
// beyond what the baton protocol already serializes; in particular, Run
// must only be called once.
type Runtime struct {
	ring   *uring.Ring
	probe  *uring.Probe
	logger *Logger
	opts   *runtimeOptions

	keys *keyMinter
	ids  *taskIDMinter

	tasks map[TaskId]*taskEntry
	ready []TaskId // LIFO: most recently woken task runs next

	pending map[IoKey]TaskId // in-flight submissions awaiting completion
	results map[IoKey]int32  // completions observed but not yet consumed

	joins *joinRegistry

	state   runState
	current TaskId
}

// New constructs a Runtime: it creates the kernel ring, requires
// IORING_FEAT_NODROP (without it, completions can be silently dropped under
// CQ overflow, which this design has no recovery path for), and probes for
// the fixed opcode set SPEC_FULL.md §4.1 requires.
func New(opts ...Option) (*Runtime, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	ring, err := uring.New(cfg.ringSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRingInit, err)
	}

	if !ring.HasNoDrop() {
		ring.Close()
		return nil, &UnsupportedFeatureError{Feature: "IORING_FEAT_NODROP"}
	}

	p, err := probeWithTimeout(ring, cfg.probeTimeout)
	if err != nil {
		ring.Close()
		return nil, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	if missing, ok := p.CheckRequired(); !ok {
		ring.Close()
		return nil, &UnsupportedOpcodeError{Opcode: missing}
	}

	rt := &Runtime{
		ring:    ring,
		probe:   p,
		logger:  cfg.logger,
		opts:    cfg,
		keys:    newKeyMinter(),
		ids:     newTaskIDMinter(),
		tasks:   make(map[TaskId]*taskEntry),
		pending: make(map[IoKey]TaskId),
		results: make(map[IoKey]int32),
		joins:   newJoinRegistry(),
	}
	rt.logger.logRingInit()
	return rt, nil
}

// probeWithTimeout runs ring.Probe() but bounds it by timeout: the
// IORING_REGISTER_PROBE syscall itself is not expected to block, but New
// should not hang forever against a misbehaving kernel. This is what makes
// WithProbeTimeout's documented default actually take effect.
func probeWithTimeout(ring *uring.Ring, timeout time.Duration) (*uring.Probe, error) {
	type result struct {
		p   *uring.Probe
		err error
	}
	ch := make(chan result, 1)
	go func() {
		p, err := ring.Probe()
		ch <- result{p, err}
	}()
	select {
	case r := <-ch:
		return r.p, r.err
	case <-time.After(timeout):
		return nil, fmt.Errorf("probe did not return within %s", timeout)
	}
}

// SupportedOpcodes reports the runtime-facing names of every required
// opcode the probe confirmed at construction time.
func (rt *Runtime) SupportedOpcodes() []string {
	names := make([]string, 0, len(requiredOpsOrder))
	for _, op := range requiredOpsOrder {
		if rt.probe.Supports(op) {
			names = append(names, uring.OpName(op))
		}
	}
	return names
}

// requiredOpsOrder gives SupportedOpcodes a stable iteration order; the
// underlying probe check in internal/uring ranges a map and does not need
// one, but a user-facing listing should not reshuffle between calls.
var requiredOpsOrder = []uring.Op{
	uring.OpNop, uring.OpRead, uring.OpWrite, uring.OpClose,
	uring.OpAccept, uring.OpConnect, uring.OpSocket,
	uring.OpSendmsg, uring.OpRecvmsg, uring.OpShutdown,
	uring.OpOpenat, uring.OpTimeout, uring.OpCancel,
}

// Run starts root as the root task and drives the Driver Loop until root
// has finished, then tears down every task still alive (cancelling its
// in-flight operation, if any) and returns root's result.
//
// Run may only be called once per Runtime.
func (rt *Runtime) Run(root func(*Task) (any, error)) (any, error) {
	if rt.state != runAwake {
		panic("ioruntime: Run called more than once")
	}
	rt.state = runRunning
	rt.logger.logRunStart()
	defer rt.logger.logRunStop()

	rt.spawn(RootTaskId, context.Background(), root)
	rt.driverLoop()

	slot, ok := rt.joins.snapshot(RootTaskId)
	rt.joins.close(RootTaskId)
	rt.teardown()
	rt.state = runTerminated

	if !ok {
		return nil, ErrJoinSlotMissing
	}
	return slot.result, slot.err
}

// spawn registers a new task under id, wired to parentCtx, and pushes it
// onto the ready queue. It is used for both the root task (parentCtx =
// context.Background()) and Spawn's children (parentCtx = the parent's own
// context, so cancelling a parent cancels its descendants).
func (rt *Runtime) spawn(id TaskId, parentCtx context.Context, fn func(*Task) (any, error)) {
	ctx, cancel := context.WithCancel(parentCtx)
	entry := &taskEntry{
		resumeCh: make(chan struct{}),
		yieldCh:  make(chan struct{}),
	}
	t := &Task{id: id, rt: rt, ctx: ctx, cancel: cancel}
	entry.task = t
	rt.tasks[id] = entry
	rt.joins.register(id)
	rt.logger.logTaskSpawned(id)

	go func() {
		<-entry.resumeCh
		result, err := rt.runTaskBody(t, fn)
		waiter, hasWaiter := rt.joins.deliver(id, result, err)
		entry.done = true
		if hasWaiter {
			rt.ready = append(rt.ready, waiter)
		}
		entry.yieldCh <- struct{}{}
	}()

	rt.ready = append(rt.ready, id)
}

// runTaskBody invokes fn, recovering any panic as a TaskPanicError so one
// task's bug is delivered as that task's join error rather than crashing
// the whole runtime. A panic inside the Driver Loop itself (a broker-level
// bug) is not caught here and does crash the process — only task bodies get
// this safety net. A panic whose value is one of the runtime-misuse
// sentinels (ErrRuntimeNotOwned, ErrSpawnOutsideTurn, ErrDonePoll,
// ErrJoinSlotMissing) is recorded the same way, then re-raised out of Run by
// driverLoop.
func (rt *Runtime) runTaskBody(t *Task, fn func(*Task) (any, error)) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TaskPanicError{Task: t.id, Value: r}
			rt.logger.logTaskPanic(t.id, err)
		}
	}()
	return fn(t)
}

// driverLoop is the Driver Loop: drain every ready task to completion or
// suspension, and when nothing is ready but operations remain in flight,
// block in the broker until at least one completes. It returns as soon as
// the root task has finished; any other task still alive is left to
// teardown.
func (rt *Runtime) driverLoop() {
	for {
		for len(rt.ready) > 0 {
			n := len(rt.ready) - 1
			id := rt.ready[n]
			rt.ready = rt.ready[:n]

			entry, ok := rt.tasks[id]
			if !ok {
				continue
			}
			rt.current = id
			entry.resumeCh <- struct{}{}
			<-entry.yieldCh
			if entry.done {
				delete(rt.tasks, id)
				if slot, ok := rt.joins.snapshot(id); ok {
					if pe, ok := slot.err.(*TaskPanicError); ok {
						switch pe.Value {
						case ErrRuntimeNotOwned, ErrSpawnOutsideTurn, ErrDonePoll, ErrJoinSlotMissing:
							panic(pe.Value)
						}
					}
				}
				if id == RootTaskId {
					return
				}
			}
		}
		if len(rt.pending) == 0 {
			return
		}
		rt.waitForIO()
	}
}

// waitForIO blocks in the Ring Broker until at least one completion is
// available, then drains every ready completion, marking each one's waiting
// task ready.
func (rt *Runtime) waitForIO() {
	if _, err := rt.ring.SubmitAndWait(1); err != nil {
		// A broker-level syscall failure is not recoverable per-task; it
		// indicates the ring itself is broken.
		panic(fmt.Errorf("ioruntime: wait for completions: %w", err))
	}
	rt.ring.DrainCQEs(func(c uring.CQE) {
		key := IoKey(c.UserData)
		if key == 0 {
			// Reserved fire-and-forget tag: cancellation acks and other
			// operations nobody is waiting on.
			return
		}
		id, ok := rt.pending[key]
		if !ok {
			// Already force-cancelled locally; the late real completion is
			// discarded.
			return
		}
		delete(rt.pending, key)
		rt.results[key] = c.Res
		rt.ready = append(rt.ready, id)
	})
}

// closeTask implements Handle.Close: cancel the task's context and force it
// to observe that cancellation on its very next baton grant, regardless of
// what it is currently suspended on. If it is parked in resolve on an
// in-flight kernel operation, the operation itself is cancelled and a
// synthetic ECANCELED result is substituted so resolve does not wait for the
// kernel's own cancellation completion. If it is parked anywhere else (e.g.
// Handle.Join, which has no pendingKey to cancel), it is simply re-queued:
// the next grant unblocks its suspend() call, and the caller is responsible
// for re-checking ctx.Done() once woken (join.go's Join loop does this).
func (rt *Runtime) closeTask(id TaskId) error {
	entry, ok := rt.tasks[id]
	if !ok {
		return nil
	}
	entry.task.cancel()

	if key := entry.task.pendingKey; key != nil {
		if _, stillPending := rt.pending[*key]; stillPending {
			delete(rt.pending, *key)
			rt.logger.logCancel(id, *key)
			rt.ring.PrepCancel(uint64(*key), 0, 0)
			rt.ring.Submit()
			rt.results[*key] = -int32(syscall.ECANCELED)
			rt.ready = append(rt.ready, id)
		}
		return nil
	}
	rt.ready = append(rt.ready, id)
	return nil
}

// teardown tears down every remaining task before the ring itself is
// closed: children must stop referencing the old ring's fd before it goes
// away, so each one is cancelled, granted the baton one final time so its
// suspended primitive observes the cancellation and unwinds through its
// defers, and waited on to actually exit. Only once none remain does the
// ring close. See SPEC_FULL.md §9 for why this ordering is load-bearing.
//
// A task whose body ignores ctx and keeps re-suspending (e.g. on a fresh I/O
// op) gets re-visited on the next pass rather than abandoned, since a single
// grant only unblocks whatever it was suspended on at the time.
func (rt *Runtime) teardown() {
	rt.logger.logRingReset()
	for len(rt.tasks) > 0 {
		for id, entry := range rt.tasks {
			entry.task.cancel()
			if key := entry.task.pendingKey; key != nil {
				if _, stillPending := rt.pending[*key]; stillPending {
					delete(rt.pending, *key)
					rt.logger.logCancel(id, *key)
					rt.ring.PrepCancel(uint64(*key), 0, 0)
					rt.ring.Submit()
					rt.results[*key] = -int32(syscall.ECANCELED)
				}
			}
			rt.current = id
			entry.resumeCh <- struct{}{}
			<-entry.yieldCh
			if entry.done {
				delete(rt.tasks, id)
			}
		}
	}
	rt.ring.Close()
}
