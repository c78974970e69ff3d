// Package ioruntime is a single-threaded asynchronous I/O runtime built on
// Linux io_uring.
//
// # Architecture
//
// The runtime is built around five collaborating pieces:
//
//   - the Ring Broker ([internal/uring.Ring], wrapped by [Runtime]), which owns
//     the kernel submission/completion ring, mints [IoKey] values, and drains
//     completions;
//   - the I/O Future (unexported ioFuture), a per-operation state machine that
//     registers with the broker on first suspend and reports the kernel
//     result on the next;
//   - the Task Table ([Runtime]'s task map), which owns spawned [Task] handles
//     keyed by [TaskId] and the ready queue of woken task ids;
//   - the Join Registry (unexported joinRegistry), which lets one task await
//     another's result via [Handle];
//   - the Driver Loop ([Runtime.Run]), which drains ready tasks and blocks on
//     the broker when idle.
//
// # Execution model
//
// Go has neither stackful nor poll-driven futures, so tasks here are real
// goroutines. Exactly one task's code is ever runtime-visible-active at a
// time: a baton (a pair of rendezvous channels) is handed to one task
// goroutine, which runs until it either suspends on an I/O primitive or
// returns, then hands the baton back. See SPEC_FULL.md §2.1 for the full
// translation rationale.
//
// # Platform support
//
// The ring is Linux-only (io_uring); there is no readiness-based (epoll)
// fallback — that is a deliberate scope restriction, not an oversight.
//
// # Thread confinement
//
// Every handle this package hands out ([Task], [Handle], [IoKey], [TaskId])
// is confined to the runtime that produced it and must only be used from a
// goroutine currently holding that runtime's baton. This is defended at
// runtime, not just documented: [Task.resolve], [Task.Close], [Handle.Join],
// [Handle.Close], and [Spawn] each compare the calling [*Task]'s identity
// against the [Runtime]'s current baton holder and panic
// (ErrRuntimeNotOwned, or ErrSpawnOutsideTurn for Spawn) on a mismatch — a
// *Task is only ever handed to the one goroutine executing its turn, so
// this is equivalent to checking goroutine identity directly without
// needing to parse one out of a stack trace.
package ioruntime
