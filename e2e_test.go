package ioruntime

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/joeycumines/stumpy"
	"github.com/parastrom/ioruntime/internal/uring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestE2ESpawnedTaskJoinedAfterSleep is SPEC_FULL.md §8 scenario 2: a child
// sleeps 10ms (a real ring timeout, not a host timer) before returning a
// value; root joins it and observes the result.
func TestE2ESpawnedTaskJoinedAfterSleep(t *testing.T) {
	rt := newTestRuntime(t)

	result, err := rt.Run(func(root *Task) (any, error) {
		h := Spawn(root, func(ct *Task) (uint32, error) {
			if err := ct.Sleep(10 * time.Millisecond); err != nil {
				return 0, err
			}
			return 42, nil
		})
		return h.Join(root)
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(42), result)
}

// TestE2ECancelOnClose is SPEC_FULL.md §8 scenario 3: a child starts a long
// read against an fd that will never become readable; root closes the
// child's handle shortly after and Run must return promptly rather than
// waiting out the read.
func TestE2ECancelOnClose(t *testing.T) {
	rt := newTestRuntime(t)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()
	defer r.Close()
	rfd := int(r.Fd())

	start := time.Now()
	_, err = rt.Run(func(root *Task) (any, error) {
		h := Spawn(root, func(ct *Task) (int, error) {
			buf := make([]byte, 16)
			res, err := ct.Do(func(ring *uring.Ring, key IoKey) error {
				return ring.PrepRead(rfd, buf, 0, uint64(key))
			})
			return int(res), err
		})
		if err := root.Sleep(10 * time.Millisecond); err != nil {
			return nil, err
		}
		_ = h.Close(root)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

// TestE2EDroppedJoinResult is SPEC_FULL.md §8 scenario 4: root closes a
// child's handle before ever joining it, then returns. The child's result
// is discarded without panicking anything.
func TestE2EDroppedJoinResult(t *testing.T) {
	rt := newTestRuntime(t)

	_, err := rt.Run(func(root *Task) (any, error) {
		h := Spawn(root, func(ct *Task) (int, error) {
			return 7, nil
		})
		if err := h.Close(root); err != nil {
			return nil, err
		}
		if err := root.Sleep(10 * time.Millisecond); err != nil {
			return nil, err
		}
		return nil, nil
	})
	require.NoError(t, err)
}

// TestCloseUnblocksJoinParkedTask exercises the gap a maintainer review
// flagged directly: Handle.Close must unblock a task that is parked inside
// Handle.Join (no pendingKey to cancel), not only one suspended on an
// in-flight kernel operation. target sleeps far longer than the test
// should take; joiner parks in target.Join and would hang with it absent
// the fix.
func TestCloseUnblocksJoinParkedTask(t *testing.T) {
	rt := newTestRuntime(t)

	start := time.Now()
	_, err := rt.Run(func(root *Task) (any, error) {
		target := Spawn(root, func(ct *Task) (int, error) {
			if err := ct.Sleep(time.Hour); err != nil {
				return 0, err
			}
			return 0, nil
		})
		joiner := Spawn(root, func(ct *Task) (int, error) {
			_, err := target.Join(ct)
			return 0, err
		})
		if err := root.Sleep(10 * time.Millisecond); err != nil {
			return nil, err
		}
		if err := joiner.Close(root); err != nil {
			return nil, err
		}
		_, joinErr := joiner.Join(root)
		// target's own hour-long sleep is still pending in the ring; close
		// it explicitly rather than leaving it to Run's teardown.
		if err := target.Close(root); err != nil {
			return nil, err
		}
		return nil, joinErr
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

// TestE2EPanicRecoveryIsLoggedAndDeliveredAsJoinError is SPEC_FULL.md §8
// scenario 9: a panicking task does not take down the runtime; its panic is
// both logged once (structured, via the same Logger every other lifecycle
// event uses) and delivered as the join handle's error.
func TestE2EPanicRecoveryIsLoggedAndDeliveredAsJoinError(t *testing.T) {
	var buf bytes.Buffer
	rt, err := New(WithRingSize(32), WithLogger(NewLogger(stumpy.WithWriter(&buf))))
	if err != nil {
		t.Skipf("io_uring unavailable or missing a required feature/opcode: %v", err)
	}

	_, runErr := rt.Run(func(root *Task) (any, error) {
		h := Spawn(root, func(*Task) (int, error) {
			panic("boom")
		})
		return h.Join(root)
	})
	require.Error(t, runErr)
	var panicErr *TaskPanicError
	require.ErrorAs(t, runErr, &panicErr)
	assert.Equal(t, "boom", panicErr.Value)
	assert.Contains(t, buf.String(), "task panicked")
	assert.Contains(t, buf.String(), "boom")
}
