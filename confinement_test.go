package ioruntime

import (
	"testing"

	"github.com/parastrom/ioruntime/internal/uring"
	"github.com/stretchr/testify/assert"
)

// staleTaskRef spawns and joins a child, handing back a *Task reference to
// it. By the time the returned task runs, the child has already finished
// and the baton belongs to root again, so the reference is stale: using it
// for anything must panic rather than silently touch runtime state root no
// longer owns on its behalf.
func staleTaskRef(root *Task) *Task {
	var stale *Task
	h := Spawn(root, func(ct *Task) (int, error) {
		stale = ct
		return 0, nil
	})
	_, _ = h.Join(root)
	return stale
}

func TestJoinOutsideTurnPanics(t *testing.T) {
	rt := newTestRuntime(t)
	assert.PanicsWithValue(t, ErrRuntimeNotOwned, func() {
		_, _ = rt.Run(func(root *Task) (any, error) {
			stale := staleTaskRef(root)
			h2 := Spawn(root, func(*Task) (int, error) { return 0, nil })
			_, _ = h2.Join(stale)
			return nil, nil
		})
	})
}

func TestHandleCloseOutsideTurnPanics(t *testing.T) {
	rt := newTestRuntime(t)
	assert.PanicsWithValue(t, ErrRuntimeNotOwned, func() {
		_, _ = rt.Run(func(root *Task) (any, error) {
			stale := staleTaskRef(root)
			h2 := Spawn(root, func(*Task) (int, error) { return 0, nil })
			_ = h2.Close(stale)
			return nil, nil
		})
	})
}

func TestTaskCloseOutsideTurnPanics(t *testing.T) {
	rt := newTestRuntime(t)
	assert.PanicsWithValue(t, ErrRuntimeNotOwned, func() {
		_, _ = rt.Run(func(root *Task) (any, error) {
			stale := staleTaskRef(root)
			stale.Close(0)
			return nil, nil
		})
	})
}

func TestDoOutsideTurnPanics(t *testing.T) {
	rt := newTestRuntime(t)
	assert.PanicsWithValue(t, ErrRuntimeNotOwned, func() {
		_, _ = rt.Run(func(root *Task) (any, error) {
			stale := staleTaskRef(root)
			_, _ = stale.Do(func(r *uring.Ring, key IoKey) error {
				return r.PrepNop(uint64(key))
			})
			return nil, nil
		})
	})
}
