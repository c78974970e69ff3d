package ioruntime

import (
	"errors"
	"time"

	"github.com/parastrom/ioruntime/internal/uring"
	"golang.org/x/sys/unix"
)

// Sleep suspends the calling task for at least d before resuming, via a
// ring-native IORING_OP_TIMEOUT SQE rather than a host timer (time.Sleep,
// time.After) — grounded in the original source's Runtime::sleep, which
// drives its timeout the same way every other awaited operation is driven,
// so it is cancelled and torn down identically when the task's context is
// cancelled mid-sleep.
func (t *Task) Sleep(d time.Duration) error {
	ts := uring.NewTimespec(int64(d/time.Second), int64(d%time.Second))
	_, err := t.Do(func(r *uring.Ring, key IoKey) error {
		return r.PrepTimeout(&ts, 0, uint64(key))
	})
	if errors.Is(err, unix.ETIME) {
		return nil
	}
	return err
}
