package ioruntime

import (
	"io"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured logger used for Runtime lifecycle, error, and
// panic-recovery events. It is a thin named wrapper around a
// logiface.Logger[*stumpy.Event], following the same optional,
// injected-via-option shape as the rest of this package's configuration
// (see options.go): callers never construct a *stumpy.Event directly, they
// get a *Logger from NewLogger/NewNopLogger and pass it to WithLogger.
type Logger struct {
	l *logiface.Logger[*stumpy.Event]
}

// NewLogger builds a Logger writing newline-delimited structured records via
// stumpy, the default logiface backend used across this module's lineage.
func NewLogger(opts ...stumpy.Option) *Logger {
	return &Logger{l: stumpy.L.New(stumpy.L.WithStumpy(opts...))}
}

// NewNopLogger returns a Logger that discards everything. It is the default
// when no WithLogger option is supplied.
func NewNopLogger() *Logger {
	return &Logger{l: stumpy.L.New(stumpy.L.WithStumpy(stumpy.WithWriter(io.Discard)))}
}

// taskField names the structured field carrying a TaskId, kept consistent
// across every log site in this package.
const taskField = "task"

// keyField names the structured field carrying an IoKey.
const keyField = "key"

func (lg *Logger) infof(msg string, fields func(b *logiface.Builder[*stumpy.Event]) *logiface.Builder[*stumpy.Event]) {
	if lg == nil || lg.l == nil {
		return
	}
	b := lg.l.Info()
	if fields != nil {
		b = fields(b)
	}
	b.Log(msg)
}

func (lg *Logger) errorf(err error, msg string, fields func(b *logiface.Builder[*stumpy.Event]) *logiface.Builder[*stumpy.Event]) {
	if lg == nil || lg.l == nil {
		return
	}
	b := lg.l.Err().Err(err)
	if fields != nil {
		b = fields(b)
	}
	b.Log(msg)
}

func (lg *Logger) debugf(msg string, fields func(b *logiface.Builder[*stumpy.Event]) *logiface.Builder[*stumpy.Event]) {
	if lg == nil || lg.l == nil {
		return
	}
	b := lg.l.Debug()
	if fields != nil {
		b = fields(b)
	}
	b.Log(msg)
}

func (lg *Logger) logRingInit() {
	lg.infof("ring initialized", nil)
}

func (lg *Logger) logRunStart() {
	lg.infof("run starting", nil)
}

func (lg *Logger) logRunStop() {
	lg.infof("run stopped", nil)
}

func (lg *Logger) logRingReset() {
	lg.infof("ring reset for teardown", nil)
}

func (lg *Logger) logTaskSpawned(id TaskId) {
	lg.debugf("task spawned", func(b *logiface.Builder[*stumpy.Event]) *logiface.Builder[*stumpy.Event] {
		return b.Uint64(taskField, uint64(id))
	})
}

func (lg *Logger) logTaskPanic(id TaskId, err error) {
	lg.errorf(err, "task panicked", func(b *logiface.Builder[*stumpy.Event]) *logiface.Builder[*stumpy.Event] {
		return b.Uint64(taskField, uint64(id))
	})
}

func (lg *Logger) logCancel(id TaskId, key IoKey) {
	lg.debugf("cancelling in-flight operation", func(b *logiface.Builder[*stumpy.Event]) *logiface.Builder[*stumpy.Event] {
		return b.Uint64(taskField, uint64(id)).Uint64(keyField, uint64(key))
	})
}
