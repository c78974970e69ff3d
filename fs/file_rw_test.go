//go:build linux

package fs

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/parastrom/ioruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRuntime builds a Runtime for tests that drive real ring I/O,
// skipping when the host kernel lacks io_uring or a required opcode,
// matching the root package's own newTestRuntime skip pattern.
func newTestRuntime(t *testing.T) *ioruntime.Runtime {
	t.Helper()
	rt, err := ioruntime.New(ioruntime.WithRingSize(32))
	if err != nil {
		t.Skipf("io_uring unavailable or missing a required feature/opcode: %v", err)
	}
	return rt
}

// TestFileReadWriteRoundTrip is SPEC_FULL.md §8 scenario 7: write bytes
// through one *File handle, read them back through a second handle opened
// on the same path, and verify the raw-result byte counts match.
func TestFileReadWriteRoundTrip(t *testing.T) {
	rt := newTestRuntime(t)
	path := filepath.Join(t.TempDir(), "roundtrip.txt")

	result, err := rt.Run(func(root *ioruntime.Task) (any, error) {
		wf, err := Open(root, path, OpenOptions{Write: true, Create: true, Truncate: true})
		if err != nil {
			return nil, err
		}
		n, err := wf.Write(root, []byte("round trip"))
		if err != nil {
			return nil, err
		}
		wf.Close(root)

		rf, err := Open(root, path, OpenOptions{Read: true})
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 64)
		n2, err := rf.Read(root, buf)
		if err != nil {
			return nil, err
		}
		rf.Close(root)

		if n != n2 {
			return nil, fmt.Errorf("fs: wrote %d bytes, read back %d", n, n2)
		}
		return string(buf[:n2]), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "round trip", result)
}
