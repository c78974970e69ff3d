//go:build linux

// Package fs provides async file operations built on the io_uring ring
// owned by an ioruntime.Runtime, grounded on the original
// platform::file::{file_open,file_read,file_write,file_close}.
package fs

import (
	"fmt"

	"github.com/parastrom/ioruntime"
	"github.com/parastrom/ioruntime/internal/uring"
	"golang.org/x/sys/unix"
)

// OpenOptions mirrors the original fs::OpenOptions: the flag combination is
// resolved to a single openat(2) flags word at Open time, the same way the
// original resolves it in file_open.
type OpenOptions struct {
	Read      bool
	Write     bool
	Append    bool
	Truncate  bool
	Create    bool
	CreateNew bool
	Mode      uint32 // file mode used when creating; defaults to 0o666 if zero
}

// File is an async file handle.
type File struct {
	fd int
}

// Open opens path according to opts via an async openat relative to
// AT_FDCWD.
func Open(t *ioruntime.Task, path string, opts OpenOptions) (*File, error) {
	flags := resolveFlags(opts)
	mode := opts.Mode
	if mode == 0 {
		mode = 0o666
	}

	name, err := unix.BytePtrFromString(path)
	if err != nil {
		return nil, fmt.Errorf("fs: open %q: %w", path, err)
	}

	res, err := t.Do(func(r *uring.Ring, key ioruntime.IoKey) error {
		return r.PrepOpenat(unix.AT_FDCWD, name, uint32(flags), mode, uint64(key))
	})
	if err != nil {
		return nil, fmt.Errorf("fs: open %q: %w", path, err)
	}
	return &File{fd: int(res)}, nil
}

func resolveFlags(opts OpenOptions) int {
	var flags int
	switch {
	case opts.Read && !opts.Write:
		flags = unix.O_RDONLY
	case opts.Write && !opts.Read:
		flags = unix.O_WRONLY
	case opts.Read && opts.Write:
		flags = unix.O_RDWR
	}
	if opts.Append {
		flags |= unix.O_APPEND
	}
	if opts.Truncate {
		flags |= unix.O_TRUNC
	}
	if opts.Create || opts.CreateNew {
		flags |= unix.O_CREAT
	}
	if opts.CreateNew {
		flags |= unix.O_EXCL
	}
	return flags
}

// Read reads into buf at the file's current offset, advancing it. The SQE
// offset -1 selects the current file position.
func (f *File) Read(t *ioruntime.Task, buf []byte) (int, error) {
	res, err := t.Do(func(r *uring.Ring, key ioruntime.IoKey) error {
		return r.PrepRead(f.fd, buf, ^uint64(0), uint64(key))
	})
	return int(res), err
}

// Write writes buf at the file's current offset, advancing it.
func (f *File) Write(t *ioruntime.Task, buf []byte) (int, error) {
	res, err := t.Do(func(r *uring.Ring, key ioruntime.IoKey) error {
		return r.PrepWrite(f.fd, buf, ^uint64(0), uint64(key))
	})
	return int(res), err
}

// Close submits a fire-and-forget close of the underlying fd, matching the
// original's file_close: nobody awaits a close completion.
func (f *File) Close(t *ioruntime.Task) {
	t.Close(f.fd)
}
