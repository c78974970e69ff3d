//go:build linux

package uring

import "fmt"

// Probe reports which opcodes the running kernel's io_uring implementation
// actually supports, via IORING_REGISTER_PROBE. The runtime uses this at
// construction time to fail fast — per SPEC_FULL.md §4.1 — instead of
// discovering a missing opcode the first time a task tries to use it.
type Probe struct {
	raw probe
}

// Probe queries the kernel for opcode support on this ring.
func (r *Ring) Probe() (*Probe, error) {
	var p probe
	if err := registerProbeOp(r.fd, &p); err != nil {
		return nil, fmt.Errorf("uring: register probe: %w", err)
	}
	return &Probe{raw: p}, nil
}

// Supports reports whether op is implemented by the running kernel.
func (p *Probe) Supports(op Op) bool {
	if int(op) >= len(p.raw.Ops) {
		return false
	}
	return p.raw.Ops[op].Flags&opSupported != 0
}

// requiredOps is the opcode set SPEC_FULL.md §4.1 names as mandatory, plus
// nop: if any is missing, New must fail rather than let a task discover it
// later.
var requiredOps = map[Op]string{
	OpNop:      "nop",
	OpRead:     "read",
	OpWrite:    "write",
	OpClose:    "close",
	OpAccept:   "accept",
	OpConnect:  "connect",
	OpSocket:   "socket",
	OpSendmsg:  "sendmsg",
	OpRecvmsg:  "recvmsg",
	OpShutdown: "shutdown",
	OpOpenat:   "openat",
	OpTimeout:  "timeout",
	OpCancel:   "async_cancel",
}

// CheckRequired reports the name of a required opcode the probe says is
// unsupported, or ("", true) if every required opcode is present. When
// several are missing, which one is reported is not defined (requiredOps is
// a map).
func (p *Probe) CheckRequired() (missing string, ok bool) {
	for op, name := range requiredOps {
		if !p.Supports(op) {
			return name, false
		}
	}
	return "", true
}

// OpName returns the runtime-facing name for op, or "" if op is not part of
// the required set.
func OpName(op Op) string { return requiredOps[op] }
