//go:build linux

package uring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func allSupportedProbe() *Probe {
	var p probe
	for op := range requiredOps {
		p.Ops[op].Flags = opSupported
	}
	return &Probe{raw: p}
}

func TestCheckRequiredAllSupported(t *testing.T) {
	p := allSupportedProbe()
	missing, ok := p.CheckRequired()
	assert.True(t, ok)
	assert.Empty(t, missing)
}

func TestCheckRequiredReportsFirstMissing(t *testing.T) {
	p := allSupportedProbe()
	p.raw.Ops[OpAccept].Flags = 0

	missing, ok := p.CheckRequired()
	assert.False(t, ok)
	assert.Equal(t, "accept", missing)
}

func TestSupportsOutOfRangeOpIsFalse(t *testing.T) {
	p := allSupportedProbe()
	assert.False(t, p.Supports(Op(250)))
}

func TestOpNameKnownAndUnknown(t *testing.T) {
	assert.Equal(t, "read", OpName(OpRead))
	assert.Equal(t, "", OpName(Op(200)))
}
