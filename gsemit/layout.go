// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gsemit

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/gogpu/ngg/streamout"
)

// MaxEmitSlots is the largest number of vertex slots in a workgroup.
const MaxEmitSlots = 256

// ErrInvalidLayout is returned for unsupported slot layouts.
var ErrInvalidLayout = errors.New("gsemit: invalid layout")

// Layout describes the vertex slots of a geometry workgroup.
type Layout struct {
	// VerticesOut is the maximum number of vertices one thread emits.
	VerticesOut int

	// NumOutputs is the number of vec4 output registers per vertex.
	// Register 0 holds the position.
	NumOutputs int

	// OutputStreams maps each register to its stream. Nil puts every
	// register on stream 0.
	OutputStreams []int

	// VerticesPerPrim is the output primitive size: 1 for points, 2 for
	// line strips and 3 for triangle strips.
	VerticesPerPrim int
}

// Validate checks the layout.
func (l Layout) Validate() error {
	if l.VerticesOut < 1 || l.VerticesOut > MaxEmitSlots {
		return fmt.Errorf("%w: vertices out %d", ErrInvalidLayout, l.VerticesOut)
	}
	if l.VerticesPerPrim < 1 || l.VerticesPerPrim > 3 {
		return fmt.Errorf("%w: vertices per primitive %d", ErrInvalidLayout, l.VerticesPerPrim)
	}
	if l.NumOutputs < 1 {
		return fmt.Errorf("%w: no outputs", ErrInvalidLayout)
	}
	if l.OutputStreams != nil && len(l.OutputStreams) != l.NumOutputs {
		return fmt.Errorf("%w: %d stream entries for %d outputs", ErrInvalidLayout,
			len(l.OutputStreams), l.NumOutputs)
	}
	for r, s := range l.OutputStreams {
		if s < 0 || s >= streamout.MaxStreams {
			return fmt.Errorf("%w: register %d on stream %d", ErrInvalidLayout, r, s)
		}
	}
	return nil
}

// Stream returns the stream of register r.
func (l Layout) Stream(r int) int {
	if l.OutputStreams == nil {
		return 0
	}
	return l.OutputStreams[r]
}

// StreamUsed reports whether any register belongs to stream.
func (l Layout) StreamUsed(stream int) bool {
	for r := range l.NumOutputs {
		if l.Stream(r) == stream {
			return true
		}
	}
	return false
}

// SlotDwords returns the slot size: four dwords per output plus one dword
// of per-stream primitive flags.
func (l Layout) SlotDwords() int {
	return 4*l.NumOutputs + 1
}

// FlagDword returns the dword of a slot holding the primitive flags.
func (l Layout) FlagDword() int {
	return 4 * l.NumOutputs
}

// Slot maps a linear vertex index to its slot. When VerticesOut is a
// multiple of 2^k, indices are XOR-swizzled within rows of 32 so that the
// slots written by one emit across a wave and the slots read by consecutive
// threads both spread over memory banks.
func (l Layout) Slot(linear int) int {
	if exp := bits.TrailingZeros(uint(l.VerticesOut)); exp > 0 {
		linear ^= (linear >> 5) & (1<<uint(exp) - 1)
	}
	return linear
}

// EmitSlot returns the slot of vertex emit of thread.
func (l Layout) EmitSlot(thread, emit int) int {
	return l.Slot(thread*l.VerticesOut + emit)
}
