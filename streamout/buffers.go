// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package streamout

import (
	"fmt"
	"sync"
)

// Memory is the destination of captured vertex data.
type Memory interface {
	// Size returns the size of buffer in dwords.
	Size(buffer int) uint32

	// Store writes one dword at offset of buffer.
	Store(buffer int, offset uint32, value uint32) error
}

// Buffers is a Memory backed by host slices.
//
// Thread safety: Buffers is safe for concurrent use.
type Buffers struct {
	mu   sync.Mutex
	data [MaxBuffers][]uint32
}

// NewBuffers allocates buffers of the given sizes in dwords. Missing sizes
// are zero.
func NewBuffers(sizes ...uint32) *Buffers {
	b := &Buffers{}
	for i, s := range sizes {
		if i >= MaxBuffers {
			break
		}
		b.data[i] = make([]uint32, s)
	}
	return b
}

// Size implements Memory.
func (b *Buffers) Size(buffer int) uint32 {
	return uint32(len(b.data[buffer]))
}

// Store implements Memory.
func (b *Buffers) Store(buffer int, offset uint32, value uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if offset >= uint32(len(b.data[buffer])) {
		return fmt.Errorf("%w: buffer %d offset %d size %d", ErrOutOfBounds, buffer, offset, len(b.data[buffer]))
	}
	b.data[buffer][offset] = value
	return nil
}

// Data returns a copy of buffer.
func (b *Buffers) Data(buffer int) []uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]uint32(nil), b.data[buffer]...)
}
