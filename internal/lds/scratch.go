// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package lds

// Scratch dword offsets. Vertex culling stores one survivor byte per wave
// starting at byte 0. Streamout without a geometry stage keeps emit counts at
// dwords 0-3 and buffer offsets at 4-7. The geometry stage keeps generated
// primitive counts at 0-3, emit counts at 4-7, offsets at 8-11 and per-stream
// scan scratch at 12+8*stream.
const (
	ScratchEmit        = 0
	ScratchOffset      = 4
	ScratchGSGenerated = 0
	ScratchGSEmit      = 4
	ScratchGSOffset    = 8
	ScratchGSScanBase  = 12
	ScratchGSScanSize  = 8

	// ScratchDwords is the scratch size of vertex-only pipelines and
	// geometry pipelines without streamout.
	ScratchDwords = 8

	// ScratchGSStreamoutDwords is the scratch size of geometry pipelines
	// with streamout.
	ScratchGSStreamoutDwords = 44
)

// Scratch is the small workgroup scratch area used for cross-wave counters.
type Scratch struct {
	words []uint32
}

// NewScratch allocates a zeroed scratch area of n dwords.
func NewScratch(n int) *Scratch {
	return &Scratch{words: make([]uint32, n)}
}

// Dwords returns the scratch size in dwords.
func (s *Scratch) Dwords() int { return len(s.words) }

// Load reads dword i.
func (s *Scratch) Load(i int) uint32 { return s.words[i] }

// Store writes dword i.
func (s *Scratch) Store(i int, v uint32) { s.words[i] = v }

// Add adds v to dword i and returns the previous value.
func (s *Scratch) Add(i int, v uint32) uint32 {
	old := s.words[i]
	s.words[i] = old + v
	return old
}

// StoreByte writes byte b of the scratch area.
func (s *Scratch) StoreByte(b int, v uint8) {
	shift := 8 * uint(b%4)
	w := s.words[b/4]
	s.words[b/4] = w&^(0xff<<shift) | uint32(v)<<shift
}

// LoadByte reads byte b of the scratch area.
func (s *Scratch) LoadByte(b int) uint8 {
	return uint8(s.words[b/4] >> (8 * uint(b%4)))
}

// Fill sets every dword to v.
func (s *Scratch) Fill(v uint32) {
	for i := range s.words {
		s.words[i] = v
	}
}
