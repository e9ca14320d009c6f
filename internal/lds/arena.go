// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package lds models workgroup-local shared memory as dword arrays with a
// fixed per-record layout. Byte fields are accessed with masking helpers so
// that the layout matches what a shader addresses with byte offsets.
package lds

import "math"

// ByteField selects one of the four bytes packed into dword 0 of a vertex
// record.
type ByteField uint8

const (
	// ByteAcceptFlag holds the accept flag written by culling. After
	// compaction it holds the old thread id.
	ByteAcceptFlag ByteField = iota

	// ByteNewThreadID holds the compacted thread id of the vertex.
	ByteNewThreadID

	// ByteTessRelPatchID holds the relative patch id of a tessellated vertex.
	ByteTessRelPatchID

	// ByteUnused is reserved.
	ByteUnused
)

// Dword slots of a vertex record. The cull slots alias the position slots:
// culling reads x/w, y/w and w before compaction overwrites them with the
// full position.
const (
	PackedData = 0

	CullPosXDivW = 1
	CullPosYDivW = 2
	CullPosW     = 3

	PosX = 1
	PosY = 2
	PosZ = 3
	PosW = 4

	VertexID   = 5
	InstanceID = 6

	TessU       = VertexID
	TessV       = InstanceID
	TessPatchID = 7
)

// Arena is an array of fixed-size vertex records.
type Arena struct {
	words  []uint32
	stride int
}

// NewArena allocates records zeroed records of stride dwords each.
func NewArena(records, stride int) *Arena {
	return &Arena{
		words:  make([]uint32, records*stride),
		stride: stride,
	}
}

// Stride returns the record size in dwords.
func (a *Arena) Stride() int { return a.stride }

// Records returns the number of records.
func (a *Arena) Records() int {
	if a.stride == 0 {
		return 0
	}
	return len(a.words) / a.stride
}

// Dwords returns the arena size in dwords.
func (a *Arena) Dwords() int { return len(a.words) }

// Load reads dword slot of record rec.
func (a *Arena) Load(rec, slot int) uint32 {
	return a.words[a.index(rec, slot)]
}

// Store writes dword slot of record rec.
func (a *Arena) Store(rec, slot int, v uint32) {
	a.words[a.index(rec, slot)] = v
}

// LoadFloat reads dword slot of record rec as a float32.
func (a *Arena) LoadFloat(rec, slot int) float32 {
	return math.Float32frombits(a.Load(rec, slot))
}

// StoreFloat writes a float32 into dword slot of record rec.
func (a *Arena) StoreFloat(rec, slot int, v float32) {
	a.Store(rec, slot, math.Float32bits(v))
}

// LoadByte reads byte field f of the packed dword of record rec.
func (a *Arena) LoadByte(rec int, f ByteField) uint8 {
	return a.LoadByteAt(rec, PackedData, int(f))
}

// StoreByte writes byte field f of the packed dword of record rec, leaving
// the other three bytes untouched.
func (a *Arena) StoreByte(rec int, f ByteField, v uint8) {
	a.StoreByteAt(rec, PackedData, int(f), v)
}

// LoadByteAt reads byte b (0..3) of dword slot of record rec.
func (a *Arena) LoadByteAt(rec, slot, b int) uint8 {
	return uint8(a.Load(rec, slot) >> (8 * uint(b)))
}

// StoreByteAt writes byte b (0..3) of dword slot of record rec.
func (a *Arena) StoreByteAt(rec, slot, b int, v uint8) {
	shift := 8 * uint(b)
	w := a.Load(rec, slot)
	w = w&^(0xff<<shift) | uint32(v)<<shift
	a.Store(rec, slot, w)
}

// Fill sets every dword to v. Tests use it to model uninitialized memory.
func (a *Arena) Fill(v uint32) {
	for i := range a.words {
		a.words[i] = v
	}
}

func (a *Arena) index(rec, slot int) int {
	if slot < 0 || slot >= a.stride {
		panic("lds: slot out of record bounds")
	}
	return rec*a.stride + slot
}
