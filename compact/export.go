// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compact

import "sync"

// PrimExport is a packed primitive export: 9-bit vertex indices at bit 10*i,
// edge flags at bit 9+10*i and the null flag at bit 31.
type PrimExport uint32

const primNullBit = 1 << 31

// NullPrimitive is the export of a culled primitive.
const NullPrimitive PrimExport = primNullBit

// PackPrimitive packs the first n indices and edge flags.
func PackPrimitive(index [3]uint32, edges [3]bool, n int) PrimExport {
	var p uint32
	for i := range n {
		p |= (index[i] & 0x1ff) << (10 * uint(i))
		if edges[i] {
			p |= 1 << (9 + 10*uint(i))
		}
	}
	return PrimExport(p)
}

// Null reports whether the primitive is culled.
func (p PrimExport) Null() bool {
	return p&primNullBit != 0
}

// Index returns vertex index i.
func (p PrimExport) Index(i int) uint32 {
	return uint32(p) >> (10 * uint(i)) & 0x1ff
}

// EdgeFlag returns edge flag i.
func (p PrimExport) EdgeFlag(i int) bool {
	return uint32(p)>>(9+10*uint(i))&1 != 0
}

// VertexExport is the payload of one exported vertex.
type VertexExport struct {
	// OldThread is the thread that produced the vertex.
	OldThread int

	Pos [4]float32

	VertexID   uint32
	InstanceID uint32

	TessU          float32
	TessV          float32
	TessRelPatchID uint8
	TessPatchID    uint32

	// Outputs holds the remaining shader outputs of the vertex.
	Outputs [][4]float32
}

// Exporter receives the exports of a workgroup. AllocRequest is called
// before any export, and may be called twice when wave 0 exits early; the
// last call wins.
type Exporter interface {
	AllocRequest(vertices, primitives uint32)
	ExportPrimitive(thread int, p PrimExport)
	ExportVertex(thread int, v VertexExport)
}

// Recorder is an Exporter that keeps everything it receives.
//
// Thread safety: Recorder is safe for concurrent use.
type Recorder struct {
	mu         sync.Mutex
	Vertices   uint32
	Primitives uint32
	Allocs     int
	Prims      map[int]PrimExport
	Verts      map[int]VertexExport
}

// AllocRequest implements Exporter.
func (r *Recorder) AllocRequest(vertices, primitives uint32) {
	r.mu.Lock()
	r.Vertices, r.Primitives = vertices, primitives
	r.Allocs++
	r.mu.Unlock()
}

// ExportPrimitive implements Exporter.
func (r *Recorder) ExportPrimitive(thread int, p PrimExport) {
	r.mu.Lock()
	if r.Prims == nil {
		r.Prims = make(map[int]PrimExport)
	}
	r.Prims[thread] = p
	r.mu.Unlock()
}

// ExportVertex implements Exporter.
func (r *Recorder) ExportVertex(thread int, v VertexExport) {
	r.mu.Lock()
	if r.Verts == nil {
		r.Verts = make(map[int]VertexExport)
	}
	r.Verts[thread] = v
	r.mu.Unlock()
}
