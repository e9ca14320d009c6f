// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package lds

// Stage identifies the shader stage that feeds vertices to the merged
// geometry stage.
type Stage uint8

const (
	// StageVertex is a vertex shader.
	StageVertex Stage = iota

	// StageTessEval is a tessellation evaluation shader.
	StageTessEval
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageTessEval:
		return "tess-eval"
	default:
		return "unknown"
	}
}

// RecordLayout describes which optional fields a vertex record carries.
type RecordLayout struct {
	Stage Stage

	// Culling reserves cull position, id and payload slots.
	Culling bool

	// UsesPrimitiveID stores the tessellation patch id.
	UsesPrimitiveID bool

	// StreamoutOutputs is the number of vec4 outputs captured for streamout.
	StreamoutOutputs int

	// EdgeFlags reserves the padding dword for user edge flags.
	EdgeFlags bool
}

// RecordDwords returns the vertex record size in dwords. Streamout records
// hold every output plus one padding dword, which also carries edge flags.
func RecordDwords(l RecordLayout) int {
	size := 0
	if l.StreamoutOutputs > 0 {
		size = 4*l.StreamoutOutputs + 1
	}
	if l.EdgeFlags {
		size = max(size, 1)
	}
	if l.Culling {
		switch {
		case l.Stage == StageVertex:
			size = max(size, InstanceID+1)
		case l.UsesPrimitiveID:
			// One extra dword of padding.
			size = max(size, TessPatchID+2)
		default:
			size = max(size, TessV+1)
		}
	}
	return size
}
