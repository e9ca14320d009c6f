// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cull

// Primitive is a point, line or triangle in post-divide coordinates.
// Only the first NumVertices entries of Pos are meaningful.
type Primitive struct {
	Pos         [3][4]float32
	NumVertices int
}

// AcceptFunc receives the final verdict for one primitive.
type AcceptFunc func(accepted bool, userdata any)

// PerspectiveDivide converts a clip-space position to the {x/w, y/w, z/w, w}
// form used by the culling tests.
func PerspectiveDivide(clip [4]float32) [4]float32 {
	w := clip[3]
	return [4]float32{clip[0] / w, clip[1] / w, clip[2] / w, w}
}

// CullPrimitive runs every enabled test on prim and calls accept exactly
// once with the verdict. initiallyAccepted lets the caller pre-reject a
// primitive; a false value is passed through unchanged.
//
// The callback is called with true only after every test passed, so side
// effects it performs under a true verdict are valid for visible primitives
// only. Options are expected to be valid; see Options.Validate.
func CullPrimitive(prim Primitive, initiallyAccepted bool, vp Viewport, precision float32,
	opts Options, accept AcceptFunc, userdata any) {
	w := AnalyzeW(prim.Pos, opts.NumVertices)

	accepted := initiallyAccepted
	if opts.CullW {
		accepted = accepted && w.Accepted
	}
	if opts.NumVertices == 3 {
		accepted = accepted && CullFace(prim.Pos, w, opts.CullFront, opts.CullBack, opts.CullZeroArea)
	} else if opts.RejectsAll() {
		accepted = false
	}

	cullBBox(prim.Pos, accepted, w, vp, precision, opts, accept, userdata)
}

// Cull returns the verdict CullPrimitive would report for an initially
// accepted primitive.
func Cull(prim Primitive, vp Viewport, precision float32, opts Options) bool {
	var verdict bool
	CullPrimitive(prim, true, vp, precision, opts, func(accepted bool, _ any) {
		verdict = accepted
	}, nil)
	return verdict
}
