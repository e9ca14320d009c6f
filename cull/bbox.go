// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cull

import "github.com/chewxy/math32"

// Viewport maps normalized device coordinates to screen space:
// screen = ndc*Scale + Translate. Sample centers lie at half-integer screen
// coordinates.
type Viewport struct {
	Scale     [2]float32
	Translate [2]float32
}

// ViewportFromRect returns the viewport transform of a w×h rectangle whose
// top-left corner is at (x, y).
func ViewportFromRect(x, y, w, h float32) Viewport {
	return Viewport{
		Scale:     [2]float32{w / 2, h / 2},
		Translate: [2]float32{x + w/2, y + h/2},
	}
}

// cullBBox runs the view-volume and small-primitive tests on primitives
// that passed the earlier tests, then reports the verdict to accept.
func cullBBox(pos [3][4]float32, accepted bool, w WInfo, vp Viewport, precision float32,
	opts Options, accept AcceptFunc, userdata any) {
	if !opts.CullsBBox() {
		accept(accepted, userdata)
		return
	}
	if !accepted {
		accept(false, userdata)
		return
	}

	channels := 2
	if opts.CullViewNearZ || opts.CullViewFarZ {
		channels = 3
	}

	second := 0
	if opts.NumVertices > 1 {
		second = 1
	}

	var bboxMin, bboxMax [3]float32
	for c := range channels {
		bboxMin[c] = math32.Min(pos[0][c], pos[second][c])
		bboxMax[c] = math32.Max(pos[0][c], pos[second][c])
		if opts.NumVertices == 3 {
			bboxMin[c] = math32.Min(bboxMin[c], pos[2][c])
			bboxMax[c] = math32.Max(bboxMax[c], pos[2][c])
		}
	}

	// View volume.
	for c := range 3 {
		lowTested := (opts.CullViewXY && c <= 1) || (opts.CullViewNearZ && c == 2)
		highTested := (opts.CullViewXY && c <= 1) || (opts.CullViewFarZ && c == 2)
		if lowTested {
			var low float32 = -1
			if c == 2 && opts.UseHalfZClipSpace {
				low = 0
			}
			accepted = accepted && bboxMax[c] >= low
		}
		if highTested {
			accepted = accepted && bboxMin[c] <= 1
		}
	}

	// A box whose rounded edges coincide on either axis contains no sample
	// center. Edges are compared ordered, so a NaN edge also culls.
	if opts.CullSmallPrims {
		visible := true
		for c := range 2 {
			lo := bboxMin[c]*vp.Scale[c] + vp.Translate[c] - precision
			hi := bboxMax[c]*vp.Scale[c] + vp.Translate[c] + precision
			rlo, rhi := math32.RoundToEven(lo), math32.RoundToEven(hi)
			visible = visible && (rlo < rhi || rlo > rhi)
		}
		accepted = accepted && visible
	}

	// The box is meaningless once a vertex crossed W = 0.
	accepted = accepted || w.AnyNegative

	accept(accepted, userdata)
}
