// Package cull decides whether a primitive can affect the rendered image.
//
// The tests run in a fixed order and every later test only refines the
// verdict of the earlier ones:
//
//   - W classification: primitives with every vertex behind the eye are
//     rejected, and an odd number of negative W values flips the winding.
//   - Face culling: the signed area of the projected triangle decides front,
//     back and zero-area rejection.
//   - Bounding box culling: the clip-space box is tested against the view
//     volume, and its screen-space extent is tested against the sample grid
//     to drop primitives that cover no sample.
//
// Positions are given per vertex as {x/w, y/w, z/w, w}: the first three
// channels are already divided by W, the fourth keeps W itself so that its
// sign can be inspected. Use PerspectiveDivide to build them from clip
// coordinates.
//
// # Usage
//
//	opts := cull.Options{CullBack: true, CullZeroArea: true, CullW: true, NumVertices: 3}
//	cull.CullPrimitive(prim, true, vp, precision, opts, func(accepted bool, _ any) {
//	    if accepted {
//	        // mark the primitive's vertices as kept
//	    }
//	}, nil)
package cull
