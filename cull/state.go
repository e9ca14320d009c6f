// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cull

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// VerticesPerPrimitive returns the vertex count of a topology's primitives.
func VerticesPerPrimitive(t gputypes.PrimitiveTopology) (int, error) {
	switch t {
	case gputypes.PrimitiveTopologyPointList:
		return 1, nil
	case gputypes.PrimitiveTopologyLineList, gputypes.PrimitiveTopologyLineStrip:
		return 2, nil
	case gputypes.PrimitiveTopologyTriangleList, gputypes.PrimitiveTopologyTriangleStrip:
		return 3, nil
	default:
		return 0, fmt.Errorf("%w: unknown topology %d", ErrInvalidVertexCount, t)
	}
}

// OptionsFromState derives culling options from rasterizer state.
//
// View XY and W culling are always enabled. Face culling follows CullMode,
// with the faces swapped for clockwise front faces, and implies zero-area
// culling. Small primitive culling is enabled for triangles unless the
// rasterizer is conservative, since conservative rasterization covers pixels
// without sample hits. Depth uses the [0, 1] range.
func OptionsFromState(state gputypes.PrimitiveState, conservative bool) (Options, error) {
	n, err := VerticesPerPrimitive(state.Topology)
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		CullViewXY:        true,
		CullW:             true,
		UseHalfZClipSpace: true,
		NumVertices:       n,
	}
	if n < 3 {
		return opts, nil
	}

	front := state.CullMode == gputypes.CullModeFront
	back := state.CullMode == gputypes.CullModeBack
	if state.FrontFace == gputypes.FrontFaceCW {
		front, back = back, front
	}
	opts.CullFront = front
	opts.CullBack = back
	opts.CullZeroArea = front || back
	opts.CullSmallPrims = !conservative
	return opts, nil
}

// PrecisionFromMultisample returns the small primitive precision for a
// multisample state and a rasterizer sub-pixel precision.
func PrecisionFromMultisample(ms gputypes.MultisampleState, subpixelBits uint) float32 {
	return SmallPrimPrecision(ms.Count, subpixelBits)
}

// ViewportFromExtent returns the viewport covering a whole render target.
func ViewportFromExtent(e gputypes.Extent3D) Viewport {
	return ViewportFromRect(0, 0, float32(e.Width), float32(e.Height))
}
