// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cull

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidVertexCount is returned for primitives that are not points,
	// lines or triangles.
	ErrInvalidVertexCount = errors.New("cull: vertices per primitive must be 1, 2 or 3")

	// ErrFaceCullingNeedsTriangles is returned when face or zero-area culling
	// is requested for points or lines, which have no area.
	ErrFaceCullingNeedsTriangles = errors.New("cull: face culling requires triangles")
)

// Options selects the culling tests applied to every primitive of a draw.
// The zero value disables all tests.
type Options struct {
	// CullFront rejects front-facing (counter-clockwise) triangles.
	CullFront bool

	// CullBack rejects back-facing (clockwise) triangles.
	CullBack bool

	// CullViewXY rejects primitives entirely outside [-1, 1] in X or Y.
	CullViewXY bool

	// CullViewNearZ rejects primitives entirely in front of the near plane.
	CullViewNearZ bool

	// CullViewFarZ rejects primitives entirely behind the far plane.
	CullViewFarZ bool

	// CullSmallPrims rejects primitives whose bounding box covers no sample.
	CullSmallPrims bool

	// CullZeroArea rejects degenerate triangles.
	CullZeroArea bool

	// CullW rejects primitives with every vertex behind the eye.
	CullW bool

	// UseHalfZClipSpace uses [0, 1] instead of [-1, 1] as the Z range.
	UseHalfZClipSpace bool

	// NumVertices is the number of vertices per primitive.
	NumVertices int
}

// Validate reports configurations no shader could be built for.
func (o Options) Validate() error {
	if o.NumVertices < 1 || o.NumVertices > 3 {
		return fmt.Errorf("%w: got %d", ErrInvalidVertexCount, o.NumVertices)
	}
	if o.NumVertices < 3 && (o.CullFront || o.CullBack || o.CullZeroArea) {
		return ErrFaceCullingNeedsTriangles
	}
	return nil
}

// CullsFaces reports whether face or zero-area culling is enabled.
func (o Options) CullsFaces() bool {
	return o.CullFront || o.CullBack || o.CullZeroArea
}

// CullsBBox reports whether any bounding box test is enabled.
func (o Options) CullsBBox() bool {
	return o.CullViewXY || o.CullViewNearZ || o.CullViewFarZ || o.CullSmallPrims
}

// RejectsAll reports whether the options reject every primitive, which
// happens when both faces are culled.
func (o Options) RejectsAll() bool {
	return o.CullFront && o.CullBack
}
