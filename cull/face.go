// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cull

// Determinant returns twice the signed area of the triangle projected to XY.
// Counter-clockwise triangles have a positive determinant.
func Determinant(pos [3][4]float32) float32 {
	t0 := pos[1][0] - pos[0][0]
	t1 := pos[2][1] - pos[0][1]
	t2 := pos[0][0] - pos[2][0]
	t3 := pos[0][1] - pos[1][1]
	return t0*t1 - t2*t3
}

// CullFace returns whether the triangle survives face and zero-area culling.
//
// Culling both faces rejects everything; with no face policy everything
// passes. A zero determinant is rejected by zero-area culling and accepted
// otherwise, with exact comparison against zero. A NaN determinant is
// neither front nor back facing and has no area, so every policy rejects it.
func CullFace(pos [3][4]float32, w WInfo, cullFront, cullBack, cullZeroArea bool) bool {
	if cullFront && cullBack {
		return false
	}
	if !cullFront && !cullBack && !cullZeroArea {
		return true
	}

	det := Determinant(pos)
	if w.Reflection {
		det = -det
	}

	switch {
	case cullFront:
		if cullZeroArea {
			return det < 0
		}
		return det <= 0
	case cullBack:
		if cullZeroArea {
			return det > 0
		}
		return det >= 0
	default:
		return det < 0 || det > 0
	}
}
