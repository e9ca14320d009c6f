// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cull

// WInfo classifies the W signs of a primitive's vertices.
type WInfo struct {
	// Reflection is true when an odd number of vertices has negative W.
	// Each such vertex flips the sign of the projected area.
	Reflection bool

	// Accepted is false only when every vertex has negative W.
	Accepted bool

	// AnyNegative is true when at least one vertex has negative W.
	// Bounding box tests are not meaningful for such primitives.
	AnyNegative bool
}

// AnalyzeW classifies the first n vertices of pos by the sign of W.
// NaN is not negative.
func AnalyzeW(pos [3][4]float32, n int) WInfo {
	var info WInfo
	all := true
	for i := range n {
		neg := pos[i][3] < 0
		info.Reflection = info.Reflection != neg
		info.AnyNegative = info.AnyNegative || neg
		all = all && neg
	}
	info.Accepted = !all
	return info
}
