// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wave

// WGScan holds the results of a workgroup-wide additive scan.
type WGScan struct {
	// Exclusive is the sum of all lower threads, per thread.
	Exclusive []uint32

	// Inclusive is Exclusive plus the thread's own value.
	Inclusive []uint32

	// Reduce is the total over every thread of the workgroup.
	Reduce uint32
}

// ScanWorkgroup scans src across a workgroup of waves of waveSize lanes.
// The scan runs in two phases: each wave publishes its total into scratch,
// then every wave folds in the totals of the waves before it. maxWaves bounds
// the scratch size; waves at or beyond it are ignored the same way a shader
// would ignore threads it never launched.
func ScanWorkgroup(src []uint32, waveSize, maxWaves int) WGScan {
	numWaves := NumWaves(len(src), waveSize)
	if numWaves > maxWaves {
		numWaves = maxWaves
		src = src[:maxWaves*waveSize]
	}

	// Top: per-wave reduction into scratch.
	scratch := make([]uint32, maxWaves)
	for w := range numWaves {
		scratch[w] = Reduce(waveSlice(src, w, waveSize))
	}

	// Bottom: combine scratch prefix with the in-wave scan.
	res := WGScan{
		Exclusive: make([]uint32, len(src)),
		Inclusive: make([]uint32, len(src)),
	}
	var base uint32
	for w := range numWaves {
		lanes := waveSlice(src, w, waveSize)
		excl := ExclusiveScan(lanes)
		for lane, x := range lanes {
			tid := w*waveSize + lane
			res.Exclusive[tid] = base + excl[lane]
			res.Inclusive[tid] = base + excl[lane] + x
		}
		base += scratch[w]
	}
	res.Reduce = base
	return res
}

func waveSlice(v []uint32, w, waveSize int) []uint32 {
	lo := w * waveSize
	hi := min(lo+waveSize, len(v))
	return v[lo:hi]
}
