// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compact

import (
	"github.com/gogpu/ngg/internal/lds"
	"github.com/gogpu/ngg/internal/wave"
)

// MaxWaves is the largest number of waves whose count bytes fit the scratch
// area read by LoadVertexCounts.
const MaxWaves = 8

// LoadVertexCounts reads the per-wave survivor count bytes from scratch and
// returns the workgroup total and the sum of the waves below waveID.
//
// Lanes 0..ceil(maxWaves/4)-1 each load one dword holding four count bytes.
// Bytes of waves at or above numWaves are masked off, so stale scratch
// content never leaks into the sums. Both results are at most
// 4*maxWaves*255.
func LoadVertexCounts(s *lds.Scratch, maxWaves, numWaves, waveID, waveSize int) (total, prefix uint32) {
	groups := (maxWaves + 3) / 4

	lanes := make([]uint32, waveSize)
	for lane := range min(groups, waveSize) {
		lanes[lane] = s.Load(lane)
	}

	var valid, below uint64
	if maxWaves > 4 {
		valid = ^uint64(0) >> uint(64-numWaves*8)
	} else {
		valid = uint64(^uint32(0) >> uint(32-numWaves*8))
	}
	below = ^(^uint64(0) << uint(waveID*8))

	for i := range groups {
		v := wave.ReadLane(lanes, i) & uint32(valid>>(32*uint(i)))
		total = wave.SADU8(v, 0, total)
		v &= uint32(below >> (32 * uint(i)))
		prefix = wave.SADU8(v, 0, prefix)
	}
	return total, prefix
}
