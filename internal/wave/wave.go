// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wave

import "math/bits"

// Supported wave sizes.
const (
	Size32 = 32
	Size64 = 64

	// MaxLanes is the widest wave a Mask can describe.
	MaxLanes = 64
)

// Mask is a ballot result: bit i is set when lane i voted true.
type Mask uint64

// Ballot returns the mask of lanes whose predicate is true.
func Ballot(pred []bool) Mask {
	var m Mask
	for lane, p := range pred {
		if p && lane < MaxLanes {
			m |= 1 << uint(lane)
		}
	}
	return m
}

// Count returns the number of set lanes.
func (m Mask) Count() int {
	return bits.OnesCount64(uint64(m))
}

// Has reports whether lane is set.
func (m Mask) Has(lane int) bool {
	return lane >= 0 && lane < MaxLanes && m&(1<<uint(lane)) != 0
}

// Mbcnt returns the number of set bits of m strictly below lane.
// For a ballot of accepted lanes this is the lane's exclusive rank.
func Mbcnt(m Mask, lane int) int {
	if lane <= 0 {
		return 0
	}
	if lane >= MaxLanes {
		return m.Count()
	}
	return bits.OnesCount64(uint64(m) & (1<<uint(lane) - 1))
}

// ReadLane broadcasts the value held by lane to the whole wave.
func ReadLane[T any](v []T, lane int) T {
	return v[lane]
}

// ReadFirstLane broadcasts the value of the lowest lane.
func ReadFirstLane[T any](v []T) T {
	return v[0]
}

// SADU8 adds the byte-wise absolute differences of a and b to acc.
// With b == 0 it sums the four packed bytes of a.
func SADU8(a, b, acc uint32) uint32 {
	for shift := uint(0); shift < 32; shift += 8 {
		x := (a >> shift) & 0xff
		y := (b >> shift) & 0xff
		if x >= y {
			acc += x - y
		} else {
			acc += y - x
		}
	}
	return acc
}

// Reduce returns the sum of all lane values.
func Reduce(v []uint32) uint32 {
	var sum uint32
	for _, x := range v {
		sum += x
	}
	return sum
}

// ExclusiveScan returns the per-lane sum of all lower lanes.
func ExclusiveScan(v []uint32) []uint32 {
	out := make([]uint32, len(v))
	var sum uint32
	for i, x := range v {
		out[i] = sum
		sum += x
	}
	return out
}

// NumWaves returns how many waves of waveSize lanes cover threads.
func NumWaves(threads, waveSize int) int {
	if threads <= 0 {
		return 0
	}
	return (threads + waveSize - 1) / waveSize
}
