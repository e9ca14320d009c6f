// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cull

import (
	"errors"
	"fmt"
	"math"
)

// Sub-pixel precisions of the rasterizer's fixed-point position formats.
const (
	SubpixelBits8  = 8  // 16.8 fixed point
	SubpixelBits10 = 10 // 14.10 fixed point
	SubpixelBits12 = 12 // 12.12 fixed point
)

// ErrPrecisionNotEncodable is returned by PackPrecision for values that are
// not a power of two in [2^-15, 1].
var ErrPrecisionNotEncodable = errors.New("cull: small primitive precision not encodable")

// SmallPrimPrecision returns the half-width by which the small primitive test
// grows a bounding box: the sample count divided by the number of sub-pixel
// steps per pixel.
func SmallPrimPrecision(samples uint32, subpixelBits uint) float32 {
	if samples == 0 {
		samples = 1
	}
	return float32(samples) / float32(uint32(1)<<subpixelBits)
}

// PackPrecision encodes a power-of-two precision into the 4-bit field that
// per-draw state carries: the low four bits of the float exponent.
func PackPrecision(p float32) (uint32, error) {
	b := math.Float32bits(p)
	exp := b >> 23
	if b&(1<<23-1) != 0 || exp < 0x70 || exp > 0x7f {
		return 0, fmt.Errorf("%w: %v", ErrPrecisionNotEncodable, p)
	}
	return exp & 0xf, nil
}

// UnpackPrecision decodes a 4-bit precision field into 2^(field-15).
func UnpackPrecision(field uint32) float32 {
	return math.Float32frombits((field&0xf | 0x70) << 23)
}
