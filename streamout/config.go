// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package streamout

import (
	"errors"
	"fmt"
)

const (
	// MaxBuffers is the number of streamout buffers.
	MaxBuffers = 4

	// MaxStreams is the number of vertex streams.
	MaxStreams = 4
)

var (
	// ErrInvalidConfig is returned for inconsistent output declarations.
	ErrInvalidConfig = errors.New("streamout: invalid configuration")

	// ErrOutOfBounds is returned when a write would land past the end of a
	// buffer.
	ErrOutOfBounds = errors.New("streamout: write out of buffer bounds")

	// ErrShortWrite is returned when a workgroup wrote fewer primitives than
	// its reservation holds, leaving a gap in the buffer.
	ErrShortWrite = errors.New("streamout: fewer primitives written than reserved")
)

// Output declares one captured shader output.
type Output struct {
	// Register is the shader output slot the components are read from.
	Register int

	// StartComponent and NumComponents select the captured components.
	StartComponent int
	NumComponents  int

	// Buffer is the destination buffer.
	Buffer int

	// DstOffset is the dword offset of the first component inside the
	// per-vertex record of the buffer.
	DstOffset uint32

	// Stream is the vertex stream the output belongs to.
	Stream int
}

// Config declares what is captured and how each buffer is laid out.
type Config struct {
	Outputs []Output

	// Strides holds the per-vertex stride of each buffer in dwords.
	Strides [MaxBuffers]uint32
}

// Validate checks that every output fits its buffer and that each buffer is
// fed by a single stream.
func (c Config) Validate() error {
	if len(c.Outputs) == 0 {
		return fmt.Errorf("%w: no outputs", ErrInvalidConfig)
	}
	streamFor := [MaxBuffers]int{-1, -1, -1, -1}
	for i, o := range c.Outputs {
		if o.Buffer < 0 || o.Buffer >= MaxBuffers {
			return fmt.Errorf("%w: output %d: buffer %d", ErrInvalidConfig, i, o.Buffer)
		}
		if o.Stream < 0 || o.Stream >= MaxStreams {
			return fmt.Errorf("%w: output %d: stream %d", ErrInvalidConfig, i, o.Stream)
		}
		if o.NumComponents < 1 || o.StartComponent < 0 || o.StartComponent+o.NumComponents > 4 {
			return fmt.Errorf("%w: output %d: components %d+%d", ErrInvalidConfig, i,
				o.StartComponent, o.NumComponents)
		}
		if o.Register < 0 {
			return fmt.Errorf("%w: output %d: register %d", ErrInvalidConfig, i, o.Register)
		}
		if streamFor[o.Buffer] >= 0 && streamFor[o.Buffer] != o.Stream {
			return fmt.Errorf("%w: buffer %d fed by streams %d and %d", ErrInvalidConfig,
				o.Buffer, streamFor[o.Buffer], o.Stream)
		}
		streamFor[o.Buffer] = o.Stream
		stride := c.Strides[o.Buffer]
		if stride == 0 || o.DstOffset+uint32(o.NumComponents) > stride {
			return fmt.Errorf("%w: output %d does not fit stride %d of buffer %d", ErrInvalidConfig,
				i, stride, o.Buffer)
		}
	}
	return nil
}

// StreamForBuffer returns the stream feeding each buffer, or -1.
func (c Config) StreamForBuffer() [MaxBuffers]int {
	m := [MaxBuffers]int{-1, -1, -1, -1}
	for _, o := range c.Outputs {
		m[o.Buffer] = o.Stream
	}
	return m
}

// BuffersForStream returns the bit mask of buffers fed by each stream.
func (c Config) BuffersForStream() [MaxStreams]uint8 {
	var m [MaxStreams]uint8
	for _, o := range c.Outputs {
		m[o.Stream] |= 1 << uint(o.Buffer)
	}
	return m
}

// StreamUsed reports whether any output belongs to stream.
func (c Config) StreamUsed(stream int) bool {
	for _, o := range c.Outputs {
		if o.Stream == stream {
			return true
		}
	}
	return false
}

// NumRegisters returns one past the highest output register captured.
func (c Config) NumRegisters() int {
	n := 0
	for _, o := range c.Outputs {
		n = max(n, o.Register+1)
	}
	return n
}
