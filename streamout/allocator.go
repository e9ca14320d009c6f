// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package streamout

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrBadVerticesPerPrim is returned for primitive sizes outside 1..3.
var ErrBadVerticesPerPrim = errors.New("streamout: vertices per primitive must be 1, 2 or 3")

// Reservation is the outcome of one workgroup's allocation.
type Reservation struct {
	// Offsets holds the workgroup's base dword offset in each buffer.
	Offsets [MaxBuffers]uint32

	// Generated holds the primitives the workgroup produced per stream.
	Generated [MaxStreams]uint32

	// Emit holds the primitives that fit the buffers per stream.
	Emit [MaxStreams]uint32

	// VerticesPerPrim is the primitive size the reservation was made for.
	VerticesPerPrim uint32
}

// CheckWritten returns ErrShortWrite unless written matches Emit on every
// stream.
func (r Reservation) CheckWritten(written [MaxStreams]uint32) error {
	for s := range MaxStreams {
		if written[s] != r.Emit[s] {
			return fmt.Errorf("%w: stream %d wrote %d of %d", ErrShortWrite, s, written[s], r.Emit[s])
		}
	}
	return nil
}

// Allocator reserves buffer ranges for workgroups and writes their captured
// vertices.
type Allocator struct {
	cfg       Config
	counter   Counter
	mem       Memory
	query     *Query
	streamFor [MaxBuffers]int
	bufMask   [MaxStreams]uint8
}

// NewAllocator validates cfg and returns an allocator writing to mem through
// the cursors of counter. query may be nil.
func NewAllocator(cfg Config, counter Counter, mem Memory, query *Query) (*Allocator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if counter == nil || mem == nil {
		return nil, fmt.Errorf("%w: counter and memory are required", ErrInvalidConfig)
	}
	return &Allocator{
		cfg:       cfg,
		counter:   counter,
		mem:       mem,
		query:     query,
		streamFor: cfg.StreamForBuffer(),
		bufMask:   cfg.BuffersForStream(),
	}, nil
}

// Config returns the capture configuration.
func (a *Allocator) Config() Config {
	return a.cfg
}

// Allocate reserves space for generated primitives per stream. It issues
// exactly one ordered add, so every workgroup of a dispatch must call it once
// with its ordered id, even when it generated nothing.
//
// Streams that do not fit are clamped. The unused part of the reservation is
// subtracted from the cursor again, which lets later workgroups reuse it if
// they have not reserved yet.
func (a *Allocator) Allocate(ctx context.Context, orderedID uint32, generated [MaxStreams]uint32, verticesPerPrim uint32) (Reservation, error) {
	if verticesPerPrim < 1 || verticesPerPrim > 3 {
		return Reservation{}, fmt.Errorf("%w: %d", ErrBadVerticesPerPrim, verticesPerPrim)
	}

	var primStride, amounts [MaxBuffers]uint32
	for b, s := range a.streamFor {
		if s < 0 {
			continue
		}
		primStride[b] = a.cfg.Strides[b] * verticesPerPrim
		amounts[b] = generated[s] * primStride[b]
	}

	base, err := a.counter.ReserveOrdered(ctx, orderedID, amounts)
	if err != nil {
		return Reservation{}, err
	}

	var maxEmit [MaxBuffers]uint32
	for b, s := range a.streamFor {
		if s < 0 {
			continue
		}
		size := a.mem.Size(b)
		if size > base[b] {
			maxEmit[b] = (size - base[b]) / primStride[b]
		}
	}

	r := Reservation{
		Offsets:         base,
		Generated:       generated,
		VerticesPerPrim: verticesPerPrim,
	}
	for s := range MaxStreams {
		mask := a.bufMask[s]
		if mask == 0 {
			continue
		}
		emit := generated[s]
		for b := range MaxBuffers {
			if mask&(1<<uint(b)) != 0 {
				emit = min(emit, maxEmit[b])
			}
		}
		r.Emit[s] = emit
		if emit < generated[s] {
			for b := range MaxBuffers {
				if mask&(1<<uint(b)) != 0 {
					a.counter.Release(b, (generated[s]-emit)*primStride[b])
				}
			}
		}
	}

	if a.query != nil {
		a.query.Add(r)
	}
	return r, nil
}

// Capture describes the primitives a workgroup writes after allocation.
type Capture struct {
	// Threads is the number of threads in the workgroup.
	Threads int

	// Enable reports whether thread owns a primitive on stream.
	Enable func(stream, thread int) bool

	// Slot returns the primitive index of thread on stream among the enabled
	// threads. Nil uses the thread id.
	Slot func(stream, thread int) uint32

	// Vertex returns the output registers of vertex i of the thread's
	// primitive on stream, four dwords per register.
	Vertex func(stream, thread, i int) []uint32
}

// Write stores the captured vertices of every enabled primitive that fits
// its reservation and returns the number of primitives written per stream.
func (a *Allocator) Write(r Reservation, c Capture) ([MaxStreams]uint32, error) {
	var written [MaxStreams]uint32
	vpp := int(r.VerticesPerPrim)

	for s := range MaxStreams {
		if r.Emit[s] == 0 {
			continue
		}
		for t := range c.Threads {
			if !c.Enable(s, t) {
				continue
			}
			slot := uint32(t)
			if c.Slot != nil {
				slot = c.Slot(s, t)
			}
			if slot >= r.Emit[s] {
				continue
			}
			for i := range vpp {
				vtx := slot*r.VerticesPerPrim + uint32(i)
				if err := a.storeVertex(r, s, vtx, c.Vertex(s, t, i)); err != nil {
					return written, err
				}
			}
			written[s]++
		}
	}
	return written, nil
}

// storeVertex writes the outputs of stream for one vertex.
func (a *Allocator) storeVertex(r Reservation, stream int, vtx uint32, regs []uint32) error {
	for _, o := range a.cfg.Outputs {
		if o.Stream != stream {
			continue
		}
		addr := r.Offsets[o.Buffer] + vtx*a.cfg.Strides[o.Buffer] + o.DstOffset
		for c := range o.NumComponents {
			reg := 4*o.Register + o.StartComponent + c
			var v uint32
			if reg < len(regs) {
				v = regs[reg]
			}
			if err := a.mem.Store(o.Buffer, addr+uint32(c), v); err != nil {
				return err
			}
		}
	}
	return nil
}

// FloatRegisters flattens float registers to the dword layout Capture.Vertex
// returns.
func FloatRegisters(regs [][4]float32) []uint32 {
	out := make([]uint32, 0, 4*len(regs))
	for _, r := range regs {
		for _, c := range r {
			out = append(out, math.Float32bits(c))
		}
	}
	return out
}
