// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package streamout

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrOrderedIDReused is returned when an ordered id reserves twice.
var ErrOrderedIDReused = errors.New("streamout: ordered id already reserved")

// Counter holds the per-buffer write cursors shared by all workgroups.
type Counter interface {
	// ReserveOrdered adds amounts to the cursors and returns their previous
	// values. The add of orderedID is applied only after the adds of every
	// lower id, so it may block.
	ReserveOrdered(ctx context.Context, orderedID uint32, amounts [MaxBuffers]uint32) ([MaxBuffers]uint32, error)

	// Release subtracts amount from the cursor of buffer without ordering.
	Release(buffer int, amount uint32)
}

// GDS is an in-memory Counter. Ordered ids start at zero for every dispatch;
// see BeginDispatch.
//
// Thread safety: GDS is safe for concurrent use.
type GDS struct {
	mu      sync.Mutex
	cond    *sync.Cond
	next    uint32
	offsets [MaxBuffers]uint32
}

// NewGDS returns a counter with all cursors at zero.
func NewGDS() *GDS {
	g := &GDS{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// BeginDispatch restarts ordering at id zero. Cursors are kept so that
// consecutive draws append to the same buffers.
func (g *GDS) BeginDispatch() {
	g.mu.Lock()
	g.next = 0
	g.mu.Unlock()
}

// Offsets returns the current cursors in dwords.
func (g *GDS) Offsets() [MaxBuffers]uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.offsets
}

// SetOffsets replaces the cursors, for example to resume appending to
// buffers that already hold data.
func (g *GDS) SetOffsets(offsets [MaxBuffers]uint32) {
	g.mu.Lock()
	g.offsets = offsets
	g.mu.Unlock()
}

// ReserveOrdered implements Counter.
func (g *GDS) ReserveOrdered(ctx context.Context, orderedID uint32, amounts [MaxBuffers]uint32) ([MaxBuffers]uint32, error) {
	stop := context.AfterFunc(ctx, func() {
		g.mu.Lock()
		g.cond.Broadcast()
		g.mu.Unlock()
	})
	defer stop()

	g.mu.Lock()
	defer g.mu.Unlock()

	if orderedID < g.next {
		return [MaxBuffers]uint32{}, fmt.Errorf("%w: %d", ErrOrderedIDReused, orderedID)
	}
	for orderedID != g.next {
		if err := ctx.Err(); err != nil {
			return [MaxBuffers]uint32{}, fmt.Errorf("streamout: waiting for ordered id %d: %w", orderedID, err)
		}
		g.cond.Wait()
	}

	prev := g.offsets
	for b, a := range amounts {
		g.offsets[b] += a
	}
	g.next++
	g.cond.Broadcast()
	return prev, nil
}

// Release implements Counter.
func (g *GDS) Release(buffer int, amount uint32) {
	g.mu.Lock()
	g.offsets[buffer] -= amount
	g.mu.Unlock()
}
