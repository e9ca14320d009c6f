// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gsemit

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/ngg/internal/lds"
	"github.com/gogpu/ngg/internal/wave"
	"github.com/gogpu/ngg/streamout"
)

// Primitive flag bits stored per stream in each slot.
const (
	flagComplete = 1 << 0
	flagOdd      = 1 << 1
)

var (
	// ErrTooManySlots is returned when threads times VerticesOut exceeds
	// MaxEmitSlots.
	ErrTooManySlots = errors.New("gsemit: too many vertex slots for workgroup")

	// ErrBadWaveSize is returned for wave sizes other than 32 and 64.
	ErrBadWaveSize = errors.New("gsemit: wave size must be 32 or 64")
)

// Config holds the per-draw state of the geometry stage.
type Config struct {
	Layout

	WaveSize int

	// FlatshadeFirst makes the first vertex of each triangle provoking.
	// Otherwise the last vertex is.
	FlatshadeFirst bool

	// Streamout captures primitives of every used stream.
	Streamout *streamout.Allocator

	// Query receives generated primitive counts when Streamout is nil.
	Query *streamout.Query
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.WaveSize != wave.Size32 && c.WaveSize != wave.Size64 {
		return fmt.Errorf("%w: got %d", ErrBadWaveSize, c.WaveSize)
	}
	return c.Layout.Validate()
}

// Workgroup is one geometry workgroup. EmitVertex and EndPrimitive may be
// called in any thread order; Epilogue runs once after every thread ended.
// It is not safe for concurrent use.
type Workgroup struct {
	cfg       Config
	threads   int
	orderedID uint32

	arena   *lds.Arena
	scratch *lds.Scratch

	next      [][streamout.MaxStreams]int
	curVerts  [][streamout.MaxStreams]int
	generated [][streamout.MaxStreams]uint32
}

// NewWorkgroup returns a workgroup of threads geometry threads. orderedID is
// its dispatch position for streamout.
func NewWorkgroup(cfg Config, threads int, orderedID uint32) (*Workgroup, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if threads < 0 || threads*cfg.VerticesOut > MaxEmitSlots {
		return nil, fmt.Errorf("%w: %d threads x %d vertices", ErrTooManySlots, threads, cfg.VerticesOut)
	}
	scratch := lds.ScratchDwords
	if cfg.Streamout != nil {
		scratch = lds.ScratchGSStreamoutDwords
	}
	return &Workgroup{
		cfg:       cfg,
		threads:   threads,
		orderedID: orderedID,
		arena:     lds.NewArena(max(threads*cfg.VerticesOut, 1), cfg.SlotDwords()),
		scratch:   lds.NewScratch(scratch),
		next:      make([][streamout.MaxStreams]int, threads),
		curVerts:  make([][streamout.MaxStreams]int, threads),
		generated: make([][streamout.MaxStreams]uint32, threads),
	}, nil
}

// Threads returns the number of geometry threads.
func (w *Workgroup) Threads() int { return w.threads }

// EmitVertex stores the registers of stream from outputs into the next slot
// of thread. Emits beyond VerticesOut are dropped and report false.
func (w *Workgroup) EmitVertex(thread, stream int, outputs [][4]float32) bool {
	idx := w.next[thread][stream]
	if idx >= w.cfg.VerticesOut {
		return false
	}
	w.next[thread][stream]++

	slot := w.cfg.EmitSlot(thread, idx)
	for r := 0; r < w.cfg.NumOutputs && r < len(outputs); r++ {
		if w.cfg.Stream(r) != stream {
			continue
		}
		for c := range 4 {
			w.arena.StoreFloat(slot, 4*r+c, outputs[r][c])
		}
	}

	vpp := w.cfg.VerticesPerPrim
	cur := w.curVerts[thread][stream]
	w.curVerts[thread][stream]++

	var flag uint8
	if cur >= vpp-1 {
		flag |= flagComplete
		w.generated[thread][stream]++
	}
	if stream == 0 && vpp == 3 && cur&1 == 1 {
		flag |= flagOdd
	}
	w.arena.StoreByteAt(slot, w.cfg.FlagDword(), stream, flag)
	return true
}

// EndPrimitive restarts the strip of stream on thread.
func (w *Workgroup) EndPrimitive(thread, stream int) {
	w.curVerts[thread][stream] = 0
}

func (w *Workgroup) flag(linear, stream int) uint8 {
	return w.arena.LoadByteAt(w.cfg.Slot(linear), w.cfg.FlagDword(), stream)
}

func (w *Workgroup) registers(linear int) []uint32 {
	slot := w.cfg.Slot(linear)
	regs := make([]uint32, 4*w.cfg.NumOutputs)
	for d := range regs {
		regs[d] = w.arena.Load(slot, d)
	}
	return regs
}

func (w *Workgroup) floatRegisters(linear int) [][4]float32 {
	regs := w.registers(linear)
	out := make([][4]float32, w.cfg.NumOutputs)
	for r := range out {
		for c := range 4 {
			out[r][c] = math.Float32frombits(regs[4*r+c])
		}
	}
	return out
}
