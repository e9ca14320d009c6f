// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gsemit

import (
	"context"
	"fmt"

	"github.com/gogpu/ngg/compact"
	"github.com/gogpu/ngg/internal/lds"
	"github.com/gogpu/ngg/internal/wave"
	"github.com/gogpu/ngg/streamout"
)

// Result summarizes the epilogue of one workgroup.
type Result struct {
	// Vertices and Primitives are the allocation request.
	Vertices   uint32
	Primitives uint32

	// Generated holds the complete primitives per stream.
	Generated [streamout.MaxStreams]uint32

	// Streamout is the reservation made when streamout is attached.
	Streamout streamout.Reservation
}

// Epilogue finishes the workgroup and exports through e.
func (w *Workgroup) Epilogue(ctx context.Context, e compact.Exporter) (Result, error) {
	cfg := w.cfg
	vpp := cfg.VerticesPerPrim
	ws := cfg.WaveSize

	// Slots a thread never emitted still hold stale flags.
	for s := range streamout.MaxStreams {
		if !cfg.StreamUsed(s) {
			continue
		}
		for t := range w.threads {
			for idx := w.next[t][s]; idx < cfg.VerticesOut; idx++ {
				w.arena.StoreByteAt(cfg.EmitSlot(t, idx), cfg.FlagDword(), s, 0)
			}
			w.next[t][s] = cfg.VerticesOut
		}
	}

	for s := range streamout.MaxStreams {
		if !cfg.StreamUsed(s) {
			continue
		}
		counts := make([]uint32, w.threads)
		for t := range w.threads {
			counts[t] = w.generated[t][s]
		}
		for wv := range wave.NumWaves(w.threads, ws) {
			lo := wv * ws
			w.scratch.Add(lds.ScratchGSGenerated+s, wave.Reduce(counts[lo:min(lo+ws, w.threads)]))
		}
	}
	// barrier

	var res Result
	for s := range streamout.MaxStreams {
		res.Generated[s] = w.scratch.Load(lds.ScratchGSGenerated + s)
	}

	numEmit := w.threads * cfg.VerticesOut
	tgThreads := max(w.threads, numEmit)
	maxWaves := MaxEmitSlots / ws

	if cfg.Streamout != nil {
		r, err := w.streamout(ctx, res.Generated, numEmit, tgThreads, maxWaves)
		if err != nil {
			return res, err
		}
		res.Streamout = r
	} else if cfg.Query != nil {
		for s := range streamout.MaxStreams {
			if res.Generated[s] != 0 {
				cfg.Query.AddGenerated(s, res.Generated[s])
			}
		}
	}

	// A vertex is live when a primitive completing at it or at one of the
	// next vpp-1 vertices uses it.
	live := make([]uint32, tgThreads)
	for tid := range numEmit {
		for i := 0; i < vpp && tid+i < numEmit; i++ {
			if w.flag(tid+i, 0)&flagComplete != 0 {
				live[tid] = 1
				break
			}
		}
	}
	scan := wave.ScanWorkgroup(live, ws, maxWaves)

	if scan.Reduce == 0 {
		numEmit = 0
	}
	res.Vertices, res.Primitives = scan.Reduce, uint32(numEmit)
	e.AllocRequest(res.Vertices, res.Primitives)

	// Reverse permutation in the stream 1 flag bytes.
	for tid, l := range live {
		if l != 0 {
			w.arena.StoreByteAt(cfg.Slot(int(scan.Exclusive[tid])), cfg.FlagDword(), 1, uint8(tid))
		}
	}
	// barrier

	for tid := range numEmit {
		flags := w.flag(tid, 0)
		if flags&flagComplete == 0 {
			e.ExportPrimitive(tid, compact.NullPrimitive)
			continue
		}
		var idx [3]uint32
		for i := range vpp {
			idx[i] = scan.Exclusive[tid] - uint32(vpp-1-i)
		}
		if vpp == 3 {
			idx = StripToTriangle(idx, flags&flagOdd != 0, cfg.FlatshadeFirst)
		}
		e.ExportPrimitive(tid, compact.PackPrimitive(idx, [3]bool{}, vpp))
	}

	for tid := range int(scan.Reduce) {
		old := int(w.arena.LoadByteAt(cfg.Slot(tid), cfg.FlagDword(), 1))
		outputs := w.floatRegisters(old)
		e.ExportVertex(tid, compact.VertexExport{
			OldThread: old,
			Pos:       outputs[0],
			Outputs:   outputs,
		})
	}
	return res, nil
}

// streamout reserves buffer space for every used stream and writes the
// complete primitives.
func (w *Workgroup) streamout(ctx context.Context, generated [streamout.MaxStreams]uint32,
	numEmit, tgThreads, maxWaves int) (streamout.Reservation, error) {
	cfg := w.cfg
	vpp := cfg.VerticesPerPrim

	r, err := cfg.Streamout.Allocate(ctx, w.orderedID, generated, uint32(vpp))
	if err != nil {
		return r, fmt.Errorf("gsemit: streamout workgroup %d: %w", w.orderedID, err)
	}
	for s := range streamout.MaxStreams {
		w.scratch.Store(lds.ScratchGSEmit+s, r.Emit[s])
	}
	// barrier

	var enable [streamout.MaxStreams][]bool
	var slots [streamout.MaxStreams][]uint32
	for s := range streamout.MaxStreams {
		if !cfg.StreamUsed(s) {
			continue
		}
		enable[s] = make([]bool, tgThreads)
		bits := make([]uint32, tgThreads)
		for tid := range numEmit {
			if w.flag(tid, s)&flagComplete != 0 {
				enable[s][tid] = true
				bits[tid] = 1
			}
		}
		slots[s] = wave.ScanWorkgroup(bits, cfg.WaveSize, maxWaves).Exclusive
	}

	written, err := cfg.Streamout.Write(r, streamout.Capture{
		Threads: tgThreads,
		Enable: func(stream, thread int) bool {
			return enable[stream] != nil && enable[stream][thread]
		},
		Slot: func(stream, thread int) uint32 {
			return slots[stream][thread]
		},
		Vertex: func(stream, thread, i int) []uint32 {
			return w.registers(thread - (vpp - 1 - i))
		},
	})
	if err == nil {
		err = r.CheckWritten(written)
	}
	if err != nil {
		return r, fmt.Errorf("gsemit: streamout workgroup %d: %w", w.orderedID, err)
	}
	return r, nil
}

// StripToTriangle reorders the indices of a triangle taken from a strip.
// Odd triangles swap two indices to restore their winding; which two depends
// on the provoking vertex, which keeps its position.
func StripToTriangle(idx [3]uint32, odd, flatshadeFirst bool) [3]uint32 {
	if !odd {
		return idx
	}
	if flatshadeFirst {
		return [3]uint32{idx[0], idx[2], idx[1]}
	}
	return [3]uint32{idx[1], idx[0], idx[2]}
}
