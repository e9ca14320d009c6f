// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compact

import (
	"github.com/gogpu/ngg/cull"
	"github.com/gogpu/ngg/internal/lds"
	"github.com/gogpu/ngg/internal/wave"
)

// Staged is the workgroup after vertex threads stored their cull positions.
type Staged struct {
	w *Workgroup
}

// Culled is the workgroup after primitive threads marked their vertices.
type Culled struct {
	w        *Workgroup
	accepted []bool
}

// Counted is the workgroup after every wave published its survivor count.
type Counted struct {
	Culled
	ballots   []wave.Mask
	survivors []bool
}

// Compacted is the workgroup after survivors moved to their new records.
type Compacted struct {
	Counted
	newES    uint32
	numPrims uint32
	killed   []bool
	newID    []int
}

// Stage stores x/w, y/w and w of every vertex and clears its packed byte
// fields.
func (w *Workgroup) Stage() Staged {
	for t, v := range w.in.Vertices {
		p := cull.PerspectiveDivide(v.Pos)
		w.arena.Store(t, lds.PackedData, 0)
		w.arena.StoreFloat(t, lds.CullPosXDivW, p[0])
		w.arena.StoreFloat(t, lds.CullPosYDivW, p[1])
		w.arena.StoreFloat(t, lds.CullPosW, p[3])
	}
	return Staged{w: w}
}

// acceptTarget is the userdata passed to the cull callback.
type acceptTarget struct {
	w        *Workgroup
	thread   int
	accepted []bool
}

// markAccepted records a visible primitive and flags its vertices.
func markAccepted(accepted bool, userdata any) {
	if !accepted {
		return
	}
	t := userdata.(*acceptTarget)
	t.accepted[t.thread] = true
	p := t.w.in.Primitives[t.thread]
	for i := range t.w.cfg.Cull.NumVertices {
		t.w.arena.StoreByte(int(p.Index[i]), lds.ByteAcceptFlag, 1)
	}
}

// Cull runs the culling tests on every primitive.
func (s Staged) Cull() Culled {
	w := s.w
	accepted := make([]bool, len(w.in.Primitives))
	vpp := w.cfg.Cull.NumVertices

	target := &acceptTarget{w: w, accepted: accepted}
	for t, p := range w.in.Primitives {
		prim := cull.Primitive{NumVertices: vpp}
		for i := range vpp {
			rec := int(p.Index[i])
			prim.Pos[i] = [4]float32{
				w.arena.LoadFloat(rec, lds.CullPosXDivW),
				w.arena.LoadFloat(rec, lds.CullPosYDivW),
				0,
				w.arena.LoadFloat(rec, lds.CullPosW),
			}
		}
		target.thread = t
		cull.CullPrimitive(prim, true, w.cfg.Viewport, w.cfg.Precision, w.cfg.Cull, markAccepted, target)
	}
	return Culled{w: w, accepted: accepted}
}

// Count ballots the accept flags of each wave and stores the popcount in the
// wave's scratch byte.
func (c Culled) Count() Counted {
	w := c.w
	nv := len(w.in.Vertices)
	ws := w.cfg.WaveSize

	survivors := make([]bool, nv)
	ballots := make([]wave.Mask, w.waves)
	pred := make([]bool, ws)
	for wv := range w.waves {
		for lane := range ws {
			t := wv*ws + lane
			pred[lane] = t < nv && w.arena.LoadByte(t, lds.ByteAcceptFlag) != 0
			if t < nv {
				survivors[t] = pred[lane]
			}
		}
		ballots[wv] = wave.Ballot(pred)
		w.scratch.StoreByte(wv, uint8(ballots[wv].Count()))
	}
	return Counted{Culled: c, ballots: ballots, survivors: survivors}
}

// Compact assigns every surviving vertex the id prefix+mbcnt and moves its
// position and payload to the record of that id. Waves without work left
// are killed.
func (c Counted) Compact() Compacted {
	w := c.w
	ws := w.cfg.WaveSize
	newID := make([]int, len(w.in.Vertices))
	for i := range newID {
		newID[i] = -1
	}

	var newES uint32
	for wv := range w.waves {
		total, prefix := LoadVertexCounts(w.scratch, w.cfg.MaxWaves(), w.waves, wv, ws)
		newES = total
		for lane := range ws {
			t := wv*ws + lane
			if t >= len(c.survivors) || !c.survivors[t] {
				continue
			}
			id := int(prefix) + wave.Mbcnt(c.ballots[wv], lane)
			newID[t] = id
			w.arena.StoreByte(t, lds.ByteNewThreadID, uint8(id))
			w.storePayload(t, id)
		}
	}

	numPrims := uint32(len(w.in.Primitives))
	if newES == 0 {
		numPrims = 0
	}

	live := max(newES, numPrims)
	killed := make([]bool, w.waves)
	for wv := range w.waves {
		killed[wv] = live <= uint32(wv*ws)
	}
	return Compacted{Counted: c, newES: newES, numPrims: numPrims, killed: killed, newID: newID}
}

// storePayload writes what the compacted thread id needs to re-run the
// vertex into record id.
func (w *Workgroup) storePayload(old, id int) {
	v := w.in.Vertices[old]
	a := w.arena
	a.StoreByte(id, lds.ByteAcceptFlag, uint8(old))
	a.StoreFloat(id, lds.PosX, v.Pos[0])
	a.StoreFloat(id, lds.PosY, v.Pos[1])
	a.StoreFloat(id, lds.PosZ, v.Pos[2])
	a.StoreFloat(id, lds.PosW, v.Pos[3])

	if w.cfg.Stage == StageTessEval {
		a.StoreFloat(id, lds.TessU, v.TessU)
		a.StoreFloat(id, lds.TessV, v.TessV)
		a.StoreByte(id, lds.ByteTessRelPatchID, v.TessRelPatchID)
		if w.cfg.UsesPrimitiveID {
			a.Store(id, lds.TessPatchID, v.TessPatchID)
		}
		return
	}
	a.Store(id, lds.VertexID, v.VertexID)
	if w.cfg.UsesInstanceID {
		a.Store(id, lds.InstanceID, v.InstanceID)
	}
}

// Export sends the allocation request and exports every primitive and
// compacted vertex.
func (c Compacted) Export(e Exporter) Result {
	w := c.w
	res := Result{
		NewThreadID: c.newID,
	}
	for _, k := range c.killed {
		if k {
			res.KilledWaves++
		}
	}
	for _, a := range c.accepted {
		if a {
			res.Accepted++
		}
	}

	if c.killed[0] {
		e.AllocRequest(0, 0)
		return res
	}
	// barrier

	res.Vertices, res.Primitives = c.newES, c.numPrims
	e.AllocRequest(c.newES, c.numPrims)

	vpp := w.cfg.Cull.NumVertices
	for t := range int(c.numPrims) {
		if !c.accepted[t] {
			e.ExportPrimitive(t, NullPrimitive)
			continue
		}
		p := w.in.Primitives[t]
		var idx [3]uint32
		for i := range vpp {
			idx[i] = uint32(w.arena.LoadByte(int(p.Index[i]), lds.ByteNewThreadID))
		}
		e.ExportPrimitive(t, PackPrimitive(idx, w.edgeFlags(p), vpp))
	}

	for t := range int(c.newES) {
		e.ExportVertex(t, w.loadPayload(t))
	}
	return res
}

// loadPayload reads the record a compacted thread runs from.
func (w *Workgroup) loadPayload(id int) VertexExport {
	a := w.arena
	old := int(a.LoadByte(id, lds.ByteAcceptFlag))
	v := VertexExport{
		OldThread: old,
		Pos: [4]float32{
			a.LoadFloat(id, lds.PosX),
			a.LoadFloat(id, lds.PosY),
			a.LoadFloat(id, lds.PosZ),
			a.LoadFloat(id, lds.PosW),
		},
		Outputs: w.in.Vertices[old].Outputs,
	}
	if w.cfg.Stage == StageTessEval {
		v.TessU = a.LoadFloat(id, lds.TessU)
		v.TessV = a.LoadFloat(id, lds.TessV)
		v.TessRelPatchID = a.LoadByte(id, lds.ByteTessRelPatchID)
		if w.cfg.UsesPrimitiveID {
			v.TessPatchID = a.Load(id, lds.TessPatchID)
		}
		return v
	}
	v.VertexID = a.Load(id, lds.VertexID)
	if w.cfg.UsesInstanceID {
		v.InstanceID = a.Load(id, lds.InstanceID)
	}
	return v
}
