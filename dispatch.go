package ngg

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/ngg/compact"
	"github.com/gogpu/ngg/streamout"
)

var (
	// ErrBadIndex is returned for indices outside the draw's vertices.
	ErrBadIndex = errors.New("ngg: index out of range")

	// ErrIndexCount is returned when the index count is not a multiple of
	// the vertices per primitive.
	ErrIndexCount = errors.New("ngg: index count does not match primitive size")
)

// Draw is an indexed draw of already shaded vertices.
type Draw struct {
	Vertices []compact.Vertex

	// Indices holds NumVertices entries per primitive.
	Indices []uint32

	// EdgeFlags optionally holds the user edge flags of every primitive.
	EdgeFlags [][3]bool
}

// DrawResult is the compacted output of a draw.
type DrawResult struct {
	// Workgroups is the number of workgroups the draw was split into.
	Workgroups int

	// Vertices holds the exported vertices of every workgroup in order.
	Vertices []compact.VertexExport

	// Source maps each exported vertex to its index in Draw.Vertices.
	Source []int

	// Indices holds NumVertices entries per surviving primitive, indexing
	// Vertices.
	Indices []uint32

	// EdgeFlags holds the edge flags of every surviving primitive when
	// edge flags are enabled.
	EdgeFlags [][3]bool

	// Primitives is the number of input primitives.
	Primitives int

	// Accepted is the number of primitives that survived culling.
	Accepted int

	// KilledWaves counts waves that ended before export.
	KilledWaves int

	// Streamout holds the per-stream primitives written to the streamout
	// buffers.
	Streamout [streamout.MaxStreams]uint32
}

// batch is one workgroup's share of a draw.
type batch struct {
	in compact.Input

	// global maps workgroup-local vertex indices to draw vertices.
	global []int
}

// split assembles primitives into workgroups of at most maxVerts distinct
// vertices and maxPrims primitives, in draw order.
func split(d *Draw, vpp, maxVerts, maxPrims int) ([]batch, error) {
	if vpp < 1 || len(d.Indices)%vpp != 0 {
		return nil, fmt.Errorf("%w: %d indices, %d per primitive", ErrIndexCount, len(d.Indices), vpp)
	}

	var (
		batches []batch
		cur     batch
		local   = make(map[uint32]uint32)
	)
	flush := func() {
		if len(cur.in.Primitives) == 0 {
			return
		}
		cur.in.OrderedID = uint32(len(batches))
		batches = append(batches, cur)
		cur = batch{}
		clear(local)
	}

	numPrims := len(d.Indices) / vpp
	for k := range numPrims {
		idx := d.Indices[k*vpp : (k+1)*vpp]

		fresh := 0
		for i, v := range idx {
			if int(v) >= len(d.Vertices) {
				return nil, fmt.Errorf("%w: primitive %d vertex %d index %d", ErrBadIndex, k, i, v)
			}
			if _, ok := local[v]; !ok && !repeats(idx[:i], v) {
				fresh++
			}
		}
		if len(cur.global)+fresh > maxVerts || len(cur.in.Primitives) == maxPrims {
			flush()
		}

		var prim compact.Primitive
		for i, v := range idx {
			l, ok := local[v]
			if !ok {
				l = uint32(len(cur.global))
				local[v] = l
				cur.global = append(cur.global, int(v))
				cur.in.Vertices = append(cur.in.Vertices, d.Vertices[v])
			}
			prim.Index[i] = l
		}
		if k < len(d.EdgeFlags) {
			prim.EdgeFlags = d.EdgeFlags[k]
		}
		cur.in.Primitives = append(cur.in.Primitives, prim)
	}
	flush()
	return batches, nil
}

func repeats(idx []uint32, v uint32) bool {
	for _, u := range idx {
		if u == v {
			return true
		}
	}
	return false
}

// workgroupOutput is what one workgroup of a draw produced.
type workgroupOutput struct {
	rec compact.Recorder
	res compact.Result
	err error
}

// Draw splits d into workgroups, runs them on the workers and concatenates
// their exports in draw order.
//
// With streamout, workgroups reserve buffer space in draw order and the
// buffer cursors persist across draws. Cancelling ctx aborts workgroups that
// are still waiting for their turn.
func (p *Pipeline) Draw(ctx context.Context, d *Draw) (*DrawResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}

	vpp := p.cfg.Cull.NumVertices
	batches, err := split(d, vpp, int(p.plan.HWMaxESVerts), int(p.plan.MaxGSPrims))
	if err != nil {
		return nil, err
	}

	if p.gds != nil {
		p.gds.BeginDispatch()
	}

	// A failed workgroup cancels the others so none waits forever on an
	// ordered id that will never arrive.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outputs := make([]workgroupOutput, len(batches))
	var errOnce sync.Once
	var firstErr error
	work := make([]func(), len(batches))
	for i := range batches {
		work[i] = func() {
			out := &outputs[i]
			wg, err := compact.NewWorkgroup(p.cfg, batches[i].in)
			if err == nil {
				out.res, err = wg.Run(ctx, &out.rec)
			}
			if err != nil {
				out.err = err
				errOnce.Do(func() {
					firstErr = err
					cancel()
				})
			}
		}
	}
	p.pool.ExecuteAll(work)
	if firstErr != nil {
		return nil, fmt.Errorf("ngg: draw: %w", firstErr)
	}

	res := &DrawResult{
		Workgroups: len(batches),
		Primitives: len(d.Indices) / vpp,
	}
	for i := range outputs {
		res.merge(&outputs[i], batches[i].global, vpp, p.cfg.EdgeFlags)
	}

	if p.gds != nil {
		var generated uint32
		for i := range outputs {
			generated += outputs[i].res.Streamout.Generated[0]
		}
		if res.Streamout[0] < generated {
			Logger().Warn("ngg: streamout overflow",
				"generated", generated,
				"written", res.Streamout[0])
		}
	}

	Logger().Debug("ngg: draw",
		"workgroups", res.Workgroups,
		"primitives", res.Primitives,
		"accepted", res.Accepted,
		"vertices", len(res.Vertices),
		"killed_waves", res.KilledWaves)
	return res, nil
}

// merge appends one workgroup's exports, rebasing its vertex indices.
func (r *DrawResult) merge(out *workgroupOutput, global []int, vpp int, edgeFlags bool) {
	base := uint32(len(r.Vertices))
	for t := range int(out.rec.Vertices) {
		v := out.rec.Verts[t]
		r.Vertices = append(r.Vertices, v)
		r.Source = append(r.Source, global[v.OldThread])
	}
	for t := range int(out.rec.Primitives) {
		prim := out.rec.Prims[t]
		if prim.Null() {
			continue
		}
		var flags [3]bool
		for i := range vpp {
			r.Indices = append(r.Indices, base+prim.Index(i))
			flags[i] = prim.EdgeFlag(i)
		}
		if edgeFlags {
			r.EdgeFlags = append(r.EdgeFlags, flags)
		}
	}

	r.Accepted += out.res.Accepted
	r.KilledWaves += out.res.KilledWaves
	for s := range streamout.MaxStreams {
		r.Streamout[s] += out.res.Streamout.Emit[s]
	}
}
