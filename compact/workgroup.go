// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compact

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/ngg/cull"
	"github.com/gogpu/ngg/internal/lds"
	"github.com/gogpu/ngg/internal/wave"
	"github.com/gogpu/ngg/streamout"
)

// MaxThreads is the largest number of vertices or primitives in a workgroup.
// Compacted thread ids are stored in one byte.
const MaxThreads = 256

var (
	// ErrTooManyThreads is returned when a workgroup exceeds MaxThreads or
	// the wave budget of its configuration.
	ErrTooManyThreads = errors.New("compact: too many threads for workgroup")

	// ErrBadIndex is returned when a primitive references a vertex outside
	// the workgroup.
	ErrBadIndex = errors.New("compact: primitive index out of range")

	// ErrBadWaveSize is returned for wave sizes other than 32 and 64.
	ErrBadWaveSize = errors.New("compact: wave size must be 32 or 64")

	// ErrZCulling is returned when near or far plane culling is combined
	// with compaction; vertex records do not carry Z.
	ErrZCulling = errors.New("compact: Z culling is not supported")

	// ErrStreamoutWithCulling is returned when both culling and streamout
	// are requested; their vertex records overlap.
	ErrStreamoutWithCulling = errors.New("compact: streamout and culling are exclusive")
)

// Stage is the shader stage that produces the workgroup's vertices.
type Stage = lds.Stage

// Vertex stages.
const (
	StageVertex   = lds.StageVertex
	StageTessEval = lds.StageTessEval
)

// Config holds the per-draw state shared by all workgroups.
type Config struct {
	Stage    Stage
	WaveSize int

	// SubgroupSize bounds the threads of a workgroup and sets the number of
	// count bytes the aggregator reads.
	SubgroupSize int

	// Culling enables the cull and compaction phases. Without it vertices
	// and primitives pass through unchanged.
	Culling   bool
	Cull      cull.Options
	Viewport  cull.Viewport
	Precision float32

	UsesInstanceID  bool
	UsesPrimitiveID bool
	EdgeFlags       bool

	// Streamout captures primitives before export. It requires Culling to
	// be off.
	Streamout *streamout.Allocator
}

// MaxWaves returns the number of waves in a full subgroup.
func (c Config) MaxWaves() int {
	return wave.NumWaves(c.SubgroupSize, c.WaveSize)
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.WaveSize != wave.Size32 && c.WaveSize != wave.Size64 {
		return fmt.Errorf("%w: got %d", ErrBadWaveSize, c.WaveSize)
	}
	if c.SubgroupSize < 1 || c.SubgroupSize > MaxThreads || c.MaxWaves() > MaxWaves {
		return fmt.Errorf("%w: subgroup size %d", ErrTooManyThreads, c.SubgroupSize)
	}
	if err := c.Cull.Validate(); err != nil {
		return err
	}
	if c.Culling && (c.Cull.CullViewNearZ || c.Cull.CullViewFarZ) {
		return ErrZCulling
	}
	if c.Culling && c.Streamout != nil {
		return ErrStreamoutWithCulling
	}
	return nil
}

// Layout returns the vertex record layout the configuration needs.
func (c Config) Layout() lds.RecordLayout {
	l := lds.RecordLayout{
		Stage:           c.Stage,
		Culling:         c.Culling,
		UsesPrimitiveID: c.UsesPrimitiveID,
		EdgeFlags:       c.EdgeFlags,
	}
	if c.Streamout != nil {
		l.StreamoutOutputs = c.Streamout.Config().NumRegisters()
	}
	return l
}

// Vertex is the output of one vertex thread.
type Vertex struct {
	// Pos is the clip-space position.
	Pos [4]float32

	VertexID   uint32
	InstanceID uint32

	TessU          float32
	TessV          float32
	TessRelPatchID uint8
	TessPatchID    uint32

	// Outputs holds the other shader outputs by register.
	Outputs [][4]float32
}

// Primitive is the input of one primitive thread.
type Primitive struct {
	// Index holds workgroup-local vertex indices.
	Index     [3]uint32
	EdgeFlags [3]bool
}

// Input is the work of one workgroup.
type Input struct {
	Vertices   []Vertex
	Primitives []Primitive

	// OrderedID is the dispatch-order position of the workgroup, used by
	// streamout.
	OrderedID uint32
}

// Result summarizes one workgroup.
type Result struct {
	// Vertices and Primitives are the final allocation request.
	Vertices   uint32
	Primitives uint32

	// Accepted is the number of primitives that survived culling.
	Accepted int

	// KilledWaves counts waves that ended before export.
	KilledWaves int

	// NewThreadID maps every input vertex to its compacted thread, or -1
	// when the vertex was culled.
	NewThreadID []int

	// Streamout is the reservation made when streamout is attached.
	Streamout streamout.Reservation
}

// Workgroup is one workgroup of the pass. It is not safe for concurrent use;
// distinct workgroups may run concurrently.
type Workgroup struct {
	cfg     Config
	in      Input
	threads int
	waves   int
	arena   *lds.Arena
	scratch *lds.Scratch
}

// NewWorkgroup validates the input against cfg and allocates its shared
// memory.
func NewWorkgroup(cfg Config, in Input) (*Workgroup, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	nv, np := len(in.Vertices), len(in.Primitives)
	threads := max(nv, np)
	if nv > MaxThreads || np > MaxThreads || threads > cfg.MaxWaves()*cfg.WaveSize {
		return nil, fmt.Errorf("%w: %d vertices, %d primitives", ErrTooManyThreads, nv, np)
	}
	vpp := uint32(cfg.Cull.NumVertices)
	for i, p := range in.Primitives {
		for j := range vpp {
			if p.Index[j] >= uint32(nv) {
				return nil, fmt.Errorf("%w: primitive %d vertex %d index %d", ErrBadIndex, i, j, p.Index[j])
			}
		}
	}

	stride := max(lds.RecordDwords(cfg.Layout()), 1)
	return &Workgroup{
		cfg:     cfg,
		in:      in,
		threads: threads,
		waves:   max(wave.NumWaves(threads, cfg.WaveSize), 1),
		arena:   lds.NewArena(max(nv, 1), stride),
		scratch: lds.NewScratch(lds.ScratchDwords),
	}, nil
}

// Threads returns the number of threads of the workgroup.
func (w *Workgroup) Threads() int { return w.threads }

// Waves returns the number of waves of the workgroup.
func (w *Workgroup) Waves() int { return w.waves }

// Run executes every phase and exports through e.
func (w *Workgroup) Run(ctx context.Context, e Exporter) (Result, error) {
	if !w.cfg.Culling {
		return w.passthrough(ctx, e)
	}
	return w.Stage().Cull().Count().Compact().Export(e), nil
}

// passthrough exports vertices and primitives unchanged, capturing
// primitives for streamout first when an allocator is attached.
func (w *Workgroup) passthrough(ctx context.Context, e Exporter) (Result, error) {
	nv, np := len(w.in.Vertices), len(w.in.Primitives)
	res := Result{
		Vertices:    uint32(nv),
		Primitives:  uint32(np),
		Accepted:    np,
		NewThreadID: make([]int, nv),
	}
	for i := range res.NewThreadID {
		res.NewThreadID[i] = i
	}

	if w.cfg.Streamout != nil {
		r, err := w.streamout(ctx)
		if err != nil {
			return res, err
		}
		res.Streamout = r
	}

	e.AllocRequest(res.Vertices, res.Primitives)
	vpp := w.cfg.Cull.NumVertices
	for t, p := range w.in.Primitives {
		e.ExportPrimitive(t, PackPrimitive(p.Index, w.edgeFlags(p), vpp))
	}
	for t, v := range w.in.Vertices {
		e.ExportVertex(t, VertexExport{
			OldThread:      t,
			Pos:            v.Pos,
			VertexID:       v.VertexID,
			InstanceID:     w.instanceID(v),
			TessU:          v.TessU,
			TessV:          v.TessV,
			TessRelPatchID: v.TessRelPatchID,
			TessPatchID:    w.patchID(v),
			Outputs:        v.Outputs,
		})
	}
	return res, nil
}

// streamout stores the captured outputs of every vertex in its record,
// reserves buffer space from wave 0 and writes one primitive per thread.
func (w *Workgroup) streamout(ctx context.Context) (streamout.Reservation, error) {
	a := w.cfg.Streamout
	regs := a.Config().NumRegisters()
	for t, v := range w.in.Vertices {
		for r := 0; r < regs && r < len(v.Outputs); r++ {
			for c := range 4 {
				w.arena.StoreFloat(t, 4*r+c, v.Outputs[r][c])
			}
		}
	}
	// barrier

	np := len(w.in.Primitives)
	vpp := uint32(w.cfg.Cull.NumVertices)
	res, err := a.Allocate(ctx, w.in.OrderedID, [streamout.MaxStreams]uint32{uint32(np)}, vpp)
	if err != nil {
		return res, fmt.Errorf("compact: streamout workgroup %d: %w", w.in.OrderedID, err)
	}
	// barrier

	written, err := a.Write(res, streamout.Capture{
		Threads: w.threads,
		Enable: func(stream, thread int) bool {
			return stream == 0 && thread < np
		},
		Vertex: func(stream, thread, i int) []uint32 {
			rec := int(w.in.Primitives[thread].Index[i])
			out := make([]uint32, 4*regs)
			for d := range out {
				out[d] = w.arena.Load(rec, d)
			}
			return out
		},
	})
	if err == nil {
		err = res.CheckWritten(written)
	}
	if err != nil {
		return res, fmt.Errorf("compact: streamout workgroup %d: %w", w.in.OrderedID, err)
	}
	return res, nil
}

func (w *Workgroup) edgeFlags(p Primitive) [3]bool {
	if !w.cfg.EdgeFlags {
		return [3]bool{}
	}
	return p.EdgeFlags
}

func (w *Workgroup) instanceID(v Vertex) uint32 {
	if w.cfg.Stage != StageVertex || !w.cfg.UsesInstanceID {
		return 0
	}
	return v.InstanceID
}

func (w *Workgroup) patchID(v Vertex) uint32 {
	if w.cfg.Stage != StageTessEval || !w.cfg.UsesPrimitiveID {
		return 0
	}
	return v.TessPatchID
}
