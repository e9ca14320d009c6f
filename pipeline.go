package ngg

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/ngg/compact"
	"github.com/gogpu/ngg/internal/lds"
	"github.com/gogpu/ngg/internal/parallel"
	"github.com/gogpu/ngg/kernel"
	"github.com/gogpu/ngg/plan"
	"github.com/gogpu/ngg/streamout"
)

var (
	// ErrWorkgroupTooLarge is returned when the plan sizes a workgroup
	// beyond what one workgroup can compact.
	ErrWorkgroupTooLarge = errors.New("ngg: workgroup too large")

	// ErrClosed is returned by Draw after Close.
	ErrClosed = errors.New("ngg: pipeline closed")
)

// Pipeline runs draws through the culling and compaction pass.
//
// Thread safety: Pipeline is safe for concurrent use. Draws are serialized
// because each draw restarts the ordered ids of the streamout counter.
type Pipeline struct {
	opts pipelineOptions
	plan plan.SubgroupPlan
	cfg  compact.Config
	pool *parallel.WorkerPool

	gds   *streamout.GDS
	query *streamout.Query

	mu     sync.Mutex
	closed bool
}

// NewPipeline plans the workgroup size for the configured variant and
// starts the workers.
func NewPipeline(opts ...Option) (*Pipeline, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.err != nil {
		return nil, o.err
	}

	p := &Pipeline{opts: o}
	p.cfg = compact.Config{
		Stage:           o.stage,
		WaveSize:        o.waveSize,
		Culling:         o.culling,
		Cull:            o.cull,
		Viewport:        o.viewport,
		Precision:       o.precision,
		UsesInstanceID:  o.usesInstanceID,
		UsesPrimitiveID: o.usesPrimitiveID,
		EdgeFlags:       o.edgeFlags,
	}

	if o.streamout != nil {
		p.gds = streamout.NewGDS()
		p.query = &streamout.Query{}
		alloc, err := streamout.NewAllocator(*o.streamout, p.gds, o.streamoutMem, p.query)
		if err != nil {
			return nil, fmt.Errorf("ngg: %w", err)
		}
		p.cfg.Streamout = alloc
	}

	stage := plan.StageVertex
	if o.stage == compact.StageTessEval {
		stage = plan.StageTessEval
	}
	in := plan.Input{
		Chip:            o.chip,
		WaveSize:        uint32(o.waveSize),
		SubgroupSize:    uint32(max(o.subgroupSize, 0)),
		LDSBudgetDwords: o.ldsBudget,
		Stage:           stage,
		VerticesPerPrim: uint32(max(o.cull.NumVertices, 0)),
		ESVertexDwords:  uint32(lds.RecordDwords(p.cfg.Layout())),
		Streamout:       o.streamout != nil,
	}
	sp, err := plan.Must(in)
	if err != nil {
		Logger().Warn("ngg: infeasible plan", "plan", sp.String())
		return nil, err
	}
	p.plan = sp

	threads := max(sp.HWMaxESVerts, sp.MaxGSPrims)
	if threads > compact.MaxThreads {
		return nil, fmt.Errorf("%w: %d threads", ErrWorkgroupTooLarge, threads)
	}
	p.cfg.SubgroupSize = int(threads)
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}

	// Ordered reservations need workers that never run a later workgroup
	// ahead of an earlier one they own.
	if o.streamout != nil {
		p.pool = parallel.NewOrderedWorkerPool(o.residency)
	} else {
		p.pool = parallel.NewWorkerPool(o.residency)
	}

	Logger().Debug("ngg: pipeline created",
		"plan", sp.String(),
		"wave_size", o.waveSize,
		"culling", o.culling,
		"streamout", o.streamout != nil,
		"workers", p.pool.Workers())
	return p, nil
}

// Plan returns the subgroup plan the pipeline was sized with.
func (p *Pipeline) Plan() plan.SubgroupPlan { return p.plan }

// Config returns the per-workgroup configuration.
func (p *Pipeline) Config() compact.Config { return p.cfg }

// Program returns the compute shader equivalent of the pipeline's culling
// variant. Pipelines with the same variant share the program.
func (p *Pipeline) Program() (*kernel.Program, error) {
	return kernel.Cached(p.plan, kernel.Options{
		Cull:     p.cfg.Cull,
		WaveSize: uint32(p.cfg.WaveSize),
	})
}

// StreamoutOffsets returns the streamout buffer cursors in dwords.
func (p *Pipeline) StreamoutOffsets() [streamout.MaxBuffers]uint32 {
	if p.gds == nil {
		return [streamout.MaxBuffers]uint32{}
	}
	return p.gds.Offsets()
}

// SetStreamoutOffsets moves the streamout buffer cursors, for example to
// rewind the buffers between frames.
func (p *Pipeline) SetStreamoutOffsets(offsets [streamout.MaxBuffers]uint32) {
	if p.gds != nil {
		p.gds.SetOffsets(offsets)
	}
}

// Query returns the streamout statistics of stream since the last
// ResetQuery.
func (p *Pipeline) Query(stream int) streamout.QueryResult {
	if p.query == nil {
		return streamout.QueryResult{}
	}
	return p.query.Result(stream)
}

// ResetQuery clears the streamout statistics.
func (p *Pipeline) ResetQuery() {
	if p.query != nil {
		p.query.Reset()
	}
}

// Close stops the workers. It is safe to call more than once.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.pool.Close()
}
