package ngg

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/ngg/compact"
	"github.com/gogpu/ngg/cull"
	"github.com/gogpu/ngg/plan"
	"github.com/gogpu/ngg/streamout"
)

// Option configures a Pipeline during creation.
//
// Example:
//
//	// Back-face culling on a wave64 part
//	p, err := ngg.NewPipeline(
//	    ngg.WithWaveSize(64),
//	    ngg.WithPipelineState(gputypes.PrimitiveState{
//	        Topology: gputypes.PrimitiveTopologyTriangleList,
//	        CullMode: gputypes.CullModeBack,
//	    }, false),
//	)
type Option func(*pipelineOptions)

// pipelineOptions holds optional configuration for Pipeline creation.
type pipelineOptions struct {
	chip         plan.Chip
	waveSize     int
	subgroupSize int
	ldsBudget    uint32
	residency    int

	stage           compact.Stage
	usesInstanceID  bool
	usesPrimitiveID bool
	edgeFlags       bool

	culling   bool
	cull      cull.Options
	viewport  cull.Viewport
	precision float32

	streamout    *streamout.Config
	streamoutMem streamout.Memory

	err error
}

// defaultOptions returns triangle lists with view and W culling on a
// 256x256 target, one workgroup in flight per CPU.
func defaultOptions() pipelineOptions {
	return pipelineOptions{
		chip:         plan.ChipGFX103,
		waveSize:     64,
		subgroupSize: plan.DefaultSubgroupSize,
		ldsBudget:    plan.DefaultLDSDwords,
		stage:        compact.StageVertex,
		culling:      true,
		cull: cull.Options{
			CullViewXY:  true,
			CullW:       true,
			NumVertices: 3,
		},
		viewport:  cull.ViewportFromRect(0, 0, 256, 256),
		precision: cull.SmallPrimPrecision(1, 8),
	}
}

// WithChip selects the hardware generation limits used by the planner.
func WithChip(c plan.Chip) Option {
	return func(o *pipelineOptions) {
		o.chip = c
	}
}

// WithWaveSize sets the number of lanes per wave, 32 or 64.
func WithWaveSize(n int) Option {
	return func(o *pipelineOptions) {
		o.waveSize = n
	}
}

// WithSubgroupSize clamps the vertex and primitive count of a workgroup.
func WithSubgroupSize(n int) Option {
	return func(o *pipelineOptions) {
		o.subgroupSize = n
	}
}

// WithLDSBudget sets the shared memory available to one workgroup in dwords.
func WithLDSBudget(dwords uint32) Option {
	return func(o *pipelineOptions) {
		o.ldsBudget = dwords
	}
}

// WithLimits derives the shared memory budget and the subgroup size from
// device limits.
func WithLimits(l gputypes.Limits) Option {
	return func(o *pipelineOptions) {
		in := plan.InputFromLimits(l)
		o.ldsBudget = in.LDSBudgetDwords
		o.subgroupSize = min(o.subgroupSize, int(in.SubgroupSize))
	}
}

// WithResidency sets how many workgroups run at once. Zero uses GOMAXPROCS.
func WithResidency(n int) Option {
	return func(o *pipelineOptions) {
		o.residency = n
	}
}

// WithTessEval makes the workgroups consume tessellation evaluation output.
func WithTessEval(usesPrimitiveID bool) Option {
	return func(o *pipelineOptions) {
		o.stage = compact.StageTessEval
		o.usesPrimitiveID = usesPrimitiveID
	}
}

// WithInstanceID exports the instance id of vertex shader vertices.
func WithInstanceID() Option {
	return func(o *pipelineOptions) {
		o.usesInstanceID = true
	}
}

// WithEdgeFlags passes user edge flags through to primitive exports.
func WithEdgeFlags() Option {
	return func(o *pipelineOptions) {
		o.edgeFlags = true
	}
}

// WithCullOptions replaces the culling tests. It also sets the number of
// vertices per primitive.
func WithCullOptions(c cull.Options) Option {
	return func(o *pipelineOptions) {
		o.cull = c
		o.culling = true
	}
}

// WithoutCulling disables culling and compaction; workgroups pass their
// vertices and primitives through.
func WithoutCulling() Option {
	return func(o *pipelineOptions) {
		o.culling = false
	}
}

// WithPipelineState derives culling tests from rasterizer state.
func WithPipelineState(state gputypes.PrimitiveState, conservative bool) Option {
	return func(o *pipelineOptions) {
		c, err := cull.OptionsFromState(state, conservative)
		if err != nil {
			o.err = err
			return
		}
		o.cull = c
	}
}

// WithViewport sets the viewport transform used by small primitive culling.
func WithViewport(vp cull.Viewport) Option {
	return func(o *pipelineOptions) {
		o.viewport = vp
	}
}

// WithSmallPrimPrecision sets the small primitive culling precision.
func WithSmallPrimPrecision(p float32) Option {
	return func(o *pipelineOptions) {
		o.precision = p
	}
}

// WithStreamout captures primitives into mem before export. Streamout
// requires culling to be off and is applied in draw order.
func WithStreamout(cfg streamout.Config, mem streamout.Memory) Option {
	return func(o *pipelineOptions) {
		o.streamout = &cfg
		o.streamoutMem = mem
		o.culling = false
	}
}
