// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package plan

import (
	"errors"
	"fmt"

	"github.com/gogpu/ngg/internal/lds"
)

// ErrInfeasible is returned by Must when no capacity pair satisfies the
// hardware constraints.
var ErrInfeasible = errors.New("plan: no feasible subgroup size")

// Chip selects hardware-generation specific limits.
type Chip uint8

const (
	// ChipGFX10 is the first generation with merged geometry workgroups.
	ChipGFX10 Chip = iota

	// ChipGFX103 raises the minimum vertex count to 29.
	ChipGFX103
)

// Stage is the last pre-rasterization stage of the merged workgroup.
type Stage uint8

const (
	StageVertex Stage = iota
	StageTessEval
	StageGeometry
)

const (
	// DefaultLDSDwords is the shared memory the geometry engine can use per
	// workgroup.
	DefaultLDSDwords = 8 * 1024

	// DefaultSubgroupSize is the default vertex and primitive count clamp.
	DefaultSubgroupSize = 128

	// MaxOutVertices is the largest vertex count a workgroup can export.
	MaxOutVertices = 256

	// maxPlanIterations bounds the wave rounding loop.
	maxPlanIterations = 16
)

// Input describes the shader variant being sized.
type Input struct {
	Chip     Chip
	WaveSize uint32

	// SubgroupSize clamps both the vertex and the primitive count.
	SubgroupSize uint32

	// LDSBudgetDwords is the shared memory available to one workgroup.
	LDSBudgetDwords uint32

	Stage Stage

	// ESIsTessEval reports a tessellation evaluation shader feeding a
	// geometry shader. Such pipelines cannot use per-instance workgroups.
	ESIsTessEval bool

	// VerticesPerPrim is the vertex count of the input primitive.
	VerticesPerPrim uint32

	// Adjacency is set for topologies with adjacency, which halves vertex
	// reuse.
	Adjacency bool

	// ESVertexDwords is the shared-memory footprint of one input vertex.
	ESVertexDwords uint32

	// GSVerticesOut is the declared maximum number of emitted vertices.
	GSVerticesOut uint32

	// GSInvocations is the geometry shader instancing count.
	GSInvocations uint32

	// GSVertexDwords is the footprint of one emitted vertex's outputs.
	GSVertexDwords uint32

	// Streamout reserves the larger streamout scratch area for geometry
	// shaders.
	Streamout bool
}

// SubgroupPlan is the sizing baked into a shader variant.
type SubgroupPlan struct {
	HWMaxESVerts  uint32
	MaxGSPrims    uint32
	MaxOutVerts   uint32
	PrimAmpFactor uint32

	// MaxVertOutPerGSInstance marks the mode in which every geometry shader
	// instance gets its own workgroup.
	MaxVertOutPerGSInstance bool

	// ESGSRingDwords counts only vertices that can occur in the workgroup.
	ESGSRingDwords uint32
	EmitDwords     uint32
	ScratchDwords  uint32

	// LDSBudgetDwords is the budget the ring and emit areas were fitted to.
	LDSBudgetDwords uint32
}

// LDSUsedDwords returns the shared memory the plan occupies.
func (p SubgroupPlan) LDSUsedDwords() uint32 {
	return p.ESGSRingDwords + p.EmitDwords + p.ScratchDwords
}

// String returns a compact description for logs.
func (p SubgroupPlan) String() string {
	return fmt.Sprintf("esverts=%d gsprims=%d outverts=%d amp=%d lds=%d/%d",
		p.HWMaxESVerts, p.MaxGSPrims, p.MaxOutVerts, p.PrimAmpFactor,
		p.LDSUsedDwords(), p.LDSBudgetDwords+p.ScratchDwords)
}

// MinESVerts returns the hardware minimum of HWMaxESVerts.
func (in Input) MinESVerts() uint32 {
	if in.Chip >= ChipGFX103 {
		return 29
	}
	return 24 - 1 + in.VerticesPerPrim
}

// ScratchDwords returns the workgroup scratch size of the variant.
func (in Input) ScratchDwords() uint32 {
	if in.Stage == StageGeometry && in.Streamout {
		return lds.ScratchGSStreamoutDwords
	}
	return lds.ScratchDwords
}

func (in Input) withDefaults() Input {
	if in.WaveSize == 0 {
		in.WaveSize = 64
	}
	if in.SubgroupSize == 0 {
		in.SubgroupSize = DefaultSubgroupSize
	}
	if in.LDSBudgetDwords == 0 {
		in.LDSBudgetDwords = DefaultLDSDwords
	}
	if in.VerticesPerPrim == 0 {
		in.VerticesPerPrim = 3
	}
	if in.GSInvocations == 0 {
		in.GSInvocations = 1
	}
	return in
}

// Plan computes the workgroup sizing of a shader variant. The boolean is
// false when no capacity pair satisfies the hardware constraints within the
// shared memory budget; the returned plan is then only informative.
func Plan(in Input) (SubgroupPlan, bool) {
	in = in.withDefaults()

	scratch := in.ScratchDwords()
	maxLDS := subSat(in.LDSBudgetDwords, scratch)
	target := maxLDS
	vpp := in.VerticesPerPrim
	minESVerts := in.MinESVerts()

	minVertsPerPrim := uint32(1)
	if in.Stage == StageGeometry {
		minVertsPerPrim = vpp
	}

	gsprimsBase := in.SubgroupSize
	esvertsBase := in.SubgroupSize
	perInstance := false

	var esvertSize, gsprimSize uint32
	if in.Stage == StageGeometry {
		outPerPrim := in.GSVerticesOut * in.GSInvocations
		forceMultiCycling := false
		for {
			if outPerPrim <= MaxOutVertices && !forceMultiCycling {
				if outPerPrim > 0 {
					gsprimsBase = min(gsprimsBase, MaxOutVertices/outPerPrim)
				}
			} else {
				perInstance = true
				gsprimsBase = 1
				outPerPrim = in.GSVerticesOut
			}

			esvertSize = in.ESVertexDwords
			gsprimSize = (in.GSVertexDwords + 1) * outPerPrim

			if gsprimSize > target && !forceMultiCycling && !in.ESIsTessEval {
				forceMultiCycling = true
				continue
			}
			break
		}
	} else {
		esvertSize = in.ESVertexDwords
	}

	maxGSPrims := gsprimsBase
	maxESVerts := esvertsBase
	if esvertSize > 0 {
		maxESVerts = min(maxESVerts, target/esvertSize)
	}
	if gsprimSize > 0 {
		maxGSPrims = min(maxGSPrims, target/gsprimSize)
	}

	maxESVerts = min(maxESVerts, maxGSPrims*vpp)
	maxGSPrims = clampGSPrims(maxGSPrims, maxESVerts, minVertsPerPrim, in.Adjacency)

	// Shrink both counts in proportion when the rough pair does not fit.
	if esvertSize > 0 || gsprimSize > 0 {
		total := maxESVerts*esvertSize + maxGSPrims*gsprimSize
		if total > target {
			maxESVerts = maxESVerts * target / total
			maxGSPrims = maxGSPrims * target / total

			maxESVerts = min(maxESVerts, maxGSPrims*vpp)
			maxGSPrims = clampGSPrims(maxGSPrims, maxESVerts, minVertsPerPrim, in.Adjacency)
		}
	}

	if !perInstance {
		// Round towards whole waves until the pair is stable.
		for range maxPlanIterations {
			prevESVerts, prevGSPrims := maxESVerts, maxGSPrims

			maxESVerts = alignUp(maxESVerts, in.WaveSize)
			maxESVerts = min(maxESVerts, esvertsBase)
			if esvertSize > 0 {
				maxESVerts = min(maxESVerts, subSat(maxLDS, maxGSPrims*gsprimSize)/esvertSize)
			}
			maxESVerts = min(maxESVerts, maxGSPrims*vpp)
			maxESVerts = max(maxESVerts, minESVerts)

			maxGSPrims = alignUp(maxGSPrims, in.WaveSize)
			maxGSPrims = min(maxGSPrims, gsprimsBase)
			if gsprimSize > 0 {
				usable := min(maxESVerts, maxGSPrims*vpp)
				maxGSPrims = min(maxGSPrims, subSat(maxLDS, usable*esvertSize)/gsprimSize)
			}
			maxGSPrims = clampGSPrims(maxGSPrims, maxESVerts, minVertsPerPrim, in.Adjacency)

			if prevESVerts == maxESVerts && prevGSPrims == maxGSPrims {
				break
			}
		}
	} else {
		maxESVerts = max(maxESVerts, minESVerts)
	}

	var maxOutVerts uint32
	switch {
	case perInstance:
		maxOutVerts = in.GSVerticesOut
	case in.Stage == StageGeometry:
		maxOutVerts = maxGSPrims * in.GSInvocations * in.GSVerticesOut
	default:
		maxOutVerts = maxESVerts
	}

	ampFactor := uint32(1)
	if in.Stage == StageGeometry {
		ampFactor = in.GSVerticesOut
	}

	p := SubgroupPlan{
		HWMaxESVerts:            maxESVerts,
		MaxGSPrims:              maxGSPrims,
		MaxOutVerts:             maxOutVerts,
		PrimAmpFactor:           ampFactor,
		MaxVertOutPerGSInstance: perInstance,
		ESGSRingDwords:          min(maxESVerts, maxGSPrims*vpp) * esvertSize,
		EmitDwords:              maxGSPrims * gsprimSize,
		ScratchDwords:           scratch,
		LDSBudgetDwords:         maxLDS,
	}

	ok := maxESVerts >= vpp && maxGSPrims >= 1 &&
		maxOutVerts <= MaxOutVertices && maxESVerts >= minESVerts &&
		p.ESGSRingDwords+p.EmitDwords <= maxLDS
	return p, ok
}

// Must is Plan with infeasibility reported as an error.
func Must(in Input) (SubgroupPlan, error) {
	p, ok := Plan(in)
	if !ok {
		return p, fmt.Errorf("%w: %s", ErrInfeasible, p)
	}
	return p, nil
}

// clampGSPrims limits the primitive count to what the vertex count can
// form, assuming maximal vertex reuse.
func clampGSPrims(gsprims, esverts, minVertsPerPrim uint32, adjacency bool) uint32 {
	reuse := subSat(esverts, minVertsPerPrim)
	if adjacency {
		reuse /= 2
	}
	return min(gsprims, 1+reuse)
}

func alignUp(v, a uint32) uint32 {
	return (v + a - 1) / a * a
}

func subSat(a, b uint32) uint32 {
	if b > a {
		return 0
	}
	return a - b
}
