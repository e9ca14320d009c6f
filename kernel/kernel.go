// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package kernel

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/ngg/cull"
	"github.com/gogpu/ngg/internal/cache"
	"github.com/gogpu/ngg/plan"
	"golang.org/x/text/cases"
)

//go:embed shaders/cull.wgsl.tmpl
var cullTemplateSource string

var cullTemplate = template.Must(template.New("cull").Parse(cullTemplateSource))

// EntryPoint is the compute entry point of generated programs.
const EntryPoint = "main"

// MaxWorkgroupSize is the largest workgroup the generated shader supports.
const MaxWorkgroupSize = 256

var (
	// ErrZCulling is returned for near or far plane culling. The staged
	// positions carry no depth.
	ErrZCulling = errors.New("kernel: depth culling is not supported")

	// ErrWorkgroupTooLarge is returned when the plan needs more threads than
	// one workgroup can have.
	ErrWorkgroupTooLarge = errors.New("kernel: workgroup too large")

	// ErrBadWaveSize is returned for wave sizes other than 32 and 64.
	ErrBadWaveSize = errors.New("kernel: wave size must be 32 or 64")
)

// Options selects the variant to generate.
type Options struct {
	Cull     cull.Options
	WaveSize uint32
}

// Program is generated WGSL with the sizing it was generated for.
type Program struct {
	Label         string
	WGSL          string
	WorkgroupSize uint32
	Plan          plan.SubgroupPlan
	Options       Options
}

// templateData feeds cull.wgsl.tmpl.
type templateData struct {
	MaxVerts        uint32
	MaxPrims        uint32
	WorkgroupSize   uint32
	WaveSize        uint32
	VerticesPerPrim int
	CullW           bool
	FaceTest        string
	BBox            bool
	CullViewXY      bool
	CullSmallPrims  bool
}

// Generate returns the WGSL program for plan p. The workgroup has one thread
// per vertex or primitive slot, whichever is larger, rounded up to waves.
func Generate(p plan.SubgroupPlan, o Options) (*Program, error) {
	if err := o.Cull.Validate(); err != nil {
		return nil, err
	}
	if o.Cull.CullViewNearZ || o.Cull.CullViewFarZ {
		return nil, ErrZCulling
	}
	if o.WaveSize != 32 && o.WaveSize != 64 {
		return nil, fmt.Errorf("%w: got %d", ErrBadWaveSize, o.WaveSize)
	}

	threads := max(p.HWMaxESVerts, p.MaxGSPrims, 1)
	size := (threads + o.WaveSize - 1) / o.WaveSize * o.WaveSize
	if size > MaxWorkgroupSize {
		return nil, fmt.Errorf("%w: %d threads", ErrWorkgroupTooLarge, size)
	}

	data := templateData{
		MaxVerts:        max(p.HWMaxESVerts, 1),
		MaxPrims:        p.MaxGSPrims,
		WorkgroupSize:   size,
		WaveSize:        o.WaveSize,
		VerticesPerPrim: o.Cull.NumVertices,
		CullW:           o.Cull.CullW,
		FaceTest:        faceTest(o.Cull),
		BBox:            o.Cull.CullViewXY || o.Cull.CullSmallPrims,
		CullViewXY:      o.Cull.CullViewXY,
		CullSmallPrims:  o.Cull.CullSmallPrims,
	}

	var sb strings.Builder
	if err := cullTemplate.Execute(&sb, data); err != nil {
		return nil, fmt.Errorf("kernel: generate: %w", err)
	}

	prog := &Program{
		Label:         fmt.Sprintf("ngg_cull_%dv_w%d", o.Cull.NumVertices, o.WaveSize),
		WGSL:          sb.String(),
		WorkgroupSize: size,
		Plan:          p,
		Options:       o,
	}
	slogger().Debug("kernel: generated",
		"label", prog.Label,
		"plan", p.String(),
		"workgroup_size", size,
		"wgsl_bytes", len(prog.WGSL))
	return prog, nil
}

// variant identifies a generated program.
type variant struct {
	plan plan.SubgroupPlan
	opts Options
}

var programs = cache.New[variant, *Program](64)

// Cached is Generate with programs shared between callers that ask for the
// same variant. The returned program must not be modified.
func Cached(p plan.SubgroupPlan, o Options) (*Program, error) {
	return programs.GetOrCreate(variant{p, o}, func() (*Program, error) {
		return Generate(p, o)
	})
}

// faceTest returns the WGSL acceptance expression on det, or "" when no
// face test runs.
func faceTest(o cull.Options) string {
	if o.NumVertices != 3 || !o.CullsFaces() {
		return ""
	}
	switch {
	case o.RejectsAll():
		return "false"
	case o.CullFront && o.CullZeroArea:
		return "det < 0.0"
	case o.CullFront:
		return "det <= 0.0"
	case o.CullBack && o.CullZeroArea:
		return "det > 0.0"
	case o.CullBack:
		return "det >= 0.0"
	default:
		return "(det < 0.0 || det > 0.0)"
	}
}

// Compile compiles the program to SPIR-V words.
func Compile(prog *Program) ([]uint32, error) {
	spirvBytes, err := naga.Compile(prog.WGSL)
	if err != nil {
		return nil, fmt.Errorf("kernel: compile %s: %w", prog.Label, err)
	}

	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}

// BindGroupLayoutEntries returns the layout matching the @binding
// annotations of the generated shader.
func BindGroupLayoutEntries() []gputypes.BindGroupLayoutEntry {
	entry := func(binding uint32, t gputypes.BufferBindingType) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: t},
		}
	}
	return []gputypes.BindGroupLayoutEntry{
		entry(0, gputypes.BufferBindingTypeUniform),
		entry(1, gputypes.BufferBindingTypeReadOnlyStorage),
		entry(2, gputypes.BufferBindingTypeReadOnlyStorage),
		entry(3, gputypes.BufferBindingTypeReadOnlyStorage),
		entry(4, gputypes.BufferBindingTypeStorage),
		entry(5, gputypes.BufferBindingTypeStorage),
		entry(6, gputypes.BufferBindingTypeStorage),
		entry(7, gputypes.BufferBindingTypeStorage),
	}
}

// ParamsSize is the byte size of the Params uniform.
const ParamsSize = 32

// RangeSize is the byte size of one Range entry.
const RangeSize = 16

// WaveSizeFor guesses the native wave size from an adapter name. AMD parts
// run wave64 compute by default; everything else uses 32.
func WaveSizeFor(adapterName string) uint32 {
	name := cases.Fold().String(adapterName)
	if strings.Contains(name, "amd") || strings.Contains(name, "radeon") {
		return 64
	}
	return 32
}
