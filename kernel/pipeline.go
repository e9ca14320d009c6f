// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package kernel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/ngg/cull"
	"github.com/gogpu/wgpu/hal"
)

// ErrNoHalDevice is returned when a provider does not expose a HAL device.
var ErrNoHalDevice = errors.New("kernel: provider does not expose a hal.Device")

// Pipeline is a compiled program with its layouts on one device.
type Pipeline struct {
	Program *Program

	device         hal.Device
	module         hal.ShaderModule
	bindLayout     hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	pipeline       hal.ComputePipeline
}

// Build compiles prog and creates its compute pipeline on device.
func Build(device hal.Device, prog *Program) (*Pipeline, error) {
	words, err := Compile(prog)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{Program: prog, device: device}

	p.module, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  prog.Label,
		Source: hal.ShaderSource{SPIRV: words},
	})
	if err != nil {
		return nil, fmt.Errorf("kernel: create shader module: %w", err)
	}

	entries := BindGroupLayoutEntries()
	p.bindLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   prog.Label + "_bgl",
		Entries: entries,
	})
	if err != nil {
		p.Destroy()
		return nil, fmt.Errorf("kernel: create bind group layout: %w", err)
	}

	p.pipelineLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            prog.Label + "_pl",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		p.Destroy()
		return nil, fmt.Errorf("kernel: create pipeline layout: %w", err)
	}

	p.pipeline, err = device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  prog.Label,
		Layout: p.pipelineLayout,
		Compute: hal.ComputeState{
			Module:     p.module,
			EntryPoint: EntryPoint,
		},
	})
	if err != nil {
		p.Destroy()
		return nil, fmt.Errorf("kernel: create compute pipeline: %w", err)
	}

	slogger().Debug("kernel: pipeline created",
		"label", prog.Label,
		"bindings", len(entries),
		"spirv_words", len(words))
	return p, nil
}

// FromProvider builds prog on the HAL device behind a gpucontext provider.
// The provider must implement HalDevice() any returning a hal.Device.
func FromProvider(provider gpucontext.DeviceProvider, prog *Program) (*Pipeline, error) {
	type halProvider interface {
		HalDevice() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHalDevice
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, ErrNoHalDevice
	}
	return Build(device, prog)
}

// BindGroupLayout returns the layout bind groups must be created against.
func (p *Pipeline) BindGroupLayout() hal.BindGroupLayout { return p.bindLayout }

// ComputePipeline returns the HAL pipeline.
func (p *Pipeline) ComputePipeline() hal.ComputePipeline { return p.pipeline }

// Destroy releases the pipeline and its layouts. It is safe to call more
// than once.
func (p *Pipeline) Destroy() {
	if p.device == nil {
		return
	}
	if p.pipeline != nil {
		p.device.DestroyComputePipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.pipelineLayout != nil {
		p.device.DestroyPipelineLayout(p.pipelineLayout)
		p.pipelineLayout = nil
	}
	if p.bindLayout != nil {
		p.device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.module != nil {
		p.device.DestroyShaderModule(p.module)
		p.module = nil
	}
}

// Range is the slice of a draw one workgroup processes. Indices are
// relative to FirstVertex.
type Range struct {
	FirstVertex uint32
	NumVertices uint32
	FirstPrim   uint32
	NumPrims    uint32
}

// EncodeParams returns the Params uniform contents.
func EncodeParams(vp cull.Viewport, precision float32, numWorkgroups uint32) []byte {
	buf := make([]byte, ParamsSize)
	put := func(i int, v uint32) { binary.LittleEndian.PutUint32(buf[4*i:], v) }
	put(0, math.Float32bits(vp.Scale[0]))
	put(1, math.Float32bits(vp.Scale[1]))
	put(2, math.Float32bits(vp.Translate[0]))
	put(3, math.Float32bits(vp.Translate[1]))
	put(4, math.Float32bits(precision))
	put(5, numWorkgroups)
	return buf
}

// EncodeRanges returns the ranges storage buffer contents.
func EncodeRanges(ranges []Range) []byte {
	buf := make([]byte, 0, len(ranges)*RangeSize)
	for _, r := range ranges {
		buf = binary.LittleEndian.AppendUint32(buf, r.FirstVertex)
		buf = binary.LittleEndian.AppendUint32(buf, r.NumVertices)
		buf = binary.LittleEndian.AppendUint32(buf, r.FirstPrim)
		buf = binary.LittleEndian.AppendUint32(buf, r.NumPrims)
	}
	return buf
}
