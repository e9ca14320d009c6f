// Package kernel bakes a subgroup plan and culling options into a WGSL
// compute shader that culls and compacts one workgroup of a draw per
// invocation group, and builds it into a HAL compute pipeline.
//
// The shader follows the same phases as package compact: stage projected
// positions in workgroup memory, cull primitives and mark their vertices,
// scan the accept flags, scatter surviving vertices to their compacted slots
// and export primitives with remapped indices. Culling tests that are
// disabled are left out of the generated source.
//
// # Bindings
//
//	@binding(0) uniform       Params (viewport, small primitive precision)
//	@binding(1) storage read  positions   array<vec4<f32>>
//	@binding(2) storage read  indices     array<u32>, workgroup-local
//	@binding(3) storage read  ranges      array<Range>, one per workgroup
//	@binding(4) storage rw    out_positions
//	@binding(5) storage rw    out_prims   packed like compact.PrimExport
//	@binding(6) storage rw    out_old_ids
//	@binding(7) storage rw    counts      vertices and primitives per workgroup
//
// # Usage
//
//	prog, err := kernel.Generate(p, kernel.Options{Cull: opts, WaveSize: 64})
//	...
//	pipe, err := kernel.Build(device, prog)
//	defer pipe.Destroy()
package kernel
