// Package plan sizes a merged geometry workgroup against its shared-memory
// budget.
//
// The planner runs once per compiled shader variant. It takes the per-vertex
// and per-primitive shared-memory footprints of the shader and returns how
// many input vertices and primitives one workgroup may absorb. The result is
// a compile-time constant: callers cache it next to the shader it belongs to.
//
// Sizing starts from the configured subgroup size, shrinks both counts in
// proportion until they fit the budget, then rounds them to whole waves while
// re-checking the budget and the hardware minimum vertex count. Geometry
// shaders whose output does not fit a single workgroup fall back to a mode in
// which every geometry shader instance gets its own workgroup.
package plan
