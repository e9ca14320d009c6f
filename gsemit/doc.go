// Package gsemit implements vertex emission and the export epilogue of a
// geometry stage running in the merged pipeline.
//
// Each geometry thread owns VerticesOut vertex slots in shared memory.
// EmitVertex writes a slot and records in a per-stream flag byte whether the
// vertex completes a primitive and whether that primitive is odd within a
// triangle strip. The epilogue counts generated primitives, captures them for
// streamout, compacts the live vertices with a workgroup scan and exports
// triangles with the provoking vertex preserved.
package gsemit
