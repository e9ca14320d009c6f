// Package streamout allocates and writes captured vertex data to up to four
// output buffers.
//
// Workgroups finish in any order, yet their captured primitives must land in
// the buffers in dispatch order. Each workgroup therefore reserves its range
// with one ordered add on a shared Counter: the add for ordered id N is
// applied only after the adds of every lower id. When a buffer runs out of
// space the workgroup clamps the number of primitives it emits and returns
// the unused part of its reservation with a plain atomic subtraction.
//
// GDS is an in-memory Counter with strict ordering, used for CPU execution
// and tests.
package streamout
