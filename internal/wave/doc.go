// Package wave provides CPU models of the cross-lane operations a SIMD wave
// offers to a shader: ballots, masked bit counts, lane broadcast, byte-wise
// sum of absolute differences and wave/workgroup scans.
//
// A wave is represented as a slice of per-lane values whose length is the
// wave size (32 or 64). Inactive lanes are modelled by the caller, usually by
// passing a false predicate or a zero value for them.
//
// # Workgroup Scans
//
// ScanWorkgroup mirrors the two-phase scan a shader builds from wave scans:
// every wave reduces its own lanes and publishes the total to scratch, then
// after a barrier each lane adds the totals of all lower waves to its
// in-wave exclusive result.
package wave
