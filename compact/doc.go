// Package compact runs the culling and vertex compaction pass of one
// workgroup.
//
// A workgroup holds up to 256 vertex threads and up to 256 primitive threads,
// split into waves of 32 or 64 lanes. The pass runs in phases separated by
// workgroup barriers:
//
//	Stage      vertex threads store their projected positions
//	Cull       primitive threads cull and mark the vertices they keep
//	Count      each wave ballots its surviving vertices into a count byte
//	Compact    survivors get dense new thread ids and move their payload
//	Export     primitives and surviving vertices are exported
//
// Each phase method returns the handle the next phase consumes, so the
// barriers cannot be skipped or reordered.
//
// # Usage
//
//	wg, err := compact.NewWorkgroup(cfg, compact.Input{Vertices: v, Primitives: p})
//	if err != nil {
//	    return err
//	}
//	rec := &compact.Recorder{}
//	res, err := wg.Run(ctx, rec)
package compact
