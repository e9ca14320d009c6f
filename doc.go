// Package ngg simulates the primitive culling and vertex compaction pass of a
// merged geometry stage.
//
// # Overview
//
// A draw is split into workgroups of at most as many vertices and primitives
// as the subgroup plan allows. Each workgroup culls its primitives against
// the W, face, view and small primitive tests, drops the vertices no
// surviving primitive uses and renumbers the rest contiguously. Workgroups
// run concurrently on a fixed set of workers.
//
// # Quick Start
//
//	p, err := ngg.NewPipeline(
//	    ngg.WithWaveSize(64),
//	    ngg.WithPipelineState(state, false),
//	    ngg.WithViewport(cull.ViewportFromRect(0, 0, 1920, 1080)),
//	)
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	res, err := p.Draw(ctx, &ngg.Draw{Vertices: verts, Indices: indices})
//
// # Streamout
//
// WithStreamout captures primitives before export. Workgroups reserve buffer
// space in draw order through an ordered counter; primitives that do not fit
// are counted as generated but not written. Streamout disables culling.
//
// # Packages
//
//   - cull: per-primitive accept decision
//   - compact: one workgroup of the culling pass
//   - gsemit: geometry shader emit and compaction epilogue
//   - streamout: ordered buffer allocation and capture
//   - plan: workgroup sizing
//   - kernel: WGSL generation and HAL pipeline creation
//
// # Logging
//
// ngg is silent by default. Use SetLogger to enable structured logging.
package ngg
