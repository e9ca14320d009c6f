// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compact

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/gogpu/ngg/cull"
	"github.com/gogpu/ngg/internal/lds"
	"github.com/gogpu/ngg/streamout"
)

var (
	inside  = [4]float32{0, 0, 0, 1}
	outside = [4]float32{5, 5, 0, 1}
)

func testConfig(waveSize, subgroupSize, vpp int) Config {
	return Config{
		Stage:        StageVertex,
		WaveSize:     waveSize,
		SubgroupSize: subgroupSize,
		Culling:      true,
		Cull:         cull.Options{NumVertices: vpp, CullViewXY: true, CullW: true},
		Viewport:     cull.ViewportFromRect(0, 0, 100, 100),
		Precision:    cull.SmallPrimPrecision(1, cull.SubpixelBits8),
	}
}

// points builds one point primitive per vertex.
func points(pos [][4]float32) Input {
	in := Input{}
	for i, p := range pos {
		in.Vertices = append(in.Vertices, Vertex{Pos: p, VertexID: uint32(100 + i)})
		in.Primitives = append(in.Primitives, Primitive{Index: [3]uint32{uint32(i)}})
	}
	return in
}

func run(t *testing.T, cfg Config, in Input) (Result, *Recorder) {
	t.Helper()
	wg, err := NewWorkgroup(cfg, in)
	if err != nil {
		t.Fatalf("NewWorkgroup() = %v", err)
	}
	rec := &Recorder{}
	res, err := wg.Run(context.Background(), rec)
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	return res, rec
}

// =============================================================================
// Aggregator
// =============================================================================

func TestLoadVertexCounts_TwoWaves(t *testing.T) {
	s := lds.NewScratch(lds.ScratchDwords)
	s.Fill(0xffffffff)
	s.StoreByte(0, 5)
	s.StoreByte(1, 3)

	tests := []struct {
		wave       int
		wantPrefix uint32
	}{
		{0, 0},
		{1, 5},
	}
	for _, tt := range tests {
		total, prefix := LoadVertexCounts(s, 2, 2, tt.wave, 32)
		if total != 8 {
			t.Errorf("wave %d: total = %d, want 8", tt.wave, total)
		}
		if prefix != tt.wantPrefix {
			t.Errorf("wave %d: prefix = %d, want %d", tt.wave, prefix, tt.wantPrefix)
		}
	}
}

func TestLoadVertexCounts_IgnoresGarbage(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for maxWaves := 1; maxWaves <= MaxWaves; maxWaves++ {
		for numWaves := 1; numWaves <= maxWaves; numWaves++ {
			s := lds.NewScratch(lds.ScratchDwords)
			for b := range 4 * lds.ScratchDwords {
				s.StoreByte(b, uint8(r.IntN(256)))
			}
			counts := make([]uint32, numWaves)
			for w := range counts {
				counts[w] = uint32(r.IntN(65))
				s.StoreByte(w, uint8(counts[w]))
			}

			var want uint32
			for _, c := range counts {
				want += c
			}
			var sum uint32
			for w := range numWaves {
				total, prefix := LoadVertexCounts(s, maxWaves, numWaves, w, 64)
				if total != want {
					t.Errorf("max %d num %d wave %d: total = %d, want %d", maxWaves, numWaves, w, total, want)
				}
				if prefix != sum {
					t.Errorf("max %d num %d wave %d: prefix = %d, want %d", maxWaves, numWaves, w, prefix, sum)
				}
				sum += counts[w]
			}
		}
	}
}

// =============================================================================
// Primitive packing
// =============================================================================

func TestPackPrimitive(t *testing.T) {
	p := PackPrimitive([3]uint32{1, 300, 511}, [3]bool{true, false, true}, 3)
	if p.Null() {
		t.Fatal("packed primitive is null")
	}
	for i, want := range []uint32{1, 300, 511} {
		if got := p.Index(i); got != want {
			t.Errorf("Index(%d) = %d, want %d", i, got, want)
		}
	}
	for i, want := range []bool{true, false, true} {
		if got := p.EdgeFlag(i); got != want {
			t.Errorf("EdgeFlag(%d) = %v, want %v", i, got, want)
		}
	}
	if !NullPrimitive.Null() {
		t.Error("NullPrimitive.Null() = false")
	}
	if got := PackPrimitive([3]uint32{7, 8, 9}, [3]bool{true, true, true}, 1); got != 7|1<<9 {
		t.Errorf("point = %#x, want %#x", uint32(got), 7|1<<9)
	}
}

// =============================================================================
// Compaction
// =============================================================================

func TestWorkgroup_TwoWavesFivePlusThree(t *testing.T) {
	pos := make([][4]float32, 64)
	for i := range pos {
		pos[i] = outside
	}
	keep := []int{1, 4, 7, 20, 31, 32, 47, 62}
	for _, k := range keep {
		pos[k] = inside
	}

	wg, err := NewWorkgroup(testConfig(32, 64, 1), points(pos))
	if err != nil {
		t.Fatal(err)
	}
	counted := wg.Stage().Cull().Count()
	for w, want := range []uint32{0, 5} {
		total, prefix := LoadVertexCounts(wg.scratch, wg.cfg.MaxWaves(), wg.Waves(), w, 32)
		if total != 8 || prefix != want {
			t.Errorf("wave %d: (total, prefix) = (%d, %d), want (8, %d)", w, total, prefix, want)
		}
	}

	rec := &Recorder{}
	res := counted.Compact().Export(rec)
	for newID, old := range keep {
		if got := res.NewThreadID[old]; got != newID {
			t.Errorf("NewThreadID[%d] = %d, want %d", old, got, newID)
		}
		if got := rec.Verts[newID].OldThread; got != old {
			t.Errorf("vertex %d OldThread = %d, want %d", newID, got, old)
		}
		if got := rec.Verts[newID].VertexID; got != uint32(100+old) {
			t.Errorf("vertex %d VertexID = %d, want %d", newID, got, 100+old)
		}
	}
	if rec.Vertices != 8 || rec.Primitives != 64 {
		t.Errorf("alloc = (%d, %d), want (8, 64)", rec.Vertices, rec.Primitives)
	}
}

func TestWorkgroup_Permutation(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for _, ws := range []int{32, 64} {
		for iter := range 50 {
			n := r.IntN(MaxThreads) + 1
			pos := make([][4]float32, n)
			for i := range pos {
				pos[i] = outside
				if r.IntN(3) != 0 {
					pos[i] = inside
				}
			}
			// Some patterns keep nothing or everything.
			switch iter {
			case 0:
				for i := range pos {
					pos[i] = inside
				}
			case 1:
				for i := range pos {
					pos[i] = outside
				}
			}

			res, rec := run(t, testConfig(ws, MaxThreads, 1), points(pos))

			next := 0
			for old, id := range res.NewThreadID {
				if pos[old] == outside {
					if id != -1 {
						t.Fatalf("wave %d n %d: culled vertex %d got id %d", ws, n, old, id)
					}
					continue
				}
				if id != next {
					t.Fatalf("wave %d n %d: vertex %d got id %d, want %d", ws, n, old, id, next)
				}
				next++
			}
			if rec.Vertices != uint32(next) || len(rec.Verts) != next {
				t.Fatalf("wave %d n %d: exported %d/%d vertices, want %d", ws, n, rec.Vertices, len(rec.Verts), next)
			}
			if next == 0 {
				if rec.Primitives != 0 || len(rec.Prims) != 0 {
					t.Fatalf("wave %d n %d: exported primitives with no vertices", ws, n)
				}
				continue
			}
			for i, p := range rec.Prims {
				if pos[i] == outside {
					if !p.Null() {
						t.Fatalf("wave %d n %d: primitive %d not null", ws, n, i)
					}
					continue
				}
				if got := p.Index(0); got != uint32(res.NewThreadID[i]) {
					t.Fatalf("wave %d n %d: primitive %d index %d, want %d", ws, n, i, got, res.NewThreadID[i])
				}
			}
		}
	}
}

func TestWorkgroup_ThreeTriangles(t *testing.T) {
	cfg := testConfig(64, 128, 3)
	cfg.Cull.CullBack = true
	cfg.Cull.CullZeroArea = true

	tris := [][3][2]float32{
		{{0, 0}, {0.5, 0}, {0, 0.5}},         // counter-clockwise
		{{0, 0}, {0, 0.5}, {0.5, 0}},         // clockwise
		{{-0.5, -0.5}, {0, -0.5}, {-0.5, 0}}, // counter-clockwise
	}
	var in Input
	for _, tri := range tris {
		base := uint32(len(in.Vertices))
		for _, v := range tri {
			in.Vertices = append(in.Vertices, Vertex{Pos: [4]float32{v[0], v[1], 0, 1}})
		}
		in.Primitives = append(in.Primitives, Primitive{Index: [3]uint32{base, base + 1, base + 2}})
	}

	res, rec := run(t, cfg, in)
	if res.Accepted != 2 {
		t.Errorf("Accepted = %d, want 2", res.Accepted)
	}
	want := []int{0, 1, 2, -1, -1, -1, 3, 4, 5}
	for i, id := range want {
		if res.NewThreadID[i] != id {
			t.Errorf("NewThreadID = %v, want %v", res.NewThreadID, want)
			break
		}
	}
	if !rec.Prims[1].Null() {
		t.Error("clockwise primitive exported")
	}
	for p, base := range map[int]uint32{0: 0, 2: 3} {
		for i := range 3 {
			if got := rec.Prims[p].Index(i); got != base+uint32(i) {
				t.Errorf("primitive %d index %d = %d, want %d", p, i, got, base+uint32(i))
			}
		}
	}
	if rec.Vertices != 6 || rec.Primitives != 3 {
		t.Errorf("alloc = (%d, %d), want (6, 3)", rec.Vertices, rec.Primitives)
	}
}

func TestWorkgroup_SharedVertices(t *testing.T) {
	cfg := testConfig(32, 64, 3)
	cfg.Cull.CullBack = true

	in := Input{
		Vertices: []Vertex{
			{Pos: [4]float32{0, 0, 0, 1}},
			{Pos: [4]float32{0.5, 0, 0, 1}},
			{Pos: [4]float32{0, 0.5, 0, 1}},
			{Pos: [4]float32{0.5, 0.5, 0, 1}},
		},
		Primitives: []Primitive{
			{Index: [3]uint32{0, 1, 2}},
			{Index: [3]uint32{1, 2, 3}}, // clockwise
		},
	}
	res, rec := run(t, cfg, in)
	want := []int{0, 1, 2, -1}
	for i, id := range want {
		if res.NewThreadID[i] != id {
			t.Fatalf("NewThreadID = %v, want %v", res.NewThreadID, want)
		}
	}
	if rec.Vertices != 3 || rec.Primitives != 2 {
		t.Errorf("alloc = (%d, %d), want (3, 2)", rec.Vertices, rec.Primitives)
	}
	if !rec.Prims[1].Null() {
		t.Error("clockwise primitive exported")
	}
}

func TestWorkgroup_KillsIdleWaves(t *testing.T) {
	pos := make([][4]float32, 96)
	for i := range pos {
		pos[i] = inside
	}
	in := points(pos)
	in.Primitives = in.Primitives[:10]

	res, rec := run(t, testConfig(32, 128, 1), in)
	if res.KilledWaves != 2 {
		t.Errorf("KilledWaves = %d, want 2", res.KilledWaves)
	}
	if rec.Vertices != 10 || rec.Primitives != 10 {
		t.Errorf("alloc = (%d, %d), want (10, 10)", rec.Vertices, rec.Primitives)
	}
}

func TestWorkgroup_AllCulled(t *testing.T) {
	res, rec := run(t, testConfig(64, 128, 1), points([][4]float32{outside, outside, outside}))
	if rec.Allocs != 1 || rec.Vertices != 0 || rec.Primitives != 0 {
		t.Errorf("alloc = %d x (%d, %d), want 1 x (0, 0)", rec.Allocs, rec.Vertices, rec.Primitives)
	}
	if len(rec.Prims) != 0 || len(rec.Verts) != 0 {
		t.Errorf("exported %d primitives and %d vertices", len(rec.Prims), len(rec.Verts))
	}
	if res.KilledWaves != 1 {
		t.Errorf("KilledWaves = %d, want 1", res.KilledWaves)
	}
}

func TestWorkgroup_EmptyInput(t *testing.T) {
	_, rec := run(t, testConfig(64, 128, 3), Input{})
	if rec.Allocs != 1 || rec.Vertices != 0 || rec.Primitives != 0 {
		t.Errorf("alloc = %d x (%d, %d), want 1 x (0, 0)", rec.Allocs, rec.Vertices, rec.Primitives)
	}
}

func TestWorkgroup_TessEvalPayload(t *testing.T) {
	cfg := testConfig(32, 64, 1)
	cfg.Stage = StageTessEval
	cfg.UsesPrimitiveID = true

	in := Input{
		Vertices: []Vertex{
			{Pos: outside},
			{Pos: [4]float32{0.25, 0.5, 0.75, 1}, TessU: 0.25, TessV: 0.5, TessRelPatchID: 9, TessPatchID: 1234},
		},
		Primitives: []Primitive{{Index: [3]uint32{0}}, {Index: [3]uint32{1}}},
	}
	_, rec := run(t, cfg, in)
	v, ok := rec.Verts[0]
	if !ok {
		t.Fatal("vertex 0 not exported")
	}
	want := VertexExport{
		OldThread: 1, Pos: [4]float32{0.25, 0.5, 0.75, 1},
		TessU: 0.25, TessV: 0.5, TessRelPatchID: 9, TessPatchID: 1234,
	}
	if v.OldThread != want.OldThread || v.Pos != want.Pos || v.TessU != want.TessU ||
		v.TessV != want.TessV || v.TessRelPatchID != want.TessRelPatchID || v.TessPatchID != want.TessPatchID {
		t.Errorf("vertex = %+v, want %+v", v, want)
	}
}

func TestWorkgroup_InstanceID(t *testing.T) {
	for _, uses := range []bool{false, true} {
		cfg := testConfig(32, 64, 1)
		cfg.UsesInstanceID = uses
		in := points([][4]float32{inside})
		in.Vertices[0].InstanceID = 42

		_, rec := run(t, cfg, in)
		want := uint32(0)
		if uses {
			want = 42
		}
		if got := rec.Verts[0].InstanceID; got != want {
			t.Errorf("uses=%v: InstanceID = %d, want %d", uses, got, want)
		}
	}
}

func TestWorkgroup_EdgeFlags(t *testing.T) {
	cfg := testConfig(32, 64, 3)
	cfg.EdgeFlags = true
	in := Input{
		Vertices: []Vertex{
			{Pos: [4]float32{0, 0, 0, 1}},
			{Pos: [4]float32{0.5, 0, 0, 1}},
			{Pos: [4]float32{0, 0.5, 0, 1}},
		},
		Primitives: []Primitive{{Index: [3]uint32{0, 1, 2}, EdgeFlags: [3]bool{false, true, false}}},
	}
	_, rec := run(t, cfg, in)
	p := rec.Prims[0]
	if p.EdgeFlag(0) || !p.EdgeFlag(1) || p.EdgeFlag(2) {
		t.Errorf("edge flags = %v %v %v, want false true false", p.EdgeFlag(0), p.EdgeFlag(1), p.EdgeFlag(2))
	}
}

// =============================================================================
// Passthrough and streamout
// =============================================================================

func TestWorkgroup_PassthroughStreamout(t *testing.T) {
	so := streamout.Config{
		Outputs: []streamout.Output{{Register: 1, NumComponents: 2, Buffer: 0}},
		Strides: [streamout.MaxBuffers]uint32{2},
	}
	mem := streamout.NewBuffers(64)
	q := &streamout.Query{}
	alloc, err := streamout.NewAllocator(so, streamout.NewGDS(), mem, q)
	if err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(32, 64, 3)
	cfg.Culling = false
	cfg.Streamout = alloc

	var in Input
	for i := range 4 {
		f := float32(i)
		in.Vertices = append(in.Vertices, Vertex{
			Pos:     inside,
			Outputs: [][4]float32{{9, 9, 9, 9}, {f, f + 0.5, 7, 7}},
		})
	}
	in.Primitives = []Primitive{
		{Index: [3]uint32{0, 1, 2}},
		{Index: [3]uint32{3, 2, 1}},
	}

	res, rec := run(t, cfg, in)
	if rec.Vertices != 4 || rec.Primitives != 2 {
		t.Errorf("alloc = (%d, %d), want (4, 2)", rec.Vertices, rec.Primitives)
	}
	if res.Streamout.Emit[0] != 2 {
		t.Errorf("emit = %d, want 2", res.Streamout.Emit[0])
	}

	order := []int{0, 1, 2, 3, 2, 1}
	data := mem.Data(0)
	for v, src := range order {
		f := float32(src)
		if got := math.Float32frombits(data[2*v]); got != f {
			t.Errorf("vertex %d x = %v, want %v", v, got, f)
		}
		if got := math.Float32frombits(data[2*v+1]); got != f+0.5 {
			t.Errorf("vertex %d y = %v, want %v", v, got, f+0.5)
		}
	}
	if got := q.Result(0); got != (streamout.QueryResult{Generated: 2, Written: 2}) {
		t.Errorf("query = %+v", got)
	}
	if got := rec.Prims[1].Index(0); got != 3 {
		t.Errorf("primitive 1 index 0 = %d, want 3", got)
	}
}

// =============================================================================
// Validation
// =============================================================================

func TestNewWorkgroup_Errors(t *testing.T) {
	alloc, err := streamout.NewAllocator(streamout.Config{
		Outputs: []streamout.Output{{NumComponents: 1}},
		Strides: [streamout.MaxBuffers]uint32{1},
	}, streamout.NewGDS(), streamout.NewBuffers(4), nil)
	if err != nil {
		t.Fatal(err)
	}

	zcull := testConfig(64, 128, 1)
	zcull.Cull.CullViewNearZ = true
	badWave := testConfig(16, 128, 1)
	withSO := testConfig(64, 128, 1)
	withSO.Streamout = alloc

	tooMany := make([][4]float32, 65)
	tests := []struct {
		name string
		cfg  Config
		in   Input
		want error
	}{
		{"wave size", badWave, Input{}, ErrBadWaveSize},
		{"z culling", zcull, Input{}, ErrZCulling},
		{"streamout with culling", withSO, Input{}, ErrStreamoutWithCulling},
		{"threads over subgroup", testConfig(64, 64, 1), points(tooMany), ErrTooManyThreads},
		{"bad index", testConfig(64, 64, 1), Input{
			Vertices:   []Vertex{{}},
			Primitives: []Primitive{{Index: [3]uint32{1}}},
		}, ErrBadIndex},
		{"subgroup too large", testConfig(32, 512, 1), Input{}, ErrTooManyThreads},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWorkgroup(tt.cfg, tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("NewWorkgroup() = %v, want %v", err, tt.want)
			}
		})
	}
}
