package main

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const gridScene = `
width: 128
height: 128
wave_size: 32
cull_mode: back
grid:
  columns: 10
  rows: 10
  flip_every: 2
`

func TestParseScene_Defaults(t *testing.T) {
	s, err := ParseScene([]byte("vertices: [[0, 0, 0, 1]]\n"))
	if err != nil {
		t.Fatalf("ParseScene: %v", err)
	}
	if s.Width != 256 || s.Height != 256 || s.WaveSize != 64 {
		t.Errorf("defaults = %dx%d wave %d", s.Width, s.Height, s.WaveSize)
	}
	if len(s.Vertices) != 1 || s.Vertices[0][3] != 1 {
		t.Errorf("Vertices = %v", s.Vertices)
	}
}

func TestParseScene_Errors(t *testing.T) {
	for _, src := range []string{"width: -1\n", "width: [\n"} {
		if _, err := ParseScene([]byte(src)); err == nil {
			t.Errorf("ParseScene(%q) succeeded", src)
		}
	}
}

func TestScene_PrimitiveState(t *testing.T) {
	s := &Scene{Topology: "line-list", CullMode: "front", FrontFace: "cw"}
	st, err := s.PrimitiveState()
	if err != nil {
		t.Fatalf("PrimitiveState: %v", err)
	}
	if st.Topology != gputypes.PrimitiveTopologyLineList || st.CullMode != gputypes.CullModeFront ||
		st.FrontFace != gputypes.FrontFaceCW {
		t.Errorf("state = %+v", st)
	}

	for _, bad := range []*Scene{
		{Topology: "strip"},
		{Topology: "triangle-list", CullMode: "both"},
		{Topology: "triangle-list", FrontFace: "left"},
	} {
		if _, err := bad.PrimitiveState(); err == nil {
			t.Errorf("PrimitiveState(%+v) succeeded", bad)
		}
	}
}

func TestScene_GridDraw(t *testing.T) {
	s, err := ParseScene([]byte(gridScene))
	if err != nil {
		t.Fatalf("ParseScene: %v", err)
	}
	d := s.Draw()
	if len(d.Vertices) != 300 || len(d.Indices) != 300 {
		t.Errorf("grid = %d vertices %d indices, want 300 and 300", len(d.Vertices), len(d.Indices))
	}
}

func TestRun_GridHalfCulled(t *testing.T) {
	s, err := ParseScene([]byte(gridScene))
	if err != nil {
		t.Fatalf("ParseScene: %v", err)
	}

	dir := t.TempDir()
	pngPath := filepath.Join(dir, "out.png")
	wgslPath := filepath.Join(dir, "out.wgsl")
	var out bytes.Buffer
	p := message.NewPrinter(language.English)
	if err := run(context.Background(), s, p, &out, pngPath, wgslPath); err != nil {
		t.Fatalf("run: %v", err)
	}

	if !strings.HasPrefix(out.String(), "50 of 100 primitives, 150 vertices") {
		t.Errorf("summary = %q", out.String())
	}

	f, err := os.Open(pngPath)
	if err != nil {
		t.Fatalf("open png: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 128 || b.Dy() != 128 {
		t.Errorf("png size = %v, want 128x128", b)
	}

	wgsl, err := os.ReadFile(wgslPath)
	if err != nil {
		t.Fatalf("read wgsl: %v", err)
	}
	if !strings.Contains(string(wgsl), "@compute") {
		t.Error("wgsl has no compute entry point")
	}
}

func TestSummary_GroupsDigits(t *testing.T) {
	s, err := ParseScene([]byte("wave_size: 64\ngrid: {columns: 40, rows: 30}\ncull_mode: none\n"))
	if err != nil {
		t.Fatalf("ParseScene: %v", err)
	}
	var out bytes.Buffer
	if err := run(context.Background(), s, message.NewPrinter(language.English), &out, "", ""); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "1,200 of 1,200 primitives") {
		t.Errorf("summary = %q", out.String())
	}
}
