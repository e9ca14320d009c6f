package main

import (
	"fmt"
	"os"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/ngg"
	"github.com/gogpu/ngg/compact"
	"github.com/gogpu/ngg/cull"
	"gopkg.in/yaml.v3"
)

// Scene is a draw described in YAML.
type Scene struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	WaveSize     int `yaml:"wave_size"`
	SubgroupSize int `yaml:"subgroup_size"`
	Residency    int `yaml:"residency"`

	// Topology is point-list, line-list or triangle-list.
	Topology string `yaml:"topology"`

	// CullMode is none, front or back.
	CullMode string `yaml:"cull_mode"`

	// FrontFace is ccw or cw.
	FrontFace    string `yaml:"front_face"`
	Conservative bool   `yaml:"conservative"`
	Samples      uint32 `yaml:"samples"`

	// Vertices holds clip-space positions.
	Vertices [][4]float32 `yaml:"vertices"`
	Indices  []uint32     `yaml:"indices"`

	Grid *Grid `yaml:"grid"`
}

// Grid generates a field of small triangles covering and overhanging the
// view. It applies to triangle lists only.
type Grid struct {
	Columns int `yaml:"columns"`
	Rows    int `yaml:"rows"`

	// FlipEvery reverses the winding of every n-th triangle.
	FlipEvery int `yaml:"flip_every"`

	// Margin extends the grid past the view in clip units.
	Margin float32 `yaml:"margin"`
}

// LoadScene reads a scene file.
func LoadScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScene(data)
}

// ParseScene decodes a YAML scene and fills defaults.
func ParseScene(data []byte) (*Scene, error) {
	s := &Scene{
		Width:     256,
		Height:    256,
		WaveSize:  64,
		Topology:  "triangle-list",
		CullMode:  "back",
		FrontFace: "ccw",
		Samples:   1,
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("nggsim: parse scene: %w", err)
	}
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("nggsim: bad size %dx%d", s.Width, s.Height)
	}
	return s, nil
}

// PrimitiveState returns the rasterizer state of the scene.
func (s *Scene) PrimitiveState() (gputypes.PrimitiveState, error) {
	var st gputypes.PrimitiveState
	switch s.Topology {
	case "point-list":
		st.Topology = gputypes.PrimitiveTopologyPointList
	case "line-list":
		st.Topology = gputypes.PrimitiveTopologyLineList
	case "triangle-list":
		st.Topology = gputypes.PrimitiveTopologyTriangleList
	default:
		return st, fmt.Errorf("nggsim: unknown topology %q", s.Topology)
	}
	switch s.CullMode {
	case "none", "":
	case "front":
		st.CullMode = gputypes.CullModeFront
	case "back":
		st.CullMode = gputypes.CullModeBack
	default:
		return st, fmt.Errorf("nggsim: unknown cull mode %q", s.CullMode)
	}
	switch s.FrontFace {
	case "ccw", "":
		st.FrontFace = gputypes.FrontFaceCCW
	case "cw":
		st.FrontFace = gputypes.FrontFaceCW
	default:
		return st, fmt.Errorf("nggsim: unknown front face %q", s.FrontFace)
	}
	return st, nil
}

// Options returns the pipeline options of the scene.
func (s *Scene) Options() ([]ngg.Option, error) {
	st, err := s.PrimitiveState()
	if err != nil {
		return nil, err
	}
	opts := []ngg.Option{
		ngg.WithWaveSize(s.WaveSize),
		ngg.WithResidency(s.Residency),
		ngg.WithPipelineState(st, s.Conservative),
		ngg.WithViewport(cull.ViewportFromRect(0, 0, float32(s.Width), float32(s.Height))),
		ngg.WithSmallPrimPrecision(cull.PrecisionFromMultisample(gputypes.MultisampleState{Count: max(s.Samples, 1)}, 8)),
	}
	if s.SubgroupSize > 0 {
		opts = append(opts, ngg.WithSubgroupSize(s.SubgroupSize))
	}
	return opts, nil
}

// Draw returns the scene's explicit geometry followed by its grid.
func (s *Scene) Draw() *ngg.Draw {
	d := &ngg.Draw{}
	for i, p := range s.Vertices {
		d.Vertices = append(d.Vertices, compact.Vertex{Pos: p, VertexID: uint32(i)})
	}
	d.Indices = append(d.Indices, s.Indices...)

	if g := s.Grid; g != nil && g.Columns > 0 && g.Rows > 0 && s.Topology == "triangle-list" {
		span := 2 + 2*g.Margin
		cw := span / float32(g.Columns)
		ch := span / float32(g.Rows)
		k := 0
		for r := range g.Rows {
			for c := range g.Columns {
				x := -1 - g.Margin + float32(c)*cw
				y := -1 - g.Margin + float32(r)*ch
				base := uint32(len(d.Vertices))
				for _, p := range [][2]float32{{x, y}, {x + 0.8*cw, y}, {x, y + 0.8*ch}} {
					d.Vertices = append(d.Vertices, compact.Vertex{
						Pos:      [4]float32{p[0], p[1], 0.5, 1},
						VertexID: uint32(len(d.Vertices)),
					})
				}
				if g.FlipEvery > 0 && k%g.FlipEvery == 0 {
					d.Indices = append(d.Indices, base, base+2, base+1)
				} else {
					d.Indices = append(d.Indices, base, base+1, base+2)
				}
				k++
			}
		}
	}
	return d
}
