package main

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/gogpu/ngg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

var (
	background = color.RGBA{0x10, 0x14, 0x1c, 0xff}
	fill       = color.RGBA{0x5c, 0xb8, 0xe6, 0xff}
	labelColor = color.RGBA{0xf0, 0xf0, 0xf0, 0xff}
)

// toScreen maps a clip-space position to pixels with Y pointing down.
func toScreen(pos [4]float32, w, h int) (float32, float32) {
	x := (pos[0]/pos[3] + 1) / 2 * float32(w)
	y := (1 - pos[1]/pos[3]) / 2 * float32(h)
	return x, y
}

// Render draws the surviving triangles of res on a w x h image. Points and
// lines are not drawn. Triangles with a vertex behind the eye are skipped. label is drawn in the top left
// corner when non-empty.
func Render(res *ngg.DrawResult, verticesPerPrim, w, h int, label string) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	z := vector.NewRasterizer(w, h)
	drawn := 0
	for k := 0; verticesPerPrim == 3 && k+3 <= len(res.Indices); k += 3 {
		var pts [3][2]float32
		behind := false
		for i := range 3 {
			pos := res.Vertices[res.Indices[k+i]].Pos
			if pos[3] <= 0 {
				behind = true
				break
			}
			pts[i][0], pts[i][1] = toScreen(pos, w, h)
		}
		if behind {
			continue
		}
		z.MoveTo(pts[0][0], pts[0][1])
		z.LineTo(pts[1][0], pts[1][1])
		z.LineTo(pts[2][0], pts[2][1])
		z.ClosePath()
		drawn++
	}
	if drawn > 0 {
		z.Draw(dst, dst.Bounds(), image.NewUniform(fill), image.Point{})
	}

	if label != "" {
		d := &font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(labelColor),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(4, 13),
		}
		d.DrawString(label)
	}
	return dst
}
