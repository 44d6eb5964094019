package main

import (
	"image"
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/wricardo/drivesim/game/engine"
)

var (
	whiteOnce     sync.Once
	whiteSubImage *ebiten.Image
)

// whiteSource is the one pixel texture solid triangles sample from
func whiteSource() *ebiten.Image {
	whiteOnce.Do(func() {
		img := ebiten.NewImage(3, 3)
		img.Fill(color.White)
		whiteSubImage = img.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)
	})
	return whiteSubImage
}

// screenCanvas paints engine primitives onto an ebiten image
type screenCanvas struct {
	dst *ebiten.Image
}

func (c screenCanvas) Size() (float64, float64) {
	b := c.dst.Bounds()
	return float64(b.Dx()), float64(b.Dy())
}

func (c screenCanvas) FillRect(x, y, w, h float64, clr color.RGBA) {
	vector.DrawFilledRect(c.dst, float32(x), float32(y), float32(w), float32(h), clr, false)
}

func (c screenCanvas) FillCircle(cx, cy, r float64, clr color.RGBA) {
	vector.DrawFilledCircle(c.dst, float32(cx), float32(cy), float32(r), clr, true)
}

func (c screenCanvas) StrokeLine(x0, y0, x1, y1, width float64, clr color.RGBA) {
	vector.StrokeLine(c.dst, float32(x0), float32(y0), float32(x1), float32(y1), float32(width), clr, true)
}

// FillPolygon fans the points into triangles. Every shape the painter
// produces is convex.
func (c screenCanvas) FillPolygon(points []engine.Vec2, clr color.RGBA) {
	vs, is := fanTriangles(points, clr)
	if len(is) == 0 {
		return
	}
	c.dst.DrawTriangles(vs, is, whiteSource(), &ebiten.DrawTrianglesOptions{})
}

// Text uses the debug font, which is always white
func (c screenCanvas) Text(s string, x, y float64, _ color.RGBA) {
	ebitenutil.DebugPrintAt(c.dst, s, int(x), int(y)-12)
}

func fanTriangles(points []engine.Vec2, clr color.RGBA) ([]ebiten.Vertex, []uint16) {
	if len(points) < 3 {
		return nil, nil
	}
	r, g, b, a := float32(clr.R)/255, float32(clr.G)/255, float32(clr.B)/255, float32(clr.A)/255

	vs := make([]ebiten.Vertex, len(points))
	for i, p := range points {
		vs[i] = ebiten.Vertex{
			DstX: float32(p.X), DstY: float32(p.Y),
			SrcX: 1, SrcY: 1,
			ColorR: r, ColorG: g, ColorB: b, ColorA: a,
		}
	}
	is := make([]uint16, 0, 3*(len(points)-2))
	for i := 1; i < len(points)-1; i++ {
		is = append(is, 0, uint16(i), uint16(i+1))
	}
	return vs, is
}
