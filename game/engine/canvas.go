package engine

import (
	"fmt"
	"image/color"
)

// Canvas is the render surface. Coordinates are screen pixels.
type Canvas interface {
	Size() (width, height float64)
	FillRect(x, y, w, h float64, c color.RGBA)
	FillCircle(cx, cy, r float64, c color.RGBA)
	StrokeLine(x0, y0, x1, y1, width float64, c color.RGBA)
	FillPolygon(points []Vec2, c color.RGBA)
	Text(s string, x, y float64, c color.RGBA)
}

// Layer names a render pass. Passes are painted back to front in LayerOrder.
type Layer string

const (
	LayerGround   Layer = "ground"
	LayerRoad     Layer = "road"
	LayerElements Layer = "elements"
	LayerVehicle  Layer = "vehicle"
	LayerUI       Layer = "ui"
)

// LayerOrder is the back to front paint order
var LayerOrder = []Layer{LayerGround, LayerRoad, LayerElements, LayerVehicle, LayerUI}

// LayerMarker is implemented by canvases that want to know when a pass starts
type LayerMarker interface {
	MarkLayer(Layer)
}

// DrawOp is one recorded primitive
type DrawOp struct {
	Op     string  `json:"op"`
	Layer  Layer   `json:"layer"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	X2     float64 `json:"x2,omitempty"`
	Y2     float64 `json:"y2,omitempty"`
	W      float64 `json:"w,omitempty"`
	H      float64 `json:"h,omitempty"`
	Points []Vec2  `json:"points,omitempty"`
	Text   string  `json:"text,omitempty"`
	Color  string  `json:"color"`
}

// DisplayList is an in-memory canvas that records primitives. Headless
// sessions paint into it so thin clients can replay the last frame.
type DisplayList struct {
	Width  float64  `json:"width"`
	Height float64  `json:"height"`
	Ops    []DrawOp `json:"ops"`

	layer Layer
}

// NewDisplayList creates an empty display list of the given size
func NewDisplayList(width, height float64) *DisplayList {
	return &DisplayList{Width: width, Height: height}
}

// Clear drops all recorded operations
func (d *DisplayList) Clear() {
	d.Ops = d.Ops[:0]
	d.layer = ""
}

// Clone returns a deep copy safe to hand to another goroutine
func (d *DisplayList) Clone() *DisplayList {
	out := &DisplayList{Width: d.Width, Height: d.Height, Ops: make([]DrawOp, len(d.Ops))}
	copy(out.Ops, d.Ops)
	return out
}

// Layers returns the distinct layers in the order they were first painted
func (d *DisplayList) Layers() []Layer {
	var layers []Layer
	seen := make(map[Layer]bool)
	for _, op := range d.Ops {
		if !seen[op.Layer] {
			seen[op.Layer] = true
			layers = append(layers, op.Layer)
		}
	}
	return layers
}

func (d *DisplayList) Size() (float64, float64) { return d.Width, d.Height }

func (d *DisplayList) MarkLayer(l Layer) { d.layer = l }

func (d *DisplayList) FillRect(x, y, w, h float64, c color.RGBA) {
	d.Ops = append(d.Ops, DrawOp{Op: "rect", Layer: d.layer, X: x, Y: y, W: w, H: h, Color: hexColor(c)})
}

func (d *DisplayList) FillCircle(cx, cy, r float64, c color.RGBA) {
	d.Ops = append(d.Ops, DrawOp{Op: "circle", Layer: d.layer, X: cx, Y: cy, W: r, Color: hexColor(c)})
}

func (d *DisplayList) StrokeLine(x0, y0, x1, y1, width float64, c color.RGBA) {
	d.Ops = append(d.Ops, DrawOp{Op: "line", Layer: d.layer, X: x0, Y: y0, X2: x1, Y2: y1, W: width, Color: hexColor(c)})
}

func (d *DisplayList) FillPolygon(points []Vec2, c color.RGBA) {
	d.Ops = append(d.Ops, DrawOp{Op: "polygon", Layer: d.layer, Points: append([]Vec2(nil), points...), Color: hexColor(c)})
}

func (d *DisplayList) Text(s string, x, y float64, c color.RGBA) {
	d.Ops = append(d.Ops, DrawOp{Op: "text", Layer: d.layer, X: x, Y: y, Text: s, Color: hexColor(c)})
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}
