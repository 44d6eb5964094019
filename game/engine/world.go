package engine

import (
	"fmt"
	"math"
	"sort"
)

// World holds the road network, its scripted elements and static scenery.
// The network and buildings never change after construction; only the
// Triggered flag of elements is mutated, by the scenario engine.
type World struct {
	Network      RoadNetwork   `json:"network"`
	Elements     []RoadElement `json:"elements"`
	Buildings    []Building    `json:"buildings"`
	Start        Vec2          `json:"start"`
	StartHeading float64       `json:"start_heading"`

	points []RoadPoint
}

// NewWorld builds the complete world for a tuning profile
func NewWorld(t *Tuning) *World {
	network := BuildNetwork(t.Viewport, t.World)
	w := newWorldFromNetwork(network)
	w.Elements = PlaceElements(network, t.World)
	w.Buildings = PlaceBuildings(network, t.World)
	w.Start = Vec2{X: network.Width / 2, Y: network.Height - t.World.StartMargin}
	if spine, ok := network.mainRoad(); ok && len(spine.Points) > 0 {
		w.Start.X = spine.Points[0].Position.X
	}
	w.StartHeading = -math.Pi / 2
	return w
}

func newWorldFromNetwork(network RoadNetwork) *World {
	w := &World{Network: network}
	for _, seg := range network.Segments {
		w.points = append(w.points, seg.Points...)
	}
	return w
}

// BuildNetwork lays out a vertical main road through the centre of the world
// and two horizontal cross roads. The world scales with the viewport but never
// shrinks below the configured minimum.
func BuildNetwork(vp Viewport, wt WorldTuning) RoadNetwork {
	width := math.Max(vp.Width*wt.Scale, wt.MinWidth)
	height := math.Max(vp.Height*wt.Scale, wt.MinHeight)
	cx, cy := width/2, height/2

	network := RoadNetwork{Width: width, Height: height}
	network.Segments = append(network.Segments, RoadSegment{
		ID:          "main",
		Orientation: Vertical,
		IsMainRoad:  true,
		Width:       wt.MainRoadWidth,
		Points:      samplePoints(Vec2{cx, 0}, Vec2{cx, height}, wt.PointStep, wt.MainRoadWidth),
	})
	for i, y := range []float64{cy - wt.CrossRoadOffset, cy + wt.CrossRoadOffset} {
		network.Segments = append(network.Segments, RoadSegment{
			ID:          fmt.Sprintf("cross_%d", i),
			Orientation: Horizontal,
			Width:       wt.RoadWidth,
			Points:      samplePoints(Vec2{0, y}, Vec2{width, y}, wt.PointStep, wt.RoadWidth),
		})
	}
	return network
}

// samplePoints returns points from a to b inclusive, never more than step apart
func samplePoints(a, b Vec2, step, width float64) []RoadPoint {
	length := a.Dist(b)
	n := int(math.Ceil(length / step))
	if n < 1 {
		n = 1
	}
	points := make([]RoadPoint, 0, n+1)
	for i := 0; i <= n; i++ {
		f := float64(i) / float64(n)
		points = append(points, RoadPoint{
			Position: Vec2{a.X + (b.X-a.X)*f, a.Y + (b.Y-a.Y)*f},
			Width:    width,
		})
	}
	return points
}

func (n RoadNetwork) mainRoad() (RoadSegment, bool) {
	for _, seg := range n.Segments {
		if seg.IsMainRoad && seg.Orientation == Vertical {
			return seg, true
		}
	}
	return RoadSegment{}, false
}

func (n RoadNetwork) crossRoadYs() []float64 {
	var ys []float64
	for _, seg := range n.Segments {
		if seg.Orientation == Horizontal && len(seg.Points) > 0 {
			ys = append(ys, seg.Points[0].Position.Y)
		}
	}
	sort.Float64s(ys)
	return ys
}

// Intersections returns the crossing points of the main road with every cross road, top to bottom
func (n RoadNetwork) Intersections() []Vec2 {
	spine, ok := n.mainRoad()
	if !ok || len(spine.Points) == 0 {
		return nil
	}
	x := spine.Points[0].Position.X
	var out []Vec2
	for _, y := range n.crossRoadYs() {
		out = append(out, Vec2{x, y})
	}
	return out
}

// PlaceElements positions every scripted element deterministically. The
// returned order is the trigger priority when several elements are in range.
func PlaceElements(n RoadNetwork, wt WorldTuning) []RoadElement {
	spine, ok := n.mainRoad()
	if !ok || len(spine.Points) == 0 {
		return nil
	}
	cx := spine.Points[0].Position.X
	lights := []LightState{LightRed, LightGreen, LightYellow}

	var elements []RoadElement
	add := func(kind ElementKind, pos Vec2) {
		e := RoadElement{ID: len(elements), Kind: kind, Position: pos}
		if kind == TrafficLight {
			e.Light = lights[countKind(elements, TrafficLight)%len(lights)]
		}
		elements = append(elements, e)
	}
	tooClose := func(pos Vec2) bool {
		for _, e := range elements {
			if e.Position.Dist(pos) < wt.ElementSetback {
				return true
			}
		}
		return false
	}

	// Approaching from the bottom a driver meets the light, the junction, then the crossing.
	intersections := n.Intersections()
	for _, p := range intersections {
		add(Intersection, p)
		add(TrafficLight, Vec2{cx, p.Y + wt.ElementSetback})
		add(PedestrianCrossing, Vec2{cx, p.Y - wt.ElementSetback})
	}

	// Extra lights at fixed intervals along the spine, measured from the centre.
	if wt.LightInterval > 0 {
		cy := n.Height / 2
		limit := wt.StartMargin + wt.ElementSetback
		for k := -int(n.Height / wt.LightInterval); k <= int(n.Height/wt.LightInterval); k++ {
			pos := Vec2{cx, cy + float64(k)*wt.LightInterval}
			if pos.Y < limit || pos.Y > n.Height-limit || tooClose(pos) {
				continue
			}
			add(TrafficLight, pos)
		}
	}

	for _, y := range n.crossRoadYs() {
		for _, dx := range []float64{-wt.StopSignOffset, wt.StopSignOffset} {
			pos := Vec2{cx + dx, y}
			if pos.X < 0 || pos.X > n.Width {
				continue
			}
			add(StopSign, pos)
		}
	}

	// The speed limit placeholder sits between the centre and the lower junction's crossing.
	if len(intersections) > 0 {
		last := intersections[len(intersections)-1]
		pos := Vec2{cx, (n.Height/2 + last.Y - wt.ElementSetback) / 2}
		if !tooClose(pos) {
			add(SchoolZone, pos)
		}
	}

	return elements
}

func countKind(elements []RoadElement, kind ElementKind) int {
	count := 0
	for _, e := range elements {
		if e.Kind == kind {
			count++
		}
	}
	return count
}

// PlaceBuildings fills the blocks between roads with a regular grid of buildings
func PlaceBuildings(n RoadNetwork, wt WorldTuning) []Building {
	if wt.BuildingSize <= 0 || len(n.Segments) == 0 {
		return nil
	}
	step := wt.BuildingSize + wt.BuildingGap
	var buildings []Building
	for y := wt.BuildingGap; y+wt.BuildingSize <= n.Height-wt.BuildingGap; y += step {
		for x := wt.BuildingGap; x+wt.BuildingSize <= n.Width-wt.BuildingGap; x += step {
			b := Building{Min: Vec2{x, y}, Max: Vec2{x + wt.BuildingSize, y + wt.BuildingSize}}
			if !overlapsRoad(b, n, wt.BuildingGap) {
				buildings = append(buildings, b)
			}
		}
	}
	return buildings
}

func overlapsRoad(b Building, n RoadNetwork, margin float64) bool {
	for _, seg := range n.Segments {
		if len(seg.Points) == 0 {
			continue
		}
		half := seg.Width/2 + margin
		p := seg.Points[0].Position
		switch seg.Orientation {
		case Vertical:
			if b.Min.X < p.X+half && b.Max.X > p.X-half {
				return true
			}
		case Horizontal:
			if b.Min.Y < p.Y+half && b.Max.Y > p.Y-half {
				return true
			}
		}
	}
	return false
}

// nearest returns the road point closest to p
func (w *World) nearest(p Vec2) (RoadPoint, float64, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, rp := range w.points {
		if d := rp.Position.Dist(p); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return RoadPoint{}, 0, false
	}
	return w.points[best], bestDist, true
}

// IsWithinRoad reports whether every corner of a footprint lies within half
// the road width of its nearest road point. An empty network contains nothing.
func (w *World) IsWithinRoad(footprint [4]Vec2) bool {
	for _, corner := range footprint {
		if !w.ContainsPoint(corner) {
			return false
		}
	}
	return true
}

// ContainsPoint reports whether a single point is on the road surface
func (w *World) ContainsPoint(p Vec2) bool {
	rp, d, ok := w.nearest(p)
	return ok && d <= rp.Width/2
}

// NearestRoadPoint returns the closest sampled road point, or p itself when there is no road
func (w *World) NearestRoadPoint(p Vec2) Vec2 {
	rp, _, ok := w.nearest(p)
	if !ok {
		return p
	}
	return rp.Position
}

// ClampToBounds keeps a vehicle centre inside the world, leaving room for its footprint
func (w *World) ClampToBounds(p Vec2, margin float64) Vec2 {
	p.X = clamp(p.X, margin, math.Max(margin, w.Network.Width-margin))
	p.Y = clamp(p.Y, margin, math.Max(margin, w.Network.Height-margin))
	return p
}

// ResetElements re-arms every element for a new run
func (w *World) ResetElements() {
	for i := range w.Elements {
		w.Elements[i].Triggered = false
	}
}

// ElementsSnapshot returns a copy of the elements with their current flags
func (w *World) ElementsSnapshot() []RoadElement {
	out := make([]RoadElement, len(w.Elements))
	copy(out, w.Elements)
	return out
}
