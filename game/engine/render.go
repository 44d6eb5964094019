package engine

import (
	"fmt"
	"image/color"
	"math"
	"strings"
)

var (
	colorGrass       = color.RGBA{0x4c, 0x8c, 0x3f, 0xff}
	colorBuilding    = color.RGBA{0x8a, 0x7f, 0x74, 0xff}
	colorRoof        = color.RGBA{0x6d, 0x63, 0x5a, 0xff}
	colorAsphalt     = color.RGBA{0x3a, 0x3a, 0x3c, 0xff}
	colorMainAsphalt = color.RGBA{0x33, 0x33, 0x36, 0xff}
	colorLane        = color.RGBA{0xf2, 0xf2, 0xf2, 0xff}
	colorStopLine    = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorHousing     = color.RGBA{0x1e, 0x1e, 0x1e, 0xff}
	colorRed         = color.RGBA{0xd9, 0x2b, 0x2b, 0xff}
	colorYellow      = color.RGBA{0xf2, 0xc2, 0x1a, 0xff}
	colorGreen       = color.RGBA{0x2e, 0xc2, 0x4a, 0xff}
	colorWhite       = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorCar         = color.RGBA{0x1f, 0x6f, 0xd1, 0xff}
	colorGlass       = color.RGBA{0xa8, 0xd8, 0xff, 0xff}
	colorPanel       = color.RGBA{0x10, 0x14, 0x1c, 0xe0}
	colorButton      = color.RGBA{0x2a, 0x34, 0x48, 0xff}
	colorCorrect     = color.RGBA{0x2e, 0x8b, 0x57, 0xff}
	colorWrong       = color.RGBA{0xa8, 0x32, 0x32, 0xff}
	colorAdvisory    = color.RGBA{0xff, 0x9f, 0x1a, 0xff}
	colorMuted       = color.RGBA{0xb0, 0xb0, 0xb0, 0xff}
)

const (
	charWidth  = 7
	lineHeight = 16
)

// Rect is an axis aligned screen rectangle
type Rect struct {
	X, Y, W, H float64
}

// Contains reports whether a screen point is inside r
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.W && y >= r.Y && y <= r.Y+r.H
}

// camera maps world coordinates to the screen, following the vehicle but
// never showing anything outside the world
type camera struct {
	origin Vec2
	w, h   float64
}

func newCamera(world *World, focus Vec2, w, h float64) camera {
	return camera{
		origin: Vec2{
			X: clamp(focus.X-w/2, 0, math.Max(0, world.Network.Width-w)),
			Y: clamp(focus.Y-h/2, 0, math.Max(0, world.Network.Height-h)),
		},
		w: w,
		h: h,
	}
}

func (c camera) apply(p Vec2) Vec2 { return p.Sub(c.origin) }

func (c camera) visible(p Vec2, pad float64) bool {
	s := c.apply(p)
	return s.X >= -pad && s.Y >= -pad && s.X <= c.w+pad && s.Y <= c.h+pad
}

// Painter draws a simulation onto a canvas, one layer at a time
type Painter struct{}

// paintLayer dispatches a single pass
func (p Painter) paintLayer(layer Layer, c Canvas, s *Simulation) {
	if m, ok := c.(LayerMarker); ok {
		m.MarkLayer(layer)
	}
	w, h := c.Size()
	cam := newCamera(s.world, s.controller.Vehicle().Position, w, h)
	switch layer {
	case LayerGround:
		p.paintGround(c, cam, s)
	case LayerRoad:
		p.paintRoad(c, cam, s)
	case LayerElements:
		p.paintElements(c, cam, s)
	case LayerVehicle:
		p.paintVehicle(c, cam, s)
	case LayerUI:
		p.paintUI(c, s)
	}
}

func (p Painter) paintGround(c Canvas, cam camera, s *Simulation) {
	c.FillRect(0, 0, cam.w, cam.h, colorGrass)
	for _, b := range s.world.Buildings {
		lo, hi := cam.apply(b.Min), cam.apply(b.Max)
		if hi.X < 0 || hi.Y < 0 || lo.X > cam.w || lo.Y > cam.h {
			continue
		}
		c.FillRect(lo.X, lo.Y, hi.X-lo.X, hi.Y-lo.Y, colorBuilding)
		c.FillRect(lo.X+8, lo.Y+8, hi.X-lo.X-16, hi.Y-lo.Y-16, colorRoof)
	}
}

func (p Painter) paintRoad(c Canvas, cam camera, s *Simulation) {
	for _, seg := range s.world.Network.Segments {
		if len(seg.Points) == 0 {
			continue
		}
		a := cam.apply(seg.Points[0].Position)
		b := cam.apply(seg.Points[len(seg.Points)-1].Position)
		half := seg.Width / 2
		clr := colorAsphalt
		if seg.IsMainRoad {
			clr = colorMainAsphalt
		}
		c.FillRect(math.Min(a.X, b.X)-half, math.Min(a.Y, b.Y)-half,
			math.Abs(b.X-a.X)+seg.Width, math.Abs(b.Y-a.Y)+seg.Width, clr)
	}

	// Dashed centre line on the main road, only where it is on screen.
	for _, seg := range s.world.Network.Segments {
		if !seg.IsMainRoad {
			continue
		}
		for i := 0; i+3 < len(seg.Points); i += 8 {
			from, to := seg.Points[i].Position, seg.Points[i+3].Position
			if !cam.visible(from, 40) || s.world.nearIntersection(from, seg.Width) {
				continue
			}
			a, b := cam.apply(from), cam.apply(to)
			c.StrokeLine(a.X, a.Y, b.X, b.Y, 3, colorLane)
		}
	}
}

// nearIntersection reports whether p lies inside a junction box
func (w *World) nearIntersection(p Vec2, size float64) bool {
	for _, ix := range w.Network.Intersections() {
		if math.Abs(p.X-ix.X) < size && math.Abs(p.Y-ix.Y) < size {
			return true
		}
	}
	return false
}

func (p Painter) paintElements(c Canvas, cam camera, s *Simulation) {
	roadHalf := s.tuning.World.MainRoadWidth / 2
	for _, el := range s.world.Elements {
		if !cam.visible(el.Position, roadHalf+60) {
			continue
		}
		pos := cam.apply(el.Position)
		alpha := uint8(0xff)
		if el.Triggered {
			alpha = 0x80
		}
		switch el.Kind {
		case TrafficLight:
			c.StrokeLine(pos.X-roadHalf, pos.Y, pos.X+roadHalf, pos.Y, 4, withAlpha(colorStopLine, alpha))
			c.FillRect(pos.X+roadHalf+6, pos.Y-30, 18, 42, withAlpha(colorHousing, alpha))
			for i, st := range []LightState{LightRed, LightYellow, LightGreen} {
				clr := withAlpha(colorMuted, 0x40)
				if st == el.Light {
					clr = withAlpha(lightColor(st), alpha)
				}
				c.FillCircle(pos.X+roadHalf+15, pos.Y-22+float64(i)*13, 5, clr)
			}
		case PedestrianCrossing:
			for x := -roadHalf + 6; x < roadHalf-6; x += 16 {
				c.FillRect(pos.X+x, pos.Y-14, 9, 28, withAlpha(colorWhite, alpha))
			}
		case StopSign:
			half := s.tuning.World.RoadWidth / 2
			c.StrokeLine(pos.X, pos.Y-half, pos.X, pos.Y+half, 4, withAlpha(colorStopLine, alpha))
			c.FillPolygon(octagon(Vec2{pos.X, pos.Y - half - 22}, 16), withAlpha(colorRed, alpha))
			c.Text("STOP", pos.X-14, pos.Y-half-30, withAlpha(colorWhite, alpha))
		case SchoolZone:
			sign := Vec2{pos.X + roadHalf + 24, pos.Y}
			c.FillCircle(sign.X, sign.Y, 18, withAlpha(colorRed, alpha))
			c.FillCircle(sign.X, sign.Y, 14, withAlpha(colorWhite, alpha))
			c.Text("30", sign.X-7, sign.Y-8, withAlpha(colorHousing, alpha))
			c.Text("SCHOOL", pos.X-21, pos.Y-8, withAlpha(colorYellow, alpha))
		case Intersection:
			half := s.tuning.World.RoadWidth / 2
			corners := []Vec2{{pos.X - roadHalf, pos.Y - half}, {pos.X + roadHalf, pos.Y - half}, {pos.X + roadHalf, pos.Y + half}, {pos.X - roadHalf, pos.Y + half}}
			for i := range corners {
				a, b := corners[i], corners[(i+1)%len(corners)]
				c.StrokeLine(a.X, a.Y, b.X, b.Y, 2, withAlpha(colorYellow, alpha/2))
			}
		}
	}
}

func (p Painter) paintVehicle(c Canvas, cam camera, s *Simulation) {
	v := s.controller.Vehicle()
	body := Footprint(v.Position, v.Heading, v.Width, v.Length)
	screen := make([]Vec2, len(body))
	for i, pt := range body {
		screen[i] = cam.apply(pt)
	}
	c.FillPolygon(screen, colorCar)

	// Windscreen in the front third of the body.
	front := v.Position.Add(Vec2{math.Cos(v.Heading), math.Sin(v.Heading)}.Scale(v.Length / 5))
	glass := Footprint(front, v.Heading, v.Width*0.8, v.Length/5)
	for i, pt := range glass {
		screen[i] = cam.apply(pt)
	}
	c.FillPolygon(screen, colorGlass)
}

func (p Painter) paintUI(c Canvas, s *Simulation) {
	w, h := c.Size()
	stats := s.scenarios.Stats()

	c.FillRect(8, 8, 210, 70, colorPanel)
	c.Text(fmt.Sprintf("Speed: %3.0f km/h", math.Abs(s.controller.SpeedKmh())), 16, 14, colorWhite)
	c.Text(fmt.Sprintf("Scenario: %d/%d", stats.ScenariosCompleted, ScenariosPerRun), 16, 14+lineHeight, colorWhite)
	c.Text(fmt.Sprintf("Score: %d", stats.Score), 16, 14+2*lineHeight, colorWhite)

	if s.advisory != "" {
		msg := s.advisory
		x := w/2 - float64(len(msg)*charWidth)/2
		c.FillRect(x-10, 12, float64(len(msg)*charWidth)+20, 24, colorPanel)
		c.Text(msg, x, 16, colorAdvisory)
	}

	if s.fatal != "" {
		c.FillRect(0, h/2-30, w, 60, colorWrong)
		c.Text(s.fatal, 20, h/2-8, colorWhite)
		return
	}

	switch s.scenarios.Phase() {
	case PhasePresenting:
		p.paintScenario(c, s)
	case PhaseFinished:
		p.paintResults(c, s)
	}

	if s.paused {
		msg := s.tuning.Messages.Paused
		c.FillRect(w/2-60, h/2-20, 120, 40, colorPanel)
		c.Text(msg, w/2-float64(len(msg)*charWidth)/2, h/2-8, colorWhite)
	}
}

func (p Painter) paintScenario(c Canvas, s *Simulation) {
	view := s.scenarios.Current()
	if view == nil {
		return
	}
	w, h := c.Size()
	panel := ScenarioPanel(w, h)
	c.FillRect(panel.X, panel.Y, panel.W, panel.H, colorPanel)
	y := panel.Y + 10
	c.Text(view.Title, panel.X+12, y, colorYellow)
	y += lineHeight + 4
	for _, line := range wrapText(view.Prompt, int((panel.W-24)/charWidth)) {
		c.Text(line, panel.X+12, y, colorWhite)
		y += lineHeight
	}

	for i, opt := range view.Options {
		r := OptionRect(w, h, i)
		clr := colorButton
		if view.Answered && view.Result != nil {
			switch {
			case i == view.Result.CorrectOption:
				clr = colorCorrect
			case i == view.Result.SelectedOption:
				clr = colorWrong
			}
		}
		c.FillRect(r.X, r.Y, r.W, r.H, clr)
		label := fmt.Sprintf("%d. %s", i+1, opt)
		if limit := int((r.W - 16) / charWidth); len(label) > limit && limit > 3 {
			label = label[:limit-3] + "..."
		}
		c.Text(label, r.X+8, r.Y+6, colorWhite)
	}

	if view.Answered && view.Explanation != "" {
		last := OptionRect(w, h, len(view.Options)-1)
		c.Text(view.Explanation, panel.X+12, last.Y+last.H+8, colorMuted)
	}
}

func (p Painter) paintResults(c Canvas, s *Simulation) {
	w, h := c.Size()
	panel := ScenarioPanel(w, h)
	c.FillRect(panel.X, panel.Y, panel.W, panel.H, colorPanel)
	stats := s.scenarios.Stats()
	y := panel.Y + 12
	line := func(text string, clr color.RGBA) {
		c.Text(text, panel.X+12, y, clr)
		y += lineHeight + 2
	}

	line(fmt.Sprintf(s.tuning.Messages.Finished, stats.CorrectCount, stats.ScenariosCompleted), colorYellow)
	if payload := s.reporter.Payload(); payload != nil {
		line(fmt.Sprintf("Score: %.0f%%  (%d correct, %d wrong)", payload.ScorePercentage, payload.CorrectCount, payload.WrongCount), colorWhite)
		line(fmt.Sprintf("Time: %.0fs", payload.ElapsedSeconds), colorWhite)
	} else {
		line(fmt.Sprintf("Score: %d", stats.Score), colorWhite)
		line("Press Enter to finish and submit your results", colorMuted)
	}
	for _, r := range stats.PerScenario {
		mark, clr := "x", colorWrong
		if r.IsCorrect {
			mark, clr = "+", colorCorrect
		}
		line(fmt.Sprintf("%s %s (%d pts)", mark, r.ScenarioID, r.PointsEarned), clr)
	}

	status := s.reporter.Status()
	switch status.State {
	case SubmissionPending:
		line("Submitting results...", colorMuted)
	case SubmissionSubmitted:
		line(s.tuning.Messages.SubmissionSaved, colorCorrect)
	case SubmissionFailed:
		line(s.tuning.Messages.SubmissionFailed, colorAdvisory)
	}
}

// ScenarioPanel is the screen area of the question panel
func ScenarioPanel(w, h float64) Rect {
	return Rect{X: 20, Y: h * 0.45, W: w - 40, H: h*0.55 - 20}
}

// OptionRect is the clickable area of answer option i
func OptionRect(w, h float64, i int) Rect {
	panel := ScenarioPanel(w, h)
	return Rect{
		X: panel.X + 12,
		Y: panel.Y + 4*lineHeight + float64(i)*(lineHeight+12),
		W: panel.W - 24,
		H: lineHeight + 8,
	}
}

// OptionAt returns the answer option under a screen point
func OptionAt(w, h, x, y float64, options int) (int, bool) {
	for i := 0; i < options; i++ {
		if OptionRect(w, h, i).Contains(x, y) {
			return i, true
		}
	}
	return 0, false
}

func lightColor(st LightState) color.RGBA {
	switch st {
	case LightRed:
		return colorRed
	case LightYellow:
		return colorYellow
	default:
		return colorGreen
	}
}

func withAlpha(c color.RGBA, a uint8) color.RGBA {
	c.A = uint8(uint16(c.A) * uint16(a) / 0xff)
	return c
}

func octagon(center Vec2, r float64) []Vec2 {
	pts := make([]Vec2, 8)
	for i := range pts {
		a := math.Pi/8 + float64(i)*math.Pi/4
		pts[i] = Vec2{center.X + r*math.Cos(a), center.Y + r*math.Sin(a)}
	}
	return pts
}

// wrapText breaks s into lines of at most width characters
func wrapText(s string, width int) []string {
	if width < 1 {
		return []string{s}
	}
	var lines []string
	var cur strings.Builder
	for _, word := range strings.Fields(s) {
		if cur.Len() > 0 && cur.Len()+1+len(word) > width {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}
