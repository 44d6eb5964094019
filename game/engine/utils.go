package engine

import "math"

// clamp limits v to [lo, hi]
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// moveToward moves current toward target by at most maxDelta
func moveToward(current, target, maxDelta float64) float64 {
	if math.Abs(target-current) <= maxDelta {
		return target
	}
	if target > current {
		return current + maxDelta
	}
	return current - maxDelta
}

// wrapAngle normalises an angle to (-pi, pi]
func wrapAngle(a float64) float64 {
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// NearestElement returns the closest untriggered element to p and its distance
func NearestElement(elements []RoadElement, p Vec2) (RoadElement, float64, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, e := range elements {
		if e.Triggered {
			continue
		}
		if d := e.Position.Dist(p); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return RoadElement{}, 0, false
	}
	return elements[best], bestDist, true
}

// CountElements counts elements by kind
func CountElements(elements []RoadElement) map[ElementKind]int {
	counts := make(map[ElementKind]int)
	for _, e := range elements {
		counts[e.Kind]++
	}
	return counts
}
