package math

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Line is a single planar segment of a polyline.
type Line struct {
	Start, End orb.Point
}

func (l *Line) Length() float64 {
	return planar.Distance(l.Start, l.End)
}

// Interpolate returns the point at fraction t of the way from Start to End.
// t is clamped to [0, 1] and the end points are returned exactly at the bounds.
func (l *Line) Interpolate(t float64) orb.Point {
	t = max(0, min(1, t))
	if t == 0 {
		return l.Start
	}
	if t == 1 {
		return l.End
	}
	return orb.Point{
		l.Start[0] + (l.End[0]-l.Start[0])*t,
		l.Start[1] + (l.End[1]-l.Start[1])*t,
	}
}

// NearestPoint projects p onto the segment.
func (l *Line) NearestPoint(p orb.Point) (orb.Point, float64) {
	abx := l.End[0] - l.Start[0]
	aby := l.End[1] - l.Start[1]
	den := abx*abx + aby*aby
	if den == 0 {
		return l.Start, 0
	}
	t := ((p[0]-l.Start[0])*abx + (p[1]-l.Start[1])*aby) / den
	t = max(0, min(1, t))
	return l.Interpolate(t), t
}
