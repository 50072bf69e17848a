package network

import (
	m "math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"evstudy.dev/zmap/math"
)

// EdgeGeometry is the 2D shape of an edge, from its shape attribute or from
// its end junctions.
func (n *Network) EdgeGeometry(e *Edge) (orb.LineString, []error) {
	if e.HasShape {
		return ParseShape(e.Shape)
	}
	from, okf := n.Junction(e.From)
	to, okt := n.Junction(e.To)
	if !okf || !okt || !from.HasXY || !to.HasXY {
		return nil, nil
	}
	return orb.LineString{from.Point, to.Point}, nil
}

type Match struct {
	Edge     *Edge
	Point    orb.Point
	Distance float64
}

// NearestEdge finds the non-internal edge closest to p in local coordinates.
func (n *Network) NearestEdge(p orb.Point) (Match, bool) {
	best := Match{Distance: m.Inf(1)}
	for i := range n.Edges {
		e := &n.Edges[i]
		if e.Internal() {
			continue
		}
		shape, _ := n.EdgeGeometry(e)
		for s := 0; s+1 < len(shape); s++ {
			line := math.Line{Start: shape[s], End: shape[s+1]}
			q, _ := line.NearestPoint(p)
			if d := planar.Distance(p, q); d < best.Distance {
				best = Match{Edge: e, Point: q, Distance: d}
			}
		}
	}
	return best, best.Edge != nil
}
