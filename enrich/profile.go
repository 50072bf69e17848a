package enrich

import (
	"context"

	"github.com/paulmach/orb"

	"evstudy.dev/zmap/math"
	"evstudy.dev/zmap/network"
)

// Profile is the terrain sampled along the resampled geometry of one edge.
type Profile struct {
	ID     string
	Points orb.LineString
	Z      []float64
	Known  []bool
	Length float64
}

// Grade is the end to end slope. It is unknown when either end has no
// elevation or the edge has no length.
func (p Profile) Grade() (pct, deg float64, ok bool) {
	n := len(p.Points)
	if n < 2 || !p.Known[0] || !p.Known[n-1] {
		return 0, 0, false
	}
	rise := p.Z[n-1] - p.Z[0]
	pct, ok = math.GradePercent(rise, p.Length)
	if !ok {
		return 0, 0, false
	}
	return pct, math.GradeAngle(rise, p.Length), true
}

func (e *Enricher) Profile(ctx context.Context, net *network.Network, edge *network.Edge) (Profile, error) {
	stats := Stats{}
	p := Profile{ID: edge.ID}
	var shape orb.LineString
	if edge.HasShape {
		shape = e.resampled(edge.Shape, &stats)
	} else {
		shape, _ = net.EdgeGeometry(edge)
	}
	p.Points = shape
	p.Length = math.Length(shape)
	p.Z = make([]float64, len(shape))
	p.Known = make([]bool, len(shape))
	for i, pt := range shape {
		z, found, err := e.elevation(ctx, pt, &stats)
		if err != nil {
			return p, err
		}
		p.Z[i], p.Known[i] = z, found
	}
	return p, nil
}
