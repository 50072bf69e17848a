package math

import (
	m "math"

	ms "evstudy.dev/zmap/settings"
)

func NewPosition(latDeg, lonDeg float64) Position {
	return Position{latitudeDeg: latDeg, longitudeDeg: lonDeg}
}

// Position is a geographic WGS84 coordinate in degrees.
type Position struct {
	latitudeDeg  float64
	longitudeDeg float64
}

func (p *Position) LatRad() float64 {
	return p.latitudeDeg * ms.TO_RADIANS
}

func (p *Position) LonRad() float64 {
	return p.longitudeDeg * ms.TO_RADIANS
}

func (p *Position) Lat() float64 {
	return p.latitudeDeg
}

func (p *Position) Lon() float64 {
	return p.longitudeDeg
}

func (p *Position) Valid() bool {
	return !m.IsNaN(p.latitudeDeg) && !m.IsNaN(p.longitudeDeg) &&
		p.latitudeDeg >= -90 && p.latitudeDeg <= 90 &&
		p.longitudeDeg >= -180 && p.longitudeDeg <= 180
}

// DistanceTo is the great-circle distance in metres using the haversine formula.
func (p *Position) DistanceTo(end Position) float64 {
	latDiff := end.LatRad() - p.LatRad()
	lonDiff := end.LonRad() - p.LonRad()
	a := m.Pow(m.Sin(latDiff/2), 2) + m.Cos(p.LatRad())*m.Cos(end.LatRad())*m.Pow(m.Sin(lonDiff/2), 2)
	c := 2 * m.Atan2(m.Sqrt(a), m.Sqrt(1-a))

	return ms.EARTH_RADIUS * c // in metres
}
