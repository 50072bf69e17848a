package math

import (
	m "math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Length is the planar arc length of the polyline.
func Length(points orb.LineString) float64 {
	if len(points) < 2 {
		return 0
	}
	total := 0.0
	for i := range len(points) - 1 {
		total += planar.Distance(points[i], points[i+1])
	}
	return total
}

// SampleCount is the density policy used when densifying edge shapes: at least
// minSamples, otherwise perHundred points for every 100 units of length.
func SampleCount(length float64, perHundred float64, minSamples int) int {
	n := int(m.Floor(length / 100 * perHundred))
	return max(minSamples, n)
}

// Resample returns count points evenly spaced by arc length along points. The
// first and last points of the input are kept as the first and last outputs.
// A polyline without length collapses to count copies of its first point and
// count == 1 yields only the first point.
func Resample(points orb.LineString, count int) orb.LineString {
	if count < 1 || len(points) == 0 {
		return orb.LineString{}
	}
	out := make(orb.LineString, 0, count)

	segments := make([]float64, len(points)-1)
	total := 0.0
	for i := range segments {
		segments[i] = planar.Distance(points[i], points[i+1])
		total += segments[i]
	}
	if total == 0 {
		for range count {
			out = append(out, points[0])
		}
		return out
	}

	seg := 0
	traveled := 0.0 // arc length at the start of seg
	for i := range count {
		if i == count-1 && count > 1 {
			out = append(out, points[len(points)-1])
			break
		}
		target := 0.0
		if count > 1 {
			target = total * float64(i) / float64(count-1)
		}
		for seg < len(segments)-1 && traveled+segments[seg] < target {
			traveled += segments[seg]
			seg++
		}
		t := 0.0
		if segments[seg] > 0 {
			t = (target - traveled) / segments[seg]
		}
		line := Line{Start: points[seg], End: points[seg+1]}
		out = append(out, line.Interpolate(t))
	}
	return out
}
