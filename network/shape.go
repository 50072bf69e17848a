package network

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	ms "evstudy.dev/zmap/settings"
)

var ErrMalformedGeometry = errors.New("malformed geometry")

// ParsePoint reads the x,y part of a token with at least two comma separated
// components. Any further components are ignored.
func ParsePoint(token string) (orb.Point, error) {
	parts := strings.Split(token, ",")
	if len(parts) < 2 {
		return orb.Point{}, errors.Wrapf(ErrMalformedGeometry, "token %q", token)
	}
	x, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return orb.Point{}, errors.Wrapf(ErrMalformedGeometry, "token %q", token)
	}
	y, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return orb.Point{}, errors.Wrapf(ErrMalformedGeometry, "token %q", token)
	}
	return orb.Point{x, y}, nil
}

// ParseShape reads a whitespace separated shape. Malformed tokens are skipped
// and returned alongside the points that could be read.
func ParseShape(shape string) (orb.LineString, []error) {
	var errs []error
	points := orb.LineString{}
	for _, token := range strings.Fields(shape) {
		p, err := ParsePoint(token)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		points = append(points, p)
	}
	return points, errs
}

// Is3D reports whether every token of shape is an x,y,z triple.
func Is3D(shape string) bool {
	tokens := strings.Fields(shape)
	for _, token := range tokens {
		if strings.Count(token, ",") != 2 {
			return false
		}
	}
	return len(tokens) > 0
}

func FormatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', ms.COORD_PRECISION, 64)
}

// FormatShape3D writes x,y,z triples. zs must have one value per point.
func FormatShape3D(points orb.LineString, zs []float64) string {
	b := make([]byte, 0, len(points)*32)
	for i, p := range points {
		if i > 0 {
			b = append(b, ' ')
		}
		b = strconv.AppendFloat(b, p[0], 'f', ms.COORD_PRECISION, 64)
		b = append(b, ',')
		b = strconv.AppendFloat(b, p[1], 'f', ms.COORD_PRECISION, 64)
		b = append(b, ',')
		b = strconv.AppendFloat(b, zs[i], 'f', ms.COORD_PRECISION, 64)
	}
	return string(b)
}
