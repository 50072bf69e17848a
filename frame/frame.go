package frame

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

const (
	WGS84         = "+proj=longlat +datum=WGS84 +no_defs"
	WEB_MERCATOR  = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +no_defs"
	NO_PROJECTION = "!"
)

// Frame is a simulation-local planar coordinate system. Local coordinates
// are projected coordinates shifted by Offset (SUMO's netOffset).
type Frame struct {
	ProjParameter string
	Offset        orb.Point
	ConvBoundary  orb.Bound
	OrigBoundary  orb.Bound
}

type ConfigurationError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ParseLocation builds a frame from the attribute values of a SUMO location
// element. Boundaries are optional.
func ParseLocation(netOffset, convBoundary, origBoundary, projParameter string) (Frame, error) {
	f := Frame{ProjParameter: strings.TrimSpace(projParameter)}

	offset, err := parseNumbers(netOffset, 2)
	if err != nil {
		return f, &ConfigurationError{Field: "netOffset", Value: netOffset, Err: err}
	}
	f.Offset = orb.Point{offset[0], offset[1]}

	if convBoundary != "" {
		b, err := parseNumbers(convBoundary, 4)
		if err != nil {
			return f, &ConfigurationError{Field: "convBoundary", Value: convBoundary, Err: err}
		}
		f.ConvBoundary = orb.Bound{Min: orb.Point{b[0], b[1]}, Max: orb.Point{b[2], b[3]}}
	}
	if origBoundary != "" {
		b, err := parseNumbers(origBoundary, 4)
		if err != nil {
			return f, &ConfigurationError{Field: "origBoundary", Value: origBoundary, Err: err}
		}
		f.OrigBoundary = orb.Bound{Min: orb.Point{b[0], b[1]}, Max: orb.Point{b[2], b[3]}}
	}

	if f.ProjParameter == "" || f.ProjParameter == NO_PROJECTION {
		return f, &ConfigurationError{Field: "projParameter", Value: projParameter, Err: errors.New("network has no projection")}
	}
	return f, nil
}

func parseNumbers(s string, n int) ([]float64, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != n {
		return nil, errors.Errorf("expected %d comma separated numbers", n)
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.Wrap(err, "could not parse number")
		}
		out[i] = v
	}
	return out, nil
}

// ToProjected removes the frame offset.
func (f Frame) ToProjected(local orb.Point) orb.Point {
	return orb.Point{local[0] - f.Offset[0], local[1] - f.Offset[1]}
}

func (f Frame) FromProjected(projected orb.Point) orb.Point {
	return orb.Point{projected[0] + f.Offset[0], projected[1] + f.Offset[1]}
}

// EPSGProj4 maps the EPSG codes commonly found in elevation rasters to PROJ4
// strings. Other codes need an explicit override.
func EPSGProj4(code int) (string, error) {
	switch {
	case code == 4326:
		return WGS84, nil
	case code == 3857 || code == 900913:
		return WEB_MERCATOR, nil
	case code > 32600 && code <= 32660:
		return fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs", code-32600), nil
	case code > 32700 && code <= 32760:
		return fmt.Sprintf("+proj=utm +zone=%d +south +datum=WGS84 +units=m +no_defs", code-32700), nil
	}
	return "", &ConfigurationError{Field: "EPSG code", Value: strconv.Itoa(code), Err: errors.New("unsupported, set raster_crs")}
}
