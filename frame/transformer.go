package frame

import (
	"strings"

	"github.com/ctessum/geom/proj"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// Transformer converts local frame coordinates to geographic and raster
// coordinates. The projections are parsed once; conversions hold no state and
// are safe for concurrent use.
type Transformer struct {
	frame     Frame
	rasterCRS string
	toGeo     proj.Transformer
	fromGeo   proj.Transformer
	toRaster  proj.Transformer // nil when the raster shares the frame's projection
	fromRast  proj.Transformer
}

func parseSR(field, def string) (*proj.SR, error) {
	sr, err := proj.Parse(def)
	if err != nil {
		return nil, &ConfigurationError{Field: field, Value: def, Err: err}
	}
	return sr, nil
}

// NewTransformer prepares transforms for f. An empty rasterCRS means the
// raster uses the frame's projection.
func NewTransformer(f Frame, rasterCRS string) (*Transformer, error) {
	if f.ProjParameter == "" || f.ProjParameter == NO_PROJECTION {
		return nil, &ConfigurationError{Field: "projParameter", Value: f.ProjParameter, Err: errors.New("network has no projection")}
	}
	src, err := parseSR("projParameter", f.ProjParameter)
	if err != nil {
		return nil, err
	}
	geo, err := parseSR("geographic CRS", WGS84)
	if err != nil {
		return nil, err
	}

	t := &Transformer{frame: f, rasterCRS: strings.TrimSpace(rasterCRS)}
	t.toGeo, err = src.NewTransform(geo)
	if err != nil {
		return nil, &ConfigurationError{Field: "projParameter", Value: f.ProjParameter, Err: err}
	}
	t.fromGeo, err = geo.NewTransform(src)
	if err != nil {
		return nil, &ConfigurationError{Field: "projParameter", Value: f.ProjParameter, Err: err}
	}

	if t.rasterCRS == "" || t.rasterCRS == f.ProjParameter {
		t.rasterCRS = f.ProjParameter
		return t, nil
	}
	dst, err := parseSR("raster CRS", t.rasterCRS)
	if err != nil {
		return nil, err
	}
	t.toRaster, err = src.NewTransform(dst)
	if err != nil {
		return nil, &ConfigurationError{Field: "raster CRS", Value: t.rasterCRS, Err: err}
	}
	t.fromRast, err = dst.NewTransform(src)
	if err != nil {
		return nil, &ConfigurationError{Field: "raster CRS", Value: t.rasterCRS, Err: err}
	}
	return t, nil
}

func (t *Transformer) Frame() Frame {
	return t.frame
}

func (t *Transformer) RasterCRS() string {
	return t.rasterCRS
}

func (t *Transformer) ToProjected(local orb.Point) orb.Point {
	return t.frame.ToProjected(local)
}

// ToGeographic returns (lon, lat) in degrees.
func (t *Transformer) ToGeographic(local orb.Point) (orb.Point, error) {
	p := t.frame.ToProjected(local)
	lon, lat, err := t.toGeo(p[0], p[1])
	if err != nil {
		return orb.Point{}, errors.Wrapf(err, "could not convert %v to geographic", local)
	}
	return orb.Point{lon, lat}, nil
}

func (t *Transformer) FromGeographic(geo orb.Point) (orb.Point, error) {
	x, y, err := t.fromGeo(geo[0], geo[1])
	if err != nil {
		return orb.Point{}, errors.Wrapf(err, "could not convert %v to local", geo)
	}
	return t.frame.FromProjected(orb.Point{x, y}), nil
}

func (t *Transformer) ToRasterNative(local orb.Point) (orb.Point, error) {
	p := t.frame.ToProjected(local)
	if t.toRaster == nil {
		return p, nil
	}
	x, y, err := t.toRaster(p[0], p[1])
	if err != nil {
		return orb.Point{}, errors.Wrapf(err, "could not convert %v to raster CRS", local)
	}
	return orb.Point{x, y}, nil
}

func (t *Transformer) FromRasterNative(p orb.Point) (orb.Point, error) {
	if t.fromRast == nil {
		return t.frame.FromProjected(p), nil
	}
	x, y, err := t.fromRast(p[0], p[1])
	if err != nil {
		return orb.Point{}, errors.Wrapf(err, "could not convert %v from raster CRS", p)
	}
	return t.frame.FromProjected(orb.Point{x, y}), nil
}
