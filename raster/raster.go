package raster

import (
	"math"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

var (
	ErrOutOfBounds = errors.New("point outside raster")
	ErrNoData      = errors.New("no data at pixel")
	ErrClosed      = errors.New("raster is closed")
)

// GeoTransform is an affine pixel transform in GDAL order:
// x = [0] + col*[1] + row*[2], y = [3] + col*[4] + row*[5].
type GeoTransform [6]float64

func (gt GeoTransform) Apply(row, col float64) (x, y float64) {
	return gt[0] + col*gt[1] + row*gt[2], gt[3] + col*gt[4] + row*gt[5]
}

// Fractional returns the fractional pixel position of (x, y) measured from
// the grid's top-left corner.
func (gt GeoTransform) Fractional(x, y float64) (row, col float64, err error) {
	det := gt[1]*gt[5] - gt[2]*gt[4]
	if det == 0 || math.IsNaN(det) {
		return 0, 0, errors.New("geotransform is not invertible")
	}
	dx := x - gt[0]
	dy := y - gt[3]
	col = (gt[5]*dx - gt[2]*dy) / det
	row = (gt[1]*dy - gt[4]*dx) / det
	return row, col, nil
}

// RowCol rounds the fractional position to the nearest index, halves away
// from zero.
func (gt GeoTransform) RowCol(x, y float64) (row, col int, err error) {
	fr, fc, err := gt.Fractional(x, y)
	if err != nil {
		return 0, 0, err
	}
	if math.IsNaN(fr) || math.IsNaN(fc) || math.IsInf(fr, 0) || math.IsInf(fc, 0) {
		return 0, 0, errors.Errorf("point (%f, %f) has no pixel position", x, y)
	}
	return int(math.Round(fr)), int(math.Round(fc)), nil
}

// Grid is a single elevation band held in memory. It is read only after
// construction.
type Grid struct {
	Width     int
	Height    int
	Transform GeoTransform
	NoData    *float64
	CRS       string // PROJ4, empty when unknown
	EPSG      int    // 0 when unknown

	data  []float64
	valid []bool
}

// NewGrid takes ownership of data (row major, width*height samples) and
// derives the validity mask from nodata. NaN samples are never valid.
func NewGrid(width, height int, data []float64, gt GeoTransform, nodata *float64) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid raster size %dx%d", width, height)
	}
	if len(data) != width*height {
		return nil, errors.Errorf("raster has %d samples, expected %d", len(data), width*height)
	}
	if _, _, err := gt.Fractional(gt[0], gt[3]); err != nil {
		return nil, err
	}
	g := &Grid{
		Width:     width,
		Height:    height,
		Transform: gt,
		NoData:    nodata,
		data:      data,
		valid:     make([]bool, len(data)),
	}
	for i, v := range data {
		g.valid[i] = !math.IsNaN(v) && (nodata == nil || v != *nodata)
	}
	return g, nil
}

func (g *Grid) At(row, col int) (float64, error) {
	if g.data == nil {
		return 0, ErrClosed
	}
	if row < 0 || row >= g.Height || col < 0 || col >= g.Width {
		return 0, errors.Wrapf(ErrOutOfBounds, "row %d col %d", row, col)
	}
	i := row*g.Width + col
	if !g.valid[i] {
		return 0, errors.Wrapf(ErrNoData, "row %d col %d", row, col)
	}
	return g.data[i], nil
}

// Sample returns the elevation of the pixel nearest to (x, y) given in the
// raster's CRS.
func (g *Grid) Sample(x, y float64) (float64, error) {
	row, col, err := g.Transform.RowCol(x, y)
	if err != nil {
		return 0, errors.Wrap(ErrOutOfBounds, err.Error())
	}
	return g.At(row, col)
}

// Bounds is the extent of the grid in its own CRS.
func (g *Grid) Bounds() orb.Bound {
	b := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	for _, c := range [][2]float64{{0, 0}, {0, float64(g.Width)}, {float64(g.Height), 0}, {float64(g.Height), float64(g.Width)}} {
		x, y := g.Transform.Apply(c[0], c[1])
		b = b.Extend(orb.Point{x, y})
	}
	return b
}

func (g *Grid) Close() error {
	g.data = nil
	g.valid = nil
	return nil
}

// Open reads a raster by file extension.
func Open(path string) (*Grid, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		return ReadGeoTIFF(path)
	case ".asc":
		return ReadASCII(path)
	}
	return nil, errors.Errorf("unsupported raster format %q", filepath.Ext(path))
}
