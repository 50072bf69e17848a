package enrich

import (
	"context"
	"sync"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"evstudy.dev/zmap/frame"
	"evstudy.dev/zmap/raster"
)

// Source looks up an elevation for a point given in the source's own CRS.
type Source interface {
	Elevation(ctx context.Context, p orb.Point) (float64, error)
	CRS() string
	Close() error
}

type RasterSource struct {
	Grid *raster.Grid
}

func (r RasterSource) Elevation(_ context.Context, p orb.Point) (float64, error) {
	return r.Grid.Sample(p[0], p[1])
}

func (r RasterSource) CRS() string {
	return r.Grid.CRS
}

func (r RasterSource) Close() error {
	return r.Grid.Close()
}

// Session owns an elevation source and the transform from a network's local
// frame into the source's CRS for the duration of one run.
type Session struct {
	transformer *frame.Transformer
	source      Source

	once     sync.Once
	closeErr error
}

// NewSession takes ownership of source and closes it when the session cannot
// be created. crs overrides the CRS the source declares.
func NewSession(f frame.Frame, source Source, crs string) (*Session, error) {
	if crs == "" {
		crs = source.CRS()
	}
	if crs == "" {
		source.Close()
		return nil, &frame.ConfigurationError{Field: "raster CRS", Err: errors.New("raster does not declare a supported CRS, set raster_crs")}
	}
	t, err := frame.NewTransformer(f, crs)
	if err != nil {
		source.Close()
		return nil, err
	}
	return &Session{transformer: t, source: source}, nil
}

func OpenRaster(f frame.Frame, path, crs string) (*Session, error) {
	g, err := raster.Open(path)
	if err != nil {
		return nil, err
	}
	return NewSession(f, RasterSource{Grid: g}, crs)
}

func (s *Session) Transformer() *frame.Transformer {
	return s.transformer
}

func (s *Session) Source() Source {
	return s.source
}

// Elevation samples the source at a point in local frame coordinates.
func (s *Session) Elevation(ctx context.Context, local orb.Point) (float64, error) {
	p, err := s.transformer.ToRasterNative(local)
	if err != nil {
		return 0, err
	}
	return s.source.Elevation(ctx, p)
}

// Close releases the source. It is safe to call more than once.
func (s *Session) Close() error {
	s.once.Do(func() {
		s.closeErr = s.source.Close()
	})
	return s.closeErr
}
