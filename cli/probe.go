package cli

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"evstudy.dev/zmap/enrich"
	"evstudy.dev/zmap/math"
	"evstudy.dev/zmap/network"
	"evstudy.dev/zmap/raster"
)

type ProbeResult struct {
	Local      orb.Point
	Geographic orb.Point
	Elevation  float64
	Err        error
	Nearest    *network.Match
	// Extent is the raster coverage, set when the point is outside it
	Extent *math.Box
}

func (r ProbeResult) String() string {
	s := fmt.Sprintf("x: %.3f\ny: %.3f\nlon: %.7f\nlat: %.7f\n", r.Local[0], r.Local[1], r.Geographic[0], r.Geographic[1])
	if r.Err != nil {
		s += fmt.Sprintf("elevation: unknown (%v)\n", r.Err)
	} else {
		s += fmt.Sprintf("elevation: %.3f\n", r.Elevation)
	}
	if r.Nearest != nil {
		s += fmt.Sprintf("nearest edge: %s (%.1f m)\n", r.Nearest.Edge.ID, r.Nearest.Distance)
	}
	if r.Extent != nil {
		s += fmt.Sprintf("raster covers lon %.5f..%.5f lat %.5f..%.5f\n", r.Extent.MinPos.Lon(), r.Extent.MaxPos.Lon(), r.Extent.MinPos.Lat(), r.Extent.MaxPos.Lat())
	}
	return s
}

// Probe samples one point. net may be nil.
func Probe(ctx context.Context, session *enrich.Session, net *network.Network, local orb.Point) ProbeResult {
	r := ProbeResult{Local: local}
	if net != nil {
		if match, ok := net.NearestEdge(local); ok {
			r.Nearest = &match
		}
	}
	geo, err := session.Transformer().ToGeographic(local)
	if err == nil {
		r.Geographic = geo
	}
	r.Elevation, r.Err = session.Elevation(ctx, local)
	if errors.Is(r.Err, raster.ErrOutOfBounds) {
		if extent, err := rasterExtent(session); err == nil {
			r.Extent = &extent
		}
	}
	return r
}

// rasterExtent converts the corners of a raster source to lon/lat.
func rasterExtent(session *enrich.Session) (math.Box, error) {
	src, ok := session.Source().(enrich.RasterSource)
	if !ok {
		return math.Box{}, errors.New("source is not a raster")
	}
	b := src.Grid.Bounds()
	t := session.Transformer()
	extent := math.EmptyBox()
	for _, c := range []orb.Point{b.Min, b.Max, {b.Min[0], b.Max[1]}, {b.Max[0], b.Min[1]}} {
		local, err := t.FromRasterNative(c)
		if err != nil {
			return math.Box{}, err
		}
		geo, err := t.ToGeographic(local)
		if err != nil {
			return math.Box{}, err
		}
		extent.Extend(math.NewPosition(geo[1], geo[0]))
	}
	return extent, nil
}

func runProbe(ctx context.Context, cmd *cli.Command) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	net, f, err := readNetwork(cmd.String("net"))
	if err != nil {
		return err
	}
	session, err := openSession(s, f, cmd.String("raster"), nil)
	if err != nil {
		return err
	}
	defer session.Close()

	var local orb.Point
	switch {
	case cmd.IsSet("x") && cmd.IsSet("y"):
		local = orb.Point{cmd.Float64("x"), cmd.Float64("y")}
	case cmd.IsSet("lon") && cmd.IsSet("lat"):
		local, err = session.Transformer().FromGeographic(orb.Point{cmd.Float64("lon"), cmd.Float64("lat")})
	default:
		local, err = promptPoint(session.Transformer())
	}
	if err != nil {
		return err
	}

	fmt.Print(Probe(ctx, session, net, local))
	return nil
}
