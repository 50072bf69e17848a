package enrich

import (
	"context"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"evstudy.dev/zmap/math"
	"evstudy.dev/zmap/metrics"
	"evstudy.dev/zmap/network"
	"evstudy.dev/zmap/raster"
	ms "evstudy.dev/zmap/settings"
)

const (
	REASON_OUT_OF_BOUNDS = "out_of_bounds"
	REASON_NO_DATA       = "no_data"
	REASON_ERROR         = "error"
)

type Options struct {
	SamplesPer100m float64
	MinSamples     int
	MissingZ       string
	EnrichLanes    bool
}

func OptionsFrom(s ms.ZmapSettings) Options {
	return Options{
		SamplesPer100m: s.SamplesPer100m,
		MinSamples:     s.MinSamples,
		MissingZ:       s.MissingZ,
		EnrichLanes:    s.EnrichLanes,
	}
}

func DefaultOptions() Options {
	s := ms.ZmapSettings{}
	s.Default()
	return OptionsFrom(s)
}

// Progress is satisfied by progressbar.ProgressBar.
type Progress interface {
	ChangeMax(max int)
	Add(num int) error
}

type Stats struct {
	JunctionsEnriched int
	JunctionsUnknown  int
	JunctionsSkipped  int
	EdgesEnriched     int
	EdgesSynthesized  int
	EdgesInternal     int
	EdgesKept         int
	EdgesNoGeometry   int
	LanesEnriched     int
	PointsSampled     int
	PointsUnknown     int
	MalformedTokens   int
}

type Enricher struct {
	session  *Session
	opts     Options
	metrics  *metrics.Collector
	Progress Progress
}

func New(session *Session, opts Options, m *metrics.Collector) *Enricher {
	if opts.SamplesPer100m <= 0 {
		opts.SamplesPer100m = ms.SAMPLES_PER_100M
	}
	if opts.MinSamples < 1 {
		opts.MinSamples = ms.MIN_SAMPLES
	}
	if opts.MissingZ == "" {
		opts.MissingZ = ms.MISSING_Z_ZERO
	}
	return &Enricher{session: session, opts: opts, metrics: m}
}

func reason(err error) string {
	switch {
	case errors.Is(err, raster.ErrOutOfBounds):
		return REASON_OUT_OF_BOUNDS
	case errors.Is(err, raster.ErrNoData):
		return REASON_NO_DATA
	default:
		return REASON_ERROR
	}
}

func (e *Enricher) step() {
	if e.Progress != nil {
		_ = e.Progress.Add(1)
	}
}

// elevation samples one local point. Only a canceled context is returned as
// an error; every other failure is reported as unknown.
func (e *Enricher) elevation(ctx context.Context, p orb.Point, stats *Stats) (float64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	stats.PointsSampled++
	e.metrics.PointSampled()
	z, err := e.session.Elevation(ctx, p)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, false, ctxErr
		}
		stats.PointsUnknown++
		e.metrics.Unknown(reason(err))
		slog.Debug("no elevation for point", "x", p[0], "y", p[1], "error", err)
		return 0, false, nil
	}
	return z, true, nil
}

// shape3D samples every point of shape. ok is false when the missing
// elevation policy keeps the original geometry.
func (e *Enricher) shape3D(ctx context.Context, shape orb.LineString, stats *Stats) (string, bool, error) {
	zs := make([]float64, len(shape))
	unknown := 0
	for i, p := range shape {
		z, found, err := e.elevation(ctx, p, stats)
		if err != nil {
			return "", false, err
		}
		if !found {
			unknown++
		}
		zs[i] = z
	}
	if unknown > 0 && e.opts.MissingZ == ms.MISSING_Z_KEEP {
		return "", false, nil
	}
	return network.FormatShape3D(shape, zs), true, nil
}

// resampled is the point set to sample for a shape attribute. Shapes that
// are already x,y,z triples keep their points so a second pass rewrites only z.
func (e *Enricher) resampled(raw string, stats *Stats) orb.LineString {
	points, errs := network.ParseShape(raw)
	if len(errs) > 0 {
		stats.MalformedTokens += len(errs)
		e.metrics.Malformed(len(errs))
		slog.Debug("skipped malformed shape tokens", "count", len(errs), "error", errs[0])
	}
	if len(points) == 0 {
		return nil
	}
	if network.Is3D(raw) {
		return points
	}
	n := math.SampleCount(math.Length(points), e.opts.SamplesPer100m, e.opts.MinSamples)
	return math.Resample(points, n)
}

// Enrich returns doc with junction z values and 3D edge shapes. Everything
// outside the rewritten attribute values is copied unchanged.
func (e *Enricher) Enrich(ctx context.Context, doc []byte) ([]byte, Stats, error) {
	net, err := network.Parse(doc)
	if err != nil {
		return nil, Stats{}, err
	}
	return e.EnrichNetwork(ctx, net)
}

// EnrichNetwork is Enrich for an already parsed network.
func (e *Enricher) EnrichNetwork(ctx context.Context, net *network.Network) ([]byte, Stats, error) {
	stats := Stats{}
	splicer := network.NewSplicer(net.Doc)
	if e.Progress != nil {
		e.Progress.ChangeMax(len(net.Junctions) + len(net.Edges))
	}

	slog.Info("Enriching Junctions", "count", len(net.Junctions))
	for _, j := range net.Junctions {
		e.step()
		if !j.HasXY {
			stats.JunctionsSkipped++
			e.metrics.Junction("skipped")
			continue
		}
		z, found, err := e.elevation(ctx, j.Point, &stats)
		if err != nil {
			return nil, stats, err
		}
		if !found {
			// unknown stays unset, including a z from an earlier pass
			splicer.Remove(j.Element, "z")
			stats.JunctionsUnknown++
			e.metrics.Junction("unknown")
			continue
		}
		splicer.Set(j.Element, "z", network.FormatCoord(z))
		stats.JunctionsEnriched++
		e.metrics.Junction("enriched")
	}

	slog.Info("Enriching Edges", "count", len(net.Edges))
	for i := range net.Edges {
		edge := &net.Edges[i]
		e.step()
		if edge.Internal() {
			stats.EdgesInternal++
			e.metrics.Edge("internal")
			continue
		}

		var shape orb.LineString
		synthesized := false
		if edge.HasShape {
			shape = e.resampled(edge.Shape, &stats)
		} else {
			shape, _ = net.EdgeGeometry(edge)
			synthesized = true
		}

		switch {
		case len(shape) == 0:
			stats.EdgesNoGeometry++
			e.metrics.Edge("no_geometry")
			slog.Debug("edge has no usable geometry", "id", edge.ID)
		default:
			value, ok, err := e.shape3D(ctx, shape, &stats)
			if err != nil {
				return nil, stats, err
			}
			switch {
			case !ok:
				stats.EdgesKept++
				e.metrics.Edge("kept")
			case synthesized:
				splicer.Set(edge.Element, "shape", value)
				stats.EdgesSynthesized++
				e.metrics.Edge("synthesized")
			default:
				splicer.Set(edge.Element, "shape", value)
				stats.EdgesEnriched++
				e.metrics.Edge("shape")
			}
		}

		if !e.opts.EnrichLanes {
			continue
		}
		for _, lane := range edge.Lanes {
			shape := e.resampled(lane.Shape, &stats)
			if len(shape) == 0 {
				continue
			}
			value, ok, err := e.shape3D(ctx, shape, &stats)
			if err != nil {
				return nil, stats, err
			}
			if ok {
				splicer.Set(lane.Element, "shape", value)
				stats.LanesEnriched++
				e.metrics.Edge("lane")
			}
		}
	}

	if stats.PointsUnknown > 0 {
		slog.Warn("elevation unknown for some points",
			"points", stats.PointsUnknown,
			"junctions_unset", stats.JunctionsUnknown,
			"edges_kept", stats.EdgesKept,
			"missing_z", e.opts.MissingZ)
	}
	return splicer.Bytes(), stats, nil
}
