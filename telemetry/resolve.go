package telemetry

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"evstudy.dev/zmap/utils"
)

// Locator converts between planar network coordinates and (lon, lat).
type Locator interface {
	ToGeographic(local orb.Point) (orb.Point, error)
	FromGeographic(geo orb.Point) (orb.Point, error)
}

// Elevator samples the terrain at a planar network coordinate.
type Elevator interface {
	Elevation(ctx context.Context, local orb.Point) (float64, error)
}

// Resolver completes observations: geographic positions for planar rows and
// sampled elevations for rows without one. Either field may be nil.
type Resolver struct {
	Locator  Locator
	Elevator Elevator
}

type ResolveStats struct {
	Located   int
	Sampled   int
	Unlocated int
	Unsampled int
}

func (r Resolver) Resolve(ctx context.Context, obs []Observation) (ResolveStats, error) {
	stats := ResolveStats{}
	for i := range obs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		o := &obs[i]
		if !o.HasPosition && o.HasLocal && r.Locator != nil {
			geo, err := r.Locator.ToGeographic(o.Local)
			if err != nil {
				stats.Unlocated++
				utils.Logde(errors.Wrap(err, "could not locate sample"), "entity", o.Entity, "t", o.Time)
			} else {
				o.Position = geo
				o.HasPosition = true
				stats.Located++
			}
		}

		if o.Elevation.Known || r.Elevator == nil {
			continue
		}
		local, ok := o.Local, o.HasLocal
		if !ok && o.HasPosition && r.Locator != nil {
			p, err := r.Locator.FromGeographic(o.Position)
			local, ok = p, err == nil
		}
		if !ok {
			stats.Unsampled++
			continue
		}
		z, err := r.Elevator.Elevation(ctx, local)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stats, ctxErr
			}
			stats.Unsampled++
			utils.Logde(errors.Wrap(err, "could not sample elevation"), "entity", o.Entity, "t", o.Time)
			continue
		}
		o.Elevation = Known(z)
		stats.Sampled++
	}
	return stats, nil
}
