package telemetry

import (
	"sort"
)

// FillElevationGaps replaces unknown elevations by linear interpolation in
// time between the known neighbours of the same entity. Before the first and
// after the last known value the nearest known value is repeated. Entities
// without any known elevation are left unknown. It returns the number of
// values filled.
func FillElevationGaps(obs []Observation, zeroIsUnknown bool) int {
	if zeroIsUnknown {
		for i := range obs {
			if obs[i].Elevation.Known && obs[i].Elevation.V == 0 {
				obs[i].Elevation = Unknown()
			}
		}
	}

	byEntity := map[string][]int{}
	order := []string{}
	for i, o := range obs {
		if _, ok := byEntity[o.Entity]; !ok {
			order = append(order, o.Entity)
		}
		byEntity[o.Entity] = append(byEntity[o.Entity], i)
	}

	filled := 0
	for _, entity := range order {
		idx := byEntity[entity]
		sort.SliceStable(idx, func(a, b int) bool {
			return obs[idx[a]].Time < obs[idx[b]].Time
		})
		filled += fillTrack(obs, idx)
	}
	return filled
}

func fillTrack(obs []Observation, idx []int) int {
	known := []int{}
	for _, i := range idx {
		if obs[i].Elevation.Known {
			known = append(known, i)
		}
	}
	if len(known) == 0 || len(known) == len(idx) {
		return 0
	}

	filled := 0
	k := 0
	for _, i := range idx {
		if obs[i].Elevation.Known {
			continue
		}
		for k < len(known) && obs[known[k]].Time <= obs[i].Time {
			k++
		}
		switch {
		case k == 0:
			obs[i].Elevation = obs[known[0]].Elevation
		case k == len(known):
			obs[i].Elevation = obs[known[k-1]].Elevation
		default:
			before, after := obs[known[k-1]], obs[known[k]]
			span := after.Time - before.Time
			frac := 0.0
			if span > 0 {
				frac = (obs[i].Time - before.Time) / span
			}
			obs[i].Elevation = Known(before.Elevation.V + frac*(after.Elevation.V-before.Elevation.V))
		}
		filled++
	}
	return filled
}

// StateOfCharge is the battery charge in percent of its capacity.
func StateOfCharge(chargeWh, capacityWh Value) Value {
	if !chargeWh.Known || !capacityWh.Known || capacityWh.V == 0 {
		return Unknown()
	}
	return Known(100 * chargeWh.V / capacityWh.V)
}
