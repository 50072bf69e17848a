package telemetry

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/tkrajina/gpxgo/gpx"
)

// ReadGPX turns every track of a GPX document into the observations of one
// entity named after the track. Times are seconds since the earliest
// timestamp in the document.
func ReadGPX(data []byte) ([]Observation, error) {
	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse gpx")
	}

	obs := []Observation{}
	start := int64(0)
	hasStart := false
	for _, track := range doc.Tracks {
		for _, segment := range track.Segments {
			for _, p := range segment.Points {
				if p.Timestamp.IsZero() {
					continue
				}
				if ms := p.Timestamp.UnixMilli(); !hasStart || ms < start {
					start = ms
					hasStart = true
				}
			}
		}
	}
	if !hasStart {
		return nil, errors.New("gpx has no timestamped track points")
	}

	for i, track := range doc.Tracks {
		entity := track.Name
		if entity == "" {
			entity = fmt.Sprintf("track-%d", i)
		}
		for _, segment := range track.Segments {
			for _, p := range segment.Points {
				if p.Timestamp.IsZero() {
					continue
				}
				o := Observation{
					Time:        float64(p.Timestamp.UnixMilli()-start) / 1000,
					Entity:      entity,
					Position:    orb.Point{p.Longitude, p.Latitude},
					HasPosition: true,
				}
				if !p.Elevation.Null() {
					o.Elevation = Known(p.Elevation.Value())
				}
				obs = append(obs, o)
			}
		}
	}
	return obs, nil
}
