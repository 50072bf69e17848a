package telemetry

import (
	"time"

	"github.com/paulmach/orb"

	"evstudy.dev/zmap/math"
	"evstudy.dev/zmap/metrics"
)

const (
	REASON_FIRST             = "first"
	REASON_NOT_ADJACENT      = "not_adjacent"
	REASON_GAP               = "gap"
	REASON_NO_POSITION       = "no_position"
	REASON_ZERO_DISTANCE     = "zero_distance"
	REASON_ELEVATION_UNKNOWN = "elevation_unknown"
)

// Observation is one position report of an entity at a simulation time in
// seconds. Position is (lon, lat) in degrees.
type Observation struct {
	Time        float64
	Entity      string
	Position    orb.Point
	HasPosition bool
	Local       orb.Point
	HasLocal    bool
	Elevation   Value
	Speed       Value
	EdgeID      string
	ChargeWh    Value
	CapacityWh  Value
}

// Sample is an observation with the values derived from the entity's
// previous observation.
type Sample struct {
	Observation
	Accel    Value
	Distance Value
	GradePct Value
	GradeDeg Value
	// Reason tells why GradePct is unknown
	Reason string
}

// Estimator keeps the last observation of every entity. It is not safe for
// concurrent use; shard by entity to parallelize.
type Estimator struct {
	maxGap  float64
	last    map[string]Observation
	metrics *metrics.Collector
}

// NewEstimator returns an estimator that treats observations more than maxGap
// apart as the start of a new trip. Zero disables the gap check.
func NewEstimator(maxGap time.Duration, mc *metrics.Collector) *Estimator {
	return &Estimator{
		maxGap:  maxGap.Seconds(),
		last:    map[string]Observation{},
		metrics: mc,
	}
}

func (e *Estimator) unknown(s Sample, reason string) Sample {
	s.Reason = reason
	e.metrics.GradeMissing(reason)
	return s
}

func (e *Estimator) Update(o Observation) Sample {
	e.metrics.TelemetrySample()
	s := Sample{Observation: o}
	prev, ok := e.last[o.Entity]
	e.last[o.Entity] = o
	if !ok {
		return e.unknown(s, REASON_FIRST)
	}

	elapsed := o.Time - prev.Time
	if elapsed <= 0 {
		return e.unknown(s, REASON_NOT_ADJACENT)
	}
	if o.Speed.Known && prev.Speed.Known {
		s.Accel = Known((o.Speed.V - prev.Speed.V) / elapsed)
	}
	if e.maxGap > 0 && elapsed > e.maxGap {
		return e.unknown(s, REASON_GAP)
	}

	if !o.HasPosition || !prev.HasPosition {
		return e.unknown(s, REASON_NO_POSITION)
	}
	a := math.NewPosition(prev.Position[1], prev.Position[0])
	b := math.NewPosition(o.Position[1], o.Position[0])
	d := a.DistanceTo(b)
	s.Distance = Known(d)

	if !o.Elevation.Known || !prev.Elevation.Known {
		return e.unknown(s, REASON_ELEVATION_UNKNOWN)
	}
	rise := o.Elevation.V - prev.Elevation.V
	pct, ok := math.GradePercent(rise, d)
	if !ok {
		return e.unknown(s, REASON_ZERO_DISTANCE)
	}
	s.GradePct = Known(pct)
	s.GradeDeg = Known(math.GradeAngle(rise, d))
	return s
}

// Forget drops the state of an entity that left the simulation.
func (e *Estimator) Forget(entity string) {
	delete(e.last, entity)
}

func (e *Estimator) Len() int {
	return len(e.last)
}
