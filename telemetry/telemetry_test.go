package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evstudy.dev/zmap/metrics"
)

func at(t float64, entity string, lon, lat float64, z Value) Observation {
	return Observation{
		Time:        t,
		Entity:      entity,
		Position:    orb.Point{lon, lat},
		HasPosition: true,
		Elevation:   z,
	}
}

func TestEstimatorGrade(t *testing.T) {
	e := NewEstimator(5*time.Second, nil)

	first := e.Update(at(0, "ev1", 0, 0, Known(0)))
	assert.False(t, first.GradePct.Known)
	assert.False(t, first.Distance.Known)
	assert.Equal(t, REASON_FIRST, first.Reason)

	s := e.Update(at(1, "ev1", 0.001, 0, Known(100)))
	require.True(t, s.GradePct.Known)
	assert.InDelta(t, 89.93, s.GradePct.V, 0.01)
	assert.InDelta(t, 41.9657, s.GradeDeg.V, 1e-4)
	assert.InDelta(t, 111.195, s.Distance.V, 0.001)
	assert.Empty(t, s.Reason)

	still := e.Update(at(2, "ev1", 0.001, 0, Known(100)))
	assert.False(t, still.GradePct.Known)
	assert.Equal(t, 0.0, still.Distance.V)
	assert.Equal(t, REASON_ZERO_DISTANCE, still.Reason)
}

func TestEstimatorAcceleration(t *testing.T) {
	e := NewEstimator(0, nil)
	a := at(0, "ev1", 30.52, 39.78, Unknown())
	a.Speed = Known(10)
	b := at(2, "ev1", 30.5201, 39.78, Unknown())
	b.Speed = Known(13)

	e.Update(a)
	s := e.Update(b)
	require.True(t, s.Accel.Known)
	assert.InDelta(t, 1.5, s.Accel.V, 1e-12)
	assert.True(t, s.Distance.Known)
	assert.False(t, s.GradePct.Known)
	assert.Equal(t, REASON_ELEVATION_UNKNOWN, s.Reason)
}

func TestEstimatorGaps(t *testing.T) {
	e := NewEstimator(5*time.Second, nil)
	e.Update(at(0, "ev1", 0, 0, Known(0)))

	assert.Equal(t, REASON_NOT_ADJACENT, e.Update(at(0, "ev1", 0.001, 0, Known(1))).Reason)
	assert.Equal(t, REASON_GAP, e.Update(at(20, "ev1", 0.002, 0, Known(2))).Reason)

	// the gap starts a new trip from the last sample
	s := e.Update(at(21, "ev1", 0.003, 0, Known(3)))
	require.True(t, s.GradePct.Known)
	assert.InDelta(t, 0.8993, s.GradePct.V, 1e-4)
}

func TestEstimatorEntities(t *testing.T) {
	reg := prometheus.NewRegistry()
	mc, err := metrics.NewCollector(reg)
	require.NoError(t, err)
	e := NewEstimator(time.Minute, mc)

	e.Update(at(0, "ev1", 0, 0, Known(0)))
	e.Update(at(0, "ev2", 1, 1, Known(0)))
	assert.Equal(t, 2, e.Len())

	s := e.Update(at(1, "ev2", 1.001, 1, Known(1)))
	assert.True(t, s.GradePct.Known)

	e.Forget("ev1")
	assert.Equal(t, 1, e.Len())
	assert.Equal(t, REASON_FIRST, e.Update(at(2, "ev1", 0.001, 0, Known(1))).Reason)

	noPos := Observation{Time: 3, Entity: "ev2"}
	assert.Equal(t, REASON_NO_POSITION, e.Update(noPos).Reason)

	assert.Equal(t, 5.0, testutil.ToFloat64(mc.TelemetrySamples))
	assert.Equal(t, 3.0, testutil.ToFloat64(mc.GradeUnknown.WithLabelValues(REASON_FIRST)))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.GradeUnknown.WithLabelValues(REASON_NO_POSITION)))
}

func TestValueCSV(t *testing.T) {
	v := Value{}
	require.NoError(t, v.UnmarshalCSV([]byte(" 12.5 ")))
	assert.Equal(t, Known(12.5), v)
	require.NoError(t, v.UnmarshalCSV([]byte("")))
	assert.False(t, v.Known)
	require.NoError(t, v.UnmarshalCSV([]byte("NaN")))
	assert.False(t, v.Known)
	assert.Error(t, v.UnmarshalCSV([]byte("abc")))

	out, err := Known(-0.25).MarshalCSV()
	require.NoError(t, err)
	assert.Equal(t, "-0.25", string(out))
	out, err = Unknown().MarshalCSV()
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestReadCSVPlanar(t *testing.T) {
	in := "t,veh_id,x,y,speed,extra,z\n" +
		"0,ev1,100,200,10,foo,\n" +
		"1.5,ev1,110,200,12,bar,805.25\n"
	obs, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, obs, 2)

	assert.Equal(t, "ev1", obs[0].Entity)
	assert.True(t, obs[0].HasLocal)
	assert.False(t, obs[0].HasPosition)
	assert.Equal(t, orb.Point{100, 200}, obs[0].Local)
	assert.False(t, obs[0].Elevation.Known)
	assert.Equal(t, Known(10), obs[0].Speed)
	assert.False(t, obs[0].CapacityWh.Known)

	assert.Equal(t, 1.5, obs[1].Time)
	assert.Equal(t, Known(805.25), obs[1].Elevation)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("t,lon,lat\n0,1,2\n"))
	assert.ErrorContains(t, err, "veh_id")

	_, err = ReadCSV(strings.NewReader("t,veh_id,lon\n0,a,1\n"))
	assert.ErrorContains(t, err, "lon,lat or x,y")

	_, err = ReadCSV(strings.NewReader("t,veh_id,lon,lat\n0,a,1,north\n"))
	assert.ErrorContains(t, err, "row 1")
}

func TestWriteCSV(t *testing.T) {
	a := Sample{Observation: Observation{
		Time:        0,
		Entity:      "ev1",
		Position:    orb.Point{30.52, 39.78},
		HasPosition: true,
		Elevation:   Known(800),
		Speed:       Known(10),
		EdgeID:      "E0",
		ChargeWh:    Known(500),
		CapacityWh:  Known(1000),
	}}
	b := Sample{
		Observation: Observation{Time: 1.5, Entity: "ev2", CapacityWh: Known(0)},
		Accel:       Known(-0.5),
		Distance:    Known(12.5),
		GradePct:    Known(2),
	}

	buf := bytes.Buffer{}
	require.NoError(t, WriteCSV(&buf, []Sample{a, b}))
	expected := "t,veh_id,lon,lat,z,speed,accel,dist_m,grade_pct,grade_deg,edge_id,chargeLevel_Wh,capacity_Wh,soc_pct\n" +
		"0,ev1,30.52,39.78,800,10,,,,,E0,500,1000,50\n" +
		"1.5,ev2,,,,,-0.5,12.5,2,,,,0,\n"
	assert.Equal(t, expected, buf.String())

	buf.Reset()
	require.NoError(t, WriteCSV(&buf, nil))
	assert.True(t, strings.HasPrefix(buf.String(), "t,veh_id,lon,lat,z"))
}

func TestStateOfCharge(t *testing.T) {
	assert.Equal(t, Known(25), StateOfCharge(Known(250), Known(1000)))
	assert.False(t, StateOfCharge(Known(250), Known(0)).Known)
	assert.False(t, StateOfCharge(Unknown(), Known(1000)).Known)
	assert.False(t, StateOfCharge(Known(250), Unknown()).Known)
}

func TestFillElevationGaps(t *testing.T) {
	obs := []Observation{
		{Time: 4, Entity: "a", Elevation: Known(20)},
		{Time: 0, Entity: "a"},
		{Time: 0, Entity: "b", Elevation: Known(0)},
		{Time: 1, Entity: "a", Elevation: Known(10)},
		{Time: 5, Entity: "a"},
		{Time: 2, Entity: "a"},
		{Time: 1, Entity: "b", Elevation: Known(5)},
		{Time: 0, Entity: "c"},
	}
	assert.Equal(t, 4, FillElevationGaps(obs, true))

	assert.Equal(t, Known(20), obs[0].Elevation)
	assert.Equal(t, Known(10), obs[1].Elevation)
	assert.Equal(t, Known(5), obs[2].Elevation)
	assert.Equal(t, Known(20), obs[4].Elevation)
	assert.InDelta(t, 13.3333, obs[5].Elevation.V, 1e-4)
	assert.False(t, obs[7].Elevation.Known)
}

func TestFillElevationGapsKeepsZero(t *testing.T) {
	obs := []Observation{
		{Time: 0, Entity: "a", Elevation: Known(0)},
		{Time: 1, Entity: "a"},
	}
	assert.Equal(t, 1, FillElevationGaps(obs, false))
	assert.Equal(t, Known(0), obs[1].Elevation)
}

const track = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="zmap" xmlns="http://www.topografix.com/GPX/1/1">
  <trk>
    <name>bus-1</name>
    <trkseg>
      <trkpt lat="39.78" lon="30.52"><ele>800</ele><time>2024-05-01T10:00:00Z</time></trkpt>
      <trkpt lat="39.78" lon="30.521"><time>2024-05-01T10:00:02Z</time></trkpt>
    </trkseg>
  </trk>
  <trk>
    <trkseg>
      <trkpt lat="39.79" lon="30.53"><ele>810.5</ele><time>2024-05-01T09:59:59Z</time></trkpt>
    </trkseg>
  </trk>
</gpx>`

func TestReadGPX(t *testing.T) {
	obs, err := ReadGPX([]byte(track))
	require.NoError(t, err)
	require.Len(t, obs, 3)

	assert.Equal(t, "bus-1", obs[0].Entity)
	assert.Equal(t, 1.0, obs[0].Time)
	assert.Equal(t, orb.Point{30.52, 39.78}, obs[0].Position)
	assert.Equal(t, Known(800), obs[0].Elevation)

	assert.Equal(t, 3.0, obs[1].Time)
	assert.False(t, obs[1].Elevation.Known)

	assert.Equal(t, "track-1", obs[2].Entity)
	assert.Equal(t, 0.0, obs[2].Time)
	assert.Equal(t, Known(810.5), obs[2].Elevation)

	_, err = ReadGPX([]byte("<gpx"))
	assert.Error(t, err)
}

type shifted struct{}

func (shifted) ToGeographic(local orb.Point) (orb.Point, error) {
	if local[0] < 0 {
		return orb.Point{}, errors.New("outside zone")
	}
	return orb.Point{local[0] / 1000, local[1] / 1000}, nil
}

func (shifted) FromGeographic(geo orb.Point) (orb.Point, error) {
	return orb.Point{geo[0] * 1000, geo[1] * 1000}, nil
}

type slope struct{}

func (slope) Elevation(_ context.Context, local orb.Point) (float64, error) {
	if local[0] > 5000 {
		return 0, errors.New("out of bounds")
	}
	return 100 + local[0]/100, nil
}

func TestResolve(t *testing.T) {
	obs := []Observation{
		{Entity: "a", Local: orb.Point{1000, 2000}, HasLocal: true},
		{Entity: "a", Local: orb.Point{-1, 0}, HasLocal: true, Elevation: Known(7)},
		{Entity: "b", Position: orb.Point{2, 3}, HasPosition: true},
		{Entity: "b", Position: orb.Point{9, 3}, HasPosition: true},
		{Entity: "c"},
	}
	r := Resolver{Locator: shifted{}, Elevator: slope{}}
	stats, err := r.Resolve(context.Background(), obs)
	require.NoError(t, err)

	assert.Equal(t, ResolveStats{Located: 1, Sampled: 2, Unlocated: 1, Unsampled: 2}, stats)
	assert.Equal(t, orb.Point{1, 2}, obs[0].Position)
	assert.Equal(t, Known(110), obs[0].Elevation)
	assert.False(t, obs[1].HasPosition)
	assert.Equal(t, Known(7), obs[1].Elevation)
	assert.Equal(t, Known(120), obs[2].Elevation)
	assert.False(t, obs[3].Elevation.Known)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Resolve(ctx, obs)
	assert.ErrorIs(t, err, context.Canceled)
}
