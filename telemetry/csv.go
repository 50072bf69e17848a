package telemetry

import (
	"encoding/csv"
	"io"
	"slices"

	"github.com/jszwec/csvutil"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// InputRow is one row of a trajectory log. Positions are either geographic
// (lon, lat) or planar network coordinates (x, y).
type InputRow struct {
	Time       float64 `csv:"t"`
	Entity     string  `csv:"veh_id"`
	Lon        Value   `csv:"lon"`
	Lat        Value   `csv:"lat"`
	X          Value   `csv:"x"`
	Y          Value   `csv:"y"`
	Z          Value   `csv:"z"`
	Speed      Value   `csv:"speed"`
	EdgeID     string  `csv:"edge_id"`
	ChargeWh   Value   `csv:"chargeLevel_Wh"`
	CapacityWh Value   `csv:"capacity_Wh"`
}

func (r InputRow) Observation() Observation {
	return Observation{
		Time:        r.Time,
		Entity:      r.Entity,
		Position:    orb.Point{r.Lon.V, r.Lat.V},
		HasPosition: r.Lon.Known && r.Lat.Known,
		Local:       orb.Point{r.X.V, r.Y.V},
		HasLocal:    r.X.Known && r.Y.Known,
		Elevation:   r.Z,
		Speed:       r.Speed,
		EdgeID:      r.EdgeID,
		ChargeWh:    r.ChargeWh,
		CapacityWh:  r.CapacityWh,
	}
}

type OutputRow struct {
	Time       Value  `csv:"t"`
	Entity     string `csv:"veh_id"`
	Lon        Value  `csv:"lon"`
	Lat        Value  `csv:"lat"`
	Z          Value  `csv:"z"`
	Speed      Value  `csv:"speed"`
	Accel      Value  `csv:"accel"`
	Distance   Value  `csv:"dist_m"`
	GradePct   Value  `csv:"grade_pct"`
	GradeDeg   Value  `csv:"grade_deg"`
	EdgeID     string `csv:"edge_id"`
	ChargeWh   Value  `csv:"chargeLevel_Wh"`
	CapacityWh Value  `csv:"capacity_Wh"`
	SocPct     Value  `csv:"soc_pct"`
}

func NewOutputRow(s Sample) OutputRow {
	row := OutputRow{
		Time:       Known(s.Time),
		Entity:     s.Entity,
		Z:          s.Elevation,
		Speed:      s.Speed,
		Accel:      s.Accel,
		Distance:   s.Distance,
		GradePct:   s.GradePct,
		GradeDeg:   s.GradeDeg,
		EdgeID:     s.EdgeID,
		ChargeWh:   s.ChargeWh,
		CapacityWh: s.CapacityWh,
		SocPct:     StateOfCharge(s.ChargeWh, s.CapacityWh),
	}
	if s.HasPosition {
		row.Lon = Known(s.Position[0])
		row.Lat = Known(s.Position[1])
	}
	return row
}

// ReadCSV reads a trajectory log with a header row. Unknown columns are
// ignored.
func ReadCSV(r io.Reader) ([]Observation, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err == io.EOF {
		return nil, errors.New("empty trajectory file")
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not read trajectory header")
	}

	header := dec.Header()
	for _, col := range []string{"t", "veh_id"} {
		if !slices.Contains(header, col) {
			return nil, errors.Errorf("trajectory file has no %s column", col)
		}
	}
	geographic := slices.Contains(header, "lon") && slices.Contains(header, "lat")
	planar := slices.Contains(header, "x") && slices.Contains(header, "y")
	if !geographic && !planar {
		return nil, errors.New("trajectory file needs lon,lat or x,y columns")
	}

	obs := []Observation{}
	for {
		row := InputRow{}
		err := dec.Decode(&row)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "could not read trajectory row %d", len(obs)+1)
		}
		obs = append(obs, row.Observation())
	}
	return obs, nil
}

func WriteCSV(w io.Writer, samples []Sample) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if len(samples) == 0 {
		if err := enc.EncodeHeader(OutputRow{}); err != nil {
			return errors.Wrap(err, "could not write header")
		}
	}
	for _, s := range samples {
		if err := enc.Encode(NewOutputRow(s)); err != nil {
			return errors.Wrap(err, "could not write sample")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "could not write samples")
}
