package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jszwec/csvutil"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evstudy.dev/zmap/enrich"
	"evstudy.dev/zmap/metrics"
	"evstudy.dev/zmap/network"
	"evstudy.dev/zmap/raster"
	ms "evstudy.dev/zmap/settings"
	"evstudy.dev/zmap/telemetry"
)

const utm36 = "+proj=utm +zone=36 +ellps=WGS84 +datum=WGS84 +units=m +no_defs"

const netXML = `<?xml version="1.0" encoding="UTF-8"?>
<net version="1.20">
    <location netOffset="-287000.00,-4406000.00" convBoundary="0.00,0.00,200.00,40.00" origBoundary="30.50,39.77,30.53,39.79" projParameter="+proj=utm +zone=36 +ellps=WGS84 +datum=WGS84 +units=m +no_defs"/>
    <edge id="E0" from="J0" to="J1" priority="-1"/>
    <edge id="E1" from="J1" to="J2" priority="-1" shape="100.00,20.00 200.00,20.00"/>
    <junction id="J0" type="dead_end" x="30.00" y="20.00"/>
    <junction id="J1" type="priority" x="100.00" y="20.00"/>
    <junction id="J2" type="dead_end" x="200.00" y="20.00"/>
</net>
`

// 10 m cells rising 1 m per column east of the network origin
const demASC = `ncols 12
nrows 4
xllcorner 287000
yllcorner 4406000
cellsize 10
NODATA_value -9999
800 801 802 803 804 805 806 807 808 809 810 811
800 801 802 803 804 805 806 807 808 809 810 811
800 801 802 803 804 805 806 807 808 809 810 811
800 801 802 803 804 805 806 807 808 809 810 811
`

type fixture struct {
	dir    string
	net    string
	raster string
	s      ms.ZmapSettings
}

func newFixture(t *testing.T) fixture {
	dir := t.TempDir()
	f := fixture{
		dir:    dir,
		net:    filepath.Join(dir, "in.net.xml"),
		raster: filepath.Join(dir, "dem.asc"),
	}
	require.NoError(t, os.WriteFile(f.net, []byte(netXML), 0o644))
	require.NoError(t, os.WriteFile(f.raster, []byte(demASC), 0o644))
	f.s.Default()
	f.s.RasterCRS = utm36
	return f
}

func (f fixture) write(t *testing.T, name, data string) string {
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestEnrichFile(t *testing.T) {
	f := newFixture(t)
	mc, err := metrics.NewCollector(nil)
	require.NoError(t, err)
	out := filepath.Join(f.dir, "out.net.xml")

	stats, err := EnrichFile(context.Background(), EnrichJob{
		Settings:   f.s,
		NetPath:    f.net,
		RasterPath: f.raster,
		OutPath:    out,
		Metrics:    mc,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	doc := string(data)
	assert.Contains(t, doc, `<junction id="J0" type="dead_end" x="30.00" y="20.00" z="803.000"/>`)
	assert.Contains(t, doc, `<junction id="J2" type="dead_end" x="200.00" y="20.00"/>`)
	assert.Contains(t, doc, `<edge id="E0" from="J0" to="J1" priority="-1" shape="30.000,20.000,803.000 100.000,20.000,810.000"/>`)
	assert.Contains(t, doc, `shape="100.000,20.000,810.000 150.000,20.000,0.000 200.000,20.000,0.000"`)
	assert.Equal(t, 2, stats.JunctionsEnriched)
	assert.Equal(t, 1, stats.JunctionsUnknown)
	assert.Equal(t, 3, stats.PointsUnknown)

	f.s.MetricsFile = filepath.Join(f.dir, "zmap.prom")
	finish(f.s, mc, "enrich", time.Now())
	prom, err := os.ReadFile(f.s.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "zmap_points_sampled_total 8")
}

func TestEnrichFileErrors(t *testing.T) {
	f := newFixture(t)
	out := filepath.Join(f.dir, "out.net.xml")

	_, err := EnrichFile(context.Background(), EnrichJob{Settings: f.s, NetPath: f.net, OutPath: out})
	assert.ErrorContains(t, err, "raster is required")

	_, err = EnrichFile(context.Background(), EnrichJob{Settings: f.s, NetPath: f.net + ".missing", RasterPath: f.raster, OutPath: out})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = EnrichFile(ctx, EnrichJob{Settings: f.s, NetPath: f.net, RasterPath: f.raster, OutPath: out})
	assert.True(t, errors.Is(err, context.Canceled))

	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func readGraded(t *testing.T, path string) []telemetry.OutputRow {
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rows := []telemetry.OutputRow{}
	require.NoError(t, csvutil.Unmarshal(data, &rows))
	return rows
}

func TestGradeFileGeographic(t *testing.T) {
	f := newFixture(t)
	in := f.write(t, "run.csv", "t,veh_id,lon,lat,z,speed\n1,ev1,0.001,0,100,12\n0,ev1,0,0,0,10\n")
	out := filepath.Join(f.dir, "graded.csv")

	summary, err := GradeFile(context.Background(), GradeJob{Settings: f.s, InPath: in, OutPath: out})
	require.NoError(t, err)
	assert.Equal(t, GradeSummary{Samples: 2, Graded: 1}, summary)

	rows := readGraded(t, out)
	require.Len(t, rows, 2)
	assert.Equal(t, telemetry.Known(0), rows[0].Time)
	assert.False(t, rows[0].GradePct.Known)
	assert.Equal(t, telemetry.Known(2), rows[1].Accel)
	assert.InDelta(t, 111.195, rows[1].Distance.V, 0.001)
	assert.InDelta(t, 89.93, rows[1].GradePct.V, 0.01)
}

func TestGradeFilePlanar(t *testing.T) {
	f := newFixture(t)
	in := f.write(t, "run.csv", "t,veh_id,x,y,speed\n0,ev1,30,20,5\n2,ev1,100,20,6\n")
	out := filepath.Join(f.dir, "graded.csv")

	summary, err := GradeFile(context.Background(), GradeJob{
		Settings:   f.s,
		InPath:     in,
		OutPath:    out,
		NetPath:    f.net,
		RasterPath: f.raster,
	})
	require.NoError(t, err)
	assert.Equal(t, telemetry.ResolveStats{Located: 2, Sampled: 2}, summary.Resolved)
	assert.Equal(t, 1, summary.Graded)

	rows := readGraded(t, out)
	require.Len(t, rows, 2)
	assert.Equal(t, telemetry.Known(803), rows[0].Z)
	assert.InDelta(t, 30.52, rows[0].Lon.V, 0.01)
	// haversine on the sphere reads a little short of the 70 m grid distance
	assert.InDelta(t, 69.8, rows[1].Distance.V, 0.2)
	assert.InDelta(t, 10, rows[1].GradePct.V, 0.1)
	assert.Equal(t, telemetry.Known(0.5), rows[1].Accel)

	_, err = GradeFile(context.Background(), GradeJob{Settings: f.s, InPath: in, OutPath: out})
	assert.ErrorContains(t, err, "need --net")
}

func TestGradeFileFillsGaps(t *testing.T) {
	f := newFixture(t)
	f.s.Telemetry.FillGaps = true
	f.s.Telemetry.ZeroIsUnknown = true
	in := f.write(t, "run.csv", "t,veh_id,lon,lat,z\n0,ev1,0,0,0\n1,ev1,0.001,0,10\n2,ev1,0.002,0,\n")
	out := filepath.Join(f.dir, "graded.csv")

	summary, err := GradeFile(context.Background(), GradeJob{Settings: f.s, InPath: in, OutPath: out})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Filled)

	rows := readGraded(t, out)
	assert.Equal(t, telemetry.Known(10), rows[0].Z)
	assert.Equal(t, telemetry.Known(10), rows[2].Z)
	assert.InDelta(t, 0, rows[1].GradePct.V, 1e-9)
}

func TestProbe(t *testing.T) {
	f := newFixture(t)
	net, fr, err := readNetwork(f.net)
	require.NoError(t, err)
	session, err := enrich.OpenRaster(fr, f.raster, utm36)
	require.NoError(t, err)
	defer session.Close()

	r := Probe(context.Background(), session, net, orb.Point{30, 25})
	require.NoError(t, r.Err)
	assert.Equal(t, 803.0, r.Elevation)
	assert.Nil(t, r.Extent)
	assert.InDelta(t, 39.78, r.Geographic[1], 0.01)
	require.NotNil(t, r.Nearest)
	assert.Equal(t, "E0", r.Nearest.Edge.ID)
	assert.InDelta(t, 5.0, r.Nearest.Distance, 1e-9)
	assert.Contains(t, r.String(), "elevation: 803.000")
	assert.Contains(t, r.String(), "nearest edge: E0 (5.0 m)")

	r = Probe(context.Background(), session, nil, orb.Point{500, 20})
	assert.True(t, errors.Is(r.Err, raster.ErrOutOfBounds))
	assert.Nil(t, r.Nearest)
	require.NotNil(t, r.Extent)
	assert.InDelta(t, 30.52, r.Extent.MinPos.Lon(), 0.01)
	assert.Less(t, r.Extent.MaxPos.Lon()-r.Extent.MinPos.Lon(), 0.01)
	assert.Less(t, r.Extent.MaxPos.Lat()-r.Extent.MinPos.Lat(), 0.01)
	assert.Contains(t, r.String(), "raster covers")
}

func TestParsePair(t *testing.T) {
	p, err := parsePair("30.5, 39.78")
	require.NoError(t, err)
	assert.Equal(t, orb.Point{30.5, 39.78}, p)

	p, err = parsePair("12 -4")
	require.NoError(t, err)
	assert.Equal(t, orb.Point{12, -4}, p)

	_, err = parsePair("12")
	assert.Error(t, err)
	_, err = parsePair("a,b")
	assert.Error(t, err)
}

func exploreModel(t *testing.T) uiModel {
	f := newFixture(t)
	doc, err := os.ReadFile(f.net)
	require.NoError(t, err)
	net, err := network.Parse(doc)
	require.NoError(t, err)
	fr, err := net.Frame()
	require.NoError(t, err)
	session, err := enrich.OpenRaster(fr, f.raster, utm36)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })

	m := initialModel(context.Background(), net, session, enrich.DefaultOptions())
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 60})
	return next.(uiModel)
}

func TestExploreEdgeDetail(t *testing.T) {
	m := exploreModel(t)
	require.Len(t, m.list.Items(), 6)

	m.list.Select(4)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(uiModel)
	require.NotNil(t, cmd)
	assert.Equal(t, showDetail, m.state)
	assert.Contains(t, m.View(), "sampling")

	next, _ = m.Update(cmd())
	m = next.(uiModel)
	view := m.View()
	assert.Contains(t, view, "Edge E0")
	assert.Contains(t, view, "grade: 10.00%")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, showMenu, next.(uiModel).state)
}

func TestExploreLookup(t *testing.T) {
	m := exploreModel(t)
	m.list.Select(0)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(uiModel)
	assert.Equal(t, showLookup, m.state)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("100,20")})
	m = next.(uiModel)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(uiModel)
	assert.Contains(t, m.View(), "elevation: 810.000")
}

func TestApplyEnvOverridesDefaults(t *testing.T) {
	s := ms.ZmapSettings{}
	s.Default()
	env := map[string]string{"ZMAP_SOURCE": ms.SOURCE_OPEN_METEO}
	require.NoError(t, s.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
	assert.True(t, hasSource(s, ""))
	assert.True(t, strings.HasPrefix(s.OpenMeteo.URL, "https://"))
}
