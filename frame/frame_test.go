package frame

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const utm36 = "+proj=utm +zone=36 +ellps=WGS84 +datum=WGS84 +units=m +no_defs"

// local origin of a small network around Eskisehir
var eskisehir = Frame{
	ProjParameter: utm36,
	Offset:        orb.Point{-287000, -4406000},
}

func TestParseLocation(t *testing.T) {
	f, err := ParseLocation("-287000.00,-4406000.00", "0.00,0.00,1200.50,900.25", "30.50,39.77,30.53,39.79", utm36)
	require.NoError(t, err)
	assert.Equal(t, orb.Point{-287000, -4406000}, f.Offset)
	assert.Equal(t, orb.Point{1200.5, 900.25}, f.ConvBoundary.Max)
	assert.Equal(t, orb.Point{30.5, 39.77}, f.OrigBoundary.Min)
	assert.Equal(t, utm36, f.ProjParameter)
}

func TestParseLocationErrors(t *testing.T) {
	var cfg *ConfigurationError

	_, err := ParseLocation("0.00,0.00", "", "", "!")
	require.True(t, errors.As(err, &cfg))
	assert.Equal(t, "projParameter", cfg.Field)

	_, err = ParseLocation("0.00", "", "", utm36)
	require.True(t, errors.As(err, &cfg))
	assert.Equal(t, "netOffset", cfg.Field)

	_, err = ParseLocation("0,0", "1,2,x,4", "", utm36)
	require.True(t, errors.As(err, &cfg))
	assert.Equal(t, "convBoundary", cfg.Field)
}

func TestProjectedOffset(t *testing.T) {
	p := eskisehir.ToProjected(orb.Point{618, 281.8})
	assert.InDelta(t, 287618.0, p[0], 1e-9)
	assert.InDelta(t, 4406281.8, p[1], 1e-6)

	back := eskisehir.FromProjected(p)
	assert.InDelta(t, 618.0, back[0], 1e-6)
	assert.InDelta(t, 281.8, back[1], 1e-6)
}

func TestTransformerGeographic(t *testing.T) {
	tr, err := NewTransformer(eskisehir, "")
	require.NoError(t, err)

	local, err := tr.FromGeographic(orb.Point{30.52, 39.78})
	require.NoError(t, err)
	projected := tr.ToProjected(local)
	assert.InDelta(t, 287618.0, projected[0], 1.0)
	assert.InDelta(t, 4406281.8, projected[1], 1.0)

	geo, err := tr.ToGeographic(local)
	require.NoError(t, err)
	assert.InDelta(t, 30.52, geo[0], 1e-6)
	assert.InDelta(t, 39.78, geo[1], 1e-6)
}

func TestTransformerRasterNative(t *testing.T) {
	same, err := NewTransformer(eskisehir, utm36)
	require.NoError(t, err)
	p, err := same.ToRasterNative(orb.Point{10, 20})
	require.NoError(t, err)
	assert.Equal(t, orb.Point{287010, 4406020}, p)
	local, err := same.FromRasterNative(p)
	require.NoError(t, err)
	assert.Equal(t, orb.Point{10, 20}, local)

	geo, err := NewTransformer(eskisehir, WGS84)
	require.NoError(t, err)
	assert.Equal(t, WGS84, geo.RasterCRS())
	p, err = geo.ToRasterNative(orb.Point{618, 281.8})
	require.NoError(t, err)
	assert.InDelta(t, 30.52, p[0], 1e-4)
	assert.InDelta(t, 39.78, p[1], 1e-4)
	local, err = geo.FromRasterNative(p)
	require.NoError(t, err)
	assert.InDelta(t, 618.0, local[0], 1e-3)
	assert.InDelta(t, 281.8, local[1], 1e-3)
}

func TestNewTransformerConfigurationError(t *testing.T) {
	var cfg *ConfigurationError

	_, err := NewTransformer(Frame{ProjParameter: "!"}, "")
	assert.True(t, errors.As(err, &cfg))

	_, err = NewTransformer(Frame{}, "")
	assert.True(t, errors.As(err, &cfg))

	_, err = NewTransformer(Frame{ProjParameter: "+proj=doesnotexist +units=m"}, "")
	assert.True(t, errors.As(err, &cfg))
}

func TestEPSGProj4(t *testing.T) {
	s, err := EPSGProj4(4326)
	require.NoError(t, err)
	assert.Equal(t, WGS84, s)

	s, err = EPSGProj4(32636)
	require.NoError(t, err)
	assert.Equal(t, "+proj=utm +zone=36 +datum=WGS84 +units=m +no_defs", s)

	s, err = EPSGProj4(32735)
	require.NoError(t, err)
	assert.Contains(t, s, "+south")

	_, err = EPSGProj4(2320)
	var cfg *ConfigurationError
	assert.True(t, errors.As(err, &cfg))
}
