package settings

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() ZmapSettings {
	s := ZmapSettings{}
	s.Default()
	return s
}

func TestDefaultValidates(t *testing.T) {
	s := defaults()
	require.NoError(t, s.Validate())
	assert.Equal(t, SAMPLES_PER_100M, s.SamplesPer100m)
	assert.Equal(t, MIN_SAMPLES, s.MinSamples)
	assert.Equal(t, MISSING_Z_ZERO, s.MissingZ)
	assert.Equal(t, SOURCE_RASTER, s.Source)
	assert.Equal(t, MAX_SAMPLE_GAP, s.Telemetry.MaxGap)
}

func TestValidateRejects(t *testing.T) {
	s := defaults()
	s.MissingZ = "null"
	assert.Error(t, s.Validate())

	s = defaults()
	s.SamplesPer100m = 0
	assert.Error(t, s.Validate())

	s = defaults()
	s.MinSamples = 0
	assert.Error(t, s.Validate())

	s = defaults()
	s.Source = "srtm"
	assert.Error(t, s.Validate())

	s = defaults()
	s.OpenMeteo.URL = "not a url"
	assert.Error(t, s.Validate())
}

func TestLoadFromPathKeepsUnsetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zmap.yaml")
	yaml := "missing_z: keep\nsamples_per_100m: 5\ntelemetry:\n  max_gap: 2s\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	s := defaults()
	require.NoError(t, s.LoadFromPath(path))
	assert.Equal(t, MISSING_Z_KEEP, s.MissingZ)
	assert.Equal(t, 5.0, s.SamplesPer100m)
	assert.Equal(t, 2*time.Second, s.Telemetry.MaxGap)
	assert.Equal(t, MIN_SAMPLES, s.MinSamples)
	assert.Equal(t, OPEN_METEO_URL, s.OpenMeteo.URL)
}

func TestLoadFromPathErrors(t *testing.T) {
	s := defaults()
	assert.Error(t, s.LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml")))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("min_samples: [1, 2"), 0o644))
	assert.Error(t, s.LoadFromPath(path))
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"ZMAP_LOG_LEVEL":        "debug",
		"ZMAP_MISSING_Z":        "keep",
		"ZMAP_SAMPLES_PER_100M": "4.5",
		"ZMAP_MIN_SAMPLES":      "2",
		"ZMAP_ENRICH_LANES":     "true",
		"ZMAP_MAX_GAP":          "1500ms",
		"ZMAP_RASTER_CRS":       "+proj=longlat +datum=WGS84",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	s := defaults()
	require.NoError(t, s.ApplyEnv(lookup))
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, MISSING_Z_KEEP, s.MissingZ)
	assert.Equal(t, 4.5, s.SamplesPer100m)
	assert.Equal(t, 2, s.MinSamples)
	assert.True(t, s.EnrichLanes)
	assert.Equal(t, 1500*time.Millisecond, s.Telemetry.MaxGap)
	assert.Equal(t, "+proj=longlat +datum=WGS84", s.RasterCRS)
	require.NoError(t, s.Validate())

	env["ZMAP_MIN_SAMPLES"] = "three"
	assert.Error(t, s.ApplyEnv(lookup))
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zmap.yaml")
	s := defaults()
	s.MissingZ = MISSING_Z_KEEP
	s.EnrichLanes = true
	require.NoError(t, s.Save(path))

	loaded := ZmapSettings{}
	require.NoError(t, loaded.LoadFromPath(path))
	assert.Equal(t, s, loaded)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
