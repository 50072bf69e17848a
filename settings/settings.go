package settings

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"evstudy.dev/zmap/output"
	"evstudy.dev/zmap/utils"
)

const (
	CONFIG_ENV  = "ZMAP_CONFIG"
	CONFIG_FILE = "zmap.yaml"
	DOTENV_FILE = ".env"
)

type OpenMeteoSettings struct {
	URL               string        `yaml:"url" validate:"required,url"`
	RequestsPerMinute int           `yaml:"requests_per_minute" validate:"gte=1"`
	Tries             int           `yaml:"tries" validate:"gte=1"`
	Timeout           time.Duration `yaml:"timeout" validate:"gt=0"`
}

type TelemetrySettings struct {
	MaxGap        time.Duration `yaml:"max_gap" validate:"gte=0"`
	FillGaps      bool          `yaml:"fill_gaps"`
	ZeroIsUnknown bool          `yaml:"zero_is_unknown"`
}

type ZmapSettings struct {
	LogLevel       string            `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat      string            `yaml:"log_format" validate:"oneof=text json"`
	SamplesPer100m float64           `yaml:"samples_per_100m" validate:"gt=0"`
	MinSamples     int               `yaml:"min_samples" validate:"gte=1"`
	MissingZ       string            `yaml:"missing_z" validate:"oneof=zero keep"`
	EnrichLanes    bool              `yaml:"enrich_lanes"`
	Source         string            `yaml:"source" validate:"oneof=raster open-meteo"`
	RasterCRS      string            `yaml:"raster_crs"`
	MetricsFile    string            `yaml:"metrics_file"`
	OpenMeteo      OpenMeteoSettings `yaml:"open_meteo"`
	Telemetry      TelemetrySettings `yaml:"telemetry"`
}

func (s *ZmapSettings) Default() {
	s.LogLevel = "info"
	s.LogFormat = "text"
	s.SamplesPer100m = SAMPLES_PER_100M
	s.MinSamples = MIN_SAMPLES
	s.MissingZ = MISSING_Z_ZERO
	s.EnrichLanes = false
	s.Source = SOURCE_RASTER
	s.RasterCRS = ""
	s.MetricsFile = ""
	s.OpenMeteo = OpenMeteoSettings{
		URL:               OPEN_METEO_URL,
		RequestsPerMinute: OPEN_METEO_RATE,
		Tries:             OPEN_METEO_TRIES,
		Timeout:           OPEN_METEO_WAIT,
	}
	s.Telemetry = TelemetrySettings{
		MaxGap:        MAX_SAMPLE_GAP,
		FillGaps:      false,
		ZeroIsUnknown: false,
	}
}

// Load builds settings from defaults, the config file (explicit path, then
// $ZMAP_CONFIG, then ./zmap.yaml), an optional .env file and ZMAP_* variables.
func Load(path string) (ZmapSettings, error) {
	s := ZmapSettings{}
	s.Default()

	if path == "" {
		path = FindConfigPath()
	}
	if path != "" {
		if err := s.LoadFromPath(path); err != nil {
			return s, err
		}
	}

	if err := godotenv.Load(DOTENV_FILE); err != nil && !os.IsNotExist(errors.Cause(err)) {
		slog.Warn("could not load .env file", "error", err)
	}
	if err := s.ApplyEnv(os.LookupEnv); err != nil {
		return s, err
	}
	return s, s.Validate()
}

func FindConfigPath() string {
	if p := os.Getenv(CONFIG_ENV); p != "" {
		return p
	}
	exists, err := output.Exists(CONFIG_FILE)
	utils.Logwe(errors.Wrap(err, "could not check for config file"), "file", CONFIG_FILE)
	if exists {
		return CONFIG_FILE
	}
	return ""
}

func (s *ZmapSettings) LoadFromPath(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "could not read config file")
	}
	// fields missing from the file keep their current values
	err = yaml.Unmarshal(data, s)
	return errors.Wrapf(err, "could not parse config file %s", path)
}

func (s *ZmapSettings) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("ZMAP_LOG_LEVEL", &s.LogLevel)
	str("ZMAP_LOG_FORMAT", &s.LogFormat)
	str("ZMAP_MISSING_Z", &s.MissingZ)
	str("ZMAP_SOURCE", &s.Source)
	str("ZMAP_RASTER_CRS", &s.RasterCRS)
	str("ZMAP_METRICS_FILE", &s.MetricsFile)
	str("ZMAP_OPEN_METEO_URL", &s.OpenMeteo.URL)

	if v, ok := lookup("ZMAP_SAMPLES_PER_100M"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrap(err, "invalid ZMAP_SAMPLES_PER_100M")
		}
		s.SamplesPer100m = f
	}
	if v, ok := lookup("ZMAP_MIN_SAMPLES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "invalid ZMAP_MIN_SAMPLES")
		}
		s.MinSamples = n
	}
	if v, ok := lookup("ZMAP_ENRICH_LANES"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "invalid ZMAP_ENRICH_LANES")
		}
		s.EnrichLanes = b
	}
	if v, ok := lookup("ZMAP_MAX_GAP"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(err, "invalid ZMAP_MAX_GAP")
		}
		s.Telemetry.MaxGap = d
	}
	return nil
}

func (s *ZmapSettings) Validate() error {
	err := validator.New().Struct(s)
	return errors.Wrap(err, "invalid settings")
}

func (s *ZmapSettings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "could not marshal settings")
	}
	return output.WriteFile(path, data)
}

// ConfigureLogging installs the default slog logger on stderr.
func (s *ZmapSettings) ConfigureLogging() {
	opts := &slog.HandlerOptions{Level: ParseLevel(s.LogLevel)}
	var handler slog.Handler
	switch strings.ToLower(s.LogFormat) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
