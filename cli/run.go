package cli

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"evstudy.dev/zmap/enrich"
	"evstudy.dev/zmap/frame"
	"evstudy.dev/zmap/metrics"
	"evstudy.dev/zmap/network"
	"evstudy.dev/zmap/openmeteo"
	ms "evstudy.dev/zmap/settings"
	"evstudy.dev/zmap/utils"
)

// loadSettings layers command line flags over the config file and
// environment, then installs the logger.
func loadSettings(cmd *cli.Command) (ms.ZmapSettings, error) {
	s, err := ms.Load(cmd.String("config"))
	if err != nil {
		return s, err
	}
	applyFlags(cmd, &s)
	if err := s.Validate(); err != nil {
		return s, err
	}
	s.ConfigureLogging()
	return s, nil
}

func applyFlags(cmd *cli.Command, s *ms.ZmapSettings) {
	if cmd.IsSet("log-level") {
		s.LogLevel = cmd.String("log-level")
	}
	if cmd.IsSet("samples-per-100m") {
		s.SamplesPer100m = cmd.Float64("samples-per-100m")
	}
	if cmd.IsSet("min-samples") {
		s.MinSamples = int(cmd.Int("min-samples"))
	}
	if cmd.IsSet("missing-z") {
		s.MissingZ = cmd.String("missing-z")
	}
	if cmd.IsSet("lanes") {
		s.EnrichLanes = cmd.Bool("lanes")
	}
	if cmd.IsSet("source") {
		s.Source = cmd.String("source")
	}
	if cmd.IsSet("raster-crs") {
		s.RasterCRS = cmd.String("raster-crs")
	}
	if cmd.IsSet("metrics-file") {
		s.MetricsFile = cmd.String("metrics-file")
	}
	if cmd.IsSet("max-gap") {
		s.Telemetry.MaxGap = cmd.Duration("max-gap")
	}
	if cmd.IsSet("fill-gaps") {
		s.Telemetry.FillGaps = cmd.Bool("fill-gaps")
	}
	if cmd.IsSet("zero-is-unknown") {
		s.Telemetry.ZeroIsUnknown = cmd.Bool("zero-is-unknown")
	}
}

// openSession picks the elevation source named in the settings.
func openSession(s ms.ZmapSettings, f frame.Frame, rasterPath string, mc *metrics.Collector) (*enrich.Session, error) {
	switch s.Source {
	case ms.SOURCE_OPEN_METEO:
		client := openmeteo.New(openmeteo.Options{
			URL:               s.OpenMeteo.URL,
			RequestsPerMinute: s.OpenMeteo.RequestsPerMinute,
			Tries:             s.OpenMeteo.Tries,
			Timeout:           s.OpenMeteo.Timeout,
			Metrics:           mc,
		})
		return enrich.NewSession(f, client, "")
	default:
		if rasterPath == "" {
			return nil, errors.New("a raster is required when the elevation source is raster")
		}
		return enrich.OpenRaster(f, rasterPath, s.RasterCRS)
	}
}

func hasSource(s ms.ZmapSettings, rasterPath string) bool {
	return rasterPath != "" || s.Source == ms.SOURCE_OPEN_METEO
}

func readNetwork(path string) (*network.Network, frame.Frame, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, frame.Frame{}, errors.Wrap(err, "could not read network")
	}
	net, err := network.Parse(doc)
	if err != nil {
		return nil, frame.Frame{}, errors.Wrapf(err, "could not parse network %s", path)
	}
	f, err := net.Frame()
	if err != nil {
		return nil, frame.Frame{}, err
	}
	return net, f, nil
}

func newProgress(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(
		-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// finish records the run duration and writes the metrics file if one is
// configured.
func finish(s ms.ZmapSettings, mc *metrics.Collector, command string, start time.Time) {
	mc.ObserveRun(command, time.Since(start))
	if s.MetricsFile == "" {
		return
	}
	utils.Logwe(errors.Wrap(mc.WriteTextfile(s.MetricsFile), "could not write metrics"))
}
