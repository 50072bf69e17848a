package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"evstudy.dev/zmap/enrich"
	"evstudy.dev/zmap/frame"
	"evstudy.dev/zmap/metrics"
	"evstudy.dev/zmap/output"
	ms "evstudy.dev/zmap/settings"
	"evstudy.dev/zmap/telemetry"
)

type GradeJob struct {
	Settings   ms.ZmapSettings
	InPath     string
	OutPath    string
	NetPath    string
	RasterPath string
	Metrics    *metrics.Collector
	Progress   enrich.Progress
}

type GradeSummary struct {
	Samples  int
	Graded   int
	Filled   int
	Resolved telemetry.ResolveStats
}

func readObservations(path string) ([]telemetry.Observation, error) {
	if strings.EqualFold(filepath.Ext(path), ".gpx") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "could not read track")
		}
		return telemetry.ReadGPX(data)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not open trajectory")
	}
	defer f.Close()
	return telemetry.ReadCSV(f)
}

// resolver builds the position and elevation lookups for a grading run.
// Without a network, points are taken as lon/lat directly.
func resolver(job GradeJob, obs []telemetry.Observation) (telemetry.Resolver, func(), error) {
	r := telemetry.Resolver{}
	cleanup := func() {}

	f := frame.Frame{ProjParameter: frame.WGS84}
	if job.NetPath != "" {
		_, netFrame, err := readNetwork(job.NetPath)
		if err != nil {
			return r, cleanup, err
		}
		f = netFrame
	} else {
		for _, o := range obs {
			if !o.HasPosition && o.HasLocal {
				return r, cleanup, errors.New("rows with x,y but no lon,lat need --net")
			}
		}
	}

	if !hasSource(job.Settings, job.RasterPath) {
		if job.NetPath == "" {
			return r, cleanup, nil
		}
		t, err := frame.NewTransformer(f, "")
		if err != nil {
			return r, cleanup, err
		}
		r.Locator = t
		return r, cleanup, nil
	}

	session, err := openSession(job.Settings, f, job.RasterPath, job.Metrics)
	if err != nil {
		return r, cleanup, err
	}
	r.Locator = session.Transformer()
	r.Elevator = session
	return r, func() { session.Close() }, nil
}

// GradeFile grades every observation in InPath and replaces OutPath with
// the graded rows in time order.
func GradeFile(ctx context.Context, job GradeJob) (GradeSummary, error) {
	summary := GradeSummary{}
	obs, err := readObservations(job.InPath)
	if err != nil {
		return summary, err
	}

	r, cleanup, err := resolver(job, obs)
	if err != nil {
		return summary, err
	}
	defer cleanup()
	summary.Resolved, err = r.Resolve(ctx, obs)
	if err != nil {
		return summary, err
	}

	if job.Settings.Telemetry.FillGaps {
		summary.Filled = telemetry.FillElevationGaps(obs, job.Settings.Telemetry.ZeroIsUnknown)
	}

	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].Time < obs[j].Time
	})
	if job.Progress != nil {
		job.Progress.ChangeMax(len(obs))
	}
	estimator := telemetry.NewEstimator(job.Settings.Telemetry.MaxGap, job.Metrics)
	samples := make([]telemetry.Sample, 0, len(obs))
	for _, o := range obs {
		s := estimator.Update(o)
		if s.GradePct.Known {
			summary.Graded++
		}
		samples = append(samples, s)
		if job.Progress != nil {
			_ = job.Progress.Add(1)
		}
	}
	summary.Samples = len(samples)

	buf := bytes.Buffer{}
	if err := telemetry.WriteCSV(&buf, samples); err != nil {
		return summary, err
	}
	return summary, output.WriteFile(job.OutPath, buf.Bytes())
}

func runGrade(ctx context.Context, cmd *cli.Command) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	mc, err := metrics.NewCollector(nil)
	if err != nil {
		return err
	}
	defer finish(s, mc, "grade", time.Now())

	bar := newProgress("Grading samples")
	summary, err := GradeFile(ctx, GradeJob{
		Settings:   s,
		InPath:     cmd.String("in"),
		OutPath:    cmd.String("out"),
		NetPath:    cmd.String("net"),
		RasterPath: cmd.String("raster"),
		Metrics:    mc,
		Progress:   bar,
	})
	_ = bar.Finish()
	if err != nil {
		return err
	}
	slog.Info("Wrote graded samples",
		"out", cmd.String("out"),
		"samples", summary.Samples,
		"graded", summary.Graded,
		"filled", summary.Filled,
		"sampled", summary.Resolved.Sampled)
	return nil
}
