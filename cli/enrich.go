package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"

	"evstudy.dev/zmap/enrich"
	"evstudy.dev/zmap/metrics"
	"evstudy.dev/zmap/output"
	ms "evstudy.dev/zmap/settings"
)

type EnrichJob struct {
	Settings   ms.ZmapSettings
	NetPath    string
	RasterPath string
	OutPath    string
	Metrics    *metrics.Collector
	Progress   enrich.Progress
}

// EnrichFile enriches the network at NetPath and replaces OutPath with the
// result. Nothing is written when enrichment fails.
func EnrichFile(ctx context.Context, job EnrichJob) (enrich.Stats, error) {
	net, f, err := readNetwork(job.NetPath)
	if err != nil {
		return enrich.Stats{}, err
	}
	session, err := openSession(job.Settings, f, job.RasterPath, job.Metrics)
	if err != nil {
		return enrich.Stats{}, err
	}
	defer session.Close()

	e := enrich.New(session, enrich.OptionsFrom(job.Settings), job.Metrics)
	e.Progress = job.Progress
	doc, stats, err := e.EnrichNetwork(ctx, net)
	if err != nil {
		return stats, err
	}
	return stats, output.WriteFile(job.OutPath, doc)
}

func runEnrich(ctx context.Context, cmd *cli.Command) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	mc, err := metrics.NewCollector(nil)
	if err != nil {
		return err
	}
	defer finish(s, mc, "enrich", time.Now())

	bar := newProgress("Enriching network")
	stats, err := EnrichFile(ctx, EnrichJob{
		Settings:   s,
		NetPath:    cmd.String("net"),
		RasterPath: cmd.String("raster"),
		OutPath:    cmd.String("out"),
		Metrics:    mc,
		Progress:   bar,
	})
	_ = bar.Finish()
	if err != nil {
		return err
	}
	slog.Info("Wrote enriched network",
		"out", cmd.String("out"),
		"junctions", stats.JunctionsEnriched,
		"edges", stats.EdgesEnriched+stats.EdgesSynthesized,
		"points", stats.PointsSampled,
		"unknown", stats.PointsUnknown)
	return nil
}
