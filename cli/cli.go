package cli

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/urfave/cli/v3"
)

func Handle() {
	cmd := &cli.Command{
		Name:  "zmap",
		Usage: "Add terrain elevation to SUMO networks and derive road grade from vehicle traces",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML settings file, defaults to $ZMAP_CONFIG or ./zmap.yaml",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "One of debug, info, warn or error",
			},
		},
		Commands: []*cli.Command{
			{
				Name:    "enrich",
				Aliases: []string{"e"},
				Usage:   "Write a copy of a network with junction and edge elevations",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Category: "Inputs and Outputs",
						Name:     "net",
						Aliases:  []string{"n"},
						Usage:    "The SUMO .net.xml file to enrich",
						Required: true,
					},
					&cli.StringFlag{
						Category: "Inputs and Outputs",
						Name:     "out",
						Aliases:  []string{"o"},
						Usage:    "Where to write the enriched network",
						Required: true,
					},
					&cli.Float64Flag{
						Category: "Sampling",
						Name:     "samples-per-100m",
						Usage:    "Resampling density along edge shapes",
					},
					&cli.IntFlag{
						Category: "Sampling",
						Name:     "min-samples",
						Usage:    "Fewest points a resampled shape may have",
					},
					&cli.StringFlag{
						Category: "Sampling",
						Name:     "missing-z",
						Usage:    "What to write for points without elevation: zero or keep",
					},
					&cli.BoolFlag{
						Category: "Sampling",
						Name:     "lanes",
						Usage:    "Also write elevations into lane shapes",
					},
					&cli.StringFlag{
						Name:  "metrics-file",
						Usage: "Write run metrics in the Prometheus textfile format",
					},
				}, sourceFlags()...),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runEnrich(ctx, cmd)
				},
			},
			{
				Name:    "grade",
				Aliases: []string{"g"},
				Usage:   "Derive acceleration and road grade from a trajectory log or GPX track",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Category: "Inputs and Outputs",
						Name:     "in",
						Aliases:  []string{"i"},
						Usage:    "Trajectory CSV or GPX file",
						Required: true,
					},
					&cli.StringFlag{
						Category: "Inputs and Outputs",
						Name:     "out",
						Aliases:  []string{"o"},
						Usage:    "Where to write the graded CSV",
						Required: true,
					},
					&cli.StringFlag{
						Category: "Inputs and Outputs",
						Name:     "net",
						Aliases:  []string{"n"},
						Usage:    "Network whose frame the x,y columns are in",
					},
					&cli.DurationFlag{
						Category: "Grading",
						Name:     "max-gap",
						Usage:    "Samples further apart than this start a new trip",
					},
					&cli.BoolFlag{
						Category: "Grading",
						Name:     "fill-gaps",
						Usage:    "Interpolate missing elevations per vehicle",
					},
					&cli.BoolFlag{
						Category: "Grading",
						Name:     "zero-is-unknown",
						Usage:    "Treat an elevation of exactly 0 as missing",
					},
					&cli.StringFlag{
						Name:  "metrics-file",
						Usage: "Write run metrics in the Prometheus textfile format",
					},
				}, sourceFlags()...),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runGrade(ctx, cmd)
				},
			},
			{
				Name:    "probe",
				Aliases: []string{"p"},
				Usage:   "Look up the elevation of a single point",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "net",
						Aliases:  []string{"n"},
						Usage:    "Network whose frame the point is in",
						Required: true,
					},
					&cli.Float64Flag{Category: "Point", Name: "x", Usage: "Network x coordinate"},
					&cli.Float64Flag{Category: "Point", Name: "y", Usage: "Network y coordinate"},
					&cli.Float64Flag{Category: "Point", Name: "lon", Usage: "Longitude in degrees"},
					&cli.Float64Flag{Category: "Point", Name: "lat", Usage: "Latitude in degrees"},
				}, sourceFlags()...),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runProbe(ctx, cmd)
				},
			},
			{
				Name:    "explore",
				Aliases: []string{"x"},
				Usage:   "Browse junction and edge elevations of a network",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "net",
						Aliases:  []string{"n"},
						Usage:    "The SUMO .net.xml file to browse",
						Required: true,
					},
				}, sourceFlags()...),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runExplore(ctx, cmd)
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Category: "Elevation",
			Name:     "raster",
			Aliases:  []string{"r"},
			Usage:    "GeoTIFF or ESRI ASCII elevation raster",
		},
		&cli.StringFlag{
			Category: "Elevation",
			Name:     "source",
			Usage:    "Elevation source: raster or open-meteo",
		},
		&cli.StringFlag{
			Category: "Elevation",
			Name:     "raster-crs",
			Usage:    "PROJ.4 definition of the raster CRS when the file does not declare one",
		},
	}
}
