package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v3"
	_ "go.uber.org/automaxprocs"

	"github.com/geodataset/gridmaker/modality"
)

func main() {
	app := &cli.App{
		Name:        "gridmaker",
		Description: "Geographic grid point generator for imagery datasets",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "generate grid points and dispatch them to the configured modalities",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:      "config",
						Aliases:   []string{"c"},
						TakesFile: true,
					},
					&cli.StringFlag{
						Name:  "telemetry.endpoint",
						Usage: "otlp http endpoint for metrics, traces and logs",
					},
					&cli.BoolFlag{
						Name:  "stats",
						Usage: "sample resource usage and print a summary",
					},
					&cli.StringFlag{
						Name:        "pprof.listen",
						DefaultText: "",
					},
					&cli.BoolFlag{
						Name:        "pprof.profile",
						DefaultText: "",
					},
					&cli.BoolFlag{
						Name:        "pprof.heap",
						DefaultText: "",
					},
				},
				Action: run,
			},
			{
				Name:  "plan",
				Usage: "resolve the configured grid and print its dimensions without dispatching",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:      "config",
						Aliases:   []string{"c"},
						TakesFile: true,
					},
				},
				Action: showPlan,
			},
			{
				Name:  "bbox",
				Usage: "calculate the bbox size in degrees for a target image resolution",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     "width",
						Required: true,
					},
					&cli.IntFlag{
						Name:     "height",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "zoom",
						Value: 18,
					},
				},
				Action: bbox,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func bbox(ctx *cli.Context) error {
	width := ctx.Int("width")
	height := ctx.Int("height")
	zoom := ctx.Int("zoom")
	if width <= 0 || height <= 0 {
		return fmt.Errorf("width and height must be positive")
	}

	bboxWidth := modality.BBoxSizeForResolution(width, zoom)
	bboxHeight := modality.BBoxSizeForResolution(height, zoom)
	square := max(bboxWidth, bboxHeight)

	fmt.Printf("Zoom level:      %d (%.6f° per tile)\n", zoom, modality.DegreesPerTile(zoom))
	fmt.Printf("Width:           %.6f° (%.1f m)\n", bboxWidth, bboxWidth*111_000)
	fmt.Printf("Height:          %.6f° (%.1f m)\n", bboxHeight, bboxHeight*111_000)
	fmt.Printf("Square bbox:     %.6f° (%.1f m)\n", square, square*111_000)
	fmt.Printf("\nUse bbox_size: %.6f for ~%dx%d pixel images\n", square, width, width)
	return nil
}
