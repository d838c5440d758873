package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
	"time"

	_ "net/http/pprof"

	"github.com/urfave/cli/v3"

	"github.com/geodataset/gridmaker/config"
	"github.com/geodataset/gridmaker/grid"
	"github.com/geodataset/gridmaker/internal/stats"
	"github.com/geodataset/gridmaker/internal/telemetry"
	"github.com/geodataset/gridmaker/kv"
	"github.com/geodataset/gridmaker/modality"
	"github.com/geodataset/gridmaker/queue"
	"github.com/geodataset/gridmaker/server"
	"github.com/geodataset/gridmaker/shapefile"
)

func run(cliCtx *cli.Context) error {
	ctx, cancel := signal.NotifyContext(cliCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tel, err := telemetry.Setup(ctx, "gridmaker", cliCtx.String("telemetry.endpoint"))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Flush(flushCtx); err != nil {
			slog.Error("failed to flush telemetry", "error", err)
		}
		tel.Shutdown(flushCtx)
	}()

	log := slog.Default()

	if pprofListen := cliCtx.String("pprof.listen"); pprofListen != "" {
		go func() {
			log.Info("Starting pprof server")
			err := http.ListenAndServe(pprofListen, nil)
			if err != nil {
				log.Error("Error starting pprof server", "error", err)
			}
		}()
	}
	if cliCtx.Bool("pprof.profile") {
		f, err := os.OpenFile("profile.cpu.pprof", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("error creating pprof file: %w", err)
		}
		err = pprof.StartCPUProfile(f)
		if err != nil {
			return fmt.Errorf("error starting pprof: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	var collector *stats.Collector
	if cliCtx.Bool("stats") {
		collector, err = stats.NewCollector(time.Second)
		if err != nil {
			return err
		}
		collector.Start()
	}

	cfg, err := config.Load(cliCtx.String("config"))
	if err != nil {
		return err
	}
	gridCfg, err := cfg.ToGrid()
	if err != nil {
		return err
	}

	resolved, err := grid.Resolve(gridCfg, shapefile.NewSource(log), log)
	if err != nil {
		return err
	}
	plan, err := grid.NewPlan(resolved.Bound, gridCfg.Spacing)
	if err != nil {
		return err
	}
	filter, err := resolved.Filter()
	if err != nil {
		return err
	}

	q, err := openQueue(cfg, log)
	if err != nil {
		return err
	}
	defer q.Close()
	if _, err := q.CleanupMissing(); err != nil {
		return err
	}

	consumers := make(modality.Multi, 0, len(cfg.Modalities))
	for _, mc := range cfg.Modalities {
		c, err := modality.New(mc, q, log)
		if err != nil {
			return err
		}
		consumers = append(consumers, c)
	}
	if len(consumers) == 0 {
		return fmt.Errorf("no modalities configured, nothing to dispatch to")
	}

	tracker := server.NewTracker(consumers, plan.Candidates())
	if cfg.Metrics.Listen != "" {
		go func() {
			if err := server.Run(ctx, cfg.Metrics.Listen, tracker, q); err != nil {
				log.Error("status server stopped", "error", err)
			}
		}()
	}

	runner, err := grid.NewRunner(plan, gridCfg, filter, tracker,
		grid.WithLogger(log), grid.WithProgress(true))
	if err != nil {
		return err
	}

	report, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Println(report.String())

	if cliCtx.Bool("pprof.heap") {
		if err := writeHeapProfile("profile"); err != nil {
			return fmt.Errorf("error writing heap profile: %w", err)
		}
	}
	if collector != nil {
		fmt.Println(collector.Stop().String())
	}
	return nil
}

func openQueue(cfg *config.Config, log *slog.Logger) (*queue.Queue, error) {
	var store kv.Store[queue.Item]
	if cfg.Queue.Path != "" {
		var err error
		store, err = kv.OpenLevelDB[queue.Item](cfg.Queue.Path)
		if err != nil {
			return nil, fmt.Errorf("open queue database: %w", err)
		}
	} else {
		store = kv.NewMutexMap[queue.Item]()
	}
	return queue.Open(store, cfg.Queue.MaxUnprocessed, log)
}

func writeHeapProfile(name string) error {
	f, err := os.Create(name + ".heap.prof")
	if err != nil {
		return err
	}
	defer f.Close()
	return pprof.WriteHeapProfile(f)
}

func showPlan(cliCtx *cli.Context) error {
	log := slog.Default()

	cfg, err := config.Load(cliCtx.String("config"))
	if err != nil {
		return err
	}
	gridCfg, err := cfg.ToGrid()
	if err != nil {
		return err
	}

	resolved, err := grid.Resolve(gridCfg, shapefile.NewSource(log), log)
	if err != nil {
		return err
	}
	p, err := grid.NewPlan(resolved.Bound, gridCfg.Spacing)
	if err != nil {
		return err
	}

	report := grid.Report{
		Bound:       p.Bound,
		Spacing:     p.Spacing,
		Cols:        p.Cols,
		Rows:        p.Rows,
		Candidates:  p.Candidates(),
		AreaKm2:     p.AreaKm2(),
		Filtered:    resolved.Polygon != nil,
		Incremental: gridCfg.Incremental,
	}
	fmt.Println(report.String())
	return nil
}
