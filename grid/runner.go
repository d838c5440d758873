package grid

import (
	"context"
	"log/slog"
	"time"

	"github.com/cheggaaa/pb/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/geodataset/gridmaker/grid")

// Consumer is the downstream imagery pipeline. It receives accepted
// points one at a time in incremental mode or as one ordered collection
// in batch mode. Its errors are surfaced, not interpreted.
type Consumer interface {
	ConsumePoint(ctx context.Context, p Point) error
	ConsumeBatch(ctx context.Context, points []Point) error
}

// ConsumerFunc adapts a per-point function into a Consumer; the batch
// call dispatches sequentially in order.
type ConsumerFunc func(ctx context.Context, p Point) error

func (f ConsumerFunc) ConsumePoint(ctx context.Context, p Point) error { return f(ctx, p) }

func (f ConsumerFunc) ConsumeBatch(ctx context.Context, points []Point) error {
	for _, p := range points {
		if err := f(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Runner drains the lattice through the filter into the consumer on a
// single goroutine. Delivery mode only changes when points are handed
// over, never which points or in what order.
type Runner struct {
	plan   Plan
	cfg    Config
	filter Filter
	cons   Consumer

	log      *slog.Logger
	progress bool

	metricGenerated  metric.Int64Counter
	metricAccepted   metric.Int64Counter
	metricDispatched metric.Int64Counter
}

type RunnerOption interface {
	apply(*Runner)
}

type withLogger struct{ log *slog.Logger }

func (o withLogger) apply(r *Runner) { r.log = o.log }

func WithLogger(log *slog.Logger) RunnerOption { return withLogger{log} }

type withProgress bool

func (o withProgress) apply(r *Runner) { r.progress = bool(o) }

// WithProgress enables a terminal progress bar over the candidate count.
func WithProgress(enabled bool) RunnerOption { return withProgress(enabled) }

func NewRunner(plan Plan, cfg Config, filter Filter, cons Consumer, opts ...RunnerOption) (*Runner, error) {
	r := &Runner{
		plan:   plan,
		cfg:    cfg,
		filter: filter,
		cons:   cons,
		log:    slog.Default(),
	}
	for _, o := range opts {
		o.apply(r)
	}

	var err error
	r.metricGenerated, err = meter.Int64Counter("grid_points_generated_total")
	if err != nil {
		return nil, err
	}
	r.metricAccepted, err = meter.Int64Counter("grid_points_accepted_total")
	if err != nil {
		return nil, err
	}
	r.metricDispatched, err = meter.Int64Counter("grid_points_dispatched_total")
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Run generates, filters and dispatches the whole lattice. The returned
// report is valid even on error and reflects everything done up to the
// failure; in incremental mode previously dispatched points stay
// committed. Cancellation is honored between points.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{
		Bound:       r.plan.Bound,
		Spacing:     r.plan.Spacing,
		Cols:        r.plan.Cols,
		Rows:        r.plan.Rows,
		Candidates:  r.plan.Candidates(),
		AreaKm2:     r.plan.AreaKm2(),
		Incremental: r.cfg.Incremental,
	}
	if _, identity := r.filter.(acceptAll); !identity {
		report.Filtered = true
	}

	var bar *pb.ProgressBar
	if r.progress {
		bar = pb.Start64(r.plan.Candidates())
		bar.Set("prefix", "grid points")
		bar.SetRefreshRate(time.Second)
		defer bar.Finish()
	}

	var batch []Point
	for p := range r.plan.Points(r.cfg.StartID, r.cfg.StartLabel) {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}

		report.Generated++
		r.metricGenerated.Add(ctx, 1)
		if bar != nil {
			bar.Increment()
		}

		if !r.filter.Contains(p.Coord) {
			continue
		}
		report.Accepted++
		r.metricAccepted.Add(ctx, 1)

		if r.cfg.Incremental {
			if err := r.cons.ConsumePoint(ctx, p); err != nil {
				report.Duration = time.Since(start)
				return report, &ConsumerError{PointID: p.ID, Err: err}
			}
			report.Dispatched++
			r.metricDispatched.Add(ctx, 1)
		} else {
			batch = append(batch, p)
		}
	}

	if !r.cfg.Incremental && len(batch) > 0 {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}
		if err := r.cons.ConsumeBatch(ctx, batch); err != nil {
			report.Duration = time.Since(start)
			return report, &ConsumerError{Batch: true, Err: err}
		}
		report.Dispatched = int64(len(batch))
		r.metricDispatched.Add(ctx, int64(len(batch)))
	}

	if report.Filtered && report.Accepted == 0 {
		r.log.Warn("polygon filter accepted no points, nothing dispatched",
			"candidates", report.Generated)
	}

	report.Duration = time.Since(start)
	return report, nil
}
