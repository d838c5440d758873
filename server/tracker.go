package server

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/geodataset/gridmaker/grid"
)

// Tracker wraps a consumer and counts dispatched points so the status
// endpoint can report live progress.
type Tracker struct {
	next grid.Consumer

	total      int64
	started    time.Time
	dispatched atomic.Int64
}

var _ grid.Consumer = (*Tracker)(nil)

// NewTracker wraps next. total is the candidate count of the plan,
// used to report completion percentage.
func NewTracker(next grid.Consumer, total int64) *Tracker {
	return &Tracker{
		next:    next,
		total:   total,
		started: time.Now(),
	}
}

// ConsumePoint implements grid.Consumer
func (t *Tracker) ConsumePoint(ctx context.Context, p grid.Point) error {
	if err := t.next.ConsumePoint(ctx, p); err != nil {
		return err
	}
	t.dispatched.Add(1)
	return nil
}

// ConsumeBatch implements grid.Consumer
func (t *Tracker) ConsumeBatch(ctx context.Context, points []grid.Point) error {
	if err := t.next.ConsumeBatch(ctx, points); err != nil {
		return err
	}
	t.dispatched.Add(int64(len(points)))
	return nil
}

// Snapshot is the status endpoint payload.
type Snapshot struct {
	Total          int64   `json:"total"`
	Dispatched     int64   `json:"dispatched"`
	PercentDone    float64 `json:"percent_done"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

func (t *Tracker) Snapshot() Snapshot {
	dispatched := t.dispatched.Load()
	snap := Snapshot{
		Total:          t.total,
		Dispatched:     dispatched,
		ElapsedSeconds: time.Since(t.started).Seconds(),
	}
	if t.total > 0 {
		snap.PercentDone = float64(dispatched) / float64(t.total) * 100
	}
	return snap
}
