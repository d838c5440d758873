package server

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/paulmach/orb"
	"github.com/valyala/fasthttp"

	"github.com/geodataset/gridmaker/grid"
	"github.com/geodataset/gridmaker/kv"
	"github.com/geodataset/gridmaker/queue"
)

type nopConsumer struct{}

func (nopConsumer) ConsumePoint(context.Context, grid.Point) error   { return nil }
func (nopConsumer) ConsumeBatch(context.Context, []grid.Point) error { return nil }

func TestStatusHandler(t *testing.T) {
	tracker := NewTracker(nopConsumer{}, 4)
	ctx := context.Background()
	if err := tracker.ConsumePoint(ctx, grid.Point{ID: 0, Coord: orb.Point{0, 0}}); err != nil {
		t.Fatal(err)
	}
	if err := tracker.ConsumeBatch(ctx, []grid.Point{{ID: 1}, {ID: 2}}); err != nil {
		t.Fatal(err)
	}

	s := &server{tracker: tracker}
	reqCtx := &fasthttp.RequestCtx{}
	s.StatusHandler(reqCtx)

	if reqCtx.Response.StatusCode() != http.StatusOK {
		t.Fatalf("unexpected status %d", reqCtx.Response.StatusCode())
	}
	var snap Snapshot
	if err := json.Unmarshal(reqCtx.Response.Body(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Dispatched != 3 || snap.Total != 4 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.PercentDone != 75 {
		t.Fatalf("expected 75%% done, got %v", snap.PercentDone)
	}
}

func TestQueueHandler(t *testing.T) {
	q, err := queue.Open(kv.NewMutexMap[queue.Item](), 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := q.Add("/tmp/out/0_0.png"); err != nil {
		t.Fatal(err)
	}

	s := &server{queue: q}
	reqCtx := &fasthttp.RequestCtx{}
	s.QueueHandler(reqCtx)

	var resp queueResponse
	if err := json.Unmarshal(reqCtx.Response.Body(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Pending != 1 || len(resp.Items) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Items[0].Path != "/tmp/out/0_0.png" {
		t.Fatalf("unexpected item %+v", resp.Items[0])
	}
}

func TestHandlersWithoutBackends(t *testing.T) {
	s := &server{}

	reqCtx := &fasthttp.RequestCtx{}
	s.StatusHandler(reqCtx)
	if reqCtx.Response.StatusCode() != http.StatusOK {
		t.Fatalf("status handler without tracker: %d", reqCtx.Response.StatusCode())
	}

	reqCtx = &fasthttp.RequestCtx{}
	s.QueueHandler(reqCtx)
	if reqCtx.Response.StatusCode() != http.StatusOK {
		t.Fatalf("queue handler without queue: %d", reqCtx.Response.StatusCode())
	}
}
