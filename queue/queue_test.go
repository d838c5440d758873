package queue_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/geodataset/gridmaker/kv"
	"github.com/geodataset/gridmaker/queue"
)

func newQueue(t *testing.T, maxUnprocessed int) *queue.Queue {
	t.Helper()
	q, err := queue.Open(kv.NewMutexMap[queue.Item](), maxUnprocessed, nil)
	if err != nil {
		t.Fatal(err)
	}
	return q
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAddDeduplicates(t *testing.T) {
	q := newQueue(t, 10)

	added, err := q.Add("/tmp/out/0_3.png")
	if err != nil || !added {
		t.Fatalf("first add: added=%v err=%v", added, err)
	}
	added, err = q.Add("/tmp/out/0_3.png")
	if err != nil {
		t.Fatal(err)
	}
	if added {
		t.Fatal("duplicate path should not be added twice")
	}
	n, err := q.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pending, got %d", n)
	}
}

func TestFIFOOrder(t *testing.T) {
	q := newQueue(t, 10)
	for _, p := range []string{"/tmp/a.png", "/tmp/b.png", "/tmp/c.png"} {
		if _, err := q.Add(p); err != nil {
			t.Fatal(err)
		}
	}

	next, err := q.NextPending()
	if err != nil {
		t.Fatal(err)
	}
	if next != "/tmp/a.png" {
		t.Fatalf("expected oldest entry first, got %q", next)
	}

	if err := q.MarkCompleted("/tmp/a.png"); err != nil {
		t.Fatal(err)
	}
	next, err = q.NextPending()
	if err != nil {
		t.Fatal(err)
	}
	if next != "/tmp/b.png" {
		t.Fatalf("expected /tmp/b.png after completing the first, got %q", next)
	}
}

func TestMarkProcessingClaimsOnce(t *testing.T) {
	q := newQueue(t, 10)
	if _, err := q.Add("/tmp/a.png"); err != nil {
		t.Fatal(err)
	}

	ok, err := q.MarkProcessing("/tmp/a.png")
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	ok, err = q.MarkProcessing("/tmp/a.png")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("item should not be claimable twice")
	}

	next, err := q.NextPending()
	if err != nil {
		t.Fatal(err)
	}
	if next != "" {
		t.Fatalf("processing item should not be pending, got %q", next)
	}
}

func TestCanProduceBackpressure(t *testing.T) {
	q := newQueue(t, 2)
	for _, p := range []string{"/tmp/a.png", "/tmp/b.png"} {
		if _, err := q.Add(p); err != nil {
			t.Fatal(err)
		}
	}

	ok, err := q.CanProduce()
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("queue at cap should block production")
	}

	if err := q.MarkCompleted("/tmp/a.png"); err != nil {
		t.Fatal(err)
	}
	ok, err = q.CanProduce()
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("queue under cap should allow production")
	}
}

func TestWaitCanProduceHonorsContext(t *testing.T) {
	q := newQueue(t, 1)
	if _, err := q.Add("/tmp/a.png"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := q.WaitCanProduce(ctx, 10*time.Millisecond)
	if err != context.DeadlineExceeded {
		t.Fatalf("expected deadline error while the queue stays full, got %v", err)
	}
}

func TestCleanupMissing(t *testing.T) {
	dir := t.TempDir()
	exists := touch(t, dir, "kept.png")
	gone := filepath.Join(dir, "deleted.png")

	q := newQueue(t, 10)
	for _, p := range []string{exists, gone} {
		if _, err := q.Add(p); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := q.CleanupMissing()
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed entry, got %d", removed)
	}
	items, err := q.AllPending()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Path != exists {
		t.Fatalf("unexpected remaining items: %+v", items)
	}
}

func TestReopenRestoresState(t *testing.T) {
	store := kv.NewMutexMap[queue.Item]()
	q, err := queue.Open(store, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := q.Add("/tmp/a.png"); err != nil {
		t.Fatal(err)
	}

	q2, err := queue.Open(store, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	added, err := q2.Add("/tmp/a.png")
	if err != nil {
		t.Fatal(err)
	}
	if added {
		t.Fatal("reopened queue should remember registered paths")
	}
	if _, err := q2.Add("/tmp/b.png"); err != nil {
		t.Fatal(err)
	}
	next, err := q2.NextPending()
	if err != nil {
		t.Fatal(err)
	}
	if next != "/tmp/a.png" {
		t.Fatalf("restored entry should come first, got %q", next)
	}
}

func TestLevelDBRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := kv.OpenLevelDB[queue.Item](filepath.Join(dir, "queue.db"))
	if err != nil {
		t.Fatal(err)
	}
	q, err := queue.Open(store, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := q.Add("/tmp/a.png"); err != nil {
		t.Fatal(err)
	}
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}

	store, err = kv.OpenLevelDB[queue.Item](filepath.Join(dir, "queue.db"))
	if err != nil {
		t.Fatal(err)
	}
	q, err = queue.Open(store, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer q.Close()

	next, err := q.NextPending()
	if err != nil {
		t.Fatal(err)
	}
	if next != "/tmp/a.png" {
		t.Fatalf("persisted entry should survive reopen, got %q", next)
	}
}
