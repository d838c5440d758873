// Package queue tracks output files waiting for a downstream consumer.
// The producer registers each file it writes and pauses when too many
// are still unprocessed, so a slow consumer backpressures generation.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/geodataset/gridmaker/kv"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
)

// Item is one registered output file.
type Item struct {
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`
}

// Queue is a persistent FIFO of unprocessed output files. Entries are
// keyed by a monotonic sequence number, so store order is insertion
// order. Safe for concurrent use.
type Queue struct {
	store          kv.Store[Item]
	maxUnprocessed int
	log            *slog.Logger

	mu      sync.Mutex
	nextSeq uint64
	byPath  map[string]uint64
}

// Open builds a queue over store, loading any entries a previous run
// left behind. maxUnprocessed caps pending items before CanProduce
// reports false; zero or negative means no cap.
func Open(store kv.Store[Item], maxUnprocessed int, log *slog.Logger) (*Queue, error) {
	if log == nil {
		log = slog.Default()
	}
	q := &Queue{
		store:          store,
		maxUnprocessed: maxUnprocessed,
		log:            log,
		byPath:         map[string]uint64{},
	}
	err := store.Range(func(key uint64, it Item) bool {
		q.byPath[it.Path] = key
		if key >= q.nextSeq {
			q.nextSeq = key + 1
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if len(q.byPath) > 0 {
		log.Info("restored output queue", "items", len(q.byPath))
	}
	return q, nil
}

// Add registers an output file as pending. Paths are stored absolute.
// Returns false when the file is already queued.
func (q *Queue) Add(path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.byPath[abs]; ok {
		return false, nil
	}
	key := q.nextSeq
	err = q.store.Set(key, Item{
		Path:      abs,
		CreatedAt: time.Now(),
		Status:    StatusPending,
	})
	if err != nil {
		return false, err
	}
	q.nextSeq++
	q.byPath[abs] = key
	return true, nil
}

// Pending counts items still waiting to be processed.
func (q *Queue) Pending() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.countPending()
}

func (q *Queue) countPending() (int, error) {
	n := 0
	err := q.store.Range(func(_ uint64, it Item) bool {
		if it.Status == StatusPending {
			n++
		}
		return true
	})
	return n, err
}

// CanProduce reports whether the producer may register more outputs.
func (q *Queue) CanProduce() (bool, error) {
	if q.maxUnprocessed <= 0 {
		return true, nil
	}
	n, err := q.Pending()
	if err != nil {
		return false, err
	}
	return n < q.maxUnprocessed, nil
}

// WaitCanProduce blocks until the pending count drops under the cap or
// ctx is done, polling every interval.
func (q *Queue) WaitCanProduce(ctx context.Context, interval time.Duration) error {
	for {
		ok, err := q.CanProduce()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		q.log.Debug("output queue full, waiting for consumer", "max", q.maxUnprocessed)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// NextPending returns the oldest pending path, or "" when the queue has
// no pending items.
func (q *Queue) NextPending() (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var path string
	err := q.store.Range(func(_ uint64, it Item) bool {
		if it.Status == StatusPending {
			path = it.Path
			return false
		}
		return true
	})
	return path, err
}

// MarkProcessing moves a pending item to processing. Returns false when
// the path is unknown or already claimed.
func (q *Queue) MarkProcessing(path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	key, ok := q.byPath[abs]
	if !ok {
		return false, nil
	}
	it, found, err := q.store.Get(key)
	if err != nil {
		return false, err
	}
	if !found || it.Status != StatusPending {
		return false, nil
	}
	it.Status = StatusProcessing
	if err := q.store.Set(key, it); err != nil {
		return false, err
	}
	return true, nil
}

// MarkCompleted removes a finished item from the queue.
func (q *Queue) MarkCompleted(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	key, ok := q.byPath[abs]
	if !ok {
		return nil
	}
	if err := q.store.Delete(key); err != nil {
		return err
	}
	delete(q.byPath, abs)
	return nil
}

// AllPending lists pending items oldest first.
func (q *Queue) AllPending() ([]Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var items []Item
	err := q.store.Range(func(_ uint64, it Item) bool {
		if it.Status == StatusPending {
			items = append(items, it)
		}
		return true
	})
	return items, err
}

// CleanupMissing drops entries whose files no longer exist on disk.
func (q *Queue) CleanupMissing() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	type stale struct {
		key  uint64
		path string
	}
	var gone []stale
	err := q.store.Range(func(key uint64, it Item) bool {
		if _, err := os.Stat(it.Path); errors.Is(err, os.ErrNotExist) {
			gone = append(gone, stale{key, it.Path})
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	for _, s := range gone {
		if err := q.store.Delete(s.key); err != nil {
			return 0, err
		}
		delete(q.byPath, s.path)
	}
	if len(gone) > 0 {
		q.log.Info("removed queue entries for missing files", "count", len(gone))
	}
	return len(gone), nil
}

func (q *Queue) Close() error {
	return q.store.Close()
}
