// Package outbox delivers queued content embeddings to the vector index.
package outbox

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/renderinc/learnshare/internal/storage"
	"github.com/renderinc/learnshare/internal/vectorindex"
)

const (
	defaultConcurrency = 5
	defaultBatchSize   = 50
	reconcileLimit     = 1000

	baseBackoff = 5 * time.Second
	maxBackoff  = 10 * time.Minute
)

// Store is the slice of storage the worker needs.
type Store interface {
	ListDueOutbox(ctx context.Context, now time.Time, limit int) ([]storage.OutboxEntry, error)
	GetContent(ctx context.Context, id int64) (*storage.Content, error)
	CompleteOutbox(ctx context.Context, contentID int64, at time.Time) error
	FailOutbox(ctx context.Context, contentID int64, lastError string, next time.Time) error
	DropOutbox(ctx context.Context, contentID int64) error
	ListUnindexedContentIDs(ctx context.Context, limit int) ([]int64, error)
	EnqueueVector(ctx context.Context, contentID int64, at time.Time) error
}

// Worker drains the vector outbox
type Worker struct {
	store       Store
	index       vectorindex.Index
	concurrency int
	batchSize   int
	now         func() time.Time

	notify chan struct{}
	drain  sync.Mutex
}

// NewWorker creates a worker. Zero concurrency or batchSize use the defaults.
func NewWorker(store Store, index vectorindex.Index, concurrency, batchSize int) *Worker {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Worker{
		store:       store,
		index:       index,
		concurrency: concurrency,
		batchSize:   batchSize,
		now:         time.Now,
		notify:      make(chan struct{}, 1),
	}
}

// Stats holds drain statistics
type Stats struct {
	Due       int
	Delivered int
	Failed    int
	Dropped   int
	// Busy is set when another drain was already running
	Busy     bool
	Duration time.Duration
}

// Notify asks Run to drain soon. It never blocks.
func (w *Worker) Notify() {
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// Run drains on every Notify until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.notify:
			if _, err := w.Drain(ctx); err != nil && ctx.Err() == nil {
				log.Printf("[outbox] drain failed: %v", err)
			}
		}
	}
}

// Drain delivers every due entry. Only one drain runs at a time; a concurrent
// call returns immediately with Busy set.
func (w *Worker) Drain(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	if !w.drain.TryLock() {
		stats.Busy = true
		return stats, nil
	}
	defer w.drain.Unlock()

	start := time.Now()
	for {
		entries, err := w.store.ListDueOutbox(ctx, w.now(), w.batchSize)
		if err != nil {
			return stats, fmt.Errorf("list due outbox: %w", err)
		}
		if len(entries) == 0 {
			break
		}
		stats.Due += len(entries)
		settled := w.deliverAll(ctx, entries, stats)

		// Entries whose outcome could not be written stay due; stop rather
		// than list the same batch again.
		if settled == 0 {
			log.Printf("[outbox] no entry in a batch of %d could be settled, stopping drain", len(entries))
			break
		}
		if len(entries) < w.batchSize || ctx.Err() != nil {
			break
		}
	}

	stats.Duration = time.Since(start)
	if stats.Due > 0 {
		log.Printf("[outbox] drain complete: %d delivered, %d failed, %d dropped in %v",
			stats.Delivered, stats.Failed, stats.Dropped, stats.Duration)
	}
	return stats, ctx.Err()
}

// deliverAll returns how many entries left the due set.
func (w *Worker) deliverAll(ctx context.Context, entries []storage.OutboxEntry, stats *Stats) int {
	entryChan := make(chan storage.OutboxEntry, len(entries))
	for _, e := range entries {
		entryChan <- e
	}
	close(entryChan)

	var wg sync.WaitGroup
	var mu sync.Mutex
	settled := 0

	for range w.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range entryChan {
				outcome := w.deliver(ctx, e)
				mu.Lock()
				switch outcome {
				case delivered:
					stats.Delivered++
				case dropped:
					stats.Dropped++
				default:
					stats.Failed++
				}
				if outcome != stuck {
					settled++
				}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return settled
}

type outcome int

const (
	failed outcome = iota
	delivered
	dropped
	// stuck means the outcome could not be recorded; the entry is still due
	stuck
)

func (w *Worker) deliver(ctx context.Context, e storage.OutboxEntry) outcome {
	c, err := w.store.GetContent(ctx, e.ContentID)
	if err != nil {
		return w.fail(ctx, e, fmt.Errorf("load content: %w", err))
	}
	if c == nil || len(c.Embedding) == 0 {
		if err := w.store.DropOutbox(ctx, e.ContentID); err != nil {
			log.Printf("[outbox] drop %d: %v", e.ContentID, err)
			return stuck
		}
		return dropped
	}

	if err := w.index.Upsert(ctx, []vectorindex.Vector{VectorFor(c)}); err != nil {
		return w.fail(ctx, e, err)
	}
	if err := w.store.CompleteOutbox(ctx, e.ContentID, w.now()); err != nil {
		log.Printf("[outbox] complete %d: %v", e.ContentID, err)
		return stuck
	}
	return delivered
}

func (w *Worker) fail(ctx context.Context, e storage.OutboxEntry, cause error) outcome {
	next := w.now().Add(Backoff(e.Attempts))
	log.Printf("[outbox] content %d attempt %d failed, retry at %s: %v",
		e.ContentID, e.Attempts+1, next.Format(time.RFC3339), cause)
	if err := w.store.FailOutbox(ctx, e.ContentID, cause.Error(), next); err != nil {
		log.Printf("[outbox] record failure for %d: %v", e.ContentID, err)
		return stuck
	}
	return failed
}

// Backoff is the delay before retrying an entry that has failed attempts times.
func Backoff(attempts int) time.Duration {
	if attempts >= 8 {
		return maxBackoff
	}
	d := baseBackoff << uint(attempts)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// Reconcile queues contents whose vector write was lost and wakes the worker.
func (w *Worker) Reconcile(ctx context.Context) (int, error) {
	ids, err := w.store.ListUnindexedContentIDs(ctx, reconcileLimit)
	if err != nil {
		return 0, fmt.Errorf("list unindexed: %w", err)
	}
	now := w.now()
	for _, id := range ids {
		if err := w.store.EnqueueVector(ctx, id, now); err != nil {
			return 0, err
		}
	}
	if len(ids) > 0 {
		log.Printf("[outbox] reconcile queued %d contents", len(ids))
		w.Notify()
	}
	return len(ids), nil
}
