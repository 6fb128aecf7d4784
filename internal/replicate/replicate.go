// Package replicate keeps the full-text index trailing the product
// catalog. Catalog writes are acknowledged immediately; index updates are
// queued and applied by a background worker, so a slow or briefly broken
// index never blocks a write path.
package replicate

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zakupnik/suggestd/internal/catalog"
	"github.com/zakupnik/suggestd/internal/index"
)

// Op is a replication event kind.
type Op int

const (
	// OpUpsert mirrors a catalog insert or update into the index.
	OpUpsert Op = iota
	// OpDelete removes a product document from the index.
	OpDelete
)

// Event is one queued index update.
type Event struct {
	Op      Op
	Product catalog.Product
}

const defaultQueueSize = 256

// applyTimeout bounds a single index write so one stuck operation cannot
// wedge the worker forever.
const applyTimeout = 10 * time.Second

// Replicator is the write-behind bridge from catalog to index.
type Replicator struct {
	catalog *catalog.Store
	index   *index.Index
	logger  *slog.Logger

	queue  chan Event
	doneCh chan struct{}

	mu      sync.Mutex
	running bool

	dropped atomic.Int64
}

// New creates a replicator with the given queue capacity; size <= 0 uses
// the default.
func New(cat *catalog.Store, idx *index.Index, queueSize int, logger *slog.Logger) *Replicator {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Replicator{
		catalog: cat,
		index:   idx,
		logger:  logger,
		queue:   make(chan Event, queueSize),
		doneCh:  make(chan struct{}),
	}
}

// Bootstrap bulk-loads the index from the catalog. Called on cold start
// before the service accepts traffic, and by the reindex command; when it
// returns every catalog row is searchable.
func (r *Replicator) Bootstrap(ctx context.Context) error {
	products, err := r.catalog.All(ctx)
	if err != nil {
		return err
	}
	docs := make([]index.Document, len(products))
	for i, p := range products {
		docs[i] = toDocument(p)
	}
	if err := r.index.BulkUpsert(ctx, docs); err != nil {
		return err
	}
	r.logger.Info("index bootstrapped from catalog", "products", len(docs))
	return nil
}

// Start launches the background worker. Safe to call once; subsequent
// calls are no-ops.
func (r *Replicator) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	go r.run(ctx)
}

func (r *Replicator) run(ctx context.Context) {
	defer close(r.doneCh)
	for {
		select {
		case ev, ok := <-r.queue:
			if !ok {
				return
			}
			r.apply(ev)
		case <-ctx.Done():
			// Drain what is already queued so acknowledged writes
			// still reach the index, then exit.
			for {
				select {
				case ev, ok := <-r.queue:
					if !ok {
						return
					}
					r.apply(ev)
				default:
					return
				}
			}
		}
	}
}

func (r *Replicator) apply(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
	defer cancel()

	var err error
	switch ev.Op {
	case OpUpsert:
		err = r.index.Upsert(ctx, toDocument(ev.Product))
	case OpDelete:
		err = r.index.Delete(ctx, ev.Product.ID)
	}
	if err != nil {
		// The index is a replica; a failed update is lost until the
		// next write of the same product or a reindex, never retried
		// into an unbounded backlog.
		r.logger.Warn("index replication failed",
			"op", ev.Op, "product_id", ev.Product.ID, "error", err)
	}
}

// EnqueueUpsert queues a product for index replication. Non-blocking: when
// the queue is full the event is dropped and counted, and the index
// catches up on the product's next write or a reindex.
func (r *Replicator) EnqueueUpsert(p catalog.Product) {
	r.enqueue(Event{Op: OpUpsert, Product: p})
}

// EnqueueDelete queues removal of a product document.
func (r *Replicator) EnqueueDelete(productID string) {
	r.enqueue(Event{Op: OpDelete, Product: catalog.Product{ID: productID}})
}

func (r *Replicator) enqueue(ev Event) {
	select {
	case r.queue <- ev:
	default:
		r.dropped.Add(1)
		r.logger.Warn("replication queue full, dropping event",
			"product_id", ev.Product.ID, "dropped_total", r.dropped.Load())
	}
}

// Dropped returns how many events were discarded due to a full queue.
func (r *Replicator) Dropped() int64 {
	return r.dropped.Load()
}

// Stop closes the queue and waits for the worker to drain it.
func (r *Replicator) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	close(r.queue)
	<-r.doneCh
}

func toDocument(p catalog.Product) index.Document {
	return index.Document{
		ID:          p.ID,
		Name:        p.Name,
		Category:    p.Category,
		DefaultUnit: p.DefaultUnit,
		UsageCount:  p.UsageCount,
	}
}
