package replicate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zakupnik/suggestd/internal/catalog"
	"github.com/zakupnik/suggestd/internal/index"
	"github.com/zakupnik/suggestd/internal/storage"
)

func newTestReplicator(t *testing.T, queueSize int) (*Replicator, *catalog.Store, *index.Index) {
	t.Helper()
	db, err := storage.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cat, err := catalog.NewStore(db)
	require.NoError(t, err)

	idx, _, err := index.Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	return New(cat, idx, queueSize, nil), cat, idx
}

func TestBootstrap_LoadsWholeCatalog(t *testing.T) {
	rep, cat, idx := newTestReplicator(t, 0)
	ctx := context.Background()

	for _, name := range []string{"mleko", "chleb", "masło"} {
		_, err := cat.Upsert(ctx, name, "", "")
		require.NoError(t, err)
	}

	require.NoError(t, rep.Bootstrap(ctx))

	n, err := idx.DocCount()
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestBootstrap_EmptyCatalog(t *testing.T) {
	rep, _, idx := newTestReplicator(t, 0)

	require.NoError(t, rep.Bootstrap(context.Background()))

	n, err := idx.DocCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEnqueueUpsert_AppliedByWorker(t *testing.T) {
	rep, cat, idx := newTestReplicator(t, 0)
	ctx := context.Background()

	p, err := cat.Upsert(ctx, "mleko", "nabiał", "l")
	require.NoError(t, err)

	rep.Start(ctx)
	rep.EnqueueUpsert(p)
	rep.Stop()

	hits, err := idx.Search(ctx, "mleko", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "mleko", hits[0].Name)
	assert.Equal(t, "l", hits[0].DefaultUnit)
}

func TestEnqueueUpsert_LastWriteWins(t *testing.T) {
	rep, cat, idx := newTestReplicator(t, 0)
	ctx := context.Background()

	first, err := cat.Upsert(ctx, "mleko", "", "l")
	require.NoError(t, err)
	second, err := cat.Upsert(ctx, "mleko", "", "l")
	require.NoError(t, err)

	rep.Start(ctx)
	rep.EnqueueUpsert(first)
	rep.EnqueueUpsert(second)
	rep.Stop()

	hits, err := idx.Search(ctx, "mleko", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.EqualValues(t, second.UsageCount, hits[0].UsageCount)
}

func TestEnqueueDelete_RemovesDocument(t *testing.T) {
	rep, cat, idx := newTestReplicator(t, 0)
	ctx := context.Background()

	p, err := cat.Upsert(ctx, "mleko", "", "")
	require.NoError(t, err)
	require.NoError(t, rep.Bootstrap(ctx))

	rep.Start(ctx)
	rep.EnqueueDelete(p.ID)
	rep.Stop()

	n, err := idx.DocCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEnqueue_DropsWhenQueueFullAndStopped(t *testing.T) {
	rep, cat, _ := newTestReplicator(t, 1)
	ctx := context.Background()

	p, err := cat.Upsert(ctx, "mleko", "", "")
	require.NoError(t, err)

	// Worker not started: the second event cannot fit the queue.
	rep.EnqueueUpsert(p)
	rep.EnqueueUpsert(p)

	assert.EqualValues(t, 1, rep.Dropped())
}

func TestStop_DrainsQueue(t *testing.T) {
	rep, cat, idx := newTestReplicator(t, 16)
	ctx := context.Background()

	var products []catalog.Product
	for _, name := range []string{"mleko", "chleb", "masło", "jajka"} {
		p, err := cat.Upsert(ctx, name, "", "")
		require.NoError(t, err)
		products = append(products, p)
	}

	rep.Start(ctx)
	for _, p := range products {
		rep.EnqueueUpsert(p)
	}
	rep.Stop()

	n, err := idx.DocCount()
	require.NoError(t, err)
	assert.EqualValues(t, len(products), n)
}
