package suggest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/zakupnik/suggestd/internal/errors"
	"github.com/zakupnik/suggestd/internal/history"
	"github.com/zakupnik/suggestd/internal/storage"
)

// fakeProvider is a scripted backend that counts its calls.
type fakeProvider struct {
	name    string
	results []Candidate
	err     error
	calls   int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(_ context.Context, _ string, limit int) ([]Candidate, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > limit {
		return f.results[:limit], nil
	}
	return f.results, nil
}

func newTestHistory(t *testing.T) *history.Store {
	t.Helper()
	db, err := storage.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := history.NewStore(db)
	require.NoError(t, err)
	return store
}

func candidates(names ...string) []Candidate {
	out := make([]Candidate, len(names))
	for i, n := range names {
		out[i] = Candidate{Name: n, UsageCount: int64(len(names) - i)}
	}
	return out
}

func TestSuggest_ShortQuerySkipsBackends(t *testing.T) {
	primary := &fakeProvider{name: "index", results: candidates("mleko")}
	fallback := &fakeProvider{name: "catalog", results: candidates("mleko")}
	engine := NewEngine(primary, fallback, newTestHistory(t), Options{}, nil)

	got, err := engine.Suggest(context.Background(), "m", "", 0)
	require.NoError(t, err)

	assert.Empty(t, got)
	assert.Zero(t, primary.calls, "short queries must not hit the index")
	assert.Zero(t, fallback.calls, "short queries must not hit the catalog")
}

func TestSuggest_PrimaryWinsWhenHealthy(t *testing.T) {
	primary := &fakeProvider{name: "index", results: candidates("mleko", "mleko kokosowe")}
	fallback := &fakeProvider{name: "catalog", results: candidates("masło")}
	engine := NewEngine(primary, fallback, newTestHistory(t), Options{}, nil)

	got, err := engine.Suggest(context.Background(), "mleko", "", 0)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "mleko", got[0].Name)
	assert.Equal(t, SourceCatalog, got[0].Source)
	assert.Equal(t, 1, primary.calls)
	assert.Zero(t, fallback.calls, "fallback must stay cold while primary answers")
}

func TestSuggest_FallbackOnPrimaryError(t *testing.T) {
	primary := &fakeProvider{name: "index", err: apperr.IndexError("index down", nil)}
	fallback := &fakeProvider{name: "catalog", results: candidates("mleko")}
	engine := NewEngine(primary, fallback, newTestHistory(t), Options{}, nil)

	got, err := engine.Suggest(context.Background(), "mleko", "", 0)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "mleko", got[0].Name)
	assert.Equal(t, 1, fallback.calls)
}

func TestSuggest_FallbackOnPrimaryEmpty(t *testing.T) {
	primary := &fakeProvider{name: "index"}
	fallback := &fakeProvider{name: "catalog", results: candidates("mleko")}
	engine := NewEngine(primary, fallback, newTestHistory(t), Options{}, nil)

	got, err := engine.Suggest(context.Background(), "mleko", "", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestSuggest_FallbackErrorIsHard(t *testing.T) {
	primary := &fakeProvider{name: "index", err: apperr.IndexError("index down", nil)}
	fallback := &fakeProvider{name: "catalog", err: apperr.StoreError("store down", nil)}
	engine := NewEngine(primary, fallback, newTestHistory(t), Options{}, nil)

	_, err := engine.Suggest(context.Background(), "mleko", "", 0)
	require.Error(t, err)
	assert.Equal(t, apperr.ErrCodeStoreUnavailable, apperr.GetCode(err))
}

func TestSuggest_MergedHistoryFirst(t *testing.T) {
	hist := newTestHistory(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, hist.RecordPurchase(ctx, "p1", "mleko", 1, "l", now))
	require.NoError(t, hist.RecordPurchase(ctx, "p1", "mleko", 2, "l", now))

	primary := &fakeProvider{name: "index", results: candidates("mleko kokosowe", "mleczko waniliowe")}
	engine := NewEngine(primary, primary, hist, Options{}, nil)

	got, err := engine.Suggest(ctx, "mleko", "p1", 0)
	require.NoError(t, err)

	require.NotEmpty(t, got)
	assert.Equal(t, "mleko", got[0].Name)
	assert.Equal(t, SourceHistory, got[0].Source)
	assert.EqualValues(t, 2, got[0].TimesBought)
	assert.Equal(t, "l", got[0].Unit)
}

func TestSuggest_MergeDeduplicatesCaseInsensitive(t *testing.T) {
	hist := newTestHistory(t)
	ctx := context.Background()
	require.NoError(t, hist.RecordPurchase(ctx, "p1", "Mleko", 1, "l", time.Now()))

	primary := &fakeProvider{name: "index", results: candidates("mleko", "masło")}
	engine := NewEngine(primary, primary, hist, Options{}, nil)

	got, err := engine.Suggest(ctx, "mleko", "p1", 0)
	require.NoError(t, err)

	var mlekoCount int
	for _, s := range got {
		if s.Name == "mleko" || s.Name == "Mleko" {
			mlekoCount++
			assert.Equal(t, SourceHistory, s.Source,
				"the history entry wins over the catalog duplicate")
		}
	}
	assert.Equal(t, 1, mlekoCount)
}

func TestSuggest_MergedLimit(t *testing.T) {
	hist := newTestHistory(t)
	ctx := context.Background()
	now := time.Now()
	for _, name := range []string{"mleko", "mleko kozie", "mleko owsiane", "mleko sojowe", "mleczko"} {
		require.NoError(t, hist.RecordPurchase(ctx, "p1", name, 1, "l", now))
	}

	primary := &fakeProvider{name: "index", results: candidates(
		"mleko kokosowe", "mleko migdałowe", "mleko ryżowe", "mleko skondensowane", "mleczko waniliowe")}
	engine := NewEngine(primary, primary, hist, Options{MergedLimit: 8}, nil)

	got, err := engine.Suggest(ctx, "mleko", "p1", 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(got), 8)

	// History contributes its entries ahead of every catalog entry.
	var seenCatalog bool
	for _, s := range got {
		if s.Source == SourceCatalog {
			seenCatalog = true
		} else if seenCatalog {
			t.Fatalf("history entry %q after a catalog entry", s.Name)
		}
	}
}

func TestSuggest_LimitOverridesCatalogDefault(t *testing.T) {
	primary := &fakeProvider{name: "index", results: candidates("mleko", "mleko kozie", "mleko owsiane")}
	engine := NewEngine(primary, primary, newTestHistory(t), Options{}, nil)

	got, err := engine.Suggest(context.Background(), "mleko", "", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSuggest_LimitOverridesMergedDefault(t *testing.T) {
	hist := newTestHistory(t)
	ctx := context.Background()
	now := time.Now()
	for _, name := range []string{"mleko", "mleko kozie", "mleko owsiane"} {
		require.NoError(t, hist.RecordPurchase(ctx, "p1", name, 1, "l", now))
	}

	primary := &fakeProvider{name: "index", results: candidates("mleko kokosowe", "mleko ryżowe")}
	engine := NewEngine(primary, primary, hist, Options{}, nil)

	got, err := engine.Suggest(ctx, "mleko", "p1", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSuggest_NoHistoryProfileGetsCatalog(t *testing.T) {
	primary := &fakeProvider{name: "index", results: candidates("mleko")}
	engine := NewEngine(primary, primary, newTestHistory(t), Options{}, nil)

	got, err := engine.Suggest(context.Background(), "mleko", "p-empty", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, SourceCatalog, got[0].Source)
}
