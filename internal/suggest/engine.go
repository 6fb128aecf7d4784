package suggest

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/zakupnik/suggestd/internal/catalog"
	"github.com/zakupnik/suggestd/internal/history"
)

// Options carries the engine's ranking limits. Zero values fall back to
// the defaults below.
type Options struct {
	// MinQueryLen is the minimum query length in runes; shorter queries
	// return an empty result without touching any backend.
	MinQueryLen int
	// ProductLimit caps catalog-only results.
	ProductLimit int
	// SourceLimit caps each source's contribution to a merged result.
	SourceLimit int
	// MergedLimit caps the fused history+catalog result.
	MergedLimit int
	// SimilarityThreshold filters history groups matched against q.
	SimilarityThreshold float64
}

const (
	defaultMinQueryLen  = 2
	defaultProductLimit = 10
	defaultSourceLimit  = 5
	defaultMergedLimit  = 8
	defaultThreshold    = 0.2
)

func (o Options) withDefaults() Options {
	if o.MinQueryLen <= 0 {
		o.MinQueryLen = defaultMinQueryLen
	}
	if o.ProductLimit <= 0 {
		o.ProductLimit = defaultProductLimit
	}
	if o.SourceLimit <= 0 {
		o.SourceLimit = defaultSourceLimit
	}
	if o.MergedLimit <= 0 {
		o.MergedLimit = defaultMergedLimit
	}
	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = defaultThreshold
	}
	return o
}

// Engine fuses catalog backends with per-profile purchase history.
type Engine struct {
	primary  Provider
	fallback Provider
	history  *history.Store
	opts     Options
	logger   *slog.Logger
}

// NewEngine builds the suggestion engine. primary is tried first on every
// query; fallback takes over when primary fails or finds nothing. fallback
// must not be nil; primary may equal fallback when no index is available.
func NewEngine(primary, fallback Provider, hist *history.Store, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		primary:  primary,
		fallback: fallback,
		history:  hist,
		opts:     opts.withDefaults(),
		logger:   logger,
	}
}

// Suggest returns catalog suggestions for q. With a profileID the result is
// fused with the profile's history, history entries first; without one it
// is catalog-only. A positive limit overrides the configured result cap.
// Queries shorter than the minimum return an empty slice and touch no
// backend.
func (e *Engine) Suggest(ctx context.Context, q, profileID string, limit int) ([]Suggestion, error) {
	norm := catalog.Normalize(q)
	if len([]rune(norm)) < e.opts.MinQueryLen {
		return []Suggestion{}, nil
	}

	if profileID == "" {
		if limit <= 0 {
			limit = e.opts.ProductLimit
		}
		candidates, err := e.searchCatalog(ctx, norm, limit)
		if err != nil {
			return nil, err
		}
		return fromCandidates(candidates), nil
	}

	mergedLimit := e.opts.MergedLimit
	if limit > 0 {
		mergedLimit = limit
	}

	var (
		candidates []Candidate
		personal   []history.PersonalItem
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		candidates, err = e.searchCatalog(gctx, norm, e.opts.SourceLimit)
		return err
	})
	g.Go(func() error {
		var err error
		personal, err = e.history.PersonalSuggestions(gctx, profileID, norm, e.opts.SimilarityThreshold, e.opts.SourceLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return e.merge(personal, candidates, mergedLimit), nil
}

// searchCatalog runs the ordered-attempt strategy: primary first, fallback
// on error or empty result. A fallback failure is a hard failure.
func (e *Engine) searchCatalog(ctx context.Context, q string, limit int) ([]Candidate, error) {
	if e.primary != nil {
		candidates, err := e.primary.Search(ctx, q, limit)
		if err != nil {
			e.logger.Warn("primary suggestion backend failed, falling back",
				"backend", e.primary.Name(), "query", q, "error", err)
		} else if len(candidates) > 0 {
			return candidates, nil
		}
	}
	if e.fallback == nil || e.fallback == e.primary {
		return nil, nil
	}
	return e.fallback.Search(ctx, q, limit)
}

// merge fuses the two sources, history first, deduplicated by normalized
// name. A product both bought before and present in the catalog appears
// once, as a history entry.
func (e *Engine) merge(personal []history.PersonalItem, candidates []Candidate, limit int) []Suggestion {
	merged := make([]Suggestion, 0, limit)
	seen := make(map[string]bool, limit)

	for _, item := range personal {
		key := catalog.Normalize(item.Name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, Suggestion{
			Name:        item.Name,
			Source:      SourceHistory,
			Unit:        item.ModalUnit,
			TimesBought: item.TimesBought,
			AvgQuantity: item.AvgQuantity,
		})
		if len(merged) == limit {
			return merged
		}
	}

	for _, c := range candidates {
		key := catalog.Normalize(c.Name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, Suggestion{
			Name:       c.Name,
			Source:     SourceCatalog,
			Category:   c.Category,
			Unit:       c.DefaultUnit,
			UsageCount: c.UsageCount,
			Score:      c.Score,
		})
		if len(merged) == limit {
			return merged
		}
	}
	return merged
}

func fromCandidates(candidates []Candidate) []Suggestion {
	out := make([]Suggestion, len(candidates))
	for i, c := range candidates {
		out[i] = Suggestion{
			Name:       c.Name,
			Source:     SourceCatalog,
			Category:   c.Category,
			Unit:       c.DefaultUnit,
			UsageCount: c.UsageCount,
			Score:      c.Score,
		}
	}
	return out
}
