package suggest

import (
	"context"

	"github.com/zakupnik/suggestd/internal/catalog"
	"github.com/zakupnik/suggestd/internal/index"
)

// IndexProvider serves candidates from the bleve product index.
type IndexProvider struct {
	idx *index.Index
}

// NewIndexProvider wraps the full-text index as a suggestion backend.
func NewIndexProvider(idx *index.Index) *IndexProvider {
	return &IndexProvider{idx: idx}
}

func (p *IndexProvider) Name() string { return "index" }

func (p *IndexProvider) Search(ctx context.Context, q string, limit int) ([]Candidate, error) {
	hits, err := p.idx.Search(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	candidates := make([]Candidate, len(hits))
	for i, h := range hits {
		candidates[i] = Candidate{
			Name:        h.Name,
			Category:    h.Category,
			DefaultUnit: h.DefaultUnit,
			UsageCount:  h.UsageCount,
			Score:       h.Score,
		}
	}
	return candidates, nil
}

// CatalogProvider serves candidates straight from the relational catalog
// using trigram similarity. It is the fallback when the index is
// unavailable or returns nothing.
type CatalogProvider struct {
	store     *catalog.Store
	threshold float64
}

// NewCatalogProvider wraps the catalog store as a suggestion backend.
func NewCatalogProvider(store *catalog.Store, threshold float64) *CatalogProvider {
	return &CatalogProvider{store: store, threshold: threshold}
}

func (p *CatalogProvider) Name() string { return "catalog" }

func (p *CatalogProvider) Search(ctx context.Context, q string, limit int) ([]Candidate, error) {
	matches, err := p.store.SimilaritySearch(ctx, q, p.threshold, limit)
	if err != nil {
		return nil, err
	}
	candidates := make([]Candidate, len(matches))
	for i, m := range matches {
		candidates[i] = Candidate{
			Name:        m.Name,
			Category:    m.Category,
			DefaultUnit: m.DefaultUnit,
			UsageCount:  m.UsageCount,
			Score:       m.Similarity,
		}
	}
	return candidates, nil
}
