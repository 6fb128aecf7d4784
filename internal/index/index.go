// Package index wraps the bleve full-text index holding the replicated
// product catalog. It is the primary suggestion backend: tolerant of typos
// and Polish inflection, ranked by relevance then popularity.
//
// The index is a derived replica. The relational catalog is the source of
// truth; anything here can be rebuilt from it at any time.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	apperr "github.com/zakupnik/suggestd/internal/errors"
)

// Boost weights mirror the suggestion ranking contract: exact prefix on
// the raw name dominates, fuzzy full-text comes second, completion-style
// phrase prefix last.
const (
	boostRawPrefix    = 3.0
	boostFuzzyMatch   = 2.0
	boostPhrasePrefix = 1.5
)

// Document is the indexed projection of a catalog product. The document id
// is the product's catalog id, so re-indexing the same product overwrites
// in place.
type Document struct {
	ID          string
	Name        string
	Category    string
	DefaultUnit string
	UsageCount  int64
}

// Hit is one ranked search result.
type Hit struct {
	Name        string
	Category    string
	DefaultUnit string
	UsageCount  int64
	Score       float64
}

// Index is the product full-text index.
type Index struct {
	idx    bleve.Index
	path   string
	logger *slog.Logger
}

// Open opens the index at path, creating it when absent. An empty path
// opens an in-memory index, used by tests. The created flag tells callers
// whether a cold-start bootstrap from the catalog is needed.
func Open(path string, logger *slog.Logger) (idx *Index, created bool, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	if path == "" {
		m, err := createIndexMapping()
		if err != nil {
			return nil, false, apperr.IndexError("failed to build index mapping", err)
		}
		mem, err := bleve.NewMemOnly(m)
		if err != nil {
			return nil, false, apperr.IndexError("failed to create in-memory index", err)
		}
		return &Index{idx: mem, logger: logger}, true, nil
	}

	b, err := bleve.Open(path)
	switch {
	case err == nil:
		return &Index{idx: b, path: path, logger: logger}, false, nil
	case err == bleve.ErrorIndexPathDoesNotExist:
		b, err = create(path)
		if err != nil {
			return nil, false, err
		}
		logger.Info("created product index", "path", path)
		return &Index{idx: b, path: path, logger: logger}, true, nil
	case isCorruptionError(err):
		// A corrupt replica is recoverable: drop it and rebuild from
		// the catalog.
		logger.Warn("product index corrupt, recreating", "path", path, "error", err)
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return nil, false, apperr.New(apperr.ErrCodeIndexCorrupt,
				"failed to remove corrupt index", rmErr)
		}
		b, err = create(path)
		if err != nil {
			return nil, false, err
		}
		return &Index{idx: b, path: path, logger: logger}, true, nil
	default:
		return nil, false, apperr.New(apperr.ErrCodeIndexUnavailable,
			fmt.Sprintf("failed to open index at %s", path), err)
	}
}

func create(path string) (bleve.Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperr.IndexError("failed to create index directory", err)
	}
	m, err := createIndexMapping()
	if err != nil {
		return nil, apperr.IndexError("failed to build index mapping", err)
	}
	b, err := bleve.New(path, m)
	if err != nil {
		return nil, apperr.IndexError("failed to create index", err)
	}
	return b, nil
}

// isCorruptionError detects on-disk index damage worth a rebuild rather
// than a startup failure.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"corrupt", "checksum", "unexpected eof", "metadata missing"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Upsert indexes one product, replacing any previous version of the same
// document id. The operation is synchronous; when it returns the document
// is searchable.
func (i *Index) Upsert(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return apperr.New(apperr.ErrCodeIndexTimeout, "index write cancelled", err)
	}
	if doc.ID == "" || strings.TrimSpace(doc.Name) == "" {
		return apperr.ValidationError("index document needs id and name", nil)
	}
	if err := i.idx.Index(doc.ID, doc.fields()); err != nil {
		return apperr.IndexError("failed to index product", err)
	}
	return nil
}

// BulkUpsert indexes a set of products in one batch. Used by the
// cold-start bootstrap and full reindex; the batch is applied atomically
// and documents are searchable once it returns.
func (i *Index) BulkUpsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	batch := i.idx.NewBatch()
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return apperr.New(apperr.ErrCodeIndexTimeout, "bulk index cancelled", err)
		}
		if doc.ID == "" || strings.TrimSpace(doc.Name) == "" {
			continue
		}
		if err := batch.Index(doc.ID, doc.fields()); err != nil {
			return apperr.IndexError("failed to add product to batch", err)
		}
	}
	if err := i.idx.Batch(batch); err != nil {
		return apperr.IndexError("bulk index failed", err)
	}
	return nil
}

// Delete removes a product document. Missing documents are not an error.
func (i *Index) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return apperr.New(apperr.ErrCodeIndexTimeout, "index delete cancelled", err)
	}
	if err := i.idx.Delete(id); err != nil {
		return apperr.IndexError("failed to delete product from index", err)
	}
	return nil
}

// Search runs the suggestion query: a disjunction of raw-name prefix
// (boost 3), fuzzy match on the stemmed name (boost 2) and completion
// prefix (boost 1.5), sorted by score then usage count.
func (i *Index) Search(ctx context.Context, q string, limit int) ([]Hit, error) {
	q = strings.TrimSpace(q)
	if q == "" || limit <= 0 {
		return nil, nil
	}

	rawPrefix := bleve.NewPrefixQuery(strings.ToLower(q))
	rawPrefix.SetField("name_raw")
	rawPrefix.SetBoost(boostRawPrefix)

	fuzzy := bleve.NewMatchQuery(q)
	fuzzy.SetField("name")
	fuzzy.SetBoost(boostFuzzyMatch)
	fuzzy.SetAutoFuzziness(true)

	// The completion field is indexed with edge n-grams but the query
	// text must not be n-grammed, only folded.
	phrasePrefix := bleve.NewMatchQuery(q)
	phrasePrefix.SetField("name_prefix")
	phrasePrefix.SetBoost(boostPhrasePrefix)
	phrasePrefix.Analyzer = FoldingAnalyzerName

	disjunction := query.NewDisjunctionQuery([]query.Query{rawPrefix, fuzzy, phrasePrefix})

	req := bleve.NewSearchRequestOptions(disjunction, limit, 0, false)
	req.SortBy([]string{"-_score", "-usage_count", "_id"})
	req.Fields = []string{"name", "category", "default_unit", "usage_count"}

	res, err := i.idx.SearchInContext(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.New(apperr.ErrCodeIndexTimeout, "index search timed out", err)
		}
		return nil, apperr.New(apperr.ErrCodeSearchFailed, "index search failed", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		name, _ := h.Fields["name"].(string)
		if name == "" {
			// A hit without a stored name is a stale or malformed
			// document; skip it rather than surface a blank suggestion.
			i.logger.Warn("discarding index hit without name", "id", h.ID)
			continue
		}
		hit := Hit{Name: name, Score: h.Score}
		hit.Category, _ = h.Fields["category"].(string)
		hit.DefaultUnit, _ = h.Fields["default_unit"].(string)
		if uc, ok := h.Fields["usage_count"].(float64); ok {
			hit.UsageCount = int64(uc)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// DocCount returns the number of indexed products.
func (i *Index) DocCount() (uint64, error) {
	n, err := i.idx.DocCount()
	if err != nil {
		return 0, apperr.IndexError("failed to count index documents", err)
	}
	return n, nil
}

// Close releases the underlying index.
func (i *Index) Close() error {
	return i.idx.Close()
}

func (d Document) fields() map[string]interface{} {
	return map[string]interface{}{
		"name":         strings.TrimSpace(d.Name),
		"category":     d.Category,
		"default_unit": d.DefaultUnit,
		"usage_count":  d.UsageCount,
	}
}
