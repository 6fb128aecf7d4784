// Package catalog implements the durable product catalog.
//
// Product names are case-normalized and unique; usage_count is incremented
// on every reference and never drops below 1. Rows are never deleted by
// normal operation. The catalog is the source of truth for the full-text
// index, which mirrors it as an eventually consistent read replica.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	apperr "github.com/zakupnik/suggestd/internal/errors"
)

// Product is a catalog entity.
type Product struct {
	ID          string
	Name        string
	Category    string
	DefaultUnit string
	UsageCount  int64
}

// Match is a similarity-search result row.
type Match struct {
	Product
	Similarity  float64
	PrefixMatch bool
}

// Store provides access to the products table.
type Store struct {
	db *sql.DB
}

// NewStore creates the catalog store and ensures its schema.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, apperr.StoreError("failed to initialize catalog schema", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL UNIQUE,
		category     TEXT,
		default_unit TEXT,
		usage_count  INTEGER NOT NULL DEFAULT 1 CHECK (usage_count >= 1),
		updated_at   TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	);

	CREATE INDEX IF NOT EXISTS idx_products_usage ON products(usage_count DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Normalize lower-cases and trims a product name. Every read and write goes
// through this so "Mleko" and "mleko" are the same catalog row. Lower-casing
// happens in Go because SQLite's lower() only folds ASCII.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Upsert inserts a product or updates an existing one with the same
// normalized name. A non-empty category or unit overwrites the stored
// value; an empty one leaves it untouched. usage_count is incremented on
// every conflict, so N upserts of the same name yield usage_count == N.
func (s *Store) Upsert(ctx context.Context, name, category, unit string) (Product, error) {
	norm := Normalize(name)
	if norm == "" {
		return Product{}, apperr.New(apperr.ErrCodeNameRequired, "product name is required", nil)
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO products (id, name, category, default_unit)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			category     = COALESCE(excluded.category, products.category),
			default_unit = COALESCE(excluded.default_unit, products.default_unit),
			usage_count  = products.usage_count + 1,
			updated_at   = strftime('%Y-%m-%dT%H:%M:%fZ','now')
		RETURNING id, name, category, default_unit, usage_count`,
		uuid.NewString(), norm, nullable(category), nullable(unit))

	p, err := scanProduct(row)
	if err != nil {
		return Product{}, apperr.StoreError("catalog upsert failed", err)
	}
	return p, nil
}

// FindByName looks up a product by its case-insensitive name.
// Returns ErrCodeProductNotFound when no row matches.
func (s *Store) FindByName(ctx context.Context, name string) (Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, default_unit, usage_count
		FROM products WHERE name = ?`, Normalize(name))

	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, apperr.New(apperr.ErrCodeProductNotFound, "product not found", err).
			WithDetail("name", Normalize(name))
	}
	if err != nil {
		return Product{}, apperr.StoreError("catalog lookup failed", err)
	}
	return p, nil
}

// SimilaritySearch ranks catalog rows against q using trigram similarity.
// Rows are retained when similarity exceeds threshold or the name starts
// with q (case-insensitive). Ordering: prefix matches first, then
// similarity, then usage_count, all descending.
func (s *Store) SimilaritySearch(ctx context.Context, q string, threshold float64, limit int) ([]Match, error) {
	norm := Normalize(q)
	pattern := escapeLike(norm) + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, default_unit, usage_count,
		       similarity(name, ?1) AS sim,
		       CASE WHEN name LIKE ?2 ESCAPE '\' THEN 1 ELSE 0 END AS starts_with
		FROM products
		WHERE similarity(name, ?1) > ?3 OR name LIKE ?2 ESCAPE '\'
		ORDER BY starts_with DESC, sim DESC, usage_count DESC, name ASC
		LIMIT ?4`,
		norm, pattern, threshold, limit)
	if err != nil {
		return nil, apperr.StoreError("catalog similarity search failed", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var category, unit sql.NullString
		var prefix int
		if err := rows.Scan(&m.ID, &m.Name, &category, &unit, &m.UsageCount, &m.Similarity, &prefix); err != nil {
			return nil, apperr.StoreError("catalog similarity scan failed", err)
		}
		m.Category = category.String
		m.DefaultUnit = unit.String
		m.PrefixMatch = prefix == 1
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.StoreError("catalog similarity search failed", err)
	}
	return matches, nil
}

// All returns every catalog row, used by the cold-start bulk reindex.
func (s *Store) All(ctx context.Context) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, default_unit, usage_count FROM products`)
	if err != nil {
		return nil, apperr.StoreError("catalog scan failed", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		var category, unit sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &category, &unit, &p.UsageCount); err != nil {
			return nil, apperr.StoreError("catalog scan failed", err)
		}
		p.Category = category.String
		p.DefaultUnit = unit.String
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.StoreError("catalog scan failed", err)
	}
	return products, nil
}

// Count returns the number of catalog rows.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, apperr.StoreError("catalog count failed", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var p Product
	var category, unit sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &category, &unit, &p.UsageCount); err != nil {
		return Product{}, err
	}
	p.Category = category.String
	p.DefaultUnit = unit.String
	return p, nil
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// escapeLike escapes LIKE wildcards so user input is matched literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
