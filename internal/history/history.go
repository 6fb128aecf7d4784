// Package history implements the purchase-history store.
//
// A purchase record is written once when a shopping list completes and is
// immutable afterwards. Records are scoped to a profile and never shared
// across profiles; the free-text product name is not required to match a
// catalog entry.
package history

import (
	"context"
	"database/sql"
	"math"
	"strings"
	"time"

	"github.com/zakupnik/suggestd/internal/catalog"
	apperr "github.com/zakupnik/suggestd/internal/errors"
)

// Aggregate holds quantity statistics for one product in one profile.
type Aggregate struct {
	TimesBought int64
	AvgQuantity float64
	MinQuantity float64
	MaxQuantity float64
	ModalUnit   string
}

// PersonalItem is one grouped row of a profile's purchase history.
type PersonalItem struct {
	Name        string
	TimesBought int64
	AvgQuantity float64
	ModalUnit   string
}

// Store provides access to the item_history table.
type Store struct {
	db *sql.DB
}

// NewStore creates the history store and ensures its schema.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, apperr.StoreError("failed to initialize history schema", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS item_history (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		profile_id   TEXT NOT NULL,
		product_name TEXT NOT NULL,
		name_norm    TEXT NOT NULL,
		quantity     REAL NOT NULL CHECK (quantity > 0),
		unit         TEXT,
		purchased_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_profile_name
		ON item_history(profile_id, name_norm);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordPurchase appends one purchase record. Called by the shopping
// service when a list transitions to completed, one record per checked item.
// name_norm is lower-cased in Go because SQLite's lower() is ASCII-only.
func (s *Store) RecordPurchase(ctx context.Context, profileID, name string, quantity float64, unit string, purchasedAt time.Time) error {
	if strings.TrimSpace(name) == "" {
		return apperr.New(apperr.ErrCodeNameRequired, "product name is required", nil)
	}
	if quantity <= 0 {
		return apperr.ValidationError("quantity must be positive", nil)
	}

	var unitVal any
	if strings.TrimSpace(unit) != "" {
		unitVal = unit
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO item_history (profile_id, product_name, name_norm, quantity, unit, purchased_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		profileID, strings.TrimSpace(name), catalog.Normalize(name), quantity, unitVal,
		purchasedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return apperr.StoreError("failed to record purchase", err)
	}
	return nil
}

// AggregateByName computes quantity statistics for an exact
// (case-insensitive) product name within a profile. A zero TimesBought
// means the profile has never bought the product.
func (s *Store) AggregateByName(ctx context.Context, profileID, name string) (Aggregate, error) {
	norm := catalog.Normalize(name)

	var agg Aggregate
	var avg, minQ, maxQ sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(quantity), MIN(quantity), MAX(quantity)
		FROM item_history
		WHERE profile_id = ? AND name_norm = ?`,
		profileID, norm).Scan(&agg.TimesBought, &avg, &minQ, &maxQ)
	if err != nil {
		return Aggregate{}, apperr.StoreError("history aggregation failed", err)
	}
	if agg.TimesBought == 0 {
		return Aggregate{}, nil
	}

	agg.AvgQuantity = round2(avg.Float64)
	agg.MinQuantity = round2(minQ.Float64)
	agg.MaxQuantity = round2(maxQ.Float64)

	unit, err := s.modalUnit(ctx, profileID, norm)
	if err != nil {
		return Aggregate{}, err
	}
	agg.ModalUnit = unit
	return agg, nil
}

// modalUnit returns the most frequent non-null unit for a product, ties
// broken alphabetically for determinism.
func (s *Store) modalUnit(ctx context.Context, profileID, norm string) (string, error) {
	var unit string
	err := s.db.QueryRowContext(ctx, `
		SELECT unit FROM item_history
		WHERE profile_id = ? AND name_norm = ? AND unit IS NOT NULL
		GROUP BY unit
		ORDER BY COUNT(*) DESC, unit ASC
		LIMIT 1`,
		profileID, norm).Scan(&unit)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", apperr.StoreError("modal unit query failed", err)
	}
	return unit, nil
}

// PersonalSuggestions returns the profile's purchase history grouped by
// product name, ordered by purchase count descending. When q is non-empty
// the groups are filtered by the same similarity-or-prefix rule the
// relational fallback uses. Grouping is case-insensitive but the returned
// name is one the user actually typed.
func (s *Store) PersonalSuggestions(ctx context.Context, profileID, q string, threshold float64, limit int) ([]PersonalItem, error) {
	query := `
		SELECT MIN(h.product_name) AS display_name,
		       COUNT(*) AS times_bought,
		       ROUND(AVG(h.quantity), 2) AS avg_qty,
		       (SELECT h2.unit FROM item_history h2
		        WHERE h2.profile_id = h.profile_id
		          AND h2.name_norm = h.name_norm
		          AND h2.unit IS NOT NULL
		        GROUP BY h2.unit
		        ORDER BY COUNT(*) DESC, h2.unit ASC
		        LIMIT 1) AS modal_unit
		FROM item_history h
		WHERE h.profile_id = ?`
	args := []any{profileID}

	if q != "" {
		norm := catalog.Normalize(q)
		query += ` AND (similarity(h.name_norm, ?) > ? OR h.name_norm LIKE ? ESCAPE '\')`
		args = append(args, norm, threshold, escapeLike(norm)+"%")
	}

	query += `
		GROUP BY h.name_norm
		ORDER BY times_bought DESC, h.name_norm ASC
		LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.StoreError("history suggestion query failed", err)
	}
	defer rows.Close()

	return scanPersonalItems(rows)
}

// FrequentItems returns products the profile bought at least minCount
// times, for the whole-list suggestion.
func (s *Store) FrequentItems(ctx context.Context, profileID string, minCount, limit int) ([]PersonalItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT MIN(h.product_name) AS display_name,
		       COUNT(*) AS times_bought,
		       ROUND(AVG(h.quantity), 2) AS avg_qty,
		       (SELECT h2.unit FROM item_history h2
		        WHERE h2.profile_id = h.profile_id
		          AND h2.name_norm = h.name_norm
		          AND h2.unit IS NOT NULL
		        GROUP BY h2.unit
		        ORDER BY COUNT(*) DESC, h2.unit ASC
		        LIMIT 1) AS modal_unit
		FROM item_history h
		WHERE h.profile_id = ?
		GROUP BY h.name_norm
		HAVING COUNT(*) >= ?
		ORDER BY times_bought DESC, h.name_norm ASC
		LIMIT ?`,
		profileID, minCount, limit)
	if err != nil {
		return nil, apperr.StoreError("frequent items query failed", err)
	}
	defer rows.Close()

	return scanPersonalItems(rows)
}

func scanPersonalItems(rows *sql.Rows) ([]PersonalItem, error) {
	var items []PersonalItem
	for rows.Next() {
		var item PersonalItem
		var unit sql.NullString
		if err := rows.Scan(&item.Name, &item.TimesBought, &item.AvgQuantity, &unit); err != nil {
			return nil, apperr.StoreError("history scan failed", err)
		}
		item.ModalUnit = unit.String
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.StoreError("history query failed", err)
	}
	return items, nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
