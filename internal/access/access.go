// Package access answers profile authorization checks.
//
// Profile ownership and group membership live in tables owned by the
// shopping/auth services; this package only reads them. Grants are cached
// for a short TTL since membership changes are rare and every
// profile-scoped request performs a check.
package access

import (
	"context"
	"database/sql"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	apperr "github.com/zakupnik/suggestd/internal/errors"
)

const (
	cacheSize = 1024
	cacheTTL  = 30 * time.Second
)

// Checker verifies that a user may read a profile's data.
type Checker struct {
	db    *sql.DB
	cache *expirable.LRU[string, bool]
}

// NewChecker creates a profile access checker backed by the shared database.
func NewChecker(db *sql.DB) (*Checker, error) {
	c := &Checker{
		db:    db,
		cache: expirable.NewLRU[string, bool](cacheSize, nil, cacheTTL),
	}
	if err := c.initSchema(); err != nil {
		return nil, apperr.StoreError("failed to initialize access schema", err)
	}
	return c, nil
}

// initSchema ensures the profile tables exist. In production they are
// created and populated by the shopping service; creating them here keeps
// local development and tests self-contained.
func (c *Checker) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS shopping_profiles (
		id       TEXT PRIMARY KEY,
		name     TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		group_id TEXT
	);

	CREATE TABLE IF NOT EXISTS user_groups (
		group_id TEXT NOT NULL,
		user_id  TEXT NOT NULL,
		PRIMARY KEY (group_id, user_id)
	);
	`
	_, err := c.db.Exec(schema)
	return err
}

// HasProfileAccess reports whether userID owns profileID or belongs to its
// group. A missing profile yields false, not an error; the API layer keeps
// the two indistinguishable externally.
func (c *Checker) HasProfileAccess(ctx context.Context, profileID, userID string) (bool, error) {
	key := profileID + "\x00" + userID
	if granted, ok := c.cache.Get(key); ok {
		return granted, nil
	}

	var one int
	err := c.db.QueryRowContext(ctx, `
		SELECT 1 FROM shopping_profiles sp
		LEFT JOIN user_groups ug ON sp.group_id = ug.group_id
		WHERE sp.id = ? AND (sp.owner_id = ? OR ug.user_id = ?)
		LIMIT 1`,
		profileID, userID, userID).Scan(&one)
	if err == sql.ErrNoRows {
		// Denials are cached too; a brute-force scan of profile ids
		// should not hammer the store.
		c.cache.Add(key, false)
		return false, nil
	}
	if err != nil {
		return false, apperr.StoreError("profile access check failed", err)
	}

	c.cache.Add(key, true)
	return true, nil
}
