package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimilarity_IdenticalStrings(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("mleko", "mleko"))
}

func TestSimilarity_CaseInsensitive(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Mleko", "mleko"))
}

func TestSimilarity_DisjointStrings(t *testing.T) {
	assert.Equal(t, 0.0, Similarity("mleko", "xyz"))
}

func TestSimilarity_EmptyString(t *testing.T) {
	assert.Equal(t, 0.0, Similarity("", "mleko"))
	assert.Equal(t, 0.0, Similarity("", ""))
}

func TestSimilarity_PartialOverlap(t *testing.T) {
	sim := Similarity("mleko", "mleko 2%")
	assert.Greater(t, sim, 0.2, "close variants should clear the fallback threshold")
	assert.Less(t, sim, 1.0)

	// Typo stays reasonably similar
	typo := Similarity("jabłka", "jabłko")
	assert.Greater(t, typo, 0.2)
}

func TestSimilarity_OrderIndependent(t *testing.T) {
	assert.Equal(t, Similarity("ser żółty", "ser"), Similarity("ser", "ser żółty"))
}

func TestSimilarity_RegisteredInSQL(t *testing.T) {
	db, err := Open("")
	require.NoError(t, err)
	defer db.Close()

	var sim float64
	err = db.QueryRow(`SELECT similarity('mleko', 'mleko')`).Scan(&sim)
	require.NoError(t, err)
	assert.Equal(t, 1.0, sim)

	err = db.QueryRow(`SELECT similarity('mleko', 'xyz')`).Scan(&sim)
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}

func TestOpen_AppliesWALMode(t *testing.T) {
	db, err := Open(t.TempDir() + "/test.db")
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}
