package storage

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"unicode"

	"modernc.org/sqlite"
)

func init() {
	// Expose trigram similarity to SQL so the fallback matcher and the
	// history filter can rank directly in the query, mirroring pg_trgm's
	// similarity(a, b).
	sqlite.MustRegisterDeterministicScalarFunction("similarity", 2,
		func(tctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			a, okA := asText(args[0])
			b, okB := asText(args[1])
			if !okA || !okB {
				return nil, fmt.Errorf("similarity: arguments must be text")
			}
			return Similarity(a, b), nil
		})
}

func asText(v driver.Value) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	case nil:
		return "", true
	default:
		return "", false
	}
}

// Similarity computes trigram similarity between two strings following
// pg_trgm semantics: both inputs are case-folded, each word is padded with
// two leading and one trailing space, and the score is the Jaccard ratio of
// the two trigram sets. Identical strings score 1, disjoint strings 0.
func Similarity(a, b string) float64 {
	ta := trigrams(a)
	tb := trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	return float64(shared) / float64(union)
}

// trigrams extracts the padded trigram set of every alphanumeric word.
func trigrams(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range splitWords(strings.ToLower(s)) {
		padded := []rune("  " + word + " ")
		for i := 0; i+3 <= len(padded); i++ {
			set[string(padded[i:i+3])] = struct{}{}
		}
	}
	return set
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
