package index

import (
	"strings"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/edgengram"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"

	"github.com/blevesearch/bleve/v2"
)

const (
	// PolishStemFilterName is the name of the light Polish stemming filter.
	PolishStemFilterName = "polish_light_stem"

	// PolishAnalyzerName folds case and strips common Polish inflections.
	PolishAnalyzerName = "polish"

	// PrefixAnalyzerName produces edge n-grams for completion-style
	// prefix matching, distinct from the stemmed field.
	PrefixAnalyzerName = "polish_prefix"

	// FoldingAnalyzerName folds case without stemming; used as the
	// query-side analyzer against the edge n-gram field.
	FoldingAnalyzerName = "polish_folding"

	prefixNgramFilterName = "prefix_edge_ngram"
)

func init() {
	// Register the stemmer the same way the built-in filters register
	// themselves, so analyzers can reference it by name.
	_ = registry.RegisterTokenFilter(PolishStemFilterName, polishStemFilterConstructor)
}

// createIndexMapping builds the product index mapping: a stemmed text field
// for tolerant matching, a raw keyword field for exact prefix matching, and
// an edge n-gram field for completion-style phrase-prefix matching.
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomTokenFilter(prefixNgramFilterName, map[string]interface{}{
		"type": edgengram.Name,
		"min":  2.0,
		"max":  20.0,
	})
	if err != nil {
		return nil, err
	}

	analyzers := map[string][]string{
		PolishAnalyzerName:  {lowercase.Name, PolishStemFilterName},
		FoldingAnalyzerName: {lowercase.Name},
		PrefixAnalyzerName:  {lowercase.Name, prefixNgramFilterName},
	}
	for name, filters := range analyzers {
		err := indexMapping.AddCustomAnalyzer(name, map[string]interface{}{
			"type":          custom.Name,
			"tokenizer":     unicode.Name,
			"token_filters": filters,
		})
		if err != nil {
			return nil, err
		}
	}

	nameStemmed := bleve.NewTextFieldMapping()
	nameStemmed.Name = "name"
	nameStemmed.Analyzer = PolishAnalyzerName
	nameStemmed.Store = true

	nameRaw := bleve.NewKeywordFieldMapping()
	nameRaw.Name = "name_raw"
	nameRaw.Store = false

	namePrefix := bleve.NewTextFieldMapping()
	namePrefix.Name = "name_prefix"
	namePrefix.Analyzer = PrefixAnalyzerName
	namePrefix.Store = false

	category := bleve.NewKeywordFieldMapping()
	category.Name = "category"
	category.Store = true

	defaultUnit := bleve.NewKeywordFieldMapping()
	defaultUnit.Name = "default_unit"
	defaultUnit.Store = true

	usageCount := bleve.NewNumericFieldMapping()
	usageCount.Name = "usage_count"
	usageCount.Store = true

	productMapping := bleve.NewDocumentMapping()
	productMapping.AddFieldMappingsAt("name", nameStemmed, nameRaw, namePrefix)
	productMapping.AddFieldMappingsAt("category", category)
	productMapping.AddFieldMappingsAt("default_unit", defaultUnit)
	productMapping.AddFieldMappingsAt("usage_count", usageCount)

	indexMapping.DefaultMapping = productMapping
	indexMapping.DefaultAnalyzer = PolishAnalyzerName

	return indexMapping, nil
}

// polishStemFilterConstructor creates the Polish light stemmer for bleve.
func polishStemFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &polishStemFilter{}, nil
}

// polishStemFilter strips common Polish inflectional suffixes. It is a
// light stemmer, not a dictionary stemmer: good enough to make "jabłka",
// "jabłek" and "jabłko" collide on short grocery names.
type polishStemFilter struct{}

// Filter implements analysis.TokenFilter.
func (f *polishStemFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	for _, token := range input {
		token.Term = []byte(polishStem(string(token.Term)))
	}
	return input
}

// polishSuffixes is ordered longest-first; the first applicable suffix wins.
var polishSuffixes = []string{
	"ościach", "ościami", "owanie", "owania", "owaniu",
	"ością", "ości",
	"iego", "iemu", "iach", "iami", "owie",
	"ego", "emu", "ymi", "imi", "ach", "ami", "owi",
	"ów", "om", "ie", "iu", "ia", "ią", "ię", "ek", "ka", "ko", "ki",
	"y", "i", "e", "a", "ę", "ą", "u", "o",
}

// polishStem strips at most one suffix, keeping a stem of at least three
// runes so short tokens survive intact.
func polishStem(term string) string {
	runes := []rune(term)
	if len(runes) <= 3 {
		return term
	}
	for _, suffix := range polishSuffixes {
		if !strings.HasSuffix(term, suffix) {
			continue
		}
		stem := runes[:len(runes)-len([]rune(suffix))]
		if len(stem) >= 3 {
			return string(stem)
		}
	}
	return term
}
