// Package resolve implements commodity resolution: mapping noisy free-text
// (commodity, variety) pairs onto a fixed controlled vocabulary of canonical
// commodity labels, via named-entity extraction plus approximate string
// matching.
//
// Resolution is best-effort by design. It always returns some label, even
// when no reasonable match exists, so downstream consumers must treat
// commodity labels as approximate rather than as a guaranteed-correct join
// key. The similarity score is carried alongside every match so callers can
// threshold after the fact.
package resolve

import (
	"strings"

	"github.com/jdkato/prose/v2"
	"github.com/xrash/smetrics"

	"github.com/tigerroll/krishi/pkg/pipeline/support/logger"
)

const moduleName = "resolver"

// UnknownLabel is the sentinel returned when a minimum similarity is
// configured and the best vocabulary match scores below it.
const UnknownLabel = "UNKNOWN"

// Jaro-Winkler parameters, the customary values for the metric.
const (
	boostThreshold = 0.7
	prefixSize     = 4
)

// Match is the tagged result of one resolution: the chosen label, its
// similarity score against the matched text, and the entity span the score
// was computed from (the whole input when no entity was recognized).
type Match struct {
	Label  string
	Score  float64
	Entity string
}

// Resolver maps free-text commodity descriptions onto a controlled
// vocabulary using entity extraction and Jaro-Winkler similarity.
type Resolver struct {
	vocabulary    []string
	minSimilarity float64
}

// NewResolver creates a Resolver over the given controlled vocabulary.
// Vocabulary terms are upper-cased once at construction; matching is
// case-insensitive. minSimilarity below which matches degrade to
// UnknownLabel; zero accepts every best-effort match.
func NewResolver(vocabulary []string, minSimilarity float64) *Resolver {
	terms := make([]string, len(vocabulary))
	for i, term := range vocabulary {
		terms[i] = strings.ToUpper(strings.TrimSpace(term))
	}
	return &Resolver{vocabulary: terms, minSimilarity: minSimilarity}
}

// Resolve maps one (commodity, variety) pair to a vocabulary label.
//
// The two fields are concatenated and run through named-entity extraction;
// if any entity is recognized, the first entity span (upper-cased) is matched
// against the vocabulary, otherwise the whole upper-cased text is. The
// highest-similarity vocabulary term wins. Resolve never fails: with a
// non-empty vocabulary some term is always closest.
func (r *Resolver) Resolve(commodity, variety string) Match {
	text := strings.TrimSpace(commodity + " " + variety)
	query := strings.ToUpper(text)

	if doc, err := prose.NewDocument(text); err != nil {
		// Extraction trouble degrades to whole-string matching, not failure.
		logger.Debugf("%s: entity extraction failed for %q: %v", moduleName, text, err)
	} else if entities := doc.Entities(); len(entities) > 0 {
		query = strings.ToUpper(entities[0].Text)
	}

	label, score := r.bestMatch(query)
	if r.minSimilarity > 0 && score < r.minSimilarity {
		return Match{Label: UnknownLabel, Score: score, Entity: query}
	}
	return Match{Label: label, Score: score, Entity: query}
}

// bestMatch returns the vocabulary term with the highest Jaro-Winkler
// similarity to the query text, first-encountered term winning ties.
func (r *Resolver) bestMatch(query string) (string, float64) {
	best := ""
	bestScore := -1.0
	for _, term := range r.vocabulary {
		score := smetrics.JaroWinkler(query, term, boostThreshold, prefixSize)
		if score > bestScore {
			best = term
			bestScore = score
		}
	}
	return best, bestScore
}
