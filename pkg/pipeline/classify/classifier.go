// Package classify implements the categorical classification of soil
// nutrient data: groups of mutually-exclusive level-indicator columns
// sharing a nutrient prefix (e.g. nitrogen_low / nitrogen_medium /
// nitrogen_high) are collapsed into a single categorical label per row.
package classify

import (
	"strconv"
	"strings"

	"github.com/tigerroll/krishi/pkg/pipeline/store"
	"github.com/tigerroll/krishi/pkg/pipeline/support/logger"
)

const moduleName = "classifier"

// UnknownLabel is the sentinel label assigned to rows whose candidate
// columns are all missing. Null indicators never win a comparison, so an
// all-null row can never produce a spurious level label.
const UnknownLabel = "Unknown"

// CandidateColumns returns, in declared order, the columns of desc whose
// names start with the category prefix (category + "_"). An empty result
// means the category does not apply to this table.
func CandidateColumns(desc store.TableDescriptor, category string) []string {
	prefix := category + "_"
	var candidates []string
	for _, col := range desc.Columns {
		if strings.HasPrefix(col.Name, prefix) {
			candidates = append(candidates, col.Name)
		}
	}
	return candidates
}

// ClassifyRow derives the categorical label for one row given the category
// and its candidate columns in declared order. It is a pure function of the
// row's values:
//   - every candidate missing or non-numeric yields UnknownLabel;
//   - otherwise the level suffix (the column name minus the category prefix)
//     of the column holding the maximum value is returned, ties resolved by
//     declared order. Multi-word levels such as ec's "non_saline" stay intact.
func ClassifyRow(category string, candidates []string, row map[string]interface{}) string {
	best := ""
	bestValue := 0.0
	found := false

	for _, col := range candidates {
		value, ok := toFloat(row[col])
		if !ok {
			continue
		}
		// Strictly-greater comparison keeps the first-encountered column on ties.
		if !found || value > bestValue {
			best = col
			bestValue = value
			found = true
		}
	}

	if !found {
		return UnknownLabel
	}
	return strings.TrimPrefix(best, category+"_")
}

// Classifier derives one categorical column per configured nutrient category
// while preserving the configured identity columns unchanged.
type Classifier struct {
	identityColumns []string
}

// NewClassifier creates a Classifier preserving the given identity columns
// (row identifier, sub-location identifier, location identifiers).
func NewClassifier(identityColumns []string) *Classifier {
	return &Classifier{identityColumns: identityColumns}
}

// Transform classifies every row of a nutrient table. It returns the output
// table structure (surviving identity columns followed by one TEXT column per
// applicable category, in configured order) and the transformed rows.
// Categories with no matching columns are skipped with a logged omission;
// downstream rows simply lack that column.
func (c *Classifier) Transform(desc store.TableDescriptor, rows []map[string]interface{}, categories []string) (store.TableDescriptor, []map[string]interface{}) {
	out := store.TableDescriptor{Name: desc.Name}

	declared := make(map[string]string, len(desc.Columns))
	for _, col := range desc.Columns {
		declared[col.Name] = col.DeclaredType
	}

	var identity []string
	for _, col := range c.identityColumns {
		if declaredType, ok := declared[col]; ok {
			identity = append(identity, col)
			out.Columns = append(out.Columns, store.ColumnDescriptor{Name: col, DeclaredType: declaredType})
		}
	}

	candidatesByCategory := make(map[string][]string, len(categories))
	var applicable []string
	for _, category := range categories {
		candidates := CandidateColumns(desc, category)
		if len(candidates) == 0 {
			logger.Warnf("%s: table '%s' has no columns for category '%s'; omitting it", moduleName, desc.Name, category)
			continue
		}
		applicable = append(applicable, category)
		candidatesByCategory[category] = candidates
		out.Columns = append(out.Columns, store.ColumnDescriptor{Name: category, DeclaredType: "TEXT"})
	}

	transformed := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		record := make(map[string]interface{}, len(identity)+len(applicable))
		for _, col := range identity {
			record[col] = row[col]
		}
		for _, category := range applicable {
			record[category] = ClassifyRow(category, candidatesByCategory[category], row)
		}
		transformed = append(transformed, record)
	}

	return out, transformed
}

// toFloat coerces the numeric representations produced by the SQL drivers
// (int64/float64, plus textual forms from sqlite's dynamic typing) into a
// float64. Nil and non-coercible values report ok=false and count as missing.
func toFloat(v interface{}) (float64, bool) {
	switch value := v.(type) {
	case nil:
		return 0, false
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int64:
		return float64(value), true
	case int:
		return float64(value), true
	case int32:
		return float64(value), true
	case []byte:
		f, err := strconv.ParseFloat(string(value), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(value, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
