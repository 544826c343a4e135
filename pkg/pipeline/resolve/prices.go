package resolve

import (
	"strings"

	"github.com/tigerroll/krishi/pkg/pipeline/store"
)

// Raw crop price column names, matched case-insensitively since source
// stores are inconsistent about casing (agmarknet exports use title case).
const (
	colState      = "state"
	colDistrict   = "district"
	colCommodity  = "commodity"
	colVariety    = "variety"
	colMaxPrice   = "max_price"
	colModalPrice = "modal_price"
)

// PriceOutputDescriptor is the structure of the transformed crop price table.
// Normalization deliberately reduces the attribute surface: the market
// identifier, grade, arrival date and min (clearing) price columns of the raw
// table are dropped, and the free-text commodity/variety pair is replaced by
// one canonical label plus its similarity score.
func PriceOutputDescriptor(table string) store.TableDescriptor {
	return store.TableDescriptor{
		Name: table,
		Columns: []store.ColumnDescriptor{
			{Name: "state", DeclaredType: "TEXT"},
			{Name: "district", DeclaredType: "TEXT"},
			{Name: "commodity", DeclaredType: "TEXT"},
			{Name: "max_price", DeclaredType: "REAL"},
			{Name: "modal_price", DeclaredType: "REAL"},
			{Name: "match_score", DeclaredType: "REAL"},
		},
	}
}

// TransformPrices resolves every raw crop price row against the controlled
// vocabulary and returns the normalized rows matching PriceOutputDescriptor.
func (r *Resolver) TransformPrices(rows []map[string]interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		match := r.Resolve(stringValue(lookup(row, colCommodity)), stringValue(lookup(row, colVariety)))
		out = append(out, map[string]interface{}{
			"state":       lookup(row, colState),
			"district":    lookup(row, colDistrict),
			"commodity":   match.Label,
			"max_price":   lookup(row, colMaxPrice),
			"modal_price": lookup(row, colModalPrice),
			"match_score": match.Score,
		})
	}
	return out
}

// lookup finds a column value by case-insensitive name.
func lookup(row map[string]interface{}, name string) interface{} {
	if v, ok := row[name]; ok {
		return v
	}
	for k, v := range row {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}

// stringValue renders a driver value as the text fed to resolution.
func stringValue(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case []byte:
		return string(value)
	default:
		return ""
	}
}
