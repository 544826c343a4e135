package resolve_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/krishi/pkg/pipeline/resolve"
)

var vocabulary = []string{"RICE", "WHEAT", "MAIZE", "GROUNDNUT", "MUSTARD", "POTATO", "ONION"}

func TestResolveExactCommodity(t *testing.T) {
	r := resolve.NewResolver(vocabulary, 0)

	match := r.Resolve("Wheat", "")
	assert.Equal(t, "WHEAT", match.Label)
	assert.InDelta(t, 1.0, match.Score, 1e-9)
}

func TestResolveMisspelledCommodity(t *testing.T) {
	r := resolve.NewResolver(vocabulary, 0)

	match := r.Resolve("Potatos", "")
	assert.Equal(t, "POTATO", match.Label)
	assert.Greater(t, match.Score, 0.8)
}

func TestResolveAlwaysReturnsVocabularyLabel(t *testing.T) {
	r := resolve.NewResolver(vocabulary, 0)

	inputs := [][2]string{
		{"Wheat", "Sharbati"},
		{"Onion", "Red"},
		{"Gobhi", ""},
		{"", ""},
		{"zzzz", "qqqq"},
	}
	for _, input := range inputs {
		match := r.Resolve(input[0], input[1])
		assert.Contains(t, vocabulary, match.Label, "input %q %q", input[0], input[1])
		assert.NotEmpty(t, match.Label)
	}
}

func TestResolveBelowThresholdIsUnknown(t *testing.T) {
	r := resolve.NewResolver(vocabulary, 0.95)

	match := r.Resolve("zzzz", "qqqq")
	assert.Equal(t, resolve.UnknownLabel, match.Label)
	assert.Less(t, match.Score, 0.95)
}

func TestResolveIsCaseInsensitive(t *testing.T) {
	r := resolve.NewResolver([]string{"groundnut"}, 0)

	match := r.Resolve("GROUNDNUT", "")
	assert.Equal(t, "GROUNDNUT", match.Label)
	assert.InDelta(t, 1.0, match.Score, 1e-9)
}

func TestPriceOutputDescriptor(t *testing.T) {
	desc := resolve.PriceOutputDescriptor("market_crop_prices")

	assert.Equal(t, "market_crop_prices", desc.Name)
	assert.Equal(t,
		[]string{"state", "district", "commodity", "max_price", "modal_price", "match_score"},
		desc.ColumnNames())
}

func TestTransformPricesNormalizesRows(t *testing.T) {
	r := resolve.NewResolver(vocabulary, 0)

	// Raw agmarknet exports use title-cased column names.
	rows := []map[string]interface{}{
		{
			"State":        "Gujarat",
			"District":     "Anand",
			"Market":       "Anand Mandi",
			"Commodity":    "Wheat",
			"Variety":      "",
			"Grade":        "FAQ",
			"Arrival_Date": "2024-01-15",
			"Min_Price":    2100.0,
			"Max_Price":    2350.0,
			"Modal_Price":  2225.0,
		},
	}

	out := r.TransformPrices(rows)
	require.Len(t, out, 1)

	assert.Equal(t, "Gujarat", out[0]["state"])
	assert.Equal(t, "Anand", out[0]["district"])
	assert.Equal(t, "WHEAT", out[0]["commodity"])
	assert.Equal(t, 2350.0, out[0]["max_price"])
	assert.Equal(t, 2225.0, out[0]["modal_price"])
	assert.IsType(t, float64(0), out[0]["match_score"])

	// Market, grade, arrival date and min price are dropped by normalization.
	assert.NotContains(t, out[0], "Market")
	assert.NotContains(t, out[0], "min_price")
	assert.NotContains(t, out[0], "arrival_date")
}

func TestTransformPricesHandlesMissingColumns(t *testing.T) {
	r := resolve.NewResolver(vocabulary, 0)

	out := r.TransformPrices([]map[string]interface{}{{"state": "Punjab"}})
	require.Len(t, out, 1)
	assert.Equal(t, "Punjab", out[0]["state"])
	assert.Nil(t, out[0]["district"])
	assert.Contains(t, vocabulary, out[0]["commodity"])
}
