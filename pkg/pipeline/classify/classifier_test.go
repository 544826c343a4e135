package classify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/krishi/pkg/pipeline/classify"
	"github.com/tigerroll/krishi/pkg/pipeline/store"
)

func macroDescriptor() store.TableDescriptor {
	return store.TableDescriptor{
		Name: "macro_nutrients",
		Columns: []store.ColumnDescriptor{
			{Name: "id", DeclaredType: "INTEGER"},
			{Name: "block", DeclaredType: "TEXT"},
			{Name: "state", DeclaredType: "TEXT"},
			{Name: "district", DeclaredType: "TEXT"},
			{Name: "nitrogen_high", DeclaredType: "REAL"},
			{Name: "nitrogen_medium", DeclaredType: "REAL"},
			{Name: "nitrogen_low", DeclaredType: "REAL"},
			{Name: "ph_acidic", DeclaredType: "REAL"},
			{Name: "ph_neutral", DeclaredType: "REAL"},
			{Name: "ph_alkaline", DeclaredType: "REAL"},
		},
	}
}

func TestCandidateColumnsMatchByPrefix(t *testing.T) {
	desc := macroDescriptor()

	assert.Equal(t, []string{"nitrogen_high", "nitrogen_medium", "nitrogen_low"},
		classify.CandidateColumns(desc, "nitrogen"))
	assert.Equal(t, []string{"ph_acidic", "ph_neutral", "ph_alkaline"},
		classify.CandidateColumns(desc, "ph"))
	assert.Empty(t, classify.CandidateColumns(desc, "potassium"))
}

func TestClassifyRowPicksDominantLevel(t *testing.T) {
	candidates := []string{"nitrogen_high", "nitrogen_medium", "nitrogen_low"}

	row := map[string]interface{}{
		"nitrogen_high":   120.0,
		"nitrogen_medium": 431.5,
		"nitrogen_low":    88.0,
	}
	assert.Equal(t, "medium", classify.ClassifyRow("nitrogen", candidates, row))
}

func TestClassifyRowTieKeepsFirstCandidate(t *testing.T) {
	candidates := []string{"nitrogen_high", "nitrogen_medium", "nitrogen_low"}

	row := map[string]interface{}{
		"nitrogen_high":   50.0,
		"nitrogen_medium": 50.0,
		"nitrogen_low":    10.0,
	}
	assert.Equal(t, "high", classify.ClassifyRow("nitrogen", candidates, row))
}

func TestClassifyRowKeepsMultiWordLevels(t *testing.T) {
	candidates := []string{"ec_saline", "ec_non_saline"}

	row := map[string]interface{}{
		"ec_saline":     12.0,
		"ec_non_saline": 88.0,
	}
	assert.Equal(t, "non_saline", classify.ClassifyRow("ec", candidates, row))
}

func TestClassifyRowAllMissingIsUnknown(t *testing.T) {
	candidates := []string{"nitrogen_high", "nitrogen_medium", "nitrogen_low"}

	assert.Equal(t, classify.UnknownLabel, classify.ClassifyRow("nitrogen", candidates, map[string]interface{}{}))
	assert.Equal(t, classify.UnknownLabel, classify.ClassifyRow("nitrogen", candidates, map[string]interface{}{
		"nitrogen_high":   nil,
		"nitrogen_medium": nil,
		"nitrogen_low":    nil,
	}))
}

func TestClassifyRowCoercesDriverValues(t *testing.T) {
	candidates := []string{"ph_acidic", "ph_neutral", "ph_alkaline"}

	// sqlite's dynamic typing hands back a mix of representations.
	row := map[string]interface{}{
		"ph_acidic":   int64(3),
		"ph_neutral":  "17.5",
		"ph_alkaline": []byte("9"),
	}
	assert.Equal(t, "neutral", classify.ClassifyRow("ph", candidates, row))
}

func TestTransformBuildsCategoricalTable(t *testing.T) {
	classifier := classify.NewClassifier([]string{"id", "block", "state", "district"})
	rows := []map[string]interface{}{
		{
			"id": int64(1), "block": "Anand", "state": "Gujarat", "district": "Anand",
			"nitrogen_high": 10.0, "nitrogen_medium": 90.0, "nitrogen_low": 5.0,
			"ph_acidic": 70.0, "ph_neutral": 20.0, "ph_alkaline": 10.0,
		},
		{
			"id": int64(2), "block": "Bardoli", "state": "Gujarat", "district": "Surat",
			"nitrogen_high": nil, "nitrogen_medium": nil, "nitrogen_low": nil,
			"ph_acidic": 1.0, "ph_neutral": 2.0, "ph_alkaline": 3.0,
		},
	}

	desc, transformed := classifier.Transform(macroDescriptor(), rows, []string{"nitrogen", "ph"})

	assert.Equal(t, []string{"id", "block", "state", "district", "nitrogen", "ph"}, desc.ColumnNames())
	assert.Equal(t, "TEXT", desc.Columns[4].DeclaredType)
	require.Len(t, transformed, 2)

	assert.Equal(t, int64(1), transformed[0]["id"])
	assert.Equal(t, "Gujarat", transformed[0]["state"])
	assert.Equal(t, "medium", transformed[0]["nitrogen"])
	assert.Equal(t, "acidic", transformed[0]["ph"])

	assert.Equal(t, classify.UnknownLabel, transformed[1]["nitrogen"])
	assert.Equal(t, "alkaline", transformed[1]["ph"])
}

func TestTransformOmitsCategoriesWithoutColumns(t *testing.T) {
	classifier := classify.NewClassifier([]string{"id"})
	rows := []map[string]interface{}{
		{"id": int64(1), "nitrogen_high": 1.0, "nitrogen_low": 2.0},
	}

	desc, transformed := classifier.Transform(macroDescriptor(), rows, []string{"nitrogen", "potassium"})

	assert.Equal(t, []string{"id", "nitrogen"}, desc.ColumnNames())
	require.Len(t, transformed, 1)
	assert.NotContains(t, transformed[0], "potassium")
}

func TestTransformSkipsAbsentIdentityColumns(t *testing.T) {
	classifier := classify.NewClassifier([]string{"id", "village"})
	desc, _ := classifier.Transform(macroDescriptor(), nil, []string{"nitrogen"})

	assert.Equal(t, []string{"id", "nitrogen"}, desc.ColumnNames())
}
