package consolidate_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tigerroll/krishi/pkg/pipeline/config"
	"github.com/tigerroll/krishi/pkg/pipeline/consolidate"
	"github.com/tigerroll/krishi/pkg/pipeline/metrics"
	"github.com/tigerroll/krishi/pkg/pipeline/store"
)

// seedDB creates a sqlite file and executes the given statements against it.
func seedDB(t *testing.T, path string, statements ...string) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	require.NoError(t, store.Close(db))
}

// setupSources seeds the three source stores and returns a pipeline
// configuration pointing at them.
func setupSources(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	soilPath := filepath.Join(dir, "soil_health.db")
	seedDB(t, soilPath,
		`CREATE TABLE macro_nutrients (
			id INTEGER, block TEXT, state TEXT, district TEXT,
			nitrogen_high REAL, nitrogen_medium REAL, nitrogen_low REAL,
			phosphorous_high REAL, phosphorous_medium REAL, phosphorous_low REAL,
			potassium_high REAL, potassium_medium REAL, potassium_low REAL,
			oc_high REAL, oc_medium REAL, oc_low REAL,
			ec_saline REAL, ec_non_saline REAL,
			ph_acidic REAL, ph_neutral REAL, ph_alkaline REAL
		)`,
		`INSERT INTO macro_nutrients VALUES
			(1, 'Anand', 'Gujarat', 'Anand',
			 10.0, 90.0, 5.0,  30.0, 50.0, 20.0,  40.0, 35.0, 25.0,
			 55.0, 30.0, 15.0,  10.0, 90.0,  70.0, 20.0, 10.0),
			(2, 'Bardoli', 'Gujarat', 'Surat',
			 60.0, 20.0, 5.0,  45.0, 30.0, 25.0,  20.0, 60.0, 20.0,
			 25.0, 50.0, 25.0,  80.0, 20.0,  5.0, 80.0, 15.0)`,
		`CREATE TABLE micro_nutrients (
			id INTEGER, block TEXT, state TEXT, district TEXT,
			copper_sufficient REAL, copper_deficient REAL
		)`,
		`INSERT INTO micro_nutrients VALUES (1, 'Anand', 'Gujarat', 'Anand', 80.0, 20.0)`,
	)

	marketPath := filepath.Join(dir, "market.db")
	seedDB(t, marketPath,
		`CREATE TABLE crop_prices (
			State TEXT, District TEXT, Market TEXT, Commodity TEXT, Variety TEXT,
			Grade TEXT, Arrival_Date TEXT, Min_Price REAL, Max_Price REAL, Modal_Price REAL
		)`,
		`INSERT INTO crop_prices VALUES
			('Gujarat', 'Anand', 'Anand Mandi', 'Wheat', '', 'FAQ', '2024-06-01', 2100, 2350, 2225),
			('Gujarat', 'Surat', 'Surat Mandi', 'Rice', '', 'FAQ', '2024-06-01', 2800, 3100, 2950)`,
	)

	weatherPath := filepath.Join(dir, "weather_data.db")
	seedDB(t, weatherPath,
		`CREATE TABLE location (id INTEGER, state TEXT, district TEXT)`,
		`INSERT INTO location VALUES (1, 'Gujarat', 'Anand'), (2, 'Gujarat', 'Surat')`,
		`CREATE TABLE daily_weather (
			location_id INTEGER, date DATE,
			temperature_2m_max REAL, temperature_2m_min REAL, precipitation_sum REAL
		)`,
		`INSERT INTO daily_weather VALUES (1, '2024-06-01', 38.0, 24.0, 2.5)`,
		`CREATE TABLE hourly_weather (location_id INTEGER, timestamp TEXT, temperature_2m REAL)`,
		`INSERT INTO hourly_weather VALUES (1, '2024-06-01 12:00:00', 34.0)`,
		`CREATE TABLE current_weather (
			location_id INTEGER, timestamp TEXT, temperature REAL, humidity REAL, wind_speed REAL
		)`,
		`INSERT INTO current_weather VALUES (1, '2024-06-01 15:00:00', 33.0, 55.0, 9.0)`,
	)

	irrigationPath := filepath.Join(dir, "irrigation.db")
	seedDB(t, irrigationPath,
		`CREATE TABLE irrigated_area (
			state TEXT, district TEXT, year INTEGER,
			total_irrigated_area REAL, irrigation_coverage_ratio REAL
		)`,
		`INSERT INTO irrigated_area VALUES
			('Gujarat', 'Anand', 2024, 1520.0, 0.64),
			('Gujarat', 'Surat', 2024, 980.0, 0.41)`,
	)

	cropPath := filepath.Join(dir, "crop.db")
	seedDB(t, cropPath,
		`CREATE TABLE crop_yields (
			state TEXT, district TEXT, crop TEXT, yield_per_hectare REAL
		)`,
		`INSERT INTO crop_yields VALUES
			('Gujarat', 'Anand', 'WHEAT', 3.1),
			('Gujarat', 'Surat', 'RICE', 2.4),
			('Punjab', 'Ludhiana', 'WHEAT', 4.2)`,
	)

	cfg := config.NewConfig()
	cfg.Krishi.Warehouse.Path = filepath.Join(dir, "WareHouse", "consolidated.db")
	cfg.Krishi.Resolver.Vocabulary = []string{"RICE", "WHEAT", "MAIZE", "POTATO"}
	cfg.Krishi.Sources = map[string]map[string]interface{}{
		"soil_health":  {"type": "sqlite", "database": soilPath},
		"market":       {"type": "sqlite", "database": marketPath},
		"weather_data": {"type": "sqlite", "database": weatherPath},
		"irrigation":   {"type": "sqlite", "database": irrigationPath},
		"crop":         {"type": "sqlite", "database": cropPath},
	}
	return cfg
}

func runConsolidation(t *testing.T, cfg *config.Config) *consolidate.Report {
	t.Helper()
	report, err := consolidate.NewConsolidator(cfg, metrics.NewNoopRecorder()).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)
	return report
}

func warehouseTableNames(t *testing.T, wh *gorm.DB) []string {
	t.Helper()
	descriptors, err := store.NewInspector().Tables(wh)
	require.NoError(t, err)
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.Name)
	}
	return names
}

func TestRunMaterializesRenamedAndTransformedTables(t *testing.T) {
	cfg := setupSources(t)
	report := runConsolidation(t, cfg)

	assert.Empty(t, report.Skips)
	assert.NotEmpty(t, report.RunID)

	wh, err := store.OpenWarehouse(cfg.Krishi.Warehouse.Path)
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close(wh)) }()

	assert.ElementsMatch(t, []string{
		"soil_health_macro_nutrient_levels",
		"soil_health_micro_nutrient_levels",
		"market_crop_prices",
		"weather_data_location",
		"weather_data_daily_summary",
		"irrigation_irrigated_area",
		"crop_crop_yields",
	}, warehouseTableNames(t, wh))
}

func TestRunClassifiesNutrients(t *testing.T) {
	cfg := setupSources(t)
	runConsolidation(t, cfg)

	wh, err := store.OpenWarehouse(cfg.Krishi.Warehouse.Path)
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close(wh)) }()

	var rows []map[string]interface{}
	require.NoError(t, wh.Table("soil_health_macro_nutrient_levels").Order("id").Find(&rows).Error)
	require.Len(t, rows, 2)

	assert.Equal(t, "medium", rows[0]["nitrogen"])
	assert.Equal(t, "acidic", rows[0]["ph"])
	assert.Equal(t, "non_saline", rows[0]["ec"])
	assert.Equal(t, "high", rows[1]["nitrogen"])
	assert.Equal(t, "neutral", rows[1]["ph"])
	assert.Equal(t, "saline", rows[1]["ec"])
	// Identity columns survive untouched.
	assert.Equal(t, "Anand", rows[0]["block"])
	assert.Equal(t, "Gujarat", rows[0]["state"])
}

func TestRunResolvesCommodities(t *testing.T) {
	cfg := setupSources(t)
	runConsolidation(t, cfg)

	wh, err := store.OpenWarehouse(cfg.Krishi.Warehouse.Path)
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close(wh)) }()

	var rows []map[string]interface{}
	require.NoError(t, wh.Table("market_crop_prices").Order("district").Find(&rows).Error)
	require.Len(t, rows, 2)

	assert.Equal(t, "WHEAT", rows[0]["commodity"])
	assert.Equal(t, "RICE", rows[1]["commodity"])
	assert.NotNil(t, rows[0]["match_score"])
	// The raw market and arrival date columns do not survive normalization.
	assert.NotContains(t, rows[0], "market")
	assert.NotContains(t, rows[0], "arrival_date")
}

func TestRunMergesWeather(t *testing.T) {
	cfg := setupSources(t)
	runConsolidation(t, cfg)

	wh, err := store.OpenWarehouse(cfg.Krishi.Warehouse.Path)
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close(wh)) }()

	var rows []map[string]interface{}
	require.NoError(t, wh.Table("weather_data_daily_summary").Find(&rows).Error)
	require.Len(t, rows, 1)

	assert.Equal(t, 31.0, rows[0]["temperature_avg"])
	assert.Equal(t, 14.0, rows[0]["temperature_range"])
	assert.Equal(t, 34.0, rows[0]["hourly_temperature_mean"])
	assert.Equal(t, 33.0, rows[0]["latest_temperature"])
}

func TestRunCreatesViews(t *testing.T) {
	cfg := setupSources(t)
	report := runConsolidation(t, cfg)

	require.Len(t, report.Views, 3)
	for _, view := range report.Views {
		assert.True(t, view.Created, "view %s", view.Name)
		assert.Greater(t, view.Rows, int64(0), "view %s", view.Name)
	}

	wh, err := store.OpenWarehouse(cfg.Krishi.Warehouse.Path)
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close(wh)) }()

	var priceSoil []map[string]interface{}
	require.NoError(t, wh.Table(consolidate.ViewCropPricesSoil).Find(&priceSoil).Error)
	require.NotEmpty(t, priceSoil)
	assert.Equal(t, "WHEAT", priceSoil[0]["commodity"])
	assert.NotNil(t, priceSoil[0]["nitrogen"])

	var irrigation []map[string]interface{}
	require.NoError(t, wh.Table(consolidate.ViewWeatherIrrigation).Find(&irrigation).Error)
	require.Len(t, irrigation, 1)
	assert.Equal(t, "Anand", irrigation[0]["district"])
	assert.Equal(t, 1520.0, irrigation[0]["total_irrigated_area"])
	assert.EqualValues(t, 2024, irrigation[0]["year"])

	var comprehensive []map[string]interface{}
	require.NoError(t, wh.Table(consolidate.ViewCropComprehensive).Find(&comprehensive).Error)
	require.NotEmpty(t, comprehensive)
}

func TestRunCropComprehensiveKeepsUnmatchedYields(t *testing.T) {
	cfg := setupSources(t)
	runConsolidation(t, cfg)

	wh, err := store.OpenWarehouse(cfg.Krishi.Warehouse.Path)
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close(wh)) }()

	var rows []map[string]interface{}
	require.NoError(t, wh.Table(consolidate.ViewCropComprehensive).Find(&rows).Error)
	require.Len(t, rows, 3)

	byDistrict := make(map[string]map[string]interface{}, len(rows))
	for _, row := range rows {
		byDistrict[row["district"].(string)] = row
	}

	anand := byDistrict["Anand"]
	require.NotNil(t, anand)
	assert.Equal(t, "WHEAT", anand["commodity"])
	assert.Equal(t, "medium", anand["nitrogen"])
	assert.NotNil(t, anand["temperature_avg"])

	// Surat has price and soil data but no weather rows.
	surat := byDistrict["Surat"]
	require.NotNil(t, surat)
	assert.Equal(t, "RICE", surat["commodity"])
	assert.Nil(t, surat["date"])

	// A yield row with no price, soil or weather match still appears.
	ludhiana := byDistrict["Ludhiana"]
	require.NotNil(t, ludhiana)
	assert.Equal(t, 4.2, ludhiana["yield_per_hectare"])
	assert.Nil(t, ludhiana["commodity"])
	assert.Nil(t, ludhiana["nitrogen"])
}

func TestRunAbortsWhenContextCancelled(t *testing.T) {
	cfg := setupSources(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := consolidate.NewConsolidator(cfg, metrics.NewNoopRecorder()).Run(ctx)
	require.Error(t, err)
	assert.Nil(t, report)
}

func TestRunSkipsUnreachableStore(t *testing.T) {
	cfg := setupSources(t)
	cfg.Krishi.Sources["farmer"] = map[string]interface{}{
		"type":     "sqlite",
		"database": filepath.Join(t.TempDir(), "absent.db"),
	}

	report := runConsolidation(t, cfg)

	require.Len(t, report.Skips, 1)
	assert.Equal(t, "farmer", report.Skips[0].Source)
	assert.Empty(t, report.Skips[0].Table)
	assert.Error(t, report.Warnings())

	// The reachable stores consolidated regardless.
	wh, err := store.OpenWarehouse(cfg.Krishi.Warehouse.Path)
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close(wh)) }()
	assert.Contains(t, warehouseTableNames(t, wh), "market_crop_prices")
}

func TestRunSkipsMisconfiguredStore(t *testing.T) {
	cfg := setupSources(t)
	cfg.Krishi.Sources["farmer"] = map[string]interface{}{
		"type": "sqlite",
		"port": "not-a-number",
	}

	report := runConsolidation(t, cfg)

	require.Len(t, report.Skips, 1)
	assert.Equal(t, "farmer", report.Skips[0].Source)
	assert.Error(t, report.Warnings())
}

func TestRunIsRepeatable(t *testing.T) {
	cfg := setupSources(t)

	first := runConsolidation(t, cfg)
	second := runConsolidation(t, cfg)

	require.Len(t, second.Tables, len(first.Tables))
	assert.Equal(t, first.TotalRows(), second.TotalRows())

	wh, err := store.OpenWarehouse(cfg.Krishi.Warehouse.Path)
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close(wh)) }()

	var count int64
	require.NoError(t, wh.Table("market_crop_prices").Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestWarehouseTableNameIsPrefixInjective(t *testing.T) {
	a := consolidate.WarehouseTableName("soil_health", "macro_nutrients")
	b := consolidate.WarehouseTableName("market", "macro_nutrients")
	assert.NotEqual(t, a, b)
	assert.Equal(t, "soil_health_macro_nutrients", a)
}

func TestReportRenderSummarizesRun(t *testing.T) {
	cfg := setupSources(t)
	report := runConsolidation(t, cfg)

	rendered := report.Render()
	assert.Contains(t, rendered, report.RunID)
	assert.Contains(t, rendered, "market_crop_prices")
	assert.Contains(t, rendered, consolidate.ViewCropPricesSoil)
}
