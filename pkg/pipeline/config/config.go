// Package config provides structures and utilities for managing the
// pipeline's configuration, loaded from YAML with environment variable
// expansion and sensible defaults.
package config

// EmbeddedConfig holds the content of the configuration file, typically
// passed from main.go via go:embed.
type EmbeddedConfig []byte

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// WarehouseConfig describes the consolidation target.
// The warehouse is always a local sqlite store, deleted and recreated on
// every run.
type WarehouseConfig struct {
	// Path is the filesystem path of the warehouse sqlite file.
	Path string `yaml:"path"`
	// BatchSize is the number of rows inserted per batch during table copies.
	BatchSize int `yaml:"batch_size"`
}

// CategoryGroupConfig configures one categorical-classification pass
// (macro or micro nutrients) over a single source table.
type CategoryGroupConfig struct {
	// Table is the source table holding per-level indicator columns.
	Table string `yaml:"table"`
	// OutputTable is the warehouse table name (before the logical-name prefix
	// is applied) that receives the classified rows.
	OutputTable string `yaml:"output_table"`
	// Categories is the ordered list of nutrient category prefixes
	// (e.g. "nitrogen" matches nitrogen_low / nitrogen_medium / nitrogen_high).
	Categories []string `yaml:"categories"`
}

// ClassifierConfig configures the categorical classifier (soil nutrients).
type ClassifierConfig struct {
	// Source is the logical name of the source store holding nutrient tables.
	Source string `yaml:"source"`
	// IdentityColumns are carried through unchanged alongside derived labels.
	IdentityColumns []string `yaml:"identity_columns"`
	// Macro configures the macro-nutrient pass.
	Macro CategoryGroupConfig `yaml:"macro"`
	// Micro configures the micro-nutrient pass.
	Micro CategoryGroupConfig `yaml:"micro"`
}

// ResolverConfig configures the commodity resolver (crop prices).
type ResolverConfig struct {
	// Source is the logical name of the source store holding the price table.
	Source string `yaml:"source"`
	// Table is the raw crop price table.
	Table string `yaml:"table"`
	// Vocabulary is the controlled list of canonical commodity labels.
	Vocabulary []string `yaml:"vocabulary"`
	// MinSimilarity is the similarity score below which the best match is
	// rejected in favor of the sentinel label "UNKNOWN". Zero accepts every
	// best-effort match, mirroring the observed upstream behavior.
	MinSimilarity float64 `yaml:"min_similarity"`
}

// WeatherConfig configures the time-series merger.
type WeatherConfig struct {
	// Source is the logical name of the weather source store.
	Source string `yaml:"source"`
	// DailyTable is the daily-granularity backbone table.
	DailyTable string `yaml:"daily_table"`
	// HourlyTable is the hourly-granularity table.
	HourlyTable string `yaml:"hourly_table"`
	// CurrentTable is the instantaneous-granularity table.
	CurrentTable string `yaml:"current_table"`
	// LocationTable is the dimension table the granularity tables reference
	// through location_id. It is copied verbatim so views can join on it.
	LocationTable string `yaml:"location_table"`
	// OutputTable is the merged per-location-per-day output table
	// (before the logical-name prefix is applied).
	OutputTable string `yaml:"output_table"`
}

// IrrigationConfig names the irrigation-coverage source whose table is
// joined with the merged weather summary in the weather view.
type IrrigationConfig struct {
	// Source is the logical name of the irrigation source store.
	Source string `yaml:"source"`
	// Table is the per-area irrigation coverage table.
	Table string `yaml:"table"`
}

// CropConfig names the crop yield source anchoring the comprehensive view.
type CropConfig struct {
	// Source is the logical name of the crop yield source store.
	Source string `yaml:"source"`
	// Table is the per-area crop yield table.
	Table string `yaml:"table"`
}

// ExportConfig configures the optional parquet export of warehouse tables.
type ExportConfig struct {
	// Enabled turns the export pass on.
	Enabled bool `yaml:"enabled"`
	// Directory is the local directory receiving one parquet file per table.
	Directory string `yaml:"directory"`
	// Compression is the parquet compression codec ("SNAPPY", "GZIP", "NONE").
	Compression string `yaml:"compression"`
}

// KrishiConfig holds all configuration under the "krishi" top-level key.
type KrishiConfig struct {
	// System contains system-wide configurations.
	System SystemConfig `yaml:"system"`
	// Warehouse describes the consolidation target.
	Warehouse WarehouseConfig `yaml:"warehouse"`
	// Sources maps logical source-store names to raw connection settings.
	// Each value is decoded into a store.DatabaseConfig at open time.
	Sources map[string]map[string]interface{} `yaml:"sources"`
	// Classifier configures the soil nutrient classification pass.
	Classifier ClassifierConfig `yaml:"classifier"`
	// Resolver configures the commodity resolution pass.
	Resolver ResolverConfig `yaml:"resolver"`
	// Weather configures the weather merge pass.
	Weather WeatherConfig `yaml:"weather"`
	// Irrigation names the irrigation table joined into the weather view.
	Irrigation IrrigationConfig `yaml:"irrigation"`
	// Crop names the crop yield table anchoring the comprehensive view.
	Crop CropConfig `yaml:"crop"`
	// Export configures the optional parquet export pass.
	Export ExportConfig `yaml:"export"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	// Krishi contains the top-level configuration for the pipeline.
	Krishi KrishiConfig `yaml:"krishi"`
}

// NewConfig returns a new Config populated with default values.
// YAML and environment overrides are merged on top of these defaults.
func NewConfig() *Config {
	return &Config{
		Krishi: KrishiConfig{
			System: SystemConfig{
				Logging: LoggingConfig{Level: "INFO"},
			},
			Warehouse: WarehouseConfig{
				Path:      "WareHouse/consolidated.db",
				BatchSize: 500,
			},
			Classifier: ClassifierConfig{
				Source:          "soil_health",
				IdentityColumns: []string{"id", "block", "state", "district"},
				Macro: CategoryGroupConfig{
					Table:       "macro_nutrients",
					OutputTable: "macro_nutrient_levels",
					Categories:  []string{"nitrogen", "phosphorous", "potassium", "oc", "ec", "ph"},
				},
				Micro: CategoryGroupConfig{
					Table:       "micro_nutrients",
					OutputTable: "micro_nutrient_levels",
					Categories:  []string{"copper", "boron", "sulphur", "iron", "zinc", "manganese"},
				},
			},
			Resolver: ResolverConfig{
				Source:        "market",
				Table:         "crop_prices",
				MinSimilarity: 0,
			},
			Weather: WeatherConfig{
				Source:        "weather_data",
				DailyTable:    "daily_weather",
				HourlyTable:   "hourly_weather",
				CurrentTable:  "current_weather",
				LocationTable: "location",
				OutputTable:   "daily_summary",
			},
			Irrigation: IrrigationConfig{
				Source: "irrigation",
				Table:  "irrigated_area",
			},
			Crop: CropConfig{
				Source: "crop",
				Table:  "crop_yields",
			},
			Export: ExportConfig{
				Enabled:     false,
				Directory:   "WareHouse/export",
				Compression: "SNAPPY",
			},
		},
	}
}
