// Package timeseries implements the multi-granularity weather merge:
// instantaneous, hourly and daily observations are aligned and aggregated
// into one enriched record per (location, day).
package timeseries

// DailyObservation is one row of the daily-granularity source table.
// The daily table is the backbone of the merge: it supplies the definitive
// set of (location_id, date) keys. Measurements are pointers because source
// rows carry NULLs; a missing reading stays missing instead of scanning to
// a fabricated zero.
type DailyObservation struct {
	LocationID       int64    `gorm:"column:location_id"`
	Date             string   `gorm:"column:date"`
	TemperatureMax   *float64 `gorm:"column:temperature_2m_max"`
	TemperatureMin   *float64 `gorm:"column:temperature_2m_min"`
	PrecipitationSum *float64 `gorm:"column:precipitation_sum"`
}

// HourlyObservation is one row of the hourly-granularity source table.
type HourlyObservation struct {
	LocationID  int64   `gorm:"column:location_id"`
	Timestamp   string  `gorm:"column:timestamp"`
	Temperature float64 `gorm:"column:temperature_2m"`
}

// CurrentObservation is one row of the instantaneous-granularity source
// table. Only the most recent reading per location contributes to the merge.
type CurrentObservation struct {
	LocationID  int64   `gorm:"column:location_id"`
	Timestamp   string  `gorm:"column:timestamp"`
	Temperature float64 `gorm:"column:temperature"`
	Humidity    float64 `gorm:"column:humidity"`
	WindSpeed   float64 `gorm:"column:wind_speed"`
}

// DailyWeather is one merged output record, functionally keyed by
// (LocationID, Date). Measurement fields are pointers: a NULL backbone
// reading and a missing hourly or instantaneous enrichment are both
// represented as a missing value, never as an error and never as a
// fabricated zero.
type DailyWeather struct {
	LocationID            int64
	Date                  string
	TemperatureMax        *float64
	TemperatureMin        *float64
	TemperatureAvg        *float64
	TemperatureRange      *float64
	PrecipitationSum      *float64
	HourlyTemperatureMean *float64
	LatestTemperature     *float64
	LatestHumidity        *float64
	LatestWindSpeed       *float64
}

// Row renders the record as a generic column map for the warehouse copy path.
func (w DailyWeather) Row() map[string]interface{} {
	row := map[string]interface{}{
		"location_id": w.LocationID,
		"date":        w.Date,
	}
	row["temperature_max"] = deref(w.TemperatureMax)
	row["temperature_min"] = deref(w.TemperatureMin)
	row["temperature_avg"] = deref(w.TemperatureAvg)
	row["temperature_range"] = deref(w.TemperatureRange)
	row["precipitation_sum"] = deref(w.PrecipitationSum)
	row["hourly_temperature_mean"] = deref(w.HourlyTemperatureMean)
	row["latest_temperature"] = deref(w.LatestTemperature)
	row["latest_humidity"] = deref(w.LatestHumidity)
	row["latest_wind_speed"] = deref(w.LatestWindSpeed)
	return row
}

func deref(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
