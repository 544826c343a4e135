package timeseries

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tigerroll/krishi/pkg/pipeline/store"
	"github.com/tigerroll/krishi/pkg/pipeline/support/exception"
	"github.com/tigerroll/krishi/pkg/pipeline/support/logger"
)

const moduleName = "merger"

// timestampLayouts are the textual timestamp forms observed across source
// stores; the first successful parse wins.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// Tables names the three granularity tables participating in one merge.
type Tables struct {
	Daily   string
	Hourly  string
	Current string
}

// Merger aligns weather observations recorded at different temporal
// granularities into one per-location-per-day record.
type Merger struct{}

// NewMerger creates a new Merger.
func NewMerger() *Merger {
	return &Merger{}
}

// OutputDescriptor is the structure of the merged weather table. A sqlite
// rowid serves as the auto-assigned row key; the functional key is
// (location_id, date).
func OutputDescriptor(table string) store.TableDescriptor {
	return store.TableDescriptor{
		Name: table,
		Columns: []store.ColumnDescriptor{
			{Name: "location_id", DeclaredType: "INTEGER"},
			{Name: "date", DeclaredType: "DATE"},
			{Name: "temperature_max", DeclaredType: "REAL"},
			{Name: "temperature_min", DeclaredType: "REAL"},
			{Name: "temperature_avg", DeclaredType: "REAL"},
			{Name: "temperature_range", DeclaredType: "REAL"},
			{Name: "precipitation_sum", DeclaredType: "REAL"},
			{Name: "hourly_temperature_mean", DeclaredType: "REAL"},
			{Name: "latest_temperature", DeclaredType: "REAL"},
			{Name: "latest_humidity", DeclaredType: "REAL"},
			{Name: "latest_wind_speed", DeclaredType: "REAL"},
		},
	}
}

// Merge builds the enriched per-day weather records from the three
// granularity tables of one source store:
//
//  1. daily rows contribute the backbone keys plus the derived
//     temperature_avg ((max+min)/2) and temperature_range (max-min); a NULL
//     daily temperature leaves both derived columns missing;
//  2. hourly temperatures are averaged per (location_id, date) and
//     left-joined onto the backbone;
//  3. the most recent instantaneous reading per location is broadcast,
//     deliberately not date-scoped, across all of that location's days.
//
// Rows without matching hourly or instantaneous data keep missing values for
// the enrichment columns.
func (m *Merger) Merge(db *gorm.DB, tables Tables) ([]DailyWeather, error) {
	var daily []DailyObservation
	if err := db.Table(tables.Daily).Order("location_id, date").Find(&daily).Error; err != nil {
		return nil, exception.NewPipelineErrorf(moduleName,
			fmt.Errorf("%w: %v", exception.ErrSchemaUnavailable, err),
			"failed to read daily table '%s'", tables.Daily)
	}

	hourlyMeans, err := m.hourlyDailyMeans(db, tables.Hourly)
	if err != nil {
		return nil, err
	}

	latest, err := m.latestReadings(db, tables.Current)
	if err != nil {
		return nil, err
	}

	merged := make([]DailyWeather, 0, len(daily))
	for _, d := range daily {
		record := DailyWeather{
			LocationID:       d.LocationID,
			Date:             dateOnly(d.Date),
			TemperatureMax:   d.TemperatureMax,
			TemperatureMin:   d.TemperatureMin,
			PrecipitationSum: d.PrecipitationSum,
		}
		// Derived columns stay missing when either backbone temperature is NULL.
		if d.TemperatureMax != nil && d.TemperatureMin != nil {
			avg := (*d.TemperatureMax + *d.TemperatureMin) / 2
			span := *d.TemperatureMax - *d.TemperatureMin
			record.TemperatureAvg = &avg
			record.TemperatureRange = &span
		}
		if mean, ok := hourlyMeans[dayKey{d.LocationID, record.Date}]; ok {
			record.HourlyTemperatureMean = &mean
		}
		if snapshot, ok := latest[d.LocationID]; ok {
			record.LatestTemperature = &snapshot.Temperature
			record.LatestHumidity = &snapshot.Humidity
			record.LatestWindSpeed = &snapshot.WindSpeed
		}
		merged = append(merged, record)
	}

	logger.Infof("%s: merged %d daily records (%d hourly groups, %d latest snapshots)",
		moduleName, len(merged), len(hourlyMeans), len(latest))
	return merged, nil
}

// dayKey identifies one (location, calendar day) group.
type dayKey struct {
	LocationID int64
	Date       string
}

// hourlyDailyMeans derives the calendar date from every hourly timestamp and
// computes the mean temperature per (location_id, date).
func (m *Merger) hourlyDailyMeans(db *gorm.DB, table string) (map[dayKey]float64, error) {
	var hourly []HourlyObservation
	if err := db.Table(table).Find(&hourly).Error; err != nil {
		return nil, exception.NewPipelineErrorf(moduleName,
			fmt.Errorf("%w: %v", exception.ErrSchemaUnavailable, err),
			"failed to read hourly table '%s'", table)
	}

	sums := make(map[dayKey]float64)
	counts := make(map[dayKey]int)
	for _, h := range hourly {
		date := dateOnly(h.Timestamp)
		if date == "" {
			logger.Warnf("%s: skipping hourly reading with unparseable timestamp %q", moduleName, h.Timestamp)
			continue
		}
		key := dayKey{h.LocationID, date}
		sums[key] += h.Temperature
		counts[key]++
	}

	means := make(map[dayKey]float64, len(sums))
	for key, sum := range sums {
		means[key] = sum / float64(counts[key])
	}
	return means, nil
}

// latestReadings groups the instantaneous table by location and keeps the
// most-recently-timestamped reading per location.
func (m *Merger) latestReadings(db *gorm.DB, table string) (map[int64]CurrentObservation, error) {
	var current []CurrentObservation
	if err := db.Table(table).Find(&current).Error; err != nil {
		return nil, exception.NewPipelineErrorf(moduleName,
			fmt.Errorf("%w: %v", exception.ErrSchemaUnavailable, err),
			"failed to read instantaneous table '%s'", table)
	}

	// Sort ascending so the last write per location is the newest reading.
	sort.SliceStable(current, func(i, j int) bool {
		return parseTimestamp(current[i].Timestamp).Before(parseTimestamp(current[j].Timestamp))
	})

	latest := make(map[int64]CurrentObservation)
	for _, c := range current {
		latest[c.LocationID] = c
	}
	return latest, nil
}

// dateOnly reduces a timestamp or date string to its calendar date.
// Returns "" when the value cannot be interpreted.
func dateOnly(value string) string {
	value = strings.TrimSpace(value)
	if len(value) >= 10 {
		candidate := value[:10]
		if _, err := time.Parse("2006-01-02", candidate); err == nil {
			return candidate
		}
	}
	if ts := parseTimestamp(value); !ts.IsZero() {
		return ts.Format("2006-01-02")
	}
	return ""
}

// parseTimestamp tries the known textual timestamp forms; a zero time means
// no layout matched.
func parseTimestamp(value string) time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}
