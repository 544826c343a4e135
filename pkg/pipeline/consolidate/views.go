package consolidate

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/tigerroll/krishi/pkg/pipeline/config"
	"github.com/tigerroll/krishi/pkg/pipeline/support/exception"
	"github.com/tigerroll/krishi/pkg/pipeline/support/logger"
)

// View names synthesized on top of the consolidated warehouse.
const (
	ViewCropPricesSoil    = "v_crop_prices_soil"
	ViewWeatherIrrigation = "v_weather_irrigation"
	ViewCropComprehensive = "v_crop_comprehensive"
)

// ViewBuilder synthesizes the cross-domain views over the warehouse tables.
// Each view is created independently so that one missing underlying table
// does not prevent the remaining views from materializing.
type ViewBuilder struct {
	prices     string
	macro      string
	summary    string
	location   string
	irrigation string
	yields     string
}

// NewViewBuilder derives the underlying warehouse table names from the
// pipeline configuration.
func NewViewBuilder(cfg *config.Config) *ViewBuilder {
	k := cfg.Krishi
	return &ViewBuilder{
		prices:     WarehouseTableName(k.Resolver.Source, k.Resolver.Table),
		macro:      WarehouseTableName(k.Classifier.Source, k.Classifier.Macro.OutputTable),
		summary:    WarehouseTableName(k.Weather.Source, k.Weather.OutputTable),
		location:   WarehouseTableName(k.Weather.Source, k.Weather.LocationTable),
		irrigation: WarehouseTableName(k.Irrigation.Source, k.Irrigation.Table),
		yields:     WarehouseTableName(k.Crop.Source, k.Crop.Table),
	}
}

// Build creates every view, dropping a stale definition first. Failures are
// reported per view and never abort the remaining creations.
func (b *ViewBuilder) Build(wh *gorm.DB) []ViewResult {
	definitions := []struct {
		name string
		ddl  string
	}{
		{ViewCropPricesSoil, b.cropPricesSoilDDL()},
		{ViewWeatherIrrigation, b.weatherIrrigationDDL()},
		{ViewCropComprehensive, b.cropComprehensiveDDL()},
	}

	results := make([]ViewResult, 0, len(definitions))
	for _, def := range definitions {
		if err := b.create(wh, def.name, def.ddl); err != nil {
			logger.Warnf("view '%s' could not be created: %v", def.name, err)
			results = append(results, ViewResult{Name: def.name, Created: false, Err: err})
			continue
		}
		rows := b.countRows(wh, def.name)
		logger.Infof("view '%s' created (%d rows).", def.name, rows)
		results = append(results, ViewResult{Name: def.name, Created: true, Rows: rows})
	}
	return results
}

// countRows reports how many rows a freshly created view yields. A counting
// failure is not a view failure; the count just stays zero.
func (b *ViewBuilder) countRows(wh *gorm.DB, view string) int64 {
	var rows int64
	if err := wh.Table(view).Count(&rows).Error; err != nil {
		logger.Warnf("could not count rows of view '%s': %v", view, err)
		return 0
	}
	return rows
}

func (b *ViewBuilder) create(wh *gorm.DB, name, ddl string) error {
	if err := wh.Exec(fmt.Sprintf(`DROP VIEW IF EXISTS %s`, quote(name))).Error; err != nil {
		return exception.NewPipelineErrorf(moduleName,
			fmt.Errorf("%w: %v", exception.ErrViewCreationFailed, err),
			"failed to drop stale view '%s'", name)
	}
	if err := wh.Exec(ddl).Error; err != nil {
		return exception.NewPipelineErrorf(moduleName,
			fmt.Errorf("%w: %v", exception.ErrViewCreationFailed, err),
			"failed to create view '%s'", name)
	}
	return nil
}

// cropPricesSoilDDL joins resolved crop prices with macro nutrient levels of
// the same administrative area. The join is case-insensitive because source
// stores disagree on the casing of state and district names.
func (b *ViewBuilder) cropPricesSoilDDL() string {
	return fmt.Sprintf(`CREATE VIEW %s AS
SELECT p.state, p.district, p.commodity, p.max_price, p.modal_price, p.match_score,
       m.nitrogen, m.phosphorous, m.potassium, m.oc, m.ec, m.ph
FROM %s AS p
JOIN %s AS m
  ON LOWER(p.state) = LOWER(m.state) AND LOWER(p.district) = LOWER(m.district)`,
		quote(ViewCropPricesSoil), quote(b.prices), quote(b.macro))
}

// weatherIrrigationDDL joins the merged weather summary, resolved to
// administrative areas through the location dimension table, with the
// irrigation coverage of the same area.
func (b *ViewBuilder) weatherIrrigationDDL() string {
	return fmt.Sprintf(`CREATE VIEW %s AS
SELECT l.state, l.district, w.date,
       w.temperature_max, w.temperature_min, w.temperature_avg, w.temperature_range,
       w.precipitation_sum, w.hourly_temperature_mean,
       w.latest_temperature, w.latest_humidity, w.latest_wind_speed,
       i.year, i.total_irrigated_area, i.irrigation_coverage_ratio
FROM %s AS w
JOIN %s AS l ON w.location_id = l.id
JOIN %s AS i
  ON LOWER(l.state) = LOWER(i.state) AND LOWER(l.district) = LOWER(i.district)`,
		quote(ViewWeatherIrrigation), quote(b.summary), quote(b.location), quote(b.irrigation))
}

// cropComprehensiveDDL enriches crop yields with prices, soil nutrient levels
// and weather of the same administrative area. Yields are the backbone: a
// yield row without a matching price, soil or weather row keeps its place
// with missing enrichment columns instead of being dropped.
func (b *ViewBuilder) cropComprehensiveDDL() string {
	return fmt.Sprintf(`CREATE VIEW %s AS
SELECT c.state, c.district, c.crop, c.yield_per_hectare,
       p.commodity, p.modal_price, p.max_price,
       m.nitrogen, m.phosphorous, m.potassium, m.oc, m.ec, m.ph,
       w.date, w.temperature_avg, w.temperature_range, w.precipitation_sum
FROM %s AS c
LEFT JOIN %s AS p
  ON LOWER(c.state) = LOWER(p.state) AND LOWER(c.district) = LOWER(p.district)
LEFT JOIN %s AS m
  ON LOWER(c.state) = LOWER(m.state) AND LOWER(c.district) = LOWER(m.district)
LEFT JOIN %s AS l
  ON LOWER(c.state) = LOWER(l.state) AND LOWER(c.district) = LOWER(l.district)
LEFT JOIN %s AS w ON w.location_id = l.id`,
		quote(ViewCropComprehensive), quote(b.yields), quote(b.prices), quote(b.macro),
		quote(b.location), quote(b.summary))
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
