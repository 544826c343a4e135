// Package consolidate implements the warehouse consolidation run: it rebuilds
// the warehouse file from scratch, copies every reachable source table under a
// prefixed name, applies the domain transformations (nutrient classification,
// commodity resolution, weather merging) and synthesizes the cross-domain
// views. Per-item failures are skipped and reported; only warehouse-level
// failures abort the run.
package consolidate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/tigerroll/krishi/pkg/pipeline/classify"
	"github.com/tigerroll/krishi/pkg/pipeline/config"
	"github.com/tigerroll/krishi/pkg/pipeline/metrics"
	"github.com/tigerroll/krishi/pkg/pipeline/resolve"
	"github.com/tigerroll/krishi/pkg/pipeline/store"
	"github.com/tigerroll/krishi/pkg/pipeline/support/exception"
	"github.com/tigerroll/krishi/pkg/pipeline/support/logger"
	"github.com/tigerroll/krishi/pkg/pipeline/timeseries"
)

const moduleName = "consolidate"

// WarehouseTableName derives the warehouse name of a source table. Prefixing
// with the logical store name keeps names unique across stores that declare
// identically named tables.
func WarehouseTableName(source, table string) string {
	return source + "_" + table
}

// Consolidator drives a full consolidation run over the configured source
// stores.
type Consolidator struct {
	cfg        *config.Config
	inspector  *store.Inspector
	classifier *classify.Classifier
	resolver   *resolve.Resolver
	merger     *timeseries.Merger
	views      *ViewBuilder
	recorder   metrics.Recorder
}

// NewConsolidator creates a Consolidator wired from the pipeline
// configuration.
func NewConsolidator(cfg *config.Config, recorder metrics.Recorder) *Consolidator {
	k := cfg.Krishi
	return &Consolidator{
		cfg:        cfg,
		inspector:  store.NewInspector(),
		classifier: classify.NewClassifier(k.Classifier.IdentityColumns),
		resolver:   resolve.NewResolver(k.Resolver.Vocabulary, k.Resolver.MinSimilarity),
		merger:     timeseries.NewMerger(),
		views:      NewViewBuilder(cfg),
		recorder:   recorder,
	}
}

// Run executes one consolidation run and returns its report. The warehouse is
// rebuilt from scratch; a pre-existing warehouse file is deleted first, so a
// rerun against unchanged sources produces an identical warehouse. Skippable
// per-source and per-table failures surface through the report; warehouse
// failures, non-skippable errors and a cancelled context abort the run.
func (c *Consolidator) Run(ctx context.Context) (*Report, error) {
	report := NewReport()
	c.recorder.RecordRunStart(report.RunID)
	logger.Infof("%s: starting consolidation run %s", moduleName, report.RunID)

	wh, err := c.resetWarehouse()
	if err != nil {
		c.recorder.RecordRunEnd(report.RunID, time.Since(report.StartedAt), false)
		return nil, err
	}
	defer func() {
		if closeErr := store.Close(wh); closeErr != nil {
			logger.Warnf("%s: failed to close warehouse: %v", moduleName, closeErr)
		}
	}()

	names := make([]string, 0, len(c.cfg.Krishi.Sources))
	for name := range c.cfg.Krishi.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := c.consolidateSource(ctx, wh, name, c.cfg.Krishi.Sources[name], report); err != nil {
			c.recorder.RecordRunEnd(report.RunID, time.Since(report.StartedAt), false)
			return nil, err
		}
	}

	for _, view := range c.views.Build(wh.WithContext(ctx)) {
		report.AddView(view)
		if view.Created {
			c.recorder.RecordViewCreated(view.Name)
		} else {
			c.recorder.RecordViewFailed(view.Name)
		}
	}

	report.Duration = time.Since(report.StartedAt)
	c.recorder.RecordRunEnd(report.RunID, report.Duration, true)
	logger.Infof("%s", report.Render())
	return report, nil
}

// resetWarehouse deletes a stale warehouse file and opens a fresh one,
// creating the parent directory when necessary. Failures here are fatal: there
// is no run without a warehouse.
func (c *Consolidator) resetWarehouse() (*gorm.DB, error) {
	path := c.cfg.Krishi.Warehouse.Path
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, exception.NewPipelineError(moduleName,
			fmt.Sprintf("failed to remove stale warehouse '%s'", path), err, false)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, exception.NewPipelineError(moduleName,
				fmt.Sprintf("failed to create warehouse directory '%s'", dir), err, false)
		}
	}
	return store.OpenWarehouse(path)
}

// consolidateSource copies one source store into the warehouse. An
// unreachable or unenumerable store skips the whole store; a failing table
// skips only that table. Either way the run continues. Only a non-skippable
// failure or a cancelled context is returned, aborting the run.
func (c *Consolidator) consolidateSource(ctx context.Context, wh *gorm.DB, name string, raw map[string]interface{}, report *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dbCfg, err := store.DecodeConfig(raw)
	if err != nil {
		// A malformed source entry skips that store, not the run.
		return c.skipStore(name, exception.NewPipelineErrorf(moduleName,
			fmt.Errorf("%w: %v", exception.ErrSchemaUnavailable, err),
			"invalid configuration for source '%s'", name), report)
	}
	db, err := store.Open(name, dbCfg)
	if err != nil {
		return c.skipStore(name, err, report)
	}
	defer func() {
		if closeErr := store.Close(db); closeErr != nil {
			logger.Warnf("%s: failed to close source '%s': %v", moduleName, name, closeErr)
		}
	}()

	src := db.WithContext(ctx)
	descriptors, err := c.inspector.Tables(src)
	if err != nil {
		return c.skipStore(name, err, report)
	}
	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].Name < descriptors[j].Name })

	logger.Infof("%s: source '%s' exposes %d tables", moduleName, name, len(descriptors))
	for _, desc := range descriptors {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.isWeatherInput(name, desc.Name) {
			continue
		}
		if err := c.consolidateTable(src, wh, name, desc, report); err != nil {
			if !exception.IsSkippable(err) {
				return err
			}
			logger.Warnf("%s: skipping table '%s.%s': %v", moduleName, name, desc.Name, err)
			report.AddSkip(SkipResult{Source: name, Table: desc.Name, Reason: err.Error()}, err)
			c.recorder.RecordTableSkipped(name, desc.Name, skipReason(err))
		}
	}

	if name == c.cfg.Krishi.Weather.Source {
		if err := c.mergeWeather(src, wh, name, report); err != nil {
			if !exception.IsSkippable(err) {
				return err
			}
			logger.Warnf("%s: skipping weather merge for '%s': %v", moduleName, name, err)
			report.AddSkip(SkipResult{Source: name, Table: c.cfg.Krishi.Weather.DailyTable, Reason: err.Error()}, err)
			c.recorder.RecordTableSkipped(name, c.cfg.Krishi.Weather.DailyTable, "merge_failed")
		}
	}
	return nil
}

// skipStore accounts a whole-store skip. A non-skippable failure is returned
// unrecorded so the caller aborts the run instead.
func (c *Consolidator) skipStore(name string, err error, report *Report) error {
	if !exception.IsSkippable(err) {
		return err
	}
	logger.Warnf("%s: skipping source '%s' entirely: %v", moduleName, name, err)
	report.AddSkip(SkipResult{Source: name, Reason: err.Error()}, err)
	c.recorder.RecordTableSkipped(name, "", skipReason(err))
	return nil
}

// isWeatherInput reports whether a table is one of the weather granularity
// tables consumed by the merger. They are superseded by the merged summary
// and not copied verbatim.
func (c *Consolidator) isWeatherInput(source, table string) bool {
	w := c.cfg.Krishi.Weather
	if source != w.Source {
		return false
	}
	return table == w.DailyTable || table == w.HourlyTable || table == w.CurrentTable
}

// consolidateTable materializes one source table into the warehouse, applying
// the configured transformation when the table is a classifier or resolver
// input and copying it verbatim otherwise.
func (c *Consolidator) consolidateTable(src, wh *gorm.DB, source string, desc store.TableDescriptor, report *Report) error {
	rows, err := c.readRows(src, source, desc.Name)
	if err != nil {
		return err
	}

	k := c.cfg.Krishi
	switch {
	case source == k.Classifier.Source && desc.Name == k.Classifier.Macro.Table:
		outDesc, outRows := c.classifier.Transform(desc, rows, k.Classifier.Macro.Categories)
		return c.materialize(wh, source, desc.Name, WarehouseTableName(source, k.Classifier.Macro.OutputTable), outDesc, outRows, true, report)
	case source == k.Classifier.Source && desc.Name == k.Classifier.Micro.Table:
		outDesc, outRows := c.classifier.Transform(desc, rows, k.Classifier.Micro.Categories)
		return c.materialize(wh, source, desc.Name, WarehouseTableName(source, k.Classifier.Micro.OutputTable), outDesc, outRows, true, report)
	case source == k.Resolver.Source && desc.Name == k.Resolver.Table:
		target := WarehouseTableName(source, desc.Name)
		outDesc := resolve.PriceOutputDescriptor(target)
		outRows := c.resolver.TransformPrices(rows)
		return c.materialize(wh, source, desc.Name, target, outDesc, outRows, true, report)
	default:
		return c.materialize(wh, source, desc.Name, WarehouseTableName(source, desc.Name), desc, rows, false, report)
	}
}

// mergeWeather builds the per-location-per-day weather summary from the
// granularity tables of the weather store and materializes it.
func (c *Consolidator) mergeWeather(src, wh *gorm.DB, source string, report *Report) error {
	w := c.cfg.Krishi.Weather
	records, err := c.merger.Merge(src, timeseries.Tables{
		Daily:   w.DailyTable,
		Hourly:  w.HourlyTable,
		Current: w.CurrentTable,
	})
	if err != nil {
		return copyError(err, "failed to merge weather tables of source '%s'", source)
	}

	rows := make([]map[string]interface{}, len(records))
	for i, record := range records {
		rows[i] = record.Row()
	}
	target := WarehouseTableName(source, w.OutputTable)
	return c.materialize(wh, source, w.DailyTable, target, timeseries.OutputDescriptor(w.OutputTable), rows, true, report)
}

// readRows loads every row of a source table as generic column-to-value maps.
func (c *Consolidator) readRows(src *gorm.DB, source, table string) ([]map[string]interface{}, error) {
	var rows []map[string]interface{}
	if err := src.Table(table).Find(&rows).Error; err != nil {
		return nil, copyError(err, "failed to read rows of '%s.%s'", source, table)
	}
	return rows, nil
}

// materialize recreates a table structure in the warehouse and inserts its
// rows in configured-size batches.
func (c *Consolidator) materialize(wh *gorm.DB, source, sourceTable, target string, desc store.TableDescriptor, rows []map[string]interface{}, transformed bool, report *Report) error {
	if err := wh.Exec(desc.CreateDDL(target)).Error; err != nil {
		return copyError(err, "failed to create warehouse table '%s'", target)
	}

	if len(rows) > 0 {
		if err := wh.Table(target).CreateInBatches(rows, c.cfg.Krishi.Warehouse.BatchSize).Error; err != nil {
			return copyError(err, "failed to insert rows into warehouse table '%s'", target)
		}
	}

	result := TableResult{
		Source:         source,
		SourceTable:    sourceTable,
		WarehouseTable: target,
		Rows:           int64(len(rows)),
		Transformed:    transformed,
	}
	report.AddTable(result)
	c.recorder.RecordTableCopied(source, target, result.Rows)
	logger.Infof("%s: materialized '%s' (%d rows)", moduleName, target, result.Rows)
	return nil
}

// copyError classifies a table-copy failure. Context cancellation is never
// skippable: it aborts the run instead of cascading into a skip per
// remaining table.
func copyError(cause error, format string, a ...interface{}) error {
	wrapped := fmt.Errorf("%w: %v", exception.ErrTableCopyFailed, cause)
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return exception.NewPipelineError(moduleName, fmt.Sprintf(format, a...), wrapped, false)
	}
	return exception.NewPipelineErrorf(moduleName, wrapped, format, a...)
}

// skipReason maps a skip error to a short metric label.
func skipReason(err error) string {
	switch {
	case errors.Is(err, exception.ErrSchemaUnavailable):
		return "schema_unavailable"
	case errors.Is(err, exception.ErrTableCopyFailed):
		return "copy_failed"
	default:
		return "error"
	}
}
