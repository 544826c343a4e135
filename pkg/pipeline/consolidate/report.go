package consolidate

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// TableResult describes one table materialized into the warehouse.
type TableResult struct {
	// Source is the logical name of the origin store.
	Source string
	// SourceTable is the table name inside the origin store. For synthesized
	// tables (such as the merged weather summary) this names the primary
	// input table.
	SourceTable string
	// WarehouseTable is the name the table received in the warehouse.
	WarehouseTable string
	// Rows is the number of rows copied.
	Rows int64
	// Transformed indicates the rows were reshaped rather than copied
	// verbatim.
	Transformed bool
}

// SkipResult describes one source item that could not be consolidated.
type SkipResult struct {
	// Source is the logical name of the origin store.
	Source string
	// Table is the affected table, or empty when the whole store was skipped.
	Table string
	// Reason is a short human-readable cause.
	Reason string
}

// ViewResult describes the outcome of one view creation.
type ViewResult struct {
	Name    string
	Created bool
	// Rows is the number of rows the view yields, counted right after
	// creation.
	Rows int64
	Err  error
}

// Report is the summary of a single consolidation run. It accumulates
// per-table row counts, skipped items and view outcomes, and carries the
// non-fatal failures as a combined warning error.
type Report struct {
	// RunID uniquely identifies this run.
	RunID string
	// StartedAt is the wall-clock start of the run.
	StartedAt time.Time
	// Duration is the total elapsed time of the run.
	Duration time.Duration

	Tables  []TableResult
	Skips   []SkipResult
	Views   []ViewResult
	warning *multierror.Error
}

// NewReport creates an empty report stamped with a fresh run ID.
func NewReport() *Report {
	return &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
}

// AddTable records one materialized warehouse table.
func (r *Report) AddTable(result TableResult) {
	r.Tables = append(r.Tables, result)
}

// AddSkip records one skipped item together with the error that caused it.
func (r *Report) AddSkip(skip SkipResult, err error) {
	r.Skips = append(r.Skips, skip)
	if err != nil {
		r.warning = multierror.Append(r.warning, err)
	}
}

// AddView records one view outcome.
func (r *Report) AddView(view ViewResult) {
	r.Views = append(r.Views, view)
	if view.Err != nil {
		r.warning = multierror.Append(r.warning, view.Err)
	}
}

// TotalRows returns the sum of rows over all materialized tables.
func (r *Report) TotalRows() int64 {
	var total int64
	for _, t := range r.Tables {
		total += t.Rows
	}
	return total
}

// Warnings returns the accumulated non-fatal failures, or nil when the run
// was clean.
func (r *Report) Warnings() error {
	return r.warning.ErrorOrNil()
}

// Render formats the report for log output.
func (r *Report) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "consolidation run %s finished in %s\n", r.RunID, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "  tables: %d (%d rows total)\n", len(r.Tables), r.TotalRows())
	for _, t := range r.Tables {
		mode := "copied"
		if t.Transformed {
			mode = "transformed"
		}
		fmt.Fprintf(&b, "    %-40s %8d rows (%s from %s.%s)\n", t.WarehouseTable, t.Rows, mode, t.Source, t.SourceTable)
	}
	if len(r.Skips) > 0 {
		fmt.Fprintf(&b, "  skipped: %d\n", len(r.Skips))
		for _, s := range r.Skips {
			item := s.Source
			if s.Table != "" {
				item = s.Source + "." + s.Table
			}
			fmt.Fprintf(&b, "    %-40s %s\n", item, s.Reason)
		}
	}
	fmt.Fprintf(&b, "  views: %d\n", len(r.Views))
	for _, v := range r.Views {
		status := fmt.Sprintf("created (%d rows)", v.Rows)
		if !v.Created {
			status = fmt.Sprintf("failed: %v", v.Err)
		}
		fmt.Fprintf(&b, "    %-40s %s\n", v.Name, status)
	}
	return b.String()
}
