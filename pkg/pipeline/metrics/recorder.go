// Package metrics provides an abstract interface for recording pipeline
// execution metrics, with no-op and Prometheus-backed implementations.
// Abstracting the recorder keeps the consolidator independent of the
// metrics backend.
package metrics

import "time"

// Recorder is the abstract interface for recording consolidation metrics.
type Recorder interface {
	// RecordRunStart records the start of a consolidation run.
	RecordRunStart(runID string)

	// RecordRunEnd records the end of a consolidation run with its outcome.
	RecordRunEnd(runID string, duration time.Duration, success bool)

	// RecordTableCopied records one successfully materialized warehouse table
	// and the number of rows it received.
	RecordTableCopied(source, table string, rows int64)

	// RecordTableSkipped records one table (or whole store) skipped due to a
	// per-item failure.
	RecordTableSkipped(source, table, reason string)

	// RecordViewCreated records one successfully synthesized view.
	RecordViewCreated(view string)

	// RecordViewFailed records one view whose creation failed.
	RecordViewFailed(view string)
}

// NoopRecorder is a Recorder that discards every measurement. It is the
// default when metrics are not wired.
type NoopRecorder struct{}

// NewNoopRecorder creates a new NoopRecorder.
func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (r *NoopRecorder) RecordRunStart(string)                     {}
func (r *NoopRecorder) RecordRunEnd(string, time.Duration, bool)  {}
func (r *NoopRecorder) RecordTableCopied(string, string, int64)   {}
func (r *NoopRecorder) RecordTableSkipped(string, string, string) {}
func (r *NoopRecorder) RecordViewCreated(string)                  {}
func (r *NoopRecorder) RecordViewFailed(string)                   {}
