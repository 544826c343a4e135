// Package app provides the main application module for the consolidation
// pipeline. It wires the consolidator, the parquet exporter and the metrics
// recorder through Fx.
package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/tigerroll/krishi/pkg/pipeline/config"
	"github.com/tigerroll/krishi/pkg/pipeline/consolidate"
	"github.com/tigerroll/krishi/pkg/pipeline/export"
	"github.com/tigerroll/krishi/pkg/pipeline/metrics"
)

// Module defines the application's Fx module.
var Module = fx.Options(
	fx.Provide(
		prometheus.NewRegistry,
		func(reg *prometheus.Registry) metrics.Recorder {
			return metrics.NewPrometheusRecorder(reg)
		},
		consolidate.NewConsolidator,
		func(cfg *config.Config) *export.Exporter {
			return export.NewExporter(cfg.Krishi.Export)
		},
	),
)
