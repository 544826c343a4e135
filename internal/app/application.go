package app

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/tigerroll/krishi/pkg/pipeline/config"
	"github.com/tigerroll/krishi/pkg/pipeline/consolidate"
	"github.com/tigerroll/krishi/pkg/pipeline/export"
	"github.com/tigerroll/krishi/pkg/pipeline/metrics"
	"github.com/tigerroll/krishi/pkg/pipeline/store"
	"github.com/tigerroll/krishi/pkg/pipeline/support/logger"
)

// RunApplication sets up and runs the consolidation application using uber-fx.
func RunApplication(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig) {
	cfg, err := config.LoadConfig(envFilePath, embeddedConfig)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level based on loaded configuration
	logger.SetLogLevel(cfg.Krishi.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Krishi.System.Logging.Level)

	app := fx.New(
		fx.Supply(
			cfg,
			fx.Annotate(
				appCtx,
				fx.As(new(context.Context)),
				fx.ResultTags(`name:"appCtx"`),
			),
		),
		Module,
		fx.Invoke(fx.Annotate(startConsolidation, fx.ParamTags(
			"",              // lc fx.Lifecycle
			"",              // shutdowner fx.Shutdowner
			"",              // consolidator *consolidate.Consolidator
			"",              // exporter *export.Exporter
			"",              // registry *prometheus.Registry
			"",              // cfg *config.Config
			`name:"appCtx"`, // appCtx context.Context
		))),
	)

	app.Run()

	if app.Err() != nil {
		logger.Fatalf("Application run failed: %v", app.Err())
	}
}

// startConsolidation is invoked by Fx to begin the consolidation run.
func startConsolidation(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	consolidator *consolidate.Consolidator,
	exporter *export.Exporter,
	registry *prometheus.Registry,
	cfg *config.Config,
	appCtx context.Context,
) {
	lc.Append(fx.Hook{
		OnStart: onStartConsolidation(consolidator, exporter, registry, cfg, shutdowner, appCtx),
		OnStop:  onStopApplication(),
	})
}

// onStartConsolidation is an Fx Hook helper function that runs the
// consolidation upon application startup and requests shutdown when it
// finishes.
func onStartConsolidation(
	consolidator *consolidate.Consolidator,
	exporter *export.Exporter,
	registry *prometheus.Registry,
	cfg *config.Config,
	shutdowner fx.Shutdowner,
	appCtx context.Context,
) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("Panic recovered in consolidation run: %v", r)
				}
				logger.Infof("Requesting application shutdown after consolidation completion.")

				if err := shutdowner.Shutdown(); err != nil {
					logger.Errorf("Failed to shutdown application: %v", err)
				}
			}()

			report, err := consolidator.Run(appCtx)
			if err != nil {
				logger.Errorf("Consolidation run failed: %v", err)
				logMetrics(registry)
				return
			}
			if warnings := report.Warnings(); warnings != nil {
				logger.Warnf("Consolidation run %s completed with warnings: %v", report.RunID, warnings)
			}
			logMetrics(registry)

			if cfg.Krishi.Export.Enabled {
				runExport(exporter, cfg)
			}
		}()
		return nil
	}
}

// logMetrics gathers the run's collectors and logs their values so the
// recorded counters are visible even without a scrape endpoint.
func logMetrics(g prometheus.Gatherer) {
	summary, err := metrics.Summary(g)
	if err != nil {
		logger.Warnf("Failed to gather run metrics: %v", err)
		return
	}
	if summary != "" {
		logger.Infof("Run metrics:\n%s", summary)
	}
}

// runExport opens the freshly built warehouse and exports its tables.
func runExport(exporter *export.Exporter, cfg *config.Config) {
	wh, err := store.OpenWarehouse(cfg.Krishi.Warehouse.Path)
	if err != nil {
		logger.Errorf("Failed to open warehouse for export: %v", err)
		return
	}
	defer func() {
		if err := store.Close(wh); err != nil {
			logger.Errorf("Failed to close warehouse after export: %v", err)
		}
	}()

	if err := exporter.Export(wh); err != nil {
		logger.Errorf("Parquet export finished with errors: %v", err)
	}
}

// onStopApplication is an Fx Hook helper function that logs application shutdown.
func onStopApplication() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		logger.Infof("Application is shutting down.")
		return nil
	}
}
