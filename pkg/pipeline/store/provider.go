package store

import (
	"fmt"
	"os"
	"sync"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tigerroll/krishi/pkg/pipeline/support/exception"
	"github.com/tigerroll/krishi/pkg/pipeline/support/logger"
)

const moduleName = "store"

// DialectorFactory generates a gorm.Dialector from a DatabaseConfig.
type DialectorFactory func(cfg DatabaseConfig) (gorm.Dialector, error)

var (
	dialectorRegistry = make(map[string]DialectorFactory)
	dialectorMutex    sync.RWMutex
)

// RegisterDialector registers a DialectorFactory for the given store type.
// The built-in "sqlite", "mysql" and "postgres" factories are registered at
// package init; tests may override them.
func RegisterDialector(dbType string, factory DialectorFactory) {
	dialectorMutex.Lock()
	defer dialectorMutex.Unlock()
	if _, exists := dialectorRegistry[dbType]; exists {
		logger.Warnf("Dialector for type '%s' already registered. Overwriting.", dbType)
	}
	dialectorRegistry[dbType] = factory
}

// GetDialectorFactory retrieves the DialectorFactory for the given store type.
func GetDialectorFactory(dbType string) (DialectorFactory, error) {
	dialectorMutex.RLock()
	defer dialectorMutex.RUnlock()
	factory, ok := dialectorRegistry[dbType]
	if !ok {
		return nil, fmt.Errorf("no dialector registered for store type: %s", dbType)
	}
	return factory, nil
}

func init() {
	RegisterDialector("sqlite", func(cfg DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, fmt.Errorf("sqlite store path cannot be empty")
		}
		// GORM's sqlite dialector takes the file path as the DSN.
		return sqlite.Open(cfg.Database), nil
	})
	RegisterDialector("mysql", func(cfg DatabaseConfig) (gorm.Dialector, error) {
		var authPart string
		if cfg.User != "" {
			authPart = cfg.User
			if cfg.Password != "" {
				authPart = fmt.Sprintf("%s:%s", cfg.User, cfg.Password)
			}
			authPart += "@"
		}
		dsn := fmt.Sprintf("%stcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			authPart, cfg.Host, cfg.Port, cfg.Database)
		return mysql.Open(dsn), nil
	})
	RegisterDialector("postgres", func(cfg DatabaseConfig) (gorm.Dialector, error) {
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.Sslmode)
		return postgres.Open(dsn), nil
	})
}

// Open establishes a GORM connection to the store described by cfg.
// A missing dialector or a connection failure is reported as a skippable
// ErrSchemaUnavailable condition: the caller skips that store, not the run.
func Open(name string, cfg DatabaseConfig) (*gorm.DB, error) {
	factory, err := GetDialectorFactory(cfg.Type)
	if err != nil {
		return nil, exception.NewPipelineError(moduleName,
			fmt.Sprintf("cannot open source store '%s'", name),
			fmt.Errorf("%w: %v", exception.ErrSchemaUnavailable, err), true)
	}

	// GORM's sqlite driver creates missing files on open; an absent source
	// store must surface as a skip instead of an empty database.
	if cfg.Type == "sqlite" && cfg.Database != ":memory:" {
		if _, statErr := os.Stat(cfg.Database); statErr != nil {
			return nil, exception.NewPipelineError(moduleName,
				fmt.Sprintf("source store '%s' not found at %s", name, cfg.Database),
				fmt.Errorf("%w: %v", exception.ErrSchemaUnavailable, statErr), true)
		}
	}

	dialector, err := factory(cfg)
	if err != nil {
		return nil, exception.NewPipelineError(moduleName,
			fmt.Sprintf("invalid configuration for source store '%s'", name),
			fmt.Errorf("%w: %v", exception.ErrSchemaUnavailable, err), true)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, exception.NewPipelineError(moduleName,
			fmt.Sprintf("failed to connect to source store '%s'", name),
			fmt.Errorf("%w: %v", exception.ErrSchemaUnavailable, err), true)
	}

	logger.Debugf("Established store connection: %s (%s)", name, cfg.Type)
	return db, nil
}

// OpenWarehouse establishes a GORM connection to the sqlite warehouse target,
// creating the file if necessary. A failure here is fatal to the whole run,
// unlike source-store open failures.
func OpenWarehouse(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, exception.NewPipelineError(moduleName,
			fmt.Sprintf("failed to create warehouse at %s", path), err, false)
	}
	return db, nil
}

// Close releases the underlying sql.DB of a GORM connection.
// Connections are scoped resources: each source store is closed as soon as
// its tables have been processed.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
