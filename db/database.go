package db

import (
	"fmt"
	"net/url"

	"law_timeline_app_go/config"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var logger = loggo.GetLogger("lawtimeline.db")

var DB *gorm.DB

// Dialector picks the gorm dialector for the configured DB_TYPE
func Dialector(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DBType {
	case "", "sqlite":
		// Enable WAL mode for better concurrency support
		return sqlite.Open(cfg.DBPath + "?_journal_mode=WAL&_busy_timeout=5000"), nil

	case "libsql", "turso":
		if cfg.TursoDatabaseURL == "" {
			return nil, errors.NotValidf("empty TURSO_DATABASE_URL")
		}
		dsn := cfg.TursoDatabaseURL
		if cfg.TursoAuthToken != "" {
			dsn += "?authToken=" + url.QueryEscape(cfg.TursoAuthToken)
		}
		return sqlite.New(sqlite.Config{DriverName: "libsql", DSN: dsn}), nil

	case "postgres", "postgresql":
		if cfg.DBDSN == "" {
			return nil, errors.NotValidf("empty DB_DSN for postgres")
		}
		return postgres.Open(cfg.DBDSN), nil

	case "mysql", "mariadb":
		if cfg.DBDSN == "" {
			return nil, errors.NotValidf("empty DB_DSN for mysql")
		}
		return mysql.Open(cfg.DBDSN), nil

	default:
		return nil, errors.NotSupportedf("database type %q", cfg.DBType)
	}
}

// Initialize sets up the database connection for the configured store
func Initialize(cfg *config.Config) error {
	// Determine log level based on environment
	logLevel := gormlogger.Info
	if cfg.Environment == "production" {
		logLevel = gormlogger.Warn
	}

	dialector, err := Dialector(cfg)
	if err != nil {
		return errors.Trace(err)
	}

	DB, err = gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Infof("database connection established (%s)", cfg.DBType)
	return nil
}

// AutoMigrate runs database migrations for the provided models
func AutoMigrate(models ...interface{}) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	if err := DB.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Infof("database migrations completed")
	return nil
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	return sqlDB.Close()
}
