package config

import (
	"fmt"
	"log/slog"
	"strings"

	"food-distribution-api/store"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB connects to db and migrates the schema.
func OpenDB(db Database, log *slog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch db.Driver {
	case "sqlite":
		dialector = sqlite.Open(sqliteDSN(db.DSN))
	case "postgres":
		dialector = postgres.Open(db.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", db.Driver)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", db.Driver, err)
	}

	if db.Driver == "sqlite" {
		// sqlite allows a single writer; serialize through one connection.
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := store.Migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("database connected and migrated", "driver", db.Driver)
	return conn, nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}
