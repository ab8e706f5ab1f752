package database

import (
	"fmt"

	_ "github.com/godror/godror" // Oracle driver (cgo, "godror")
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver for development and tests
	_ "github.com/sijms/go-ora/v2"   // Oracle driver (pure Go, "oracle")
	"go.uber.org/zap"
)

func init() {
	// go-ora registers as "oracle", which sqlx does not know; it takes :name placeholders.
	sqlx.BindDriver("oracle", sqlx.NAMED)
}

// Open connects with the given driver and verifies the connection.
func Open(driver, dsn string, logger *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}

	if driver == "sqlite3" {
		// SQLite allows a single writer; one connection keeps transactions from
		// failing with SQLITE_BUSY when workers persist concurrently.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}

	logger.Info("Successfully connected to database", zap.String("driver", driver))
	return db, nil
}
