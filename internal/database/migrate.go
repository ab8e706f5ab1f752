package database

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// RunMigrations applies the migrations for driver found under migrations/<dialect> in fsys.
func RunMigrations(db *sql.DB, driver string, fsys fs.FS, logger *zap.Logger) error {
	switch driver {
	case "sqlite3":
		return runSQLiteMigrations(db, fsys, logger)
	case "oracle", "godror":
		return runOracleMigrations(db, fsys, logger)
	default:
		return fmt.Errorf("no migrations for driver %q", driver)
	}
}

func runSQLiteMigrations(db *sql.DB, fsys fs.FS, logger *zap.Logger) error {
	src, err := iofs.New(fsys, "migrations/sqlite")
	if err != nil {
		return fmt.Errorf("could not open sqlite migrations: %w", err)
	}
	drv, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", drv)
	if err != nil {
		return fmt.Errorf("could not create migrator: %w", err)
	}
	// m.Close would also close db, which the caller still owns.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not apply sqlite migrations: %w", err)
	}
	version, dirty, _ := m.Version()
	logger.Info("Migrations completed successfully", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// runOracleMigrations executes every *.up.sql file in name order, one statement at a
// time. Objects and columns that already exist (ORA-00955, ORA-01430) are skipped so
// the run is repeatable.
func runOracleMigrations(db *sql.DB, fsys fs.FS, logger *zap.Logger) error {
	dir := "migrations/oracle"
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("could not read migrations directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return fmt.Errorf("could not read migration file %s: %w", name, err)
		}
		for _, stmt := range SplitStatements(string(content)) {
			if _, err := db.Exec(stmt); err != nil {
				if alreadyApplied(err) {
					logger.Debug("Skipping existing object", zap.String("file", name))
					continue
				}
				return fmt.Errorf("could not execute migration %s: %w", name, err)
			}
		}
		logger.Info("Executed migration", zap.String("file", name))
	}

	logger.Info("Migrations completed successfully")
	return nil
}

func alreadyApplied(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "ORA-00955") || strings.Contains(msg, "ORA-01430")
}

// SplitStatements splits a script on semicolons, dropping blank statements and
// full-line "--" comments. Oracle rejects multi-statement Exec calls.
func SplitStatements(script string) []string {
	var lines []string
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}
	var out []string
	for _, stmt := range strings.Split(strings.Join(lines, "\n"), ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}
