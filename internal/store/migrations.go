package store

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration is one schema step. Statements run in a single transaction.
type Migration struct {
	Version    int
	Name       string
	Statements []string
}

var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_trips",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS trips (
				id TEXT PRIMARY KEY,
				owner TEXT NOT NULL,
				origin_region TEXT NOT NULL DEFAULT '',
				origin_place TEXT NOT NULL DEFAULT '',
				origin_lat REAL,
				origin_lng REAL,
				dest_region TEXT NOT NULL DEFAULT '',
				dest_place TEXT NOT NULL DEFAULT '',
				dest_lat REAL,
				dest_lng REAL,
				date_start TEXT NOT NULL DEFAULT '',
				time_start TEXT NOT NULL DEFAULT '',
				date_end TEXT NOT NULL DEFAULT '',
				time_end TEXT NOT NULL DEFAULT '',
				transport TEXT NOT NULL,
				cost_amount REAL,
				cost_currency TEXT,
				carrier_number TEXT NOT NULL DEFAULT '',
				seat_number TEXT NOT NULL DEFAULT '',
				seat_class TEXT NOT NULL DEFAULT '',
				notes TEXT NOT NULL DEFAULT '',
				ground_route TEXT,
				target_region TEXT NOT NULL DEFAULT '',
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_trips_owner_created ON trips (owner, created_at DESC)`,
		},
	},
}

// runMigrations applies every migration not yet recorded in the migrations table
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.Query("SELECT version FROM migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		err := transaction(db, func(tx *sql.Tx) error {
			for _, stmt := range m.Statements {
				if _, err := tx.Exec(stmt); err != nil {
					return fmt.Errorf("failed to execute migration %d: %w", m.Version, err)
				}
			}
			if _, err := tx.Exec("INSERT INTO migrations (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		log.Printf("Applied migration %d: %s", m.Version, m.Name)
	}
	return nil
}

// transaction executes fn within a database transaction
func transaction(db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
