package database

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*/*.sql
var migrations embed.FS

// Schema selects which embedded migration set to apply.
type Schema string

const (
	// Server is the backend schema: users, families, chat and lists.
	Server Schema = "migrations/server"
	// Local is the client's on-device state: preferences and session.
	Local Schema = "migrations/local"
)

// Open opens the backend SQLite database at the given path and runs migrations.
func Open(dbPath string) (*sql.DB, error) {
	return OpenSchema(dbPath, Server)
}

// OpenLocal opens the client state database at the given path.
func OpenLocal(dbPath string) (*sql.DB, error) {
	return OpenSchema(dbPath, Local)
}

// OpenSchema opens a SQLite database and migrates it to the given schema.
func OpenSchema(dbPath string, schema Schema) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := runMigrations(db, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sql.DB, schema Schema) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, string(schema)); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}
