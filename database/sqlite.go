// api/database/sqlite.go
package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteClient wraps the embedded SQLite database that backs all durable
// state: the analytics key-value substrate and the dashboard users table.
type SQLiteClient struct {
	DB   *sql.DB
	path string
}

// NewSQLiteDB opens the database in the directory named by the
// SITEPULSE_DATA_DIR environment variable, defaulting to ./data.
func NewSQLiteDB() (*SQLiteClient, error) {
	dir := os.Getenv("SITEPULSE_DATA_DIR")
	if dir == "" {
		log.Println("SITEPULSE_DATA_DIR environment variable not set. Using ./data for local development.")
		dir = "./data"
	}
	return Open(dir)
}

// Open opens or creates the SitePulse database under dir.
func Open(dir string) (*SQLiteClient, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dir, "sitepulse.db")

	db, err := sql.Open("sqlite", dbPath+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("error opening database connection: %w", err)
	}

	// SQLite supports a single writer; the event store writes through on
	// every mutation, so keep the pool at one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	c := &SQLiteClient{DB: db, path: dbPath}
	if err := c.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database (ping failed): %w", err)
	}

	log.Printf("Successfully opened SQLite database at %s", dbPath)
	return c, nil
}

func (c *SQLiteClient) createTables() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			email           TEXT NOT NULL UNIQUE,
			hashed_password BLOB NOT NULL,
			created_at      INTEGER NOT NULL,
			updated_at      INTEGER NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := c.DB.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Get returns the stored value for key. The second return value reports
// whether the key was present.
func (c *SQLiteClient) Get(key string) (string, bool, error) {
	var value string
	err := c.DB.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key '%s': %w", key, err)
	}
	return value, true, nil
}

// Set writes the full value for key, replacing any previous value.
func (c *SQLiteClient) Set(key, value string) error {
	_, err := c.DB.Exec(`
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write key '%s': %w", key, err)
	}
	return nil
}

// Close closes the database connection.
func (c *SQLiteClient) Close() {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			log.Printf("Error closing database connection: %v", err)
		} else {
			log.Println("SQLite database connection closed.")
		}
	}
}
