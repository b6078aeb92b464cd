package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"kchat/internal/migrations"
	"kchat/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Applies the schema to a kchat database out of band. The server applies the
// same schema on startup; this tool exists for provisioning a database before
// first boot and for upgrading one while the server is stopped.
func main() {
	dbPath := flag.String("db", "./kchat.db", "Path to the database file")
	flag.Parse()

	if err := security.ValidateDatabasePath(*dbPath); err != nil {
		log.Fatalf("Invalid database path: %v", err)
	}

	db, err := sql.Open("sqlite3", *dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		log.Fatalf("Failed to create migrations table: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = 1").Scan(&count); err != nil {
		log.Fatalf("Failed to check migration status: %v", err)
	}
	if count > 0 {
		fmt.Println("Schema already at version 1, nothing to do")
		os.Exit(0)
	}

	fmt.Println("Applying migration 1: initial schema")

	if _, err := db.Exec(migrations.GetInitialSchema()); err != nil {
		log.Fatalf("Failed to apply initial schema: %v", err)
	}
	if _, err := db.Exec("INSERT INTO schema_migrations (version) VALUES (1)"); err != nil {
		log.Fatalf("Failed to record migration: %v", err)
	}

	fmt.Println("Migration 1 applied successfully")
}
