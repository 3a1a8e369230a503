package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/lib/pq"
)

func main() {
	var (
		dir = flag.String("dir", "migrations", "directory containing .sql migration files")
		db  = flag.String("db", "", "database URL (or set DATABASE_URL)")
	)
	flag.Parse()

	databaseURL := *db
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		log.Fatal("database URL not provided: use -db or set DATABASE_URL")
	}

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer conn.Close()
	if err := conn.Ping(); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}
	if err := createMigrationsTable(conn); err != nil {
		log.Fatalf("failed to create schema_migrations table: %v", err)
	}

	switch command {
	case "up":
		if err := migrateUp(conn, *dir); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
		log.Println("migrations applied")
	case "status":
		if err := showStatus(conn, *dir); err != nil {
			log.Fatalf("failed to read status: %v", err)
		}
	default:
		log.Fatalf("unknown command %q: use 'up' or 'status'", command)
	}
}

func createMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT now()
		)`)
	return err
}

func migrateUp(db *sql.DB, dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("read migrations directory: %w", err)
	}
	sort.Strings(files)

	applied, err := appliedVersions(db)
	if err != nil {
		return fmt.Errorf("read applied migrations: %w", err)
	}

	for _, file := range files {
		version := filepath.Base(file)
		if applied[version] {
			continue
		}

		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read %s: %w", version, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for %s: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply %s: %w", version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record %s: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", version, err)
		}
		log.Printf("applied %s", version)
	}
	return nil
}

func showStatus(db *sql.DB, dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("read migrations directory: %w", err)
	}
	sort.Strings(files)

	applied, err := appliedVersions(db)
	if err != nil {
		return fmt.Errorf("read applied migrations: %w", err)
	}

	for _, file := range files {
		version := filepath.Base(file)
		mark := "pending"
		if applied[version] {
			mark = "applied"
		}
		fmt.Printf("%-10s %s\n", mark, version)
	}
	return nil
}

func appliedVersions(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
