package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"delivery-sequencer-service/internal/adapters/cache"
	"delivery-sequencer-service/internal/adapters/facts"
	"delivery-sequencer-service/internal/config"
	"delivery-sequencer-service/internal/platform/db"
	"delivery-sequencer-service/internal/ports"
	"delivery-sequencer-service/internal/services"
)

// dbtool initializes the fact-store schema and optionally runs a one-shot
// janitor pass (administrative trigger; there is no fixed schedule).
func main() {
	runCleanup := flag.Bool("cleanup", false, "run a cache cleanup pass after schema init")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	backend := config.Get("STORE_BACKEND", "sqlite")

	conn, err := openConn(backend)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	log.Println("Initializing database schema...")
	if err := initSchema(backend, conn); err != nil {
		log.Fatalf("schema initialization failed: %v", err)
	}
	log.Println("Schema ready.")

	if !*runCleanup {
		return
	}

	store, err := newStore(backend, conn)
	if err != nil {
		log.Fatal(err)
	}

	janitor := services.NewJanitor(cache.NewPairCache(store, cache.NewMemoryTier()))
	report, err := janitor.RunCleanup(
		context.Background(),
		config.GetInt("CACHE_RETENTION_DAYS", services.DefaultRetentionDays),
		config.GetInt("CACHE_MAX_RECORDS", services.DefaultMaxRecords),
	)
	if err != nil {
		log.Fatalf("cleanup failed: %v", err)
	}

	log.Printf("Cleanup complete: evicted_by_age=%d evicted_by_capacity=%d",
		report.EvictedByAge, report.EvictedByCapacity)
}

func openConn(backend string) (*sql.DB, error) {
	switch backend {
	case "sqlite":
		dbPath := config.Get("DB_PATH", "data/app.db")
		conn, err := sql.Open("sqlite", dbPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database %q: %w", dbPath, err)
		}
		if err := conn.Ping(); err != nil {
			return nil, fmt.Errorf("verify sqlite connection to %q: %w", dbPath, err)
		}
		return conn, nil

	case "postgres":
		databaseURL := os.Getenv("DATABASE_URL")
		if strings.TrimSpace(databaseURL) == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
		return db.Open(databaseURL)

	default:
		return nil, fmt.Errorf("dbtool supports sqlite and postgres backends, got %q", backend)
	}
}

func initSchema(backend string, conn *sql.DB) error {
	if backend == "postgres" {
		return facts.InitSchemaPostgres(conn)
	}
	return facts.InitSchemaSQLite(conn)
}

func newStore(backend string, conn *sql.DB) (ports.FactStore, error) {
	if backend == "postgres" {
		return facts.NewPGFactStore(conn), nil
	}
	return facts.NewSqliteFactStore(conn), nil
}
