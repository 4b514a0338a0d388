package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"delivery-sequencer-service/internal/adapters/cache"
	"delivery-sequencer-service/internal/adapters/distance"
	"delivery-sequencer-service/internal/adapters/facts"
	"delivery-sequencer-service/internal/adapters/maps"
	"delivery-sequencer-service/internal/api"
	"delivery-sequencer-service/internal/config"
	"delivery-sequencer-service/internal/platform/db"
	"delivery-sequencer-service/internal/ports"
	"delivery-sequencer-service/internal/services"
)

// main is the application composition root.
// It wires concrete adapters (fact store, hot tier, maps client) behind
// ports and starts the HTTP server.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	port := config.Get("PORT", "8080")

	mapsKey := os.Getenv("MAPS_API_KEY")
	if strings.TrimSpace(mapsKey) == "" {
		log.Fatal("MAPS_API_KEY is required")
	}

	store, cleanup, err := openFactStore()
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	// Hot tier: in-process by default, Redis when shared across instances.
	var hot ports.HotTier
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		tier, err := cache.NewRedisTier(redisURL)
		if err != nil {
			log.Fatal(fmt.Errorf("redis hot tier: %w", err))
		}
		hot = tier
	} else {
		hot = cache.NewMemoryTier()
	}

	client, err := maps.NewClient(mapsKey, config.Get("MAPS_BASE_URL", ""))
	if err != nil {
		log.Fatal(err)
	}

	pairCache := cache.NewPairCache(store, hot)
	oracle := distance.NewCachingOracle(pairCache, client)
	sequencer := services.NewSequencer(oracle)
	janitor := services.NewJanitor(pairCache)

	router := api.NewRouter(sequencer, client, janitor, oracle)

	// Timeouts are tuned for cold-cache route planning (external API latency).
	log.Printf("Server listening addr=:%s", port)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	log.Fatal(srv.ListenAndServe())
}

// openFactStore selects the persistent fact-store backend from
// STORE_BACKEND and returns the store plus a close function.
func openFactStore() (ports.FactStore, func(), error) {
	backend := config.Get("STORE_BACKEND", "sqlite")

	switch backend {
	case "sqlite":
		dbPath := config.Get("DB_PATH", "data/app.db")
		conn, err := openSQLite(dbPath)
		if err != nil {
			return nil, nil, err
		}
		if err := facts.InitSchemaSQLite(conn); err != nil {
			conn.Close()
			return nil, nil, err
		}
		return facts.NewSqliteFactStore(conn), func() { conn.Close() }, nil

	case "postgres":
		databaseURL := os.Getenv("DATABASE_URL")
		if strings.TrimSpace(databaseURL) == "" {
			return nil, nil, fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
		conn, err := db.Open(databaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := facts.InitSchemaPostgres(conn); err != nil {
			conn.Close()
			return nil, nil, err
		}
		return facts.NewPGFactStore(conn), func() { conn.Close() }, nil

	case "baserow":
		store, err := facts.NewBaserowFactStore(
			config.Get("BASEROW_URL", "https://api.baserow.io"),
			os.Getenv("BASEROW_TOKEN"),
			config.GetInt("BASEROW_TABLE_ID", 0),
		)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", backend)
	}
}

func openSQLite(dbPath string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("openDB: open sqlite database %q: %w", dbPath, err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("openDB: verify sqlite connection to %q: %w", dbPath, err)
	}

	return conn, nil
}
