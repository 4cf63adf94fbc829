package main

import (
	"flag"
	"log"

	migrate "github.com/rubenv/sql-migrate"

	"github.com/johnquangdev/meeting-sync/internal/infrastructure/database"
	"github.com/johnquangdev/meeting-sync/pkg/config"
)

// Applies or rolls back the SQL migrations:
//
//	go run ./scripts/migrate           # up
//	go run ./scripts/migrate -down     # roll back every migration
func main() {
	down := flag.Bool("down", false, "roll back instead of applying")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	direction := migrate.Up
	if *down {
		direction = migrate.Down
	}

	log.Printf("🔄 Applying migrations from %s/ ...", cfg.Database.MigrationsDir)
	n, err := database.Migrate(db, cfg.Database.MigrationsDir, direction)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.Printf("✅ Applied %d migration(s)", n)
}
