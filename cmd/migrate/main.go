package main

// Run database migrations:
//   go run ./cmd/migrate [up|down|status|version|reset]
//
// With STORE_BACKEND=mongo the command creates the MongoDB indexes instead.

import (
	"context"
	"flag"
	"log"
	"os"

	"resume-builder/internal/shared/config"
	"resume-builder/internal/shared/storage/db"
	mongostore "resume-builder/internal/shared/storage/mongo"
)

func main() {
	flag.Parse()
	command := flag.Arg(0)

	cfg := config.Load()
	ctx := context.Background()

	if cfg.StoreBackend == config.StoreMongo {
		database, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			log.Printf("failed to connect mongo: %v", err)
			os.Exit(1)
		}
		defer database.Close(ctx)
		if err := database.Migrate(ctx); err != nil {
			log.Printf("failed to create indexes: %v", err)
			os.Exit(1)
		}
		log.Printf("mongo indexes ensured on %s", cfg.MongoDatabase)
		return
	}

	opts := db.WithEnv(db.PoolOptions(db.ProfileMigrate))
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		log.Printf("failed to connect database: %v", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.Migrate(ctx, sqlDB, command); err != nil {
		log.Printf("failed to run migrations: %v", err)
		os.Exit(1)
	}
}
