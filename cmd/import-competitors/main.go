package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/maltedev/price-comparison-scraper/internal/config"
	"github.com/maltedev/price-comparison-scraper/internal/database"
	"github.com/maltedev/price-comparison-scraper/internal/registry"
)

// import-competitors copies a competitors YAML file into the competitors
// table used by REGISTRY_SOURCE=postgres.
func main() {
	file := flag.String("file", "configs/competitors.yml", "Competitors YAML file")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := cfg.Logging.NewLogger(os.Stderr)

	reg, err := registry.LoadFile(*file)
	if err != nil {
		log.Fatalf("Failed to read competitors: %v", err)
	}

	ctx := context.Background()

	db, err := database.New(ctx, cfg.DatabaseConfig())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	competitors := reg.All()
	repo := database.NewCompetitorRepository(db)
	for _, c := range competitors {
		if err := repo.Upsert(ctx, c); err != nil {
			log.Fatalf("Failed to import %s: %v", c.Name, err)
		}
		logger.Info("competitor imported", "competitor", c.Name, "url", c.SearchURL, "active", c.IsActive)
	}

	fmt.Printf("Imported %d competitors\n", len(competitors))
}
