package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"siteproof/internal/config"
	"siteproof/internal/database"
	"siteproof/internal/repository"
)

// Removes expired chunked-upload sessions and their staged chunks. Meant to
// run from cron; the API server never blocks on this.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	ctx := context.Background()
	sessions := repository.NewChunkSessionRepository(db)

	expired, err := sessions.ListExpired(ctx, time.Now())
	if err != nil {
		log.Fatalf("list expired sessions failed: %v", err)
	}

	removed := 0
	for _, s := range expired {
		if err := os.RemoveAll(filepath.Join(cfg.StagingDir, s.ID)); err != nil {
			log.Printf("staging cleanup failed for %s: %v", s.ID, err)
			continue
		}
		if err := sessions.Delete(ctx, s.ID); err != nil {
			log.Printf("session delete failed for %s: %v", s.ID, err)
			continue
		}
		removed++
	}

	log.Printf("session cleanup completed: expired=%d removed=%d", len(expired), removed)
}
