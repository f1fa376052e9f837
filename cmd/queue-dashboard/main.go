// Command queue-dashboard serves the read-only HTML dashboard over the
// same SQLite store queuectl writes to.
package main

import (
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/Shashank23k/FLAM-QueueCTL/internal/config"
	"github.com/Shashank23k/FLAM-QueueCTL/internal/dashboard"
	"github.com/Shashank23k/FLAM-QueueCTL/internal/store/sqlite"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[queue-dashboard] .env not loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[queue-dashboard] config: %v", err)
	}

	s, err := sqlite.Open(cfg.DBPath, cfg.BusyTimeout)
	if err != nil {
		log.Fatalf("[queue-dashboard] open store: %v", err)
	}
	defer s.Close()

	handler := dashboard.New(s)
	log.Printf("[queue-dashboard] listening on %s", cfg.DashboardAddress)
	if err := http.ListenAndServe(cfg.DashboardAddress, handler); err != nil {
		log.Fatalf("[queue-dashboard] serve: %v", err)
	}
}
