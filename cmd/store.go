package cmd

import (
	"fmt"
	"log"

	"github.com/kozaktomas/face-attend/internal/config"
	"github.com/kozaktomas/face-attend/internal/store"
	"github.com/kozaktomas/face-attend/internal/store/memory"
	"github.com/kozaktomas/face-attend/internal/store/mysql"
	"github.com/kozaktomas/face-attend/internal/store/postgres"
)

// openStore picks the storage backend from the configuration: PostgreSQL
// when DATABASE_URL is set, MySQL when MYSQL_DSN is set, otherwise an
// in-memory store that loses everything on exit.
func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.Database.URL != "" {
		st, err := postgres.Open(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return st, nil
	}

	if cfg.Database.MySQLDSN != "" {
		st, err := mysql.Open(cfg.Database.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("open mysql store: %w", err)
		}
		return st, nil
	}

	log.Println("no database configured, using in-memory store (data is lost on exit)")
	return memory.New(), nil
}
