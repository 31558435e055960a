package storage

import (
	"fmt"

	"github.com/liu-chun-wu/SleepGenius/internal"
	"github.com/liu-chun-wu/SleepGenius/internal/config"
)

// NewSleepRepository picks the backend from config: "file" (default)
// or "postgres".
func NewSleepRepository(cfg *config.Config, logger internal.Logger) (SleepRepository, error) {
	switch cfg.DBType {
	case "postgres":
		return NewPostgresStorage(cfg.DBDSN, logger)
	case "file":
		return NewFileStorage(cfg.DataDir, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.DBType)
	}
}
