package jobs

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/creatives-backend/internal/platform/logger"
)

type DBConfig struct {
	// Dialect is sqlite or postgres.
	Dialect string
	DSN     string
}

// OpenDB connects to the intent database and migrates the intent table.
func OpenDB(log *logger.Logger, cfg DBConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(cfg.Dialect)) {
	case "", "sqlite":
		dsn := cfg.DSN
		if strings.TrimSpace(dsn) == "" {
			dsn = "file::memory:?cache=shared"
		}
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, fmt.Errorf("missing JOBS_DB_DSN for postgres")
		}
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported JOBS_DB_DIALECT %q (expected sqlite|postgres)", cfg.Dialect)
	}

	log.Info("Connecting to run intent database...", "dialect", dialector.Name(), "dsn", cfg.DSN)
	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		log.Error("Failed to open run intent database", "error", err)
		return nil, fmt.Errorf("open %s: %w", dialector.Name(), err)
	}
	if dialector.Name() == "sqlite" {
		// sqlite allows one writer; a single connection serializes claims.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&RunIntent{}); err != nil {
		log.Error("Auto migration failed for run intents", "error", err)
		return nil, fmt.Errorf("migrate run intents: %w", err)
	}
	return db, nil
}
