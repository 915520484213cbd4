package db

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/flokiorg/lngateway/logger"
)

func NewDB(uri string, logDBQueries bool) (*gorm.DB, error) {
	config := &gorm.Config{
		TranslateError: true,
	}
	if logDBQueries {
		config.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	} else {
		config.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
	}

	// sqlite serializes writers; keep a busy timeout so concurrent payment
	// trackers wait instead of failing with SQLITE_BUSY
	dsn := uri
	if !strings.Contains(uri, "?") {
		dsn = fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", uri)
	}

	gormDB, err := gorm.Open(sqlite.Open(dsn), config)
	if err != nil {
		logger.Logger.Error().Err(err).Str("uri", uri).Msg("Failed to open database")
		return nil, err
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	return gormDB, nil
}

func Stop(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to get database connection")
		return
	}

	err = sqlDB.Close()
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to close database connection")
	}
}
