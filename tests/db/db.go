package db

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flokiorg/lngateway/db"
	"github.com/flokiorg/lngateway/db/migrations"
)

// NewDB returns a migrated in-memory database private to the test.
func NewDB(t *testing.T) (*gorm.DB, error) {
	uri := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	gormDB, err := db.NewDB(uri, false)
	if err != nil {
		return nil, err
	}

	// a shared in-memory database reports table locks instead of waiting on
	// them, so every statement goes through one connection
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	err = migrations.Migrate(gormDB)
	if err != nil {
		db.Stop(gormDB)
		return nil, err
	}

	return gormDB, nil
}

func CloseDB(gormDB *gorm.DB) {
	db.Stop(gormDB)
}
