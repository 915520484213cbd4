package migrations

import (
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

type PolicyLedger struct {
	ID            uint
	DailySpentSat uint64
	WindowStart   time.Time
	UpdatedAt     time.Time
}

var _202610081400_policy_ledger = &gormigrate.Migration{
	ID: "202610081400_policy_ledger",
	Migrate: func(tx *gorm.DB) error {
		return tx.AutoMigrate(&PolicyLedger{})
	},
	Rollback: func(tx *gorm.DB) error {
		return tx.Migrator().DropTable(&PolicyLedger{})
	},
}
