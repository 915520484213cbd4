package migrations

import (
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// the structs are frozen copies of the models at the time of the migration

type UserConfig struct {
	ID        uint
	Key       string `gorm:"unique;not null"`
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Invoice struct {
	ID             string `gorm:"primaryKey"`
	Backend        string
	PaymentHash    string `gorm:"index;not null"`
	PaymentRequest string
	AmountSat      uint64
	Memo           string
	State          string
	ExpiresAt      time.Time
	SettledAt      *time.Time
	Metadata       datatypes.JSON
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Payment struct {
	ID             uint
	Backend        string
	PaymentHash    string `gorm:"index;not null"`
	PaymentRequest string
	AmountSat      uint64
	FeeLimitSat    uint64
	FeeSat         uint64
	Preimage       *string
	State          string
	FailureReason  string
	AttemptCount   int
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

var _202610010900_initial_schema = &gormigrate.Migration{
	ID: "202610010900_initial_schema",
	Migrate: func(tx *gorm.DB) error {
		return tx.AutoMigrate(&UserConfig{}, &Invoice{}, &Payment{})
	},
	Rollback: func(tx *gorm.DB) error {
		return tx.Migrator().DropTable(&Payment{}, &Invoice{}, &UserConfig{})
	},
}
