package db

import (
	"time"

	"gorm.io/datatypes"
)

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

// PolicyLedger is a single row (ID 1) snapshot of the outbound spend window.
type PolicyLedger struct {
	ID            uint
	DailySpentSat uint64
	WindowStart   time.Time
	UpdatedAt     time.Time
}

const PolicyLedgerID = 1
