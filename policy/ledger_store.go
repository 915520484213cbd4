package policy

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/flokiorg/lngateway/db"
)

type gormLedgerStore struct {
	db *gorm.DB
}

func NewGormLedgerStore(gormDB *gorm.DB) *gormLedgerStore {
	return &gormLedgerStore{db: gormDB}
}

func (s *gormLedgerStore) Load() (*LedgerState, error) {
	var row db.PolicyLedger
	err := s.db.First(&row, db.PolicyLedgerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &LedgerState{
		DailySpentSat: row.DailySpentSat,
		WindowStart:   row.WindowStart,
	}, nil
}

func (s *gormLedgerStore) Save(state LedgerState) error {
	row := db.PolicyLedger{
		ID:            db.PolicyLedgerID,
		DailySpentSat: state.DailySpentSat,
		WindowStart:   state.WindowStart,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"daily_spent_sat", "window_start", "updated_at"}),
	}).Create(&row).Error
}
