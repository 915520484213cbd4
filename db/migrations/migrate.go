package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func Migrate(gormDB *gorm.DB) error {
	m := gormigrate.New(gormDB, gormigrate.DefaultOptions, []*gormigrate.Migration{
		_202610010900_initial_schema,
		_202610081400_policy_ledger,
	})

	return m.Migrate()
}
