package postgresadapter

import "gorm.io/gorm"

// Migrate creates or updates the access-control tables. The bootstrap claim
// table must exist before the first registration, so run this at startup.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&userModel{},
		&adminGrantModel{},
		&appModel{},
		&appPermissionModel{},
		&bootstrapClaimModel{},
		&outboxModel{},
		&eventDedupModel{},
	)
}
