package models

import (
	"fmt"

	"gorm.io/gorm"
)

// All lists every model managed by AutoMigrate, parents before children
func All() []interface{} {
	return []interface{}{
		&User{},
		&Business{},
		&ServiceRequest{},
		&ServiceRequestResponse{},
		&Appointment{},
		&RaffleLedger{},
		&RaffleCredit{},
		&RaffleEntry{},
		&RaffleDraw{},
		&RaffleHistory{},
	}
}

// oneAcceptedResponse mirrors the partial index of the SQL migrations.
// gorm tags cannot express a second, filtered index on the same column.
const oneAcceptedResponse = `CREATE UNIQUE INDEX IF NOT EXISTS idx_one_accepted_response
ON service_request_responses (service_request_id) WHERE status = 'ACCEPTED'`

// AutoMigrate creates every table and then the constraints gorm tags
// cannot declare. MySQL has no partial indexes, so there the single
// accepted response relies on the conditional status update alone.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(All()...); err != nil {
		return err
	}

	switch db.Dialector.Name() {
	case "sqlite", "postgres":
		if err := db.Exec(oneAcceptedResponse).Error; err != nil {
			return fmt.Errorf("models.AutoMigrate: %w", err)
		}
	}
	return nil
}
