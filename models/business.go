package models

import (
	"time"

	"gorm.io/gorm"
)

// Business is a service provider listed on the platform. Its province and
// category decide which service requests it can see.
type Business struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	OwnerID            uint           `gorm:"not null;uniqueIndex" json:"ownerId"`
	Owner              User           `gorm:"foreignKey:OwnerID" json:"-"`
	Name               string         `gorm:"not null" json:"name"`
	Category           string         `gorm:"type:varchar(100);not null;index" json:"category"`
	Province           string         `gorm:"type:varchar(100);not null;index" json:"province"`
	District           *string        `gorm:"type:varchar(100)" json:"district,omitempty"`
	ServesAllProvinces bool           `gorm:"not null;default:false" json:"servesAllProvinces"`
	Phone              *string        `json:"phone,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Business model
func (Business) TableName() string {
	return "businesses"
}
