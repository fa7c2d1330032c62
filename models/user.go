package models

import (
	"time"

	"gorm.io/gorm"
)

// Role identifies what a signed-in user is allowed to do
type Role string

const (
	RoleCustomer Role = "customer"
	RoleBusiness Role = "business"
	RoleAdmin    Role = "admin"
)

// ValidRole reports whether r is one of the known roles
func ValidRole(r Role) bool {
	switch r {
	case RoleCustomer, RoleBusiness, RoleAdmin:
		return true
	default:
		return false
	}
}

// User represents a signed-in account (customer, business owner or admin)
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Auth0ID   string         `gorm:"uniqueIndex;not null" json:"auth0Id"` // Auth0 user ID (from 'sub' claim)
	Name      string         `gorm:"not null" json:"name"`
	Email     string         `gorm:"uniqueIndex;not null" json:"email"`
	Phone     *string        `json:"phone,omitempty"`
	Role      Role           `gorm:"type:varchar(20);not null;default:'customer'" json:"role"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}
