package models

import (
	"time"

	"gorm.io/gorm"
)

// AppointmentStatus is the lifecycle state of a booking
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "SCHEDULED"
	AppointmentCompleted AppointmentStatus = "COMPLETED"
	AppointmentCancelled AppointmentStatus = "CANCELLED"
)

// ValidAppointmentStatus reports whether s is a known appointment status
func ValidAppointmentStatus(s AppointmentStatus) bool {
	switch s {
	case AppointmentScheduled, AppointmentCompleted, AppointmentCancelled:
		return true
	default:
		return false
	}
}

// Appointment is a booking of a customer with a business. Completed
// appointments earn the customer one raffle right.
type Appointment struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	BusinessID  uint              `gorm:"not null;index" json:"businessId"`
	Business    *Business         `gorm:"foreignKey:BusinessID" json:"business,omitempty"`
	CustomerID  uint              `gorm:"not null;index" json:"customerId"`
	Customer    *User             `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	ServiceName string            `gorm:"not null" json:"serviceName"`
	ScheduledAt time.Time         `gorm:"not null;index" json:"scheduledAt"`
	Status      AppointmentStatus `gorm:"type:varchar(12);not null;default:'SCHEDULED';index" json:"status"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt    `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Appointment model
func (Appointment) TableName() string {
	return "appointments"
}
