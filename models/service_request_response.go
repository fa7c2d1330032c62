package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ResponseStatus is the lifecycle state of a business offer
type ResponseStatus string

const (
	ResponsePending  ResponseStatus = "PENDING"
	ResponseAccepted ResponseStatus = "ACCEPTED"
	ResponseRejected ResponseStatus = "REJECTED"
)

// ValidResponseStatus reports whether s is a known response status
func ValidResponseStatus(s ResponseStatus) bool {
	switch s {
	case ResponsePending, ResponseAccepted, ResponseRejected:
		return true
	default:
		return false
	}
}

// CanTransitionTo allows PENDING -> ACCEPTED and PENDING -> REJECTED only.
func (s ResponseStatus) CanTransitionTo(next ResponseStatus) bool {
	switch s {
	case ResponsePending:
		return next == ResponseAccepted || next == ResponseRejected
	case ResponseAccepted, ResponseRejected:
		return false
	default:
		panic(fmt.Sprintf("models: unknown response status %q", string(s)))
	}
}

// ServiceRequestResponse is a business's offer against a service request.
// A business can hold at most one response per request.
type ServiceRequestResponse struct {
	ID               string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	ServiceRequestID string          `gorm:"type:varchar(36);not null;uniqueIndex:idx_request_business" json:"serviceRequestId"`
	BusinessID       uint            `gorm:"not null;uniqueIndex:idx_request_business;index" json:"businessId"`
	Business         *Business       `gorm:"foreignKey:BusinessID" json:"business,omitempty"`
	Message          string          `gorm:"type:text;not null" json:"message"`
	ProposedPrice    *float64        `json:"proposedPrice,omitempty"`
	ProposedDate     *datatypes.Date `json:"proposedDate,omitempty"`
	ProposedTime     *string         `gorm:"type:varchar(10)" json:"proposedTime,omitempty"`
	Availability     *string         `gorm:"type:text" json:"availability,omitempty"`
	Status           ResponseStatus  `gorm:"type:varchar(10);not null;default:'PENDING';index" json:"status"`
	CustomerViewed   bool            `gorm:"not null;default:false" json:"customerViewed"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// TableName specifies the table name for the ServiceRequestResponse model
func (ServiceRequestResponse) TableName() string {
	return "service_request_responses"
}

// BeforeCreate assigns the opaque id
func (r *ServiceRequestResponse) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
