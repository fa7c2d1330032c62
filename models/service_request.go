package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RequestStatus is the lifecycle state of a ServiceRequest
type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestActive    RequestStatus = "ACTIVE"
	RequestResponded RequestStatus = "RESPONDED"
	RequestAccepted  RequestStatus = "ACCEPTED"
	RequestExpired   RequestStatus = "EXPIRED"
	RequestCancelled RequestStatus = "CANCELLED"
	RequestCompleted RequestStatus = "COMPLETED"
)

// OpenRequestStatuses can still receive offers, be cancelled or expire.
var OpenRequestStatuses = []RequestStatus{RequestPending, RequestActive, RequestResponded}

// VisibleRequestStatuses are the statuses a business dashboard lists as new work.
var VisibleRequestStatuses = []RequestStatus{RequestPending, RequestActive}

// ValidRequestStatus reports whether s is a known request status
func ValidRequestStatus(s RequestStatus) bool {
	switch s {
	case RequestPending, RequestActive, RequestResponded, RequestAccepted,
		RequestExpired, RequestCancelled, RequestCompleted:
		return true
	default:
		return false
	}
}

// IsOpen reports whether the request still takes offers and can be cancelled or expired.
func (s RequestStatus) IsOpen() bool {
	switch s {
	case RequestPending, RequestActive, RequestResponded:
		return true
	case RequestAccepted, RequestExpired, RequestCancelled, RequestCompleted:
		return false
	default:
		panic(fmt.Sprintf("models: unknown request status %q", string(s)))
	}
}

// IsTerminal reports whether no further transition is possible.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case RequestExpired, RequestCancelled, RequestCompleted:
		return true
	case RequestPending, RequestActive, RequestResponded, RequestAccepted:
		return false
	default:
		panic(fmt.Sprintf("models: unknown request status %q", string(s)))
	}
}

// CanTransitionTo encodes the request state machine. RESPONDED -> RESPONDED is
// allowed because further offers keep the request in RESPONDED.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	switch s {
	case RequestPending:
		return next == RequestActive || next == RequestResponded || next == RequestExpired || next == RequestCancelled
	case RequestActive:
		return next == RequestResponded || next == RequestExpired || next == RequestCancelled
	case RequestResponded:
		return next == RequestResponded || next == RequestAccepted || next == RequestExpired || next == RequestCancelled
	case RequestAccepted:
		return next == RequestCompleted
	case RequestExpired, RequestCancelled, RequestCompleted:
		return false
	default:
		panic(fmt.Sprintf("models: unknown request status %q", string(s)))
	}
}

// Urgency is how quickly the customer hopes to hear back. Display only: it
// does not change expiresAt.
type Urgency string

const (
	UrgencyLow    Urgency = "LOW"
	UrgencyNormal Urgency = "NORMAL"
	UrgencyHigh   Urgency = "HIGH"
	UrgencyUrgent Urgency = "URGENT"
)

// ValidUrgency reports whether u is a known urgency level
func ValidUrgency(u Urgency) bool {
	switch u {
	case UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyUrgent:
		return true
	default:
		return false
	}
}

// ExpectedResponseTime is the response window shown to businesses
func (u Urgency) ExpectedResponseTime() time.Duration {
	switch u {
	case UrgencyUrgent:
		return 2 * time.Hour
	case UrgencyHigh:
		return 24 * time.Hour
	case UrgencyNormal:
		return 3 * 24 * time.Hour
	case UrgencyLow:
		return 7 * 24 * time.Hour
	default:
		panic(fmt.Sprintf("models: unknown urgency %q", string(u)))
	}
}

// ServiceRequest is a customer's posted need, visible to matching businesses.
// Contact fields are immutable after creation.
type ServiceRequest struct {
	ID                 string                   `gorm:"type:varchar(36);primaryKey" json:"id"`
	CustomerName       string                   `gorm:"not null" json:"customerName"`
	CustomerPhone      string                   `gorm:"type:varchar(32);not null;index" json:"customerPhone"`
	CustomerEmail      *string                  `gorm:"index" json:"customerEmail,omitempty"`
	ServiceName        string                   `gorm:"not null" json:"serviceName"`
	ServiceDetails     string                   `gorm:"type:text" json:"serviceDetails"`
	Category           *string                  `gorm:"type:varchar(100);index" json:"category,omitempty"`
	Budget             *float64                 `json:"budget,omitempty"`
	Urgency            Urgency                  `gorm:"type:varchar(10);not null;default:'NORMAL'" json:"urgency"`
	Province           string                   `gorm:"type:varchar(100);not null;index" json:"province"`
	District           *string                  `gorm:"type:varchar(100)" json:"district,omitempty"`
	Address            *string                  `gorm:"type:text" json:"address,omitempty"`
	PreferredDate      *datatypes.Date          `json:"preferredDate,omitempty"`
	PreferredTime      *string                  `gorm:"type:varchar(10)" json:"preferredTime,omitempty"`
	FlexibleTiming     bool                     `gorm:"not null;default:false" json:"flexibleTiming"`
	Status             RequestStatus            `gorm:"type:varchar(12);not null;default:'PENDING';index" json:"status"`
	AcceptedResponseID *string                  `gorm:"type:varchar(36)" json:"acceptedResponseId,omitempty"`
	ExpiresAt          time.Time                `gorm:"not null;index" json:"expiresAt"`
	CompletedAt        *time.Time               `json:"completedAt,omitempty"`
	Responses          []ServiceRequestResponse `gorm:"foreignKey:ServiceRequestID" json:"responses,omitempty"`
	CreatedAt          time.Time                `gorm:"index" json:"createdAt"`
	UpdatedAt          time.Time                `json:"updatedAt"`
}

// TableName specifies the table name for the ServiceRequest model
func (ServiceRequest) TableName() string {
	return "service_requests"
}

// BeforeCreate assigns the opaque id
func (r *ServiceRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// IsExpiredAt reports whether the expiry window has passed at now, whatever the stored status says.
func (r *ServiceRequest) IsExpiredAt(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// AcceptedResponses returns the owned responses holding ACCEPTED status
func (r *ServiceRequest) AcceptedResponses() []ServiceRequestResponse {
	var accepted []ServiceRequestResponse
	for _, resp := range r.Responses {
		if resp.Status == ResponseAccepted {
			accepted = append(accepted, resp)
		}
	}
	return accepted
}
