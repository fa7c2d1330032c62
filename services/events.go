package services

import (
	"context"
	"time"

	"github.com/kendall-kelly/servicehub-api/models"
)

// EventType names a lifecycle event; it doubles as the message subject suffix
type EventType string

const (
	EventRequestCreated   EventType = "servicerequest.created"
	EventRequestResponded EventType = "servicerequest.responded"
	EventResponseAccepted EventType = "servicerequest.accepted"
	EventResponseRejected EventType = "servicerequest.rejected"
	EventRequestCancelled EventType = "servicerequest.cancelled"
	EventRequestCompleted EventType = "servicerequest.completed"
	EventRequestsExpired  EventType = "servicerequest.expired"
	EventRightsCredited   EventType = "raffle.credited"
	EventRaffleEntered    EventType = "raffle.participated"
	EventDrawClosed       EventType = "raffle.draw_closed"
)

// Event is what clients subscribe to instead of polling after every mutation
type Event struct {
	Type       EventType      `json:"type"`
	OccurredAt time.Time      `json:"occurredAt"`
	RequestID  string         `json:"requestId,omitempty"`
	ResponseID string         `json:"responseId,omitempty"`
	BusinessID uint           `json:"businessId,omitempty"`
	CustomerID uint           `json:"customerId,omitempty"`
	Period     *models.Period `json:"period,omitempty"`
	Count      int64          `json:"count,omitempty"`
}

// EventPublisher delivers events after the owning transaction commits.
// Publishing is best effort: a failure never undoes a committed change.
type EventPublisher interface {
	Publish(ctx context.Context, evt Event) error
}

// NoopPublisher drops every event
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
