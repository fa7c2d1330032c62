package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultRequestTTL is how long a request stays open for offers
const DefaultRequestTTL = 7 * 24 * time.Hour

// CreateRequestInput is what a customer submits when posting a need
type CreateRequestInput struct {
	CustomerName   string
	CustomerPhone  string
	CustomerEmail  *string
	ServiceName    string
	ServiceDetails string
	Category       *string
	Budget         *float64
	Urgency        models.Urgency
	Province       string
	District       *string
	Address        *string
	PreferredDate  *time.Time
	PreferredTime  *string
	FlexibleTiming bool
}

func (in *CreateRequestInput) validate() error {
	verr := &ValidationError{}

	if strings.TrimSpace(in.CustomerName) == "" {
		verr.add("customerName", "is required")
	}
	if strings.TrimSpace(in.CustomerPhone) == "" {
		verr.add("customerPhone", "is required")
	} else if !ValidPhone(in.CustomerPhone) {
		verr.add("customerPhone", "must be 7 to 15 digits, optionally starting with +")
	}
	if in.CustomerEmail != nil && *in.CustomerEmail != "" && !ValidEmail(NormalizeEmail(*in.CustomerEmail)) {
		verr.add("customerEmail", "is not a valid email address")
	}
	if strings.TrimSpace(in.ServiceName) == "" {
		verr.add("serviceName", "is required")
	}
	if strings.TrimSpace(in.Province) == "" {
		verr.add("provinceId", "is required")
	}
	if in.Urgency == "" {
		in.Urgency = models.UrgencyNormal
	} else if !models.ValidUrgency(in.Urgency) {
		verr.add("urgency", "must be one of LOW, NORMAL, HIGH, URGENT")
	}
	if in.Budget != nil && *in.Budget < 0 {
		verr.add("budget", "must not be negative")
	}

	return verr.orNil()
}

// RequestStore persists service requests and answers status-consistent reads
type RequestStore struct {
	db     *gorm.DB
	clock  Clock
	ttl    time.Duration
	events EventPublisher
	logger zerolog.Logger
}

// NewRequestStore creates a store; a non-positive ttl falls back to DefaultRequestTTL
func NewRequestStore(db *gorm.DB, clock Clock, ttl time.Duration, events EventPublisher, logger zerolog.Logger) *RequestStore {
	if ttl <= 0 {
		ttl = DefaultRequestTTL
	}
	return &RequestStore{db: db, clock: clock, ttl: ttl, events: events, logger: logger}
}

// TTL returns the fixed offer window applied at creation
func (s *RequestStore) TTL() time.Duration {
	return s.ttl
}

// Create validates and stores a new request. It starts ACTIVE when at least
// one business can already see it and PENDING otherwise.
func (s *RequestStore) Create(ctx context.Context, in CreateRequestInput) (*models.ServiceRequest, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC().Truncate(time.Microsecond)
	req := models.ServiceRequest{
		CustomerName:   strings.TrimSpace(in.CustomerName),
		CustomerPhone:  NormalizePhone(in.CustomerPhone),
		CustomerEmail:  normalizedEmailPtr(in.CustomerEmail),
		ServiceName:    strings.TrimSpace(in.ServiceName),
		ServiceDetails: in.ServiceDetails,
		Category:       trimmedPtr(in.Category),
		Budget:         in.Budget,
		Urgency:        in.Urgency,
		Province:       strings.TrimSpace(in.Province),
		District:       trimmedPtr(in.District),
		Address:        in.Address,
		PreferredTime:  in.PreferredTime,
		FlexibleTiming: in.FlexibleTiming,
		Status:         models.RequestPending,
		ExpiresAt:      now.Add(s.ttl),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.PreferredDate != nil {
		d := datatypes.Date(*in.PreferredDate)
		req.PreferredDate = &d
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		matching, err := countMatchingBusinesses(tx, &req)
		if err != nil {
			return err
		}
		if matching > 0 {
			req.Status = models.RequestActive
		}
		return tx.Create(&req).Error
	})
	if err != nil {
		return nil, fmt.Errorf("services.RequestStore.Create: %w", err)
	}

	requestsCreated.WithLabelValues(string(req.Status)).Inc()
	s.publish(ctx, Event{Type: EventRequestCreated, RequestID: req.ID, OccurredAt: now})
	s.logger.Info().
		Str("request_id", req.ID).
		Str("status", string(req.Status)).
		Str("province", req.Province).
		Msg("Service request created")

	return &req, nil
}

// Get returns the request with its responses, oldest offer first
func (s *RequestStore) Get(ctx context.Context, id string) (*models.ServiceRequest, error) {
	var req models.ServiceRequest
	err := retryIdempotent(ctx, defaultRetryAttempts, func() error {
		return withResponses(s.db.WithContext(ctx)).First(&req, "id = ?", id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "service request", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("services.RequestStore.Get: %w", err)
	}
	return &req, nil
}

// ListForCustomer returns every request posted under the identity, newest first
func (s *RequestStore) ListForCustomer(ctx context.Context, identity ContactIdentity) ([]models.ServiceRequest, error) {
	if identity.IsZero() {
		return nil, &ValidationError{Fields: map[string]string{"phone": "phone or email is required"}}
	}
	n := identity.Normalized()

	requests := []models.ServiceRequest{}
	err := retryIdempotent(ctx, defaultRetryAttempts, func() error {
		q := withResponses(s.db.WithContext(ctx))
		switch {
		case n.Phone != "" && n.Email != "":
			q = q.Where("customer_phone = ? OR customer_email = ?", n.Phone, n.Email)
		case n.Phone != "":
			q = q.Where("customer_phone = ?", n.Phone)
		default:
			q = q.Where("customer_email = ?", n.Email)
		}
		return q.Order("created_at DESC").Order("id").Find(&requests).Error
	})
	if err != nil {
		return nil, fmt.Errorf("services.RequestStore.ListForCustomer: %w", err)
	}
	return requests, nil
}

// MarkExpired moves every open request whose window has passed to EXPIRED.
// The status condition is part of the UPDATE, so a request accepted or
// cancelled concurrently is left alone. Running it twice is harmless.
func (s *RequestStore) MarkExpired(ctx context.Context) (int64, error) {
	now := s.clock.Now()

	var expired int64
	err := retryIdempotent(ctx, defaultRetryAttempts, func() error {
		res := s.db.WithContext(ctx).
			Model(&models.ServiceRequest{}).
			Where("status IN ? AND expires_at < ?", models.OpenRequestStatuses, now).
			Updates(map[string]interface{}{"status": models.RequestExpired, "updated_at": now})
		expired = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("services.RequestStore.MarkExpired: %w", err)
	}

	if expired > 0 {
		requestTransitions.WithLabelValues(string(models.RequestExpired)).Add(float64(expired))
		s.publish(ctx, Event{Type: EventRequestsExpired, Count: expired, OccurredAt: now})
		s.logger.Info().Int64("count", expired).Msg("Expired service requests")
	}
	return expired, nil
}

// MarkResponsesViewed flags every offer on the request as seen by the customer
func (s *RequestStore) MarkResponsesViewed(ctx context.Context, requestID string) error {
	err := s.db.WithContext(ctx).
		Model(&models.ServiceRequestResponse{}).
		Where("service_request_id = ? AND customer_viewed = ?", requestID, false).
		Update("customer_viewed", true).Error
	if err != nil {
		return fmt.Errorf("services.RequestStore.MarkResponsesViewed: %w", err)
	}
	return nil
}

func (s *RequestStore) publish(ctx context.Context, evt Event) {
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn().Err(err).Str("event", string(evt.Type)).Msg("Failed to publish event")
	}
}

func withResponses(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Responses", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at").Order("id")
		}).
		Preload("Responses.Business")
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func normalizedEmailPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := NormalizeEmail(*s)
	if v == "" {
		return nil
	}
	return &v
}
