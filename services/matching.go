package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kendall-kelly/servicehub-api/models"
	"gorm.io/gorm"
)

// DashboardFilter partitions the business dashboard
type DashboardFilter string

const (
	FilterActive    DashboardFilter = "active"
	FilterResponded DashboardFilter = "responded"
	FilterAccepted  DashboardFilter = "accepted"
)

// ValidDashboardFilter reports whether f is a known dashboard filter
func ValidDashboardFilter(f DashboardFilter) bool {
	switch f {
	case FilterActive, FilterResponded, FilterAccepted:
		return true
	default:
		return false
	}
}

// MatchesBusiness decides whether b may see and answer req at now. Geography
// and category are exact matches; ServesAllProvinces is the only wildcard.
func MatchesBusiness(req *models.ServiceRequest, b *models.Business, now time.Time) bool {
	switch req.Status {
	case models.RequestPending, models.RequestActive:
	case models.RequestResponded, models.RequestAccepted, models.RequestExpired,
		models.RequestCancelled, models.RequestCompleted:
		return false
	default:
		panic(fmt.Sprintf("services: unknown request status %q", string(req.Status)))
	}
	if !req.ExpiresAt.After(now) {
		return false
	}
	return matchesProfile(req, b)
}

// matchesProfile is the status-independent part of matching
func matchesProfile(req *models.ServiceRequest, b *models.Business) bool {
	if !b.ServesAllProvinces && req.Province != b.Province {
		return false
	}
	if req.Category != nil && *req.Category != "" && *req.Category != b.Category {
		return false
	}
	return true
}

// FilterEligible keeps the requests b may see, newest first with id as the tie-break
func FilterEligible(requests []models.ServiceRequest, b *models.Business, now time.Time) []models.ServiceRequest {
	eligible := make([]models.ServiceRequest, 0, len(requests))
	for i := range requests {
		if MatchesBusiness(&requests[i], b, now) {
			eligible = append(eligible, requests[i])
		}
	}
	sortNewestFirst(eligible)
	return eligible
}

func sortNewestFirst(requests []models.ServiceRequest) {
	sort.SliceStable(requests, func(i, j int) bool {
		if !requests[i].CreatedAt.Equal(requests[j].CreatedAt) {
			return requests[i].CreatedAt.After(requests[j].CreatedAt)
		}
		return requests[i].ID < requests[j].ID
	})
}

// Matcher answers the business dashboard queries. It never writes.
type Matcher struct {
	db    *gorm.DB
	clock Clock
}

// NewMatcher creates a Matcher
func NewMatcher(db *gorm.DB, clock Clock) *Matcher {
	return &Matcher{db: db, clock: clock}
}

// EligibleRequestsFor returns the open, unexpired requests b is allowed to answer
func (m *Matcher) EligibleRequestsFor(ctx context.Context, b *models.Business) ([]models.ServiceRequest, error) {
	now := m.clock.Now()

	var candidates []models.ServiceRequest
	err := retryIdempotent(ctx, defaultRetryAttempts, func() error {
		q := m.db.WithContext(ctx).
			Where("status IN ? AND expires_at > ?", models.VisibleRequestStatuses, now)
		q = scopeToBusiness(q, b)
		return q.Find(&candidates).Error
	})
	if err != nil {
		return nil, fmt.Errorf("services.Matcher.EligibleRequestsFor: %w", err)
	}

	// the query narrows, the predicate decides
	return FilterEligible(candidates, b, now), nil
}

// RespondedRequestsFor returns requests b has a pending offer on, awaiting the customer
func (m *Matcher) RespondedRequestsFor(ctx context.Context, businessID uint) ([]models.ServiceRequest, error) {
	return m.requestsWithOwnResponse(ctx, businessID, models.ResponsePending, models.RequestResponded)
}

// AcceptedRequestsFor returns requests where the customer accepted b's offer
func (m *Matcher) AcceptedRequestsFor(ctx context.Context, businessID uint) ([]models.ServiceRequest, error) {
	return m.requestsWithOwnResponse(ctx, businessID, models.ResponseAccepted, models.RequestAccepted, models.RequestCompleted)
}

// Dashboard dispatches on the named filter
func (m *Matcher) Dashboard(ctx context.Context, b *models.Business, filter DashboardFilter) ([]models.ServiceRequest, error) {
	switch filter {
	case FilterActive:
		return m.EligibleRequestsFor(ctx, b)
	case FilterResponded:
		return m.RespondedRequestsFor(ctx, b.ID)
	case FilterAccepted:
		return m.AcceptedRequestsFor(ctx, b.ID)
	default:
		return nil, &ValidationError{Fields: map[string]string{"filter": "must be one of active, responded, accepted"}}
	}
}

func (m *Matcher) requestsWithOwnResponse(ctx context.Context, businessID uint, responseStatus models.ResponseStatus, statuses ...models.RequestStatus) ([]models.ServiceRequest, error) {
	requests := []models.ServiceRequest{}
	err := retryIdempotent(ctx, defaultRetryAttempts, func() error {
		db := m.db.WithContext(ctx)
		own := db.Model(&models.ServiceRequestResponse{}).
			Select("service_request_id").
			Where("business_id = ? AND status = ?", businessID, responseStatus)

		return db.
			Preload("Responses", "business_id = ?", businessID).
			Where("id IN (?) AND status IN ?", own, statuses).
			Order("created_at DESC").Order("id").
			Find(&requests).Error
	})
	if err != nil {
		return nil, fmt.Errorf("services.Matcher.requestsWithOwnResponse: %w", err)
	}
	return requests, nil
}

func scopeToBusiness(q *gorm.DB, b *models.Business) *gorm.DB {
	if !b.ServesAllProvinces {
		q = q.Where("province = ?", b.Province)
	}
	return q.Where("category IS NULL OR category = '' OR category = ?", b.Category)
}

// countMatchingBusinesses reports how many businesses would see req
func countMatchingBusinesses(tx *gorm.DB, req *models.ServiceRequest) (int64, error) {
	q := tx.Model(&models.Business{}).
		Where("serves_all_provinces = ? OR province = ?", true, req.Province)
	if req.Category != nil && *req.Category != "" {
		q = q.Where("category = ?", *req.Category)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count matching businesses: %w", err)
	}
	return count, nil
}
