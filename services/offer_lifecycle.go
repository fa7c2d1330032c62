package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SubmitResponseInput is a business offer
type SubmitResponseInput struct {
	BusinessID    uint
	Message       string
	ProposedPrice *float64
	ProposedDate  *time.Time
	ProposedTime  *string
	Availability  *string
}

func (in *SubmitResponseInput) validate() error {
	verr := &ValidationError{}
	if in.BusinessID == 0 {
		verr.add("businessId", "is required")
	}
	if strings.TrimSpace(in.Message) == "" {
		verr.add("message", "is required")
	}
	if in.ProposedPrice != nil && *in.ProposedPrice < 0 {
		verr.add("proposedPrice", "must not be negative")
	}
	return verr.orNil()
}

// OfferManager enforces the request and response state machines. Every
// transition re-checks the persisted state inside the write itself, so
// concurrent callers cannot both win.
type OfferManager struct {
	db     *gorm.DB
	clock  Clock
	events EventPublisher
	logger zerolog.Logger
}

// NewOfferManager creates an OfferManager
func NewOfferManager(db *gorm.DB, clock Clock, events EventPublisher, logger zerolog.Logger) *OfferManager {
	return &OfferManager{db: db, clock: clock, events: events, logger: logger}
}

// SubmitResponse stores a PENDING offer and moves the request to RESPONDED.
// The (request, business) unique index is what rejects a second offer.
func (m *OfferManager) SubmitResponse(ctx context.Context, requestID string, in SubmitResponseInput) (*models.ServiceRequestResponse, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := m.clock.Now()
	var resp models.ServiceRequestResponse

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := loadRequest(tx, requestID)
		if err != nil {
			return err
		}
		if !req.Status.IsOpen() {
			return requestStateError("respond to", req, false)
		}
		if req.IsExpiredAt(now) {
			return requestStateError("respond to", req, true)
		}

		var business models.Business
		if err := tx.First(&business, in.BusinessID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "business", ID: strconv.FormatUint(uint64(in.BusinessID), 10)}
			}
			return err
		}
		if !matchesProfile(req, &business) {
			return &NotEligibleError{RequestID: req.ID, BusinessID: business.ID}
		}

		resp = models.ServiceRequestResponse{
			ServiceRequestID: req.ID,
			BusinessID:       business.ID,
			Message:          strings.TrimSpace(in.Message),
			ProposedPrice:    in.ProposedPrice,
			ProposedTime:     in.ProposedTime,
			Availability:     in.Availability,
			Status:           models.ResponsePending,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if in.ProposedDate != nil {
			d := datatypes.Date(*in.ProposedDate)
			resp.ProposedDate = &d
		}
		if err := tx.Create(&resp).Error; err != nil {
			if IsUniqueViolation(err) {
				return &DuplicateResponseError{RequestID: req.ID, BusinessID: business.ID}
			}
			return err
		}

		res := tx.Model(&models.ServiceRequest{}).
			Where("id = ? AND status IN ? AND expires_at > ?", req.ID, models.OpenRequestStatuses, now).
			Updates(map[string]interface{}{"status": models.RequestResponded, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return m.conflict(tx, "respond to", req.ID, now)
		}
		return nil
	})
	if err != nil {
		return nil, wrapLifecycleErr("SubmitResponse", err)
	}

	responsesSubmitted.Inc()
	requestTransitions.WithLabelValues(string(models.RequestResponded)).Inc()
	m.publish(ctx, Event{
		Type:       EventRequestResponded,
		RequestID:  requestID,
		ResponseID: resp.ID,
		BusinessID: resp.BusinessID,
		OccurredAt: now,
	})
	m.logger.Info().
		Str("request_id", requestID).
		Str("response_id", resp.ID).
		Uint("business_id", resp.BusinessID).
		Msg("Offer submitted")

	return &resp, nil
}

// AcceptResponse accepts one offer, rejects every PENDING sibling and locks
// the request, all in one transaction. The request update is conditioned on
// RESPONDED, so of two concurrent accepts only one commits.
func (m *OfferManager) AcceptResponse(ctx context.Context, requestID, responseID string) (*models.ServiceRequest, error) {
	now := m.clock.Now()
	var accepted *models.ServiceRequest

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, resp, err := loadRequestAndResponse(tx, requestID, responseID)
		if err != nil {
			return err
		}
		if req.Status != models.RequestResponded {
			return requestStateError("accept an offer on", req, false)
		}
		if req.IsExpiredAt(now) {
			return requestStateError("accept an offer on", req, true)
		}
		if resp.Status != models.ResponsePending {
			return responseStateError("accept", resp)
		}

		res := tx.Model(&models.ServiceRequest{}).
			Where("id = ? AND status = ? AND expires_at > ?", req.ID, models.RequestResponded, now).
			Updates(map[string]interface{}{
				"status":               models.RequestAccepted,
				"accepted_response_id": resp.ID,
				"updated_at":           now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return m.conflict(tx, "accept an offer on", req.ID, now)
		}

		res = tx.Model(&models.ServiceRequestResponse{}).
			Where("id = ? AND service_request_id = ? AND status = ?", resp.ID, req.ID, models.ResponsePending).
			Updates(map[string]interface{}{"status": models.ResponseAccepted, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			resp.Status = models.ResponseRejected
			return responseStateError("accept", resp)
		}

		err = tx.Model(&models.ServiceRequestResponse{}).
			Where("service_request_id = ? AND id <> ? AND status = ?", req.ID, resp.ID, models.ResponsePending).
			Updates(map[string]interface{}{"status": models.ResponseRejected, "updated_at": now}).Error
		if err != nil {
			return err
		}

		accepted, err = loadRequestWithResponses(tx, req.ID)
		return err
	})
	if err != nil {
		return nil, wrapLifecycleErr("AcceptResponse", err)
	}

	requestTransitions.WithLabelValues(string(models.RequestAccepted)).Inc()
	m.publish(ctx, Event{Type: EventResponseAccepted, RequestID: requestID, ResponseID: responseID, OccurredAt: now})
	m.logger.Info().Str("request_id", requestID).Str("response_id", responseID).Msg("Offer accepted")

	return accepted, nil
}

// RejectResponse rejects a single PENDING offer. Siblings are untouched and
// the request stays RESPONDED even when no pending offer remains.
func (m *OfferManager) RejectResponse(ctx context.Context, requestID, responseID string) (*models.ServiceRequestResponse, error) {
	now := m.clock.Now()
	var rejected models.ServiceRequestResponse

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, resp, err := loadRequestAndResponse(tx, requestID, responseID)
		if err != nil {
			return err
		}
		if req.Status != models.RequestResponded {
			return requestStateError("reject an offer on", req, false)
		}
		if resp.Status != models.ResponsePending {
			return responseStateError("reject", resp)
		}

		stillResponded := tx.Model(&models.ServiceRequest{}).
			Select("id").
			Where("id = ? AND status = ?", req.ID, models.RequestResponded)
		res := tx.Model(&models.ServiceRequestResponse{}).
			Where("id = ? AND status = ? AND service_request_id IN (?)", resp.ID, models.ResponsePending, stillResponded).
			Updates(map[string]interface{}{"status": models.ResponseRejected, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			rejectedTransitions.WithLabelValues("reject").Inc()
			return responseStateError("reject", resp)
		}

		return tx.First(&rejected, "id = ?", resp.ID).Error
	})
	if err != nil {
		return nil, wrapLifecycleErr("RejectResponse", err)
	}

	m.publish(ctx, Event{
		Type:       EventResponseRejected,
		RequestID:  requestID,
		ResponseID: responseID,
		BusinessID: rejected.BusinessID,
		OccurredAt: now,
	})
	m.logger.Info().Str("request_id", requestID).Str("response_id", responseID).Msg("Offer rejected")

	return &rejected, nil
}

// CancelRequest moves an open request to CANCELLED. Its offers keep their
// data and status but can no longer be acted on.
func (m *OfferManager) CancelRequest(ctx context.Context, requestID string) (*models.ServiceRequest, error) {
	return m.transition(ctx, "cancel", requestID, models.OpenRequestStatuses, models.RequestCancelled, EventRequestCancelled)
}

// CompleteRequest marks an ACCEPTED request as done
func (m *OfferManager) CompleteRequest(ctx context.Context, requestID string) (*models.ServiceRequest, error) {
	return m.transition(ctx, "complete", requestID, []models.RequestStatus{models.RequestAccepted}, models.RequestCompleted, EventRequestCompleted)
}

// GetResponse loads one offer
func (m *OfferManager) GetResponse(ctx context.Context, responseID string) (*models.ServiceRequestResponse, error) {
	var resp models.ServiceRequestResponse
	err := m.db.WithContext(ctx).First(&resp, "id = ?", responseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "response", ID: responseID}
	}
	if err != nil {
		return nil, fmt.Errorf("services.OfferManager.GetResponse: %w", err)
	}
	return &resp, nil
}

func (m *OfferManager) transition(ctx context.Context, op, requestID string, from []models.RequestStatus, to models.RequestStatus, evtType EventType) (*models.ServiceRequest, error) {
	now := m.clock.Now()
	var updated *models.ServiceRequest

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := loadRequest(tx, requestID)
		if err != nil {
			return err
		}
		if !req.Status.CanTransitionTo(to) {
			return requestStateError(op, req, false)
		}

		values := map[string]interface{}{"status": to, "updated_at": now}
		if to == models.RequestCompleted {
			values["completed_at"] = now
		}
		res := tx.Model(&models.ServiceRequest{}).
			Where("id = ? AND status IN ?", req.ID, from).
			Updates(values)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return m.conflict(tx, op, req.ID, now)
		}

		updated, err = loadRequestWithResponses(tx, req.ID)
		return err
	})
	if err != nil {
		return nil, wrapLifecycleErr(op, err)
	}

	requestTransitions.WithLabelValues(string(to)).Inc()
	m.publish(ctx, Event{Type: evtType, RequestID: requestID, OccurredAt: now})
	m.logger.Info().Str("request_id", requestID).Str("status", string(to)).Msg("Service request updated")

	return updated, nil
}

// conflict re-reads a request whose conditional update matched nothing and
// reports the state that beat us
func (m *OfferManager) conflict(tx *gorm.DB, op, requestID string, now time.Time) error {
	rejectedTransitions.WithLabelValues(op).Inc()
	req, err := loadRequest(tx, requestID)
	if err != nil {
		return err
	}
	return requestStateError(op, req, req.Status.IsOpen() && req.IsExpiredAt(now))
}

func (m *OfferManager) publish(ctx context.Context, evt Event) {
	if err := m.events.Publish(ctx, evt); err != nil {
		m.logger.Warn().Err(err).Str("event", string(evt.Type)).Msg("Failed to publish event")
	}
}

func loadRequest(tx *gorm.DB, id string) (*models.ServiceRequest, error) {
	var req models.ServiceRequest
	if err := tx.First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "service request", ID: id}
		}
		return nil, err
	}
	return &req, nil
}

func loadRequestWithResponses(tx *gorm.DB, id string) (*models.ServiceRequest, error) {
	var req models.ServiceRequest
	if err := withResponses(tx).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// loadRequestAndResponse loads both rows and checks the response belongs to the request
func loadRequestAndResponse(tx *gorm.DB, requestID, responseID string) (*models.ServiceRequest, *models.ServiceRequestResponse, error) {
	req, err := loadRequest(tx, requestID)
	if err != nil {
		return nil, nil, err
	}

	var resp models.ServiceRequestResponse
	if err := tx.First(&resp, "id = ?", responseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, &NotFoundError{Resource: "response", ID: responseID}
		}
		return nil, nil, err
	}
	if resp.ServiceRequestID != req.ID {
		return nil, nil, &InvalidStateError{
			Resource:  "response",
			ID:        resp.ID,
			Operation: "act on",
			Current:   "belongs to another service request",
		}
	}
	return req, &resp, nil
}

// wrapLifecycleErr passes domain errors through untouched and wraps storage errors
func wrapLifecycleErr(op string, err error) error {
	var (
		verr  *ValidationError
		nf    *NotFoundError
		state *InvalidStateError
		dup   *DuplicateResponseError
		ne    *NotEligibleError
	)
	if errors.As(err, &verr) || errors.As(err, &nf) || errors.As(err, &state) ||
		errors.As(err, &dup) || errors.As(err, &ne) {
		return err
	}
	return fmt.Errorf("services.OfferManager.%s: %w", op, err)
}
