package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/kendall-kelly/servicehub-api/services"
)

// LookupTokenHeader carries the token returned when a request was created
const LookupTokenHeader = "X-Lookup-Token"

// Actions accepted by PUT /my-requests/:id
const (
	ActionAcceptOffer = "accept_offer"
	ActionRejectOffer = "reject_offer"
	ActionCancel      = "cancel"
)

// UpdateMyRequestBody is the body of PUT /my-requests/:id
type UpdateMyRequestBody struct {
	Action     string `json:"action" binding:"required"`
	ResponseID string `json:"responseId"`
}

// lookupIdentity works out which customer is asking. A lookup token wins;
// raw phone/email is accepted only while contact lookup is enabled.
func (h *Handler) lookupIdentity(c *gin.Context) (services.ContactIdentity, bool) {
	token := c.Query("token")
	if token == "" {
		token = c.GetHeader(LookupTokenHeader)
	}
	if token != "" {
		identity, err := h.svc.Tokens.Parse(token)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "INVALID_LOOKUP_TOKEN", "Lookup token is invalid or expired", nil)
			return services.ContactIdentity{}, false
		}
		return identity, true
	}

	phone := c.Query("phone")
	// an unescaped '+' in a query string decodes to a space
	if strings.HasPrefix(phone, " ") {
		phone = "+" + strings.TrimLeft(phone, " ")
	}
	identity := services.ContactIdentity{
		Phone: phone,
		Email: c.Query("email"),
	}.Normalized()
	if identity.IsZero() {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data",
			map[string]string{"token": "a lookup token or a phone/email is required"})
		return identity, false
	}
	if !h.cfg.AllowContactLookup {
		respondError(c, http.StatusUnauthorized, "LOOKUP_TOKEN_REQUIRED", "Requests can only be looked up with a lookup token", nil)
		return identity, false
	}
	if identity.Phone != "" && !services.ValidPhone(identity.Phone) {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data",
			map[string]string{"phone": "must be 7 to 15 digits, optionally starting with +"})
		return identity, false
	}
	return identity, true
}

// ListMyRequests handles GET /api/v1/my-requests
func (h *Handler) ListMyRequests(c *gin.Context) {
	identity, ok := h.lookupIdentity(c)
	if !ok {
		return
	}

	requests, err := h.svc.Requests.ListForCustomer(c.Request.Context(), identity)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    requests,
		"count":   len(requests),
	})
}

// GetMyRequest handles GET /api/v1/my-requests/:id. The response is what the
// customer had not seen yet; the offers are marked viewed afterwards.
func (h *Handler) GetMyRequest(c *gin.Context) {
	identity, ok := h.lookupIdentity(c)
	if !ok {
		return
	}

	req, err := h.ownedRequest(c, identity)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	if err := h.svc.Requests.MarkResponsesViewed(c.Request.Context(), req.ID); err != nil {
		h.respondServiceError(c, err)
		return
	}

	respondData(c, http.StatusOK, req)
}

// UpdateMyRequest handles PUT /api/v1/my-requests/:id
func (h *Handler) UpdateMyRequest(c *gin.Context) {
	var body UpdateMyRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", err.Error())
		return
	}
	action := strings.ToLower(strings.TrimSpace(body.Action))
	switch action {
	case ActionAcceptOffer, ActionRejectOffer:
		if body.ResponseID == "" {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data",
				map[string]string{"responseId": "is required for " + action})
			return
		}
	case ActionCancel:
	default:
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data",
			map[string]string{"action": "must be one of accept_offer, reject_offer, cancel"})
		return
	}

	identity, ok := h.lookupIdentity(c)
	if !ok {
		return
	}
	req, err := h.ownedRequest(c, identity)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	ctx := c.Request.Context()
	switch action {
	case ActionAcceptOffer:
		updated, err := h.svc.Offers.AcceptResponse(ctx, req.ID, body.ResponseID)
		if err != nil {
			h.respondServiceError(c, err)
			return
		}
		respondData(c, http.StatusOK, updated)
	case ActionRejectOffer:
		resp, err := h.svc.Offers.RejectResponse(ctx, req.ID, body.ResponseID)
		if err != nil {
			h.respondServiceError(c, err)
			return
		}
		respondData(c, http.StatusOK, resp)
	case ActionCancel:
		updated, err := h.svc.Offers.CancelRequest(ctx, req.ID)
		if err != nil {
			h.respondServiceError(c, err)
			return
		}
		respondData(c, http.StatusOK, updated)
	}
}

// ownedRequest loads :id and hides requests belonging to someone else
func (h *Handler) ownedRequest(c *gin.Context, identity services.ContactIdentity) (*models.ServiceRequest, error) {
	id := c.Param("id")
	req, err := h.svc.Requests.Get(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	if !identity.Owns(req) {
		return nil, &services.NotFoundError{Resource: "service request", ID: id}
	}
	return req, nil
}
