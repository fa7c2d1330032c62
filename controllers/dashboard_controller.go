package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicehub-api/services"
)

// ListDashboardRequests handles GET /api/v1/dashboard/service-requests?filter=
// It lists what the calling business can act on, defaulting to the active filter.
func (h *Handler) ListDashboardRequests(c *gin.Context) {
	filter := services.DashboardFilter(c.DefaultQuery("filter", string(services.FilterActive)))

	business, ok := h.currentBusiness(c)
	if !ok {
		return
	}

	requests, err := h.svc.Matcher.Dashboard(c.Request.Context(), business, filter)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    requests,
		"filter":  filter,
		"count":   len(requests),
	})
}

// WithdrawResponse handles PUT /api/v1/dashboard/service-requests/:id/responses/:responseId/reject
func (h *Handler) WithdrawResponse(c *gin.Context) {
	business, ok := h.currentBusiness(c)
	if !ok {
		return
	}

	requestID, responseID := c.Param("id"), c.Param("responseId")
	resp, err := h.svc.Offers.GetResponse(c.Request.Context(), responseID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	// other businesses' offers are reported as missing
	if resp.BusinessID != business.ID || resp.ServiceRequestID != requestID {
		h.respondServiceError(c, &services.NotFoundError{Resource: "response", ID: responseID})
		return
	}

	resp, err = h.svc.Offers.RejectResponse(c.Request.Context(), requestID, responseID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, resp)
}

// CompleteServiceRequest handles PUT /api/v1/dashboard/service-requests/:id/complete.
// Only the business whose offer was accepted may complete the job.
func (h *Handler) CompleteServiceRequest(c *gin.Context) {
	business, ok := h.currentBusiness(c)
	if !ok {
		return
	}

	req, err := h.svc.Requests.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	if req.AcceptedResponseID != nil {
		for _, resp := range req.Responses {
			if resp.ID == *req.AcceptedResponseID && resp.BusinessID != business.ID {
				respondError(c, http.StatusForbidden, "FORBIDDEN", "Only the accepted business can complete this request", nil)
				return
			}
		}
	}

	completed, err := h.svc.Offers.CompleteRequest(c.Request.Context(), req.ID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, completed)
}
