package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ParticipateRequest is the body of POST /raffle/participate
type ParticipateRequest struct {
	RightsToUse int `json:"rightsToUse"`
}

// GetRaffleData handles GET /api/v1/raffle/data for the signed-in customer
// and the current period
func (h *Handler) GetRaffleData(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	status, err := h.svc.Raffle.GetStatus(c.Request.Context(), user.ID, h.svc.CurrentPeriod())
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, status)
}

// ParticipateInRaffle handles POST /api/v1/raffle/participate
func (h *Handler) ParticipateInRaffle(c *gin.Context) {
	var req ParticipateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", err.Error())
		return
	}

	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	status, err := h.svc.Raffle.Participate(c.Request.Context(), user.ID, h.svc.CurrentPeriod(), req.RightsToUse)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, status)
}
