package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicehub-api/models"
)

// CloseDrawRequest is the body of POST /admin/raffle/draws
type CloseDrawRequest struct {
	Year   int      `json:"year" binding:"required"`
	Month  int      `json:"month" binding:"required"`
	Prizes []string `json:"prizes" binding:"required,min=1,dive,required"`
}

// ExpireServiceRequests handles POST /api/v1/admin/service-requests/expire -
// runs the expiry sweep now
func (h *Handler) ExpireServiceRequests(c *gin.Context) {
	count, err := h.svc.Requests.MarkExpired(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"expired": count})
}

// CloseRaffleDraw handles POST /api/v1/admin/raffle/draws
func (h *Handler) CloseRaffleDraw(c *gin.Context) {
	var req CloseDrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", err.Error())
		return
	}

	period := models.Period{Year: req.Year, Month: time.Month(req.Month)}
	if err := period.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", err.Error())
		return
	}

	result, err := h.svc.Raffle.CloseDraw(c.Request.Context(), period, req.Prizes, h.newSelector())
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, result)
}

// GetRaffleDraw handles GET /api/v1/admin/raffle/draws/:year/:month
func (h *Handler) GetRaffleDraw(c *gin.Context) {
	year, yerr := strconv.Atoi(c.Param("year"))
	month, merr := strconv.Atoi(c.Param("month"))
	period := models.Period{Year: year, Month: time.Month(month)}
	if yerr != nil || merr != nil || period.Validate() != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PERIOD", "Year and month must form a valid period", nil)
		return
	}

	draw, err := h.svc.Raffle.GetDraw(c.Request.Context(), period)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	data := gin.H{"draw": draw}
	if draw.ArchiveKey != nil && h.svc.Archive != nil {
		url, err := h.svc.Archive.ReportURL(c.Request.Context(), *draw.ArchiveKey)
		if err != nil {
			h.logger.Warn().Err(err).Str("key", *draw.ArchiveKey).Msg("Could not presign draw report")
		} else {
			data["reportUrl"] = url
		}
	}
	respondData(c, http.StatusOK, data)
}
