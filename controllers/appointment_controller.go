package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicehub-api/middleware"
	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/kendall-kelly/servicehub-api/services"
)

// BookAppointmentRequest is the body of POST /appointments
type BookAppointmentRequest struct {
	BusinessID  uint      `json:"businessId" binding:"required"`
	ServiceName string    `json:"serviceName" binding:"required"`
	ScheduledAt time.Time `json:"scheduledAt" binding:"required"`
}

// BookAppointment handles POST /api/v1/appointments - customer books a business
func (h *Handler) BookAppointment(c *gin.Context) {
	var req BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", err.Error())
		return
	}

	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	appt, err := h.svc.Appointments.Book(c.Request.Context(), services.BookAppointmentInput{
		CustomerID:  user.ID,
		BusinessID:  req.BusinessID,
		ServiceName: req.ServiceName,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, appt)
}

// CompleteAppointment handles PUT /api/v1/appointments/:id/complete. A failed
// raffle credit does not undo the completion; it is retried through the
// redelivery hook.
func (h *Handler) CompleteAppointment(c *gin.Context) {
	id, ok := parseUintParam(c.Param("id"))
	if !ok {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid appointment ID", nil)
		return
	}

	business, ok := h.currentBusiness(c)
	if !ok {
		return
	}

	appt, credited, err := h.svc.Appointments.Complete(c.Request.Context(), id, business.ID)
	if err != nil && appt == nil {
		h.respondServiceError(c, err)
		return
	}
	if err != nil {
		h.logger.Warn().Err(err).
			Uint("appointment_id", appt.ID).
			Str("request_id", middleware.GetRequestID(c)).
			Msg("Raffle credit failed, awaiting redelivery")
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"data":           appt,
		"raffleCredited": credited,
	})
}

// RedeliverAppointmentCompleted handles POST /api/v1/internal/appointments/:id/completed.
// Crediting is idempotent, so the hook can be called any number of times.
func (h *Handler) RedeliverAppointmentCompleted(c *gin.Context) {
	id, ok := parseUintParam(c.Param("id"))
	if !ok {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid appointment ID", nil)
		return
	}

	credited, err := h.svc.Appointments.Redeliver(c.Request.Context(), id)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{
		"appointmentId": id,
		"credited":      credited,
	})
}

// ListAppointments handles GET /api/v1/admin/appointments?status=
func (h *Handler) ListAppointments(c *gin.Context) {
	status := models.AppointmentStatus(c.Query("status"))

	appointments, err := h.svc.Appointments.List(c.Request.Context(), status)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    appointments,
		"count":   len(appointments),
	})
}
