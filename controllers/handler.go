package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicehub-api/config"
	"github.com/kendall-kelly/servicehub-api/middleware"
	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/kendall-kelly/servicehub-api/services"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Handler holds what the HTTP handlers need
type Handler struct {
	db     *gorm.DB
	cfg    *config.Config
	svc    *services.Services
	logger zerolog.Logger

	newSelector func() services.WinnerSelector
}

// NewHandler creates a Handler
func NewHandler(db *gorm.DB, cfg *config.Config, svc *services.Services, logger zerolog.Logger) *Handler {
	h := &Handler{db: db, cfg: cfg, svc: svc, logger: logger}
	h.newSelector = func() services.WinnerSelector {
		return services.NewRandomSelector()
	}
	return h
}

// SetWinnerSelector replaces how raffle winners are drawn
func (h *Handler) SetWinnerSelector(fn func() services.WinnerSelector) {
	h.newSelector = fn
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondError(c *gin.Context, status int, code, message string, details interface{}) {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if details != nil {
		body["details"] = details
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   body,
	})
}

// respondServiceError maps the service error taxonomy onto HTTP
func (h *Handler) respondServiceError(c *gin.Context, err error) {
	var (
		verr  *services.ValidationError
		nf    *services.NotFoundError
		state *services.InvalidStateError
		dup   *services.DuplicateResponseError
		ins   *services.InsufficientRightsError
		ne    *services.NotEligibleError
	)

	switch {
	case errors.As(err, &verr):
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", verr.Fields)
	case errors.As(err, &nf):
		respondError(c, http.StatusNotFound, "NOT_FOUND", nf.Error(), nil)
	case errors.As(err, &state):
		status := http.StatusConflict
		if state.Expired {
			status = http.StatusGone
		}
		respondError(c, status, "INVALID_STATE", state.Error(), gin.H{
			"currentStatus": state.Current,
			"expired":       state.Expired,
		})
	case errors.As(err, &dup):
		respondError(c, http.StatusConflict, "DUPLICATE_RESPONSE", dup.Error(), nil)
	case errors.As(err, &ins):
		respondError(c, http.StatusBadRequest, "INSUFFICIENT_RIGHTS", ins.Error(), gin.H{
			"availableRights": ins.Available,
		})
	case errors.As(err, &ne):
		respondError(c, http.StatusForbidden, "NOT_ELIGIBLE", ne.Error(), nil)
	default:
		h.logger.Error().Err(err).
			Str("request_id", middleware.GetRequestID(c)).
			Str("path", c.Request.URL.Path).
			Msg("Request failed")
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "An internal error occurred", nil)
	}
}

// currentUser loads the caller's profile. It writes the error response and
// returns false when there is none.
func (h *Handler) currentUser(c *gin.Context) (*models.User, bool) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information", nil)
		return nil, false
	}

	var user models.User
	if err := h.db.WithContext(c.Request.Context()).Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found. Please create a profile first.", nil)
			return nil, false
		}
		h.respondServiceError(c, err)
		return nil, false
	}
	return &user, true
}

// currentBusiness loads the business owned by the caller
func (h *Handler) currentBusiness(c *gin.Context) (*models.Business, bool) {
	user, ok := h.currentUser(c)
	if !ok {
		return nil, false
	}

	var business models.Business
	if err := h.db.WithContext(c.Request.Context()).Where("owner_id = ?", user.ID).First(&business).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "BUSINESS_NOT_FOUND", "No business registered for this user", nil)
			return nil, false
		}
		h.respondServiceError(c, err)
		return nil, false
	}
	return &business, true
}
