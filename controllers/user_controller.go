package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicehub-api/middleware"
	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/kendall-kelly/servicehub-api/services"
)

// UpdateUserRequest represents the request body for updating a user profile
type UpdateUserRequest struct {
	Name  string  `json:"name" binding:"omitempty"`
	Email string  `json:"email" binding:"omitempty,email"`
	Phone *string `json:"phone" binding:"omitempty"`
}

// CreateUser handles POST /api/v1/users - creates a new user from Auth0 userinfo
// This endpoint requires authentication and fetches user data from Auth0's /userinfo endpoint
func (h *Handler) CreateUser(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user ID from token", nil)
		return
	}

	accessToken, err := middleware.GetAccessToken(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "MISSING_TOKEN", "Access token not found", nil)
		return
	}

	userInfo, err := h.svc.Auth0.GetUserInfo(c.Request.Context(), accessToken)
	if err != nil {
		h.logger.Warn().Err(err).Str("auth0_id", auth0ID).Msg("Auth0 userinfo lookup failed")
		respondError(c, http.StatusInternalServerError, "AUTH0_ERROR", "Failed to fetch user information from Auth0", nil)
		return
	}

	if userInfo.Email == "" {
		respondError(c, http.StatusBadRequest, "MISSING_EMAIL", "Email not provided by Auth0", nil)
		return
	}
	if userInfo.Name == "" {
		respondError(c, http.StatusBadRequest, "MISSING_NAME", "Name not provided by Auth0", nil)
		return
	}

	role := models.RoleCustomer
	if tokenRole, err := middleware.GetRole(c); err == nil {
		role = tokenRole
	}

	user := models.User{
		Auth0ID: auth0ID,
		Name:    userInfo.Name,
		Email:   services.NormalizeEmail(userInfo.Email),
		Role:    role,
	}
	if userInfo.Phone != "" {
		phone := services.NormalizePhone(userInfo.Phone)
		user.Phone = &phone
	}

	if err := h.db.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		if isDuplicate(err) {
			respondError(c, http.StatusConflict, "USER_EXISTS", "A user with this Auth0 ID or email already exists", nil)
			return
		}
		h.respondServiceError(c, err)
		return
	}

	respondData(c, http.StatusCreated, user)
}

// GetMyProfile handles GET /api/v1/users/me - gets current user's profile
func (h *Handler) GetMyProfile(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	respondData(c, http.StatusOK, user)
}

// UpdateMyProfile handles PUT /api/v1/users/me - updates current user's profile
func (h *Handler) UpdateMyProfile(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", err.Error())
		return
	}

	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	updates := make(map[string]interface{})
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Email != "" {
		updates["email"] = services.NormalizeEmail(req.Email)
	}
	if req.Phone != nil {
		phone := services.NormalizePhone(*req.Phone)
		if !services.ValidPhone(phone) {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data",
				map[string]string{"phone": "must be 7 to 15 digits, optionally starting with +"})
			return
		}
		updates["phone"] = phone
	}

	if len(updates) == 0 {
		respondData(c, http.StatusOK, user)
		return
	}

	db := h.db.WithContext(c.Request.Context())
	if err := db.Model(user).Updates(updates).Error; err != nil {
		if isDuplicate(err) {
			respondError(c, http.StatusConflict, "EMAIL_EXISTS", "A user with this email already exists", nil)
			return
		}
		h.respondServiceError(c, err)
		return
	}

	if err := db.First(user, user.ID).Error; err != nil {
		h.respondServiceError(c, err)
		return
	}

	respondData(c, http.StatusOK, user)
}

func isDuplicate(err error) bool {
	return services.IsUniqueViolation(err)
}
