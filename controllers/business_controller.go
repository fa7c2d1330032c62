package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/kendall-kelly/servicehub-api/services"
)

// BusinessRequest is the body of POST and PUT /businesses/me
type BusinessRequest struct {
	Name               string     `json:"name"`
	Category           string     `json:"category"`
	ProvinceID         flexibleID `json:"provinceId"`
	DistrictID         flexibleID `json:"districtId"`
	ServesAllProvinces *bool      `json:"servesAllProvinces"`
	Phone              *string    `json:"phone"`
}

// CreateBusiness handles POST /api/v1/businesses - registers the caller's business
func (h *Handler) CreateBusiness(c *gin.Context) {
	var req BusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", err.Error())
		return
	}

	fields := map[string]string{}
	if strings.TrimSpace(req.Name) == "" {
		fields["name"] = "is required"
	}
	if strings.TrimSpace(req.Category) == "" {
		fields["category"] = "is required"
	}
	if req.ProvinceID == "" {
		fields["provinceId"] = "is required"
	}
	if req.Phone != nil && !services.ValidPhone(services.NormalizePhone(*req.Phone)) {
		fields["phone"] = "must be 7 to 15 digits, optionally starting with +"
	}
	if len(fields) > 0 {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", fields)
		return
	}

	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	business := models.Business{
		OwnerID:  user.ID,
		Name:     strings.TrimSpace(req.Name),
		Category: strings.TrimSpace(req.Category),
		Province: string(req.ProvinceID),
		District: req.DistrictID.ptr(),
	}
	if req.ServesAllProvinces != nil {
		business.ServesAllProvinces = *req.ServesAllProvinces
	}
	if req.Phone != nil {
		phone := services.NormalizePhone(*req.Phone)
		business.Phone = &phone
	}

	if err := h.db.WithContext(c.Request.Context()).Create(&business).Error; err != nil {
		if isDuplicate(err) {
			respondError(c, http.StatusConflict, "BUSINESS_EXISTS", "This user already has a business", nil)
			return
		}
		h.respondServiceError(c, err)
		return
	}

	h.logger.Info().Uint("business_id", business.ID).Uint("owner_id", user.ID).Msg("Business registered")
	respondData(c, http.StatusCreated, business)
}

// GetMyBusiness handles GET /api/v1/businesses/me
func (h *Handler) GetMyBusiness(c *gin.Context) {
	business, ok := h.currentBusiness(c)
	if !ok {
		return
	}
	respondData(c, http.StatusOK, business)
}

// UpdateMyBusiness handles PUT /api/v1/businesses/me. Only provided fields change.
func (h *Handler) UpdateMyBusiness(c *gin.Context) {
	var req BusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", err.Error())
		return
	}

	business, ok := h.currentBusiness(c)
	if !ok {
		return
	}

	updates := make(map[string]interface{})
	if name := strings.TrimSpace(req.Name); name != "" {
		updates["name"] = name
	}
	if category := strings.TrimSpace(req.Category); category != "" {
		updates["category"] = category
	}
	if req.ProvinceID != "" {
		updates["province"] = string(req.ProvinceID)
	}
	if req.DistrictID != "" {
		updates["district"] = string(req.DistrictID)
	}
	if req.ServesAllProvinces != nil {
		updates["serves_all_provinces"] = *req.ServesAllProvinces
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
		respondData(c, http.StatusOK, business)
		return
	}

	db := h.db.WithContext(c.Request.Context())
	if err := db.Model(business).Updates(updates).Error; err != nil {
		h.respondServiceError(c, err)
		return
	}
	if err := db.First(business, business.ID).Error; err != nil {
		h.respondServiceError(c, err)
		return
	}

	respondData(c, http.StatusOK, business)
}
