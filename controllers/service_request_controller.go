package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/kendall-kelly/servicehub-api/services"
)

// CreateServiceRequestBody is the public request form
type CreateServiceRequestBody struct {
	CustomerName   string     `json:"customerName"`
	CustomerPhone  string     `json:"customerPhone"`
	CustomerEmail  *string    `json:"customerEmail"`
	ServiceName    string     `json:"serviceName"`
	ServiceDetails string     `json:"serviceDetails"`
	Category       *string    `json:"category"`
	Budget         *float64   `json:"budget"`
	Urgency        string     `json:"urgency"`
	ProvinceID     flexibleID `json:"provinceId"`
	DistrictID     flexibleID `json:"districtId"`
	Address        *string    `json:"address"`
	PreferredDate  *string    `json:"preferredDate"`
	PreferredTime  *string    `json:"preferredTime"`
	FlexibleTiming bool       `json:"flexibleTiming"`
}

// SubmitResponseBody is a business offer
type SubmitResponseBody struct {
	BusinessID    uint     `json:"businessId"`
	Message       string   `json:"message"`
	ProposedPrice *float64 `json:"proposedPrice"`
	ProposedDate  *string  `json:"proposedDate"`
	ProposedTime  *string  `json:"proposedTime"`
	Availability  *string  `json:"availability"`
}

type createdServiceRequest struct {
	*models.ServiceRequest
	LookupToken string `json:"lookupToken"`
}

// CreateServiceRequest handles POST /api/v1/service-requests. No sign-in is
// needed; the returned lookup token lets the customer find the request again.
func (h *Handler) CreateServiceRequest(c *gin.Context) {
	var body CreateServiceRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", err.Error())
		return
	}

	preferredDate, err := parseDate(body.PreferredDate)
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data",
			map[string]string{"preferredDate": err.Error()})
		return
	}

	req, err := h.svc.Requests.Create(c.Request.Context(), services.CreateRequestInput{
		CustomerName:   body.CustomerName,
		CustomerPhone:  body.CustomerPhone,
		CustomerEmail:  body.CustomerEmail,
		ServiceName:    body.ServiceName,
		ServiceDetails: body.ServiceDetails,
		Category:       body.Category,
		Budget:         body.Budget,
		Urgency:        models.Urgency(body.Urgency),
		Province:       string(body.ProvinceID),
		District:       body.DistrictID.ptr(),
		Address:        body.Address,
		PreferredDate:  preferredDate,
		PreferredTime:  body.PreferredTime,
		FlexibleTiming: body.FlexibleTiming,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	token, err := h.svc.Tokens.Issue(services.ContactIdentity{
		Phone: req.CustomerPhone,
		Email: deref(req.CustomerEmail),
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	respondData(c, http.StatusCreated, createdServiceRequest{ServiceRequest: req, LookupToken: token})
}

// SubmitServiceRequestResponse handles POST /api/v1/service-requests/:id/responses.
// The offer is always made on behalf of the caller's own business.
func (h *Handler) SubmitServiceRequestResponse(c *gin.Context) {
	var body SubmitResponseBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", err.Error())
		return
	}

	proposedDate, err := parseDate(body.ProposedDate)
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data",
			map[string]string{"proposedDate": err.Error()})
		return
	}

	business, ok := h.currentBusiness(c)
	if !ok {
		return
	}
	if body.BusinessID != 0 && body.BusinessID != business.ID {
		respondError(c, http.StatusForbidden, "FORBIDDEN", "You can only respond on behalf of your own business", nil)
		return
	}

	resp, err := h.svc.Offers.SubmitResponse(c.Request.Context(), c.Param("id"), services.SubmitResponseInput{
		BusinessID:    business.ID,
		Message:       body.Message,
		ProposedPrice: body.ProposedPrice,
		ProposedDate:  proposedDate,
		ProposedTime:  body.ProposedTime,
		Availability:  body.Availability,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	respondData(c, http.StatusCreated, resp)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
