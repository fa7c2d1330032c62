package controllers

import (
	"net/http"
	"testing"

	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListDashboardRequests(t *testing.T) {
	env := newTestEnv(t, nil)
	business := env.createBusiness(t, "auth0|biz", "istanbul", "cleaning")
	rival := env.createBusiness(t, "auth0|rival", "istanbul", "cleaning")

	open := env.createRequest(t, "+905550000001")
	responded := env.createRequest(t, "+905550000002")
	accepted := env.createRequest(t, "+905550000003")
	takenByRival := env.createRequest(t, "+905550000004")

	env.submit(t, responded.ID, business.ID)
	offer := env.submit(t, accepted.ID, business.ID)
	_, err := env.svc.Offers.AcceptResponse(t.Context(), accepted.ID, offer.ID)
	require.NoError(t, err)
	rivalOffer := env.submit(t, takenByRival.ID, rival.ID)
	_, err = env.svc.Offers.AcceptResponse(t.Context(), takenByRival.ID, rivalOffer.ID)
	require.NoError(t, err)

	router := setupTestRouter()
	router.GET("/dashboard", mockAuthMiddleware("auth0|biz", "business", "token"), env.h.ListDashboardRequests)

	tests := []struct {
		query       string
		expectedIDs []string
	}{
		{"", []string{open.ID}},
		{"?filter=active", []string{open.ID}},
		{"?filter=responded", []string{responded.ID}},
		{"?filter=accepted", []string{accepted.ID}},
	}

	for _, tt := range tests {
		t.Run("filter"+tt.query, func(t *testing.T) {
			w := performRequest(router, http.MethodGet, "/dashboard"+tt.query, nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			response := decodeResponse(t, w)
			data := response["data"].([]interface{})
			ids := make([]string, 0, len(data))
			for _, item := range data {
				ids = append(ids, item.(map[string]interface{})["id"].(string))
			}
			assert.Equal(t, tt.expectedIDs, ids)
			assert.Equal(t, float64(len(tt.expectedIDs)), response["count"])
		})
	}

	t.Run("unknown filter", func(t *testing.T) {
		w := performRequest(router, http.MethodGet, "/dashboard?filter=everything", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
	})
}

func TestWithdrawResponse(t *testing.T) {
	env := newTestEnv(t, nil)
	business := env.createBusiness(t, "auth0|biz", "istanbul", "cleaning")
	rival := env.createBusiness(t, "auth0|rival", "istanbul", "cleaning")
	req := env.createRequest(t, "+905550000001")
	own := env.submit(t, req.ID, business.ID)
	theirs := env.submit(t, req.ID, rival.ID)

	router := setupTestRouter()
	router.PUT("/requests/:id/responses/:responseId/reject", mockAuthMiddleware("auth0|biz", "business", "token"), env.h.WithdrawResponse)

	w := performRequest(router, http.MethodPut, "/requests/"+req.ID+"/responses/"+theirs.ID+"/reject", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "Another business's offer is hidden")

	w = performRequest(router, http.MethodPut, "/requests/"+req.ID+"/responses/"+own.ID+"/reject", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "REJECTED", data["status"])

	w = performRequest(router, http.MethodPut, "/requests/"+req.ID+"/responses/"+own.ID+"/reject", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "A rejected offer cannot be rejected again")
}

func TestCompleteServiceRequest(t *testing.T) {
	env := newTestEnv(t, nil)
	business := env.createBusiness(t, "auth0|biz", "istanbul", "cleaning")
	rival := env.createBusiness(t, "auth0|rival", "istanbul", "cleaning")
	req := env.createRequest(t, "+905550000001")
	offer := env.submit(t, req.ID, business.ID)
	env.submit(t, req.ID, rival.ID)

	router := setupTestRouter()
	router.PUT("/biz/:id/complete", mockAuthMiddleware("auth0|biz", "business", "token"), env.h.CompleteServiceRequest)
	router.PUT("/rival/:id/complete", mockAuthMiddleware("auth0|rival", "business", "token"), env.h.CompleteServiceRequest)

	w := performRequest(router, http.MethodPut, "/biz/"+req.ID+"/complete", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "Nothing has been accepted yet")

	_, err := env.svc.Offers.AcceptResponse(t.Context(), req.ID, offer.ID)
	require.NoError(t, err)

	w = performRequest(router, http.MethodPut, "/rival/"+req.ID+"/complete", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = performRequest(router, http.MethodPut, "/biz/"+req.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.Equal(t, string(models.RequestCompleted), data["status"])
	assert.NotNil(t, data["completedAt"])
}
