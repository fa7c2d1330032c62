package controllers

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/kendall-kelly/servicehub-api/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func myRequestsRouter(env *testEnv) http.Handler {
	router := setupTestRouter()
	router.GET("/my-requests", env.h.ListMyRequests)
	router.GET("/my-requests/:id", env.h.GetMyRequest)
	router.PUT("/my-requests/:id", env.h.UpdateMyRequest)
	return router
}

func (e *testEnv) lookupToken(t *testing.T, phone string) string {
	t.Helper()
	token, err := e.svc.Tokens.Issue(services.ContactIdentity{Phone: phone})
	require.NoError(t, err)
	return token
}

func TestListMyRequests(t *testing.T) {
	env := newTestEnv(t, nil)
	mine := env.createRequest(t, "+905551234567")
	env.createRequest(t, "+905559999999")
	router := myRequestsRouter(env)

	tests := []struct {
		name           string
		path           string
		headers        []string
		expectedStatus int
		expectedCount  int
		expectedCode   string
	}{
		{
			name:           "token in query",
			path:           "/my-requests?token=" + env.lookupToken(t, "+905551234567"),
			expectedStatus: http.StatusOK,
			expectedCount:  1,
		},
		{
			name:           "token in header",
			path:           "/my-requests",
			headers:        []string{LookupTokenHeader, env.lookupToken(t, "+905551234567")},
			expectedStatus: http.StatusOK,
			expectedCount:  1,
		},
		{
			name:           "escaped phone",
			path:           "/my-requests?phone=" + url.QueryEscape("+90 555 123 45 67"),
			expectedStatus: http.StatusOK,
			expectedCount:  1,
		},
		{
			name:           "unescaped plus in phone",
			path:           "/my-requests?phone=+905551234567",
			expectedStatus: http.StatusOK,
			expectedCount:  1,
		},
		{
			name:           "unknown phone returns nothing",
			path:           "/my-requests?phone=05550000000",
			expectedStatus: http.StatusOK,
			expectedCount:  0,
		},
		{
			name:           "no identity",
			path:           "/my-requests",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
		{
			name:           "tampered token",
			path:           "/my-requests?token=not.a.token",
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "INVALID_LOOKUP_TOKEN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(router, http.MethodGet, tt.path, nil, tt.headers...)
			require.Equal(t, tt.expectedStatus, w.Code, w.Body.String())

			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, errorCode(t, w))
				return
			}
			response := decodeResponse(t, w)
			data := response["data"].([]interface{})
			require.Len(t, data, tt.expectedCount)
			if tt.expectedCount == 1 {
				assert.Equal(t, mine.ID, data[0].(map[string]interface{})["id"])
			}
		})
	}
}

func TestListMyRequests_ContactLookupDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.AllowContactLookup = false
	env := newTestEnvWithConfig(t, cfg, nil)
	env.createRequest(t, "+905551234567")
	router := myRequestsRouter(env)

	w := performRequest(router, http.MethodGet, "/my-requests?phone=%2B905551234567", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "LOOKUP_TOKEN_REQUIRED", errorCode(t, w))

	w = performRequest(router, http.MethodGet, "/my-requests?token="+env.lookupToken(t, "+905551234567"), nil)
	assert.Equal(t, http.StatusOK, w.Code, "Tokens keep working")
}

func TestGetMyRequest(t *testing.T) {
	env := newTestEnv(t, nil)
	business := env.createBusiness(t, "auth0|biz", "istanbul", "cleaning")
	req := env.createRequest(t, "+905551234567")
	offer := env.submit(t, req.ID, business.ID)
	router := myRequestsRouter(env)

	w := performRequest(router, http.MethodGet, "/my-requests/"+req.ID+"?phone=05559999999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "Someone else's request looks missing")

	w = performRequest(router, http.MethodGet, "/my-requests/"+req.ID, nil, LookupTokenHeader, env.lookupToken(t, "+905551234567"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := decodeResponse(t, w)["data"].(map[string]interface{})
	responses := data["responses"].([]interface{})
	require.Len(t, responses, 1)
	first := responses[0].(map[string]interface{})
	assert.Equal(t, offer.ID, first["id"])
	assert.Equal(t, false, first["customerViewed"], "The customer sees the offer as new once")

	var stored models.ServiceRequestResponse
	require.NoError(t, env.db.First(&stored, "id = ?", offer.ID).Error)
	assert.True(t, stored.CustomerViewed)
}

func TestUpdateMyRequest(t *testing.T) {
	setup := func(t *testing.T) (*testEnv, http.Handler, *models.ServiceRequest, *models.ServiceRequestResponse, *models.ServiceRequestResponse, string) {
		env := newTestEnv(t, nil)
		first := env.createBusiness(t, "auth0|first", "istanbul", "cleaning")
		second := env.createBusiness(t, "auth0|second", "istanbul", "cleaning")
		req := env.createRequest(t, "+905551234567")
		offerA := env.submit(t, req.ID, first.ID)
		offerB := env.submit(t, req.ID, second.ID)
		return env, myRequestsRouter(env), req, offerA, offerB, env.lookupToken(t, "+905551234567")
	}

	t.Run("accept_offer rejects the siblings", func(t *testing.T) {
		env, router, req, offerA, offerB, token := setup(t)

		w := performRequest(router, http.MethodPut, "/my-requests/"+req.ID,
			map[string]interface{}{"action": "accept_offer", "responseId": offerA.ID}, LookupTokenHeader, token)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		data := decodeResponse(t, w)["data"].(map[string]interface{})
		assert.Equal(t, "ACCEPTED", data["status"])
		assert.Equal(t, offerA.ID, data["acceptedResponseId"])

		var sibling models.ServiceRequestResponse
		require.NoError(t, env.db.First(&sibling, "id = ?", offerB.ID).Error)
		assert.Equal(t, models.ResponseRejected, sibling.Status)

		w = performRequest(router, http.MethodPut, "/my-requests/"+req.ID,
			map[string]interface{}{"action": "accept_offer", "responseId": offerB.ID}, LookupTokenHeader, token)
		assert.Equal(t, http.StatusConflict, w.Code, "A second acceptance is refused")
	})

	t.Run("reject_offer keeps the request open", func(t *testing.T) {
		env, router, req, offerA, _, token := setup(t)

		w := performRequest(router, http.MethodPut, "/my-requests/"+req.ID,
			map[string]interface{}{"action": "reject_offer", "responseId": offerA.ID}, LookupTokenHeader, token)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "REJECTED", decodeResponse(t, w)["data"].(map[string]interface{})["status"])

		stored, err := env.svc.Requests.Get(t.Context(), req.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RequestResponded, stored.Status)
	})

	t.Run("cancel", func(t *testing.T) {
		_, router, req, _, _, token := setup(t)

		w := performRequest(router, http.MethodPut, "/my-requests/"+req.ID,
			map[string]interface{}{"action": "cancel"}, LookupTokenHeader, token)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "CANCELLED", decodeResponse(t, w)["data"].(map[string]interface{})["status"])
	})

	t.Run("accept after expiry is gone", func(t *testing.T) {
		env, router, req, offerA, _, token := setup(t)
		env.clock.Advance(services.DefaultRequestTTL + 1)

		w := performRequest(router, http.MethodPut, "/my-requests/"+req.ID,
			map[string]interface{}{"action": "accept_offer", "responseId": offerA.ID}, LookupTokenHeader, token)
		assert.Equal(t, http.StatusGone, w.Code, w.Body.String())
	})

	t.Run("bad input", func(t *testing.T) {
		_, router, req, _, _, token := setup(t)

		w := performRequest(router, http.MethodPut, "/my-requests/"+req.ID,
			map[string]interface{}{"action": "archive"}, LookupTokenHeader, token)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = performRequest(router, http.MethodPut, "/my-requests/"+req.ID,
			map[string]interface{}{"action": "accept_offer"}, LookupTokenHeader, token)
		assert.Equal(t, http.StatusBadRequest, w.Code, "responseId is required")
	})

	t.Run("other customers cannot act", func(t *testing.T) {
		env, router, req, _, _, _ := setup(t)
		stranger := env.lookupToken(t, "+905550000000")

		w := performRequest(router, http.MethodPut, "/my-requests/"+req.ID,
			map[string]interface{}{"action": "cancel"}, LookupTokenHeader, stranger)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
