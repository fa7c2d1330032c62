package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth0GetUserInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/userinfo" || r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_token"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Auth0UserInfo{Sub: "auth0|1", Email: "a@example.com", Name: "Ayse"})
	}))
	defer server.Close()

	svc := NewAuth0Service(server.URL)

	info, err := svc.GetUserInfo(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, "auth0|1", info.Sub)
	assert.Equal(t, "a@example.com", info.Email)

	_, err = svc.GetUserInfo(context.Background(), "bad-token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
