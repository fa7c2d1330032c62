package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicehub-api/config"
	"github.com/kendall-kelly/servicehub-api/controllers"
	"github.com/kendall-kelly/servicehub-api/middleware"
	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/kendall-kelly/servicehub-api/services"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testSubjectHeader = "X-Test-Subject"
	testRoleHeader    = "X-Test-Role"
)

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

// testApp is the full router on an in-memory database
type testApp struct {
	router *gin.Engine
	db     *gorm.DB
	clock  *services.FixedClock
	events *services.MemoryPublisher
	svc    *services.Services
}

// headerAuth stands in for EnsureValidToken: the subject and role come from
// test headers, and a missing subject is rejected like a missing token
func headerAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := c.GetHeader(testSubjectHeader)
		if subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "INVALID_TOKEN", "message": "Failed to validate JWT."},
			})
			return
		}

		c.Set("user_id", subject)
		c.Set("access_token", "token-"+subject)
		c.Set("validated_claims", &validator.ValidatedClaims{
			RegisteredClaims: validator.RegisteredClaims{Subject: subject},
			CustomClaims:     &middleware.CustomClaims{Role: c.GetHeader(testRoleHeader)},
		})
		c.Next()
	}
}

func testAppConfig() *config.Config {
	return &config.Config{
		GoEnv:                "test",
		RequestTTL:           services.DefaultRequestTTL,
		LookupTokenSecret:    "main-test-secret",
		LookupTokenTTL:       24 * time.Hour,
		AllowContactLookup:   true,
		RaffleDrawHour:       20,
		RaffleUTCOffsetHours: 3,
		CORSAllowedOrigins:   []string{"http://localhost:3000"},
	}
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testAppConfig()
	db, err := config.OpenDatabase(":memory:")
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db, cfg))
	config.SetDB(db)

	app := &testApp{
		db:     db,
		clock:  services.NewFixedClock(testNow),
		events: services.NewMemoryPublisher(),
	}
	app.svc, err = services.New(db, cfg, zerolog.Nop(), services.Options{
		Clock:   app.clock,
		Events:  app.events,
		Archive: services.NewMockDrawArchive(),
	})
	require.NoError(t, err)

	handler := controllers.NewHandler(db, cfg, app.svc, zerolog.Nop())
	app.router = setupRouter(cfg, handler, headerAuth(), zerolog.Nop())
	return app
}

func (a *testApp) createUser(t *testing.T, subject string, role models.Role) *models.User {
	t.Helper()
	user := &models.User{Auth0ID: subject, Name: subject, Email: subject + "@example.com", Role: role}
	require.NoError(t, a.db.Create(user).Error)
	return user
}

// TestHealthCheck is a unit test for the healthCheck handler function
func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	healthCheck(c)

	assert.Equal(t, http.StatusOK, w.Code, "Expected status code 200")

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err, "Response should be valid JSON")

	assert.Equal(t, true, response["success"], "Expected success to be true")
	assert.Equal(t, "ServiceHub API is running", response["message"], "Expected correct message")
}

// TestHealthCheckResponseFormat tests the exact JSON format
func TestHealthCheckResponseFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	healthCheck(c)

	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Len(t, response, 2, "Response should have exactly 2 fields")
	assert.Contains(t, response, "success")
	assert.Contains(t, response, "message")
}

func TestCORSConfig(t *testing.T) {
	cfg := testAppConfig()
	c := corsConfig(cfg)
	assert.Equal(t, cfg.CORSAllowedOrigins, c.AllowOrigins)
	assert.True(t, c.AllowCredentials)
	assert.Contains(t, c.AllowHeaders, controllers.LookupTokenHeader)

	cfg.CORSAllowedOrigins = nil
	c = corsConfig(cfg)
	assert.True(t, c.AllowAllOrigins)
	assert.False(t, c.AllowCredentials, "Credentials are never sent to every origin")
}
