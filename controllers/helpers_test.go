package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicehub-api/config"
	"github.com/kendall-kelly/servicehub-api/middleware"
	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/kendall-kelly/servicehub-api/services"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

// afterMarchDraw is 21:00 on April 1st in Istanbul, past the March draw
var afterMarchDraw = time.Date(2026, time.April, 1, 18, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	return router
}

func testConfig() *config.Config {
	return &config.Config{
		GoEnv:                "test",
		RequestTTL:           services.DefaultRequestTTL,
		LookupTokenSecret:    "controller-test-secret",
		LookupTokenTTL:       24 * time.Hour,
		AllowContactLookup:   true,
		RaffleDrawHour:       20,
		RaffleUTCOffsetHours: 3,
	}
}

// testEnv is a Handler wired to an in-memory database and a fixed clock
type testEnv struct {
	db      *gorm.DB
	cfg     *config.Config
	clock   *services.FixedClock
	events  *services.MemoryPublisher
	archive *services.MockDrawArchive
	svc     *services.Services
	h       *Handler
}

func newTestEnv(t *testing.T, auth0 services.UserInfoFetcher) *testEnv {
	return newTestEnvWithConfig(t, testConfig(), auth0)
}

func newTestEnvWithConfig(t *testing.T, cfg *config.Config, auth0 services.UserInfoFetcher) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	config.SetDB(db)

	env := &testEnv{
		db:      db,
		cfg:     cfg,
		clock:   services.NewFixedClock(testNow),
		events:  services.NewMemoryPublisher(),
		archive: services.NewMockDrawArchive(),
	}
	if auth0 == nil {
		auth0 = services.NewAuth0Service("auth0.invalid")
	}

	svc, err := services.New(db, cfg, zerolog.Nop(), services.Options{
		Clock:   env.clock,
		Events:  env.events,
		Archive: env.archive,
		Auth0:   auth0,
	})
	require.NoError(t, err)
	env.svc = svc
	env.h = NewHandler(db, cfg, svc, zerolog.Nop())
	return env
}

// setupMockAuth0Server creates a mock HTTP server that simulates Auth0's /userinfo endpoint
func setupMockAuth0Server(userInfoMap map[string]*services.Auth0UserInfo) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/userinfo" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || len(authHeader) < 7 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		token := authHeader[7:] // Remove "Bearer " prefix

		userInfo, exists := userInfoMap[token]
		if !exists {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(userInfo)
	}))
}

// mockAuthMiddleware simulates the Auth0 JWT middleware for testing
// It sets up the context exactly as the real EnsureValidToken middleware does
func mockAuthMiddleware(auth0ID, role, accessToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", auth0ID)
		c.Set("access_token", accessToken)

		mockClaims := &validator.ValidatedClaims{
			RegisteredClaims: validator.RegisteredClaims{Subject: auth0ID},
			CustomClaims:     &middleware.CustomClaims{Role: role},
		}
		c.Set("validated_claims", mockClaims)

		c.Next()
	}
}

func (e *testEnv) createUser(t *testing.T, auth0ID string, role models.Role) *models.User {
	t.Helper()
	user := &models.User{
		Auth0ID: auth0ID,
		Name:    gofakeit.Name(),
		Email:   gofakeit.Email(),
		Role:    role,
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) createBusiness(t *testing.T, auth0ID, province, category string) *models.Business {
	t.Helper()
	owner := e.createUser(t, auth0ID, models.RoleBusiness)
	business := &models.Business{
		OwnerID:  owner.ID,
		Name:     gofakeit.Company(),
		Category: category,
		Province: province,
	}
	require.NoError(t, e.db.Create(business).Error)
	return business
}

func (e *testEnv) createRequest(t *testing.T, phone string) *models.ServiceRequest {
	t.Helper()
	category := "cleaning"
	req, err := e.svc.Requests.Create(t.Context(), services.CreateRequestInput{
		CustomerName:   gofakeit.Name(),
		CustomerPhone:  phone,
		ServiceName:    "Deep clean",
		ServiceDetails: gofakeit.Sentence(8),
		Category:       &category,
		Province:       "istanbul",
	})
	require.NoError(t, err)
	return req
}

func (e *testEnv) submit(t *testing.T, requestID string, businessID uint) *models.ServiceRequestResponse {
	t.Helper()
	resp, err := e.svc.Offers.SubmitResponse(t.Context(), requestID, services.SubmitResponseInput{
		BusinessID: businessID,
		Message:    gofakeit.Sentence(6),
	})
	require.NoError(t, err)
	return resp
}

func performRequest(router http.Handler, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), "body: %s", w.Body.String())
	return response
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	response := decodeResponse(t, w)
	errorData, ok := response["error"].(map[string]interface{})
	require.True(t, ok, "expected an error body, got %s", w.Body.String())
	return errorData["code"].(string)
}
