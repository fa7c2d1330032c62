package testutil

import (
	"os"
	"testing"
	"time"

	"github.com/kendall-kelly/servicehub-api/config"
	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/kendall-kelly/servicehub-api/services"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Now is the instant suites pin their clocks to
var Now = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

// RequireTestEnvironment ensures that tests are running in the test environment.
// This prevents accidental execution of tests against production or development databases.
// It will fail the test immediately if GO_ENV is not set to "test".
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	env := os.Getenv("GO_ENV")
	if env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: Tests must run with GO_ENV=test to prevent data loss. Current GO_ENV=%q. Set GO_ENV=test before running tests.", env)
	}
}

// MustSetTestEnvironment sets GO_ENV to test and fails if it cannot be set.
// Use this in TestMain or suite setup functions.
func MustSetTestEnvironment(t *testing.T) {
	t.Helper()

	if err := os.Setenv("GO_ENV", "test"); err != nil {
		t.Fatalf("Failed to set GO_ENV=test: %v", err)
	}
	if os.Getenv("GO_ENV") != "test" {
		t.Fatal("Failed to verify GO_ENV=test")
	}
}

// LoadTestConfig loads configuration the way the server does, with the
// environment pinned to test
func LoadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	MustSetTestEnvironment(t)
	t.Setenv("AUTH0_DOMAIN", "test.auth0.com")
	t.Setenv("AUTH0_AUDIENCE", "https://api.test.com")
	t.Setenv("LOOKUP_TOKEN_SECRET", "suite-secret")

	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

// NewTestDB opens a migrated in-memory database
func NewTestDB(t *testing.T, cfg *config.Config) *gorm.DB {
	t.Helper()
	db, err := config.OpenDatabase(":memory:")
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db, cfg))
	config.SetDB(db)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// Fixture holds services on a fixed clock with in-memory collaborators
type Fixture struct {
	DB      *gorm.DB
	Clock   *services.FixedClock
	Events  *services.MemoryPublisher
	Archive *services.MockDrawArchive
	Svc     *services.Services
}

// NewFixture builds services on a fresh database
func NewFixture(t *testing.T, cfg *config.Config) *Fixture {
	t.Helper()
	f := &Fixture{
		DB:      NewTestDB(t, cfg),
		Clock:   services.NewFixedClock(Now),
		Events:  services.NewMemoryPublisher(),
		Archive: services.NewMockDrawArchive(),
	}

	var err error
	f.Svc, err = services.New(f.DB, cfg, zerolog.Nop(), services.Options{
		Clock:   f.Clock,
		Events:  f.Events,
		Archive: f.Archive,
	})
	require.NoError(t, err)
	return f
}

// CreateUser inserts a user with role
func (f *Fixture) CreateUser(t *testing.T, auth0ID string, role models.Role) *models.User {
	t.Helper()
	user := &models.User{Auth0ID: auth0ID, Name: auth0ID, Email: auth0ID + "@example.com", Role: role}
	require.NoError(t, f.DB.Create(user).Error)
	return user
}

// CreateBusiness inserts a business owned by a new business-role user
func (f *Fixture) CreateBusiness(t *testing.T, auth0ID, province, category string) *models.Business {
	t.Helper()
	owner := f.CreateUser(t, auth0ID, models.RoleBusiness)
	business := &models.Business{OwnerID: owner.ID, Name: auth0ID, Province: province, Category: category}
	require.NoError(t, f.DB.Create(business).Error)
	return business
}
