package services

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 2026-03-10 15:00 in the raffle timezone (UTC+3)
var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

var testLocation = time.FixedZone("UTC+3", 3*60*60)

// afterMarchDraw is 21:00 on April 1st in testLocation, past the March draw
var afterMarchDraw = time.Date(2026, time.April, 1, 18, 0, 0, 0, time.UTC)

type fixture struct {
	db           *gorm.DB
	clock        *FixedClock
	events       *MemoryPublisher
	archive      *MockDrawArchive
	store        *RequestStore
	matcher      *Matcher
	offers       *OfferManager
	ledger       *RightsLedger
	appointments *AppointmentService
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
	})
	require.NoError(t, err, "Failed to connect to test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.AutoMigrate(db), "Failed to migrate test database")
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := setupTestDB(t)
	clock := NewFixedClock(testNow)
	events := NewMemoryPublisher()
	archive := NewMockDrawArchive()
	log := zerolog.Nop()

	ledger := NewRightsLedger(db, clock, DrawSchedule{Hour: 20, Location: testLocation}, archive, events, log)
	return &fixture{
		db:           db,
		clock:        clock,
		events:       events,
		archive:      archive,
		store:        NewRequestStore(db, clock, DefaultRequestTTL, events, log),
		matcher:      NewMatcher(db, clock),
		offers:       NewOfferManager(db, clock, events, log),
		ledger:       ledger,
		appointments: NewAppointmentService(db, clock, ledger, log),
	}
}

func (f *fixture) createUser(t *testing.T, role models.Role) *models.User {
	t.Helper()

	user := models.User{
		Auth0ID: "auth0|" + gofakeit.UUID(),
		Name:    gofakeit.Name(),
		Email:   gofakeit.UUID() + "@example.com",
		Role:    role,
	}
	require.NoError(t, f.db.Create(&user).Error)
	return &user
}

func (f *fixture) createBusiness(t *testing.T, province, category string, allProvinces bool) *models.Business {
	t.Helper()

	owner := f.createUser(t, models.RoleBusiness)
	business := models.Business{
		OwnerID:            owner.ID,
		Name:               gofakeit.Company(),
		Category:           category,
		Province:           province,
		ServesAllProvinces: allProvinces,
	}
	require.NoError(t, f.db.Create(&business).Error)
	return &business
}

func validRequestInput() CreateRequestInput {
	category := "cleaning"
	return CreateRequestInput{
		CustomerName:   gofakeit.Name(),
		CustomerPhone:  gofakeit.Numerify("0532 ### ## ##"),
		ServiceName:    "Deep cleaning",
		ServiceDetails: gofakeit.Sentence(8),
		Category:       &category,
		Urgency:        models.UrgencyNormal,
		Province:       "Istanbul",
	}
}

func (f *fixture) createRequest(t *testing.T, mutate func(*CreateRequestInput)) *models.ServiceRequest {
	t.Helper()

	in := validRequestInput()
	if mutate != nil {
		mutate(&in)
	}
	req, err := f.store.Create(context.Background(), in)
	require.NoError(t, err)
	return req
}

func (f *fixture) submit(t *testing.T, requestID string, businessID uint) *models.ServiceRequestResponse {
	t.Helper()

	resp, err := f.offers.SubmitResponse(context.Background(), requestID, SubmitResponseInput{
		BusinessID: businessID,
		Message:    gofakeit.Sentence(6),
	})
	require.NoError(t, err)
	return resp
}

func (f *fixture) reload(t *testing.T, requestID string) *models.ServiceRequest {
	t.Helper()

	req, err := f.store.Get(context.Background(), requestID)
	require.NoError(t, err)
	return req
}

func (f *fixture) completedAppointment(t *testing.T, customerID, businessID uint) *models.Appointment {
	t.Helper()

	completedAt := f.clock.Now()
	appt := models.Appointment{
		BusinessID:  businessID,
		CustomerID:  customerID,
		ServiceName: "Haircut",
		ScheduledAt: completedAt.Add(-time.Hour),
		Status:      models.AppointmentCompleted,
		CompletedAt: &completedAt,
	}
	require.NoError(t, f.db.Create(&appt).Error)
	return &appt
}
