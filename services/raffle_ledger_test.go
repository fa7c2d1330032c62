package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var march2026 = models.Period{Year: 2026, Month: time.March}

func TestDrawSchedule(t *testing.T) {
	schedule := DrawSchedule{Hour: 20, Location: testLocation}

	tests := []struct {
		name     string
		period   models.Period
		expected time.Time
	}{
		{"mid year", march2026, time.Date(2026, time.April, 1, 20, 0, 0, 0, testLocation)},
		{"december rolls the year", models.Period{Year: 2026, Month: time.December}, time.Date(2027, time.January, 1, 20, 0, 0, 0, testLocation)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.expected.Equal(schedule.NextDrawDate(tt.period)))
		})
	}

	// 22:30 UTC on the last day of March is already April in UTC+3
	assert.Equal(t, models.Period{Year: 2026, Month: time.April},
		schedule.PeriodAt(time.Date(2026, time.March, 31, 22, 30, 0, 0, time.UTC)))
}

func TestOnAppointmentCompletedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	customer := f.createUser(t, models.RoleCustomer)
	business := f.createBusiness(t, "Istanbul", "hair", false)
	appt := f.completedAppointment(t, customer.ID, business.ID)
	ctx := context.Background()

	credited, err := f.ledger.OnAppointmentCompleted(ctx, march2026, appt)
	require.NoError(t, err)
	assert.True(t, credited)

	credited, err = f.ledger.OnAppointmentCompleted(ctx, march2026, appt)
	require.NoError(t, err)
	assert.False(t, credited, "Redelivery does not credit again")

	status, err := f.ledger.GetStatus(ctx, customer.ID, march2026)
	require.NoError(t, err)
	assert.Equal(t, 1, status.TotalRights)
	assert.Equal(t, 1, status.AvailableRights)
	require.Len(t, status.EligibleAppointments, 1)
	assert.Equal(t, appt.ID, status.EligibleAppointments[0].AppointmentID)
	assert.Len(t, f.events.OfType(EventRightsCredited), 1)
}

func TestOnAppointmentCompletedConcurrentRedelivery(t *testing.T) {
	f := newFixture(t)
	customer := f.createUser(t, models.RoleCustomer)
	business := f.createBusiness(t, "Istanbul", "hair", false)
	appt := f.completedAppointment(t, customer.ID, business.ID)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.OnAppointmentCompleted(context.Background(), march2026, appt)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	status, err := f.ledger.GetStatus(context.Background(), customer.ID, march2026)
	require.NoError(t, err)
	assert.Equal(t, 1, status.TotalRights)
}

func TestOnAppointmentCompletedRejects(t *testing.T) {
	f := newFixture(t)
	customer := f.createUser(t, models.RoleCustomer)
	business := f.createBusiness(t, "Istanbul", "hair", false)
	ctx := context.Background()

	scheduled := models.Appointment{
		BusinessID:  business.ID,
		CustomerID:  customer.ID,
		ServiceName: "Nails",
		ScheduledAt: testNow,
		Status:      models.AppointmentScheduled,
	}
	require.NoError(t, f.db.Create(&scheduled).Error)

	_, err := f.ledger.OnAppointmentCompleted(ctx, march2026, &scheduled)
	var state *InvalidStateError
	assert.ErrorAs(t, err, &state, "Only completed appointments earn rights")

	appt := f.completedAppointment(t, customer.ID, business.ID)
	_, err = f.ledger.OnAppointmentCompleted(ctx, models.Period{Year: 2026, Month: 13}, appt)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestGetStatusWithoutLedger(t *testing.T) {
	f := newFixture(t)

	status, err := f.ledger.GetStatus(context.Background(), 42, march2026)
	require.NoError(t, err)
	assert.Zero(t, status.TotalRights)
	assert.Zero(t, status.AvailableRights)
	assert.Empty(t, status.EligibleAppointments)
	assert.NotNil(t, status.History)
	assert.Equal(t, 2026, status.Year)
	assert.Equal(t, 3, status.CurrentMonth)
	assert.True(t, status.NextDrawDate.Equal(time.Date(2026, time.April, 1, 20, 0, 0, 0, testLocation)))
}

func (f *fixture) creditRights(t *testing.T, customerID uint, period models.Period, n int) {
	t.Helper()
	business := f.createBusiness(t, "Istanbul", "hair", false)
	for i := 0; i < n; i++ {
		appt := f.completedAppointment(t, customerID, business.ID)
		_, err := f.ledger.OnAppointmentCompleted(context.Background(), period, appt)
		require.NoError(t, err)
	}
}

func TestParticipateAccumulates(t *testing.T) {
	f := newFixture(t)
	customer := f.createUser(t, models.RoleCustomer)
	f.creditRights(t, customer.ID, march2026, 6)
	ctx := context.Background()

	status, err := f.ledger.Participate(ctx, customer.ID, march2026, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, status.UsedRights)
	assert.Equal(t, 2, status.ParticipatedRights)

	status, err = f.ledger.Participate(ctx, customer.ID, march2026, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, status.UsedRights)
	assert.Equal(t, 5, status.ParticipatedRights, "Participation accumulates across calls")
	assert.Equal(t, 1, status.AvailableRights)
}

func TestParticipateInsufficientRights(t *testing.T) {
	f := newFixture(t)
	customer := f.createUser(t, models.RoleCustomer)
	f.creditRights(t, customer.ID, march2026, 2)
	ctx := context.Background()

	tests := []struct {
		name      string
		rights    int
		available int
	}{
		{"more than available", 3, 2},
		{"zero", 0, 2},
		{"negative", -1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Participate(ctx, customer.ID, march2026, tt.rights)

			var ins *InsufficientRightsError
			require.ErrorAs(t, err, &ins)
			assert.Equal(t, tt.available, ins.Available)

			status, err := f.ledger.GetStatus(ctx, customer.ID, march2026)
			require.NoError(t, err)
			assert.Zero(t, status.UsedRights, "A failed spend leaves usedRights unchanged")
		})
	}

	_, err := f.ledger.Participate(ctx, 999, march2026, 1)
	var ins *InsufficientRightsError
	require.ErrorAs(t, err, &ins, "A customer without a ledger has nothing to spend")
	assert.Zero(t, ins.Available)
}

func TestParticipateConcurrentNeverOverspends(t *testing.T) {
	f := newFixture(t)
	customer := f.createUser(t, models.RoleCustomer)
	f.creditRights(t, customer.ID, march2026, 3)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.ledger.Participate(context.Background(), customer.ID, march2026, 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	status, err := f.ledger.GetStatus(context.Background(), customer.ID, march2026)
	require.NoError(t, err)
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, 3, status.UsedRights)
	assert.LessOrEqual(t, status.UsedRights, status.TotalRights)
}

func TestLedgersArePerPeriod(t *testing.T) {
	f := newFixture(t)
	customer := f.createUser(t, models.RoleCustomer)
	april := march2026.Next()

	f.creditRights(t, customer.ID, march2026, 2)
	f.creditRights(t, customer.ID, april, 1)

	marchStatus, err := f.ledger.GetStatus(context.Background(), customer.ID, march2026)
	require.NoError(t, err)
	aprilStatus, err := f.ledger.GetStatus(context.Background(), customer.ID, april)
	require.NoError(t, err)

	assert.Equal(t, 2, marchStatus.TotalRights)
	assert.Equal(t, 1, aprilStatus.TotalRights)
}
