package services

import (
	"context"
	"testing"
	"time"

	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookAppointment(t *testing.T) {
	f := newFixture(t)
	customer := f.createUser(t, models.RoleCustomer)
	business := f.createBusiness(t, "Istanbul", "hair", false)
	ctx := context.Background()

	appt, err := f.appointments.Book(ctx, BookAppointmentInput{
		CustomerID:  customer.ID,
		BusinessID:  business.ID,
		ServiceName: "Manicure",
		ScheduledAt: testNow.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentScheduled, appt.Status)

	_, err = f.appointments.Book(ctx, BookAppointmentInput{CustomerID: customer.ID})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "businessId")
	assert.Contains(t, verr.Fields, "serviceName")
	assert.Contains(t, verr.Fields, "scheduledAt")

	_, err = f.appointments.Book(ctx, BookAppointmentInput{
		CustomerID:  customer.ID,
		BusinessID:  999,
		ServiceName: "Manicure",
		ScheduledAt: testNow,
	})
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestCompleteAppointmentCreditsRaffle(t *testing.T) {
	f := newFixture(t)
	customer := f.createUser(t, models.RoleCustomer)
	business := f.createBusiness(t, "Istanbul", "hair", false)
	other := f.createBusiness(t, "Istanbul", "hair", false)
	ctx := context.Background()

	appt, err := f.appointments.Book(ctx, BookAppointmentInput{
		CustomerID:  customer.ID,
		BusinessID:  business.ID,
		ServiceName: "Pedicure",
		ScheduledAt: testNow,
	})
	require.NoError(t, err)

	_, _, err = f.appointments.Complete(ctx, appt.ID, other.ID)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf, "Another business cannot complete it")

	// 22:00 UTC on 31 March is 1 April in the raffle timezone
	f.clock.Set(time.Date(2026, time.March, 31, 22, 0, 0, 0, time.UTC))
	completed, credited, err := f.appointments.Complete(ctx, appt.ID, business.ID)
	require.NoError(t, err)
	assert.True(t, credited)
	assert.Equal(t, models.AppointmentCompleted, completed.Status)

	april := models.Period{Year: 2026, Month: time.April}
	status, err := f.ledger.GetStatus(ctx, customer.ID, april)
	require.NoError(t, err)
	assert.Equal(t, 1, status.TotalRights)

	_, _, err = f.appointments.Complete(ctx, appt.ID, business.ID)
	var state *InvalidStateError
	assert.ErrorAs(t, err, &state)

	credited, err = f.appointments.Redeliver(ctx, appt.ID)
	require.NoError(t, err)
	assert.False(t, credited, "Redelivery is idempotent")

	status, err = f.ledger.GetStatus(ctx, customer.ID, april)
	require.NoError(t, err)
	assert.Equal(t, 1, status.TotalRights)
}

func TestListAppointments(t *testing.T) {
	f := newFixture(t)
	customer := f.createUser(t, models.RoleCustomer)
	business := f.createBusiness(t, "Istanbul", "hair", false)
	ctx := context.Background()

	f.completedAppointment(t, customer.ID, business.ID)
	_, err := f.appointments.Book(ctx, BookAppointmentInput{
		CustomerID:  customer.ID,
		BusinessID:  business.ID,
		ServiceName: "Blow dry",
		ScheduledAt: testNow.Add(time.Hour),
	})
	require.NoError(t, err)

	all, err := f.appointments.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Blow dry", all[0].ServiceName, "Latest scheduled first")
	require.NotNil(t, all[0].Business)

	completed, err := f.appointments.List(ctx, models.AppointmentCompleted)
	require.NoError(t, err)
	assert.Len(t, completed, 1)

	_, err = f.appointments.List(ctx, "DONE")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}
