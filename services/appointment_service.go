package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// BookAppointmentInput is a customer booking
type BookAppointmentInput struct {
	CustomerID  uint
	BusinessID  uint
	ServiceName string
	ScheduledAt time.Time
}

// AppointmentService books and completes appointments and feeds the raffle
type AppointmentService struct {
	db     *gorm.DB
	clock  Clock
	ledger *RightsLedger
	logger zerolog.Logger
}

// NewAppointmentService creates an AppointmentService
func NewAppointmentService(db *gorm.DB, clock Clock, ledger *RightsLedger, logger zerolog.Logger) *AppointmentService {
	return &AppointmentService{db: db, clock: clock, ledger: ledger, logger: logger}
}

// Book creates a SCHEDULED appointment
func (s *AppointmentService) Book(ctx context.Context, in BookAppointmentInput) (*models.Appointment, error) {
	verr := &ValidationError{}
	if in.BusinessID == 0 {
		verr.add("businessId", "is required")
	}
	if strings.TrimSpace(in.ServiceName) == "" {
		verr.add("serviceName", "is required")
	}
	if in.ScheduledAt.IsZero() {
		verr.add("scheduledAt", "is required")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	var business models.Business
	if err := s.db.WithContext(ctx).First(&business, in.BusinessID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "business", ID: strconv.FormatUint(uint64(in.BusinessID), 10)}
		}
		return nil, fmt.Errorf("services.AppointmentService.Book: %w", err)
	}

	appt := models.Appointment{
		BusinessID:  business.ID,
		CustomerID:  in.CustomerID,
		ServiceName: strings.TrimSpace(in.ServiceName),
		ScheduledAt: in.ScheduledAt.UTC(),
		Status:      models.AppointmentScheduled,
	}
	if err := s.db.WithContext(ctx).Create(&appt).Error; err != nil {
		return nil, fmt.Errorf("services.AppointmentService.Book: %w", err)
	}

	s.logger.Info().Uint("appointment_id", appt.ID).Uint("business_id", appt.BusinessID).Msg("Appointment booked")
	return &appt, nil
}

// Complete marks the business's appointment COMPLETED and credits the
// customer's raffle right for the completion period. It reports whether the
// right was granted by this call.
func (s *AppointmentService) Complete(ctx context.Context, appointmentID, businessID uint) (*models.Appointment, bool, error) {
	now := s.clock.Now()

	res := s.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("id = ? AND business_id = ? AND status = ?", appointmentID, businessID, models.AppointmentScheduled).
		Updates(map[string]interface{}{
			"status":       models.AppointmentCompleted,
			"completed_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return nil, false, fmt.Errorf("services.AppointmentService.Complete: %w", res.Error)
	}

	appt, err := s.Get(ctx, appointmentID)
	if err != nil {
		return nil, false, err
	}
	if res.RowsAffected == 0 {
		if appt.BusinessID != businessID {
			return nil, false, &NotFoundError{Resource: "appointment", ID: strconv.FormatUint(uint64(appointmentID), 10)}
		}
		return nil, false, &InvalidStateError{
			Resource:  "appointment",
			ID:        strconv.FormatUint(uint64(appointmentID), 10),
			Operation: "complete",
			Current:   string(appt.Status),
		}
	}

	s.logger.Info().Uint("appointment_id", appt.ID).Msg("Appointment completed")

	credited, err := s.credit(ctx, appt)
	if err != nil {
		// the redelivery hook can credit it later
		return appt, false, err
	}
	return appt, credited, nil
}

// Redeliver credits a completed appointment again. Safe to call any number
// of times.
func (s *AppointmentService) Redeliver(ctx context.Context, appointmentID uint) (bool, error) {
	appt, err := s.Get(ctx, appointmentID)
	if err != nil {
		return false, err
	}
	return s.credit(ctx, appt)
}

// Get loads one appointment
func (s *AppointmentService) Get(ctx context.Context, appointmentID uint) (*models.Appointment, error) {
	var appt models.Appointment
	err := retryIdempotent(ctx, defaultRetryAttempts, func() error {
		return s.db.WithContext(ctx).First(&appt, appointmentID).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "appointment", ID: strconv.FormatUint(uint64(appointmentID), 10)}
	}
	if err != nil {
		return nil, fmt.Errorf("services.AppointmentService.Get: %w", err)
	}
	return &appt, nil
}

// List returns appointments for the back office, newest first
func (s *AppointmentService) List(ctx context.Context, status models.AppointmentStatus) ([]models.Appointment, error) {
	if status != "" && !models.ValidAppointmentStatus(status) {
		return nil, &ValidationError{Fields: map[string]string{"status": "must be one of SCHEDULED, COMPLETED, CANCELLED"}}
	}

	appointments := []models.Appointment{}
	q := s.db.WithContext(ctx).Preload("Business").Preload("Customer")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Order("scheduled_at DESC").Order("id DESC").Find(&appointments).Error; err != nil {
		return nil, fmt.Errorf("services.AppointmentService.List: %w", err)
	}
	return appointments, nil
}

func (s *AppointmentService) credit(ctx context.Context, appt *models.Appointment) (bool, error) {
	if appt.CompletedAt == nil {
		return s.ledger.OnAppointmentCompleted(ctx, s.ledger.Schedule().PeriodAt(s.clock.Now()), appt)
	}
	return s.ledger.OnAppointmentCompleted(ctx, s.ledger.Schedule().PeriodAt(*appt.CompletedAt), appt)
}
