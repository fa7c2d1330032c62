package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DrawSchedule fixes when monthly draws happen
type DrawSchedule struct {
	Hour     int
	Location *time.Location
}

// PeriodAt derives the accounting period for t
func (d DrawSchedule) PeriodAt(t time.Time) models.Period {
	return models.PeriodOf(t, d.Location)
}

// NextDrawDate is the 1st of the month after p at the draw hour
func (d DrawSchedule) NextDrawDate(p models.Period) time.Time {
	n := p.Next()
	return time.Date(n.Year, n.Month, 1, d.Hour, 0, 0, 0, d.Location)
}

// RaffleStatus is what a customer sees for one period
type RaffleStatus struct {
	Year                 int                    `json:"year"`
	CurrentMonth         int                    `json:"currentMonth"`
	TotalRights          int                    `json:"totalRights"`
	UsedRights           int                    `json:"usedRights"`
	AvailableRights      int                    `json:"availableRights"`
	ParticipatedRights   int                    `json:"participatedRights"`
	EligibleAppointments []models.RaffleCredit  `json:"eligibleAppointments"`
	NextDrawDate         time.Time              `json:"nextDrawDate"`
	Closed               bool                   `json:"closed"`
	History              []models.RaffleHistory `json:"history"`
}

// RightsLedger turns completed appointments into monthly raffle rights.
// Every operation takes the period explicitly.
type RightsLedger struct {
	db       *gorm.DB
	clock    Clock
	schedule DrawSchedule
	archive  DrawArchive
	events   EventPublisher
	logger   zerolog.Logger
}

// NewRightsLedger creates a ledger. archive may be nil.
func NewRightsLedger(db *gorm.DB, clock Clock, schedule DrawSchedule, archive DrawArchive, events EventPublisher, logger zerolog.Logger) *RightsLedger {
	return &RightsLedger{
		db:       db,
		clock:    clock,
		schedule: schedule,
		archive:  archive,
		events:   events,
		logger:   logger,
	}
}

// Schedule returns the draw schedule periods are derived with
func (l *RightsLedger) Schedule() DrawSchedule {
	return l.schedule
}

// OnAppointmentCompleted credits one right for appt in period. The credit row
// and the increment commit together and the credit row is unique per
// appointment, so redelivery never double-credits. It reports whether this
// call granted the right.
func (l *RightsLedger) OnAppointmentCompleted(ctx context.Context, period models.Period, appt *models.Appointment) (bool, error) {
	if err := period.Validate(); err != nil {
		return false, &ValidationError{Fields: map[string]string{"period": err.Error()}}
	}
	if appt.Status != models.AppointmentCompleted {
		return false, &InvalidStateError{
			Resource:  "appointment",
			ID:        fmt.Sprint(appt.ID),
			Operation: "credit",
			Current:   string(appt.Status),
		}
	}

	now := l.clock.Now()
	var credited bool

	err := retryIdempotent(ctx, defaultRetryAttempts, func() error {
		credited = false
		return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			closed, err := periodClosed(tx, period)
			if err != nil {
				return err
			}
			if closed {
				return periodClosedError("credit", period)
			}

			ledger, err := ensureLedger(tx, appt.CustomerID, period)
			if err != nil {
				return err
			}

			credit := models.RaffleCredit{
				LedgerID:      ledger.ID,
				CustomerID:    appt.CustomerID,
				AppointmentID: appt.ID,
				CreditedAt:    now,
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&credit)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}

			err = tx.Model(&models.RaffleLedger{}).
				Where("id = ?", ledger.ID).
				Updates(map[string]interface{}{
					"total_rights": gorm.Expr("total_rights + ?", 1),
					"updated_at":   now,
				}).Error
			if err != nil {
				return err
			}
			credited = true
			return nil
		})
	})
	if err != nil {
		return false, wrapRaffleErr("OnAppointmentCompleted", err)
	}

	if credited {
		rightsCredited.Inc()
		l.publish(ctx, Event{Type: EventRightsCredited, CustomerID: appt.CustomerID, Period: &period, OccurredAt: now})
		l.logger.Info().
			Uint("customer_id", appt.CustomerID).
			Uint("appointment_id", appt.ID).
			Str("period", period.String()).
			Msg("Raffle right credited")
	} else {
		l.logger.Debug().Uint("appointment_id", appt.ID).Msg("Appointment already credited")
	}
	return credited, nil
}

// GetStatus returns the customer's rights for period. A customer without a
// ledger row sees zeros.
func (l *RightsLedger) GetStatus(ctx context.Context, customerID uint, period models.Period) (*RaffleStatus, error) {
	if err := period.Validate(); err != nil {
		return nil, &ValidationError{Fields: map[string]string{"period": err.Error()}}
	}

	status := &RaffleStatus{
		Year:                 period.Year,
		CurrentMonth:         int(period.Month),
		EligibleAppointments: []models.RaffleCredit{},
		NextDrawDate:         l.schedule.NextDrawDate(period),
		History:              []models.RaffleHistory{},
	}

	err := retryIdempotent(ctx, defaultRetryAttempts, func() error {
		db := l.db.WithContext(ctx)

		var ledger models.RaffleLedger
		err := db.Preload("Credits", func(db *gorm.DB) *gorm.DB {
			return db.Order("credited_at").Order("id")
		}).
			Where("customer_id = ? AND year = ? AND month = ?", customerID, period.Year, int(period.Month)).
			First(&ledger).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		default:
			status.TotalRights = ledger.TotalRights
			status.UsedRights = ledger.UsedRights
			status.AvailableRights = ledger.AvailableRights()
			status.Closed = ledger.ClosedAt != nil
			status.EligibleAppointments = ledger.Credits

			var entry models.RaffleEntry
			err = db.Where("ledger_id = ?", ledger.ID).Limit(1).Find(&entry).Error
			if err != nil {
				return err
			}
			status.ParticipatedRights = entry.ParticipatedRights
		}

		if !status.Closed {
			if status.Closed, err = periodClosed(db, period); err != nil {
				return err
			}
		}

		return db.Where("customer_id = ?", customerID).
			Order("year DESC").Order("month DESC").
			Find(&status.History).Error
	})
	if err != nil {
		return nil, fmt.Errorf("services.RightsLedger.GetStatus: %w", err)
	}
	return status, nil
}

// Participate spends rights on the period's draw. The increment is
// conditioned on used+n <= total, so usedRights can never overshoot and a
// failed call changes nothing.
func (l *RightsLedger) Participate(ctx context.Context, customerID uint, period models.Period, rightsToUse int) (*RaffleStatus, error) {
	if err := period.Validate(); err != nil {
		return nil, &ValidationError{Fields: map[string]string{"period": err.Error()}}
	}

	if rightsToUse <= 0 {
		status, err := l.GetStatus(ctx, customerID, period)
		if err != nil {
			return nil, err
		}
		return nil, &InsufficientRightsError{Requested: rightsToUse, Available: status.AvailableRights}
	}

	now := l.clock.Now()
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		drawn := tx.Model(&models.RaffleDraw{}).
			Select("id").
			Where("year = ? AND month = ?", period.Year, int(period.Month))

		res := tx.Model(&models.RaffleLedger{}).
			Where("customer_id = ? AND year = ? AND month = ?", customerID, period.Year, int(period.Month)).
			Where("closed_at IS NULL AND used_rights + ? <= total_rights", rightsToUse).
			Where("NOT EXISTS (?)", drawn).
			Updates(map[string]interface{}{
				"used_rights": gorm.Expr("used_rights + ?", rightsToUse),
				"updated_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return l.spendRefused(tx, customerID, period, rightsToUse)
		}

		var ledger models.RaffleLedger
		err := tx.Where("customer_id = ? AND year = ? AND month = ?", customerID, period.Year, int(period.Month)).
			First(&ledger).Error
		if err != nil {
			return err
		}

		entry := models.RaffleEntry{
			LedgerID:   ledger.ID,
			CustomerID: customerID,
			Year:       period.Year,
			Month:      int(period.Month),
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error; err != nil {
			return err
		}
		return tx.Model(&models.RaffleEntry{}).
			Where("ledger_id = ?", ledger.ID).
			Updates(map[string]interface{}{
				"participated_rights": gorm.Expr("participated_rights + ?", rightsToUse),
				"updated_at":          now,
			}).Error
	})
	if err != nil {
		return nil, wrapRaffleErr("Participate", err)
	}

	rightsSpent.Add(float64(rightsToUse))
	l.publish(ctx, Event{Type: EventRaffleEntered, CustomerID: customerID, Period: &period, Count: int64(rightsToUse), OccurredAt: now})
	l.logger.Info().
		Uint("customer_id", customerID).
		Int("rights", rightsToUse).
		Str("period", period.String()).
		Msg("Raffle participation recorded")

	return l.GetStatus(ctx, customerID, period)
}

// spendRefused explains why the conditional spend matched no row
func (l *RightsLedger) spendRefused(tx *gorm.DB, customerID uint, period models.Period, requested int) error {
	closed, err := periodClosed(tx, period)
	if err != nil {
		return err
	}
	if closed {
		return periodClosedError("participate in", period)
	}

	var ledger models.RaffleLedger
	err = tx.Where("customer_id = ? AND year = ? AND month = ?", customerID, period.Year, int(period.Month)).
		Limit(1).Find(&ledger).Error
	if err != nil {
		return err
	}
	return &InsufficientRightsError{Requested: requested, Available: ledger.AvailableRights()}
}

func (l *RightsLedger) publish(ctx context.Context, evt Event) {
	if err := l.events.Publish(ctx, evt); err != nil {
		l.logger.Warn().Err(err).Str("event", string(evt.Type)).Msg("Failed to publish event")
	}
}

// ensureLedger lazily creates the customer's ledger for period
func ensureLedger(tx *gorm.DB, customerID uint, period models.Period) (*models.RaffleLedger, error) {
	fresh := models.RaffleLedger{CustomerID: customerID, Year: period.Year, Month: int(period.Month)}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh).Error; err != nil {
		return nil, err
	}

	var ledger models.RaffleLedger
	err := tx.Where("customer_id = ? AND year = ? AND month = ?", customerID, period.Year, int(period.Month)).
		First(&ledger).Error
	if err != nil {
		return nil, err
	}
	return &ledger, nil
}

func periodClosed(db *gorm.DB, period models.Period) (bool, error) {
	var count int64
	err := db.Model(&models.RaffleDraw{}).
		Where("year = ? AND month = ?", period.Year, int(period.Month)).
		Count(&count).Error
	return count > 0, err
}

func periodClosedError(op string, period models.Period) *InvalidStateError {
	return &InvalidStateError{
		Resource:  "raffle period",
		ID:        period.String(),
		Operation: op,
		Current:   "CLOSED",
	}
}

func wrapRaffleErr(op string, err error) error {
	var (
		verr  *ValidationError
		nf    *NotFoundError
		state *InvalidStateError
		ins   *InsufficientRightsError
	)
	if errors.As(err, &verr) || errors.As(err, &nf) || errors.As(err, &state) || errors.As(err, &ins) {
		return err
	}
	return fmt.Errorf("services.RightsLedger.%s: %w", op, err)
}
