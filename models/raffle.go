package models

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrHistoryImmutable is returned when a RaffleHistory row with an announced
// winner is updated or deleted.
var ErrHistoryImmutable = errors.New("raffle history is immutable once the winner is announced")

// Period is the monthly accounting key of the raffle
type Period struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// PeriodOf returns the period t falls into, seen from loc
func PeriodOf(t time.Time, loc *time.Location) Period {
	local := t.In(loc)
	return Period{Year: local.Year(), Month: local.Month()}
}

// Next returns the following calendar month
func (p Period) Next() Period {
	if p.Month == time.December {
		return Period{Year: p.Year + 1, Month: time.January}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// Validate checks the period is a real calendar month
func (p Period) Validate() error {
	if p.Month < time.January || p.Month > time.December {
		return fmt.Errorf("invalid month %d", p.Month)
	}
	if p.Year < 2000 || p.Year > 9999 {
		return fmt.Errorf("invalid year %d", p.Year)
	}
	return nil
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// RaffleLedger holds one customer's rights for one period.
// UsedRights never exceeds TotalRights.
type RaffleLedger struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CustomerID  uint           `gorm:"not null;uniqueIndex:idx_ledger_period" json:"customerId"`
	Year        int            `gorm:"not null;uniqueIndex:idx_ledger_period" json:"year"`
	Month       int            `gorm:"not null;uniqueIndex:idx_ledger_period" json:"currentMonth"`
	TotalRights int            `gorm:"not null;default:0;check:total_rights >= 0" json:"totalRights"`
	UsedRights  int            `gorm:"not null;default:0;check:chk_raffle_ledgers_used_rights,used_rights >= 0 AND used_rights <= total_rights" json:"usedRights"`
	ClosedAt    *time.Time     `json:"closedAt,omitempty"`
	Credits     []RaffleCredit `gorm:"foreignKey:LedgerID" json:"eligibleAppointments,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// TableName specifies the table name for the RaffleLedger model
func (RaffleLedger) TableName() string {
	return "raffle_ledgers"
}

// AvailableRights is derived, never stored
func (l RaffleLedger) AvailableRights() int {
	return l.TotalRights - l.UsedRights
}

// Period returns the ledger's accounting key
func (l RaffleLedger) Period() Period {
	return Period{Year: l.Year, Month: time.Month(l.Month)}
}

// RaffleCredit records that one completed appointment earned one right.
// The unique appointment id is what makes crediting idempotent.
type RaffleCredit struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	LedgerID      uint      `gorm:"not null;index" json:"ledgerId"`
	CustomerID    uint      `gorm:"not null;index" json:"customerId"`
	AppointmentID uint      `gorm:"not null;uniqueIndex" json:"appointmentId"`
	CreditedAt    time.Time `gorm:"not null" json:"creditedAt"`
}

// TableName specifies the table name for the RaffleCredit model
func (RaffleCredit) TableName() string {
	return "raffle_credits"
}

// RaffleEntry is the customer's participation in the current period's draw
type RaffleEntry struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	LedgerID           uint      `gorm:"not null;uniqueIndex" json:"ledgerId"`
	CustomerID         uint      `gorm:"not null;index" json:"customerId"`
	Year               int       `gorm:"not null;index:idx_entry_period" json:"year"`
	Month              int       `gorm:"not null;index:idx_entry_period" json:"month"`
	ParticipatedRights int       `gorm:"not null;default:0" json:"participatedRights"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// TableName specifies the table name for the RaffleEntry model
func (RaffleEntry) TableName() string {
	return "raffle_entries"
}

// RaffleDraw marks a period as drawn. One row per period.
type RaffleDraw struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Year         int       `gorm:"not null;uniqueIndex:idx_draw_period" json:"year"`
	Month        int       `gorm:"not null;uniqueIndex:idx_draw_period" json:"month"`
	DrawDate     time.Time `gorm:"not null" json:"drawDate"`
	Participants int       `gorm:"not null;default:0" json:"participants"`
	Winners      int       `gorm:"not null;default:0" json:"winners"`
	ArchiveKey   *string   `json:"archiveKey,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TableName specifies the table name for the RaffleDraw model
func (RaffleDraw) TableName() string {
	return "raffle_draws"
}

// RaffleHistory is the closed-out record of one customer's period
type RaffleHistory struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	CustomerID         uint      `gorm:"not null;uniqueIndex:idx_history_period" json:"customerId"`
	Year               int       `gorm:"not null;uniqueIndex:idx_history_period" json:"year"`
	Month              int       `gorm:"not null;uniqueIndex:idx_history_period" json:"month"`
	ParticipatedRights int       `gorm:"not null;default:0" json:"participatedRights"`
	Won                bool      `gorm:"not null;default:false" json:"won"`
	Prize              *string   `json:"prize,omitempty"`
	WinnerAnnounced    bool      `gorm:"not null;default:false" json:"winnerAnnounced"`
	DrawDate           time.Time `gorm:"not null" json:"drawDate"`
	CreatedAt          time.Time `json:"createdAt"`
}

// TableName specifies the table name for the RaffleHistory model
func (RaffleHistory) TableName() string {
	return "raffle_histories"
}

// BeforeUpdate rejects edits to announced rows
func (h *RaffleHistory) BeforeUpdate(tx *gorm.DB) error {
	if h.WinnerAnnounced {
		return ErrHistoryImmutable
	}
	return nil
}

// BeforeDelete rejects deleting announced rows
func (h *RaffleHistory) BeforeDelete(tx *gorm.DB) error {
	if h.WinnerAnnounced {
		return ErrHistoryImmutable
	}
	return nil
}
