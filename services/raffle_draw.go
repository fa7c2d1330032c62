package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/kendall-kelly/servicehub-api/models"
	"gorm.io/gorm"
)

// DrawEntrant is one customer's stake in a draw
type DrawEntrant struct {
	CustomerID         uint `json:"customerId"`
	ParticipatedRights int  `json:"participatedRights"`
}

// WinnerSelector picks at most one winner per prize; a customer wins at most
// once. The result maps customer id to prize.
type WinnerSelector interface {
	SelectWinners(entrants []DrawEntrant, prizes []string) (map[uint]string, error)
}

// SelectorFunc adapts a function to WinnerSelector
type SelectorFunc func(entrants []DrawEntrant, prizes []string) (map[uint]string, error)

func (f SelectorFunc) SelectWinners(entrants []DrawEntrant, prizes []string) (map[uint]string, error) {
	return f(entrants, prizes)
}

// WeightedRandomSelector gives each entrant a chance proportional to the
// rights they spent
type WeightedRandomSelector struct {
	rng *rand.Rand
}

// NewWeightedRandomSelector seeds the selector; equal seeds give equal draws
func NewWeightedRandomSelector(seed1, seed2 uint64) *WeightedRandomSelector {
	return &WeightedRandomSelector{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

// NewRandomSelector seeds a selector from the runtime's random source
func NewRandomSelector() *WeightedRandomSelector {
	return NewWeightedRandomSelector(rand.Uint64(), rand.Uint64())
}

func (s *WeightedRandomSelector) SelectWinners(entrants []DrawEntrant, prizes []string) (map[uint]string, error) {
	pool := make([]DrawEntrant, 0, len(entrants))
	total := 0
	for _, e := range entrants {
		if e.ParticipatedRights > 0 {
			pool = append(pool, e)
			total += e.ParticipatedRights
		}
	}

	winners := make(map[uint]string, len(prizes))
	for _, prize := range prizes {
		if len(pool) == 0 {
			break
		}
		pick := s.rng.IntN(total)
		for i, e := range pool {
			if pick < e.ParticipatedRights {
				winners[e.CustomerID] = prize
				total -= e.ParticipatedRights
				pool = append(pool[:i], pool[i+1:]...)
				break
			}
			pick -= e.ParticipatedRights
		}
	}
	return winners, nil
}

// DrawWinner is one line of a closed draw report
type DrawWinner struct {
	CustomerID uint   `json:"customerId"`
	Prize      string `json:"prize"`
}

// DrawReport summarises a closed period
type DrawReport struct {
	Year     int           `json:"year"`
	Month    int           `json:"month"`
	DrawDate time.Time     `json:"drawDate"`
	Prizes   []string      `json:"prizes"`
	Entrants []DrawEntrant `json:"entrants"`
	Winners  []DrawWinner  `json:"winners"`
	Ledgers  int           `json:"ledgers"`
}

// DrawResult is returned by CloseDraw
type DrawResult struct {
	Draw      models.RaffleDraw      `json:"draw"`
	Winners   []DrawWinner           `json:"winners"`
	Histories []models.RaffleHistory `json:"histories"`
}

// CloseDraw resolves period: every ledger of the period gets an announced
// RaffleHistory row and is closed. The RaffleDraw row is unique per period,
// so a second close fails. A period can only close once its draw date has
// passed. The next period's ledgers start empty.
func (l *RightsLedger) CloseDraw(ctx context.Context, period models.Period, prizes []string, selector WinnerSelector) (*DrawResult, error) {
	if err := period.Validate(); err != nil {
		return nil, &ValidationError{Fields: map[string]string{"period": err.Error()}}
	}
	if selector == nil {
		return nil, &ValidationError{Fields: map[string]string{"selector": "is required"}}
	}

	now := l.clock.Now()
	if now.Before(l.schedule.NextDrawDate(period)) {
		return nil, &InvalidStateError{Resource: "raffle period", ID: period.String(), Operation: "close", Current: "OPEN"}
	}
	result := &DrawResult{}
	report := &DrawReport{Year: period.Year, Month: int(period.Month), DrawDate: now, Prizes: prizes}

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		draw := models.RaffleDraw{Year: period.Year, Month: int(period.Month), DrawDate: now}
		if err := tx.Create(&draw).Error; err != nil {
			if IsUniqueViolation(err) {
				return periodClosedError("close", period)
			}
			return err
		}

		// close ledgers before reading entries
		err := tx.Model(&models.RaffleLedger{}).
			Where("year = ? AND month = ? AND closed_at IS NULL", period.Year, int(period.Month)).
			Updates(map[string]interface{}{"closed_at": now, "updated_at": now}).Error
		if err != nil {
			return err
		}

		var ledgers []models.RaffleLedger
		err = tx.Where("year = ? AND month = ?", period.Year, int(period.Month)).
			Order("customer_id").
			Find(&ledgers).Error
		if err != nil {
			return err
		}

		var entries []models.RaffleEntry
		err = tx.Where("year = ? AND month = ? AND participated_rights > 0", period.Year, int(period.Month)).
			Order("customer_id").
			Find(&entries).Error
		if err != nil {
			return err
		}

		participated := make(map[uint]int, len(entries))
		entrants := make([]DrawEntrant, 0, len(entries))
		for _, e := range entries {
			participated[e.LedgerID] = e.ParticipatedRights
			entrants = append(entrants, DrawEntrant{CustomerID: e.CustomerID, ParticipatedRights: e.ParticipatedRights})
		}

		winners, err := selector.SelectWinners(entrants, prizes)
		if err != nil {
			return fmt.Errorf("select winners: %w", err)
		}
		if err := checkWinners(winners, entrants); err != nil {
			return err
		}

		histories := make([]models.RaffleHistory, 0, len(ledgers))
		for _, ledger := range ledgers {
			h := models.RaffleHistory{
				CustomerID:         ledger.CustomerID,
				Year:               period.Year,
				Month:              int(period.Month),
				ParticipatedRights: participated[ledger.ID],
				WinnerAnnounced:    true,
				DrawDate:           now,
			}
			if prize, ok := winners[ledger.CustomerID]; ok {
				p := prize
				h.Won = true
				h.Prize = &p
			}
			histories = append(histories, h)
		}
		if len(histories) > 0 {
			if err := tx.Create(&histories).Error; err != nil {
				return err
			}
		}

		draw.Participants = len(entrants)
		draw.Winners = len(winners)
		err = tx.Model(&models.RaffleDraw{}).
			Where("id = ?", draw.ID).
			Updates(map[string]interface{}{"participants": draw.Participants, "winners": draw.Winners}).Error
		if err != nil {
			return err
		}

		result.Draw = draw
		result.Histories = histories
		result.Winners = sortedWinners(winners)
		report.Entrants = entrants
		report.Winners = result.Winners
		report.Ledgers = len(ledgers)
		return nil
	})
	if err != nil {
		return nil, wrapRaffleErr("CloseDraw", err)
	}

	drawsClosed.Inc()
	l.archiveReport(ctx, &result.Draw, report)
	l.publish(ctx, Event{Type: EventDrawClosed, Period: &period, Count: int64(len(result.Winners)), OccurredAt: now})
	l.logger.Info().
		Str("period", period.String()).
		Int("participants", result.Draw.Participants).
		Int("winners", result.Draw.Winners).
		Msg("Raffle draw closed")

	return result, nil
}

// GetDraw returns the closed draw of period
func (l *RightsLedger) GetDraw(ctx context.Context, period models.Period) (*models.RaffleDraw, error) {
	var draw models.RaffleDraw
	err := l.db.WithContext(ctx).
		Where("year = ? AND month = ?", period.Year, int(period.Month)).
		Limit(1).Find(&draw).Error
	if err != nil {
		return nil, fmt.Errorf("services.RightsLedger.GetDraw: %w", err)
	}
	if draw.ID == 0 {
		return nil, &NotFoundError{Resource: "raffle draw", ID: period.String()}
	}
	return &draw, nil
}

// archiveReport stores the report after commit. The draw is final either
// way, so failures are logged and not returned.
func (l *RightsLedger) archiveReport(ctx context.Context, draw *models.RaffleDraw, report *DrawReport) {
	if l.archive == nil {
		return
	}

	key, err := l.archive.StoreDrawReport(ctx, report)
	if err != nil {
		l.logger.Error().Err(err).Int("year", report.Year).Int("month", report.Month).Msg("Failed to archive draw report")
		return
	}

	err = l.db.WithContext(ctx).Model(&models.RaffleDraw{}).
		Where("id = ?", draw.ID).
		Update("archive_key", key).Error
	if err != nil {
		l.logger.Error().Err(err).Str("key", key).Msg("Failed to record draw archive key")
		return
	}
	draw.ArchiveKey = &key
}

func checkWinners(winners map[uint]string, entrants []DrawEntrant) error {
	entered := make(map[uint]bool, len(entrants))
	for _, e := range entrants {
		entered[e.CustomerID] = true
	}
	for customerID := range winners {
		if !entered[customerID] {
			return fmt.Errorf("selector picked customer %d who did not participate", customerID)
		}
	}
	return nil
}

func sortedWinners(winners map[uint]string) []DrawWinner {
	out := make([]DrawWinner, 0, len(winners))
	for customerID, prize := range winners {
		out = append(out, DrawWinner{CustomerID: customerID, Prize: prize})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })
	return out
}
