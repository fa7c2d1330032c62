package services

import (
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/tomb.v2"
)

// ExpirySweeper runs MarkExpired on a fixed interval until stopped
type ExpirySweeper struct {
	store    *RequestStore
	interval time.Duration
	logger   zerolog.Logger
	t        tomb.Tomb
}

// NewExpirySweeper creates a stopped sweeper
func NewExpirySweeper(store *RequestStore, interval time.Duration, logger zerolog.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		store:    store,
		interval: interval,
		logger:   logger.With().Str("component", "expiry_sweeper").Logger(),
	}
}

// Start sweeps once immediately, then every interval
func (s *ExpirySweeper) Start() {
	s.t.Go(s.run)
}

// Stop signals the loop and waits for the sweep in flight to finish
func (s *ExpirySweeper) Stop() error {
	s.t.Kill(nil)
	return s.t.Wait()
}

func (s *ExpirySweeper) run() error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep()
	for {
		select {
		case <-s.t.Dying():
			return nil
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *ExpirySweeper) sweep() {
	ctx := s.t.Context(nil)
	count, err := s.store.MarkExpired(ctx)
	if err != nil {
		// next tick retries; the sweep is idempotent
		s.logger.Error().Err(err).Msg("Expiry sweep failed")
		return
	}
	s.logger.Debug().Int64("expired", count).Msg("Expiry sweep finished")
}
