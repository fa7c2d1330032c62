package services

import (
	"github.com/kendall-kelly/servicehub-api/config"
	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Services bundles everything the HTTP layer calls into
type Services struct {
	Clock        Clock
	Requests     *RequestStore
	Matcher      *Matcher
	Offers       *OfferManager
	Raffle       *RightsLedger
	Appointments *AppointmentService
	Tokens       *LookupTokens
	Auth0        UserInfoFetcher
	Archive      DrawArchive
	Events       EventPublisher
}

// Options overrides the collaborators New would otherwise build
type Options struct {
	Clock   Clock
	Events  EventPublisher
	Archive DrawArchive
	Auth0   UserInfoFetcher
}

// New wires the services on top of db
func New(db *gorm.DB, cfg *config.Config, logger zerolog.Logger, opts Options) (*Services, error) {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Events == nil {
		opts.Events = NoopPublisher{}
	}
	if opts.Auth0 == nil {
		opts.Auth0 = NewAuth0Service(cfg.Auth0Domain)
	}

	tokens, err := NewLookupTokens(cfg.LookupTokenSecret, cfg.LookupTokenTTL, opts.Clock)
	if err != nil {
		return nil, err
	}
	if cfg.LookupTokenSecret == "" {
		logger.Warn().Msg("LOOKUP_TOKEN_SECRET not set, lookup tokens will not survive a restart")
	}

	schedule := DrawSchedule{Hour: cfg.RaffleDrawHour, Location: cfg.RaffleLocation()}
	ledger := NewRightsLedger(db, opts.Clock, schedule, opts.Archive, opts.Events, logger.With().Str("component", "raffle").Logger())

	return &Services{
		Clock:        opts.Clock,
		Requests:     NewRequestStore(db, opts.Clock, cfg.RequestTTL, opts.Events, logger.With().Str("component", "requests").Logger()),
		Matcher:      NewMatcher(db, opts.Clock),
		Offers:       NewOfferManager(db, opts.Clock, opts.Events, logger.With().Str("component", "offers").Logger()),
		Raffle:       ledger,
		Appointments: NewAppointmentService(db, opts.Clock, ledger, logger.With().Str("component", "appointments").Logger()),
		Tokens:       tokens,
		Auth0:        opts.Auth0,
		Archive:      opts.Archive,
		Events:       opts.Events,
	}, nil
}

// CurrentPeriod is the raffle period at the clock's now
func (s *Services) CurrentPeriod() models.Period {
	return s.Raffle.Schedule().PeriodAt(s.Clock.Now())
}
