package services

import (
	"log/slog"
	"time"

	"gorm.io/gorm"

	"huntzen-care/utils"
)

// Options wires the services. DB, Logger and Tokens are required; the rest
// are optional and degrade to database-only behaviour when nil.
type Options struct {
	DB                *gorm.DB
	Logger            *slog.Logger
	Tokens            *utils.TokenIssuer
	Cache             Cache
	Events            EventPublisher
	Search            SearchIndex
	PractitionerIndex string
	CacheTTL          time.Duration
	InvitationTTL     time.Duration
	Now               func() time.Time
}

type Services struct {
	Auth          *AuthService
	Invitations   *InvitationService
	Companies     *CompanyService
	HR            *HRService
	Admin         *AdminService
	Practitioners *PractitionerService
	Consultations *ConsultationService
	Messages      *MessageService
	Notifications *NotificationService
	Journal       *JournalService
	Emergency     *EmergencyService
	Activity      *ActivityService
	Indexer       *PractitionerIndexer
}

func New(opts Options) *Services {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.InvitationTTL <= 0 {
		opts.InvitationTTL = 7 * 24 * time.Hour
	}
	if opts.PractitionerIndex == "" {
		opts.PractitionerIndex = "practitioners"
	}

	c := &core{
		db:       opts.DB,
		log:      opts.Logger,
		cache:    opts.Cache,
		events:   opts.Events,
		cacheTTL: opts.CacheTTL,
		now:      opts.Now,
	}
	var indexer *PractitionerIndexer
	if opts.Search != nil {
		indexer = NewPractitionerIndexer(opts.DB, opts.Search, opts.PractitionerIndex)
		c.indexer = indexer
	}

	activity := &ActivityService{core: c}
	notifications := &NotificationService{core: c}
	consultations := &ConsultationService{core: c, notifications: notifications, activity: activity}

	return &Services{
		Auth:          &AuthService{core: c, tokens: opts.Tokens, notifications: notifications, activity: activity},
		Invitations:   &InvitationService{core: c, ttl: opts.InvitationTTL, activity: activity},
		Companies:     &CompanyService{core: c, activity: activity},
		HR:            &HRService{core: c, consultations: consultations, activity: activity},
		Admin:         &AdminService{core: c, consultations: consultations, notifications: notifications, activity: activity},
		Practitioners: &PractitionerService{core: c, activity: activity, search: opts.Search, index: opts.PractitionerIndex},
		Consultations: consultations,
		Messages:      &MessageService{core: c, notifications: notifications},
		Notifications: notifications,
		Journal:       &JournalService{core: c},
		Emergency:     &EmergencyService{core: c, activity: activity},
		Activity:      activity,
		Indexer:       indexer,
	}
}
