package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"huntzen-care/utils"
)

const (
	EventPractitionerUpdated   = "practitioner.updated"
	EventPractitionerVerified  = "practitioner.verified"
	EventConsultationBooked    = "consultation.booked"
	EventConsultationCancelled = "consultation.cancelled"
	EventConsultationCompleted = "consultation.completed"
	EventConsultationChanged   = "consultation.changed"
	EventUserDeactivated       = "user.deactivated"
	EventCompanyUpdated        = "company.updated"
)

// Event is the envelope written to the care events topic.
type Event struct {
	Type       string    `json:"event"`
	EntityID   uint      `json:"entity_id"`
	UserID     uint      `json:"user_id,omitempty"`
	CompanyID  *uint     `json:"company_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

type KafkaPublisher struct {
	producer utils.KafkaProducer
	topic    string
}

func NewKafkaPublisher(producer utils.KafkaProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	key := []byte(ev.Type + ":" + strconv.FormatUint(uint64(ev.EntityID), 10))
	return p.producer.SendMessage(ctx, p.topic, key, data)
}

// CachePrefixes lists the cache entries an event makes stale.
func (ev Event) CachePrefixes() []string {
	switch ev.Type {
	case EventPractitionerUpdated, EventPractitionerVerified:
		return []string{cachePrefixPractitioners}
	case EventConsultationBooked, EventConsultationCancelled, EventConsultationCompleted,
		EventConsultationChanged, EventUserDeactivated, EventCompanyUpdated:
		prefixes := []string{cachePrefixStats + "platform"}
		if ev.CompanyID != nil {
			prefixes = append(prefixes, statsKey(*ev.CompanyID))
		}
		return prefixes
	}
	return nil
}

// IsPractitionerEvent reports whether EntityID names a practitioner whose
// search document must be refreshed.
func (ev Event) IsPractitionerEvent() bool {
	return ev.Type == EventPractitionerUpdated || ev.Type == EventPractitionerVerified
}
