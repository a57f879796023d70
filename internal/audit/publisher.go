package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/crownlabs/academy-idp/pkg/kafka"
	"github.com/crownlabs/academy-idp/pkg/logaction"
	"github.com/crownlabs/academy-idp/pkg/mlog"
)

const (
	EventAuthorize  = "oauth.authorize"
	EventTokenGrant = "oauth.token"
	EventLogin      = "auth.login"

	OutcomeGranted = "granted"
	OutcomeDenied  = "denied"
)

// Event is the audit record emitted for every protocol decision.
type Event struct {
	Event       string    `json:"event"`
	ClientID    string    `json:"clientId,omitempty"`
	RedirectURI string    `json:"redirectUri,omitempty"`
	UserID      string    `json:"userId,omitempty"`
	Outcome     string    `json:"outcome"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}

// Publisher writes audit events to the transaction log and, when a broker is
// configured, to Kafka. A nil kafka publisher degrades to log-only; protocol
// handling never fails because the broker is down.
type Publisher struct {
	producer kafka.Publisher
	topic    string
}

func NewPublisher(producer kafka.Publisher, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	log := mlog.L(ctx)
	log.Info(logaction.AUDIT(event.Event), event)

	if p == nil || p.producer == nil || p.topic == "" {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(event.ClientID), payload); err != nil {
		log.Warn(logaction.PRODUCE("audit publish failed"), map[string]any{
			"topic": p.topic,
			"error": err.Error(),
		})
	}
}
