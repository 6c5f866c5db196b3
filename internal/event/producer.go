package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Girirajbhatt/careerhub/internal/domain"
	pkgkafka "github.com/Girirajbhatt/careerhub/pkg/kafka"
)

// Kafka topic names for identity domain events.
var (
	TopicIdentityRegistered   = pkgkafka.Topic("identity", "registered")
	TopicPasswordChanged      = pkgkafka.Topic("identity", "password_changed")
	TopicSessionReuseDetected = pkgkafka.Topic("identity", "session_reuse_detected")
)

// Aggregate type constant.
const AggregateTypeIdentity = "identity"

// Source identifier for events originating from the identity service.
const SourceIdentityService = "identity-service"

// IdentityRegisteredData is the payload for an identity.registered event.
type IdentityRegisteredData struct {
	ID          string `json:"id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// PasswordChangedData is the payload for an identity.password_changed event.
type PasswordChangedData struct {
	IdentityID string    `json:"identity_id"`
	ChangedAt  time.Time `json:"changed_at"`
}

// SessionReuseData is the payload for an identity.session_reuse_detected
// event. TokenID is the jti of the refresh token that was presented after
// it had already been rotated away or logged out.
type SessionReuseData struct {
	IdentityID string    `json:"identity_id"`
	TokenID    string    `json:"token_id"`
	DetectedAt time.Time `json:"detected_at"`
}

// publisher is the subset of *pkgkafka.Producer used here.
type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes identity domain events to Kafka.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the identity service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishIdentityRegistered publishes an identity.registered event.
func (p *Producer) PublishIdentityRegistered(ctx context.Context, identity *domain.Identity) error {
	data := IdentityRegisteredData{
		ID:          identity.ID,
		Handle:      identity.Handle,
		DisplayName: identity.DisplayName,
		Role:        identity.Role.String(),
	}
	return p.publish(ctx, TopicIdentityRegistered, identity.ID, data)
}

// PublishPasswordChanged publishes an identity.password_changed event.
func (p *Producer) PublishPasswordChanged(ctx context.Context, identityID string) error {
	data := PasswordChangedData{IdentityID: identityID, ChangedAt: time.Now().UTC()}
	return p.publish(ctx, TopicPasswordChanged, identityID, data)
}

// PublishSessionReuseDetected publishes an identity.session_reuse_detected event.
func (p *Producer) PublishSessionReuseDetected(ctx context.Context, identityID, tokenID string) error {
	data := SessionReuseData{IdentityID: identityID, TokenID: tokenID, DetectedAt: time.Now().UTC()}
	return p.publish(ctx, TopicSessionReuseDetected, identityID, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID string, data any) error {
	event, err := pkgkafka.NewEvent(SourceIdentityService, topic,
		pkgkafka.Aggregate{Type: AggregateTypeIdentity, ID: aggregateID}, data)
	if err != nil {
		return err
	}
	event.FromRequest(ctx)

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published identity event",
		slog.String("topic", topic),
		slog.String("identity_id", aggregateID),
	)

	return nil
}
