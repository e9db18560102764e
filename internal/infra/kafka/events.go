package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/serenbook/account-service/internal/core/domain"
	"github.com/serenbook/account-service/internal/core/port"
	"github.com/serenbook/account-service/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types relative to the configured topic prefix.
const (
	eventAccountRegistered      = "account.registered"
	eventEmailVerified          = "account.email_verified"
	eventAccountLocked          = "account.locked"
	eventPasswordChanged        = "account.password.changed"
	eventPasswordResetRequested = "account.password.reset_requested"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID     string           `json:"event_id"`
	EventType   string           `json:"event_type"`
	AccountID   string           `json:"account_id,omitempty"`
	AccountType string           `json:"account_type,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
	Version     string           `json:"version"`
	Payload     any              `json:"payload"`
	Metadata    envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, accountID string, accountType domain.AccountType, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	envelope := eventEnvelope{
		EventID:     id,
		EventType:   eventType,
		AccountID:   accountID,
		AccountType: string(accountType),
		Timestamp:   ts.UTC(),
		Version:     schemaVersion,
		Payload:     payload,
		Metadata:    metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(accountID),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAccountRegistered publishes account.registered events.
func (p *EventPublisher) PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error {
	payload := struct {
		AccountID    string         `json:"account_id"`
		AccountType  string         `json:"account_type"`
		Email        string         `json:"email,omitempty"`
		Phone        string         `json:"phone,omitempty"`
		RegisteredAt time.Time      `json:"registered_at"`
		OTPSent      bool           `json:"otp_sent"`
		Metadata     map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:    event.AccountID,
		AccountType:  string(event.AccountType),
		Email:        event.Email,
		Phone:        event.Phone,
		RegisteredAt: event.RegisteredAt.UTC(),
		OTPSent:      event.OTPSent,
		Metadata:     event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventAccountRegistered, event.AccountID, event.AccountType, event.RegisteredAt, payload)
}

// PublishEmailVerified publishes account.email_verified events.
func (p *EventPublisher) PublishEmailVerified(ctx context.Context, event domain.EmailVerifiedEvent) error {
	payload := struct {
		AccountID   string         `json:"account_id"`
		AccountType string         `json:"account_type"`
		Email       string         `json:"email"`
		VerifiedAt  time.Time      `json:"verified_at"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:   event.AccountID,
		AccountType: string(event.AccountType),
		Email:       event.Email,
		VerifiedAt:  event.VerifiedAt.UTC(),
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventEmailVerified, event.AccountID, event.AccountType, event.VerifiedAt, payload)
}

// PublishAccountLocked publishes account.locked events.
func (p *EventPublisher) PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error {
	payload := struct {
		AccountID   string         `json:"account_id"`
		AccountType string         `json:"account_type"`
		Attempts    int            `json:"attempts"`
		LockedAt    time.Time      `json:"locked_at"`
		LockedUntil time.Time      `json:"locked_until"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:   event.AccountID,
		AccountType: string(event.AccountType),
		Attempts:    event.Attempts,
		LockedAt:    event.LockedAt.UTC(),
		LockedUntil: event.LockedUntil.UTC(),
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventAccountLocked, event.AccountID, event.AccountType, event.LockedAt, payload)
}

// PublishPasswordChanged publishes account.password.changed events.
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		AccountID   string         `json:"account_id"`
		AccountType string         `json:"account_type"`
		ChangedAt   time.Time      `json:"changed_at"`
		Method      string         `json:"method"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:   event.AccountID,
		AccountType: string(event.AccountType),
		ChangedAt:   event.ChangedAt.UTC(),
		Method:      event.Method,
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventPasswordChanged, event.AccountID, event.AccountType, event.ChangedAt, payload)
}

// PublishPasswordResetRequested publishes account.password.reset_requested events.
func (p *EventPublisher) PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := struct {
		AccountID         string         `json:"account_id"`
		AccountType       string         `json:"account_type"`
		RequestedAt       time.Time      `json:"requested_at"`
		MaskedDestination string         `json:"masked_destination,omitempty"`
		ExpiresAt         time.Time      `json:"expires_at"`
		Metadata          map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:         event.AccountID,
		AccountType:       string(event.AccountType),
		RequestedAt:       event.RequestedAt.UTC(),
		MaskedDestination: event.MaskedDestination,
		ExpiresAt:         event.ExpiresAt.UTC(),
		Metadata:          event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventPasswordResetRequested, event.AccountID, event.AccountType, event.RequestedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
