package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/serenbook/account-service/internal/core/domain"
	"github.com/serenbook/account-service/internal/core/port"
	"github.com/serenbook/account-service/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. It stands in
// when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, accountID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("account_id", accountID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishAccountRegistered logs account.registered events.
func (p *StubPublisher) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	payload := map[string]any{
		"account_type":  event.AccountType,
		"email":         logger.MaskEmail(event.Email),
		"phone":         logger.MaskPhone(event.Phone),
		"registered_at": event.RegisteredAt,
		"otp_sent":      event.OTPSent,
	}
	p.logEvent(eventAccountRegistered, event.AccountID, event.RegisteredAt, payload)
	return nil
}

// PublishEmailVerified logs account.email_verified events.
func (p *StubPublisher) PublishEmailVerified(_ context.Context, event domain.EmailVerifiedEvent) error {
	payload := map[string]any{
		"account_type": event.AccountType,
		"email":        logger.MaskEmail(event.Email),
		"verified_at":  event.VerifiedAt,
	}
	p.logEvent(eventEmailVerified, event.AccountID, event.VerifiedAt, payload)
	return nil
}

// PublishAccountLocked logs account.locked events.
func (p *StubPublisher) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	payload := map[string]any{
		"account_type": event.AccountType,
		"attempts":     event.Attempts,
		"locked_at":    event.LockedAt,
		"locked_until": event.LockedUntil,
	}
	p.logEvent(eventAccountLocked, event.AccountID, event.LockedAt, payload)
	return nil
}

// PublishPasswordChanged logs account.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	payload := map[string]any{
		"account_type": event.AccountType,
		"changed_at":   event.ChangedAt,
		"method":       event.Method,
	}
	p.logEvent(eventPasswordChanged, event.AccountID, event.ChangedAt, payload)
	return nil
}

// PublishPasswordResetRequested logs account.password.reset_requested events.
func (p *StubPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := map[string]any{
		"account_type":       event.AccountType,
		"requested_at":       event.RequestedAt,
		"masked_destination": event.MaskedDestination,
		"expires_at":         event.ExpiresAt,
	}
	p.logEvent(eventPasswordResetRequested, event.AccountID, event.RequestedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
