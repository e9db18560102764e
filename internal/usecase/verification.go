package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/serenbook/account-service/internal/core/domain"
	"github.com/serenbook/account-service/internal/core/port"
	"github.com/serenbook/account-service/internal/repository"
)

// ErrInvalidVerificationStatus indicates a status outside the moderation set.
var ErrInvalidVerificationStatus = errors.New("invalid verification status")

// VerificationService covers the moderation workflow and account lifecycle
// operations that sit outside the credential paths.
type VerificationService struct {
	accounts port.AccountRepository
	logger   *zap.Logger
}

// NewVerificationService constructs a VerificationService.
func NewVerificationService(accounts port.AccountRepository, log *zap.Logger) *VerificationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &VerificationService{accounts: accounts, logger: log}
}

// SetStatus applies a moderation decision to an expert account.
func (s *VerificationService) SetStatus(ctx context.Context, accountID string, status domain.VerificationStatus) error {
	if !status.Valid() {
		return ErrInvalidVerificationStatus
	}

	if err := s.accounts.SetVerificationStatus(ctx, accountID, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("set verification status: %w", err)
	}

	s.logger.Info("verification status updated",
		zap.String("account_id", accountID),
		zap.String("status", string(status)))

	return nil
}

// ListApprovedExperts returns the public expert directory. Visibility requires
// all three gates: active, approved, and email-verified.
func (s *VerificationService) ListApprovedExperts(ctx context.Context) ([]domain.Account, error) {
	experts, err := s.accounts.ListApprovedExperts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list experts: %w", err)
	}

	sanitized := make([]domain.Account, 0, len(experts))
	for _, expert := range experts {
		sanitized = append(sanitized, expert.Sanitized())
	}

	return sanitized, nil
}

// Deactivate soft-deletes the account. Records are never hard-deleted.
func (s *VerificationService) Deactivate(ctx context.Context, accountID string) error {
	if err := s.accounts.Deactivate(ctx, accountID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("deactivate account: %w", err)
	}

	s.logger.Info("account deactivated", zap.String("account_id", accountID))

	return nil
}
