package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/serenbook/account-service/internal/core/domain"
)

func newVerificationFixture(t *testing.T) (*VerificationService, *memAccounts) {
	t.Helper()
	accounts := newMemAccounts()
	return NewVerificationService(accounts, zaptest.NewLogger(t)), accounts
}

func TestSetStatusApprove(t *testing.T) {
	svc, accounts := newVerificationFixture(t)
	seeded := seedAccount(t, accounts, domain.AccountTypeExpert, "nadia@example.com", strongPassword)

	if err := svc.SetStatus(context.Background(), seeded.ID, domain.VerificationApproved); err != nil {
		t.Fatalf("SetStatus returned error: %v", err)
	}
	if accounts.get(seeded.ID).VerificationStatus != domain.VerificationApproved {
		t.Fatalf("expected approved status")
	}
}

func TestSetStatusRejectsUnknownValue(t *testing.T) {
	svc, accounts := newVerificationFixture(t)
	seeded := seedAccount(t, accounts, domain.AccountTypeExpert, "nadia@example.com", strongPassword)

	err := svc.SetStatus(context.Background(), seeded.ID, domain.VerificationStatus("escalated"))
	if !errors.Is(err, ErrInvalidVerificationStatus) {
		t.Fatalf("expected ErrInvalidVerificationStatus, got %v", err)
	}
}

func TestSetStatusUnknownAccount(t *testing.T) {
	svc, _ := newVerificationFixture(t)

	err := svc.SetStatus(context.Background(), "ghost", domain.VerificationApproved)
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestListApprovedExpertsVisibilityGates(t *testing.T) {
	svc, accounts := newVerificationFixture(t)

	listed := seedAccount(t, accounts, domain.AccountTypeExpert, "listed@example.com", strongPassword)
	stored := accounts.get(listed.ID)
	stored.VerificationStatus = domain.VerificationApproved
	stored.IsEmailVerified = true
	accounts.put(stored)

	// Approved but unverified email: hidden.
	hidden := seedAccount(t, accounts, domain.AccountTypeExpert, "hidden@example.com", strongPassword)
	stored = accounts.get(hidden.ID)
	stored.VerificationStatus = domain.VerificationApproved
	accounts.put(stored)

	// Verified but deactivated: hidden.
	inactive := seedAccount(t, accounts, domain.AccountTypeExpert, "inactive@example.com", strongPassword)
	stored = accounts.get(inactive.ID)
	stored.VerificationStatus = domain.VerificationApproved
	stored.IsEmailVerified = true
	stored.IsActive = false
	accounts.put(stored)

	experts, err := svc.ListApprovedExperts(context.Background())
	if err != nil {
		t.Fatalf("ListApprovedExperts returned error: %v", err)
	}
	if len(experts) != 1 || experts[0].ID != listed.ID {
		t.Fatalf("expected only the fully gated expert, got %+v", experts)
	}
	if experts[0].PasswordHash != "" || experts[0].OTPCodeHash != nil {
		t.Fatalf("expected sanitized listing")
	}
}

func TestDeactivate(t *testing.T) {
	svc, accounts := newVerificationFixture(t)
	seeded := seedAccount(t, accounts, domain.AccountTypeUser, "nadia@example.com", strongPassword)

	if err := svc.Deactivate(context.Background(), seeded.ID); err != nil {
		t.Fatalf("Deactivate returned error: %v", err)
	}
	if accounts.get(seeded.ID).IsActive {
		t.Fatalf("expected account inactive")
	}
}
