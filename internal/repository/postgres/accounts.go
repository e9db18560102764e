package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/serenbook/account-service/internal/core/domain"
	"github.com/serenbook/account-service/internal/core/port"
	"github.com/serenbook/account-service/internal/repository"
)

const pgUniqueViolation = "23505"

var accountColumns = []string{
	"id",
	"account_type",
	"name",
	"email",
	"phone",
	"password_hash",
	"is_email_verified",
	"is_active",
	"verification_status",
	"otp_code_hash",
	"otp_expires_at",
	"otp_attempts",
	"otp_locked_until",
	"reset_token",
	"reset_token_hashed",
	"reset_expires_at",
	"login_attempts",
	"lock_until",
	"last_login",
	"created_at",
}

// AccountRepository implements port.AccountRepository using PostgreSQL. All
// counter and challenge mutations run as single conditional UPDATE statements
// so concurrent requests against the same row cannot interleave a stale
// read-modify-write.
type AccountRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAccountRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewAccountRepository(exec pgExecutor) *AccountRepository {
	repo := &AccountRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *AccountRepository) WithTx(tx pgx.Tx) *AccountRepository {
	if tx == nil {
		return r
	}
	return &AccountRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new account row, mapping unique violations to the
// column-specific duplicate errors.
func (r *AccountRepository) Create(ctx context.Context, account domain.Account) error {
	stmt, args, err := r.builder.Insert("accounts").
		Columns(accountColumns...).
		Values(
			account.ID,
			account.Type,
			account.Name,
			account.Email,
			account.Phone,
			account.PasswordHash,
			account.IsEmailVerified,
			account.IsActive,
			account.VerificationStatus,
			account.OTPCodeHash,
			account.OTPExpiresAt,
			account.OTPAttempts,
			account.OTPLockedUntil,
			account.ResetToken,
			account.ResetTokenHashed,
			account.ResetExpiresAt,
			account.LoginAttempts,
			account.LockUntil,
			account.LastLogin,
			account.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert account sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if dupErr := mapUniqueViolation(err); dupErr != nil {
			return dupErr
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return nil
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "email"):
		return repository.ErrDuplicateEmail
	case strings.Contains(pgErr.ConstraintName, "phone"):
		return repository.ErrDuplicatePhone
	}
	return nil
}

// GetByID retrieves an account by identifier.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From("accounts").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	return r.scanOne(ctx, stmt, args)
}

// GetByEmail retrieves an account by type and email.
func (r *AccountRepository) GetByEmail(ctx context.Context, accountType domain.AccountType, email string) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From("accounts").
		Where(squirrel.Eq{"account_type": accountType, "email": email}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account by email sql: %w", err)
	}

	return r.scanOne(ctx, stmt, args)
}

// GetByResetToken retrieves an account by its stored reset credential. The
// hashed flag keeps the two reset flows from resolving each other's tokens.
func (r *AccountRepository) GetByResetToken(ctx context.Context, accountType domain.AccountType, token string, hashed bool) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From("accounts").
		Where(squirrel.Eq{
			"account_type":       accountType,
			"reset_token":        token,
			"reset_token_hashed": hashed,
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account by reset token sql: %w", err)
	}

	return r.scanOne(ctx, stmt, args)
}

func (r *AccountRepository) scanOne(ctx context.Context, stmt string, args []any) (*domain.Account, error) {
	row := r.exec.QueryRow(ctx, stmt, args...)

	var account domain.Account
	if err := row.Scan(
		&account.ID,
		&account.Type,
		&account.Name,
		&account.Email,
		&account.Phone,
		&account.PasswordHash,
		&account.IsEmailVerified,
		&account.IsActive,
		&account.VerificationStatus,
		&account.OTPCodeHash,
		&account.OTPExpiresAt,
		&account.OTPAttempts,
		&account.OTPLockedUntil,
		&account.ResetToken,
		&account.ResetTokenHashed,
		&account.ResetExpiresAt,
		&account.LoginAttempts,
		&account.LockUntil,
		&account.LastLogin,
		&account.CreatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	return &account, nil
}

// EmailExists reports whether any account, of either type, holds the email.
func (r *AccountRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, squirrel.Eq{"email": email})
}

// PhoneExists reports whether any account, of either type, holds the phone number.
func (r *AccountRepository) PhoneExists(ctx context.Context, phone string) (bool, error) {
	return r.exists(ctx, squirrel.Eq{"phone": phone})
}

func (r *AccountRepository) exists(ctx context.Context, cond squirrel.Eq) (bool, error) {
	stmt, args, err := r.builder.Select("1").
		From("accounts").
		Where(cond).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists sql: %w", err)
	}

	var one int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&one); err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("scan exists: %w", err)
	}

	return true, nil
}

// SetOTPChallenge replaces any prior challenge, resetting the attempt counter
// and cooldown in the same statement.
func (r *AccountRepository) SetOTPChallenge(ctx context.Context, id, codeHash string, expiresAt time.Time) error {
	stmt, args, err := r.builder.Update("accounts").
		Set("otp_code_hash", codeHash).
		Set("otp_expires_at", expiresAt).
		Set("otp_attempts", 0).
		Set("otp_locked_until", nil).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set otp challenge sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("set otp challenge: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// FailOTPAttempt increments the attempt counter and opens the cooldown window
// in one statement once the counter reaches maxAttempts.
func (r *AccountRepository) FailOTPAttempt(ctx context.Context, id string, maxAttempts int, lockUntil time.Time) (int, bool, error) {
	stmt := `
		UPDATE accounts
		   SET otp_attempts = otp_attempts + 1,
		       otp_locked_until = CASE
		           WHEN otp_attempts + 1 >= $2 THEN $3
		           ELSE otp_locked_until
		       END
		 WHERE id = $1
		RETURNING otp_attempts
	`

	var attempts int
	if err := r.exec.QueryRow(ctx, stmt, id, maxAttempts, lockUntil).Scan(&attempts); err != nil {
		if err == pgx.ErrNoRows {
			return 0, false, repository.ErrNotFound
		}
		return 0, false, fmt.Errorf("fail otp attempt: %w", err)
	}

	return attempts, attempts >= maxAttempts, nil
}

// ConsumeOTPChallenge clears the challenge conditional on the stored hash
// still matching, so only one of two racing verifications can succeed.
func (r *AccountRepository) ConsumeOTPChallenge(ctx context.Context, id, codeHash string, markVerified bool) error {
	query := r.builder.Update("accounts").
		Set("otp_code_hash", nil).
		Set("otp_expires_at", nil).
		Set("otp_attempts", 0).
		Set("otp_locked_until", nil).
		Where(squirrel.Eq{"id": id, "otp_code_hash": codeHash})

	if markVerified {
		query = query.Set("is_email_verified", true)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build consume otp challenge sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("consume otp challenge: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RecordLoginFailure increments the login attempt counter and opens the
// lockout window in one statement once threshold is reached. The counter
// holds at threshold until a successful login or a reset clears it.
func (r *AccountRepository) RecordLoginFailure(ctx context.Context, id string, threshold int, lockUntil time.Time) (int, bool, error) {
	stmt := `
		UPDATE accounts
		   SET login_attempts = LEAST(login_attempts + 1, $2),
		       lock_until = CASE
		           WHEN login_attempts + 1 >= $2 THEN $3
		           ELSE lock_until
		       END
		 WHERE id = $1
		RETURNING login_attempts
	`

	var attempts int
	if err := r.exec.QueryRow(ctx, stmt, id, threshold, lockUntil).Scan(&attempts); err != nil {
		if err == pgx.ErrNoRows {
			return 0, false, repository.ErrNotFound
		}
		return 0, false, fmt.Errorf("record login failure: %w", err)
	}

	return attempts, attempts >= threshold, nil
}

// RecordLoginSuccess clears the lockout counters and stamps last_login.
func (r *AccountRepository) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update("accounts").
		Set("login_attempts", 0).
		Set("lock_until", nil).
		Set("last_login", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record login success sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("record login success: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// StageRecovery writes the forgot-password OTP challenge and reset credential
// together so a failed email dispatch can roll the pair back as a unit.
func (r *AccountRepository) StageRecovery(ctx context.Context, id, otpCodeHash string, otpExpiresAt time.Time, resetToken string, resetHashed bool, resetExpiresAt time.Time) error {
	stmt, args, err := r.builder.Update("accounts").
		Set("otp_code_hash", otpCodeHash).
		Set("otp_expires_at", otpExpiresAt).
		Set("otp_attempts", 0).
		Set("otp_locked_until", nil).
		Set("reset_token", resetToken).
		Set("reset_token_hashed", resetHashed).
		Set("reset_expires_at", resetExpiresAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build stage recovery sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("stage recovery: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ClearRecovery removes both the OTP challenge and the reset credential.
func (r *AccountRepository) ClearRecovery(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update("accounts").
		Set("otp_code_hash", nil).
		Set("otp_expires_at", nil).
		Set("otp_attempts", 0).
		Set("otp_locked_until", nil).
		Set("reset_token", nil).
		Set("reset_token_hashed", false).
		Set("reset_expires_at", nil).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build clear recovery sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("clear recovery: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetResetCredentials stores a reset credential without touching OTP state.
func (r *AccountRepository) SetResetCredentials(ctx context.Context, id, token string, hashed bool, expiresAt time.Time) error {
	stmt, args, err := r.builder.Update("accounts").
		Set("reset_token", token).
		Set("reset_token_hashed", hashed).
		Set("reset_expires_at", expiresAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set reset credentials sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("set reset credentials: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ConsumeResetForPassword applies the new password hash and clears the reset
// credential, conditional on the stored token still matching expectToken.
func (r *AccountRepository) ConsumeResetForPassword(ctx context.Context, id, expectToken, newPasswordHash string, clearOTP, clearLockout, markVerified bool) error {
	query := r.builder.Update("accounts").
		Set("password_hash", newPasswordHash).
		Set("reset_token", nil).
		Set("reset_token_hashed", false).
		Set("reset_expires_at", nil).
		Where(squirrel.Eq{"id": id, "reset_token": expectToken})

	if clearOTP {
		query = query.
			Set("otp_code_hash", nil).
			Set("otp_expires_at", nil).
			Set("otp_attempts", 0).
			Set("otp_locked_until", nil)
	}
	if clearLockout {
		query = query.
			Set("login_attempts", 0).
			Set("lock_until", nil)
	}
	if markVerified {
		query = query.Set("is_email_verified", true)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build consume reset sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("consume reset: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdatePassword replaces the password hash.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	stmt, args, err := r.builder.Update("accounts").
		Set("password_hash", passwordHash).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetVerificationStatus updates the moderation state.
func (r *AccountRepository) SetVerificationStatus(ctx context.Context, id string, status domain.VerificationStatus) error {
	stmt, args, err := r.builder.Update("accounts").
		Set("verification_status", status).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set verification status sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("set verification status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Deactivate marks the account inactive (soft delete).
func (r *AccountRepository) Deactivate(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update("accounts").
		Set("is_active", false).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build deactivate sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("deactivate account: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ListApprovedExperts returns experts that are active, approved, and email-verified.
func (r *AccountRepository) ListApprovedExperts(ctx context.Context) ([]domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From("accounts").
		Where(squirrel.Eq{
			"account_type":        domain.AccountTypeExpert,
			"is_active":           true,
			"verification_status": domain.VerificationApproved,
			"is_email_verified":   true,
		}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list experts sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query experts: %w", err)
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		var account domain.Account
		if err := rows.Scan(
			&account.ID,
			&account.Type,
			&account.Name,
			&account.Email,
			&account.Phone,
			&account.PasswordHash,
			&account.IsEmailVerified,
			&account.IsActive,
			&account.VerificationStatus,
			&account.OTPCodeHash,
			&account.OTPExpiresAt,
			&account.OTPAttempts,
			&account.OTPLockedUntil,
			&account.ResetToken,
			&account.ResetTokenHashed,
			&account.ResetExpiresAt,
			&account.LoginAttempts,
			&account.LockUntil,
			&account.LastLogin,
			&account.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan expert: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experts: %w", err)
	}

	return accounts, nil
}

var _ port.AccountRepository = (*AccountRepository)(nil)
