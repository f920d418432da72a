package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/otpgate/otpgate/internal/database"
	"github.com/otpgate/otpgate/internal/models"
)

// saveRetries bounds local retries on transient store errors before
// surfacing ErrStoreUnavailable.
const saveRetries = 2

const accountColumns = `id, email, name, credential_hash, verified, active,
	otp_hash, otp_expires_at, otp_attempts, login_failure_count, locked_until,
	last_login_at, version, created_at, updated_at`

type AccountRepository struct {
	db *database.DB
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// rowScanner covers both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account

	err := scanner.Scan(
		&account.ID, &account.Email, &account.Name, &account.CredentialHash,
		&account.Verified, &account.Active,
		&account.OTPHash, &account.OTPExpiresAt, &account.OTPAttempts,
		&account.LoginFailureCount, &account.LockedUntil,
		&account.LastLoginAt, &account.Version,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &account, nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE id = $1`, accountColumns)
	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, id))
}

// FindByEmail looks an account up by its case-insensitive key.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE email = $1`, accountColumns)
	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, strings.ToLower(email)))
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	account.ID = uuid.New().String()
	account.Email = strings.ToLower(account.Email)

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	account.Version = 1

	query := fmt.Sprintf(`
		INSERT INTO accounts (id, email, name, credential_hash, verified, active,
			otp_hash, otp_expires_at, otp_attempts, login_failure_count, locked_until,
			last_login_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING %s`, accountColumns)

	created, err := scanAccountRow(r.db.Pool.QueryRow(ctx, query,
		account.ID, account.Email, account.Name, account.CredentialHash,
		account.Verified, account.Active,
		account.OTPHash, account.OTPExpiresAt, account.OTPAttempts,
		account.LoginFailureCount, account.LockedUntil,
		account.LastLoginAt, account.Version, account.CreatedAt, account.UpdatedAt,
	))
	if err != nil {
		return nil, err
	}

	return created, nil
}

// Save persists all mutable fields behind an optimistic version check.
// If a concurrent writer bumped the version first the UPDATE matches zero
// rows and Save returns ErrConflictingWrite; the caller reloads and
// re-evaluates.
func (r *AccountRepository) Save(ctx context.Context, account *models.Account) (*models.Account, error) {
	account.UpdatedAt = time.Now()

	query := fmt.Sprintf(`
		UPDATE accounts SET
			name = $1, credential_hash = $2, verified = $3, active = $4,
			otp_hash = $5, otp_expires_at = $6, otp_attempts = $7,
			login_failure_count = $8, locked_until = $9, last_login_at = $10,
			version = version + 1, updated_at = $11
		WHERE id = $12 AND version = $13
		RETURNING %s`, accountColumns)

	var saved *models.Account
	var err error
	for attempt := 0; attempt <= saveRetries; attempt++ {
		saved, err = scanAccountRow(r.db.Pool.QueryRow(ctx, query,
			account.Name, account.CredentialHash, account.Verified, account.Active,
			account.OTPHash, account.OTPExpiresAt, account.OTPAttempts,
			account.LoginFailureCount, account.LockedUntil, account.LastLoginAt,
			account.UpdatedAt, account.ID, account.Version,
		))
		if err == nil {
			return saved, nil
		}
		if errors.Is(err, models.ErrNotFound) {
			// Row exists with a newer version, or was deleted out of band.
			return nil, models.ErrConflictingWrite
		}
		if !database.IsTransient(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
}

// IncrementOTPAttempts atomically counts one wrong guess against the current
// challenge and returns the fresh row. Safe under concurrent verifiers: two
// racing increments both land.
func (r *AccountRepository) IncrementOTPAttempts(ctx context.Context, id string) (*models.Account, error) {
	query := fmt.Sprintf(`
		UPDATE accounts SET
			otp_attempts = otp_attempts + 1,
			version = version + 1, updated_at = now()
		WHERE id = $1
		RETURNING %s`, accountColumns)

	return scanAccountRow(r.db.Pool.QueryRow(ctx, query, id))
}

// RecordLoginOTPFailure atomically counts a wrong login guess and, when this
// guess exhausts the challenge, applies the lockout escalation in the same
// statement: login_failure_count advances, and crossing maxLoginFailures
// sets locked_until and resets the failure count.
func (r *AccountRepository) RecordLoginOTPFailure(ctx context.Context, id string, maxOTPAttempts, maxLoginFailures int, lockDuration time.Duration) (*models.Account, error) {
	query := fmt.Sprintf(`
		UPDATE accounts SET
			otp_attempts = otp_attempts + 1,
			login_failure_count = CASE
				WHEN otp_attempts + 1 >= $2 AND login_failure_count + 1 >= $3 THEN 0
				WHEN otp_attempts + 1 >= $2 THEN login_failure_count + 1
				ELSE login_failure_count
			END,
			locked_until = CASE
				WHEN otp_attempts + 1 >= $2 AND login_failure_count + 1 >= $3 THEN now() + $4::interval
				ELSE locked_until
			END,
			version = version + 1, updated_at = now()
		WHERE id = $1
		RETURNING %s`, accountColumns)

	return scanAccountRow(r.db.Pool.QueryRow(ctx, query,
		id, maxOTPAttempts, maxLoginFailures, lockDuration.String(),
	))
}

// RecordChallengeExhausted applies the lockout escalation for a verification
// attempt arriving after the challenge is already spent.
func (r *AccountRepository) RecordChallengeExhausted(ctx context.Context, id string, maxLoginFailures int, lockDuration time.Duration) (*models.Account, error) {
	query := fmt.Sprintf(`
		UPDATE accounts SET
			login_failure_count = CASE
				WHEN login_failure_count + 1 >= $2 THEN 0
				ELSE login_failure_count + 1
			END,
			locked_until = CASE
				WHEN login_failure_count + 1 >= $2 THEN now() + $3::interval
				ELSE locked_until
			END,
			version = version + 1, updated_at = now()
		WHERE id = $1
		RETURNING %s`, accountColumns)

	return scanAccountRow(r.db.Pool.QueryRow(ctx, query,
		id, maxLoginFailures, lockDuration.String(),
	))
}

// ClearExpiredChallenges drops OTP state whose expiry has passed.
// Run periodically from the background sweeper.
func (r *AccountRepository) ClearExpiredChallenges(ctx context.Context) (int64, error) {
	query := `
		UPDATE accounts SET
			otp_hash = NULL, otp_expires_at = NULL, otp_attempts = 0,
			version = version + 1, updated_at = now()
		WHERE otp_expires_at IS NOT NULL AND otp_expires_at < now()
	`

	result, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

// ClearLapsedLocks nulls locked_until once the lock instant has passed.
// Purely cosmetic - IsLocked already treats a past timestamp as unlocked.
func (r *AccountRepository) ClearLapsedLocks(ctx context.Context) (int64, error) {
	query := `
		UPDATE accounts SET
			locked_until = NULL,
			version = version + 1, updated_at = now()
		WHERE locked_until IS NOT NULL AND locked_until < now()
	`

	result, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}
