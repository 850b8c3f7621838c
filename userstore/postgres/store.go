// Package postgres implements the CredentialStore on PostgreSQL via
// pgx. The failure counter is incremented server-side so concurrent
// login failures observe distinct counts.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/authgate"
)

const uniqueViolation = "23505"

// Schema creates the tables the store needs. Run it once at deploy
// time or from a migration tool.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id                    UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	email                 TEXT NOT NULL UNIQUE,
	password_hash         TEXT NOT NULL,
	role                  TEXT NOT NULL DEFAULT 'user',
	is_active             BOOLEAN NOT NULL DEFAULT TRUE,
	failed_login_attempts INTEGER NOT NULL DEFAULT 0,
	locked_until          TIMESTAMPTZ,
	must_change_password  BOOLEAN NOT NULL DEFAULT FALSE,
	two_factor_enabled    BOOLEAN NOT NULL DEFAULT FALSE,
	two_factor_secret     BYTEA,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS backup_codes (
	user_id   UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	code_hash BYTEA NOT NULL,
	PRIMARY KEY (user_id, code_hash)
);
`

// Store is a CredentialStore backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate applies [Schema].
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

const userColumns = `id, email, password_hash, role, is_active,
	failed_login_attempts, locked_until, must_change_password,
	two_factor_enabled, two_factor_secret`

func (s *Store) GetUserByID(ctx context.Context, id string) (authgate.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (authgate.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (s *Store) CreateUser(ctx context.Context, input authgate.CreateUserInput) (authgate.User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns,
		input.Email, input.PasswordHash, string(input.Role),
	)
	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return authgate.User{}, authgate.ErrUserExists
		}
		return authgate.User{}, err
	}
	return user, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	return s.exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, hash)
}

func (s *Store) SetMustChangePassword(ctx context.Context, userID string, required bool) error {
	return s.exec(ctx, `UPDATE users SET must_change_password = $2 WHERE id = $1`, userID, required)
}

func (s *Store) RecordFailedLogin(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1
		WHERE id = $1
		RETURNING failed_login_attempts`, userID,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, authgate.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("record failed login: %w", err)
	}
	return count, nil
}

func (s *Store) ResetFailedLogins(ctx context.Context, userID string) error {
	return s.exec(ctx, `
		UPDATE users
		SET failed_login_attempts = 0, locked_until = NULL
		WHERE id = $1`, userID)
}

func (s *Store) SetLockout(ctx context.Context, userID string, until time.Time) error {
	return s.exec(ctx, `UPDATE users SET locked_until = $2 WHERE id = $1`, userID, until)
}

func (s *Store) EnableTwoFactor(ctx context.Context, userID string, secret []byte) error {
	return s.exec(ctx, `
		UPDATE users
		SET two_factor_enabled = TRUE, two_factor_secret = $2
		WHERE id = $1`, userID, secret)
}

func (s *Store) DisableTwoFactor(ctx context.Context, userID string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE users
			SET two_factor_enabled = FALSE, two_factor_secret = NULL
			WHERE id = $1`, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return authgate.ErrUserNotFound
		}
		_, err = tx.Exec(ctx, `DELETE FROM backup_codes WHERE user_id = $1`, userID)
		return err
	})
}

func (s *Store) ReplaceBackupCodes(ctx context.Context, userID string, hashes [][32]byte) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM backup_codes WHERE user_id = $1`, userID); err != nil {
			return err
		}
		for _, h := range hashes {
			if _, err := tx.Exec(ctx, `
				INSERT INTO backup_codes (user_id, code_hash)
				VALUES ($1, $2)`, userID, h[:]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ConsumeBackupCode(ctx context.Context, userID string, hash [32]byte) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM backup_codes
		WHERE user_id = $1 AND code_hash = $2`, userID, hash[:])
	if err != nil {
		return false, fmt.Errorf("consume backup code: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return authgate.ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (authgate.User, error) {
	var (
		user        authgate.User
		role        string
		lockedUntil *time.Time
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.IsActive,
		&user.FailedLoginAttempts,
		&lockedUntil,
		&user.MustChangePassword,
		&user.TwoFactorEnabled,
		&user.TwoFactorSecret,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return authgate.User{}, authgate.ErrUserNotFound
	}
	if err != nil {
		return authgate.User{}, err
	}
	user.Role = authgate.Role(role)
	user.LockedUntil = lockedUntil
	return user, nil
}
