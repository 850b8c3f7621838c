package authgate

import (
	"context"
	"time"
)

// Role is the coarse authorization level stored on a user record and
// carried in token claims.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Elevated reports whether the role bypasses resource-ownership checks.
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// User is the account record read from (and partially mutated through)
// the [CredentialStore]. The store owns the record; the engine only
// touches the failure counter, lockout timestamp, password hash, and
// two-factor fields.
type User struct {
	ID                  string
	Email               string
	PasswordHash        string
	Role                Role
	IsActive            bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	MustChangePassword  bool
	TwoFactorEnabled    bool
	TwoFactorSecret     []byte
}

// Locked reports whether the account is locked out at time now.
func (u User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// AuthenticatedUser is the identity attached to a request after a
// successful Authenticate. It carries exactly these three fields; raw
// token claims are never merged into it.
type AuthenticatedUser struct {
	ID    string
	Email string
	Role  Role
}

// TokenPair is a full access+refresh credential set.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// LoginResult is returned by [Engine.Login] and
// [Engine.VerifyTwoFactor]. When the account requires a second factor,
// Requires2FA is set and only PendingToken is populated.
type LoginResult struct {
	TokenPair

	Requires2FA  bool
	PendingToken string
	SessionID    string
}

// CreateUserInput is passed to [CredentialStore.CreateUser]. The
// password arrives pre-hashed; the store never sees plaintext.
type CreateUserInput struct {
	Email        string
	PasswordHash string
	Role         Role
}

// TwoFactorSetup is returned by [Engine.EnableTwoFactor]. BackupCodes
// are plaintext exactly once, here; only their hashes are persisted.
type TwoFactorSetup struct {
	SecretBase32    string
	ProvisioningURI string
	BackupCodes     []string
}

// CredentialStore is the external collaborator that owns user records.
// The CRUD layer implements it; the engine calls it for lookup and for
// the narrow set of security-relevant mutations.
//
// RecordFailedLogin must increment atomically and return the new count,
// so two concurrent failures cannot both observe the same value.
type CredentialStore interface {
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	CreateUser(ctx context.Context, input CreateUserInput) (User, error)

	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	SetMustChangePassword(ctx context.Context, userID string, required bool) error

	RecordFailedLogin(ctx context.Context, userID string) (int, error)
	ResetFailedLogins(ctx context.Context, userID string) error
	SetLockout(ctx context.Context, userID string, until time.Time) error

	EnableTwoFactor(ctx context.Context, userID string, secret []byte) error
	DisableTwoFactor(ctx context.Context, userID string) error
	ReplaceBackupCodes(ctx context.Context, userID string, hashes [][32]byte) error
	ConsumeBackupCode(ctx context.Context, userID string, hash [32]byte) (bool, error)
}
