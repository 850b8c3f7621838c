// Package memory is an in-process CredentialStore for tests and
// single-node demos. Production deployments use userstore/postgres.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/authgate"
)

// Store keeps user records in a map guarded by a mutex.
type Store struct {
	mu      sync.Mutex
	byID    map[string]*record
	byEmail map[string]string
}

type record struct {
	user        authgate.User
	backupCodes map[[32]byte]bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byID:    make(map[string]*record),
		byEmail: make(map[string]string),
	}
}

func (s *Store) GetUserByID(_ context.Context, id string) (authgate.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return authgate.User{}, authgate.ErrUserNotFound
	}
	return cloneUser(rec.user), nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (authgate.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return authgate.User{}, authgate.ErrUserNotFound
	}
	return cloneUser(s.byID[id].user), nil
}

func (s *Store) CreateUser(_ context.Context, input authgate.CreateUserInput) (authgate.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[input.Email]; exists {
		return authgate.User{}, authgate.ErrUserExists
	}

	user := authgate.User{
		ID:           uuid.NewString(),
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		Role:         input.Role,
		IsActive:     true,
	}
	s.byID[user.ID] = &record{user: user, backupCodes: make(map[[32]byte]bool)}
	s.byEmail[user.Email] = user.ID
	return cloneUser(user), nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	return s.mutate(userID, func(u *authgate.User) {
		u.PasswordHash = hash
	})
}

func (s *Store) SetMustChangePassword(_ context.Context, userID string, required bool) error {
	return s.mutate(userID, func(u *authgate.User) {
		u.MustChangePassword = required
	})
}

func (s *Store) RecordFailedLogin(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[userID]
	if !ok {
		return 0, authgate.ErrUserNotFound
	}
	rec.user.FailedLoginAttempts++
	return rec.user.FailedLoginAttempts, nil
}

func (s *Store) ResetFailedLogins(_ context.Context, userID string) error {
	return s.mutate(userID, func(u *authgate.User) {
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
	})
}

func (s *Store) SetLockout(_ context.Context, userID string, until time.Time) error {
	return s.mutate(userID, func(u *authgate.User) {
		u.LockedUntil = &until
	})
}

func (s *Store) EnableTwoFactor(_ context.Context, userID string, secret []byte) error {
	return s.mutate(userID, func(u *authgate.User) {
		u.TwoFactorEnabled = true
		u.TwoFactorSecret = append([]byte(nil), secret...)
	})
}

func (s *Store) DisableTwoFactor(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[userID]
	if !ok {
		return authgate.ErrUserNotFound
	}
	rec.user.TwoFactorEnabled = false
	rec.user.TwoFactorSecret = nil
	rec.backupCodes = make(map[[32]byte]bool)
	return nil
}

func (s *Store) ReplaceBackupCodes(_ context.Context, userID string, hashes [][32]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[userID]
	if !ok {
		return authgate.ErrUserNotFound
	}
	rec.backupCodes = make(map[[32]byte]bool, len(hashes))
	for _, h := range hashes {
		rec.backupCodes[h] = true
	}
	return nil
}

func (s *Store) ConsumeBackupCode(_ context.Context, userID string, hash [32]byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[userID]
	if !ok {
		return false, authgate.ErrUserNotFound
	}
	if !rec.backupCodes[hash] {
		return false, nil
	}
	delete(rec.backupCodes, hash)
	return true, nil
}

// SetActive flips the active flag. Test helper.
func (s *Store) SetActive(userID string, active bool) error {
	return s.mutate(userID, func(u *authgate.User) {
		u.IsActive = active
	})
}

func (s *Store) mutate(userID string, fn func(*authgate.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[userID]
	if !ok {
		return authgate.ErrUserNotFound
	}
	fn(&rec.user)
	return nil
}

func cloneUser(u authgate.User) authgate.User {
	out := u
	if u.LockedUntil != nil {
		t := *u.LockedUntil
		out.LockedUntil = &t
	}
	out.TwoFactorSecret = append([]byte(nil), u.TwoFactorSecret...)
	return out
}
