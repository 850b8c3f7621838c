package authgate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/authgate/password"
)

// Register creates a new account and starts its first session, so the
// caller is signed in immediately. The plaintext password is hashed
// here; the credential store never sees it. An empty role defaults to
// [RoleUser].
func (e *Engine) Register(ctx context.Context, email, plaintext string, role Role) (User, *LoginResult, error) {
	if e == nil || e.users == nil {
		return User{}, nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return User{}, nil, errors.New("invalid email address")
	}
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return User{}, nil, fmt.Errorf("invalid role %q", role)
	}

	hash, err := e.passwords.Hash(plaintext)
	if err != nil {
		if errors.Is(err, password.ErrWeakPassword) {
			return User{}, nil, fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
		}
		return User{}, nil, err
	}

	user, err := e.users.CreateUser(ctx, CreateUserInput{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", "", ErrUserExists, func() map[string]string {
				return map[string]string{"email": email}
			})
			return User{}, nil, ErrUserExists
		}
		return User{}, nil, err
	}

	// New accounts cannot have a second factor yet, so there is no
	// pending fork here.
	sess, err := e.sessions.Create(ctx, user.ID, sourceAddressFromContext(ctx), userAgentFromContext(ctx))
	if err != nil {
		return User{}, nil, err
	}
	pair, err := e.issueTokenPair(user, sess.ID)
	if err != nil {
		return User{}, nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, user.ID, sess.ID, nil, func() map[string]string {
		return map[string]string{"role": string(user.Role)}
	})
	return user, &LoginResult{TokenPair: pair, SessionID: sess.ID}, nil
}
