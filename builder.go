package authgate

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authgate/password"
	"github.com/MrEthical07/authgate/revocation"
	"github.com/MrEthical07/authgate/session"
	"github.com/MrEthical07/authgate/throttle"
	"github.com/MrEthical07/authgate/token"
	"github.com/MrEthical07/authgate/twofactor"
)

// Builder assembles an [Engine]. A Redis client and a CredentialStore
// are required; everything else defaults from [DefaultConfig].
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	users     CredentialStore
	auditSink AuditSink

	built bool
}

// New starts a Builder with default configuration.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the configuration. cfg is cloned so later caller
// mutations do not leak into the engine.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client shared by the revocation registry,
// session store, and throttle.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the user-record collaborator.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.users = store
	return b
}

// WithAuditSink sets where audit events go. Defaults to [NoOpSink].
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// Build validates the configuration and wires the engine. A Builder
// can only build once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("authgate: builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("authgate: redis client is required")
	}
	if b.users == nil {
		return nil, errors.New("authgate: credential store is required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	tokens, err := token.NewManager(token.Config{
		AccessTTL:     b.config.Token.AccessTTL,
		RefreshTTL:    b.config.Token.RefreshTTL,
		PendingTTL:    b.config.Token.PendingTTL,
		SigningMethod: b.config.Token.SigningMethod,
		AccessSecret:  b.config.Token.AccessSecret,
		RefreshSecret: b.config.Token.RefreshSecret,
		Issuer:        b.config.Token.Issuer,
		Audience:      b.config.Token.Audience,
		Leeway:        b.config.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Params{
		Memory:      b.config.Password.Memory,
		Time:        b.config.Password.Time,
		Parallelism: b.config.Password.Parallelism,
		SaltLength:  b.config.Password.SaltLength,
		KeyLength:   b.config.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	prefix := b.config.Session.RedisPrefix

	e := &Engine{
		config:    b.config,
		tokens:    tokens,
		revoked:   revocation.NewRegistry(b.redis, prefix),
		sessions:  session.NewStore(b.redis, prefix, b.config.Session.Lifetime),
		passwords: hasher,
		totp: twofactor.NewTOTP(twofactor.Config{
			Issuer:    b.config.TwoFactor.Issuer,
			Digits:    b.config.TwoFactor.Digits,
			Period:    b.config.TwoFactor.Period,
			Skew:      b.config.TwoFactor.Skew,
			Algorithm: b.config.TwoFactor.Algorithm,
		}),
		otpReplay: twofactor.NewReplayGuard(b.redis, prefix),
		metrics:   NewMetrics(b.config.Metrics),
		users:     b.users,
	}
	if b.config.Throttle.Enabled {
		e.limiter = throttle.NewLimiter(b.redis, prefix, b.config.Throttle.Window, b.config.Throttle.MaxAttempts)
	}
	e.audit = newAuditDispatcher(b.config.Audit, b.auditSink)

	b.built = true
	return e, nil
}
