package authgate

import (
	"errors"
	"time"
)

// Config groups every tunable of the engine. Instances are set up once
// and treated as immutable after [Builder.Build].
type Config struct {
	Token     TokenConfig
	Lockout   LockoutConfig
	Throttle  ThrottleConfig
	TwoFactor TwoFactorConfig
	Session   SessionConfig
	Password  PasswordConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// TokenConfig configures the token service. AccessSecret and
// RefreshSecret must differ so that compromise of one does not
// compromise the other.
type TokenConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	PendingTTL time.Duration

	SigningMethod string // "hs256" (default) or "ed25519"
	AccessSecret  []byte
	RefreshSecret []byte

	Issuer   string
	Audience string
	Leeway   time.Duration
}

// LockoutConfig controls per-account lockout on repeated failures.
//
// ExtendWhileLocked decides whether failed attempts during an active
// lockout push lockedUntil further out. The default (false) matches the
// original behavior; either way the policy is explicit, not implicit.
type LockoutConfig struct {
	Threshold         int
	Duration          time.Duration
	ExtendWhileLocked bool
}

// ThrottleConfig controls the fixed-window per-source-address counter
// that runs before any credential check.
type ThrottleConfig struct {
	Enabled     bool
	Window      time.Duration
	MaxAttempts int
}

// TwoFactorConfig controls the TOTP handshake and backup codes.
type TwoFactorConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Skew      int
	Algorithm string // "SHA1" (default), "SHA256", "SHA512"

	BackupCodeCount  int
	BackupCodeLength int
}

// SessionConfig controls the session registry.
type SessionConfig struct {
	RedisPrefix string
	Lifetime    time.Duration
}

// PasswordConfig holds Argon2id parameters.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns production-leaning defaults. Signing secrets
// are intentionally absent and must be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			PendingTTL:    5 * time.Minute,
			SigningMethod: "hs256",
			Issuer:        "authgate",
			Audience:      "authgate-api",
			Leeway:        30 * time.Second,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  30 * time.Minute,
		},
		Throttle: ThrottleConfig{
			Enabled:     true,
			Window:      15 * time.Minute,
			MaxAttempts: 10,
		},
		TwoFactor: TwoFactorConfig{
			Issuer:           "authgate",
			Digits:           6,
			Period:           30,
			Skew:             1,
			Algorithm:        "SHA1",
			BackupCodeCount:  10,
			BackupCodeLength: 10,
		},
		Session: SessionConfig{
			RedisPrefix: "ag",
			Lifetime:    7 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// RelaxedPreset loosens throttle and lockout limits for development
// deployments.
func RelaxedPreset() Config {
	cfg := DefaultConfig()
	cfg.Throttle.MaxAttempts = 100
	cfg.Throttle.Window = time.Minute
	cfg.Lockout.Threshold = 20
	cfg.Lockout.Duration = time.Minute
	return cfg
}

// StrictPreset tightens limits for hostile environments.
func StrictPreset() Config {
	cfg := DefaultConfig()
	cfg.Throttle.MaxAttempts = 5
	cfg.Throttle.Window = 15 * time.Minute
	cfg.Lockout.Threshold = 3
	cfg.Lockout.Duration = time.Hour
	cfg.Token.AccessTTL = 5 * time.Minute
	return cfg
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 || c.Token.PendingTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.Token.RefreshTTL <= c.Token.AccessTTL {
		return errors.New("refresh TTL must exceed access TTL")
	}
	if len(c.Token.AccessSecret) == 0 || len(c.Token.RefreshSecret) == 0 {
		return errors.New("access and refresh signing secrets are required")
	}
	if string(c.Token.AccessSecret) == string(c.Token.RefreshSecret) {
		return errors.New("access and refresh signing secrets must differ")
	}
	if c.Token.Issuer == "" || c.Token.Audience == "" {
		return errors.New("token issuer and audience are required")
	}
	if c.Lockout.Threshold <= 0 {
		return errors.New("lockout threshold must be positive")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("lockout duration must be positive")
	}
	if c.Throttle.Enabled {
		if c.Throttle.Window <= 0 || c.Throttle.MaxAttempts <= 0 {
			return errors.New("throttle window and max attempts must be positive")
		}
	}
	if c.TwoFactor.Digits < 6 || c.TwoFactor.Digits > 8 {
		return errors.New("two-factor digits must be between 6 and 8")
	}
	if c.TwoFactor.Period <= 0 {
		return errors.New("two-factor period must be positive")
	}
	if c.TwoFactor.Skew < 0 || c.TwoFactor.Skew > 2 {
		return errors.New("two-factor skew must be between 0 and 2")
	}
	if c.Session.Lifetime <= 0 {
		return errors.New("session lifetime must be positive")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.AccessSecret = cloneBytes(cfg.Token.AccessSecret)
	out.Token.RefreshSecret = cloneBytes(cfg.Token.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
