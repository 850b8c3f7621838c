package authgate

import (
	"context"

	"github.com/MrEthical07/authgate/password"
	"github.com/MrEthical07/authgate/revocation"
	"github.com/MrEthical07/authgate/session"
	"github.com/MrEthical07/authgate/throttle"
	"github.com/MrEthical07/authgate/token"
	"github.com/MrEthical07/authgate/twofactor"
)

// Engine is the authentication control plane. Build one with [New] and
// share it; all methods are safe for concurrent use.
type Engine struct {
	config Config

	tokens    *token.Manager
	revoked   *revocation.Registry
	sessions  *session.Store
	limiter   *throttle.Limiter
	passwords *password.Hasher
	totp      *twofactor.TOTP
	otpReplay *twofactor.ReplayGuard
	audit     *auditDispatcher
	metrics   *Metrics
	users     CredentialStore
}

// Close stops the audit dispatcher after draining buffered events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() map[MetricID]uint64 {
	if e == nil || e.metrics == nil {
		return map[MetricID]uint64{}
	}
	return e.metrics.Snapshot()
}

// SweepRevocations removes revocation entries that lost their TTL.
// Intended to be called from a periodic job.
func (e *Engine) SweepRevocations(ctx context.Context) (int, error) {
	if e == nil || e.revoked == nil {
		return 0, ErrEngineNotReady
	}
	return e.revoked.Sweep(ctx)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}
