package bizAuth

import (
	"context"
	"strconv"

	"go.uber.org/zap"
)

// CheckEdgeRate counts one request from ip against the edge window. The
// request that exceeds Config.Security.EdgeRequestLimit locks the IP for
// IPLockoutDuration; it and every later request in the window return
// KindRateLimited with ScopeIP.
func (e *Engine) CheckEdgeRate(ctx context.Context, ip string) error {
	const op = "CheckEdgeRate"
	if !e.ready() {
		return notReady(op)
	}

	count, exceeded, err := e.limiter.RecordEdgeRequest(ctx, ip)
	if err != nil {
		return e.redisFailure(op, err)
	}
	if !exceeded {
		return nil
	}

	e.metricInc(MetricEdgeRateLimited)
	set, err := e.limiter.LockIP(ctx, ip, e.config.Security.IPLockoutDuration)
	if err != nil {
		return e.redisFailure(op, err)
	}
	if set {
		e.metricInc(MetricIPLockout)
		e.logger.Warn("ip locked out", zap.String("client_ip", ip), zap.Int("requests", count))
		e.emitAudit(ctx, auditEventIPLockout, false, "", "", ErrIPRateLimited, func() map[string]string {
			return map[string]string{"requests": strconv.Itoa(count)}
		})
	}
	return &Error{
		Kind:        KindRateLimited,
		Op:          op,
		Detail:      msgIPRateLimited,
		WaitMinutes: int(e.config.Security.IPLockoutDuration.Minutes()),
		Scope:       ScopeIP,
		Err:         ErrIPRateLimited,
	}
}

// checkIPLock returns KindRateLimited when ip is under an IP lockout.
func (e *Engine) checkIPLock(ctx context.Context, op, ip string) error {
	locked, err := e.limiter.IsIPLockedOut(ctx, ip)
	if err != nil {
		return e.redisFailure(op, err)
	}
	if !locked {
		return nil
	}
	mins, err := e.limiter.IPLockoutMinutes(ctx, ip)
	if err != nil {
		return e.redisFailure(op, err)
	}
	return &Error{
		Kind:        KindRateLimited,
		Op:          op,
		Detail:      msgIPRateLimited,
		WaitMinutes: mins,
		Scope:       ScopeIP,
		Err:         ErrIPRateLimited,
	}
}
