package bizAuth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/MrEthical07/bizAuth/internal/audit"
	"github.com/MrEthical07/bizAuth/internal/cache"
	"github.com/MrEthical07/bizAuth/internal/rate"
	"github.com/MrEthical07/bizAuth/jwt"
	"github.com/MrEthical07/bizAuth/password"
	"github.com/MrEthical07/bizAuth/store"
)

const tracerName = "github.com/MrEthical07/bizAuth"

// Engine owns the credential lifecycle: native login and refresh rotation,
// account mutation, the OAuth bridge and per-request identity resolution.
//
// An Engine is built once by Builder and is safe for concurrent use.
type Engine struct {
	config     Config
	redis      redis.UniversalClient
	store      store.Store
	limiter    *rate.Limiter
	hasher     *password.Hasher
	jwt        *jwt.Manager
	oauth      OAuthProvider
	states     OAuthStateStore
	adminCache *cache.AdminStatus
	audit      *audit.Dispatcher
	metrics    *Metrics
	logger     *zap.Logger
	tracer     trace.Tracer
	clock      func() time.Time
}

// Close drains the audit dispatcher and logs what it had to drop. It does
// not close the Redis client or the credential store, which the caller owns.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
	if dropped := e.audit.Dropped(); dropped > 0 {
		fields := []zap.Field{zap.Uint64("dropped", dropped)}
		for category, n := range e.audit.DroppedByCategory() {
			if n > 0 {
				fields = append(fields, zap.Uint64("dropped_"+string(category), n))
			}
		}
		e.logger.Warn("audit events dropped under backpressure", fields...)
	}
}

// AuditDropped returns the number of audit events dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Ping reports whether Redis answers. Used by health checks.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.redis == nil {
		return ErrEngineNotReady
	}
	if err := e.redis.Ping(ctx).Err(); err != nil {
		return unavailable("Ping", ErrRedisUnavailable, err)
	}
	return nil
}

// OAuthEnabled reports whether the engine was built with an OAuth provider.
func (e *Engine) OAuthEnabled() bool {
	return e != nil && e.oauth != nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	if e.clock != nil {
		return e.clock()
	}
	return time.Now()
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && e.limiter != nil && e.hasher != nil && e.jwt != nil
}

func notReady(op string) error {
	return newError(KindUnavailable, op, "", ErrEngineNotReady)
}

func (e *Engine) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := e.tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return tracer.Start(ctx, "bizauth."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, KindOf(err).String())
	}
	span.End()
}

// storeFailure logs and counts a credential store failure.
func (e *Engine) storeFailure(op string, err error) *Error {
	e.metricInc(MetricStoreUnavailable)
	e.logger.Error("credential store unavailable", zap.String("op", op), zap.Error(err))
	return unavailable(op, ErrStoreUnavailable, err)
}

// redisFailure logs and counts a rate limiter or state store failure.
func (e *Engine) redisFailure(op string, err error) *Error {
	e.metricInc(MetricRedisUnavailable)
	e.logger.Error("redis unavailable", zap.String("op", op), zap.Error(err))
	return unavailable(op, ErrRedisUnavailable, err)
}
