package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/fitmeter/pkg/entitlement"
	"github.com/dmitrymomot/fitmeter/pkg/logger"
	"github.com/dmitrymomot/fitmeter/pkg/ratelimiter"
	"github.com/dmitrymomot/fitmeter/pkg/usage"
)

// Resolver produces quota decisions. Implemented by entitlement.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, userID uuid.UUID, action usage.Action) entitlement.Decision
}

// Recorder records a successful metered action. Implemented by usage.Counter.
type Recorder interface {
	Increment(ctx context.Context, userID uuid.UUID, action usage.Action)
}

// DefaultCommitTimeout bounds a usage commit once it is detached from the request.
const DefaultCommitTimeout = 5 * time.Second

// Observer is notified of every gate verdict.
type Observer interface {
	Decided(action usage.Action, outcome Outcome)
}

// Gate composes burst limiting and quota enforcement for one guarded action.
// It checks but never records usage; callers run Commit once the action succeeded.
type Gate struct {
	limiter  *ratelimiter.Limiter
	resolver Resolver
	recorder Recorder
	log      *slog.Logger
	observer Observer

	commitTimeout time.Duration
}

// Option configures a Gate.
type Option func(*Gate)

func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.log = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(g *Gate) {
		g.observer = o
	}
}

// WithCommitTimeout bounds how long Commit may spend on the store. Non-positive values are ignored.
func WithCommitTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.commitTimeout = d
		}
	}
}

// New creates a Gate. Panics if any dependency is nil to fail fast during initialization.
func New(limiter *ratelimiter.Limiter, resolver Resolver, recorder Recorder, opts ...Option) *Gate {
	if limiter == nil || resolver == nil || recorder == nil {
		panic("gate: limiter, resolver and recorder are required")
	}
	g := &Gate{
		limiter:  limiter,
		resolver: resolver,
		recorder: recorder,
		log:      slog.Default(),

		commitTimeout: DefaultCommitTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Guard runs the burst check and, if it passes, the quota check.
// A burst rejection short-circuits: the resolver is not consulted.
// A failing burst store is logged and the burst layer skipped; quota is still enforced.
func (g *Gate) Guard(ctx context.Context, userID uuid.UUID, action usage.Action, burst ratelimiter.Config) Result {
	var res Result

	b, err := g.limiter.CheckAndConsume(ctx, ratelimiter.Key(string(action), userID.String()), burst)
	switch {
	case err != nil:
		g.log.WarnContext(ctx, "burst check unavailable, skipping",
			logger.UserID(userID),
			logger.Action(string(action)),
			logger.Error(err),
		)
	case !b.Allowed:
		g.log.DebugContext(ctx, "burst limit exceeded",
			logger.UserID(userID),
			logger.Action(string(action)),
		)
		res = Result{Outcome: OutcomeBurstRejected, ResetIn: b.ResetIn, Burst: b}
		g.decided(action, res.Outcome)
		return res
	default:
		res.Burst = b
	}

	res.Decision = g.resolver.Resolve(ctx, userID, action)
	if !res.Decision.Allowed {
		g.log.InfoContext(ctx, "monthly quota exceeded",
			logger.UserID(userID),
			logger.Action(string(action)),
			logger.Tier(string(res.Decision.Tier)),
			slog.Int64("used", res.Decision.Used),
			slog.Int64("limit", res.Decision.Limit),
		)
		res.Outcome = OutcomeQuotaRejected
	} else {
		res.Outcome = OutcomeAllowed
	}

	g.decided(action, res.Outcome)
	return res
}

// Commit records one use of action. Call it only after the guarded action succeeded.
// The increment ignores cancellation of ctx: once the action has happened, a client
// hanging up must not leave it unmetered. Context values such as the request ID are kept.
func (g *Gate) Commit(ctx context.Context, userID uuid.UUID, action usage.Action) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.commitTimeout)
	defer cancel()
	g.recorder.Increment(ctx, userID, action)
}

func (g *Gate) decided(action usage.Action, outcome Outcome) {
	if g.observer != nil {
		g.observer.Decided(action, outcome)
	}
}
