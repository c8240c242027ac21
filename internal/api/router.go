package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/fitmeter/pkg/clientip"
	"github.com/dmitrymomot/fitmeter/pkg/entitlement"
	"github.com/dmitrymomot/fitmeter/pkg/gate"
	"github.com/dmitrymomot/fitmeter/pkg/httpserver"
	"github.com/dmitrymomot/fitmeter/pkg/identity"
	"github.com/dmitrymomot/fitmeter/pkg/logger"
	"github.com/dmitrymomot/fitmeter/pkg/metrics"
	"github.com/dmitrymomot/fitmeter/pkg/milestone"
	"github.com/dmitrymomot/fitmeter/pkg/ratelimiter"
	"github.com/dmitrymomot/fitmeter/pkg/requestid"
	"github.com/dmitrymomot/fitmeter/pkg/usage"
)

// Deps are the components the HTTP API is built from.
type Deps struct {
	Log        *slog.Logger
	Verifier   *identity.Verifier
	Limiter    *ratelimiter.Limiter
	Gate       *gate.Gate
	Resolver   *entitlement.Resolver
	Counter    *usage.Counter
	Milestones *milestone.Evaluator
	Webhooks   WebhookHandler
	Bursts     Bursts
	ClientIP   *clientip.Resolver // Defaults to clientip.New()

	Metrics  *metrics.Metrics    // Optional
	Gatherer prometheus.Gatherer // Serves /metrics when set

	Probes           map[string]httpserver.Probe
	ReadinessTimeout time.Duration
}

// NewRouter builds the metering API.
func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	h := &handlers{
		log:        log.With(logger.Component("api")),
		gate:       d.Gate,
		resolver:   d.Resolver,
		counter:    d.Counter,
		milestones: d.Milestones,
		webhooks:   d.Webhooks,
		bursts:     d.Bursts,
	}

	ips := d.ClientIP
	if ips == nil {
		ips = clientip.New()
	}
	skipOnStoreError := ratelimiter.WithErrorHandler(func(r *http.Request, err error) {
		log.WarnContext(r.Context(), "burst store unavailable, skipping check", logger.Error(err))
	})

	r := chi.NewRouter()
	r.Use(
		requestid.Middleware,
		middleware.Recoverer,
		requestLogger(log, d.Metrics),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", httpserver.LivenessHandler())
		r.Get("/ready", httpserver.ReadinessHandler(log, d.ReadinessTimeout, d.Probes))
	})
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(d.Gatherer))
	}

	r.Route("/v1", func(r chi.Router) {
		r.With(
			ips.Middleware,
			ratelimiter.Middleware(d.Limiter, d.Bursts.Webhook, webhookKey(ips), skipOnStoreError),
		).Post("/webhooks/paddle", h.paddleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(d.Verifier.Middleware)
			r.Use(ratelimiter.Middleware(d.Limiter, d.Bursts.API, userKey, skipOnStoreError))

			r.Post("/gate/{action}", h.guard)
			r.Post("/gate/{action}/commit", h.commit)
			r.Get("/entitlements", h.entitlements)
			r.Get("/usage/{action}/history", h.history)
			r.Get("/milestones/progress", h.milestoneProgress)
		})
	})

	return r
}

// userKey keys the generic API burst window by authenticated user. It is kept apart
// from the gate's per-action keys so that guarding an action costs one window slot.
func userKey(r *http.Request) string {
	userID, ok := identity.FromRequest(r)
	if !ok {
		return ""
	}
	return ratelimiter.Key("http", userID.String())
}

// webhookKey keys billing webhooks by the delivering address.
func webhookKey(ips *clientip.Resolver) ratelimiter.KeyFunc {
	return func(r *http.Request) string {
		ip := ips.Key(r)
		if ip == "" {
			return ""
		}
		return ratelimiter.Key("webhook", ip)
	}
}
