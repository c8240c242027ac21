package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fitmeter/internal/api"
	"github.com/dmitrymomot/fitmeter/pkg/clientip"
	"github.com/dmitrymomot/fitmeter/pkg/entitlement"
	"github.com/dmitrymomot/fitmeter/pkg/gate"
	"github.com/dmitrymomot/fitmeter/pkg/identity"
	"github.com/dmitrymomot/fitmeter/pkg/metrics"
	"github.com/dmitrymomot/fitmeter/pkg/milestone"
	"github.com/dmitrymomot/fitmeter/pkg/ratelimiter"
	"github.com/dmitrymomot/fitmeter/pkg/subscription"
	"github.com/dmitrymomot/fitmeter/pkg/usage"
)

var (
	testNow = time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	authCfg = identity.Config{Secret: "router-test-secret"}
)

func clock() time.Time { return testNow }

type stubWebhooks struct {
	err       error
	signature string
}

func (s *stubWebhooks) HandleWebhook(_ context.Context, _ []byte, signature string) error {
	s.signature = signature
	return s.err
}

type fixture struct {
	handler  http.Handler
	subs     *subscription.MemoryStore
	webhooks *stubWebhooks
	workouts map[uuid.UUID]int64
}

func newFixture(t *testing.T, apiBurst ratelimiter.Config) *fixture {
	t.Helper()
	return newFixtureWithWebhookBurst(t, apiBurst, roomyBurst)
}

func newFixtureWithWebhookBurst(t *testing.T, apiBurst, webhookBurst ratelimiter.Config) *fixture {
	t.Helper()

	f := &fixture{
		subs:     subscription.NewMemoryStore(),
		webhooks: &stubWebhooks{},
		workouts: map[uuid.UUID]int64{},
	}

	burstStore := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	t.Cleanup(burstStore.Close)
	limiter := ratelimiter.New(burstStore, ratelimiter.WithClock(clock))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	counter := usage.NewCounter(usage.NewMemoryStore(), usage.WithClock(clock), usage.WithObserver(m))
	resolver, err := entitlement.NewResolver(context.Background(),
		entitlement.NewInMemSource(entitlement.DefaultPlans()), f.subs, counter,
		entitlement.WithClock(clock), entitlement.WithObserver(m))
	require.NoError(t, err)

	verifier, err := identity.NewVerifier(authCfg)
	require.NoError(t, err)

	evaluator := milestone.NewEvaluator(func(_ context.Context, userID uuid.UUID) (int64, error) {
		return f.workouts[userID], nil
	})

	f.handler = api.NewRouter(api.Deps{
		Verifier:   verifier,
		Limiter:    limiter,
		Gate:       gate.New(limiter, resolver, counter, gate.WithObserver(m)),
		Resolver:   resolver,
		Counter:    counter,
		Milestones: evaluator,
		Webhooks:   f.webhooks,
		Bursts: api.Bursts{
			API:     apiBurst,
			AI:      ratelimiter.Config{Window: time.Minute, MaxRequests: 5},
			Webhook: webhookBurst,
		},
		ClientIP:         clientip.New("X-Real-IP"),
		Metrics:          m,
		Gatherer:         reg,
		ReadinessTimeout: time.Second,
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, userID uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if userID != uuid.Nil {
		token, err := identity.Sign(authCfg, userID, time.Now(), time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

var roomyBurst = ratelimiter.Config{Window: time.Minute, MaxRequests: 1000}

func TestGuardAndCommit(t *testing.T) {
	t.Parallel()

	f := newFixture(t, roomyBurst)
	userID := uuid.New()

	rec := f.do(t, http.MethodPost, "/v1/gate/workouts", userID)
	require.Equal(t, http.StatusOK, rec.Code)
	var decision entitlement.Decision
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&decision))
	assert.True(t, decision.Allowed)
	assert.Equal(t, int64(0), decision.Used)
	assert.Equal(t, int64(45), decision.Limit)
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Remaining"))

	rec = f.do(t, http.MethodPost, "/v1/gate/workouts/commit", userID)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/gate/workouts", userID)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&decision))
	assert.Equal(t, int64(1), decision.Used)
	assert.Equal(t, int64(44), decision.Remaining)
}

func TestGuardQuotaRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t, roomyBurst)

	rec := f.do(t, http.MethodPost, "/v1/gate/ai_plans", uuid.New())
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body gate.QuotaExceededBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "quota_exceeded", body.Error)
	assert.Equal(t, usage.ActionAIPlans, body.Action)
	assert.Equal(t, int64(0), body.Limit)
	assert.Equal(t, entitlement.ReasonNotOnFreePlan, body.Reason)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), body.ResetsAt)
}

func TestRequestValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, roomyBurst)
	userID := uuid.New()

	tests := []struct {
		name     string
		method   string
		path     string
		user     uuid.UUID
		wantCode int
	}{
		{"no identity on gate", http.MethodPost, "/v1/gate/workouts", uuid.Nil, http.StatusUnauthorized},
		{"no identity on entitlements", http.MethodGet, "/v1/entitlements", uuid.Nil, http.StatusUnauthorized},
		{"unknown action", http.MethodPost, "/v1/gate/teleport", userID, http.StatusBadRequest},
		{"unknown action on commit", http.MethodPost, "/v1/gate/teleport/commit", userID, http.StatusBadRequest},
		{"burst-only action on gate", http.MethodPost, "/v1/gate/api", userID, http.StatusBadRequest},
		{"burst-only action on commit", http.MethodPost, "/v1/gate/api/commit", userID, http.StatusBadRequest},
		{"burst-only action history", http.MethodGet, "/v1/usage/api/history", userID, http.StatusBadRequest},
		{"months not a number", http.MethodGet, "/v1/usage/workouts/history?months=abc", userID, http.StatusBadRequest},
		{"months too large", http.MethodGet, "/v1/usage/workouts/history?months=100", userID, http.StatusBadRequest},
		{"months zero", http.MethodGet, "/v1/usage/workouts/history?months=0", userID, http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/v1/nope", userID, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := f.do(t, tt.method, tt.path, tt.user)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestEntitlements(t *testing.T) {
	t.Parallel()

	f := newFixture(t, roomyBurst)
	userID := uuid.New()
	require.NoError(t, f.subs.Save(context.Background(), &subscription.Subscription{
		UserID: userID,
		Tier:   subscription.TierPro,
		Status: subscription.StatusActive,
	}))

	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/v1/gate/ai_plans/commit", userID).Code)

	rec := f.do(t, http.MethodGet, "/v1/entitlements", userID)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tier     subscription.Tier     `json:"tier"`
		Features []entitlement.Feature `json:"features"`
		Actions  map[usage.Action]struct {
			Used            int64 `json:"used"`
			Limit           int64 `json:"limit"`
			UsagePercentage int   `json:"usage_percentage"`
		} `json:"actions"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, subscription.TierPro, body.Tier)
	assert.Contains(t, body.Features, entitlement.FeatureAICoach)
	assert.Equal(t, int64(1), body.Actions[usage.ActionAIPlans].Used)
	assert.Equal(t, int64(3), body.Actions[usage.ActionAIPlans].Limit)
	assert.Equal(t, 33, body.Actions[usage.ActionAIPlans].UsagePercentage)
	assert.Equal(t, int64(90), body.Actions[usage.ActionWorkouts].Limit)
}

func TestUsageHistory(t *testing.T) {
	t.Parallel()

	f := newFixture(t, roomyBurst)
	userID := uuid.New()
	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/v1/gate/workouts/commit", userID).Code)

	rec := f.do(t, http.MethodGet, "/v1/usage/workouts/history?months=3", userID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"action":"workouts","months":[
		{"month":"2024-03","count":1},
		{"month":"2024-02","count":0},
		{"month":"2024-01","count":0}
	]}`, rec.Body.String())
}

func TestMilestoneProgress(t *testing.T) {
	t.Parallel()

	f := newFixture(t, roomyBurst)
	userID := uuid.New()
	f.workouts[userID] = 4

	rec := f.do(t, http.MethodGet, "/v1/milestones/progress", userID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"unlocked":false,"progress_count":4,"threshold":10,"remaining":6}`, rec.Body.String())
}

func TestAPIBurst(t *testing.T) {
	t.Parallel()

	f := newFixture(t, ratelimiter.Config{Window: time.Minute, MaxRequests: 2})
	userID := uuid.New()

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/v1/entitlements", userID).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/v1/entitlements", userID).Code)

	rec := f.do(t, http.MethodGet, "/v1/entitlements", userID)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/v1/entitlements", uuid.New()).Code)
}

func TestPaddleWebhook(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"processed", nil, http.StatusOK},
		{"bad signature", subscription.ErrWebhookVerificationFailed, http.StatusUnauthorized},
		{"malformed", errors.Join(subscription.ErrInvalidWebhookPayload, errors.New("bad json")), http.StatusBadRequest},
		{"no user", subscription.ErrMissingUserID, http.StatusBadRequest},
		{"store down", subscription.ErrSaveFailed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, roomyBurst)
			f.webhooks.err = tt.err

			req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/paddle", strings.NewReader(`{}`))
			req.Header.Set(subscription.SignatureHeader, "ts=1;h1=abc")
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "ts=1;h1=abc", f.webhooks.signature)
		})
	}
}

func TestWebhookBurstByClientIP(t *testing.T) {
	t.Parallel()

	f := newFixtureWithWebhookBurst(t, roomyBurst, ratelimiter.Config{Window: time.Minute, MaxRequests: 1})
	deliver := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/paddle", strings.NewReader(`{}`))
		req.Header.Set("X-Real-IP", ip)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, deliver("198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, deliver("198.51.100.1"))
	assert.Equal(t, http.StatusOK, deliver("198.51.100.2"))
}

func TestOperationalEndpoints(t *testing.T) {
	t.Parallel()

	f := newFixture(t, roomyBurst)
	f.do(t, http.MethodPost, "/v1/gate/ai_plans", uuid.New())

	live := f.do(t, http.MethodGet, "/health/live", uuid.Nil)
	assert.Equal(t, http.StatusOK, live.Code)
	assert.NotEmpty(t, live.Header().Get("X-Request-ID"))

	ready := f.do(t, http.MethodGet, "/health/ready", uuid.Nil)
	assert.Equal(t, http.StatusOK, ready.Code)

	rec := f.do(t, http.MethodGet, "/metrics", uuid.Nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `fitmeter_gate_decisions_total{action="ai_plans",outcome="quota_rejected"} 1`)
	assert.Contains(t, rec.Body.String(), `fitmeter_http_request_duration_seconds_count{method="POST",route="/v1/gate/{action}",status="429"} 1`)
}
