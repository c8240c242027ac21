package gate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fitmeter/pkg/entitlement"
	"github.com/dmitrymomot/fitmeter/pkg/gate"
	"github.com/dmitrymomot/fitmeter/pkg/usage"
)

func fixedIdentity(id uuid.UUID) gate.IdentityFunc {
	return func(*http.Request) (uuid.UUID, bool) { return id, true }
}

func statusHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	})
}

func TestMiddlewareCommitsOnSuccess(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		wantCount int64
	}{
		{"created", http.StatusCreated, 1},
		{"ok without explicit header", 0, 1},
		{"client error", http.StatusBadRequest, 0},
		{"server error", http.StatusInternalServerError, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, nil)
			userID := uuid.New()

			handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if tt.status != 0 {
					w.WriteHeader(tt.status)
				}
			})
			mw := h.gate.Middleware(usage.ActionWorkouts, aiBurst, fixedIdentity(userID))(handler)

			rec := httptest.NewRecorder()
			mw.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/workouts", nil))

			assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
			assert.Equal(t, tt.wantCount, h.counter.Count(context.Background(), userID, usage.ActionWorkouts))
		})
	}
}

func TestMiddlewareQuotaRejection(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	userID := uuid.New()
	called := false
	handler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })

	rec := httptest.NewRecorder()
	h.gate.Middleware(usage.ActionAIPlans, aiBurst, fixedIdentity(userID))(handler).
		ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/plans", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body gate.QuotaExceededBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "quota_exceeded", body.Error)
	assert.Equal(t, usage.ActionAIPlans, body.Action)
	assert.Equal(t, int64(0), body.Limit)
	assert.Equal(t, entitlement.ReasonNotOnFreePlan, body.Reason)
	assert.Equal(t, usage.NextReset(testNow), body.ResetsAt)
}

func TestMiddlewareBurstRejection(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	mw := h.gate.Middleware(usage.ActionWorkouts, tinyBurst, fixedIdentity(uuid.New()))(statusHandler(http.StatusCreated))

	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/workouts", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	mw.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/workouts", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "too_many_requests", body["error"])
	assert.EqualValues(t, 60000, body["retry_after_ms"])
}

func TestMiddlewareRequiresIdentity(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	noIdentity := func(*http.Request) (uuid.UUID, bool) { return uuid.Nil, false }

	rec := httptest.NewRecorder()
	h.gate.Middleware(usage.ActionWorkouts, aiBurst, noIdentity)(statusHandler(http.StatusOK)).
		ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/workouts", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, h.burstStore.Len())
}

func TestMiddlewareCommitsAfterClientDisconnect(t *testing.T) {
	t.Parallel()

	store := ctxAwareStore{usage.NewMemoryStore()}
	h := newHarness(t, store)
	userID := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		cancel()
	})
	mw := h.gate.Middleware(usage.ActionWorkouts, aiBurst, fixedIdentity(userID))(handler)

	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/workouts", nil).WithContext(ctx))

	assert.Equal(t, http.StatusCreated, rec.Code)
	n, err := store.Get(context.Background(), userID, usage.MonthKey(testNow), usage.ActionWorkouts)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMiddlewareRejectsUnmeteredAction(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	assert.Panics(t, func() {
		h.gate.Middleware(usage.ActionAPI, aiBurst, fixedIdentity(uuid.New()))
	})
}
