package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/fitmeter/pkg/entitlement"
	"github.com/dmitrymomot/fitmeter/pkg/gate"
	"github.com/dmitrymomot/fitmeter/pkg/identity"
	"github.com/dmitrymomot/fitmeter/pkg/logger"
	"github.com/dmitrymomot/fitmeter/pkg/milestone"
	"github.com/dmitrymomot/fitmeter/pkg/ratelimiter"
	"github.com/dmitrymomot/fitmeter/pkg/subscription"
	"github.com/dmitrymomot/fitmeter/pkg/usage"
)

const (
	defaultHistoryMonths = 6
	maxHistoryMonths     = 24
	maxWebhookBytes      = 1 << 20
)

// WebhookHandler ingests verified billing events.
type WebhookHandler interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type handlers struct {
	log        *slog.Logger
	gate       *gate.Gate
	resolver   *entitlement.Resolver
	counter    *usage.Counter
	milestones *milestone.Evaluator
	webhooks   WebhookHandler
	bursts     Bursts
}

// burstFor picks the burst window guarding an action.
func (h *handlers) burstFor(action usage.Action) ratelimiter.Config {
	if action == usage.ActionAIPlans {
		return h.bursts.AI
	}
	return h.bursts.API
}

func actionParam(w http.ResponseWriter, r *http.Request) (usage.Action, bool) {
	action, err := usage.ParseMeteredAction(chi.URLParam(r, "action"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_action", err.Error())
		return "", false
	}
	return action, true
}

func userFrom(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := identity.FromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
	}
	return userID, ok
}

// guard checks burst and quota for the caller without recording usage.
func (h *handlers) guard(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(w, r)
	if !ok {
		return
	}
	action, ok := actionParam(w, r)
	if !ok {
		return
	}

	res := h.gate.Guard(r.Context(), userID, action, h.burstFor(action))
	if res.Burst != nil {
		ratelimiter.WriteHeaders(w, res.Burst)
	}
	if !res.Allowed() {
		gate.WriteRejection(w, res)
		return
	}
	writeJSON(w, http.StatusOK, res.Decision)
}

// commit records one use after the caller's action succeeded.
func (h *handlers) commit(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(w, r)
	if !ok {
		return
	}
	action, ok := actionParam(w, r)
	if !ok {
		return
	}
	h.gate.Commit(r.Context(), userID, action)
	w.WriteHeader(http.StatusNoContent)
}

type actionUsage struct {
	entitlement.Decision
	UsagePercentage int `json:"usage_percentage"`
}

type entitlementsResponse struct {
	Tier     subscription.Tier            `json:"tier"`
	Features []entitlement.Feature        `json:"features"`
	Actions  map[usage.Action]actionUsage `json:"actions"`
}

func (h *handlers) entitlements(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(w, r)
	if !ok {
		return
	}

	tier := h.resolver.Tier(r.Context(), userID)
	resp := entitlementsResponse{
		Tier:     tier,
		Features: []entitlement.Feature{},
		Actions:  make(map[usage.Action]actionUsage),
	}
	if plan, err := h.resolver.Plan(tier); err == nil && plan.Features != nil {
		resp.Features = plan.Features
	}
	for action, d := range h.resolver.ResolveAll(r.Context(), userID) {
		resp.Actions[action] = actionUsage{Decision: d, UsagePercentage: entitlement.UsagePercentage(d)}
	}
	writeJSON(w, http.StatusOK, resp)
}

type historyResponse struct {
	Action usage.Action         `json:"action"`
	Months []usage.MonthlyUsage `json:"months"`
}

func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(w, r)
	if !ok {
		return
	}
	action, ok := actionParam(w, r)
	if !ok {
		return
	}

	months := defaultHistoryMonths
	if raw := r.URL.Query().Get("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryMonths {
			writeError(w, http.StatusBadRequest, "invalid_months", "months must be between 1 and "+strconv.Itoa(maxHistoryMonths))
			return
		}
		months = n
	}

	hist, err := h.counter.History(r.Context(), userID, action, months)
	if err != nil {
		h.log.ErrorContext(r.Context(), "usage history unavailable", logger.Action(string(action)), logger.Error(err))
		writeError(w, http.StatusServiceUnavailable, "usage_unavailable", "")
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Action: action, Months: hist})
}

type milestoneResponse struct {
	Unlocked      bool  `json:"unlocked"`
	ProgressCount int64 `json:"progress_count"`
	Threshold     int64 `json:"threshold"`
	Remaining     int64 `json:"remaining"`
}

func (h *handlers) milestoneProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(w, r)
	if !ok {
		return
	}

	state, err := h.milestones.IsUnlocked(r.Context(), userID)
	if err != nil {
		h.log.ErrorContext(r.Context(), "milestone progress unavailable", logger.Error(err))
		writeError(w, http.StatusServiceUnavailable, "milestone_unavailable", "")
		return
	}
	writeJSON(w, http.StatusOK, milestoneResponse{
		Unlocked:      state.Unlocked,
		ProgressCount: state.ProgressCount,
		Threshold:     state.Threshold,
		Remaining:     state.Remaining(),
	})
}

// paddleWebhook acknowledges every event it could verify. Only storage failures
// return 5xx so that Paddle redelivers them.
func (h *handlers) paddleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "")
		return
	}

	err = h.webhooks.HandleWebhook(r.Context(), payload, r.Header.Get(subscription.SignatureHeader))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, subscription.ErrWebhookVerificationFailed):
		h.log.WarnContext(r.Context(), "rejected unsigned billing webhook", logger.Error(err))
		writeError(w, http.StatusUnauthorized, "invalid_signature", "")
	case errors.Is(err, subscription.ErrInvalidWebhookPayload), errors.Is(err, subscription.ErrMissingUserID):
		h.log.WarnContext(r.Context(), "ignored malformed billing webhook", logger.Error(err))
		writeError(w, http.StatusBadRequest, "invalid_payload", err.Error())
	default:
		h.log.ErrorContext(r.Context(), "billing webhook failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "webhook_failed", "")
	}
}
