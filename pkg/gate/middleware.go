package gate

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dmitrymomot/fitmeter/pkg/ratelimiter"
	"github.com/dmitrymomot/fitmeter/pkg/usage"
)

// IdentityFunc extracts the authenticated user from a request.
type IdentityFunc func(r *http.Request) (uuid.UUID, bool)

// QuotaExceededBody is the JSON body written for quota rejections.
type QuotaExceededBody struct {
	Error     string       `json:"error"`
	Action    usage.Action `json:"action"`
	Used      int64        `json:"used"`
	Limit     int64        `json:"limit"`
	Remaining int64        `json:"remaining"`
	Reason    string       `json:"reason"`
	ResetsAt  time.Time    `json:"resets_at"`
}

// WriteRejection writes the 429 response for a rejected result.
func WriteRejection(w http.ResponseWriter, res Result) {
	if res.Outcome == OutcomeBurstRejected {
		burst := res.Burst
		if burst == nil {
			burst = &ratelimiter.Result{ResetIn: res.ResetIn}
		}
		ratelimiter.WriteTooManyRequests(w, burst)
		return
	}

	d := res.Decision
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(QuotaExceededBody{
		Error:     "quota_exceeded",
		Action:    d.Action,
		Used:      d.Used,
		Limit:     d.Limit,
		Remaining: d.Remaining,
		Reason:    d.Reason,
		ResetsAt:  d.ResetsAt,
	})
}

// Middleware guards a route with the gate. Requests without identity get 401.
// Panics on an invalid burst config or an action that is not metered monthly.
// The wrapped handler runs only when the gate allows, and usage is committed only
// when the handler responds with a 2xx status.
func (g *Gate) Middleware(action usage.Action, burst ratelimiter.Config, identity IdentityFunc) func(http.Handler) http.Handler {
	if err := burst.Validate(); err != nil {
		panic(err)
	}
	if !action.Metered() {
		panic("gate: action " + string(action) + " has no monthly quota")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := identity(r)
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			res := g.Guard(r.Context(), userID, action, burst)
			if res.Burst != nil {
				ratelimiter.WriteHeaders(w, res.Burst)
			}
			if !res.Allowed() {
				WriteRejection(w, res)
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= 200 && status < 300 {
				g.Commit(r.Context(), userID, action)
			}
		})
	}
}
