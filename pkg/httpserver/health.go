package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/dmitrymomot/fitmeter/pkg/logger"
)

// Probe checks a single dependency.
type Probe func(ctx context.Context) error

// HealthStatus is the JSON body of the health endpoints.
type HealthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LivenessHandler answers 200 while the process is serving requests.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, HealthStatus{Status: "alive"})
	}
}

// ReadinessHandler runs every probe with timeout and answers 503 if any fails.
// Probes run in name order so logs are stable.
func ReadinessHandler(log *slog.Logger, timeout time.Duration, probes map[string]Probe) http.HandlerFunc {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	names := slices.Sorted(maps.Keys(probes))

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		status := HealthStatus{Status: "ready", Checks: make(map[string]string, len(names))}
		code := http.StatusOK
		for _, name := range names {
			if err := probes[name](ctx); err != nil {
				log.ErrorContext(ctx, "readiness check failed", logger.Component(name), logger.Error(err))
				status.Checks[name] = "failed"
				status.Status = "not_ready"
				code = http.StatusServiceUnavailable
				continue
			}
			status.Checks[name] = "ok"
		}
		writeHealth(w, code, status)
	}
}

func writeHealth(w http.ResponseWriter, code int, status HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}
